package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/2beens/fit45/internal/auth"
	"github.com/2beens/fit45/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type panicRecTestHandler struct {
	panicWith any
	called    bool
}

func (p *panicRecTestHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	p.called = true
	if p.panicWith != nil {
		panic(p.panicWith)
	}
	w.WriteHeader(http.StatusCreated)
}

func TestPanicRecovery(t *testing.T) {
	for _, tc := range []struct {
		name           string
		panicWith      any
		expectedStatus int
		expectedPanics float64
	}{
		{name: "NoPanic", expectedStatus: http.StatusCreated},
		{name: "Panic", panicWith: "nil profile", expectedStatus: http.StatusInternalServerError, expectedPanics: 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			metricsManager := metrics.NewTestManager()
			next := &panicRecTestHandler{panicWith: tc.panicWith}

			req := httptest.NewRequest(http.MethodPost, "/completions", nil)
			req = req.WithContext(auth.WithUserID(req.Context(), "user-1"))
			rr := httptest.NewRecorder()
			PanicRecovery(metricsManager)(next).ServeHTTP(rr, req)

			assert.True(t, next.called)
			assert.Equal(t, tc.expectedStatus, rr.Code)
			assert.Equal(t, tc.expectedPanics, testutil.ToFloat64(metricsManager.CounterHandleRequestPanic))
			if tc.panicWith != nil {
				assert.JSONEq(t, `{"error":"internal error"}`, rr.Body.String())
			}
		})
	}
}

func TestPanicRecovery_AbortHandler(t *testing.T) {
	metricsManager := metrics.NewTestManager()
	next := &panicRecTestHandler{panicWith: http.ErrAbortHandler}

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		PanicRecovery(metricsManager)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, float64(0), testutil.ToFloat64(metricsManager.CounterHandleRequestPanic))
}
