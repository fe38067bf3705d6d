package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func TestLimitAndDrainRequest(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(`{"dayNumber": 4}`)}
	req := httptest.NewRequest(http.MethodPost, "/completions", nil)
	req.Body = body

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// handler reads only part of the body
		buf := make([]byte, 4)
		_, err := r.Body.Read(buf)
		require.NoError(t, err)
	})
	LimitAndDrainRequest(1024)(next).ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, body.closed)
	rest, _ := io.ReadAll(body.Reader)
	assert.Empty(t, rest)
}

func TestLimitAndDrainRequest_TooLarge(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/reviews", strings.NewReader(strings.Repeat("a", 100)))

	var readErr error
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	})
	LimitAndDrainRequest(10)(next).ServeHTTP(httptest.NewRecorder(), req)

	var maxBytesErr *http.MaxBytesError
	assert.ErrorAs(t, readErr, &maxBytesErr)
}
