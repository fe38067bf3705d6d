package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/2beens/fit45/internal/auth"
	"github.com/2beens/fit45/internal/telemetry/metrics"
	"github.com/2beens/fit45/pkg"

	log "github.com/sirupsen/logrus"
)

func PanicRecovery(metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				// the client went away mid response, nothing to report
				if r == http.ErrAbortHandler {
					panic(r)
				}

				userID, _ := auth.UserIDFromContext(req.Context())
				log.WithFields(log.Fields{
					"method": req.Method,
					"path":   req.URL.Path,
					"user":   userID,
				}).Errorf("http: panic: %v\n%s", r, debug.Stack())
				if metricsManager != nil {
					metricsManager.CounterHandleRequestPanic.Inc()
				}
				pkg.WriteJSONError(w, "internal error", false, http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, req)
		})
	}
}
