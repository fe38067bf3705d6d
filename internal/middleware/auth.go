package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/2beens/fit45/internal/auth"
	"github.com/2beens/fit45/internal/telemetry/tracing"
	"github.com/2beens/fit45/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=auth_mocks_test.go -package=middleware_test

const (
	internalPathPrefix    = "/internal/"
	schedulerSecretHeader = "X-Scheduler-Secret"
)

type sessionChecker interface {
	UserID(ctx context.Context, token string) (string, error)
}

type AuthMiddlewareHandler struct {
	schedulerSecretHash string
	checker             sessionChecker
	allowedPaths        map[string]bool
}

func NewAuthMiddlewareHandler(
	schedulerSecretHash string,
	checker sessionChecker,
) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		schedulerSecretHash: schedulerSecretHash,
		checker:             checker,
		allowedPaths: map[string]bool{
			"/":               true,
			"/version":        true,
			"/window/current": true,
		},
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, PUT, OPTIONS")
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			if h.allowedPaths[r.URL.Path] {
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			// scheduler and auth provider hooks
			if strings.HasPrefix(r.URL.Path, internalPathPrefix) {
				secret := r.Header.Get(schedulerSecretHeader)
				if secret == "" || h.schedulerSecretHash == "" || !pkg.CheckSecretHash(secret, h.schedulerSecretHash) {
					reqIp, _ := pkg.ReadUserIP(r)
					log.Errorf("unauthorized %s request detected from %s", r.URL.Path, reqIp)
					http.Error(w, "no can do", http.StatusUnauthorized)
					span.SetStatus(codes.Error, "invalid-scheduler-secret")
					return
				}
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			authToken := bearerToken(r)
			if authToken == "" {
				log.Tracef("[missing token] [auth middleware] unauthorized => %s", r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "missing-auth-token")
				return
			}

			userID, err := h.checker.UserID(ctx, authToken)
			if errors.Is(err, auth.ErrUnauthorized) {
				log.Tracef("[invalid token] [auth middleware] unauthorized => %s", r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "not-logged")
				return
			}
			if err != nil {
				log.Errorf("[failed session check] => %s: %s", r.URL.Path, err)
				http.Error(w, "session check failed", http.StatusServiceUnavailable)
				span.SetStatus(codes.Error, "check-session-err")
				span.RecordError(err)
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}
