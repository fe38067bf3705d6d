package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/2beens/fit45/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type sessionMirror interface {
	Mirror(ctx context.Context, token, userID string, createdAt time.Time) error
	Revoke(ctx context.Context, token string) (bool, error)
}

type localCache interface {
	Forget(token string)
}

// MirrorSessionRequest is sent by the auth provider webhook when a user logs in.
type MirrorSessionRequest struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Handler struct {
	service sessionMirror
	cache   localCache
	now     func() time.Time
}

func NewHandler(service sessionMirror, cache localCache) *Handler {
	return &Handler{
		service: service,
		cache:   cache,
		now:     time.Now,
	}
}

func (h *Handler) HandleMirrorSession(w http.ResponseWriter, r *http.Request) {
	var req MirrorSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("mirror session, unmarshal json params: %s", err)
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = h.now()
	}

	if err := h.service.Mirror(r.Context(), req.Token, req.UserID, req.CreatedAt); err != nil {
		if errors.Is(err, ErrInvalidSession) {
			http.Error(w, "token and user id are required", http.StatusBadRequest)
			return
		}
		log.Errorf("mirror session for %s: %s", req.UserID, err)
		http.Error(w, "failed to store session", http.StatusServiceUnavailable)
		return
	}
	pkg.WriteResponse(w, pkg.ContentType.Text, "session stored", http.StatusCreated)
}

func (h *Handler) HandleRevokeSession(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	revoked, err := h.service.Revoke(r.Context(), token)
	if err != nil {
		log.Errorf("revoke session: %s", err)
		http.Error(w, "failed to revoke session", http.StatusServiceUnavailable)
		return
	}
	if h.cache != nil {
		h.cache.Forget(token)
	}
	if !revoked {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	pkg.WriteResponse(w, pkg.ContentType.Text, "session revoked", http.StatusOK)
}
