package plan

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/2beens/fit45/internal/auth"
	"github.com/2beens/fit45/internal/challenge"
	"github.com/2beens/fit45/internal/telemetry/tracing"
	"github.com/2beens/fit45/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type profileGetter interface {
	GetProfile(ctx context.Context, userID string) (*challenge.ProfileView, error)
}

type Handler struct {
	fetcher  *Fetcher
	profiles profileGetter
}

func NewHandler(fetcher *Fetcher, profiles profileGetter) *Handler {
	return &Handler{
		fetcher:  fetcher,
		profiles: profiles,
	}
}

// HandleDay serves the plan day for the caller's current routine.
func (h *Handler) HandleDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.day")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	day, err := strconv.Atoi(mux.Vars(r)["day"])
	if err != nil || day < 1 {
		http.Error(w, "invalid day", http.StatusBadRequest)
		return
	}

	profile, err := h.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, challenge.ErrProfileNotFound) {
			pkg.WriteJSONError(w, "profile not found", false, http.StatusNotFound)
			return
		}
		log.Errorf("plan day, get profile: %s", err)
		pkg.WriteJSONError(w, "internal error", false, http.StatusInternalServerError)
		return
	}

	content, err := h.fetcher.Day(ctx, profile.Routine, profile.CustomSheetURL, day)
	if err != nil {
		log.Errorf("plan day %d for %s: %s", day, userID, err)
		switch {
		case errors.Is(err, ErrInvalidDay):
			pkg.WriteJSONError(w, "day is out of the plan", false, http.StatusBadRequest)
		case errors.Is(err, ErrEmptyPlan):
			pkg.WriteJSONError(w, "workout plan is empty", false, http.StatusUnprocessableEntity)
		default:
			pkg.WriteJSONError(w, "workout plan unavailable, please retry", true, http.StatusBadGateway)
		}
		return
	}
	pkg.WriteJSON(w, content, http.StatusOK)
}
