package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/2beens/fit45/internal/auth"
	"github.com/2beens/fit45/internal/challenge/window"
	"github.com/2beens/fit45/internal/telemetry/tracing"
	"github.com/2beens/fit45/pkg"

	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=challenge_test

type challengeService interface {
	SignUp(ctx context.Context, params NewProfileParams) (*ProfileView, error)
	GetProfile(ctx context.Context, userID string) (*ProfileView, error)
	ListSessions(ctx context.Context, userID string) ([]SessionView, error)
	ResolveCurrentWindow() (window.Window, error)
	Eligibility(ctx context.Context, userID string) (bool, window.Window, error)
	RecordCompletion(ctx context.Context, userID string, dayNumber int) (*CompletionResult, error)
	ChangeRoutine(ctx context.Context, userID string, routine Routine, customSheetURL *string) (*ProfileView, error)
	SweepInactiveStreaks(ctx context.Context) (*SweepResult, error)
	SubmitReview(ctx context.Context, review Review) error
}

type WindowResponse struct {
	DateLabel string `json:"dateLabel"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type EligibilityResponse struct {
	CanComplete bool   `json:"canComplete"`
	WindowLabel string `json:"windowLabel"`
}

type RecordCompletionRequest struct {
	DayNumber int `json:"dayNumber"`
}

type ChangeRoutineRequest struct {
	Routine        string  `json:"routine"`
	CustomSheetURL *string `json:"customSheetUrl,omitempty"`
}

type Handler struct {
	service challengeService
}

func NewHandler(service challengeService) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.challenge.signup")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var params NewProfileParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		log.Errorf("signup, unmarshal json params: %s", err)
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	params.UserID = userID

	profile, err := h.service.SignUp(ctx, params)
	if err != nil {
		writeError(w, "signup", err)
		return
	}
	pkg.WriteJSON(w, profile, http.StatusCreated)
}

func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.challenge.profile.get")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	profile, err := h.service.GetProfile(ctx, userID)
	if err != nil {
		writeError(w, "get profile", err)
		return
	}
	pkg.WriteJSON(w, profile, http.StatusOK)
}

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.challenge.sessions.list")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	sessions, err := h.service.ListSessions(ctx, userID)
	if err != nil {
		writeError(w, "list sessions", err)
		return
	}
	pkg.WriteJSON(w, sessions, http.StatusOK)
}

func (h *Handler) HandleChangeRoutine(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.challenge.routine.change")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req ChangeRoutineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("change routine, unmarshal json params: %s", err)
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	routine, err := ParseRoutine(req.Routine)
	if err != nil {
		writeError(w, "change routine", err)
		return
	}

	profile, err := h.service.ChangeRoutine(ctx, userID, routine, req.CustomSheetURL)
	if err != nil {
		writeError(w, "change routine", err)
		return
	}
	pkg.WriteJSON(w, profile, http.StatusOK)
}

func (h *Handler) HandleCurrentWindow(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.challenge.window.current")
	defer span.End()

	current, err := h.service.ResolveCurrentWindow()
	if err != nil {
		writeError(w, "current window", err)
		return
	}
	pkg.WriteJSON(w, WindowResponse{
		DateLabel: current.DateLabel,
		Start:     current.Start.Format(time.RFC3339),
		End:       current.End.Format(time.RFC3339),
	}, http.StatusOK)
}

func (h *Handler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.challenge.eligibility")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	canComplete, current, err := h.service.Eligibility(ctx, userID)
	if err != nil {
		writeError(w, "eligibility", err)
		return
	}
	pkg.WriteJSON(w, EligibilityResponse{
		CanComplete: canComplete,
		WindowLabel: current.DateLabel,
	}, http.StatusOK)
}

func (h *Handler) HandleRecordCompletion(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.challenge.completion.record")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req RecordCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("record completion, unmarshal json params: %s", err)
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	result, err := h.service.RecordCompletion(ctx, userID, req.DayNumber)
	if err != nil {
		writeError(w, "record completion", err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	pkg.WriteJSON(w, result, status)
}

func (h *Handler) HandleSubmitReview(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.challenge.review.submit")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var review Review
	if err := json.NewDecoder(r.Body).Decode(&review); err != nil {
		log.Errorf("submit review, unmarshal json params: %s", err)
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	review.UserID = userID

	if err := h.service.SubmitReview(ctx, review); err != nil {
		writeError(w, "submit review", err)
		return
	}
	pkg.WriteResponse(w, pkg.ContentType.Text, "review submitted", http.StatusCreated)
}

func (h *Handler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.challenge.sweep")
	defer span.End()

	result, err := h.service.SweepInactiveStreaks(ctx)
	if err != nil {
		writeError(w, "sweep", err)
		return
	}
	pkg.WriteJSON(w, result, http.StatusOK)
}

// writeError maps engine errors to HTTP statuses. Rejections carry a message the UI can show.
func writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	resp := pkg.ErrorResponse{Error: "internal error"}

	switch {
	case errors.Is(err, ErrAlreadyCompleted):
		status = http.StatusConflict
		resp.Error = "workout already completed today"
	case errors.Is(err, ErrStaleDay):
		status = http.StatusConflict
		resp.Error = "day is out of date, please refresh"
	case errors.Is(err, ErrConcurrentUpdate):
		status = http.StatusServiceUnavailable
		resp.Error = "busy, please retry"
		resp.Retryable = true
	case errors.Is(err, ErrWindowResolutionFailed):
		status = http.StatusServiceUnavailable
		resp.Error = "workout window unavailable, please retry"
		resp.Retryable = true
	case errors.Is(err, ErrProfileNotFound):
		status = http.StatusNotFound
		resp.Error = "profile not found"
	case errors.Is(err, ErrProfileExists):
		status = http.StatusConflict
		resp.Error = "profile already exists"
	case errors.Is(err, ErrReviewAlreadyExists):
		status = http.StatusConflict
		resp.Error = "review already submitted"
	case errors.Is(err, ErrChallengeNotDone):
		status = http.StatusForbidden
		resp.Error = "challenge not completed yet"
	case errors.Is(err, ErrInvalidRoutine), errors.Is(err, ErrInvalidInput):
		status = http.StatusBadRequest
		resp.Error = err.Error()
	}

	if status >= http.StatusInternalServerError {
		log.Errorf("%s: %s", op, err)
	} else {
		log.Debugf("%s: %s", op, err)
	}
	pkg.WriteJSON(w, resp, status)
}
