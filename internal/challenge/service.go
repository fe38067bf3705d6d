package challenge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/fit45/internal/challenge/window"
	"github.com/2beens/fit45/internal/telemetry/metrics"
	"github.com/2beens/fit45/internal/telemetry/tracing"
	"github.com/2beens/fit45/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultTxAttempts = 3

type repo interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	ListSessions(ctx context.Context, userID string) ([]Session, error)
	HasCompletionBetween(ctx context.Context, userID string, from, to time.Time) (bool, error)
	ListResetCandidates(ctx context.Context, cutoffLabel string) ([]string, error)
	SaveWindow(ctx context.Context, w window.Window) error
	InTx(ctx context.Context, fn func(tx repoTx) error) error
}

// repoTx is the write side; every method runs inside the transaction opened by repo.InTx.
type repoTx interface {
	InsertProfile(ctx context.Context, p *Profile) error
	LockProfile(ctx context.Context, userID string) (*Profile, error)
	SaveProfile(ctx context.Context, p *Profile) error
	GetOpenSession(ctx context.Context, userID string) (*Session, error)
	OpenSession(ctx context.Context, s *Session) error
	UpdateSession(ctx context.Context, s *Session) error
	GetCompletionForDay(ctx context.Context, userID string, sessionID int64, day int) (*Completion, error)
	HasCompletionBetween(ctx context.Context, userID string, from, to time.Time) (bool, error)
	InsertCompletion(ctx context.Context, c *Completion) (bool, error)
	MarkReminderCompleted(ctx context.Context, userID, windowLabel string) error
	InsertReview(ctx context.Context, r Review) error
	AddEvent(ctx context.Context, e Event) error
}

// Service owns every write to profile, session and completion state.
type Service struct {
	repo          repo
	resolver      *window.Resolver
	metrics       *metrics.Manager
	maxTxAttempts int

	// hosts a Custom routine's sheet url may point at
	SheetHosts SheetHosts
	// ability to inject the clock (for unit and dev testing)
	Now func() time.Time
}

func NewService(repo repo, resolver *window.Resolver, metricsManager *metrics.Manager) *Service {
	return &Service{
		repo:          repo,
		resolver:      resolver,
		metrics:       metricsManager,
		maxTxAttempts: defaultTxAttempts,
		SheetHosts:    NewSheetHosts(nil),
		Now:           time.Now,
	}
}

func (s *Service) ResolveCurrentWindow() (window.Window, error) {
	return s.resolver.Resolve(s.Now())
}

func (s *Service) SignUp(ctx context.Context, params NewProfileParams) (_ *ProfileView, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.challenge.signup")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := validateRoutine(params.Routine, params.CustomSheetURL, s.SheetHosts); err != nil {
		return nil, err
	}
	customSheetURL := params.CustomSheetURL
	if params.Routine != RoutineCustom {
		customSheetURL = nil
	}

	now := s.Now()
	profile := &Profile{
		UserID:         params.UserID,
		Name:           strings.TrimSpace(params.Name),
		Age:            params.Age,
		Gender:         params.Gender,
		WeightKg:       params.WeightKg,
		Routine:        params.Routine,
		CustomSheetURL: customSheetURL,
		CurrentDay:     1,
		Streak:         0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if params.WeightKg > 0 {
		profile.WeightUpdatedAt = &now
	}

	err = s.inTx(ctx, "signup", func(tx repoTx) error {
		if err := tx.InsertProfile(ctx, profile); err != nil {
			return err
		}
		return tx.OpenSession(ctx, &Session{
			UserID:    profile.UserID,
			Routine:   profile.Routine,
			StartDate: now,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("challenge: new profile [%s] on routine [%s]", profile.UserID, profile.Routine)
	return NewProfileView(profile), nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (_ *ProfileView, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.challenge.profile.get")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, persistenceErr("get profile", err)
	}
	return NewProfileView(p), nil
}

func (s *Service) ListSessions(ctx context.Context, userID string) ([]SessionView, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.challenge.sessions.list")
	defer span.End()

	sessions, err := s.repo.ListSessions(ctx, userID)
	if err != nil {
		return nil, persistenceErr("list sessions", err)
	}
	views := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, NewSessionView(sess))
	}
	return views, nil
}

// CanCompleteToday is time-window based: a user is eligible iff no completion
// was recorded inside the current [start, end) window. Fails closed.
func (s *Service) CanCompleteToday(ctx context.Context, userID string) (bool, error) {
	canComplete, _, err := s.Eligibility(ctx, userID)
	return canComplete, err
}

// Eligibility is CanCompleteToday together with the window the answer holds for.
func (s *Service) Eligibility(ctx context.Context, userID string) (_ bool, _ window.Window, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.challenge.eligibility")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	w, err := s.resolver.Resolve(s.Now())
	if err != nil {
		return false, window.Window{}, fmt.Errorf("eligibility: %w", err)
	}
	span.SetAttributes(attribute.String("window", w.DateLabel))

	done, err := s.repo.HasCompletionBetween(ctx, userID, w.Start, w.End)
	if err != nil {
		return false, window.Window{}, persistenceErr("eligibility", err)
	}
	return !done, w, nil
}

// RecordCompletion persists the completion for the active window and advances
// the streak in one transaction. dayNumber is only an optimistic concurrency token:
// the server's current_day is authoritative.
func (s *Service) RecordCompletion(ctx context.Context, userID string, dayNumber int) (_ *CompletionResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.challenge.completion.record")
	defer func() {
		if err != nil && !IsUserRejection(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.Int("day", dayNumber))

	if dayNumber < 1 {
		return nil, fmt.Errorf("%w: day number %d", ErrInvalidInput, dayNumber)
	}

	now := s.Now()
	w, err := s.resolver.Resolve(now)
	if err != nil {
		s.metrics.CounterCompletions.WithLabelValues("window_failed").Inc()
		return nil, fmt.Errorf("record completion: %w", err)
	}

	var result *CompletionResult
	err = s.inTx(ctx, "record completion", func(tx repoTx) error {
		result = nil

		p, err := tx.LockProfile(ctx, userID)
		if err != nil {
			return err
		}
		open, err := tx.GetOpenSession(ctx, userID)
		if err != nil {
			return err
		}

		existing, err := tx.GetCompletionForDay(ctx, userID, open.ID, dayNumber)
		if err != nil {
			return err
		}
		if existing != nil {
			// retried request for a day that is already recorded
			result = &CompletionResult{
				Duplicate:          true,
				ChallengeCompleted: p.ChallengeCompleted,
				WindowLabel:        existing.WindowLabel,
				Profile:            NewProfileView(p),
			}
			return nil
		}

		if dayNumber != p.CurrentDay {
			return fmt.Errorf("%w: got day %d, current day is %d", ErrStaleDay, dayNumber, p.CurrentDay)
		}

		done, err := tx.HasCompletionBetween(ctx, userID, w.Start, w.End)
		if err != nil {
			return err
		}
		if done {
			return fmt.Errorf("%w: window %s", ErrAlreadyCompleted, w.DateLabel)
		}

		completion := &Completion{
			UserID:      userID,
			SessionID:   open.ID,
			DayNumber:   dayNumber,
			WindowLabel: w.DateLabel,
			CompletedAt: now,
		}
		inserted, err := tx.InsertCompletion(ctx, completion)
		if err != nil {
			return err
		}
		if !inserted {
			result = &CompletionResult{
				Duplicate:          true,
				ChallengeCompleted: p.ChallengeCompleted,
				WindowLabel:        w.DateLabel,
				Profile:            NewProfileView(p),
			}
			return nil
		}

		justFinished := applyCompletion(p, open, w.DateLabel, now)
		if err := tx.SaveProfile(ctx, p); err != nil {
			return err
		}
		if err := tx.UpdateSession(ctx, open); err != nil {
			return err
		}
		if err := tx.MarkReminderCompleted(ctx, userID, w.DateLabel); err != nil {
			return err
		}

		if err := tx.AddEvent(ctx, newEvent(EventCompletionRecorded, userID, now, CompletionRecorded{
			UserID:      userID,
			SessionID:   open.ID,
			DayNumber:   dayNumber,
			Streak:      p.Streak,
			WindowLabel: w.DateLabel,
			CompletedAt: now,
		})); err != nil {
			return err
		}
		if justFinished {
			if err := tx.AddEvent(ctx, newEvent(EventChallengeCompleted, userID, now, ChallengeCompleted{
				UserID:      userID,
				Name:        p.Name,
				Routine:     p.Routine,
				CompletedAt: now,
			})); err != nil {
				return err
			}
		}

		result = &CompletionResult{
			Recorded:           true,
			ChallengeCompleted: p.ChallengeCompleted,
			WindowLabel:        w.DateLabel,
			Profile:            NewProfileView(p),
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyCompleted):
			s.metrics.CounterCompletions.WithLabelValues("already_completed").Inc()
		case errors.Is(err, ErrStaleDay):
			s.metrics.CounterCompletions.WithLabelValues("stale_day").Inc()
		default:
			s.metrics.CounterCompletions.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	if result.Duplicate {
		s.metrics.CounterCompletions.WithLabelValues("duplicate").Inc()
	} else {
		s.metrics.CounterCompletions.WithLabelValues("recorded").Inc()
		log.Debugf("challenge: user [%s] completed day %d in window %s", userID, dayNumber, result.WindowLabel)
	}
	return result, nil
}

// ChangeRoutine always restarts the challenge: the open session is closed with its
// final counts and a new one is opened at day one, even if today's window was completed.
func (s *Service) ChangeRoutine(ctx context.Context, userID string, routine Routine, customSheetURL *string) (_ *ProfileView, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.challenge.routine.change")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := validateRoutine(routine, customSheetURL, s.SheetHosts); err != nil {
		return nil, err
	}
	if routine != RoutineCustom {
		customSheetURL = nil
	}

	now := s.Now()
	var view *ProfileView
	var changed bool
	err = s.inTx(ctx, "change routine", func(tx repoTx) error {
		changed = false
		p, err := tx.LockProfile(ctx, userID)
		if err != nil {
			return err
		}
		if sameRoutine(p, routine, customSheetURL) {
			view = NewProfileView(p)
			return nil
		}

		fromRoutine := p.Routine
		previousStreak := p.Streak
		closedID, newID, err := s.restartTx(ctx, tx, p, routine, customSheetURL, now)
		if err != nil {
			return err
		}

		if err := tx.AddEvent(ctx, newEvent(EventRoutineChanged, userID, now, RoutineChanged{
			UserID:      userID,
			FromRoutine: fromRoutine,
			ToRoutine:   routine,
			ChangedAt:   now,
		})); err != nil {
			return err
		}
		if err := tx.AddEvent(ctx, newEvent(EventStreakReset, userID, now, StreakReset{
			UserID:          userID,
			Reason:          ResetReasonRoutineChange,
			PreviousStreak:  previousStreak,
			ClosedSessionID: closedID,
			NewSessionID:    newID,
			Routine:         routine,
			ResetAt:         now,
		})); err != nil {
			return err
		}

		changed = true
		view = NewProfileView(p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.CounterStreakResets.WithLabelValues(string(ResetReasonRoutineChange)).Inc()
		log.Infof("challenge: user [%s] switched routine to [%s], restarted at day 1", userID, routine)
	}
	return view, nil
}

// restartTx closes the open session (if any) and opens a new one at day one.
// Returns the closed and the new session ids.
func (s *Service) restartTx(ctx context.Context, tx repoTx, p *Profile, routine Routine, customSheetURL *string, now time.Time) (int64, int64, error) {
	var closedID int64
	open, err := tx.GetOpenSession(ctx, p.UserID)
	switch {
	case errors.Is(err, ErrNoOpenSession):
		log.Warnf("challenge: user [%s] had no open session, opening a new one", p.UserID)
	case err != nil:
		return 0, 0, err
	default:
		closeSession(p, open, now)
		if err := tx.UpdateSession(ctx, open); err != nil {
			return 0, 0, err
		}
		closedID = open.ID
	}

	next := restart(p, routine, customSheetURL, now)
	if err := tx.SaveProfile(ctx, p); err != nil {
		return 0, 0, err
	}
	if err := tx.OpenSession(ctx, next); err != nil {
		return 0, 0, err
	}
	return closedID, next.ID, nil
}

func (s *Service) SubmitReview(ctx context.Context, review Review) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.challenge.review.submit")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if review.Rating < 1 || review.Rating > 5 {
		return fmt.Errorf("%w: rating %d", ErrInvalidInput, review.Rating)
	}
	review.Text = strings.TrimSpace(review.Text)
	review.CreatedAt = s.Now()

	return s.inTx(ctx, "submit review", func(tx repoTx) error {
		p, err := tx.LockProfile(ctx, review.UserID)
		if err != nil {
			return err
		}
		if !p.ChallengeCompleted {
			return ErrChallengeNotDone
		}
		if p.ReviewSubmitted {
			return ErrReviewAlreadyExists
		}
		return tx.InsertReview(ctx, review)
	})
}

// inTx runs fn in a transaction, retrying serialization failures and deadlocks.
// Domain errors pass through untouched; storage errors are wrapped in ErrPersistence.
func (s *Service) inTx(ctx context.Context, op string, fn func(tx repoTx) error) error {
	attempts := s.maxTxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = s.repo.InTx(ctx, fn)
		if err == nil || !pkg.IsSerializationFailure(err) {
			break
		}
		s.metrics.CounterTxRetries.Inc()
		log.Warnf("challenge: %s, attempt %d/%d hit a concurrent writer: %s", op, attempt, attempts, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return persistenceErr(op, ctxErr)
		}
	}
	if err == nil {
		return nil
	}
	if pkg.IsSerializationFailure(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrConcurrentUpdate, err)
	}
	return persistenceErr(op, err)
}

func persistenceErr(op string, err error) error {
	if isDomainErr(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

func isDomainErr(err error) bool {
	for _, target := range []error{
		ErrAlreadyCompleted,
		ErrStaleDay,
		ErrWindowResolutionFailed,
		ErrConcurrentUpdate,
		ErrPersistence,
		ErrProfileNotFound,
		ErrProfileExists,
		ErrNoOpenSession,
		ErrInvalidRoutine,
		ErrInvalidInput,
		ErrChallengeNotDone,
		ErrReviewAlreadyExists,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
