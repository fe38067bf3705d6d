package challenge

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/fit45/internal/challenge/window"
	"github.com/2beens/fit45/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SweepInactiveStreaks resets every user who let a whole window pass without a
// workout. Each candidate is re-checked under its own row lock, so a completion
// that lands while the sweep runs wins, and running the sweep twice is a no-op.
func (s *Service) SweepInactiveStreaks(ctx context.Context) (_ *SweepResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.challenge.sweep")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	startedAt := time.Now()
	s.metrics.CounterSweepRuns.Inc()

	now := s.Now()
	current, err := s.resolver.Resolve(now)
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	cutoff := window.Previous(current).DateLabel
	span.SetAttributes(attribute.String("window", current.DateLabel), attribute.String("cutoff", cutoff))

	if err := s.repo.SaveWindow(ctx, current); err != nil {
		// audit only, never blocks the sweep
		log.Warnf("sweep: save window %s: %s", current.DateLabel, err)
	}

	candidates, err := s.repo.ListResetCandidates(ctx, cutoff)
	if err != nil {
		return nil, persistenceErr("sweep: list candidates", err)
	}

	result := &SweepResult{
		WindowLabel: current.DateLabel,
		Candidates:  len(candidates),
	}
	for _, userID := range candidates {
		if ctx.Err() != nil {
			log.Warnf("sweep: context done, %d candidates left", len(candidates)-result.UsersReset-result.Failed)
			break
		}

		reset, err := s.resetIfInactive(ctx, userID, cutoff, now)
		if err != nil {
			result.Failed++
			log.Errorf("sweep: reset user [%s]: %s", userID, err)
			continue
		}
		if reset {
			result.UsersReset++
		}
	}

	s.metrics.GaugeLastSweepResets.Set(float64(result.UsersReset))
	s.metrics.HistSweepDuration.Observe(time.Since(startedAt).Seconds())
	s.metrics.CounterStreakResets.WithLabelValues(string(ResetReasonMissedWindow)).Add(float64(result.UsersReset))

	log.Infof(
		"sweep: window %s, cutoff %s, candidates %d, reset %d, failed %d",
		result.WindowLabel, cutoff, result.Candidates, result.UsersReset, result.Failed,
	)
	return result, nil
}

func (s *Service) resetIfInactive(ctx context.Context, userID, cutoff string, now time.Time) (bool, error) {
	var reset bool
	err := s.inTx(ctx, "sweep reset", func(tx repoTx) error {
		reset = false
		p, err := tx.LockProfile(ctx, userID)
		if err != nil {
			return err
		}
		// fresh values, the candidate may have completed since the list was read
		if !missedWindow(p, cutoff) {
			return nil
		}

		previousStreak := p.Streak
		closedID, newID, err := s.restartTx(ctx, tx, p, p.Routine, p.CustomSheetURL, now)
		if err != nil {
			return err
		}
		if err := tx.AddEvent(ctx, newEvent(EventStreakReset, userID, now, StreakReset{
			UserID:          userID,
			Reason:          ResetReasonMissedWindow,
			PreviousStreak:  previousStreak,
			ClosedSessionID: closedID,
			NewSessionID:    newID,
			Routine:         p.Routine,
			ResetAt:         now,
		})); err != nil {
			return err
		}

		reset = true
		return nil
	})
	return reset, err
}
