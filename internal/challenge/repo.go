package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fit45/internal/challenge/window"
	"github.com/2beens/fit45/internal/telemetry/tracing"
	"github.com/2beens/fit45/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// topics routes outbox events to Kafka topics.
var topics = map[EventType]string{
	EventCompletionRecorded: "challenge_completions",
	EventStreakReset:        "challenge_streak_resets",
	EventRoutineChanged:     "challenge_routine_changes",
	EventChallengeCompleted: "challenge_certificates",
}

const profileColumns = `
	user_id, name, age, gender, weight_kg, weight_updated_at, routine, custom_sheet_url,
	current_day, streak,
	to_char(last_workout_date, 'YYYY-MM-DD'), to_char(last_activity_date, 'YYYY-MM-DD'),
	tutorial_seen, challenge_completed, challenge_completed_at, review_submitted,
	created_at, updated_at`

const sessionColumns = `id, user_id, routine, start_date, end_date, days_completed, streak_achieved`

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) GetProfile(ctx context.Context, userID string) (_ *Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.challenge.profile.get")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	return scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
}

func (r *Repo) ListSessions(ctx context.Context, userID string) (_ []Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.challenge.sessions.list")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	rows, err := r.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM workout_sessions
		WHERE user_id = $1
		ORDER BY start_date DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Routine, &s.StartDate, &s.EndDate, &s.DaysCompleted, &s.StreakAchieved); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *Repo) HasCompletionBetween(ctx context.Context, userID string, from, to time.Time) (bool, error) {
	return hasCompletionBetween(ctx, r.db, userID, from, to)
}

// ListResetCandidates returns users with a live streak whose last activity is
// older than cutoffLabel. The result is only a hint, callers must re-check under lock.
func (r *Repo) ListResetCandidates(ctx context.Context, cutoffLabel string) (_ []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.challenge.sweep.candidates")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("cutoff", cutoffLabel))

	rows, err := r.db.Query(ctx, `
		SELECT user_id
		FROM profiles
		WHERE streak > 0
		  AND (last_activity_date IS NULL OR last_activity_date < $1::text::date)
		ORDER BY user_id
	`, cutoffLabel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	userIDs := make([]string, 0)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return userIDs, nil
}

func (r *Repo) SaveWindow(ctx context.Context, w window.Window) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO daily_workout_windows (date_label, window_start, window_end)
		VALUES ($1::text::date, $2, $3)
		ON CONFLICT (date_label) DO NOTHING
	`, w.DateLabel, w.Start, w.End)
	return err
}

// InTx runs fn inside a single read committed transaction. Row locks taken by
// the tx methods serialize writers on the same user.
func (r *Repo) InTx(ctx context.Context, fn func(tx repoTx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	return fn(&txRepo{tx: tx})
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) InsertProfile(ctx context.Context, p *Profile) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO profiles (
			user_id, name, age, gender, weight_kg, weight_updated_at, routine, custom_sheet_url,
			current_day, streak, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		p.UserID, p.Name, p.Age, p.Gender, p.WeightKg, p.WeightUpdatedAt, p.Routine, p.CustomSheetURL,
		p.CurrentDay, p.Streak, p.CreatedAt, p.UpdatedAt,
	)
	if pkg.IsUniqueViolationError(err) {
		return fmt.Errorf("%w: %s", ErrProfileExists, p.UserID)
	}
	return err
}

func (t *txRepo) LockProfile(ctx context.Context, userID string) (*Profile, error) {
	return scanProfile(t.tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1 FOR UPDATE`, userID))
}

func (t *txRepo) SaveProfile(ctx context.Context, p *Profile) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE profiles
		SET routine = $2,
			custom_sheet_url = $3,
			current_day = $4,
			streak = $5,
			last_workout_date = $6::text::date,
			last_activity_date = $7::text::date,
			challenge_completed = $8,
			challenge_completed_at = $9,
			updated_at = $10
		WHERE user_id = $1
	`,
		p.UserID, p.Routine, p.CustomSheetURL, p.CurrentDay, p.Streak,
		p.LastWorkoutDate, p.LastActivityDate,
		p.ChallengeCompleted, p.ChallengeCompletedAt, p.UpdatedAt,
	)
	return err
}

func (t *txRepo) GetOpenSession(ctx context.Context, userID string) (*Session, error) {
	s := &Session{}
	err := t.tx.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM workout_sessions
		WHERE user_id = $1 AND end_date IS NULL
		FOR UPDATE
	`, userID).Scan(&s.ID, &s.UserID, &s.Routine, &s.StartDate, &s.EndDate, &s.DaysCompleted, &s.StreakAchieved)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoOpenSession, userID)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (t *txRepo) OpenSession(ctx context.Context, s *Session) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO workout_sessions (user_id, routine, start_date, days_completed, streak_achieved)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, s.UserID, s.Routine, s.StartDate, s.DaysCompleted, s.StreakAchieved).Scan(&s.ID)
}

func (t *txRepo) UpdateSession(ctx context.Context, s *Session) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE workout_sessions
		SET end_date = $2, days_completed = $3, streak_achieved = $4
		WHERE id = $1
	`, s.ID, s.EndDate, s.DaysCompleted, s.StreakAchieved)
	return err
}

func (t *txRepo) GetCompletionForDay(ctx context.Context, userID string, sessionID int64, day int) (*Completion, error) {
	c := &Completion{}
	err := t.tx.QueryRow(ctx, `
		SELECT id, user_id, session_id, day_number, to_char(window_label, 'YYYY-MM-DD'), completed_at
		FROM daily_completions
		WHERE user_id = $1 AND session_id = $2 AND day_number = $3
	`, userID, sessionID, day).Scan(&c.ID, &c.UserID, &c.SessionID, &c.DayNumber, &c.WindowLabel, &c.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (t *txRepo) HasCompletionBetween(ctx context.Context, userID string, from, to time.Time) (bool, error) {
	return hasCompletionBetween(ctx, t.tx, userID, from, to)
}

// InsertCompletion returns false when the (user, session, day) row already existed.
func (t *txRepo) InsertCompletion(ctx context.Context, c *Completion) (bool, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO daily_completions (user_id, session_id, day_number, window_label, completed_at)
		VALUES ($1, $2, $3, $4::text::date, $5)
		ON CONFLICT (user_id, session_id, day_number) DO NOTHING
		RETURNING id
	`, c.UserID, c.SessionID, c.DayNumber, c.WindowLabel, c.CompletedAt).Scan(&c.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *txRepo) MarkReminderCompleted(ctx context.Context, userID, windowLabel string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE workout_reminders
		SET workout_completed = TRUE
		WHERE user_id = $1 AND reminder_date = $2::text::date
	`, userID, windowLabel)
	return err
}

func (t *txRepo) InsertReview(ctx context.Context, review Review) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_reviews (user_id, rating, text, created_at)
		VALUES ($1, $2, $3, $4)
	`, review.UserID, review.Rating, review.Text, review.CreatedAt)
	if pkg.IsUniqueViolationError(err) {
		return ErrReviewAlreadyExists
	}
	if pkg.IsForeignKeyViolationError(err) {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, review.UserID)
	}
	if err != nil {
		return err
	}

	_, err = t.tx.Exec(ctx, `UPDATE profiles SET review_submitted = TRUE, updated_at = $2 WHERE user_id = $1`, review.UserID, review.CreatedAt)
	return err
}

func (t *txRepo) AddEvent(ctx context.Context, e Event) error {
	topic, ok := topics[e.Type]
	if !ok {
		return fmt.Errorf("no topic for event type %s", e.Type)
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO challenge_outbox (event_id, event_type, topic, user_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.Type.String(), topic, e.UserID, payload, e.OccurredAt)
	return err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func hasCompletionBetween(ctx context.Context, q querier, userID string, from, to time.Time) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM daily_completions
			WHERE user_id = $1 AND completed_at >= $2 AND completed_at < $3
		)
	`, userID, from, to).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func scanProfile(row pgx.Row) (*Profile, error) {
	p := &Profile{}
	err := row.Scan(
		&p.UserID, &p.Name, &p.Age, &p.Gender, &p.WeightKg, &p.WeightUpdatedAt, &p.Routine, &p.CustomSheetURL,
		&p.CurrentDay, &p.Streak,
		&p.LastWorkoutDate, &p.LastActivityDate,
		&p.TutorialSeen, &p.ChallengeCompleted, &p.ChallengeCompletedAt, &p.ReviewSubmitted,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
