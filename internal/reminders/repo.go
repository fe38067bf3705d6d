package reminders

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/fit45/internal/challenge/window"
	"github.com/2beens/fit45/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// ListPending returns users without a completion inside w and without a reminder for its label.
func (r *Repo) ListPending(ctx context.Context, w window.Window) (_ []Recipient, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.reminders.pending")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `
		SELECT p.user_id, p.name, p.current_day, p.streak
		FROM profiles p
		WHERE p.challenge_completed = FALSE
		AND NOT EXISTS (
			SELECT 1 FROM daily_completions c
			WHERE c.user_id = p.user_id AND c.completed_at >= $1 AND c.completed_at < $2
		)
		AND NOT EXISTS (
			SELECT 1 FROM workout_reminders wr
			WHERE wr.user_id = p.user_id AND wr.reminder_date = $3::text::date
		)
		ORDER BY p.user_id
	`, w.Start, w.End, w.DateLabel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []Recipient
	for rows.Next() {
		var recipient Recipient
		if err := rows.Scan(&recipient.UserID, &recipient.Name, &recipient.CurrentDay, &recipient.Streak); err != nil {
			return nil, err
		}
		recipients = append(recipients, recipient)
	}
	return recipients, rows.Err()
}

func (r *Repo) Claim(ctx context.Context, userID, windowLabel string, send func(ctx context.Context) error) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.reminders.claim")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		}
	}()

	tag, err := tx.Exec(ctx, `
		INSERT INTO workout_reminders (user_id, reminder_date)
		VALUES ($1, $2::text::date)
		ON CONFLICT (user_id, reminder_date) DO NOTHING
	`, userID, windowLabel)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Rollback(ctx)
	}

	if err := send(ctx); err != nil {
		return false, fmt.Errorf("send reminder: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
