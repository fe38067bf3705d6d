package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fit45/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Message is a pending row of challenge_outbox.
type Message struct {
	ID        int64
	EventID   string
	EventType string
	Topic     string
	UserID    string
	Payload   json.RawMessage
	CreatedAt time.Time
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// ProcessPending locks up to limit unpublished rows, hands them to deliver and
// marks them published if deliver succeeds. Rows stay locked while deliver runs,
// so parallel dispatchers skip them instead of publishing twice.
func (r *Repo) ProcessPending(ctx context.Context, limit int, deliver func(ctx context.Context, msgs []Message) error) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.outbox.process")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
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

	rows, err := tx.Query(ctx, `
		SELECT id, event_id::text, event_type, topic, user_id, payload, created_at
		FROM challenge_outbox
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, err
	}

	messages := make([]Message, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.EventID, &msg.EventType, &msg.Topic, &msg.UserID, &msg.Payload, &msg.CreatedAt); err != nil {
			rows.Close()
			return 0, err
		}
		messages = append(messages, msg)
		ids = append(ids, msg.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}

	if err := deliver(ctx, messages); err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, `UPDATE challenge_outbox SET published_at = now() WHERE id = ANY($1)`, ids); err != nil {
		return 0, err
	}
	return len(messages), nil
}
