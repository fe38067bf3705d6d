package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema keeps the engine's tables. current_day/streak and session end_date are
// only written by the challenge repo transactions.
const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	user_id                TEXT PRIMARY KEY,
	name                   TEXT NOT NULL,
	age                    INT NOT NULL DEFAULT 0,
	gender                 TEXT NOT NULL DEFAULT '',
	weight_kg              NUMERIC(6,2) NOT NULL DEFAULT 0,
	weight_updated_at      TIMESTAMPTZ,
	routine                TEXT NOT NULL CHECK (routine IN ('Home', 'Gym', 'Custom')),
	custom_sheet_url       TEXT,
	current_day            INT NOT NULL DEFAULT 1 CHECK (current_day >= 1),
	streak                 INT NOT NULL DEFAULT 0 CHECK (streak >= 0),
	last_workout_date      DATE,
	last_activity_date     DATE,
	tutorial_seen          BOOLEAN NOT NULL DEFAULT FALSE,
	challenge_completed    BOOLEAN NOT NULL DEFAULT FALSE,
	challenge_completed_at TIMESTAMPTZ,
	review_submitted       BOOLEAN NOT NULL DEFAULT FALSE,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_profiles_sweep ON profiles(last_activity_date) WHERE streak > 0;

CREATE TABLE IF NOT EXISTS workout_sessions (
	id              BIGSERIAL PRIMARY KEY,
	user_id         TEXT NOT NULL REFERENCES profiles(user_id),
	routine         TEXT NOT NULL,
	start_date      TIMESTAMPTZ NOT NULL,
	end_date        TIMESTAMPTZ,
	days_completed  INT NOT NULL DEFAULT 0,
	streak_achieved INT NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_workout_sessions_open ON workout_sessions(user_id) WHERE end_date IS NULL;

CREATE TABLE IF NOT EXISTS daily_completions (
	id           BIGSERIAL PRIMARY KEY,
	user_id      TEXT NOT NULL REFERENCES profiles(user_id),
	session_id   BIGINT NOT NULL REFERENCES workout_sessions(id),
	day_number   INT NOT NULL CHECK (day_number >= 1),
	window_label DATE NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, session_id, day_number)
);

CREATE INDEX IF NOT EXISTS idx_daily_completions_user_time ON daily_completions(user_id, completed_at);

CREATE TABLE IF NOT EXISTS daily_workout_windows (
	date_label   DATE PRIMARY KEY,
	window_start TIMESTAMPTZ NOT NULL,
	window_end   TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS workout_reminders (
	user_id           TEXT NOT NULL REFERENCES profiles(user_id),
	reminder_date     DATE NOT NULL,
	sent_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	workout_completed BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (user_id, reminder_date)
);

CREATE TABLE IF NOT EXISTS user_reviews (
	user_id    TEXT PRIMARY KEY REFERENCES profiles(user_id),
	rating     INT NOT NULL CHECK (rating BETWEEN 1 AND 5),
	text       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS challenge_outbox (
	id           BIGSERIAL PRIMARY KEY,
	event_id     UUID NOT NULL UNIQUE,
	event_type   TEXT NOT NULL,
	topic        TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_challenge_outbox_pending ON challenge_outbox(id) WHERE published_at IS NULL;
`

// Migrate ensures tables exist. Call once at startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
