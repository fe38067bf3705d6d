package testing

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/2beens/fit45/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

const truncateAll = `
	TRUNCATE challenge_outbox, user_reviews, workout_reminders, daily_workout_windows,
		daily_completions, workout_sessions, profiles RESTART IDENTITY CASCADE
`

// GetPostgresPool connects to the fit45_db on POSTGRES_HOST, migrates it and
// wipes all tables. The pool is closed on test cleanup.
func GetPostgresPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	t.Logf("using postgres host: %s", host)

	dbPool, err := db.NewDBPool(timeoutCtx, db.NewDBPoolParams{
		DBHost:         host,
		DBPort:         "5432",
		DBName:         "fit45_db",
		DBPassword:     os.Getenv("POSTGRES_PASS"),
		TracingEnabled: false,
	})
	require.NoError(t, err)
	t.Cleanup(dbPool.Close)

	require.NoError(t, db.Migrate(timeoutCtx, dbPool))
	_, err = dbPool.Exec(timeoutCtx, truncateAll)
	require.NoError(t, err)

	return dbPool
}
