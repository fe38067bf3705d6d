//go:build integration_test || all_tests

package outbox

import (
	"context"
	"errors"
	"testing"

	testhelpers "github.com/2beens/fit45/pkg/testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRepoSetup(t *testing.T) *Repo {
	t.Helper()
	return NewRepo(testhelpers.GetPostgresPool(t))
}

func addEvent(t *testing.T, repo *Repo, userID string) {
	t.Helper()
	_, err := repo.db.Exec(context.Background(), `
		INSERT INTO challenge_outbox (event_id, event_type, topic, user_id, payload)
		VALUES ($1, 'completion.recorded', 'challenge_completions', $2, '{"dayNumber": 1}')
	`, uuid.NewString(), userID)
	require.NoError(t, err)
}

func pending(t *testing.T, repo *Repo) int {
	t.Helper()
	var n int
	require.NoError(t, repo.db.QueryRow(context.Background(),
		`SELECT count(*) FROM challenge_outbox WHERE published_at IS NULL`).Scan(&n))
	return n
}

func TestRepo_ProcessPending(t *testing.T) {
	ctx := context.Background()
	repo := testRepoSetup(t)
	for _, userID := range []string{"user-1", "user-2", "user-3"} {
		addEvent(t, repo, userID)
	}

	var delivered []Message
	n, err := repo.ProcessPending(ctx, 2, func(_ context.Context, msgs []Message) error {
		delivered = append(delivered, msgs...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, delivered, 2)
	assert.Equal(t, "user-1", delivered[0].UserID)
	assert.Equal(t, "challenge_completions", delivered[0].Topic)
	assert.JSONEq(t, `{"dayNumber": 1}`, string(delivered[0].Payload))
	assert.Equal(t, 1, pending(t, repo))

	// failed delivery keeps the rest pending
	_, err = repo.ProcessPending(ctx, 10, func(_ context.Context, msgs []Message) error {
		return errors.New("broker down")
	})
	require.Error(t, err)
	assert.Equal(t, 1, pending(t, repo))

	n, err = repo.ProcessPending(ctx, 10, func(_ context.Context, msgs []Message) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, pending(t, repo))
}

func TestRepo_ProcessPending_SkipsLockedRows(t *testing.T) {
	ctx := context.Background()
	repo := testRepoSetup(t)
	addEvent(t, repo, "user-1")
	addEvent(t, repo, "user-2")

	inner := 0
	_, err := repo.ProcessPending(ctx, 1, func(ctx context.Context, msgs []Message) error {
		// a second dispatcher running meanwhile must not see the locked row
		n, err := repo.ProcessPending(ctx, 10, func(_ context.Context, msgs []Message) error {
			inner = len(msgs)
			assert.Equal(t, "user-2", msgs[0].UserID)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inner)
	assert.Equal(t, 0, pending(t, repo))
}
