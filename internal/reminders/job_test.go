package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/2beens/fit45/internal/challenge/window"
	"github.com/2beens/fit45/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStore struct {
	mu         sync.Mutex
	recipients []Recipient
	claimed    map[string]bool
	listErr    error
}

func newFakeStore(recipients ...Recipient) *fakeStore {
	return &fakeStore{
		recipients: recipients,
		claimed:    map[string]bool{},
	}
}

func (s *fakeStore) ListPending(_ context.Context, w window.Window) ([]Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var pending []Recipient
	for _, r := range s.recipients {
		if !s.claimed[r.UserID+"|"+w.DateLabel] {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

func (s *fakeStore) Claim(ctx context.Context, userID, windowLabel string, send func(ctx context.Context) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "|" + windowLabel
	if s.claimed[key] {
		return false, nil
	}
	if err := send(ctx); err != nil {
		return false, err
	}
	s.claimed[key] = true
	return true, nil
}

type fakeWriter struct {
	messages []kafka.Message
	failFor  map[string]bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	if topic != Topic {
		return errors.New("unexpected topic " + topic)
	}
	for _, msg := range msgs {
		if w.failFor[string(msg.Key)] {
			return errors.New("broker unavailable")
		}
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func newTestJob(t *testing.T, store *fakeStore, writer *fakeWriter) (*Job, *metrics.Manager) {
	t.Helper()
	metricsManager := metrics.NewTestManager()
	job := NewJob(store, writer, window.NewDefaultResolver(), metricsManager)
	job.Now = func() time.Time {
		// 2026-03-10 19:30 IST
		return time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	}
	return job, metricsManager
}

func TestJob_Run(t *testing.T) {
	store := newFakeStore(
		Recipient{UserID: "user-1", Name: "Ana", CurrentDay: 4, Streak: 3},
		Recipient{UserID: "user-2", Name: "Raj", CurrentDay: 1},
	)
	writer := &fakeWriter{}
	job, metricsManager := newTestJob(t, store, writer)

	result, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Result{WindowLabel: "2026-03-10", Candidates: 2, Sent: 2}, result)
	assert.Equal(t, float64(2), testutil.ToFloat64(metricsManager.CounterReminders))

	require.Len(t, writer.messages, 2)
	assert.Equal(t, []byte("user-1"), writer.messages[0].Key)
	var req Request
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &req))
	assert.Equal(t, "Ana", req.Name)
	assert.Equal(t, "2026-03-10", req.WindowLabel)
	assert.Equal(t, 4, req.CurrentDay)
	assert.Equal(t, 3, req.Streak)
	assert.Equal(t, time.Date(2026, 3, 10, 21, 30, 0, 0, time.UTC), req.WindowEnd)

	// second run in the same window sends nothing
	result, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Candidates)
	assert.Equal(t, 0, result.Sent)
	assert.Len(t, writer.messages, 2)
}

func TestJob_Run_SendFailureIsRetried(t *testing.T) {
	store := newFakeStore(
		Recipient{UserID: "user-1", Name: "Ana"},
		Recipient{UserID: "user-2", Name: "Raj"},
	)
	writer := &fakeWriter{failFor: map[string]bool{"user-2": true}}
	job, _ := newTestJob(t, store, writer)

	result, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Failed)

	writer.failFor = nil
	result, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 1, result.Sent)
}

func TestJob_Run_Errors(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("connection refused")
	job, _ := newTestJob(t, store, &fakeWriter{})

	_, err := job.Run(context.Background())
	require.Error(t, err)

	job.Now = func() time.Time { return time.Time{} }
	_, err = job.Run(context.Background())
	require.ErrorIs(t, err, window.ErrResolutionFailed)
}

func TestHandler_HandleDispatch(t *testing.T) {
	store := newFakeStore(Recipient{UserID: "user-1", Name: "Ana"})
	job, _ := newTestJob(t, store, &fakeWriter{})
	handler := NewHandler(job)

	req := httptest.NewRequest(http.MethodPost, "/internal/reminders", nil)
	rr := httptest.NewRecorder()
	handler.HandleDispatch(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"windowLabel":"2026-03-10","candidates":1,"sent":1,"failed":0}`, rr.Body.String())

	store.listErr = errors.New("connection refused")
	rr = httptest.NewRecorder()
	handler.HandleDispatch(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
