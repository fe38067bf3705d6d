// Package reminders asks the external mailer to nudge users who have not trained in the current window.
package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/2beens/fit45/internal/challenge/window"
	"github.com/2beens/fit45/internal/telemetry/metrics"
	"github.com/2beens/fit45/internal/telemetry/tracing"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

const Topic = "workout_reminders"

type Recipient struct {
	UserID     string
	Name       string
	CurrentDay int
	Streak     int
}

// Request is the message the mailer consumes.
type Request struct {
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	WindowLabel string    `json:"windowLabel"`
	WindowEnd   time.Time `json:"windowEnd"`
	CurrentDay  int       `json:"currentDay"`
	Streak      int       `json:"streak"`
}

type Result struct {
	WindowLabel string `json:"windowLabel"`
	Candidates  int    `json:"candidates"`
	Sent        int    `json:"sent"`
	Failed      int    `json:"failed"`
}

type store interface {
	ListPending(ctx context.Context, w window.Window) ([]Recipient, error)
	// Claim inserts the reminder row and runs send in the same transaction.
	// It returns false when the row already exists.
	Claim(ctx context.Context, userID, windowLabel string, send func(ctx context.Context) error) (bool, error)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
}

type Job struct {
	store    store
	writer   messageWriter
	resolver *window.Resolver
	metrics  *metrics.Manager
	Now      func() time.Time
}

func NewJob(store store, writer messageWriter, resolver *window.Resolver, metricsManager *metrics.Manager) *Job {
	return &Job{
		store:    store,
		writer:   writer,
		resolver: resolver,
		metrics:  metricsManager,
		Now:      time.Now,
	}
}

// Run sends at most one reminder per user and window label.
// A failed send leaves no reminder row, so the next run retries that user.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "reminders.run")
	defer span.End()

	current, err := j.resolver.Resolve(j.Now())
	if err != nil {
		return nil, fmt.Errorf("resolve window: %w", err)
	}

	recipients, err := j.store.ListPending(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("list pending reminders: %w", err)
	}

	result := &Result{
		WindowLabel: current.DateLabel,
		Candidates:  len(recipients),
	}
	for _, recipient := range recipients {
		if ctx.Err() != nil {
			break
		}

		sent, err := j.store.Claim(ctx, recipient.UserID, current.DateLabel, func(ctx context.Context) error {
			return j.send(ctx, recipient, current)
		})
		if err != nil {
			result.Failed++
			log.Errorf("reminders: user %s: %s", recipient.UserID, err)
			continue
		}
		if sent {
			result.Sent++
		}
	}

	j.metrics.CounterReminders.Add(float64(result.Sent))
	log.Infof("reminders [%s]: candidates %d, sent %d, failed %d",
		result.WindowLabel, result.Candidates, result.Sent, result.Failed)
	return result, nil
}

func (j *Job) send(ctx context.Context, recipient Recipient, current window.Window) error {
	value, err := json.Marshal(Request{
		UserID:      recipient.UserID,
		Name:        recipient.Name,
		WindowLabel: current.DateLabel,
		WindowEnd:   current.End.UTC(),
		CurrentDay:  recipient.CurrentDay,
		Streak:      recipient.Streak,
	})
	if err != nil {
		return fmt.Errorf("marshal reminder: %w", err)
	}
	return j.writer.WriteMessages(ctx, Topic, kafka.Message{
		Key:   []byte(recipient.UserID),
		Value: value,
		Time:  j.Now().UTC(),
	})
}
