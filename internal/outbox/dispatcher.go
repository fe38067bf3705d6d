// Package outbox delivers challenge events written to challenge_outbox to Kafka.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fit45/internal/telemetry/metrics"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
}

type eventStore interface {
	ProcessPending(ctx context.Context, limit int, deliver func(ctx context.Context, msgs []Message) error) (int, error)
}

// Dispatcher polls the outbox and publishes pending events.
type Dispatcher struct {
	store            eventStore
	producer         messageWriter
	metrics          *metrics.Manager
	pollInterval     time.Duration
	batchSize        int
	shutdownComplete chan struct{}
}

func NewDispatcher(
	store eventStore,
	producer messageWriter,
	metricsManager *metrics.Manager,
	pollInterval time.Duration,
	batchSize int,
) *Dispatcher {
	return &Dispatcher{
		store:            store,
		producer:         producer,
		metrics:          metricsManager,
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		shutdownComplete: make(chan struct{}),
	}
}

// Start runs the polling loop until ctx is done. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	log.Debugf("outbox dispatcher started, poll interval: %s, batch size: %d", d.pollInterval, d.batchSize)
	for {
		for {
			n, err := d.ProcessBatch(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Errorf("outbox dispatcher: %s", err)
				}
				break
			}
			// a full batch means more rows are probably waiting
			if n < d.batchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			log.Debugln("outbox dispatcher stopped")
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until Start returns.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

// ProcessBatch publishes one batch of pending events and returns how many were published.
// Events stay pending when delivery fails and are retried on the next poll.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (int, error) {
	var attempted int
	n, err := d.store.ProcessPending(ctx, d.batchSize, func(ctx context.Context, msgs []Message) error {
		attempted = len(msgs)
		return d.deliver(ctx, msgs)
	})
	if err != nil {
		d.metrics.CounterOutboxEvents.WithLabelValues("failed").Add(float64(attempted))
		return 0, fmt.Errorf("process outbox batch: %w", err)
	}

	if n > 0 {
		d.metrics.CounterOutboxEvents.WithLabelValues("published").Add(float64(n))
		log.Tracef("outbox: published %d events", n)
	}
	return n, nil
}

func (d *Dispatcher) deliver(ctx context.Context, msgs []Message) error {
	batches := make(map[string][]kafka.Message)
	topicsOrder := make([]string, 0)
	for _, msg := range msgs {
		if msg.Topic == "" {
			return fmt.Errorf("event %s has no topic", msg.EventID)
		}
		if _, ok := batches[msg.Topic]; !ok {
			topicsOrder = append(topicsOrder, msg.Topic)
		}
		batches[msg.Topic] = append(batches[msg.Topic], kafka.Message{
			Key:   []byte(msg.UserID),
			Value: msg.Payload,
			Time:  msg.CreatedAt.UTC(),
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(msg.EventType)},
				{Key: "event_id", Value: []byte(msg.EventID)},
			},
		})
	}

	for _, topic := range topicsOrder {
		if err := d.producer.WriteMessages(ctx, topic, batches[topic]...); err != nil {
			return fmt.Errorf("write to %s: %w", topic, err)
		}
	}
	return nil
}
