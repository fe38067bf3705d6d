package challenge

import (
	"time"

	"github.com/google/uuid"
)

// EventType can be one of:
//   - completion.recorded
//   - streak.reset
//   - routine.changed
//   - challenge.completed
type EventType string

const (
	EventCompletionRecorded EventType = "completion.recorded"
	EventStreakReset        EventType = "streak.reset"
	EventRoutineChanged     EventType = "routine.changed"
	EventChallengeCompleted EventType = "challenge.completed"
)

func (et EventType) String() string {
	return string(et)
}

// Event is written to the outbox in the same transaction as the state change.
type Event struct {
	ID         string
	Type       EventType
	UserID     string
	OccurredAt time.Time
	Payload    any
}

func newEvent(eventType EventType, userID string, now time.Time, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: now.UTC(),
		Payload:    payload,
	}
}

type CompletionRecorded struct {
	UserID      string    `json:"userId"`
	SessionID   int64     `json:"sessionId"`
	DayNumber   int       `json:"dayNumber"`
	Streak      int       `json:"streak"`
	WindowLabel string    `json:"windowLabel"`
	CompletedAt time.Time `json:"completedAt"`
}

type ResetReason string

const (
	ResetReasonMissedWindow  ResetReason = "missed_window"
	ResetReasonRoutineChange ResetReason = "routine_change"
)

type StreakReset struct {
	UserID          string      `json:"userId"`
	Reason          ResetReason `json:"reason"`
	PreviousStreak  int         `json:"previousStreak"`
	ClosedSessionID int64       `json:"closedSessionId"`
	NewSessionID    int64       `json:"newSessionId"`
	Routine         Routine     `json:"routine"`
	ResetAt         time.Time   `json:"resetAt"`
}

type RoutineChanged struct {
	UserID      string    `json:"userId"`
	FromRoutine Routine   `json:"fromRoutine"`
	ToRoutine   Routine   `json:"toRoutine"`
	ChangedAt   time.Time `json:"changedAt"`
}

// ChallengeCompleted unlocks the certificate in the external renderer.
type ChallengeCompleted struct {
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Routine     Routine   `json:"routine"`
	CompletedAt time.Time `json:"completedAt"`
}
