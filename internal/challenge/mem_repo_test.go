package challenge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/fit45/internal/challenge/window"
)

// memRepo is an in-memory repo. InTx runs fn under a single lock and rolls
// the whole state back when fn fails, like a real transaction.
type memRepo struct {
	mu sync.Mutex

	profiles    map[string]*Profile
	sessions    []*Session
	completions []*Completion
	reminders   map[string]bool
	reviews     map[string]Review
	events      []Event
	windows     []window.Window
	nextID      int64

	// returned by InTx, one per call, before fn runs
	txErrs        []error
	txCalls       int
	saveWindowErr error
	// called inside LockProfile with the lock held, tests use it to interleave writers
	onLock func(p *Profile)
}

var _ repo = (*memRepo)(nil)
var _ repoTx = (*memTx)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		profiles:  map[string]*Profile{},
		reminders: map[string]bool{},
		reviews:   map[string]Review{},
	}
}

type memSnapshot struct {
	profiles    map[string]*Profile
	sessions    []*Session
	completions []*Completion
	reminders   map[string]bool
	reviews     map[string]Review
	events      []Event
	nextID      int64
}

func (r *memRepo) snapshot() memSnapshot {
	s := memSnapshot{
		profiles:    make(map[string]*Profile, len(r.profiles)),
		sessions:    make([]*Session, 0, len(r.sessions)),
		completions: make([]*Completion, 0, len(r.completions)),
		reminders:   make(map[string]bool, len(r.reminders)),
		reviews:     make(map[string]Review, len(r.reviews)),
		events:      append([]Event(nil), r.events...),
		nextID:      r.nextID,
	}
	for k, p := range r.profiles {
		cp := *p
		s.profiles[k] = &cp
	}
	for _, sess := range r.sessions {
		cp := *sess
		s.sessions = append(s.sessions, &cp)
	}
	for _, c := range r.completions {
		cp := *c
		s.completions = append(s.completions, &cp)
	}
	for k, v := range r.reminders {
		s.reminders[k] = v
	}
	for k, v := range r.reviews {
		s.reviews[k] = v
	}
	return s
}

func (r *memRepo) restore(s memSnapshot) {
	r.profiles = s.profiles
	r.sessions = s.sessions
	r.completions = s.completions
	r.reminders = s.reminders
	r.reviews = s.reviews
	r.events = s.events
	r.nextID = s.nextID
}

func (r *memRepo) GetProfile(_ context.Context, userID string) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) ListSessions(_ context.Context, userID string) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sessions []Session
	for i := len(r.sessions) - 1; i >= 0; i-- {
		if r.sessions[i].UserID == userID {
			sessions = append(sessions, *r.sessions[i])
		}
	}
	return sessions, nil
}

func (r *memRepo) HasCompletionBetween(_ context.Context, userID string, from, to time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasCompletionBetween(userID, from, to), nil
}

func (r *memRepo) hasCompletionBetween(userID string, from, to time.Time) bool {
	for _, c := range r.completions {
		if c.UserID == userID && !c.CompletedAt.Before(from) && c.CompletedAt.Before(to) {
			return true
		}
	}
	return false
}

func (r *memRepo) ListResetCandidates(_ context.Context, cutoffLabel string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var userIDs []string
	for _, p := range r.profiles {
		if missedWindow(p, cutoffLabel) {
			userIDs = append(userIDs, p.UserID)
		}
	}
	return userIDs, nil
}

func (r *memRepo) SaveWindow(_ context.Context, w window.Window) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveWindowErr != nil {
		return r.saveWindowErr
	}
	r.windows = append(r.windows, w)
	return nil
}

func (r *memRepo) InTx(_ context.Context, fn func(tx repoTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.txCalls++
	if len(r.txErrs) > 0 {
		err := r.txErrs[0]
		r.txErrs = r.txErrs[1:]
		if err != nil {
			return err
		}
	}

	snap := r.snapshot()
	if err := fn(&memTx{r: r}); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *memRepo) openSessions(userID string) []*Session {
	var open []*Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsOpen() {
			open = append(open, s)
		}
	}
	return open
}

func (r *memRepo) eventsOf(eventType EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var events []Event
	for _, e := range r.events {
		if e.Type == eventType {
			events = append(events, e)
		}
	}
	return events
}

// seed puts a user in the given state with one open session mirroring the streak.
func (r *memRepo) seed(p Profile, openedAt time.Time) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s := &Session{
		ID:             r.nextID,
		UserID:         p.UserID,
		Routine:        p.Routine,
		StartDate:      openedAt,
		DaysCompleted:  p.Streak,
		StreakAchieved: p.Streak,
	}
	r.profiles[p.UserID] = &p
	r.sessions = append(r.sessions, s)
	return s
}

type memTx struct {
	r *memRepo
}

func (t *memTx) InsertProfile(_ context.Context, p *Profile) error {
	if _, ok := t.r.profiles[p.UserID]; ok {
		return fmt.Errorf("%w: %s", ErrProfileExists, p.UserID)
	}
	cp := *p
	t.r.profiles[p.UserID] = &cp
	return nil
}

func (t *memTx) LockProfile(_ context.Context, userID string) (*Profile, error) {
	p, ok := t.r.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	if t.r.onLock != nil {
		t.r.onLock(p)
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) SaveProfile(_ context.Context, p *Profile) error {
	cp := *p
	t.r.profiles[p.UserID] = &cp
	return nil
}

func (t *memTx) GetOpenSession(_ context.Context, userID string) (*Session, error) {
	open := t.r.openSessions(userID)
	if len(open) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoOpenSession, userID)
	}
	cp := *open[0]
	return &cp, nil
}

func (t *memTx) OpenSession(_ context.Context, s *Session) error {
	if len(t.r.openSessions(s.UserID)) > 0 {
		return fmt.Errorf("duplicate open session for %s", s.UserID)
	}
	t.r.nextID++
	s.ID = t.r.nextID
	cp := *s
	t.r.sessions = append(t.r.sessions, &cp)
	return nil
}

func (t *memTx) UpdateSession(_ context.Context, s *Session) error {
	for i, existing := range t.r.sessions {
		if existing.ID == s.ID {
			cp := *s
			t.r.sessions[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("session %d not found", s.ID)
}

func (t *memTx) GetCompletionForDay(_ context.Context, userID string, sessionID int64, day int) (*Completion, error) {
	for _, c := range t.r.completions {
		if c.UserID == userID && c.SessionID == sessionID && c.DayNumber == day {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) HasCompletionBetween(_ context.Context, userID string, from, to time.Time) (bool, error) {
	return t.r.hasCompletionBetween(userID, from, to), nil
}

func (t *memTx) InsertCompletion(ctx context.Context, c *Completion) (bool, error) {
	existing, _ := t.GetCompletionForDay(ctx, c.UserID, c.SessionID, c.DayNumber)
	if existing != nil {
		return false, nil
	}
	t.r.nextID++
	c.ID = t.r.nextID
	cp := *c
	t.r.completions = append(t.r.completions, &cp)
	return true, nil
}

func (t *memTx) MarkReminderCompleted(_ context.Context, userID, windowLabel string) error {
	key := userID + "|" + windowLabel
	if _, ok := t.r.reminders[key]; ok {
		t.r.reminders[key] = true
	}
	return nil
}

func (t *memTx) InsertReview(_ context.Context, review Review) error {
	if _, ok := t.r.reviews[review.UserID]; ok {
		return ErrReviewAlreadyExists
	}
	t.r.reviews[review.UserID] = review
	t.r.profiles[review.UserID].ReviewSubmitted = true
	return nil
}

func (t *memTx) AddEvent(_ context.Context, e Event) error {
	if _, ok := topics[e.Type]; !ok {
		return fmt.Errorf("no topic for event type %s", e.Type)
	}
	t.r.events = append(t.r.events, e)
	return nil
}
