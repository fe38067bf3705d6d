// Package window resolves the daily workout window.
//
// A workout day does not roll over at midnight: it starts at the boundary hour
// (03:00 by default) in a single fixed-offset timezone and lasts exactly 24h.
// A completion made at 02:00 local time belongs to the previous day's window.
package window

import (
	"errors"
	"fmt"
	"time"
)

const (
	LabelLayout = "2006-01-02"

	DefaultZoneName      = "IST"
	DefaultOffsetMinutes = 5*60 + 30
	DefaultBoundaryHour  = 3

	length = 24 * time.Hour
)

var ErrResolutionFailed = errors.New("workout window resolution failed")

// Window is the [Start, End) range during which a completion counts for DateLabel.
type Window struct {
	DateLabel string    `json:"dateLabel"`
	Start     time.Time `json:"windowStart"`
	End       time.Time `json:"windowEnd"`
}

// Contains reports whether t falls inside [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

type Resolver struct {
	loc          *time.Location
	boundaryHour int
}

func NewResolver(zoneName string, offsetMinutes, boundaryHour int) (*Resolver, error) {
	if boundaryHour < 0 || boundaryHour > 23 {
		return nil, fmt.Errorf("%w: boundary hour %d out of range", ErrResolutionFailed, boundaryHour)
	}
	if offsetMinutes < -14*60 || offsetMinutes > 14*60 {
		return nil, fmt.Errorf("%w: offset %dm out of range", ErrResolutionFailed, offsetMinutes)
	}
	if zoneName == "" {
		zoneName = fmt.Sprintf("UTC%+03d:%02d", offsetMinutes/60, abs(offsetMinutes%60))
	}
	return &Resolver{
		loc:          time.FixedZone(zoneName, offsetMinutes*60),
		boundaryHour: boundaryHour,
	}, nil
}

// NewDefaultResolver returns the IST resolver with the 03:00 day boundary.
func NewDefaultResolver() *Resolver {
	r, _ := NewResolver(DefaultZoneName, DefaultOffsetMinutes, DefaultBoundaryHour)
	return r
}

func (r *Resolver) Location() *time.Location {
	if r == nil {
		return nil
	}
	return r.loc
}

// Resolve returns the window the instant now belongs to.
func (r *Resolver) Resolve(now time.Time) (Window, error) {
	if r == nil || r.loc == nil {
		return Window{}, fmt.Errorf("%w: resolver not configured", ErrResolutionFailed)
	}
	if now.IsZero() {
		return Window{}, fmt.Errorf("%w: zero instant", ErrResolutionFailed)
	}

	local := now.In(r.loc)
	shifted := local.Add(-time.Duration(r.boundaryHour) * time.Hour)
	y, m, d := shifted.Date()
	start := time.Date(y, m, d, r.boundaryHour, 0, 0, 0, r.loc)

	w := Window{
		DateLabel: start.Format(LabelLayout),
		Start:     start,
		End:       start.Add(length),
	}
	if !w.Contains(now) {
		return Window{}, fmt.Errorf("%w: %s outside computed window %s", ErrResolutionFailed, now, w.DateLabel)
	}
	return w, nil
}

// ForLabel returns the window keyed by the given date label.
func (r *Resolver) ForLabel(label string) (Window, error) {
	if r == nil || r.loc == nil {
		return Window{}, fmt.Errorf("%w: resolver not configured", ErrResolutionFailed)
	}
	day, err := time.ParseInLocation(LabelLayout, label, r.loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: parse label %q: %w", ErrResolutionFailed, label, err)
	}
	start := day.Add(time.Duration(r.boundaryHour) * time.Hour)
	return Window{
		DateLabel: label,
		Start:     start,
		End:       start.Add(length),
	}, nil
}

// Previous returns the window immediately before w.
func Previous(w Window) Window {
	start := w.Start.Add(-length)
	return Window{
		DateLabel: start.Format(LabelLayout),
		Start:     start,
		End:       w.Start,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
