package challenge

import (
	"errors"

	"github.com/2beens/fit45/internal/challenge/window"
)

// User facing rejections. Only eligibility and the recorder return these to callers.
var (
	ErrAlreadyCompleted = errors.New("workout already completed in this window")
	ErrStaleDay         = errors.New("day number does not match current day, please refresh")
)

var (
	// ErrWindowResolutionFailed wraps the resolver failure; eligibility fails closed on it.
	ErrWindowResolutionFailed = window.ErrResolutionFailed
	// ErrConcurrentUpdate is returned when a completion kept colliding with another
	// writer (usually the inactivity sweep) after all retries.
	ErrConcurrentUpdate = errors.New("concurrent update, please retry")
	ErrPersistence      = errors.New("persistence failure")

	ErrProfileNotFound     = errors.New("profile not found")
	ErrProfileExists       = errors.New("profile already exists")
	ErrNoOpenSession       = errors.New("no open workout session")
	ErrInvalidRoutine      = errors.New("invalid routine")
	ErrInvalidInput        = errors.New("invalid input")
	ErrChallengeNotDone    = errors.New("challenge not completed yet")
	ErrReviewAlreadyExists = errors.New("review already submitted")
)

// IsUserRejection reports whether err is an informational rejection, not a fault.
func IsUserRejection(err error) bool {
	return errors.Is(err, ErrAlreadyCompleted) || errors.Is(err, ErrStaleDay)
}
