// Package lifecycle implements the registration status state machine and
// the operations that move guests through it.  The legality of a
// transition and the cancellation-window check are plain functions with no
// store access; the Service wraps them around the persistence boundary so
// the decision logic stays unit-testable without a database.
package lifecycle

import (
	"errors"
	"time"

	"github.com/iliyamo/event-checkin/internal/model"
)

// Sentinel errors returned by transition and cancellation checks.
// Handlers translate these into HTTP responses; each failure kind is
// distinct so callers can render precise messages.
var (
	// ErrInvalidTransition is returned when the requested status change is
	// not an edge of the lifecycle graph.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyCancelled is returned when the registration already
	// carries a cancelled_at timestamp.
	ErrAlreadyCancelled = errors.New("registration already cancelled")

	// ErrEventPassed is returned when the event has already taken place.
	ErrEventPassed = errors.New("event has already passed")

	// ErrCancellationWindowClosed is returned when the event is nearer
	// than the cancellation deadline allows.
	ErrCancellationWindowClosed = errors.New("cancellation window closed")
)

// transitions is the edge set of the lifecycle graph.  declined, rejected
// and approved (post-event) are terminal; cancellation is not part of this
// graph because it is recorded on the registration, not the guest status.
var transitions = map[model.Status][]model.Status{
	model.StatusInvited:         {model.StatusRegistered, model.StatusDeclined},
	model.StatusRegistered:      {model.StatusApproved, model.StatusDeclined},
	model.StatusPendingApproval: {model.StatusInvited, model.StatusRejected},
}

// CanTransition reports whether moving a guest from one status to another
// is a legal edge of the lifecycle graph.
func CanTransition(from, to model.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckCancellable decides whether a registration may be cancelled at
// `now`.  The checks are ordered so that the most specific failure wins:
// an existing cancellation beats the time window, and a passed event beats
// a merely closed window.  Returns nil when cancellation is allowed.
func CheckCancellable(now, eventStart time.Time, deadlineDays int, alreadyCancelled bool) error {
	if alreadyCancelled {
		return ErrAlreadyCancelled
	}
	if !eventStart.After(now) {
		return ErrEventPassed
	}
	if eventStart.Sub(now) <= time.Duration(deadlineDays)*24*time.Hour {
		return ErrCancellationWindowClosed
	}
	return nil
}
