package model

import "time"

// Event represents the occasion guests register for.  StartsAt drives the
// cancellation window check and the no-show cutoff.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name of the event.
//  StartsAt  – when the event begins (UTC).
//  CreatedAt – creation timestamp.
type Event struct {
	ID        uint64    // events.id
	Name      string    // events.name
	StartsAt  time.Time // events.starts_at
	CreatedAt time.Time // events.created_at
}

// Passed reports whether the event has already started relative to now.
func (e *Event) Passed(now time.Time) bool { return !e.StartsAt.After(now) }
