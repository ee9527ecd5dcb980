// Package report derives attendance projections from the store without
// mutating anything.  No-show in particular is always a live computation
// over current facts, never a persisted flag, so it can never drift out
// of sync with late check-ins.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/event-checkin/internal/model"
)

// RegistrationFact is one registration joined with the guest, event and
// check-in facts the derivations need.  CheckinCount counts non-override
// records only (0 or 1 by the check-in invariant).
type RegistrationFact struct {
	Registration  model.Registration `json:"registration"`
	GuestEmail    string             `json:"guest_email"`
	GuestName     string             `json:"guest_name"`
	GuestStatus   model.Status       `json:"guest_status"`
	GuestType     model.GuestType    `json:"guest_type"`
	EventStartsAt time.Time          `json:"event_starts_at"`
	CheckinCount  int                `json:"checkin_count"`
	CheckedInAt   *time.Time         `json:"checked_in_at,omitempty"`
}

// Store supplies the raw facts the aggregator projects.  All methods are
// read-only.
type Store interface {
	RegistrationFacts(ctx context.Context) ([]RegistrationFact, error)
	CountsByStatus(ctx context.Context) (map[model.Status]int, error)
	CountsByGuestType(ctx context.Context) (map[model.GuestType]int, error)
}

// Aggregator computes the derived attendance views.
type Aggregator struct {
	store      Store
	windowDays int
	now        func() time.Time
}

// NewAggregator constructs an Aggregator.  windowDays bounds the
// RecentCancellations view.
func NewAggregator(store Store, windowDays int) *Aggregator {
	if store == nil {
		panic("nil store passed to report.NewAggregator")
	}
	return &Aggregator{
		store:      store,
		windowDays: windowDays,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// isPotentialNoShow is the no-show predicate: ticket issued, event in the
// past, not cancelled, never checked in.
func isPotentialNoShow(f RegistrationFact, now time.Time) bool {
	return f.Registration.HasTicket() &&
		!f.EventStartsAt.After(now) &&
		!f.Registration.Cancelled() &&
		f.CheckinCount == 0
}

// Cancelled returns all registrations carrying a cancelled_at timestamp.
func (a *Aggregator) Cancelled(ctx context.Context) ([]RegistrationFact, error) {
	return a.filter(ctx, func(f RegistrationFact) bool {
		return f.Registration.Cancelled()
	})
}

// PotentialNoShow returns registrations that held a valid ticket for an
// event that has passed and never checked in.
func (a *Aggregator) PotentialNoShow(ctx context.Context) ([]RegistrationFact, error) {
	now := a.now()
	return a.filter(ctx, func(f RegistrationFact) bool {
		return isPotentialNoShow(f, now)
	})
}

// Attended returns registrations with exactly one current check-in
// record.
func (a *Aggregator) Attended(ctx context.Context) ([]RegistrationFact, error) {
	return a.filter(ctx, func(f RegistrationFact) bool {
		return f.CheckinCount == 1
	})
}

// RecentCancellations returns cancellations within the trailing window,
// newest first.
func (a *Aggregator) RecentCancellations(ctx context.Context) ([]RegistrationFact, error) {
	cutoff := a.now().Add(-time.Duration(a.windowDays) * 24 * time.Hour)
	out, err := a.filter(ctx, func(f RegistrationFact) bool {
		return f.Registration.Cancelled() && f.Registration.CancelledAt.After(cutoff)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Registration.CancelledAt.After(*out[j].Registration.CancelledAt)
	})
	return out, nil
}

// CountsByStatus returns raw guest tallies per lifecycle status.
func (a *Aggregator) CountsByStatus(ctx context.Context) (map[model.Status]int, error) {
	return a.store.CountsByStatus(ctx)
}

// CountsByGuestType returns raw guest tallies per guest type.
func (a *Aggregator) CountsByGuestType(ctx context.Context) (map[model.GuestType]int, error) {
	return a.store.CountsByGuestType(ctx)
}

func (a *Aggregator) filter(ctx context.Context, keep func(RegistrationFact) bool) ([]RegistrationFact, error) {
	facts, err := a.store.RegistrationFacts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RegistrationFact, 0, len(facts))
	for _, f := range facts {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out, nil
}
