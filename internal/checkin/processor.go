// Package checkin implements the idempotent door check-in processor.  A
// presented ticket yields exactly one of: first acceptance, duplicate
// detection against the original record, a typed rejection, or an
// explicit admin override appended alongside the original.
package checkin

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/queue"
	"github.com/iliyamo/event-checkin/internal/repository"
	"github.com/iliyamo/event-checkin/internal/ticket"
)

// ErrOverrideRequiresStaff is returned when an override submission does
// not identify the authorizing staff member.
var ErrOverrideRequiresStaff = errors.New("override requires staff identity")

// OutcomeKind tags the result of a Submit call.
type OutcomeKind int

const (
	// Accepted: first successful check-in for this registration.
	Accepted OutcomeKind = iota
	// DuplicateDetected: a record already exists; nothing was written.
	DuplicateDetected
	// Rejected: the ticket did not verify; see Outcome.Reason.
	Rejected
	// OverrideAccepted: an admin forced a second record alongside the
	// original.
	OverrideAccepted
)

// RejectReason maps 1:1 from the ticket verification outcome.
type RejectReason string

const (
	ReasonTokenInvalid          RejectReason = "token_invalid"
	ReasonTokenExpired          RejectReason = "token_expired"
	ReasonRegistrationCancelled RejectReason = "registration_cancelled"
	ReasonRegistrationNotFound  RejectReason = "registration_not_found"
)

// Outcome is the result of one Submit.  Record is set for Accepted and
// OverrideAccepted; Original carries the pre-existing record for
// DuplicateDetected and OverrideAccepted so the station can show the
// first check-in's timestamp and method.
type Outcome struct {
	Kind     OutcomeKind
	Record   *model.CheckinRecord
	Original *model.CheckinRecord
	Reason   RejectReason
}

// Store persists check-in records.  Insert must be atomic per
// registration: for a non-override record it returns
// repository.ErrDuplicateCheckin when a non-override record already
// exists, relying on a unique key rather than a read-then-write.
type Store interface {
	Insert(ctx context.Context, rec *model.CheckinRecord) error
	GetCurrentByRegistration(ctx context.Context, registrationID uint64) (*model.CheckinRecord, error)
}

// SubmitOptions qualify a check-in submission.
type SubmitOptions struct {
	Method   model.CheckinMethod // defaults to qr_scan
	StaffID  uint64              // staff member operating the station
	Override bool                // explicit admin override
}

// PublishFunc emits a checked_in event for the notification
// collaborator.  A nil PublishFunc disables publishing (used in tests).
type PublishFunc func(ctx context.Context, ev queue.LifecycleEvent) error

// Processor consumes presented tickets and records at most one
// authoritative check-in per registration.
type Processor struct {
	verifier *ticket.Verifier
	store    Store
	publish  PublishFunc
}

// NewProcessor constructs a check-in Processor.
func NewProcessor(verifier *ticket.Verifier, store Store, publish PublishFunc) *Processor {
	if verifier == nil || store == nil {
		panic("nil dependency passed to checkin.NewProcessor")
	}
	return &Processor{verifier: verifier, store: store, publish: publish}
}

// Submit verifies the presented token and records the check-in.  The
// returned error is non-nil only for store failures and invalid override
// input; every ticket-level verdict is expressed in the Outcome.  Two
// stations racing on the same token are serialized by the store's unique
// key: exactly one gets Accepted, the other DuplicateDetected.
func (p *Processor) Submit(ctx context.Context, token string, opts SubmitOptions) (Outcome, error) {
	if opts.Override && opts.StaffID == 0 {
		return Outcome{}, ErrOverrideRequiresStaff
	}
	method := opts.Method
	if method == "" {
		method = model.CheckinQRScan
	}

	res, err := p.verifier.Verify(ctx, token)
	if err != nil {
		return Outcome{}, err
	}
	switch res.Kind {
	case ticket.Malformed:
		// Potential tampering; logged apart from ordinary rejections.
		log.Printf("checkin: integrity: malformed or badly signed token presented")
		return Outcome{Kind: Rejected, Reason: ReasonTokenInvalid}, nil
	case ticket.Expired:
		return Outcome{Kind: Rejected, Reason: ReasonTokenExpired}, nil
	case ticket.NotFound:
		log.Printf("checkin: integrity: token bound to unknown registration %d", res.Claims.RegistrationID)
		return Outcome{Kind: Rejected, Reason: ReasonRegistrationNotFound}, nil
	case ticket.Cancelled:
		return Outcome{Kind: Rejected, Reason: ReasonRegistrationCancelled}, nil
	}

	reg := res.Registration
	// Current-token-wins: re-issuance replaces the stored token, so a
	// superseded screenshot verifies but must not be accepted.
	if reg.TicketToken == nil || *reg.TicketToken != token {
		log.Printf("checkin: integrity: superseded token presented for registration %d", reg.ID)
		return Outcome{Kind: Rejected, Reason: ReasonTokenInvalid}, nil
	}

	if opts.Override {
		return p.submitOverride(ctx, reg, opts.StaffID)
	}

	dedupe := reg.ID
	rec := &model.CheckinRecord{
		RegistrationID: reg.ID,
		GuestID:        reg.GuestID,
		Method:         method,
		StaffID:        opts.StaffID,
		DedupeKey:      &dedupe,
	}
	if err := p.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicateCheckin) {
			original, lookupErr := p.store.GetCurrentByRegistration(ctx, reg.ID)
			if lookupErr != nil {
				return Outcome{}, lookupErr
			}
			return Outcome{Kind: DuplicateDetected, Original: original}, nil
		}
		return Outcome{}, err
	}
	p.emit(ctx, reg)
	return Outcome{Kind: Accepted, Record: rec}, nil
}

// submitOverride appends an override record alongside the original.  When
// no prior record exists the override degrades to a plain first check-in,
// still attributed to the authorizing staff member.
func (p *Processor) submitOverride(ctx context.Context, reg *model.Registration, staffID uint64) (Outcome, error) {
	original, err := p.store.GetCurrentByRegistration(ctx, reg.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrCheckinNotFound) {
			return Outcome{}, err
		}
		dedupe := reg.ID
		rec := &model.CheckinRecord{
			RegistrationID: reg.ID,
			GuestID:        reg.GuestID,
			Method:         model.CheckinManual,
			StaffID:        staffID,
			DedupeKey:      &dedupe,
		}
		switch err := p.store.Insert(ctx, rec); {
		case err == nil:
			p.emit(ctx, reg)
			return Outcome{Kind: Accepted, Record: rec}, nil
		case !errors.Is(err, repository.ErrDuplicateCheckin):
			return Outcome{}, err
		}
		// A station committed between the lookup and the insert.  The
		// unique key is the duplicate signal; re-fetch the record it
		// points at and append the override alongside it.
		original, err = p.store.GetCurrentByRegistration(ctx, reg.ID)
		if err != nil {
			return Outcome{}, err
		}
	}
	rec := &model.CheckinRecord{
		RegistrationID: reg.ID,
		GuestID:        reg.GuestID,
		Method:         model.CheckinOverride,
		IsOverride:     true,
		StaffID:        staffID,
		// DedupeKey stays nil: overrides never collide with the
		// original's unique key and never replace history.
	}
	if err := p.store.Insert(ctx, rec); err != nil {
		return Outcome{}, err
	}
	log.Printf("checkin: override by staff %d for registration %d (original record %d at %s)",
		staffID, reg.ID, original.ID, original.CreatedAt.Format("2006-01-02 15:04:05"))
	p.emit(ctx, reg)
	return Outcome{Kind: OverrideAccepted, Record: rec, Original: original}, nil
}

// emit publishes the checked_in event after the record is committed.
// Failures are logged, never surfaced.
func (p *Processor) emit(ctx context.Context, reg *model.Registration) {
	if p.publish == nil {
		return
	}
	ev := queue.LifecycleEvent{
		Type:           queue.TypeCheckedIn,
		GuestID:        reg.GuestID,
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		OccurredAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.publish(ctx, ev); err != nil {
		log.Printf("checkin: publish checked_in event failed: %v", err)
	}
}
