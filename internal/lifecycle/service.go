package lifecycle

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/queue"
)

// Store is the persistence boundary of the lifecycle service.  WithTx runs
// fn inside one transaction; every mutation a single operation performs is
// committed or rolled back as a unit.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of store operations available inside a lifecycle
// transaction.  Implementations return sql.ErrNoRows when a looked-up row
// does not exist.
type Tx interface {
	GetGuest(ctx context.Context, id uint64) (*model.Guest, error)
	GetGuestByEmail(ctx context.Context, email string) (*model.Guest, error)
	CreateGuest(ctx context.Context, g *model.Guest) error
	UpdateGuestStatus(ctx context.Context, id uint64, status model.Status) error
	ConvertApplicant(ctx context.Context, id uint64, to model.GuestType, status model.Status) error
	SetRejection(ctx context.Context, id uint64, reason string) error
	SetPair(ctx context.Context, guestID, partnerID uint64) error

	CreateRegistration(ctx context.Context, r *model.Registration) error
	GetRegistration(ctx context.Context, id uint64) (*model.Registration, error)
	GetRegistrationByGuest(ctx context.Context, guestID uint64) (*model.Registration, error)
	SetTicket(ctx context.Context, registrationID uint64, token string, issuedAt time.Time) error
	// SetCancelled stamps the registration cancelled.  Implementations
	// return ErrAlreadyCancelled when a concurrent cancellation got
	// there first.
	SetCancelled(ctx context.Context, registrationID uint64, at time.Time, reason *string) error

	GetEvent(ctx context.Context, id uint64) (*model.Event, error)
}

// Issuer signs entry tickets and invite credentials.  Implemented by
// ticket.Service.
type Issuer interface {
	Issue(reg *model.Registration) (string, time.Time, error)
	IssueInvite(guestID uint64, ttl time.Duration) (string, time.Time, error)
}

// PublishFunc emits a lifecycle event for the notification collaborator.
// A nil PublishFunc disables publishing (used in tests).
type PublishFunc func(ctx context.Context, ev queue.LifecycleEvent) error

// Service orchestrates lifecycle transitions against the store.  All
// decisions are delegated to the pure functions in transitions.go; the
// service only sequences reads, decisions and writes inside transactions
// and publishes events after commit.
type Service struct {
	store        Store
	issuer       Issuer
	publish      PublishFunc
	deadlineDays int
	inviteTTL    time.Duration
	now          func() time.Time
}

// NewService constructs a lifecycle Service.  deadlineDays gates guest
// cancellations; inviteTTL bounds applicant invite credentials.
func NewService(store Store, issuer Issuer, publish PublishFunc, deadlineDays int, inviteTTL time.Duration) *Service {
	if store == nil || issuer == nil {
		panic("nil dependency passed to lifecycle.NewService")
	}
	return &Service{
		store:        store,
		issuer:       issuer,
		publish:      publish,
		deadlineDays: deadlineDays,
		inviteTTL:    inviteTTL,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// PartnerInfo carries the partner fields supplied on registration for a
// paying_paired guest whose partner has no guest record yet.
type PartnerInfo struct {
	Name  string
	Email string
}

// ErrPartnerNotAllowed is returned when a partner is supplied for a
// guest type other than paying_paired.
var ErrPartnerNotAllowed = errors.New("partner requires a paying_paired guest")

// InviteGuest creates a guest directly in invited status by admin
// action.  For a paying_paired guest a partner record may be created in
// the same transaction; the two rows are linked reciprocally so either
// half resolves the other for seating.  Returns the created guest and,
// when one was created, the partner.
func (s *Service) InviteGuest(ctx context.Context, email, fullName string, guestType model.GuestType, partner *PartnerInfo) (*model.Guest, *model.Guest, error) {
	if partner != nil && guestType != model.GuestTypePayingPaired {
		return nil, nil, ErrPartnerNotAllowed
	}
	g := &model.Guest{
		Email:     email,
		FullName:  fullName,
		GuestType: guestType,
		Status:    model.StatusInvited,
	}
	var p *model.Guest
	if partner != nil {
		p = &model.Guest{
			Email:     partner.Email,
			FullName:  partner.Name,
			GuestType: model.GuestTypePayingPaired,
			Status:    model.StatusInvited,
		}
	}
	err := s.store.WithTx(ctx, func(tx Tx) error {
		if err := tx.CreateGuest(ctx, g); err != nil {
			return err
		}
		if p == nil {
			return nil
		}
		if err := tx.CreateGuest(ctx, p); err != nil {
			return err
		}
		if err := tx.SetPair(ctx, g.ID, p.ID); err != nil {
			return err
		}
		g.PairedWithID = &p.ID
		p.PairedWithID = &g.ID
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return g, p, nil
}

// CompleteRegistration moves an invited guest to registered and creates
// their registration row.  VIP guests are approved immediately and
// receive their ticket in the same transaction; paying guests wait for
// the payment collaborator.
func (s *Service) CompleteRegistration(ctx context.Context, guestID, eventID uint64, ticketType model.TicketType, partner *PartnerInfo) (*model.Registration, error) {
	var reg *model.Registration
	var approvedEvent *queue.LifecycleEvent
	err := s.store.WithTx(ctx, func(tx Tx) error {
		g, err := tx.GetGuest(ctx, guestID)
		if err != nil {
			return err
		}
		if !CanTransition(g.Status, model.StatusRegistered) {
			return ErrInvalidTransition
		}
		r := &model.Registration{GuestID: g.ID, EventID: eventID, TicketType: ticketType}
		if ticketType == model.TicketPaidPaired && partner != nil {
			if partner.Name != "" {
				name := partner.Name
				r.PartnerName = &name
			}
			if partner.Email != "" {
				email := partner.Email
				r.PartnerEmail = &email
			}
		}
		if err := tx.CreateRegistration(ctx, r); err != nil {
			return err
		}
		status := model.StatusRegistered
		if g.GuestType == model.GuestTypeVIP {
			// Free tickets need no payment gate.
			status = model.StatusApproved
			token, issued, err := s.issueTicket(ctx, tx, r)
			if err != nil {
				return err
			}
			r.TicketToken = &token
			r.TicketIssuedAt = &issued
			approvedEvent = s.eventFor(queue.TypeApproved, g, r, "")
		}
		if err := tx.UpdateGuestStatus(ctx, g.ID, status); err != nil {
			return err
		}
		reg = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, approvedEvent)
	return reg, nil
}

// ReportPaymentOutcome consumes the payment collaborator's verdict for a
// registration.  paid moves the guest from registered to approved and
// issues the entry ticket; pending leaves the status untouched with no
// ticket.
func (s *Service) ReportPaymentOutcome(ctx context.Context, registrationID uint64, paid bool) error {
	if !paid {
		// Pending is a fact we simply acknowledge.
		return nil
	}
	return s.approveRegistration(ctx, registrationID)
}

// Approve moves a registered guest to approved and issues their ticket.
// Used for admin confirmation and for VIPs pre-created with a
// registration.
func (s *Service) Approve(ctx context.Context, guestID uint64) error {
	var approvedEvent *queue.LifecycleEvent
	err := s.store.WithTx(ctx, func(tx Tx) error {
		g, err := tx.GetGuest(ctx, guestID)
		if err != nil {
			return err
		}
		if !CanTransition(g.Status, model.StatusApproved) {
			return ErrInvalidTransition
		}
		r, err := tx.GetRegistrationByGuest(ctx, g.ID)
		if err != nil {
			return err
		}
		if _, _, err := s.issueTicket(ctx, tx, r); err != nil {
			return err
		}
		if err := tx.UpdateGuestStatus(ctx, g.ID, model.StatusApproved); err != nil {
			return err
		}
		approvedEvent = s.eventFor(queue.TypeApproved, g, r, "")
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, approvedEvent)
	return nil
}

// Decline records that an invited or registered guest will not attend.
func (s *Service) Decline(ctx context.Context, guestID uint64) error {
	return s.store.WithTx(ctx, func(tx Tx) error {
		g, err := tx.GetGuest(ctx, guestID)
		if err != nil {
			return err
		}
		if !CanTransition(g.Status, model.StatusDeclined) {
			return ErrInvalidTransition
		}
		return tx.UpdateGuestStatus(ctx, g.ID, model.StatusDeclined)
	})
}

// Cancel performs a guest-initiated cancellation, gated by the
// cancellation window.  The three failure kinds (already cancelled, event
// passed, window closed) are distinct sentinels from transitions.go.
func (s *Service) Cancel(ctx context.Context, registrationID uint64, reason *string) error {
	var cancelledEvent *queue.LifecycleEvent
	err := s.store.WithTx(ctx, func(tx Tx) error {
		r, err := tx.GetRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		ev, err := tx.GetEvent(ctx, r.EventID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := CheckCancellable(now, ev.StartsAt, s.deadlineDays, r.Cancelled()); err != nil {
			return err
		}
		if err := tx.SetCancelled(ctx, r.ID, now, reason); err != nil {
			return err
		}
		g, err := tx.GetGuest(ctx, r.GuestID)
		if err != nil {
			return err
		}
		why := ""
		if reason != nil {
			why = *reason
		}
		cancelledEvent = s.eventFor(queue.TypeCancelled, g, r, why)
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, cancelledEvent)
	return nil
}

// Apply creates an applicant guest in pending_approval via the
// self-service application form.
func (s *Service) Apply(ctx context.Context, email, fullName string) (*model.Guest, error) {
	g := &model.Guest{
		Email:     email,
		FullName:  fullName,
		GuestType: model.GuestTypeApplicant,
		Status:    model.StatusPendingApproval,
	}
	err := s.store.WithTx(ctx, func(tx Tx) error {
		return tx.CreateGuest(ctx, g)
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ApproveApplicant converts an applicant into an invited paying_single
// guest and mints a bounded-lifetime invitation credential for them.  The
// credential is returned to the caller; delivering it is the notification
// system's concern.
func (s *Service) ApproveApplicant(ctx context.Context, guestID uint64) (string, time.Time, error) {
	var invite string
	var exp time.Time
	err := s.store.WithTx(ctx, func(tx Tx) error {
		g, err := tx.GetGuest(ctx, guestID)
		if err != nil {
			return err
		}
		if !CanTransition(g.Status, model.StatusInvited) {
			return ErrInvalidTransition
		}
		if err := tx.ConvertApplicant(ctx, g.ID, model.GuestTypePayingSingle, model.StatusInvited); err != nil {
			return err
		}
		invite, exp, err = s.issuer.IssueInvite(g.ID, s.inviteTTL)
		return err
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return invite, exp, nil
}

// RejectApplicant moves an applicant to rejected with a stored reason.
// No credential of any kind is minted.
func (s *Service) RejectApplicant(ctx context.Context, guestID uint64, reason string) error {
	return s.store.WithTx(ctx, func(tx Tx) error {
		g, err := tx.GetGuest(ctx, guestID)
		if err != nil {
			return err
		}
		if !CanTransition(g.Status, model.StatusRejected) {
			return ErrInvalidTransition
		}
		return tx.SetRejection(ctx, g.ID, reason)
	})
}

// ReissueTicket issues a fresh entry ticket for an approved, uncancelled
// registration.  The stored token is replaced, which invalidates any
// previously issued ticket at the door (current-token-wins policy).
func (s *Service) ReissueTicket(ctx context.Context, registrationID uint64) (string, time.Time, error) {
	var token string
	var exp time.Time
	err := s.store.WithTx(ctx, func(tx Tx) error {
		r, err := tx.GetRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		if r.Cancelled() {
			return ErrAlreadyCancelled
		}
		g, err := tx.GetGuest(ctx, r.GuestID)
		if err != nil {
			return err
		}
		if g.Status != model.StatusApproved {
			return ErrInvalidTransition
		}
		token, exp, err = s.issueTicket(ctx, tx, r)
		return err
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// approveRegistration resolves the guest from the registration and
// advances them to approved with a ticket.
func (s *Service) approveRegistration(ctx context.Context, registrationID uint64) error {
	var approvedEvent *queue.LifecycleEvent
	err := s.store.WithTx(ctx, func(tx Tx) error {
		r, err := tx.GetRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		g, err := tx.GetGuest(ctx, r.GuestID)
		if err != nil {
			return err
		}
		if !CanTransition(g.Status, model.StatusApproved) {
			return ErrInvalidTransition
		}
		if _, _, err := s.issueTicket(ctx, tx, r); err != nil {
			return err
		}
		if err := tx.UpdateGuestStatus(ctx, g.ID, model.StatusApproved); err != nil {
			return err
		}
		approvedEvent = s.eventFor(queue.TypeApproved, g, r, "")
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, approvedEvent)
	return nil
}

// issueTicket signs a ticket for the registration and stores it as the
// current token.
func (s *Service) issueTicket(ctx context.Context, tx Tx, r *model.Registration) (string, time.Time, error) {
	token, exp, err := s.issuer.Issue(r)
	if err != nil {
		return "", time.Time{}, err
	}
	issued := s.now()
	if err := tx.SetTicket(ctx, r.ID, token, issued); err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

func (s *Service) eventFor(typ string, g *model.Guest, r *model.Registration, reason string) *queue.LifecycleEvent {
	return &queue.LifecycleEvent{
		Type:           typ,
		GuestID:        g.ID,
		GuestEmail:     g.Email,
		GuestName:      g.FullName,
		RegistrationID: r.ID,
		EventID:        r.EventID,
		Reason:         reason,
		OccurredAt:     s.now().Format(time.RFC3339),
	}
}

// emit publishes after commit.  Failures are logged, never surfaced: the
// engine does not depend on delivery success.
func (s *Service) emit(ctx context.Context, ev *queue.LifecycleEvent) {
	if ev == nil || s.publish == nil {
		return
	}
	if err := s.publish(ctx, *ev); err != nil {
		log.Printf("lifecycle: publish %s event failed: %v", ev.Type, err)
	}
}
