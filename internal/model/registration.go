package model

import "time"

// TicketType describes the kind of ticket a registration grants.
type TicketType string

const (
	TicketVIPFree    TicketType = "vip_free"
	TicketPaidSingle TicketType = "paid_single"
	TicketPaidPaired TicketType = "paid_paired"
)

// Registration is one guest's concrete attendance record.  At most one
// registration exists per guest (enforced by a unique key on guest_id).
// The ticket token column holds the single currently valid entry ticket;
// re-issuing a ticket overwrites it, which implicitly invalidates any
// previously issued token at check-in time.
//
// Fields:
//  ID                 – primary key identifier.
//  GuestID            – owning guest.
//  EventID            – event this registration attends.
//  TicketType         – vip_free, paid_single or paid_paired.
//  TicketToken        – current signed entry ticket (nil until issued).
//  TicketIssuedAt     – when the current ticket was issued (nil until issued).
//  PartnerName        – partner's name when the pair has no guest record yet.
//  PartnerEmail       – partner's email when the pair has no guest record yet.
//  CancelledAt        – authoritative cancellation marker (nil while active).
//  CancellationReason – optional reason supplied on cancellation.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
type Registration struct {
	ID                 uint64     // registrations.id
	GuestID            uint64     // registrations.guest_id
	EventID            uint64     // registrations.event_id
	TicketType         TicketType // registrations.ticket_type
	TicketToken        *string    // registrations.ticket_token (nullable)
	TicketIssuedAt     *time.Time // registrations.ticket_issued_at (nullable)
	PartnerName        *string    // registrations.partner_name (nullable)
	PartnerEmail       *string    // registrations.partner_email (nullable)
	CancelledAt        *time.Time // registrations.cancelled_at (nullable)
	CancellationReason *string    // registrations.cancellation_reason (nullable)
	CreatedAt          time.Time  // registrations.created_at
	UpdatedAt          time.Time  // registrations.updated_at
}

// Cancelled reports whether the registration has been cancelled.  The
// cancelled_at timestamp is the single source of truth; no status column
// duplicates it.
func (r *Registration) Cancelled() bool { return r.CancelledAt != nil }

// HasTicket reports whether an entry ticket has been issued.
func (r *Registration) HasTicket() bool { return r.TicketToken != nil && *r.TicketToken != "" }
