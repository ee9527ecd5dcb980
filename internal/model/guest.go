package model

import "time"

// GuestType categorizes how a guest was invited and how their ticket is
// paid for.  Applicants are self-service signups that must be approved
// before they become paying guests.
type GuestType string

const (
	GuestTypeVIP          GuestType = "vip"
	GuestTypePayingSingle GuestType = "paying_single"
	GuestTypePayingPaired GuestType = "paying_paired"
	GuestTypeApplicant    GuestType = "applicant"
)

// Status is a guest's position in the registration lifecycle.  Exactly one
// status holds at any time.  There is deliberately no "cancelled" status:
// cancellation is recorded on the registration via cancelled_at, and any
// cancelled label shown to callers is derived from that timestamp.
type Status string

const (
	StatusInvited         Status = "invited"
	StatusPendingApproval Status = "pending_approval"
	StatusRegistered      Status = "registered"
	StatusApproved        Status = "approved"
	StatusDeclined        Status = "declined"
	StatusRejected        Status = "rejected"
)

// Guest represents a person invited to the event.  It corresponds to a
// row in the `guests` table.  A paying_paired guest may reference a
// partner guest record via PairedWithID; the pair remains two independent
// records, each with its own registration and ticket.
//
// Fields:
//  ID              – primary key identifier.
//  Email           – unique email address.
//  FullName        – display name of the guest.
//  GuestType       – invitation category (vip, paying_single, paying_paired, applicant).
//  Status          – current lifecycle status.
//  PairedWithID    – partner guest ID (nil when unpaired or partner record not yet created).
//  RejectionReason – reason stored when an applicant is rejected (nil otherwise).
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Guest struct {
	ID              uint64     // guests.id
	Email           string     // guests.email
	FullName        string     // guests.full_name
	GuestType       GuestType  // guests.guest_type
	Status          Status     // guests.status
	PairedWithID    *uint64    // guests.paired_with_id (nullable)
	RejectionReason *string    // guests.rejection_reason (nullable)
	CreatedAt       time.Time  // guests.created_at
	UpdatedAt       time.Time  // guests.updated_at
}
