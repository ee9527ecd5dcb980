package model

import "time"

// CheckinMethod records how a guest was checked in at the door.
type CheckinMethod string

const (
	CheckinQRScan   CheckinMethod = "qr_scan"
	CheckinManual   CheckinMethod = "manual"
	CheckinOverride CheckinMethod = "override"
)

// CheckinRecord is an append-only fact: one row per successful check-in.
// At most one non-override row exists per registration, enforced by a
// unique index on DedupeKey (set to the registration ID for non-override
// rows, NULL for overrides so they never collide).  Override rows are
// appended alongside the original, never replacing it.
//
// Fields:
//  ID             – primary key identifier.
//  RegistrationID – registration that checked in.
//  GuestID        – guest who presented the ticket.
//  Method         – qr_scan, manual or override.
//  IsOverride     – true when an admin forced a second check-in.
//  StaffID        – staff member who processed the check-in.
//  DedupeKey      – registration ID for non-override rows, nil for overrides.
//  CreatedAt      – check-in timestamp.
type CheckinRecord struct {
	ID             uint64        // checkin_records.id
	RegistrationID uint64        // checkin_records.registration_id
	GuestID        uint64        // checkin_records.guest_id
	Method         CheckinMethod // checkin_records.method
	IsOverride     bool          // checkin_records.is_override
	StaffID        uint64        // checkin_records.staff_id
	DedupeKey      *uint64       // checkin_records.dedupe_key (nullable, unique)
	CreatedAt      time.Time     // checkin_records.created_at
}
