package model

import "time"

// TableType distinguishes standard tables from VIP ones.  The type has no
// effect on capacity accounting; it is carried for the floor plan.
type TableType string

const (
	TableStandard TableType = "standard"
	TableVIP      TableType = "vip"
)

// Table is a physical seating unit with a hard capacity.  The placement
// coordinates are stored for the floor-plan editor and are irrelevant to
// allocation logic.
//
// Fields:
//  ID        – primary key identifier.
//  EventID   – event this table belongs to.
//  Name      – table label shown on the floor plan.
//  Capacity  – maximum number of assignments (always positive).
//  TableType – standard or vip.
//  PosX      – horizontal placement coordinate.
//  PosY      – vertical placement coordinate.
//  CreatedAt – creation timestamp.
type Table struct {
	ID        uint64    // tables_.id
	EventID   uint64    // tables_.event_id
	Name      string    // tables_.name
	Capacity  uint32    // tables_.capacity
	TableType TableType // tables_.table_type
	PosX      float64   // tables_.pos_x
	PosY      float64   // tables_.pos_y
	CreatedAt time.Time // tables_.created_at
}

// TableAssignment binds one guest to one seat of one table.  When
// SeatNumber is nil the guest occupies an anonymous slot; numbered and
// unnumbered assignments draw from the same capacity pool.
//
// Fields:
//  ID         – primary key identifier.
//  TableID    – table the guest is seated at.
//  GuestID    – seated guest (unique: a guest sits at one table only).
//  SeatNumber – optional seat number within the table.
//  CreatedAt  – creation timestamp.
type TableAssignment struct {
	ID         uint64    // table_assignments.id
	TableID    uint64    // table_assignments.table_id
	GuestID    uint64    // table_assignments.guest_id
	SeatNumber *uint32   // table_assignments.seat_number (nullable)
	CreatedAt  time.Time // table_assignments.created_at
}
