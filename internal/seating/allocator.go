// Package seating assigns guests to tables under hard capacity
// constraints.  A paying_paired guest with a resolved partner occupies
// two seats as one atomic unit: either both halves are seated at the
// table or nothing changes.  Table capacity is only ever mutated through
// this allocator.
package seating

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/pairing"
)

// Sentinel errors surfaced to callers.  Capacity failures are expected
// outcomes of legitimate use, not system errors.
var (
	// ErrCapacityExceeded is returned when the table has no free seat.
	ErrCapacityExceeded = errors.New("table capacity exceeded")

	// ErrInsufficientCapacityForPair is returned when fewer than two free
	// seats remain for a resolved pair.
	ErrInsufficientCapacityForPair = errors.New("insufficient capacity for pair")

	// ErrAlreadyAssigned is returned when the guest (or their partner)
	// already has a table assignment.
	ErrAlreadyAssigned = errors.New("guest already assigned")

	// ErrNotAssigned is returned when unassigning or reassigning a guest
	// who has no table assignment.
	ErrNotAssigned = errors.New("guest not assigned")
)

// Store is the persistence boundary of the allocator.  WithTx runs fn
// inside one transaction; the capacity check and the assignment writes
// share that transaction so no partial pair is ever observable.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of store operations available inside a seating
// transaction.  GetTableForUpdate must lock the table row so concurrent
// assignments to the same table serialize; lookups return sql.ErrNoRows
// when the row does not exist.
type Tx interface {
	GetGuest(ctx context.Context, id uint64) (*model.Guest, error)
	GetRegistrationByGuest(ctx context.Context, guestID uint64) (*model.Registration, error)
	GetTableForUpdate(ctx context.Context, tableID uint64) (*model.Table, error)
	CountAssignments(ctx context.Context, tableID uint64) (int, error)
	GetAssignmentByGuest(ctx context.Context, guestID uint64) (*model.TableAssignment, error)
	InsertAssignment(ctx context.Context, a *model.TableAssignment) error
	DeleteAssignmentByGuest(ctx context.Context, guestID uint64) error
}

// Allocator performs assign/unassign/reassign operations.
type Allocator struct {
	store Store
}

// NewAllocator constructs an Allocator over the given store.
func NewAllocator(store Store) *Allocator {
	if store == nil {
		panic("nil store passed to seating.NewAllocator")
	}
	return &Allocator{store: store}
}

// Assign seats a guest at a table, consuming one seat, or two seats when
// the guest is half of a resolved pair.  seatNumber applies to the named
// guest only; a partner always takes an anonymous slot.  Numbered and
// unnumbered assignments draw from the same capacity pool.
func (a *Allocator) Assign(ctx context.Context, guestID, tableID uint64, seatNumber *uint32) ([]model.TableAssignment, error) {
	var created []model.TableAssignment
	err := a.store.WithTx(ctx, func(tx Tx) error {
		members, err := a.partyMembers(ctx, tx, guestID)
		if err != nil {
			return err
		}
		for _, id := range members {
			if _, err := tx.GetAssignmentByGuest(ctx, id); err == nil {
				return ErrAlreadyAssigned
			} else if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}
		if err := a.seatParty(ctx, tx, members, tableID, seatNumber, &created); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Unassign removes a guest's table assignment; for a resolved pair both
// halves are removed together, mirroring Assign.
func (a *Allocator) Unassign(ctx context.Context, guestID uint64) error {
	return a.store.WithTx(ctx, func(tx Tx) error {
		members, err := a.partyMembers(ctx, tx, guestID)
		if err != nil {
			return err
		}
		if _, err := tx.GetAssignmentByGuest(ctx, guestID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotAssigned
			}
			return err
		}
		for _, id := range members {
			if err := tx.DeleteAssignmentByGuest(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Reassign moves a guest (and a resolved partner) to another table.  The
// removal and the destination capacity check share one transaction and
// the same table lock as Assign, so the move is never observable as a
// transient capacity violation.
func (a *Allocator) Reassign(ctx context.Context, guestID, newTableID uint64) ([]model.TableAssignment, error) {
	var created []model.TableAssignment
	err := a.store.WithTx(ctx, func(tx Tx) error {
		members, err := a.partyMembers(ctx, tx, guestID)
		if err != nil {
			return err
		}
		if _, err := tx.GetAssignmentByGuest(ctx, guestID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotAssigned
			}
			return err
		}
		for _, id := range members {
			if err := tx.DeleteAssignmentByGuest(ctx, id); err != nil {
				return err
			}
		}
		// Seat numbers do not carry across tables.
		if err := a.seatParty(ctx, tx, members, newTableID, nil, &created); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// partyMembers resolves the set of guests seated as one unit: the guest
// alone, or the guest plus a resolved partner.  An unresolved partner
// (name/email only) degrades to single-seat allocation.
func (a *Allocator) partyMembers(ctx context.Context, tx Tx, guestID uint64) ([]uint64, error) {
	g, err := tx.GetGuest(ctx, guestID)
	if err != nil {
		return nil, err
	}
	reg, err := tx.GetRegistrationByGuest(ctx, guestID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		reg = nil
	}
	members := []uint64{g.ID}
	if p := pairing.Resolve(g, reg); p.Kind == pairing.Resolved {
		members = append(members, p.GuestID)
	}
	return members, nil
}

// seatParty locks the table, recounts occupancy and inserts one
// assignment per member.  The lock plus recount is the serialization
// point for the capacity invariant.
func (a *Allocator) seatParty(ctx context.Context, tx Tx, members []uint64, tableID uint64, seatNumber *uint32, created *[]model.TableAssignment) error {
	table, err := tx.GetTableForUpdate(ctx, tableID)
	if err != nil {
		return err
	}
	occupied, err := tx.CountAssignments(ctx, tableID)
	if err != nil {
		return err
	}
	free := int(table.Capacity) - occupied
	if free < len(members) {
		if len(members) > 1 {
			return ErrInsufficientCapacityForPair
		}
		return ErrCapacityExceeded
	}
	for i, id := range members {
		assignment := model.TableAssignment{TableID: tableID, GuestID: id}
		if i == 0 && seatNumber != nil {
			n := *seatNumber
			assignment.SeatNumber = &n
		}
		if err := tx.InsertAssignment(ctx, &assignment); err != nil {
			return err
		}
		*created = append(*created, assignment)
	}
	return nil
}
