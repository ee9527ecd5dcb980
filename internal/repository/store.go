package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/event-checkin/internal/lifecycle"
	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/seating"
)

// withTx runs fn inside one transaction.  The deferred rollback is a
// no-op once the commit has succeeded.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// LifecycleStore adapts the guest, registration and event repositories to
// the lifecycle service's transactional store interface.
type LifecycleStore struct {
	db     *sql.DB
	guests *GuestRepo
	regs   *RegistrationRepo
	events *EventRepo
}

// NewLifecycleStore constructs a LifecycleStore over the given repos.
func NewLifecycleStore(db *sql.DB, guests *GuestRepo, regs *RegistrationRepo, events *EventRepo) *LifecycleStore {
	return &LifecycleStore{db: db, guests: guests, regs: regs, events: events}
}

// WithTx implements lifecycle.Store.
func (s *LifecycleStore) WithTx(ctx context.Context, fn func(tx lifecycle.Tx) error) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&lifecycleTx{tx: tx, store: s})
	})
}

type lifecycleTx struct {
	tx    *sql.Tx
	store *LifecycleStore
}

func (t *lifecycleTx) GetGuest(ctx context.Context, id uint64) (*model.Guest, error) {
	return t.store.guests.GetByIDTx(ctx, t.tx, id)
}

func (t *lifecycleTx) GetGuestByEmail(ctx context.Context, email string) (*model.Guest, error) {
	return t.store.guests.GetByEmailTx(ctx, t.tx, email)
}

func (t *lifecycleTx) CreateGuest(ctx context.Context, g *model.Guest) error {
	return t.store.guests.CreateTx(ctx, t.tx, g)
}

func (t *lifecycleTx) UpdateGuestStatus(ctx context.Context, id uint64, status model.Status) error {
	return t.store.guests.UpdateStatusTx(ctx, t.tx, id, status)
}

func (t *lifecycleTx) ConvertApplicant(ctx context.Context, id uint64, to model.GuestType, status model.Status) error {
	return t.store.guests.ConvertApplicantTx(ctx, t.tx, id, to, status)
}

func (t *lifecycleTx) SetRejection(ctx context.Context, id uint64, reason string) error {
	return t.store.guests.SetRejectionTx(ctx, t.tx, id, reason)
}

func (t *lifecycleTx) SetPair(ctx context.Context, guestID, partnerID uint64) error {
	return t.store.guests.SetPairTx(ctx, t.tx, guestID, partnerID)
}

func (t *lifecycleTx) CreateRegistration(ctx context.Context, r *model.Registration) error {
	return t.store.regs.CreateTx(ctx, t.tx, r)
}

func (t *lifecycleTx) GetRegistration(ctx context.Context, id uint64) (*model.Registration, error) {
	return t.store.regs.GetByIDTx(ctx, t.tx, id)
}

func (t *lifecycleTx) GetRegistrationByGuest(ctx context.Context, guestID uint64) (*model.Registration, error) {
	return t.store.regs.GetByGuestTx(ctx, t.tx, guestID)
}

func (t *lifecycleTx) SetTicket(ctx context.Context, registrationID uint64, token string, issuedAt time.Time) error {
	return t.store.regs.SetTicketTx(ctx, t.tx, registrationID, token, issuedAt)
}

func (t *lifecycleTx) SetCancelled(ctx context.Context, registrationID uint64, at time.Time, reason *string) error {
	return t.store.regs.SetCancelledTx(ctx, t.tx, registrationID, at, reason)
}

func (t *lifecycleTx) GetEvent(ctx context.Context, id uint64) (*model.Event, error) {
	return t.store.events.GetByIDTx(ctx, t.tx, id)
}

// SeatingStore adapts the guest, registration and table repositories to
// the seating allocator's transactional store interface.
type SeatingStore struct {
	db     *sql.DB
	guests *GuestRepo
	regs   *RegistrationRepo
	tables *TableRepo
}

// NewSeatingStore constructs a SeatingStore over the given repos.
func NewSeatingStore(db *sql.DB, guests *GuestRepo, regs *RegistrationRepo, tables *TableRepo) *SeatingStore {
	return &SeatingStore{db: db, guests: guests, regs: regs, tables: tables}
}

// WithTx implements seating.Store.
func (s *SeatingStore) WithTx(ctx context.Context, fn func(tx seating.Tx) error) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&seatingTx{tx: tx, store: s})
	})
}

type seatingTx struct {
	tx    *sql.Tx
	store *SeatingStore
}

func (t *seatingTx) GetGuest(ctx context.Context, id uint64) (*model.Guest, error) {
	return t.store.guests.GetByIDTx(ctx, t.tx, id)
}

func (t *seatingTx) GetRegistrationByGuest(ctx context.Context, guestID uint64) (*model.Registration, error) {
	return t.store.regs.GetByGuestTx(ctx, t.tx, guestID)
}

func (t *seatingTx) GetTableForUpdate(ctx context.Context, tableID uint64) (*model.Table, error) {
	return t.store.tables.GetForUpdateTx(ctx, t.tx, tableID)
}

func (t *seatingTx) CountAssignments(ctx context.Context, tableID uint64) (int, error) {
	return t.store.tables.CountAssignmentsTx(ctx, t.tx, tableID)
}

func (t *seatingTx) GetAssignmentByGuest(ctx context.Context, guestID uint64) (*model.TableAssignment, error) {
	return t.store.tables.GetAssignmentByGuestTx(ctx, t.tx, guestID)
}

func (t *seatingTx) InsertAssignment(ctx context.Context, a *model.TableAssignment) error {
	return t.store.tables.InsertAssignmentTx(ctx, t.tx, a)
}

func (t *seatingTx) DeleteAssignmentByGuest(ctx context.Context, guestID uint64) error {
	return t.store.tables.DeleteAssignmentByGuestTx(ctx, t.tx, guestID)
}
