package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/event-checkin/internal/lifecycle"
	"github.com/iliyamo/event-checkin/internal/model"
)

// RegistrationRepo provides data access for registrations.  GetByID is
// the read path the ticket verifier depends on; the Tx variants serve the
// lifecycle service's transactional writes.
type RegistrationRepo struct {
	db *sql.DB
}

// NewRegistrationRepo constructs a RegistrationRepo with the given DB handle.
func NewRegistrationRepo(db *sql.DB) *RegistrationRepo {
	return &RegistrationRepo{db: db}
}

const registrationCols = `id, guest_id, event_id, ticket_type, ticket_token, ticket_issued_at,
	       partner_name, partner_email, cancelled_at, cancellation_reason, created_at, updated_at`

func scanRegistration(row *sql.Row) (*model.Registration, error) {
	var r model.Registration
	err := row.Scan(&r.ID, &r.GuestID, &r.EventID, &r.TicketType, &r.TicketToken, &r.TicketIssuedAt,
		&r.PartnerName, &r.PartnerEmail, &r.CancelledAt, &r.CancellationReason, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetByID fetches a registration by id. Returns sql.ErrNoRows when absent.
func (r *RegistrationRepo) GetByID(ctx context.Context, id uint64) (*model.Registration, error) {
	const q = `SELECT ` + registrationCols + ` FROM registrations WHERE id = ? LIMIT 1`
	return scanRegistration(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDTx is GetByID within an existing transaction.
func (r *RegistrationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Registration, error) {
	const q = `SELECT ` + registrationCols + ` FROM registrations WHERE id = ? LIMIT 1`
	return scanRegistration(tx.QueryRowContext(ctx, q, id))
}

// GetByGuest fetches a guest's registration (at most one exists per
// guest, enforced by a unique key on guest_id).
func (r *RegistrationRepo) GetByGuest(ctx context.Context, guestID uint64) (*model.Registration, error) {
	const q = `SELECT ` + registrationCols + ` FROM registrations WHERE guest_id = ? LIMIT 1`
	return scanRegistration(r.db.QueryRowContext(ctx, q, guestID))
}

// GetByGuestTx is GetByGuest within an existing transaction.
func (r *RegistrationRepo) GetByGuestTx(ctx context.Context, tx *sql.Tx, guestID uint64) (*model.Registration, error) {
	const q = `SELECT ` + registrationCols + ` FROM registrations WHERE guest_id = ? LIMIT 1`
	return scanRegistration(tx.QueryRowContext(ctx, q, guestID))
}

// CreateTx inserts a registration within the provided transaction. On
// success the registration's ID is populated.
func (r *RegistrationRepo) CreateTx(ctx context.Context, tx *sql.Tx, reg *model.Registration) error {
	const q = `INSERT INTO registrations (guest_id, event_id, ticket_type, partner_name, partner_email)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, reg.GuestID, reg.EventID, reg.TicketType, reg.PartnerName, reg.PartnerEmail)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	reg.ID = uint64(id)
	return nil
}

// SetTicketTx stores a freshly issued ticket token, replacing any prior
// one.  The overwritten token stops being accepted at the door because
// the stored value is compared against the presented one.
func (r *RegistrationRepo) SetTicketTx(ctx context.Context, tx *sql.Tx, registrationID uint64, token string, issuedAt time.Time) error {
	const q = `UPDATE registrations SET ticket_token = ?, ticket_issued_at = ?, updated_at = NOW() WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, token, issuedAt, registrationID)
	return err
}

// SetCancelledTx stamps the registration cancelled.  The WHERE guard on
// cancelled_at keeps the first timestamp if two cancellations race; the
// loser sees zero affected rows and gets ErrAlreadyCancelled, since the
// row was read without a lock before this point.
func (r *RegistrationRepo) SetCancelledTx(ctx context.Context, tx *sql.Tx, registrationID uint64, at time.Time, reason *string) error {
	const q = `UPDATE registrations SET cancelled_at = ?, cancellation_reason = ?, updated_at = NOW()
	           WHERE id = ? AND cancelled_at IS NULL`
	res, err := tx.ExecContext(ctx, q, at, reason, registrationID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return lifecycle.ErrAlreadyCancelled
	}
	return nil
}
