package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-checkin/internal/model"
)

// GuestRepo provides data access for guests.  Methods with a Tx suffix
// run inside a caller-provided transaction so lifecycle operations stay
// atomic across guest and registration updates.
type GuestRepo struct {
	db *sql.DB
}

// NewGuestRepo constructs a GuestRepo with the given DB handle.
func NewGuestRepo(db *sql.DB) *GuestRepo {
	return &GuestRepo{db: db}
}

const guestCols = `id, email, full_name, guest_type, status, paired_with_id, rejection_reason, created_at, updated_at`

func scanGuest(row *sql.Row) (*model.Guest, error) {
	var g model.Guest
	err := row.Scan(&g.ID, &g.Email, &g.FullName, &g.GuestType, &g.Status,
		&g.PairedWithID, &g.RejectionReason, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Create inserts a guest record. On success the guest's ID is populated.
// A duplicate email maps to ErrEmailExists.
func (r *GuestRepo) Create(ctx context.Context, g *model.Guest) error {
	return createGuest(ctx, r.db, g)
}

// CreateTx is Create within an existing transaction.
func (r *GuestRepo) CreateTx(ctx context.Context, tx *sql.Tx, g *model.Guest) error {
	return createGuest(ctx, tx, g)
}

func createGuest(ctx context.Context, x execer, g *model.Guest) error {
	g.Email = strings.ToLower(strings.TrimSpace(g.Email))
	const q = `INSERT INTO guests (email, full_name, guest_type, status, paired_with_id)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := x.ExecContext(ctx, q, g.Email, g.FullName, g.GuestType, g.Status, g.PairedWithID)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	g.ID = uint64(id)
	return nil
}

// GetByID fetches a guest by id. Returns sql.ErrNoRows when absent.
func (r *GuestRepo) GetByID(ctx context.Context, id uint64) (*model.Guest, error) {
	const q = `SELECT ` + guestCols + ` FROM guests WHERE id = ? LIMIT 1`
	return scanGuest(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDTx is GetByID within an existing transaction.
func (r *GuestRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Guest, error) {
	const q = `SELECT ` + guestCols + ` FROM guests WHERE id = ? LIMIT 1`
	return scanGuest(tx.QueryRowContext(ctx, q, id))
}

// GetByEmailTx fetches a guest by normalized email within a transaction.
func (r *GuestRepo) GetByEmailTx(ctx context.Context, tx *sql.Tx, email string) (*model.Guest, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	const q = `SELECT ` + guestCols + ` FROM guests WHERE email = ? LIMIT 1`
	return scanGuest(tx.QueryRowContext(ctx, q, email))
}

// UpdateStatusTx sets the guest's lifecycle status.
func (r *GuestRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.Status) error {
	const q = `UPDATE guests SET status = ?, updated_at = NOW() WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, status, id)
	return err
}

// ConvertApplicantTx rewrites an applicant's type and status in one
// statement, used when an application is approved into an invitation.
func (r *GuestRepo) ConvertApplicantTx(ctx context.Context, tx *sql.Tx, id uint64, to model.GuestType, status model.Status) error {
	const q = `UPDATE guests SET guest_type = ?, status = ?, rejection_reason = NULL, updated_at = NOW() WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, to, status, id)
	return err
}

// SetRejectionTx marks an applicant rejected and stores the reason.
func (r *GuestRepo) SetRejectionTx(ctx context.Context, tx *sql.Tx, id uint64, reason string) error {
	const q = `UPDATE guests SET status = ?, rejection_reason = ?, updated_at = NOW() WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, model.StatusRejected, reason, id)
	return err
}

// SetPairTx links two paying_paired guests to each other.
func (r *GuestRepo) SetPairTx(ctx context.Context, tx *sql.Tx, guestID, partnerID uint64) error {
	const q = `UPDATE guests SET paired_with_id = ?, updated_at = NOW() WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, partnerID, guestID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, q, guestID, partnerID)
	return err
}

// ListByStatus returns guests in a given lifecycle status, newest first.
// Used by the admin approval queue.
func (r *GuestRepo) ListByStatus(ctx context.Context, status model.Status, limit, offset int) ([]model.Guest, error) {
	const q = `SELECT ` + guestCols + ` FROM guests WHERE status = ?
	           ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Guest
	for rows.Next() {
		var g model.Guest
		if err := rows.Scan(&g.ID, &g.Email, &g.FullName, &g.GuestType, &g.Status,
			&g.PairedWithID, &g.RejectionReason, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
