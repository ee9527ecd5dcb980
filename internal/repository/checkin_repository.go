package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-checkin/internal/model"
)

// CheckinRepo provides data access for check-in records.  The table is
// append-only; the unique key on dedupe_key is what makes concurrent
// submissions of the same ticket safe without any read-before-write.
type CheckinRepo struct {
	db *sql.DB
}

// NewCheckinRepo constructs a CheckinRepo with the given DB handle.
func NewCheckinRepo(db *sql.DB) *CheckinRepo {
	return &CheckinRepo{db: db}
}

// Insert appends a check-in record. On success the record's ID and
// CreatedAt are populated.  A dedupe_key collision (a non-override
// record already exists for the registration) maps to
// ErrDuplicateCheckin.
func (r *CheckinRepo) Insert(ctx context.Context, rec *model.CheckinRecord) error {
	const q = `INSERT INTO checkin_records (registration_id, guest_id, method, is_override, staff_id, dedupe_key)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, rec.RegistrationID, rec.GuestID, rec.Method, rec.IsOverride, rec.StaffID, rec.DedupeKey)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return ErrDuplicateCheckin
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	const tq = `SELECT created_at FROM checkin_records WHERE id = ?`
	return r.db.QueryRowContext(ctx, tq, rec.ID).Scan(&rec.CreatedAt)
}

// GetCurrentByRegistration returns the registration's non-override
// check-in record, or ErrCheckinNotFound when the guest has never
// checked in.
func (r *CheckinRepo) GetCurrentByRegistration(ctx context.Context, registrationID uint64) (*model.CheckinRecord, error) {
	const q = `SELECT id, registration_id, guest_id, method, is_override, staff_id, dedupe_key, created_at
	           FROM checkin_records WHERE registration_id = ? AND is_override = FALSE LIMIT 1`
	rec, err := scanCheckin(r.db.QueryRowContext(ctx, q, registrationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCheckinNotFound
	}
	return rec, err
}

func scanCheckin(row *sql.Row) (*model.CheckinRecord, error) {
	var rec model.CheckinRecord
	err := row.Scan(&rec.ID, &rec.RegistrationID, &rec.GuestID, &rec.Method,
		&rec.IsOverride, &rec.StaffID, &rec.DedupeKey, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByRegistration returns every record for a registration, originals
// and overrides, oldest first.  Used by the audit view.
func (r *CheckinRepo) ListByRegistration(ctx context.Context, registrationID uint64) ([]model.CheckinRecord, error) {
	const q = `SELECT id, registration_id, guest_id, method, is_override, staff_id, dedupe_key, created_at
	           FROM checkin_records WHERE registration_id = ? ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.CheckinRecord
	for rows.Next() {
		var rec model.CheckinRecord
		if err := rows.Scan(&rec.ID, &rec.RegistrationID, &rec.GuestID, &rec.Method,
			&rec.IsOverride, &rec.StaffID, &rec.DedupeKey, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
