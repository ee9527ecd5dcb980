package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/utils"
)

// StaffRepo provides data access for operator accounts.
type StaffRepo struct {
	db *sql.DB
}

// NewStaffRepo constructs a StaffRepo with the given DB handle.
func NewStaffRepo(db *sql.DB) *StaffRepo {
	return &StaffRepo{db: db}
}

const staffCols = `id, email, password_hash, role, is_active, created_at, updated_at`

// Create inserts a staff account and returns its ID.  The password is
// bcrypt-hashed with the given cost.  A duplicate email maps to
// ErrEmailExists.
func (r *StaffRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	const q = `INSERT INTO staff (email, password_hash, role) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, email, hash, role)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a staff account by normalized email.
func (r *StaffRepo) GetByEmail(ctx context.Context, email string) (model.Staff, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	const q = `SELECT ` + staffCols + ` FROM staff WHERE email = ? LIMIT 1`
	var s model.Staff
	err := r.db.QueryRowContext(ctx, q, email).Scan(&s.ID, &s.Email, &s.PasswordHash, &s.Role,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// GetByID fetches a staff account by id.
func (r *StaffRepo) GetByID(ctx context.Context, id uint64) (model.Staff, error) {
	const q = `SELECT ` + staffCols + ` FROM staff WHERE id = ? LIMIT 1`
	var s model.Staff
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.Email, &s.PasswordHash, &s.Role,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}
