package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/event-checkin/internal/model"
)

// EventRepo provides data access for events.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo constructs an EventRepo with the given DB handle.
func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

// Create inserts an event. On success the event's ID is populated.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	const q = `INSERT INTO events (name, starts_at) VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, q, e.Name, e.StartsAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// GetByID fetches an event by id. Returns sql.ErrNoRows when absent.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	const q = `SELECT id, name, starts_at, created_at FROM events WHERE id = ? LIMIT 1`
	var e model.Event
	err := r.db.QueryRowContext(ctx, q, id).Scan(&e.ID, &e.Name, &e.StartsAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetByIDTx is GetByID within an existing transaction.
func (r *EventRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Event, error) {
	const q = `SELECT id, name, starts_at, created_at FROM events WHERE id = ? LIMIT 1`
	var e model.Event
	err := tx.QueryRowContext(ctx, q, id).Scan(&e.ID, &e.Name, &e.StartsAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns all events ordered by start time.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	const q = `SELECT id, name, starts_at, created_at FROM events ORDER BY starts_at`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.StartsAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
