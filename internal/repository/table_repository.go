package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-checkin/internal/model"
)

// TableRepo provides data access for seating tables and their guest
// assignments.  The allocator's capacity invariant rests on
// GetForUpdateTx: the SELECT ... FOR UPDATE on the table row serializes
// every allocation against the same table, so the recount that follows
// sees all committed assignments.
type TableRepo struct {
	db *sql.DB
}

// NewTableRepo constructs a TableRepo with the given DB handle.
func NewTableRepo(db *sql.DB) *TableRepo {
	return &TableRepo{db: db}
}

const tableCols = `id, event_id, name, capacity, table_type, pos_x, pos_y, created_at`

// Create inserts a table. On success the table's ID is populated.
func (r *TableRepo) Create(ctx context.Context, t *model.Table) error {
	const q = `INSERT INTO tables_ (event_id, name, capacity, table_type, pos_x, pos_y)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, t.EventID, t.Name, t.Capacity, t.TableType, t.PosX, t.PosY)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetByID fetches a table by id. Returns sql.ErrNoRows when absent.
func (r *TableRepo) GetByID(ctx context.Context, id uint64) (*model.Table, error) {
	const q = `SELECT ` + tableCols + ` FROM tables_ WHERE id = ? LIMIT 1`
	return scanTable(r.db.QueryRowContext(ctx, q, id))
}

// GetForUpdateTx fetches a table by id and locks its row until the
// transaction ends.
func (r *TableRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Table, error) {
	const q = `SELECT ` + tableCols + ` FROM tables_ WHERE id = ? LIMIT 1 FOR UPDATE`
	return scanTable(tx.QueryRowContext(ctx, q, id))
}

func scanTable(row *sql.Row) (*model.Table, error) {
	var t model.Table
	err := row.Scan(&t.ID, &t.EventID, &t.Name, &t.Capacity, &t.TableType, &t.PosX, &t.PosY, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByEvent returns all tables for an event ordered by name.
func (r *TableRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Table, error) {
	const q = `SELECT ` + tableCols + ` FROM tables_ WHERE event_id = ? ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Table
	for rows.Next() {
		var t model.Table
		if err := rows.Scan(&t.ID, &t.EventID, &t.Name, &t.Capacity, &t.TableType, &t.PosX, &t.PosY, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdatePosition moves a table on the floor plan.
func (r *TableRepo) UpdatePosition(ctx context.Context, id uint64, posX, posY float64) error {
	const q = `UPDATE tables_ SET pos_x = ?, pos_y = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, posX, posY, id)
	return err
}

// Delete removes a table that has no assignments.  A table still holding
// guests maps to ErrConflict so handlers can answer 409.
func (r *TableRepo) Delete(ctx context.Context, id uint64) error {
	const q = `DELETE FROM tables_ WHERE id = ?
	           AND NOT EXISTS (SELECT 1 FROM table_assignments WHERE table_id = tables_.id)`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either absent or still occupied; distinguish for the caller.
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tables_ WHERE id = ?)`, id).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrConflict
		}
		return sql.ErrNoRows
	}
	return nil
}

// CountAssignmentsTx counts a table's assignments inside the caller's
// transaction.  Meaningful only after GetForUpdateTx has locked the
// table row.
func (r *TableRepo) CountAssignmentsTx(ctx context.Context, tx *sql.Tx, tableID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM table_assignments WHERE table_id = ?`
	var n int
	err := tx.QueryRowContext(ctx, q, tableID).Scan(&n)
	return n, err
}

// GetAssignmentByGuestTx fetches a guest's assignment, if any.
func (r *TableRepo) GetAssignmentByGuestTx(ctx context.Context, tx *sql.Tx, guestID uint64) (*model.TableAssignment, error) {
	const q = `SELECT id, table_id, guest_id, seat_number, created_at
	           FROM table_assignments WHERE guest_id = ? LIMIT 1`
	var a model.TableAssignment
	err := tx.QueryRowContext(ctx, q, guestID).Scan(&a.ID, &a.TableID, &a.GuestID, &a.SeatNumber, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// InsertAssignmentTx seats a guest.  The unique key on guest_id backs up
// the allocator's in-transaction checks; a collision maps to ErrConflict.
func (r *TableRepo) InsertAssignmentTx(ctx context.Context, tx *sql.Tx, a *model.TableAssignment) error {
	const q = `INSERT INTO table_assignments (table_id, guest_id, seat_number) VALUES (?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, a.TableID, a.GuestID, a.SeatNumber)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// DeleteAssignmentByGuestTx frees a guest's seat.
func (r *TableRepo) DeleteAssignmentByGuestTx(ctx context.Context, tx *sql.Tx, guestID uint64) error {
	const q = `DELETE FROM table_assignments WHERE guest_id = ?`
	_, err := tx.ExecContext(ctx, q, guestID)
	return err
}

// ListAssignmentsByTable returns a table's current occupants for the
// floor-plan view.
func (r *TableRepo) ListAssignmentsByTable(ctx context.Context, tableID uint64) ([]model.TableAssignment, error) {
	const q = `SELECT id, table_id, guest_id, seat_number, created_at
	           FROM table_assignments WHERE table_id = ? ORDER BY seat_number IS NULL, seat_number`
	rows, err := r.db.QueryContext(ctx, q, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TableAssignment
	for rows.Next() {
		var a model.TableAssignment
		if err := rows.Scan(&a.ID, &a.TableID, &a.GuestID, &a.SeatNumber, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
