package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/report"
)

// ReportRepo supplies the read-only facts behind the attendance views.
// It implements report.Store.
type ReportRepo struct {
	db *sql.DB
}

// NewReportRepo constructs a ReportRepo with the given DB handle.
func NewReportRepo(db *sql.DB) *ReportRepo {
	return &ReportRepo{db: db}
}

// RegistrationFacts joins every registration with its guest, event and
// current check-in record.  Override records are excluded from the count
// so "attended" means the single authoritative check-in.
func (r *ReportRepo) RegistrationFacts(ctx context.Context) ([]report.RegistrationFact, error) {
	const q = `SELECT r.id, r.guest_id, r.event_id, r.ticket_type, r.ticket_token, r.ticket_issued_at,
	                  r.partner_name, r.partner_email, r.cancelled_at, r.cancellation_reason,
	                  r.created_at, r.updated_at,
	                  g.email, g.full_name, g.status, g.guest_type,
	                  e.starts_at,
	                  c.id IS NOT NULL, c.created_at
	           FROM registrations r
	           JOIN guests g ON g.id = r.guest_id
	           JOIN events e ON e.id = r.event_id
	           LEFT JOIN checkin_records c
	             ON c.registration_id = r.id AND c.is_override = FALSE
	           ORDER BY r.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []report.RegistrationFact
	for rows.Next() {
		var f report.RegistrationFact
		var checked bool
		var checkedAt sql.NullTime
		reg := &f.Registration
		err := rows.Scan(&reg.ID, &reg.GuestID, &reg.EventID, &reg.TicketType, &reg.TicketToken, &reg.TicketIssuedAt,
			&reg.PartnerName, &reg.PartnerEmail, &reg.CancelledAt, &reg.CancellationReason,
			&reg.CreatedAt, &reg.UpdatedAt,
			&f.GuestEmail, &f.GuestName, &f.GuestStatus, &f.GuestType,
			&f.EventStartsAt,
			&checked, &checkedAt)
		if err != nil {
			return nil, err
		}
		if checked {
			f.CheckinCount = 1
		}
		if checkedAt.Valid {
			t := checkedAt.Time
			f.CheckedInAt = &t
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountsByStatus tallies guests per lifecycle status.
func (r *ReportRepo) CountsByStatus(ctx context.Context) (map[model.Status]int, error) {
	const q = `SELECT status, COUNT(*) FROM guests GROUP BY status`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[model.Status]int)
	for rows.Next() {
		var s model.Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

// CountsByGuestType tallies guests per invitation category.
func (r *ReportRepo) CountsByGuestType(ctx context.Context) (map[model.GuestType]int, error) {
	const q = `SELECT guest_type, COUNT(*) FROM guests GROUP BY guest_type`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[model.GuestType]int)
	for rows.Next() {
		var t model.GuestType
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		out[t] = n
	}
	return out, rows.Err()
}
