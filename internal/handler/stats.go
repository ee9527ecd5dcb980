package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/report"
)

// StatsHandler serves the read-only attendance views.
type StatsHandler struct {
	Reports *report.Aggregator
}

func NewStatsHandler(agg *report.Aggregator) *StatsHandler {
	return &StatsHandler{Reports: agg}
}

type factPart struct {
	RegistrationID uint64  `json:"registration_id"`
	GuestID        uint64  `json:"guest_id"`
	GuestEmail     string  `json:"guest_email"`
	GuestName      string  `json:"guest_name"`
	TicketType     string  `json:"ticket_type"`
	EventStartsAt  string  `json:"event_starts_at"`
	CancelledAt    *string `json:"cancelled_at,omitempty"`
	CancelReason   *string `json:"cancellation_reason,omitempty"`
	CheckedInAt    *string `json:"checked_in_at,omitempty"`
}

func toFactParts(facts []report.RegistrationFact) []factPart {
	out := make([]factPart, 0, len(facts))
	for _, f := range facts {
		p := factPart{
			RegistrationID: f.Registration.ID,
			GuestID:        f.Registration.GuestID,
			GuestEmail:     f.GuestEmail,
			GuestName:      f.GuestName,
			TicketType:     string(f.Registration.TicketType),
			EventStartsAt:  f.EventStartsAt.Format(timeLayout),
			CancelReason:   f.Registration.CancellationReason,
		}
		if f.Registration.CancelledAt != nil {
			s := f.Registration.CancelledAt.Format(timeLayout)
			p.CancelledAt = &s
		}
		if f.CheckedInAt != nil {
			s := f.CheckedInAt.Format(timeLayout)
			p.CheckedInAt = &s
		}
		out = append(out, p)
	}
	return out
}

func (h *StatsHandler) serveFacts(c echo.Context, fetch func() ([]report.RegistrationFact, error)) error {
	facts, err := fetch()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"registrations": toFactParts(facts)})
}

// Cancelled lists all cancelled registrations.
func (h *StatsHandler) Cancelled(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	return h.serveFacts(c, func() ([]report.RegistrationFact, error) { return h.Reports.Cancelled(ctx) })
}

// RecentCancellations lists cancellations inside the trailing window,
// newest first.
func (h *StatsHandler) RecentCancellations(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	return h.serveFacts(c, func() ([]report.RegistrationFact, error) { return h.Reports.RecentCancellations(ctx) })
}

// NoShows lists guests who held a ticket for a past event and never
// checked in.  Computed live on every request.
func (h *StatsHandler) NoShows(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	return h.serveFacts(c, func() ([]report.RegistrationFact, error) { return h.Reports.PotentialNoShow(ctx) })
}

// Attended lists registrations with a recorded check-in.
func (h *StatsHandler) Attended(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	return h.serveFacts(c, func() ([]report.RegistrationFact, error) { return h.Reports.Attended(ctx) })
}

// Counts returns raw guest tallies by status and by guest type, for
// dashboards to derive whatever views they need.
func (h *StatsHandler) Counts(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	byStatus, err := h.Reports.CountsByStatus(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	byType, err := h.Reports.CountsByGuestType(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"by_status":     byStatus,
		"by_guest_type": byType,
	})
}
