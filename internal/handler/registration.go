package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/lifecycle"
	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/repository"
)

// RegistrationHandler exposes the guest lifecycle operations: completing
// a registration, cancelling it, re-issuing a ticket and the public
// application form.
type RegistrationHandler struct {
	Lifecycle *lifecycle.Service
	Regs      *repository.RegistrationRepo
}

func NewRegistrationHandler(svc *lifecycle.Service, regs *repository.RegistrationRepo) *RegistrationHandler {
	return &RegistrationHandler{Lifecycle: svc, Regs: regs}
}

// ----- DTOs -----

type completeReq struct {
	GuestID      uint64 `json:"guest_id"`
	EventID      uint64 `json:"event_id"`
	TicketType   string `json:"ticket_type"`
	PartnerName  string `json:"partner_name"`
	PartnerEmail string `json:"partner_email"`
}

type cancelReq struct {
	Reason string `json:"reason"`
}

type applyReq struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type regPart struct {
	ID             uint64  `json:"id"`
	GuestID        uint64  `json:"guest_id"`
	EventID        uint64  `json:"event_id"`
	TicketType     string  `json:"ticket_type"`
	TicketIssued   bool    `json:"ticket_issued"`
	TicketIssuedAt *string `json:"ticket_issued_at,omitempty"`
	PartnerName    *string `json:"partner_name,omitempty"`
	PartnerEmail   *string `json:"partner_email,omitempty"`
	CancelledAt    *string `json:"cancelled_at,omitempty"`
	CancelReason   *string `json:"cancellation_reason,omitempty"`
}

func toRegPart(r *model.Registration) regPart {
	p := regPart{
		ID:           r.ID,
		GuestID:      r.GuestID,
		EventID:      r.EventID,
		TicketType:   string(r.TicketType),
		TicketIssued: r.HasTicket(),
		PartnerName:  r.PartnerName,
		PartnerEmail: r.PartnerEmail,
		CancelReason: r.CancellationReason,
	}
	if r.TicketIssuedAt != nil {
		s := r.TicketIssuedAt.Format(timeLayout)
		p.TicketIssuedAt = &s
	}
	if r.CancelledAt != nil {
		s := r.CancelledAt.Format(timeLayout)
		p.CancelledAt = &s
	}
	return p
}

// Complete finishes an invited guest's registration.  VIP guests come
// back approved with a ticket already attached.
func (h *RegistrationHandler) Complete(c echo.Context) error {
	var req completeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.GuestID == 0 || req.EventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "guest_id and event_id required"})
	}
	tt := model.TicketType(req.TicketType)
	switch tt {
	case model.TicketVIPFree, model.TicketPaidSingle, model.TicketPaidPaired:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket_type"})
	}
	var partner *lifecycle.PartnerInfo
	if tt == model.TicketPaidPaired {
		partner = &lifecycle.PartnerInfo{
			Name:  strings.TrimSpace(req.PartnerName),
			Email: strings.ToLower(strings.TrimSpace(req.PartnerEmail)),
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	reg, err := h.Lifecycle.CompleteRegistration(ctx, req.GuestID, req.EventID, tt, partner)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "guest not found"})
		case errors.Is(err, lifecycle.ErrInvalidTransition):
			return c.JSON(http.StatusConflict, echo.Map{"error": "guest cannot register in current status"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}
	return c.JSON(http.StatusCreated, toRegPart(reg))
}

// Get returns one registration.
func (h *RegistrationHandler) Get(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	reg, err := h.Regs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "registration not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toRegPart(reg))
}

// Cancel cancels a registration inside the allowed window.  Each refusal
// carries its own message so the guest knows whether the window closed,
// the event passed or the registration was already cancelled.
func (h *RegistrationHandler) Cancel(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req cancelReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	var reason *string
	if r := strings.TrimSpace(req.Reason); r != "" {
		reason = &r
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	err := h.Lifecycle.Cancel(ctx, id, reason)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "registration not found"})
		case errors.Is(err, lifecycle.ErrAlreadyCancelled):
			return c.JSON(http.StatusConflict, echo.Map{"error": "registration already cancelled"})
		case errors.Is(err, lifecycle.ErrEventPassed):
			return c.JSON(http.StatusConflict, echo.Map{"error": "event has already taken place"})
		case errors.Is(err, lifecycle.ErrCancellationWindowClosed):
			return c.JSON(http.StatusConflict, echo.Map{"error": "cancellation window has closed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Reissue replaces the registration's entry ticket.  The previous ticket
// stops being accepted at the door as soon as the new one is stored.
func (h *RegistrationHandler) Reissue(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	token, exp, err := h.Lifecycle.ReissueTicket(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "registration not found"})
		case errors.Is(err, lifecycle.ErrAlreadyCancelled):
			return c.JSON(http.StatusConflict, echo.Map{"error": "registration is cancelled"})
		case errors.Is(err, lifecycle.ErrInvalidTransition):
			return c.JSON(http.StatusConflict, echo.Map{"error": "guest is not approved"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reissue failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ticket":     token,
		"expires_at": exp.Format(timeLayout),
	})
}

// Apply is the public application form for uninvited people.
func (h *RegistrationHandler) Apply(c echo.Context) error {
	var req applyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.FullName)
	if email == "" || name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and full_name required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	g, err := h.Lifecycle.Apply(ctx, email, name)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "apply failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"guest_id": g.ID,
		"status":   string(g.Status),
	})
}
