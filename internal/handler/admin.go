package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/lifecycle"
	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/repository"
)

// AdminHandler groups the admin-only lifecycle decisions: approving and
// declining registered guests, and working the applicant queue.
type AdminHandler struct {
	Lifecycle *lifecycle.Service
	Guests    *repository.GuestRepo
}

func NewAdminHandler(svc *lifecycle.Service, guests *repository.GuestRepo) *AdminHandler {
	return &AdminHandler{Lifecycle: svc, Guests: guests}
}

type rejectReq struct {
	Reason string `json:"reason"`
}

type guestPart struct {
	ID        uint64  `json:"id"`
	Email     string  `json:"email"`
	FullName  string  `json:"full_name"`
	GuestType string  `json:"guest_type"`
	Status    string  `json:"status"`
	PairedID  *uint64 `json:"paired_with_id,omitempty"`
}

func toGuestPart(g model.Guest) guestPart {
	return guestPart{
		ID:        g.ID,
		Email:     g.Email,
		FullName:  g.FullName,
		GuestType: string(g.GuestType),
		Status:    string(g.Status),
		PairedID:  g.PairedWithID,
	}
}

func (h *AdminHandler) lifecycleErr(c echo.Context, err error, action string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "guest not found"})
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "guest cannot be " + action + " in current status"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": action + " failed"})
}

type createGuestReq struct {
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	GuestType string `json:"guest_type"`
	Partner   *struct {
		Email    string `json:"email"`
		FullName string `json:"full_name"`
	} `json:"partner,omitempty"`
}

// CreateGuest invites a guest directly by admin action.  A paying_paired
// guest may bring a partner, created and linked in the same transaction.
func (h *AdminHandler) CreateGuest(c echo.Context) error {
	var req createGuestReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email := strings.TrimSpace(req.Email)
	name := strings.TrimSpace(req.FullName)
	if email == "" || name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and full_name required"})
	}
	guestType := model.GuestType(req.GuestType)
	switch guestType {
	case model.GuestTypeVIP, model.GuestTypePayingSingle, model.GuestTypePayingPaired:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid guest_type"})
	}
	var partner *lifecycle.PartnerInfo
	if req.Partner != nil {
		pe := strings.TrimSpace(req.Partner.Email)
		pn := strings.TrimSpace(req.Partner.FullName)
		if pe == "" || pn == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "partner email and full_name required"})
		}
		partner = &lifecycle.PartnerInfo{Name: pn, Email: pe}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	g, p, err := h.Lifecycle.InviteGuest(ctx, email, name, guestType, partner)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrPartnerNotAllowed):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "partner requires guest_type paying_paired"})
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create guest failed"})
	}
	resp := echo.Map{"guest": toGuestPart(*g)}
	if p != nil {
		resp["partner"] = toGuestPart(*p)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Approve moves a registered guest to approved and issues their ticket.
func (h *AdminHandler) Approve(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Lifecycle.Approve(ctx, id); err != nil {
		return h.lifecycleErr(c, err, "approved")
	}
	return c.NoContent(http.StatusNoContent)
}

// Decline moves a registered guest to declined.
func (h *AdminHandler) Decline(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Lifecycle.Decline(ctx, id); err != nil {
		return h.lifecycleErr(c, err, "declined")
	}
	return c.NoContent(http.StatusNoContent)
}

// ApproveApplicant converts an applicant into an invited paying guest and
// returns the invitation credential for the notification system.
func (h *AdminHandler) ApproveApplicant(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	invite, exp, err := h.Lifecycle.ApproveApplicant(ctx, id)
	if err != nil {
		return h.lifecycleErr(c, err, "approved")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"invite":     invite,
		"expires_at": exp.Format(timeLayout),
	})
}

// RejectApplicant marks an applicant rejected with a reason.
func (h *AdminHandler) RejectApplicant(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req rejectReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reason required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Lifecycle.RejectApplicant(ctx, id, reason); err != nil {
		return h.lifecycleErr(c, err, "rejected")
	}
	return c.NoContent(http.StatusNoContent)
}

// ListByStatus pages through guests in one lifecycle status, e.g. the
// pending_approval queue.
func (h *AdminHandler) ListByStatus(c echo.Context) error {
	status := model.Status(c.QueryParam("status"))
	switch status {
	case model.StatusInvited, model.StatusPendingApproval, model.StatusRegistered,
		model.StatusApproved, model.StatusDeclined, model.StatusRejected:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	guests, err := h.Guests.ListByStatus(ctx, status, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]guestPart, 0, len(guests))
	for _, g := range guests {
		out = append(out, toGuestPart(g))
	}
	return c.JSON(http.StatusOK, echo.Map{"guests": out})
}
