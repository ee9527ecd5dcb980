package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/checkin"
	"github.com/iliyamo/event-checkin/internal/middleware"
	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/repository"
)

// CheckinHandler exposes the door station endpoint.  The processor owns
// every verdict; this layer only shapes the HTTP envelope.  A duplicate
// is answered 200, not 4xx, because the station needs the original
// record to show the operator, not an error to retry.
type CheckinHandler struct {
	Processor *checkin.Processor
	Records   *repository.CheckinRepo
}

func NewCheckinHandler(p *checkin.Processor, records *repository.CheckinRepo) *CheckinHandler {
	return &CheckinHandler{Processor: p, Records: records}
}

type checkinReq struct {
	Ticket   string `json:"ticket"`
	Method   string `json:"method"`   // qr_scan (default) | manual
	Override bool   `json:"override"` // admin-only, enforced by route middleware
}

type checkinRecordPart struct {
	ID             uint64 `json:"id"`
	RegistrationID uint64 `json:"registration_id"`
	GuestID        uint64 `json:"guest_id"`
	Method         string `json:"method"`
	IsOverride     bool   `json:"is_override"`
	CheckedInAt    string `json:"checked_in_at"`
}

type checkinResp struct {
	Result   string             `json:"result"`
	Reason   string             `json:"reason,omitempty"`
	Record   *checkinRecordPart `json:"record,omitempty"`
	Original *checkinRecordPart `json:"original,omitempty"`
}

func toCheckinPart(rec *model.CheckinRecord) *checkinRecordPart {
	if rec == nil {
		return nil
	}
	return &checkinRecordPart{
		ID:             rec.ID,
		RegistrationID: rec.RegistrationID,
		GuestID:        rec.GuestID,
		Method:         string(rec.Method),
		IsOverride:     rec.IsOverride,
		CheckedInAt:    rec.CreatedAt.Format(timeLayout),
	}
}

// Submit processes one presented ticket.
func (h *CheckinHandler) Submit(c echo.Context) error {
	var req checkinReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	token := strings.TrimSpace(req.Ticket)
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticket required"})
	}
	var method model.CheckinMethod
	switch req.Method {
	case "", string(model.CheckinQRScan):
		method = model.CheckinQRScan
	case string(model.CheckinManual):
		method = model.CheckinManual
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid method"})
	}
	if req.Override {
		role, _ := c.Get("role").(string)
		if role != "ADMIN" {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "override requires admin"})
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Processor.Submit(ctx, token, checkin.SubmitOptions{
		Method:   method,
		StaffID:  middleware.StaffID(c),
		Override: req.Override,
	})
	if err != nil {
		if errors.Is(err, checkin.ErrOverrideRequiresStaff) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "override requires staff identity"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "checkin failed"})
	}

	resp := checkinResp{
		Record:   toCheckinPart(out.Record),
		Original: toCheckinPart(out.Original),
	}
	switch out.Kind {
	case checkin.Accepted:
		resp.Result = "accepted"
		return c.JSON(http.StatusOK, resp)
	case checkin.OverrideAccepted:
		resp.Result = "override_accepted"
		return c.JSON(http.StatusOK, resp)
	case checkin.DuplicateDetected:
		resp.Result = "duplicate"
		return c.JSON(http.StatusOK, resp)
	default:
		resp.Result = "rejected"
		resp.Reason = string(out.Reason)
		return c.JSON(http.StatusUnprocessableEntity, resp)
	}
}

// History returns every check-in record for a registration, originals
// and overrides, for the audit view.
func (h *CheckinHandler) History(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	recs, err := h.Records.ListByRegistration(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]*checkinRecordPart, 0, len(recs))
	for i := range recs {
		out = append(out, toCheckinPart(&recs[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"records": out})
}
