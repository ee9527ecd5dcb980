package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/lifecycle"
)

// PaymentHandler receives payment outcomes from the external payment
// collaborator.  "paid" approves the registration and issues the entry
// ticket; "pending" is acknowledged with no status change.
type PaymentHandler struct {
	Lifecycle *lifecycle.Service
}

func NewPaymentHandler(svc *lifecycle.Service) *PaymentHandler {
	return &PaymentHandler{Lifecycle: svc}
}

type paymentOutcomeReq struct {
	RegistrationID uint64 `json:"registration_id"`
	Status         string `json:"status"`
}

// Outcome records one payment result.
func (h *PaymentHandler) Outcome(c echo.Context) error {
	var req paymentOutcomeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.RegistrationID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "registration_id required"})
	}
	if req.Status != "paid" && req.Status != "pending" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be paid or pending"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	err := h.Lifecycle.ReportPaymentOutcome(ctx, req.RegistrationID, req.Status == "paid")
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "registration not found"})
		case errors.Is(err, lifecycle.ErrInvalidTransition):
			return c.JSON(http.StatusConflict, echo.Map{"error": "registration not awaiting payment"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "record outcome failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
