package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/repository"
	"github.com/iliyamo/event-checkin/internal/seating"
)

// SeatingHandler exposes the floor plan and the allocator.  Capacity
// refusals answer 409 with a reason the planner UI can show; a pair that
// does not fit reports pair_capacity so the UI can suggest a bigger
// table.
type SeatingHandler struct {
	Allocator *seating.Allocator
	Tables    *repository.TableRepo
}

func NewSeatingHandler(a *seating.Allocator, tables *repository.TableRepo) *SeatingHandler {
	return &SeatingHandler{Allocator: a, Tables: tables}
}

// ----- DTOs -----

type createTableReq struct {
	EventID   uint64  `json:"event_id"`
	Name      string  `json:"name"`
	Capacity  uint32  `json:"capacity"`
	TableType string  `json:"table_type"`
	PosX      float64 `json:"pos_x"`
	PosY      float64 `json:"pos_y"`
}

type moveTableReq struct {
	PosX float64 `json:"pos_x"`
	PosY float64 `json:"pos_y"`
}

type assignReq struct {
	GuestID    uint64  `json:"guest_id"`
	TableID    uint64  `json:"table_id"`
	SeatNumber *uint32 `json:"seat_number"`
}

type reassignReq struct {
	GuestID uint64 `json:"guest_id"`
	TableID uint64 `json:"table_id"`
}

type tablePart struct {
	ID        uint64  `json:"id"`
	EventID   uint64  `json:"event_id"`
	Name      string  `json:"name"`
	Capacity  uint32  `json:"capacity"`
	TableType string  `json:"table_type"`
	PosX      float64 `json:"pos_x"`
	PosY      float64 `json:"pos_y"`
}

type assignmentPart struct {
	ID         uint64  `json:"id"`
	TableID    uint64  `json:"table_id"`
	GuestID    uint64  `json:"guest_id"`
	SeatNumber *uint32 `json:"seat_number,omitempty"`
}

func toTablePart(t *model.Table) tablePart {
	return tablePart{
		ID:        t.ID,
		EventID:   t.EventID,
		Name:      t.Name,
		Capacity:  t.Capacity,
		TableType: string(t.TableType),
		PosX:      t.PosX,
		PosY:      t.PosY,
	}
}

func toAssignmentParts(as []model.TableAssignment) []assignmentPart {
	out := make([]assignmentPart, 0, len(as))
	for _, a := range as {
		out = append(out, assignmentPart{ID: a.ID, TableID: a.TableID, GuestID: a.GuestID, SeatNumber: a.SeatNumber})
	}
	return out
}

// CreateTable adds a table to the floor plan.
func (h *SeatingHandler) CreateTable(c echo.Context) error {
	var req createTableReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.EventID == 0 || strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id and name required"})
	}
	if req.Capacity == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be positive"})
	}
	tt := model.TableType(req.TableType)
	if tt != model.TableVIP {
		tt = model.TableStandard
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	t := &model.Table{
		EventID:   req.EventID,
		Name:      strings.TrimSpace(req.Name),
		Capacity:  req.Capacity,
		TableType: tt,
		PosX:      req.PosX,
		PosY:      req.PosY,
	}
	if err := h.Tables.Create(ctx, t); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create table failed"})
	}
	return c.JSON(http.StatusCreated, toTablePart(t))
}

// ListTables returns an event's tables with their current occupancy.
func (h *SeatingHandler) ListTables(c echo.Context) error {
	eventID := pathID(c, "event_id")
	if eventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event_id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	tables, err := h.Tables.ListByEvent(ctx, eventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	type tableWithSeats struct {
		tablePart
		Assignments []assignmentPart `json:"assignments"`
	}
	out := make([]tableWithSeats, 0, len(tables))
	for i := range tables {
		as, err := h.Tables.ListAssignmentsByTable(ctx, tables[i].ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		out = append(out, tableWithSeats{tablePart: toTablePart(&tables[i]), Assignments: toAssignmentParts(as)})
	}
	return c.JSON(http.StatusOK, echo.Map{"tables": out})
}

// MoveTable updates a table's floor-plan position.
func (h *SeatingHandler) MoveTable(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req moveTableReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Tables.UpdatePosition(ctx, id, req.PosX, req.PosY); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "move failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteTable removes an empty table.
func (h *SeatingHandler) DeleteTable(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	err := h.Tables.Delete(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "table not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "table still has guests assigned"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SeatingHandler) allocErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "guest or table not found"})
	case errors.Is(err, seating.ErrInsufficientCapacityForPair):
		return c.JSON(http.StatusConflict, echo.Map{"error": "table cannot seat the pair together", "reason": "pair_capacity"})
	case errors.Is(err, seating.ErrCapacityExceeded):
		return c.JSON(http.StatusConflict, echo.Map{"error": "table is full", "reason": "capacity"})
	case errors.Is(err, seating.ErrAlreadyAssigned), errors.Is(err, repository.ErrConflict):
		// ErrConflict surfaces the guest unique key when two admins seat
		// the same guest concurrently.
		return c.JSON(http.StatusConflict, echo.Map{"error": "guest already has a seat", "reason": "already_assigned"})
	case errors.Is(err, seating.ErrNotAssigned):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "guest has no seat"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "seating operation failed"})
}

// Assign seats a guest (and their resolved partner) at a table.
func (h *SeatingHandler) Assign(c echo.Context) error {
	var req assignReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.GuestID == 0 || req.TableID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "guest_id and table_id required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	created, err := h.Allocator.Assign(ctx, req.GuestID, req.TableID, req.SeatNumber)
	if err != nil {
		return h.allocErr(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"assignments": toAssignmentParts(created)})
}

// Unassign frees a guest's seat, and their partner's when paired.
func (h *SeatingHandler) Unassign(c echo.Context) error {
	guestID := pathID(c, "guest_id")
	if guestID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid guest_id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Allocator.Unassign(ctx, guestID); err != nil {
		return h.allocErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Reassign moves a guest (and partner) to another table atomically; on
// refusal the original seats remain.
func (h *SeatingHandler) Reassign(c echo.Context) error {
	var req reassignReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.GuestID == 0 || req.TableID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "guest_id and table_id required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	created, err := h.Allocator.Reassign(ctx, req.GuestID, req.TableID)
	if err != nil {
		return h.allocErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"assignments": toAssignmentParts(created)})
}
