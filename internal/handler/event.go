package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/repository"
)

// EventHandler manages the events guests register for.
type EventHandler struct {
	Events *repository.EventRepo
}

func NewEventHandler(events *repository.EventRepo) *EventHandler {
	return &EventHandler{Events: events}
}

type createEventReq struct {
	Name     string `json:"name"`
	StartsAt string `json:"starts_at"` // RFC 3339
}

type eventPart struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	StartsAt string `json:"starts_at"`
}

// Create adds an event.
func (h *EventHandler) Create(c echo.Context) error {
	var req createEventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC 3339"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	e := &model.Event{Name: name, StartsAt: startsAt.UTC()}
	if err := h.Events.Create(ctx, e); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create event failed"})
	}
	return c.JSON(http.StatusCreated, eventPart{ID: e.ID, Name: e.Name, StartsAt: e.StartsAt.Format(timeLayout)})
}

// Get returns one event.
func (h *EventHandler) Get(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	e, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, eventPart{ID: e.ID, Name: e.Name, StartsAt: e.StartsAt.Format(timeLayout)})
}

// List returns all events ordered by start time.
func (h *EventHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	events, err := h.Events.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]eventPart, 0, len(events))
	for _, e := range events {
		out = append(out, eventPart{ID: e.ID, Name: e.Name, StartsAt: e.StartsAt.Format(timeLayout)})
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}
