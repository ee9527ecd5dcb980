// Package router wires HTTP routes to handlers and applies the
// middleware chain for each group.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/handler"
	"github.com/iliyamo/event-checkin/internal/middleware"
)

// Handlers collects every handler the router mounts.
type Handlers struct {
	Auth         *handler.AuthHandler
	Registration *handler.RegistrationHandler
	Payment      *handler.PaymentHandler
	Checkin      *handler.CheckinHandler
	Admin        *handler.AdminHandler
	Seating      *handler.SeatingHandler
	Stats        *handler.StatsHandler
	Events       *handler.EventHandler
}

// Register mounts all routes.  checkinLimiter fronts only the check-in
// route, where a runaway scanner is the realistic flood source.
func Register(e *echo.Echo, h Handlers, jwtSecret string, checkinLimiter echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)

	// Session endpoints need no prior authentication.
	auth := e.Group("/v1/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)

	// Public: uninvited people apply for consideration.
	e.POST("/v1/apply", h.Registration.Apply)

	// Payment collaborator callback.  Authenticated: the collaborator
	// holds a staff credential provisioned for it.
	paid := e.Group("/v1/payments")
	paid.Use(middleware.JWTAuth(jwtSecret))
	paid.Use(middleware.RequireRole("ADMIN", "STAFF"))
	paid.POST("/outcome", h.Payment.Outcome)

	// Staff and admin routes.
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.Use(middleware.RequireRole("ADMIN", "STAFF"))

	v1.GET("/auth/me", h.Auth.Me)

	v1.POST("/registrations", h.Registration.Complete)
	v1.GET("/registrations/:id", h.Registration.Get)
	v1.POST("/registrations/:id/cancel", h.Registration.Cancel)

	if checkinLimiter != nil {
		v1.POST("/checkin", h.Checkin.Submit, checkinLimiter)
	} else {
		v1.POST("/checkin", h.Checkin.Submit)
	}

	v1.GET("/events", h.Events.List)
	v1.GET("/events/:id", h.Events.Get)
	v1.GET("/seating/events/:event_id/tables", h.Seating.ListTables)

	// Admin-only operations.
	admin := e.Group("/v1")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole("ADMIN"))

	admin.POST("/auth/register", h.Auth.Register)

	admin.POST("/events", h.Events.Create)

	admin.POST("/guests", h.Admin.CreateGuest)
	admin.GET("/guests", h.Admin.ListByStatus)
	admin.POST("/guests/:id/approve", h.Admin.Approve)
	admin.POST("/guests/:id/decline", h.Admin.Decline)
	admin.POST("/applicants/:id/approve", h.Admin.ApproveApplicant)
	admin.POST("/applicants/:id/reject", h.Admin.RejectApplicant)

	admin.POST("/registrations/:id/reissue", h.Registration.Reissue)
	admin.GET("/registrations/:id/checkins", h.Checkin.History)

	admin.POST("/seating/tables", h.Seating.CreateTable)
	admin.PATCH("/seating/tables/:id/position", h.Seating.MoveTable)
	admin.DELETE("/seating/tables/:id", h.Seating.DeleteTable)
	admin.POST("/seating/assignments", h.Seating.Assign)
	admin.DELETE("/seating/assignments/:guest_id", h.Seating.Unassign)
	admin.POST("/seating/assignments/reassign", h.Seating.Reassign)

	admin.GET("/reports/cancelled", h.Stats.Cancelled)
	admin.GET("/reports/cancelled/recent", h.Stats.RecentCancellations)
	admin.GET("/reports/no-shows", h.Stats.NoShows)
	admin.GET("/reports/attended", h.Stats.Attended)
	admin.GET("/reports/counts", h.Stats.Counts)
}
