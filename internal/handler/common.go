// Package handler implements the HTTP layer.  Handlers bind and validate
// input, call the services and translate their sentinel errors into
// status codes; no business rules live here.
package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

const timeLayout = time.RFC3339

// reqCtx derives a bounded context from the request so a stuck database
// never pins a handler goroutine.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// pathID parses a numeric path parameter; 0 means absent or malformed.
func pathID(c echo.Context, name string) uint64 {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
