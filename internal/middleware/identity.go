package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// currentStaffID returns the authenticated staff identifier as a string
// for rate-limit keys.  Check-in stations are always authenticated, but
// the limiter also fronts unauthenticated probes, so "anon" is a valid
// bucket.
func currentStaffID(c echo.Context) string {
	switch v := c.Get("staff_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%.0f", v)
	case uint64:
		return fmt.Sprintf("%d", v)
	}
	return "anon"
}

// StaffID extracts the authenticated staff member's numeric ID from the
// context.  JWT numeric claims decode as float64.
func StaffID(c echo.Context) uint64 {
	switch v := c.Get("staff_id").(type) {
	case float64:
		return uint64(v)
	case uint64:
		return v
	case int64:
		return uint64(v)
	}
	return 0
}
