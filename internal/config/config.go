// Package config loads application configuration from environment
// variables.
package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  TicketSecret signs entry tickets and is
// deliberately separate from JWTSecret, which signs staff sessions, so a
// leaked ticket key cannot mint operator credentials.
type Config struct {
	Env                string // application environment (e.g. "dev", "prod")
	Port               string // HTTP port to listen on
	DBUser             string // database username
	DBPass             string // database password (optional)
	DBHost             string // database host address
	DBPort             string // database port number
	DBName             string // database name
	JWTSecret          string // secret used to sign staff JWTs
	TicketSecret       string // secret used to sign entry tickets
	AccessTTLMin       int    // access token time-to-live in minutes
	RefreshTTLDays     int    // refresh token time-to-live in days
	TicketTTLHours     int    // entry ticket time-to-live in hours
	InviteTTLHours     int    // applicant invite time-to-live in hours
	CancelDeadlineDays int    // days before the event when cancellation closes
	RecentWindowDays   int    // trailing window for the recent-cancellations view
	BcryptCost         int    // bcrypt cost for password hashing
}

// Load reads configuration values from environment variables.  Required
// variables are enforced by must(); missing values exit with a fatal log
// message so a misconfigured box never serves traffic.
func Load() Config {
	return Config{
		Env:                must("APP_ENV"),
		Port:               must("APP_PORT"),
		DBUser:             must("DB_USER"),
		DBPass:             os.Getenv("DB_PASS"),
		DBHost:             must("DB_HOST"),
		DBPort:             must("DB_PORT"),
		DBName:             must("DB_NAME"),
		JWTSecret:          must("JWT_SECRET"),
		TicketSecret:       must("TICKET_SECRET"),
		AccessTTLMin:       mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays:     mustInt("REFRESH_TOKEN_TTL_DAYS"),
		TicketTTLHours:     intOr("TICKET_TTL_HOURS", 48),
		InviteTTLHours:     intOr("INVITE_TTL_HOURS", 24),
		CancelDeadlineDays: intOr("CANCEL_DEADLINE_DAYS", 7),
		RecentWindowDays:   intOr("RECENT_WINDOW_DAYS", 7),
		BcryptCost:         mustInt("BCRYPT_COST"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// intOr reads an optional integer variable, falling back to def when the
// variable is unset and exiting on malformed values.
func intOr(key string, def int) int {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
