// Package database opens the MySQL connection pool and applies the
// schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates the schema if it does not exist.  Statements are
// idempotent so startup is safe on an already-initialized database.
//
// Two unique keys carry load-bearing invariants: registrations.guest_id
// (one registration per guest) and checkin_records.dedupe_key (one
// non-override check-in per registration; override rows store NULL,
// which MySQL unique indexes never treat as a collision).
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			name       VARCHAR(255) NOT NULL,
			starts_at  DATETIME NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS guests (
			id               BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			email            VARCHAR(255) NOT NULL,
			full_name        VARCHAR(255) NOT NULL,
			guest_type       ENUM('vip','paying_single','paying_paired','applicant') NOT NULL,
			status           ENUM('invited','pending_approval','registered','approved','declined','rejected') NOT NULL,
			paired_with_id   BIGINT UNSIGNED NULL,
			rejection_reason VARCHAR(512) NULL,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			UNIQUE KEY uq_guests_email (email),
			KEY idx_guests_status (status),
			CONSTRAINT fk_guests_pair FOREIGN KEY (paired_with_id) REFERENCES guests(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS registrations (
			id                  BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			guest_id            BIGINT UNSIGNED NOT NULL,
			event_id            BIGINT UNSIGNED NOT NULL,
			ticket_type         ENUM('vip_free','paid_single','paid_paired') NOT NULL,
			ticket_token        TEXT NULL,
			ticket_issued_at    DATETIME NULL,
			partner_name        VARCHAR(255) NULL,
			partner_email       VARCHAR(255) NULL,
			cancelled_at        DATETIME NULL,
			cancellation_reason VARCHAR(512) NULL,
			created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			UNIQUE KEY uq_registrations_guest (guest_id),
			KEY idx_registrations_event (event_id),
			KEY idx_registrations_cancelled (cancelled_at),
			CONSTRAINT fk_registrations_guest FOREIGN KEY (guest_id) REFERENCES guests(id),
			CONSTRAINT fk_registrations_event FOREIGN KEY (event_id) REFERENCES events(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS tables_ (
			id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			event_id   BIGINT UNSIGNED NOT NULL,
			name       VARCHAR(64) NOT NULL,
			capacity   INT UNSIGNED NOT NULL,
			table_type ENUM('standard','vip') NOT NULL DEFAULT 'standard',
			pos_x      DOUBLE NOT NULL DEFAULT 0,
			pos_y      DOUBLE NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			KEY idx_tables_event (event_id),
			CONSTRAINT fk_tables_event FOREIGN KEY (event_id) REFERENCES events(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS table_assignments (
			id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			table_id    BIGINT UNSIGNED NOT NULL,
			guest_id    BIGINT UNSIGNED NOT NULL,
			seat_number INT UNSIGNED NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			UNIQUE KEY uq_assignments_guest (guest_id),
			KEY idx_assignments_table (table_id),
			CONSTRAINT fk_assignments_table FOREIGN KEY (table_id) REFERENCES tables_(id),
			CONSTRAINT fk_assignments_guest FOREIGN KEY (guest_id) REFERENCES guests(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS checkin_records (
			id              BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			registration_id BIGINT UNSIGNED NOT NULL,
			guest_id        BIGINT UNSIGNED NOT NULL,
			method          ENUM('qr_scan','manual','override') NOT NULL,
			is_override     BOOLEAN NOT NULL DEFAULT FALSE,
			staff_id        BIGINT UNSIGNED NOT NULL DEFAULT 0,
			dedupe_key      BIGINT UNSIGNED NULL,
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			UNIQUE KEY uq_checkins_dedupe (dedupe_key),
			KEY idx_checkins_registration (registration_id),
			CONSTRAINT fk_checkins_registration FOREIGN KEY (registration_id) REFERENCES registrations(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS staff (
			id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			email         VARCHAR(255) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role          ENUM('ADMIN','STAFF') NOT NULL DEFAULT 'STAFF',
			is_active     BOOLEAN NOT NULL DEFAULT TRUE,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			UNIQUE KEY uq_staff_email (email)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			staff_id   BIGINT UNSIGNED NOT NULL,
			token_hash CHAR(64) NOT NULL,
			expires_at DATETIME NOT NULL,
			revoked_at DATETIME NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			UNIQUE KEY uq_refresh_hash (token_hash),
			KEY idx_refresh_staff (staff_id),
			CONSTRAINT fk_refresh_staff FOREIGN KEY (staff_id) REFERENCES staff(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
