package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied by EnsureSchema.  Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS showings (
		id                  VARCHAR(64)     NOT NULL PRIMARY KEY,
		title               VARCHAR(255)    NOT NULL,
		showtime            DATETIME        NOT NULL,
		base_price_cents    BIGINT          NOT NULL,
		current_price_cents BIGINT          NOT NULL,
		price_version       BIGINT UNSIGNED NOT NULL DEFAULT 0,
		created_at          DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS show_seats (
		showing_id  VARCHAR(64)     NOT NULL,
		seat_number VARCHAR(16)     NOT NULL,
		position    INT             NOT NULL,
		status      ENUM('available','reserved','booked') NOT NULL DEFAULT 'available',
		holder      VARCHAR(128)    NULL,
		lease_id    CHAR(36)        NULL,
		held_at     DATETIME(3)     NULL,
		expires_at  DATETIME(3)     NULL,
		booked_by   VARCHAR(128)    NULL,
		version     BIGINT UNSIGNED NOT NULL DEFAULT 0,
		PRIMARY KEY (showing_id, seat_number),
		KEY idx_show_seats_status (showing_id, status),
		CONSTRAINT fk_show_seats_showing FOREIGN KEY (showing_id) REFERENCES showings (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates the tables this package needs if they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
