package mysql

import (
	"context"
	"database/sql"
)

// schema holds the idempotent DDL for every table the server uses.
// The UNIQUE index on memberships (reservation_id, user_id) is load
// bearing: it prevents duplicate membership rows at write time instead
// of cleaning them up after the fact.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		nickname      VARCHAR(64)  NOT NULL,
		role          VARCHAR(16)  NOT NULL DEFAULT 'USER',
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_hash (token_hash),
		KEY idx_refresh_user (user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS stores (
		id             BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		owner_id       BIGINT UNSIGNED NOT NULL,
		name           VARCHAR(255) NOT NULL,
		category       VARCHAR(64)  NOT NULL DEFAULT '',
		deposit_amount BIGINT NOT NULL DEFAULT 0,
		created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id                BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		host_id           BIGINT UNSIGNED NOT NULL,
		title             VARCHAR(255) NOT NULL,
		status            VARCHAR(16) NOT NULL DEFAULT 'RECRUITING',
		participant_count INT UNSIGNED NOT NULL DEFAULT 0,
		max_participants  INT UNSIGNED NOT NULL,
		store_id          BIGINT UNSIGNED NULL,
		store_selected_by BIGINT UNSIGNED NULL,
		store_selected_at DATETIME NULL,
		meeting_at        DATETIME NOT NULL,
		created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_reservations_status (status)
	)`,
	`CREATE TABLE IF NOT EXISTS memberships (
		id             BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		reservation_id BIGINT UNSIGNED NOT NULL,
		user_id        BIGINT UNSIGNED NOT NULL,
		kicked         BOOLEAN NOT NULL DEFAULT FALSE,
		joined_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_membership (reservation_id, user_id),
		KEY idx_memberships_user (user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		room_id    BIGINT UNSIGNED NOT NULL,
		seq        BIGINT UNSIGNED NOT NULL,
		sender_id  BIGINT UNSIGNED NULL,
		body       TEXT NOT NULL,
		payload    JSON NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (room_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS read_cursors (
		room_id       BIGINT UNSIGNED NOT NULL,
		user_id       BIGINT UNSIGNED NOT NULL,
		last_read_seq BIGINT UNSIGNED NOT NULL DEFAULT 0,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (room_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS payment_sessions (
		id                 BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		reservation_id     BIGINT UNSIGNED NOT NULL,
		store_id           BIGINT UNSIGNED NOT NULL,
		per_person_amount  BIGINT NOT NULL,
		total_amount       BIGINT NOT NULL,
		total_participants INT UNSIGNED NOT NULL,
		completed_payments INT UNSIGNED NOT NULL DEFAULT 0,
		deadline           DATETIME NOT NULL,
		status             VARCHAR(16) NOT NULL DEFAULT 'IN_PROGRESS',
		created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_sessions_reservation (reservation_id, status)
	)`,
	`CREATE TABLE IF NOT EXISTS payment_records (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		session_id BIGINT UNSIGNED NOT NULL,
		user_id    BIGINT UNSIGNED NOT NULL,
		status     VARCHAR(16) NOT NULL DEFAULT 'PENDING',
		method     VARCHAR(32) NULL,
		paid_at    DATETIME NULL,
		UNIQUE KEY uq_record (session_id, user_id)
	)`,
}

// EnsureSchema creates any missing tables.  Safe to run on every
// startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
