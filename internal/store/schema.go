package store

import (
	"context"
	"database/sql"
	"log"
)

// Statements are idempotent so Migrate is safe to run on every start.
// The UNIQUE (user_id, date) constraint on attendance is load-bearing:
// duplicate check-ins must be rejected by the database, not by a
// check-then-act in application code.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS teachers (
		user_id              BIGINT PRIMARY KEY,
		username             TEXT,
		first_name           TEXT NOT NULL,
		last_name            TEXT,
		language             TEXT NOT NULL DEFAULT 'uz',
		is_admin             BOOLEAN NOT NULL DEFAULT FALSE,
		is_active            BOOLEAN NOT NULL DEFAULT TRUE,
		notification_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id                  UUID PRIMARY KEY,
		user_id             BIGINT NOT NULL REFERENCES teachers(user_id),
		date                DATE NOT NULL,
		check_in_time       TIMESTAMPTZ NOT NULL,
		check_in_latitude   DOUBLE PRECISION NOT NULL,
		check_in_longitude  DOUBLE PRECISION NOT NULL,
		check_out_time      TIMESTAMPTZ,
		check_out_latitude  DOUBLE PRECISION,
		check_out_longitude DOUBLE PRECISION,
		total_hours         DOUBLE PRECISION,
		status              TEXT NOT NULL DEFAULT 'checked_in',
		late_minutes        INTEGER NOT NULL DEFAULT 0,
		checkin_status      TEXT NOT NULL DEFAULT 'on_time',
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications_log (
		id                BIGSERIAL PRIMARY KEY,
		user_id           BIGINT NOT NULL,
		notification_type TEXT NOT NULL,
		sent_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		was_delivered     BOOLEAN NOT NULL DEFAULT TRUE,
		error_message     TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS admin_logs (
		id             BIGSERIAL PRIMARY KEY,
		admin_user_id  BIGINT NOT NULL,
		action         TEXT NOT NULL,
		target_user_id BIGINT,
		details        TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance(date)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_user_date ON attendance(user_id, date)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_sent_at ON notifications_log(sent_at)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications_log(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_teachers_notifications ON teachers(notification_enabled)`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	log.Println("database schema verified")
	return nil
}
