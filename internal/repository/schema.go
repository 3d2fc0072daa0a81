package repository

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS telemetry_queue (
		id          UUID PRIMARY KEY,
		seq         BIGSERIAL NOT NULL,
		driver_id   TEXT NOT NULL,
		latitude    DOUBLE PRECISION NOT NULL,
		longitude   DOUBLE PRECISION NOT NULL,
		accuracy    DOUBLE PRECISION,
		speed       DOUBLE PRECISION,
		heading     DOUBLE PRECISION,
		captured_at TIMESTAMPTZ NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		state       TEXT NOT NULL DEFAULT 'pending',
		enqueued_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS telemetry_queue_state_seq_idx ON telemetry_queue (state, seq);`,
	`CREATE TABLE IF NOT EXISTS telemetry_dead_letter (
		id           UUID PRIMARY KEY,
		driver_id    TEXT NOT NULL,
		latitude     DOUBLE PRECISION NOT NULL,
		longitude    DOUBLE PRECISION NOT NULL,
		accuracy     DOUBLE PRECISION,
		speed        DOUBLE PRECISION,
		heading      DOUBLE PRECISION,
		captured_at  TIMESTAMPTZ NOT NULL,
		retry_count  INTEGER NOT NULL,
		reason       TEXT NOT NULL,
		abandoned_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS pod_pending (
		id                UUID PRIMARY KEY,
		booking_reference TEXT NOT NULL,
		payload           JSONB NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL,
		sync_status       TEXT NOT NULL DEFAULT 'pending',
		attempts          INTEGER NOT NULL DEFAULT 0,
		last_error        TEXT
	);`,
}

// Migrate creates the tables used by the pipeline when they do not exist yet.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	r.log.DebugContext(ctx, "Database schema is up to date", "statements", len(schema))

	return nil
}
