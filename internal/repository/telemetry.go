package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/google/uuid"
)

const insertSampleQuery = `
	INSERT INTO telemetry_queue (
		id, driver_id, latitude, longitude, accuracy, speed, heading, captured_at, retry_count, state, enqueued_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10);
`

const leaseSamplesQuery = `
	UPDATE telemetry_queue
	SET state = 'in_flight'
	WHERE id IN (
		SELECT id
		FROM telemetry_queue
		WHERE state = 'pending'
		ORDER BY seq ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	RETURNING id, seq, driver_id, latitude, longitude, accuracy, speed, heading, captured_at, retry_count, enqueued_at;
`

const requeueSampleQuery = `
	INSERT INTO telemetry_queue (
		id, driver_id, latitude, longitude, accuracy, speed, heading, captured_at, retry_count, state, enqueued_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10)
	ON CONFLICT (id) DO UPDATE
	SET
		state = 'pending',
		retry_count = EXCLUDED.retry_count,
		seq = nextval(pg_get_serial_sequence('telemetry_queue', 'seq'));
`

const deleteSampleQuery = `DELETE FROM telemetry_queue WHERE id = $1;`

const deadLetterQuery = `
	INSERT INTO telemetry_dead_letter (
		id, driver_id, latitude, longitude, accuracy, speed, heading, captured_at, retry_count, reason
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO NOTHING;
`

const countPendingQuery = `SELECT count(*) FROM telemetry_queue WHERE state = 'pending';`

const evictOldestQuery = `
	DELETE FROM telemetry_queue
	WHERE id IN (
		SELECT id
		FROM telemetry_queue
		WHERE state = 'pending'
		ORDER BY seq ASC
		LIMIT $1
	);
`

const resetInFlightQuery = `UPDATE telemetry_queue SET state = 'pending' WHERE state = 'in_flight';`

// InsertSample appends a sample to the tail of the upload queue.
func (r *Repository) InsertSample(ctx context.Context, item models.QueuedSample) error {
	_, err := r.db.Exec(ctx, insertSampleQuery,
		item.ID, item.DriverID, item.Latitude, item.Longitude, item.Accuracy, item.Speed, item.Heading,
		item.CapturedAt, item.RetryCount, item.EnqueuedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert queued sample: %w", err)
	}

	return nil
}

// LeaseSamples takes up to limit pending samples from the head of the queue and marks them
// in flight. Leased samples are invisible to other readers until they are deleted,
// requeued or reset by ResetInFlight. The result is ordered oldest first.
func (r *Repository) LeaseSamples(ctx context.Context, limit int) ([]models.QueuedSample, error) {
	rows, err := r.db.Query(ctx, leaseSamplesQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to lease queued samples: %w", err)
	}
	defer rows.Close()

	type leased struct {
		seq  int64
		item models.QueuedSample
	}
	var batch []leased

	for rows.Next() {
		var row leased
		if errScan := rows.Scan(
			&row.item.ID, &row.seq, &row.item.DriverID, &row.item.Latitude, &row.item.Longitude,
			&row.item.Accuracy, &row.item.Speed, &row.item.Heading, &row.item.CapturedAt,
			&row.item.RetryCount, &row.item.EnqueuedAt,
		); errScan != nil {
			return nil, fmt.Errorf("failed to scan queued sample: %w", errScan)
		}
		row.item.State = models.StatePending
		if row.item.RetryCount > 0 {
			row.item.State = models.StateFailed
		}
		batch = append(batch, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read row: %w", err)
	}

	// RETURNING does not preserve the order of the sub-select.
	sort.Slice(batch, func(i, j int) bool { return batch[i].seq < batch[j].seq })

	items := make([]models.QueuedSample, 0, len(batch))
	for _, row := range batch {
		items = append(items, row.item)
	}

	return items, nil
}

// RequeueSample puts a sample back at the tail of the queue with its current retry count.
// Samples that are no longer stored are inserted again.
func (r *Repository) RequeueSample(ctx context.Context, item models.QueuedSample) error {
	_, err := r.db.Exec(ctx, requeueSampleQuery,
		item.ID, item.DriverID, item.Latitude, item.Longitude, item.Accuracy, item.Speed, item.Heading,
		item.CapturedAt, item.RetryCount, item.EnqueuedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to requeue sample: %w", err)
	}

	return nil
}

// DeleteSample removes a delivered sample.
func (r *Repository) DeleteSample(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, deleteSampleQuery, id); err != nil {
		return fmt.Errorf("failed to delete queued sample: %w", err)
	}

	return nil
}

// AbandonSample moves a sample that exhausted its retries into the dead letter table.
func (r *Repository) AbandonSample(ctx context.Context, item models.QueuedSample, reason string) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, deleteSampleQuery, item.ID); err != nil {
		return fmt.Errorf("failed to delete abandoned sample: %w", err)
	}

	if _, err = tx.Exec(ctx, deadLetterQuery,
		item.ID, item.DriverID, item.Latitude, item.Longitude, item.Accuracy, item.Speed, item.Heading,
		item.CapturedAt, item.RetryCount, reason,
	); err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit abandoned sample: %w", err)
	}

	return nil
}

// CountPending returns the number of samples waiting for upload. Leased samples are not counted.
func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, countPendingQuery).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count queued samples: %w", err)
	}

	return count, nil
}

// EvictOldest drops up to count samples from the head of the queue.
func (r *Repository) EvictOldest(ctx context.Context, count int) (int64, error) {
	tag, err := r.db.Exec(ctx, evictOldestQuery, count)
	if err != nil {
		return 0, fmt.Errorf("failed to evict queued samples: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ResetInFlight returns samples leased by a previous process back to pending.
func (r *Repository) ResetInFlight(ctx context.Context) (int64, error) {
	start := time.Now()
	tag, err := r.db.Exec(ctx, resetInFlightQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to reset in-flight samples: %w", err)
	}
	r.log.DebugContext(ctx, "In-flight samples returned to the queue",
		"count", tag.RowsAffected(), "duration", time.Since(start))

	return tag.RowsAffected(), nil
}
