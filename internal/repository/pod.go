package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/google/uuid"
)

const saveBundleQuery = `
	INSERT INTO pod_pending (id, booking_reference, payload, created_at, sync_status, attempts, last_error)
	VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
	ON CONFLICT (id) DO UPDATE
	SET
		payload = EXCLUDED.payload,
		sync_status = EXCLUDED.sync_status;
`

const listBundlesQuery = `
	SELECT id, booking_reference, payload, created_at, sync_status, attempts, COALESCE(last_error, '')
	FROM pod_pending
	ORDER BY created_at ASC;
`

const deleteBundleQuery = `DELETE FROM pod_pending WHERE id = $1;`

const markBundleFailedQuery = `
	UPDATE pod_pending
	SET
		attempts = attempts + 1,
		sync_status = 'failed',
		last_error = $1
	WHERE id = $2;
`

// bundlePayload is the JSONB document holding the attachments of a bundle.
type bundlePayload struct {
	Blobs  []models.Blob     `json:"blobs"`
	Fields map[string]string `json:"fields,omitempty"`
}

// SaveBundle stores a proof-of-delivery bundle that could not be synced.
func (r *Repository) SaveBundle(ctx context.Context, bundle models.OfflineBundle) error {
	payload, err := json.Marshal(bundlePayload{Blobs: bundle.Blobs, Fields: bundle.Fields})
	if err != nil {
		return fmt.Errorf("failed to encode bundle payload: %w", err)
	}

	status := bundle.SyncStatus
	if status == "" {
		status = models.SyncPending
	}

	_, err = r.db.Exec(ctx, saveBundleQuery,
		bundle.ID, bundle.BookingReference, payload, bundle.CreatedAt, string(status), bundle.Attempts, bundle.LastError,
	)
	if err != nil {
		return fmt.Errorf("failed to save pending bundle: %w", err)
	}

	return nil
}

// ListBundles returns every pending bundle, oldest first.
func (r *Repository) ListBundles(ctx context.Context) ([]models.OfflineBundle, error) {
	rows, err := r.db.Query(ctx, listBundlesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending bundles: %w", err)
	}
	defer rows.Close()

	var bundles []models.OfflineBundle
	for rows.Next() {
		var (
			bundle  models.OfflineBundle
			raw     []byte
			status  string
			payload bundlePayload
		)
		if errScan := rows.Scan(
			&bundle.ID, &bundle.BookingReference, &raw, &bundle.CreatedAt, &status, &bundle.Attempts, &bundle.LastError,
		); errScan != nil {
			return nil, fmt.Errorf("failed to scan pending bundle: %w", errScan)
		}
		if errDecode := json.Unmarshal(raw, &payload); errDecode != nil {
			return nil, fmt.Errorf("failed to decode bundle %s payload: %w", bundle.ID, errDecode)
		}
		bundle.Blobs = payload.Blobs
		bundle.Fields = payload.Fields
		bundle.SyncStatus = models.SyncStatus(status)
		bundles = append(bundles, bundle)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read row: %w", err)
	}

	return bundles, nil
}

// DeleteBundle removes a bundle once it reached the backend.
func (r *Repository) DeleteBundle(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, deleteBundleQuery, id); err != nil {
		return fmt.Errorf("failed to delete pending bundle: %w", err)
	}

	return nil
}

// MarkBundleFailed records a failed sync attempt for a bundle.
func (r *Repository) MarkBundleFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	if _, err := r.db.Exec(ctx, markBundleFailedQuery, errMsg, id); err != nil {
		return fmt.Errorf("failed to update pending bundle: %w", err)
	}

	return nil
}
