package repository

import (
	"context"
	"log/slog"

	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/google/uuid"
)

// Repository is the durable local store of the pipeline. It keeps the telemetry
// upload queue, its dead letter table and the pending proof-of-delivery bundles.
type Repository struct {
	db  Database
	log *slog.Logger
}

// SampleStore is the storage contract of the telemetry upload queue.
type SampleStore interface {
	InsertSample(ctx context.Context, item models.QueuedSample) error
	LeaseSamples(ctx context.Context, limit int) ([]models.QueuedSample, error)
	RequeueSample(ctx context.Context, item models.QueuedSample) error
	DeleteSample(ctx context.Context, id uuid.UUID) error
	AbandonSample(ctx context.Context, item models.QueuedSample, reason string) error
	CountPending(ctx context.Context) (int, error)
	EvictOldest(ctx context.Context, count int) (int64, error)
	ResetInFlight(ctx context.Context) (int64, error)
}

// BundleStore is the storage contract of the offline proof-of-delivery queue.
type BundleStore interface {
	SaveBundle(ctx context.Context, bundle models.OfflineBundle) error
	ListBundles(ctx context.Context) ([]models.OfflineBundle, error)
	DeleteBundle(ctx context.Context, id uuid.UUID) error
	MarkBundleFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// NewRepository creates a new instance of Repository with the provided Database.
// It returns a pointer to the newly created Repository.
func NewRepository(db Database, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log}
}

// Ping checks that the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
