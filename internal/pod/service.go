// Package pod saves proofs of delivery, falling back to a durable local queue when the
// backend cannot be reached, and synchronizes the queue once connectivity returns.
package pod

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/repository"
	"github.com/UnknownOlympus/hermes/internal/session"
	"github.com/google/uuid"
)

var ErrInvalidBundle = errors.New("proof of delivery has no booking reference")

// Outcome tells where a saved proof of delivery ended up.
type Outcome string

const (
	OutcomeSynced Outcome = "synced"
	OutcomeQueued Outcome = "queued"
)

type SaveOutcome struct {
	Outcome  Outcome   `json:"outcome"`
	BundleID uuid.UUID `json:"bundle_id"`
	Reason   string    `json:"reason,omitempty"`
}

type SyncReport struct {
	Attempted int  `json:"attempted"`
	Synced    int  `json:"synced"`
	Failed    int  `json:"failed"`
	Remaining int  `json:"remaining"`
	Offline   bool `json:"offline"`
}

// Backend stores attachments and delivery records.
type Backend interface {
	UploadBlob(ctx context.Context, token, path, contentType string, data []byte) (string, error)
	InsertProofOfDelivery(ctx context.Context, token string, record models.ProofOfDelivery) error
}

// Connectivity reports whether the backend can currently be reached.
type Connectivity interface {
	Online(ctx context.Context) bool
}

type Service struct {
	store        repository.BundleStore
	backend      Backend
	tokens       session.TokenSource
	connectivity Connectivity
	metrics      *metrics.Metrics
	log          *slog.Logger
	now          func() time.Time

	syncMu sync.Mutex
}

func NewService(
	store repository.BundleStore,
	backend Backend,
	tokens session.TokenSource,
	connectivity Connectivity,
	m *metrics.Metrics,
	log *slog.Logger,
) *Service {
	return &Service{
		store:        store,
		backend:      backend,
		tokens:       tokens,
		connectivity: connectivity,
		metrics:      m,
		log:          log,
		now:          time.Now,
	}
}

// SavePOD delivers the bundle to the backend. When the device is offline or any step of the
// delivery fails, the bundle is stored locally and the call still succeeds with
// OutcomeQueued. Only a failure of the local store is returned as an error.
func (s *Service) SavePOD(ctx context.Context, bundle models.OfflineBundle) (SaveOutcome, error) {
	if strings.TrimSpace(bundle.BookingReference) == "" {
		return SaveOutcome{}, ErrInvalidBundle
	}
	if bundle.ID == uuid.Nil {
		bundle.ID = uuid.New()
	}
	if bundle.CreatedAt.IsZero() {
		bundle.CreatedAt = s.now()
	}
	bundle.SyncStatus = models.SyncPending

	if !s.connectivity.Online(ctx) {
		return s.keep(ctx, bundle, "offline")
	}

	if err := s.deliver(ctx, bundle); err != nil {
		s.log.WarnContext(ctx, "Failed to deliver proof of delivery, keeping it for sync",
			"booking", bundle.BookingReference, "error", err)
		bundle.Attempts = 1
		bundle.LastError = err.Error()
		return s.keep(ctx, bundle, err.Error())
	}

	s.metrics.ProofOfDelivery.WithLabelValues("synced").Inc()
	s.log.InfoContext(ctx, "Proof of delivery saved", "booking", bundle.BookingReference, "blobs", len(bundle.Blobs))

	return SaveOutcome{Outcome: OutcomeSynced, BundleID: bundle.ID}, nil
}

func (s *Service) keep(ctx context.Context, bundle models.OfflineBundle, reason string) (SaveOutcome, error) {
	if err := s.store.SaveBundle(ctx, bundle); err != nil {
		return SaveOutcome{}, fmt.Errorf("failed to store proof of delivery offline: %w", err)
	}
	s.metrics.ProofOfDelivery.WithLabelValues("queued").Inc()
	s.log.InfoContext(ctx, "Proof of delivery queued for sync", "booking", bundle.BookingReference, "reason", reason)

	return SaveOutcome{Outcome: OutcomeQueued, BundleID: bundle.ID, Reason: reason}, nil
}

// SyncPending retries every stored bundle, oldest first. Delivered bundles are removed;
// failed ones stay with their attempt count and last error. There is no retry limit.
func (s *Service) SyncPending(ctx context.Context) (SyncReport, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	bundles, err := s.store.ListBundles(ctx)
	if err != nil {
		return SyncReport{}, fmt.Errorf("failed to list pending bundles: %w", err)
	}

	report := SyncReport{Remaining: len(bundles)}
	if len(bundles) == 0 {
		return report, nil
	}
	if !s.connectivity.Online(ctx) {
		report.Offline = true
		s.log.DebugContext(ctx, "Skipping proof of delivery sync while offline", "pending", len(bundles))
		return report, nil
	}

	for _, bundle := range bundles {
		if ctx.Err() != nil {
			break
		}
		report.Attempted++

		if err = s.deliver(ctx, bundle); err != nil {
			report.Failed++
			s.metrics.ProofOfDelivery.WithLabelValues("sync_failed").Inc()
			s.log.WarnContext(ctx, "Failed to sync proof of delivery",
				"booking", bundle.BookingReference, "attempts", bundle.Attempts+1, "error", err)
			if err = s.store.MarkBundleFailed(ctx, bundle.ID, err.Error()); err != nil {
				s.log.ErrorContext(ctx, "Could not record failed sync", "bundle", bundle.ID, "error", err)
			}
			continue
		}

		report.Synced++
		s.metrics.ProofOfDelivery.WithLabelValues("synced").Inc()
		if err = s.store.DeleteBundle(ctx, bundle.ID); err != nil {
			s.log.ErrorContext(ctx, "Could not remove synced bundle", "bundle", bundle.ID, "error", err)
			continue
		}
		report.Remaining--
	}

	s.log.InfoContext(ctx, "Proof of delivery sync finished",
		"synced", report.Synced, "failed", report.Failed, "remaining", report.Remaining)

	return report, nil
}

// deliver uploads every attachment and then inserts the record referencing them.
func (s *Service) deliver(ctx context.Context, bundle models.OfflineBundle) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("no session token: %w", err)
	}

	urls := make(map[string]string, len(bundle.Blobs))
	for i, blob := range bundle.Blobs {
		name := objectName(i, blob.Name)
		path := bundle.BookingReference + "/" + bundle.ID.String() + "/" + name
		url, uploadErr := s.backend.UploadBlob(ctx, token, path, blob.ContentType, blob.Data)
		if uploadErr != nil {
			return uploadErr
		}
		urls[name] = url
	}

	record := models.ProofOfDelivery{
		BookingReference: bundle.BookingReference,
		Fields:           bundle.Fields,
		BlobURLs:         urls,
		CapturedAt:       bundle.CreatedAt,
	}

	return s.backend.InsertProofOfDelivery(ctx, token, record)
}

// objectName is unique within a bundle: the attachment position prefixes the name, so two
// photos both called photo.jpg do not overwrite each other.
func objectName(i int, name string) string {
	if name == "" {
		return fmt.Sprintf("attachment-%d", i+1)
	}

	return fmt.Sprintf("%d-%s", i+1, name)
}
