// Package queue is the persistent FIFO between the capture service and the uploader.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/repository"
	"github.com/google/uuid"
)

// ErrNotFailed is returned by Requeue for a sample that did not record a failed attempt.
var ErrNotFailed = errors.New("only failed samples can be requeued")

// Queue serializes every operation on the durable sample store. The capture callback and
// the uploader tick share one instance.
type Queue struct {
	mu      sync.Mutex
	store   repository.SampleStore
	log     *slog.Logger
	metrics *metrics.Metrics
	maxSize int
}

// New creates a queue over store. A positive maxSize enables the high-water mark: once the
// pending count reaches it the oldest pending samples are evicted to make room.
func New(store repository.SampleStore, log *slog.Logger, m *metrics.Metrics, maxSize int) *Queue {
	return &Queue{
		store:   store,
		log:     log,
		metrics: m,
		maxSize: maxSize,
	}
}

// Enqueue appends a sample to the tail of the queue.
func (q *Queue) Enqueue(ctx context.Context, item models.QueuedSample) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxSize > 0 {
		if err := q.makeRoom(ctx); err != nil {
			return err
		}
	}

	item.State = models.StatePending
	if err := q.store.InsertSample(ctx, item); err != nil {
		return fmt.Errorf("failed to enqueue sample: %w", err)
	}
	q.metrics.QueueDepth.Inc()

	return nil
}

func (q *Queue) makeRoom(ctx context.Context) error {
	size, err := q.store.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to check queue size: %w", err)
	}
	if size < q.maxSize {
		return nil
	}

	evicted, err := q.store.EvictOldest(ctx, size-q.maxSize+1)
	if err != nil {
		return fmt.Errorf("failed to evict oldest samples: %w", err)
	}
	q.metrics.QueueEvictions.Add(float64(evicted))
	q.metrics.QueueDepth.Sub(float64(evicted))
	q.log.WarnContext(ctx, "Upload queue reached its high-water mark, oldest samples evicted",
		"evicted", evicted, "max_size", q.maxSize)

	return nil
}

// DequeueBatch leases up to limit samples from the head of the queue, oldest first.
// Leased samples stay stored until they are acknowledged, requeued or abandoned.
func (q *Queue) DequeueBatch(ctx context.Context, limit int) ([]models.QueuedSample, error) {
	if limit <= 0 {
		return nil, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.store.LeaseSamples(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue batch: %w", err)
	}
	q.metrics.QueueDepth.Sub(float64(len(items)))

	return items, nil
}

// Requeue appends a failed sample back to the tail of the queue with its new retry count.
func (q *Queue) Requeue(ctx context.Context, item models.QueuedSample) error {
	if item.State != models.StateFailed {
		return fmt.Errorf("%w: sample %s is %s", ErrNotFailed, item.ID, item.State)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.RequeueSample(ctx, item); err != nil {
		return fmt.Errorf("failed to requeue sample: %w", err)
	}
	q.metrics.QueueDepth.Inc()

	return nil
}

// Ack removes a delivered sample.
func (q *Queue) Ack(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.DeleteSample(ctx, id); err != nil {
		return fmt.Errorf("failed to acknowledge sample: %w", err)
	}

	return nil
}

// Abandon drops a sample that exhausted its retries into the dead letter store.
func (q *Queue) Abandon(ctx context.Context, item models.QueuedSample, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.AbandonSample(ctx, item, reason); err != nil {
		return fmt.Errorf("failed to abandon sample: %w", err)
	}

	return nil
}

// Size returns the number of samples waiting for upload.
func (q *Queue) Size(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	size, err := q.store.CountPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	q.metrics.QueueDepth.Set(float64(size))

	return size, nil
}

// Recover returns samples leased by a process that died before finishing their upload.
// It must run before the uploader starts.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	q.mu.Lock()
	reset, err := q.store.ResetInFlight(ctx)
	q.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("failed to recover queue: %w", err)
	}
	if reset > 0 {
		q.log.InfoContext(ctx, "Recovered samples left in flight by a previous run", "count", reset)
	}

	return q.Size(ctx)
}
