// Package uploader drains the sample queue and pushes every sample to the telemetry sink
// under the driver's session.
package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/session"
	"github.com/google/uuid"
)

// Sink delivers a single sample to the backend.
type Sink interface {
	Send(ctx context.Context, token string, item models.QueuedSample) error
}

// Queue is the part of the upload queue the uploader drives.
type Queue interface {
	DequeueBatch(ctx context.Context, limit int) ([]models.QueuedSample, error)
	Requeue(ctx context.Context, item models.QueuedSample) error
	Ack(ctx context.Context, id uuid.UUID) error
	Abandon(ctx context.Context, item models.QueuedSample, reason string) error
}

// Config tunes an Uploader. A sample is abandoned after MaxRetries+1 failed attempts.
type Config struct {
	Interval       time.Duration // Delay between drain cycles
	BatchSize      int           // Samples leased per cycle
	MaxRetries     int           // Requeues allowed before a sample is abandoned
	RequestTimeout time.Duration // Deadline of a single send, 10s when zero
}

const defaultRequestTimeout = 10 * time.Second

// Report summarizes one drain cycle.
type Report struct {
	Dequeued  int
	Sent      int
	Requeued  int
	Abandoned int
}

// Uploader periodically drains the queue in bounded batches. Failed samples go back to the
// tail of the queue until they exceed the retry ceiling, then they are abandoned.
type Uploader struct {
	log     *slog.Logger        // Logger for upload activity
	queue   Queue               // Durable sample queue
	sink    Sink                // Destination of the samples
	tokens  session.TokenSource // Fresh session token for every attempt
	metrics *metrics.Metrics    // Upload outcome and latency metrics
	cfg     Config

	mu        sync.Mutex
	unsettled []settlement // Outcomes the queue failed to record, retried on the next tick
}

type settleAction string

const (
	settleAck     settleAction = "ack"
	settleRequeue settleAction = "requeue"
	settleAbandon settleAction = "abandon"
)

// settlement is the outcome of an upload that still has to be written to the queue.
// Until it is, the sample stays leased and invisible to the next batches.
type settlement struct {
	action settleAction
	item   models.QueuedSample
	reason string
}

// New creates an uploader draining queue into sink. Every attempt asks tokens for a
// fresh session token.
func New(
	log *slog.Logger,
	queue Queue,
	sink Sink,
	tokens session.TokenSource,
	m *metrics.Metrics,
	cfg Config,
) *Uploader {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	return &Uploader{
		log:     log,
		queue:   queue,
		sink:    sink,
		tokens:  tokens,
		metrics: m,
		cfg:     cfg,
	}
}

// Run drains the queue on every interval until the context is cancelled.
func (u *Uploader) Run(ctx context.Context) {
	ticker := time.NewTicker(u.cfg.Interval)
	defer ticker.Stop()

	u.log.InfoContext(ctx, "Telemetry uploader started", "interval", u.cfg.Interval, "batch", u.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			u.log.InfoContext(ctx, "Telemetry uploader stopped.")
			return
		case <-ticker.C:
			u.Tick(ctx)
		}
	}
}

// Tick uploads one batch. Samples of the batch are sent in queue order. Outcomes left
// unrecorded by an earlier tick are written to the queue first.
func (u *Uploader) Tick(ctx context.Context) Report {
	u.mu.Lock()
	defer u.mu.Unlock()

	var report Report

	u.resettle(ctx)

	items, err := u.queue.DequeueBatch(ctx, u.cfg.BatchSize)
	if err != nil {
		u.log.ErrorContext(ctx, "Failed to dequeue samples", "error", err)
		return report
	}
	if len(items) == 0 {
		return report
	}
	report.Dequeued = len(items)

	for _, item := range items {
		u.upload(ctx, item, &report)
	}

	u.log.DebugContext(ctx, "Upload batch finished",
		"dequeued", report.Dequeued,
		"sent", report.Sent,
		"requeued", report.Requeued,
		"abandoned", report.Abandoned,
	)

	return report
}

func (u *Uploader) upload(ctx context.Context, item models.QueuedSample, report *Report) {
	if err := item.Begin(); err != nil {
		u.log.ErrorContext(ctx, "Skipping sample in unexpected state", "sample", item.ID, "error", err)
		return
	}

	sendErr := u.send(ctx, item)
	if sendErr == nil {
		u.metrics.Uploads.WithLabelValues("success").Inc()
		report.Sent++
		u.settle(ctx, settlement{action: settleAck, item: item})
		return
	}

	state, err := item.Fail(u.cfg.MaxRetries)
	if err != nil {
		u.log.ErrorContext(ctx, "Could not record failed upload", "sample", item.ID, "error", err)
		return
	}

	if state == models.StateFailed {
		u.metrics.Uploads.WithLabelValues("retry").Inc()
		report.Requeued++
		u.log.WarnContext(ctx, "Failed to upload sample, requeued",
			"sample", item.ID, "retry", item.RetryCount, "error", sendErr)
		u.settle(ctx, settlement{action: settleRequeue, item: item})
		return
	}

	u.metrics.Uploads.WithLabelValues("abandoned").Inc()
	report.Abandoned++
	u.log.ErrorContext(ctx, "Sample exceeded the retry limit and was abandoned",
		"sample", item.ID,
		"driver", item.DriverID,
		"captured_at", item.CapturedAt,
		"retries", item.RetryCount,
		"error", sendErr,
	)
	u.settle(ctx, settlement{action: settleAbandon, item: item, reason: sendErr.Error()})
}

// settle records an upload outcome in the queue. A failed write is kept and retried on the
// next tick so the sample does not stay leased until the next process start.
func (u *Uploader) settle(ctx context.Context, s settlement) {
	if err := u.apply(ctx, s); err != nil {
		u.log.ErrorContext(ctx, "Could not record upload outcome, retrying on next tick",
			"sample", s.item.ID, "action", s.action, "error", err)
		u.unsettled = append(u.unsettled, s)
	}
}

func (u *Uploader) resettle(ctx context.Context) {
	if len(u.unsettled) == 0 {
		return
	}

	pending := u.unsettled
	u.unsettled = nil
	for _, s := range pending {
		u.settle(ctx, s)
	}
}

func (u *Uploader) apply(ctx context.Context, s settlement) error {
	switch s.action {
	case settleAck:
		return u.queue.Ack(ctx, s.item.ID)
	case settleRequeue:
		return u.queue.Requeue(ctx, s.item)
	case settleAbandon:
		return u.queue.Abandon(ctx, s.item, s.reason)
	default:
		return fmt.Errorf("unknown settle action %q", s.action)
	}
}

// send counts a missing session as a failed attempt.
func (u *Uploader) send(ctx context.Context, item models.QueuedSample) error {
	token, err := u.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("no session token: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, u.cfg.RequestTimeout)
	defer cancel()

	startTime := time.Now()
	err = u.sink.Send(ctx, token, item)
	u.metrics.UploadSeconds.Observe(time.Since(startTime).Seconds())

	return err
}
