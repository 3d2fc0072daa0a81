// Package capture runs the driver's location tracking session: it subscribes to a
// location source, throttles and validates positions, enqueues them for upload and
// supervises the subscription.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/UnknownOlympus/hermes/internal/geo"
	"github.com/UnknownOlympus/hermes/internal/location"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/notify"
	"github.com/UnknownOlympus/hermes/internal/session"
)

var (
	ErrNoDriverSession  = errors.New("no driver session")
	ErrPermissionDenied = errors.New("location permission denied")
	ErrAlreadyTracking  = errors.New("tracking is already running for another driver")
)

// Mode is the kind of capture the platform allowed.
type Mode string

const (
	ModeStopped        Mode = "stopped"
	ModeBackground     Mode = "background"
	ModeForegroundOnly Mode = "foreground_only"
)

// StartResult tells the caller which capture mode is active. Degraded is set when
// background permission was refused and positions are only captured in the foreground.
type StartResult struct {
	Mode     Mode `json:"mode"`
	Degraded bool `json:"degraded"`
}

// Status is a snapshot of the tracking session.
type Status struct {
	Running          bool      `json:"running"`
	Mode             Mode      `json:"mode"`
	DriverID         string    `json:"driver_id,omitempty"`
	LastSampleAt     time.Time `json:"last_sample_at"`
	SmoothedAccuracy float64   `json:"smoothed_accuracy"`
	Restarts         int       `json:"restarts"`
}

// Enqueuer accepts samples for upload.
type Enqueuer interface {
	Enqueue(ctx context.Context, item models.QueuedSample) error
}

// DriverStatusReporter publishes whether the driver is currently tracked.
type DriverStatusReporter interface {
	SetDriverActive(ctx context.Context, token, driverID string, active bool) error
}

// Config tunes a capture Service.
type Config struct {
	Interval           time.Duration // Throttle window and requested source interval
	SupervisorInterval time.Duration // How often the supervisor checks the source, 10s when zero
	RestartCooldown    time.Duration // Pause between stopping and restarting a dead source
	AccuracyAlpha      float64       // Smoothing factor of the reported accuracy, 0.3 when out of range
}

const (
	defaultSupervisorInterval = 10 * time.Second
	defaultAccuracyAlpha      = 0.3
)

type subscription struct {
	closed atomic.Bool
}

// Service runs one tracking session at a time: it throttles samples from the location
// source into the upload queue and restarts the source when the platform kills it.
type Service struct {
	source   location.Source
	queue    Enqueuer
	tokens   session.TokenSource
	reporter DriverStatusReporter
	notifier notify.Notifier
	cfg      Config
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
	wait     func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	running    bool
	mode       Mode
	driverID   string
	opts       location.Options
	throttle   *Throttle
	sub        *subscription
	cancel     context.CancelFunc
	lastSample time.Time
	accuracy   float64
	restarts   int

	wg sync.WaitGroup
}

// New creates a stopped capture service. Samples from source are enqueued into queue, and
// reporter is told when the driver starts and stops being tracked.
func New(
	source location.Source,
	queue Enqueuer,
	tokens session.TokenSource,
	reporter DriverStatusReporter,
	notifier notify.Notifier,
	cfg Config,
	m *metrics.Metrics,
	log *slog.Logger,
) *Service {
	if cfg.SupervisorInterval <= 0 {
		cfg.SupervisorInterval = defaultSupervisorInterval
	}
	if cfg.AccuracyAlpha <= 0 || cfg.AccuracyAlpha > 1 {
		cfg.AccuracyAlpha = defaultAccuracyAlpha
	}

	return &Service{
		source:   source,
		queue:    queue,
		tokens:   tokens,
		reporter: reporter,
		notifier: notifier,
		cfg:      cfg,
		metrics:  m,
		log:      log,
		now:      time.Now,
		wait:     sleepContext,
		mode:     ModeStopped,
	}
}

// Start begins tracking driverID. Foreground permission is required; without background
// permission tracking continues in the foreground only and the result is marked degraded.
// Starting an already running session for the same driver returns its current mode.
func (s *Service) Start(ctx context.Context, driverID string) (StartResult, error) {
	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return StartResult{}, ErrNoDriverSession
	}

	result, started, err := s.begin(ctx, driverID)
	if err != nil || !started {
		return result, err
	}

	s.log.InfoContext(ctx, "Location tracking started", "driver", driverID, "mode", result.Mode)
	s.announce(ctx, "Tracking started", "Location sharing is active.")
	s.reportStatus(ctx, driverID, true)

	return result, nil
}

func (s *Service) begin(ctx context.Context, driverID string) (StartResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		if s.driverID != driverID {
			return StartResult{}, false, fmt.Errorf("%w: %s", ErrAlreadyTracking, s.driverID)
		}

		return StartResult{Mode: s.mode, Degraded: s.mode == ModeForegroundOnly}, false, nil
	}

	fg, err := s.source.RequestForegroundPermission(ctx)
	if err != nil {
		return StartResult{}, false, fmt.Errorf("failed to request foreground permission: %w", err)
	}
	if fg != location.PermissionGranted {
		s.log.WarnContext(ctx, "Foreground location permission denied", "driver", driverID)
		return StartResult{}, false, ErrPermissionDenied
	}

	mode := ModeBackground
	bg, err := s.source.RequestBackgroundPermission(ctx)
	if err != nil || bg != location.PermissionGranted {
		mode = ModeForegroundOnly
		s.log.WarnContext(ctx, "Background location permission not granted, capturing in foreground only",
			"driver", driverID, "error", err)
	}

	opts := location.Options{
		Interval:          s.cfg.Interval,
		Background:        mode == ModeBackground,
		NotificationTitle: "Location tracking",
		NotificationBody:  "Your location is shared with dispatch while you are on duty.",
	}
	samples, err := s.source.Start(ctx, opts)
	if err != nil {
		return StartResult{}, false, fmt.Errorf("failed to start location source: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &subscription{}
	s.running = true
	s.mode = mode
	s.driverID = driverID
	s.opts = opts
	s.throttle = NewThrottle(s.cfg.Interval, s.now)
	s.sub = sub
	s.cancel = cancel
	s.lastSample = time.Time{}
	s.accuracy = 0
	s.restarts = 0

	s.wg.Add(2)
	go s.consume(sessionCtx, samples, sub)
	go s.supervise(sessionCtx)

	return StartResult{Mode: mode, Degraded: mode == ModeForegroundOnly}, true, nil
}

// Stop ends the tracking session. Samples already queued are left for the uploader.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mode = ModeStopped
	cancel, driverID := s.cancel, s.driverID
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	stopErr := s.source.Stop(ctx)
	s.wg.Wait()

	s.reportStatus(ctx, driverID, false)
	s.log.InfoContext(ctx, "Location tracking stopped", "driver", driverID)

	if stopErr != nil {
		return fmt.Errorf("failed to stop location source: %w", stopErr)
	}

	return nil
}

// Status returns a snapshot of the current session.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		Running:          s.running,
		Mode:             s.mode,
		DriverID:         s.driverID,
		LastSampleAt:     s.lastSample,
		SmoothedAccuracy: s.accuracy,
		Restarts:         s.restarts,
	}
}

func (s *Service) consume(ctx context.Context, samples <-chan models.GPSSample, sub *subscription) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-samples:
			if !ok {
				sub.closed.Store(true)
				s.log.WarnContext(ctx, "Location source closed the position stream")
				return
			}
			s.handle(ctx, sample)
		}
	}
}

func (s *Service) handle(ctx context.Context, sample models.GPSSample) {
	if err := geo.Validate(sample); err != nil {
		s.metrics.SamplesCaptured.WithLabelValues("invalid").Inc()
		s.log.DebugContext(ctx, "Dropping invalid position", "error", err)
		return
	}

	s.mu.Lock()
	throttle, driverID := s.throttle, s.driverID
	s.mu.Unlock()

	if !throttle.Allow() {
		s.metrics.SamplesCaptured.WithLabelValues("throttled").Inc()
		return
	}

	now := s.now()
	if err := s.queue.Enqueue(ctx, models.NewQueuedSample(driverID, sample, now)); err != nil {
		s.metrics.SamplesCaptured.WithLabelValues("dropped").Inc()
		s.log.ErrorContext(ctx, "Failed to enqueue position", "driver", driverID, "error", err)
		return
	}
	s.metrics.SamplesCaptured.WithLabelValues("enqueued").Inc()

	s.mu.Lock()
	s.lastSample = now
	if sample.Accuracy != nil {
		s.accuracy = geo.SmoothAccuracy(s.accuracy, *sample.Accuracy, s.cfg.AccuracyAlpha)
	}
	s.mu.Unlock()
}

func (s *Service) supervise(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SupervisorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

// check compares the session state with the state of the platform task and forces a
// restart when the task died while the session is still running.
func (s *Service) check(ctx context.Context) {
	s.mu.Lock()
	running, sub := s.running, s.sub
	s.mu.Unlock()

	if !running {
		return
	}

	switch {
	case sub.closed.Load():
		s.restart(ctx, "stream_closed")
	case !s.source.Running(ctx):
		s.restart(ctx, "task_stopped")
	}
}

func (s *Service) restart(ctx context.Context, reason string) {
	s.log.WarnContext(ctx, "Location task is not running, forcing a restart", "reason", reason)

	if err := s.source.Stop(ctx); err != nil {
		s.log.WarnContext(ctx, "Failed to stop location source before restart", "error", err)
	}
	if err := s.wait(ctx, s.cfg.RestartCooldown); err != nil {
		return
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	opts := s.opts
	s.mu.Unlock()

	samples, err := s.source.Start(ctx, opts)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to restart location source", "reason", reason, "error", err)
		return
	}

	sub := &subscription{}
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		_ = s.source.Stop(ctx)
		return
	}
	s.sub = sub
	s.restarts++
	s.wg.Add(1)
	s.mu.Unlock()

	go s.consume(ctx, samples, sub)

	s.metrics.CaptureRestarts.WithLabelValues(reason).Inc()
	s.log.InfoContext(ctx, "Location tracking restarted", "reason", reason)
	s.announce(ctx, "Tracking restarted", "Location sharing was interrupted and has resumed.")
}

func (s *Service) announce(ctx context.Context, title, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, title, body); err != nil {
		s.log.WarnContext(ctx, "Failed to show notification", "title", title, "error", err)
	}
}

func (s *Service) reportStatus(ctx context.Context, driverID string, active bool) {
	if s.reporter == nil {
		return
	}

	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "Skipping driver status update", "driver", driverID, "error", err)
		return
	}
	if err := s.reporter.SetDriverActive(ctx, token, driverID, active); err != nil {
		s.log.WarnContext(ctx, "Failed to update driver status", "driver", driverID, "active", active, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
