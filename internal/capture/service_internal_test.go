package capture

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/UnknownOlympus/hermes/internal/location"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/queue"
	"github.com/UnknownOlympus/hermes/internal/session"
	"github.com/UnknownOlympus/hermes/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	fg, bg   location.Permission
	startErr error
	running  bool
	ch       chan models.GPSSample
	attempts int
	starts   int
	stops    int
	opts     location.Options
}

func newFakeSource() *fakeSource {
	return &fakeSource{fg: location.PermissionGranted, bg: location.PermissionGranted}
}

func (f *fakeSource) RequestForegroundPermission(context.Context) (location.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fg, nil
}

func (f *fakeSource) RequestBackgroundPermission(context.Context) (location.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bg, nil
}

func (f *fakeSource) Start(_ context.Context, opts location.Options) (<-chan models.GPSSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts++
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.ch = make(chan models.GPSSample)
	f.running = true
	f.starts++
	f.opts = opts

	return f.ch, nil
}

func (f *fakeSource) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stops++
	f.running = false
	if f.ch != nil {
		close(f.ch)
		f.ch = nil
	}

	return nil
}

func (f *fakeSource) Running(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// kill simulates the platform killing the task without closing the stream.
func (f *fakeSource) kill() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
}

// endStream closes the stream while the platform still reports the task as running.
func (f *fakeSource) endStream() {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.ch)
	f.ch = nil
}

func (f *fakeSource) setStartErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startErr = err
}

func (f *fakeSource) counts() (attempts, starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts, f.starts, f.stops
}

func (f *fakeSource) send(t *testing.T, sample models.GPSSample) {
	t.Helper()

	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()
	require.NotNil(t, ch, "source is not streaming")

	select {
	case ch <- sample:
	case <-time.After(2 * time.Second):
		t.Fatal("sample was not consumed")
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc      *Service
	source   *fakeSource
	store    *mocks.MemorySampleStore
	metrics  *metrics.Metrics
	notifier *mocks.Notifier
	reporter *mocks.DriverStatusReporter
	clock    *fakeClock
}

func newHarness(t *testing.T, supervisorInterval time.Duration) *harness {
	t.Helper()

	h := &harness{
		source:   newFakeSource(),
		store:    mocks.NewMemorySampleStore(),
		metrics:  metrics.NewMetrics(prometheus.NewRegistry()),
		notifier: mocks.NewNotifier(t),
		reporter: mocks.NewDriverStatusReporter(t),
		clock:    &fakeClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)},
	}
	q := queue.New(h.store, slog.Default(), h.metrics, 0)
	h.svc = New(h.source, q, session.StaticTokenSource("token"), h.reporter, h.notifier, Config{
		Interval:           3 * time.Second,
		SupervisorInterval: supervisorInterval,
		RestartCooldown:    4 * time.Second,
	}, h.metrics, slog.Default())
	h.svc.now = h.clock.Now
	h.svc.wait = func(context.Context, time.Duration) error { return nil }

	return h
}

// start runs a session for driver-1 with permissive collaborators.
func (h *harness) start(t *testing.T) StartResult {
	t.Helper()

	h.notifier.On("Notify", mock.Anything, "Tracking started", mock.Anything).Return(nil).Once()
	h.reporter.On("SetDriverActive", mock.Anything, "token", "driver-1", true).Return(nil).Once()
	h.reporter.On("SetDriverActive", mock.Anything, "token", "driver-1", false).Return(nil).Maybe()

	result, err := h.svc.Start(t.Context(), "driver-1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.svc.Stop(context.Background()) })

	return result
}

func sampleAt(lat float64) models.GPSSample {
	return models.GPSSample{Latitude: lat, Longitude: 14.5146}
}

// invalid is sent after a burst: once the source hands it over, every earlier sample
// has been handled by the consumer.
var invalid = models.GPSSample{Latitude: 91, Longitude: 0}

func TestStart_Errors(t *testing.T) {
	t.Run("no driver session", func(t *testing.T) {
		h := newHarness(t, time.Hour)

		_, err := h.svc.Start(t.Context(), "  ")

		require.ErrorIs(t, err, ErrNoDriverSession)
		attempts, _, _ := h.source.counts()
		assert.Zero(t, attempts)
	})

	t.Run("foreground permission denied", func(t *testing.T) {
		h := newHarness(t, time.Hour)
		h.source.fg = location.PermissionDenied

		_, err := h.svc.Start(t.Context(), "driver-1")

		require.ErrorIs(t, err, ErrPermissionDenied)
		attempts, _, _ := h.source.counts()
		assert.Zero(t, attempts)
		assert.False(t, h.svc.Status().Running)
	})

	t.Run("source fails to start", func(t *testing.T) {
		h := newHarness(t, time.Hour)
		h.source.setStartErr(assert.AnError)

		_, err := h.svc.Start(t.Context(), "driver-1")

		require.ErrorIs(t, err, assert.AnError)
		assert.False(t, h.svc.Status().Running)
	})
}

func TestStart_BackgroundDeniedDegrades(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.source.bg = location.PermissionDenied

	result := h.start(t)

	assert.Equal(t, StartResult{Mode: ModeForegroundOnly, Degraded: true}, result)
	assert.False(t, h.source.opts.Background)
	status := h.svc.Status()
	assert.True(t, status.Running)
	assert.Equal(t, ModeForegroundOnly, status.Mode)
	assert.Equal(t, "driver-1", status.DriverID)
}

func TestStart_AlreadyRunning(t *testing.T) {
	h := newHarness(t, time.Hour)
	first := h.start(t)

	again, err := h.svc.Start(t.Context(), "driver-1")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	_, err = h.svc.Start(t.Context(), "driver-2")
	require.ErrorIs(t, err, ErrAlreadyTracking)

	attempts, _, _ := h.source.counts()
	assert.Equal(t, 1, attempts)
}

func TestStart_StatusReportIsBestEffort(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.notifier.On("Notify", mock.Anything, "Tracking started", mock.Anything).Return(assert.AnError).Once()
	h.reporter.On("SetDriverActive", mock.Anything, "token", "driver-1", true).Return(assert.AnError).Once()
	h.reporter.On("SetDriverActive", mock.Anything, "token", "driver-1", false).Return(nil).Once()

	result, err := h.svc.Start(t.Context(), "driver-1")
	require.NoError(t, err)
	assert.Equal(t, ModeBackground, result.Mode)

	require.NoError(t, h.svc.Stop(t.Context()))
}

func TestCapture_ThrottleKeepsFirstSampleOfBurst(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.start(t)

	for i := range 5 {
		h.source.send(t, sampleAt(35.80+float64(i)/100))
	}
	h.source.send(t, invalid)

	items, err := h.store.LeaseSamples(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.InDelta(t, 35.80, items[0].Latitude, 1e-9)
	assert.Equal(t, "driver-1", items[0].DriverID)
	assert.Equal(t, models.StatePending, items[0].State)
	assert.InDelta(t, 4, testutil.ToFloat64(h.metrics.SamplesCaptured.WithLabelValues("throttled")), 0)

	h.clock.Advance(3 * time.Second)
	h.source.send(t, sampleAt(35.90))
	h.source.send(t, invalid)

	items, err = h.store.LeaseSamples(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.InDelta(t, 35.90, items[0].Latitude, 1e-9)
}

func TestCapture_InvalidSamplesAreDropped(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.start(t)

	negative := -1.0
	h.source.send(t, invalid)
	h.source.send(t, models.GPSSample{Latitude: 35.9, Longitude: 14.5, Accuracy: &negative})
	h.source.send(t, invalid)

	assert.Zero(t, h.store.Stored())
	assert.InDelta(t, 3, testutil.ToFloat64(h.metrics.SamplesCaptured.WithLabelValues("invalid")), 0)
	assert.True(t, h.svc.Status().LastSampleAt.IsZero())
}

func TestCapture_StatusTracksAccuracy(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.start(t)

	first, second := 10.0, 20.0
	h.source.send(t, models.GPSSample{Latitude: 35.9, Longitude: 14.5, Accuracy: &first})
	h.clock.Advance(3 * time.Second)
	h.source.send(t, models.GPSSample{Latitude: 35.9, Longitude: 14.5, Accuracy: &second})
	h.source.send(t, invalid)

	status := h.svc.Status()
	assert.InDelta(t, 13.0, status.SmoothedAccuracy, 1e-9)
	assert.Equal(t, h.clock.Now(), status.LastSampleAt)
}

func TestSupervisor_RestartsKilledTask(t *testing.T) {
	h := newHarness(t, 5*time.Millisecond)
	var cooldown atomic.Int64
	h.svc.wait = func(_ context.Context, d time.Duration) error {
		cooldown.Store(int64(d))
		return nil
	}
	h.start(t)
	h.notifier.On("Notify", mock.Anything, "Tracking restarted", mock.Anything).Return(nil).Once()

	h.source.kill()

	require.Eventually(t, func() bool { return h.svc.Status().Restarts == 1 }, 2*time.Second, 5*time.Millisecond)
	_, starts, stops := h.source.counts()
	assert.Equal(t, 2, starts)
	assert.GreaterOrEqual(t, stops, 1)
	assert.Equal(t, int64(4*time.Second), cooldown.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.CaptureRestarts.WithLabelValues("task_stopped")), 0)

	h.clock.Advance(time.Minute)
	h.source.send(t, sampleAt(35.9))
	h.source.send(t, invalid)
	assert.Equal(t, 1, h.store.Stored())
}

func TestSupervisor_RestartsClosedStream(t *testing.T) {
	h := newHarness(t, 5*time.Millisecond)
	h.start(t)
	h.notifier.On("Notify", mock.Anything, "Tracking restarted", mock.Anything).Return(nil).Once()

	h.source.endStream()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.metrics.CaptureRestarts.WithLabelValues("stream_closed")) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.svc.Status().Restarts)
}

func TestSupervisor_RetriesUntilSourceStarts(t *testing.T) {
	h := newHarness(t, 5*time.Millisecond)
	h.start(t)
	h.source.setStartErr(assert.AnError)

	h.source.kill()

	require.Eventually(t, func() bool {
		attempts, _, _ := h.source.counts()
		return attempts >= 4
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, h.svc.Status().Restarts)
	assert.True(t, h.svc.Status().Running)

	h.notifier.On("Notify", mock.Anything, "Tracking restarted", mock.Anything).Return(nil).Once()
	h.source.setStartErr(nil)

	require.Eventually(t, func() bool { return h.svc.Status().Restarts == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestSupervisor_StopDuringCooldown(t *testing.T) {
	h := newHarness(t, 5*time.Millisecond)
	var waiting atomic.Bool
	h.svc.wait = func(ctx context.Context, _ time.Duration) error {
		waiting.Store(true)
		<-ctx.Done()
		return ctx.Err()
	}
	h.start(t)

	h.source.kill()
	require.Eventually(t, waiting.Load, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.svc.Stop(t.Context()))

	attempts, _, _ := h.source.counts()
	assert.Equal(t, 1, attempts)
	assert.Zero(t, h.svc.Status().Restarts)
}

func TestStop_LeavesQueueIntact(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.start(t)
	h.source.send(t, sampleAt(35.9))
	h.source.send(t, invalid)

	require.NoError(t, h.svc.Stop(t.Context()))

	assert.Equal(t, 1, h.store.Stored())
	status := h.svc.Status()
	assert.False(t, status.Running)
	assert.Equal(t, ModeStopped, status.Mode)
	assert.False(t, h.source.Running(t.Context()))
	h.reporter.AssertCalled(t, "SetDriverActive", mock.Anything, "token", "driver-1", false)

	require.NoError(t, h.svc.Stop(t.Context()))
	h.reporter.AssertNumberOfCalls(t, "SetDriverActive", 2)
}

func TestStart_WithoutTokenSkipsStatusReport(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.svc.tokens = session.StaticTokenSource("")
	h.notifier.On("Notify", mock.Anything, "Tracking started", mock.Anything).Return(nil).Once()

	_, err := h.svc.Start(t.Context(), "driver-1")
	require.NoError(t, err)
	require.NoError(t, h.svc.Stop(t.Context()))

	h.reporter.AssertNotCalled(t, "SetDriverActive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
