package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/UnknownOlympus/hermes/internal/geo"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/tkrajina/gpxgo/gpx"
)

// userRangeError converts a horizontal dilution of precision into metres.
const userRangeError = 5.0

var ErrEmptyTrack = errors.New("gpx file has no track points")

type trackPoint struct {
	coords models.Coordinates
	at     time.Time
	hdop   *float64
}

// GPXSource replays a recorded GPX track as a live position feed. Delays between points
// follow the recorded timestamps divided by the speedup factor. Without looping the
// channel is closed after the last point, the same way a killed platform task stops
// delivering positions.
type GPXSource struct {
	points  []trackPoint
	speedup float64
	loop    bool
	log     *slog.Logger
	now     func() time.Time

	permMu     sync.Mutex
	foreground Permission
	background Permission

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
}

// NewGPXSource loads every track point of the GPX file at path.
func NewGPXSource(path string, speedup float64, loop bool, log *slog.Logger) (*GPXSource, error) {
	data, err := gpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gpx track: %w", err)
	}

	var points []trackPoint
	for _, track := range data.Tracks {
		for _, segment := range track.Segments {
			for i := range segment.Points {
				p := &segment.Points[i]
				tp := trackPoint{
					coords: models.Coordinates{Latitude: p.Latitude, Longitude: p.Longitude},
					at:     p.Timestamp,
				}
				if p.HorizontalDilution.NotNull() {
					hdop := p.HorizontalDilution.Value()
					tp.hdop = &hdop
				}
				points = append(points, tp)
			}
		}
	}
	if len(points) == 0 {
		return nil, ErrEmptyTrack
	}
	if speedup <= 0 {
		speedup = 1
	}

	return &GPXSource{
		points:     points,
		speedup:    speedup,
		loop:       loop,
		log:        log,
		now:        time.Now,
		foreground: PermissionGranted,
		background: PermissionGranted,
	}, nil
}

// SetPermissions changes the answers given to permission requests.
func (s *GPXSource) SetPermissions(foreground, background Permission) {
	s.permMu.Lock()
	defer s.permMu.Unlock()

	s.foreground, s.background = foreground, background
}

func (s *GPXSource) RequestForegroundPermission(context.Context) (Permission, error) {
	s.permMu.Lock()
	defer s.permMu.Unlock()

	return s.foreground, nil
}

func (s *GPXSource) RequestBackgroundPermission(context.Context) (Permission, error) {
	s.permMu.Lock()
	defer s.permMu.Unlock()

	return s.background, nil
}

// Len returns the number of points in the track.
func (s *GPXSource) Len() int {
	return len(s.points)
}

// Start begins the replay. The context bounds only the call; the replay runs until Stop
// or the end of the track.
func (s *GPXSource) Start(_ context.Context, opts Options) (<-chan models.GPSSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil, ErrAlreadyRunning
	}

	replayCtx, cancel := context.WithCancel(context.Background())
	out := make(chan models.GPSSample)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go s.replay(replayCtx, out, s.done, opts.Interval)

	s.log.Debug("GPX replay started", "points", len(s.points), "speedup", s.speedup, "loop", s.loop)

	return out, nil
}

// Stop ends the replay and waits for the replay goroutine to exit.
func (s *GPXSource) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to stop gpx replay: %w", ctx.Err())
	}
}

func (s *GPXSource) Running(context.Context) bool {
	return s.running.Load()
}

func (s *GPXSource) replay(ctx context.Context, out chan<- models.GPSSample, done chan struct{}, interval time.Duration) {
	defer close(done)
	defer close(out)
	defer s.running.Store(false)

	for {
		for i := range s.points {
			if i > 0 && !s.sleep(ctx, s.delay(s.points[i-1], s.points[i], interval)) {
				return
			}

			select {
			case out <- s.sample(i):
			case <-ctx.Done():
				return
			}
		}

		if !s.loop {
			s.log.Debug("GPX replay reached the end of the track")
			return
		}
		if !s.sleep(ctx, s.scale(interval)) {
			return
		}
	}
}

func (s *GPXSource) delay(prev, next trackPoint, interval time.Duration) time.Duration {
	if !prev.at.IsZero() && next.at.After(prev.at) {
		return s.scale(next.at.Sub(prev.at))
	}

	return s.scale(interval)
}

func (s *GPXSource) scale(d time.Duration) time.Duration {
	return time.Duration(float64(d) / s.speedup)
}

func (s *GPXSource) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// sample builds the position for point i. Speed and heading are derived from the
// previous point when the track carries timestamps.
func (s *GPXSource) sample(i int) models.GPSSample {
	point := s.points[i]
	sample := models.GPSSample{
		Latitude:   point.coords.Latitude,
		Longitude:  point.coords.Longitude,
		CapturedAt: s.now(),
	}
	if point.hdop != nil {
		accuracy := *point.hdop * userRangeError
		sample.Accuracy = &accuracy
	}
	if i == 0 {
		return sample
	}

	prev := s.points[i-1]
	dist := geo.Distance(prev.coords, point.coords)
	if !prev.at.IsZero() && point.at.After(prev.at) {
		speed := dist / point.at.Sub(prev.at).Seconds()
		sample.Speed = &speed
	}
	if dist > 0 {
		heading := geo.Bearing(prev.coords, point.coords)
		sample.Heading = &heading
	}

	return sample
}
