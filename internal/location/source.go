// Package location provides the position sources the capture service subscribes to.
package location

import (
	"context"
	"errors"
	"time"

	"github.com/UnknownOlympus/hermes/internal/models"
)

// Permission is the answer of the platform to a location permission request.
type Permission int

const (
	PermissionDenied Permission = iota
	PermissionGranted
)

func (p Permission) String() string {
	if p == PermissionGranted {
		return "granted"
	}

	return "denied"
}

var (
	// ErrAlreadyRunning is returned by Start when the source already delivers positions.
	ErrAlreadyRunning = errors.New("location source is already running")
	// ErrUnavailable is returned by sources that cannot deliver positions on this host.
	ErrUnavailable = errors.New("location source is unavailable")
)

// Options configure a position subscription.
type Options struct {
	// Interval is the preferred delay between two positions.
	Interval time.Duration
	// Background requests delivery while the host application is not in the foreground.
	Background bool
	// NotificationTitle and NotificationBody describe the persistent notification shown
	// while the subscription runs in the background.
	NotificationTitle string
	NotificationBody  string
}

// Source delivers device positions.
//
// Running reports the state of the delivery task as seen by the platform, which may
// differ from what the subscriber believes when the task was killed.
type Source interface {
	RequestForegroundPermission(ctx context.Context) (Permission, error)
	RequestBackgroundPermission(ctx context.Context) (Permission, error)
	Start(ctx context.Context, opts Options) (<-chan models.GPSSample, error)
	Stop(ctx context.Context) error
	Running(ctx context.Context) bool
}

// UnavailableSource is used when no position provider is configured. It denies every
// permission request so callers surface the condition instead of waiting for positions.
type UnavailableSource struct{}

func (UnavailableSource) RequestForegroundPermission(context.Context) (Permission, error) {
	return PermissionDenied, nil
}

func (UnavailableSource) RequestBackgroundPermission(context.Context) (Permission, error) {
	return PermissionDenied, nil
}

func (UnavailableSource) Start(context.Context, Options) (<-chan models.GPSSample, error) {
	return nil, ErrUnavailable
}

func (UnavailableSource) Stop(context.Context) error { return nil }

func (UnavailableSource) Running(context.Context) bool { return false }
