package capture

import (
	"time"

	"golang.org/x/time/rate"
)

// Throttle is a leading-edge gate: the first event of a window passes, every other event
// until the window has elapsed is rejected. Rejected events are not delayed or queued.
type Throttle struct {
	limiter *rate.Limiter
	now     func() time.Time
}

// NewThrottle lets one event through per interval. A non-positive interval lets every
// event through.
func NewThrottle(interval time.Duration, now func() time.Time) *Throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &Throttle{limiter: rate.NewLimiter(limit, 1), now: now}
}

// Allow reports whether an event happening now passes the gate.
func (t *Throttle) Allow() bool {
	return t.limiter.AllowN(t.now(), 1)
}
