package capture_test

import (
	"testing"
	"time"

	"github.com/UnknownOlympus/hermes/internal/capture"
	"github.com/stretchr/testify/assert"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func TestThrottle_LeadingEdge(t *testing.T) {
	clock := &stepClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	throttle := capture.NewThrottle(3*time.Second, clock.Now)

	assert.True(t, throttle.Allow(), "first event of a burst passes")
	for range 10 {
		assert.False(t, throttle.Allow())
	}

	clock.now = clock.now.Add(2999 * time.Millisecond)
	assert.False(t, throttle.Allow())

	clock.now = clock.now.Add(time.Millisecond)
	assert.True(t, throttle.Allow(), "a new window opens after the interval")
	assert.False(t, throttle.Allow())
}

func TestThrottle_RejectedEventsDoNotExtendWindow(t *testing.T) {
	clock := &stepClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	throttle := capture.NewThrottle(3*time.Second, clock.Now)

	assert.True(t, throttle.Allow())
	for range 2 {
		clock.now = clock.now.Add(time.Second)
		assert.False(t, throttle.Allow())
	}

	clock.now = clock.now.Add(time.Second)
	assert.True(t, throttle.Allow())
}

func TestThrottle_ZeroInterval(t *testing.T) {
	clock := &stepClock{now: time.Now()}
	throttle := capture.NewThrottle(0, clock.Now)

	for range 5 {
		assert.True(t, throttle.Allow())
	}
}
