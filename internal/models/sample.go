package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GPSSample is a single position fix delivered by the device.
// Accuracy, Speed and Heading are optional and nil when the platform did not report them.
type GPSSample struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"` // metres
	Speed      *float64  `json:"speed,omitempty"`    // metres per second
	Heading    *float64  `json:"heading,omitempty"`  // degrees, 0-360
	CapturedAt time.Time `json:"captured_at"`
}

// Coordinates returns the position of the sample.
func (s GPSSample) Coordinates() Coordinates {
	return Coordinates{Latitude: s.Latitude, Longitude: s.Longitude}
}

// ItemState is the upload state of a queued sample.
type ItemState int

const (
	StatePending ItemState = iota
	StateInFlight
	StateFailed
	StateAbandoned
)

func (s ItemState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in_flight"
	case StateFailed:
		return "failed"
	case StateAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ErrIllegalTransition is returned when a queued sample is moved between states out of order.
var ErrIllegalTransition = errors.New("illegal queued sample state transition")

// QueuedSample is a GPS sample waiting for upload.
type QueuedSample struct {
	ID         uuid.UUID
	DriverID   string
	GPSSample
	RetryCount int
	State      ItemState
	EnqueuedAt time.Time
}

// NewQueuedSample wraps a validated sample for the upload queue.
func NewQueuedSample(driverID string, sample GPSSample, now time.Time) QueuedSample {
	return QueuedSample{
		ID:         uuid.New(),
		DriverID:   driverID,
		GPSSample:  sample,
		State:      StatePending,
		EnqueuedAt: now,
	}
}

// Begin marks the sample as being uploaded. Only pending or failed samples can start an attempt.
func (q *QueuedSample) Begin() error {
	if q.State != StatePending && q.State != StateFailed {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, q.State, StateInFlight)
	}
	q.State = StateInFlight

	return nil
}

// Fail records a failed upload attempt. The sample becomes Failed while its retry count
// stays within maxRetries and Abandoned once it exceeds it. The resulting state is returned.
func (q *QueuedSample) Fail(maxRetries int) (ItemState, error) {
	if q.State != StateInFlight {
		return q.State, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, q.State, StateFailed)
	}

	q.RetryCount++
	if q.RetryCount > maxRetries {
		q.State = StateAbandoned
	} else {
		q.State = StateFailed
	}

	return q.State, nil
}
