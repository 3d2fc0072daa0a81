package pod

import (
	"context"
	"time"
)

// Pinger checks that the backend answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingProbe considers the device online when the backend answers a ping in time.
type PingProbe struct {
	pinger  Pinger
	timeout time.Duration
}

func NewPingProbe(pinger Pinger, timeout time.Duration) *PingProbe {
	return &PingProbe{pinger: pinger, timeout: timeout}
}

func (p *PingProbe) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.pinger.Ping(ctx) == nil
}
