package sender

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/framepost/outbox/internal/core"
)

// Dummy simulates a provider with latency and occasional failures. It stands
// in for the real SendGrid/Twilio integrations in local runs.
type Dummy struct {
	Latency time.Duration
	FailPct int // 0..100
}

func NewDummy() *Dummy { return &Dummy{Latency: 50 * time.Millisecond, FailPct: 3} }

func (d *Dummy) Send(ctx context.Context, to string, p core.Payload) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.Latency):
	}
	if rand.Intn(100) < d.FailPct {
		return errors.New("provider_temporary_error")
	}
	return nil
}
