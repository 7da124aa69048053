package sender

import (
	"context"
	"fmt"

	"github.com/framepost/outbox/internal/core"
)

// Sender performs exactly one delivery attempt to one recipient. Attempt
// counting is the dispatcher's job, not the sender's.
type Sender interface {
	Send(ctx context.Context, to string, p core.Payload) error
}

// Registry maps each channel to its sender.
type Registry map[core.Channel]Sender

// For resolves the sender for a channel.
func (r Registry) For(ch core.Channel) (Sender, error) {
	s, ok := r[ch]
	if !ok {
		return nil, fmt.Errorf("no sender registered for channel %q", ch)
	}
	return s, nil
}
