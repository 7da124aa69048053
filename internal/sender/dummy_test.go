package sender_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/framepost/outbox/internal/core"
	"github.com/framepost/outbox/internal/sender"
)

func TestRegistryResolvesByChannel(t *testing.T) {
	d := sender.NewDummy()
	reg := sender.Registry{core.ChannelSMS: d}

	got, err := reg.For(core.ChannelSMS)
	require.NoError(t, err)
	require.Equal(t, d, got)

	_, err = reg.For(core.ChannelMMS)
	require.Error(t, err)
}

func TestDummyHonorsFailPct(t *testing.T) {
	p := core.Payload{Channel: core.ChannelSMS, SMS: &core.SMSPayload{To: []string{"+1"}, Text: "x"}}

	ok := &sender.Dummy{Latency: time.Millisecond, FailPct: 0}
	require.NoError(t, ok.Send(context.Background(), "+1", p))

	bad := &sender.Dummy{Latency: time.Millisecond, FailPct: 100}
	require.Error(t, bad.Send(context.Background(), "+1", p))
}

func TestDummyRespectsContext(t *testing.T) {
	d := &sender.Dummy{Latency: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := core.Payload{Channel: core.ChannelSMS, SMS: &core.SMSPayload{To: []string{"+1"}, Text: "x"}}
	require.ErrorIs(t, d.Send(ctx, "+1", p), context.Canceled)
}
