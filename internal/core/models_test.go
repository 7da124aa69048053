package core_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/framepost/outbox/internal/core"
)

func TestPayloadValidate(t *testing.T) {
	cases := []struct {
		name    string
		payload core.Payload
		ok      bool
	}{
		{"email ok", core.Payload{Channel: core.ChannelEmail, Email: &core.EmailPayload{To: []string{"a@b.c"}}}, true},
		{"sms ok", core.Payload{Channel: core.ChannelSMS, SMS: &core.SMSPayload{To: []string{"+1"}}}, true},
		{"mms ok", core.Payload{Channel: core.ChannelMMS, MMS: &core.MMSPayload{To: []string{"+1"}, MediaURLs: []string{"http://x/y.jpg"}}}, true},
		{"email no variant", core.Payload{Channel: core.ChannelEmail}, false},
		{"sms empty recipients", core.Payload{Channel: core.ChannelSMS, SMS: &core.SMSPayload{}}, false},
		{"unknown channel", core.Payload{Channel: "fax"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.payload.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestPayloadRecipients(t *testing.T) {
	p := core.Payload{Channel: core.ChannelMMS, MMS: &core.MMSPayload{To: []string{"+1", "+2"}}}
	require.Equal(t, []string{"+1", "+2"}, p.Recipients())
	require.Nil(t, core.Payload{Channel: core.ChannelMMS}.Recipients())
}

func TestNewIDShape(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	id := core.NewID(core.ChannelEmail, now)
	parts := strings.SplitN(id, "-", 3)
	require.Len(t, parts, 3)
	require.Equal(t, "email", parts[0])
	require.NotEmpty(t, parts[2])

	require.NotEqual(t, id, core.NewID(core.ChannelEmail, now))
}

func TestEligible(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Minute)

	require.True(t, (&core.QueuedMessage{Status: core.StatusPending}).Eligible(now))
	require.True(t, (&core.QueuedMessage{Status: core.StatusRetrying, NextRetryAt: &past}).Eligible(now))
	require.False(t, (&core.QueuedMessage{Status: core.StatusRetrying, NextRetryAt: &future}).Eligible(now))
	require.False(t, (&core.QueuedMessage{Status: core.StatusRetrying}).Eligible(now))
	require.False(t, (&core.QueuedMessage{Status: core.StatusSent}).Eligible(now))
	require.False(t, (&core.QueuedMessage{Status: core.StatusSending}).Eligible(now))
	require.False(t, (&core.QueuedMessage{Status: core.StatusFailed}).Eligible(now))
}
