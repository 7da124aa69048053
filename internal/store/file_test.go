package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/framepost/outbox/internal/core"
	"github.com/framepost/outbox/internal/store"
)

func TestLoadMissingFileYieldsEmptyQueue(t *testing.T) {
	s := store.NewFileStore(t.TempDir())
	msgs, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestLoadCorruptBlobYieldsEmptyQueue(t *testing.T) {
	dir := t.TempDir()
	s := store.NewFileStore(dir)
	require.NoError(t, os.WriteFile(s.Path, []byte("{not json"), 0o600))

	msgs, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := store.NewFileStore(t.TempDir())

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	attempt := created.Add(3 * time.Second)
	next := attempt.Add(5 * time.Second)
	reason := "provider_temporary_error"
	in := []core.QueuedMessage{
		{
			ID:       "sms-1748779200000-abc123",
			Channel:  core.ChannelSMS,
			Status:   core.StatusRetrying,
			Priority: core.PriorityHigh,
			Payload: core.Payload{
				Channel: core.ChannelSMS,
				SMS:     &core.SMSPayload{To: []string{"+491234", "+495678"}, Text: "new photos"},
				Meta:    &core.Meta{EventName: "summer-gala", Disclaimer: true},
			},
			CreatedAt:     created,
			LastAttemptAt: &attempt,
			NextRetryAt:   &next,
			Attempts:      1,
			MaxAttempts:   core.MaxAttempts,
			LastError:     &reason,
		},
		{
			ID:       "email-1748779200001-def456",
			Channel:  core.ChannelEmail,
			Status:   core.StatusPending,
			Priority: core.PriorityMedium,
			Payload: core.Payload{
				Channel: core.ChannelEmail,
				Email: &core.EmailPayload{
					To:          []string{"guest@example.com"},
					Subject:     "Your photo",
					Body:        "attached",
					Attachments: []core.Attachment{{Name: "img.jpg", ContentType: "image/jpeg", Content: []byte{0xff, 0xd8}}},
				},
			},
			CreatedAt:   created,
			MaxAttempts: core.MaxAttempts,
		},
	}

	require.NoError(t, s.Save(in))
	out, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestSaveCreatesDirectoryAndReplacesAtomically(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s := store.NewFileStore(dir)

	require.NoError(t, s.Save(nil))
	require.NoError(t, s.Save([]core.QueuedMessage{{ID: "sms-1", Channel: core.ChannelSMS, Status: core.StatusPending, MaxAttempts: core.MaxAttempts}}))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, store.DefaultFileName, entries[0].Name())

	out, err := s.Load()
	require.NoError(t, err)
	require.Len(t, out, 1)
}
