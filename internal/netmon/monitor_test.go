package netmon_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/framepost/outbox/internal/netmon"
)

func okServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// deadEndpoint points at a closed port; connection refused immediately.
func deadEndpoint(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestForceCheckOnline(t *testing.T) {
	srv := okServer(t)
	m := netmon.New(netmon.Options{Endpoints: []string{srv.URL}, ProbeTimeout: 2 * time.Second})

	require.True(t, m.ForceCheck(context.Background()))
	require.True(t, m.IsOnline())
	require.False(t, m.LastOnline().IsZero())
}

func TestForceCheckOffline(t *testing.T) {
	m := netmon.New(netmon.Options{Endpoints: []string{deadEndpoint(t)}, ProbeTimeout: 2 * time.Second})

	require.False(t, m.ForceCheck(context.Background()))
	require.False(t, m.IsOnline())
	require.False(t, m.LastOffline().IsZero())
}

func TestAnyEndpointSucceeding_IsOnline(t *testing.T) {
	srv := okServer(t)
	m := netmon.New(netmon.Options{
		Endpoints:    []string{deadEndpoint(t), srv.URL, deadEndpoint(t)},
		ProbeTimeout: 2 * time.Second,
	})

	require.True(t, m.ForceCheck(context.Background()))
}

func TestNonSuccessStatusStillCountsAsReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	m := netmon.New(netmon.Options{Endpoints: []string{srv.URL}, ProbeTimeout: 2 * time.Second})
	require.True(t, m.ForceCheck(context.Background()))
}

func TestSubscribeSeesTransitions(t *testing.T) {
	srv := okServer(t)
	online := srv.URL
	offline := deadEndpoint(t)

	endpoints := []string{online}
	m := netmon.New(netmon.Options{Endpoints: endpoints, ProbeTimeout: 2 * time.Second})

	flips, cancel := m.Subscribe()
	defer cancel()

	require.True(t, m.ForceCheck(context.Background()))
	select {
	case v := <-flips:
		require.True(t, v)
	case <-time.After(time.Second):
		t.Fatal("expected online notification")
	}

	// Repeat probe with same result: no transition, no notification.
	require.True(t, m.ForceCheck(context.Background()))
	select {
	case <-flips:
		t.Fatal("unexpected notification without a transition")
	case <-time.After(50 * time.Millisecond):
	}

	endpoints[0] = offline
	require.False(t, m.ForceCheck(context.Background()))
	select {
	case v := <-flips:
		require.False(t, v)
	case <-time.After(time.Second):
		t.Fatal("expected offline notification")
	}
}
