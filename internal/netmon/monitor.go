package netmon

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/framepost/outbox/internal/metrics"
)

// DefaultEndpoints are independent, high-availability hosts; any one of them
// answering means the network is up.
var DefaultEndpoints = []string{
	"https://clients3.google.com/generate_204",
	"https://connectivitycheck.gstatic.com/generate_204",
	"https://www.cloudflare.com/cdn-cgi/trace",
}

type Options struct {
	Endpoints    []string
	Interval     time.Duration // probe cadence
	ProbeTimeout time.Duration // per-probe budget
	Client       *http.Client
}

// Monitor keeps a best-effort online/offline boolean by probing external
// endpoints on an interval. Reads are cheap; the probe loop is the only
// writer.
type Monitor struct {
	opt    Options
	client *http.Client

	mu          sync.Mutex
	online      bool
	known       bool // false until the first probe completes
	lastOnline  time.Time
	lastOffline time.Time
	subs        map[int]chan bool
	nextSub     int

	kick chan struct{}
}

func New(opt Options) *Monitor {
	if len(opt.Endpoints) == 0 {
		opt.Endpoints = DefaultEndpoints
	}
	if opt.Interval <= 0 {
		opt.Interval = 10 * time.Second
	}
	if opt.ProbeTimeout <= 0 {
		opt.ProbeTimeout = 5 * time.Second
	}
	client := opt.Client
	if client == nil {
		client = &http.Client{Timeout: opt.ProbeTimeout}
	}
	return &Monitor{
		opt:    opt,
		client: client,
		subs:   make(map[int]chan bool),
		kick:   make(chan struct{}, 1),
	}
}

// IsOnline returns the last-computed status without blocking.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// LastOnline returns when the monitor last transitioned to online.
func (m *Monitor) LastOnline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOnline
}

// LastOffline returns when the monitor last transitioned to offline.
func (m *Monitor) LastOffline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOffline
}

// ForceCheck performs a fresh probe, updates state and returns the result.
// Exposed for a manual "check network" action.
func (m *Monitor) ForceCheck(ctx context.Context) bool {
	online := m.probe(ctx)
	m.setState(online)
	return online
}

// Kick requests an out-of-band probe from the running loop, e.g. on a
// platform connectivity-change notification.
func (m *Monitor) Kick() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Subscribe delivers the new status on every online/offline transition.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan bool, 4)
	m.subs[id] = ch
	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Run probes once immediately, then on every tick or Kick, until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.setState(m.probe(ctx))

	ticker := time.NewTicker(m.opt.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-m.kick:
		}
		m.setState(m.probe(ctx))
	}
}

// probe issues HEAD requests against all endpoints in parallel; the first
// success wins. A response with any status counts — reachability is the
// question, not endpoint health.
func (m *Monitor) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.opt.ProbeTimeout)
	defer cancel()

	results := make(chan bool, len(m.opt.Endpoints))
	for _, url := range m.opt.Endpoints {
		go func(url string) {
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
			if err != nil {
				results <- false
				return
			}
			resp, err := m.client.Do(req)
			if err != nil {
				results <- false
				return
			}
			resp.Body.Close()
			results <- true
		}(url)
	}
	for range m.opt.Endpoints {
		if <-results {
			return true
		}
	}
	return false
}

func (m *Monitor) setState(online bool) {
	m.mu.Lock()
	changed := !m.known || online != m.online
	m.known = true
	m.online = online
	now := time.Now()
	if changed {
		if online {
			m.lastOnline = now
			log.Printf("network online")
		} else {
			m.lastOffline = now
			log.Printf("network offline")
		}
	}
	var subs []chan bool
	if changed {
		for _, ch := range m.subs {
			subs = append(subs, ch)
		}
	}
	m.mu.Unlock()

	metrics.SetOnline(online)
	for _, ch := range subs {
		select {
		case ch <- online:
		default:
		}
	}
}
