package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/framepost/outbox/internal/core"
	"github.com/framepost/outbox/internal/metrics"
	"github.com/framepost/outbox/internal/sender"
)

type Options struct {
	PollInterval time.Duration // pass cadence while idle
	AttemptEvery time.Duration // spacing between attempts within a pass
	SendTimeout  time.Duration // per-send budget; a timeout counts as a failure
}

func DefaultOptions() Options {
	return Options{
		PollInterval: 5 * time.Second,
		AttemptEvery: 500 * time.Millisecond,
		SendTimeout:  30 * time.Second,
	}
}

// Network is the connectivity signal the dispatcher gates on.
type Network interface {
	IsOnline() bool
	Subscribe() (<-chan bool, func())
}

// Dispatcher converts queued intent into delivery attempts: one pass at a
// time, one message at a time, only while online.
type Dispatcher struct {
	mgr *core.Manager
	net Network
	reg sender.Registry
	opt Options

	limiter    *rate.Limiter
	flight     sync.Mutex // single-flight guard: at most one pass
	processing atomic.Bool
	kick       chan struct{}
}

func New(mgr *core.Manager, net Network, reg sender.Registry, opt Options) *Dispatcher {
	def := DefaultOptions()
	if opt.PollInterval <= 0 {
		opt.PollInterval = def.PollInterval
	}
	if opt.AttemptEvery <= 0 {
		opt.AttemptEvery = def.AttemptEvery
	}
	if opt.SendTimeout <= 0 {
		opt.SendTimeout = def.SendTimeout
	}
	return &Dispatcher{
		mgr:     mgr,
		net:     net,
		reg:     reg,
		opt:     opt,
		limiter: rate.NewLimiter(rate.Every(opt.AttemptEvery), 1),
		kick:    make(chan struct{}, 1),
	}
}

// Processing reports whether a pass is currently running.
func (d *Dispatcher) Processing() bool { return d.processing.Load() }

// Kick requests a pass as soon as the loop is free.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Run drives passes until ctx is done: on the poll interval, immediately
// after an enqueue or manual retry, and immediately on an offline→online
// flip.
func (d *Dispatcher) Run(ctx context.Context) error {
	events, cancelEvents := d.mgr.Subscribe()
	defer cancelEvents()
	flips, cancelFlips := d.net.Subscribe()
	defer cancelFlips()

	ticker := time.NewTicker(d.opt.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-d.kick:
		case ev := <-events:
			// New pending work triggers an immediate pass; other
			// transitions are our own writes.
			if !pendingWork(ev) {
				continue
			}
		case online := <-flips:
			if !online {
				continue
			}
		}
		d.Pass(ctx)
	}
}

func pendingWork(ev core.Event) bool {
	if ev.Message == nil || ev.Message.Status != core.StatusPending {
		return false
	}
	return ev.Type == core.EventEnqueued || ev.Type == core.EventUpdated
}

// Pass runs one selection-and-attempt sweep. Eligibility and order are fixed
// at pass start; work enqueued mid-pass waits for the next one. The pass
// aborts early if connectivity is lost, leaving the remainder untouched.
func (d *Dispatcher) Pass(ctx context.Context) {
	if !d.flight.TryLock() {
		metrics.PassTotal.WithLabelValues("busy").Inc()
		return
	}
	defer d.flight.Unlock()

	if !d.net.IsOnline() {
		metrics.PassTotal.WithLabelValues("offline").Inc()
		return
	}

	d.processing.Store(true)
	defer d.processing.Store(false)

	ids := d.mgr.EligibleIDs(d.mgr.Now())
	result := "ok"
	for _, id := range ids {
		if ctx.Err() != nil || !d.net.IsOnline() {
			result = "aborted"
			break
		}
		// Throttle between attempts; providers dislike bursts.
		if err := d.limiter.Wait(ctx); err != nil {
			result = "aborted"
			break
		}
		d.attempt(ctx, id)
	}
	metrics.PassTotal.WithLabelValues(result).Inc()
}

func (d *Dispatcher) attempt(ctx context.Context, id string) {
	msg, ok := d.mgr.BeginAttempt(id)
	if !ok {
		// Removed or restatused since selection; skip.
		return
	}

	snd, err := d.reg.For(msg.Channel)
	if err != nil {
		d.record(msg.Channel, d.mgr.FinishAttempt(id, err))
		return
	}

	cctx, cancel := context.WithTimeout(ctx, d.opt.SendTimeout)
	defer cancel()

	// One sender call per recipient; the first failure fails the whole
	// attempt and the full recipient list is retried next time.
	start := time.Now()
	var sendErr error
	for _, to := range msg.Payload.Recipients() {
		if sendErr = snd.Send(cctx, to, msg.Payload); sendErr != nil {
			break
		}
	}
	metrics.SendDuration.Observe(time.Since(start).Seconds())

	d.record(msg.Channel, d.mgr.FinishAttempt(id, sendErr))
}

func (d *Dispatcher) record(ch core.Channel, st core.Status) {
	var outcome string
	switch st {
	case core.StatusSent:
		outcome = "sent"
	case core.StatusRetrying:
		outcome = "retry"
	case core.StatusFailed:
		outcome = "failed"
	default:
		return
	}
	metrics.SendTotal.WithLabelValues(string(ch), outcome).Inc()
}
