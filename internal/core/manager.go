package core

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/framepost/outbox/internal/metrics"
)

// Store persists the full queue contents. Load yields an empty queue on
// missing or unreadable data; it never fails startup.
type Store interface {
	Load() ([]QueuedMessage, error)
	Save([]QueuedMessage) error
}

type EventType string

const (
	EventEnqueued EventType = "enqueued"
	EventUpdated  EventType = "updated"
	EventRemoved  EventType = "removed"
)

// Event is the change notification delivered to subscribers after every
// queue mutation.
type Event struct {
	Type    EventType      `json:"type"`
	Message *QueuedMessage `json:"message,omitempty"`
	Stats   Stats          `json:"stats"`
}

// Manager owns the in-memory queue and is its sole mutator. Every mutation is
// written through to the Store and published to subscribers; a failed save is
// logged and the in-memory copy stays authoritative for this process.
type Manager struct {
	mu      sync.Mutex
	store   Store
	msgs    []*QueuedMessage
	subs    map[int]chan Event
	nextSub int

	// Now is the clock used for ids, eligibility and backoff scheduling.
	// Tests substitute a fake.
	Now func() time.Time
}

func NewManager(store Store) *Manager {
	m := &Manager{
		store: store,
		subs:  make(map[int]chan Event),
		Now:   time.Now,
	}
	loaded, err := store.Load()
	if err != nil {
		log.Printf("queue load: starting empty: %v", err)
	}
	for i := range loaded {
		msg := loaded[i]
		// A message persisted mid-send means the process died during an
		// attempt; re-run it (at-least-once, never silently dropped).
		if msg.Status == StatusSending {
			msg.Status = StatusPending
		}
		m.msgs = append(m.msgs, &msg)
	}
	m.publishDepth()
	return m
}

// Enqueue validates the payload, appends a pending record and persists.
// Priority defaults to medium.
func (m *Manager) Enqueue(p Payload, prio Priority) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	switch prio {
	case PriorityHigh, PriorityMedium, PriorityLow:
	default:
		prio = PriorityMedium
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	msg := &QueuedMessage{
		ID:          NewID(p.Channel, now),
		Channel:     p.Channel,
		Status:      StatusPending,
		Priority:    prio,
		Payload:     p,
		CreatedAt:   now,
		MaxAttempts: MaxAttempts,
	}
	m.msgs = append(m.msgs, msg)
	m.persistLocked()
	m.notifyLocked(EventEnqueued, msg)
	return msg.ID, nil
}

// Remove deletes a message regardless of status and reports whether it existed.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, msg := range m.msgs {
		if msg.ID == id {
			removed := *msg
			m.msgs = append(m.msgs[:i], m.msgs[i+1:]...)
			m.persistLocked()
			m.notifyLocked(EventRemoved, &removed)
			return true
		}
	}
	return false
}

// Retry requeues a failed or retrying message with a clean slate. It is a
// no-op (false) for absent messages and for any other status, including a
// message already pending.
func (m *Manager) Retry(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.findLocked(id)
	if msg == nil {
		return false
	}
	if msg.Status != StatusFailed && msg.Status != StatusRetrying {
		return false
	}
	msg.Status = StatusPending
	msg.Attempts = 0
	msg.LastError = nil
	msg.NextRetryAt = nil
	m.persistLocked()
	m.notifyLocked(EventUpdated, msg)
	return true
}

// ClearSent removes all sent messages and returns how many were removed.
func (m *Manager) ClearSent() int { return m.clearByStatus(StatusSent) }

// ClearFailed removes all failed messages and returns how many were removed.
func (m *Manager) ClearFailed() int { return m.clearByStatus(StatusFailed) }

func (m *Manager) clearByStatus(st Status) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.msgs[:0]
	removed := 0
	for _, msg := range m.msgs {
		if msg.Status == st {
			removed++
			continue
		}
		kept = append(kept, msg)
	}
	if removed == 0 {
		return 0
	}
	m.msgs = kept
	m.persistLocked()
	m.notifyLocked(EventRemoved, nil)
	return removed
}

// Stats returns point-in-time counts by status.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked()
}

// Snapshot returns a copy of the queue in store order (enqueue order);
// priority ordering is applied only at selection time.
func (m *Manager) Snapshot() []QueuedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]QueuedMessage, 0, len(m.msgs))
	for _, msg := range m.msgs {
		out = append(out, *msg)
	}
	return out
}

// Get returns a copy of one message.
func (m *Manager) Get(id string) (QueuedMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg := m.findLocked(id); msg != nil {
		return *msg, true
	}
	return QueuedMessage{}, false
}

// EligibleIDs returns the ids the dispatcher should attempt at t, ordered by
// priority descending then createdAt ascending (FIFO within a band).
func (m *Manager) EligibleIDs(t time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*QueuedMessage
	for _, msg := range m.msgs {
		if msg.Eligible(t) {
			due = append(due, msg)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority.rank() > due[j].Priority.rank()
		}
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	ids := make([]string, len(due))
	for i, msg := range due {
		ids[i] = msg.ID
	}
	return ids
}

// BeginAttempt transitions an eligible message to sending, stamps the attempt
// and persists, returning a copy for the sender. It refuses messages that were
// removed or changed status since selection (e.g. a manual retry mid-pass).
func (m *Manager) BeginAttempt(id string) (QueuedMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.findLocked(id)
	if msg == nil || !msg.Eligible(m.Now()) || msg.Attempts >= msg.MaxAttempts {
		return QueuedMessage{}, false
	}
	now := m.Now()
	msg.Status = StatusSending
	msg.LastAttemptAt = &now
	msg.NextRetryAt = nil
	msg.Attempts++
	m.persistLocked()
	m.notifyLocked(EventUpdated, msg)
	return *msg, true
}

// FinishAttempt records the outcome of a send attempt and returns the
// resulting status. On success the message is sent and its error cleared; on
// failure it is scheduled for retry on the backoff ladder, or failed once
// attempts are exhausted.
func (m *Manager) FinishAttempt(id string, sendErr error) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.findLocked(id)
	if msg == nil || msg.Status != StatusSending {
		return ""
	}
	if sendErr == nil {
		msg.Status = StatusSent
		msg.LastError = nil
		msg.NextRetryAt = nil
	} else {
		reason := sendErr.Error()
		msg.LastError = &reason
		if msg.Attempts >= msg.MaxAttempts {
			msg.Status = StatusFailed
			msg.NextRetryAt = nil
		} else {
			msg.Status = StatusRetrying
			next := m.Now().Add(BackoffDelay(msg.Attempts))
			msg.NextRetryAt = &next
		}
	}
	m.persistLocked()
	m.notifyLocked(EventUpdated, msg)
	return msg.Status
}

// Subscribe registers a change listener. The returned cancel func must be
// called to release it. Slow consumers drop events rather than block the
// queue; the stream is a change signal, not a journal.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan Event, 16)
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

func (m *Manager) findLocked(id string) *QueuedMessage {
	for _, msg := range m.msgs {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

func (m *Manager) persistLocked() {
	snap := make([]QueuedMessage, 0, len(m.msgs))
	for _, msg := range m.msgs {
		snap = append(snap, *msg)
	}
	if err := m.store.Save(snap); err != nil {
		log.Printf("queue save: %v", err)
	}
}

func (m *Manager) statsLocked() Stats {
	s := Stats{Total: len(m.msgs)}
	for _, msg := range m.msgs {
		switch msg.Status {
		case StatusPending:
			s.Pending++
		case StatusSending:
			s.Sending++
		case StatusSent:
			s.Sent++
		case StatusFailed:
			s.Failed++
		case StatusRetrying:
			s.Retrying++
		}
	}
	return s
}

func (m *Manager) notifyLocked(typ EventType, msg *QueuedMessage) {
	stats := m.statsLocked()
	metrics.SetQueueDepth(stats.Pending, stats.Sending, stats.Sent, stats.Failed, stats.Retrying)
	var cp *QueuedMessage
	if msg != nil {
		c := *msg
		cp = &c
	}
	ev := Event{Type: typ, Message: cp, Stats: stats}
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (m *Manager) publishDepth() {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.statsLocked()
	metrics.SetQueueDepth(s.Pending, s.Sending, s.Sent, s.Failed, s.Retrying)
}
