package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/framepost/outbox/internal/core"
)

// snapshot is the state pushed to subscribers. The queue is small enough that
// pushing full state on every change beats diff bookkeeping.
type snapshot struct {
	Queue      []core.QueuedMessage `json:"queue"`
	Stats      core.Stats           `json:"stats"`
	Online     bool                 `json:"online"`
	Processing bool                 `json:"processing"`
}

// events streams queue state over SSE. The UI gets the current snapshot on
// connect and a fresh one within moments of any queue or connectivity change.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	queueEvents, cancelQueue := s.Queue.Subscribe()
	defer cancelQueue()
	flips, cancelFlips := s.Net.Subscribe()
	defer cancelFlips()

	send := func() {
		snap := snapshot{
			Queue:      s.Queue.Snapshot(),
			Stats:      s.Queue.Stats(),
			Online:     s.Net.IsOnline(),
			Processing: s.Disp.Processing(),
		}
		if snap.Queue == nil {
			snap.Queue = []core.QueuedMessage{}
		}
		data, err := json.Marshal(snap)
		if err != nil {
			return
		}
		_, _ = w.Write([]byte("event: state\ndata: "))
		_, _ = w.Write(data)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}

	send()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-queueEvents:
			send()
		case <-flips:
			send()
		case <-heartbeat.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		}
	}
}
