package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/framepost/outbox/internal/core"
	"github.com/framepost/outbox/internal/metrics"
)

// Network is the connectivity surface the API exposes.
type Network interface {
	IsOnline() bool
	ForceCheck(ctx context.Context) bool
	LastOnline() time.Time
	LastOffline() time.Time
	Subscribe() (<-chan bool, func())
}

// Dispatcher is the processing-state surface the API exposes.
type Dispatcher interface {
	Processing() bool
}

type Server struct {
	Queue *core.Manager
	Net   Network
	Disp  Dispatcher
}

func NewServer(q *core.Manager, n Network, d Dispatcher) *Server {
	return &Server{Queue: q, Net: n, Disp: d}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(instrument)

	s.mountHealth(r)
	s.mountMetrics(r)

	r.Post("/messages", s.enqueue)
	r.Get("/messages", s.listMessages)
	r.Post("/messages/clear-sent", s.clearSent)
	r.Post("/messages/clear-failed", s.clearFailed)
	r.Get("/messages/{id}", s.getMessage)
	r.Delete("/messages/{id}", s.removeMessage)
	r.Post("/messages/{id}/retry", s.retryMessage)
	r.Get("/stats", s.getStats)
	r.Get("/events", s.events)
	r.Get("/network", s.getNetwork)
	r.Post("/network/check", s.checkNetwork)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request) {
	var in struct {
		core.Payload
		Priority core.Priority `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body"})
		return
	}
	id, err := s.Queue.Enqueue(in.Payload, in.Priority)
	if err != nil {
		metrics.EnqueueTotal.WithLabelValues(string(in.Channel), "invalid").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	metrics.EnqueueTotal.WithLabelValues(string(in.Channel), "ok").Inc()
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	items := s.Queue.Snapshot()
	if st := r.URL.Query().Get("status"); st != "" {
		filtered := items[:0]
		for _, m := range items {
			if m.Status == core.Status(st) {
				filtered = append(filtered, m)
			}
		}
		items = filtered
	}
	if items == nil {
		items = []core.QueuedMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msg, ok := s.Queue.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "message_not_found"})
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) removeMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.Queue.Remove(id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "message_not_found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": true})
}

func (s *Server) retryMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.Queue.Retry(id) {
		// Absent, or not in a retryable status; same answer either way.
		writeJSON(w, http.StatusConflict, map[string]any{"retried": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"retried": true})
}

func (s *Server) clearSent(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"removed": s.Queue.ClearSent()})
}

func (s *Server) clearFailed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"removed": s.Queue.ClearFailed()})
}

func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Queue.Stats())
}

func (s *Server) getNetwork(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"online":       s.Net.IsOnline(),
		"processing":   s.Disp.Processing(),
		"last_online":  s.Net.LastOnline(),
		"last_offline": s.Net.LastOffline(),
	})
}

func (s *Server) checkNetwork(w http.ResponseWriter, r *http.Request) {
	online := s.Net.ForceCheck(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"online": online})
}
