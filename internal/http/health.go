package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountHealth(r chi.Router) {
	// Liveness: process is up
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Readiness: queue is loaded and serving. Being offline is a normal
	// operating state for this process, not unreadiness.
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if s.Queue == nil {
			http.Error(w, "queue not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
