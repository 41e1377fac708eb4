package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Server exposes the inbound health endpoint peers probe. It has no
// dependency on the store or the monitor loop: as long as the process is
// up, /health answers.
type Server struct {
	Logger   *zap.Logger
	ServerID string
}

func NewServer(l *zap.Logger, serverID string) *Server {
	return &Server{Logger: l, ServerID: serverID}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/health", s.handleHealth)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "alive",
		"server": s.ServerID,
	})
}
