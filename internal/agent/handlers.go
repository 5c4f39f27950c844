package agent

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/git-masi/memestock-backend/internal/exchange"
)

// Routes mounts the agent endpoints.
func (s *Service) Routes(r chi.Router) {
	r.Route("/agents", func(r chi.Router) {
		r.Post("/", s.handleSpawn)
		r.Post("/tick", s.handleTick)
	})
}

func (s *Service) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var req SpawnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	agent, err := s.Spawn(r.Context(), req)
	if err != nil {
		writeError(w, err.Error(), exchange.StatusCode(err))
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

func (s *Service) handleTick(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Tick(r.Context())
	if err != nil {
		writeError(w, err.Error(), exchange.StatusCode(err))
		return
	}
	if rec == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
