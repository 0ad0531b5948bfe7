package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/assurelog/internal/core"
)

type healthResponse struct {
	Status   string             `json:"status"`
	Database string             `json:"database,omitempty"`
	Limiter  core.LimiterStatus `json:"limiter"`
}

// handleHealth reports liveness, database reachability and limiter load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Limiter: s.service.Limiter().Status(),
	}
	status := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}

	writeJSON(w, r, status, resp)
}

// handleMe returns the identity carried by the bearer token.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	writeJSON(w, r, http.StatusOK, map[string]any{
		"id":       id.ID,
		"username": id.Username,
		"role":     id.Role,
		"is_admin": id.IsAdmin(),
	})
}
