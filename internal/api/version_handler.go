package api

import (
	"net/http"

	"roadmapper/internal/version"
)

// HandleVersion returns version information about the API and build
func (s *Server) HandleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, version.Get(s.config.Env))
}
