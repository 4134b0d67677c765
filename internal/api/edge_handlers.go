package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"roadmapper/internal/graph"
)

type CreateEdgeRequest struct {
	Type string `json:"type"`
	From string `json:"from"`
	To   string `json:"to"`

	// Role seeds the roster entry when connecting a member to a team.
	Role string `json:"role"`
}

type DeleteEdgeRequest struct {
	Type string `json:"type"`
	From string `json:"from"`
	To   string `json:"to"`
}

// HandleCreateEdge connects two nodes. Connecting a member to a team
// also seeds a zero-percent roster entry so the member shows up in
// bandwidth reports immediately.
func (s *Server) HandleCreateEdge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req CreateEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "invalid_input")
		return
	}
	if req.Type == "" || req.From == "" || req.To == "" {
		respondError(w, http.StatusBadRequest, "type, from and to are required", "invalid_input")
		return
	}

	// Both endpoints must exist before the edge is persisted; no
	// backend enforces referential integrity on edges.
	for _, id := range []string{req.From, req.To} {
		if _, err := s.store.GetNode(ctx, id); err != nil {
			if graph.IsNotFound(err) {
				respondError(w, http.StatusNotFound, "endpoint node not found", "not_found")
				return
			}
			s.logger.Error("Failed to load edge endpoint", zap.Error(err), zap.String("node_id", id))
			respondError(w, http.StatusInternalServerError, "failed to create edge", "internal_error")
			return
		}
	}

	edge := &graph.Edge{
		Type: req.Type,
		From: req.From,
		To:   req.To,
	}

	if err := s.store.CreateEdge(ctx, edge); err != nil {
		s.logger.Error("Failed to create edge", zap.Error(err), zap.String("edge_type", req.Type))
		respondError(w, http.StatusInternalServerError, "failed to create edge", "internal_error")
		return
	}

	if req.Type == graph.EdgeTeamMember {
		if err := s.ledger.OnMemberLinked(ctx, req.From, req.To, req.Role); err != nil {
			s.logger.Warn("Failed to seed roster entry",
				zap.Error(err),
				zap.String("team_id", req.From),
				zap.String("member_id", req.To))
		}
	}

	respondJSON(w, http.StatusCreated, edge)
}

// HandleDeleteEdge disconnects two nodes. Disconnecting a member from
// a team cascades through the ledger, removing the member's
// allocations from the roster and from every affected work item.
func (s *Server) HandleDeleteEdge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req DeleteEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "invalid_input")
		return
	}
	if req.Type == "" || req.From == "" || req.To == "" {
		respondError(w, http.StatusBadRequest, "type, from and to are required", "invalid_input")
		return
	}

	edges, err := s.store.GetEdges(ctx, req.From, req.Type)
	if err != nil && !graph.IsNotFound(err) {
		s.logger.Error("Failed to load edges", zap.Error(err), zap.String("node_id", req.From))
		respondError(w, http.StatusInternalServerError, "failed to delete edge", "internal_error")
		return
	}

	var target *graph.Edge
	for _, e := range edges {
		if e.From == req.From && e.To == req.To {
			target = e
			break
		}
	}
	if target == nil {
		respondError(w, http.StatusNotFound, "edge not found", "not_found")
		return
	}

	if err := s.store.DeleteEdge(ctx, target.ID); err != nil {
		if graph.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "edge not found", "not_found")
			return
		}
		s.logger.Error("Failed to delete edge", zap.Error(err), zap.String("edge_id", target.ID))
		respondError(w, http.StatusInternalServerError, "failed to delete edge", "internal_error")
		return
	}

	if req.Type == graph.EdgeTeamMember {
		if err := s.ledger.OnMemberUnlinked(ctx, req.From, req.To); err != nil {
			s.logger.Warn("Failed to clear member allocations",
				zap.Error(err),
				zap.String("team_id", req.From),
				zap.String("member_id", req.To))
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// HandleGetNodeEdges returns edges touching a node, optionally
// filtered by ?type=
func (s *Server) HandleGetNodeEdges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	edgeType := r.URL.Query().Get("type")

	edges, err := s.store.GetEdges(ctx, id, edgeType)
	if err != nil {
		if graph.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "node not found", "not_found")
			return
		}
		s.logger.Error("Failed to get edges", zap.Error(err), zap.String("node_id", id))
		respondError(w, http.StatusInternalServerError, "failed to fetch edges", "internal_error")
		return
	}

	if edges == nil {
		edges = []*graph.Edge{}
	}
	respondJSON(w, http.StatusOK, edges)
}
