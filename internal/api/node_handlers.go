package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"roadmapper/internal/codec"
	"roadmapper/internal/graph"
)

// validNodeTypes are the node types the API accepts in URLs.
var validNodeTypes = map[string]bool{
	graph.NodeTeam:      true,
	graph.NodeMember:    true,
	graph.NodeFeature:   true,
	graph.NodeOption:    true,
	graph.NodeProvider:  true,
	graph.NodeMilestone: true,
}

// listFieldsByType names the fields that must be stored as native JSON
// arrays. Clients sometimes send them double-encoded as strings; they
// are normalized on every write so reads stay cheap.
var listFieldsByType = map[string][]string{
	graph.NodeTeam:     {"roster"},
	graph.NodeFeature:  {"teamAllocations"},
	graph.NodeOption:   {"teamAllocations", "costs"},
	graph.NodeProvider: {"teamAllocations", "costs", "ddItems"},
}

type CreateNodeRequest struct {
	ID     string       `json:"id"`
	Fields graph.Fields `json:"fields"`
}

type UpdateNodeRequest struct {
	Fields graph.Fields `json:"fields"`
}

// normalizeListFields rewrites known list fields to canonical arrays.
func (s *Server) normalizeListFields(nodeType string, fields graph.Fields) {
	for _, name := range listFieldsByType[nodeType] {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		list, malformed := codec.Normalize[json.RawMessage](raw)
		if malformed {
			s.logger.Warn("Dropping malformed list field",
				zap.String("node_type", nodeType),
				zap.String("field", name))
		}
		canonical, err := json.Marshal(list)
		if err != nil {
			canonical = json.RawMessage("[]")
		}
		fields[name] = canonical
	}
}

// HandleCreateNode creates a node of the type named in the URL
func (s *Server) HandleCreateNode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	nodeType := chi.URLParam(r, "type")
	if !validNodeTypes[nodeType] {
		respondError(w, http.StatusBadRequest, "unknown node type", "invalid_input")
		return
	}

	var req CreateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "invalid_input")
		return
	}

	if req.Fields == nil {
		req.Fields = graph.Fields{}
	}
	s.normalizeListFields(nodeType, req.Fields)

	node := &graph.Node{
		ID:     req.ID,
		Type:   nodeType,
		Fields: req.Fields,
	}

	if err := s.store.CreateNode(ctx, node); err != nil {
		s.logger.Error("Failed to create node", zap.Error(err), zap.String("node_type", nodeType))
		respondError(w, http.StatusInternalServerError, "failed to create node", "internal_error")
		return
	}

	respondJSON(w, http.StatusCreated, node)
}

// HandleGetNode returns a single node
func (s *Server) HandleGetNode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	nodeType := chi.URLParam(r, "type")
	id := chi.URLParam(r, "id")

	node, err := s.store.GetNode(ctx, id)
	if err != nil {
		if graph.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "node not found", "not_found")
			return
		}
		s.logger.Error("Failed to get node", zap.Error(err), zap.String("node_id", id))
		respondError(w, http.StatusInternalServerError, "failed to fetch node", "internal_error")
		return
	}

	if node.Type != nodeType {
		respondError(w, http.StatusNotFound, "node not found", "not_found")
		return
	}

	respondJSON(w, http.StatusOK, node)
}

// HandleListNodes returns all nodes of the type named in the URL
func (s *Server) HandleListNodes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	nodeType := chi.URLParam(r, "type")
	if !validNodeTypes[nodeType] {
		respondError(w, http.StatusBadRequest, "unknown node type", "invalid_input")
		return
	}

	nodes, err := s.store.ListNodes(ctx, nodeType)
	if err != nil {
		s.logger.Error("Failed to list nodes", zap.Error(err), zap.String("node_type", nodeType))
		respondError(w, http.StatusInternalServerError, "failed to list nodes", "internal_error")
		return
	}

	if nodes == nil {
		nodes = []*graph.Node{}
	}
	respondJSON(w, http.StatusOK, nodes)
}

// HandleUpdateNode merges the given fields into a node's payload
func (s *Server) HandleUpdateNode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	nodeType := chi.URLParam(r, "type")
	id := chi.URLParam(r, "id")

	var req UpdateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "invalid_input")
		return
	}
	if len(req.Fields) == 0 {
		respondError(w, http.StatusBadRequest, "fields is required", "invalid_input")
		return
	}

	s.normalizeListFields(nodeType, req.Fields)

	if err := s.store.UpdateNode(ctx, id, req.Fields); err != nil {
		if graph.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "node not found", "not_found")
			return
		}
		s.logger.Error("Failed to update node", zap.Error(err), zap.String("node_id", id))
		respondError(w, http.StatusInternalServerError, "failed to update node", "internal_error")
		return
	}

	node, err := s.store.GetNode(ctx, id)
	if err != nil {
		s.logger.Error("Failed to reload node after update", zap.Error(err), zap.String("node_id", id))
		respondError(w, http.StatusInternalServerError, "failed to fetch node", "internal_error")
		return
	}

	respondJSON(w, http.StatusOK, node)
}

// HandleDeleteNode deletes a node and its edges. Deleting a member
// first removes its allocations from every team it belongs to, so
// rosters and work items do not keep entries for a node that no
// longer exists.
func (s *Server) HandleDeleteNode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	nodeType := chi.URLParam(r, "type")
	id := chi.URLParam(r, "id")

	if nodeType == graph.NodeMember {
		edges, err := s.store.GetEdges(ctx, id, graph.EdgeTeamMember)
		if err != nil && !graph.IsNotFound(err) {
			s.logger.Error("Failed to load member edges", zap.Error(err), zap.String("node_id", id))
			respondError(w, http.StatusInternalServerError, "failed to delete node", "internal_error")
			return
		}
		for _, e := range edges {
			if e.To != id {
				continue
			}
			if err := s.ledger.OnMemberUnlinked(ctx, e.From, id); err != nil {
				s.logger.Warn("Failed to clear member allocations",
					zap.Error(err),
					zap.String("team_id", e.From),
					zap.String("member_id", id))
			}
		}
	}

	if err := s.store.DeleteNode(ctx, id); err != nil {
		if graph.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "node not found", "not_found")
			return
		}
		s.logger.Error("Failed to delete node", zap.Error(err), zap.String("node_id", id))
		respondError(w, http.StatusInternalServerError, "failed to delete node", "internal_error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
