package graph

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded in-memory Store used by tests and
// local development. It copies nodes on the way in and out so callers
// never share field maps with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	edges map[string]*Edge
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]*Node),
		edges: make(map[string]*Edge),
		now:   time.Now,
	}
}

func copyNode(n *Node) *Node {
	c := *n
	c.Fields = make(Fields, len(n.Fields))
	for k, v := range n.Fields {
		c.Fields[k] = append(json.RawMessage(nil), v...)
	}
	return &c
}

// GetNode returns the node with the given id.
func (s *MemoryStore) GetNode(ctx context.Context, id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyNode(n), nil
}

// CreateNode stores a new node, assigning an id if the caller left it
// empty.
func (s *MemoryStore) CreateNode(ctx context.Context, node *Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	now := s.now()
	node.CreatedAt = now
	node.UpdatedAt = now
	if node.Fields == nil {
		node.Fields = make(Fields)
	}
	s.nodes[node.ID] = copyNode(node)
	return nil
}

// UpdateNode merges fields into an existing node's payload.
func (s *MemoryStore) UpdateNode(ctx context.Context, id string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		n.Fields[k] = append(json.RawMessage(nil), v...)
	}
	n.UpdatedAt = s.now()
	return nil
}

// DeleteNode removes a node and every edge touching it.
func (s *MemoryStore) DeleteNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return ErrNotFound
	}
	delete(s.nodes, id)
	for eid, e := range s.edges {
		if e.From == id || e.To == id {
			delete(s.edges, eid)
		}
	}
	return nil
}

// ListNodes returns all nodes of the given type, ordered by creation
// time for stable iteration.
func (s *MemoryStore) ListNodes(ctx context.Context, nodeType string) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Node
	for _, n := range s.nodes {
		if nodeType == "" || n.Type == nodeType {
			out = append(out, copyNode(n))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// GetEdges returns edges touching nodeID, optionally filtered by type.
func (s *MemoryStore) GetEdges(ctx context.Context, nodeID, edgeType string) ([]*Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Edge
	for _, e := range s.edges {
		if e.From != nodeID && e.To != nodeID {
			continue
		}
		if edgeType != "" && e.Type != edgeType {
			continue
		}
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// CreateEdge stores a new edge, assigning an id if empty.
func (s *MemoryStore) CreateEdge(ctx context.Context, edge *Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	edge.CreatedAt = s.now()
	c := *edge
	s.edges[edge.ID] = &c
	return nil
}

// DeleteEdge removes an edge by id.
func (s *MemoryStore) DeleteEdge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.edges[id]; !ok {
		return ErrNotFound
	}
	delete(s.edges, id)
	return nil
}
