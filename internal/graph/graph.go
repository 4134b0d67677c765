// Package graph defines the node/edge model of the roadmap canvas and
// the Store contract the engine uses to reach it. Three backends
// implement Store: a remote HTTP persistence service, an embedded SQL
// store, and an in-memory store for tests.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Node types on the canvas.
const (
	NodeTeam      = "team"
	NodeMember    = "member"
	NodeFeature   = "feature"
	NodeOption    = "option"
	NodeProvider  = "provider"
	NodeMilestone = "milestone"
)

// Edge types.
const (
	EdgeTeamMember = "team_member" // team -> member
	EdgeContains   = "contains"    // milestone -> work item
	EdgeDependsOn  = "depends_on"  // work item -> work item
)

// WorkItemTypes are the node types the allocation engine treats as
// structurally identical work items.
var WorkItemTypes = []string{NodeFeature, NodeOption, NodeProvider}

// IsWorkItemType reports whether t is an allocatable work-item type.
func IsWorkItemType(t string) bool {
	for _, wt := range WorkItemTypes {
		if t == wt {
			return true
		}
	}
	return false
}

// Fields is a node's payload, kept raw per key so list-valued fields
// can be normalized lazily by the codec layer.
type Fields map[string]json.RawMessage

// Node is a canvas node.
type Node struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Fields    Fields    `json:"fields"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Edge is a directed, typed connection between two nodes.
type Edge struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNotFound is returned when a referenced node or edge does not
// exist. Engine code treats it as a silent no-op, never a failure.
var ErrNotFound = errors.New("graph: not found")

// IsNotFound reports whether err is a missing node or edge.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store is the persistence contract. UpdateNode merges the given
// fields into the node's existing payload; it does not replace the
// whole payload.
type Store interface {
	GetNode(ctx context.Context, id string) (*Node, error)
	CreateNode(ctx context.Context, node *Node) error
	UpdateNode(ctx context.Context, id string, fields Fields) error
	DeleteNode(ctx context.Context, id string) error
	ListNodes(ctx context.Context, nodeType string) ([]*Node, error)

	// GetEdges returns edges touching nodeID in either direction,
	// optionally filtered by edge type (empty string matches all).
	GetEdges(ctx context.Context, nodeID, edgeType string) ([]*Edge, error)
	CreateEdge(ctx context.Context, edge *Edge) error
	DeleteEdge(ctx context.Context, id string) error
}
