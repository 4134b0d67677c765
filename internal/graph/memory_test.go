package graph

import (
	"context"
	"encoding/json"
	"testing"
)

func TestMemoryStoreNodeLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	node := &Node{
		Type: NodeTeam,
		Fields: Fields{
			"name": json.RawMessage(`"Platform"`),
		},
	}
	if err := store.CreateNode(ctx, node); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if node.ID == "" {
		t.Fatal("expected assigned node id")
	}

	got, err := store.GetNode(ctx, node.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.Type != NodeTeam {
		t.Errorf("expected type %q, got %q", NodeTeam, got.Type)
	}

	// Partial update merges, it does not replace.
	err = store.UpdateNode(ctx, node.ID, Fields{"color": json.RawMessage(`"blue"`)})
	if err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}
	got, err = store.GetNode(ctx, node.ID)
	if err != nil {
		t.Fatalf("GetNode after update: %v", err)
	}
	if string(got.Fields["name"]) != `"Platform"` {
		t.Errorf("name field lost on partial update: %s", got.Fields["name"])
	}
	if string(got.Fields["color"]) != `"blue"` {
		t.Errorf("color field not merged: %s", got.Fields["color"])
	}

	if err := store.DeleteNode(ctx, node.ID); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	if _, err := store.GetNode(ctx, node.ID); !IsNotFound(err) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.GetNode(ctx, "nope"); !IsNotFound(err) {
		t.Errorf("GetNode: expected ErrNotFound, got %v", err)
	}
	if err := store.UpdateNode(ctx, "nope", Fields{}); !IsNotFound(err) {
		t.Errorf("UpdateNode: expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteNode(ctx, "nope"); !IsNotFound(err) {
		t.Errorf("DeleteNode: expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteEdge(ctx, "nope"); !IsNotFound(err) {
		t.Errorf("DeleteEdge: expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreEdges(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	team := &Node{Type: NodeTeam}
	member := &Node{Type: NodeMember}
	milestone := &Node{Type: NodeMilestone}
	for _, n := range []*Node{team, member, milestone} {
		if err := store.CreateNode(ctx, n); err != nil {
			t.Fatalf("CreateNode: %v", err)
		}
	}

	e1 := &Edge{Type: EdgeTeamMember, From: team.ID, To: member.ID}
	e2 := &Edge{Type: EdgeContains, From: milestone.ID, To: team.ID}
	for _, e := range []*Edge{e1, e2} {
		if err := store.CreateEdge(ctx, e); err != nil {
			t.Fatalf("CreateEdge: %v", err)
		}
	}

	all, err := store.GetEdges(ctx, team.ID, "")
	if err != nil {
		t.Fatalf("GetEdges: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 edges touching team, got %d", len(all))
	}

	filtered, err := store.GetEdges(ctx, team.ID, EdgeTeamMember)
	if err != nil {
		t.Fatalf("GetEdges filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != e1.ID {
		t.Fatalf("expected only the team_member edge, got %+v", filtered)
	}

	// Deleting a node removes edges touching it.
	if err := store.DeleteNode(ctx, member.ID); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	remaining, err := store.GetEdges(ctx, team.ID, "")
	if err != nil {
		t.Fatalf("GetEdges after delete: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != e2.ID {
		t.Fatalf("expected dangling edges removed, got %+v", remaining)
	}
}

func TestMemoryStoreListNodes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < 3; i++ {
		if err := store.CreateNode(ctx, &Node{Type: NodeFeature}); err != nil {
			t.Fatalf("CreateNode: %v", err)
		}
	}
	if err := store.CreateNode(ctx, &Node{Type: NodeTeam}); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	features, err := store.ListNodes(ctx, NodeFeature)
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	if len(features) != 3 {
		t.Errorf("expected 3 features, got %d", len(features))
	}

	all, err := store.ListNodes(ctx, "")
	if err != nil {
		t.Fatalf("ListNodes all: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 nodes, got %d", len(all))
	}
}
