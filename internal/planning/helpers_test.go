package planning

import (
	"context"
	"encoding/json"
	"testing"

	"go.uber.org/zap/zaptest"

	"roadmapper/internal/graph"
)

// newTestLedger wires a ledger over an in-memory store with a
// synchronous write queue, so projections are persisted by the time a
// call returns.
func newTestLedger(t *testing.T) (*Ledger, *graph.MemoryStore) {
	t.Helper()

	store := graph.NewMemoryStore()
	logger := zaptest.NewLogger(t)
	queue := NewWriteQueue(store, 0, logger)
	return NewLedger(store, queue, logger), store
}

func rawField(t *testing.T, v any) json.RawMessage {
	t.Helper()

	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal field: %v", err)
	}
	return raw
}

func seedMember(t *testing.T, store *graph.MemoryStore, name string, hoursPerDay, daysPerWeek, dailyRate float64) string {
	t.Helper()

	node := &graph.Node{
		Type: graph.NodeMember,
		Fields: graph.Fields{
			"name":        rawField(t, name),
			"hoursPerDay": rawField(t, hoursPerDay),
			"daysPerWeek": rawField(t, daysPerWeek),
			"dailyRate":   rawField(t, dailyRate),
		},
	}
	if err := store.CreateNode(context.Background(), node); err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}
	return node.ID
}

func seedTeam(t *testing.T, store *graph.MemoryStore, name string) string {
	t.Helper()

	node := &graph.Node{
		Type: graph.NodeTeam,
		Fields: graph.Fields{
			"name":   rawField(t, name),
			"roster": json.RawMessage(`[]`),
		},
	}
	if err := store.CreateNode(context.Background(), node); err != nil {
		t.Fatalf("Failed to create team: %v", err)
	}
	return node.ID
}

func seedWorkItem(t *testing.T, store *graph.MemoryStore, nodeType, name string, extra graph.Fields) string {
	t.Helper()

	fields := graph.Fields{
		"name":            rawField(t, name),
		"teamAllocations": json.RawMessage(`[]`),
	}
	for k, v := range extra {
		fields[k] = v
	}
	node := &graph.Node{Type: nodeType, Fields: fields}
	if err := store.CreateNode(context.Background(), node); err != nil {
		t.Fatalf("Failed to create work item: %v", err)
	}
	return node.ID
}

// linkMember puts a member on a team's roster the way edge creation
// does: a zero-allocation entry.
func linkMember(t *testing.T, ledger *Ledger, teamID, memberID string) {
	t.Helper()

	if err := ledger.OnMemberLinked(context.Background(), teamID, memberID, "member"); err != nil {
		t.Fatalf("Failed to link member: %v", err)
	}
}

func reloadTeam(t *testing.T, store *graph.MemoryStore, teamID string) *Team {
	t.Helper()

	node, err := store.GetNode(context.Background(), teamID)
	if err != nil {
		t.Fatalf("Failed to reload team: %v", err)
	}
	return TeamFromNode(node, zaptest.NewLogger(t))
}

func reloadWorkItem(t *testing.T, store *graph.MemoryStore, id string) *WorkItem {
	t.Helper()

	node, err := store.GetNode(context.Background(), id)
	if err != nil {
		t.Fatalf("Failed to reload work item: %v", err)
	}
	return WorkItemFromNode(node, zaptest.NewLogger(t))
}
