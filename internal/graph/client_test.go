package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestClientGetNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nodes/n1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("missing bearer token, got %q", got)
		}
		json.NewEncoder(w).Encode(Node{ID: "n1", Type: NodeTeam})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", nil, zaptest.NewLogger(t))

	node, err := client.GetNode(context.Background(), "n1")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if node.ID != "n1" || node.Type != NodeTeam {
		t.Errorf("unexpected node %+v", node)
	}
}

func TestClientNotFoundMapsToErrNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", nil, zaptest.NewLogger(t))

	if _, err := client.GetNode(context.Background(), "gone"); !IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := client.DeleteEdge(context.Background(), "gone"); !IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClientSuppressesRepeatedMisses(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tracker := NewFailureTracker(3, time.Minute)
	client := NewClient(srv.URL, "", tracker, zaptest.NewLogger(t))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := client.GetNode(ctx, "ghost"); !IsNotFound(err) {
			t.Fatalf("call %d: expected ErrNotFound, got %v", i, err)
		}
	}

	// Only the first three calls should reach the wire.
	if got := atomic.LoadInt64(&calls); got != 3 {
		t.Errorf("expected 3 upstream calls, got %d", got)
	}
}

func TestClientCreateNodeRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/nodes" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var n Node
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			t.Fatalf("decode: %v", err)
		}
		n.ID = "assigned-id"
		json.NewEncoder(w).Encode(n)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", nil, zaptest.NewLogger(t))

	node := &Node{Type: NodeFeature, Fields: Fields{"name": json.RawMessage(`"Checkout"`)}}
	if err := client.CreateNode(context.Background(), node); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if node.ID != "assigned-id" {
		t.Errorf("expected service-assigned id, got %q", node.ID)
	}
}

func TestClientListAndEdgesQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/nodes":
			if r.URL.Query().Get("type") != NodeTeam {
				t.Errorf("missing type filter: %s", r.URL.RawQuery)
			}
			json.NewEncoder(w).Encode([]*Node{{ID: "t1", Type: NodeTeam}})
		case "/nodes/t1/edges":
			if r.URL.Query().Get("type") != EdgeTeamMember {
				t.Errorf("missing edge type filter: %s", r.URL.RawQuery)
			}
			json.NewEncoder(w).Encode([]*Edge{{ID: "e1", Type: EdgeTeamMember, From: "t1", To: "m1"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", nil, zaptest.NewLogger(t))
	ctx := context.Background()

	nodes, err := client.ListNodes(ctx, NodeTeam)
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != "t1" {
		t.Errorf("unexpected nodes %+v", nodes)
	}

	edges, err := client.GetEdges(ctx, "t1", EdgeTeamMember)
	if err != nil {
		t.Fatalf("GetEdges: %v", err)
	}
	if len(edges) != 1 || edges[0].To != "m1" {
		t.Errorf("unexpected edges %+v", edges)
	}
}
