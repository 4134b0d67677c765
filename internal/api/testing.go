package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap/zaptest"

	"roadmapper/internal/auth"
	"roadmapper/internal/config"
	"roadmapper/internal/graph"
	"roadmapper/internal/planning"
)

// TestServer holds test server dependencies
type TestServer struct {
	*Server
	Store *graph.MemoryStore
}

// NewTestServer creates a new test server backed by an in-memory graph
// store. The write queue runs with no debounce so projection writes
// land before the handler returns.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	logger := zaptest.NewLogger(t)
	store := graph.NewMemoryStore()
	queue := planning.NewWriteQueue(store, 0, logger)

	testCfg := &config.Config{
		Env:            "test",
		JWTSecret:      "test-secret-key",
		JWTExpiryHours: 24,
		APIKey:         "test-api-key",
	}

	server := NewServer(store, queue, testCfg, logger)
	server.SetAuthService(auth.NewService(testCfg.JWTSecret, testCfg.APIKey, testCfg.JWTExpiry()))

	return &TestServer{
		Server: server,
		Store:  store,
	}
}

// Close cleans up test server resources
func (ts *TestServer) Close() {
	ts.queue.Close()
}

// CreateTestNode creates a node and returns its ID
func (ts *TestServer) CreateTestNode(t *testing.T, nodeType string, fields map[string]interface{}) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f := graph.Fields{}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("Failed to marshal field %q: %v", k, err)
		}
		f[k] = raw
	}

	node := &graph.Node{Type: nodeType, Fields: f}
	if err := ts.Store.CreateNode(ctx, node); err != nil {
		t.Fatalf("Failed to create test node: %v", err)
	}
	return node.ID
}

// mustFields marshals a plain map into a graph field payload
func mustFields(t *testing.T, fields map[string]interface{}) graph.Fields {
	t.Helper()

	f := graph.Fields{}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("Failed to marshal field %q: %v", k, err)
		}
		f[k] = raw
	}
	return f
}

// LinkTestMember connects a member to a team with a team_member edge
// and seeds the roster entry
func (ts *TestServer) LinkTestMember(t *testing.T, teamID, memberID, role string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	edge := &graph.Edge{Type: graph.EdgeTeamMember, From: teamID, To: memberID}
	if err := ts.Store.CreateEdge(ctx, edge); err != nil {
		t.Fatalf("Failed to create test edge: %v", err)
	}
	if err := ts.ledger.OnMemberLinked(ctx, teamID, memberID, role); err != nil {
		t.Fatalf("Failed to seed roster entry: %v", err)
	}
}

// GenerateTestToken generates a JWT token for testing
func (ts *TestServer) GenerateTestToken(t *testing.T, client string) string {
	t.Helper()

	token, err := auth.GenerateToken(client, ts.config.JWTSecret, ts.config.JWTExpiry())
	if err != nil {
		t.Fatalf("Failed to generate test token: %v", err)
	}
	return token
}

// MakeRequest is a helper to make HTTP requests in tests
// Returns both the ResponseRecorder and the Request for testing
func MakeRequest(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()

	var reqBody []byte
	var err error
	if body != nil {
		reqBody, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return httptest.NewRecorder(), req
}

// MakeParamRequest creates an HTTP request carrying chi URL params
func MakeParamRequest(t *testing.T, method, path string, body interface{}, urlParams map[string]string) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()

	rec, req := MakeRequest(t, method, path, body, nil)

	if len(urlParams) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range urlParams {
			rctx.URLParams.Add(k, v)
		}
		ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
		req = req.WithContext(ctx)
	}

	return rec, req
}

// DecodeJSON decodes a JSON response into the provided interface
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

// AssertStatusCode checks if the response status code matches expected
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()

	if got != want {
		t.Errorf("Status code mismatch: got %d, want %d", got, want)
	}
}

// AssertError checks if the error response matches expected error and code
func AssertError(t *testing.T, rec *httptest.ResponseRecorder, wantCode int, wantErrorContains, wantCodeContains string) {
	t.Helper()

	AssertStatusCode(t, rec.Code, wantCode)

	var errResp ErrorResponse
	DecodeJSON(t, rec, &errResp)

	if wantErrorContains != "" && !contains(errResp.Error, wantErrorContains) {
		t.Errorf("Error message %q does not contain %q", errResp.Error, wantErrorContains)
	}

	if wantCodeContains != "" && !contains(errResp.Code, wantCodeContains) {
		t.Errorf("Error code %q does not contain %q", errResp.Code, wantCodeContains)
	}
}

// contains checks if a string contains a substring
func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || indexOf(s, substr) >= 0)
}

// indexOf returns the index of the first occurrence of substr in s, or -1
func indexOf(s, substr string) int {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
