package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Client is an HTTP Store backed by the remote graph persistence
// service. Lookups run through a FailureTracker so ids the service
// keeps 404ing are not re-requested until a cooldown passes.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	failures   *FailureTracker
	logger     *zap.Logger
}

var _ Store = (*Client)(nil)

// NewClient creates a graph persistence client. failures may be nil to
// disable request suppression.
func NewClient(baseURL, token string, failures *FailureTracker, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		failures: failures,
		logger:   logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("graph service returned %d: %s", resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// GetNode fetches a node by id, honoring failure suppression.
func (c *Client) GetNode(ctx context.Context, id string) (*Node, error) {
	if c.failures.Blocked(id) {
		c.logger.Debug("Skipping blocked node lookup", zap.String("node_id", id))
		return nil, ErrNotFound
	}

	var node Node
	err := c.do(ctx, http.MethodGet, "/nodes/"+url.PathEscape(id), nil, &node)
	if err != nil {
		if IsNotFound(err) {
			c.failures.RecordMiss(id)
		}
		return nil, err
	}
	c.failures.RecordHit(id)
	return &node, nil
}

// CreateNode persists a new node and fills in the id the service
// assigned.
func (c *Client) CreateNode(ctx context.Context, node *Node) error {
	return c.do(ctx, http.MethodPost, "/nodes", node, node)
}

// UpdateNode merges partial fields into a node.
func (c *Client) UpdateNode(ctx context.Context, id string, fields Fields) error {
	return c.do(ctx, http.MethodPatch, "/nodes/"+url.PathEscape(id), fields, nil)
}

// DeleteNode removes a node.
func (c *Client) DeleteNode(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/nodes/"+url.PathEscape(id), nil, nil)
}

// ListNodes returns all nodes of a type.
func (c *Client) ListNodes(ctx context.Context, nodeType string) ([]*Node, error) {
	var nodes []*Node
	path := "/nodes"
	if nodeType != "" {
		path += "?type=" + url.QueryEscape(nodeType)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// GetEdges returns edges touching nodeID.
func (c *Client) GetEdges(ctx context.Context, nodeID, edgeType string) ([]*Edge, error) {
	var edges []*Edge
	path := "/nodes/" + url.PathEscape(nodeID) + "/edges"
	if edgeType != "" {
		path += "?type=" + url.QueryEscape(edgeType)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &edges); err != nil {
		return nil, err
	}
	return edges, nil
}

// CreateEdge persists a new edge.
func (c *Client) CreateEdge(ctx context.Context, edge *Edge) error {
	return c.do(ctx, http.MethodPost, "/edges", edge, edge)
}

// DeleteEdge removes an edge.
func (c *Client) DeleteEdge(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/edges/"+url.PathEscape(id), nil, nil)
}
