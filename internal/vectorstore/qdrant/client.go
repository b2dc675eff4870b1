// Package qdrant is a thin client for the Qdrant HTTP API: collection
// management, point upserts, filtered similarity search, and counts.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// DistanceCosine is the default distance metric for new collections.
const DistanceCosine = "Cosine"

// Config holds client settings.
type Config struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to a Qdrant instance over its HTTP API.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// New creates a Qdrant client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.Endpoint)
	if baseURL == "" {
		return nil, fmt.Errorf("qdrant endpoint is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
	}, nil
}

// Point is a stored vector with its payload.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Hit is a scored search result.
type Hit struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Filter is a set of equality conditions, all of which must match.
type Filter map[string]string

// CollectionExists probes for a collection.
func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	var resp operationResponse
	status, err := c.doRequest(ctx, http.MethodGet, c.collectionPath(name, ""), nil, &resp)
	if err != nil {
		if status == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return resp.Status == "ok", nil
}

// CreateCollection creates a collection with the given vector dimensionality
// and distance metric.
func (c *Client) CreateCollection(ctx context.Context, name string, vectorSize int, distance string) error {
	if vectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", vectorSize)
	}
	if distance == "" {
		distance = DistanceCosine
	}

	req := createCollectionRequest{
		Vectors: vectorParams{Size: vectorSize, Distance: distance},
	}
	var resp operationResponse
	if _, err := c.doRequest(ctx, http.MethodPut, c.collectionPath(name, ""), req, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("qdrant create collection: %s", resp.Error)
	}
	return nil
}

// Upsert writes or overwrites a batch of points, waiting for persistence.
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	req := upsertPointsRequest{Points: points}
	var resp operationResponse
	if _, err := c.doRequest(ctx, http.MethodPut, c.collectionPath(collection, "/points?wait=true"), req, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("qdrant upsert: %s", resp.Error)
	}
	return nil
}

// Search runs a similarity search with an optional equality filter.
func (c *Client) Search(
	ctx context.Context, collection string,
	vector []float32, filter Filter, limit int,
) ([]Hit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}
	if limit <= 0 {
		limit = 5
	}

	req := searchRequest{
		Vector:      vector,
		Limit:       limit,
		WithPayload: true,
		Filter:      mustMatchFilter(filter),
	}

	var resp searchResponse
	if _, err := c.doRequest(ctx, http.MethodPost, c.collectionPath(collection, "/points/search"), req, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("qdrant search: %s", resp.Error)
	}

	hits := make([]Hit, 0, len(resp.Result))
	for _, item := range resp.Result {
		hits = append(hits, Hit{
			ID:      fmt.Sprint(item.ID),
			Score:   item.Score,
			Payload: item.Payload,
		})
	}
	return hits, nil
}

// Count returns the number of points matching the filter.
func (c *Client) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	req := countRequest{Filter: mustMatchFilter(filter)}
	var resp countResponse
	if _, err := c.doRequest(ctx, http.MethodPost, c.collectionPath(collection, "/points/count"), req, &resp); err != nil {
		return 0, err
	}
	if resp.Status != "ok" {
		return 0, fmt.Errorf("qdrant count: %s", resp.Error)
	}
	return resp.Result.Count, nil
}

// HealthCheck verifies the Qdrant instance is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		return fmt.Errorf("qdrant health: %w", err)
	}
	return nil
}

func (c *Client) collectionPath(collection, suffix string) string {
	return fmt.Sprintf("/collections/%s%s", url.PathEscape(collection), suffix)
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload, dest any) (int, error) {
	var bodyReader *bytes.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(buf)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return resp.StatusCode, fmt.Errorf("qdrant API error: %v (%d)", errBody["status"], resp.StatusCode)
	}

	if dest == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// mustMatchFilter converts equality conditions into a Qdrant must filter.
// Keys are sorted for request determinism.
func mustMatchFilter(values Filter) *qdrantFilter {
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k, v := range values {
		if v != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	must := make([]fieldCondition, 0, len(keys))
	for _, k := range keys {
		must = append(must, fieldCondition{
			Key:   k,
			Match: fieldMatch{Value: values[k]},
		})
	}
	return &qdrantFilter{Must: must}
}

// --- Qdrant API payloads ---

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

type upsertPointsRequest struct {
	Points []Point `json:"points"`
}

type fieldCondition struct {
	Key   string     `json:"key"`
	Match fieldMatch `json:"match"`
}

type fieldMatch struct {
	Value any `json:"value"`
}

type qdrantFilter struct {
	Must []fieldCondition `json:"must,omitempty"`
}

type searchRequest struct {
	Vector      []float32     `json:"vector"`
	Limit       int           `json:"limit"`
	WithPayload bool          `json:"with_payload"`
	Filter      *qdrantFilter `json:"filter,omitempty"`
}

type searchResponse struct {
	Status string `json:"status"`
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
	Error string `json:"error"`
}

type operationResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type countRequest struct {
	Filter *qdrantFilter `json:"filter,omitempty"`
}

type countResponse struct {
	Status string `json:"status"`
	Result struct {
		Count int64 `json:"count"`
	} `json:"result"`
	Error string `json:"error"`
}
