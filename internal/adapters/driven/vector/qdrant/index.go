// Package qdrant provides a vector index adapter backed by the Qdrant
// REST API. Collections map one-to-one to Qdrant collections and use
// cosine distance.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quillworks/driveanswer/internal/core/domain"
	"github.com/quillworks/driveanswer/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:6333"
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the Qdrant vector index.
type Config struct {
	// BaseURL is the Qdrant REST API base URL (default: http://localhost:6333).
	BaseURL string

	// APIKey is sent as the api-key header when set.
	APIKey string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Index talks to a Qdrant instance over its REST API.
type Index struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// New creates a Qdrant-backed vector index.
func New(cfg Config) *Index {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Index{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// createCollectionRequest is the Qdrant collection creation format.
type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

// point is the Qdrant point format for upserts.
type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type upsertRequest struct {
	Points []point `json:"points"`
}

// searchRequest is the Qdrant point search format.
type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type searchResponse struct {
	Result []struct {
		ID      string         `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
	Status any `json:"status"`
}

// CreateCollection creates a cosine-distance collection of the given dimension.
func (x *Index) CreateCollection(ctx context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidInput)
	}

	reqBody := createCollectionRequest{
		Vectors: vectorParams{Size: dimensions, Distance: "Cosine"},
	}
	return x.do(ctx, http.MethodPut, "/collections/"+name, reqBody, nil)
}

// DropCollection removes a collection and all its points.
func (x *Index) DropCollection(ctx context.Context, name string) error {
	return x.do(ctx, http.MethodDelete, "/collections/"+name, nil, nil)
}

// Upsert writes embedded chunks as points. Chunk metadata travels in the
// point payload so search results can be rebuilt without a second lookup.
func (x *Index) Upsert(ctx context.Context, name string, chunks []domain.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]point, len(chunks))
	for i, c := range chunks {
		points[i] = point{
			ID:     c.Chunk.ID,
			Vector: c.Embedding,
			Payload: map[string]any{
				"source_id":      c.Chunk.SourceID,
				"source_name":    c.Chunk.SourceName,
				"text":           c.Chunk.Text,
				"sequence_index": c.Chunk.SequenceIndex,
			},
		}
	}

	return x.do(ctx, http.MethodPut, "/collections/"+name+"/points?wait=true", upsertRequest{Points: points}, nil)
}

// Query returns the k nearest points by cosine similarity.
func (x *Index) Query(ctx context.Context, name string, vector []float32, k int) ([]domain.ScoredChunk, error) {
	reqBody := searchRequest{
		Vector:      vector,
		Limit:       k,
		WithPayload: true,
	}

	var searchResp searchResponse
	if err := x.do(ctx, http.MethodPost, "/collections/"+name+"/points/search", reqBody, &searchResp); err != nil {
		return nil, err
	}

	scored := make([]domain.ScoredChunk, 0, len(searchResp.Result))
	for _, hit := range searchResp.Result {
		chunk := domain.Chunk{ID: hit.ID}
		if s, ok := hit.Payload["source_id"].(string); ok {
			chunk.SourceID = s
		}
		if s, ok := hit.Payload["source_name"].(string); ok {
			chunk.SourceName = s
		}
		if s, ok := hit.Payload["text"].(string); ok {
			chunk.Text = s
		}
		if n, ok := hit.Payload["sequence_index"].(float64); ok {
			chunk.SequenceIndex = int(n)
		}
		scored = append(scored, domain.ScoredChunk{Chunk: chunk, Score: hit.Score})
	}
	return scored, nil
}

// Close releases resources.
func (x *Index) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

// do sends one JSON request and optionally decodes the response body.
func (x *Index) do(ctx context.Context, method, path string, reqBody, out any) error {
	var body io.Reader = http.NoBody
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, x.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return domain.NewRemoteError("qdrant "+method+" "+path, true, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: qdrant %s", domain.ErrNotFound, path)
	}
	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
		return domain.NewRemoteError("qdrant "+method+" "+path, retryable,
			fmt.Errorf("qdrant error (status %d): %s", resp.StatusCode, string(respBody)))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
