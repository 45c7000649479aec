// Package vectorstore provides the similarity store for vehicle records:
// a thin Qdrant REST client plus the automobile collection built on it.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// QdrantClient wraps one endpoint + collection over the REST API.
type QdrantClient struct {
	Endpoint   string // e.g. http://localhost:6333
	Collection string
	APIKey     string

	httpClient *http.Client
}

func NewQdrantClient(endpoint, collection, apiKey string) *QdrantClient {
	return &QdrantClient{
		Endpoint:   endpoint,
		Collection: collection,
		APIKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ScoredPoint is one search hit with its raw payload.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload json.RawMessage
}

func (c *QdrantClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("qdrant: encode body: %w", err)
		}
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Endpoint+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("api-key", c.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant: %s %s status %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CollectionExists checks the collection without creating it.
func (c *QdrantClient) CollectionExists(ctx context.Context) (bool, error) {
	var out struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections/"+c.Collection+"/exists", nil, &out); err != nil {
		return false, err
	}
	return out.Result.Exists, nil
}

// CreateCollection provisions the collection with cosine vectors of the given
// dimension.
func (c *QdrantClient) CreateCollection(ctx context.Context, vectorSize int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	return c.do(ctx, http.MethodPut, "/collections/"+c.Collection, body, nil)
}

// CreatePayloadIndex adds a text index over one payload field.
func (c *QdrantClient) CreatePayloadIndex(ctx context.Context, field string) error {
	body := map[string]any{
		"field_name": field,
		"field_schema": map[string]any{
			"type":      "text",
			"tokenizer": "word",
			"lowercase": true,
		},
	}
	return c.do(ctx, http.MethodPut, "/collections/"+c.Collection+"/index", body, nil)
}

// Upsert writes one point and waits for it to be applied.
func (c *QdrantClient) Upsert(ctx context.Context, id string, vector []float64, payload any) error {
	body := map[string]any{
		"wait": true,
		"points": []map[string]any{
			{"id": id, "vector": vector, "payload": payload},
		},
	}
	return c.do(ctx, http.MethodPut, "/collections/"+c.Collection+"/points", body, nil)
}

// SearchParams shapes one vector search.
type SearchParams struct {
	Vector         []float64
	Limit          int
	Offset         int
	ScoreThreshold float64
	Filter         map[string]any
}

// Search runs a vector similarity query and returns scored hits with their
// payloads.
func (c *QdrantClient) Search(ctx context.Context, params SearchParams) ([]ScoredPoint, error) {
	body := map[string]any{
		"vector":       params.Vector,
		"limit":        params.Limit,
		"offset":       params.Offset,
		"with_payload": true,
	}
	if params.ScoreThreshold > 0 {
		body["score_threshold"] = params.ScoreThreshold
	}
	if params.Filter != nil {
		body["filter"] = params.Filter
	}

	var out struct {
		Result []struct {
			ID      any             `json:"id"` // uuid string or integer
			Score   float64         `json:"score"`
			Payload json.RawMessage `json:"payload"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/collections/"+c.Collection+"/points/search", body, &out); err != nil {
		return nil, err
	}

	hits := make([]ScoredPoint, 0, len(out.Result))
	for _, r := range out.Result {
		hits = append(hits, ScoredPoint{ID: fmt.Sprintf("%v", r.ID), Score: r.Score, Payload: r.Payload})
	}
	return hits, nil
}
