package vespa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*VectorIndex)(nil)

// Config holds Vespa connection configuration
type Config struct {
	// BaseURL is the Vespa container endpoint (e.g., http://localhost:8080)
	BaseURL string

	// Namespace and DocumentType address the content schema
	Namespace    string
	DocumentType string

	// RankProfile ranks by closeness(field, embedding) over an angular distance metric
	RankProfile string

	// TargetHits is the nearestNeighbor candidate count
	TargetHits int

	// Timeout for HTTP requests
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		Namespace:    "ivor",
		DocumentType: "content",
		RankProfile:  "similarity",
		TargetHits:   100,
		Timeout:      30 * time.Second,
	}
}

// VectorIndex implements driven.VectorIndex using Vespa's document and search APIs.
// The schema must declare `embedding` as a tensor with distance-metric angular.
type VectorIndex struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// NewVectorIndex creates a new Vespa-backed VectorIndex
func NewVectorIndex(cfg Config) *VectorIndex {
	defaults := DefaultConfig(cfg.BaseURL)
	if cfg.Namespace == "" {
		cfg.Namespace = defaults.Namespace
	}
	if cfg.DocumentType == "" {
		cfg.DocumentType = defaults.DocumentType
	}
	if cfg.RankProfile == "" {
		cfg.RankProfile = defaults.RankProfile
	}
	if cfg.TargetHits <= 0 {
		cfg.TargetHits = defaults.TargetHits
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	return &VectorIndex{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// vespaDocument represents a document in Vespa format
type vespaDocument struct {
	Fields map[string]any `json:"fields"`
}

// vespaSearchResponse represents Vespa's search response format
type vespaSearchResponse struct {
	Root struct {
		Children []struct {
			ID        string  `json:"id"`
			Relevance float64 `json:"relevance"`
			Fields    struct {
				ContentID string `json:"content_id"`
			} `json:"fields"`
		} `json:"children"`
	} `json:"root"`
}

func (v *VectorIndex) docURL(id string) string {
	// Vespa document API: /document/v1/{namespace}/{doctype}/docid/{docid}
	return fmt.Sprintf("%s/document/v1/%s/%s/docid/%s",
		v.baseURL, v.cfg.Namespace, v.cfg.DocumentType, url.PathEscape(id))
}

// Upsert writes (or replaces) the document holding id's embedding.
// Extra fields are stored alongside for display and filtering.
func (v *VectorIndex) Upsert(ctx context.Context, id string, embedding []float32, fields map[string]any) error {
	doc := vespaDocument{Fields: make(map[string]any, len(fields)+2)}
	for k, val := range fields {
		doc.Fields[k] = val
	}
	doc.Fields["content_id"] = id
	doc.Fields["embedding"] = map[string]any{"values": embedding}

	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.docURL(id), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vespa upsert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vespa upsert failed: %s - %s", resp.Status, string(respBody))
	}
	return nil
}

// Nearest runs a nearestNeighbor query and converts closeness back to cosine distance.
func (v *VectorIndex) Nearest(ctx context.Context, embedding []float32, k int) ([]driven.VectorMatch, error) {
	if k <= 0 {
		return nil, nil
	}
	targetHits := v.cfg.TargetHits
	if targetHits < k {
		targetHits = k
	}

	searchReq := map[string]any{
		"yql": fmt.Sprintf("select content_id from %s where ({targetHits:%d}nearestNeighbor(embedding,q))",
			v.cfg.DocumentType, targetHits),
		"hits":            k,
		"ranking.profile": v.cfg.RankProfile,
		"input.query(q)":  embedding,
	}

	body, err := json.Marshal(searchReq)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/search/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vespa search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vespa search failed: %s - %s", resp.Status, string(respBody))
	}

	var searchResp vespaSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode vespa response: %w", err)
	}

	matches := make([]driven.VectorMatch, 0, len(searchResp.Root.Children))
	for _, hit := range searchResp.Root.Children {
		id := hit.Fields.ContentID
		if id == "" {
			id = docIDFromHit(hit.ID)
		}
		matches = append(matches, driven.VectorMatch{ID: id, Distance: closenessToCosineDistance(hit.Relevance)})
	}
	return matches, nil
}

// closenessToCosineDistance inverts closeness = 1/(1+angle) for the angular metric
func closenessToCosineDistance(closeness float64) float64 {
	if closeness <= 0 {
		return 2
	}
	angle := 1/closeness - 1
	return 1 - math.Cos(angle)
}

// docIDFromHit extracts the user id from "id:{ns}:{type}::{id}"
func docIDFromHit(hitID string) string {
	if i := strings.Index(hitID, "::"); i >= 0 {
		return hitID[i+2:]
	}
	return hitID
}

// Delete removes a document. A missing document is not an error.
func (v *VectorIndex) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, v.docURL(id), nil)
	if err != nil {
		return err
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vespa delete: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vespa delete failed: %s - %s", resp.Status, string(respBody))
	}
	return nil
}

// HealthCheck verifies the container is up
func (v *VectorIndex) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/state/v1/health", nil)
	if err != nil {
		return err
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vespa health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vespa unhealthy: %s", resp.Status)
	}
	return nil
}
