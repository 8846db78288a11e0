// Package kb is the client for the external knowledge-base API that owns
// fragments. The bridge only writes: create and partial update. It never
// reads fragment state back; existence is inferred from markers.
package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the hosted API endpoint; override for self-hosted
// deployments via config.
const DefaultBaseURL = "https://api.fragmentbase.io"

const requestTimeout = 30 * time.Second

// API is the contract the sync core depends on. The production Client and
// test doubles both satisfy it.
type API interface {
	CreateFragment(ctx context.Context, req CreateRequest) (Fragment, error)
	UpdateFragment(ctx context.Context, fragmentID string, req UpdateRequest) error
}

// CreateRequest creates a new fragment mirroring a thread.
type CreateRequest struct {
	Title            string   `json:"title"`
	Body             string   `json:"body"`
	WorkspaceID      string   `json:"workspace_id"`
	ClassificationID string   `json:"classification_id"`
	Summary          string   `json:"summary,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	RepositoryTag    string   `json:"repository_tag,omitempty"`
}

// UpdateRequest carries only the fields being changed; nil pointers are
// omitted from the wire payload.
type UpdateRequest struct {
	Title *string  `json:"title,omitempty"`
	Body  *string  `json:"body,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// Fragment is the subset of the API's fragment representation the bridge
// cares about.
type Fragment struct {
	ID string `json:"id"`
}

// Client is a long-lived, shared HTTP client for the fragment API. Request
// methods are stateless; no locking is needed between callers.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
}

// NewClient creates a fragment API client. baseURL falls back to
// DefaultBaseURL when empty.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		// The API tolerates bursts but sustained traffic is paced to
		// stay inside its fair-use limits.
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// CreateFragment creates a fragment and returns its durable identifier.
func (c *Client) CreateFragment(ctx context.Context, req CreateRequest) (Fragment, error) {
	var frag Fragment
	if err := c.do(ctx, http.MethodPost, "/v1/fragments", req, &frag); err != nil {
		return Fragment{}, err
	}
	if frag.ID == "" {
		return Fragment{}, fmt.Errorf("fragment api returned no id for created fragment")
	}
	log.Info().Str("fragment_id", frag.ID).Str("title", req.Title).Msg("Created fragment")
	return frag, nil
}

// UpdateFragment applies a partial update. Updates are full-field
// overwrites on the API side, so repeating one is safe.
func (c *Client) UpdateFragment(ctx context.Context, fragmentID string, req UpdateRequest) error {
	if fragmentID == "" {
		return fmt.Errorf("fragment id required for update")
	}
	if err := c.do(ctx, http.MethodPatch, "/v1/fragments/"+fragmentID, req, nil); err != nil {
		return err
	}
	log.Info().Str("fragment_id", fragmentID).Msg("Updated fragment")
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fragment api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{Status: resp.StatusCode, Detail: string(respBody)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode fragment api response: %w", err)
		}
	}
	return nil
}

// APIError is a non-2xx response from the fragment API. These are never
// retried automatically: create/update are not proven idempotent upstream
// and blind retries risk duplicate side effects.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fragment api error: status %d: %s", e.Status, e.Detail)
}
