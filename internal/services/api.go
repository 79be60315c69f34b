// Raw HTTP relay used for bearer-authenticated Spotify Web API calls
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/qrtune/internal/shared"
)

// maxResponseBytes caps how much of an upstream body is buffered for passthrough.
const maxResponseBytes = 4 << 20

// APIService makes raw HTTP requests against a base URL and hands back the response untouched.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API service instance rooted at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = defaultAPIURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    baseURL,
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports whether the upstream answered with a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ContentType returns the upstream Content-Type, defaulting to JSON when the body parsed as JSON.
func (r *APIResponse) ContentType() string {
	if ct := r.Headers.Get("Content-Type"); ct != "" {
		return ct
	}
	if r.IsJSON {
		return "application/json"
	}
	return ""
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path, token string) (*APIResponse, error) {
	return a.Do(ctx, http.MethodGet, path, token, nil)
}

// Put performs a PUT request with body encoded as JSON and returns the raw response.
func (a *APIService) Put(ctx context.Context, path, token string, body any) (*APIResponse, error) {
	return a.Do(ctx, http.MethodPut, path, token, body)
}

// Do performs a request with an optional bearer token and JSON body.
//
// Non-2xx statuses are not errors: the caller decides what to do with them.
// Errors are returned only when the request could not be made or read.
func (a *APIService) Do(ctx context.Context, method, path, token string, body any) (*APIResponse, error) {
	fullURL := a.baseURL + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}

	var jsonData any
	if len(data) > 0 && json.Unmarshal(data, &jsonData) == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}
