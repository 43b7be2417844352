// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/keepsake-ci/keepsake/lib/clock"
	"github.com/keepsake-ci/keepsake/lib/secret"
)

// githubAPIVersion is the GitHub REST API version header. Pinning the
// version ensures consistent behavior as GitHub evolves the API.
const githubAPIVersion = "2022-11-28"

// defaultBaseURL is the base URL for the public GitHub API.
const defaultBaseURL = "https://api.github.com"

// maxResponseBody caps how much of an API response the client will
// read. GitHub responses for the endpoints this client uses are at
// most a page of comments; 8 MiB is far beyond anything legitimate.
const maxResponseBody = 8 << 20

// Config holds configuration for creating a GitHub API Client.
type Config struct {
	// BaseURL is the root URL for API requests. Defaults to
	// "https://api.github.com". Must use HTTPS.
	BaseURL string

	// Token is the API token (a fine-grained token or the
	// installation token a CI provider injects into the job).
	// Required. The client borrows the buffer; the caller retains
	// ownership and closes it after the client is done.
	Token *secret.Buffer

	// HTTPClient is used for all HTTP requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Clock provides time operations. Defaults to clock.Real().
	// Inject clock.Fake() in tests for deterministic behavior.
	Clock clock.Clock

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client is a typed GitHub REST API client with automatic
// authentication, rate limit tracking, pagination, and structured
// error handling.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      *secret.Buffer
	rateLimit  *rateLimitTracker
	clock      clock.Clock
	logger     *slog.Logger
}

// validate resolves defaults and checks the configuration. Returns
// the resolved copy.
func (config Config) validate() (Config, error) {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if !strings.HasPrefix(config.BaseURL, "https://") {
		return config, fmt.Errorf("github: API client requires HTTPS (got %q)", config.BaseURL)
	}
	if config.Token == nil || config.Token.Len() == 0 {
		return config, fmt.Errorf("github: no token configured")
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return config, nil
}

// NewClient creates a GitHub API client from the given configuration.
// Returns an error if the configuration is invalid (missing token,
// non-HTTPS URL).
func NewClient(config Config) (*Client, error) {
	config, err := config.validate()
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:    config.BaseURL,
		httpClient: config.HTTPClient,
		token:      config.Token,
		rateLimit:  newRateLimitTracker(config.Clock),
		clock:      config.Clock,
		logger:     config.Logger,
	}, nil
}

// do executes an authenticated GitHub API request. Handles rate limit
// waiting, authentication, and error parsing. The path is relative to
// the base URL (e.g., "/repos/owner/repo/issues").
//
// Returns the response body as raw bytes. On non-2xx responses,
// returns an *APIError.
func (client *Client) do(ctx context.Context, method, path string, requestBody any) ([]byte, http.Header, error) {
	return client.doWithRetry(ctx, method, path, requestBody, false)
}

// doWithRetry is the internal implementation of do with a retry flag
// to prevent infinite recursion on persistent rate limiting.
func (client *Client) doWithRetry(ctx context.Context, method, path string, requestBody any, isRetry bool) ([]byte, http.Header, error) {
	url := client.baseURL + path
	response, err := client.doRaw(ctx, method, url, requestBody)
	if err != nil {
		return nil, nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBody))
	if err != nil {
		return nil, nil, fmt.Errorf("github: reading response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		// Rate limited: back off once and retry. Only once, to avoid
		// spinning on persistent exhaustion.
		if !isRetry && (response.StatusCode == 429 || (response.StatusCode == 403 && isRateLimitMessage(string(body)))) {
			retryDuration := client.rateLimit.retryAfter(response.Header)
			if retryDuration > 0 {
				client.logger.Info("rate limited, backing off",
					"duration", retryDuration,
					"method", method,
					"path", path,
				)

				select {
				case <-client.clock.After(retryDuration):
				case <-ctx.Done():
					return nil, nil, ctx.Err()
				}

				return client.doWithRetry(ctx, method, path, requestBody, true)
			}
		}

		return nil, nil, parseAPIErrorFromBody(response.StatusCode, body)
	}

	return body, response.Header, nil
}

// doRaw executes an HTTP request with authentication and rate limit
// waiting, but without response parsing. The caller is responsible
// for closing the response body.
//
// This is used by both do() (for standard requests) and PageIterator
// (which needs access to the Link header before parsing the body).
func (client *Client) doRaw(ctx context.Context, method, url string, requestBody any) (*http.Response, error) {
	// Preemptive rate limit check.
	if err := client.rateLimit.wait(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("github: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("github: creating request: %w", err)
	}

	request.Header.Set("Authorization", "Bearer "+client.token.String())
	request.Header.Set("Accept", "application/vnd.github+json")
	request.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("github: %s %s: %w", method, url, err)
	}

	// Update rate limit tracker from every response.
	client.rateLimit.update(response.Header)

	return response, nil
}

// get is a convenience method for GET requests that return a single
// JSON object. Decodes the response into result.
func (client *Client) get(ctx context.Context, path string, result any) error {
	body, _, err := client.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, result)
}

// post is a convenience method for POST requests that return a JSON
// object. Decodes the response into result (pass nil to discard).
func (client *Client) post(ctx context.Context, path string, requestBody any, result any) error {
	body, _, err := client.do(ctx, http.MethodPost, path, requestBody)
	if err != nil {
		return err
	}
	if result != nil {
		return json.Unmarshal(body, result)
	}
	return nil
}

// patch is a convenience method for PATCH requests that return a JSON
// object. Decodes the response into result (pass nil to discard).
func (client *Client) patch(ctx context.Context, path string, requestBody any, result any) error {
	body, _, err := client.do(ctx, http.MethodPatch, path, requestBody)
	if err != nil {
		return err
	}
	if result != nil {
		return json.Unmarshal(body, result)
	}
	return nil
}

// list creates a PageIterator for a paginated GET endpoint.
func list[T any](client *Client, path string) *PageIterator[T] {
	return &PageIterator[T]{
		client:  client,
		nextURL: client.baseURL + path,
	}
}

// parseAPIError reads a GitHub API error from an HTTP response.
func parseAPIError(response *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(response.Body, maxResponseBody))
	return parseAPIErrorFromBody(response.StatusCode, body)
}

// parseAPIErrorFromBody parses a GitHub API error from a status code
// and response body.
func parseAPIErrorFromBody(statusCode int, body []byte) *APIError {
	apiError := &APIError{StatusCode: statusCode}

	var wireError struct {
		Message          string            `json:"message"`
		DocumentationURL string            `json:"documentation_url"`
		Errors           []ValidationError `json:"errors"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Message != "" {
		apiError.Message = wireError.Message
		apiError.DocumentationURL = wireError.DocumentationURL
		apiError.Errors = wireError.Errors
	} else {
		apiError.Message = string(body)
	}

	return apiError
}
