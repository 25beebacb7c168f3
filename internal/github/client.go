package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultBaseURL is the public GitHub REST API endpoint
	DefaultBaseURL = "https://api.github.com"
	// DefaultTimeout bounds every outbound request
	DefaultTimeout = 30 * time.Second
	// DefaultETagCacheSize is the number of conditional responses kept
	DefaultETagCacheSize = 512
	// MaxSearchPerPage is the largest page GitHub code search returns
	MaxSearchPerPage = 100

	apiVersion = "2022-11-28"
	userAgent  = "vcpkg-mcp"

	mediaJSON = "application/vnd.github+json"
	mediaRaw  = "application/vnd.github.raw+json"
)

// Endpoint names reported to the request observer
const (
	EndpointRepository = "repository"
	EndpointContents   = "contents"
	EndpointReadme     = "readme"
	EndpointSearchCode = "search_code"
)

// RequestObserver is notified after every HTTP round trip. status is 0 when
// the request failed before a response was received.
type RequestObserver func(endpoint string, status int, duration time.Duration)

// Config holds client configuration
type Config struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	Retry         *RetryConfig // nil uses DefaultRetryConfig
	ETagCacheSize int
	Logger        log.Logger
	Observer      RequestObserver
	HTTPClient    *http.Client // Optional override, e.g. for tests
}

// cachedResponse is a response body kept for conditional requests
type cachedResponse struct {
	etag string
	body []byte
}

// Client is a minimal GitHub REST API client
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      RetryConfig
	etags      *lru.Cache[string, *cachedResponse]
	logger     log.Logger
	observer   RequestObserver
}

// NewClient creates a GitHub client
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	retry := DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}

	size := cfg.ETagCacheSize
	if size <= 0 {
		size = DefaultETagCacheSize
	}
	etags, err := lru.New[string, *cachedResponse](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create etag cache: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		httpClient: httpClient,
		retry:      retry,
		etags:      etags,
		logger:     logger,
		observer:   cfg.Observer,
	}, nil
}

// GetRepository fetches repository metadata
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*Repository, error) {
	path := fmt.Sprintf("/repos/%s/%s", url.PathEscape(owner), url.PathEscape(repo))
	body, err := c.get(ctx, EndpointRepository, path, nil, mediaJSON)
	if err != nil {
		return nil, err
	}

	var r Repository
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode repository: %w", err)
	}
	return &r, nil
}

// GetContents fetches the raw content of a file at ref (default branch when empty)
func (c *Client) GetContents(ctx context.Context, owner, repo, filePath, ref string) ([]byte, error) {
	path := fmt.Sprintf("/repos/%s/%s/contents/%s", url.PathEscape(owner), url.PathEscape(repo), escapePath(filePath))
	var query url.Values
	if ref != "" {
		query = url.Values{"ref": {ref}}
	}
	return c.get(ctx, EndpointContents, path, query, mediaRaw)
}

// GetReadme fetches the raw README of a repository at ref (default branch when empty)
func (c *Client) GetReadme(ctx context.Context, owner, repo, ref string) ([]byte, error) {
	path := fmt.Sprintf("/repos/%s/%s/readme", url.PathEscape(owner), url.PathEscape(repo))
	var query url.Values
	if ref != "" {
		query = url.Values{"ref": {ref}}
	}
	return c.get(ctx, EndpointReadme, path, query, mediaRaw)
}

// SearchCode runs a code search query. perPage is clamped to [1, 100].
func (c *Client) SearchCode(ctx context.Context, query string, perPage int) (*CodeSearchResult, error) {
	if perPage < 1 {
		perPage = 1
	}
	if perPage > MaxSearchPerPage {
		perPage = MaxSearchPerPage
	}

	params := url.Values{
		"q":        {query},
		"per_page": {strconv.Itoa(perPage)},
	}
	body, err := c.get(ctx, EndpointSearchCode, "/search/code", params, mediaJSON)
	if err != nil {
		return nil, err
	}

	var result CodeSearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}
	return &result, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// get performs a GET with retry for transient failures
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, accept string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	return retryWithBackoff(ctx, c.retry, isRetryable, func() ([]byte, error) {
		return c.do(ctx, endpoint, u, accept)
	})
}

// do performs a single request, serving 304 responses from the etag cache
func (c *Client) do(ctx context.Context, endpoint, u, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	cacheKey := accept + " " + u
	cached, hasCached := c.etags.Get(cacheKey)
	if hasCached {
		req.Header.Set("If-None-Match", cached.etag)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(endpoint, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.observe(endpoint, resp.StatusCode, time.Since(start))

	level.Debug(c.logger).Log("msg", "github request", "endpoint", endpoint, "status", resp.StatusCode, "duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotModified && hasCached:
		return cached.body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		if rl := rateLimitFromResponse(resp); rl != nil {
			level.Warn(c.logger).Log("msg", "github rate limit hit", "endpoint", endpoint, "reset", rl.Reset)
			return nil, rl
		}
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: apiMessage(bodyBytes)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		c.etags.Add(cacheKey, &cachedResponse{etag: etag, body: body})
	}
	return body, nil
}

func (c *Client) observe(endpoint string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer(endpoint, status, d)
	}
}

// apiMessage extracts the message field of a GitHub error body
func apiMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}

// escapePath escapes each segment of a slash separated path
func escapePath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// IsNotFound reports whether err is a not found response
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
