package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dshills/vcpkg-mcp/pkg/types"
)

// ErrNotFound is returned when the requested resource does not exist
var ErrNotFound = errors.New("not found")

// APIError is a non-success response from the GitHub API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// RateLimitError is returned when GitHub rejects a request because the
// primary or secondary rate limit is exhausted
type RateLimitError struct {
	StatusCode int
	Remaining  int
	Reset      time.Time     // Zero if unknown
	RetryAfter time.Duration // Zero if unknown
}

func (e *RateLimitError) Error() string {
	switch {
	case e.RetryAfter > 0:
		return fmt.Sprintf("rate limited (status %d), retry after %s", e.StatusCode, e.RetryAfter)
	case !e.Reset.IsZero():
		return fmt.Sprintf("rate limited (status %d), resets at %s", e.StatusCode, e.Reset.UTC().Format(time.RFC3339))
	default:
		return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
	}
}

// IsRateLimit reports whether err is a rate limit rejection
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// AsUpstream classifies a client error for callers. Not found and context
// errors are returned unchanged; everything else becomes an upstream error.
func AsUpstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return err
	}
	return types.NewUpstream(op, IsRateLimit(err), err)
}

// isRetryable reports whether a failed request is worth repeating:
// transport failures and server errors are, client errors are not
func isRetryable(err error) bool {
	if errors.Is(err, ErrNotFound) || IsRateLimit(err) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

// rateLimitFromResponse inspects a 403/429 response for rate limit headers
func rateLimitFromResponse(resp *http.Response) *RateLimitError {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}

	rl := &RateLimitError{StatusCode: resp.StatusCode, Remaining: -1}
	limited := resp.StatusCode == http.StatusTooManyRequests

	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rl.Remaining = n
			if n == 0 {
				limited = true
			}
		}
	}
	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			rl.Reset = time.Unix(sec, 0)
		}
	}
	if v := resp.Header.Get("Retry-After"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			rl.RetryAfter = time.Duration(sec) * time.Second
			limited = true
		}
	}

	if !limited {
		return nil
	}
	return rl
}
