// Package github is a small client for the parts of the GitHub REST API the
// server needs: repository metadata, raw file contents, READMEs and code
// search.
//
// Transient failures (transport errors, 5xx) are retried with exponential
// backoff. Not found and rate limit responses are returned immediately as
// ErrNotFound and *RateLimitError so callers can decide whether to back off.
// Responses carrying an ETag are kept in a bounded LRU and revalidated with
// If-None-Match; GitHub does not count 304 responses against the rate limit.
package github
