package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/vcpkg-mcp/internal/packages"
	"github.com/dshills/vcpkg-mcp/internal/searcher"
	"github.com/dshills/vcpkg-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodePackageNotFound = -32001 // Package or requested version does not exist
	ErrorCodeUpstreamFailure = -32002 // GitHub request failed or was rate limited
)

// handleGetPackageInfo handles the get_package_info tool invocation
func (s *Server) handleGetPackageInfo(ctx context.Context, logger log.Logger, args map[string]interface{}) (map[string]interface{}, error) {
	name, err := getString(args, "name", "")
	if err != nil {
		return nil, err
	}
	version, err := getString(args, "version", "")
	if err != nil {
		return nil, err
	}
	includeScore, err := getBool(args, "include_score", true)
	if err != nil {
		return nil, err
	}

	info, err := s.packages.GetInfo(ctx, packages.InfoRequest{
		Name:         name,
		Version:      version,
		IncludeScore: includeScore,
	})
	if err != nil {
		return nil, err
	}
	if info.Stale {
		level.Warn(logger).Log("msg", "serving stale package info", "port", name)
	}

	return infoResponse(info), nil
}

// handleGetPackageReadme handles the get_package_readme tool invocation
func (s *Server) handleGetPackageReadme(ctx context.Context, logger log.Logger, args map[string]interface{}) (map[string]interface{}, error) {
	name, err := getString(args, "name", "")
	if err != nil {
		return nil, err
	}
	includeExamples, err := getBool(args, "include_examples", true)
	if err != nil {
		return nil, err
	}
	raw, err := getBool(args, "raw", false)
	if err != nil {
		return nil, err
	}

	doc, err := s.packages.GetReadme(ctx, packages.ReadmeRequest{
		Name:            name,
		IncludeExamples: includeExamples,
		Raw:             raw,
	})
	if err != nil {
		return nil, err
	}
	if doc.Stale {
		level.Warn(logger).Log("msg", "serving stale readme", "port", name)
	}

	examples := doc.Examples
	if examples == nil {
		examples = []types.UsageExample{}
	}

	return map[string]interface{}{
		"name":        doc.Name,
		"source":      doc.Source,
		"description": doc.Description,
		"content":     doc.Content,
		"examples":    examples,
		"stale":       doc.Stale,
	}, nil
}

// handleSearchPackages handles the search_packages tool invocation
func (s *Server) handleSearchPackages(ctx context.Context, logger log.Logger, args map[string]interface{}) (map[string]interface{}, error) {
	query, err := getString(args, "query", "")
	if err != nil {
		return nil, err
	}
	limit, err := getInt(args, "limit", searcher.DefaultLimit)
	if err != nil {
		return nil, err
	}
	// The searcher reads 0 as "use the default"; an explicit 0 is out of range
	if limit == 0 {
		return nil, types.NewValidation(ToolSearchPackages, "limit", fmt.Sprintf("integer between 1 and %d", searcher.MaxLimit))
	}
	quality, err := getOptionalFloat(args, "quality_threshold")
	if err != nil {
		return nil, err
	}
	popularity, err := getOptionalFloat(args, "popularity_threshold")
	if err != nil {
		return nil, err
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:               query,
		Limit:               limit,
		QualityThreshold:    quality,
		PopularityThreshold: popularity,
	})
	if err != nil {
		return nil, err
	}

	results := make([]map[string]interface{}, 0, len(resp.Packages))
	for _, pkg := range resp.Packages {
		results = append(results, packageResponse(pkg))
	}

	level.Debug(logger).Log("msg", "search served", "query", query, "results", len(results), "cache_hit", resp.CacheHit)

	return map[string]interface{}{
		"query":       resp.Query,
		"total_hits":  resp.Total,
		"count":       len(results),
		"packages":    results,
		"cache_hit":   resp.CacheHit,
		"duration_ms": resp.Duration.Milliseconds(),
	}, nil
}

// handleGetCacheStats handles the get_cache_stats tool invocation
func (s *Server) handleGetCacheStats(_ context.Context, _ log.Logger, _ map[string]interface{}) (map[string]interface{}, error) {
	stats := s.cache.Stats()
	return map[string]interface{}{
		"hits":              stats.Hits,
		"misses":            stats.Misses,
		"hit_rate":          stats.HitRate(),
		"entries":           stats.Entries,
		"evictions":         stats.Evictions,
		"approx_size_bytes": stats.ApproxSizeBytes,
		"max_size_bytes":    stats.MaxSizeBytes,
	}, nil
}

func infoResponse(info *packages.Info) map[string]interface{} {
	response := map[string]interface{}{
		"name":         info.Name,
		"version":      info.Version,
		"version_kind": info.VersionKind,
		"port_version": info.PortVersion,
		"description":  info.Description,
		"homepage":     info.Homepage,
		"license":      info.License,
		"supports":     info.Supports,
		"dependencies": info.Dependencies,
		"features":     info.Features,
		"stale":        info.Stale,
	}
	if info.Dependencies == nil {
		response["dependencies"] = []interface{}{}
	}
	if info.Features == nil {
		response["features"] = []string{}
	}

	if u := info.Upstream; u != nil {
		upstream := map[string]interface{}{
			"owner":     u.Owner,
			"repo":      u.Repo,
			"ref":       u.Ref,
			"url":       u.URL,
			"available": u.Available,
		}
		if u.ContentHash != "" {
			upstream["content_hash"] = u.ContentHash
		}
		if u.HeadRef != "" {
			upstream["head_ref"] = u.HeadRef
		}
		if u.Available {
			upstream["stars"] = u.Stars
			upstream["forks"] = u.Forks
			upstream["watchers"] = u.Watchers
			upstream["open_issues"] = u.OpenIssues
			upstream["pushed_at"] = u.PushedAt.Format(time.RFC3339)
			upstream["archived"] = u.Archived
			upstream["license"] = u.License
			upstream["topics"] = u.Topics
		}
		response["upstream"] = upstream
	}

	if info.Score != nil {
		response["score"] = info.Score
	}
	return response
}

func packageResponse(pkg searcher.Package) map[string]interface{} {
	result := map[string]interface{}{
		"name":        pkg.Name,
		"version":     pkg.Port.Version,
		"description": pkg.Port.Description,
		"homepage":    pkg.Port.Homepage,
		"relevance":   pkg.Relevance,
		"score":       pkg.Score,
	}
	if repo := pkg.Repository; repo != nil {
		result["repository"] = map[string]interface{}{
			"full_name": repo.FullName,
			"url":       repo.HTMLURL,
			"stars":     repo.StargazersCount,
			"pushed_at": repo.PushedAt.Format(time.RFC3339),
			"archived":  repo.Archived,
		}
	}
	return result
}

// Helper functions

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) *MCPError {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// toMCPError maps an error kind to its protocol error code
func toMCPError(err error) *MCPError {
	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newMCPError(ErrorCodeInternalError, "request cancelled", map[string]interface{}{
			"error": err.Error(),
		})
	}

	var typed *types.Error
	if !errors.As(err, &typed) {
		return newMCPError(ErrorCodeInternalError, "internal error", map[string]interface{}{
			"error": err.Error(),
		})
	}

	switch typed.Kind {
	case types.KindValidation:
		return newMCPError(ErrorCodeInvalidParams, typed.Error(), map[string]interface{}{
			"param":    typed.Field,
			"expected": typed.Expected,
		})
	case types.KindNotFound:
		data := map[string]interface{}{"package": typed.Package}
		if typed.Version != "" {
			data["version"] = typed.Version
		}
		return newMCPError(ErrorCodePackageNotFound, typed.Error(), data)
	case types.KindUpstream:
		return newMCPError(ErrorCodeUpstreamFailure, typed.Error(), map[string]interface{}{
			"retryable":    typed.Retryable,
			"rate_limited": typed.RateLimited,
		})
	default:
		return newMCPError(ErrorCodeInternalError, "internal error", map[string]interface{}{
			"error": typed.Error(),
		})
	}
}

// arguments returns the call's arguments; a call without arguments yields
// an empty map
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

func invalidParam(key, expected string) error {
	return newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("%s must be %s", key, expected), map[string]interface{}{
		"param":    key,
		"expected": expected,
	})
}

// getString extracts a string parameter with a default value
func getString(args map[string]interface{}, key, defaultValue string) (string, error) {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultValue, nil
	}
	s, ok := val.(string)
	if !ok {
		return "", invalidParam(key, "a string")
	}
	return s, nil
}

// getBool extracts a boolean parameter with a default value
func getBool(args map[string]interface{}, key string, defaultValue bool) (bool, error) {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultValue, nil
	}
	b, ok := val.(bool)
	if !ok {
		return false, invalidParam(key, "a boolean")
	}
	return b, nil
}

// getInt extracts an integer parameter with a default value. JSON numbers
// arrive as float64 and must be whole.
func getInt(args map[string]interface{}, key string, defaultValue int) (int, error) {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultValue, nil
	}
	switch v := val.(type) {
	case int:
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || v > math.MaxInt32 || v < math.MinInt32 {
			return 0, invalidParam(key, "an integer")
		}
		return int(v), nil
	default:
		return 0, invalidParam(key, "an integer")
	}
}

// getOptionalFloat extracts a number parameter; nil when absent
func getOptionalFloat(args map[string]interface{}, key string) (*float64, error) {
	val, ok := args[key]
	if !ok || val == nil {
		return nil, nil
	}
	switch v := val.(type) {
	case float64:
		return &v, nil
	case int:
		f := float64(v)
		return &f, nil
	default:
		return nil, invalidParam(key, "a number")
	}
}
