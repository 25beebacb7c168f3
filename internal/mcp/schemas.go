package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/vcpkg-mcp/internal/searcher"
)

// Tool names
const (
	ToolGetPackageInfo   = "get_package_info"
	ToolGetPackageReadme = "get_package_readme"
	ToolSearchPackages   = "search_packages"
	ToolGetCacheStats    = "get_cache_stats"
)

var nameProperty = map[string]interface{}{
	"type":        "string",
	"description": "vcpkg port name, e.g. 'fmt' or 'boost-algorithm'",
	"pattern":     "^[a-z0-9]+(-[a-z0-9]+)*$",
}

// getPackageInfoTool returns the tool definition for get_package_info
func getPackageInfoTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolGetPackageInfo,
		Description: "Get vcpkg port metadata with upstream repository details and a quality score",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": nameProperty,
				"version": map[string]interface{}{
					"type":        "string",
					"description": "Expected port version, optionally with '#<port-version>'; fails with not found when it differs",
				},
				"include_score": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, include quality, popularity, maintenance and final scores",
					"default":     true,
				},
			},
			Required: []string{"name"},
		},
	}
}

// getPackageReadmeTool returns the tool definition for get_package_readme
func getPackageReadmeTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolGetPackageReadme,
		Description: "Get the README of a vcpkg port's upstream project (or its usage file) with extracted usage examples",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": nameProperty,
				"include_examples": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, extract code examples from usage sections",
					"default":     true,
				},
				"raw": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, return the README unmodified instead of stripping badges and comments",
					"default":     false,
				},
			},
			Required: []string{"name"},
		},
	}
}

// searchPackagesTool returns the tool definition for search_packages
func searchPackagesTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolSearchPackages,
		Description: "Search vcpkg ports and rank them by relevance, quality, popularity and maintenance",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Free text search query, e.g. 'json parser'",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return",
					"default":     searcher.DefaultLimit,
					"minimum":     1,
					"maximum":     searcher.MaxLimit,
				},
				"quality_threshold": map[string]interface{}{
					"type":        "number",
					"description": "Minimum quality score (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"popularity_threshold": map[string]interface{}{
					"type":        "number",
					"description": "Minimum popularity score (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getCacheStatsTool returns the tool definition for get_cache_stats
func getCacheStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolGetCacheStats,
		Description: "Report response cache hit rate, size and eviction statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
