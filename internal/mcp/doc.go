// Package mcp implements the Model Context Protocol (MCP) server for vcpkg
// package metadata.
//
// The MCP server exposes four tools to AI coding assistants:
//   - get_package_info: Port metadata, upstream repository details and score
//   - get_package_readme: Upstream README (or the port's usage file) with examples
//   - search_packages: Ranked search over the vcpkg registry
//   - get_cache_stats: Response cache statistics
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// stdout carries the protocol; all logging goes to stderr.
//
// # Tool: get_package_info
//
//	Request:
//	{
//	  "name": "get_package_info",
//	  "arguments": {"name": "fmt", "version": "10.2.1", "include_score": true}
//	}
//
//	Response:
//	{
//	  "name": "fmt",
//	  "version": "10.2.1",
//	  "version_kind": "version",
//	  "port_version": 1,
//	  "features": [],
//	  "upstream": {"owner": "fmtlib", "repo": "fmt", "content_hash": "a3f1...", "stars": 20000, ...},
//	  "score": {"final": 0.84, "quality": 0.95, "popularity": 0.9, "maintenance": 1},
//	  "stale": false
//	}
//
// A version that differs from the registry's fails with -32001.
//
// # Tool: get_package_readme
//
//	Request:
//	{
//	  "name": "get_package_readme",
//	  "arguments": {"name": "zlib", "include_examples": true, "raw": false}
//	}
//
// source is "upstream" for the upstream project's README and "usage" when
// only the port's usage file exists. A port with neither answers with source
// "none" and empty content rather than -32001.
//
// # Tool: search_packages
//
//	Request:
//	{
//	  "name": "search_packages",
//	  "arguments": {"query": "json parser", "limit": 10, "quality_threshold": 0.7}
//	}
//
// Results are ordered by final score, highest first, with ties broken by name.
//
// # Stale Results
//
// When GitHub is unreachable and a snapshot exists, info and README results
// are served from the snapshot with "stale": true.
//
// # Error Handling
//
// Errors are classified by kind and returned as JSON-RPC errors:
//   - -32602: Invalid params (data names the param and the expected domain)
//   - -32603: Internal error
//   - -32001: Package not found (data names the package and version)
//   - -32002: Upstream failure (data carries retryable and rate_limited)
//
// Every call is logged with a request_id and reported to the ToolObserver.
package mcp
