// Package types provides shared type definitions for the vcpkg MCP server.
//
// This package defines records and errors used across multiple components:
// score results produced by the scoring engine, usage examples produced by the
// README extractor, and the error taxonomy every layer classifies its failures
// with.
//
// # Error Taxonomy
//
// Failures are classified by Kind so the MCP layer can pick a protocol error
// code without knowing where the error came from:
//
//	err := types.NewNotFound("get_package_info", "zlib")
//	if types.IsKind(err, types.KindNotFound) {
//	    // report missing package
//	}
//
// Upstream failures carry RateLimited and Retryable flags so callers can tell
// a rate limit apart from a generic network or server failure.
//
// # Scores
//
// ScoreResult holds the composite score and its three factors. Every value is
// normalized to the [0, 1] range, with higher values indicating better
// packages:
//
//	score := types.ScoreResult{Final: 0.71, Quality: 0.8, Popularity: 0.62, Maintenance: 0.9}
package types
