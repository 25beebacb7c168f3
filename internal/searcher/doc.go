// Package searcher implements ranked vcpkg package search.
//
// A search runs in these steps:
//
//  1. Look up the response cache, keyed by query, limit and thresholds
//  2. Query the index (GitHub code search over ports/*/vcpkg.json), asking
//     for at most min(limit, 100) hits
//  3. Resolve every hit to a port and its optional upstream repository,
//     with bounded concurrency; hits that fail to resolve are skipped
//  4. Score each candidate with internal/scoring
//  5. Drop candidates under the quality or popularity threshold
//  6. Sort by final score, highest first, ties by name
//  7. Truncate to limit and cache the response for 30 minutes
//
// # Basic Usage
//
//	s := searcher.NewSearcher(registry, registry, cache, searcher.Config{})
//
//	quality := 0.6
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query:            "json",
//	    Limit:            10,
//	    QualityThreshold: &quality,
//	})
//
//	for _, pkg := range resp.Packages {
//	    fmt.Printf("%s (score: %.2f)\n", pkg.Name, pkg.Score.Final)
//	}
//
// Total reports the raw index hit count, which can exceed len(Packages).
package searcher
