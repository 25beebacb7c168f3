// Package metrics exposes Prometheus collectors for tool calls, GitHub API
// requests and the response cache.
//
// Counters and histograms are updated by the MCP layer and the GitHub client
// observer. Cache collectors read Cache.Stats at scrape time.
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg, responseCache)
//	client, _ := github.NewClient(github.Config{Observer: m.ObserveGitHub})
//	go metrics.Serve(ctx, ":9102", reg, logger)
package metrics
