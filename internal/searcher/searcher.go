package searcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/vcpkg-mcp/internal/cache"
	"github.com/dshills/vcpkg-mcp/internal/github"
	"github.com/dshills/vcpkg-mcp/internal/scoring"
	"github.com/dshills/vcpkg-mcp/internal/vcpkg"
	"github.com/dshills/vcpkg-mcp/pkg/types"
)

const (
	// DefaultLimit applies when a request has no limit
	DefaultLimit = 20
	// MaxLimit is the largest accepted limit
	MaxLimit = 250
	// DefaultCacheTTL is how long a search response is cached
	DefaultCacheTTL = 30 * time.Minute
	// DefaultConcurrency bounds concurrent candidate lookups
	DefaultConcurrency = 4

	cacheKeyPrefix = "search:"
)

// Index is the full-text index queried for candidates
type Index interface {
	Search(ctx context.Context, query string, perPage int) (*github.CodeSearchResult, error)
}

// PortSource resolves candidates to port and upstream metadata
type PortSource interface {
	GetPort(ctx context.Context, name string) (*vcpkg.Port, error)
	UpstreamRepository(ctx context.Context, name string) (*github.Repository, error)
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query               string
	Limit               int      // 1..MaxLimit, 0 means DefaultLimit
	QualityThreshold    *float64 // Minimum quality score, nil for none
	PopularityThreshold *float64 // Minimum popularity score, nil for none
}

// Package is one ranked search result
type Package struct {
	Name       string
	Port       *vcpkg.Port
	Repository *github.Repository // nil when the port has no GitHub upstream
	Relevance  float64            // Raw index relevance
	Score      types.ScoreResult
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Query    string
	Total    int // Raw index hit count before resolution and filtering
	Packages []Package
	Duration time.Duration
	CacheHit bool
}

// Config holds searcher configuration
type Config struct {
	CacheTTL    time.Duration
	Concurrency int
	Logger      log.Logger
	Now         func() time.Time // For tests
}

// Searcher ranks vcpkg ports matching a free-text query
type Searcher struct {
	index       Index
	ports       PortSource
	cache       *cache.Cache
	cacheTTL    time.Duration
	concurrency int
	logger      log.Logger
	now         func() time.Time
}

// NewSearcher creates a new Searcher instance
func NewSearcher(index Index, ports PortSource, c *cache.Cache, cfg Config) *Searcher {
	s := &Searcher{
		index:       index,
		ports:       ports,
		cache:       c,
		cacheTTL:    cfg.CacheTTL,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = DefaultCacheTTL
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	if s.logger == nil {
		s.logger = log.NewNopLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Search queries the index, scores every resolvable candidate, filters by
// the request thresholds and returns at most Limit packages ordered by
// final score
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	key := computeQueryHash(req)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if cached, ok := v.(*SearchResponse); ok {
				response := copySearchResponse(cached)
				response.CacheHit = true
				response.Duration = time.Since(startTime)
				return response, nil
			}
		}
	}

	result, err := s.index.Search(ctx, req.Query, min(req.Limit, github.MaxSearchPerPage))
	if err != nil {
		return nil, err
	}

	candidates, err := s.resolveAll(ctx, result.Items)
	if err != nil {
		return nil, err
	}

	packages := make([]Package, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || !passes(c.Score, req) {
			continue
		}
		packages = append(packages, *c)
	}
	sortPackages(packages)
	if len(packages) > req.Limit {
		packages = packages[:req.Limit]
	}

	response := &SearchResponse{
		Query:    req.Query,
		Total:    result.TotalCount,
		Packages: packages,
	}
	if s.cache != nil {
		s.cache.Set(key, copySearchResponse(response), s.cacheTTL)
	}

	level.Debug(s.logger).Log("msg", "search complete", "query", req.Query, "total", result.TotalCount, "hits", len(result.Items), "returned", len(packages))

	response.Duration = time.Since(startTime)
	return response, nil
}

// resolveAll resolves index hits concurrently. Slots line up with items;
// unresolvable hits and repeated ports leave a nil slot. Only cancellation
// of ctx fails the batch.
func (s *Searcher) resolveAll(ctx context.Context, items []github.CodeItem) ([]*Package, error) {
	candidates := make([]*Package, len(items))
	seen := make(map[string]bool, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, item := range items {
		name, ok := vcpkg.ParsePortPath(item.Path)
		if !ok {
			level.Debug(s.logger).Log("msg", "skipping hit outside ports", "path", item.Path)
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		g.Go(func() error {
			pkg, err := s.resolve(gctx, name, item.Score)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				level.Warn(s.logger).Log("msg", "skipping search candidate", "port", name, "err", err)
				return nil
			}
			candidates[i] = pkg
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return candidates, nil
}

// resolve fetches metadata for one candidate and scores it. Panics are
// turned into errors so one bad candidate cannot abort the batch.
func (s *Searcher) resolve(ctx context.Context, name string, relevance float64) (pkg *Package, err error) {
	defer func() {
		if r := recover(); r != nil {
			pkg, err = nil, fmt.Errorf("candidate %s: panic: %v", name, r)
		}
	}()

	port, err := s.ports.GetPort(ctx, name)
	if err != nil {
		return nil, err
	}

	// Upstream metadata is optional
	repo, err := s.ports.UpstreamRepository(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		level.Debug(s.logger).Log("msg", "no upstream metadata", "port", name, "err", err)
		repo = nil
	}

	return &Package{
		Name:       name,
		Port:       port,
		Repository: repo,
		Relevance:  relevance,
		Score:      scoring.Score(port, repo, relevance, s.now()),
	}, nil
}

// validateRequest ensures search request is valid
func validateRequest(req *SearchRequest) error {
	const op = "search_packages"

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return types.NewValidation(op, "query", "non-empty string")
	}

	if req.Limit == 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit < 1 || req.Limit > MaxLimit {
		return types.NewValidation(op, "limit", fmt.Sprintf("integer between 1 and %d", MaxLimit))
	}

	if t := req.QualityThreshold; t != nil && (*t < 0 || *t > 1) {
		return types.NewValidation(op, "quality_threshold", "number between 0 and 1")
	}
	if t := req.PopularityThreshold; t != nil && (*t < 0 || *t > 1) {
		return types.NewValidation(op, "popularity_threshold", "number between 0 and 1")
	}

	return nil
}

func passes(score types.ScoreResult, req SearchRequest) bool {
	if t := req.QualityThreshold; t != nil && score.Quality < *t {
		return false
	}
	if t := req.PopularityThreshold; t != nil && score.Popularity < *t {
		return false
	}
	return true
}

// sortPackages orders by final score descending, then name ascending
func sortPackages(packages []Package) {
	sort.SliceStable(packages, func(i, j int) bool {
		if packages[i].Score.Final != packages[j].Score.Final {
			return packages[i].Score.Final > packages[j].Score.Final
		}
		return packages[i].Name < packages[j].Name
	})
}

// copySearchResponse copies the response and its package slice. Port and
// Repository pointers are shared; they are never mutated after scoring.
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Packages = make([]Package, len(src.Packages))
	copy(dst.Packages, src.Packages)
	return &dst
}

// computeQueryHash builds the cache key for a validated request
func computeQueryHash(req SearchRequest) string {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(strconv.Itoa(req.Limit))
	data.WriteString("|")
	data.WriteString(formatThreshold(req.QualityThreshold))
	data.WriteString("|")
	data.WriteString(formatThreshold(req.PopularityThreshold))

	sum := sha256.Sum256([]byte(data.String()))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func formatThreshold(t *float64) string {
	if t == nil {
		return "-"
	}
	return strconv.FormatFloat(*t, 'g', -1, 64)
}
