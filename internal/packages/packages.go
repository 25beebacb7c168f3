package packages

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/dshills/vcpkg-mcp/internal/cache"
	"github.com/dshills/vcpkg-mcp/internal/github"
	"github.com/dshills/vcpkg-mcp/internal/readme"
	"github.com/dshills/vcpkg-mcp/internal/scoring"
	"github.com/dshills/vcpkg-mcp/internal/vcpkg"
	"github.com/dshills/vcpkg-mcp/pkg/types"
)

// exactMatchRelevance is the raw relevance credited to a lookup by name
const exactMatchRelevance = scoring.RelevanceScale

// Registry is the metadata source behind the handlers
type Registry interface {
	GetPort(ctx context.Context, name string) (*vcpkg.Port, error)
	UpstreamSource(ctx context.Context, name, version string) (*vcpkg.UpstreamSource, error)
	Repository(ctx context.Context, owner, repo string) (*github.Repository, error)
	GetReadme(ctx context.Context, name string) (*vcpkg.Readme, error)
}

// Config holds service configuration
type Config struct {
	CacheTTL time.Duration // 0 uses the cache default
	Logger   log.Logger
	Now      func() time.Time
}

// Service answers package info and README requests
type Service struct {
	registry  Registry
	cache     *cache.Cache
	extractor *readme.Extractor
	ttl       time.Duration
	logger    log.Logger
	now       func() time.Time
}

// NewService creates a Service. c may be nil to disable caching.
func NewService(registry Registry, c *cache.Cache, cfg Config) *Service {
	s := &Service{
		registry: registry,
		cache:    c,
		ttl:      cfg.CacheTTL,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if s.logger == nil {
		s.logger = log.NewNopLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.extractor = readme.New(s.logger)
	return s
}

// InfoRequest selects a package and optionally a version
type InfoRequest struct {
	Name         string
	Version      string // Empty accepts whatever the registry has
	IncludeScore bool
}

// Info is the package info result
type Info struct {
	Name         string
	Version      string
	VersionKind  string
	PortVersion  int
	Description  string
	Homepage     string
	License      string
	Supports     string
	Dependencies []vcpkg.Dependency
	Features     []string
	Upstream     *Upstream
	Score        *types.ScoreResult
	Stale        bool
}

// Upstream describes the repository a port builds from
type Upstream struct {
	Owner       string
	Repo        string
	Ref         string
	URL         string
	ContentHash string // SHA512 of the source archive pinned by the portfile
	HeadRef     string
	Stars       int
	Forks       int
	Watchers    int
	OpenIssues  int
	PushedAt    time.Time
	Archived    bool
	License     string
	Topics      []string
	Available   bool // false when repository metadata could not be fetched
}

// ReadmeRequest selects a package README
type ReadmeRequest struct {
	Name            string
	IncludeExamples bool
	Raw             bool // Skip cleanup
}

// Readme is the package README result
type Readme struct {
	Name        string
	Source      string
	Description string
	Content     string
	Examples    []types.UsageExample
	Stale       bool
}

// GetInfo returns port metadata with upstream details. A missing package,
// or a version other than the registry's, is a not found error.
func (s *Service) GetInfo(ctx context.Context, req InfoRequest) (*Info, error) {
	const op = "get_package_info"
	if err := validateName(op, req.Name); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("info:%s@%s|score=%t", req.Name, req.Version, req.IncludeScore)
	if v, ok := s.cacheGet(key); ok {
		if cached, ok := v.(*Info); ok {
			info := *cached
			return &info, nil
		}
	}

	port, err := s.registry.GetPort(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	if !vcpkg.VersionMatches(port, req.Version) {
		notFound := types.NewNotFound(op, req.Name)
		notFound.Version = req.Version
		return nil, notFound
	}

	info := &Info{
		Name:         port.Name,
		Version:      port.Version,
		VersionKind:  port.VersionKind,
		PortVersion:  port.PortVersion,
		Description:  port.Description,
		Homepage:     port.Homepage,
		License:      port.License,
		Supports:     port.Supports,
		Dependencies: port.Dependencies,
		Features:     port.FeatureNames(),
		Stale:        port.Stale,
	}

	repo, err := s.upstream(ctx, info, port)
	if err != nil {
		return nil, err
	}

	if req.IncludeScore {
		score := scoring.Score(port, repo, exactMatchRelevance, s.now())
		info.Score = &score
	}

	if !info.Stale {
		s.cacheSet(key, info)
	}
	result := *info
	return &result, nil
}

// upstream fills info.Upstream. Enrichment failures are logged and leave
// the repository unavailable; only cancellation is returned.
func (s *Service) upstream(ctx context.Context, info *Info, port *vcpkg.Port) (*github.Repository, error) {
	src, err := s.registry.UpstreamSource(ctx, port.Name, port.Version)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		level.Warn(s.logger).Log("msg", "failed to read portfile", "port", port.Name, "err", err)
		return nil, nil
	}
	if src == nil {
		return nil, nil
	}

	info.Upstream = &Upstream{
		Owner:       src.Owner,
		Repo:        src.Repo,
		Ref:         src.Ref,
		URL:         "https://github.com/" + src.FullName(),
		ContentHash: src.SHA512,
		HeadRef:     src.HeadRef,
	}

	repo, err := s.registry.Repository(ctx, src.Owner, src.Repo)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		level.Warn(s.logger).Log("msg", "failed to fetch upstream repository", "port", port.Name, "repo", src.FullName(), "err", err)
		return nil, nil
	}

	u := info.Upstream
	u.Available = true
	u.Stars = repo.StargazersCount
	u.Forks = repo.ForksCount
	u.Watchers = repo.WatchersCount
	u.OpenIssues = repo.OpenIssuesCount
	u.PushedAt = repo.PushedAt
	u.Archived = repo.Archived
	u.Topics = repo.Topics
	if repo.HasLicense() {
		u.License = repo.License.SPDXID
		if u.License == "" || u.License == "NOASSERTION" {
			u.License = repo.License.Name
		}
	}
	if repo.HTMLURL != "" {
		u.URL = repo.HTMLURL
	}
	return repo, nil
}

// GetReadme returns README content, its description and usage examples
func (s *Service) GetReadme(ctx context.Context, req ReadmeRequest) (*Readme, error) {
	const op = "get_package_readme"
	if err := validateName(op, req.Name); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("readme:%s|examples=%t|raw=%t", req.Name, req.IncludeExamples, req.Raw)
	if v, ok := s.cacheGet(key); ok {
		if cached, ok := v.(*Readme); ok {
			r := *cached
			return &r, nil
		}
	}

	doc, err := s.registry.GetReadme(ctx, req.Name)
	if err != nil {
		return nil, err
	}

	result := &Readme{
		Name:        req.Name,
		Source:      doc.Source,
		Description: s.extractor.ExtractDescription(doc.Content),
		Content:     doc.Content,
		Stale:       doc.Stale,
	}
	if !req.Raw {
		result.Content = s.extractor.CleanupContent(doc.Content)
	}
	if req.IncludeExamples {
		result.Examples = s.extractor.ParseUsageExamples(doc.Content)
	}

	if !result.Stale {
		s.cacheSet(key, result)
	}
	r := *result
	return &r, nil
}

func (s *Service) cacheGet(key string) (any, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Service) cacheSet(key string, value any) {
	if s.cache != nil {
		s.cache.Set(key, value, s.ttl)
	}
}

func validateName(op, name string) error {
	if name == "" {
		return types.NewValidation(op, "name", "non-empty package name")
	}
	if !vcpkg.ValidName(name) {
		return types.NewValidation(op, "name", "lowercase alphanumeric words separated by single hyphens")
	}
	return nil
}
