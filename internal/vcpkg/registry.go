package vcpkg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/dshills/vcpkg-mcp/internal/github"
	"github.com/dshills/vcpkg-mcp/internal/storage"
	"github.com/dshills/vcpkg-mcp/pkg/types"
)

// Registry defaults
const (
	DefaultOwner = "microsoft"
	DefaultRepo  = "vcpkg"
	DefaultRef   = "master"
)

// README sources
const (
	SourceUpstream = "upstream"
	SourceUsage    = "usage"
	SourceNone     = "none" // Port exists but ships no README or usage file
)

// nameExpectation is reported when a port name fails validation
const nameExpectation = "lowercase alphanumeric words separated by single hyphens"

// API is the subset of the GitHub client the registry needs
type API interface {
	GetRepository(ctx context.Context, owner, repo string) (*github.Repository, error)
	GetContents(ctx context.Context, owner, repo, filePath, ref string) ([]byte, error)
	GetReadme(ctx context.Context, owner, repo, ref string) ([]byte, error)
	SearchCode(ctx context.Context, query string, perPage int) (*github.CodeSearchResult, error)
}

// Config holds registry configuration
type Config struct {
	Owner  string
	Repo   string
	Ref    string
	Store  storage.Storage // Optional snapshot store; nil disables fallback
	Logger log.Logger
}

// Registry reads port metadata from a vcpkg registry hosted on GitHub
type Registry struct {
	api    API
	owner  string
	repo   string
	ref    string
	store  storage.Storage
	logger log.Logger
}

// NewRegistry creates a registry reader
func NewRegistry(api API, cfg Config) *Registry {
	r := &Registry{
		api:    api,
		owner:  cfg.Owner,
		repo:   cfg.Repo,
		ref:    cfg.Ref,
		store:  cfg.Store,
		logger: cfg.Logger,
	}
	if r.owner == "" {
		r.owner = DefaultOwner
	}
	if r.repo == "" {
		r.repo = DefaultRepo
	}
	if r.ref == "" {
		r.ref = DefaultRef
	}
	if r.logger == nil {
		r.logger = log.NewNopLogger()
	}
	return r
}

// Readme is README text for a port
type Readme struct {
	Name    string
	Source  string // SourceUpstream or SourceUsage
	Content string
	Stale   bool
}

// GetPort fetches and parses ports/<name>/vcpkg.json
func (r *Registry) GetPort(ctx context.Context, name string) (*Port, error) {
	const op = "get_port"
	if !ValidName(name) {
		return nil, types.NewValidation(op, "name", nameExpectation)
	}

	data, err := r.api.GetContents(ctx, r.owner, r.repo, portFile(name, "vcpkg.json"), r.ref)
	if err != nil {
		if github.IsNotFound(err) {
			return nil, types.NewNotFound(op, name)
		}
		if snap := r.portSnapshot(ctx, name, err); snap != nil {
			port, perr := ParseManifest(snap.Manifest)
			if perr == nil {
				port.Stale = true
				return port, nil
			}
		}
		return nil, r.classify(op, name, err)
	}

	port, err := ParseManifest(data)
	if err != nil {
		return nil, types.NewInternal(op, err)
	}

	if r.store != nil {
		snap := &storage.PortSnapshot{Name: name, Version: port.Version, Manifest: data}
		if prev, err := r.store.GetPort(ctx, name); err == nil {
			snap.Portfile = prev.Portfile
		}
		if err := r.store.UpsertPort(ctx, snap); err != nil {
			level.Warn(r.logger).Log("msg", "failed to store port snapshot", "port", name, "err", err)
		}
	}
	return port, nil
}

// GetPortfile fetches ports/<name>/portfile.cmake and extracts its
// upstream source. ${VERSION} in the ref is expanded with version.
func (r *Registry) GetPortfile(ctx context.Context, name, version string) (*Portfile, error) {
	const op = "get_portfile"
	if !ValidName(name) {
		return nil, types.NewValidation(op, "name", nameExpectation)
	}

	data, err := r.api.GetContents(ctx, r.owner, r.repo, portFile(name, "portfile.cmake"), r.ref)
	if err != nil {
		if github.IsNotFound(err) {
			return nil, types.NewNotFound(op, name)
		}
		if snap := r.portSnapshot(ctx, name, err); snap != nil && len(snap.Portfile) > 0 {
			return ParsePortfile(string(snap.Portfile), version), nil
		}
		return nil, r.classify(op, name, err)
	}

	if r.store != nil {
		if prev, err := r.store.GetPort(ctx, name); err == nil {
			prev.Portfile = data
			prev.FetchedAt = time.Time{}
			if err := r.store.UpsertPort(ctx, prev); err != nil {
				level.Warn(r.logger).Log("msg", "failed to store portfile snapshot", "port", name, "err", err)
			}
		}
	}
	return ParsePortfile(string(data), version), nil
}

// UpstreamSource returns the GitHub repository a port builds from, or nil
// when the port does not use vcpkg_from_github
func (r *Registry) UpstreamSource(ctx context.Context, name, version string) (*UpstreamSource, error) {
	pf, err := r.GetPortfile(ctx, name, version)
	if err != nil {
		if types.IsKind(err, types.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return pf.Upstream, nil
}

// UpstreamRepository returns GitHub metadata for the repository a port
// builds from. It returns nil without error when there is none.
func (r *Registry) UpstreamRepository(ctx context.Context, name string) (*github.Repository, error) {
	src, err := r.UpstreamSource(ctx, name, "")
	if err != nil || src == nil {
		return nil, err
	}
	return r.Repository(ctx, src.Owner, src.Repo)
}

// Repository fetches repository metadata, falling back to the last snapshot
// when GitHub is unavailable
func (r *Registry) Repository(ctx context.Context, owner, repo string) (*github.Repository, error) {
	const op = "get_repository"
	fullName := owner + "/" + repo

	result, err := r.api.GetRepository(ctx, owner, repo)
	if err != nil {
		if github.IsNotFound(err) {
			return nil, types.NewNotFound(op, fullName)
		}
		if r.store != nil && !errors.Is(err, context.Canceled) {
			if snap, serr := r.store.GetRepository(ctx, fullName); serr == nil {
				var cached github.Repository
				if json.Unmarshal(snap.Data, &cached) == nil {
					level.Warn(r.logger).Log("msg", "serving stale repository snapshot", "repo", fullName, "fetched_at", snap.FetchedAt, "err", err)
					return &cached, nil
				}
			}
		}
		return nil, r.classify(op, fullName, err)
	}

	if r.store != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := r.store.UpsertRepository(ctx, &storage.RepositorySnapshot{FullName: fullName, Data: data}); err != nil {
				level.Warn(r.logger).Log("msg", "failed to store repository snapshot", "repo", fullName, "err", err)
			}
		}
	}
	return result, nil
}

// GetReadme returns the upstream README of a port, or the port's usage file
// when the port has no GitHub upstream or the upstream has no README
func (r *Registry) GetReadme(ctx context.Context, name string) (*Readme, error) {
	const op = "get_readme"
	if !ValidName(name) {
		return nil, types.NewValidation(op, "name", nameExpectation)
	}

	readme, err := r.fetchReadme(ctx, name)
	if err != nil {
		if !types.IsKind(err, types.KindUpstream) || r.store == nil {
			return nil, err
		}
		snap, serr := r.store.GetReadme(ctx, name)
		if serr != nil {
			return nil, err
		}
		level.Warn(r.logger).Log("msg", "serving stale readme snapshot", "port", name, "fetched_at", snap.FetchedAt, "err", err)
		return &Readme{Name: name, Source: snap.Source, Content: snap.Content, Stale: true}, nil
	}

	if r.store != nil {
		snap := &storage.ReadmeSnapshot{Name: name, Source: readme.Source, Content: readme.Content}
		if err := r.store.UpsertReadme(ctx, snap); err != nil {
			level.Warn(r.logger).Log("msg", "failed to store readme snapshot", "port", name, "err", err)
		}
	}
	return readme, nil
}

func (r *Registry) fetchReadme(ctx context.Context, name string) (*Readme, error) {
	const op = "get_readme"

	src, err := r.UpstreamSource(ctx, name, "")
	if err != nil {
		return nil, err
	}
	if src != nil {
		data, err := r.api.GetReadme(ctx, src.Owner, src.Repo, "")
		switch {
		case err == nil:
			return &Readme{Name: name, Source: SourceUpstream, Content: string(data)}, nil
		case !github.IsNotFound(err):
			return nil, r.classify(op, name, err)
		}
		level.Debug(r.logger).Log("msg", "upstream has no readme, using usage file", "port", name, "repo", src.FullName())
	}

	data, err := r.api.GetContents(ctx, r.owner, r.repo, portFile(name, "usage"), r.ref)
	switch {
	case err == nil:
		return &Readme{Name: name, Source: SourceUsage, Content: string(data)}, nil
	case !github.IsNotFound(err):
		return nil, r.classify(op, name, err)
	}

	// No usage file: only a missing port is not found
	if _, err := r.GetPort(ctx, name); err != nil {
		if types.IsKind(err, types.KindNotFound) {
			return nil, types.NewNotFound(op, name)
		}
		return nil, err
	}
	level.Debug(r.logger).Log("msg", "port has no readme or usage file", "port", name)
	return &Readme{Name: name, Source: SourceNone}, nil
}

// Search queries the registry's vcpkg.json manifests with GitHub code
// search. perPage is capped by the search API.
func (r *Registry) Search(ctx context.Context, query string, perPage int) (*github.CodeSearchResult, error) {
	q := fmt.Sprintf("%s repo:%s/%s path:%s filename:vcpkg.json", query, r.owner, r.repo, PortsDir)
	result, err := r.api.SearchCode(ctx, q, perPage)
	if err != nil {
		return nil, github.AsUpstream("search", err)
	}
	return result, nil
}

// portSnapshot returns the stored snapshot for name when cause is an
// upstream failure and the store has one
func (r *Registry) portSnapshot(ctx context.Context, name string, cause error) *storage.PortSnapshot {
	if r.store == nil || errors.Is(cause, context.Canceled) {
		return nil
	}
	snap, err := r.store.GetPort(ctx, name)
	if err != nil {
		return nil
	}
	level.Warn(r.logger).Log("msg", "serving stale port snapshot", "port", name, "fetched_at", snap.FetchedAt, "err", cause)
	return snap
}

func (r *Registry) classify(op, name string, err error) error {
	if github.IsNotFound(err) {
		return types.NewNotFound(op, name)
	}
	return github.AsUpstream(op, err)
}

func portFile(name, file string) string {
	return path.Join(PortsDir, name, file)
}
