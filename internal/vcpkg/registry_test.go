package vcpkg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vcpkg-mcp/internal/github"
	"github.com/dshills/vcpkg-mcp/internal/storage"
	"github.com/dshills/vcpkg-mcp/pkg/types"
)

// fakeAPI serves registry files and repositories from maps. When down is
// set every call fails with a server error.
type fakeAPI struct {
	files   map[string]string // "owner/repo/path" -> content
	readmes map[string]string // "owner/repo" -> README
	repos   map[string]*github.Repository
	search  *github.CodeSearchResult
	down    bool

	lastQuery string
}

var errServer = &github.APIError{StatusCode: 502, Message: "bad gateway"}

func (f *fakeAPI) GetRepository(ctx context.Context, owner, repo string) (*github.Repository, error) {
	if f.down {
		return nil, errServer
	}
	r, ok := f.repos[owner+"/"+repo]
	if !ok {
		return nil, github.ErrNotFound
	}
	return r, nil
}

func (f *fakeAPI) GetContents(ctx context.Context, owner, repo, filePath, ref string) ([]byte, error) {
	if f.down {
		return nil, errServer
	}
	content, ok := f.files[owner+"/"+repo+"/"+filePath]
	if !ok {
		return nil, github.ErrNotFound
	}
	return []byte(content), nil
}

func (f *fakeAPI) GetReadme(ctx context.Context, owner, repo, ref string) ([]byte, error) {
	if f.down {
		return nil, errServer
	}
	content, ok := f.readmes[owner+"/"+repo]
	if !ok {
		return nil, github.ErrNotFound
	}
	return []byte(content), nil
}

func (f *fakeAPI) SearchCode(ctx context.Context, query string, perPage int) (*github.CodeSearchResult, error) {
	f.lastQuery = query
	if f.down {
		return nil, &github.RateLimitError{StatusCode: 403}
	}
	return f.search, nil
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		files: map[string]string{
			"microsoft/vcpkg/ports/zlib/vcpkg.json":       `{"name":"zlib","version":"1.3.1","description":"compression","homepage":"https://zlib.net"}`,
			"microsoft/vcpkg/ports/zlib/portfile.cmake":   `vcpkg_from_github(OUT_SOURCE_PATH SOURCE_PATH REPO madler/zlib REF v${VERSION} SHA512 00)`,
			"microsoft/vcpkg/ports/zlib/usage":            "zlib is compatible with built-in CMake targets",
			"microsoft/vcpkg/ports/tinyxml/vcpkg.json":    `{"name":"tinyxml","version":"2.6.2"}`,
			"microsoft/vcpkg/ports/tinyxml/usage":         "find_package(tinyxml CONFIG REQUIRED)",
			"microsoft/vcpkg/ports/broken/vcpkg.json":     `{"version":"1"}`,
			"microsoft/vcpkg/ports/libfoo/vcpkg.json":     `{"name":"libfoo","version":"0.4.0"}`,
			"microsoft/vcpkg/ports/libfoo/portfile.cmake": `vcpkg_from_gitlab(OUT_SOURCE_PATH SOURCE_PATH GITLAB_URL https://gitlab.com REPO foo/libfoo REF v0.4.0)`,
		},
		readmes: map[string]string{
			"madler/zlib": "# zlib\n\nA massively spiffy compression library.",
		},
		repos: map[string]*github.Repository{
			"madler/zlib": {Name: "zlib", FullName: "madler/zlib", StargazersCount: 5000},
		},
	}
}

func setupStore(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGetPort(t *testing.T) {
	reg := NewRegistry(newFakeAPI(), Config{})

	port, err := reg.GetPort(context.Background(), "zlib")
	require.NoError(t, err)
	assert.Equal(t, "zlib", port.Name)
	assert.Equal(t, "1.3.1", port.Version)
	assert.False(t, port.Stale)
}

func TestGetPort_InvalidName(t *testing.T) {
	reg := NewRegistry(newFakeAPI(), Config{})

	_, err := reg.GetPort(context.Background(), "../secrets")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindValidation))
	assert.Contains(t, err.Error(), "invalid name")
}

func TestGetPort_NotFound(t *testing.T) {
	reg := NewRegistry(newFakeAPI(), Config{})

	_, err := reg.GetPort(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindNotFound))
	assert.Contains(t, err.Error(), `"does-not-exist"`)
}

func TestGetPort_MalformedManifest(t *testing.T) {
	reg := NewRegistry(newFakeAPI(), Config{})

	_, err := reg.GetPort(context.Background(), "broken")
	assert.True(t, types.IsKind(err, types.KindInternal))
}

func TestGetPort_UpstreamFailure(t *testing.T) {
	api := newFakeAPI()
	api.down = true
	reg := NewRegistry(api, Config{})

	_, err := reg.GetPort(context.Background(), "zlib")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindUpstream))
	assert.ErrorIs(t, err, errServer)
}

func TestGetPort_StaleFallback(t *testing.T) {
	api := newFakeAPI()
	reg := NewRegistry(api, Config{Store: setupStore(t)})
	ctx := context.Background()

	_, err := reg.GetPort(ctx, "zlib")
	require.NoError(t, err)

	api.down = true
	port, err := reg.GetPort(ctx, "zlib")
	require.NoError(t, err)
	assert.True(t, port.Stale)
	assert.Equal(t, "1.3.1", port.Version)

	// Never fetched, nothing to fall back to
	_, err = reg.GetPort(ctx, "tinyxml")
	assert.True(t, types.IsKind(err, types.KindUpstream))
}

func TestGetPortfile(t *testing.T) {
	reg := NewRegistry(newFakeAPI(), Config{})

	pf, err := reg.GetPortfile(context.Background(), "zlib", "1.3.1")
	require.NoError(t, err)
	require.NotNil(t, pf.Upstream)
	assert.Equal(t, "madler/zlib", pf.Upstream.FullName())
	assert.Equal(t, "v1.3.1", pf.Upstream.Ref)

	_, err = reg.GetPortfile(context.Background(), "tinyxml", "")
	assert.True(t, types.IsKind(err, types.KindNotFound))
}

func TestGetPortfile_RefreshesSnapshotTime(t *testing.T) {
	store := setupStore(t)
	reg := NewRegistry(newFakeAPI(), Config{Store: store})
	ctx := context.Background()

	old := time.Now().Add(-72 * time.Hour)
	require.NoError(t, store.UpsertPort(ctx, &storage.PortSnapshot{
		Name:      "zlib",
		Version:   "1.3.0",
		Manifest:  []byte(`{"name":"zlib","version":"1.3.0"}`),
		FetchedAt: old,
	}))

	_, err := reg.GetPortfile(ctx, "zlib", "1.3.1")
	require.NoError(t, err)

	snap, err := store.GetPort(ctx, "zlib")
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Portfile)
	assert.True(t, snap.FetchedAt.After(old.Add(time.Hour)), "portfile refresh must bump fetched_at, got %v", snap.FetchedAt)
}

func TestPortfileStaleFallback(t *testing.T) {
	api := newFakeAPI()
	reg := NewRegistry(api, Config{Store: setupStore(t)})
	ctx := context.Background()

	_, err := reg.GetPort(ctx, "zlib")
	require.NoError(t, err)
	_, err = reg.GetPortfile(ctx, "zlib", "")
	require.NoError(t, err)

	api.down = true
	pf, err := reg.GetPortfile(ctx, "zlib", "1.3.1")
	require.NoError(t, err)
	require.NotNil(t, pf.Upstream)
	assert.Equal(t, "madler", pf.Upstream.Owner)
}

func TestUpstreamRepository(t *testing.T) {
	reg := NewRegistry(newFakeAPI(), Config{})
	ctx := context.Background()

	repo, err := reg.UpstreamRepository(ctx, "zlib")
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Equal(t, 5000, repo.StargazersCount)

	// No portfile means no upstream, which is not an error
	repo, err = reg.UpstreamRepository(ctx, "tinyxml")
	require.NoError(t, err)
	assert.Nil(t, repo)
}

func TestRepositoryStaleFallback(t *testing.T) {
	api := newFakeAPI()
	reg := NewRegistry(api, Config{Store: setupStore(t)})
	ctx := context.Background()

	_, err := reg.Repository(ctx, "madler", "zlib")
	require.NoError(t, err)

	api.down = true
	repo, err := reg.Repository(ctx, "madler", "zlib")
	require.NoError(t, err)
	assert.Equal(t, 5000, repo.StargazersCount)

	_, err = reg.Repository(ctx, "other", "repo")
	assert.True(t, types.IsKind(err, types.KindUpstream))
}

func TestGetReadme_Upstream(t *testing.T) {
	reg := NewRegistry(newFakeAPI(), Config{})

	readme, err := reg.GetReadme(context.Background(), "zlib")
	require.NoError(t, err)
	assert.Equal(t, SourceUpstream, readme.Source)
	assert.Contains(t, readme.Content, "spiffy")
}

func TestGetReadme_UsageFallback(t *testing.T) {
	api := newFakeAPI()
	delete(api.readmes, "madler/zlib")
	reg := NewRegistry(api, Config{})

	readme, err := reg.GetReadme(context.Background(), "zlib")
	require.NoError(t, err)
	assert.Equal(t, SourceUsage, readme.Source)
	assert.Contains(t, readme.Content, "CMake targets")

	readme, err = reg.GetReadme(context.Background(), "tinyxml")
	require.NoError(t, err)
	assert.Equal(t, SourceUsage, readme.Source)
}

func TestGetReadme_NotFound(t *testing.T) {
	reg := NewRegistry(newFakeAPI(), Config{})

	_, err := reg.GetReadme(context.Background(), "missing")
	assert.True(t, types.IsKind(err, types.KindNotFound))
}

func TestGetReadme_NoReadmeOrUsage(t *testing.T) {
	reg := NewRegistry(newFakeAPI(), Config{Store: setupStore(t)})

	readme, err := reg.GetReadme(context.Background(), "libfoo")
	require.NoError(t, err)
	assert.Equal(t, SourceNone, readme.Source)
	assert.Empty(t, readme.Content)
	assert.False(t, readme.Stale)
}

func TestGetReadme_NoUsageUpstreamDown(t *testing.T) {
	api := newFakeAPI()
	reg := NewRegistry(api, Config{})
	ctx := context.Background()

	readme, err := reg.GetReadme(ctx, "libfoo")
	require.NoError(t, err)
	require.Equal(t, SourceNone, readme.Source)

	// Outages are not mistaken for a port without docs
	api.down = true
	_, err = reg.GetReadme(ctx, "libfoo")
	assert.True(t, types.IsKind(err, types.KindUpstream))
}

func TestGetReadme_StaleFallback(t *testing.T) {
	api := newFakeAPI()
	reg := NewRegistry(api, Config{Store: setupStore(t)})
	ctx := context.Background()

	_, err := reg.GetReadme(ctx, "zlib")
	require.NoError(t, err)

	api.down = true
	readme, err := reg.GetReadme(ctx, "zlib")
	require.NoError(t, err)
	assert.True(t, readme.Stale)
	assert.Equal(t, SourceUpstream, readme.Source)
	assert.Contains(t, readme.Content, "spiffy")
}

func TestSearch(t *testing.T) {
	api := newFakeAPI()
	api.search = &github.CodeSearchResult{TotalCount: 1, Items: []github.CodeItem{{Path: "ports/zlib/vcpkg.json"}}}
	reg := NewRegistry(api, Config{Owner: "acme", Repo: "registry"})

	result, err := reg.Search(context.Background(), "compression", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalCount)
	assert.Equal(t, "compression repo:acme/registry path:ports filename:vcpkg.json", api.lastQuery)
}

func TestSearch_RateLimited(t *testing.T) {
	api := newFakeAPI()
	api.down = true
	reg := NewRegistry(api, Config{})

	_, err := reg.Search(context.Background(), "json", 10)
	require.Error(t, err)
	assert.True(t, types.IsRateLimited(err))

	var rl *github.RateLimitError
	assert.True(t, errors.As(err, &rl))
}
