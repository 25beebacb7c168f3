package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/vcpkg-mcp/internal/github"
	"github.com/dshills/vcpkg-mcp/internal/vcpkg"
)

const eps = 1e-9

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func fullPort() *vcpkg.Port {
	return &vcpkg.Port{
		Name:         "fmt",
		Description:  "Formatting library",
		Homepage:     "https://fmt.dev",
		Dependencies: []vcpkg.Dependency{{Name: "vcpkg-cmake"}},
	}
}

func TestQuality(t *testing.T) {
	tests := []struct {
		name string
		port *vcpkg.Port
		repo *github.Repository
		want float64
	}{
		{"bare port", &vcpkg.Port{}, nil, 0.5},
		{"complete port", fullPort(), nil, 0.8},
		{"description only", &vcpkg.Port{Description: "x"}, nil, 0.6},
		{"whitespace description", &vcpkg.Port{Description: "  "}, nil, 0.5},
		{
			"complete port and repo",
			fullPort(),
			&github.Repository{Description: "d", License: &github.License{Name: "MIT"}, Topics: []string{"fmt"}},
			1.0,
		},
		{"archived", &vcpkg.Port{}, &github.Repository{Archived: true}, 0.3},
		{"disabled", &vcpkg.Port{}, &github.Repository{Disabled: true}, 0.2},
		{"archived and disabled clamps", &vcpkg.Port{}, &github.Repository{Archived: true, Disabled: true}, 0.0},
		{"empty license object", &vcpkg.Port{}, &github.Repository{License: &github.License{}}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Quality(tt.port, tt.repo), eps)
		})
	}
}

func TestPopularity(t *testing.T) {
	assert.InDelta(t, 0.1, Popularity(nil), eps)
	assert.InDelta(t, 0.0, Popularity(&github.Repository{}), eps)

	// log10(100)/5 = 0.4 reaches the star cap exactly
	assert.InDelta(t, 0.4, Popularity(&github.Repository{StargazersCount: 99}), eps)

	huge := &github.Repository{StargazersCount: 1e7, ForksCount: 1e7, WatchersCount: 1e7}
	assert.InDelta(t, 0.9, Popularity(huge), eps)

	r := &github.Repository{StargazersCount: 9, ForksCount: 9, WatchersCount: 9}
	assert.InDelta(t, 0.2+0.25+0.2, Popularity(r), eps)
}

func TestPopularity_MonotonicInStars(t *testing.T) {
	prev := -1.0
	for _, stars := range []int{0, 1, 5, 10, 50, 100, 1000, 5000, 100000, 10000000} {
		score := Popularity(&github.Repository{StargazersCount: stars, ForksCount: 10, WatchersCount: 10})
		assert.GreaterOrEqual(t, score, prev, "stars=%d", stars)
		prev = score
	}
}

func TestMaintenance(t *testing.T) {
	pushed := func(days int, issues int) *github.Repository {
		return &github.Repository{
			PushedAt:        now.Add(-time.Duration(days) * 24 * time.Hour),
			OpenIssuesCount: issues,
		}
	}

	tests := []struct {
		name string
		repo *github.Repository
		want float64
	}{
		{"no upstream", nil, 0.5},
		{"fresh, few issues", pushed(1, 0), 1.0},
		{"fresh, moderate issues", pushed(1, 50), 1.0},
		{"fresh, many issues", pushed(1, 500), 0.9},
		{"29 days", pushed(29, 50), 1.0},
		{"30 days", pushed(30, 50), 0.8},
		{"89 days", pushed(89, 50), 0.8},
		{"90 days", pushed(90, 50), 0.6},
		{"180 days", pushed(180, 50), 0.4},
		{"364 days", pushed(364, 50), 0.4},
		{"365 days", pushed(365, 50), 0.2},
		{"stale with few issues", pushed(1000, 5), 0.3},
		{"stale with many issues", pushed(1000, 101), 0.1},
		{"boundary 10 issues", pushed(1, 10), 1.0},
		{"boundary 100 issues", pushed(200, 100), 0.4},
		{"never pushed", &github.Repository{}, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Maintenance(tt.repo, now), eps)
		})
	}
}

func TestFinal(t *testing.T) {
	assert.InDelta(t, 0.3+0.3+0.2+0.2, Final(1, 1, 1, 100), eps)
	assert.InDelta(t, 0.0, Final(0, 0, 0, 0), eps)
	assert.InDelta(t, 0.5*0.3+0.1*0.3+0.5*0.2+0.5*0.2, Final(0.5, 0.1, 0.5, 50), eps)

	// Relevance beyond the assumed scale is clamped away
	assert.InDelta(t, 1.0, Final(1, 1, 1, 1000), eps)
	assert.InDelta(t, 0.0, Final(0, 0, 0, -1000), eps)
}

func TestScore_Bounds(t *testing.T) {
	ports := []*vcpkg.Port{{}, fullPort()}
	repos := []*github.Repository{
		nil,
		{},
		{Archived: true, Disabled: true, OpenIssuesCount: 10000},
		{
			Description:     "d",
			License:         &github.License{SPDXID: "MIT"},
			Topics:          []string{"a"},
			StargazersCount: 1 << 30,
			ForksCount:      1 << 30,
			WatchersCount:   1 << 30,
			PushedAt:        now,
		},
		{StargazersCount: -5, PushedAt: now.Add(time.Hour)},
	}
	relevances := []float64{-50, 0, 12.5, 100, 1e6, math.NaN()}

	for _, p := range ports {
		for _, r := range repos {
			for _, rel := range relevances {
				result := Score(p, r, rel, now)
				for _, v := range []float64{result.Final, result.Quality, result.Popularity, result.Maintenance} {
					assert.True(t, v >= 0 && v <= 1, "port=%+v repo=%+v rel=%v score=%+v", p, r, rel, result)
				}
			}
		}
	}
}

func TestScore_Composition(t *testing.T) {
	repo := &github.Repository{StargazersCount: 5000, PushedAt: now.Add(-24 * time.Hour)}
	result := Score(fullPort(), repo, 40, now)

	assert.InDelta(t, Quality(fullPort(), repo), result.Quality, eps)
	assert.InDelta(t, Popularity(repo), result.Popularity, eps)
	assert.InDelta(t, Maintenance(repo, now), result.Maintenance, eps)
	assert.InDelta(t, Final(result.Quality, result.Popularity, result.Maintenance, 40), result.Final, eps)
}
