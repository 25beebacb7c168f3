package scoring

import (
	"math"
	"time"

	"github.com/dshills/vcpkg-mcp/internal/github"
	"github.com/dshills/vcpkg-mcp/internal/vcpkg"
	"github.com/dshills/vcpkg-mcp/pkg/types"
)

// Weights of the final score
const (
	QualityWeight     = 0.3
	PopularityWeight  = 0.3
	MaintenanceWeight = 0.2
	RelevanceWeight   = 0.2

	// RelevanceScale maps raw search relevance onto [0, 1]
	RelevanceScale = 100.0
)

const day = 24 * time.Hour

// Quality scores manifest completeness and upstream repository hygiene
func Quality(port *vcpkg.Port, repo *github.Repository) float64 {
	score := 0.5

	if port.HasDescription() {
		score += 0.1
	}
	if port.HasHomepage() {
		score += 0.1
	}
	if len(port.Dependencies) > 0 {
		score += 0.1
	}

	if repo != nil {
		if repo.Description != "" {
			score += 0.05
		}
		if repo.HasLicense() {
			score += 0.1
		}
		if len(repo.Topics) > 0 {
			score += 0.05
		}
		if repo.Archived {
			score -= 0.2
		}
		if repo.Disabled {
			score -= 0.3
		}
	}

	return clamp01(score)
}

// Popularity log-compresses stars, forks and watchers
func Popularity(repo *github.Repository) float64 {
	if repo == nil {
		return 0.1
	}

	score := math.Min(0.4, logScale(repo.StargazersCount)/5) +
		math.Min(0.3, logScale(repo.ForksCount)/4) +
		math.Min(0.2, logScale(repo.WatchersCount)/3)

	return clamp01(score)
}

// Maintenance buckets the time since the last push, adjusted by the open
// issue count
func Maintenance(repo *github.Repository, now time.Time) float64 {
	if repo == nil {
		return 0.5
	}

	var score float64
	switch age := now.Sub(repo.PushedAt); {
	case age < 30*day:
		score = 1.0
	case age < 90*day:
		score = 0.8
	case age < 180*day:
		score = 0.6
	case age < 365*day:
		score = 0.4
	default:
		score = 0.2
	}

	switch {
	case repo.OpenIssuesCount < 10:
		score += 0.1
	case repo.OpenIssuesCount > 100:
		score -= 0.1
	}

	return clamp01(score)
}

// Final blends the factor scores with raw search relevance
func Final(quality, popularity, maintenance, relevance float64) float64 {
	return clamp01(quality*QualityWeight +
		popularity*PopularityWeight +
		maintenance*MaintenanceWeight +
		(relevance/RelevanceScale)*RelevanceWeight)
}

// Score computes every factor for a port. repo is nil when no upstream
// metadata is available.
func Score(port *vcpkg.Port, repo *github.Repository, relevance float64, now time.Time) types.ScoreResult {
	q := Quality(port, repo)
	p := Popularity(repo)
	m := Maintenance(repo, now)
	return types.ScoreResult{
		Final:       Final(q, p, m, relevance),
		Quality:     q,
		Popularity:  p,
		Maintenance: m,
	}
}

func logScale(n int) float64 {
	if n < 0 {
		n = 0
	}
	return math.Log10(float64(n) + 1)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
