package github

import "time"

// Repository is the subset of GitHub repository metadata used for scoring.
// Optional fields are zero when GitHub omits them.
type Repository struct {
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	HTMLURL         string    `json:"html_url"`
	Description     string    `json:"description"`
	Homepage        string    `json:"homepage"`
	DefaultBranch   string    `json:"default_branch"`
	License         *License  `json:"license"`
	Topics          []string  `json:"topics"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	WatchersCount   int       `json:"watchers_count"`
	OpenIssuesCount int       `json:"open_issues_count"`
	PushedAt        time.Time `json:"pushed_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Archived        bool      `json:"archived"`
	Disabled        bool      `json:"disabled"`
	Owner           Owner     `json:"owner"`
}

// HasLicense reports whether the repository declares a license
func (r *Repository) HasLicense() bool {
	return r.License != nil && (r.License.Name != "" || r.License.SPDXID != "")
}

// License is a repository license
type License struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	SPDXID string `json:"spdx_id"`
}

// Owner is a repository owner
type Owner struct {
	Login string `json:"login"`
}

// CodeSearchResult is a page of code search hits
type CodeSearchResult struct {
	TotalCount        int        `json:"total_count"`
	IncompleteResults bool       `json:"incomplete_results"`
	Items             []CodeItem `json:"items"`
}

// CodeItem is a single code search hit
type CodeItem struct {
	Name  string  `json:"name"`
	Path  string  `json:"path"`
	SHA   string  `json:"sha"`
	Score float64 `json:"score"` // Raw search relevance
}
