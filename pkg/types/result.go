package types

// ScoreResult is the composite relevance score of a package and its factors
type ScoreResult struct {
	Final       float64 `json:"final"`
	Quality     float64 `json:"quality"`
	Popularity  float64 `json:"popularity"`
	Maintenance float64 `json:"maintenance"`
}

// UsageExample is a code sample extracted from package documentation
type UsageExample struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Code        string `json:"code"`
	Language    string `json:"language"`
}

// Validate checks if the usage example is valid
func (u UsageExample) Validate() error {
	if u.Title == "" {
		return ErrMissingTitle
	}
	if u.Code == "" {
		return ErrEmptyContent
	}
	return nil
}
