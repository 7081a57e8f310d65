// Package search finds requirements by text. Meilisearch is used when
// configured and healthy; otherwise queries fall back to a linear scan over
// the repository.
package search

type Query struct {
	Text   string
	Status string
	Limit  int
}

type Result struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// RequirementRecord is the indexed shape of a requirement.
type RequirementRecord struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Tags        []string `json:"tags"`
}
