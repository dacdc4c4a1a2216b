package models

import "time"

// Fragment sources.
const (
	FragmentTitle = "title"
	FragmentBody  = "body"
)

// Fragment is a piece of matched text shown with a search hit.
type Fragment struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// SearchResult is one ranked hit.
type SearchResult struct {
	NodeID     string     `json:"node_id"`
	Title      string     `json:"title"`
	ScopePath  string     `json:"scope_path"`
	Tags       []string   `json:"tags"`
	Score      int        `json:"score"`
	Fragments  []Fragment `json:"fragments"`
	Preview    string     `json:"preview"`
	Truncated  bool       `json:"truncated"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt time.Time  `json:"modified_at"`
}
