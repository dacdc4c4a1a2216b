// Package search ranks nodes against a text query.
package search

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/budget"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

const ellipsis = "..."

// Config holds scoring weights and result shaping parameters.
type Config struct {
	TitleWeight       int
	BodyWeight        int
	FragmentRadius    int
	MaxFragments      int
	PreviewChars      int
	DefaultMaxResults int
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{
		TitleWeight:       10,
		BodyWeight:        1,
		FragmentRadius:    50,
		MaxFragments:      3,
		PreviewChars:      1000,
		DefaultMaxResults: 50,
	}
}

// Options control a single search.
type Options struct {
	SearchTitle   bool
	SearchBody    bool
	Tags          []string
	CaseSensitive bool
	// Pattern treats the query as a regular expression instead of a literal.
	Pattern bool
	// MaxResults caps the hit list. Zero selects the configured default.
	MaxResults int
}

// DefaultOptions searches titles and bodies, case-insensitively.
func DefaultOptions() Options {
	return Options{SearchTitle: true, SearchBody: true}
}

// Validate checks the options.
func (o Options) Validate() error {
	if err := validation.ValidateStruct(&o,
		validation.Field(&o.MaxResults, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err)
	}
	if !o.SearchTitle && !o.SearchBody {
		return fmt.Errorf("%w: at least one of title or body must be searched", apperr.ErrInvalidRequest)
	}
	return nil
}

// Result is the ranked outcome of a search.
type Result struct {
	Query        string                `json:"query"`
	Hits         []models.SearchResult `json:"hits"`
	TotalMatches int                   `json:"total_matches"`
	Scanned      int                   `json:"scanned"`
	Warnings     []models.Warning      `json:"warnings,omitempty"`
}

// Engine scores nodes from an Accessor.
type Engine struct {
	store storage.Accessor
	cfg   Config
}

// New creates an Engine.
func New(store storage.Accessor, cfg Config) *Engine {
	return &Engine{store: store, cfg: cfg}
}

// Compile builds the matcher for query. Literal queries are escaped. Empty
// queries and invalid patterns fail with apperr.ErrInvalidQuery. Patterns
// that can match the empty string are accepted; their empty matches are
// never counted.
func Compile(query string, caseSensitive, pattern bool) (*regexp.Regexp, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", apperr.ErrInvalidQuery)
	}
	expr := query
	if !pattern {
		expr = regexp.QuoteMeta(query)
	}
	if !caseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidQuery, err)
	}
	return re, nil
}

// Search scores every node under scope and returns hits ordered by score
// descending, then node ID ascending.
func (e *Engine) Search(scope, query string, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	re, err := Compile(query, opts.CaseSensitive, opts.Pattern)
	if err != nil {
		return nil, err
	}

	snap, err := e.store.Enumerate(scope)
	if err != nil {
		return nil, err
	}

	hits := []models.SearchResult{}
	for _, n := range snap.Nodes {
		if !matchesTags(n, opts.Tags) {
			continue
		}
		hit, ok := e.score(n, re, opts)
		if ok {
			hits = append(hits, hit)
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].NodeID < hits[j].NodeID
	})

	total := len(hits)
	limit := opts.MaxResults
	if limit == 0 {
		limit = e.cfg.DefaultMaxResults
	}
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	return &Result{
		Query:        query,
		Hits:         hits,
		TotalMatches: total,
		Scanned:      len(snap.Nodes),
		Warnings:     snap.Warnings,
	}, nil
}

func matchesTags(n *models.Node, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if n.HasTag(t) {
			return true
		}
	}
	return false
}

func (e *Engine) score(n *models.Node, re *regexp.Regexp, opts Options) (models.SearchResult, bool) {
	var (
		score     int
		fragments []models.Fragment
	)

	if opts.SearchTitle {
		locs := matchRanges(re, n.Title)
		score += len(locs) * e.cfg.TitleWeight
		for _, loc := range locs[:min(len(locs), e.cfg.MaxFragments)] {
			fragments = append(fragments, models.Fragment{Source: models.FragmentTitle, Text: n.Title[loc[0]:loc[1]]})
		}
	}
	if opts.SearchBody {
		locs := matchRanges(re, n.Body)
		score += len(locs) * e.cfg.BodyWeight
		for _, loc := range locs[:min(len(locs), e.cfg.MaxFragments)] {
			fragments = append(fragments, models.Fragment{
				Source: models.FragmentBody,
				Text:   excerpt(n.Body, loc[0], loc[1], e.cfg.FragmentRadius),
			})
		}
	}
	if score == 0 {
		return models.SearchResult{}, false
	}

	preview, truncated := budget.Preview(n.Body, e.cfg.PreviewChars)
	return models.SearchResult{
		NodeID:     n.ID,
		Title:      n.Title,
		ScopePath:  n.ScopePath,
		Tags:       n.Tags,
		Score:      score,
		Fragments:  fragments,
		Preview:    preview,
		Truncated:  truncated,
		CreatedAt:  n.CreatedAt,
		ModifiedAt: n.ModifiedAt,
	}, true
}

// matchRanges returns the byte ranges of the non-empty matches of re in s.
func matchRanges(re *regexp.Regexp, s string) [][]int {
	all := re.FindAllStringIndex(s, -1)
	out := all[:0]
	for _, loc := range all {
		if loc[0] < loc[1] {
			out = append(out, loc)
		}
	}
	return out
}

// excerpt returns the text within radius runes of the byte range
// [start, end), with "..." where the window stops short of the text edge.
func excerpt(text string, start, end, radius int) string {
	runes := []rune(text)
	rs := utf8.RuneCountInString(text[:start])
	re := rs + utf8.RuneCountInString(text[start:end])

	from := max(0, rs-radius)
	to := min(len(runes), re+radius)

	var b strings.Builder
	if from > 0 {
		b.WriteString(ellipsis)
	}
	b.WriteString(strings.ReplaceAll(string(runes[from:to]), "\n", " "))
	if to < len(runes) {
		b.WriteString(ellipsis)
	}
	return b.String()
}
