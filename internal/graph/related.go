package graph

import (
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/budget"
	"github.com/starford/ansuz/internal/links"
	"github.com/starford/ansuz/internal/models"
)

// RelatedOptions control RelatedNodes.
type RelatedOptions struct {
	// MaxResults caps the result list. Zero selects the configured default.
	MaxResults     int
	IncludeLinked  bool
	IncludeSimilar bool
}

// DefaultRelatedOptions includes every relationship kind.
func DefaultRelatedOptions() RelatedOptions {
	return RelatedOptions{IncludeLinked: true, IncludeSimilar: true}
}

// Validate checks the options.
func (o RelatedOptions) Validate() error {
	if err := validation.ValidateStruct(&o,
		validation.Field(&o.MaxResults, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err)
	}
	return nil
}

// Related is one node related to the seed.
type Related struct {
	Node         models.NodeSummary `json:"node"`
	Relationship models.EdgeKind    `json:"relationship"`
	Score        int                `json:"score"`
	SharedTags   []string           `json:"shared_tags,omitempty"`
}

// RelatedResult lists the nodes related to a seed.
type RelatedResult struct {
	SeedID   string           `json:"seed_id"`
	Related  []Related        `json:"related"`
	Total    int              `json:"total"`
	Scanned  int              `json:"scanned"`
	Warnings []models.Warning `json:"warnings,omitempty"`
}

func tier(kind models.EdgeKind) int {
	if kind == models.EdgeTagSimilarity {
		return 1
	}
	return 0
}

// RelatedNodes returns nodes connected to seedID by forward links, back links
// or shared tags. Each node appears once, under the first relationship
// discovered in that order. Linked nodes always rank above tag-similar ones;
// within a tier results are ordered by score descending, then ID ascending.
func (e *Engine) RelatedNodes(scope, seedID string, opts RelatedOptions) (*RelatedResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	seed, snap, err := e.seedAndSnapshot(scope, seedID)
	if err != nil {
		return nil, err
	}
	adj := newAdjacency(snap)

	seen := map[string]struct{}{seed.ID: {}}
	var out []Related
	add := func(n *models.Node, kind models.EdgeKind, score int, shared []string) {
		seen[n.ID] = struct{}{}
		s := n.Summary()
		s.Preview, s.Truncated = budget.Preview(n.Body, e.cfg.PreviewChars)
		out = append(out, Related{Node: s, Relationship: kind, Score: score, SharedTags: shared})
	}

	if opts.IncludeLinked {
		for _, target := range links.Outbound(seed) {
			n, ok := adj.byID[target]
			if !ok {
				continue
			}
			if _, dup := seen[target]; dup {
				continue
			}
			add(n, models.EdgeDeclaredLink, e.cfg.LinkScore, nil)
		}
		for _, n := range snap.Nodes {
			if _, dup := seen[n.ID]; dup {
				continue
			}
			if adj.linksTo(n.ID, seed.ID) {
				add(n, models.EdgeBackLink, e.cfg.BacklinkScore, nil)
			}
		}
	}

	if opts.IncludeSimilar && len(seed.Tags) > 0 {
		for _, n := range snap.Nodes {
			if _, dup := seen[n.ID]; dup {
				continue
			}
			if shared := sharedTags(seed.Tags, n.Tags); len(shared) > 0 {
				add(n, models.EdgeTagSimilarity, len(shared)*e.cfg.TagWeight, shared)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := tier(out[i].Relationship), tier(out[j].Relationship)
		if ti != tj {
			return ti < tj
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Node.ID < out[j].Node.ID
	})

	total := len(out)
	limit := opts.MaxResults
	if limit == 0 {
		limit = e.cfg.DefaultMaxRelated
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []Related{}
	}

	return &RelatedResult{
		SeedID:   seed.ID,
		Related:  out,
		Total:    total,
		Scanned:  len(snap.Nodes),
		Warnings: snap.Warnings,
	}, nil
}

func sharedTags(a, b []string) []string {
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	var out []string
	for _, t := range b {
		if _, ok := set[t]; ok {
			out = append(out, t)
			delete(set, t)
		}
	}
	sort.Strings(out)
	return out
}
