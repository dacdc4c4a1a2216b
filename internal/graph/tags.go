package graph

import (
	"fmt"
	"sort"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

const maxTagExamples = 10

// TagCloud lists tags by usage.
type TagCloud struct {
	Tags      []TagCount       `json:"tags"`
	TotalTags int              `json:"total_tags"`
	MinCount  int              `json:"min_count"`
	Scanned   int              `json:"scanned"`
	Warnings  []models.Warning `json:"warnings,omitempty"`
}

// TagCloud counts the nodes carrying each tag under scope and keeps tags
// used at least minCount times, most used first. Each entry lists up to ten
// example node IDs.
func (e *Engine) TagCloud(scope string, minCount int) (*TagCloud, error) {
	if minCount < 0 {
		return nil, fmt.Errorf("%w: min count must not be negative, got %d", apperr.ErrInvalidRequest, minCount)
	}
	if minCount == 0 {
		minCount = 1
	}
	snap, err := e.store.Enumerate(scope)
	if err != nil {
		return nil, err
	}
	all := tagCounts(snap, 1, maxTagExamples)
	kept := tagCounts(snap, minCount, maxTagExamples)
	return &TagCloud{
		Tags:      kept,
		TotalTags: len(all),
		MinCount:  minCount,
		Scanned:   len(snap.Nodes),
		Warnings:  snap.Warnings,
	}, nil
}

// tagCounts tallies tags with at least minCount uses, ordered by count
// descending then tag ascending, keeping up to examples node IDs per tag.
func tagCounts(snap *storage.Snapshot, minCount, examples int) []TagCount {
	index := map[string]*TagCount{}
	for _, n := range snap.Nodes {
		for _, t := range n.Tags {
			tc, ok := index[t]
			if !ok {
				tc = &TagCount{Tag: t}
				index[t] = tc
			}
			tc.Count++
			if len(tc.Examples) < examples {
				tc.Examples = append(tc.Examples, n.ID)
			}
		}
	}
	out := make([]TagCount, 0, len(index))
	for _, tc := range index {
		if tc.Count >= minCount {
			out = append(out, *tc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}
