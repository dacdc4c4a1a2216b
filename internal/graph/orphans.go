package graph

import (
	"sort"

	"github.com/starford/ansuz/internal/models"
)

// Orphan is a node with at least one link to a node that does not exist.
type Orphan struct {
	NodeID    string   `json:"node_id"`
	Title     string   `json:"title"`
	ScopePath string   `json:"scope_path"`
	Dangling  []string `json:"dangling"`
}

// OrphanResult lists nodes with dangling links.
type OrphanResult struct {
	Orphans  []Orphan         `json:"orphans"`
	Total    int              `json:"total"`
	Scanned  int              `json:"scanned"`
	Warnings []models.Warning `json:"warnings,omitempty"`
}

// OrphanedNodes reports every node under scope with outbound targets that
// name no node. Records skipped as corrupt still count as existing, since
// their files are present. Results are ordered by node ID.
func (e *Engine) OrphanedNodes(scope string) (*OrphanResult, error) {
	snap, err := e.store.Enumerate(scope)
	if err != nil {
		return nil, err
	}
	ids := snap.IDs()
	adj := newAdjacency(snap)

	out := []Orphan{}
	for _, n := range snap.Nodes {
		var dangling []string
		for _, target := range adj.outbound[n.ID] {
			if _, ok := ids[target]; !ok {
				dangling = append(dangling, target)
			}
		}
		if len(dangling) == 0 {
			continue
		}
		out = append(out, Orphan{
			NodeID:    n.ID,
			Title:     n.Title,
			ScopePath: n.ScopePath,
			Dangling:  dangling,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })

	return &OrphanResult{Orphans: out, Total: len(out), Scanned: len(snap.Nodes), Warnings: snap.Warnings}, nil
}
