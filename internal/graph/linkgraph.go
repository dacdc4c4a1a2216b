package graph

import (
	"fmt"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/links"
	"github.com/starford/ansuz/internal/models"
)

// GraphNode is a node placed in a link graph.
type GraphNode struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	ScopePath string   `json:"scope_path"`
	Tags      []string `json:"tags"`
	Depth     int      `json:"depth"`
	Central   bool     `json:"central,omitempty"`
	Backlink  bool     `json:"backlink,omitempty"`
}

// GraphStats summarises a link graph.
type GraphStats struct {
	TotalNodes int `json:"total_nodes"`
	TotalEdges int `json:"total_edges"`
	MaxDepth   int `json:"max_depth"`
}

// LinkGraph is the neighbourhood of a seed node reachable over forward links.
type LinkGraph struct {
	Center   string           `json:"center"`
	Depth    int              `json:"depth"`
	Nodes    []GraphNode      `json:"nodes"`
	Edges    []models.Edge    `json:"edges"`
	Missing  []string         `json:"missing,omitempty"`
	Stats    GraphStats       `json:"stats"`
	Scanned  int              `json:"scanned"`
	Warnings []models.Warning `json:"warnings,omitempty"`
}

// LinkGraph walks forward links breadth-first from seedID for up to depth
// hops. Every node is visited once, so cycles terminate. Edges between any
// two nodes of the graph are reported once each, including edges that close
// a cycle. With includeBacklinks, nodes linking to the seed join the graph
// at depth 1 without being expanded further.
func (e *Engine) LinkGraph(scope, seedID string, depth int, includeBacklinks bool) (*LinkGraph, error) {
	if depth < 0 {
		return nil, fmt.Errorf("%w: depth must not be negative, got %d", apperr.ErrInvalidRequest, depth)
	}
	if e.cfg.MaxDepth > 0 && depth > e.cfg.MaxDepth {
		return nil, fmt.Errorf("%w: depth %d exceeds the limit of %d", apperr.ErrInvalidRequest, depth, e.cfg.MaxDepth)
	}
	seed, snap, err := e.seedAndSnapshot(scope, seedID)
	if err != nil {
		return nil, err
	}
	adj := newAdjacency(snap)
	if _, ok := adj.byID[seed.ID]; !ok {
		adj.byID[seed.ID] = seed
		adj.outbound[seed.ID] = links.Outbound(seed)
	}

	g := &LinkGraph{Center: seed.ID, Depth: depth, Scanned: len(snap.Nodes), Warnings: snap.Warnings}
	depths := map[string]int{seed.ID: 0}
	order := []string{seed.ID}
	missing := map[string]struct{}{}

	for i := 0; i < len(order); i++ {
		cur := order[i]
		d := depths[cur]
		if d >= depth {
			continue
		}
		for _, target := range adj.outbound[cur] {
			if _, ok := adj.byID[target]; !ok {
				if _, dup := missing[target]; !dup {
					missing[target] = struct{}{}
					g.Missing = append(g.Missing, target)
				}
				continue
			}
			if _, visited := depths[target]; visited {
				continue
			}
			depths[target] = d + 1
			order = append(order, target)
		}
	}

	backlinkers := map[string]bool{}
	if includeBacklinks {
		for _, n := range snap.Nodes {
			if _, in := depths[n.ID]; in {
				continue
			}
			if adj.linksTo(n.ID, seed.ID) {
				depths[n.ID] = 1
				order = append(order, n.ID)
				backlinkers[n.ID] = true
			}
		}
	}

	g.Nodes = make([]GraphNode, 0, len(order))
	for _, id := range order {
		n := adj.byID[id]
		g.Nodes = append(g.Nodes, GraphNode{
			ID:        n.ID,
			Title:     n.Title,
			ScopePath: n.ScopePath,
			Tags:      n.Tags,
			Depth:     depths[id],
			Central:   id == seed.ID,
			Backlink:  backlinkers[id],
		})
		g.Stats.MaxDepth = max(g.Stats.MaxDepth, depths[id])
	}

	g.Edges = []models.Edge{}
	for _, src := range order {
		for _, target := range adj.outbound[src] {
			if target == src {
				continue
			}
			if _, in := depths[target]; !in {
				continue
			}
			g.Edges = append(g.Edges, models.Edge{
				Source: src,
				Target: target,
				Kind:   models.EdgeDeclaredLink,
				Weight: 1,
			})
		}
	}

	g.Stats.TotalNodes = len(g.Nodes)
	g.Stats.TotalEdges = len(g.Edges)
	return g, nil
}
