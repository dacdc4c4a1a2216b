package graph

import (
	"path"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

const topTagCount = 10

// NodeStats counts nodes by shape.
type NodeStats struct {
	Total     int `json:"total"`
	WithTags  int `json:"with_tags"`
	WithLinks int `json:"with_links"`
	Orphaned  int `json:"orphaned"`
	Isolated  int `json:"isolated"`
}

// LinkStats counts declared links.
type LinkStats struct {
	Total         int `json:"total"`
	UniqueTargets int `json:"unique_targets"`
	Dangling      int `json:"dangling"`
}

// TagCount is a tag with the number of nodes carrying it.
type TagCount struct {
	Tag      string   `json:"tag"`
	Count    int      `json:"count"`
	Examples []string `json:"examples,omitempty"`
}

// TagStats summarises tag usage.
type TagStats struct {
	Unique int        `json:"unique"`
	Top    []TagCount `json:"top"`
}

// LevelCount is the number of categories at one containment depth.
type LevelCount struct {
	Level int `json:"level"`
	Count int `json:"count"`
}

// ContainmentStats describes the category hierarchy.
type ContainmentStats struct {
	Categories int          `json:"categories"`
	MaxDepth   int          `json:"max_depth"`
	ByLevel    []LevelCount `json:"by_level"`
	Edges      int          `json:"edges"`
}

// Stats summarises a scope.
type Stats struct {
	Scope       string           `json:"scope"`
	Nodes       NodeStats        `json:"nodes"`
	Links       LinkStats        `json:"links"`
	Tags        TagStats         `json:"tags"`
	Containment ContainmentStats `json:"containment"`
	Scanned     int              `json:"scanned"`
	Warnings    []models.Warning `json:"warnings,omitempty"`
}

// Containment derives containment edges for a snapshot: parent category →
// child category, and category → node. Categories are scope paths relative
// to scope; the scope itself is "".
func Containment(scope string, snap *storage.Snapshot) []models.Edge {
	var edges []models.Edge
	seen := map[string]struct{}{}
	for _, n := range snap.Nodes {
		rel := relativeScope(scope, n.ScopePath)
		parts := splitScope(rel)
		parent := ""
		for i := range parts {
			child := strings.Join(parts[:i+1], "/")
			key := parent + "\x00" + child
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				edges = append(edges, models.Edge{Source: parent, Target: child, Kind: models.EdgeContainment, Weight: 1})
			}
			parent = child
		}
		edges = append(edges, models.Edge{Source: rel, Target: n.ID, Kind: models.EdgeContainment, Weight: 1})
	}
	return edges
}

func relativeScope(scope, scopePath string) string {
	if scope == "" {
		return scopePath
	}
	if scopePath == scope {
		return ""
	}
	return strings.TrimPrefix(scopePath, scope+"/")
}

func splitScope(rel string) []string {
	if rel == "" {
		return nil
	}
	return strings.Split(path.Clean(rel), "/")
}

// Stats computes node, link, tag and containment statistics for scope.
func (e *Engine) Stats(scope string) (*Stats, error) {
	snap, err := e.store.Enumerate(scope)
	if err != nil {
		return nil, err
	}
	cleaned, err := storage.CleanScope(scope)
	if err != nil {
		return nil, err
	}

	ids := snap.IDs()
	adj := newAdjacency(snap)
	st := &Stats{Scope: cleaned, Scanned: len(snap.Nodes), Warnings: snap.Warnings}
	st.Nodes.Total = len(snap.Nodes)

	targets := map[string]struct{}{}
	inbound := map[string]int{}
	for _, n := range snap.Nodes {
		out := adj.outbound[n.ID]
		if len(n.Tags) > 0 {
			st.Nodes.WithTags++
		}
		if len(out) > 0 {
			st.Nodes.WithLinks++
		}
		orphaned := false
		for _, t := range out {
			st.Links.Total++
			targets[t] = struct{}{}
			if _, ok := ids[t]; !ok {
				st.Links.Dangling++
				orphaned = true
			} else if t != n.ID {
				inbound[t]++
			}
		}
		if orphaned {
			st.Nodes.Orphaned++
		}
	}
	st.Links.UniqueTargets = len(targets)
	for _, n := range snap.Nodes {
		hasOut := false
		for _, t := range adj.outbound[n.ID] {
			if _, ok := adj.byID[t]; ok && t != n.ID {
				hasOut = true
				break
			}
		}
		if !hasOut && inbound[n.ID] == 0 {
			st.Nodes.Isolated++
		}
	}

	cloud := tagCounts(snap, 1, 0)
	st.Tags.Unique = len(cloud)
	st.Tags.Top = cloud[:min(len(cloud), topTagCount)]

	st.Containment.Edges = len(Containment(cleaned, snap))
	levels := map[int]int{}
	for cat := range categories(cleaned, snap) {
		depth := len(splitScope(cat))
		levels[depth]++
		st.Containment.Categories++
		st.Containment.MaxDepth = max(st.Containment.MaxDepth, depth)
	}
	st.Containment.ByLevel = []LevelCount{}
	for level, count := range levels {
		st.Containment.ByLevel = append(st.Containment.ByLevel, LevelCount{Level: level, Count: count})
	}
	sort.Slice(st.Containment.ByLevel, func(i, j int) bool {
		return st.Containment.ByLevel[i].Level < st.Containment.ByLevel[j].Level
	})

	return st, nil
}

// categories returns every category path under scope that holds a node,
// directly or through a descendant.
func categories(scope string, snap *storage.Snapshot) map[string]struct{} {
	out := map[string]struct{}{}
	for _, n := range snap.Nodes {
		parts := splitScope(relativeScope(scope, n.ScopePath))
		for i := range parts {
			out[strings.Join(parts[:i+1], "/")] = struct{}{}
		}
	}
	return out
}
