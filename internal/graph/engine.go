// Package graph implements traversal over the implicit note graph: related
// nodes, bounded link graphs, orphan detection and corpus statistics.
//
// Edges are never stored. Every call enumerates a fresh snapshot of the
// scope and derives edges from the nodes' declared references and body
// markers.
package graph

import (
	"fmt"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/links"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

// Config holds relationship scores and traversal limits.
type Config struct {
	LinkScore         int
	BacklinkScore     int
	TagWeight         int
	DefaultMaxRelated int
	// MaxDepth bounds LinkGraph depth. Zero means unbounded.
	MaxDepth     int
	PreviewChars int
}

// DefaultConfig returns the default graph configuration.
func DefaultConfig() Config {
	return Config{
		LinkScore:         100,
		BacklinkScore:     90,
		TagWeight:         20,
		DefaultMaxRelated: 10,
		MaxDepth:          10,
		PreviewChars:      100,
	}
}

// Engine runs graph queries against an Accessor.
type Engine struct {
	store storage.Accessor
	cfg   Config
}

// New creates an Engine.
func New(store storage.Accessor, cfg Config) *Engine {
	return &Engine{store: store, cfg: cfg}
}

// seedAndSnapshot loads the seed (surfacing not-found and corrupt errors)
// and enumerates the rest of the scope.
func (e *Engine) seedAndSnapshot(scope, seedID string) (*models.Node, *storage.Snapshot, error) {
	if seedID == "" {
		return nil, nil, fmt.Errorf("%w: node id is required", apperr.ErrInvalidRequest)
	}
	seed, err := e.store.Load(scope, seedID)
	if err != nil {
		return nil, nil, err
	}
	snap, err := e.store.Enumerate(scope)
	if err != nil {
		return nil, nil, err
	}
	return seed, snap, nil
}

// adjacency precomputes every node's outbound targets for one snapshot.
type adjacency struct {
	byID     map[string]*models.Node
	outbound map[string][]string
}

func newAdjacency(snap *storage.Snapshot) *adjacency {
	a := &adjacency{
		byID:     snap.ByID(),
		outbound: make(map[string][]string, len(snap.Nodes)),
	}
	for _, n := range snap.Nodes {
		a.outbound[n.ID] = links.Outbound(n)
	}
	return a
}

func (a *adjacency) linksTo(src, target string) bool {
	for _, t := range a.outbound[src] {
		if t == target {
			return true
		}
	}
	return false
}
