// Package storage defines read access to the node store and its vault
// file-system implementation.
package storage

import "github.com/starford/ansuz/internal/models"

// Snapshot is the result of one enumeration of a scope: every decodable
// node in lexical path order plus a warning for every skipped record.
type Snapshot struct {
	Nodes    []*models.Node
	Warnings []models.Warning
}

// IDs returns the set of node IDs present in the scope, including IDs of
// records that were skipped as corrupt.
func (s *Snapshot) IDs() map[string]struct{} {
	out := make(map[string]struct{}, len(s.Nodes)+len(s.Warnings))
	for _, n := range s.Nodes {
		out[n.ID] = struct{}{}
	}
	for _, w := range s.Warnings {
		if w.ID != "" {
			out[w.ID] = struct{}{}
		}
	}
	return out
}

// ByID indexes the snapshot's nodes by ID.
func (s *Snapshot) ByID() map[string]*models.Node {
	out := make(map[string]*models.Node, len(s.Nodes))
	for _, n := range s.Nodes {
		out[n.ID] = n
	}
	return out
}

// Accessor is the read interface the discovery engines consume.
type Accessor interface {
	// Enumerate returns all nodes under scope (recursively). An empty scope
	// names the vault root. A scope that does not exist fails with
	// apperr.ErrNotFound.
	Enumerate(scope string) (*Snapshot, error)
	// Load returns the node with the given ID under scope. It fails with
	// apperr.ErrNotFound or apperr.ErrCorruptNode.
	Load(scope, id string) (*models.Node, error)
}

// Writer persists nodes. The discovery core never writes.
type Writer interface {
	Save(n *models.Node) error
	// CreateScope makes scope and its parents exist without adding nodes.
	CreateScope(scope string) error
}

// ScopeLister reports every folder scope a store holds, including folders
// with no nodes. The root scope is not listed.
type ScopeLister interface {
	Scopes() ([]string, error)
}

// Store is an Accessor that can also persist nodes.
type Store interface {
	Accessor
	Writer
}
