// Package models defines the domain types for Ansuz.
package models

import "time"

// Node is a single note in the vault, viewed as a graph vertex.
//
// ID is the filename stem and is unique within a scope. Tags preserve
// first-seen order and contain no duplicates. OutboundRefs holds the
// targets declared in frontmatter, in declaration order.
type Node struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Tags         []string  `json:"tags"`
	OutboundRefs []string  `json:"outbound_refs"`
	CreatedAt    time.Time `json:"created_at"`
	ModifiedAt   time.Time `json:"modified_at"`
	ScopePath    string    `json:"scope_path"`
	Path         string    `json:"path"`
	Checksum     string    `json:"checksum"`
}

// HasTag reports whether the node carries tag.
func (n *Node) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NodeSummary is the lightweight view of a node returned in result lists.
type NodeSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	ScopePath  string    `json:"scope_path"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	Preview    string    `json:"preview,omitempty"`
	Truncated  bool      `json:"truncated,omitempty"`
}

// Summary returns the summary view of n without a preview.
func (n *Node) Summary() NodeSummary {
	return NodeSummary{
		ID:         n.ID,
		Title:      n.Title,
		ScopePath:  n.ScopePath,
		Tags:       n.Tags,
		CreatedAt:  n.CreatedAt,
		ModifiedAt: n.ModifiedAt,
	}
}

// Warning records a node that was skipped during a scan.
type Warning struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Message string `json:"message"`
}
