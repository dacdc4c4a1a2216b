package models

// EdgeKind classifies a relationship between two nodes.
type EdgeKind string

// Edge kinds.
const (
	EdgeDeclaredLink  EdgeKind = "declared_link"
	EdgeBackLink      EdgeKind = "back_link"
	EdgeTagSimilarity EdgeKind = "tag_similarity"
	EdgeContainment   EdgeKind = "containment"
)

// Link origins for declared links.
const (
	OriginFrontmatter = "frontmatter"
	OriginBody        = "body"
)

// Edge is a directed relationship between two nodes. Edges are derived on
// demand and never stored.
type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
	Weight int      `json:"weight"`
	Origin string   `json:"origin,omitempty"`
}
