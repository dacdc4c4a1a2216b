// Package links extracts link targets from node bodies and frontmatter.
package links

import (
	"path"
	"regexp"
	"strings"

	"github.com/starford/ansuz/internal/models"
)

// ScopePrefix marks a reference to a node in another vault scope.
const ScopePrefix = "kb:"

var wikilinkRe = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

// Normalize maps a raw link target to a node ID. It strips aliases,
// heading anchors, folder prefixes and the .md extension. ok is false for
// empty targets and for cross-scope references.
func Normalize(raw string) (id string, ok bool) {
	target := raw
	if i := strings.Index(target, "|"); i >= 0 {
		target = target[:i]
	}
	if i := strings.Index(target, "#"); i >= 0 {
		target = target[:i]
	}
	target = strings.TrimSpace(target)
	if target == "" || strings.HasPrefix(target, ScopePrefix) {
		return "", false
	}
	target = strings.TrimSuffix(strings.TrimRight(target, "/"), ".md")
	target = path.Base(target)
	if target == "." || target == "/" || target == "" {
		return "", false
	}
	return target, true
}

// Extract returns the node IDs referenced by [[...]] markers in body,
// deduplicated in first-occurrence order. Malformed markers are ignored.
func Extract(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		id, ok := Normalize(m[1])
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ExtractScopeRefs returns the targets of cross-scope [[kb:...]] markers.
func ExtractScopeRefs(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{})
	var out []string
	for _, m := range matches {
		raw := strings.TrimSpace(m[1])
		if !strings.HasPrefix(raw, ScopePrefix) {
			continue
		}
		ref := strings.TrimSpace(strings.TrimPrefix(raw, ScopePrefix))
		if i := strings.Index(ref, "|"); i >= 0 {
			ref = strings.TrimSpace(ref[:i])
		}
		if ref == "" {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// Outbound returns the union of the node's declared references and its body
// markers, declared first, without duplicates. Self references are kept.
func Outbound(n *models.Node) []string {
	edges := OutboundEdges(n)
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Target)
	}
	return out
}

// OutboundEdges is Outbound with each target wrapped in a declared_link edge
// that records where the reference came from.
func OutboundEdges(n *models.Node) []models.Edge {
	seen := make(map[string]struct{})
	var out []models.Edge
	add := func(id, origin string) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, models.Edge{
			Source: n.ID,
			Target: id,
			Kind:   models.EdgeDeclaredLink,
			Weight: 1,
			Origin: origin,
		})
	}
	for _, ref := range n.OutboundRefs {
		if id, ok := Normalize(ref); ok {
			add(id, models.OriginFrontmatter)
		}
	}
	for _, id := range Extract(n.Body) {
		add(id, models.OriginBody)
	}
	return out
}
