// Package parser turns raw Markdown records into nodes and back.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

const delim = "---"

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Frontmatter keys, first match wins.
var (
	titleKeys    = []string{"title"}
	tagKeys      = []string{"tags"}
	linkKeys     = []string{"linked_notes", "links"}
	createdKeys  = []string{"created_at", "created"}
	modifiedKeys = []string{"updated_at", "modified_at", "modified", "updated"}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Result holds the output of parsing a Markdown record.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Title       string
	Tags        []string
	LinkedNotes []string
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

// Parse extracts frontmatter, body, title, tags and declared links from raw
// Markdown bytes. Records that cannot be decoded fail with
// apperr.ErrCorruptNode.
func Parse(data []byte) (*Result, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", apperr.ErrCorruptNode)
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, fmt.Errorf("%w: content contains NUL bytes", apperr.ErrCorruptNode)
	}

	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	res := &Result{Frontmatter: fm, Body: body}

	if res.Tags, err = extractTags(body, fm); err != nil {
		return nil, err
	}
	if res.LinkedNotes, err = stringList(fm, linkKeys); err != nil {
		return nil, err
	}
	res.Title = deriveTitle(fm, body)
	res.CreatedAt = timeValue(fm, createdKeys)
	res.ModifiedAt = timeValue(fm, modifiedKeys)
	return res, nil
}

// Node assembles a node from a parsed record. Missing timestamps fall back
// to modTime and a missing title falls back to the ID.
func (r *Result) Node(id, scopePath, relPath string, modTime time.Time) *models.Node {
	n := &models.Node{
		ID:           id,
		Title:        r.Title,
		Body:         r.Body,
		Tags:         r.Tags,
		OutboundRefs: r.LinkedNotes,
		CreatedAt:    r.CreatedAt,
		ModifiedAt:   r.ModifiedAt,
		ScopePath:    scopePath,
		Path:         relPath,
	}
	if n.Title == "" {
		n.Title = id
	}
	if n.ModifiedAt.IsZero() {
		n.ModifiedAt = modTime
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = n.ModifiedAt
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	if n.OutboundRefs == nil {
		n.OutboundRefs = []string{}
	}
	return n
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	// The opening fence must stand on its own line.
	if len(rest) > 0 && rest[0] != '\n' && rest[0] != '\r' {
		return nil, string(data), nil
	}
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, "", fmt.Errorf("%w: unterminated frontmatter", apperr.ErrCorruptNode)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, "", fmt.Errorf("%w: frontmatter: %v", apperr.ErrCorruptNode, err)
	}
	return fm, body, nil
}

func lookup(fm map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := fm[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// stringList reads a list-of-strings field. A bare string is treated as a
// one-element list; any other shape is a decode failure.
func stringList(fm map[string]any, keys []string) ([]string, error) {
	raw, ok := lookup(fm, keys)
	if !ok {
		return nil, nil
	}
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case string:
		items = []any{v}
	default:
		return nil, fmt.Errorf("%w: field %q must be a list of strings", apperr.ErrCorruptNode, keys[0])
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		switch v := item.(type) {
		case string:
			s = v
		case int, int64, float64, bool:
			s = fmt.Sprint(v)
		default:
			return nil, fmt.Errorf("%w: field %q has a non-string item", apperr.ErrCorruptNode, keys[0])
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// extractTags collects frontmatter tags followed by inline #tags from body.
func extractTags(body string, fm map[string]any) ([]string, error) {
	out, err := stringList(fm, tagKeys)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(out))
	for _, t := range out {
		seen[t] = struct{}{}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		t := m[1]
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out, nil
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if t, ok := lookup(fm, titleKeys); ok {
		if s := strings.TrimSpace(fmt.Sprint(t)); s != "" {
			return s
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// timeValue reads a timestamp field. Unparseable values are ignored.
func timeValue(fm map[string]any, keys []string) time.Time {
	raw, ok := lookup(fm, keys)
	if !ok {
		return time.Time{}
	}
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

type frontmatter struct {
	Title       string   `yaml:"title"`
	CreatedAt   string   `yaml:"created_at,omitempty"`
	UpdatedAt   string   `yaml:"updated_at,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	LinkedNotes []string `yaml:"linked_notes,omitempty"`
}

// Render serializes a node into its on-disk Markdown form.
func Render(n *models.Node) ([]byte, error) {
	fm := frontmatter{
		Title:       n.Title,
		Tags:        n.Tags,
		LinkedNotes: n.OutboundRefs,
	}
	if !n.CreatedAt.IsZero() {
		fm.CreatedAt = n.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !n.ModifiedAt.IsZero() {
		fm.UpdatedAt = n.ModifiedAt.UTC().Format(time.RFC3339)
	}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("parser: render frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(head)
	buf.WriteString(delim + "\n\n")
	buf.WriteString(n.Body)
	if !strings.HasSuffix(n.Body, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
