package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/discovery"
	"github.com/starford/ansuz/internal/graph"
)

// Response types, aliased from the domain layer for the API docs.
type (
	SearchResponse   = discovery.SearchPage
	NoteResponse     = discovery.NoteContent
	RelatedResponse  = discovery.RelatedPage
	GraphResponse    = discovery.GraphPage
	OrphanResponse   = discovery.OrphanPage
	StatsResponse    = graph.Stats
	TagCloudResponse = discovery.TagCloudPage
	TimelineResponse = discovery.TimelinePage
)

// params reads typed query parameters. The first malformed value is kept
// in err and later reads are no-ops.
type params struct {
	q   url.Values
	err error
}

func newParams(q url.Values) *params {
	return &params{q: q}
}

func (p *params) str(key string) string {
	return strings.TrimSpace(p.q.Get(key))
}

func (p *params) intValue(key string, def int) int {
	raw := p.str(key)
	if raw == "" || p.err != nil {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.err = fmt.Errorf("%w: parameter %q must be an integer, got %q", apperr.ErrInvalidRequest, key, raw)
		return def
	}
	return v
}

func (p *params) boolValue(key string, def bool) bool {
	raw := p.str(key)
	if raw == "" || p.err != nil {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.err = fmt.Errorf("%w: parameter %q must be a boolean, got %q", apperr.ErrInvalidRequest, key, raw)
		return def
	}
	return v
}

// list accepts repeated keys and comma-separated values.
func (p *params) list(key string) []string {
	var out []string
	for _, raw := range p.q[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func (p *params) page() discovery.PageRequest {
	return discovery.PageRequest{Page: p.intValue("page", 1), PageSize: p.intValue("page_size", 0)}
}
