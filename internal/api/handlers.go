package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/discovery"
	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/search"
)

// Handler holds API route handlers.
type Handler struct {
	svc *discovery.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *discovery.Service) *Handler {
	return &Handler{svc: svc}
}

// Search handles GET /api/search.
//
//	@Summary		Ranked text search over titles and bodies
//	@Tags			search
//	@Produce		json
//	@Param			q				query		string	true	"Search query"
//	@Param			scope			query		string	false	"Scope path (empty for the whole vault)"
//	@Param			title			query		bool	false	"Search titles"	default(true)
//	@Param			body			query		bool	false	"Search bodies"	default(true)
//	@Param			tag				query		string	false	"Tag filter, repeatable or comma-separated"
//	@Param			case_sensitive	query		bool	false	"Case-sensitive matching"
//	@Param			pattern			query		bool	false	"Treat q as a regular expression"
//	@Param			max				query		int		false	"Max hits before paging"
//	@Param			page			query		int		false	"Page number"	default(1)
//	@Param			page_size		query		int		false	"Fixed page size (0 for token-budgeted pages)"
//	@Success		200				{object}	SearchResponse
//	@Failure		400				{object}	errResponse
//	@Failure		404				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	p := newParams(r.URL.Query())
	req := discovery.SearchRequest{
		Scope: p.str("scope"),
		Query: p.str("q"),
		Options: search.Options{
			SearchTitle:   p.boolValue("title", true),
			SearchBody:    p.boolValue("body", true),
			Tags:          p.list("tag"),
			CaseSensitive: p.boolValue("case_sensitive", false),
			Pattern:       p.boolValue("pattern", false),
			MaxResults:    p.intValue("max", 0),
		},
		PageRequest: p.page(),
	}
	if p.err != nil {
		writeError(w, r, "search", p.err)
		return
	}
	res, err := h.svc.Search(r.Context(), req)
	if err != nil {
		writeError(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ReadNote handles GET /api/notes/{id}.
//
//	@Summary		Read a note's full body, cut only at the token ceiling
//	@Tags			notes
//	@Produce		json
//	@Param			id		path		string	true	"Node ID (filename stem)"
//	@Param			scope	query		string	false	"Scope path"
//	@Success		200		{object}	NoteResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) ReadNote(w http.ResponseWriter, r *http.Request) {
	p := newParams(r.URL.Query())
	note, err := h.svc.ReadNote(r.Context(), p.str("scope"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "read note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Related handles GET /api/related/{id}.
//
//	@Summary		Nodes related by links, back links or shared tags
//	@Tags			graph
//	@Produce		json
//	@Param			id		path		string	true	"Seed node ID"
//	@Param			scope	query		string	false	"Scope path"
//	@Param			max		query		int		false	"Max results"
//	@Param			linked	query		bool	false	"Include linked nodes"	default(true)
//	@Param			similar	query		bool	false	"Include tag-similar nodes"	default(true)
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Fixed page size (0 for token-budgeted pages)"
//	@Success		200		{object}	RelatedResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/related/{id} [get]
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	p := newParams(r.URL.Query())
	opts := graph.RelatedOptions{
		MaxResults:     p.intValue("max", 0),
		IncludeLinked:  p.boolValue("linked", true),
		IncludeSimilar: p.boolValue("similar", true),
	}
	page := p.page()
	if p.err != nil {
		writeError(w, r, "related", p.err)
		return
	}
	res, err := h.svc.RelatedNodes(r.Context(), p.str("scope"), chi.URLParam(r, "id"), opts, page)
	if err != nil {
		writeError(w, r, "related", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// LinkGraph handles GET /api/graph/{id}.
//
//	@Summary		Bounded link graph around a node
//	@Tags			graph
//	@Produce		json
//	@Param			id			path		string	true	"Seed node ID"
//	@Param			scope		query		string	false	"Scope path"
//	@Param			depth		query		int		false	"Hops to follow"	default(2)
//	@Param			backlinks	query		bool	false	"Add nodes linking to the seed"
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Fixed page size (0 for token-budgeted pages)"
//	@Success		200			{object}	GraphResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph/{id} [get]
func (h *Handler) LinkGraph(w http.ResponseWriter, r *http.Request) {
	p := newParams(r.URL.Query())
	req := discovery.GraphRequest{
		Scope:            p.str("scope"),
		ID:               chi.URLParam(r, "id"),
		Depth:            p.intValue("depth", 2),
		IncludeBacklinks: p.boolValue("backlinks", false),
		PageRequest:      p.page(),
	}
	if p.err != nil {
		writeError(w, r, "graph", p.err)
		return
	}
	res, err := h.svc.LinkGraph(r.Context(), req)
	if err != nil {
		writeError(w, r, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Orphans handles GET /api/orphans.
//
//	@Summary		Nodes with links to missing nodes
//	@Tags			graph
//	@Produce		json
//	@Param			scope		query		string	false	"Scope path"
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Fixed page size (0 for token-budgeted pages)"
//	@Success		200			{object}	OrphanResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/orphans [get]
func (h *Handler) Orphans(w http.ResponseWriter, r *http.Request) {
	p := newParams(r.URL.Query())
	page := p.page()
	if p.err != nil {
		writeError(w, r, "orphans", p.err)
		return
	}
	res, err := h.svc.OrphanedNodes(r.Context(), p.str("scope"), page)
	if err != nil {
		writeError(w, r, "orphans", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Stats handles GET /api/stats.
//
//	@Summary		Node, link, tag and containment statistics
//	@Tags			graph
//	@Produce		json
//	@Param			scope	query		string	false	"Scope path"
//	@Success		200		{object}	StatsResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Stats(r.Context(), r.URL.Query().Get("scope"))
	if err != nil {
		writeError(w, r, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// TagCloud handles GET /api/tags.
//
//	@Summary		Tag usage counts
//	@Tags			graph
//	@Produce		json
//	@Param			scope		query		string	false	"Scope path"
//	@Param			min_count	query		int		false	"Minimum uses"	default(1)
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Fixed page size (0 for token-budgeted pages)"
//	@Success		200			{object}	TagCloudResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) TagCloud(w http.ResponseWriter, r *http.Request) {
	p := newParams(r.URL.Query())
	minCount := p.intValue("min_count", 1)
	page := p.page()
	if p.err != nil {
		writeError(w, r, "tags", p.err)
		return
	}
	res, err := h.svc.TagCloud(r.Context(), p.str("scope"), minCount, page)
	if err != nil {
		writeError(w, r, "tags", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Timeline handles GET /api/timeline.
//
//	@Summary		Nodes in a date range, newest first
//	@Tags			search
//	@Produce		json
//	@Param			scope		query		string	false	"Scope path"
//	@Param			field		query		string	false	"Timestamp to filter on"	Enums(modified, created, either)
//	@Param			start		query		string	false	"Range start (RFC 3339 or YYYY-MM-DD)"
//	@Param			end			query		string	false	"Range end, inclusive (RFC 3339 or YYYY-MM-DD)"
//	@Param			max			query		int		false	"Max results before paging"
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Fixed page size (0 for token-budgeted pages)"
//	@Success		200			{object}	TimelineResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/timeline [get]
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	p := newParams(r.URL.Query())
	rng := search.DateRange{
		Field:      search.DateField(p.str("field")),
		MaxResults: p.intValue("max", 0),
	}
	page := p.page()
	if p.err != nil {
		writeError(w, r, "timeline", p.err)
		return
	}
	var err error
	if rng.Start, err = search.ParseDate(p.str("start"), false); err != nil {
		writeError(w, r, "timeline", err)
		return
	}
	if rng.End, err = search.ParseDate(p.str("end"), true); err != nil {
		writeError(w, r, "timeline", err)
		return
	}
	res, err := h.svc.SearchByDate(r.Context(), p.str("scope"), rng, page)
	if err != nil {
		writeError(w, r, "timeline", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
