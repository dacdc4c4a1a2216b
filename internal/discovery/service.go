// Package discovery is the facade the outer surfaces (HTTP, MCP, CLI) call.
// It composes the search and graph engines over one store, pages results
// under the token budget and reports skipped records.
package discovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/ansuz/internal/budget"
	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/links"
	"github.com/starford/ansuz/internal/metrics"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/search"
	"github.com/starford/ansuz/internal/storage"
)

// Operation names used for metrics and logs.
const (
	OpSearch   = "search"
	OpRelated  = "related"
	OpGraph    = "graph"
	OpOrphans  = "orphans"
	OpStats    = "stats"
	OpTags     = "tags"
	OpTimeline = "timeline"
	OpRead     = "read"
)

// Config bundles the engine configurations and the token ceiling.
type Config struct {
	Search search.Config
	Graph  graph.Config
	// Ceiling is the token budget for one page or one note body.
	Ceiling int
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		Search:  search.DefaultConfig(),
		Graph:   graph.DefaultConfig(),
		Ceiling: budget.DefaultCeiling,
	}
}

// Option configures a Service.
type Option func(*Service)

// WithEstimator sets the token estimator used for paging.
func WithEstimator(est budget.Estimator) Option {
	return func(s *Service) { s.est = est }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger used for skipped-record warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service answers discovery queries against a store.
type Service struct {
	store   storage.Accessor
	search  *search.Engine
	graph   *graph.Engine
	est     budget.Estimator
	ceiling int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Service.
func New(store storage.Accessor, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:   store,
		search:  search.New(store, cfg.Search),
		graph:   graph.New(store, cfg.Graph),
		est:     budget.DefaultCharRatio(),
		ceiling: cfg.Ceiling,
		logger:  slog.Default(),
	}
	if s.ceiling <= 0 {
		s.ceiling = budget.DefaultCeiling
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PageRequest selects one page of a result set. Page zero means page 1.
// PageSize zero selects budgeted pages under the service ceiling.
type PageRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func paginate[T any](s *Service, op string, items []T, req PageRequest) (budget.Page[T], error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	var (
		p   budget.Page[T]
		err error
	)
	if req.PageSize > 0 {
		p, err = budget.Paginate(items, page, req.PageSize)
	} else {
		p, err = budget.BuildBudgetedPage(items, page, s.ceiling, s.est)
	}
	if err == nil {
		s.metrics.Page(op)
	}
	return p, err
}

func (s *Service) report(ctx context.Context, op string, scanned int, warnings []models.Warning) {
	s.metrics.Scanned(op, scanned, len(warnings))
	for _, w := range warnings {
		s.logger.WarnContext(ctx, "skipped record",
			slog.String("operation", op),
			slog.String("id", w.ID),
			slog.String("path", w.Path),
			slog.String("error", w.Message),
		)
	}
}

// SearchRequest is one search call.
type SearchRequest struct {
	Scope   string
	Query   string
	Options search.Options
	PageRequest
}

// SearchPage is one page of ranked hits.
type SearchPage struct {
	Query        string                           `json:"query"`
	Results      budget.Page[models.SearchResult] `json:"results"`
	TotalMatches int                              `json:"total_matches"`
	Scanned      int                              `json:"scanned"`
	Warnings     []models.Warning                 `json:"warnings,omitempty"`
}

// Search runs a ranked text search and returns the requested page.
func (s *Service) Search(ctx context.Context, req SearchRequest) (_ *SearchPage, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(OpSearch, start, err) }()

	res, err := s.search.Search(req.Scope, req.Query, req.Options)
	if err != nil {
		return nil, err
	}
	s.report(ctx, OpSearch, res.Scanned, res.Warnings)

	page, err := paginate(s, OpSearch, res.Hits, req.PageRequest)
	if err != nil {
		return nil, err
	}
	return &SearchPage{
		Query:        res.Query,
		Results:      page,
		TotalMatches: res.TotalMatches,
		Scanned:      res.Scanned,
		Warnings:     res.Warnings,
	}, nil
}

// RelatedPage is one page of the nodes related to a seed. Total counts
// every related node before the MaxResults cap.
type RelatedPage struct {
	SeedID   string                     `json:"seed_id"`
	Related  budget.Page[graph.Related] `json:"related"`
	Total    int                        `json:"total"`
	Scanned  int                        `json:"scanned"`
	Warnings []models.Warning           `json:"warnings,omitempty"`
}

// RelatedNodes lists nodes related to id by links or shared tags and
// returns the requested page of them.
func (s *Service) RelatedNodes(ctx context.Context, scope, id string, opts graph.RelatedOptions, req PageRequest) (_ *RelatedPage, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(OpRelated, start, err) }()

	res, err := s.graph.RelatedNodes(scope, id, opts)
	if err != nil {
		return nil, err
	}
	s.report(ctx, OpRelated, res.Scanned, res.Warnings)

	page, err := paginate(s, OpRelated, res.Related, req)
	if err != nil {
		return nil, err
	}
	return &RelatedPage{
		SeedID:   res.SeedID,
		Related:  page,
		Total:    res.Total,
		Scanned:  res.Scanned,
		Warnings: res.Warnings,
	}, nil
}

// GraphRequest is one link graph call.
type GraphRequest struct {
	Scope            string
	ID               string
	Depth            int
	IncludeBacklinks bool
	PageRequest
}

// GraphPage is one page of a link graph. Edges are limited to those
// touching a node on the page.
type GraphPage struct {
	Center   string                       `json:"center"`
	Depth    int                          `json:"depth"`
	Nodes    budget.Page[graph.GraphNode] `json:"nodes"`
	Edges    []models.Edge                `json:"edges"`
	Missing  []string                     `json:"missing,omitempty"`
	Stats    graph.GraphStats             `json:"stats"`
	Scanned  int                          `json:"scanned"`
	Warnings []models.Warning             `json:"warnings,omitempty"`
}

// LinkGraph builds the link graph around id and returns the requested page
// of its nodes.
func (s *Service) LinkGraph(ctx context.Context, req GraphRequest) (_ *GraphPage, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(OpGraph, start, err) }()

	g, err := s.graph.LinkGraph(req.Scope, req.ID, req.Depth, req.IncludeBacklinks)
	if err != nil {
		return nil, err
	}
	s.report(ctx, OpGraph, g.Scanned, g.Warnings)

	page, err := paginate(s, OpGraph, g.Nodes, req.PageRequest)
	if err != nil {
		return nil, err
	}
	onPage := make(map[string]struct{}, len(page.Items))
	for _, n := range page.Items {
		onPage[n.ID] = struct{}{}
	}
	edges := []models.Edge{}
	for _, e := range g.Edges {
		_, src := onPage[e.Source]
		_, dst := onPage[e.Target]
		if src || dst {
			edges = append(edges, e)
		}
	}

	return &GraphPage{
		Center:   g.Center,
		Depth:    g.Depth,
		Nodes:    page,
		Edges:    edges,
		Missing:  g.Missing,
		Stats:    g.Stats,
		Scanned:  g.Scanned,
		Warnings: g.Warnings,
	}, nil
}

// OrphanPage is one page of nodes with dangling links.
type OrphanPage struct {
	Orphans  budget.Page[graph.Orphan] `json:"orphans"`
	Scanned  int                       `json:"scanned"`
	Warnings []models.Warning          `json:"warnings,omitempty"`
}

// OrphanedNodes lists nodes under scope that link to missing nodes.
func (s *Service) OrphanedNodes(ctx context.Context, scope string, req PageRequest) (_ *OrphanPage, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(OpOrphans, start, err) }()

	res, err := s.graph.OrphanedNodes(scope)
	if err != nil {
		return nil, err
	}
	s.report(ctx, OpOrphans, res.Scanned, res.Warnings)

	page, err := paginate(s, OpOrphans, res.Orphans, req)
	if err != nil {
		return nil, err
	}
	return &OrphanPage{Orphans: page, Scanned: res.Scanned, Warnings: res.Warnings}, nil
}

// Stats summarises scope.
func (s *Service) Stats(ctx context.Context, scope string) (_ *graph.Stats, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(OpStats, start, err) }()

	st, err := s.graph.Stats(scope)
	if err != nil {
		return nil, err
	}
	s.report(ctx, OpStats, st.Scanned, st.Warnings)
	return st, nil
}

// TagCloudPage is one page of tag counts, most used first.
type TagCloudPage struct {
	Tags      budget.Page[graph.TagCount] `json:"tags"`
	TotalTags int                         `json:"total_tags"`
	MinCount  int                         `json:"min_count"`
	Scanned   int                         `json:"scanned"`
	Warnings  []models.Warning            `json:"warnings,omitempty"`
}

// TagCloud counts tag usage under scope and returns the requested page of
// the tags kept by minCount.
func (s *Service) TagCloud(ctx context.Context, scope string, minCount int, req PageRequest) (_ *TagCloudPage, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(OpTags, start, err) }()

	cloud, err := s.graph.TagCloud(scope, minCount)
	if err != nil {
		return nil, err
	}
	s.report(ctx, OpTags, cloud.Scanned, cloud.Warnings)

	page, err := paginate(s, OpTags, cloud.Tags, req)
	if err != nil {
		return nil, err
	}
	return &TagCloudPage{
		Tags:      page,
		TotalTags: cloud.TotalTags,
		MinCount:  cloud.MinCount,
		Scanned:   cloud.Scanned,
		Warnings:  cloud.Warnings,
	}, nil
}

// TimelinePage is one page of nodes in a date range.
type TimelinePage struct {
	Nodes    budget.Page[models.NodeSummary] `json:"nodes"`
	Scanned  int                             `json:"scanned"`
	Warnings []models.Warning                `json:"warnings,omitempty"`
}

// SearchByDate lists nodes whose timestamps fall in r, newest first.
func (s *Service) SearchByDate(ctx context.Context, scope string, r search.DateRange, req PageRequest) (_ *TimelinePage, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(OpTimeline, start, err) }()

	res, err := s.search.ByDate(scope, r)
	if err != nil {
		return nil, err
	}
	s.report(ctx, OpTimeline, res.Scanned, res.Warnings)

	page, err := paginate(s, OpTimeline, res.Nodes, req)
	if err != nil {
		return nil, err
	}
	return &TimelinePage{Nodes: page, Scanned: res.Scanned, Warnings: res.Warnings}, nil
}

// NoteContent is a node with its body cut to the token ceiling.
type NoteContent struct {
	models.NodeSummary
	Body         string   `json:"body"`
	OutboundRefs []string `json:"outbound_refs"`
	ScopeRefs    []string `json:"scope_refs,omitempty"`
	Path         string   `json:"path"`
	Truncated    bool     `json:"truncated"`
}

// ReadNote returns the full body of one node, cut only where it would
// exceed the token ceiling.
func (s *Service) ReadNote(ctx context.Context, scope, id string) (_ *NoteContent, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(OpRead, start, err) }()

	n, err := s.store.Load(scope, id)
	if err != nil {
		return nil, err
	}
	body, truncated := budget.Fit(n.Body, s.ceiling, s.est)
	outbound := n.OutboundRefs
	if outbound == nil {
		outbound = []string{}
	}
	return &NoteContent{
		NodeSummary:  n.Summary(),
		Body:         body,
		OutboundRefs: outbound,
		ScopeRefs:    links.ExtractScopeRefs(n.Body),
		Path:         n.Path,
		Truncated:    truncated,
	}, nil
}
