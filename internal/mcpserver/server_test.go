package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/discovery"
	"github.com/starford/ansuz/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	store, _ := testutil.MemVault(t, map[string]string{
		"hooks.md":        testutil.Note("Hooks Guide", []string{"react"}, []string{"state"}, "Hooks and [[effects]]."),
		"state.md":        testutil.Note("State", []string{"react", "core"}, nil, "State and hooks."),
		"areas/ideas.md":  testutil.Note("Ideas", []string{"core"}, nil, "Loose ideas, see [[kb:archive]]."),
		"areas/broken.md": "---\ntitle: [unclosed\n---\n",
	})
	return New(discovery.New(store, discovery.DefaultConfig()))
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"search_notes":        srv.searchNotes,
		"find_related_notes":  srv.findRelatedNotes,
		"generate_link_graph": srv.generateLinkGraph,
		"find_orphaned_notes": srv.findOrphanedNotes,
		"generate_kb_stats":   srv.generateKBStats,
		"generate_tag_cloud":  srv.generateTagCloud,
		"search_by_date":      srv.searchByDate,
		"read_note":           srv.readNote,
		"get_note_contract":   srv.getNoteContract,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func decodeResult(t *testing.T, r *mcp.CallToolResult, v any) {
	t.Helper()
	if r.IsError {
		t.Fatalf("tool error: %s", resultText(r))
	}
	if err := json.Unmarshal([]byte(resultText(r)), v); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
}

func TestToolsRegistered(t *testing.T) {
	srv := testServer(t)
	tools := srv.MCPServer().ListTools()
	for _, name := range []string{
		"search_notes", "find_related_notes", "generate_link_graph", "find_orphaned_notes",
		"generate_kb_stats", "generate_tag_cloud", "search_by_date", "read_note", "get_note_contract",
	} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestSearchNotes(t *testing.T) {
	srv := testServer(t)

	var page discovery.SearchPage
	decodeResult(t, callTool(t, srv, "search_notes", map[string]any{"query": "hooks"}), &page)
	if page.TotalMatches != 2 || page.Results.Items[0].NodeID != "hooks" {
		t.Errorf("search = %+v", page)
	}
	if len(page.Warnings) != 1 {
		t.Errorf("warnings = %d, want 1", len(page.Warnings))
	}

	decodeResult(t, callTool(t, srv, "search_notes", map[string]any{
		"query":     "hooks",
		"tags":      []any{"core"},
		"page_size": float64(1),
	}), &page)
	if page.TotalMatches != 1 || page.Results.Items[0].NodeID != "state" {
		t.Errorf("tag-filtered search = %+v", page)
	}
}

func TestSearchNotes_Errors(t *testing.T) {
	srv := testServer(t)

	for _, args := range []map[string]any{
		{},
		{"query": ""},
		{"query": "(", "pattern": true},
		{"query": "x", "scope": "nowhere"},
		{"query": "x", "page": float64(7)},
	} {
		if r := callTool(t, srv, "search_notes", args); !r.IsError {
			t.Errorf("args %v: expected tool error, got %s", args, resultText(r))
		}
	}
}

func TestFindRelatedNotes(t *testing.T) {
	srv := testServer(t)

	var res discovery.RelatedPage
	decodeResult(t, callTool(t, srv, "find_related_notes", map[string]any{"node_id": "state"}), &res)
	related := res.Related.Items
	if len(related) != 2 {
		t.Fatalf("related = %+v", res.Related)
	}
	if related[0].Node.ID != "hooks" || related[0].Relationship != "back_link" {
		t.Errorf("first = %+v, want hooks back link", related[0])
	}
	if related[1].Node.ID != "ideas" || related[1].Relationship != "tag_similarity" {
		t.Errorf("second = %+v, want ideas tag similarity", related[1])
	}
	if res.Scanned != 3 {
		t.Errorf("scanned = %d, want 3", res.Scanned)
	}

	decodeResult(t, callTool(t, srv, "find_related_notes", map[string]any{
		"node_id": "state", "page": float64(2), "page_size": float64(1),
	}), &res)
	if res.Related.TotalPages != 2 || len(res.Related.Items) != 1 || res.Related.Items[0].Node.ID != "ideas" {
		t.Errorf("second page = %+v", res.Related)
	}

	if r := callTool(t, srv, "find_related_notes", map[string]any{"node_id": "nope"}); !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestGenerateLinkGraph(t *testing.T) {
	srv := testServer(t)

	var g discovery.GraphPage
	decodeResult(t, callTool(t, srv, "generate_link_graph", map[string]any{"node_id": "hooks", "depth": float64(3)}), &g)
	if g.Stats.TotalNodes != 2 || len(g.Edges) != 1 {
		t.Errorf("graph = %+v", g)
	}
	if len(g.Missing) != 1 || g.Missing[0] != "effects" {
		t.Errorf("missing = %v", g.Missing)
	}

	if r := callTool(t, srv, "generate_link_graph", map[string]any{"node_id": "hooks", "depth": float64(99)}); !r.IsError {
		t.Error("expected error for excessive depth")
	}
}

func TestFindOrphanedNotes(t *testing.T) {
	srv := testServer(t)

	var res discovery.OrphanPage
	decodeResult(t, callTool(t, srv, "find_orphaned_notes", map[string]any{}), &res)
	if res.Orphans.TotalItems != 1 || res.Orphans.Items[0].NodeID != "hooks" {
		t.Errorf("orphans = %+v", res.Orphans)
	}

	decodeResult(t, callTool(t, srv, "find_orphaned_notes", map[string]any{"scope": "areas"}), &res)
	if res.Orphans.TotalItems != 0 {
		t.Errorf("scoped orphans = %+v", res.Orphans)
	}
}

func TestStatsAndTagCloud(t *testing.T) {
	srv := testServer(t)

	var stats struct {
		Nodes struct {
			Total int `json:"total"`
		} `json:"nodes"`
		Containment struct {
			Categories int `json:"categories"`
		} `json:"containment"`
	}
	decodeResult(t, callTool(t, srv, "generate_kb_stats", map[string]any{}), &stats)
	if stats.Nodes.Total != 3 || stats.Containment.Categories != 1 {
		t.Errorf("stats = %+v", stats)
	}

	var cloud discovery.TagCloudPage
	decodeResult(t, callTool(t, srv, "generate_tag_cloud", map[string]any{"min_count": float64(2)}), &cloud)
	tags := cloud.Tags.Items
	if len(tags) != 2 || tags[0].Tag != "core" || tags[1].Tag != "react" {
		t.Errorf("cloud = %+v", cloud.Tags)
	}

	decodeResult(t, callTool(t, srv, "generate_tag_cloud", map[string]any{
		"min_count": float64(2), "page": float64(2), "page_size": float64(1),
	}), &cloud)
	if cloud.Tags.TotalPages != 2 || len(cloud.Tags.Items) != 1 || cloud.Tags.Items[0].Tag != "react" {
		t.Errorf("second cloud page = %+v", cloud.Tags)
	}
}

func TestSearchByDate(t *testing.T) {
	srv := testServer(t)

	var page discovery.TimelinePage
	decodeResult(t, callTool(t, srv, "search_by_date", map[string]any{"start": "2000-01-01"}), &page)
	if page.Nodes.TotalItems != 3 {
		t.Errorf("timeline = %+v", page.Nodes)
	}

	if r := callTool(t, srv, "search_by_date", map[string]any{"start": "soon"}); !r.IsError {
		t.Error("expected error for bad date")
	}
	if r := callTool(t, srv, "search_by_date", map[string]any{"field": "someday"}); !r.IsError {
		t.Error("expected error for bad field")
	}
}

func TestReadNote(t *testing.T) {
	srv := testServer(t)

	var note discovery.NoteContent
	decodeResult(t, callTool(t, srv, "read_note", map[string]any{"node_id": "ideas", "scope": "areas"}), &note)
	if note.Title != "Ideas" || !strings.Contains(note.Body, "Loose ideas") || note.Truncated {
		t.Errorf("note = %+v", note)
	}
	if len(note.ScopeRefs) != 1 || note.ScopeRefs[0] != "archive" {
		t.Errorf("scope refs = %v, want [archive]", note.ScopeRefs)
	}

	if r := callTool(t, srv, "read_note", map[string]any{"node_id": "nope"}); !r.IsError {
		t.Error("expected error for missing note")
	}
	r := callTool(t, srv, "read_note", map[string]any{"node_id": "broken"})
	if !r.IsError || !strings.Contains(resultText(r), "corrupt node") {
		t.Errorf("corrupt note result = %q", resultText(r))
	}
}

func TestGetNoteContract(t *testing.T) {
	srv := testServer(t)
	text := resultText(callTool(t, srv, "get_note_contract", nil))
	if !strings.Contains(text, "linked_notes") || !strings.Contains(text, "[[wikilinks]]") {
		t.Errorf("contract missing fields: %q", text)
	}

	contents, err := srv.readNoteFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
}
