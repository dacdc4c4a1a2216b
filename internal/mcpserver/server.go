// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Ansuz discovery tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/discovery"
	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/search"
)

// Version is reported to MCP clients.
var Version = "1.0.0"

const contractURI = "ansuz://note-format"

const instructions = "Ansuz searches and traverses a Markdown knowledge base. " +
	"Every tool takes an optional scope (a folder path, empty for the whole vault). " +
	"Responses are paged to fit a token budget: when has_next is true, call again with page+1. " +
	"Previews are cut short; call read_note for the full body."

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp *server.MCPServer
	svc *discovery.Service
}

var stringItems = map[string]any{"type": "string"}

func scopeArg() mcp.ToolOption {
	return mcp.WithString("scope", mcp.Description("Folder path to search under (empty for the whole vault)"))
}

func pageArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("page", mcp.Description("Page number, starting at 1")),
		mcp.WithNumber("page_size", mcp.Description("Fixed page size; omit for pages sized to the token budget")),
	}
}

func tool(name, description string, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append([]mcp.ToolOption{mcp.WithDescription(description)}, opts...)...)
}

// New creates a new MCP server with all Ansuz tools registered.
func New(svc *discovery.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	s.mcp.AddTool(tool("search_notes",
		"Ranked text search over note titles and bodies. Title matches weigh more than body matches.",
		append([]mcp.ToolOption{
			mcp.WithString("query", mcp.Required(), mcp.Description("Search text, or a regular expression when pattern is true")),
			scopeArg(),
			mcp.WithBoolean("search_title", mcp.Description("Match against titles (default true)")),
			mcp.WithBoolean("search_body", mcp.Description("Match against bodies (default true)")),
			mcp.WithArray("tags", mcp.Items(stringItems), mcp.Description("Only notes carrying at least one of these tags")),
			mcp.WithBoolean("case_sensitive", mcp.Description("Case-sensitive matching (default false)")),
			mcp.WithBoolean("pattern", mcp.Description("Treat query as a regular expression (default false)")),
			mcp.WithNumber("max_results", mcp.Description("Maximum hits before paging (default 50)")),
		}, pageArgs()...)...,
	), s.searchNotes)

	s.mcp.AddTool(tool("find_related_notes",
		"Find notes related to a note through links, back links or shared tags. Linked notes always rank first.",
		append([]mcp.ToolOption{
			mcp.WithString("node_id", mcp.Required(), mcp.Description("Note ID (filename without .md)")),
			scopeArg(),
			mcp.WithNumber("max_results", mcp.Description("Maximum related notes (default 10)")),
			mcp.WithBoolean("include_linked", mcp.Description("Include linked and back-linked notes (default true)")),
			mcp.WithBoolean("include_similar", mcp.Description("Include notes sharing tags (default true)")),
		}, pageArgs()...)...,
	), s.findRelatedNotes)

	s.mcp.AddTool(tool("generate_link_graph",
		"Build the graph of notes reachable from a note by following links up to a depth.",
		append([]mcp.ToolOption{
			mcp.WithString("node_id", mcp.Required(), mcp.Description("Note ID at the centre of the graph")),
			scopeArg(),
			mcp.WithNumber("depth", mcp.Description("Link hops to follow (default 2)")),
			mcp.WithBoolean("include_backlinks", mcp.Description("Add notes that link to the centre (default false)")),
		}, pageArgs()...)...,
	), s.generateLinkGraph)

	s.mcp.AddTool(tool("find_orphaned_notes",
		"List notes containing links to notes that do not exist.",
		append([]mcp.ToolOption{scopeArg()}, pageArgs()...)...,
	), s.findOrphanedNotes)

	s.mcp.AddTool(tool("generate_kb_stats",
		"Summarise the knowledge base: note, link and tag counts and the folder hierarchy.",
		scopeArg(),
	), s.generateKBStats)

	s.mcp.AddTool(tool("generate_tag_cloud",
		"Count how many notes carry each tag, most used first.",
		append([]mcp.ToolOption{
			scopeArg(),
			mcp.WithNumber("min_count", mcp.Description("Only tags used at least this often (default 1)")),
		}, pageArgs()...)...,
	), s.generateTagCloud)

	s.mcp.AddTool(tool("search_by_date",
		"List notes created or modified in a date range, newest first.",
		append([]mcp.ToolOption{
			scopeArg(),
			mcp.WithString("field", mcp.Enum(string(search.FieldModified), string(search.FieldCreated), string(search.FieldEither)),
				mcp.Description("Timestamp to filter on (default modified)")),
			mcp.WithString("start", mcp.Description("Range start, RFC 3339 or YYYY-MM-DD")),
			mcp.WithString("end", mcp.Description("Range end, inclusive, RFC 3339 or YYYY-MM-DD")),
			mcp.WithNumber("max_results", mcp.Description("Maximum notes before paging (default all)")),
		}, pageArgs()...)...,
	), s.searchByDate)

	s.mcp.AddTool(tool("read_note",
		"Read the full body of a note. Use it when a preview was truncated.",
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Note ID (filename without .md)")),
		scopeArg(),
	), s.readNote)

	s.mcp.AddTool(tool("get_note_contract",
		"Returns the Markdown note format Ansuz reads: frontmatter fields, link syntax and skip rules.",
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Note Format Contract",
			mcp.WithResourceDescription("Markdown note format that Ansuz parses."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio serves MCP on stdin/stdout until ctx is done or stdin closes.
// Transport errors go to logger.
func (s *Server) ServeStdio(ctx context.Context, logger *slog.Logger) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func pageRequest(req mcp.CallToolRequest) discovery.PageRequest {
	return discovery.PageRequest{
		Page:     req.GetInt("page", 1),
		PageSize: req.GetInt("page_size", 0),
	}
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.Search(ctx, discovery.SearchRequest{
		Scope: req.GetString("scope", ""),
		Query: query,
		Options: search.Options{
			SearchTitle:   req.GetBool("search_title", true),
			SearchBody:    req.GetBool("search_body", true),
			Tags:          req.GetStringSlice("tags", nil),
			CaseSensitive: req.GetBool("case_sensitive", false),
			Pattern:       req.GetBool("pattern", false),
			MaxResults:    req.GetInt("max_results", 0),
		},
		PageRequest: pageRequest(req),
	}))
}

func (s *Server) findRelatedNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.RelatedNodes(ctx, req.GetString("scope", ""), id, graph.RelatedOptions{
		MaxResults:     req.GetInt("max_results", 0),
		IncludeLinked:  req.GetBool("include_linked", true),
		IncludeSimilar: req.GetBool("include_similar", true),
	}, pageRequest(req)))
}

func (s *Server) generateLinkGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.LinkGraph(ctx, discovery.GraphRequest{
		Scope:            req.GetString("scope", ""),
		ID:               id,
		Depth:            req.GetInt("depth", 2),
		IncludeBacklinks: req.GetBool("include_backlinks", false),
		PageRequest:      pageRequest(req),
	}))
}

func (s *Server) findOrphanedNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.OrphanedNodes(ctx, req.GetString("scope", ""), pageRequest(req)))
}

func (s *Server) generateKBStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Stats(ctx, req.GetString("scope", "")))
}

func (s *Server) generateTagCloud(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.TagCloud(ctx, req.GetString("scope", ""), req.GetInt("min_count", 1), pageRequest(req)))
}

func (s *Server) searchByDate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, err := search.ParseDate(req.GetString("start", ""), false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := search.ParseDate(req.GetString("end", ""), true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.SearchByDate(ctx, req.GetString("scope", ""), search.DateRange{
		Field:      search.DateField(req.GetString("field", "")),
		Start:      start,
		End:        end,
		MaxResults: req.GetInt("max_results", 0),
	}, pageRequest(req)))
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.ReadNote(ctx, req.GetString("scope", ""), id))
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
