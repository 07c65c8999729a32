// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Jotter tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/docservice"
	"github.com/starford/jotter/internal/models"
)

const formatURI = "jotter://checklist-format"

// Server wraps the MCP server with Jotter tools. Every call acts as one
// configured user and goes through the same permission checks as the API.
type Server struct {
	mcp  *server.MCPServer
	svc  *docservice.Service
	user models.User
}

// New creates a new MCP server with all Jotter tools registered.
func New(svc *docservice.Service, user models.User) *Server {
	s := &Server{svc: svc, user: user}

	s.mcp = server.NewMCPServer(
		"Jotter",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_checklists",
		mcp.WithDescription("List checklists owned by or shared with the user."),
		mcp.WithString("category", mcp.Description("Optional category filter (e.g. Work/Q3)")),
	), s.listChecklists)

	s.mcp.AddTool(mcp.NewTool("read_checklist",
		mcp.WithDescription("Read a checklist with its item tree. Items are addressed by dotted index paths."),
		mcp.WithString("owner", mcp.Description("Owner of the checklist (defaults to the current user)")),
		mcp.WithString("category", mcp.Description("Category (defaults to Uncategorized)")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Checklist id")),
	), s.readChecklist)

	s.mcp.AddTool(mcp.NewTool("create_checklist",
		mcp.WithDescription("Create a new checklist owned by the current user."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Checklist title")),
		mcp.WithString("category", mcp.Description("Category, slash separated")),
		mcp.WithString("type", mcp.Description("simple or task"), mcp.Enum("simple", "task")),
	), s.createChecklist)

	s.mcp.AddTool(mcp.NewTool("add_checklist_item",
		mcp.WithDescription("Append an item to a checklist, optionally under a parent item. "+
			"Read the format via the jotter://checklist-format resource first."),
		mcp.WithString("owner", mcp.Description("Owner of the checklist (defaults to the current user)")),
		mcp.WithString("category", mcp.Description("Category (defaults to Uncategorized)")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Checklist id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Item text")),
		mcp.WithString("parent", mcp.Description("Dotted path of the parent item, empty for top level")),
	), s.addChecklistItem)

	s.mcp.AddTool(mcp.NewTool("toggle_checklist_item",
		mcp.WithDescription("Flip the completion of an item and its children."),
		mcp.WithString("owner", mcp.Description("Owner of the checklist (defaults to the current user)")),
		mcp.WithString("category", mcp.Description("Category (defaults to Uncategorized)")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Checklist id")),
		mcp.WithString("item", mcp.Required(), mcp.Description("Dotted item path, e.g. 0.1")),
	), s.toggleChecklistItem)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes owned by or shared with the user, optionally filtered by tag."),
		mcp.WithString("category", mcp.Description("Optional category filter")),
		mcp.WithString("tag", mcp.Description("Optional tag filter; descendant tags match too")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note."),
		mcp.WithString("owner", mcp.Description("Owner of the note (defaults to the current user)")),
		mcp.WithString("category", mcp.Description("Category (defaults to Uncategorized)")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("Return the user's hierarchical tag tree with note counts."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("get_links",
		mcp.WithDescription("Return the outgoing and incoming mentions of one item."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("note or checklist"), mcp.Enum("note", "checklist")),
		mcp.WithString("owner", mcp.Description("Owner (defaults to the current user)")),
		mcp.WithString("category", mcp.Description("Category (defaults to Uncategorized)")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
	), s.getLinks)

	s.mcp.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Full-text search through readable notes and checklists."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.search)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Checklist Format",
			mcp.WithResourceDescription("On-disk Markdown format of checklists and item path addressing."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ref reads the owner/category/id arguments shared by most tools.
func (s *Server) ref(req mcp.CallToolRequest) (docservice.Ref, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return docservice.Ref{}, err
	}
	return docservice.Ref{
		Owner:    req.GetString("owner", s.user.Name),
		Category: req.GetString("category", ""),
		ID:       id,
	}, nil
}

// result renders v as indented JSON, or err as a tool error.
func result(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(toolError(err)), nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func toolError(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return "not found"
	case errors.Is(err, apperr.ErrForbidden):
		return "permission denied"
	}
	return err.Error()
}

func (s *Server) listChecklists(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(s.svc.ListChecklists(ctx, s.user, docservice.ListOptions{
		Category:      req.GetString("category", ""),
		IncludeShared: true,
	}))
}

func (s *Server) readChecklist(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := s.ref(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return result(s.svc.GetChecklist(ctx, s.user, ref))
}

func (s *Server) createChecklist(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return result(s.svc.CreateChecklist(ctx, s.user, docservice.CreateChecklistInput{
		Title:    title,
		Category: req.GetString("category", ""),
		Type:     models.ChecklistType(req.GetString("type", string(models.ChecklistSimple))),
	}))
}

func (s *Server) addChecklistItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := s.ref(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text must not be blank"), nil
	}
	return result(s.svc.AddItem(ctx, s.user, ref, req.GetString("parent", ""), docservice.ItemInput{Text: text}))
}

func (s *Server) toggleChecklistItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := s.ref(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := req.RequireString("item")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return result(s.svc.ToggleItem(ctx, s.user, ref, item))
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(s.svc.ListNotes(ctx, s.user, docservice.NoteListOptions{
		ListOptions: docservice.ListOptions{
			Category:      req.GetString("category", ""),
			IncludeShared: true,
		},
		Tag: req.GetString("tag", ""),
	}))
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := s.ref(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, s.user, ref)
	if err != nil {
		return mcp.NewToolResultError(toolError(err)), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) listTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(s.svc.TagTree(ctx, s.user))
}

func (s *Server) getLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	k := models.ItemKind(kind)
	if !k.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown kind: %s", kind)), nil
	}
	ref, err := s.ref(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return result(s.svc.ItemLinks(ctx, s.user, k, ref))
}

func (s *Server) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return result(s.svc.Search(ctx, s.user, query, 20))
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     ChecklistFormatContract,
		},
	}, nil
}
