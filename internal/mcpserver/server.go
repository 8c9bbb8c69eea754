// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes xnote tools for LLM integration via stdio transport.
package mcpserver

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/xnote/internal/ai"
	"github.com/starford/xnote/internal/apperr"
	"github.com/starford/xnote/internal/index"
	"github.com/starford/xnote/internal/models"
	"github.com/starford/xnote/internal/noteservice"
)

// NoteFormatURI is the resource URI of the note format contract.
const NoteFormatURI = "xnote://note-format"

const defaultSearchLimit = 20

// Server wraps the MCP server with xnote tools.
type Server struct {
	mcp    *server.MCPServer
	notes  *noteservice.Service
	db     *index.DB
	images *ai.ImageStore
	logger *slog.Logger
}

// New creates a new MCP server with all xnote tools registered.
func New(notes *noteservice.Service, db *index.DB, images *ai.ImageStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{notes: notes, db: db, images: images, logger: logger}

	s.mcp = server.NewMCPServer(
		"xnote",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes with their last update time and size, most recent first."),
		mcp.WithString("tag", mcp.Description("Optional tag to filter by (without #)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note as Markdown. Names are matched case-insensitively."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Note name")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a Markdown note. Fails if a note with the same name exists "+
			"unless force is true. Read the format contract first via the get_note_contract "+
			"tool or the "+NoteFormatURI+" resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Note name, unique case-insensitively")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the note format contract")),
		mcp.WithBoolean("force", mcp.Description("Replace an existing note with the same name")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note names, content and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note with [[wikilinks]]."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Name of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the xnote note format contract. "+
			"Call this before creating notes to ensure correct structure."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("save_image",
		mcp.WithDescription("Store an image in the xnote images directory and return a Markdown "+
			"image reference for use in a note body."),
		mcp.WithString("data", mcp.Required(), mcp.Description("Image as a data URI (data:image/png;base64,...) or bare base64 PNG")),
		mcp.WithString("alt", mcp.Description("Alt text for the Markdown reference")),
	), s.saveImage)

	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Note Format Contract",
			mcp.WithResourceDescription("Markdown note format that notes created through MCP should follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
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

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.notes.ListAll(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var allowed map[string]bool
	if tag := strings.TrimPrefix(req.GetString("tag", ""), "#"); tag != "" {
		names, err := s.db.Tagged(tag)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		allowed = make(map[string]bool, len(names))
		for _, n := range names {
			allowed[index.Key(n)] = true
		}
	}

	items := make([]models.NoteListItem, 0, len(notes))
	for _, n := range notes {
		if allowed != nil && !allowed[index.Key(n.Name)] {
			continue
		}
		items = append(items, n.ListItem())
	}
	sortRecent(items)

	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, ok, err := s.notes.FindByName(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		msg := fmt.Sprintf("not found: %s", name)
		if similar, _ := s.notes.Similar(ctx, name, 3); len(similar) > 0 {
			names := make([]string, len(similar))
			for i, sn := range similar {
				names[i] = sn.Name
			}
			msg += " (similar: " + strings.Join(names, ", ") + ")"
		}
		return mcp.NewToolResultError(msg), nil
	}
	md, err := noteservice.Markdown(n)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(md), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	n, err := s.notes.Create(ctx, name, content, req.GetBool("force", false))
	if errors.Is(err, apperr.ErrAlreadyExists) {
		return mcp.NewToolResultError(fmt.Sprintf("note already exists: %s (pass force to replace)", name)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if _, err := index.SyncStore(s.db, s.notes.Store(), s.logger); err != nil {
		s.logger.Warn("mcp: reindex after create failed", slog.String("error", err.Error()))
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", n.Name)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", defaultSearchLimit)
	results, err := s.db.Search(query, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.db.Backlinks(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func sortRecent(items []models.NoteListItem) {
	slices.SortStableFunc(items, func(a, b models.NoteListItem) int {
		return cmp.Compare(b.UpdatedAt, a.UpdatedAt)
	})
}
