// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Jotter note tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/imagecodec"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/noteservice"
	"github.com/starford/jotter/internal/query"
)

const paletteURI = "jotter://palette"

// Server wraps the MCP server with Jotter tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *noteservice.Service
	palette models.Palette
	images  imagecodec.Limits
	fetch   func(ctx context.Context, rawURL string) ([]byte, error)
}

// New creates a new MCP server with all Jotter tools registered. Images
// attached through attach_image are normalized within images.
func New(svc *noteservice.Service, palette models.Palette, images imagecodec.Limits) *Server {
	s := &Server{svc: svc, palette: palette, images: images, fetch: fetchImage}

	s.mcp = server.NewMCPServer(
		"Jotter",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, optionally filtered and sorted. Returns a JSON array."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query", mcp.Description("Case-insensitive text to find in title or description")),
		mcp.WithString("filter", mcp.Description("Category filter"),
			mcp.Enum("all", "today", "this_week", "this_month", "by_color")),
		mcp.WithString("color", mcp.Description("ARGB hex color such as #FFB2EBF2; implies by_color when filter is empty")),
		mcp.WithString("sort", mcp.Description("Sort order"),
			mcp.Enum("date_desc", "date_asc", "title_asc", "title_desc", "color")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_note",
		mcp.WithDescription("Read a single note by id."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
	), s.getNote)

	s.mcp.AddTool(mcp.NewTool("add_note",
		mcp.WithDescription("Create a note, or replace the note with the given id. "+
			"Title and description must not be blank. Read "+paletteURI+" or call "+
			"get_palette for the colors the app offers."),
		mcp.WithNumber("id", mcp.Description("Id of the note to replace; omit to create")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Note body")),
		mcp.WithString("color", mcp.Description("ARGB hex color; a random palette color when omitted")),
		mcp.WithNumber("timestamp", mcp.Description("Epoch milliseconds; now when omitted")),
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note by id. Deleting a missing note succeeds."),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("search_titles",
		mcp.WithDescription("Case-sensitive substring search over note titles."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query", mcp.Required(), mcp.Description("Title substring")),
	), s.searchTitles)

	s.mcp.AddTool(mcp.NewTool("get_palette",
		mcp.WithDescription("Return the note color palette as ARGB hex strings."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.getPalette)

	s.mcp.AddTool(mcp.NewTool("attach_image",
		mcp.WithDescription("Attach an image to a note from a base64 data URI or an http(s) URL. "+
			"png, jpeg, gif and webp are accepted; the image is stored as PNG."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("url", mcp.Required(), mcp.Description("data:image/...;base64,... or http(s) URL")),
	), s.attachImage)

	s.mcp.AddResource(
		mcp.NewResource(paletteURI, "Note Color Palette",
			mcp.WithResourceDescription("Colors offered for new notes as a JSON array of ARGB hex strings."),
			mcp.WithMIMEType("application/json"),
		),
		s.readPaletteResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// noteView is the JSON shape of a note in tool results.
type noteView struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Timestamp   int64  `json:"timestamp"`
	Color       string `json:"color"`
	HasImage    bool   `json:"has_image"`
}

func toView(n models.Note) noteView {
	return noteView{
		ID:          n.IDValue(),
		Title:       n.Title,
		Description: n.Description,
		Timestamp:   n.Timestamp,
		Color:       models.FormatColor(n.Color),
		HasImage:    len(n.Image) > 0,
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// errorResult hides storage details behind a generic message.
func errorResult(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrValidation) || errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError("something went wrong")
}

func requireID(req mcp.CallToolRequest) (int64, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid note id %d", id)
	}
	return int64(id), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := query.Options{SearchQuery: req.GetString("query", "")}

	var err error
	filter := req.GetString("filter", "")
	if opts.DateFilter, err = query.ParseDateFilter(filter); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if opts.SortOrder, err = query.ParseSortOrder(req.GetString("sort", "")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if raw := req.GetString("color", ""); raw != "" {
		c, err := models.ParseColor(raw)
		if err != nil {
			return mcp.NewToolResultError("invalid color: " + raw), nil
		}
		opts.SelectedColor = &c
		if filter == "" {
			opts.DateFilter = query.ByColor
		}
	}

	notes, err := s.svc.Query(ctx, opts)
	if err != nil {
		return errorResult(err), nil
	}
	views := make([]noteView, len(notes))
	for i, n := range notes {
		views[i] = toView(n)
	}
	return jsonResult(views), nil
}

func (s *Server) getNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNoteByID(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	if note == nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %d", id)), nil
	}
	return jsonResult(toView(*note)), nil
}

func (s *Server) addNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	desc, err := req.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	note := &models.Note{
		Title:       title,
		Description: desc,
		Timestamp:   int64(req.GetFloat("timestamp", float64(models.NowMillis()))),
		Color:       s.palette.Random(),
	}
	if raw := req.GetString("color", ""); raw != "" {
		c, err := models.ParseColor(raw)
		if err != nil {
			return mcp.NewToolResultError("invalid color: " + raw), nil
		}
		note.Color = c
	}
	if _, ok := req.GetArguments()["id"]; ok {
		id, err := requireID(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		// Replacing keeps the stored image.
		existing, err := s.svc.GetNoteByID(ctx, id)
		if err != nil {
			return errorResult(err), nil
		}
		if existing != nil {
			note.Image = existing.Image
		}
		note.ID = &id
	}

	if err := s.svc.AddNote(ctx, note); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(toView(*note)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteNote(ctx, models.Note{ID: &id}); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %d", id)), nil
}

func (s *Server) searchTitles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.svc.SearchTitles(ctx, q)
	if err != nil {
		return errorResult(err), nil
	}
	views := make([]noteView, len(notes))
	for i, n := range notes {
		views[i] = toView(n)
	}
	return jsonResult(views), nil
}

func (s *Server) getPalette(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.palette.Hex()), nil
}

func (s *Server) readPaletteResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.Marshal(s.palette.Hex())
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      paletteURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}
