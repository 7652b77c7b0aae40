package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"keepit/internal/apperr"
	"keepit/internal/auth"
	"keepit/internal/models"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NoteReader is the read side the tools need.
type NoteReader interface {
	List(ctx context.Context, userID int64) ([]models.Note, error)
	Get(ctx context.Context, noteID, actorID int64) (*models.Note, models.Permission, error)
}

type SharedLister interface {
	SharedNotes(ctx context.Context, userID int64) ([]models.SharedNote, error)
}

type MCPServer struct {
	notes  NoteReader
	shared SharedLister
}

func NewMCPServer(notes NoteReader, shared SharedLister) *MCPServer {
	return &MCPServer{notes: notes, shared: shared}
}

func caller(ctx context.Context) (*auth.Identity, *mcp.CallToolResult) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return nil, mcp.NewToolResultError("authentication required")
	}
	if !id.Can(models.APIReadNotes) {
		return nil, mcp.NewToolResultError("api key requires permission read_notes")
	}
	return id, nil
}

func formatNote(b *strings.Builder, n *models.Note, suffix string) {
	fmt.Fprintf(b, "#%d %s%s (updated %s)\n", n.ID, n.Title, suffix, n.UpdatedAt.Format(time.RFC3339))
}

func (s *MCPServer) listNotesHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, denied := caller(ctx)
	if denied != nil {
		return denied, nil
	}

	own, err := s.notes.List(ctx, id.UserID)
	if err != nil {
		return mcp.NewToolResultError("failed to list notes"), nil
	}
	shared, err := s.shared.SharedNotes(ctx, id.UserID)
	if err != nil {
		return mcp.NewToolResultError("failed to list shared notes"), nil
	}
	if len(own) == 0 && len(shared) == 0 {
		return mcp.NewToolResultText("No notes found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d notes:\n", len(own)+len(shared))
	for i := range own {
		formatNote(&b, &own[i], "")
	}
	for i := range shared {
		formatNote(&b, &shared[i].Note, fmt.Sprintf(" [shared by %s, %s]", shared[i].SharedBy.Email, shared[i].Permission))
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (s *MCPServer) getNoteHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, denied := caller(ctx)
	if denied != nil {
		return denied, nil
	}
	noteID, err := request.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}

	note, perm, err := s.notes.Get(ctx, int64(noteID), id.UserID)
	if errors.Is(err, apperr.ErrNoteNotFound) {
		return mcp.NewToolResultError("note not found"), nil
	}
	if err != nil {
		msg, _ := apperr.Public(err)
		return mcp.NewToolResultError(msg), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", note.Title)
	fmt.Fprintf(&b, "permission: %s\n", perm)
	if note.Content != "" {
		fmt.Fprintf(&b, "\n%s\n", note.Content)
	}
	if len(note.Checkboxes) > 0 {
		b.WriteString("\n")
		for _, cb := range note.Checkboxes {
			mark := " "
			if cb.Checked {
				mark = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s\n", mark, cb.Label)
		}
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

// Handler serves the tools over streamable HTTP. It must sit behind the
// authentication middleware; the caller's identity is read from the request.
func (s *MCPServer) Handler(version string) http.Handler {
	mcpServer := server.NewMCPServer("KeepIt", version)

	mcpServer.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List the caller's own notes and the notes shared with them."),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	), s.listNotesHandler)

	mcpServer.AddTool(mcp.NewTool("get_note",
		mcp.WithDescription("Fetch one note the caller can read, with its checkboxes."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("The note id")),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	), s.getNoteHandler)

	return server.NewStreamableHTTPServer(mcpServer,
		server.WithStateLess(true),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if id, ok := auth.FromContext(r.Context()); ok {
				return auth.WithIdentity(ctx, id)
			}
			return ctx
		}),
	)
}
