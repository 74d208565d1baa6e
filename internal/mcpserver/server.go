// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the note controller to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notepane/internal/apperr"
	"github.com/starford/notepane/internal/models"
	"github.com/starford/notepane/internal/notes"
)

const (
	stateURI = "notepane://state"
	rulesURI = "notepane://note-rules"
)

// Server wraps the MCP server with note tools.
type Server struct {
	mcp *server.MCPServer
	ctl *notes.Controller

	// busy serialises intent tools; the stdio transport runs tool calls concurrently.
	busy     sync.Mutex
	handlers map[string]server.ToolHandlerFunc
}

const errBusy = "a save or delete is in progress"

// New creates a new MCP server with all note tools registered.
func New(ctl *notes.Controller, version string) *Server {
	s := &Server{ctl: ctl, handlers: make(map[string]server.ToolHandlerFunc)}

	s.mcp = server.NewMCPServer(
		"Notepane",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.addTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, most recently updated first, as id, updated_at and title per line."),
	), s.listNotes)

	s.addTool(mcp.NewTool("get_state",
		mcp.WithDescription("Return the full controller state as JSON: notes, selection, mode and draft."),
	), s.getState)

	s.addTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the title and content of a note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.addTool(mcp.NewTool("select_note",
		mcp.WithDescription("Select a note. Any unsaved draft is discarded."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.intent(s.selectNote))

	s.addTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note. Read the rules first via get_note_rules "+
			"or the notepane://note-rules resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note body")),
	), s.intent(s.createNote))

	s.addTool(mcp.NewTool("edit_note",
		mcp.WithDescription("Change the title and/or content of an existing note. Omitted fields are kept."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New body")),
	), s.intent(s.editNote))

	s.addTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note. The selection is cleared afterwards."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.intent(s.deleteNote))

	s.addTool(mcp.NewTool("refresh",
		mcp.WithDescription("Re-fetch the note collection from the store."),
	), s.intent(s.refresh))

	s.addTool(mcp.NewTool("get_note_rules",
		mcp.WithDescription("Returns the rules a note must satisfy to be saved."),
	), s.getNoteRules)

	s.mcp.AddResource(
		mcp.NewResource(stateURI, "Controller State",
			mcp.WithResourceDescription("Current notes, selection, mode and draft."),
			mcp.WithMIMEType("application/json"),
		),
		s.readStateResource,
	)

	s.mcp.AddResource(
		mcp.NewResource(rulesURI, "Note Rules",
			mcp.WithResourceDescription("Validation rules applied when a note is saved."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRulesResource,
	)

	return s
}

func (s *Server) addTool(tool mcp.Tool, h server.ToolHandlerFunc) {
	s.handlers[tool.Name] = h
	s.mcp.AddTool(tool, h)
}

// intent wraps tools that change controller state. They are rejected while
// the controller reports a save or delete in flight, and never overlap.
func (s *Server) intent(h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if s.ctl.Snapshot().Mutating || !s.busy.TryLock() {
			return mcp.NewToolResultError(errBusy), nil
		}
		defer s.busy.Unlock()
		return h(ctx, req)
	}
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// errorResult renders controller errors for the model, spelling out field
// problems on validation failures.
func errorResult(err error) *mcp.CallToolResult {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		parts := make([]string, 0, len(ve.Fields))
		for _, f := range []string{"title", "content"} {
			if msg, ok := ve.Fields[f]; ok {
				parts = append(parts, f+": "+msg)
			}
		}
		return mcp.NewToolResultError("invalid note: " + strings.Join(parts, "; "))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.ctl.Snapshot()
	if len(st.Notes) == 0 {
		return mcp.NewToolResultText("no notes"), nil
	}
	lines := make([]string, 0, len(st.Notes))
	for _, n := range st.Notes {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", n.ID, n.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"), n.DisplayTitle()))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.ctl.Snapshot(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, ok := s.ctl.Snapshot().Find(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText("# " + n.DisplayTitle() + "\n\n" + n.Content), nil
}

func (s *Server) selectNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, ok := s.ctl.Snapshot().Find(id); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	s.ctl.Select(id)
	return mcp.NewToolResultText(fmt.Sprintf("selected: %s", id)), nil
}

// createNote and editNote drive the controller through a full draft cycle.
// A failed save cancels the draft so the next tool call starts from idle.
func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.ctl.BeginCreate()
	if err := s.ctl.UpdateDraft(models.DraftPatch{Title: &title, Content: &content}); err != nil {
		s.ctl.CancelEdit()
		return errorResult(err), nil
	}
	saved, err := s.ctl.Save(ctx)
	if err != nil {
		s.ctl.CancelEdit()
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", saved.ID)), nil
}

func (s *Server) editNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var patch models.DraftPatch
	args := req.GetArguments()
	if v, ok := args["title"].(string); ok {
		patch.Title = &v
	}
	if v, ok := args["content"].(string); ok {
		patch.Content = &v
	}
	if patch.Title == nil && patch.Content == nil {
		return mcp.NewToolResultError("nothing to change: pass title and/or content"), nil
	}

	if _, ok := s.ctl.Snapshot().Find(id); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	s.ctl.Select(id)
	if err := s.ctl.BeginEdit(); err != nil {
		return errorResult(err), nil
	}
	if err := s.ctl.UpdateDraft(patch); err != nil {
		s.ctl.CancelEdit()
		return errorResult(err), nil
	}
	saved, err := s.ctl.Save(ctx)
	if err != nil {
		s.ctl.CancelEdit()
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s", saved.ID)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.ctl.Delete(ctx, id); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) refresh(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ctl.Refresh(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st := s.ctl.Snapshot()
	if st.LastError != "" {
		return mcp.NewToolResultError("refresh failed, showing last known notes: " + st.LastError), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d notes", len(st.Notes))), nil
}

func (s *Server) getNoteRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteRules), nil
}

func (s *Server) readStateResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.Marshal(s.ctl.Snapshot())
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      stateURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}

func (s *Server) readRulesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      rulesURI,
			MIMEType: "text/markdown",
			Text:     NoteRules,
		},
	}, nil
}
