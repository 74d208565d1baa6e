package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/notepane/internal/gateway"
	"github.com/starford/notepane/internal/gateway/sqlite"
	"github.com/starford/notepane/internal/models"
	"github.com/starford/notepane/internal/notes"
	"github.com/starford/notepane/internal/testutil"
)

func testServer(t *testing.T) (*Server, *notes.Controller, *sqlite.DB) {
	t.Helper()
	db := testutil.SQLiteGateway(t)
	ctl := testutil.Controller(t, db)
	return New(ctl, "test"), ctl, db
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// Handlers are called through the same wrappers the MCP server registered.
	h, ok := srv.handlers[name]
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

func TestCreateAndReadNote(t *testing.T) {
	srv, ctl, _ := testServer(t)

	r := callTool(t, srv, "create_note", map[string]interface{}{
		"title":   "Test",
		"content": "Hello",
	})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	id := strings.TrimPrefix(resultText(r), "created: ")

	st := ctl.Snapshot()
	if st.SelectedID != id || st.Mode != models.ModeIdle {
		t.Errorf("state = %+v", st)
	}

	r = callTool(t, srv, "read_note", map[string]interface{}{"id": id})
	if text := resultText(r); text != "# Test\n\nHello" {
		t.Errorf("read result = %q", text)
	}
}

func TestCreateNoteValidation(t *testing.T) {
	srv, ctl, db := testServer(t)

	r := callTool(t, srv, "create_note", map[string]interface{}{
		"title":   " ",
		"content": "body",
	})
	if !r.IsError || !strings.Contains(resultText(r), "title") {
		t.Errorf("result = %q, want title validation error", resultText(r))
	}
	if ctl.Snapshot().Mode != models.ModeIdle {
		t.Error("failed create should leave the controller idle")
	}
	list, _ := db.List(context.Background())
	if len(list) != 0 {
		t.Error("invalid note reached the store")
	}
}

func TestEditNote(t *testing.T) {
	srv, _, db := testServer(t)
	testutil.Seed(t, db, "orig")
	callTool(t, srv, "refresh", nil)
	list, _ := db.List(context.Background())
	id := list[0].ID

	r := callTool(t, srv, "edit_note", map[string]interface{}{"id": id, "content": "new body"})
	if r.IsError {
		t.Fatalf("edit failed: %s", resultText(r))
	}
	list, _ = db.List(context.Background())
	if list[0].Title != "orig" || list[0].Content != "new body" {
		t.Errorf("stored = %+v", list[0])
	}

	if r := callTool(t, srv, "edit_note", map[string]interface{}{"id": id}); !r.IsError {
		t.Error("edit without fields should fail")
	}
	if r := callTool(t, srv, "edit_note", map[string]interface{}{"id": "ghost", "title": "x"}); !r.IsError {
		t.Error("edit of unknown id should fail")
	}
}

func TestListAndDelete(t *testing.T) {
	srv, ctl, db := testServer(t)
	if text := resultText(callTool(t, srv, "list_notes", nil)); text != "no notes" {
		t.Errorf("empty list = %q", text)
	}

	testutil.Seed(t, db, "a", "b")
	callTool(t, srv, "refresh", nil)
	text := resultText(callTool(t, srv, "list_notes", nil))
	lines := strings.Split(text, "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], "\tb") {
		t.Fatalf("list = %q", text)
	}

	id := strings.SplitN(lines[0], "\t", 2)[0]
	callTool(t, srv, "select_note", map[string]interface{}{"id": id})
	if r := callTool(t, srv, "delete_note", map[string]interface{}{"id": id}); r.IsError {
		t.Fatalf("delete failed: %s", resultText(r))
	}
	st := ctl.Snapshot()
	if len(st.Notes) != 1 || st.SelectedID != "" {
		t.Errorf("state = %+v", st)
	}

	if r := callTool(t, srv, "delete_note", map[string]interface{}{"id": id}); !r.IsError {
		t.Error("second delete should report the gateway error")
	}
}

func TestSelectMissing(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "select_note", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestGetStateAndResource(t *testing.T) {
	srv, _, db := testServer(t)
	testutil.Seed(t, db, "x")
	callTool(t, srv, "refresh", nil)

	var st models.State
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "get_state", nil))), &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if len(st.Notes) != 1 {
		t.Errorf("notes = %d", len(st.Notes))
	}

	contents, err := srv.readStateResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != stateURI || !strings.Contains(tc.Text, `"title":"x"`) {
		t.Errorf("resource = %+v", contents[0])
	}
}

func TestNoteRules(t *testing.T) {
	srv, _, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_note_rules", nil))
	if !strings.Contains(text, "at most 100 characters") || !strings.Contains(text, "at most 2000 characters") {
		t.Errorf("rules = %q", text)
	}
}

// blockingGateway holds Insert until release is closed.
type blockingGateway struct {
	gateway.Gateway
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGateway) Insert(ctx context.Context, title, content string) (models.Note, error) {
	close(g.entered)
	<-g.release
	return g.Gateway.Insert(ctx, title, content)
}

func TestIntentToolsRejectedWhileSaving(t *testing.T) {
	db := testutil.SQLiteGateway(t)
	testutil.Seed(t, db, "existing")
	gw := &blockingGateway{Gateway: db, entered: make(chan struct{}), release: make(chan struct{})}
	ctl := testutil.Controller(t, gw)
	srv := New(ctl, "test")
	existing := ctl.Snapshot().Notes[0].ID

	created := make(chan *mcp.CallToolResult, 1)
	go func() {
		req := mcp.CallToolRequest{}
		req.Params.Name = "create_note"
		req.Params.Arguments = map[string]interface{}{"title": "new", "content": "body"}
		r, _ := srv.handlers["create_note"](context.Background(), req)
		created <- r
	}()

	select {
	case <-gw.entered:
	case <-time.After(time.Second):
		t.Fatal("save never reached the gateway")
	}

	for _, tc := range []struct {
		tool string
		args map[string]interface{}
	}{
		{"delete_note", map[string]interface{}{"id": existing}},
		{"create_note", map[string]interface{}{"title": "other", "content": "x"}},
		{"edit_note", map[string]interface{}{"id": existing, "title": "x"}},
		{"select_note", map[string]interface{}{"id": existing}},
		{"refresh", nil},
	} {
		r := callTool(t, srv, tc.tool, tc.args)
		if !r.IsError || resultText(r) != errBusy {
			t.Errorf("%s during save = %q, want busy error", tc.tool, resultText(r))
		}
	}

	st := ctl.Snapshot()
	if !st.Mutating || st.Mode != models.ModeCreating || st.Draft == nil || st.Draft.Title != "new" {
		t.Errorf("in-flight save disturbed: %+v", st)
	}
	if r := callTool(t, srv, "list_notes", nil); r.IsError {
		t.Errorf("read-only tool rejected during save: %q", resultText(r))
	}

	close(gw.release)
	if r := <-created; r == nil || r.IsError {
		t.Fatalf("create failed after release")
	}
	st = ctl.Snapshot()
	if st.Mutating || len(st.Notes) != 2 {
		t.Errorf("state after save = %+v", st)
	}
	if r := callTool(t, srv, "delete_note", map[string]interface{}{"id": existing}); r.IsError {
		t.Errorf("delete after save = %q", resultText(r))
	}
}
