package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/jotter/internal/docservice"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/testutil"
)

func testServer(t *testing.T) (*Server, *docservice.Service) {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	svc := docservice.New(store, db, nil)
	return New(svc, models.User{Name: "alice"}), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" helper, so dispatch to the handlers.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_checklists":
		result, err = srv.listChecklists(ctx, req)
	case "read_checklist":
		result, err = srv.readChecklist(ctx, req)
	case "create_checklist":
		result, err = srv.createChecklist(ctx, req)
	case "add_checklist_item":
		result, err = srv.addChecklistItem(ctx, req)
	case "toggle_checklist_item":
		result, err = srv.toggleChecklistItem(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "list_tags":
		result, err = srv.listTags(ctx, req)
	case "get_links":
		result, err = srv.getLinks(ctx, req)
	case "search":
		result, err = srv.search(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

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

func TestChecklistTools(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_checklist", map[string]interface{}{"title": "Packing", "category": "Trips"})
	if r.IsError {
		t.Fatalf("create: %s", resultText(r))
	}
	r = callTool(t, srv, "add_checklist_item", map[string]interface{}{
		"category": "Trips", "id": "packing", "text": "Passport",
	})
	if r.IsError {
		t.Fatalf("add: %s", resultText(r))
	}
	r = callTool(t, srv, "toggle_checklist_item", map[string]interface{}{
		"category": "Trips", "id": "packing", "item": "0",
	})
	if r.IsError {
		t.Fatalf("toggle: %s", resultText(r))
	}

	r = callTool(t, srv, "read_checklist", map[string]interface{}{"category": "Trips", "id": "packing"})
	var c docservice.ChecklistDetail
	if err := json.Unmarshal([]byte(resultText(r)), &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Title != "Packing" || len(c.Items) != 1 || !c.Items[0].Completed {
		t.Errorf("checklist = %+v", c.Checklist)
	}

	r = callTool(t, srv, "list_checklists", map[string]interface{}{})
	if !strings.Contains(resultText(r), `"packing"`) {
		t.Errorf("list = %s", resultText(r))
	}
}

func TestAddItemBlankText(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_checklist", map[string]interface{}{"title": "x"})

	r := callTool(t, srv, "add_checklist_item", map[string]interface{}{"id": "x", "text": "  "})
	if !r.IsError {
		t.Error("expected error for blank text")
	}
}

func TestReadChecklistOtherUser(t *testing.T) {
	srv, svc := testServer(t)
	if _, err := svc.CreateChecklist(context.Background(), models.User{Name: "bob"}, docservice.CreateChecklistInput{Title: "Secret"}); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "read_checklist", map[string]interface{}{"owner": "bob", "id": "secret"})
	if !r.IsError || resultText(r) != "permission denied" {
		t.Errorf("result = %q, isError = %v", resultText(r), r.IsError)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"id": "nope"})
	if !r.IsError || resultText(r) != "not found" {
		t.Errorf("result = %q, isError = %v", resultText(r), r.IsError)
	}
}

func TestNotesTagsAndLinks(t *testing.T) {
	srv, svc := testServer(t)
	ctx := context.Background()
	alice := models.User{Name: "alice"}
	if _, err := svc.CreateChecklist(ctx, alice, docservice.CreateChecklistInput{Title: "Plan", Category: "Work"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateNote(ctx, alice, docservice.CreateNoteInput{
		Title: "Kickoff", Category: "Work", Content: "See [[checklist:Work/plan]] #meetings/weekly\n",
	}); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "read_note", map[string]interface{}{"category": "Work", "id": "kickoff"})
	if !strings.Contains(resultText(r), "[[checklist:Work/plan]]") {
		t.Errorf("read note = %q", resultText(r))
	}

	r = callTool(t, srv, "list_notes", map[string]interface{}{"tag": "meetings"})
	if !strings.Contains(resultText(r), `"kickoff"`) {
		t.Errorf("list notes by tag = %s", resultText(r))
	}

	r = callTool(t, srv, "list_tags", map[string]interface{}{})
	if !strings.Contains(resultText(r), `"meetings/weekly"`) {
		t.Errorf("tags = %s", resultText(r))
	}

	r = callTool(t, srv, "get_links", map[string]interface{}{"kind": "checklist", "category": "Work", "id": "plan"})
	var e models.LinkEntry
	if err := json.Unmarshal([]byte(resultText(r)), &e); err != nil {
		t.Fatalf("decode links: %v (%s)", err, resultText(r))
	}
	if len(e.IsReferencedIn.Notes) != 1 || e.IsReferencedIn.Notes[0] != "Work/kickoff" {
		t.Errorf("links = %+v", e)
	}

	r = callTool(t, srv, "get_links", map[string]interface{}{"kind": "folder", "id": "plan"})
	if !r.IsError {
		t.Error("expected error for unknown kind")
	}
}

func TestSearch(t *testing.T) {
	srv, svc := testServer(t)
	if _, err := svc.CreateNote(context.Background(), models.User{Name: "alice"}, docservice.CreateNoteInput{
		Title: "Budget", Content: "quarterly forecast numbers\n",
	}); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "search", map[string]interface{}{"query": "forecast"})
	if !strings.Contains(resultText(r), `"budget"`) {
		t.Errorf("search = %s", resultText(r))
	}

	r = callTool(t, srv, "search", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing query")
	}
}

func TestFormatResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != formatURI || !strings.Contains(tc.Text, "<!-- type:task -->") {
		t.Errorf("resource = %+v", contents[0])
	}
}
