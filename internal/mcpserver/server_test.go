package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/jotter/internal/imagecodec"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/noteservice"
	"github.com/starford/jotter/internal/testutil"
)

var testPalette = models.Palette{0xFFFFF9C4, 0xFFB2EBF2}

func testServer(t *testing.T) (*Server, *noteservice.Service) {
	t.Helper()
	svc := noteservice.NewService(testutil.TestStore(t))
	return New(svc, testPalette, imagecodec.Limits{MaxDimension: 16}), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process "call tool" helper, so handlers are invoked
	// directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "get_note":
		result, err = srv.getNote(ctx, req)
	case "add_note":
		result, err = srv.addNote(ctx, req)
	case "delete_note":
		result, err = srv.deleteNote(ctx, req)
	case "search_titles":
		result, err = srv.searchTitles(ctx, req)
	case "get_palette":
		result, err = srv.getPalette(ctx, req)
	case "attach_image":
		result, err = srv.attachImage(ctx, req)
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

func resultJSON[T any](t *testing.T, r *mcp.CallToolResult) T {
	t.Helper()
	if r.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(r))
	}
	var v T
	if err := json.Unmarshal([]byte(resultText(r)), &v); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	return v
}

func TestAddAndGetNote(t *testing.T) {
	srv, _ := testServer(t)

	added := resultJSON[noteView](t, callTool(t, srv, "add_note", map[string]interface{}{
		"title": "Trip", "description": "pack", "color": "#FFB2EBF2", "timestamp": float64(1000),
	}))
	if added.ID == 0 || added.Color != "#FFB2EBF2" || added.Timestamp != 1000 {
		t.Fatalf("added = %+v", added)
	}

	got := resultJSON[noteView](t, callTool(t, srv, "get_note", map[string]interface{}{"id": float64(added.ID)}))
	if got != added {
		t.Errorf("get = %+v, want %+v", got, added)
	}
}

func TestAddNote_DefaultsAndReplace(t *testing.T) {
	srv, svc := testServer(t)

	added := resultJSON[noteView](t, callTool(t, srv, "add_note", map[string]interface{}{
		"title": "a", "description": "b",
	}))
	c, err := models.ParseColor(added.Color)
	if err != nil || !testPalette.Contains(c) {
		t.Errorf("default color %q not in palette", added.Color)
	}
	if added.Timestamp == 0 {
		t.Error("expected default timestamp")
	}

	replaced := resultJSON[noteView](t, callTool(t, srv, "add_note", map[string]interface{}{
		"id": float64(added.ID), "title": "a2", "description": "b2",
	}))
	if replaced.ID != added.ID || replaced.Title != "a2" {
		t.Errorf("replaced = %+v", replaced)
	}

	all, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("notes = %d, want 1", len(all))
	}
}

func TestAddNote_Validation(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "add_note", map[string]interface{}{"title": " ", "description": "d"})
	if !r.IsError || resultText(r) != noteservice.MsgTitleEmpty {
		t.Errorf("blank title = %q (error %v)", resultText(r), r.IsError)
	}

	r = callTool(t, srv, "add_note", map[string]interface{}{"title": "t"})
	if !r.IsError {
		t.Error("expected error for missing description")
	}

	r = callTool(t, srv, "add_note", map[string]interface{}{"title": "t", "description": "d", "color": "nope"})
	if !r.IsError {
		t.Error("expected error for bad color")
	}
}

func TestListNotes(t *testing.T) {
	srv, _ := testServer(t)
	for i, title := range []string{"Banana", "apple", "Cherry"} {
		callTool(t, srv, "add_note", map[string]interface{}{
			"title": title, "description": "d", "timestamp": float64(i + 1), "color": []string{"#FFFFF9C4", "#FFB2EBF2", "#FFB2EBF2"}[i],
		})
	}

	titles := func(args map[string]interface{}) string {
		t.Helper()
		var out []string
		for _, n := range resultJSON[[]noteView](t, callTool(t, srv, "list_notes", args)) {
			out = append(out, n.Title)
		}
		return strings.Join(out, ",")
	}

	if got := titles(map[string]interface{}{}); got != "Cherry,apple,Banana" {
		t.Errorf("default = %s", got)
	}
	if got := titles(map[string]interface{}{"sort": "title_asc"}); got != "apple,Banana,Cherry" {
		t.Errorf("title_asc = %s", got)
	}
	if got := titles(map[string]interface{}{"query": "AN"}); got != "Banana" {
		t.Errorf("query = %s", got)
	}
	if got := titles(map[string]interface{}{"color": "#FFB2EBF2", "sort": "date_asc"}); got != "apple,Cherry" {
		t.Errorf("color = %s", got)
	}

	if r := callTool(t, srv, "list_notes", map[string]interface{}{"sort": "sideways"}); !r.IsError {
		t.Error("expected error for unknown sort")
	}
}

func TestGetNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_note", map[string]interface{}{"id": float64(42)})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
	r = callTool(t, srv, "get_note", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing id")
	}
}

func TestDeleteNote(t *testing.T) {
	srv, _ := testServer(t)
	added := resultJSON[noteView](t, callTool(t, srv, "add_note", map[string]interface{}{"title": "x", "description": "y"}))

	for i := 0; i < 2; i++ {
		r := callTool(t, srv, "delete_note", map[string]interface{}{"id": float64(added.ID)})
		if r.IsError {
			t.Fatalf("delete #%d failed: %s", i+1, resultText(r))
		}
	}
	if r := callTool(t, srv, "get_note", map[string]interface{}{"id": float64(added.ID)}); !r.IsError {
		t.Error("note still present after delete")
	}
}

func TestSearchTitles(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "add_note", map[string]interface{}{"title": "Grocery list", "description": "d"})
	callTool(t, srv, "add_note", map[string]interface{}{"title": "grocery run", "description": "d"})

	got := resultJSON[[]noteView](t, callTool(t, srv, "search_titles", map[string]interface{}{"query": "Grocery"}))
	if len(got) != 1 || got[0].Title != "Grocery list" {
		t.Errorf("search = %+v", got)
	}
}

func TestPaletteToolAndResource(t *testing.T) {
	srv, _ := testServer(t)

	got := resultJSON[[]string](t, callTool(t, srv, "get_palette", nil))
	if strings.Join(got, ",") != "#FFFFF9C4,#FFB2EBF2" {
		t.Errorf("palette = %v", got)
	}

	contents, err := srv.readPaletteResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != paletteURI || !strings.Contains(tc.Text, "#FFB2EBF2") {
		t.Errorf("resource = %+v", contents[0])
	}
}

func dataURI(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestAttachImage(t *testing.T) {
	srv, svc := testServer(t)
	added := resultJSON[noteView](t, callTool(t, srv, "add_note", map[string]interface{}{"title": "p", "description": "d"}))

	r := callTool(t, srv, "attach_image", map[string]interface{}{"id": float64(added.ID), "url": dataURI(t, 64, 32)})
	if r.IsError {
		t.Fatalf("attach failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "16x8") {
		t.Errorf("result = %q, want scaled to 16x8", resultText(r))
	}

	stored, err := svc.GetNoteByID(context.Background(), added.ID)
	if err != nil || stored == nil {
		t.Fatalf("get: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(stored.Image))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 16 {
		t.Errorf("stored width = %d, want 16", img.Bounds().Dx())
	}

	// Replacing the note through add_note keeps its image.
	replaced := resultJSON[noteView](t, callTool(t, srv, "add_note", map[string]interface{}{
		"id": float64(added.ID), "title": "p2", "description": "d",
	}))
	if !replaced.HasImage {
		t.Error("replace dropped the image")
	}
}

func TestAttachImage_Errors(t *testing.T) {
	srv, _ := testServer(t)
	added := resultJSON[noteView](t, callTool(t, srv, "add_note", map[string]interface{}{"title": "p", "description": "d"}))
	id := float64(added.ID)

	srv.fetch = func(context.Context, string) ([]byte, error) { return nil, errors.New("offline") }
	if r := callTool(t, srv, "attach_image", map[string]interface{}{"id": id, "url": "https://example.com/a.png"}); !r.IsError || resultText(r) != "offline" {
		t.Errorf("fetch failure = %q", resultText(r))
	}

	srv.fetch = fetchImage
	cases := map[string]map[string]interface{}{
		"missing note":  {"id": float64(999), "url": dataURI(t, 2, 2)},
		"not an image":  {"id": id, "url": "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("nope"))},
		"bad mime":      {"id": id, "url": "data:text/plain;base64,aGk="},
		"not base64":    {"id": id, "url": "data:image/png,raw"},
		"bad scheme":    {"id": id, "url": "ftp://example.com/a.png"},
		"loopback host": {"id": id, "url": "http://127.0.0.1/a.png"},
	}
	for name, args := range cases {
		if r := callTool(t, srv, "attach_image", args); !r.IsError {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestCheckBlockedHost(t *testing.T) {
	for _, h := range []string{"127.0.0.1", "::1", "169.254.169.254", "metadata.google.internal", "0.0.0.0"} {
		if checkBlockedHost(h) == nil {
			t.Errorf("%s should be blocked", h)
		}
	}
	if err := checkBlockedHost("93.184.216.34"); err != nil {
		t.Errorf("public address blocked: %v", err)
	}
}
