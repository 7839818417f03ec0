package campus

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testImpl = &mcp.Implementation{Name: "cartable-test", Version: "0.1.0"}

func mcpSession(t *testing.T, page *fakePage) *mcp.ClientSession {
	t.Helper()
	s := newTestService(t, page)

	srv := mcp.NewServer(testImpl, nil)
	s.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()

	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text
}

// --- campus_list_courses ---

func TestMCP_ListCourses(t *testing.T) {
	page := &fakePage{html: courseListingHTML}
	session := mcpSession(t, page)

	text := callTool(t, session, "campus_list_courses", map[string]any{})

	var courses []Course
	if err := json.Unmarshal([]byte(text), &courses); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(courses) != 3 {
		t.Fatalf("courses: got %d, want 3", len(courses))
	}
	if courses[0].Title != "Systems Programming" {
		t.Errorf("Title = %q", courses[0].Title)
	}
}

// --- campus_submit_form ---

func TestMCP_SubmitForm_Success(t *testing.T) {
	page := confirmingPage(map[string]*fakeElement{
		"e1": {ref: "e1", label: "Answer"},
		"e2": {ref: "e2", label: "Submit all"},
	})
	session := mcpSession(t, page)

	text := callTool(t, session, "campus_submit_form", map[string]any{
		"operations": []map[string]any{
			{"action": "type", "ref": "e1", "value": "42"},
		},
		"submit_ref": "e2",
	})

	var res SubmissionResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result:\n%s", res.Text())
	}
	if len(res.Trace) != 3 {
		t.Fatalf("trace: %v", res.Trace)
	}
}

func TestMCP_SubmitForm_ValidationError(t *testing.T) {
	// WHAT: A malformed operation list is rejected at decode time as a tool
	// error, before any page interaction.
	page := confirmingPage(map[string]*fakeElement{"e1": {ref: "e1"}})
	session := mcpSession(t, page)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "campus_submit_form",
		Arguments: map[string]any{
			"operations": []map[string]any{
				{"action": "hover", "ref": "e1"},
			},
			"submit_ref": "e1",
		},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unknown action")
	}
	if len(page.resolved) != 0 {
		t.Fatalf("page touched despite invalid request: %v", page.resolved)
	}
}

func TestMCP_SubmitForm_ErrorResultCarriesTrace(t *testing.T) {
	// WHAT: A failed submission is not a protocol error: the structured
	// result comes back with isError set and the partial trace intact.
	page := &fakePage{elements: map[string]*fakeElement{"e1": {ref: "e1"}}}
	session := mcpSession(t, page)

	text := callTool(t, session, "campus_submit_form", map[string]any{
		"submit_ref": "e1",
	})

	var res SubmissionResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected isError")
	}
	if !strings.Contains(res.Text(), "No confirmation dialog appeared") {
		t.Fatalf("trace: %s", res.Text())
	}
}

// --- campus_snapshot ---

func TestMCP_Snapshot(t *testing.T) {
	page := &fakePage{elements: map[string]*fakeElement{
		"e1": {ref: "e1", label: "Answer"},
	}}
	session := mcpSession(t, page)

	text := callTool(t, session, "campus_snapshot", map[string]any{})

	var infos []ElementInfo
	if err := json.Unmarshal([]byte(text), &infos); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(infos) != 1 || infos[0].Ref != "e1" {
		t.Fatalf("infos: %+v", infos)
	}
}
