package campus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/cartable/kit"
)

// RegisterMCP registers all campus tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerLoginTool(srv)
	s.registerSnapshotTool(srv)
	s.registerListCoursesTool(srv)
	s.registerListLecturesTool(srv)
	s.registerListSlidesTool(srv)
	s.registerPageContentTool(srv)
	s.registerDownloadSlideTool(srv)
	s.registerSubmitFormTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// audited records every invocation outcome before the result leaves the tool.
func (s *Service) audited(tool string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			resp, err := next(ctx, req)
			if err != nil {
				s.recordAudit(ctx, tool, false, err.Error())
			} else {
				s.recordAudit(ctx, tool, true, "")
			}
			return resp, err
		}
	}
}

// --- login ---

func (s *Service) registerLoginTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "campus_login",
		Description: "Sign in to the campus platform using the configured credentials, riding out the identity provider redirect. Idempotent: an already authenticated session is detected and left alone.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	type loginResponse struct {
		State string `json:"state"`
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		state, err := s.Login(ctx)
		if err != nil {
			return nil, err
		}
		return &loginResponse{State: state.String()}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.audited(tool.Name)(endpoint), decode)
}

// --- snapshot ---

func (s *Service) registerSnapshotTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "campus_snapshot",
		Description: "Capture the interactive elements of the current page. Returns stable element references (e1, e2, ...) usable by campus_submit_form until the next navigation.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Snapshot(ctx)
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.audited(tool.Name)(endpoint), decode)
}

// --- list_courses ---

func (s *Service) registerListCoursesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "campus_list_courses",
		Description: "List the courses visible on the user's course overview page.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.ListCourses(ctx)
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.audited(tool.Name)(endpoint), decode)
}

// --- list_lectures ---

type listLecturesRequest struct {
	CourseURL string `json:"course_url"`
}

func (s *Service) registerListLecturesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "campus_list_lectures",
		Description: "List the lectures of one course page.",
		InputSchema: inputSchema(map[string]any{
			"course_url": map[string]any{"type": "string", "description": "Course page URL, as returned by campus_list_courses"},
		}, []string{"course_url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*listLecturesRequest)
		return s.ListLectures(ctx, r.CourseURL)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r listLecturesRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.audited(tool.Name)(endpoint), decode)
}

// --- list_slides ---

type listSlidesRequest struct {
	PageURL string `json:"page_url"`
}

func (s *Service) registerListSlidesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "campus_list_slides",
		Description: "List the slide decks linked from a lecture page.",
		InputSchema: inputSchema(map[string]any{
			"page_url": map[string]any{"type": "string", "description": "Lecture page URL, as returned by campus_list_lectures"},
		}, []string{"page_url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*listSlidesRequest)
		return s.ListSlides(ctx, r.PageURL)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r listSlidesRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.audited(tool.Name)(endpoint), decode)
}

// --- page_content ---

func (s *Service) registerPageContentTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "campus_page_content",
		Description: "Return the current page as sanitised Markdown.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.PageContent(ctx)
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.audited(tool.Name)(endpoint), decode)
}

// --- download_slide ---

type downloadSlideRequest struct {
	URL string `json:"url"`
}

func (s *Service) registerDownloadSlideTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "campus_download_slide",
		Description: "Download a slide PDF using the authenticated browser session's cookies, validate it, and report its location, size, and page count.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Slide URL, as returned by campus_list_slides"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*downloadSlideRequest)
		return s.DownloadSlide(ctx, r.URL)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r downloadSlideRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.audited(tool.Name)(endpoint), decode)
}

// --- submit_form ---

type submitFormRequest struct {
	Operations  []OperationRequest `json:"operations,omitempty"`
	SubmitRef   string             `json:"submit_ref"`
	SubmitLabel string             `json:"submit_label,omitempty"`
}

func (s *Service) registerSubmitFormTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "campus_submit_form",
		Description: "Fill and submit an assignment form in one shot: apply the operations in order against the last snapshot, click the submit button, and arbitrate the confirmation dialog. Returns a line-per-action trace; isError reports the overall verdict.",
		InputSchema: inputSchema(map[string]any{
			"operations": map[string]any{
				"type":        "array",
				"description": "Ordered input operations to apply before submitting",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"action": map[string]any{"type": "string", "enum": []any{"type", "click", "check", "uncheck", "select", "upload"}, "description": "What to do with the element"},
						"ref":    map[string]any{"type": "string", "description": "Element reference from campus_snapshot (e.g. e3)"},
						"value":  map[string]any{"description": "Text for type, value(s) for select, absolute path(s) for upload; omit for click/check/uncheck"},
						"label":  map[string]any{"type": "string", "description": "Human-readable element name for the trace"},
					},
					"required": []any{"action", "ref"},
				},
			},
			"submit_ref":   map[string]any{"type": "string", "description": "Element reference of the submit button"},
			"submit_label": map[string]any{"type": "string", "description": "Human-readable submit button name for the trace"},
		}, []string{"submit_ref"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*submitFormRequest)
		ops, err := ParseOperations(r.Operations)
		if err != nil {
			s.recordAudit(ctx, tool.Name, false, err.Error())
			return nil, err
		}
		res := s.SubmitForm(ctx, SubmitRequest{
			Operations: ops,
			Submit:     Target{Ref: r.SubmitRef, Label: r.SubmitLabel},
		})
		if res.IsError {
			s.recordAudit(ctx, tool.Name, false, res.Text())
		} else {
			s.recordAudit(ctx, tool.Name, true, "")
		}
		return res, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r submitFormRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, fmt.Errorf("campus: decode submit_form: %w", err)
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
