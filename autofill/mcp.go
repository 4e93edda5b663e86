// CLAUDE:SUMMARY Registers autofill MCP tools: scan/fill static HTML, run a live page, get/put profile, inspect or clear memory.
package autofill

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/autofill/idgen"
	"github.com/hazyhaar/autofill/kit"
)

// RegisterMCP registers autofill tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerScanHTMLTool(srv)
	s.registerFillHTMLTool(srv)
	s.registerRunPageTool(srv)
	s.registerGetProfileTool(srv)
	s.registerPutProfileTool(srv)
	s.registerDeleteProfileTool(srv)
	s.registerMemoryTool(srv)
}

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

var newToolTraceID = idgen.Prefixed("mcp_", idgen.NanoID(12))

// decodeInto returns a decode func that unmarshals tool arguments into a new T.
// Calls that arrive without a trace id (stdio) get one, so their runs can be
// found in the event log.
func decodeInto[T any]() func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	return func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		v := new(T)
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: v, EnrichCtx: withToolTrace}, nil
	}
}

func withToolTrace(ctx context.Context) context.Context {
	if kit.GetTraceID(ctx) != "" {
		return ctx
	}
	return kit.WithTraceID(ctx, newToolTraceID())
}

// --- scan_html ---

func (s *Service) registerScanHTMLTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "autofill_scan_html",
		Description: "List the form fields autofill recognises in an HTML document: label, control type and classification.",
		InputSchema: inputSchema(map[string]any{
			"html":  map[string]any{"type": "string", "description": "HTML document or fragment"},
			"scope": map[string]any{"type": "string", "description": "CSS selector limiting the scan (e.g. form#apply)"},
		}, []string{"html"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.ScanHTML(ctx, *req.(*ScanRequest))
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[ScanRequest]())
}

// --- fill_html ---

func (s *Service) registerFillHTMLTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "autofill_fill_html",
		Description: "Fill the form fields of an HTML document from the stored profile and memory. Returns the run report and the filled document.",
		InputSchema: inputSchema(map[string]any{
			"html":       map[string]any{"type": "string", "description": "HTML document or fragment"},
			"scope":      map[string]any{"type": "string", "description": "CSS selector limiting the fill"},
			"site_type":  map[string]any{"type": "string", "description": "Site type hint (workday, greenhouse, ...)"},
			"url":        map[string]any{"type": "string", "description": "Page URL, used to detect the site type"},
			"profile_id": map[string]any{"type": "string", "description": "Stored profile to use (default: configured profile)"},
			"profile":    map[string]any{"type": "object", "description": "Inline profile document, overrides profile_id"},
		}, []string{"html"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.FillHTML(ctx, *req.(*FillRequest))
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[FillRequest]())
}

// --- run_page ---

func (s *Service) registerRunPageTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "autofill_run_page",
		Description: "Open a URL in headless Chrome and fill its form. Returns the run report.",
		InputSchema: inputSchema(map[string]any{
			"url":        map[string]any{"type": "string", "description": "Page URL (http or https)"},
			"site_type":  map[string]any{"type": "string", "description": "Site type hint; detected from the URL when empty"},
			"profile_id": map[string]any{"type": "string", "description": "Stored profile to use"},
			"profile":    map[string]any{"type": "object", "description": "Inline profile document"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.RunPage(ctx, *req.(*PageRequest))
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[PageRequest]())
}

// --- get_profile ---

type profileRequest struct {
	ID      string          `json:"id,omitempty"`
	Profile json.RawMessage `json:"profile,omitempty"`
}

func (s *Service) registerGetProfileTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "autofill_get_profile",
		Description: "Get a stored profile document.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Profile id (default: configured profile)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		pr := req.(*profileRequest)
		p, err := s.GetProfile(ctx, pr.ID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, errors.New("profile not found")
		}
		return p.Document(), nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[profileRequest]())
}

// --- put_profile ---

func (s *Service) registerPutProfileTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "autofill_put_profile",
		Description: "Store a profile document (fullName, email, experience, projects, licenses, ...).",
		InputSchema: inputSchema(map[string]any{
			"id":      map[string]any{"type": "string", "description": "Profile id (default: configured profile)"},
			"profile": map[string]any{"type": "object", "description": "Profile document"},
		}, []string{"profile"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		pr := req.(*profileRequest)
		if len(pr.Profile) == 0 {
			return nil, errors.New("profile is required")
		}
		if _, err := s.PutProfile(ctx, pr.ID, pr.Profile); err != nil {
			return nil, err
		}
		return map[string]string{"status": "stored"}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[profileRequest]())
}

// --- delete_profile ---

func (s *Service) registerDeleteProfileTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "autofill_delete_profile",
		Description: "Delete a stored profile. Runs without a profile still use memory and the remote tier.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Profile id (default: configured profile)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		pr := req.(*profileRequest)
		ok, err := s.DeleteProfile(ctx, pr.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New("profile not found")
		}
		return map[string]string{"status": "deleted"}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[profileRequest]())
}

// --- memory ---

type memoryRequest struct {
	Action string `json:"action"` // list | forget | clear
	Label  string `json:"label,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (s *Service) registerMemoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "autofill_memory",
		Description: "Inspect or edit the per-label fill memory.",
		InputSchema: inputSchema(map[string]any{
			"action": map[string]any{"type": "string", "enum": []any{"list", "forget", "clear"}, "description": "Operation (default list)"},
			"label":  map[string]any{"type": "string", "description": "Cleaned label, for forget"},
			"limit":  map[string]any{"type": "integer", "description": "Max entries for list (default: all)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		mr := req.(*memoryRequest)
		switch mr.Action {
		case "", "list":
			return s.ListMemory(ctx, mr.Limit)
		case "forget":
			if mr.Label == "" {
				return nil, errors.New("label is required")
			}
			n, err := s.ForgetMemory(ctx, mr.Label)
			if err != nil {
				return nil, err
			}
			return map[string]int64{"removed": n}, nil
		case "clear":
			n, err := s.ForgetMemory(ctx, "")
			if err != nil {
				return nil, err
			}
			return map[string]int64{"removed": n}, nil
		}
		return nil, errors.New("unknown action: " + mr.Action)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[memoryRequest]())
}
