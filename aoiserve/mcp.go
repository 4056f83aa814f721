package aoiserve

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/webaoi/kit"
)

// RegisterMCP registers the webaoi tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	ep := s.endpoints()

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "webaoi_list_sessions",
		Description: "List define and record sessions, newest first.",
		InputSchema: inputSchema(map[string]any{
			"mode":  map[string]any{"type": "string", "enum": []any{"define", "record"}, "description": "Filter by session mode"},
			"limit": map[string]any{"type": "integer", "description": "Max results (default 100)"},
		}, nil),
	}, ep.listSessions, kit.DecodeArgs[ListSessionsRequest])

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "webaoi_export",
		Description: "Return the AOI definitions document last saved by a define session: {url: {label: [locator, ...]}}.",
		InputSchema: inputSchema(map[string]any{
			"session_id": map[string]any{"type": "string", "description": "Session ID"},
		}, []string{"session_id"}),
	}, ep.export, kit.DecodeArgs[ExportRequest])

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "webaoi_events",
		Description: "Return the events of a record session in emission order (browser_url, browser_scroll, browser_size, browser_tab, aoi).",
		InputSchema: inputSchema(map[string]any{
			"session_id": map[string]any{"type": "string", "description": "Session ID"},
			"name":       map[string]any{"type": "string", "description": "Only events with this name"},
			"limit":      map[string]any{"type": "integer", "description": "Max results (default 100)"},
		}, []string{"session_id"}),
	}, ep.events, kit.DecodeArgs[EventsRequest])

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "webaoi_resolve_html",
		Description: "Resolve the AOIs defined for a URL against saved HTML. Definitions come from a session export or are passed inline.",
		InputSchema: inputSchema(map[string]any{
			"session_id":  map[string]any{"type": "string", "description": "Session whose export supplies the definitions"},
			"definitions": map[string]any{"type": "object", "description": "Inline definitions document, used instead of session_id"},
			"url":         map[string]any{"type": "string", "description": "Page URL the definitions are keyed by"},
			"html":        map[string]any{"type": "string", "description": "Page HTML"},
			"content":     map[string]any{"type": "boolean", "description": "Include each AOI's content as Markdown"},
		}, []string{"url", "html"}),
	}, ep.resolveHTML, kit.DecodeArgs[ResolveHTMLRequest])
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
