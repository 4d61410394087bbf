package bindable

import (
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/dombind/kit"
)

// RegisterMCP registers the dombind tools on an MCP server:
// dombind_list, dombind_scan and, with WithHistory, dombind_history.
func RegisterMCP(srv *mcp.Server, reg *Registry, opts ...ServiceOption) {
	s := newService(reg, opts)

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "dombind_list",
		Description: "List the registered binders with their CSS selectors.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, s.endpoint("list", s.list), func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	})

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "dombind_scan",
		Description: "Bind every unbound element matching a binder's selector. Without binder, all binders scan in registration order. A binder already scanning is waited for and its scan reported as coalesced.",
		InputSchema: inputSchema(map[string]any{
			"binder": map[string]any{"type": "string", "description": "Binder name (default: all)"},
		}, nil),
	}, s.endpoint("scan", s.scan), func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r scanRequest
		if err := decodeArgs(req, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	})

	if s.history == nil {
		return
	}
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "dombind_history",
		Description: "Recent scan events recorded for a binder, newest first.",
		InputSchema: inputSchema(map[string]any{
			"binder": map[string]any{"type": "string", "description": "Binder name"},
			"limit":  map[string]any{"type": "integer", "description": "Max results (default 20)"},
		}, []string{"binder"}),
	}, s.endpoint("history", s.recentScans), func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r historyRequest
		if err := decodeArgs(req, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	})
}

func decodeArgs(req *mcp.CallToolRequest, v any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params.Arguments, v)
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
