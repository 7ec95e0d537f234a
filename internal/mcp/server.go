// Package mcp exposes the browser bridge as MCP tools. Each tool validates
// its arguments declaratively, routes through the session tab manager, and
// renders the bridge result as human-readable text (or an image block for
// screenshots), appending a recovery hint on failure.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"webclaw/internal/config"
	"webclaw/internal/session"
)

// Requester is the slice of the connection manager the tool surface needs;
// host.Manager satisfies it, tests substitute a scripted bridge.
type Requester = session.Requester

// Server wires the MCP runtime, the bridge connection manager, and the
// session tab router.
type Server struct {
	cfg       config.Config
	bridge    Requester
	tabs      *session.Tabs
	tools     map[string]Tool
	mcpServer *mcpserver.MCPServer
}

// Tool describes the contract for MCP tool implementations.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (*Result, error)
}

// Result is a successful tool outcome: text, optionally replaced by a PNG
// image block.
type Result struct {
	Text    string
	PNGData string // base64; set only by screenshot
}

// NewServer constructs the webclaw MCP server and registers all tools.
func NewServer(cfg config.Config, bridge Requester) *Server {
	mcpSrv := mcpserver.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithLogging(),
		mcpserver.WithRecovery(),
	)

	server := &Server{
		cfg:       cfg,
		bridge:    bridge,
		tabs:      session.New(bridge),
		tools:     make(map[string]Tool),
		mcpServer: mcpSrv,
	}
	server.registerAllTools()
	return server
}

// Start launches the stdio server (Claude/Gemini CLI default).
func (s *Server) Start(ctx context.Context) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// ExecuteTool executes a tool directly (used by tests).
func (s *Server) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (*Result, error) {
	tool, exists := s.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool.Execute(ctx, args)
}

func (s *Server) registerAllTools() {
	// Navigation and tab lifecycle
	s.registerTool(&NavigateTool{tabs: s.tabs})
	s.registerTool(&NewTabTool{bridge: s.bridge})
	s.registerTool(&ListTabsTool{bridge: s.bridge})
	s.registerTool(&SwitchTabTool{bridge: s.bridge})
	s.registerTool(&CloseTabTool{bridge: s.bridge})
	s.registerTool(&HistoryTool{tabs: s.tabs, back: true})
	s.registerTool(&HistoryTool{tabs: s.tabs, back: false})
	s.registerTool(&ReloadTool{tabs: s.tabs})
	s.registerTool(&WaitForNavigationTool{tabs: s.tabs})

	// Observation
	s.registerTool(&SnapshotTool{tabs: s.tabs, defaults: s.cfg.Snapshot})
	s.registerTool(&ScreenshotTool{tabs: s.tabs})

	// Element actions
	s.registerTool(&ClickTool{tabs: s.tabs})
	s.registerTool(&HoverTool{tabs: s.tabs})
	s.registerTool(&TypeTextTool{tabs: s.tabs})
	s.registerTool(&SelectOptionTool{tabs: s.tabs})
	s.registerTool(&ScrollPageTool{tabs: s.tabs})
	s.registerTool(&DropFilesTool{tabs: s.tabs})

	// WebMCP
	s.registerTool(&ListWebMCPToolsTool{tabs: s.tabs})
	s.registerTool(&InvokeWebMCPToolTool{tabs: s.tabs})
}

func (s *Server) registerTool(tool Tool) {
	s.tools[tool.Name()] = tool

	schema, err := json.Marshal(tool.InputSchema())
	if err != nil {
		schema = json.RawMessage(`{"type":"object"}`)
	}

	mcpTool := mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema)
	s.mcpServer.AddTool(mcpTool, s.wrapTool(tool))
}

func (s *Server) wrapTool(tool Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}

		result, err := tool.Execute(ctx, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(errorText(err))},
				IsError: true,
			}, nil
		}

		if result.PNGData != "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewImageContent(result.PNGData, "image/png")},
			}, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(result.Text)},
		}, nil
	}
}
