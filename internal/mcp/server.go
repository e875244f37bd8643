package mcp

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vthunder/todo-mcp/internal/logging"
)

// Server implements an MCP server over stdio on top of mcp-go
type Server struct {
	mcp *server.MCPServer

	name    string
	version string

	mu        sync.Mutex
	tools     []string
	resources []string
}

// NewServer creates a new MCP server with tool and resource capabilities
func NewServer(name, version string, instructions string) *Server {
	s := &Server{name: name, version: version}
	s.mcp = server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions(instructions),
		server.WithToolHandlerMiddleware(logCalls),
		server.WithRecovery(),
	)
	return s
}

// logCalls traces every tool call at debug level
func logCalls(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		start := time.Now()
		if logging.DebugEnabled() {
			args, _ := json.Marshal(req.GetArguments())
			logging.Debug("mcp", "tools/call %s args=%s", req.Params.Name, logging.Truncate(string(args), 200))
		}
		result, err := next(ctx, req)
		logging.Debug("mcp", "tools/call %s finished in %s", req.Params.Name, time.Since(start))
		return result, err
	}
}

// RegisterTool registers a tool handler
func (s *Server) RegisterTool(tool mcpgo.Tool, handler server.ToolHandlerFunc) {
	s.mu.Lock()
	s.tools = append(s.tools, tool.Name)
	s.mu.Unlock()
	s.mcp.AddTool(tool, handler)
}

// RegisterResource registers a fixed-URI resource
func (s *Server) RegisterResource(resource mcpgo.Resource, handler server.ResourceHandlerFunc) {
	s.mu.Lock()
	s.resources = append(s.resources, resource.URI)
	s.mu.Unlock()
	s.mcp.AddResource(resource, handler)
}

// RegisterResourceTemplate registers a URI-template resource
func (s *Server) RegisterResourceTemplate(tmpl mcpgo.ResourceTemplate, handler server.ResourceTemplateHandlerFunc) {
	s.mu.Lock()
	s.resources = append(s.resources, tmpl.URITemplate.Raw())
	s.mu.Unlock()
	s.mcp.AddResourceTemplate(tmpl, handler)
}

// ToolNames returns the registered tool names, sorted
func (s *Server) ToolNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := append([]string(nil), s.tools...)
	sort.Strings(names)
	return names
}

// ResourceURIs returns the registered resource URIs and templates, sorted
func (s *Server) ResourceURIs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	uris := append([]string(nil), s.resources...)
	sort.Strings(uris)
	return uris
}

// MCPServer exposes the underlying mcp-go server (in-process clients, tests)
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// HandleMessage processes one raw JSON-RPC message
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcpgo.JSONRPCMessage {
	return s.mcp.HandleMessage(ctx, message)
}

// Run serves on stdin/stdout until the input closes
func (s *Server) Run() error {
	logging.Info("mcp", "%s %s serving %d tools and %d resources on stdio",
		s.name, s.version, len(s.ToolNames()), len(s.ResourceURIs()))
	return server.ServeStdio(s.mcp)
}
