package mcpserver

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"sitebuilder/internal/resolver"
	"sitebuilder/internal/service"
)

// Server is the MCP server for the site builder.
// It exposes tools, resources, and prompts so AI agents can edit pages.
type Server struct {
	mcp *server.MCPServer
	log *logrus.Entry

	// Services (injected from the command layer)
	sites    *service.SiteService
	blocks   *service.BlockService
	editor   *service.EditorService
	sources  *service.DataSourceService
	publish  *service.PublishService
	resolver *resolver.Resolver

	// Active page context (set by set_active_page tool)
	mu           sync.Mutex
	activePageID string
}

// Deps holds all dependencies passed to the MCP server.
type Deps struct {
	Sites       *service.SiteService
	Blocks      *service.BlockService
	Editor      *service.EditorService
	DataSources *service.DataSourceService
	Publish     *service.PublishService
	Resolver    *resolver.Resolver
	Version     string
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	s := &Server{
		log:      logrus.WithField("component", "mcp"),
		sites:    deps.Sites,
		blocks:   deps.Blocks,
		editor:   deps.Editor,
		sources:  deps.DataSources,
		publish:  deps.Publish,
		resolver: deps.Resolver,
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s.mcp = server.NewMCPServer(
		"sitebuilder-mcp",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerNavigationTools()
	s.registerDocumentTools()
	s.registerBlockTools()
	s.registerPublishTools()
	if s.sources != nil {
		s.registerDatabaseTools()
	}
	s.registerResources()
	s.registerPrompts()
	return s
}

// MCP exposes the underlying server, mainly for tests.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info("starting stdio server")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// resolvePageID returns the pageId from tool args or falls back to the active page.
func (s *Server) resolvePageID(args map[string]any) (string, error) {
	if pid, ok := args["pageId"].(string); ok && pid != "" {
		return pid, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activePageID != "" {
		return s.activePageID, nil
	}
	return "", fmt.Errorf("no pageId provided and no active page set (use set_active_page first)")
}

func (s *Server) setActivePage(pageID string) {
	s.mu.Lock()
	s.activePageID = pageID
	s.mu.Unlock()
	s.log.WithField("page", pageID).Debug("active page set")
}
