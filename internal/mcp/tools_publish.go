package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPublishTools() {
	// ── publish_page ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("publish_page",
		mcp.WithDescription("Transpile the saved document of a page and write its static markup (.tsx) and interactive shell (.html)"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handlePublishPage)

	// ── preview_page ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("preview_page",
		mcp.WithDescription("Return the static markup a page would publish, without writing files"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handlePreviewPage)
}

func (s *Server) handlePublishPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	if s.editor.Dirty(pageID) {
		s.log.WithField("page", pageID).Warn("publishing page with unsaved edits")
	}
	res, err := s.publish.Publish(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	return jsonResult(res)
}

func (s *Server) handlePreviewPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	page, err := s.sites.GetPage(pageID)
	if err != nil {
		return nil, err
	}
	return textResult(s.publish.Render(ctx, page).Static), nil
}
