package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerNavigationTools() {
	// ── list_sites ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_sites",
		mcp.WithDescription("List all sites in the workspace"),
	), s.handleListSites)

	// ── create_site ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_site",
		mcp.WithDescription("Create a new site"),
		mcp.WithString("name", mcp.Description("Name of the site"), mcp.Required()),
	), s.handleCreateSite)

	// ── list_pages ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List all pages of a site"),
		mcp.WithString("siteId", mcp.Description("ID of the site"), mcp.Required()),
	), s.handleListPages)

	// ── create_page ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_page",
		mcp.WithDescription("Create a new page with an empty document in a site. The new page becomes the active page."),
		mcp.WithString("siteId", mcp.Description("ID of the site"), mcp.Required()),
		mcp.WithString("name", mcp.Description("Name of the new page"), mcp.Required()),
		mcp.WithString("slug", mcp.Description("URL slug (optional, derived from the name)")),
	), s.handleCreatePage)

	// ── set_active_page ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_active_page",
		mcp.WithDescription("Set the active page for subsequent tool calls. Tools that accept pageId will default to this."),
		mcp.WithString("pageId", mcp.Description("ID of the page to make active"), mcp.Required()),
	), s.handleSetActivePage)
}

func (s *Server) handleListSites(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sites, err := s.sites.ListSites()
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return jsonResult(sites)
}

func (s *Server) handleCreateSite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	site, err := s.sites.CreateSite(req.GetString("name", ""))
	if err != nil {
		return nil, err
	}
	return jsonResult(site)
}

type pageSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	PublishCron string `json:"publishCron,omitempty"`
	Nodes       int    `json:"nodes"`
}

func (s *Server) handleListPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	siteID := req.GetString("siteId", "")
	if siteID == "" {
		return nil, fmt.Errorf("siteId is required")
	}
	pages, err := s.sites.ListPages(siteID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	out := make([]pageSummary, len(pages))
	for i, p := range pages {
		out[i] = pageSummary{ID: p.ID, Name: p.Name, Slug: p.Slug, PublishCron: p.PublishCron, Nodes: len(p.Data)}
	}
	return jsonResult(out)
}

func (s *Server) handleCreatePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	siteID := req.GetString("siteId", "")
	name := req.GetString("name", "")
	if siteID == "" || name == "" {
		return nil, fmt.Errorf("siteId and name are required")
	}
	page, err := s.sites.CreatePage(siteID, name, req.GetString("slug", ""))
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	s.setActivePage(page.ID)
	return jsonResult(page)
}

func (s *Server) handleSetActivePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID := req.GetString("pageId", "")
	if pageID == "" {
		return nil, fmt.Errorf("pageId is required")
	}
	page, err := s.sites.GetPage(pageID)
	if err != nil {
		return nil, err
	}
	s.setActivePage(page.ID)
	return textResult(fmt.Sprintf("Active page set to %q (%s)", page.Name, page.ID)), nil
}
