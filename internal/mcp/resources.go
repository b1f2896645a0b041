package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	blocksURI      = "builder://blocks"
	pageURIPrefix  = "builder://page/"
	documentSuffix = "/document"
)

func (s *Server) registerResources() {
	// ── builder://blocks ───────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		blocksURI,
		"Saved Blocks",
		mcp.WithMIMEType("application/json"),
	), s.handleBlocksResource)

	// ── builder://page/{pageId}/document ───────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			pageURIPrefix+"{pageId}"+documentSuffix,
			"Document of a Page",
		),
		s.handlePageDocumentResource,
	)
}

func (s *Server) handleBlocksResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	blocks, err := s.blocks.ListBlocks()
	if err != nil {
		return nil, err
	}

	type blockSummary struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	summaries := make([]blockSummary, len(blocks))
	for i, b := range blocks {
		summaries[i] = blockSummary{ID: b.ID, Name: b.Name}
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      blocksURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handlePageDocumentResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	pageID := extractPageIDFromURI(uri)
	if pageID == "" {
		return nil, fmt.Errorf("could not extract pageId from URI: %s", uri)
	}

	doc, err := s.editor.Document(pageID)
	if err != nil {
		return nil, err
	}
	data, err := doc.MarshalIndent()
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// extractPageIDFromURI extracts the page ID from "builder://page/{id}/document".
func extractPageIDFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, pageURIPrefix)
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, documentSuffix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
