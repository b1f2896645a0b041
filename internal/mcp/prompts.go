package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("landing_page",
		mcp.WithPromptDescription("Guide through building a storefront landing page from components and saved blocks"),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("Campaign or product the page is about"),
			mcp.RequiredArgument(),
		),
	), s.handleLandingPagePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("data_page",
		mcp.WithPromptDescription("Build a page that lists and edits rows of a data source table"),
		mcp.WithArgument("dataSourceId",
			mcp.ArgumentDescription("Data source to read from"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("table",
			mcp.ArgumentDescription("Table to show"),
			mcp.RequiredArgument(),
		),
	), s.handleDataPagePrompt)
}

func (s *Server) handleLandingPagePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := req.Params.Arguments["topic"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Build a landing page for: %s", topic),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Build a landing page about "%s" on the active page. Follow these steps:

1. Call list_components and list_blocks to see what is available
2. Prefer inject_block for sections that already exist as saved blocks
3. Otherwise create_node a Hero under ROOT and set_prop its title and subtitle to fit "%s"
4. Add a Section with a ProductGrid and a Footer
5. get_document to review the tree, then save_page
6. publish_page and report the written paths

Keep the tree shallow: sections directly under ROOT.`, topic, topic),
				},
			},
		},
	}, nil
}

func (s *Server) handleDataPagePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	dataSourceID := req.Params.Arguments["dataSourceId"]
	table := req.Params.Arguments["table"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Data page for %s.%s", dataSourceID, table),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Build a page showing table "%s" of data source %s:

1. introspect_schema on the data source and check the table's fields
2. query_table with a small limit to see sample rows
3. create_node a Heading describing the table
4. create_node a DataTable with props {"dataSource": "%s", "table": "%s"}
5. create_node a Form with the same dataSource and table for new rows
6. save_page`, table, dataSourceID, dataSourceID, table),
				},
			},
		},
	}, nil
}
