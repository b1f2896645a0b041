package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"sitebuilder/internal/dbclient"
)

func (s *Server) registerDatabaseTools() {
	s.mcp.AddTool(mcp.NewTool("list_data_sources",
		mcp.WithDescription("List the databases that DataTable and Form nodes can read from"),
	), s.handleListDataSources)

	s.mcp.AddTool(mcp.NewTool("introspect_schema",
		mcp.WithDescription("Get the tables and normalized fields of a data source"),
		mcp.WithString("dataSourceId", mcp.Description("Data source ID"), mcp.Required()),
	), s.handleIntrospectSchema)

	s.mcp.AddTool(mcp.NewTool("query_table",
		mcp.WithDescription("Read rows from a table of a data source"),
		mcp.WithString("dataSourceId", mcp.Description("Data source ID"), mcp.Required()),
		mcp.WithString("table", mcp.Description("Table ID as returned by introspect_schema"), mcp.Required()),
		mcp.WithString("filters", mcp.Description(`JSON array of filters [{"field","operator","value"}]; operators: eq, neq, gt, gte, lt, lte, like, in, is_null, not_null`)),
		mcp.WithString("orderBy", mcp.Description("Field to sort by (optional)")),
		mcp.WithBoolean("desc", mcp.Description("Sort descending (optional)")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows (default 100, max 1000)")),
	), s.handleQueryTable)
}

func (s *Server) handleListDataSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sources, err := s.sources.ListDataSources()
	if err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}
	return jsonResult(sources)
}

func (s *Server) handleIntrospectSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("dataSourceId", "")
	if id == "" {
		return nil, fmt.Errorf("dataSourceId is required")
	}
	schema, err := s.sources.IntrospectSchema(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("introspect: %w", err)
	}
	return jsonResult(schema)
}

func (s *Server) handleQueryTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, _ := args["dataSourceId"].(string)
	table, _ := args["table"].(string)
	if id == "" || table == "" {
		return nil, fmt.Errorf("dataSourceId and table are required")
	}

	q := dbclient.QueryRequest{
		Table:   table,
		Limit:   int(getFloat(args, "limit", 0)),
		OrderBy: req.GetString("orderBy", ""),
		Desc:    req.GetBool("desc", false),
	}
	if raw := req.GetString("filters", ""); raw != "" {
		if err := parseJSON(raw, &q.Filters); err != nil {
			return nil, fmt.Errorf("filters must be a JSON array: %w", err)
		}
	}

	rows, err := s.sources.Query(ctx, id, q)
	if err != nil {
		s.log.WithError(err).WithField("filters", truncate(req.GetString("filters", ""), 200)).Debug("query_table failed")
		return nil, err
	}
	return jsonResult(rows)
}
