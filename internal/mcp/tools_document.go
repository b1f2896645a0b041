package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerDocumentTools() {
	// ── get_document ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Return the serialized node tree of a page, keyed by node id. The root node is ROOT."),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleGetDocument)

	// ── list_components ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_components",
		mcp.WithDescription("List the component types that nodes can be created from, with their default props"),
	), s.handleListComponents)

	// ── create_node ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_node",
		mcp.WithDescription("Create a node of a component type under a parent that accepts children. Missing props take the component defaults."),
		mcp.WithString("type", mcp.Description("Component type, see list_components"), mcp.Required()),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("parentId", mcp.Description("Parent node ID (optional, defaults to ROOT)")),
		mcp.WithNumber("index", mcp.Description("Position among the parent's children (optional, appends)")),
		mcp.WithString("props", mcp.Description("JSON object of initial props (optional)")),
	), s.handleCreateNode)

	// ── delete_node ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_node",
		mcp.WithDescription("Delete a node and its whole subtree"),
		mcp.WithString("nodeId", mcp.Description("Node ID"), mcp.Required()),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteNode)

	// ── set_prop ───────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_prop",
		mcp.WithDescription("Set and/or remove props of a node"),
		mcp.WithString("nodeId", mcp.Description("Node ID"), mcp.Required()),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("props", mcp.Description("JSON object of props to set (optional)")),
		mcp.WithString("remove", mcp.Description("Comma-separated prop names to remove (optional)")),
	), s.handleSetProp)

	// ── move_node ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("move_node",
		mcp.WithDescription("Move a node under another parent or to another position. A node cannot move into its own subtree."),
		mcp.WithString("nodeId", mcp.Description("Node ID"), mcp.Required()),
		mcp.WithString("parentId", mcp.Description("New parent node ID"), mcp.Required()),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithNumber("index", mcp.Description("Position among the new parent's children (optional, appends)")),
	), s.handleMoveNode)

	// ── save_page ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("save_page",
		mcp.WithDescription("Persist the edited document and record an undo point"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("label", mcp.Description("History label (optional)")),
	), s.handleSavePage)

	// ── undo / redo ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Restore the previous saved state of a page"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleUndo)
	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Re-apply the most recently undone save of a page"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleRedo)
}

func boolPtr(v bool) *bool { return &v }

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleGetDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	doc, err := s.editor.Document(pageID)
	if err != nil {
		return nil, err
	}
	return jsonResult(doc)
}

type componentSummary struct {
	Name              string            `json:"name"`
	DisplayName       string            `json:"displayName,omitempty"`
	CanAcceptChildren bool              `json:"canAcceptChildren"`
	Slots             map[string]string `json:"slots,omitempty"`
	DefaultProps      map[string]any    `json:"defaultProps"`
}

func (s *Server) handleListComponents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	components := s.resolver.Components()
	out := make([]componentSummary, 0, len(components))
	for _, c := range components {
		out = append(out, componentSummary{
			Name:              c.Name,
			DisplayName:       c.DisplayName,
			CanAcceptChildren: c.CanAcceptChildren,
			Slots:             c.Slots,
			DefaultProps:      c.DefaultProps.Map(),
		})
	}
	return jsonResult(out)
}

func (s *Server) handleCreateNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	componentType, _ := args["type"].(string)
	if componentType == "" {
		return nil, fmt.Errorf("type is required")
	}
	pageID, err := s.resolvePageID(args)
	if err != nil {
		return nil, err
	}
	props, err := parseProps(args, "props")
	if err != nil {
		return nil, err
	}
	parentID, _ := args["parentId"].(string)

	id, err := s.editor.CreateNode(ctx, pageID, componentType, props, parentID, getIndex(args))
	if err != nil {
		return nil, fmt.Errorf("create node: %w", err)
	}
	node, err := s.editor.Node(pageID, id)
	if err != nil {
		return nil, err
	}
	return jsonResult(viewNode(node))
}

func (s *Server) handleDeleteNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	nodeID, _ := args["nodeId"].(string)
	if nodeID == "" {
		return nil, fmt.Errorf("nodeId is required")
	}
	pageID, err := s.resolvePageID(args)
	if err != nil {
		return nil, err
	}
	if err := s.editor.DeleteNode(ctx, pageID, nodeID); err != nil {
		return nil, fmt.Errorf("delete node: %w", err)
	}
	return textResult(fmt.Sprintf("Node %s deleted", nodeID)), nil
}

func (s *Server) handleSetProp(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	nodeID, _ := args["nodeId"].(string)
	if nodeID == "" {
		return nil, fmt.Errorf("nodeId is required")
	}
	pageID, err := s.resolvePageID(args)
	if err != nil {
		return nil, err
	}
	props, err := parseProps(args, "props")
	if err != nil {
		return nil, err
	}
	remove := splitIDs(req.GetString("remove", ""))
	if len(props) == 0 && len(remove) == 0 {
		return nil, fmt.Errorf("props or remove is required")
	}
	if err := s.editor.SetProp(ctx, pageID, nodeID, props, remove); err != nil {
		return nil, fmt.Errorf("set prop: %w", err)
	}
	node, err := s.editor.Node(pageID, nodeID)
	if err != nil {
		return nil, err
	}
	return jsonResult(viewNode(node))
}

func (s *Server) handleMoveNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	nodeID, _ := args["nodeId"].(string)
	parentID, _ := args["parentId"].(string)
	if nodeID == "" || parentID == "" {
		return nil, fmt.Errorf("nodeId and parentId are required")
	}
	pageID, err := s.resolvePageID(args)
	if err != nil {
		return nil, err
	}
	if err := s.editor.MoveNode(ctx, pageID, nodeID, parentID, getIndex(args)); err != nil {
		return nil, fmt.Errorf("move node: %w", err)
	}
	return textResult(fmt.Sprintf("Node %s moved under %s", nodeID, parentID)), nil
}

func (s *Server) handleSavePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	if err := s.editor.Save(ctx, pageID, req.GetString("label", "")); err != nil {
		return nil, fmt.Errorf("save page: %w", err)
	}
	return textResult(fmt.Sprintf("Page %s saved", pageID)), nil
}

func (s *Server) handleUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	if err := s.editor.Undo(ctx, pageID); err != nil {
		return nil, fmt.Errorf("undo: %w", err)
	}
	return textResult("Undone"), nil
}

func (s *Server) handleRedo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	if err := s.editor.Redo(ctx, pageID); err != nil {
		return nil, fmt.Errorf("redo: %w", err)
	}
	return textResult("Redone"), nil
}
