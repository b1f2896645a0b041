package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"sitebuilder/internal/injector"
)

func (s *Server) registerBlockTools() {
	// ── list_blocks ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_blocks",
		mcp.WithDescription("List the saved blocks of the block library"),
	), s.handleListBlocks)

	// ── save_block ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("save_block",
		mcp.WithDescription("Save a serialized document as a block. An existing block with the same id is replaced."),
		mcp.WithString("data", mcp.Description("Serialized document JSON with a ROOT entry"), mcp.Required()),
		mcp.WithString("name", mcp.Description("Block name"), mcp.Required()),
		mcp.WithString("blockId", mcp.Description("Block ID (optional, generated when empty)")),
	), s.handleSaveBlock)

	// ── save_node_as_block ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("save_node_as_block",
		mcp.WithDescription("Save a node of a page and its subtree as a new block"),
		mcp.WithString("nodeId", mcp.Description("Node ID"), mcp.Required()),
		mcp.WithString("name", mcp.Description("Block name"), mcp.Required()),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleSaveNodeAsBlock)

	// ── delete_block (destructive) ─────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_block",
		mcp.WithDescription("Delete a saved block from the library. Pages that already contain it are not affected."),
		mcp.WithString("blockId", mcp.Description("Block ID to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteBlock)

	// ── inject_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("inject_block",
		mcp.WithDescription("Insert a copy of a saved block into a page under a parent node. Nodes of unknown component types are dropped."),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("parentId", mcp.Description("Parent node ID (optional, defaults to ROOT)")),
		mcp.WithNumber("index", mcp.Description("Position among the parent's children (optional, appends)")),
	), s.handleInjectBlock)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blocks, err := s.blocks.ListBlocks()
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return jsonResult(blocks)
}

func (s *Server) handleSaveBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	data, err := parseDocument(args, "data")
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	b, err := s.blocks.SaveBlock(ctx, req.GetString("blockId", ""), req.GetString("name", ""), data)
	if err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Block %q saved as %s", b.Name, b.ID)), nil
}

func (s *Server) handleSaveNodeAsBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	nodeID, _ := args["nodeId"].(string)
	if nodeID == "" {
		return nil, fmt.Errorf("nodeId is required")
	}
	pageID, err := s.resolvePageID(args)
	if err != nil {
		return nil, err
	}
	b, err := s.editor.SaveNodeAsBlock(ctx, pageID, nodeID, req.GetString("name", ""))
	if err != nil {
		return nil, fmt.Errorf("save node as block: %w", err)
	}
	return textResult(fmt.Sprintf("Block %q saved as %s (%d nodes)", b.Name, b.ID, len(b.Data))), nil
}

func (s *Server) handleDeleteBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blockID := req.GetString("blockId", "")
	if blockID == "" {
		return nil, fmt.Errorf("blockId is required")
	}
	if err := s.blocks.DeleteBlock(ctx, blockID); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Block %s deleted", blockID)), nil
}

type injectionView struct {
	State   string   `json:"state"`
	RootID  string   `json:"rootId,omitempty"`
	Dropped []string `json:"dropped,omitempty"`
	Error   string   `json:"error,omitempty"`
	Noop    bool     `json:"noop,omitempty"`
}

func viewInjection(res injector.Result) injectionView {
	v := injectionView{State: res.State.String(), RootID: res.RootID, Noop: res.Noop}
	for _, d := range res.Dropped {
		v.Dropped = append(v.Dropped, d.Error())
	}
	if res.Err != nil {
		v.Error = res.Err.Error()
	}
	return v
}

func (s *Server) handleInjectBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	blockID, _ := args["blockId"].(string)
	if blockID == "" {
		return nil, fmt.Errorf("blockId is required")
	}
	pageID, err := s.resolvePageID(args)
	if err != nil {
		return nil, err
	}
	parentID, _ := args["parentId"].(string)
	res, err := s.editor.InjectBlock(ctx, pageID, blockID, parentID, getIndex(args))
	if err != nil {
		return nil, fmt.Errorf("inject block: %w", err)
	}
	return jsonResult(viewInjection(res))
}
