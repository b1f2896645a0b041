package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitebuilder/internal/document"
	"sitebuilder/internal/resolver"
	"sitebuilder/internal/secret"
	"sitebuilder/internal/service"
	"sitebuilder/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "builder.db"), dir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r := resolver.Default()
	events := &service.MockEmitter{}
	sites := storage.NewSiteStore(db)
	history := storage.NewHistoryStore(db)
	blocks := service.NewBlockService(storage.NewBlockStore(db), r, events)
	sources := service.NewDataSourceService(storage.NewDataSourceStore(db), secret.NewMemoryStore(), events)
	t.Cleanup(sources.Close)

	return New(Deps{
		Sites:       service.NewSiteService(sites, history, r, events),
		Blocks:      blocks,
		Editor:      service.NewEditorService(sites, history, blocks, r, events),
		DataSources: sources,
		Publish:     service.NewPublishService(sites, sources, r, service.PublishOptions{OutDir: filepath.Join(dir, "public")}, events),
		Resolver:    r,
	})
}

func call(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

func TestExtractPageIDFromURI(t *testing.T) {
	assert.Equal(t, "abc-123", extractPageIDFromURI("builder://page/abc-123/document"))
	assert.Equal(t, "", extractPageIDFromURI("builder://page//document"))
	assert.Equal(t, "", extractPageIDFromURI("builder://page/a/b/document"))
	assert.Equal(t, "", extractPageIDFromURI("notes://page/a/document"))
}

func TestParseProps(t *testing.T) {
	props, err := parseProps(map[string]any{"props": `{"title":"Hi","size":3}`}, "props")
	require.NoError(t, err)
	assert.Equal(t, "Hi", props.Text("title"))

	props, err = parseProps(map[string]any{}, "props")
	require.NoError(t, err)
	assert.Nil(t, props)

	_, err = parseProps(map[string]any{"props": `[1]`}, "props")
	assert.Error(t, err)
}

func TestResolvePageID_RequiresActivePage(t *testing.T) {
	s := newTestServer(t)
	_, err := s.resolvePageID(map[string]any{})
	assert.Error(t, err)
	s.setActivePage("p1")
	id, err := s.resolvePageID(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "p1", id)
}

func TestEditingFlow(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleCreateSite(ctx, call(map[string]any{"name": "Shop"}))
	require.NoError(t, err)
	site := decode[map[string]any](t, res)

	res, err = s.handleCreatePage(ctx, call(map[string]any{"siteId": site["id"], "name": "Home"}))
	require.NoError(t, err)
	page := decode[map[string]any](t, res)
	assert.Equal(t, "home", page["slug"])

	// create_page made the page active; no pageId needed from here on.
	res, err = s.handleCreateNode(ctx, call(map[string]any{"type": "Section"}))
	require.NoError(t, err)
	section := decode[nodeView](t, res)
	assert.Equal(t, document.RootID, section.Parent)

	res, err = s.handleCreateNode(ctx, call(map[string]any{
		"type":     "Heading",
		"parentId": section.ID,
		"props":    `{"text":"Welcome"}`,
	}))
	require.NoError(t, err)
	heading := decode[nodeView](t, res)
	assert.Equal(t, "Welcome", heading.Props.Text("text"))

	res, err = s.handleSetProp(ctx, call(map[string]any{"nodeId": heading.ID, "props": `{"level":1}`}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"level": 1`)

	_, err = s.handleMoveNode(ctx, call(map[string]any{"nodeId": section.ID, "parentId": heading.ID}))
	assert.Error(t, err, "heading does not accept children")

	_, err = s.handleSavePage(ctx, call(map[string]any{}))
	require.NoError(t, err)

	res, err = s.handleSaveNodeAsBlock(ctx, call(map[string]any{"nodeId": section.ID, "name": "Intro"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"Intro"`)

	res, err = s.handleListBlocks(ctx, call(nil))
	require.NoError(t, err)
	blocks := decode[[]map[string]any](t, res)
	require.Len(t, blocks, 1)

	res, err = s.handleInjectBlock(ctx, call(map[string]any{"blockId": blocks[0]["id"], "index": float64(0)}))
	require.NoError(t, err)
	inj := decode[injectionView](t, res)
	assert.Equal(t, "done", inj.State)

	res, err = s.handleGetDocument(ctx, call(map[string]any{}))
	require.NoError(t, err)
	doc, err := document.ParseSerialized([]byte(resultText(t, res)))
	require.NoError(t, err)
	assert.Len(t, doc, 5, "ROOT plus two sections with a heading each")
	assert.Equal(t, inj.RootID, doc[document.RootID].Nodes[0])

	_, err = s.handleUndo(ctx, call(map[string]any{}))
	require.NoError(t, err)
	res, err = s.handleGetDocument(ctx, call(map[string]any{}))
	require.NoError(t, err)
	doc, err = document.ParseSerialized([]byte(resultText(t, res)))
	require.NoError(t, err)
	assert.Len(t, doc, 1, "undo returns to the empty page")

	res, err = s.handlePublishPage(ctx, call(map[string]any{}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "home.tsx")
}

func TestInjectMissingBlockReportsFailure(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	site, err := s.sites.CreateSite("Shop")
	require.NoError(t, err)
	page, err := s.sites.CreatePage(site.ID, "Home", "")
	require.NoError(t, err)

	res, err := s.handleInjectBlock(ctx, call(map[string]any{"blockId": "nope", "pageId": page.ID}))
	require.NoError(t, err)
	inj := decode[injectionView](t, res)
	assert.Equal(t, "failed", inj.State)
	assert.Contains(t, inj.Error, "block-not-found")
}

func TestListComponents(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleListComponents(context.Background(), call(nil))
	require.NoError(t, err)
	components := decode[[]componentSummary](t, res)

	byName := map[string]componentSummary{}
	for _, c := range components {
		byName[c.Name] = c
	}
	require.Contains(t, byName, "Hero")
	assert.Equal(t, "New season", byName["Hero"].DefaultProps["title"])
	assert.True(t, byName["Container"].CanAcceptChildren)
}

func TestPageDocumentResource(t *testing.T) {
	s := newTestServer(t)
	site, err := s.sites.CreateSite("Shop")
	require.NoError(t, err)
	page, err := s.sites.CreatePage(site.ID, "Home", "")
	require.NoError(t, err)

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "builder://page/" + page.ID + "/document"
	contents, err := s.handlePageDocumentResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text := contents[0].(mcp.TextResourceContents)
	assert.Contains(t, text.Text, `"ROOT"`)
}
