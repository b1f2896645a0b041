package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitebuilder/internal/document"
	"sitebuilder/internal/injector"
	"sitebuilder/internal/prop"
	"sitebuilder/internal/service"
	"sitebuilder/internal/storage"
)

func TestEditor_CommandsAndSave(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pageID := e.page(t, "Home")

	sec, err := e.editor.CreateNode(ctx, pageID, "Section", nil, "", -1)
	require.NoError(t, err)
	text, err := e.editor.CreateNode(ctx, pageID, "Text", prop.Props{"text": prop.StringValue("Hello")}, sec, -1)
	require.NoError(t, err)
	require.NoError(t, e.editor.SetProp(ctx, pageID, text, prop.Props{"color": prop.StringValue("red")}, []string{"text"}))
	assert.True(t, e.editor.Dirty(pageID))

	n, err := e.editor.Node(pageID, text)
	require.NoError(t, err)
	assert.Equal(t, "red", n.Props.Text("color"))
	_, hasText := n.Props["text"]
	assert.False(t, hasText)

	require.NoError(t, e.editor.Save(ctx, pageID, "edit"))
	assert.False(t, e.editor.Dirty(pageID))

	stored, err := e.sites.GetPage(pageID)
	require.NoError(t, err)
	live, err := e.editor.Document(pageID)
	require.NoError(t, err)
	assert.Equal(t, live, stored.Data)
	assert.NotEmpty(t, e.events.Named(service.EventDocumentChanged))
}

func TestEditor_ApplyIsAtomic(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pageID := e.page(t, "Home")
	before, err := e.editor.Document(pageID)
	require.NoError(t, err)

	err = e.editor.Apply(ctx, pageID,
		&document.CreateNodeCmd{Type: "Text"},
		document.DeleteNodeCmd{ID: "missing"},
	)
	require.Error(t, err)

	after, err := e.editor.Document(pageID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "a failed batch leaves no trace")
}

func TestEditor_MoveRejectsCycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pageID := e.page(t, "Home")

	outer, err := e.editor.CreateNode(ctx, pageID, "Section", nil, "", -1)
	require.NoError(t, err)
	inner, err := e.editor.CreateNode(ctx, pageID, "Section", nil, outer, -1)
	require.NoError(t, err)

	var serr *document.StructuralError
	require.ErrorAs(t, e.editor.MoveNode(ctx, pageID, outer, inner, 0), &serr)
	require.NoError(t, e.editor.MoveNode(ctx, pageID, inner, document.RootID, 0))

	root, err := e.editor.Node(pageID, document.RootID)
	require.NoError(t, err)
	assert.Equal(t, []string{inner, outer}, root.Nodes)
}

func TestEditor_UndoRedo(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pageID := e.page(t, "Home")

	hero, err := e.editor.CreateNode(ctx, pageID, "Hero", nil, "", -1)
	require.NoError(t, err)
	require.NoError(t, e.editor.Save(ctx, pageID, "add hero"))

	require.NoError(t, e.editor.Undo(ctx, pageID))
	doc, err := e.editor.Document(pageID)
	require.NoError(t, err)
	assert.Len(t, doc, 1)
	stored, err := e.sites.GetPage(pageID)
	require.NoError(t, err)
	assert.Len(t, stored.Data, 1, "undo persists the restored document")

	assert.ErrorIs(t, e.editor.Undo(ctx, pageID), storage.ErrNoHistory)

	require.NoError(t, e.editor.Redo(ctx, pageID))
	_, err = e.editor.Node(pageID, hero)
	assert.NoError(t, err)
	assert.ErrorIs(t, e.editor.Redo(ctx, pageID), storage.ErrNoHistory)
}

func TestEditor_InjectBlockWithoutRootEntry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pageID := e.page(t, "Home")

	_, err := e.blocks.SaveBlock(ctx, "orph", "Orphan hero", document.Serialized{
		"X": sn("Hero", "gone"),
	})
	require.NoError(t, err)

	res, err := e.editor.InjectBlock(ctx, pageID, "orph", "", 0)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, injector.Done, res.State)

	root, err := e.editor.Node(pageID, document.RootID)
	require.NoError(t, err)
	assert.Equal(t, []string{res.RootID}, root.Nodes)
	hero, err := e.editor.Node(pageID, res.RootID)
	require.NoError(t, err)
	assert.Equal(t, "Hero", hero.Type)
	assert.Equal(t, document.RootID, hero.Parent)
}

func TestEditor_RedoBrokenSnapshotKeepsPosition(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pageID := e.page(t, "Home")

	_, err := e.editor.CreateNode(ctx, pageID, "Hero", nil, "", -1)
	require.NoError(t, err)
	require.NoError(t, e.editor.Save(ctx, pageID, "add hero"))

	_, err = e.history.Push(pageID, "broken", "{not json")
	require.NoError(t, err)
	saved, err := e.history.Undo(pageID)
	require.NoError(t, err)

	before, err := e.editor.Document(pageID)
	require.NoError(t, err)

	require.Error(t, e.editor.Redo(ctx, pageID))

	tree, err := e.editor.History(pageID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, tree.CurrentID, "failed redo does not move the history pointer")
	after, err := e.editor.Document(pageID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEditor_InjectBlock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pageID := e.page(t, "Home")
	_, err := e.blocks.SaveBlock(ctx, "hero", "Hero", heroBlock())
	require.NoError(t, err)

	first, err := e.editor.CreateNode(ctx, pageID, "Text", nil, "", -1)
	require.NoError(t, err)

	res, err := e.editor.InjectBlock(ctx, pageID, "hero", "", 0)
	require.NoError(t, err)
	require.Equal(t, injector.Done, res.State, "err: %v", res.Err)

	root, err := e.editor.Node(pageID, document.RootID)
	require.NoError(t, err)
	assert.Equal(t, []string{res.RootID, first}, root.Nodes)

	hero, err := e.editor.Node(pageID, res.RootID)
	require.NoError(t, err)
	assert.Equal(t, "Hero", hero.Type)
	assert.Equal(t, "New season", hero.Props.Text("title"))

	settled := e.events.Named(service.EventInjectionSettled)
	require.Len(t, settled, 1)
	assert.Equal(t, "done", settled[0].Data.(map[string]any)["state"])
}

func TestEditor_InjectMissingBlock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pageID := e.page(t, "Home")

	res, err := e.editor.InjectBlock(ctx, pageID, "nope", "", -1)
	require.NoError(t, err)
	assert.Equal(t, injector.Failed, res.State)

	doc, err := e.editor.Document(pageID)
	require.NoError(t, err)
	assert.Len(t, doc, 1, "placeholder removed")

	settled := e.events.Named(service.EventInjectionSettled)
	require.Len(t, settled, 1)
	assert.Contains(t, settled[0].Data.(map[string]any)["error"], "block-not-found")
}

func TestEditor_InjectUnderLeafFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pageID := e.page(t, "Home")
	text, err := e.editor.CreateNode(ctx, pageID, "Text", nil, "", -1)
	require.NoError(t, err)

	_, err = e.editor.InjectBlock(ctx, pageID, "hero", text, -1)
	assert.Error(t, err)
}

func TestEditor_SaveNodeAsBlock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pageID := e.page(t, "Home")

	sec, err := e.editor.CreateNode(ctx, pageID, "Section", nil, "", -1)
	require.NoError(t, err)
	_, err = e.editor.CreateNode(ctx, pageID, "Heading", nil, sec, -1)
	require.NoError(t, err)

	b, err := e.editor.SaveNodeAsBlock(ctx, pageID, sec, "Feature")
	require.NoError(t, err)
	assert.Equal(t, "Feature", b.Name)
	assert.Len(t, b.Data, 3, "ROOT, section, heading")

	// The saved block can be injected straight back.
	other := e.page(t, "Other")
	res, err := e.editor.InjectBlock(ctx, other, b.ID, "", -1)
	require.NoError(t, err)
	require.Equal(t, injector.Done, res.State)
	n, err := e.editor.Node(other, res.RootID)
	require.NoError(t, err)
	assert.Equal(t, "Section", n.Type)
	assert.Len(t, n.Nodes, 1)
}

func TestEditor_UnknownPage(t *testing.T) {
	e := newEnv(t)
	_, err := e.editor.Document("nope")
	assert.Error(t, err)
}
