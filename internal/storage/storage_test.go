package storage_test

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitebuilder/internal/document"
	"sitebuilder/internal/domain"
	"sitebuilder/internal/prop"
	"sitebuilder/internal/storage"
)

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "builder.db"), filepath.Join(dir, "data"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sample() document.Serialized {
	return document.Serialized{
		"ROOT": node("Container", "", "h"),
		"h":    node("Hero", "ROOT"),
	}
}

// node fills every collection so values survive a JSON round trip unchanged.
func node(typ, parent string, children ...string) document.SerializedNode {
	if children == nil {
		children = []string{}
	}
	props := prop.Props{}
	if typ == "Hero" {
		props["title"] = prop.StringValue("Hi")
	}
	return document.SerializedNode{
		Type:        document.TypeRef{ResolvedName: typ},
		IsCanvas:    typ == "Container",
		Props:       props,
		Custom:      prop.Props{},
		Nodes:       children,
		LinkedNodes: map[string]string{},
		Parent:      parent,
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "builder.db")
	db, err := storage.New(path, dir)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = storage.New(path, dir)
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}

func TestSiteStore_PagesRoundTrip(t *testing.T) {
	s := storage.NewSiteStore(openDB(t))
	require.NoError(t, s.CreateSite(&domain.Site{ID: "s1", Name: "Shop"}))

	p := &domain.Page{ID: "p1", SiteID: "s1", Name: "Home", Slug: "home", Data: sample(), PublishCron: "@hourly"}
	require.NoError(t, s.CreatePage(p))
	require.NoError(t, s.CreatePage(&domain.Page{ID: "p2", SiteID: "s1", Name: "About", Slug: "about", Order: 1}))

	got, err := s.GetPage("p1")
	require.NoError(t, err)
	assert.Equal(t, sample(), got.Data)
	assert.Nil(t, got.PublishedAt)

	pages, err := s.ListPages("s1")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "home", pages[0].Slug)
	assert.Nil(t, pages[1].Data)

	scheduled, err := s.ListScheduledPages()
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, "p1", scheduled[0].ID)

	now := time.Now()
	require.NoError(t, s.MarkPublished("p1", now))
	got, err = s.GetPage("p1")
	require.NoError(t, err)
	require.NotNil(t, got.PublishedAt)
	assert.WithinDuration(t, now, *got.PublishedAt, time.Second)
}

func TestSiteStore_NotFound(t *testing.T) {
	s := storage.NewSiteStore(openDB(t))
	_, err := s.GetPage("nope")
	assert.ErrorIs(t, err, domain.ErrPageNotFound)
	_, err = s.GetSite("nope")
	assert.ErrorIs(t, err, domain.ErrSiteNotFound)
	assert.ErrorIs(t, s.SavePageData("nope", sample()), domain.ErrPageNotFound)
}

func TestSiteStore_SavePageData(t *testing.T) {
	s := storage.NewSiteStore(openDB(t))
	require.NoError(t, s.CreateSite(&domain.Site{ID: "s1", Name: "Shop"}))
	require.NoError(t, s.CreatePage(&domain.Page{ID: "p1", SiteID: "s1", Name: "Home", Slug: "home"}))

	require.NoError(t, s.SavePageData("p1", sample()))
	got, err := s.GetPage("p1")
	require.NoError(t, err)
	assert.Equal(t, "Hi", got.Data["h"].Props.Text("title"))
}

func TestBlockStore_SaveUpserts(t *testing.T) {
	s := storage.NewBlockStore(openDB(t))
	b := &domain.SavedBlock{ID: "hero", Name: "Hero", Data: sample()}
	require.NoError(t, s.SaveBlock(b))
	created := b.CreatedAt

	data := sample()
	data["h"].Props["title"] = prop.StringValue("Changed")
	require.NoError(t, s.SaveBlock(&domain.SavedBlock{ID: "hero", Name: "Hero v2", Data: data}))

	got, err := s.GetBlock("hero")
	require.NoError(t, err)
	assert.Equal(t, "Hero v2", got.Name)
	assert.Equal(t, "Changed", got.Data["h"].Props.Text("title"))
	assert.WithinDuration(t, created, got.CreatedAt, time.Millisecond)

	list, err := s.ListBlocks()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestBlockStore_Missing(t *testing.T) {
	s := storage.NewBlockStore(openDB(t))
	_, err := s.GetBlock("x")
	assert.ErrorIs(t, err, domain.ErrBlockNotFound)
	assert.ErrorIs(t, s.DeleteBlock("x"), domain.ErrBlockNotFound)
}

func TestHistoryStore_UndoRedo(t *testing.T) {
	h := storage.NewHistoryStore(openDB(t))

	_, err := h.Undo("p1")
	assert.ErrorIs(t, err, storage.ErrNoHistory)

	a, err := h.Push("p1", "initial", "A")
	require.NoError(t, err)
	b, err := h.Push("p1", "edit", "B")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ParentID)

	back, err := h.Undo("p1")
	require.NoError(t, err)
	assert.Equal(t, "A", back.Snapshot)
	_, err = h.Undo("p1")
	assert.ErrorIs(t, err, storage.ErrNoHistory)

	fwd, err := h.Redo("p1")
	require.NoError(t, err)
	assert.Equal(t, "B", fwd.Snapshot)
	_, err = h.Redo("p1")
	assert.ErrorIs(t, err, storage.ErrNoHistory)
}

func TestHistoryStore_TargetsDoNotMove(t *testing.T) {
	h := storage.NewHistoryStore(openDB(t))
	a, err := h.Push("p1", "initial", "A")
	require.NoError(t, err)
	b, err := h.Push("p1", "edit", "B")
	require.NoError(t, err)

	prev, err := h.UndoTarget("p1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, prev.ID)
	tree, err := h.LoadTree("p1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, tree.CurrentID)

	_, err = h.RedoTarget("p1")
	assert.ErrorIs(t, err, storage.ErrNoHistory)

	require.NoError(t, h.GoTo("p1", a.ID))
	next, err := h.RedoTarget("p1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, next.ID)
	tree, err = h.LoadTree("p1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, tree.CurrentID)
}

func TestHistoryStore_Prunes(t *testing.T) {
	h := storage.NewHistoryStore(openDB(t))
	for i := 0; i < storage.MaxHistoryNodes+5; i++ {
		_, err := h.Push("p1", "edit", fmt.Sprintf("S%d", i))
		require.NoError(t, err)
	}
	tree, err := h.LoadTree("p1")
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.Len(t, tree.Nodes, storage.MaxHistoryNodes)

	roots := 0
	for _, n := range tree.Nodes {
		if n.ParentID == "" {
			roots++
		}
	}
	assert.Equal(t, 1, roots, "pruning reattaches children")

	cur, err := h.Undo("p1")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("S%d", storage.MaxHistoryNodes+3), cur.Snapshot)
}

func TestDataSourceStore_CRUD(t *testing.T) {
	s := storage.NewDataSourceStore(openDB(t))
	ds := &domain.DataSource{ID: "d1", Name: "catalog", Driver: domain.DatabaseDriverSQLite, Host: "/tmp/c.db", ExtraJSON: "{}"}
	require.NoError(t, s.CreateDataSource(ds))

	ds.Name = "products"
	require.NoError(t, s.UpdateDataSource(ds))
	got, err := s.GetDataSource("d1")
	require.NoError(t, err)
	assert.Equal(t, "products", got.Name)

	require.NoError(t, s.DeleteDataSource("d1"))
	_, err = s.GetDataSource("d1")
	assert.ErrorIs(t, err, domain.ErrDataSourceNotFound)
}
