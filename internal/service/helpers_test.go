package service_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sitebuilder/internal/document"
	"sitebuilder/internal/prop"
	"sitebuilder/internal/resolver"
	"sitebuilder/internal/secret"
	"sitebuilder/internal/service"
	"sitebuilder/internal/storage"
)

type env struct {
	dbPath  string
	dir     string
	events  *service.MockEmitter
	history *storage.HistoryStore
	sites   *service.SiteService
	blocks  *service.BlockService
	editor  *service.EditorService
	sources *service.DataSourceService
	publish *service.PublishService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "builder.db")
	db, err := storage.New(dbPath, filepath.Join(dir, "data"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r := resolver.Default()
	events := &service.MockEmitter{}
	siteStore := storage.NewSiteStore(db)
	history := storage.NewHistoryStore(db)

	e := &env{dbPath: dbPath, dir: dir, events: events, history: history}
	e.sites = service.NewSiteService(siteStore, history, r, events)
	e.blocks = service.NewBlockService(storage.NewBlockStore(db), r, events)
	e.editor = service.NewEditorService(siteStore, history, e.blocks, r, events)
	e.sources = service.NewDataSourceService(storage.NewDataSourceStore(db), secret.NewMemoryStore(), events)
	t.Cleanup(e.sources.Close)
	e.publish = service.NewPublishService(siteStore, e.sources, r, service.PublishOptions{
		OutDir: filepath.Join(dir, "public"),
		Rename: map[string]string{"Hero": "ShopHero"},
	}, events)
	return e
}

// page creates a site with one page and returns the page id.
func (e *env) page(t *testing.T, name string) string {
	t.Helper()
	site, err := e.sites.CreateSite("Shop")
	require.NoError(t, err)
	p, err := e.sites.CreatePage(site.ID, name, "")
	require.NoError(t, err)
	return p.ID
}

func sn(typ, parent string, children ...string) document.SerializedNode {
	return document.SerializedNode{
		Type:     document.TypeRef{ResolvedName: typ},
		IsCanvas: typ == "Container" || typ == "Section",
		Props:    prop.Props{},
		Nodes:    children,
		Parent:   parent,
	}
}

func heroBlock() document.Serialized {
	return document.Serialized{
		"ROOT": sn("Container", "", "x"),
		"x":    sn("Hero", "ROOT"),
	}
}
