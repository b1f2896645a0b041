package service_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitebuilder/internal/dbclient"
	"sitebuilder/internal/document"
	"sitebuilder/internal/prop"
	"sitebuilder/internal/service"
	"sitebuilder/internal/transpile"
)

func TestPublish_WritesArtifacts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	site, err := e.sites.CreateSite("Shop")
	require.NoError(t, err)
	page, err := e.sites.CreatePage(site.ID, "Summer Sale", "")
	require.NoError(t, err)

	_, err = e.editor.CreateNode(ctx, page.ID, "Hero", nil, "", -1)
	require.NoError(t, err)
	require.NoError(t, e.editor.Save(ctx, page.ID, ""))

	res, err := e.publish.Publish(ctx, page.ID)
	require.NoError(t, err)
	assert.False(t, res.Diagnostics)
	assert.Equal(t, filepath.Join(e.dir, "public", site.ID, "summer-sale.tsx"), res.StaticPath)

	static, err := os.ReadFile(res.StaticPath)
	require.NoError(t, err)
	assert.Contains(t, string(static), "export default function SummerSale()")
	assert.Contains(t, string(static), "<ShopHero ")

	shell, err := os.ReadFile(res.ShellPath)
	require.NoError(t, err)
	assert.Contains(t, string(shell), "<title>Summer Sale</title>")
	assert.Contains(t, string(shell), transpile.DocumentElementID)

	stored, err := e.sites.GetPage(page.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PublishedAt)
	assert.Len(t, e.events.Named(service.EventPagePublished), 1)
	assert.Empty(t, e.publish.Running())
}

func TestPublishAll(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	site, err := e.sites.CreateSite("Shop")
	require.NoError(t, err)
	for _, name := range []string{"Home", "About", "Contact"} {
		_, err := e.sites.CreatePage(site.ID, name, "")
		require.NoError(t, err)
	}

	results, err := e.publish.PublishAll(ctx, site.ID)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	for _, r := range results {
		assert.FileExists(t, r.StaticPath)
		assert.FileExists(t, r.ShellPath)
	}
}

func TestPublish_UnknownPage(t *testing.T) {
	e := newEnv(t)
	_, err := e.publish.Publish(context.Background(), "nope")
	assert.Error(t, err)
}

func TestStartSchedule(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pageID := e.page(t, "Home")
	require.NoError(t, e.sites.SetPublishSchedule(pageID, "0 6 * * *"))

	n, err := e.publish.StartSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	e.publish.Stop(ctx)
}

var contextPayload = regexp.MustCompile(`(?s)<script id="builder-context" type="application/json">(.*?)</script>`)

func TestPublish_EmbedsDataSourceContext(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ds, err := e.sources.CreateDataSource(ctx, service.DataSourceInput{
		Name:   "catalog",
		Driver: "sqlite",
		Host:   e.dbPath,
	})
	require.NoError(t, err)

	pageID := e.page(t, "Products")
	_, err = e.editor.CreateNode(ctx, pageID, "DataTable", prop.Props{
		"dataSource": prop.StringValue(ds.ID),
		"table":      prop.StringValue("sites"),
	}, "", -1)
	require.NoError(t, err)
	require.NoError(t, e.editor.Save(ctx, pageID, ""))

	res, err := e.publish.Publish(ctx, pageID)
	require.NoError(t, err)
	shell, err := os.ReadFile(res.ShellPath)
	require.NoError(t, err)

	m := contextPayload.FindSubmatch(shell)
	require.NotNil(t, m)
	var blob struct {
		DataSources []service.SourceDescriptor `json:"dataSources"`
	}
	require.NoError(t, json.Unmarshal(m[1], &blob))
	require.Len(t, blob.DataSources, 1)
	assert.Equal(t, ds.ID, blob.DataSources[0].ID)
	assert.Empty(t, blob.DataSources[0].Error)

	var names []string
	for _, tbl := range blob.DataSources[0].Tables {
		names = append(names, tbl.Name)
	}
	assert.Contains(t, names, "sites")
}

func TestDescriptors_UnknownSource(t *testing.T) {
	e := newEnv(t)
	raw, err := e.sources.Descriptors(context.Background(), []string{"missing"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"error"`)
}

func TestDataSourceIDs(t *testing.T) {
	s := document.Serialized{
		"ROOT": sn("Container", "", "a", "b", "c"),
		"a":    {Type: document.TypeRef{ResolvedName: "DataTable"}, Parent: "ROOT", Props: prop.Props{"dataSource": prop.StringValue("db2")}},
		"b":    {Type: document.TypeRef{ResolvedName: "Form"}, Parent: "ROOT", Props: prop.Props{"dataSource": prop.StringValue("db1")}},
		"c":    {Type: document.TypeRef{ResolvedName: "DataTable"}, Parent: "ROOT", Props: prop.Props{"dataSource": prop.StringValue("db2")}},
	}
	assert.Equal(t, []string{"db1", "db2"}, service.DataSourceIDs(s))
}

func TestDataSourceService_CRUDAndQuery(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.sources.CreateDataSource(ctx, service.DataSourceInput{Name: "x", Driver: "oracle"})
	assert.Error(t, err)

	ds, err := e.sources.CreateDataSource(ctx, service.DataSourceInput{Name: "local", Driver: "SQLite", Host: e.dbPath, Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, e.sources.TestConnection(ctx, ds.ID))

	_, err = e.sites.CreateSite("Queried")
	require.NoError(t, err)
	rows, err := e.sources.Query(ctx, ds.ID, dbclient.QueryRequest{
		Table:   "sites",
		Filters: []dbclient.Filter{{Field: "name", Operator: dbclient.OpEq, Value: "Queried"}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Queried", rows[0]["name"])

	require.NoError(t, e.sources.UpdateDataSource(ctx, ds.ID, service.DataSourceInput{Name: "renamed", Driver: "sqlite", Host: e.dbPath}))
	got, err := e.sources.GetDataSource(ds.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	require.NoError(t, e.sources.DeleteDataSource(ctx, ds.ID))
	list, err := e.sources.ListDataSources()
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Len(t, e.events.Named(service.EventDataSourceChanged), 3)
}
