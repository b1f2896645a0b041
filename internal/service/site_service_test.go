package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitebuilder/internal/document"
	"sitebuilder/internal/domain"
	"sitebuilder/internal/service"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Home":            "home",
		"  Summer Sale! ": "summer-sale",
		"Über/Uns":        "ber-uns",
		"!!!":             "page",
	}
	for in, want := range cases {
		assert.Equal(t, want, service.Slugify(in), in)
	}
}

func TestCreatePage_UniqueSlugAndEmptyDocument(t *testing.T) {
	e := newEnv(t)
	site, err := e.sites.CreateSite("Shop")
	require.NoError(t, err)

	first, err := e.sites.CreatePage(site.ID, "Home", "")
	require.NoError(t, err)
	second, err := e.sites.CreatePage(site.ID, "Home", "")
	require.NoError(t, err)

	assert.Equal(t, "home", first.Slug)
	assert.Equal(t, "home-2", second.Slug)
	assert.Equal(t, 1, second.Order)

	stored, err := e.sites.GetPage(first.ID)
	require.NoError(t, err)
	require.Len(t, stored.Data, 1)
	assert.Equal(t, "Container", stored.Data[document.RootID].Type.ResolvedName)
}

func TestCreatePage_UnknownSite(t *testing.T) {
	e := newEnv(t)
	_, err := e.sites.CreatePage("nope", "Home", "")
	assert.ErrorIs(t, err, domain.ErrSiteNotFound)
}

func TestCreateSite_RequiresName(t *testing.T) {
	e := newEnv(t)
	_, err := e.sites.CreateSite("   ")
	assert.Error(t, err)
}

func TestSetPublishSchedule(t *testing.T) {
	e := newEnv(t)
	pageID := e.page(t, "Home")

	assert.Error(t, e.sites.SetPublishSchedule(pageID, "every tuesday"))
	require.NoError(t, e.sites.SetPublishSchedule(pageID, "0 6 * * *"))

	p, err := e.sites.GetPage(pageID)
	require.NoError(t, err)
	assert.Equal(t, "0 6 * * *", p.PublishCron)
}

func TestDeleteSite_RemovesPages(t *testing.T) {
	e := newEnv(t)
	pageID := e.page(t, "Home")
	p, err := e.sites.GetPage(pageID)
	require.NoError(t, err)

	// Opening the page records history that must go with it.
	_, err = e.editor.Document(pageID)
	require.NoError(t, err)
	e.editor.Close(pageID)

	require.NoError(t, e.sites.DeleteSite(p.SiteID))
	_, err = e.sites.GetPage(pageID)
	assert.ErrorIs(t, err, domain.ErrPageNotFound)
	tree, err := e.editor.History(pageID)
	require.NoError(t, err)
	assert.Nil(t, tree)
}

func TestDeletePage_Emits(t *testing.T) {
	e := newEnv(t)
	pageID := e.page(t, "Home")
	require.NoError(t, e.sites.DeletePage(context.Background(), pageID))
	assert.Len(t, e.events.Named(service.EventDocumentChanged), 1)
}
