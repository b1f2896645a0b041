package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitebuilder/internal/config"
	"sitebuilder/internal/secret"
	"sitebuilder/internal/service"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.DataDir = dir
	cfg.DBPath = filepath.Join(dir, "sitebuilder.db")
	cfg.Blocks.Dir = filepath.Join(dir, "blocks")
	cfg.Publish.OutDir = filepath.Join(dir, "public")
	cfg.Transpile.Rename = map[string]string{"Hero": "ShopHero"}
	cfg.Components = []config.ComponentConfig{{Name: "Banner", Canvas: true}}
	return cfg
}

func TestOpen_WiresServices(t *testing.T) {
	events := &service.MockEmitter{}
	a, err := Open(testConfig(t), WithEmitter(events), WithSecrets(secret.NewMemoryStore()))
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.Resolver.Has("Banner"), "configured components are registered")

	site, err := a.Sites.CreateSite("Shop")
	require.NoError(t, err)
	page, err := a.Sites.CreatePage(site.ID, "Home", "")
	require.NoError(t, err)

	_, err = a.Editor.CreateNode(context.Background(), page.ID, "Hero", nil, "", -1)
	require.NoError(t, err)
	require.NoError(t, a.Editor.Save(context.Background(), page.ID, ""))

	res, err := a.Publish.Publish(context.Background(), page.ID)
	require.NoError(t, err)
	static, err := os.ReadFile(res.StaticPath)
	require.NoError(t, err)
	assert.Contains(t, string(static), "<ShopHero ")
	assert.NotEmpty(t, events.Named(service.EventPagePublished))
}

func TestOpen_InvalidComponents(t *testing.T) {
	cfg := testConfig(t)
	cfg.Components = []config.ComponentConfig{{Name: "Tabs", Slots: map[string]string{"a": "Nope"}}}
	_, err := Open(cfg, WithSecrets(secret.NewMemoryStore()))
	assert.Error(t, err)
}
