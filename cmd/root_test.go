package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig writes a config rooted in a temp dir and returns its path.
func testConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("data_dir: %s\nlog_level: warn\ncomponents:\n  - name: Banner\n    canvas: true\n", dir)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path, dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestNewRootCmd_RegistersSubcommands(t *testing.T) {
	root := NewRootCmd()
	names := map[string]bool{}
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
		assert.NotNil(t, sub.RunE, "command %q must wire RunE", sub.Name())
	}
	for _, want := range []string{"serve", "mcp", "publish", "blocks", "components"} {
		assert.True(t, names[want], "missing %q subcommand", want)
	}
}

func TestComponentsCmd_JSON(t *testing.T) {
	cfg, _ := testConfig(t)
	out, err := run(t, "--config", cfg, "components", "--json")
	require.NoError(t, err)

	var infos []componentInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	byName := map[string]componentInfo{}
	for _, c := range infos {
		byName[c.Name] = c
	}
	assert.True(t, byName["Banner"].Canvas)
	assert.Contains(t, byName["Columns"].Slots, "left=Column")
}

func TestBlocksCmd_ImportListExportDelete(t *testing.T) {
	cfg, dir := testConfig(t)
	src := filepath.Join(dir, "cta.json")
	require.NoError(t, os.WriteFile(src, []byte(`{
		"ROOT": {"type": {"resolvedName": "Container"}, "isCanvas": true, "props": {}, "nodes": ["b"], "linkedNodes": {}},
		"b": {"type": {"resolvedName": "Button"}, "props": {"text": "Buy"}, "nodes": [], "linkedNodes": {}, "parent": "ROOT"}
	}`), 0644))

	out, err := run(t, "--config", cfg, "blocks", "import", src)
	require.NoError(t, err)
	assert.Contains(t, out, "imported cta")

	out, err = run(t, "--config", cfg, "blocks", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "cta")

	dst := filepath.Join(dir, "out", "cta.json")
	_, err = run(t, "--config", cfg, "blocks", "export", "cta", dst)
	require.NoError(t, err)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Button"`)

	_, err = run(t, "--config", cfg, "blocks", "delete", "cta")
	require.NoError(t, err)
	_, err = run(t, "--config", cfg, "blocks", "delete", "cta")
	assert.Error(t, err)
}

func TestPublishCmd_Arguments(t *testing.T) {
	cfg, _ := testConfig(t)

	_, err := run(t, "--config", cfg, "publish")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "--site"))

	_, err = run(t, "--config", cfg, "publish", "--site", "s1", "p1")
	assert.Error(t, err)

	_, err = run(t, "--config", cfg, "publish", "missing-page")
	assert.Error(t, err)
}

func TestRootCmd_MissingConfigFile(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "components")
	assert.Error(t, err)
}
