package document_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitebuilder/internal/document"
	"sitebuilder/internal/prop"
	"sitebuilder/internal/resolver"
)

func sampleDoc(t *testing.T) *document.Document {
	t.Helper()
	d := newDoc(t)
	sec, err := d.CreateNode("Section", prop.Props{"background": prop.StringValue("#eee")})
	require.NoError(t, err)
	_, err = d.CreateNode("Heading", prop.Props{"text": prop.StringValue(`Say "hi"`)}, document.Under(sec, -1))
	require.NoError(t, err)
	cols, err := d.CreateNode("Columns", nil)
	require.NoError(t, err)
	left := mustNode(t, d, cols).LinkedNodes["left"]
	img, err := d.CreateNode("Image", prop.Props{"src": prop.StringValue("/a.png")}, document.Under(left, -1))
	require.NoError(t, err)
	require.NoError(t, d.SetCustomMetadata(img, func(p prop.Props) {
		tags, _ := prop.Of([]string{"hero", "wide"})
		p["tags"] = tags
	}))
	require.NoError(t, d.SetHidden(img, true))
	return d
}

func TestRoundTrip(t *testing.T) {
	d := sampleDoc(t)
	s := document.Serialize(d)

	back, dropped, err := document.Deserialize(resolver.Default(), s)
	require.NoError(t, err)
	assert.Empty(t, dropped)
	assert.True(t, d.Equal(back))
	assert.Equal(t, s, document.Serialize(back))
}

func TestRoundTrip_ThroughJSON(t *testing.T) {
	d := sampleDoc(t)
	data, err := json.Marshal(document.Serialize(d))
	require.NoError(t, err)

	s, err := document.ParseSerialized(data)
	require.NoError(t, err)
	back, _, err := document.Deserialize(resolver.Default(), s)
	require.NoError(t, err)
	assert.True(t, d.Equal(back))
}

func TestSerialize_WireShape(t *testing.T) {
	d := newDoc(t)
	id, err := d.CreateNode("Text", nil)
	require.NoError(t, err)

	data, err := json.Marshal(document.Serialize(d))
	require.NoError(t, err)

	var wire map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	root := wire[document.RootID]
	assert.Nil(t, root["parent"])
	assert.Equal(t, map[string]any{"resolvedName": "Container"}, root["type"])
	assert.Equal(t, []any{id}, root["nodes"])
	assert.Equal(t, map[string]any{}, root["linkedNodes"])
	assert.Equal(t, document.RootID, wire[id]["parent"])
	assert.Equal(t, false, wire[id]["isCanvas"])
}

func TestParseSerialized_Errors(t *testing.T) {
	cases := map[string]string{
		"not an object": `[1,2]`,
		"duplicate id":  `{"ROOT":{"type":{"resolvedName":"Container"}},"ROOT":{"type":{"resolvedName":"Container"}}}`,
		"null node":     `{"ROOT":null}`,
		"bad prop":      `{"ROOT":{"props":{"a":nul}}}`,
		"trailing data": `{"ROOT":{}} {}`,
		"empty":         ``,
		"unterminated":  `{"ROOT":{}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := document.ParseSerialized([]byte(in))
			var serr *document.SerializationError
			assert.ErrorAs(t, err, &serr)
		})
	}
}

func node(typ, parent string, children ...string) document.SerializedNode {
	return document.SerializedNode{
		Type:     document.TypeRef{ResolvedName: typ},
		IsCanvas: typ == "Container" || typ == "Section",
		Props:    prop.Props{},
		Nodes:    children,
		Parent:   parent,
	}
}

func TestDeserialize_StructuralErrors(t *testing.T) {
	cases := map[string]document.Serialized{
		"missing root": {
			"a": node("Text", "ROOT"),
		},
		"root with parent": {
			"ROOT": node("Container", "a"),
			"a":    node("Text", "ROOT"),
		},
		"unknown root type": {
			"ROOT": node("Marquee", ""),
		},
		"dangling parent": {
			"ROOT": node("Container", ""),
			"a":    node("Text", "ghost"),
		},
		"dangling child": {
			"ROOT": node("Container", "", "ghost"),
		},
		"parent mismatch": {
			"ROOT": node("Container", "", "a", "b"),
			"a":    node("Section", "ROOT"),
			"b":    node("Text", "a"),
		},
		"listed twice": {
			"ROOT": node("Container", "", "a", "a"),
			"a":    node("Text", "ROOT"),
		},
		"second parentless": {
			"ROOT": node("Container", ""),
			"a":    node("Text", ""),
		},
		"unreachable cycle": {
			"ROOT": node("Container", ""),
			"a":    node("Section", "b", "b"),
			"b":    node("Section", "a", "a"),
		},
		"children under non-canvas": {
			"ROOT": node("Container", "", "a"),
			"a":    node("Text", "ROOT", "b"),
			"b":    node("Text", "a"),
		},
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := document.Deserialize(resolver.Default(), s)
			var serr *document.SerializationError
			require.ErrorAs(t, err, &serr)
		})
	}
}

func TestDeserialize_DropsUnknownTypes(t *testing.T) {
	s := document.Serialized{
		"ROOT": node("Container", "", "a", "b"),
		"a":    node("Section", "ROOT", "c"),
		"b":    node("Text", "ROOT"),
		"c":    node("Text", "a"),
	}
	s["a"] = document.SerializedNode{
		Type:     document.TypeRef{ResolvedName: "Carousel"},
		IsCanvas: true,
		Nodes:    []string{"c"},
		Parent:   "ROOT",
	}

	d, dropped, err := document.Deserialize(resolver.Default(), s)
	require.NoError(t, err)
	require.Len(t, dropped, 1)
	var missing *document.ResolverMissingError
	require.True(t, errors.As(dropped[0], &missing))
	assert.Equal(t, "a", missing.NodeID)
	assert.Equal(t, "Carousel", missing.Type)

	assert.False(t, d.Has("a"))
	assert.False(t, d.Has("c"))
	assert.Equal(t, []string{"b"}, mustNode(t, d, document.RootID).Nodes)
}

func TestSubtreeSerialized(t *testing.T) {
	d := sampleDoc(t)
	sec := mustNode(t, d, document.RootID).Nodes[0]

	s, err := document.SubtreeSerialized(d, sec)
	require.NoError(t, err)
	require.Len(t, s, 3)
	assert.Equal(t, []string{sec}, s[document.RootID].Nodes)
	assert.Equal(t, document.RootID, s[sec].Parent)

	_, _, err = document.Deserialize(resolver.Default(), s)
	require.NoError(t, err)

	_, err = document.SubtreeSerialized(d, "ghost")
	assert.Error(t, err)
}
