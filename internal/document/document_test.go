package document_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitebuilder/internal/document"
	"sitebuilder/internal/prop"
	"sitebuilder/internal/resolver"
)

func seqIDs() document.Option {
	n := 0
	return document.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("n%d", n)
	})
}

func newDoc(t *testing.T) *document.Document {
	t.Helper()
	return document.New(resolver.Default(), seqIDs())
}

func mustNode(t *testing.T, d *document.Document, id string) document.Node {
	t.Helper()
	n, ok := d.Node(id)
	require.True(t, ok, "node %s missing", id)
	return n
}

func TestNew_HasCanvasRoot(t *testing.T) {
	d := newDoc(t)
	root := mustNode(t, d, document.RootID)
	assert.Equal(t, "Container", root.Type)
	assert.True(t, root.IsCanvas)
	assert.Empty(t, root.Parent)
	assert.Equal(t, 1, d.Len())
}

func TestCreateNode_MergesDefaults(t *testing.T) {
	d := newDoc(t)
	id, err := d.CreateNode("Text", prop.Props{"text": prop.StringValue("Hello")})
	require.NoError(t, err)

	n := mustNode(t, d, id)
	assert.Equal(t, "Hello", n.Props.Text("text"))
	f, ok := n.Props["fontSize"].AsNumber()
	require.True(t, ok)
	assert.Equal(t, 16.0, f)
	assert.False(t, n.IsCanvas)
	assert.Equal(t, document.RootID, n.Parent)
	assert.Equal(t, []string{id}, mustNode(t, d, document.RootID).Nodes)
}

func TestCreateNode_UnknownType(t *testing.T) {
	d := newDoc(t)
	_, err := d.CreateNode("Marquee", nil)
	var missing *document.ResolverMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Marquee", missing.Type)
	assert.True(t, errors.Is(err, resolver.ErrNotFound))
	assert.Equal(t, 1, d.Len())
}

func TestCreateNode_MaterializesSlots(t *testing.T) {
	d := newDoc(t)
	id, err := d.CreateNode("Columns", nil)
	require.NoError(t, err)

	cols := mustNode(t, d, id)
	require.Len(t, cols.LinkedNodes, 2)
	left := mustNode(t, d, cols.LinkedNodes["left"])
	assert.Equal(t, "Column", left.Type)
	assert.True(t, left.IsCanvas)
	assert.Equal(t, id, left.Parent)

	// Slot nodes accept children even though Columns itself does not.
	_, err = d.CreateNode("Text", nil, document.Under(left.ID, -1))
	require.NoError(t, err)
	_, err = d.CreateNode("Text", nil, document.Under(id, -1))
	var serr *document.StructuralError
	assert.ErrorAs(t, err, &serr)
}

func TestCreateNode_UnderIndex(t *testing.T) {
	d := newDoc(t)
	a, _ := d.CreateNode("Text", nil)
	b, _ := d.CreateNode("Text", nil)
	c, err := d.CreateNode("Heading", nil, document.Under(document.RootID, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{a, c, b}, mustNode(t, d, document.RootID).Nodes)
	assert.Equal(t, 1, d.IndexOf(c))
}

func TestDeleteNode_Cascades(t *testing.T) {
	d := newDoc(t)
	a, err := d.CreateNode("Section", nil)
	require.NoError(t, err)
	b, err := d.CreateNode("Text", nil, document.Under(a, -1))
	require.NoError(t, err)

	require.NoError(t, d.DeleteNode(a))
	assert.False(t, d.Has(a))
	assert.False(t, d.Has(b))
	assert.Empty(t, mustNode(t, d, document.RootID).Nodes)
	assert.Equal(t, 1, d.Len())
}

func TestDeleteNode_LinkedSlot(t *testing.T) {
	d := newDoc(t)
	id, _ := d.CreateNode("Columns", nil)
	left := mustNode(t, d, id).LinkedNodes["left"]

	require.NoError(t, d.DeleteNode(left))
	cols := mustNode(t, d, id)
	_, still := cols.LinkedNodes["left"]
	assert.False(t, still)
	assert.Contains(t, cols.LinkedNodes, "right")
}

func TestDeleteNode_Rejections(t *testing.T) {
	d := newDoc(t)
	var serr *document.StructuralError

	require.ErrorAs(t, d.DeleteNode(document.RootID), &serr)
	assert.Equal(t, "delete", serr.Op)
	require.ErrorAs(t, d.DeleteNode("ghost"), &serr)
	assert.Equal(t, 1, d.Len())
}

func TestSetProp_MutatorOnCopy(t *testing.T) {
	d := newDoc(t)
	id, _ := d.CreateNode("Text", nil)
	before := mustNode(t, d, id)

	require.NoError(t, d.SetProp(id, func(p prop.Props) {
		p["text"] = prop.StringValue("changed")
		delete(p, "align")
	}))
	after := mustNode(t, d, id)
	assert.Equal(t, "changed", after.Props.Text("text"))
	assert.NotContains(t, after.Props, "align")
	assert.Equal(t, "Edit me", before.Props.Text("text"))

	var serr *document.StructuralError
	assert.ErrorAs(t, d.SetProp("ghost", func(prop.Props) {}), &serr)
}

func TestSetCustomMetadata(t *testing.T) {
	d := newDoc(t)
	id, _ := d.CreateNode("Image", nil)
	require.NoError(t, d.SetCustomMetadata(id, func(p prop.Props) {
		p["locked"] = prop.BoolValue(true)
	}))
	b, ok := mustNode(t, d, id).Custom["locked"].AsBool()
	assert.True(t, ok && b)
}

func TestAddNodeTree_Inserts(t *testing.T) {
	d := newDoc(t)
	first, _ := d.CreateNode("Text", nil)
	tree := document.NodeTree{
		RootNodeID: "s",
		Nodes: map[string]*document.Node{
			"s": {Type: "Section", IsCanvas: true, Nodes: []string{"t", "missing"}},
			"t": {Type: "Text", Props: prop.Props{"text": prop.StringValue("inside")}},
			"x": {Type: "Text"},
		},
	}
	id, err := d.AddNodeTree(tree, document.RootID, 0)
	require.NoError(t, err)
	assert.Equal(t, "s", id)

	assert.Equal(t, []string{"s", first}, mustNode(t, d, document.RootID).Nodes)
	s := mustNode(t, d, "s")
	assert.Equal(t, []string{"t"}, s.Nodes)
	assert.Equal(t, document.RootID, s.Parent)
	assert.Equal(t, "s", mustNode(t, d, "t").Parent)
	assert.False(t, d.Has("x"), "unreachable subtree entries are not inserted")
}

func TestAddNodeTree_IsAtomic(t *testing.T) {
	cases := map[string]struct {
		tree   document.NodeTree
		parent string
	}{
		"missing parent": {
			tree:   document.NodeTree{RootNodeID: "a", Nodes: map[string]*document.Node{"a": {Type: "Text"}}},
			parent: "ghost",
		},
		"missing root": {
			tree:   document.NodeTree{RootNodeID: "a", Nodes: map[string]*document.Node{"b": {Type: "Text"}}},
			parent: document.RootID,
		},
		"collision": {
			tree:   document.NodeTree{RootNodeID: document.RootID, Nodes: map[string]*document.Node{document.RootID: {Type: "Text"}}},
			parent: document.RootID,
		},
		"non-canvas child edge": {
			tree: document.NodeTree{RootNodeID: "a", Nodes: map[string]*document.Node{
				"a": {Type: "Text", Nodes: []string{"b"}},
				"b": {Type: "Text"},
			}},
			parent: document.RootID,
		},
		"cycle": {
			tree: document.NodeTree{RootNodeID: "a", Nodes: map[string]*document.Node{
				"a": {Type: "Section", IsCanvas: true, Nodes: []string{"b"}},
				"b": {Type: "Section", IsCanvas: true, Nodes: []string{"a"}},
			}},
			parent: document.RootID,
		},
		"unknown type": {
			tree: document.NodeTree{RootNodeID: "a", Nodes: map[string]*document.Node{
				"a": {Type: "Section", IsCanvas: true, Nodes: []string{"b"}},
				"b": {Type: "Marquee"},
			}},
			parent: document.RootID,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			d := newDoc(t)
			text, _ := d.CreateNode("Text", nil)
			before := document.Serialize(d)

			_, err := d.AddNodeTree(tc.tree, tc.parent, -1)
			var serr *document.StructuralError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, before, document.Serialize(d))

			// Text never accepts children, whatever the subtree.
			_, err = d.AddNodeTree(document.NodeTree{RootNodeID: "z", Nodes: map[string]*document.Node{"z": {Type: "Text"}}}, text, -1)
			assert.ErrorAs(t, err, &serr)
		})
	}
}

func TestAddNodeTree_UnknownTypeWrapsResolverMissing(t *testing.T) {
	d := newDoc(t)
	_, err := d.AddNodeTree(document.NodeTree{RootNodeID: "a", Nodes: map[string]*document.Node{"a": {Type: "Marquee"}}}, document.RootID, -1)
	var missing *document.ResolverMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "a", missing.NodeID)
}

func TestMoveNode(t *testing.T) {
	d := newDoc(t)
	sec, _ := d.CreateNode("Section", nil)
	inner, _ := d.CreateNode("Section", nil, document.Under(sec, -1))
	text, _ := d.CreateNode("Text", nil)

	require.NoError(t, d.MoveNode(text, inner, 0))
	assert.Equal(t, []string{sec}, mustNode(t, d, document.RootID).Nodes)
	assert.Equal(t, []string{text}, mustNode(t, d, inner).Nodes)
	assert.Equal(t, inner, mustNode(t, d, text).Parent)

	var serr *document.StructuralError
	assert.ErrorAs(t, d.MoveNode(sec, inner, -1), &serr, "into own descendant")
	assert.ErrorAs(t, d.MoveNode(sec, sec, -1), &serr, "into itself")
	assert.ErrorAs(t, d.MoveNode(document.RootID, sec, -1), &serr, "root")
	assert.ErrorAs(t, d.MoveNode(sec, text, -1), &serr, "non-canvas target")
	assert.Equal(t, sec, mustNode(t, d, inner).Parent)
}

func TestAcyclicAfterRandomOps(t *testing.T) {
	d := newDoc(t)
	var canvases []string
	canvases = append(canvases, document.RootID)
	for i := 0; i < 30; i++ {
		parent := canvases[i%len(canvases)]
		kind := "Text"
		if i%3 == 0 {
			kind = "Section"
		}
		id, err := d.CreateNode(kind, nil, document.Under(parent, -1))
		require.NoError(t, err)
		if kind == "Section" {
			canvases = append(canvases, id)
		}
	}
	for i := range canvases {
		for j := range canvases {
			_ = d.MoveNode(canvases[i], canvases[j], -1)
		}
	}

	d.Walk(func(n document.Node) {
		seen := map[string]bool{n.ID: true}
		for cur := n.Parent; cur != ""; {
			require.False(t, seen[cur], "cycle through %s", cur)
			seen[cur] = true
			p, ok := d.Node(cur)
			require.True(t, ok)
			cur = p.Parent
		}
	})
	assert.Len(t, d.IDs(), d.Len(), "every node reachable from root")
}

func TestSetHidden_RootStaysVisible(t *testing.T) {
	d := newDoc(t)
	var serr *document.StructuralError
	require.ErrorAs(t, d.SetHidden(document.RootID, true), &serr)
	assert.False(t, mustNode(t, d, document.RootID).Hidden)
	assert.NoError(t, d.SetHidden(document.RootID, false))
}

func TestApplyAll_StopsAtFirstError(t *testing.T) {
	d := newDoc(t)
	create := &document.CreateNodeCmd{Type: "Hero", Index: -1}
	err := document.ApplyAll(d,
		create,
		document.DeleteNodeCmd{ID: "ghost"},
		&document.CreateNodeCmd{Type: "Text", Index: -1},
	)
	require.Error(t, err)
	assert.NotEmpty(t, create.CreatedID)
	assert.Equal(t, 2, d.Len())
}

func TestCommands(t *testing.T) {
	d := newDoc(t)
	sec := &document.CreateNodeCmd{Type: "Section", Index: -1}
	txt := &document.CreateNodeCmd{Type: "Text", Index: -1}
	require.NoError(t, document.ApplyAll(d, sec, txt))

	require.NoError(t, document.ApplyAll(d,
		document.SetPropCmd{ID: txt.CreatedID, Props: prop.Props{"text": prop.StringValue("hi")}, Remove: []string{"align"}},
		document.SetCustomCmd{ID: txt.CreatedID, Custom: prop.Props{"note": prop.StringValue("x")}},
		document.SetHiddenCmd{ID: txt.CreatedID, Hidden: true},
		document.MoveNodeCmd{ID: txt.CreatedID, Parent: sec.CreatedID, Index: -1},
	))
	n := mustNode(t, d, txt.CreatedID)
	assert.Equal(t, "hi", n.Props.Text("text"))
	assert.NotContains(t, n.Props, "align")
	assert.Equal(t, "x", n.Custom.Text("note"))
	assert.True(t, n.Hidden)
	assert.Equal(t, sec.CreatedID, n.Parent)

	require.NoError(t, document.DeleteNodeCmd{ID: sec.CreatedID}.Apply(d))
	assert.Equal(t, 1, d.Len())
}
