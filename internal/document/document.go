// Package document implements the page-builder node tree: an arena of typed
// nodes keyed by id, the primitive mutations over it, and its serialized form.
//
// A Document is not safe for concurrent use. Callers serialize access (the
// editor service holds one mutex per open page); every operation either
// applies completely or leaves the document untouched.
package document

import (
	"github.com/google/uuid"

	"sitebuilder/internal/prop"
	"sitebuilder/internal/resolver"
)

// RootID is the id of every document's root node.
const RootID = "ROOT"

// Node is one entry of the tree. Structural links are ids into the owning
// document's arena, never pointers.
type Node struct {
	ID          string
	Type        string
	Props       prop.Props
	Custom      prop.Props
	DisplayName string
	Hidden      bool
	IsCanvas    bool
	Nodes       []string          // ordered free-form children
	LinkedNodes map[string]string // slot name -> child id
	Parent      string            // "" for the root
}

func (n *Node) clone() *Node {
	c := *n
	c.Props = n.Props.Clone()
	c.Custom = n.Custom.Clone()
	c.Nodes = append([]string{}, n.Nodes...)
	c.LinkedNodes = make(map[string]string, len(n.LinkedNodes))
	for k, v := range n.LinkedNodes {
		c.LinkedNodes[k] = v
	}
	return &c
}

// childIDs returns free-form children followed by linked children in slot
// name order.
func (n *Node) childIDs() []string {
	ids := append([]string{}, n.Nodes...)
	for _, slot := range sortedSlots(n.LinkedNodes) {
		ids = append(ids, n.LinkedNodes[slot])
	}
	return ids
}

// NodeTree is a detached subtree handed to AddNodeTree.
type NodeTree struct {
	RootNodeID string
	Nodes      map[string]*Node
}

// Document is the tree under edit.
type Document struct {
	resolver *resolver.Resolver
	nodes    map[string]*Node
	newID    func() string
}

// Option configures a Document.
type Option func(*Document)

// WithIDGenerator replaces the node id generator (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(d *Document) { d.newID = fn }
}

func newEmpty(r *resolver.Resolver, opts ...Option) *Document {
	d := &Document{
		resolver: r,
		nodes:    make(map[string]*Node),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// New returns a document holding only a ROOT node of the resolver's root type.
func New(r *resolver.Resolver, opts ...Option) *Document {
	d := newEmpty(r, opts...)
	root := &Node{
		ID:          RootID,
		Type:        r.Root(),
		Props:       prop.Props{},
		Custom:      prop.Props{},
		IsCanvas:    true,
		Nodes:       []string{},
		LinkedNodes: map[string]string{},
	}
	if c, err := r.Resolve(root.Type); err == nil {
		root.Props = c.DefaultProps
		root.DisplayName = c.DisplayName
	}
	d.nodes[RootID] = root
	return d
}

// Resolver returns the resolver the document validates against.
func (d *Document) Resolver() *resolver.Resolver { return d.resolver }

// RootID returns the id of the root node.
func (d *Document) RootID() string { return RootID }

// Len returns the number of nodes, root included.
func (d *Document) Len() int { return len(d.nodes) }

// Has reports whether id is in the document.
func (d *Document) Has(id string) bool {
	_, ok := d.nodes[id]
	return ok
}

// Node returns a copy of the node with the given id.
func (d *Document) Node(id string) (Node, bool) {
	n, ok := d.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n.clone(), true
}

// IDs returns every node id in pre-order from the root.
func (d *Document) IDs() []string {
	var ids []string
	d.walk(RootID, func(n *Node) { ids = append(ids, n.ID) })
	return ids
}

// Walk visits a copy of every node in pre-order from the root.
func (d *Document) Walk(fn func(Node)) {
	d.walk(RootID, func(n *Node) { fn(*n.clone()) })
}

// Descendants returns all nodes below id in pre-order, id excluded.
func (d *Document) Descendants(id string) []string {
	var ids []string
	d.walk(id, func(n *Node) {
		if n.ID != id {
			ids = append(ids, n.ID)
		}
	})
	return ids
}

func (d *Document) walk(id string, fn func(*Node)) {
	n, ok := d.nodes[id]
	if !ok {
		return
	}
	fn(n)
	for _, child := range n.childIDs() {
		d.walk(child, fn)
	}
}

// isAncestor reports whether anc lies on the parent chain of id.
func (d *Document) isAncestor(anc, id string) bool {
	for cur := id; cur != ""; {
		n, ok := d.nodes[cur]
		if !ok {
			return false
		}
		if n.Parent == anc {
			return true
		}
		cur = n.Parent
	}
	return false
}

// canHold applies the placement rule for free-form children.
func (d *Document) canHold(n *Node) bool {
	return n.IsCanvas && d.resolver.CanAcceptChildren(n.Type)
}

// Equal reports whether d and o hold the same nodes with the same props,
// metadata, child order, linked slots and parents.
func (d *Document) Equal(o *Document) bool {
	if len(d.nodes) != len(o.nodes) {
		return false
	}
	for id, a := range d.nodes {
		b, ok := o.nodes[id]
		if !ok || !nodeEqual(a, b) {
			return false
		}
	}
	return true
}

func nodeEqual(a, b *Node) bool {
	if a.ID != b.ID || a.Type != b.Type || a.DisplayName != b.DisplayName ||
		a.Hidden != b.Hidden || a.IsCanvas != b.IsCanvas || a.Parent != b.Parent {
		return false
	}
	if !a.Props.Equal(b.Props) || !a.Custom.Equal(b.Custom) {
		return false
	}
	if len(a.Nodes) != len(b.Nodes) || len(a.LinkedNodes) != len(b.LinkedNodes) {
		return false
	}
	for i := range a.Nodes {
		if a.Nodes[i] != b.Nodes[i] {
			return false
		}
	}
	for slot, id := range a.LinkedNodes {
		if b.LinkedNodes[slot] != id {
			return false
		}
	}
	return true
}
