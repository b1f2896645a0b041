package document

import (
	"sort"

	"sitebuilder/internal/prop"
)

// CreateOption places a node built by CreateNode.
type CreateOption func(*createConfig)

type createConfig struct {
	parent string
	index  int
}

// Under attaches the created node to parentID at index (negative appends).
func Under(parentID string, index int) CreateOption {
	return func(c *createConfig) {
		c.parent = parentID
		c.index = index
	}
}

// CreateNode builds a node of componentType through the resolver (default
// props merged under initialProps, declared slots materialized) and attaches
// it, by default at the end of the root's children. Created nodes are always
// attached so the arena never holds unreachable entries.
func (d *Document) CreateNode(componentType string, initialProps prop.Props, opts ...CreateOption) (string, error) {
	cfg := createConfig{parent: RootID, index: -1}
	for _, opt := range opts {
		opt(&cfg)
	}

	tree, err := d.buildTree(componentType, initialProps)
	if err != nil {
		return "", err
	}
	return d.AddNodeTree(tree, cfg.parent, cfg.index)
}

// NewNodeTree builds a detached subtree for componentType without touching
// the document. Ids come from the document's generator.
func (d *Document) NewNodeTree(componentType string, initialProps prop.Props) (NodeTree, error) {
	return d.buildTree(componentType, initialProps)
}

func (d *Document) buildTree(componentType string, initialProps prop.Props) (NodeTree, error) {
	comp, err := d.resolver.Resolve(componentType)
	if err != nil {
		return NodeTree{}, &ResolverMissingError{Type: componentType}
	}

	root := &Node{
		ID:          d.newID(),
		Type:        comp.Name,
		Props:       comp.DefaultProps.Merge(initialProps),
		Custom:      prop.Props{},
		DisplayName: comp.DisplayName,
		IsCanvas:    comp.CanAcceptChildren,
		Nodes:       []string{},
		LinkedNodes: map[string]string{},
	}
	tree := NodeTree{RootNodeID: root.ID, Nodes: map[string]*Node{root.ID: root}}

	for _, slot := range sortedSlots(comp.Slots) {
		slotComp, err := d.resolver.Resolve(comp.Slots[slot])
		if err != nil {
			return NodeTree{}, &ResolverMissingError{Type: comp.Slots[slot]}
		}
		child := &Node{
			ID:          d.newID(),
			Type:        slotComp.Name,
			Props:       slotComp.DefaultProps,
			Custom:      prop.Props{},
			DisplayName: slotComp.DisplayName,
			IsCanvas:    slotComp.CanAcceptChildren,
			Nodes:       []string{},
			LinkedNodes: map[string]string{},
			Parent:      root.ID,
		}
		root.LinkedNodes[slot] = child.ID
		tree.Nodes[child.ID] = child
	}
	return tree, nil
}

// DeleteNode removes id and all of its descendants and unlinks id from its
// parent. The root cannot be deleted.
func (d *Document) DeleteNode(id string) error {
	if id == RootID {
		return structural("delete", id, "the root node cannot be deleted")
	}
	n, ok := d.nodes[id]
	if !ok {
		return structural("delete", id, "node not found")
	}
	parent, ok := d.nodes[n.Parent]
	if !ok {
		return structural("delete", id, "parent %q not found", n.Parent)
	}

	doomed := append([]string{id}, d.Descendants(id)...)

	unlink(parent, id)
	for _, victim := range doomed {
		delete(d.nodes, victim)
	}
	return nil
}

// SetProp runs mutate on a copy of the node's props and installs the copy
// once mutate returns.
func (d *Document) SetProp(id string, mutate func(prop.Props)) error {
	n, ok := d.nodes[id]
	if !ok {
		return structural("set-prop", id, "node not found")
	}
	if mutate == nil {
		return structural("set-prop", id, "no mutator given")
	}
	next := n.Props.Clone()
	mutate(next)
	n.Props = next
	return nil
}

// SetCustomMetadata is SetProp for the node's custom metadata bag.
func (d *Document) SetCustomMetadata(id string, mutate func(prop.Props)) error {
	n, ok := d.nodes[id]
	if !ok {
		return structural("set-custom", id, "node not found")
	}
	if mutate == nil {
		return structural("set-custom", id, "no mutator given")
	}
	next := n.Custom.Clone()
	mutate(next)
	n.Custom = next
	return nil
}

// SetHidden toggles a node's hidden flag.
func (d *Document) SetHidden(id string, hidden bool) error {
	n, ok := d.nodes[id]
	if !ok {
		return structural("set-hidden", id, "node not found")
	}
	if id == RootID && hidden {
		return structural("set-hidden", id, "the root cannot be hidden")
	}
	n.Hidden = hidden
	return nil
}

// AddNodeTree inserts tree under parentID at index (negative or past the
// end appends) and returns the subtree root id.
//
// Only nodes reachable from tree.RootNodeID are inserted; references to ids
// missing from tree.Nodes are pruned. The parent must be a canvas target,
// subtree ids must not collide with the document, every free-form child
// edge must satisfy the placement rule and every type must resolve.
func (d *Document) AddNodeTree(tree NodeTree, parentID string, index int) (string, error) {
	parent, ok := d.nodes[parentID]
	if !ok {
		return "", structural("add", parentID, "parent not found")
	}
	if !d.canHold(parent) {
		return "", structural("add", parentID, "parent %q does not accept children", parent.Type)
	}
	if _, ok := tree.Nodes[tree.RootNodeID]; !ok || tree.RootNodeID == "" {
		return "", structural("add", tree.RootNodeID, "subtree root missing from subtree nodes")
	}

	staged := make(map[string]*Node, len(tree.Nodes))
	var visit func(id, parent string) error
	visit = func(id, parentID string) error {
		if _, seen := staged[id]; seen {
			return structural("add", id, "node referenced more than once in subtree")
		}
		if _, exists := d.nodes[id]; exists {
			return structural("add", id, "id already present in document")
		}
		src := tree.Nodes[id]
		if src == nil {
			return structural("add", id, "nil node in subtree")
		}
		if !d.resolver.Has(src.Type) {
			return &StructuralError{Op: "add", NodeID: id, Reason: "unresolvable node",
				Err: &ResolverMissingError{NodeID: id, Type: src.Type}}
		}

		n := src.clone()
		n.ID = id
		n.Parent = parentID
		n.Nodes = n.Nodes[:0]
		staged[id] = n

		for _, child := range src.Nodes {
			if _, ok := tree.Nodes[child]; !ok {
				continue
			}
			if !n.IsCanvas || !d.resolver.CanAcceptChildren(n.Type) {
				return structural("add", id, "%q does not accept children", n.Type)
			}
			if err := visit(child, id); err != nil {
				return err
			}
			n.Nodes = append(n.Nodes, child)
		}
		for _, slot := range sortedSlots(src.LinkedNodes) {
			child := src.LinkedNodes[slot]
			if _, ok := tree.Nodes[child]; !ok {
				delete(n.LinkedNodes, slot)
				continue
			}
			if err := visit(child, id); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(tree.RootNodeID, parentID); err != nil {
		return "", err
	}

	for id, n := range staged {
		d.nodes[id] = n
	}
	parent.Nodes = insertAt(parent.Nodes, tree.RootNodeID, index)
	return tree.RootNodeID, nil
}

// MoveNode reattaches id as a free-form child of newParentID at index.
func (d *Document) MoveNode(id, newParentID string, index int) error {
	if id == RootID {
		return structural("move", id, "the root node cannot be moved")
	}
	n, ok := d.nodes[id]
	if !ok {
		return structural("move", id, "node not found")
	}
	target, ok := d.nodes[newParentID]
	if !ok {
		return structural("move", newParentID, "target parent not found")
	}
	if !d.canHold(target) {
		return structural("move", newParentID, "target %q does not accept children", target.Type)
	}
	if newParentID == id || d.isAncestor(id, newParentID) {
		return structural("move", id, "cannot move a node into its own subtree")
	}
	oldParent, ok := d.nodes[n.Parent]
	if !ok {
		return structural("move", id, "parent %q not found", n.Parent)
	}

	unlink(oldParent, id)
	target.Nodes = insertAt(target.Nodes, id, index)
	n.Parent = newParentID
	return nil
}

// IndexOf returns the position of id among its parent's free-form children,
// or -1 when id sits in a linked slot or is absent.
func (d *Document) IndexOf(id string) int {
	n, ok := d.nodes[id]
	if !ok {
		return -1
	}
	parent, ok := d.nodes[n.Parent]
	if !ok {
		return -1
	}
	for i, c := range parent.Nodes {
		if c == id {
			return i
		}
	}
	return -1
}

func unlink(parent *Node, id string) {
	kept := parent.Nodes[:0]
	for _, c := range parent.Nodes {
		if c != id {
			kept = append(kept, c)
		}
	}
	parent.Nodes = kept
	for slot, c := range parent.LinkedNodes {
		if c == id {
			delete(parent.LinkedNodes, slot)
		}
	}
}

func insertAt(ids []string, id string, index int) []string {
	if index < 0 || index >= len(ids) {
		return append(ids, id)
	}
	ids = append(ids, "")
	copy(ids[index+1:], ids[index:])
	ids[index] = id
	return ids
}

func sortedSlots[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
