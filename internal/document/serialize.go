package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"sitebuilder/internal/prop"
	"sitebuilder/internal/resolver"
)

// TypeRef names the component of a serialized node.
type TypeRef struct {
	ResolvedName string `json:"resolvedName"`
}

// SerializedNode is the storable form of a Node. Parent is "" for ROOT and
// encodes as null.
type SerializedNode struct {
	Type        TypeRef
	IsCanvas    bool
	Props       prop.Props
	DisplayName string
	Custom      prop.Props
	Hidden      bool
	Nodes       []string
	LinkedNodes map[string]string
	Parent      string
}

type serializedNodeJSON struct {
	Type        TypeRef           `json:"type"`
	IsCanvas    bool              `json:"isCanvas"`
	Props       prop.Props        `json:"props"`
	DisplayName string            `json:"displayName"`
	Custom      prop.Props        `json:"custom"`
	Hidden      bool              `json:"hidden"`
	Nodes       []string          `json:"nodes"`
	LinkedNodes map[string]string `json:"linkedNodes"`
	Parent      *string           `json:"parent"`
}

func (n SerializedNode) MarshalJSON() ([]byte, error) {
	out := serializedNodeJSON{
		Type:        n.Type,
		IsCanvas:    n.IsCanvas,
		Props:       n.Props,
		DisplayName: n.DisplayName,
		Custom:      n.Custom,
		Hidden:      n.Hidden,
		Nodes:       n.Nodes,
		LinkedNodes: n.LinkedNodes,
	}
	if out.Props == nil {
		out.Props = prop.Props{}
	}
	if out.Custom == nil {
		out.Custom = prop.Props{}
	}
	if out.Nodes == nil {
		out.Nodes = []string{}
	}
	if out.LinkedNodes == nil {
		out.LinkedNodes = map[string]string{}
	}
	if n.Parent != "" {
		p := n.Parent
		out.Parent = &p
	}
	return json.Marshal(out)
}

func (n *SerializedNode) UnmarshalJSON(data []byte) error {
	var in serializedNodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*n = SerializedNode{
		Type:        in.Type,
		IsCanvas:    in.IsCanvas,
		Props:       in.Props,
		DisplayName: in.DisplayName,
		Custom:      in.Custom,
		Hidden:      in.Hidden,
		Nodes:       in.Nodes,
		LinkedNodes: in.LinkedNodes,
	}
	if in.Parent != nil {
		n.Parent = *in.Parent
	}
	return nil
}

// Serialized is the flat wire and storage form of a document, keyed by node
// id. The root entry is always keyed RootID.
type Serialized map[string]SerializedNode

// ParseSerialized decodes a serialized document. Unlike a plain
// json.Unmarshal it rejects input that repeats a node id.
func ParseSerialized(data []byte) (Serialized, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, &SerializationError{Reason: "unreadable input", Err: err}
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, malformed("", "expected a JSON object of nodes")
	}

	s := make(Serialized)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, &SerializationError{Reason: "unreadable node id", Err: err}
		}
		id, _ := tok.(string)
		if id == "" {
			return nil, malformed("", "empty node id")
		}
		if _, dup := s[id]; dup {
			return nil, malformed(id, "duplicate node id")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, &SerializationError{NodeID: id, Reason: "unreadable node", Err: err}
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil, malformed(id, "node is null")
		}
		var n SerializedNode
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, &SerializationError{NodeID: id, Reason: "invalid node", Err: err}
		}
		s[id] = n
	}
	if _, err := dec.Token(); err != nil {
		return nil, &SerializationError{Reason: "unterminated object", Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, malformed("", "trailing data after document")
	}
	return s, nil
}

// Clone returns a deep copy.
func (s Serialized) Clone() Serialized {
	out := make(Serialized, len(s))
	for id, n := range s {
		n.Props = n.Props.Clone()
		n.Custom = n.Custom.Clone()
		n.Nodes = append([]string{}, n.Nodes...)
		linked := make(map[string]string, len(n.LinkedNodes))
		for k, v := range n.LinkedNodes {
			linked[k] = v
		}
		n.LinkedNodes = linked
		out[id] = n
	}
	return out
}

// Serialize converts d into its storable form.
func Serialize(d *Document) Serialized {
	s := make(Serialized, len(d.nodes))
	d.walk(RootID, func(n *Node) {
		s[n.ID] = toSerialized(n)
	})
	return s
}

// SubtreeSerialized serializes the subtree at id re-rooted under a fresh
// ROOT of the resolver's root type, the shape saved blocks are stored in.
func SubtreeSerialized(d *Document, id string) (Serialized, error) {
	if id == RootID {
		return Serialize(d), nil
	}
	if _, ok := d.nodes[id]; !ok {
		return nil, structural("subtree", id, "node not found")
	}

	root := d.nodes[RootID]
	s := Serialized{
		RootID: {
			Type:        TypeRef{ResolvedName: root.Type},
			IsCanvas:    true,
			Props:       root.Props.Clone(),
			DisplayName: root.DisplayName,
			Custom:      prop.Props{},
			Nodes:       []string{id},
			LinkedNodes: map[string]string{},
		},
	}
	d.walk(id, func(n *Node) {
		sn := toSerialized(n)
		if n.ID == id {
			sn.Parent = RootID
		}
		s[n.ID] = sn
	})
	return s, nil
}

func toSerialized(n *Node) SerializedNode {
	c := n.clone()
	return SerializedNode{
		Type:        TypeRef{ResolvedName: c.Type},
		IsCanvas:    c.IsCanvas,
		Props:       c.Props,
		DisplayName: c.DisplayName,
		Custom:      c.Custom,
		Hidden:      c.Hidden,
		Nodes:       c.Nodes,
		LinkedNodes: c.LinkedNodes,
		Parent:      c.Parent,
	}
}

// Deserialize rebuilds a document from s.
//
// Structurally invalid input fails with a *SerializationError. Nodes whose
// component type the resolver does not know are dropped together with their
// descendants; each drop is reported as a *ResolverMissingError in the
// returned slice and the rest of the document is kept.
func Deserialize(r *resolver.Resolver, s Serialized, opts ...Option) (*Document, []error, error) {
	if err := validateSerialized(r, s); err != nil {
		return nil, nil, err
	}

	d := newEmpty(r, opts...)
	var dropped []error

	var build func(id, parent string) bool
	build = func(id, parent string) bool {
		sn := s[id]
		if !r.Has(sn.Type.ResolvedName) {
			dropped = append(dropped, &ResolverMissingError{NodeID: id, Type: sn.Type.ResolvedName})
			return false
		}
		n := &Node{
			ID:          id,
			Type:        sn.Type.ResolvedName,
			Props:       sn.Props.Clone(),
			Custom:      sn.Custom.Clone(),
			DisplayName: sn.DisplayName,
			Hidden:      sn.Hidden,
			IsCanvas:    sn.IsCanvas,
			Nodes:       make([]string, 0, len(sn.Nodes)),
			LinkedNodes: make(map[string]string, len(sn.LinkedNodes)),
			Parent:      parent,
		}
		d.nodes[id] = n
		for _, child := range sn.Nodes {
			if build(child, id) {
				n.Nodes = append(n.Nodes, child)
			}
		}
		for _, slot := range sortedSlots(sn.LinkedNodes) {
			child := sn.LinkedNodes[slot]
			if build(child, id) {
				n.LinkedNodes[slot] = child
			}
		}
		return true
	}
	build(RootID, "")

	return d, dropped, nil
}

func validateSerialized(r *resolver.Resolver, s Serialized) error {
	root, ok := s[RootID]
	if !ok {
		return malformed(RootID, "missing root entry")
	}
	if root.Parent != "" {
		return malformed(RootID, "root has parent %q", root.Parent)
	}
	if !r.Has(root.Type.ResolvedName) {
		return &SerializationError{NodeID: RootID, Reason: "unresolvable root",
			Err: &ResolverMissingError{NodeID: RootID, Type: root.Type.ResolvedName}}
	}

	for id, n := range s {
		if id == RootID {
			continue
		}
		if n.Parent == "" {
			return malformed(id, "second parentless node")
		}
		if _, ok := s[n.Parent]; !ok {
			return malformed(id, "dangling parent %q", n.Parent)
		}
	}

	seen := make(map[string]bool, len(s))
	var visit func(id string) error
	visit = func(id string) error {
		seen[id] = true
		n := s[id]
		if len(n.Nodes) > 0 && r.Has(n.Type.ResolvedName) &&
			(!n.IsCanvas || !r.CanAcceptChildren(n.Type.ResolvedName)) {
			return malformed(id, "%q does not accept children", n.Type.ResolvedName)
		}
		children := append([]string{}, n.Nodes...)
		for _, slot := range sortedSlots(n.LinkedNodes) {
			children = append(children, n.LinkedNodes[slot])
		}
		for _, child := range children {
			c, ok := s[child]
			if !ok {
				return malformed(id, "dangling child %q", child)
			}
			if seen[child] {
				return malformed(child, "node referenced more than once")
			}
			if c.Parent != id {
				return malformed(child, "listed under %q but parent is %q", id, c.Parent)
			}
			if err := visit(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(RootID); err != nil {
		return err
	}

	if len(seen) != len(s) {
		for id := range s {
			if !seen[id] {
				return malformed(id, "unreachable from root")
			}
		}
	}
	return nil
}

// MarshalIndent is a convenience for callers persisting or printing s.
func (s Serialized) MarshalIndent() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}
