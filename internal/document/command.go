package document

import "sitebuilder/internal/prop"

// Command is one UI-issued mutation. Apply is synchronous and atomic.
type Command interface {
	Apply(d *Document) error
}

// CreateNodeCmd creates a node of Type under Parent (root when empty).
// Apply stores the new id in CreatedID.
type CreateNodeCmd struct {
	Type      string
	Props     prop.Props
	Parent    string
	Index     int
	CreatedID string
}

func (c *CreateNodeCmd) Apply(d *Document) error {
	parent := c.Parent
	if parent == "" {
		parent = RootID
	}
	id, err := d.CreateNode(c.Type, c.Props, Under(parent, c.Index))
	if err != nil {
		return err
	}
	c.CreatedID = id
	return nil
}

type DeleteNodeCmd struct {
	ID string
}

func (c DeleteNodeCmd) Apply(d *Document) error { return d.DeleteNode(c.ID) }

// SetPropCmd overlays Props and then removes the Remove keys.
type SetPropCmd struct {
	ID     string
	Props  prop.Props
	Remove []string
}

func (c SetPropCmd) Apply(d *Document) error {
	return d.SetProp(c.ID, overlay(c.Props, c.Remove))
}

type SetCustomCmd struct {
	ID     string
	Custom prop.Props
	Remove []string
}

func (c SetCustomCmd) Apply(d *Document) error {
	return d.SetCustomMetadata(c.ID, overlay(c.Custom, c.Remove))
}

type SetHiddenCmd struct {
	ID     string
	Hidden bool
}

func (c SetHiddenCmd) Apply(d *Document) error { return d.SetHidden(c.ID, c.Hidden) }

type AddNodeTreeCmd struct {
	Tree   NodeTree
	Parent string
	Index  int
}

func (c AddNodeTreeCmd) Apply(d *Document) error {
	_, err := d.AddNodeTree(c.Tree, c.Parent, c.Index)
	return err
}

type MoveNodeCmd struct {
	ID     string
	Parent string
	Index  int
}

func (c MoveNodeCmd) Apply(d *Document) error { return d.MoveNode(c.ID, c.Parent, c.Index) }

// ApplyAll applies cmds in order and stops at the first error. Commands
// applied before the failing one stay applied.
func ApplyAll(d *Document, cmds ...Command) error {
	for _, c := range cmds {
		if err := c.Apply(d); err != nil {
			return err
		}
	}
	return nil
}

func overlay(set prop.Props, remove []string) func(prop.Props) {
	return func(p prop.Props) {
		for k, v := range set {
			p[k] = v
		}
		for _, k := range remove {
			delete(p, k)
		}
	}
}
