// Package resolver maps component type names to their construction defaults
// and placement rules.
package resolver

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"sitebuilder/internal/prop"
)

// ErrNotFound is matched by every *NotFoundError.
var ErrNotFound = errors.New("component not found")

// NotFoundError reports an unknown component type.
type NotFoundError struct {
	Type string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("component %q is not registered", e.Type)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Component describes one buildable component type.
type Component struct {
	Name        string
	DisplayName string
	// DefaultProps are merged under the caller's props when a node is created.
	DefaultProps prop.Props
	// CanAcceptChildren marks canvas components: only these hold free-form
	// children in their ordered node list.
	CanAcceptChildren bool
	// Slots maps a linked-slot name to the component type created for it when
	// a node of this type is created through the factory.
	Slots map[string]string
}

// Resolver is a registry of components. Safe for concurrent reads; Register
// is expected at startup.
type Resolver struct {
	mu         sync.RWMutex
	components map[string]Component
	root       string
}

// New creates a Resolver with the given components. The first canvas
// component becomes the root type unless SetRoot is called.
func New(components ...Component) *Resolver {
	r := &Resolver{components: make(map[string]Component, len(components))}
	for _, c := range components {
		r.Register(c)
	}
	return r
}

// Register adds or replaces a component.
func (r *Resolver) Register(c Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.DefaultProps == nil {
		c.DefaultProps = prop.Props{}
	}
	if c.DisplayName == "" {
		c.DisplayName = c.Name
	}
	r.components[c.Name] = c
	if r.root == "" && c.CanAcceptChildren {
		r.root = c.Name
	}
}

// SetRoot selects the component used for a document's ROOT node.
func (r *Resolver) SetRoot(name string) error {
	c, err := r.Resolve(name)
	if err != nil {
		return err
	}
	if !c.CanAcceptChildren {
		return fmt.Errorf("root component %q must accept children", name)
	}
	r.mu.Lock()
	r.root = name
	r.mu.Unlock()
	return nil
}

// Root returns the component type used for ROOT nodes.
func (r *Resolver) Root() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.root
}

// Resolve looks up a component. The returned DefaultProps are a copy.
func (r *Resolver) Resolve(name string) (Component, error) {
	r.mu.RLock()
	c, ok := r.components[name]
	r.mu.RUnlock()
	if !ok {
		return Component{}, &NotFoundError{Type: name}
	}
	c.DefaultProps = c.DefaultProps.Clone()
	return c, nil
}

// Has reports whether name is registered.
func (r *Resolver) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.components[name]
	return ok
}

// CanAcceptChildren reports the placement rule for name; unknown types
// accept nothing.
func (r *Resolver) CanAcceptChildren(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.components[name].CanAcceptChildren
}

// Names returns all registered component names, sorted.
func (r *Resolver) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.components))
	for n := range r.components {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Components returns all registered components sorted by name.
func (r *Resolver) Components() []Component {
	names := r.Names()
	out := make([]Component, 0, len(names))
	for _, n := range names {
		if c, err := r.Resolve(n); err == nil {
			out = append(out, c)
		}
	}
	return out
}
