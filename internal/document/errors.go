package document

import (
	"fmt"

	"sitebuilder/internal/resolver"
)

// StructuralError rejects a mutation whose target or parent is invalid.
// The document is left unchanged.
type StructuralError struct {
	Op     string // "create", "delete", "add", "move", "set-prop", ...
	NodeID string
	Reason string
	Err    error
}

func (e *StructuralError) Error() string {
	msg := fmt.Sprintf("%s %q: %s", e.Op, e.NodeID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StructuralError) Unwrap() error { return e.Err }

// ResolverMissingError reports a node whose component type is unknown to the
// resolver. It is node-local: callers drop the node and carry on.
type ResolverMissingError struct {
	NodeID string
	Type   string
}

func (e *ResolverMissingError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("unknown component type %q", e.Type)
	}
	return fmt.Sprintf("node %q: unknown component type %q", e.NodeID, e.Type)
}

func (e *ResolverMissingError) Is(target error) bool { return target == resolver.ErrNotFound }

// SerializationError reports malformed or incomplete serialized input.
type SerializationError struct {
	NodeID string
	Reason string
	Err    error
}

func (e *SerializationError) Error() string {
	msg := "invalid serialized document"
	if e.NodeID != "" {
		msg += fmt.Sprintf(": node %q", e.NodeID)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SerializationError) Unwrap() error { return e.Err }

func structural(op, id, format string, args ...any) *StructuralError {
	return &StructuralError{Op: op, NodeID: id, Reason: fmt.Sprintf(format, args...)}
}

func malformed(id, format string, args ...any) *SerializationError {
	return &SerializationError{NodeID: id, Reason: fmt.Sprintf(format, args...)}
}
