package prop

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Props is the property bag of a node.
type Props map[string]Value

// FromMap converts loosely typed values (decoded JSON, YAML, tool arguments).
func FromMap(m map[string]any) (Props, error) {
	p := make(Props, len(m))
	for k, raw := range m {
		v, err := Of(raw)
		if err != nil {
			return nil, fmt.Errorf("prop %q: %w", k, err)
		}
		p[k] = v
	}
	return p, nil
}

// Clone returns an independent copy. A nil Props clones to an empty one.
func (p Props) Clone() Props {
	out := make(Props, len(p))
	for k, v := range p {
		if len(v.raw) > 0 {
			v.raw = append(json.RawMessage(nil), v.raw...)
		}
		out[k] = v
	}
	return out
}

// Merge returns a copy of p overlaid with every key of over.
func (p Props) Merge(over Props) Props {
	out := p.Clone()
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Keys returns the property names in sorted order.
func (p Props) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p Props) Equal(o Props) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Text returns the string value of name, or "" when absent or not a string.
func (p Props) Text(name string) string {
	s, _ := p[name].AsString()
	return s
}

// Map converts the props back into plain Go values.
func (p Props) Map() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		var decoded any
		if err := v.Decode(&decoded); err == nil {
			out[k] = decoded
		}
	}
	return out
}
