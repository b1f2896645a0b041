// Package prop holds the typed property values carried by document nodes.
package prop

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	// Raw is the passthrough variant: any JSON value the other kinds do not
	// cover (null today). The zero Value is a Raw null.
	Raw Kind = iota
	String
	Number
	Bool
	Structured // array or object, kept as canonical JSON
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "boolean"
	case Structured:
		return "structured"
	default:
		return "raw"
	}
}

var jsonNull = json.RawMessage("null")

// Value is a single property value. It encodes to and from the plain JSON
// value, never a wrapper object.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	raw  json.RawMessage
}

func StringValue(s string) Value { return Value{kind: String, str: s} }

func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// NumberValue returns a Number. NaN and infinities have no JSON form and
// collapse to a Raw null.
func NumberValue(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{kind: Raw, raw: jsonNull}
	}
	return Value{kind: Number, num: f}
}

// Of converts a Go value into a Value by round-tripping it through JSON.
func Of(v any) (Value, error) {
	switch val := v.(type) {
	case Value:
		return val, nil
	case string:
		return StringValue(val), nil
	case bool:
		return BoolValue(val), nil
	case float64:
		return NumberValue(val), nil
	case int:
		return NumberValue(float64(val)), nil
	case json.RawMessage:
		return FromJSON(val)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Value{}, fmt.Errorf("encode prop: %w", err)
	}
	return FromJSON(data)
}

// FromJSON decodes a single JSON value.
func FromJSON(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Value{}, fmt.Errorf("empty prop value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Value{}, fmt.Errorf("decode string prop: %w", err)
		}
		return StringValue(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return Value{}, fmt.Errorf("decode bool prop: %w", err)
		}
		return BoolValue(b), nil
	case '{', '[':
		canon, err := canonical(data)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: Structured, raw: canon}, nil
	case 'n':
		if !bytes.Equal(data, jsonNull) {
			return Value{}, fmt.Errorf("invalid prop value %q", data)
		}
		return Value{kind: Raw, raw: jsonNull}, nil
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return Value{}, fmt.Errorf("decode number prop: %w", err)
		}
		return NumberValue(f), nil
	}
}

// canonical re-encodes a JSON document so that equal structures produce
// byte-equal text: object keys sorted, no insignificant whitespace.
func canonical(data []byte) (json.RawMessage, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode structured prop: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode structured prop: %w", err)
	}
	return out, nil
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsString() (string, bool) { return v.str, v.kind == String }

func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == Number }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == Bool }

// JSON returns the JSON text of the value.
func (v Value) JSON() json.RawMessage {
	switch v.kind {
	case String:
		data, _ := json.Marshal(v.str)
		return data
	case Number:
		data, _ := json.Marshal(v.num)
		return data
	case Bool:
		return json.RawMessage(strconv.FormatBool(v.b))
	default:
		if len(v.raw) == 0 {
			return jsonNull
		}
		return v.raw
	}
}

// Decode unmarshals the value into target.
func (v Value) Decode(target any) error {
	return json.Unmarshal(v.JSON(), target)
}

func (v Value) MarshalJSON() ([]byte, error) {
	return v.JSON(), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := FromJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Equal reports whether both values hold the same variant and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case String:
		return v.str == o.str
	case Number:
		return v.num == o.num
	case Bool:
		return v.b == o.b
	default:
		return bytes.Equal(v.JSON(), o.JSON())
	}
}

// Attr renders the value as a component attribute named name.
func (v Value) Attr(name string) string {
	if v.kind == String && isPlainLiteral(v.str) {
		return name + `="` + v.str + `"`
	}
	return name + "={" + string(v.JSON()) + "}"
}

// isPlainLiteral reports whether s can sit between double quotes in a JSX
// attribute without escaping.
func isPlainLiteral(s string) bool {
	return !strings.ContainsAny(s, "\"\\{}&\n\r")
}
