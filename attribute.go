package gpkg

import (
	"fmt"
)

// ValueKind tags the type of an attribute column.
type ValueKind uint8

const (
	ValueString ValueKind = iota + 1
	ValueInteger
	ValueReal
	ValueBoolean
)

func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueInteger:
		return "integer"
	case ValueReal:
		return "real"
	case ValueBoolean:
		return "boolean"
	}
	return fmt.Sprintf("ValueKind(%d)", uint8(k))
}

// ParseValueKind converts a kind name, as produced by String, to a ValueKind.
func ParseValueKind(s string) (ValueKind, error) {
	for _, k := range []ValueKind{ValueString, ValueInteger, ValueReal, ValueBoolean} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, invalid("value kind", s, ErrAttributeKind)
}

// Normalize checks v against k and returns it in canonical form: string,
// int64, float64 or bool. A nil value is a null and always accepted.
func (k ValueKind) Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch k {
	case ValueString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case ValueInteger:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int8:
			return int64(n), nil
		case int16:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case uint8:
			return int64(n), nil
		case uint16:
			return int64(n), nil
		case uint32:
			return int64(n), nil
		}
	case ValueReal:
		switch f := v.(type) {
		case float32:
			return float64(f), nil
		case float64:
			return f, nil
		}
	case ValueBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
	return nil, invalid(k.String(), fmt.Sprintf("%v (%T)", v, v), ErrAttributeKind)
}

// AttributeDescriptor names an attribute column and its value kind.
type AttributeDescriptor struct {
	Name string
	Kind ValueKind
}

// Schema is an ordered list of attribute columns.
type Schema []AttributeDescriptor

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, d := range s {
		if d.Name == name {
			return i
		}
	}
	return -1
}

// Attribute is a named value. Values are normalized by Schema.Normalize.
type Attribute struct {
	Name  string
	Value any
}

// Normalize checks every attribute against the schema and returns the
// attributes in canonical value form, in their original order.
func (s Schema) Normalize(attrs []Attribute) ([]Attribute, error) {
	out := make([]Attribute, len(attrs))
	for i, a := range attrs {
		idx := s.Index(a.Name)
		if idx < 0 {
			return nil, invalid("attribute", a.Name, ErrAttributeKind)
		}
		v, err := s[idx].Kind.Normalize(a.Value)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		out[i] = Attribute{Name: a.Name, Value: v}
	}
	return out, nil
}

// Feature pairs a geometry with its attributes.
type Feature struct {
	Geometry   Geometry
	Attributes []Attribute
}

// Attribute returns the value of the named attribute.
func (f Feature) Attribute(name string) (any, bool) {
	for _, a := range f.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}
