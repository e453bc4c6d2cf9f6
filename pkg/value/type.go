package value

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeKind distinguishes scalar from composite declared types.
type TypeKind int

const (
	ScalarType TypeKind = iota
	ArrayType
	RecordType
	TupleType
)

// Type is a parsed declared type. Scalar names are normalized.
type Type struct {
	Kind   TypeKind
	Name   string      // scalar name; empty means "infer from the literal"
	Elem   *Type       // array element type
	Fields []FieldType // record fields
	Elems  []Type      // tuple components
}

// FieldType names the type of one record field.
type FieldType struct {
	Name string
	Type Type
}

// ParseType parses a declared type string. Recognized forms:
//
//	int, bool, real, subrange [0,3] of int, enum {A, B}, Color
//	T^N                 array of T
//	{x: T1; y: T2}      record
//	[T1, T2]            tuple
func ParseType(declared string) Type {
	s := strings.TrimSpace(declared)
	if i := strings.LastIndex(s, "^"); i > 0 {
		if _, err := strconv.Atoi(strings.TrimSpace(s[i+1:])); err == nil {
			elem := ParseType(s[:i])
			return Type{Kind: ArrayType, Elem: &elem}
		}
	}
	switch {
	case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
		var fields []FieldType
		for _, part := range splitTopLevel(s[1:len(s)-1], ";,") {
			name, typ, ok := strings.Cut(part, ":")
			if !ok {
				continue
			}
			fields = append(fields, FieldType{Name: strings.TrimSpace(name), Type: ParseType(typ)})
		}
		return Type{Kind: RecordType, Fields: fields}
	case strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"):
		var elems []Type
		for _, part := range splitTopLevel(s[1:len(s)-1], ",") {
			elems = append(elems, ParseType(part))
		}
		return Type{Kind: TupleType, Elems: elems}
	}
	return Type{Kind: ScalarType, Name: NormalizeType(s)}
}

// splitTopLevel splits s on any of seps outside brackets and braces.
func splitTopLevel(s, seps string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch {
		case r == '{' || r == '[' || r == '(':
			depth++
		case r == '}' || r == ']' || r == ')':
			depth--
		case depth == 0 && strings.ContainsRune(seps, r):
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		parts = append(parts, s[start:])
	}
	return parts
}

func (t Type) field(name string) Type {
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type
		}
	}
	return Type{}
}

func (t Type) component(i int) Type {
	if i < len(t.Elems) {
		return t.Elems[i]
	}
	return Type{}
}

// NodeKind identifies the shape of an undecoded value element.
type NodeKind int

const (
	LeafNode NodeKind = iota
	ArrayNode
	RecordNode
	TupleNode
)

// Node is a value element as it appeared on the wire, before typing.
type Node struct {
	Kind  NodeKind
	Text  string // leaf text
	Index int    // position within an enclosing array or tuple
	Name  string // field name within an enclosing record
	Items []Node
}

// DecodeNode types n according to t. Arrays and tuples must list their items
// with indices 0, 1, 2, ... in order.
func DecodeNode(t Type, n Node) (Value, error) {
	switch n.Kind {
	case LeafNode:
		if t.Kind != ScalarType {
			return nil, fmt.Errorf("%w: leaf %q for composite type", ErrShape, n.Text)
		}
		return Decode(t.Name, n.Text)
	case ArrayNode:
		elem := Type{}
		switch {
		case t.Kind == ArrayType && t.Elem != nil:
			elem = *t.Elem
		case t.Kind == ScalarType:
			// Some producers declare only the element type on array streams.
			elem = t
		}
		vals, err := decodeItems(n.Items, func(int) Type { return elem })
		if err != nil {
			return nil, err
		}
		return Array(vals), nil
	case TupleNode:
		vals, err := decodeItems(n.Items, t.component)
		if err != nil {
			return nil, err
		}
		return Tuple(vals), nil
	case RecordNode:
		fields := make([]Field, 0, len(n.Items))
		for _, item := range n.Items {
			v, err := DecodeNode(t.field(item.Name), item)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", item.Name, err)
			}
			fields = append(fields, Field{Name: item.Name, Value: v})
		}
		return NewRecord(fields...), nil
	default:
		return nil, fmt.Errorf("%w: unknown node kind %d", ErrShape, n.Kind)
	}
}

func decodeItems(items []Node, typeAt func(int) Type) ([]Value, error) {
	vals := make([]Value, 0, len(items))
	for i, item := range items {
		if item.Index != i {
			return nil, fmt.Errorf("%w: expected index %d, got %d", ErrArrayIndex, i, item.Index)
		}
		v, err := DecodeNode(typeAt(i), item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		vals = append(vals, v)
	}
	return vals, nil
}
