// Package value models the typed values that appear in counterexamples and
// decodes them from their textual wire form.
package value

import (
	"math/big"
	"strings"
)

// Value is a sealed interface over the value kinds a signal or function
// table cell can hold. Only the types in this package implement it.
type Value interface {
	value()
	String() string
}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Int is an arbitrary-precision integer. The zero value is 0.
type Int struct {
	n *big.Int
}

func (Int) value() {}

// NewInt copies n into a new Int.
func NewInt(n *big.Int) Int {
	if n == nil {
		return Int{}
	}
	return Int{n: new(big.Int).Set(n)}
}

// IntOf returns the Int for i.
func IntOf(i int64) Int {
	return Int{n: big.NewInt(i)}
}

// Big returns a copy of the underlying integer.
func (i Int) Big() *big.Int {
	if i.n == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(i.n)
}

func (i Int) String() string {
	if i.n == nil {
		return "0"
	}
	return i.n.String()
}

// Real is an exact rational. The zero value is 0.
type Real struct {
	r *big.Rat
}

func (Real) value() {}

// NewReal copies r into a new Real.
func NewReal(r *big.Rat) Real {
	if r == nil {
		return Real{}
	}
	return Real{r: new(big.Rat).Set(r)}
}

// RealOf returns num/denom as a Real. denom must be non-zero.
func RealOf(num, denom int64) Real {
	return Real{r: big.NewRat(num, denom)}
}

// Rat returns a copy of the underlying rational.
func (r Real) Rat() *big.Rat {
	if r.r == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(r.r)
}

// String renders integral reals without a denominator and others as num/denom.
func (r Real) String() string {
	if r.r == nil {
		return "0"
	}
	return r.r.RatString()
}

// Enum is an enumeration tag.
type Enum string

func (Enum) value() {}

func (e Enum) String() string { return string(e) }

// Array is an ordered list of values, index i at position i.
type Array []Value

func (Array) value() {}

func (a Array) String() string { return joinValues("[", a, "]") }

// Tuple is an ordered, heterogeneous list of values.
type Tuple []Value

func (Tuple) value() {}

func (t Tuple) String() string { return joinValues("(", t, ")") }

// Field is a named record component.
type Field struct {
	Name  string
	Value Value
}

// Record holds fields sorted by name using Compare.
type Record struct {
	fields []Field
}

func (Record) value() {}

// NewRecord builds a record from fields. Later duplicates replace earlier ones.
func NewRecord(fields ...Field) Record {
	byName := make(map[string]int, len(fields))
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if i, ok := byName[f.Name]; ok {
			out[i] = f
			continue
		}
		byName[f.Name] = len(out)
		out = append(out, f)
	}
	SortBy(out, func(f Field) string { return f.Name })
	return Record{fields: out}
}

// Fields returns a copy of the record's fields in sorted order.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Get returns the value of the named field.
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

func (r Record) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, f := range r.fields {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(f.Name)
		sb.WriteString(" = ")
		sb.WriteString(f.Value.String())
	}
	sb.WriteString("}")
	return sb.String()
}

func joinValues(open string, vals []Value, end string) string {
	var sb strings.Builder
	sb.WriteString(open)
	for i, v := range vals {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.String())
	}
	sb.WriteString(end)
	return sb.String()
}

// Equal reports whether a and b are structurally equal.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av.Big().Cmp(bv.Big()) == 0
	case Real:
		bv, ok := b.(Real)
		return ok && av.Rat().Cmp(bv.Rat()) == 0
	case Enum:
		bv, ok := b.(Enum)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		return ok && equalSlices(av, bv)
	case Tuple:
		bv, ok := b.(Tuple)
		return ok && equalSlices(av, bv)
	case Record:
		bv, ok := b.(Record)
		if !ok || len(av.fields) != len(bv.fields) {
			return false
		}
		for i := range av.fields {
			if av.fields[i].Name != bv.fields[i].Name || !Equal(av.fields[i].Value, bv.fields[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func equalSlices(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
