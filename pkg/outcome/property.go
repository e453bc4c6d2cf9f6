// Package outcome holds the resolved verdicts the analyzer reports for a
// property. Verdicts are immutable once built: a refined verdict replaces the
// old one instead of modifying it.
package outcome

import (
	"slices"
	"strings"

	"github.com/dkoosis/kind2run/pkg/value"
)

// Status is the presentation status of a property.
type Status int

const (
	StatusWaiting Status = iota
	StatusWorking
	StatusValid
	StatusFalsified
	StatusUnknown
	StatusInconsistent
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "WAITING"
	case StatusWorking:
		return "WORKING"
	case StatusValid:
		return "VALID"
	case StatusFalsified:
		return "FALSIFIED"
	case StatusUnknown:
		return "UNKNOWN"
	case StatusInconsistent:
		return "INCONSISTENT"
	default:
		return "UNRECOGNIZED"
	}
}

// Terminal reports whether s belongs to a resolved property.
func (s Status) Terminal() bool {
	return s >= StatusValid
}

// Property is a resolved verdict. It is exactly one of Valid, Invalid,
// Unknown or Inconsistent.
type Property interface {
	property()
	Status() Status
	rename(fn func(string) string) Property
}

// Valid is a proved property.
type Valid struct {
	Source        string
	K             int
	Runtime       float64
	Invariants    []string
	IVC           []string   // set, sorted
	InvariantSets [][]string // set of lists
	IVCSets       [][]string // set of lists
	MIVCTimedOut  bool
}

// Invalid is a falsified property together with the trace falsifying it.
type Invalid struct {
	Source         string
	Counterexample Counterexample
	Conflicts      []string
	Runtime        float64
	Report         *string
}

// Unknown is a property neither proved nor falsified. TrueFor is the depth up
// to which it is known to hold.
type Unknown struct {
	TrueFor                 int
	InductiveCounterexample *Counterexample
	Runtime                 float64
}

// Inconsistent marks a property whose assumptions are contradictory.
type Inconsistent struct {
	Source  string
	K       int
	Runtime float64
}

func (Valid) property()        {}
func (Invalid) property()      {}
func (Unknown) property()      {}
func (Inconsistent) property() {}

func (Valid) Status() Status        { return StatusValid }
func (Invalid) Status() Status      { return StatusFalsified }
func (Unknown) Status() Status      { return StatusUnknown }
func (Inconsistent) Status() Status { return StatusInconsistent }

// NewValid normalizes the set-valued fields of v.
func NewValid(v Valid) Valid {
	v.IVC = value.SortedNames(v.IVC)
	v.InvariantSets = NormalizeSets(v.InvariantSets)
	v.IVCSets = NormalizeSets(v.IVCSets)
	return v
}

// RuntimeOf returns the runtime in seconds recorded on p.
func RuntimeOf(p Property) float64 {
	switch v := p.(type) {
	case Valid:
		return v.Runtime
	case Invalid:
		return v.Runtime
	case Unknown:
		return v.Runtime
	case Inconsistent:
		return v.Runtime
	default:
		return 0
	}
}

// SourceOf returns the engine that produced p, empty for Unknown.
func SourceOf(p Property) string {
	switch v := p.(type) {
	case Valid:
		return v.Source
	case Invalid:
		return v.Source
	case Inconsistent:
		return v.Source
	default:
		return ""
	}
}

// Rename returns a copy of p with every name passed through fn. Names mapped
// to the empty string are hidden and removed together with every element
// that depends on them.
func Rename(p Property, fn func(string) string) Property {
	if p == nil {
		return nil
	}
	return p.rename(fn)
}

func (v Valid) rename(fn func(string) string) Property {
	out := v
	out.Invariants = slices.Clone(v.Invariants)
	out.InvariantSets = cloneSets(v.InvariantSets)
	out.IVC = renameNames(v.IVC, fn)
	out.IVCSets = make([][]string, 0, len(v.IVCSets))
	for _, set := range v.IVCSets {
		out.IVCSets = append(out.IVCSets, renameNames(set, fn))
	}
	return NewValid(out)
}

func (v Invalid) rename(fn func(string) string) Property {
	out := v
	out.Counterexample = v.Counterexample.Rename(fn)
	out.Conflicts = renameNames(v.Conflicts, fn)
	return out
}

func (v Unknown) rename(fn func(string) string) Property {
	out := v
	if v.InductiveCounterexample != nil {
		cex := v.InductiveCounterexample.Rename(fn)
		out.InductiveCounterexample = &cex
	}
	return out
}

func (v Inconsistent) rename(func(string) string) Property { return v }

// renameNames maps names through fn, dropping hidden ones and preserving order.
func renameNames(names []string, fn func(string) string) []string {
	var out []string
	for _, n := range names {
		if r := fn(n); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// NormalizeSets de-duplicates a set of lists and orders it deterministically.
// Each inner list keeps its order.
func NormalizeSets(sets [][]string) [][]string {
	seen := make(map[string]bool, len(sets))
	out := make([][]string, 0, len(sets))
	for _, s := range sets {
		key := strings.Join(s, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		if s == nil {
			s = []string{}
		}
		out = append(out, slices.Clone(s))
	}
	slices.SortFunc(out, func(a, b []string) int {
		return value.Compare(strings.Join(a, "\x00"), strings.Join(b, "\x00"))
	})
	return out
}

func cloneSets(sets [][]string) [][]string {
	out := make([][]string, len(sets))
	for i, s := range sets {
		out[i] = slices.Clone(s)
	}
	return out
}
