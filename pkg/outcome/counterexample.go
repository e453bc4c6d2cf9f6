package outcome

import (
	"slices"

	"github.com/dkoosis/kind2run/pkg/value"
)

// Counterexample is a finite trace falsifying a property.
type Counterexample struct {
	// Length is the number of steps in the trace.
	Length    int
	Signals   []Signal        // sorted by name
	Functions []FunctionTable // sorted by name
}

// Signal is the sparse timeline of one stream.
type Signal struct {
	Name  string
	Type  string // declared type as emitted
	Class string // input, output, local, ...
	Steps []Step // sorted by instant
}

// Step is the value of a signal at one instant.
type Step struct {
	Instant int
	Value   value.Value
}

// FunctionTable is the partial interpretation of an uninterpreted function.
type FunctionTable struct {
	Name   string
	Inputs []Param
	Output Param
	Rows   []Row
}

// Param is a typed function parameter.
type Param struct {
	Name string
	Type string
}

// Row maps concrete inputs to an output.
type Row struct {
	Inputs []value.Value
	Output value.Value
}

// NewCounterexample orders signals, steps and tables. When length is
// negative it is derived from the largest instant seen.
func NewCounterexample(length int, signals []Signal, functions []FunctionTable) Counterexample {
	var sigs []Signal
	maxInstant := -1
	for _, s := range signals {
		s.Steps = lastPerInstant(s.Steps)
		if n := len(s.Steps); n > 0 && s.Steps[n-1].Instant > maxInstant {
			maxInstant = s.Steps[n-1].Instant
		}
		sigs = append(sigs, s)
	}
	value.SortBy(sigs, func(s Signal) string { return s.Name })

	var fns []FunctionTable
	if len(functions) > 0 {
		fns = slices.Clone(functions)
	}
	value.SortBy(fns, func(f FunctionTable) string { return f.Name })

	if length < 0 {
		length = maxInstant + 1
	}
	return Counterexample{Length: length, Signals: sigs, Functions: fns}
}

// lastPerInstant orders steps by instant, keeping the last step reported for
// each instant.
func lastPerInstant(steps []Step) []Step {
	out := slices.Clone(steps)
	slices.SortStableFunc(out, func(a, b Step) int { return a.Instant - b.Instant })
	n := 0
	for i, st := range out {
		if n > 0 && out[n-1].Instant == st.Instant {
			out[n-1] = st
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}

// Signal returns the named signal.
func (c Counterexample) Signal(name string) (Signal, bool) {
	for _, s := range c.Signals {
		if s.Name == name {
			return s, true
		}
	}
	return Signal{}, false
}

// At returns the signal's value at instant i.
func (s Signal) At(i int) (value.Value, bool) {
	idx, found := slices.BinarySearchFunc(s.Steps, i, func(st Step, target int) int {
		return st.Instant - target
	})
	if !found {
		return nil, false
	}
	return s.Steps[idx].Value, true
}

// Rename maps signal and function names through fn. Hidden signals and
// tables are dropped; when two names collide the first in order wins.
func (c Counterexample) Rename(fn func(string) string) Counterexample {
	seen := make(map[string]bool, len(c.Signals))
	var sigs []Signal
	for _, s := range c.Signals {
		name := fn(s.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		s.Name = name
		sigs = append(sigs, s)
	}

	seenFn := make(map[string]bool, len(c.Functions))
	var fns []FunctionTable
	for _, f := range c.Functions {
		name := fn(f.Name)
		if name == "" || seenFn[name] {
			continue
		}
		seenFn[name] = true
		f.Name = name
		fns = append(fns, f)
	}
	return NewCounterexample(c.Length, sigs, fns)
}
