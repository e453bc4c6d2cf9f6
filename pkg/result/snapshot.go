package result

import (
	"slices"
	"time"

	"github.com/dkoosis/kind2run/pkg/event"
	"github.com/dkoosis/kind2run/pkg/outcome"
)

// Snapshot is an immutable copy of a Result taken at one instant.
type Snapshot struct {
	ID         string
	Name       string
	State      State
	Properties []PropertyResult // declaration order
	Logs       []event.Log
	Started    time.Time
	Finished   time.Time
}

// Property looks up a property by name.
func (s Snapshot) Property(name string) (PropertyResult, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertyResult{}, false
}

// Counts tallies properties by status.
func (s Snapshot) Counts() map[outcome.Status]int {
	counts := make(map[outcome.Status]int)
	for _, p := range s.Properties {
		counts[p.Status()]++
	}
	return counts
}

// Elapsed is the wall time between Running and the terminal state, or up to
// now while the run is in flight.
func (s Snapshot) Elapsed() time.Duration {
	switch {
	case s.Started.IsZero():
		return 0
	case s.Finished.IsZero():
		return time.Since(s.Started)
	default:
		return s.Finished.Sub(s.Started)
	}
}

// Rename returns a projection of s with every property, signal, IVC entry,
// conflict and function table name mapped through fn. A name mapped to ""
// is hidden: it is dropped together with everything nested under it. When two
// property names map to the same name, the first in declaration order wins.
// s is not modified.
func Rename(s Snapshot, fn func(string) string) Snapshot {
	out := s
	out.Logs = slices.Clone(s.Logs)
	out.Properties = make([]PropertyResult, 0, len(s.Properties))

	seen := make(map[string]bool, len(s.Properties))
	for _, p := range s.Properties {
		name := fn(p.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		p.Name = name
		p.Property = outcome.Rename(p.Property, fn)
		out.Properties = append(out.Properties, p)
	}
	return out
}
