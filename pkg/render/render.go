// Package render formats result snapshots for terminals, logs and machines.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dkoosis/kind2run/pkg/outcome"
	"github.com/dkoosis/kind2run/pkg/result"
)

// Renderer converts a snapshot to formatted output.
type Renderer interface {
	Render(snap result.Snapshot) string
}

// ByName returns the renderer for a --format value.
func ByName(format string, theme Theme, width int) (Renderer, error) {
	switch format {
	case "", "terminal":
		return NewTerminal(theme, width), nil
	case "plain":
		return NewPlain(), nil
	case "json":
		return NewJSON(), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want terminal, plain or json)", format)
	}
}

func seconds(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64) + "s"
}

func elapsed(d time.Duration) string {
	return seconds(d.Seconds())
}

// details is the one-line summary shown after a property name.
func details(p result.PropertyResult) string {
	var parts []string
	add := func(format string, args ...any) { parts = append(parts, fmt.Sprintf(format, args...)) }

	switch v := p.Property.(type) {
	case outcome.Valid:
		add("k=%d", v.K)
		if v.Source != "" {
			add("source=%s", v.Source)
		}
		add("runtime=%s", seconds(v.Runtime))
	case outcome.Invalid:
		if v.Source != "" {
			add("source=%s", v.Source)
		}
		add("runtime=%s", seconds(v.Runtime))
		add("length=%d", v.Counterexample.Length)
	case outcome.Unknown:
		add("true_for=%d", v.TrueFor)
		add("runtime=%s", seconds(v.Runtime))
	case outcome.Inconsistent:
		add("k=%d", v.K)
		if v.Source != "" {
			add("source=%s", v.Source)
		}
		add("runtime=%s", seconds(v.Runtime))
	case nil:
		if p.Status() == outcome.StatusWorking {
			add("progress=%d", p.BaseProgress)
		}
	}
	return strings.Join(parts, " ")
}

// timeline renders a signal as instant=value pairs.
func timeline(s outcome.Signal) string {
	parts := make([]string, len(s.Steps))
	for i, st := range s.Steps {
		parts[i] = strconv.Itoa(st.Instant) + "=" + st.Value.String()
	}
	return strings.Join(parts, " ")
}

// functionRow renders one row of a function table as f(a, b) = r.
func functionRow(name string, row outcome.Row) string {
	in := make([]string, len(row.Inputs))
	for i, v := range row.Inputs {
		in[i] = v.String()
	}
	return fmt.Sprintf("%s(%s) = %s", name, strings.Join(in, ", "), row.Output)
}

// summaryOrder fixes the order of status tallies in summary lines.
var summaryOrder = []outcome.Status{
	outcome.StatusValid,
	outcome.StatusFalsified,
	outcome.StatusUnknown,
	outcome.StatusInconsistent,
	outcome.StatusWorking,
	outcome.StatusWaiting,
}
