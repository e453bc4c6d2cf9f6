package render

import (
	"fmt"
	"strings"

	"github.com/dkoosis/kind2run/pkg/outcome"
	"github.com/dkoosis/kind2run/pkg/result"
)

// Plain renders a snapshot as terse plain text: no ANSI codes, one property
// per line in declaration order, nested detail indented by two spaces.
type Plain struct{}

// NewPlain creates a Plain renderer.
func NewPlain() *Plain {
	return &Plain{}
}

// Render formats the snapshot.
func (p *Plain) Render(snap result.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "RUN %s %s %s\n", snap.Name, snap.State, elapsed(snap.Elapsed()))

	for _, pr := range snap.Properties {
		line := pr.Status().String() + " " + pr.Name
		if d := details(pr); d != "" {
			line += " " + d
		}
		sb.WriteString(line + "\n")
		p.writeBody(&sb, pr.Property)
	}

	counts := snap.Counts()
	sb.WriteString("SUMMARY")
	for _, s := range summaryOrder {
		fmt.Fprintf(&sb, " %s=%d", strings.ToLower(s.String()), counts[s])
	}
	sb.WriteString("\n")
	return sb.String()
}

func (p *Plain) writeBody(sb *strings.Builder, prop outcome.Property) {
	switch v := prop.(type) {
	case outcome.Valid:
		if len(v.Invariants) > 0 {
			sb.WriteString("  invariants: " + strings.Join(v.Invariants, ", ") + "\n")
		}
		if len(v.IVC) > 0 {
			sb.WriteString("  ivc: " + strings.Join(v.IVC, ", ") + "\n")
		}
		if v.MIVCTimedOut {
			sb.WriteString("  ivc search timed out\n")
		}
	case outcome.Invalid:
		if len(v.Conflicts) > 0 {
			sb.WriteString("  conflicts: " + strings.Join(v.Conflicts, ", ") + "\n")
		}
		writeCounterexample(sb, v.Counterexample)
		if v.Report != nil && *v.Report != "" {
			sb.WriteString("  report: " + *v.Report + "\n")
		}
	case outcome.Unknown:
		if v.InductiveCounterexample != nil {
			sb.WriteString("  inductive counterexample:\n")
			writeCounterexample(sb, *v.InductiveCounterexample)
		}
	}
}

func writeCounterexample(sb *strings.Builder, cex outcome.Counterexample) {
	for _, s := range cex.Signals {
		sb.WriteString("  " + s.Name + ": " + timeline(s) + "\n")
	}
	for _, f := range cex.Functions {
		for _, row := range f.Rows {
			sb.WriteString("  " + functionRow(f.Name, row) + "\n")
		}
	}
}
