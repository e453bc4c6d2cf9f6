package render

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/dkoosis/kind2run/pkg/outcome"
	"github.com/dkoosis/kind2run/pkg/result"
)

const maxNameWidth = 50

// Terminal renders snapshots as styled terminal output via lipgloss.
type Terminal struct {
	theme Theme
	width int
}

// NewTerminal creates a terminal renderer with the given theme.
func NewTerminal(theme Theme, width int) *Terminal {
	if width <= 0 {
		width = 80
	}
	return &Terminal{theme: theme, width: width}
}

// Render formats the snapshot for terminal display.
func (t *Terminal) Render(snap result.Snapshot) string {
	sections := []string{t.renderHeader(snap), t.renderTable(snap)}
	for _, pr := range snap.Properties {
		if s := t.renderDetail(pr); s != "" {
			sections = append(sections, s)
		}
	}
	sections = append(sections, t.renderSummary(snap))
	return strings.Join(sections, "\n")
}

func (t *Terminal) renderHeader(snap result.Snapshot) string {
	header := t.theme.Title.Render(snap.Name)
	meta := fmt.Sprintf("  %s %s %s", snap.State, t.theme.Icons.Bullet, elapsed(snap.Elapsed()))
	return header + t.theme.Muted.Render(meta) + "\n"
}

func (t *Terminal) renderTable(snap result.Snapshot) string {
	if len(snap.Properties) == 0 {
		return t.theme.Muted.Render("  no properties") + "\n"
	}
	nameWidth := 0
	for _, pr := range snap.Properties {
		nameWidth = max(nameWidth, runewidth.StringWidth(pr.Name))
	}
	nameWidth = min(nameWidth, maxNameWidth)

	var sb strings.Builder
	for _, pr := range snap.Properties {
		status := pr.Status()
		icon, style := t.theme.Status(status)
		name := runewidth.Truncate(pr.Name, nameWidth, "...")

		line := "  " + style.Render(icon+" ") + runewidth.FillRight(name, nameWidth) + "  " +
			style.Render(runewidth.FillRight(status.String(), len("INCONSISTENT")))
		if d := details(pr); d != "" {
			line += "  " + t.theme.Muted.Render(d)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// Detail renders the evidence section for one property, or "" when the
// verdict carries none.
func (t *Terminal) Detail(pr result.PropertyResult) string {
	return t.renderDetail(pr)
}

// renderDetail shows the evidence behind a verdict: the certificate of a
// valid property or the trace of a falsified one.
func (t *Terminal) renderDetail(pr result.PropertyResult) string {
	var sb strings.Builder
	switch v := pr.Property.(type) {
	case outcome.Valid:
		if len(v.IVC) == 0 && len(v.Invariants) == 0 {
			return ""
		}
		sb.WriteString(t.theme.Bold.Render(pr.Name) + t.theme.Muted.Render(" certificate") + "\n")
		t.writeList(&sb, "invariants", v.Invariants)
		t.writeList(&sb, "ivc", v.IVC)
		if len(v.IVCSets) > 1 {
			sb.WriteString(t.theme.Muted.Render(fmt.Sprintf("    %d alternative cores", len(v.IVCSets))) + "\n")
		}
	case outcome.Invalid:
		sb.WriteString(t.theme.Bold.Render(pr.Name) + t.theme.Falsified.Render(" counterexample") + "\n")
		t.writeList(&sb, "conflicts", v.Conflicts)
		t.writeTrace(&sb, v.Counterexample)
		if v.Report != nil && *v.Report != "" {
			sb.WriteString("    " + t.theme.Muted.Render(*v.Report) + "\n")
		}
	case outcome.Unknown:
		if v.InductiveCounterexample == nil {
			return ""
		}
		sb.WriteString(t.theme.Bold.Render(pr.Name) + t.theme.Unknown.Render(" inductive counterexample") + "\n")
		t.writeTrace(&sb, *v.InductiveCounterexample)
	default:
		return ""
	}
	return sb.String()
}

func (t *Terminal) writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("    " + t.theme.Muted.Render(label+":") + " " + strings.Join(items, ", ") + "\n")
}

// writeTrace lays the counterexample out as a grid: one row per signal, one
// column per step.
func (t *Terminal) writeTrace(sb *strings.Builder, cex outcome.Counterexample) {
	if len(cex.Signals) == 0 && len(cex.Functions) == 0 {
		return
	}
	nameWidth := len("step")
	for _, s := range cex.Signals {
		nameWidth = max(nameWidth, runewidth.StringWidth(s.Name))
	}
	nameWidth = min(nameWidth, maxNameWidth)

	cells := make([][]string, len(cex.Signals))
	colWidth := make([]int, cex.Length)
	for i := range colWidth {
		colWidth[i] = runewidth.StringWidth(fmt.Sprint(i))
	}
	for r, s := range cex.Signals {
		cells[r] = make([]string, cex.Length)
		for _, st := range s.Steps {
			if st.Instant < 0 || st.Instant >= cex.Length {
				continue
			}
			v := st.Value.String()
			cells[r][st.Instant] = v
			colWidth[st.Instant] = max(colWidth[st.Instant], runewidth.StringWidth(v))
		}
	}

	header := "    " + runewidth.FillRight("step", nameWidth)
	for i, w := range colWidth {
		header += "  " + runewidth.FillLeft(fmt.Sprint(i), w)
	}
	sb.WriteString(t.theme.Muted.Render(runewidth.Truncate(header, t.width, "...")) + "\n")

	for r, s := range cex.Signals {
		row := "    " + runewidth.FillRight(runewidth.Truncate(s.Name, nameWidth, "..."), nameWidth)
		for i, w := range colWidth {
			row += "  " + runewidth.FillLeft(cells[r][i], w)
		}
		sb.WriteString(runewidth.Truncate(row, t.width, "...") + "\n")
	}
	for _, f := range cex.Functions {
		for _, row := range f.Rows {
			sb.WriteString("    " + functionRow(f.Name, row) + "\n")
		}
	}
}

func (t *Terminal) renderSummary(snap result.Snapshot) string {
	counts := snap.Counts()
	var parts []string
	for _, s := range summaryOrder {
		n := counts[s]
		if n == 0 {
			continue
		}
		icon, style := t.theme.Status(s)
		parts = append(parts, style.Render(fmt.Sprintf("%s %d %s", icon, n, strings.ToLower(s.String()))))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, t.theme.Muted.Render("  ")) + "\n"
}
