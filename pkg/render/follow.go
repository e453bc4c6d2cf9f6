package render

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"

	"github.com/dkoosis/kind2run/pkg/outcome"
	"github.com/dkoosis/kind2run/pkg/result"
)

// Follower streams a run to a terminal. Each property scrolls into the
// history region once it is resolved, new analyzer log lines scroll with it,
// and a panel below the history tracks the properties still in flight.
type Follower struct {
	mu     sync.Mutex
	out    io.Writer
	theme  Theme
	width  int
	height int

	drawn   int // panel rows currently on screen
	printed map[string]outcome.Status
	logs    int
}

// NewFollower creates a Follower writing to out. A zero width or height
// falls back to 80x24.
func NewFollower(out io.Writer, theme Theme, width, height int) *Follower {
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	return &Follower{
		out:     out,
		theme:   theme,
		width:   width,
		height:  height,
		printed: make(map[string]outcome.Status),
	}
}

// Update redraws the terminal for snap.
func (f *Follower) Update(snap result.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.clearPanel()
	f.printHistory(snap)
	f.drawPanel(snap)
}

// Finish prints whatever is left and removes the panel.
func (f *Follower) Finish(snap result.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.clearPanel()
	f.printHistory(snap)
	counts := snap.Counts()
	fmt.Fprintln(f.out, f.theme.Muted.Render(fmt.Sprintf("%s %s  %d valid  %d falsified  %d unknown",
		snap.State, elapsed(snap.Elapsed()),
		counts[outcome.StatusValid], counts[outcome.StatusFalsified], counts[outcome.StatusUnknown])))
}

func (f *Follower) printHistory(snap result.Snapshot) {
	for _, l := range snap.Logs[min(f.logs, len(snap.Logs)):] {
		fmt.Fprintln(f.out, f.theme.Muted.Render(fmt.Sprintf("[%s] %s", l.Class, l.Text)))
	}
	f.logs = len(snap.Logs)

	for _, pr := range snap.Properties {
		status := pr.Status()
		if !status.Terminal() || f.printed[pr.Name] == status {
			continue
		}
		f.printed[pr.Name] = status
		icon, style := f.theme.Status(status)
		line := style.Render(icon+" "+status.String()) + " " + pr.Name
		if d := details(pr); d != "" {
			line += " " + f.theme.Muted.Render(d)
		}
		fmt.Fprintln(f.out, line)
	}
}

// clearPanel walks the cursor up over the panel, blanking each row.
func (f *Follower) clearPanel() {
	if f.drawn == 0 {
		return
	}
	fmt.Fprint(f.out, strings.Repeat("\033[1A\r\033[2K", f.drawn))
	f.drawn = 0
}

// drawPanel lists unresolved properties, working ones first. The panel takes
// at most a third of the screen (never fewer than three rows); what does not
// fit is summarized on the last row.
func (f *Follower) drawPanel(snap result.Snapshot) {
	rows := pending(snap)
	if len(rows) == 0 {
		return
	}
	shown, rest := rows, []result.PropertyResult(nil)
	if limit := max(f.height/3, 3); len(rows) > limit {
		shown, rest = rows[:limit-1], rows[limit-1:]
	}

	var sb strings.Builder
	for _, pr := range shown {
		sb.WriteString(f.panelRow(pr))
		sb.WriteByte('\n')
	}
	if len(rest) > 0 {
		sb.WriteString(f.theme.Muted.Render(fit(overflow(rest), f.width)))
		sb.WriteByte('\n')
		f.drawn++
	}
	fmt.Fprint(f.out, sb.String())
	f.drawn += len(shown)
}

// panelRow renders one in-flight property. The name is cut before styling so
// the row never exceeds the terminal width.
func (f *Follower) panelRow(pr result.PropertyResult) string {
	status := pr.Status()
	icon, style := f.theme.Status(status)
	var depth string
	if status == outcome.StatusWorking {
		depth = fmt.Sprintf("  k=%d", pr.BaseProgress)
	}
	budget := f.width - 3 - runewidth.StringWidth(icon) - runewidth.StringWidth(depth)
	return "  " + style.Render(icon) + " " + fit(pr.Name, budget) + f.theme.Muted.Render(depth)
}

func pending(snap result.Snapshot) []result.PropertyResult {
	var rows []result.PropertyResult
	for _, pr := range snap.Properties {
		if !pr.Status().Terminal() {
			rows = append(rows, pr)
		}
	}
	slices.SortStableFunc(rows, func(a, b result.PropertyResult) int {
		return rank(a.Status()) - rank(b.Status())
	})
	return rows
}

func rank(s outcome.Status) int {
	if s == outcome.StatusWorking {
		return 0
	}
	return 1
}

func overflow(rest []result.PropertyResult) string {
	var working, waiting int
	for _, pr := range rest {
		if pr.Status() == outcome.StatusWorking {
			working++
		} else {
			waiting++
		}
	}
	var parts []string
	if working > 0 {
		parts = append(parts, fmt.Sprintf("%d working", working))
	}
	if waiting > 0 {
		parts = append(parts, fmt.Sprintf("%d waiting", waiting))
	}
	return fmt.Sprintf("  ... and %d more (%s)", len(rest), strings.Join(parts, ", "))
}

// fit cuts s to width display cells.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}
