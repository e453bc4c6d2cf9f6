// Package live shows a running analysis as an interactive terminal view.
package live

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/dkoosis/kind2run/pkg/outcome"
	"github.com/dkoosis/kind2run/pkg/render"
	"github.com/dkoosis/kind2run/pkg/result"
)

const tickInterval = time.Second / 4

// Source is the live result the view follows. *result.Result satisfies it.
type Source interface {
	Snapshot() result.Snapshot
	Subscribe() (<-chan struct{}, func())
	Finished() <-chan struct{}
}

// Options configures Run.
type Options struct {
	Theme render.Theme
	// Cancel is called when the user interrupts a run still in flight.
	Cancel func()
	// ExitOnDone quits as soon as the run finishes instead of waiting for q.
	ExitOnDone bool
}

// Run shows src until the user quits or ctx ends, and returns the last
// snapshot it displayed.
func Run(ctx context.Context, src Source, opts Options, progOpts ...tea.ProgramOption) (result.Snapshot, error) {
	changes, stop := src.Subscribe()
	defer stop()

	m := newModel(src, changes, opts)
	progOpts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, progOpts...)
	final, err := tea.NewProgram(m, progOpts...).Run()
	if err != nil {
		return src.Snapshot(), err
	}
	return final.(model).snap, nil
}

type (
	tickMsg     struct{}
	changeMsg   struct{}
	finishedMsg struct{}
)

type model struct {
	src     Source
	changes <-chan struct{}
	opts    Options
	term    *render.Terminal

	snap      result.Snapshot
	spinner   spinner.Model
	viewport  viewport.Model
	selected  int
	width     int
	height    int
	done      bool
	canceling bool
}

func newModel(src Source, changes <-chan struct{}, opts Options) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = opts.Theme.Working
	return model{
		src:      src,
		changes:  changes,
		opts:     opts,
		term:     render.NewTerminal(opts.Theme, 80),
		snap:     src.Snapshot(),
		spinner:  sp,
		viewport: viewport.New(0, 0),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenChanges(), m.listenFinished(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) listenChanges() tea.Cmd {
	return func() tea.Msg {
		<-m.changes
		return changeMsg{}
	}
}

func (m model) listenFinished() tea.Cmd {
	return func() tea.Msg {
		<-m.src.Finished()
		return finishedMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc":
			if m.done {
				return m, tea.Quit
			}
		case "ctrl+c":
			if m.done {
				return m, tea.Quit
			}
			if !m.canceling && m.opts.Cancel != nil {
				m.canceling = true
				m.opts.Cancel()
			}
		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.refreshViewport()
			}
		case "down", "j":
			if m.selected < len(m.snap.Properties)-1 {
				m.selected++
				m.refreshViewport()
			}
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.term = render.NewTerminal(m.opts.Theme, msg.Width-4)
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-len(m.snap.Properties)-6, 3)
		m.refreshViewport()

	case changeMsg:
		m.refresh()
		return m, m.listenChanges()

	case finishedMsg:
		m.refresh()
		m.done = true
		if m.opts.ExitOnDone {
			return m, tea.Quit
		}

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.snap = m.src.Snapshot()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) refresh() {
	m.snap = m.src.Snapshot()
	if m.selected >= len(m.snap.Properties) {
		m.selected = max(len(m.snap.Properties)-1, 0)
	}
	m.refreshViewport()
}

func (m *model) refreshViewport() {
	if len(m.snap.Properties) == 0 {
		m.viewport.SetContent("")
		return
	}
	detail := m.term.Detail(m.snap.Properties[m.selected])
	if detail == "" {
		detail = m.opts.Theme.Muted.Render("no details for " + m.snap.Properties[m.selected].Name)
	}
	m.viewport.SetContent(detail)
}

func (m model) View() string {
	var sb strings.Builder
	sb.WriteString(m.header() + "\n\n")

	nameWidth := 0
	for _, pr := range m.snap.Properties {
		nameWidth = max(nameWidth, runewidth.StringWidth(pr.Name))
	}
	for i, pr := range m.snap.Properties {
		cursor := "  "
		if i == m.selected {
			cursor = m.opts.Theme.Bold.Render("> ")
		}
		status := pr.Status()
		icon, style := m.opts.Theme.Status(status)
		if !status.Terminal() && !m.done {
			icon = m.spinner.View()
		}
		line := cursor + style.Render(icon) + " " + runewidth.FillRight(pr.Name, nameWidth) + "  " + style.Render(status.String())
		if status.Terminal() || pr.BaseProgress > 0 {
			line += m.opts.Theme.Muted.Render(fmt.Sprintf("  k=%d", depth(pr)))
		}
		sb.WriteString(line + "\n")
	}

	sb.WriteString("\n" + m.viewport.View() + "\n")
	sb.WriteString(m.footer())
	return sb.String()
}

func (m model) header() string {
	state := m.snap.State.String()
	if m.canceling && !m.done {
		state = "CANCELING"
	}
	title := m.opts.Theme.Title.Render(m.snap.Name)
	meta := m.opts.Theme.Muted.Render(fmt.Sprintf("  %s  %.1fs", state, m.snap.Elapsed().Seconds()))
	return title + meta
}

func (m model) footer() string {
	keys := "↑/↓ select  ctrl+c cancel"
	if m.done {
		keys = "↑/↓ select  q quit"
	}
	return lipgloss.NewStyle().Inherit(m.opts.Theme.Muted).Render(keys)
}

// depth is the most informative bound known for a property.
func depth(pr result.PropertyResult) int {
	if k, ok := kOf(pr); ok {
		return k
	}
	return pr.BaseProgress
}

func kOf(pr result.PropertyResult) (int, bool) {
	switch v := pr.Property.(type) {
	case outcome.Valid:
		return v.K, true
	case outcome.Inconsistent:
		return v.K, true
	case outcome.Unknown:
		return v.TrueFor, true
	case outcome.Invalid:
		return v.Counterexample.Length, true
	}
	return 0, false
}
