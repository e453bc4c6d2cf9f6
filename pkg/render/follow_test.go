package render

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/kind2run/pkg/event"
	"github.com/dkoosis/kind2run/pkg/result"
)

// inFlight returns a snapshot of waiting then working properties, in that
// declaration order.
func inFlight(t *testing.T, waiting []string, working []string) result.Snapshot {
	t.Helper()

	r := result.New("m")
	r.Declare(working...)
	a := result.NewAggregator(r, nil)
	require.NoError(t, a.Apply(event.ScopeEnter{Name: "main"}))
	require.NoError(t, a.Apply(event.Progress{Source: "bmc", K: 3}))
	require.NoError(t, a.Apply(event.ScopeExit{}))

	snap := r.Snapshot()
	var props []result.PropertyResult
	for _, name := range waiting {
		props = append(props, result.PropertyResult{Name: name})
	}
	snap.Properties = append(props, snap.Properties...)
	return snap
}

func names(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func TestFollower_PanelListsWorkingBeforeWaiting(t *testing.T) {
	var buf bytes.Buffer
	f := NewFollower(&buf, MonoTheme(), 80, 24)

	f.Update(inFlight(t, []string{"idle"}, []string{"busy"}))

	got := lines(stripANSI(buf.String()))
	require.Len(t, got, 2)
	assert.Equal(t, "  * busy  k=3", got[0])
	assert.Equal(t, "  - idle", got[1])
	assert.Equal(t, 2, f.drawn)
}

func TestFollower_PanelCapsAndSummarizesOverflow(t *testing.T) {
	var buf bytes.Buffer
	f := NewFollower(&buf, MonoTheme(), 80, 12) // a third of 12 rows: 4

	f.Update(inFlight(t, names("wait", 5), names("work", 5)))

	got := lines(stripANSI(buf.String()))
	require.Len(t, got, 4)
	assert.Equal(t, 4, f.drawn)
	for _, row := range got[:3] {
		assert.Contains(t, row, "k=3")
	}
	assert.Equal(t, "  ... and 7 more (2 working, 5 waiting)", got[3])
}

func TestFollower_PanelRowsFitTerminalWidth(t *testing.T) {
	var buf bytes.Buffer
	f := NewFollower(&buf, MonoTheme(), 20, 24)

	f.Update(inFlight(t,
		[]string{"性質性質性質性質性質性質性質"},
		[]string{"a_very_long_property_name_indeed"}))

	for _, row := range lines(stripANSI(buf.String())) {
		assert.LessOrEqual(t, runewidth.StringWidth(row), 20, row)
	}
	assert.Contains(t, buf.String(), "k=3")
}

func TestFollower_ClearsPanelBeforeRedraw(t *testing.T) {
	var buf bytes.Buffer
	f := NewFollower(&buf, MonoTheme(), 80, 24)
	snap := inFlight(t, []string{"idle"}, []string{"busy"})

	f.Update(snap)
	buf.Reset()
	f.Update(snap)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, strings.Repeat("\033[1A\r\033[2K", 2)), "%q", out)
	assert.Equal(t, 2, f.drawn)

	buf.Reset()
	f.Finish(snap)
	assert.Zero(t, f.drawn)
	assert.NotContains(t, stripANSI(buf.String()), "idle")
}

func TestFollower_NothingInFlightDrawsNoPanel(t *testing.T) {
	var buf bytes.Buffer
	f := NewFollower(&buf, MonoTheme(), 80, 24)

	f.Update(result.New("m").Snapshot())
	assert.Zero(t, buf.Len())
	assert.Zero(t, f.drawn)
}

func stripANSI(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\033' || i+1 >= len(s) || s[i+1] != '[' {
			sb.WriteByte(s[i])
			continue
		}
		j := i + 2
		for j < len(s) && (s[j] < 'A' || s[j] > 'Z') && (s[j] < 'a' || s[j] > 'z') {
			j++
		}
		i = j
	}
	return sb.String()
}
