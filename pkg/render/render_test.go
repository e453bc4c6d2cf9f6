package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/kind2run/pkg/event"
	"github.com/dkoosis/kind2run/pkg/outcome"
	"github.com/dkoosis/kind2run/pkg/result"
	"github.com/dkoosis/kind2run/pkg/value"
)

func fixture(t *testing.T) result.Snapshot {
	t.Helper()

	r := result.New("model.lus")
	r.Declare("ok", "bad", "maybe", "busy")
	a := result.NewAggregator(r, nil)

	cex := outcome.NewCounterexample(-1, []outcome.Signal{
		{Name: "y", Type: "bool", Steps: []outcome.Step{{Instant: 1, Value: value.Bool(true)}}},
		{Name: "x", Type: "int", Steps: []outcome.Step{
			{Instant: 0, Value: value.IntOf(1)},
			{Instant: 1, Value: value.IntOf(-2)},
		}},
	}, []outcome.FunctionTable{{
		Name:   "f",
		Inputs: []outcome.Param{{Name: "a", Type: "int"}},
		Output: outcome.Param{Name: "r", Type: "bool"},
		Rows:   []outcome.Row{{Inputs: []value.Value{value.IntOf(1)}, Output: value.Bool(true)}},
	}})

	events := []event.Event{
		event.ScopeEnter{Name: "main"},
		event.Progress{Source: "bmc", K: 5},
		event.PropertyResolved{Name: "ok", Property: outcome.NewValid(outcome.Valid{
			Source: "pdr", K: 4, Runtime: 0.5,
			Invariants: []string{"x >= 0"}, IVC: []string{"eq2", "eq1"},
		})},
		event.PropertyResolved{Name: "bad", Property: outcome.Invalid{Source: "bmc", Runtime: 0.25, Counterexample: cex}},
		event.PropertyResolved{Name: "maybe", Property: outcome.Unknown{TrueFor: 7, Runtime: 2}},
		event.Log{Class: event.LogWarn, Source: "parse", Text: "careful"},
	}
	for _, ev := range events {
		require.NoError(t, a.Apply(ev))
	}
	r.Declare("idle")

	snap := r.Snapshot()
	snap.ID = "run-1"
	snap.State = result.StateDone
	snap.Started = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	snap.Finished = snap.Started.Add(1500 * time.Millisecond)
	return snap
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestPlain_Golden(t *testing.T) {
	out := NewPlain().Render(fixture(t))
	newGoldie(t).Assert(t, "plain", []byte(out))
}

func TestTerminal_RendersTableAndTrace(t *testing.T) {
	out := stripANSI(NewTerminal(MonoTheme(), 100).Render(fixture(t)))

	assert.Contains(t, out, "model.lus")
	assert.Contains(t, out, "DONE")
	assert.Contains(t, out, "+ ok   ")
	assert.Contains(t, out, "x bad  ")
	assert.Contains(t, out, "* busy ")
	assert.Contains(t, out, "k=4 source=pdr runtime=0.500s")
	assert.Contains(t, out, "ivc: eq1, eq2")
	assert.Contains(t, out, "f(1) = true")
	assert.Contains(t, out, "1 valid")

	var traceRows []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "    x ") || strings.HasPrefix(line, "    step") {
			traceRows = append(traceRows, strings.Join(strings.Fields(line), " "))
		}
	}
	assert.Equal(t, []string{"step 0 1", "x 1 -2"}, traceRows)
}

func TestTerminal_EmptySnapshot(t *testing.T) {
	out := stripANSI(NewTerminal(MonoTheme(), 0).Render(result.New("empty").Snapshot()))
	assert.Contains(t, out, "no properties")
}

func TestJSON_KeepsExactValues(t *testing.T) {
	out := NewJSON().Render(fixture(t))

	var decoded struct {
		ID         string `json:"id"`
		State      string `json:"state"`
		Properties []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
			K      int    `json:"k"`
			Trace  *struct {
				Length  int `json:"length"`
				Signals []struct {
					Name   string            `json:"name"`
					Values map[string]string `json:"values"`
				} `json:"signals"`
			} `json:"counterexample"`
		} `json:"properties"`
		Logs []struct {
			Text string `json:"text"`
		} `json:"logs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))

	assert.Equal(t, "run-1", decoded.ID)
	assert.Equal(t, "DONE", decoded.State)
	require.Len(t, decoded.Properties, 5)
	assert.Equal(t, 4, decoded.Properties[0].K)

	bad := decoded.Properties[1]
	assert.Equal(t, "FALSIFIED", bad.Status)
	require.NotNil(t, bad.Trace)
	assert.Equal(t, 2, bad.Trace.Length)
	assert.Equal(t, "-2", bad.Trace.Signals[0].Values["1"])
	require.Len(t, decoded.Logs, 1)
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", "terminal", "plain", "json"} {
		r, err := ByName(name, MonoTheme(), 80)
		require.NoError(t, err, name)
		assert.NotNil(t, r)
	}
	_, err := ByName("xml", MonoTheme(), 80)
	assert.Error(t, err)
}

func TestThemeByName_FallsBackToDefault(t *testing.T) {
	assert.Equal(t, "orca", ThemeByName("orca").Name)
	assert.Equal(t, "mono", ThemeByName("mono").Name)
	assert.Equal(t, "default", ThemeByName("neon").Name)
}

func TestFollower_PrintsEachResolutionOnce(t *testing.T) {
	var buf bytes.Buffer
	f := NewFollower(&buf, MonoTheme(), 80, 24)
	snap := fixture(t)

	f.Update(snap)
	f.Update(snap)
	f.Finish(snap)

	out := stripANSI(buf.String())
	assert.Equal(t, 1, strings.Count(out, "VALID ok"))
	assert.Equal(t, 1, strings.Count(out, "FALSIFIED bad"))
	assert.Equal(t, 1, strings.Count(out, "[warn] careful"))
	assert.Contains(t, out, "busy  k=5")
	assert.Contains(t, out, "DONE 1.500s  1 valid  1 falsified  1 unknown")
}
