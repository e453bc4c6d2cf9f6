//go:build unix

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/kind2run/internal/config"
	"github.com/dkoosis/kind2run/pkg/event"
	"github.com/dkoosis/kind2run/pkg/outcome"
	"github.com/dkoosis/kind2run/pkg/result"
)

const capture = `Kind 2 v2.1
<AnalysisStart top="main"/>
<Progress source="bmc">2</Progress>
<Property name="ok">
  <Runtime unit="sec">0.5</Runtime>
  <K>3</K>
  <Answer source="pdr">valid</Answer>
</Property>
<Property name="sub.hidden">
  <Answer source="bmc">falsifiable</Answer>
</Property>
<AnalysisStop/>
`

type harness struct {
	dir    string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{dir: t.TempDir()}
}

func (h *harness) write(t *testing.T, name, body string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), mode))
	return path
}

// fakeKind2 writes an executable that prints body and exits with code.
func (h *harness) fakeKind2(t *testing.T, body, code string) string {
	t.Helper()
	return h.write(t, "kind2", "#!/bin/sh\ncat <<'EOF'\n"+body+"EOF\nexit "+code+"\n", 0o755)
}

func (h *harness) execute(t *testing.T, args ...string) error {
	t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()
	cmd := newRootCommand(&RootOptions{Lookup: config.Options{
		Dir:       h.dir,
		ConfigDir: h.dir,
		Getenv:    func(string) string { return "" },
	}})
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(&h.stdout)
	cmd.SetErr(&h.stderr)
	return cmd.ExecuteContext(context.Background())
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	t.Parallel()

	cmd := NewRootCommand()
	assert.Equal(t, "kind2run", cmd.Use)
	for _, name := range []string{"run", "parse", "history", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("format"))
}

func TestRun_ReportsVerdictsAndRecordsHistory(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	bin := h.fakeKind2(t, capture, "20")
	model := h.write(t, "model.lus", "node main() returns ();\n", 0o644)
	db := filepath.Join(h.dir, "history.db")

	err := h.execute(t, "run", "--binary", bin, "--history-db", db, model)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 2 properties falsified")

	out := h.stdout.String()
	assert.Contains(t, out, "RUN model.lus DONE")
	assert.Contains(t, out, "VALID ok k=4 source=pdr")
	assert.Contains(t, out, "FALSIFIED sub.hidden")

	require.NoError(t, h.execute(t, "history", "--history-db", db))
	assert.Contains(t, h.stdout.String(), "model.lus")
	assert.Contains(t, h.stdout.String(), "1 falsified, 1 valid")
}

func TestRun_HideDropsMatchingProperties(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	bin := h.fakeKind2(t, capture, "20")
	model := h.write(t, "model.lus", "", 0o644)

	err := h.execute(t, "run", "--no-history", "--binary", bin, "--hide", "sub.*", model)
	require.NoError(t, err)
	assert.NotContains(t, h.stdout.String(), "sub.hidden")
	assert.Contains(t, h.stdout.String(), "SUMMARY valid=1 falsified=0")
}

func TestRun_AbnormalExitFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	bin := h.fakeKind2(t, "", "3")
	model := h.write(t, "model.lus", "", 0o644)

	err := h.execute(t, "run", "--no-history", "--binary", bin, model)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "analysis failed")
}

func TestRun_MissingInputIsCommandError(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	err := h.execute(t, "run", "--no-history", filepath.Join(h.dir, "absent.lus"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_BadConfigIsCommandError(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.write(t, config.FileName, "theme: neon\n", 0o644)
	model := h.write(t, "model.lus", "", 0o644)
	err := h.execute(t, "run", "--no-history", model)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid theme")
}

func TestParse_JSONFromFile(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	path := h.write(t, "out.xml", capture, 0o644)

	err := h.execute(t, "parse", "--format", "json", path)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var doc struct {
		Name       string `json:"name"`
		State      string `json:"state"`
		Properties []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
			K      int    `json:"k"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &doc))
	assert.Equal(t, "out.xml", doc.Name)
	assert.Equal(t, "DONE", doc.State)
	require.Len(t, doc.Properties, 2)
	assert.Equal(t, "ok", doc.Properties[0].Name)
	assert.Equal(t, 4, doc.Properties[0].K)
	assert.Equal(t, "FALSIFIED", doc.Properties[1].Status)
}

func TestParse_MalformedInputIsCommandError(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	path := h.write(t, "bad.xml", "<Property name=\"p\"><Answer>maybe</Answer></Property>\n", 0o644)
	err := h.execute(t, "parse", "--format", "plain", path)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, event.ErrUnknownAnswer)
}

func TestHistory_EmptyAndUnknownRun(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	db := filepath.Join(h.dir, "history.db")
	require.NoError(t, h.execute(t, "history", "--history-db", db))
	assert.Contains(t, h.stdout.String(), "no recorded runs")

	err := h.execute(t, "history", "--history-db", db, "missing-id")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestVersion(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.execute(t, "version"))
	assert.Contains(t, h.stdout.String(), "kind2run version dev")
}

func TestUnknownFlagIsCommandError(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	err := h.execute(t, "run", "--bogus")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestVerdict(t *testing.T) {
	t.Parallel()

	res := result.New("m")
	require.NoError(t, res.Running())
	agg := result.NewAggregator(res, nil)
	require.NoError(t, agg.Apply(event.ScopeEnter{Name: "main"}))
	require.NoError(t, agg.Apply(event.PropertyResolved{Name: "p", Property: outcome.NewValid(outcome.Valid{K: 1})}))
	require.NoError(t, res.Done())
	snap := res.Snapshot()

	assert.NoError(t, verdict(snap, nil))
	assert.Equal(t, ExitFailure, GetExitCode(verdict(snap, errors.New("boom"))))

	snap.State = result.StateCanceled
	assert.Equal(t, ExitCanceled, GetExitCode(verdict(snap, nil)))
}

func TestHider(t *testing.T) {
	t.Parallel()

	assert.Nil(t, hider(nil))
	fn := hider([]string{"sub.*", "tmp"})
	assert.Equal(t, "", fn("sub.a"))
	assert.Equal(t, "", fn("tmp"))
	assert.Equal(t, "main.ok", fn("main.ok"))
}
