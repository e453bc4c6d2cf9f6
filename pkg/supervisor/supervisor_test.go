//go:build unix

package supervisor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/kind2run/pkg/event"
	"github.com/dkoosis/kind2run/pkg/outcome"
	"github.com/dkoosis/kind2run/pkg/result"
	"github.com/dkoosis/kind2run/pkg/stream"
)

func fastSupervisor() *Supervisor {
	return &Supervisor{
		PollInterval: 10 * time.Millisecond,
		Grace:        200 * time.Millisecond,
		KillTimeout:  500 * time.Millisecond,
	}
}

func sh(script string) []string {
	return []string{"/bin/sh", "-c", script}
}

type recorder struct {
	mu     sync.Mutex
	events []event.Event
	code   int
	runs   int
	panic  bool
}

func (r *recorder) ObserveEvent(ev event.Event) {
	if r.panic {
		panic("observer exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) ObserveRun(_ result.Snapshot, code int, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.code = code
	r.runs++
}

func TestRun_NormalExitWithFalsifiedProperty(t *testing.T) {
	t.Parallel()

	script := `
echo 'Kind 2 banner'
echo '<AnalysisStart top="main"/>'
echo '<Progress source="bmc">3</Progress>'
echo '<Property name="p1">'
echo '  <K>2</K>'
echo '  <Answer source="pdr">valid</Answer>'
echo '</Property>'
echo '<Property name="p2"><Answer source="bmc">falsifiable</Answer></Property>'
echo '<AnalysisStop/>'
exit 10
`
	rec := &recorder{}
	sup := fastSupervisor()
	sup.Observer = rec

	res := result.New("model.lus")
	res.Declare("p1", "p2")
	require.NoError(t, sup.Run(context.Background(), res, sh(script)))

	assert.Equal(t, result.StateDone, res.State())
	s, _ := res.Status("p1")
	assert.Equal(t, outcome.StatusValid, s)
	s, _ = res.Status("p2")
	assert.Equal(t, outcome.StatusFalsified, s)
	p, _ := res.Property("p1")
	assert.Equal(t, 3, p.(outcome.Valid).K)

	assert.Len(t, rec.events, 5)
	assert.Equal(t, 10, rec.code)
	assert.Equal(t, 1, rec.runs)
}

func TestRun_AbnormalExitCarriesCode(t *testing.T) {
	t.Parallel()

	res := result.New("m")
	err := fastSupervisor().Run(context.Background(), res, sh("exit 2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAbnormalExit)

	var exitErr *ExitCodeError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Equal(t, result.StateDone, res.State())
}

func TestRun_StderrIsMerged(t *testing.T) {
	t.Parallel()

	res := result.New("m")
	err := fastSupervisor().Run(context.Background(), res, sh(`echo '<Log class="error" source="x">on stderr</Log>' >&2`))
	require.NoError(t, err)

	logs := res.Snapshot().Logs
	require.Len(t, logs, 1)
	assert.Equal(t, "on stderr", logs[0].Text)
}

func TestRun_CancellationYieldsCanceledAndReapsProcess(t *testing.T) {
	t.Parallel()

	pidFile := filepath.Join(t.TempDir(), "pid")
	script := `echo $$ > ` + pidFile + `
echo '<AnalysisStart top="main"/>'
echo '<Property name="p">'
exec sleep 30`

	res := result.New("m")
	res.Declare("p")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		// Cancel once the analyzer has visibly started.
		for {
			if _, err := os.Stat(pidFile); err == nil {
				time.Sleep(50 * time.Millisecond)
				cancel()
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	start := time.Now()
	err := fastSupervisor().Run(ctx, res, sh(script))
	require.NoError(t, err, "cancellation is not an error, and the open Property is expected")
	assert.Equal(t, result.StateCanceled, res.State())
	assert.Less(t, time.Since(start), 10*time.Second)

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.True(t, errors.Is(syscall.Kill(pid, 0), syscall.ESRCH), "process %d still running", pid)
}

func TestRun_EscalatesToKillWhenTermIgnored(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res := result.New("m")
	err := fastSupervisor().Run(ctx, res, sh(`trap '' TERM; while :; do sleep 0.05; done`))
	require.NoError(t, err)
	assert.Equal(t, result.StateCanceled, res.State())
}

func TestRun_PipelinePanicIsReportedAfterCleanup(t *testing.T) {
	t.Parallel()

	rec := &recorder{panic: true}
	sup := fastSupervisor()
	sup.Observer = rec

	res := result.New("m")
	err := sup.Run(context.Background(), res, sh(`echo '<AnalysisStart top="main"/>'; exec sleep 30`))

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "observer exploded", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.Equal(t, result.StateDone, res.State())
}

func TestRun_MalformedFragmentFailsRun(t *testing.T) {
	t.Parallel()

	res := result.New("m")
	err := fastSupervisor().Run(context.Background(), res, sh(`echo '<Property name="p"><Answer>perhaps</Answer></Property>'`))
	require.Error(t, err)
	assert.ErrorIs(t, err, event.ErrUnknownAnswer)

	var pe *event.ParseError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, result.StateDone, res.State())
}

func TestRun_UnterminatedElementWithoutCancel(t *testing.T) {
	t.Parallel()

	res := result.New("m")
	err := fastSupervisor().Run(context.Background(), res, sh(`echo '<Property name="p">'`))
	assert.ErrorIs(t, err, stream.ErrUnterminated)
}

func TestRun_SpawnFailureFinalizesResult(t *testing.T) {
	t.Parallel()

	res := result.New("m")
	err := fastSupervisor().Run(context.Background(), res, []string{filepath.Join(t.TempDir(), "missing-binary")})
	require.Error(t, err)
	assert.True(t, res.State().Terminal())
}

func TestRun_EmptyCommand(t *testing.T) {
	t.Parallel()

	assert.Error(t, fastSupervisor().Run(context.Background(), result.New("m"), nil))
}

func TestIsNormalExit(t *testing.T) {
	t.Parallel()

	for _, c := range []int{0, 10, 20} {
		assert.True(t, IsNormalExit(c), c)
	}
	for _, c := range []int{1, 2, -1, 30} {
		assert.False(t, IsNormalExit(c), c)
	}
}
