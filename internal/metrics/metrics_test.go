package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/kind2run/pkg/event"
	"github.com/dkoosis/kind2run/pkg/outcome"
	"github.com/dkoosis/kind2run/pkg/result"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 20 * time.Millisecond
)

// value reads one sample from the registry.
func value(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				return float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func snapshot(t *testing.T) result.Snapshot {
	t.Helper()
	res := result.New("model.lus")
	res.Declare("a", "b")
	require.NoError(t, res.Running())
	agg := result.NewAggregator(res, nil)
	require.NoError(t, agg.Apply(event.ScopeEnter{Name: "main"}))
	require.NoError(t, agg.Apply(event.PropertyResolved{Name: "a", Property: outcome.NewValid(outcome.Valid{K: 1})}))
	require.NoError(t, res.Done())
	return res.Snapshot()
}

func TestObserveEvent_CountsByKind(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveEvent(event.Progress{Source: "bmc", K: 3})
	m.ObserveEvent(event.Progress{Source: "ind", K: 9})
	m.ObserveEvent(event.ScopeEnter{Name: "main"})
	m.ObserveEvent(event.Log{Class: event.LogInfo, Text: "hi"})

	assert.InDelta(t, 2, value(t, m, "kind2run_events_total", map[string]string{"kind": "progress"}), 0)
	assert.InDelta(t, 1, value(t, m, "kind2run_events_total", map[string]string{"kind": "scope_enter"}), 0)
	assert.InDelta(t, 1, value(t, m, "kind2run_events_total", map[string]string{"kind": "log"}), 0)
	assert.InDelta(t, 3, value(t, m, "kind2run_bmc_depth", nil), 0)
}

func TestObserveRun_CountsRunsAndStatuses(t *testing.T) {
	t.Parallel()

	m := New()
	snap := snapshot(t)
	m.ObserveRun(snap, 20, nil)
	m.ObserveRun(snap, 2, errors.New("abnormal"))

	assert.InDelta(t, 2, value(t, m, "kind2run_runs_total", map[string]string{"state": "DONE"}), 0)
	assert.InDelta(t, 1, value(t, m, "kind2run_run_errors_total", nil), 0)
	assert.InDelta(t, 2, value(t, m, "kind2run_run_duration_seconds", nil), 0)
	assert.InDelta(t, 2, value(t, m, "kind2run_properties_total", map[string]string{"status": "VALID"}), 0)
	assert.InDelta(t, 2, value(t, m, "kind2run_properties_total", map[string]string{"status": "WAITING"}), 0)
}

func TestHandler_ExposesMetrics(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveRun(snapshot(t), 0, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `kind2run_runs_total{state="DONE"} 1`)
}

func TestServe_StopsWithContext(t *testing.T) {
	t.Parallel()

	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	addr, err := m.Serve(ctx, "127.0.0.1:0", slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "kind2run_bmc_depth")

	cancel()
	assert.Eventually(t, func() bool {
		r, err := http.Get("http://" + addr.String() + "/metrics")
		if err == nil {
			_ = r.Body.Close()
		}
		return err != nil
	}, testTimeout, testTick)
}
