// Package metrics exports run telemetry in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dkoosis/kind2run/pkg/event"
	"github.com/dkoosis/kind2run/pkg/result"
)

// Metrics holds all kind2run Prometheus metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Runs        *prometheus.CounterVec
	RunErrors   prometheus.Counter
	RunDuration prometheus.Histogram
	Events      *prometheus.CounterVec
	Properties  *prometheus.CounterVec
	Progress    prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kind2run_runs_total",
			Help: "Total number of finished analyzer runs by final state",
		}, []string{"state"}),
		RunErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kind2run_run_errors_total",
			Help: "Total number of runs that ended with an error",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kind2run_run_duration_seconds",
			Help:    "Wall-clock duration of analyzer runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kind2run_events_total",
			Help: "Total number of analyzer events by kind",
		}, []string{"kind"}),
		Properties: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kind2run_properties_total",
			Help: "Total number of properties in finished runs by status",
		}, []string{"status"}),
		Progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kind2run_bmc_depth",
			Help: "Deepest bounded model checking step reported in the current run",
		}),
	}
	m.registry.MustRegister(m.Runs, m.RunErrors, m.RunDuration, m.Events, m.Properties, m.Progress,
		prometheus.NewGoCollector())
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveEvent counts ev by kind.
func (m *Metrics) ObserveEvent(ev event.Event) {
	m.Events.WithLabelValues(kind(ev)).Inc()
	if p, ok := ev.(event.Progress); ok && p.Source == result.ProgressSource {
		m.Progress.Set(float64(p.K))
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(snap result.Snapshot, _ int, err error) {
	m.Runs.WithLabelValues(snap.State.String()).Inc()
	if err != nil {
		m.RunErrors.Inc()
	}
	m.RunDuration.Observe(snap.Elapsed().Seconds())
	for _, pr := range snap.Properties {
		m.Properties.WithLabelValues(pr.Status().String()).Inc()
	}
}

func kind(ev event.Event) string {
	switch ev.(type) {
	case event.Progress:
		return "progress"
	case event.PropertyResolved:
		return "property"
	case event.ScopeEnter:
		return "scope_enter"
	case event.ScopeExit:
		return "scope_exit"
	case event.Log:
		return "log"
	default:
		return "other"
	}
}

// Serve exposes /metrics on addr until ctx is done. The listener is bound
// before Serve returns so callers see address errors immediately.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	logger.Debug("serving metrics", "addr", ln.Addr().String())
	return ln.Addr(), nil
}
