// Package observability exports bridge metrics in the Prometheus format.
package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vshulcz/dslbridge/internal/domain"
	"github.com/vshulcz/dslbridge/internal/ports"
)

const namespace = "dslbridge"

// PromRecorder keeps every collector on its own registry so tests and the
// HTTP handler never share global state.
type PromRecorder struct {
	reg          *prometheus.Registry
	lineState    *prometheus.GaugeVec
	rate         *prometheus.GaugeVec
	busConnected prometheus.Gauge
	sessions     prometheus.Counter
	failures     prometheus.Counter
	polls        prometheus.Counter
	pollLatency  prometheus.Histogram
	parseErrors  *prometheus.CounterVec
	publishes    *prometheus.CounterVec
}

var _ ports.Recorder = (*PromRecorder)(nil)

// NewPromRecorder creates and registers all bridge collectors together with
// the Go runtime and process collectors.
func NewPromRecorder() *PromRecorder {
	p := &PromRecorder{
		reg: prometheus.NewRegistry(),
		lineState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "line_state",
			Help:      "Current DSL line state, 1 for the active state label.",
		}, []string{"state"}),
		rate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_bytes_per_second",
			Help:      "Derived interface throughput per direction.",
		}, []string{"direction"}),
		busConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bus_connected",
			Help:      "1 while the bus client is connected.",
		}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Device sessions opened by the supervisor.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_failures_total",
			Help:      "Device sessions that ended with a transport or protocol error.",
		}),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Completed poll cycles.",
		}),
		pollLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Time spent issuing both device commands of a poll.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		parseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Command responses that could not be parsed.",
		}, []string{"what"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Change-gated publishes per output.",
		}, []string{"output"}),
	}

	p.reg.MustRegister(
		p.lineState, p.rate, p.busConnected,
		p.sessions, p.failures, p.polls, p.pollLatency,
		p.parseErrors, p.publishes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry returns the registry to expose over HTTP.
func (p *PromRecorder) Registry() *prometheus.Registry { return p.reg }

func (p *PromRecorder) SessionStarted() { p.sessions.Inc() }

func (p *PromRecorder) SessionFailed() { p.failures.Inc() }

func (p *PromRecorder) PollCompleted(took time.Duration) {
	p.polls.Inc()
	p.pollLatency.Observe(took.Seconds())
}

func (p *PromRecorder) ParseFailed(what string) { p.parseErrors.WithLabelValues(what).Inc() }

// Notify mirrors a poll result into the gauges and counts its publishes.
// Rates missing from the snapshot are removed rather than reported as zero.
func (p *PromRecorder) Notify(_ context.Context, res domain.PollResult) error {
	if st, ok := res.Snapshot.State(); ok {
		p.lineState.Reset()
		p.lineState.WithLabelValues(st).Set(1)
	}
	for _, dir := range []string{domain.CounterRx, domain.CounterTx} {
		if v, ok := res.Snapshot[domain.RateKey(dir)].(float64); ok {
			p.rate.WithLabelValues(dir).Set(v)
		} else {
			p.rate.DeleteLabelValues(dir)
		}
	}
	for _, out := range res.Published {
		p.publishes.WithLabelValues(out).Inc()
	}
	return nil
}

// ObserveConn tracks bus connectivity.
func (p *PromRecorder) ObserveConn(_ context.Context, evt domain.ConnEvent) error {
	if evt.Connected {
		p.busConnected.Set(1)
	} else {
		p.busConnected.Set(0)
	}
	return nil
}
