package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"scorebot/internal/deliver"
	"scorebot/internal/eventbus"
	"scorebot/internal/poll"
)

// metrics owns a private registry so tests and restarts never trip
// double-registration panics on the global one.
type metrics struct {
	reg *prometheus.Registry

	cycles     *prometheus.CounterVec
	fetchFails prometheus.Counter
	deliveries *prometheus.CounterVec
}

func newMetrics(snap func() poll.Snapshot) *metrics {
	m := &metrics{
		reg: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scorebot",
			Name:      "cycles_total",
			Help:      "Poll cycles by outcome.",
		}, []string{"outcome"}),
		fetchFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scorebot",
			Name:      "fetch_failures_total",
			Help:      "Status fetches that exhausted every retry.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scorebot",
			Name:      "deliveries_total",
			Help:      "Per-destination delivery attempts by outcome.",
		}, []string{"outcome"}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles,
		m.fetchFails,
		m.deliveries,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "scorebot",
			Name:      "consecutive_fetch_failures",
			Help:      "Consecutive status fetch failures since the last success.",
		}, func() float64 {
			return float64(snap().ConsecutiveFailures)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "scorebot",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle that delivered to at least one destination, 0 before the first.",
		}, func() float64 {
			t := snap().LastSuccess
			if t.IsZero() {
				return 0
			}
			return float64(t.Unix())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "scorebot",
			Name:      "cycle_running",
			Help:      "1 while a poll cycle is in flight.",
		}, func() float64 {
			if snap().Running {
				return 1
			}
			return 0
		}),
	)
	return m
}

// observe maps one bus event onto the counters.
func (m *metrics) observe(ev eventbus.Event) {
	switch ev.Type {
	case poll.EventCompleted:
		m.cycles.WithLabelValues("completed").Inc()
	case poll.EventSkipped:
		m.cycles.WithLabelValues("skipped").Inc()
	case poll.EventFetchFail:
		m.fetchFails.Inc()
	case deliver.EventEdited:
		m.deliveries.WithLabelValues("edited").Inc()
	case deliver.EventPosted:
		m.deliveries.WithLabelValues("posted").Inc()
	case deliver.EventFailed:
		m.deliveries.WithLabelValues("failed").Inc()
	}
}
