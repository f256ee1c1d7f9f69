// Package metrics counts what a run did, for export in the Prometheus
// textfile format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"obit-feed-enricher/internal/models"
)

const namespace = "obitfeed"

// Recorder is safe to use as a nil pointer; every method is then a no-op.
type Recorder struct {
	entries      *prometheus.CounterVec
	halts        prometheus.Counter
	fetchSeconds prometheus.Histogram
	lastRun      *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Feed entries by outcome.",
		}, []string{"outcome"}),
		halts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenge_halts_total",
			Help:      "Runs halted by a challenge page.",
		}),
		fetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching entry pages.",
			Buckets:   prometheus.DefBuckets,
		}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_entries",
			Help:      "Entry counts of the most recent run.",
		}, []string{"kind"}),
	}
	reg.MustRegister(r.entries, r.halts, r.fetchSeconds, r.lastRun)
	return r
}

func (r *Recorder) ObserveEntry(res models.EntryResult) {
	if r == nil {
		return
	}
	r.entries.WithLabelValues(string(res.Outcome)).Inc()
	if res.FetchMs > 0 {
		r.fetchSeconds.Observe(float64(res.FetchMs) / 1000)
	}
}

func (r *Recorder) ObserveRun(s models.RunSummary) {
	if r == nil {
		return
	}
	if s.Halted {
		r.halts.Inc()
	}
	r.lastRun.WithLabelValues("total").Set(float64(s.Total))
	r.lastRun.WithLabelValues("enriched").Set(float64(s.Enriched))
	r.lastRun.WithLabelValues("skipped").Set(float64(s.Skipped))
	r.lastRun.WithLabelValues("unprocessed").Set(float64(s.Unprocessed))
}

// WriteTextfile dumps everything gathered by g to path, for the node
// exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
