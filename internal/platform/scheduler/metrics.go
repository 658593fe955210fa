package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle results used as the result label of dashboard_cycles_total.
const (
	ResultPublished = "published"
	ResultFailed    = "failed"
)

// Metrics holds the scheduler's prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	cycles   *prometheus.CounterVec
	duration prometheus.Histogram
	mutated  *prometheus.CounterVec
	records  *prometheus.GaugeVec
}

// NewMetrics registers the scheduler collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_cycles_total",
			Help: "Refresh cycles by result",
		}, []string{"result"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dashboard_cycle_duration_seconds",
			Help:    "Time spent loading, mutating and publishing one cycle",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		mutated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_records_mutated_total",
			Help: "Records whose field was rewritten by the mutation engine",
		}, []string{"feed"}),
		records: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dashboard_feed_records",
			Help: "Records loaded for a feed in the last published cycle",
		}, []string{"feed"}),
	}
}

func (m *Metrics) observeCycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) observeFeed(feed string, records, mutated int) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(feed).Set(float64(records))
	m.mutated.WithLabelValues(feed).Add(float64(mutated))
}
