package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of a single token refresh
const (
	RefreshUpdated   = "updated"
	RefreshUnchanged = "unchanged"
	RefreshFailed    = "failed"
	RefreshError     = "error"
)

var (
	sweepTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "metadata_sweeper",
		Name:      "sweeps_total",
		Help:      "Count of sweep cycles by outcome.",
	}, []string{"status"})

	sweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "metadata_sweeper",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of a sweep cycle.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "metadata_sweeper",
		Name:      "refresh_total",
		Help:      "Count of token metadata refreshes by outcome.",
	}, []string{"status"})
)

// Sweeper tracks metrics for the metadata sweeper.
type Sweeper struct{}

// NewSweeper constructs a Sweeper.
func NewSweeper() *Sweeper {
	return &Sweeper{}
}

// ObserveSweep records a sweep cycle outcome and duration.
func (m *Sweeper) ObserveSweep(err error, started time.Time) {
	s := status(err)
	sweepTotal.WithLabelValues(s).Inc()
	sweepDuration.WithLabelValues(s).Observe(time.Since(started).Seconds())
}

// ObserveRefresh records the outcome of refreshing one token.
func (m *Sweeper) ObserveRefresh(outcome string) {
	refreshTotal.WithLabelValues(outcome).Inc()
}
