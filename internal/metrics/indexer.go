package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/feral-file/marketplace-indexer/internal/domain"
)

const namespace = "marketplace_indexer"

var (
	tickTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poll_loop",
		Name:      "ticks_total",
		Help:      "Count of polling ticks by outcome.",
	}, []string{"chain", "status"})

	tickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "poll_loop",
		Name:      "tick_duration_seconds",
		Help:      "Duration of a polling tick.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"chain", "status"})

	tickBlocks = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "poll_loop",
		Name:      "tick_blocks",
		Help:      "Number of blocks covered by a successful tick.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"chain"})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "events_total",
		Help:      "Count of dispatched ledger events by kind and outcome.",
	}, []string{"chain", "kind", "status"})

	watermarkHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "poll_loop",
		Name:      "watermark_height",
		Help:      "Highest block fully reconciled.",
	}, []string{"chain"})

	headHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "poll_loop",
		Name:      "head_height",
		Help:      "Latest block height reported by the ledger.",
	}, []string{"chain"})

	lagBlocks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "poll_loop",
		Name:      "lag_blocks",
		Help:      "Blocks between the ledger head and the watermark.",
	}, []string{"chain"})
)

// Indexer tracks metrics for the poll loop and the event router.
type Indexer struct {
	chain string
}

// NewIndexer constructs an Indexer labelled with the chain.
func NewIndexer(chain domain.Chain) *Indexer {
	if chain == "" {
		chain = "unknown"
	}
	return &Indexer{chain: string(chain)}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveTick records a tick outcome, its duration and on success the number of blocks it covered.
func (m *Indexer) ObserveTick(err error, blocks uint64, started time.Time) {
	s := status(err)
	tickTotal.WithLabelValues(m.chain, s).Inc()
	tickDuration.WithLabelValues(m.chain, s).Observe(time.Since(started).Seconds())
	if err == nil && blocks > 0 {
		tickBlocks.WithLabelValues(m.chain).Observe(float64(blocks))
	}
}

// ObserveIdleTick records a tick that found no new blocks.
func (m *Indexer) ObserveIdleTick() {
	tickTotal.WithLabelValues(m.chain, "idle").Inc()
}

// ObserveEvent records the outcome of dispatching one event.
func (m *Indexer) ObserveEvent(kind domain.EventKind, err error) {
	eventsTotal.WithLabelValues(m.chain, string(kind), status(err)).Inc()
}

// SetHeights publishes the watermark, the head and the lag between them.
func (m *Indexer) SetHeights(watermark, head uint64) {
	watermarkHeight.WithLabelValues(m.chain).Set(float64(watermark))
	headHeight.WithLabelValues(m.chain).Set(float64(head))
	var lag uint64
	if head > watermark {
		lag = head - watermark
	}
	lagBlocks.WithLabelValues(m.chain).Set(float64(lag))
}
