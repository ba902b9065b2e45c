package syncqueue

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "syncqueue"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of headers held by the queue.
	HeadersCount metrics.Gauge

	// Number of chain segments held by the queue.
	Segments metrics.Gauge

	// Number of candidate chains rejected by the parent validator.
	InvalidChains metrics.Counter

	// Number of headers dropped, either by a failed validation or because
	// they could no longer link to the frontier.
	ErasedHeaders metrics.Counter

	// Number of headers emitted in header-only modes.
	HeadersEmitted metrics.Counter

	// Number of blocks emitted for import.
	BlocksEmitted metrics.Counter

	// Number of received blocks that matched no validated header.
	DiscardedBlocks metrics.Counter

	// Number of the last emitted header or block.
	FrontierHeight metrics.Gauge

	// Current queue state, see State.
	State metrics.Gauge
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		HeadersCount: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "headers_count",
			Help:      "Number of headers held by the queue.",
		}, labels).With(labelsAndValues...),
		Segments: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "segments",
			Help:      "Number of chain segments held by the queue.",
		}, labels).With(labelsAndValues...),
		InvalidChains: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "invalid_chains",
			Help:      "Number of candidate chains rejected by the parent validator.",
		}, labels).With(labelsAndValues...),
		ErasedHeaders: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "erased_headers",
			Help:      "Number of headers dropped by validation or pruning.",
		}, labels).With(labelsAndValues...),
		HeadersEmitted: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "headers_emitted",
			Help:      "Number of headers emitted in header-only modes.",
		}, labels).With(labelsAndValues...),
		BlocksEmitted: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "blocks_emitted",
			Help:      "Number of blocks emitted for import.",
		}, labels).With(labelsAndValues...),
		DiscardedBlocks: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "discarded_blocks",
			Help:      "Number of received blocks that matched no validated header.",
		}, labels).With(labelsAndValues...),
		FrontierHeight: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "frontier_height",
			Help:      "Number of the last emitted header or block.",
		}, labels).With(labelsAndValues...),
		State: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "state",
			Help:      "Current queue state.",
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		HeadersCount:    discard.NewGauge(),
		Segments:        discard.NewGauge(),
		InvalidChains:   discard.NewCounter(),
		ErasedHeaders:   discard.NewCounter(),
		HeadersEmitted:  discard.NewCounter(),
		BlocksEmitted:   discard.NewCounter(),
		DiscardedBlocks: discard.NewCounter(),
		FrontierHeight:  discard.NewGauge(),
		State:           discard.NewGauge(),
	}
}
