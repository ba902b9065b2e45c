package syncer

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "syncer"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Whether or not the node is syncing. 1 if yes, 0 if no.
	Syncing metrics.Gauge

	// Number of requests sent to peers, labelled by kind.
	RequestsSent metrics.Counter

	// Number of failed or invalid peer responses.
	PeerErrors metrics.Counter

	// Highest header or block number saved to the store.
	StoreHeight metrics.Gauge

	// Number of usable peers.
	Peers metrics.Gauge
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
		Syncing: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "syncing",
			Help:      "Whether or not the node is syncing. 1 if yes, 0 if no.",
		}, labels).With(labelsAndValues...),
		RequestsSent: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "requests_sent",
			Help:      "Number of requests sent to peers.",
		}, append(labels, "kind")).With(labelsAndValues...),
		PeerErrors: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "peer_errors",
			Help:      "Number of failed or invalid peer responses.",
		}, labels).With(labelsAndValues...),
		StoreHeight: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "store_height",
			Help:      "Highest header or block number saved to the store.",
		}, labels).With(labelsAndValues...),
		Peers: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "peers",
			Help:      "Number of usable peers.",
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Syncing:      discard.NewGauge(),
		RequestsSent: discard.NewCounter(),
		PeerErrors:   discard.NewCounter(),
		StoreHeight:  discard.NewGauge(),
		Peers:        discard.NewGauge(),
	}
}
