package node

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	cfg "github.com/celestiaorg/syncqueue/config"
	"github.com/celestiaorg/syncqueue/libs/log"
	"github.com/celestiaorg/syncqueue/syncer"
	"github.com/celestiaorg/syncqueue/syncqueue"
)

// MetricsProvider returns the queue and syncer Metrics.
type MetricsProvider func() (*syncqueue.Metrics, *syncer.Metrics)

// DefaultMetricsProvider returns Metrics built using the Prometheus client
// library if Prometheus is enabled or metrics are pushed to a gateway.
// Otherwise, it returns no-op Metrics.
func DefaultMetricsProvider(config *cfg.InstrumentationConfig) MetricsProvider {
	return func() (*syncqueue.Metrics, *syncer.Metrics) {
		if config.Prometheus || config.PushGatewayURL != "" {
			return syncqueue.PrometheusMetrics(config.Namespace),
				syncer.PrometheusMetrics(config.Namespace)
		}
		return syncqueue.NopMetrics(), syncer.NopMetrics()
	}
}

// NopMetricsProvider returns no-op Metrics.
func NopMetricsProvider() (*syncqueue.Metrics, *syncer.Metrics) {
	return syncqueue.NopMetrics(), syncer.NopMetrics()
}

// Pusher periodically pushes everything registered with the default
// prometheus registry to a push gateway.
type Pusher struct {
	*push.Pusher
	interval time.Duration
	done     chan struct{}
}

// NewPusher returns nil when no gateway is configured.
func NewPusher(config *cfg.InstrumentationConfig) *Pusher {
	if config.PushGatewayURL == "" {
		return nil
	}

	p := push.New(config.PushGatewayURL, config.Namespace).
		Gatherer(prometheus.DefaultGatherer)

	return &Pusher{Pusher: p, interval: config.PushInterval, done: make(chan struct{}, 1)}
}

// Start pushes until Stop is called. It blocks.
func (p *Pusher) Start(logger log.Logger) {
	if p == nil {
		return
	}
	for {
		err := p.Add()
		if err != nil {
			logger.Error("failed to push metrics", "err", err)
		}
		select {
		case <-p.done:
			return
		case <-time.After(p.interval):
		}
	}
}

func (p *Pusher) Stop() {
	if p == nil {
		return
	}
	select {
	case p.done <- struct{}{}:
	default:
	}
}
