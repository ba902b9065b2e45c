package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	cfg "github.com/celestiaorg/syncqueue/config"
	"github.com/celestiaorg/syncqueue/libs/log"
	"github.com/celestiaorg/syncqueue/libs/service"
	"github.com/celestiaorg/syncqueue/store"
	"github.com/celestiaorg/syncqueue/syncer"
	"github.com/celestiaorg/syncqueue/syncqueue"
	"github.com/celestiaorg/syncqueue/types"
)

// Node is the highest level interface to a sync node.
// It wires the block store, the sync queue and the syncer together and
// serves metrics.
type Node struct {
	service.BaseService

	config     *cfg.Config
	genesis    *types.Header
	blockStore *store.BlockStore
	queue      *syncqueue.SyncQueue
	syncer     *syncer.Syncer

	metricsListener net.Listener
	metricsServer   *http.Server
	pusher          *Pusher
	profiler        *pyroscope.Profiler
	tracerProvider  *sdktrace.TracerProvider
}

// Option sets a parameter for the node.
type Option func(*Node)

// WithGenesis bootstraps an empty block store with the header forward sync
// starts from.
func WithGenesis(h *types.Header) Option {
	return func(n *Node) { n.genesis = h }
}

// NewNode returns a new, ready to go, sync node syncing from peers.
func NewNode(
	config *cfg.Config,
	logger log.Logger,
	peers []syncer.Peer,
	dbProvider cfg.DBProvider,
	metricsProvider MetricsProvider,
	options ...Option,
) (*Node, error) {
	if err := config.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	node := &Node{config: config}
	for _, option := range options {
		option(node)
	}

	db, err := dbProvider(&cfg.DBContext{ID: "blockstore", Config: config})
	if err != nil {
		return nil, fmt.Errorf("failed to open block store db: %w", err)
	}
	node.blockStore = store.NewBlockStore(db)

	if node.genesis != nil && !node.blockStore.HasHeaders() && config.Sync.Mode != cfg.SyncModeReverse {
		if err := node.blockStore.Bootstrap(node.genesis); err != nil {
			node.blockStore.Close()
			return nil, err
		}
		logger.Info("Bootstrapped block store", "number", node.genesis.Number, "hash", node.genesis.Hash())
	}

	queueMetrics, syncerMetrics := metricsProvider()

	node.queue, err = makeQueue(config.Sync, node.blockStore, logger.With("module", "syncqueue"), queueMetrics)
	if err != nil {
		node.blockStore.Close()
		return nil, err
	}

	node.syncer, err = syncer.NewSyncer(node.queue, node.blockStore, peers,
		syncer.WithParams(syncParams(config.Sync)),
		syncer.WithMetrics(syncerMetrics))
	if err != nil {
		node.blockStore.Close()
		return nil, err
	}
	node.syncer.SetLogger(logger.With("module", "syncer"))

	node.pusher = NewPusher(config.Instrumentation)

	node.BaseService = *service.NewBaseService(logger, "Node", node)
	return node, nil
}

// makeQueue builds the queue for the configured mode on top of what the
// store already holds.
func makeQueue(
	config *cfg.SyncConfig,
	blockStore *store.BlockStore,
	logger log.Logger,
	metrics *syncqueue.Metrics,
) (*syncqueue.SyncQueue, error) {
	opts := []syncqueue.Option{
		syncqueue.WithLogger(logger),
		syncqueue.WithMetrics(metrics),
	}

	switch config.Mode {
	case cfg.SyncModeForward, cfg.SyncModeForwardHeaders:
		if !blockStore.HasHeaders() {
			return nil, errors.New("block store is empty, run init first")
		}
		if config.EndNumber > 0 {
			opts = append(opts, syncqueue.WithEndNumber(config.EndNumber))
		}
		if config.Mode == cfg.SyncModeForwardHeaders {
			opts = append(opts, syncqueue.WithHeadersOnly())
		}
		root := blockStore.LoadHeader(blockStore.HeaderHeight())
		logger.Info("Syncing forward", "root", root.Number, "end", config.EndNumber)
		return syncqueue.NewForwardQueue(root, opts...), nil

	case cfg.SyncModeReverse:
		var (
			anchorHash   types.Hash
			anchorNumber uint64
		)
		switch {
		case config.ReverseAnchorHash != "":
			hash, err := types.HashFromHex(config.ReverseAnchorHash)
			if err != nil {
				return nil, fmt.Errorf("invalid reverse anchor: %w", err)
			}
			anchorHash, anchorNumber = hash, config.ReverseAnchorNumber
			if blockStore.HasHeaders() {
				base := blockStore.LoadHeader(blockStore.HeaderBase())
				if base.Number == 0 || base.ParentHash != anchorHash || base.Number-1 != anchorNumber {
					return nil, fmt.Errorf("reverse anchor #%d %v does not sit below stored base #%d",
						anchorNumber, anchorHash, base.Number)
				}
			}
		case blockStore.HasHeaders():
			base := blockStore.LoadHeader(blockStore.HeaderBase())
			if base.Number == 0 {
				return nil, errors.New("nothing below the lowest stored header")
			}
			anchorHash, anchorNumber = base.ParentHash, base.Number-1
		default:
			return nil, errors.New("reverse sync needs an anchor header or a non empty block store")
		}
		if anchorNumber < config.EndNumber {
			return nil, fmt.Errorf("anchor #%d is below end number %d", anchorNumber, config.EndNumber)
		}
		opts = append(opts, syncqueue.WithEndNumber(config.EndNumber))
		logger.Info("Syncing in reverse", "anchor", anchorNumber, "hash", anchorHash, "end", config.EndNumber)
		return syncqueue.NewReverseQueue(anchorHash, anchorNumber, opts...), nil

	default:
		return nil, fmt.Errorf("unknown sync mode %q", config.Mode)
	}
}

func syncParams(config *cfg.SyncConfig) syncer.Params {
	return syncer.Params{
		MaxHeadersPerRequest: config.MaxHeadersPerRequest,
		MaxHeaderRequests:    config.MaxHeaderRequests,
		MaxTotalHeaders:      config.MaxTotalHeaders,
		MaxBlocksPerRequest:  config.MaxBlocksPerRequest,
		RequestInterval:      config.RequestInterval,
		RequestTimeout:       config.RequestTimeout,
		MaxPeerTimeouts:      config.MaxPeerTimeouts,
		BadHashCacheSize:     config.BadHashCacheSize,
	}
}

// OnStart starts the metrics endpoints, the profiler and the syncer.
func (n *Node) OnStart() error {
	if n.config.Instrumentation.Prometheus {
		if err := n.startPrometheusServer(); err != nil {
			return err
		}
	}

	if n.pusher != nil {
		go n.pusher.Start(n.Logger.With("module", "pusher"))
	}

	if n.config.Instrumentation.PyroscopeURL != "" {
		profiler, tp, err := setupPyroscope(n.config.Instrumentation, map[string]string{
			"mode": n.config.Sync.Mode,
		})
		if err != nil {
			return err
		}
		n.profiler, n.tracerProvider = profiler, tp
	}

	return n.syncer.Start()
}

// OnStop stops the syncer, then everything OnStart started, and closes the
// block store.
func (n *Node) OnStop() {
	n.BaseService.OnStop()

	n.Logger.Info("Stopping Node")

	if err := n.syncer.Stop(); err != nil {
		n.Logger.Error("Error stopping syncer", "err", err)
	}

	if n.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := n.metricsServer.Shutdown(ctx); err != nil {
			n.Logger.Error("Prometheus HTTP server Shutdown", "err", err)
		}
		cancel()
	}

	n.pusher.Stop()

	if n.profiler != nil {
		if err := n.profiler.Stop(); err != nil {
			n.Logger.Error("Pyroscope profiler Stop", "err", err)
		}
	}

	if n.tracerProvider != nil {
		if err := n.tracerProvider.Shutdown(context.Background()); err != nil {
			n.Logger.Error("Tracer provider Shutdown", "err", err)
		}
	}

	if err := n.blockStore.Close(); err != nil {
		n.Logger.Error("problem closing blockstore", "err", err)
	}
}

// startPrometheusServer starts a Prometheus HTTP server, listening for
// metrics collectors on the configured address.
func (n *Node) startPrometheusServer() error {
	ln, err := net.Listen("tcp", n.config.Instrumentation.PrometheusListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen for prometheus: %w", err)
	}
	n.metricsListener = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics",
		promhttp.InstrumentMetricHandler(
			prometheus.DefaultRegisterer, promhttp.HandlerFor(
				prometheus.DefaultGatherer,
				promhttp.HandlerOpts{MaxRequestsInFlight: 3},
			),
		),
	)
	n.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := n.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Error starting or closing listener:
			n.Logger.Error("Prometheus HTTP server ListenAndServe", "err", err)
		}
	}()
	n.Logger.Info("Serving metrics", "addr", ln.Addr())
	return nil
}

// MetricsAddr returns the address metrics are served on, nil when
// prometheus is off or the node is not running.
func (n *Node) MetricsAddr() net.Addr {
	if n.metricsListener == nil {
		return nil
	}
	return n.metricsListener.Addr()
}

// Done is closed once the sync has completed or failed.
func (n *Node) Done() <-chan struct{} {
	return n.syncer.Done()
}

// Err returns the error that aborted the sync, if any.
func (n *Node) Err() error {
	return n.syncer.Err()
}

// Config returns the Node's config.
func (n *Node) Config() *cfg.Config {
	return n.config
}

// BlockStore returns the Node's BlockStore.
func (n *Node) BlockStore() *store.BlockStore {
	return n.blockStore
}

// Queue returns the Node's SyncQueue.
func (n *Node) Queue() *syncqueue.SyncQueue {
	return n.queue
}

// Syncer returns the Node's Syncer.
func (n *Node) Syncer() *syncer.Syncer {
	return n.syncer
}
