package syncer

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/celestiaorg/syncqueue/behavior"
	"github.com/celestiaorg/syncqueue/libs/service"
	cmtsync "github.com/celestiaorg/syncqueue/libs/sync"
	"github.com/celestiaorg/syncqueue/p2p"
	"github.com/celestiaorg/syncqueue/store"
	"github.com/celestiaorg/syncqueue/syncqueue"
	"github.com/celestiaorg/syncqueue/types"
)

var tracer = otel.Tracer("github.com/celestiaorg/syncqueue/syncer")

// Peer serves headers and blocks to the syncer.
type Peer interface {
	ID() p2p.ID
	GetHeaders(ctx context.Context, req syncqueue.HeadersRequest) ([]*types.Header, error)
	GetBlocks(ctx context.Context, hashes []types.Hash) ([]*types.Block, error)
}

// Syncer drives a SyncQueue against a set of peers and saves whatever the
// queue emits into the block store.
//
// Every tick it asks the queue for header requests, spreads them over the
// peers round robin, fetches them concurrently and feeds the responses back
// in request order. In block mode it then does the same for block bodies.
// It stops by itself once the queue is done.
type Syncer struct {
	service.BaseService

	queue   *syncqueue.SyncQueue
	store   *store.BlockStore
	params  Params
	metrics *Metrics

	reporter behavior.Reporter
	peerSet  *behavior.PeerSetReporter

	mtx    cmtsync.Mutex
	peers  map[p2p.ID]Peer
	offset int
	err    error

	// hashes of headers from chains a single peer served and that failed
	// validation
	badHashes *lru.Cache[types.Hash, p2p.ID]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	doneCh chan struct{}
}

// Option sets an optional parameter on the Syncer.
type Option func(*Syncer)

// WithParams overrides DefaultParams.
func WithParams(p Params) Option {
	return func(s *Syncer) { s.params = p }
}

// WithReporter makes the syncer report peer behavior to r instead of its own
// peer set. Peers are then never dropped by the syncer.
func WithReporter(r behavior.Reporter) Option {
	return func(s *Syncer) { s.reporter = r }
}

// WithMetrics sets the metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Syncer) { s.metrics = m }
}

// NewSyncer returns a syncer feeding q from peers into blockStore.
func NewSyncer(q *syncqueue.SyncQueue, blockStore *store.BlockStore, peers []Peer, opts ...Option) (*Syncer, error) {
	s := &Syncer{
		queue:   q,
		store:   blockStore,
		params:  DefaultParams(),
		metrics: NopMetrics(),
		peers:   make(map[p2p.ID]Peer, len(peers)),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.params.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	cache, err := lru.New[types.Hash, p2p.ID](s.params.BadHashCacheSize)
	if err != nil {
		return nil, err
	}
	s.badHashes = cache

	s.peerSet = behavior.NewPeerSetReporter(nil, s.params.MaxPeerTimeouts, s.onPeerRemoved)
	if s.reporter == nil {
		s.reporter = s.peerSet
	}
	for _, p := range peers {
		s.AddPeer(p)
	}

	s.BaseService = *service.NewBaseService(nil, "Syncer", s)
	return s, nil
}

// OnStart implements service.Service.
func (s *Syncer) OnStart() error {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.metrics.Syncing.Set(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.syncRoutine()
	}()
	return nil
}

// OnStop implements service.Service.
func (s *Syncer) OnStop() {
	s.cancel()
	s.wg.Wait()
}

// Done is closed once the sync has completed or failed.
func (s *Syncer) Done() <-chan struct{} {
	return s.doneCh
}

// Err returns the error that aborted the sync, if any.
func (s *Syncer) Err() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.err
}

// AddPeer makes p available for requests.
func (s *Syncer) AddPeer(p Peer) {
	s.mtx.Lock()
	s.peers[p.ID()] = p
	n := len(s.peers)
	s.mtx.Unlock()

	s.peerSet.Add(p.ID())
	s.metrics.Peers.Set(float64(n))
}

// RemovePeer stops sending requests to the peer.
func (s *Syncer) RemovePeer(id p2p.ID) {
	s.mtx.Lock()
	delete(s.peers, id)
	n := len(s.peers)
	s.mtx.Unlock()

	s.metrics.Peers.Set(float64(n))
}

// HasPeer reports whether the peer is still used.
func (s *Syncer) HasPeer(id p2p.ID) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	_, ok := s.peers[id]
	return ok
}

// NumPeers returns the number of peers in use.
func (s *Syncer) NumPeers() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.peers)
}

func (s *Syncer) onPeerRemoved(id p2p.ID, reason string) {
	s.Logger.Info("Dropping peer", "peer", id, "reason", reason)
	s.RemovePeer(id)
}

func (s *Syncer) syncRoutine() {
	defer s.metrics.Syncing.Set(0)

	ticker := time.NewTicker(s.params.RequestInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			done, err := s.trySync()
			if err != nil {
				s.Logger.Error("Sync aborted", "err", err)
				s.finish(err)
				return
			}
			if done {
				st := s.store.State()
				s.Logger.Info("Sync complete",
					"mode", s.queue.Mode(),
					"header_base", st.HeaderBase,
					"header_height", st.HeaderHeight,
					"height", st.Height)
				s.finish(nil)
				return
			}
		}
	}
}

func (s *Syncer) finish(err error) {
	s.mtx.Lock()
	s.err = err
	s.mtx.Unlock()
	close(s.doneCh)
}

// trySync runs one round of requests and reports whether the queue is done.
func (s *Syncer) trySync() (bool, error) {
	peers := s.rotatePeers()
	if len(peers) == 0 {
		s.Logger.Debug("No peers to sync from")
		return false, nil
	}

	ctx, span := tracer.Start(s.ctx, "sync.round", trace.WithAttributes(
		attribute.String("mode", s.queue.Mode().String()),
		attribute.Int("peers", len(peers)),
		attribute.Int("cached", s.queue.HeadersCount()),
	))
	defer span.End()

	if err := s.syncHeaders(ctx, peers); err != nil {
		span.RecordError(err)
		return false, err
	}
	if !s.queue.Mode().HeadersOnly() {
		if err := s.syncBlocks(ctx, peers); err != nil {
			span.RecordError(err)
			return false, err
		}
	}
	return s.queue.IsDone(), nil
}

// rotatePeers returns the peers in a stable order shifted by one every call,
// so a range a peer failed to serve goes to another peer next time.
func (s *Syncer) rotatePeers() []Peer {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if len(s.peers) == 0 {
		return nil
	}
	ids := slices.Sorted(maps.Keys(s.peers))
	peers := make([]Peer, len(ids))
	for i := range ids {
		peers[i] = s.peers[ids[(i+s.offset)%len(ids)]]
	}
	s.offset++
	return peers
}

func (s *Syncer) syncHeaders(ctx context.Context, peers []Peer) error {
	reqs, done := s.queue.RequestHeaders(
		s.params.MaxHeadersPerRequest,
		s.params.MaxHeaderRequests,
		s.params.MaxTotalHeaders)
	if done || len(reqs) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "sync.headers", trace.WithAttributes(
		attribute.Int("requests", len(reqs))))
	defer span.End()

	responses := make([][]*types.Header, len(reqs))
	g := new(errgroup.Group)
	g.SetLimit(len(peers))
	for i, req := range reqs {
		peer := peers[i%len(peers)]
		s.metrics.RequestsSent.With("kind", "headers").Add(1)
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, s.params.RequestTimeout)
			defer cancel()

			headers, err := peer.GetHeaders(ctx, req)
			if err != nil {
				s.peerFailed(peer.ID(), "headers", err)
				return nil
			}
			responses[i] = headers
			s.report(behavior.GoodResponse(peer.ID()))
			return nil
		})
	}
	_ = g.Wait()
	if s.ctx.Err() != nil {
		return nil
	}

	for i, headers := range responses {
		if len(headers) == 0 {
			continue
		}
		if err := s.addHeaders(peers[i%len(peers)].ID(), headers); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) addHeaders(peerID p2p.ID, headers []*types.Header) error {
	wrapped := make([]syncqueue.HeaderWrapper, 0, len(headers))
	dropped := 0
	for _, h := range headers {
		if h == nil {
			continue
		}
		if s.badHashes.Contains(h.Hash()) {
			dropped++
			continue
		}
		wrapped = append(wrapped, syncqueue.HeaderWrapper{Header: h, PeerID: peerID})
	}
	if dropped > 0 {
		s.Logger.Debug("Dropped known bad headers", "peer", peerID, "count", dropped)
	}

	res := s.queue.AddHeadersAndValidate(wrapped)
	if res.Valid {
		return s.saveHeaders(res.Headers)
	}

	blamed := res.PeerID()
	s.metrics.PeerErrors.Add(1)
	s.Logger.Info("Peer served an invalid chain", "peer", blamed, "err", res.Err)
	s.rememberBad(res.Headers)
	s.report(behavior.BadHeaders(blamed, res.Err.Error()))

	if !s.queue.Mode().HeadersOnly() {
		return nil
	}
	// headers accepted before the rejection are released by the next add
	return s.saveHeaders(s.queue.AddHeaders(nil))
}

// rememberBad caches the hashes of an invalid chain when one peer served all
// of it. Mixed chains may hold good headers and are not cached.
func (s *Syncer) rememberBad(headers []syncqueue.HeaderWrapper) {
	if len(headers) == 0 {
		return
	}
	origin := headers[0].PeerID
	for _, hw := range headers[1:] {
		if hw.PeerID != origin {
			return
		}
	}
	for _, hw := range headers {
		s.badHashes.Add(hw.Header.Hash(), origin)
	}
}

func (s *Syncer) saveHeaders(wrapped []syncqueue.HeaderWrapper) error {
	if len(wrapped) == 0 {
		return nil
	}
	headers := syncqueue.UnwrapHeaders(wrapped)

	var err error
	if s.queue.Mode() == syncqueue.ModeReverse {
		err = s.store.SaveHeadersReverse(headers)
	} else {
		err = s.store.SaveHeaders(headers)
	}
	if err != nil {
		return fmt.Errorf("failed to save headers #%d..#%d: %w",
			headers[0].Number, headers[len(headers)-1].Number, err)
	}
	s.metrics.StoreHeight.Set(float64(headers[len(headers)-1].Number))
	return nil
}

func (s *Syncer) syncBlocks(ctx context.Context, peers []Peer) error {
	req := s.queue.RequestBlocks(s.params.MaxBlocksPerRequest * len(peers))
	if req.IsEmpty() {
		return nil
	}

	ctx, span := tracer.Start(ctx, "sync.blocks", trace.WithAttributes(
		attribute.Int("blocks", len(req.Headers))))
	defer span.End()

	pieces := req.Split(s.params.MaxBlocksPerRequest)
	responses := make([][]*types.Block, len(pieces))
	g := new(errgroup.Group)
	for i, piece := range pieces {
		peer := peers[i%len(peers)]
		s.metrics.RequestsSent.With("kind", "blocks").Add(1)
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, s.params.RequestTimeout)
			defer cancel()

			hashes := piece.Hashes()
			blocks, err := peer.GetBlocks(ctx, hashes)
			if err != nil {
				s.peerFailed(peer.ID(), "blocks", err)
				return nil
			}
			if err := checkBlocks(hashes, blocks); err != nil {
				s.metrics.PeerErrors.Add(1)
				s.Logger.Info("Peer served a bad block", "peer", peer.ID(), "err", err)
				s.report(behavior.BadBlock(peer.ID(), err.Error()))
				return nil
			}
			responses[i] = blocks
			s.report(behavior.GoodResponse(peer.ID()))
			return nil
		})
	}
	_ = g.Wait()
	if s.ctx.Err() != nil {
		return nil
	}

	var received []*types.Block
	for _, blocks := range responses {
		received = append(received, blocks...)
	}
	blocks := s.queue.AddBlocks(received)
	if len(blocks) == 0 {
		return nil
	}
	if err := s.store.SaveBlocks(blocks); err != nil {
		return fmt.Errorf("failed to save blocks #%d..#%d: %w",
			blocks[0].Number(), blocks[len(blocks)-1].Number(), err)
	}
	s.metrics.StoreHeight.Set(float64(blocks[len(blocks)-1].Number()))
	return nil
}

// checkBlocks verifies that every block was asked for and carries the body
// its header commits to.
func checkBlocks(requested []types.Hash, blocks []*types.Block) error {
	want := make(map[types.Hash]struct{}, len(requested))
	for _, hash := range requested {
		want[hash] = struct{}{}
	}
	for _, b := range blocks {
		if err := b.ValidateBasic(); err != nil {
			return fmt.Errorf("block #%d: %w", b.Number(), err)
		}
		if _, ok := want[b.Hash()]; !ok {
			return fmt.Errorf("unrequested block #%d %v", b.Number(), b.Hash().Short())
		}
	}
	return nil
}

func (s *Syncer) peerFailed(id p2p.ID, kind string, err error) {
	if s.ctx.Err() != nil {
		return
	}
	s.metrics.PeerErrors.Add(1)
	s.Logger.Debug("Peer request failed", "peer", id, "kind", kind, "err", err)
	s.report(behavior.Timeout(id, kind))
}

func (s *Syncer) report(b behavior.PeerBehavior) {
	if err := s.reporter.Report(b); err != nil {
		s.Logger.Debug("Failed to report peer behavior", "peer", b.PeerID(), "err", err)
	}
}
