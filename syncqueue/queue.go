package syncqueue

import (
	"github.com/celestiaorg/syncqueue/libs/log"
	cmtsync "github.com/celestiaorg/syncqueue/libs/sync"
	"github.com/celestiaorg/syncqueue/types"
)

/*
SyncQueue turns header and block responses from many peers into a single
ordered stream.

The planning loop calls RequestHeaders and RequestBlocks and hands the
requests to peers. Peer handlers feed responses back through AddHeaders,
AddHeadersAndValidate and AddBlocks, each returning whatever became ready
for import. Responses may arrive late, twice, out of order or not at all:
the planner keeps no state about issued requests and simply asks again for
whatever is still missing.

Memory is bounded by the maxTotalHeaders argument of RequestHeaders: once
the queue holds that many headers it stops planning until validated headers
are drained.
*/
type SyncQueue struct {
	Logger log.Logger

	mtx       cmtsync.Mutex
	pool      *headerPool
	strategy  strategy
	validator ParentValidator
	state     State
	metrics   *Metrics

	// construction options
	endNumber   uint64
	hasEnd      bool
	headersOnly bool
}

// Option sets an optional parameter on the SyncQueue.
type Option func(*SyncQueue)

// WithEndNumber bounds the sync. Forward queues stop after emitting n,
// reverse queues stop after emitting n.
func WithEndNumber(n uint64) Option {
	return func(q *SyncQueue) {
		q.endNumber = n
		q.hasEnd = true
	}
}

// WithValidator sets the validator used by AddHeadersAndValidate. The
// default is LinkageValidator.
func WithValidator(v ParentValidator) Option {
	return func(q *SyncQueue) { q.validator = v }
}

// WithHeadersOnly makes a forward queue emit validated headers from
// AddHeaders instead of downloading blocks.
func WithHeadersOnly() Option {
	return func(q *SyncQueue) { q.headersOnly = true }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(q *SyncQueue) { q.Logger = l }
}

// WithMetrics sets the metrics.
func WithMetrics(m *Metrics) Option {
	return func(q *SyncQueue) { q.metrics = m }
}

func newSyncQueue(opts []Option) *SyncQueue {
	q := &SyncQueue{
		Logger:    log.NewNopLogger(),
		pool:      newHeaderPool(),
		validator: LinkageValidator{},
		metrics:   NopMetrics(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// NewForwardQueue returns a queue syncing upwards from root, which is
// trusted and never emitted.
func NewForwardQueue(root *types.Header, opts ...Option) *SyncQueue {
	q := newSyncQueue(opts)
	q.strategy = newForwardStrategy(q.pool, root, q.endNumber, q.hasEnd, q.headersOnly)
	q.Logger = q.Logger.With("mode", q.strategy.mode())
	return q
}

// NewReverseQueue returns a header-only queue syncing downwards from the
// anchor, which is the first header emitted. WithEndNumber sets the lowest
// number to emit, zero by default.
func NewReverseQueue(anchorHash types.Hash, anchorNumber uint64, opts ...Option) *SyncQueue {
	q := newSyncQueue(opts)
	q.strategy = newReverseStrategy(q.pool, anchorHash, anchorNumber, q.endNumber)
	q.Logger = q.Logger.With("mode", q.strategy.mode())
	return q
}

// SetLogger sets the logger.
func (q *SyncQueue) SetLogger(l log.Logger) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	q.Logger = l.With("mode", q.strategy.mode())
}

// Mode returns the strategy picked at construction.
func (q *SyncQueue) Mode() Mode {
	return q.strategy.mode()
}

// RequestHeaders returns the header requests needed next.
//
// done is true once the end condition is covered and no more headers are
// needed. Otherwise reqs is empty (but not nil) when the queue already holds
// maxTotalHeaders headers, and holds 1..maxRequests non-overlapping requests
// of at most maxSize headers otherwise, lowest gaps first in forward mode and
// highest first in reverse mode.
func (q *SyncQueue) RequestHeaders(maxSize, maxRequests, maxTotalHeaders int) (reqs []HeadersRequest, done bool) {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	budget := maxTotalHeaders - q.pool.size()
	reqs, done = q.strategy.planHeaders(maxSize, maxRequests, budget)
	switch {
	case done && q.pool.size() == 0:
		q.setState(StateDone)
	case done:
	case len(reqs) > 0:
		q.setState(StateHeadersInFlight)
	case q.pool.size() == 0:
		q.setState(StateIdle)
	default:
		q.Logger.Debug("Header requests on hold", "cached", q.pool.size(), "max", maxTotalHeaders)
	}
	return reqs, done
}

// AddHeaders inserts headers from any peers in any order. Header-only modes
// return the headers that became ready, ascending in forward mode and
// descending in reverse mode. In block mode it returns nil and headers are
// emitted later as blocks by AddBlocks.
//
// Chains linking to the frontier are accepted without validation.
func (q *SyncQueue) AddHeaders(headers []HeaderWrapper) []HeaderWrapper {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	res := q.addHeaders(headers, nil)
	if !q.strategy.mode().HeadersOnly() {
		return nil
	}
	return res.emitted
}

// AddHeadersAndValidate is AddHeaders with every candidate chain checked by
// the parent validator before it is accepted. A rejected chain is erased and
// returned with Valid set to false. Reverse queues skip validation.
//
// In forward header-only mode, headers accepted in the same call before a
// rejection are held back and emitted by the next add call, which may carry
// no headers at all.
func (q *SyncQueue) AddHeadersAndValidate(headers []HeaderWrapper) ValidatedHeaders {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	v := q.validator
	if q.strategy.mode() == ModeReverse {
		v = nil
	}
	res := q.addHeaders(headers, v)
	if res.invalid != nil {
		return ValidatedHeaders{Headers: res.invalid.Headers, Valid: false, Err: *res.invalid}
	}
	if !q.strategy.mode().HeadersOnly() || len(res.emitted) == 0 {
		return EmptyValidatedHeaders
	}
	return ValidatedHeaders{Headers: res.emitted, Valid: true}
}

// CONTRACT: q.mtx must be held.
func (q *SyncQueue) addHeaders(headers []HeaderWrapper, v ParentValidator) trimResult {
	added := q.pool.addBatch(headers)
	res := q.strategy.trim(v)

	if res.invalid != nil {
		q.metrics.InvalidChains.Add(1)
		q.Logger.Info("Invalid chain erased",
			"peer", res.invalid.PeerID,
			"from", res.invalid.Headers[0].Header.Number,
			"count", len(res.invalid.Headers),
			"err", res.invalid.Reason)
	}
	if res.erased > 0 {
		q.metrics.ErasedHeaders.Add(float64(res.erased))
	}
	if n := len(res.emitted); n > 0 {
		q.metrics.HeadersEmitted.Add(float64(n))
		q.Logger.Debug("Headers emitted",
			"from", res.emitted[0].Header.Number,
			"to", res.emitted[n-1].Header.Number)
	}
	q.Logger.Debug("Headers added", "received", len(headers), "added", added, "erased", res.erased)

	switch {
	case q.strategy.finished() && q.pool.size() == 0:
		q.setState(StateDone)
	case len(res.emitted) > 0:
		q.setState(StateDraining)
	case added > 0:
		q.setState(StateHeadersPartial)
	}
	q.updateMetrics()
	return res
}

// RequestBlocks returns up to maxSize validated headers still waiting for
// their block, lowest first. The request is empty when there are none, and
// always in header-only modes.
func (q *SyncQueue) RequestBlocks(maxSize int) BlocksRequest {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	req := q.strategy.requestBlocks(maxSize)
	if !req.IsEmpty() {
		q.setState(StateBlocksInFlight)
	}
	return req
}

// AddBlocks matches blocks to validated headers and returns the run of
// blocks now ready for import, ascending. Blocks matching no validated
// header are dropped.
func (q *SyncQueue) AddBlocks(blocks []*types.Block) []*types.Block {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	emitted, discarded := q.strategy.addBlocks(blocks)
	if discarded > 0 {
		q.metrics.DiscardedBlocks.Add(float64(discarded))
		q.Logger.Debug("Blocks discarded", "count", discarded)
	}
	if n := len(emitted); n > 0 {
		q.metrics.BlocksEmitted.Add(float64(n))
		q.Logger.Debug("Blocks emitted", "from", emitted[0].Header.Number, "to", emitted[n-1].Header.Number)
		if q.strategy.finished() && q.pool.size() == 0 {
			q.setState(StateDone)
		} else {
			q.setState(StateDraining)
		}
	}
	q.updateMetrics()
	return emitted
}

// HeadersCount returns the number of headers held by the queue. It does not
// take the lock, so the value may be slightly stale.
func (q *SyncQueue) HeadersCount() int {
	return q.pool.size()
}

// State returns the current phase.
func (q *SyncQueue) State() State {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return q.state
}

// Frontier returns the header the next emitted item attaches to: the last
// emitted header in forward mode, the next expected header in reverse mode.
func (q *SyncQueue) Frontier() (uint64, types.Hash) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return q.strategy.frontier()
}

// IsDone reports whether everything up to the end has been emitted.
func (q *SyncQueue) IsDone() bool {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return q.strategy.finished()
}

// CONTRACT: q.mtx must be held.
func (q *SyncQueue) setState(s State) {
	if q.state == s || q.state == StateDone {
		return
	}
	q.Logger.Debug("State change", "from", q.state, "to", s)
	q.state = s
	q.metrics.State.Set(float64(s))
}

// CONTRACT: q.mtx must be held.
func (q *SyncQueue) updateMetrics() {
	q.metrics.HeadersCount.Set(float64(q.pool.size()))
	q.metrics.Segments.Set(float64(q.pool.numSegments()))
	number, _ := q.strategy.frontier()
	q.metrics.FrontierHeight.Set(float64(number))
}
