package mock

import (
	"context"
	"sync/atomic"
	"time"

	cmtsync "github.com/celestiaorg/syncqueue/libs/sync"
	"github.com/celestiaorg/syncqueue/p2p"
	"github.com/celestiaorg/syncqueue/syncqueue"
	"github.com/celestiaorg/syncqueue/types"
)

// Peer serves headers and blocks of a fixed chain from memory.
type Peer struct {
	id p2p.ID

	mtx      cmtsync.RWMutex
	headers  map[uint64]*types.Header
	numbers  map[types.Hash]uint64
	blocks   map[types.Hash]*types.Block
	height   uint64
	corrupt  uint64 // serve forged headers from this number on, 0 = never
	forged   map[types.Hash]types.Hash
	latency  time.Duration
	silent   bool
	requests atomic.Int64
}

// PeerOption sets an optional parameter on the Peer.
type PeerOption func(*Peer)

// WithCorruptionFrom makes the peer serve a forged chain from number n on.
// The first forged header claims a time a day before its parent, and every
// forged header links to the forged one below it.
func WithCorruptionFrom(n uint64) PeerOption {
	return func(p *Peer) { p.corrupt = n }
}

// WithLatency delays every response.
func WithLatency(d time.Duration) PeerOption {
	return func(p *Peer) { p.latency = d }
}

// WithSilence makes the peer never answer.
func WithSilence() PeerOption {
	return func(p *Peer) { p.silent = true }
}

// NewPeer returns a peer serving blocks.
func NewPeer(id p2p.ID, blocks []*types.Block, opts ...PeerOption) *Peer {
	p := &Peer{
		id:      id,
		headers: make(map[uint64]*types.Header, len(blocks)),
		numbers: make(map[types.Hash]uint64, len(blocks)),
		blocks:  make(map[types.Hash]*types.Block, len(blocks)),
		forged:  make(map[types.Hash]types.Hash),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.Extend(blocks...)
	return p
}

// Extend adds blocks to the served chain.
func (p *Peer) Extend(blocks ...*types.Block) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	for _, b := range blocks {
		h := b.Header
		if p.corrupt > 0 && h.Number >= p.corrupt {
			forged := *h
			forged.Time = h.Time.Add(-24 * time.Hour)
			if parent, ok := p.forged[h.ParentHash]; ok {
				forged.ParentHash = parent
			}
			p.forged[h.Hash()] = forged.Hash()
			h = &forged
		}
		hash := h.Hash()
		p.headers[h.Number] = h
		p.numbers[hash] = h.Number
		p.blocks[hash] = b
		if h.Number > p.height {
			p.height = h.Number
		}
	}
}

// ID returns the peer ID.
func (p *Peer) ID() p2p.ID { return p.id }

// Height returns the highest served number.
func (p *Peer) Height() uint64 {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return p.height
}

// Requests returns the number of requests served so far.
func (p *Peer) Requests() int {
	return int(p.requests.Load())
}

// GetHeaders answers a headers request. The response stops at the first
// number the peer does not have. A request anchored on an unknown hash gets
// an empty response.
func (p *Peer) GetHeaders(ctx context.Context, req syncqueue.HeadersRequest) ([]*types.Header, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	p.mtx.RLock()
	defer p.mtx.RUnlock()

	if req.HasHash() {
		n, ok := p.numbers[req.Hash]
		if !ok {
			return nil, nil
		}
		req.Start = n
	}
	var headers []*types.Header
	for _, n := range req.Numbers() {
		h, ok := p.headers[n]
		if !ok {
			break
		}
		headers = append(headers, h)
	}
	return headers, nil
}

// GetBlocks returns the known blocks among hashes.
func (p *Peer) GetBlocks(ctx context.Context, hashes []types.Hash) ([]*types.Block, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	p.mtx.RLock()
	defer p.mtx.RUnlock()

	blocks := make([]*types.Block, 0, len(hashes))
	for _, hash := range hashes {
		if b, ok := p.blocks[hash]; ok {
			blocks = append(blocks, b)
		}
	}
	return blocks, nil
}

func (p *Peer) wait(ctx context.Context) error {
	p.requests.Add(1)
	if p.silent {
		<-ctx.Done()
		return ctx.Err()
	}
	if p.latency == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
