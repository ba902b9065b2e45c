package store

import (
	"fmt"

	dbm "github.com/cometbft/cometbft-db"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	cmtsync "github.com/celestiaorg/syncqueue/libs/sync"
	"github.com/celestiaorg/syncqueue/types"
)

const headerCacheSize = 512

/*
BlockStore is a simple low level store for the output of the sync queue.

There are three types of information stored:
  - Header:   every header handed to the store, by number
  - Block:    every block handed to the store, by number
  - Hash:     a header hash to number index

Headers form one contiguous run [HeaderBase, HeaderHeight], which grows
upwards via SaveBlocks and SaveHeaders and downwards via SaveHeadersReverse.
Blocks form a contiguous run [Base, Height] inside it.

// NOTE: BlockStore methods will panic if they encounter errors
// deserializing loaded data, indicating probable corruption on disk.
*/
type BlockStore struct {
	db dbm.DB

	// mtx guards access to the struct fields listed below it. Writes are
	// serialized by it as well, since every save checks linkage against the
	// current bounds.
	mtx   cmtsync.RWMutex
	state State

	headerCache *lru.Cache[uint64, *types.Header]
}

// NewBlockStore returns a new BlockStore with the given DB,
// initialized to the last height that was committed to the DB.
func NewBlockStore(db dbm.DB) *BlockStore {
	cache, err := lru.New[uint64, *types.Header](headerCacheSize)
	if err != nil {
		panic(err)
	}
	return &BlockStore{
		db:          db,
		state:       LoadState(db),
		headerCache: cache,
	}
}

// Base returns the first known contiguous block number, or 0 for stores
// without blocks.
func (bs *BlockStore) Base() uint64 {
	bs.mtx.RLock()
	defer bs.mtx.RUnlock()
	return bs.state.Base
}

// Height returns the last known contiguous block number, or 0 for stores
// without blocks.
func (bs *BlockStore) Height() uint64 {
	bs.mtx.RLock()
	defer bs.mtx.RUnlock()
	return bs.state.Height
}

// Size returns the number of blocks in the store.
func (bs *BlockStore) Size() uint64 {
	bs.mtx.RLock()
	defer bs.mtx.RUnlock()
	if !bs.state.HasBlocks {
		return 0
	}
	return bs.state.Height - bs.state.Base + 1
}

// HeaderBase returns the lowest stored header number.
func (bs *BlockStore) HeaderBase() uint64 {
	bs.mtx.RLock()
	defer bs.mtx.RUnlock()
	return bs.state.HeaderBase
}

// HeaderHeight returns the highest stored header number.
func (bs *BlockStore) HeaderHeight() uint64 {
	bs.mtx.RLock()
	defer bs.mtx.RUnlock()
	return bs.state.HeaderHeight
}

// HasHeaders reports whether any header was saved.
func (bs *BlockStore) HasHeaders() bool {
	bs.mtx.RLock()
	defer bs.mtx.RUnlock()
	return bs.state.HasHeaders
}

// State returns a copy of the persisted bounds.
func (bs *BlockStore) State() State {
	bs.mtx.RLock()
	defer bs.mtx.RUnlock()
	return bs.state
}

// LoadHeader returns the header with the given number.
// If no header is found for that number, it returns nil.
func (bs *BlockStore) LoadHeader(number uint64) *types.Header {
	if h, ok := bs.headerCache.Get(number); ok {
		return h
	}
	bz, err := bs.db.Get(headerKey(number))
	if err != nil {
		panic(err)
	}
	if len(bz) == 0 {
		return nil
	}
	h, err := types.HeaderFromBytes(bz)
	if err != nil {
		panic(fmt.Sprintf("Error reading header: %v", err))
	}
	bs.headerCache.Add(number, h)
	return h
}

// LoadHeaderByHash returns the header with the given hash.
// If no header is found for that hash, it returns nil.
func (bs *BlockStore) LoadHeaderByHash(hash types.Hash) *types.Header {
	bz, err := bs.db.Get(hashKey(hash))
	if err != nil {
		panic(err)
	}
	if len(bz) == 0 {
		return nil
	}
	number, err := decodeNumber(bz)
	if err != nil {
		panic(fmt.Sprintf("Error reading hash index %v: %v", hash, err))
	}
	return bs.LoadHeader(number)
}

// LoadBlock returns the block with the given number.
// If no block is found for that number, it returns nil.
func (bs *BlockStore) LoadBlock(number uint64) *types.Block {
	bz, err := bs.db.Get(blockKey(number))
	if err != nil {
		panic(err)
	}
	if len(bz) == 0 {
		return nil
	}
	b, err := types.BlockFromBytes(bz)
	if err != nil {
		panic(fmt.Sprintf("Error reading block: %v", err))
	}
	return b
}

// LoadHeaders returns the stored headers numbered from..to inclusive, in
// ascending order, skipping missing numbers.
func (bs *BlockStore) LoadHeaders(from, to uint64) ([]*types.Header, error) {
	if from > to {
		return nil, nil
	}
	end := headerKey(to + 1)
	if to == ^uint64(0) {
		end = blockKey(0)
	}
	it, err := bs.db.Iterator(headerKey(from), end)
	if err != nil {
		return nil, errors.Wrap(err, "failed to iterate headers")
	}
	defer it.Close()

	var headers []*types.Header
	for ; it.Valid(); it.Next() {
		number, err := decodeHeaderKey(it.Key())
		if err != nil {
			return nil, err
		}
		h, err := types.HeaderFromBytes(it.Value())
		if err != nil {
			return nil, fmt.Errorf("header %d: %w", number, err)
		}
		if h.Number != number {
			return nil, fmt.Errorf("header stored under %d has number %d", number, h.Number)
		}
		headers = append(headers, h)
	}
	return headers, it.Error()
}

// Bootstrap stores a trusted header into an empty store. Forward sync
// starts on top of it. It has no block.
func (bs *BlockStore) Bootstrap(header *types.Header) error {
	bs.mtx.Lock()
	defer bs.mtx.Unlock()

	if bs.state.HasHeaders {
		return errors.New("store already bootstrapped")
	}
	batch := bs.db.NewBatch()
	defer batch.Close()
	if err := bs.putHeader(batch, header); err != nil {
		return err
	}
	next := bs.state
	next.HasHeaders = true
	next.HeaderBase, next.HeaderHeight = header.Number, header.Number
	return bs.commit(batch, next)
}

// SaveBlocks persists an ascending run of blocks on top of the highest
// stored header. The run must be contiguous and linked by parent hash.
func (bs *BlockStore) SaveBlocks(blocks []*types.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	bs.mtx.Lock()
	defer bs.mtx.Unlock()

	headers := types.Headers(blocks)
	if err := bs.checkAscending(headers); err != nil {
		return err
	}

	batch := bs.db.NewBatch()
	defer batch.Close()
	for _, b := range blocks {
		if err := bs.putHeader(batch, b.Header); err != nil {
			return err
		}
		if err := batch.Set(blockKey(b.Header.Number), b.Bytes()); err != nil {
			return errors.Wrapf(err, "failed to save block %d", b.Header.Number)
		}
	}

	next := bs.state
	first, last := blocks[0].Header.Number, blocks[len(blocks)-1].Header.Number
	if !next.HasBlocks {
		next.HasBlocks = true
		next.Base = first
	}
	next.Height = last
	if !next.HasHeaders {
		next.HasHeaders = true
		next.HeaderBase = first
	}
	next.HeaderHeight = last
	return bs.commit(batch, next)
}

// SaveHeaders persists an ascending run of headers on top of the highest
// stored header.
func (bs *BlockStore) SaveHeaders(headers []*types.Header) error {
	if len(headers) == 0 {
		return nil
	}
	bs.mtx.Lock()
	defer bs.mtx.Unlock()

	if err := bs.checkAscending(headers); err != nil {
		return err
	}
	batch := bs.db.NewBatch()
	defer batch.Close()
	for _, h := range headers {
		if err := bs.putHeader(batch, h); err != nil {
			return err
		}
	}

	next := bs.state
	if !next.HasHeaders {
		next.HasHeaders = true
		next.HeaderBase = headers[0].Number
	}
	next.HeaderHeight = headers[len(headers)-1].Number
	return bs.commit(batch, next)
}

// SaveHeadersReverse persists a descending run of headers below the lowest
// stored header: the first header must be the parent of HeaderBase.
func (bs *BlockStore) SaveHeadersReverse(headers []*types.Header) error {
	if len(headers) == 0 {
		return nil
	}
	bs.mtx.Lock()
	defer bs.mtx.Unlock()

	if bs.state.HasHeaders {
		lowest := bs.LoadHeader(bs.state.HeaderBase)
		first := headers[0]
		if lowest.Number == 0 || first.Number != lowest.Number-1 || first.Hash() != lowest.ParentHash {
			return fmt.Errorf("header #%d %v is not the parent of stored base #%d", first.Number, first.Hash().Short(), lowest.Number)
		}
	}
	for i := 1; i < len(headers); i++ {
		child, h := headers[i-1], headers[i]
		if child.Number == 0 || h.Number != child.Number-1 || h.Hash() != child.ParentHash {
			return fmt.Errorf("header #%d is not the parent of #%d", h.Number, child.Number)
		}
	}

	batch := bs.db.NewBatch()
	defer batch.Close()
	for _, h := range headers {
		if err := bs.putHeader(batch, h); err != nil {
			return err
		}
	}

	next := bs.state
	if !next.HasHeaders {
		next.HasHeaders = true
		next.HeaderHeight = headers[0].Number
	}
	next.HeaderBase = headers[len(headers)-1].Number
	return bs.commit(batch, next)
}

// Close closes the underlying database.
func (bs *BlockStore) Close() error {
	return bs.db.Close()
}

// CONTRACT: bs.mtx must be held.
func (bs *BlockStore) checkAscending(headers []*types.Header) error {
	if bs.state.HasHeaders {
		tip := bs.LoadHeader(bs.state.HeaderHeight)
		first := headers[0]
		if first.Number != tip.Number+1 || first.ParentHash != tip.Hash() {
			return fmt.Errorf("BlockStore can only save contiguous headers. Wanted #%d on %v, got #%d on %v",
				tip.Number+1, tip.Hash().Short(), first.Number, first.ParentHash.Short())
		}
	}
	for i := 1; i < len(headers); i++ {
		parent, h := headers[i-1], headers[i]
		if h.Number != parent.Number+1 || h.ParentHash != parent.Hash() {
			return fmt.Errorf("header #%d does not link to #%d", h.Number, parent.Number)
		}
	}
	return nil
}

func (bs *BlockStore) putHeader(batch dbm.Batch, h *types.Header) error {
	if err := batch.Set(headerKey(h.Number), h.Bytes()); err != nil {
		return errors.Wrapf(err, "failed to save header %d", h.Number)
	}
	if err := batch.Set(hashKey(h.Hash()), encodeNumber(h.Number)); err != nil {
		return errors.Wrapf(err, "failed to index header %d", h.Number)
	}
	return nil
}

// commit writes the batch together with the new bounds, and publishes them
// once the write succeeded.
// CONTRACT: bs.mtx must be held.
func (bs *BlockStore) commit(batch dbm.Batch, next State) error {
	if err := batch.Set(stateKey(), next.Bytes()); err != nil {
		return errors.Wrap(err, "failed to save store state")
	}
	if err := batch.WriteSync(); err != nil {
		return errors.Wrap(err, "failed to write batch")
	}
	bs.state = next
	return nil
}
