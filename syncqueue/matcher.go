package syncqueue

import (
	"github.com/celestiaorg/syncqueue/types"
)

// requestBlocks returns the lowest validated headers still missing a block.
func (s *forwardStrategy) requestBlocks(maxSize int) BlocksRequest {
	seg := s.validated()
	if seg == nil || s.headersOnly || maxSize <= 0 {
		return BlocksRequest{}
	}
	var headers []HeaderWrapper
	for _, e := range seg.entries {
		if e.block != nil {
			continue
		}
		headers = append(headers, e.wrapper())
		if len(headers) == maxSize {
			break
		}
	}
	return BlocksRequest{Headers: headers}
}

// addBlocks attaches blocks to validated headers by hash and releases the
// block-complete prefix of the validated segment. Blocks for unknown or
// unvalidated headers, and blocks whose body does not match the header, are
// discarded.
func (s *forwardStrategy) addBlocks(blocks []*types.Block) ([]*types.Block, int) {
	seg := s.validated()
	if seg == nil || s.headersOnly {
		return nil, len(blocks)
	}

	discarded := 0
	for _, b := range blocks {
		if b == nil || b.Header == nil {
			discarded++
			continue
		}
		hash := b.Hash()
		if id, ok := s.pool.byHash[hash]; !ok || id != seg.id {
			discarded++
			continue
		}
		e := seg.entryAt(b.Header.Number)
		if e == nil || e.hash != hash || types.DataHash(b.Txs) != e.header.DataHash {
			discarded++
			continue
		}
		if e.block == nil {
			e.block = b
		}
	}

	k := 0
	for k < seg.Len() && seg.entries[k].block != nil {
		k++
	}
	if k == 0 {
		return nil, discarded
	}

	last := seg.entries[k-1]
	whole := k == seg.Len()
	released := s.pool.removePrefix(seg, k)
	if whole {
		s.validatedID = 0
	}
	s.root, s.rootHash = last.header, last.hash

	emitted := make([]*types.Block, 0, len(released))
	for _, e := range released {
		emitted = append(emitted, e.block)
	}
	s.updateWindow()
	return emitted, discarded
}
