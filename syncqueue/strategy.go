package syncqueue

import (
	"fmt"
	"math"

	"github.com/celestiaorg/syncqueue/types"
)

// strategy is the mode-specific half of the queue. Exactly one is chosen at
// construction. All methods run with the queue lock held.
type strategy interface {
	// trim promotes whatever the pool now allows, erases dead segments and
	// returns the headers emitted by header-only modes. v is nil when the
	// caller skips validation.
	trim(v ParentValidator) trimResult
	// planHeaders returns the header requests for the current gaps.
	planHeaders(maxSize, maxRequests, budget int) (reqs []HeadersRequest, done bool)
	// requestBlocks and addBlocks are only meaningful in block mode.
	requestBlocks(maxSize int) BlocksRequest
	addBlocks(blocks []*types.Block) (emitted []*types.Block, discarded int)
	// frontier is the header the next emitted item attaches to.
	frontier() (uint64, types.Hash)
	// finished reports whether nothing more will ever be emitted.
	finished() bool
	mode() Mode
}

type trimResult struct {
	emitted []HeaderWrapper
	invalid *ErrInvalidChain
	erased  int
}

// Mode selects the queue strategy.
type Mode int

const (
	// ModeForward downloads headers then blocks, ascending from a root.
	ModeForward Mode = iota
	// ModeForwardHeaders emits validated headers ascending from a root.
	ModeForwardHeaders
	// ModeReverse emits headers descending from an anchor. No validation.
	ModeReverse
)

func (m Mode) String() string {
	switch m {
	case ModeForward:
		return "forward"
	case ModeForwardHeaders:
		return "forward-headers"
	case ModeReverse:
		return "reverse"
	default:
		return "unknown"
	}
}

// HeadersOnly reports whether the mode emits headers instead of blocks.
func (m Mode) HeadersOnly() bool {
	return m != ModeForward
}

//-------------------------------------------------------------------------

// forwardStrategy grows a single validated segment on top of root.
// In block mode it keeps validated headers until their blocks arrive, in
// header-only mode it pops them right away.
type forwardStrategy struct {
	pool *headerPool

	root     *types.Header // last emitted header
	rootHash types.Hash

	end    uint64
	hasEnd bool

	headersOnly bool
	validatedID segmentID
}

var _ strategy = (*forwardStrategy)(nil)

func newForwardStrategy(pool *headerPool, root *types.Header, end uint64, hasEnd, headersOnly bool) *forwardStrategy {
	s := &forwardStrategy{
		pool:        pool,
		root:        root,
		rootHash:    root.Hash(),
		end:         end,
		hasEnd:      hasEnd,
		headersOnly: headersOnly,
	}
	s.updateWindow()
	return s
}

func (s *forwardStrategy) mode() Mode {
	if s.headersOnly {
		return ModeForwardHeaders
	}
	return ModeForward
}

// validated returns the validated segment, if any.
func (s *forwardStrategy) validated() *chainSegment {
	if s.validatedID == 0 {
		return nil
	}
	seg, ok := s.pool.segments[s.validatedID]
	if !ok {
		s.validatedID = 0
		return nil
	}
	return seg
}

// tip returns the highest validated header.
func (s *forwardStrategy) tip() (*types.Header, types.Hash) {
	if seg := s.validated(); seg != nil {
		t := seg.tail()
		return t.header, t.hash
	}
	return s.root, s.rootHash
}

func (s *forwardStrategy) updateWindow() {
	tip, _ := s.tip()
	high := uint64(math.MaxUint64)
	if s.hasEnd {
		high = s.end
	}
	s.pool.setWindow(tip.Number+1, high)
}

func (s *forwardStrategy) frontier() (uint64, types.Hash) {
	return s.root.Number, s.rootHash
}

func (s *forwardStrategy) reachedEnd() bool {
	tip, _ := s.tip()
	return s.hasEnd && tip.Number >= s.end
}

func (s *forwardStrategy) finished() bool {
	return s.hasEnd && s.root.Number >= s.end
}

func (s *forwardStrategy) trim(v ParentValidator) trimResult {
	var res trimResult
	for !s.reachedEnd() {
		tipHeader, tipHash := s.tip()
		cand := s.pool.longestChild(tipHash, tipHeader.Number+1)
		if cand == nil {
			// A segment right above the tip on another parent can never
			// link. When validating, it is reported instead of pruned.
			if v != nil {
				if orphan := s.orphan(tipHeader.Number+1, tipHash); orphan != nil {
					err := v.ValidateChain(candidateChain(tipHeader, orphan))
					if err == nil {
						err = fmt.Errorf("parent %v of header #%d is not the tip %v",
							orphan.HeadParent().Short(), orphan.Start(), tipHash.Short())
					}
					res.invalid = s.reject(orphan, err)
					res.erased += len(res.invalid.Headers)
				}
			}
			break
		}
		if v != nil {
			if err := v.ValidateChain(candidateChain(tipHeader, cand)); err != nil {
				res.invalid = s.reject(cand, err)
				res.erased += len(res.invalid.Headers)
				break
			}
		}
		s.promote(cand)
	}

	tipHeader, tipHash := s.tip()
	res.erased += s.pool.pruneForward(tipHeader.Number, tipHash)

	if s.headersOnly && res.invalid == nil {
		res.emitted = s.popValidated()
	}
	s.updateWindow()
	return res
}

// candidateChain returns tip followed by the headers of seg.
func candidateChain(tip *types.Header, seg *chainSegment) []*types.Header {
	chain := make([]*types.Header, 0, seg.Len()+1)
	chain = append(chain, tip)
	for _, e := range seg.entries {
		chain = append(chain, e.header)
	}
	return chain
}

// orphan returns the oldest unvalidated segment starting at number whose
// head does not hang from parent.
func (s *forwardStrategy) orphan(number uint64, parent types.Hash) *chainSegment {
	for _, id := range s.pool.sortedIDs() {
		seg := s.pool.segments[id]
		if !seg.validated && seg.Start() == number && seg.HeadParent() != parent {
			return seg
		}
	}
	return nil
}

// reject erases seg and blames the origin of its first header.
func (s *forwardStrategy) reject(seg *chainSegment, reason error) *ErrInvalidChain {
	headers := s.pool.remove(seg.id)
	return &ErrInvalidChain{
		PeerID:  headers[0].PeerID,
		Headers: headers,
		Reason:  reason,
	}
}

// promote accepts cand on top of the tip.
func (s *forwardStrategy) promote(cand *chainSegment) {
	if seg := s.validated(); seg != nil {
		s.pool.splice(seg, cand)
		return
	}
	cand.validated = true
	s.validatedID = cand.id
}

// popValidated releases the whole validated segment and moves the root to
// its tail.
func (s *forwardStrategy) popValidated() []HeaderWrapper {
	seg := s.validated()
	if seg == nil {
		return nil
	}
	s.root, s.rootHash = seg.tail().header, seg.TailHash()
	s.validatedID = 0
	return s.pool.remove(seg.id)
}

//-------------------------------------------------------------------------

// reverseStrategy walks down from an anchor header. Segments are popped once
// their tail is the expected header and emitted in descending order.
type reverseStrategy struct {
	pool *headerPool

	expectedHash   types.Hash
	expectedNumber uint64
	lower          uint64
	done           bool
}

var _ strategy = (*reverseStrategy)(nil)

func newReverseStrategy(pool *headerPool, anchorHash types.Hash, anchorNumber, lower uint64) *reverseStrategy {
	s := &reverseStrategy{
		pool:           pool,
		expectedHash:   anchorHash,
		expectedNumber: anchorNumber,
		lower:          lower,
		done:           anchorNumber < lower,
	}
	s.updateWindow()
	return s
}

func (s *reverseStrategy) mode() Mode { return ModeReverse }

func (s *reverseStrategy) updateWindow() {
	s.pool.setWindow(s.lower, s.expectedNumber)
}

func (s *reverseStrategy) frontier() (uint64, types.Hash) {
	return s.expectedNumber, s.expectedHash
}

func (s *reverseStrategy) finished() bool { return s.done }

// trim ignores v: reverse chains are checked against the anchor by hash
// linkage only.
func (s *reverseStrategy) trim(ParentValidator) trimResult {
	var res trimResult
	for !s.done {
		id, ok := s.pool.byTail[s.expectedHash]
		if !ok {
			break
		}
		seg := s.pool.segments[id]
		if seg.End() != s.expectedNumber {
			res.erased += len(s.pool.remove(id))
			continue
		}
		headers := s.pool.remove(id)
		for i := len(headers) - 1; i >= 0; i-- {
			res.emitted = append(res.emitted, headers[i])
		}
		head := headers[0].Header
		if head.Number <= s.lower {
			s.done = true
			break
		}
		s.expectedHash = head.ParentHash
		s.expectedNumber = head.Number - 1
	}

	if s.done {
		res.erased += s.pool.clear()
	} else {
		res.erased += s.pool.pruneReverse(s.expectedNumber, s.expectedHash)
		s.updateWindow()
	}
	return res
}

// Reverse mode never downloads blocks.
func (s *reverseStrategy) requestBlocks(int) BlocksRequest { return BlocksRequest{} }

func (s *reverseStrategy) addBlocks(blocks []*types.Block) ([]*types.Block, int) {
	return nil, len(blocks)
}
