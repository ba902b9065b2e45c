package syncqueue

import (
	"fmt"

	"github.com/celestiaorg/syncqueue/p2p"
	"github.com/celestiaorg/syncqueue/types"
)

// segmentID addresses a segment inside the pool arena. IDs are never reused.
type segmentID uint64

// entry is one header slot of a segment, with its block once matched.
type entry struct {
	header *types.Header
	hash   types.Hash
	peerID p2p.ID
	block  *types.Block
}

func newEntry(hw HeaderWrapper) *entry {
	return &entry{
		header: hw.Header,
		hash:   hw.Header.Hash(),
		peerID: hw.PeerID,
	}
}

func (e *entry) wrapper() HeaderWrapper {
	return HeaderWrapper{Header: e.header, PeerID: e.peerID}
}

// chainSegment is a run of headers linked by parent hash, ascending by
// number. A segment is never empty while it is part of the pool.
type chainSegment struct {
	id      segmentID
	entries []*entry

	// closed is set once nothing more can be appended at the tail.
	closed bool
	// validated is set once the segment was accepted on top of the frontier.
	validated bool
}

// Len returns the number of headers in the segment.
func (s *chainSegment) Len() int { return len(s.entries) }

// Start returns the number of the first header.
func (s *chainSegment) Start() uint64 { return s.entries[0].header.Number }

// End returns the number of the last header.
func (s *chainSegment) End() uint64 { return s.entries[len(s.entries)-1].header.Number }

// HeadHash returns the hash of the first header.
func (s *chainSegment) HeadHash() types.Hash { return s.entries[0].hash }

// HeadParent returns the parent hash of the first header, i.e. the hash the
// segment hangs from.
func (s *chainSegment) HeadParent() types.Hash { return s.entries[0].header.ParentHash }

// TailHash returns the hash of the last header.
func (s *chainSegment) TailHash() types.Hash { return s.entries[len(s.entries)-1].hash }

// Closed reports whether the tail can still grow.
func (s *chainSegment) Closed() bool { return s.closed }

// Headers returns the segment's headers in ascending order.
func (s *chainSegment) Headers() []HeaderWrapper {
	headers := make([]HeaderWrapper, 0, len(s.entries))
	for _, e := range s.entries {
		headers = append(headers, e.wrapper())
	}
	return headers
}

func (s *chainSegment) tail() *entry { return s.entries[len(s.entries)-1] }

// entryAt returns the slot holding number, or nil.
func (s *chainSegment) entryAt(number uint64) *entry {
	if number < s.Start() || number > s.End() {
		return nil
	}
	return s.entries[number-s.Start()]
}

// canAppend reports whether e links onto the tail.
func (s *chainSegment) canAppend(e *entry) bool {
	return e.header.ParentHash == s.TailHash() && e.header.Number == s.End()+1
}

// verify checks the contiguity invariant.
func (s *chainSegment) verify() error {
	if len(s.entries) == 0 {
		return fmt.Errorf("segment %d is empty", s.id)
	}
	for i := 1; i < len(s.entries); i++ {
		prev, cur := s.entries[i-1], s.entries[i]
		if cur.header.ParentHash != prev.hash {
			return fmt.Errorf("segment %d: header #%d does not link to #%d", s.id, cur.header.Number, prev.header.Number)
		}
		if cur.header.Number != prev.header.Number+1 {
			return fmt.Errorf("segment %d: header #%d follows #%d", s.id, cur.header.Number, prev.header.Number)
		}
	}
	return nil
}

func (s *chainSegment) String() string {
	flags := ""
	if s.validated {
		flags += "V"
	}
	if s.closed {
		flags += "C"
	}
	return fmt.Sprintf("Segment{%d #%d..#%d %s}", s.id, s.Start(), s.End(), flags)
}
