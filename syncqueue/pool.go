package syncqueue

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/celestiaorg/syncqueue/types"
)

// headerPool owns every cached header, grouped into segments.
//
// All methods must be called with the queue mutex held, except size which
// reads the counter atomically.
type headerPool struct {
	segments map[segmentID]*chainSegment
	nextID   segmentID

	byHash   map[types.Hash]segmentID              // every cached header
	byTail   map[types.Hash]segmentID              // tail hash of each segment
	byParent map[types.Hash]map[segmentID]struct{} // head parent hash, forks allowed

	// acceptance window, inclusive
	low  uint64
	high uint64

	count atomic.Int64
}

func newHeaderPool() *headerPool {
	return &headerPool{
		segments: make(map[segmentID]*chainSegment),
		byHash:   make(map[types.Hash]segmentID),
		byTail:   make(map[types.Hash]segmentID),
		byParent: make(map[types.Hash]map[segmentID]struct{}),
		high:     math.MaxUint64,
	}
}

// size returns the number of cached headers. Safe without the lock.
func (p *headerPool) size() int {
	return int(p.count.Load())
}

func (p *headerPool) numSegments() int {
	return len(p.segments)
}

func (p *headerPool) has(hash types.Hash) bool {
	_, ok := p.byHash[hash]
	return ok
}

// setWindow restricts accepted header numbers to [low, high] and refreshes
// the closed flags.
func (p *headerPool) setWindow(low, high uint64) {
	p.low, p.high = low, high
	for _, seg := range p.segments {
		seg.closed = seg.End() >= high
	}
}

// addBatch inserts headers and merges the segments that became adjacent.
// It returns the number of headers actually added.
func (p *headerPool) addBatch(headers []HeaderWrapper) int {
	added := 0
	for _, hw := range headers {
		if p.add(hw) {
			added++
		}
	}
	if added > 0 {
		p.mergeAll()
	}
	return added
}

// add inserts a single header. Duplicates and headers outside the window
// are dropped.
func (p *headerPool) add(hw HeaderWrapper) bool {
	if hw.Header == nil {
		return false
	}
	number := hw.Header.Number
	if number < p.low || number > p.high {
		return false
	}
	e := newEntry(hw)
	if p.has(e.hash) {
		return false
	}

	if id, ok := p.byTail[e.header.ParentHash]; ok {
		seg := p.segments[id]
		if !seg.validated && !seg.closed && seg.canAppend(e) {
			p.appendEntry(seg, e)
			return true
		}
	}

	if child := p.longestChild(e.hash, number+1); child != nil {
		p.prependEntry(child, e)
		return true
	}

	p.newSegment(e)
	return true
}

func (p *headerPool) newSegment(e *entry) *chainSegment {
	p.nextID++
	seg := &chainSegment{
		id:      p.nextID,
		entries: []*entry{e},
		closed:  e.header.Number >= p.high,
	}
	p.segments[seg.id] = seg
	p.byHash[e.hash] = seg.id
	p.byTail[e.hash] = seg.id
	p.linkParent(e.header.ParentHash, seg.id)
	p.count.Add(1)
	return seg
}

func (p *headerPool) appendEntry(seg *chainSegment, e *entry) {
	delete(p.byTail, seg.TailHash())
	seg.entries = append(seg.entries, e)
	seg.closed = e.header.Number >= p.high
	p.byHash[e.hash] = seg.id
	p.byTail[e.hash] = seg.id
	p.count.Add(1)
}

func (p *headerPool) prependEntry(seg *chainSegment, e *entry) {
	p.unlinkParent(seg.HeadParent(), seg.id)
	seg.entries = append([]*entry{e}, seg.entries...)
	p.byHash[e.hash] = seg.id
	p.linkParent(e.header.ParentHash, seg.id)
	p.count.Add(1)
}

func (p *headerPool) linkParent(parent types.Hash, id segmentID) {
	ids, ok := p.byParent[parent]
	if !ok {
		ids = make(map[segmentID]struct{})
		p.byParent[parent] = ids
	}
	ids[id] = struct{}{}
}

func (p *headerPool) unlinkParent(parent types.Hash, id segmentID) {
	ids := p.byParent[parent]
	delete(ids, id)
	if len(ids) == 0 {
		delete(p.byParent, parent)
	}
}

// children returns the unvalidated segments hanging from parent that start
// at number, longest first and oldest first among equals.
func (p *headerPool) children(parent types.Hash, number uint64) []*chainSegment {
	ids := p.byParent[parent]
	if len(ids) == 0 {
		return nil
	}
	segs := make([]*chainSegment, 0, len(ids))
	for id := range ids {
		seg := p.segments[id]
		if seg.validated || seg.Start() != number {
			continue
		}
		segs = append(segs, seg)
	}
	sort.Slice(segs, func(i, j int) bool {
		if segs[i].Len() != segs[j].Len() {
			return segs[i].Len() > segs[j].Len()
		}
		return segs[i].id < segs[j].id
	})
	return segs
}

func (p *headerPool) longestChild(parent types.Hash, number uint64) *chainSegment {
	segs := p.children(parent, number)
	if len(segs) == 0 {
		return nil
	}
	return segs[0]
}

// mergeAll joins every unvalidated segment with the longest segment hanging
// from its tail, until nothing changes. Validated segments only grow by
// promotion.
func (p *headerPool) mergeAll() int {
	merged := 0
	for {
		progress := false
		for _, id := range p.sortedIDs() {
			seg, ok := p.segments[id]
			if !ok || seg.validated || seg.closed {
				continue
			}
			child := p.longestChild(seg.TailHash(), seg.End()+1)
			if child == nil || child.id == seg.id {
				continue
			}
			p.splice(seg, child)
			merged++
			progress = true
		}
		if !progress {
			return merged
		}
	}
}

// splice moves all of src onto the tail of dst and retires src.
func (p *headerPool) splice(dst, src *chainSegment) {
	if !dst.canAppend(src.entries[0]) {
		panic(fmt.Sprintf("splice %v onto %v: segments do not link", src, dst))
	}
	delete(p.byTail, dst.TailHash())
	p.unlinkParent(src.HeadParent(), src.id)
	delete(p.byTail, src.TailHash())
	for _, e := range src.entries {
		p.byHash[e.hash] = dst.id
	}
	dst.entries = append(dst.entries, src.entries...)
	dst.closed = src.closed
	p.byTail[dst.TailHash()] = dst.id
	delete(p.segments, src.id)
}

// remove erases a whole segment and returns its headers in ascending order.
func (p *headerPool) remove(id segmentID) []HeaderWrapper {
	seg, ok := p.segments[id]
	if !ok {
		return nil
	}
	headers := seg.Headers()
	for _, e := range seg.entries {
		delete(p.byHash, e.hash)
	}
	delete(p.byTail, seg.TailHash())
	p.unlinkParent(seg.HeadParent(), id)
	delete(p.segments, id)
	p.count.Add(-int64(len(headers)))
	return headers
}

// removePrefix releases the first k entries of a segment, deleting the
// segment when it becomes empty.
func (p *headerPool) removePrefix(seg *chainSegment, k int) []*entry {
	if k <= 0 {
		return nil
	}
	if k >= seg.Len() {
		entries := seg.entries
		p.remove(seg.id)
		return entries
	}
	prefix := seg.entries[:k]
	p.unlinkParent(seg.HeadParent(), seg.id)
	for _, e := range prefix {
		delete(p.byHash, e.hash)
	}
	seg.entries = append([]*entry(nil), seg.entries[k:]...)
	p.linkParent(seg.HeadParent(), seg.id)
	p.count.Add(-int64(k))
	return prefix
}

// pruneForward erases unvalidated segments that can no longer attach above
// the tip: they start at or below it, or start right above it on another
// parent. It returns the number of erased headers.
func (p *headerPool) pruneForward(tipNumber uint64, tipHash types.Hash) int {
	erased := 0
	for _, id := range p.sortedIDs() {
		seg := p.segments[id]
		if seg.validated {
			continue
		}
		if seg.Start() <= tipNumber || (seg.Start() == tipNumber+1 && seg.HeadParent() != tipHash) {
			erased += len(p.remove(id))
		}
	}
	return erased
}

// pruneReverse erases segments that can no longer end at the expected
// header: they reach above it, or end on it with another hash.
func (p *headerPool) pruneReverse(expectedNumber uint64, expectedHash types.Hash) int {
	erased := 0
	for _, id := range p.sortedIDs() {
		seg := p.segments[id]
		if seg.End() > expectedNumber || (seg.End() == expectedNumber && seg.TailHash() != expectedHash) {
			erased += len(p.remove(id))
		}
	}
	return erased
}

// clear drops everything.
func (p *headerPool) clear() int {
	erased := 0
	for _, id := range p.sortedIDs() {
		erased += len(p.remove(id))
	}
	return erased
}

// interval is a closed range of header numbers.
type interval struct {
	start, end uint64
}

// coverage returns the number ranges held by unvalidated segments, sorted by
// start and merged where they overlap or touch.
func (p *headerPool) coverage() []interval {
	ivs := make([]interval, 0, len(p.segments))
	for _, seg := range p.segments {
		if seg.validated {
			continue
		}
		ivs = append(ivs, interval{start: seg.Start(), end: seg.End()})
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].start < ivs[j].start })

	merged := ivs[:0]
	for _, iv := range ivs {
		if n := len(merged); n > 0 && iv.start <= merged[n-1].end+1 {
			if last := &merged[n-1]; iv.end > last.end {
				last.end = iv.end
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

func (p *headerPool) sortedIDs() []segmentID {
	ids := make([]segmentID, 0, len(p.segments))
	for id := range p.segments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// checkInvariants verifies contiguity, index consistency and the counter.
func (p *headerPool) checkInvariants() error {
	total := 0
	seen := make(map[types.Hash]segmentID)
	for id, seg := range p.segments {
		if seg.id != id {
			return fmt.Errorf("segment %d stored under id %d", seg.id, id)
		}
		if err := seg.verify(); err != nil {
			return err
		}
		for _, e := range seg.entries {
			if other, dup := seen[e.hash]; dup {
				return fmt.Errorf("hash %v in segments %d and %d", e.hash.Short(), other, id)
			}
			seen[e.hash] = id
			if p.byHash[e.hash] != id {
				return fmt.Errorf("hash %v indexed under segment %d, held by %d", e.hash.Short(), p.byHash[e.hash], id)
			}
		}
		if p.byTail[seg.TailHash()] != id {
			return fmt.Errorf("tail of segment %d not indexed", id)
		}
		if _, ok := p.byParent[seg.HeadParent()][id]; !ok {
			return fmt.Errorf("head parent of segment %d not indexed", id)
		}
		total += seg.Len()
	}
	if len(seen) != len(p.byHash) {
		return fmt.Errorf("hash index holds %d entries, segments hold %d", len(p.byHash), len(seen))
	}
	if total != p.size() {
		return fmt.Errorf("counter is %d, segments hold %d headers", p.size(), total)
	}
	return nil
}
