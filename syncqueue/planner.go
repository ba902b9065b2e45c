package syncqueue

import (
	"math"
)

// gaps returns the closed ranges inside [from, to] not covered by cov,
// ascending. cov must be sorted and merged, as returned by coverage.
func gaps(from, to uint64, cov []interval) []interval {
	if from > to {
		return nil
	}
	var ret []interval
	cur := from
	for _, iv := range cov {
		if iv.end < cur {
			continue
		}
		if iv.start > to {
			break
		}
		if iv.start > cur {
			ret = append(ret, interval{start: cur, end: iv.start - 1})
		}
		if iv.end >= to {
			return ret
		}
		cur = iv.end + 1
	}
	return append(ret, interval{start: cur, end: to})
}

// runLength returns how many numbers of [start, end] fit in limit.
func runLength(start, end uint64, limit int) int {
	if end-start < uint64(limit) {
		return int(end-start) + 1
	}
	return limit
}

// planHeaders fills the gaps above the tip, lowest first. The planner keeps
// no record of what it handed out, so calling it twice returns the same
// requests until responses arrive.
func (s *forwardStrategy) planHeaders(maxSize, maxRequests, budget int) ([]HeadersRequest, bool) {
	if s.reachedEnd() {
		return nil, true
	}
	reqs := []HeadersRequest{}
	if maxSize <= 0 || maxRequests <= 0 || budget <= 0 {
		return reqs, false
	}

	tip, _ := s.tip()
	to := uint64(math.MaxUint64)
	if s.hasEnd {
		to = s.end
	}
	for _, gap := range gaps(tip.Number+1, to, s.pool.coverage()) {
		for start := gap.start; budget > 0 && len(reqs) < maxRequests; {
			count := runLength(start, gap.end, min(maxSize, budget))
			reqs = append(reqs, HeadersRequest{Start: start, Count: count})
			budget -= count
			if gap.end-start < uint64(count) {
				break
			}
			start += uint64(count)
		}
		if budget <= 0 || len(reqs) >= maxRequests {
			break
		}
	}
	return reqs, false
}

// planHeaders fills the gaps below the expected header, highest first. The
// run starting at the expected header is anchored on its hash.
func (s *reverseStrategy) planHeaders(maxSize, maxRequests, budget int) ([]HeadersRequest, bool) {
	if s.done {
		return nil, true
	}
	reqs := []HeadersRequest{}
	if maxSize <= 0 || maxRequests <= 0 || budget <= 0 {
		return reqs, false
	}

	free := gaps(s.lower, s.expectedNumber, s.pool.coverage())
	for i := len(free) - 1; i >= 0; i-- {
		gap := free[i]
		for top := gap.end; budget > 0 && len(reqs) < maxRequests; {
			count := runLength(gap.start, top, min(maxSize, budget))
			req := HeadersRequest{Start: top, Count: count, Reverse: true}
			if top == s.expectedNumber {
				req.Hash = s.expectedHash
			}
			reqs = append(reqs, req)
			budget -= count
			if top-gap.start < uint64(count) {
				break
			}
			top -= uint64(count)
		}
		if budget <= 0 || len(reqs) >= maxRequests {
			break
		}
	}
	return reqs, false
}
