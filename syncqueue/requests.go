package syncqueue

import (
	"fmt"

	"github.com/celestiaorg/syncqueue/types"
)

// HeadersRequest describes a run of wanted headers:
// Start, Start±Step, ... Count numbers in total, descending when Reverse is
// set. When Hash is not zero the run is anchored on that header instead of
// on Start; Start then holds the anchor's expected number.
type HeadersRequest struct {
	Start   uint64
	Hash    types.Hash
	Count   int
	Reverse bool
	Step    int
}

// stride returns Step, treating zero as one.
func (r HeadersRequest) stride() uint64 {
	if r.Step < 1 {
		return 1
	}
	return uint64(r.Step)
}

// HasHash reports whether the request is anchored on a hash.
func (r HeadersRequest) HasHash() bool {
	return !r.Hash.IsZero()
}

// Numbers returns the block numbers addressed by the request, in request
// order. A reverse run stops at zero.
func (r HeadersRequest) Numbers() []uint64 {
	if r.Count <= 0 {
		return nil
	}
	step := r.stride()
	nums := make([]uint64, 0, r.Count)
	n := r.Start
	for i := 0; i < r.Count; i++ {
		nums = append(nums, n)
		if r.Reverse {
			if n < step {
				break
			}
			n -= step
		} else {
			n += step
		}
	}
	return nums
}

// Last returns the last number addressed by the request.
func (r HeadersRequest) Last() uint64 {
	nums := r.Numbers()
	if len(nums) == 0 {
		return r.Start
	}
	return nums[len(nums)-1]
}

// Split cuts the request into consecutive pieces of at most maxCount
// headers. The pieces address exactly the numbers of the original request,
// keep its direction and step, and only the first piece keeps the hash
// anchor.
func (r HeadersRequest) Split(maxCount int) []HeadersRequest {
	if maxCount <= 0 || r.Count <= maxCount {
		return []HeadersRequest{r}
	}
	step := r.stride()
	ret := make([]HeadersRequest, 0, (r.Count+maxCount-1)/maxCount)
	start := r.Start
	for remaining := r.Count; remaining > 0; {
		size := min(maxCount, remaining)
		piece := HeadersRequest{
			Start:   start,
			Count:   size,
			Reverse: r.Reverse,
			Step:    r.Step,
		}
		if len(ret) == 0 {
			piece.Hash = r.Hash
		}
		ret = append(ret, piece)
		remaining -= size

		offset := uint64(size) * step
		if r.Reverse {
			if start < offset {
				break
			}
			start -= offset
		} else {
			start += offset
		}
	}
	return ret
}

func (r HeadersRequest) String() string {
	dir := "fwd"
	if r.Reverse {
		dir = "rev"
	}
	if r.HasHash() {
		return fmt.Sprintf("HeadersRequest{%s #%d (%v) count:%d step:%d}", dir, r.Start, r.Hash.Short(), r.Count, r.stride())
	}
	return fmt.Sprintf("HeadersRequest{%s #%d count:%d step:%d}", dir, r.Start, r.Count, r.stride())
}

// BlocksRequest lists headers whose bodies are wanted, in chain order.
type BlocksRequest struct {
	Headers []HeaderWrapper
}

// IsEmpty reports whether there is nothing to request.
func (r BlocksRequest) IsEmpty() bool {
	return len(r.Headers) == 0
}

// Hashes returns the hashes of the requested blocks.
func (r BlocksRequest) Hashes() []types.Hash {
	hashes := make([]types.Hash, 0, len(r.Headers))
	for _, hw := range r.Headers {
		hashes = append(hashes, hw.Header.Hash())
	}
	return hashes
}

// Split partitions the request into pieces of at most count headers,
// preserving order.
func (r BlocksRequest) Split(count int) []BlocksRequest {
	if count <= 0 || len(r.Headers) <= count {
		return []BlocksRequest{r}
	}
	ret := make([]BlocksRequest, 0, (len(r.Headers)+count-1)/count)
	for i := 0; i < len(r.Headers); i += count {
		end := min(i+count, len(r.Headers))
		ret = append(ret, BlocksRequest{Headers: r.Headers[i:end]})
	}
	return ret
}

func (r BlocksRequest) String() string {
	if r.IsEmpty() {
		return "BlocksRequest{}"
	}
	return fmt.Sprintf("BlocksRequest{#%d..#%d}", r.Headers[0].Header.Number, r.Headers[len(r.Headers)-1].Header.Number)
}
