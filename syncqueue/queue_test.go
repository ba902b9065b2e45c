package syncqueue

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/syncqueue/types"
)

func checkInvariants(t *testing.T, q *SyncQueue) {
	t.Helper()
	q.mtx.Lock()
	defer q.mtx.Unlock()
	require.NoError(t, q.pool.checkInvariants())
}

func numbers(headers []HeaderWrapper) []uint64 {
	nums := make([]uint64, 0, len(headers))
	for _, hw := range headers {
		nums = append(nums, hw.Header.Number)
	}
	return nums
}

func blockNumbers(blocks []*types.Block) []uint64 {
	nums := make([]uint64, 0, len(blocks))
	for _, b := range blocks {
		nums = append(nums, b.Header.Number)
	}
	return nums
}

func seq(from, to uint64) []uint64 {
	var nums []uint64
	if from <= to {
		for n := from; n <= to; n++ {
			nums = append(nums, n)
		}
		return nums
	}
	for n := from; n >= to; n-- {
		nums = append(nums, n)
	}
	return nums
}

func TestForwardQueueRequestHeaders(t *testing.T) {
	genesis := types.MakeGenesisHeader()
	q := NewForwardQueue(genesis, WithEndNumber(100))

	reqs, done := q.RequestHeaders(20, 3, 1000)
	require.False(t, done)
	require.Equal(t, []HeadersRequest{
		{Start: 1, Count: 20},
		{Start: 21, Count: 20},
		{Start: 41, Count: 20},
	}, reqs)
	assert.Equal(t, StateHeadersInFlight, q.State())

	// nothing was answered, so the same requests come back
	again, _ := q.RequestHeaders(20, 3, 1000)
	assert.Equal(t, reqs, again)

	// answering the second request leaves a gap below and an open tail above
	chain := types.MakeChain(genesis, 100, "main")
	assert.Nil(t, q.AddHeaders(wrap("peer", chain[20:40])))
	reqs, _ = q.RequestHeaders(15, 4, 1000)
	require.Equal(t, []HeadersRequest{
		{Start: 1, Count: 15},
		{Start: 16, Count: 5},
		{Start: 41, Count: 15},
		{Start: 56, Count: 15},
	}, reqs)
}

func TestForwardQueueStopsAtEnd(t *testing.T) {
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, 10, "main")
	q := NewForwardQueue(genesis, WithEndNumber(10), WithHeadersOnly())

	reqs, done := q.RequestHeaders(64, 4, 1000)
	require.False(t, done)
	require.Equal(t, []HeadersRequest{{Start: 1, Count: 10}}, reqs)

	emitted := q.AddHeaders(wrap("peer", chain))
	assert.Equal(t, seq(1, 10), numbers(emitted))

	reqs, done = q.RequestHeaders(64, 4, 1000)
	assert.True(t, done)
	assert.Nil(t, reqs)
	assert.Equal(t, StateDone, q.State())
	assert.True(t, q.IsDone())
}

func TestForwardQueueBackpressure(t *testing.T) {
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, 40, "main")
	q := NewForwardQueue(genesis)

	reqs, _ := q.RequestHeaders(10, 10, 25)
	var total int
	for _, r := range reqs {
		total += r.Count
	}
	assert.Equal(t, 25, total, "never plans past the header budget")

	// 25 validated headers waiting for blocks fill the budget
	q.AddHeadersAndValidate(wrap("peer", chain[:25]))
	assert.Equal(t, 25, q.HeadersCount())
	reqs, done := q.RequestHeaders(10, 10, 25)
	require.False(t, done)
	require.NotNil(t, reqs)
	assert.Empty(t, reqs)

	// draining blocks releases the budget
	out := q.AddBlocks(chain[:5])
	require.Len(t, out, 5)
	assert.Equal(t, 20, q.HeadersCount())
	reqs, _ = q.RequestHeaders(10, 10, 25)
	require.Equal(t, []HeadersRequest{{Start: 26, Count: 5}}, reqs)
}

func TestForwardQueueIdempotentReRequest(t *testing.T) {
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, 30, "main")
	q := NewForwardQueue(genesis, WithEndNumber(30))

	first, _ := q.RequestHeaders(10, 3, 100)
	second, _ := q.RequestHeaders(10, 3, 100)
	require.Equal(t, first, second)

	// both copies of the middle request are answered, by different peers
	q.AddHeaders(wrap("peer1", chain[10:20]))
	q.AddHeaders(wrap("peer2", chain[10:20]))
	assert.Equal(t, 10, q.HeadersCount())
	q.mtx.Lock()
	assert.Equal(t, 1, q.pool.numSegments())
	q.mtx.Unlock()
	checkInvariants(t, q)
}

func TestForwardQueueValidationErasure(t *testing.T) {
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, 10, "main")

	// #6 claims a parent nobody has
	bad := make([]*types.Header, 10)
	for i, b := range chain {
		h := *b.Header
		bad[i] = &h
	}
	bad[5].ParentHash = types.Hash{0x01}
	for i := 6; i < 10; i++ {
		bad[i].ParentHash = bad[i-1].Hash()
	}

	q := NewForwardQueue(genesis, WithEndNumber(10))
	res := q.AddHeadersAndValidate(WrapHeaders("evil", bad...))
	require.False(t, res.Valid)
	assert.Equal(t, seq(6, 10), numbers(res.Headers), "exactly the unlinked part is erased")
	assert.Equal(t, "evil", string(res.PeerID()))
	assert.Equal(t, 5, q.HeadersCount(), "#1..#5 wait for their blocks")
	checkInvariants(t, q)

	// without validation the same segment is dropped silently
	q = NewForwardQueue(genesis, WithEndNumber(10))
	assert.Nil(t, q.AddHeaders(WrapHeaders("evil", bad...)))
	assert.Equal(t, 5, q.HeadersCount())
	checkInvariants(t, q)
}

func TestForwardQueueValidatorRejects(t *testing.T) {
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, 10, "main")

	// #4 goes back in time, linkage is otherwise intact
	headers := make([]*types.Header, 10)
	for i, b := range chain {
		h := *b.Header
		headers[i] = &h
	}
	headers[3].Time = genesis.Time.Add(-time.Hour)
	for i := 4; i < 10; i++ {
		headers[i].ParentHash = headers[i-1].Hash()
	}

	q := NewForwardQueue(genesis, WithEndNumber(10))
	res := q.AddHeadersAndValidate(WrapHeaders("evil", headers...))
	require.False(t, res.Valid)
	assert.Equal(t, seq(1, 10), numbers(res.Headers))
	assert.Equal(t, "evil", string(res.PeerID()))

	var invalid ErrInvalidChain
	require.True(t, errors.As(res.Err, &invalid))
	assert.Equal(t, "evil", string(invalid.PeerID))
	assert.Len(t, invalid.Headers, 10)

	assert.Equal(t, 0, q.HeadersCount())
	checkInvariants(t, q)

	// the gap is requested again
	reqs, _ := q.RequestHeaders(64, 1, 100)
	assert.Equal(t, []HeadersRequest{{Start: 1, Count: 10}}, reqs)
}

func TestForwardQueueCustomValidator(t *testing.T) {
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, 10, "main")
	errBanned := errors.New("banned")

	var tips []uint64
	v := ParentValidatorFunc(func(chain []*types.Header) error {
		tips = append(tips, chain[0].Number)
		if chain[len(chain)-1].Number > 5 {
			return errBanned
		}
		return nil
	})
	q := NewForwardQueue(genesis, WithValidator(v), WithHeadersOnly())

	res := q.AddHeadersAndValidate(wrap("peer", chain[:5]))
	require.True(t, res.Valid)
	assert.Equal(t, seq(1, 5), numbers(res.Headers))

	res = q.AddHeadersAndValidate(wrap("peer", chain[5:]))
	require.False(t, res.Valid)
	assert.ErrorIs(t, res.Err, errBanned)
	assert.Equal(t, seq(6, 10), numbers(res.Headers))
	assert.Equal(t, []uint64{0, 5}, tips)

	// plain AddHeaders does not consult the validator
	emitted := q.AddHeaders(wrap("peer", chain[5:]))
	assert.Equal(t, seq(6, 10), numbers(emitted))
	assert.Len(t, tips, 2)
}

func TestForwardQueuePrunesDeadForks(t *testing.T) {
	genesis := types.MakeGenesisHeader()
	main := types.MakeChain(genesis, 10, "main")
	fork := types.MakeChain(main[3].Header, 6, "fork") // #5..#10

	q := NewForwardQueue(genesis, WithEndNumber(10))
	q.AddHeaders(wrap("forker", fork))
	assert.Equal(t, 6, q.HeadersCount())

	q.AddHeaders(wrap("honest", main))
	assert.Equal(t, 10, q.HeadersCount())
	checkInvariants(t, q)

	req := q.RequestBlocks(100)
	assert.Equal(t, seq(1, 10), numbers(req.Headers))
	for i, hw := range req.Headers {
		assert.Equal(t, main[i].Hash(), hw.Header.Hash())
	}
}

func TestForwardQueueOrderPreservation(t *testing.T) {
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, 10, "main")

	run := func(blocks []*types.Block) []*types.Block {
		q := NewForwardQueue(genesis, WithEndNumber(10))
		require.True(t, q.AddHeadersAndValidate(wrap("peer", chain)).Valid)
		req := q.RequestBlocks(10)
		require.Len(t, req.Headers, 10)
		assert.Equal(t, StateBlocksInFlight, q.State())

		var out []*types.Block
		for _, b := range blocks {
			out = append(out, q.AddBlocks([]*types.Block{b})...)
		}
		assert.Equal(t, 0, q.HeadersCount())
		assert.Equal(t, StateDone, q.State())
		return out
	}

	reversed := make([]*types.Block, len(chain))
	for i, b := range chain {
		reversed[len(chain)-1-i] = b
	}
	shuffled := append([]*types.Block(nil), chain...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	inOrder := run(chain)
	assert.Equal(t, seq(1, 10), blockNumbers(inOrder))
	assert.Equal(t, inOrder, run(reversed))
	assert.Equal(t, inOrder, run(shuffled))
}

func TestForwardQueueAddBlocksPartial(t *testing.T) {
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, 10, "main")
	other := types.MakeChain(genesis, 3, "other")
	q := NewForwardQueue(genesis)

	// blocks before their headers are validated are dropped
	assert.Empty(t, q.AddBlocks(chain[:3]))

	q.AddHeadersAndValidate(wrap("peer", chain))
	assert.Empty(t, q.AddBlocks(chain[1:3]), "#1 is missing")
	assert.Empty(t, q.AddBlocks(other), "unknown blocks")

	// a body that does not match the header
	tampered := &types.Block{Header: chain[0].Header, Txs: [][]byte{[]byte("junk")}}
	assert.Empty(t, q.AddBlocks([]*types.Block{tampered}))

	out := q.AddBlocks(chain[:1])
	assert.Equal(t, seq(1, 3), blockNumbers(out))
	n, hash := q.Frontier()
	assert.Equal(t, uint64(3), n)
	assert.Equal(t, chain[2].Hash(), hash)

	req := q.RequestBlocks(4)
	assert.Equal(t, seq(4, 7), numbers(req.Headers))
	assert.Equal(t, 7, q.HeadersCount())
	checkInvariants(t, q)
}

func TestForwardQueueValidatedGrowsAcrossBatches(t *testing.T) {
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, 20, "main")
	q := NewForwardQueue(genesis)

	q.AddHeadersAndValidate(wrap("peer", chain[:10]))
	out := q.AddBlocks(chain[:4])
	require.Len(t, out, 4)

	q.AddHeadersAndValidate(wrap("peer", chain[10:]))
	req := q.RequestBlocks(100)
	assert.Equal(t, seq(5, 20), numbers(req.Headers))
	assert.Equal(t, seq(5, 20), numbers(q.RequestBlocks(100).Headers), "planning has no side effects")
}

func TestForwardHeadersOnlyOutOfOrder(t *testing.T) {
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, 30, "main")
	q := NewForwardQueue(genesis, WithHeadersOnly(), WithEndNumber(30))
	require.Equal(t, ModeForwardHeaders, q.Mode())

	assert.Empty(t, q.AddHeaders(wrap("p1", chain[20:30])))
	assert.Empty(t, q.AddHeaders(wrap("p2", chain[10:20])))
	assert.Equal(t, StateHeadersPartial, q.State())
	assert.Equal(t, 20, q.HeadersCount())

	emitted := q.AddHeaders(wrap("p3", chain[:10]))
	assert.Equal(t, seq(1, 30), numbers(emitted))
	assert.Equal(t, 0, q.HeadersCount())
	assert.Equal(t, StateDone, q.State())

	assert.True(t, q.RequestBlocks(10).IsEmpty())
}

func TestReverseQueueOrdering(t *testing.T) {
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, 100, "main")
	anchor := chain[99]
	q := NewReverseQueue(anchor.Hash(), 100, WithEndNumber(91))
	require.Equal(t, ModeReverse, q.Mode())

	headers := wrap("peer", chain[90:100])
	rand.New(rand.NewSource(3)).Shuffle(len(headers), func(i, j int) {
		headers[i], headers[j] = headers[j], headers[i]
	})

	emitted := q.AddHeaders(headers)
	assert.Equal(t, seq(100, 91), numbers(emitted))
	assert.Equal(t, 0, q.HeadersCount())
	assert.True(t, q.IsDone())

	reqs, done := q.RequestHeaders(10, 1, 100)
	assert.True(t, done)
	assert.Nil(t, reqs)
}

func TestReverseQueueRequestHeaders(t *testing.T) {
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, 100, "main")
	anchor := chain[99]
	q := NewReverseQueue(anchor.Hash(), 100)

	reqs, done := q.RequestHeaders(30, 2, 1000)
	require.False(t, done)
	require.Equal(t, []HeadersRequest{
		{Start: 100, Hash: anchor.Hash(), Count: 30, Reverse: true},
		{Start: 70, Count: 30, Reverse: true},
	}, reqs)

	// #51..#70 arrive before #71..#100
	assert.Empty(t, q.AddHeaders(wrap("peer", chain[50:70])))
	reqs, _ = q.RequestHeaders(30, 3, 1000)
	require.Equal(t, []HeadersRequest{
		{Start: 100, Hash: anchor.Hash(), Count: 30, Reverse: true},
		{Start: 50, Count: 30, Reverse: true},
		{Start: 20, Count: 21, Reverse: true},
	}, reqs)

	emitted := q.AddHeaders(wrap("peer", chain[70:100]))
	assert.Equal(t, seq(100, 51), numbers(emitted))
	n, hash := q.Frontier()
	assert.Equal(t, uint64(50), n)
	assert.Equal(t, chain[49].Hash(), hash)

	reqs, _ = q.RequestHeaders(100, 1, 1000)
	require.Equal(t, []HeadersRequest{{Start: 50, Hash: chain[49].Hash(), Count: 51, Reverse: true}}, reqs)
}

func TestReverseQueueSkipsValidation(t *testing.T) {
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, 20, "main")
	v := ParentValidatorFunc(func([]*types.Header) error {
		return errors.New("never called")
	})
	q := NewReverseQueue(chain[19].Hash(), 20, WithValidator(v), WithEndNumber(11))

	res := q.AddHeadersAndValidate(wrap("peer", chain[10:20]))
	require.True(t, res.Valid)
	assert.NoError(t, res.Err)
	assert.Equal(t, seq(20, 11), numbers(res.Headers))
}

func TestReverseQueueDropsForeignChains(t *testing.T) {
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, 20, "main")
	fork := types.MakeChain(chain[9].Header, 10, "fork") // #11..#20
	q := NewReverseQueue(chain[19].Hash(), 20)

	// the fork ends on #20 with the wrong hash
	assert.Empty(t, q.AddHeaders(wrap("forker", fork)))
	assert.Equal(t, 0, q.HeadersCount())

	emitted := q.AddHeaders(wrap("honest", chain[15:20]))
	assert.Equal(t, seq(20, 16), numbers(emitted))
	checkInvariants(t, q)
}

func TestQueueConcurrentAdds(t *testing.T) {
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, 200, "main")
	q := NewForwardQueue(genesis, WithHeadersOnly(), WithEndNumber(200))

	results := make(chan []HeaderWrapper, 20)
	for i := 0; i < 20; i++ {
		go func(i int) {
			results <- q.AddHeadersAndValidate(wrap("peer", chain[i*10:(i+1)*10])).Headers
		}(i)
	}
	var all []HeaderWrapper
	for i := 0; i < 20; i++ {
		all = append(all, <-results...)
	}

	// every header comes out exactly once
	require.Len(t, all, 200)
	seen := make(map[uint64]bool)
	for _, hw := range all {
		require.False(t, seen[hw.Header.Number])
		seen[hw.Header.Number] = true
	}
	assert.True(t, q.IsDone())
	assert.Equal(t, 0, q.HeadersCount())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "blocks-in-flight", StateBlocksInFlight.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "forward-headers", ModeForwardHeaders.String())
}
