package syncqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/celestiaorg/syncqueue/types"
)

func TestHeadersRequestNumbers(t *testing.T) {
	testCases := []struct {
		name string
		req  HeadersRequest
		want []uint64
	}{
		{"forward", HeadersRequest{Start: 10, Count: 3}, []uint64{10, 11, 12}},
		{"forward step", HeadersRequest{Start: 10, Count: 3, Step: 5}, []uint64{10, 15, 20}},
		{"reverse", HeadersRequest{Start: 10, Count: 3, Reverse: true}, []uint64{10, 9, 8}},
		{"reverse stops at zero", HeadersRequest{Start: 2, Count: 5, Reverse: true}, []uint64{2, 1, 0}},
		{"empty", HeadersRequest{Start: 2}, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.req.Numbers())
		})
	}
}

func TestHeadersRequestSplitKeepsAnchorOnFirstPiece(t *testing.T) {
	anchor := types.MakeGenesisHeader().Hash()
	req := HeadersRequest{Start: 100, Hash: anchor, Count: 10, Reverse: true}

	pieces := req.Split(4)
	require.Len(t, pieces, 3)
	assert.Equal(t, anchor, pieces[0].Hash)
	assert.True(t, pieces[1].Hash.IsZero())
	assert.True(t, pieces[2].Hash.IsZero())
	assert.Equal(t, []int{4, 4, 2}, []int{pieces[0].Count, pieces[1].Count, pieces[2].Count})
	assert.Equal(t, []uint64{100, 96, 92}, []uint64{pieces[0].Start, pieces[1].Start, pieces[2].Start})
}

func TestHeadersRequestSplitLaw(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		req := HeadersRequest{
			Start:   rapid.Uint64Range(0, 1000).Draw(t, "start").(uint64),
			Count:   rapid.IntRange(1, 300).Draw(t, "count").(int),
			Reverse: rapid.Bool().Draw(t, "reverse").(bool),
			Step:    rapid.IntRange(0, 7).Draw(t, "step").(int),
		}
		n := rapid.IntRange(1, 64).Draw(t, "n").(int)

		var union []uint64
		for _, piece := range req.Split(n) {
			require.LessOrEqual(t, piece.Count, n)
			require.Equal(t, req.Reverse, piece.Reverse)
			require.Equal(t, req.Step, piece.Step)
			union = append(union, piece.Numbers()...)
		}
		require.Equal(t, req.Numbers(), union)
	})
}

func TestBlocksRequestSplitLaw(t *testing.T) {
	chain := types.MakeChain(types.MakeGenesisHeader(), 50, "split")
	all := WrapHeaders("peer", types.Headers(chain)...)

	rapid.Check(t, func(t *rapid.T) {
		size := rapid.IntRange(0, len(all)).Draw(t, "size").(int)
		n := rapid.IntRange(1, 60).Draw(t, "n").(int)
		req := BlocksRequest{Headers: all[:size]}

		var union []HeaderWrapper
		for _, piece := range req.Split(n) {
			require.LessOrEqual(t, len(piece.Headers), n)
			union = append(union, piece.Headers...)
		}
		require.Equal(t, len(req.Headers), len(union))
		for i := range union {
			require.Equal(t, req.Headers[i].Header, union[i].Header)
		}
	})
}

func TestBlocksRequestHashes(t *testing.T) {
	chain := types.MakeChain(types.MakeGenesisHeader(), 3, "hashes")
	req := BlocksRequest{Headers: WrapHeaders("peer", types.Headers(chain)...)}

	hashes := req.Hashes()
	require.Len(t, hashes, 3)
	for i, b := range chain {
		assert.Equal(t, b.Hash(), hashes[i])
	}
	assert.True(t, BlocksRequest{}.IsEmpty())
	assert.Equal(t, "BlocksRequest{#1..#3}", req.String())
}
