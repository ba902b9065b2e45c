package mock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/syncqueue/syncqueue"
	"github.com/celestiaorg/syncqueue/types"
)

func TestPeerGetHeaders(t *testing.T) {
	chain := types.MakeChain(types.MakeGenesisHeader(), 20, "mock")
	p := NewPeer("p1", chain)
	ctx := context.Background()

	headers, err := p.GetHeaders(ctx, syncqueue.HeadersRequest{Start: 5, Count: 3})
	require.NoError(t, err)
	require.Len(t, headers, 3)
	assert.Equal(t, chain[4].Hash(), headers[0].Hash())

	// anchored on #20, walking down
	headers, err = p.GetHeaders(ctx, syncqueue.HeadersRequest{Start: 999, Hash: chain[19].Hash(), Count: 4, Reverse: true})
	require.NoError(t, err)
	require.Len(t, headers, 4)
	assert.Equal(t, uint64(20), headers[0].Number)
	assert.Equal(t, uint64(17), headers[3].Number)

	// runs past the tip are cut short
	headers, err = p.GetHeaders(ctx, syncqueue.HeadersRequest{Start: 18, Count: 10})
	require.NoError(t, err)
	assert.Len(t, headers, 3)

	headers, err = p.GetHeaders(ctx, syncqueue.HeadersRequest{Hash: types.Hash{0x01}, Count: 10})
	require.NoError(t, err)
	assert.Empty(t, headers)
	assert.Equal(t, 4, p.Requests())
	assert.Equal(t, uint64(20), p.Height())
}

func TestPeerGetBlocks(t *testing.T) {
	chain := types.MakeChain(types.MakeGenesisHeader(), 5, "mock")
	p := NewPeer("p1", chain[:3])

	blocks, err := p.GetBlocks(context.Background(), []types.Hash{chain[0].Hash(), chain[4].Hash(), chain[2].Hash()})
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, chain[0], blocks[0])
	assert.Equal(t, chain[2], blocks[1])

	p.Extend(chain[3:]...)
	assert.Equal(t, uint64(5), p.Height())
}

func TestPeerCorruption(t *testing.T) {
	chain := types.MakeChain(types.MakeGenesisHeader(), 10, "mock")
	p := NewPeer("evil", chain, WithCorruptionFrom(6))

	headers, err := p.GetHeaders(context.Background(), syncqueue.HeadersRequest{Start: 1, Count: 10})
	require.NoError(t, err)
	require.Len(t, headers, 10)
	assert.Equal(t, chain[4].Hash(), headers[4].Hash())
	assert.NotEqual(t, chain[5].Hash(), headers[5].Hash())

	err = syncqueue.LinkageValidator{}.ValidateChain(headers)
	assert.Error(t, err)
}

func TestPeerSilence(t *testing.T) {
	p := NewPeer("quiet", nil, WithSilence())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.GetHeaders(ctx, syncqueue.HeadersRequest{Start: 1, Count: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
