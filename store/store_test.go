package store

import (
	"testing"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/syncqueue/types"
)

func TestBlockStoreSaveBlocks(t *testing.T) {
	db := dbm.NewMemDB()
	bs := NewBlockStore(db)
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, 20, "store")

	require.NoError(t, bs.Bootstrap(genesis))
	assert.Error(t, bs.Bootstrap(genesis), "bootstrap twice")
	assert.Equal(t, uint64(0), bs.Size())

	require.NoError(t, bs.SaveBlocks(chain[:10]))
	require.NoError(t, bs.SaveBlocks(chain[10:]))
	assert.Equal(t, uint64(1), bs.Base())
	assert.Equal(t, uint64(20), bs.Height())
	assert.Equal(t, uint64(20), bs.Size())
	assert.Equal(t, uint64(0), bs.HeaderBase())
	assert.Equal(t, uint64(20), bs.HeaderHeight())

	b := bs.LoadBlock(7)
	require.NotNil(t, b)
	assert.Equal(t, chain[6].Hash(), b.Hash())
	assert.Equal(t, chain[6].Txs, b.Txs)
	assert.Nil(t, bs.LoadBlock(0))
	assert.Nil(t, bs.LoadBlock(21))

	h := bs.LoadHeaderByHash(chain[14].Hash())
	require.NotNil(t, h)
	assert.Equal(t, uint64(15), h.Number)
	assert.Nil(t, bs.LoadHeaderByHash(types.Hash{0x01}))

	// reload from the same db
	bs2 := NewBlockStore(db)
	assert.Equal(t, bs.State(), bs2.State())
	assert.Equal(t, chain[19].Hash(), bs2.LoadHeader(20).Hash())
}

func TestBlockStoreRejectsUnlinkedBlocks(t *testing.T) {
	bs := NewBlockStore(dbm.NewMemDB())
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, 10, "store")
	other := types.MakeChain(genesis, 10, "other")

	require.NoError(t, bs.Bootstrap(genesis))
	assert.Error(t, bs.SaveBlocks(chain[1:5]), "gap above the tip")
	assert.Error(t, bs.SaveBlocks([]*types.Block{chain[0], chain[2]}), "gap inside the run")

	require.NoError(t, bs.SaveBlocks(chain[:5]))
	assert.Error(t, bs.SaveBlocks(other[5:]), "wrong parent")
	assert.Equal(t, uint64(5), bs.Height())
	assert.NoError(t, bs.SaveBlocks(nil))
}

func TestBlockStoreSaveHeaders(t *testing.T) {
	bs := NewBlockStore(dbm.NewMemDB())
	genesis := types.MakeGenesisHeader()
	headers := types.Headers(types.MakeChain(genesis, 10, "headers"))

	require.NoError(t, bs.Bootstrap(genesis))
	require.NoError(t, bs.SaveHeaders(headers))
	assert.Equal(t, uint64(10), bs.HeaderHeight())
	assert.Equal(t, uint64(0), bs.Size())

	loaded, err := bs.LoadHeaders(3, 6)
	require.NoError(t, err)
	require.Len(t, loaded, 4)
	for i, h := range loaded {
		assert.Equal(t, headers[2+i].Hash(), h.Hash())
	}

	all, err := bs.LoadHeaders(0, ^uint64(0))
	require.NoError(t, err)
	assert.Len(t, all, 11)
}

func TestBlockStoreSaveHeadersReverse(t *testing.T) {
	bs := NewBlockStore(dbm.NewMemDB())
	headers := types.Headers(types.MakeChain(types.MakeGenesisHeader(), 30, "reverse"))
	desc := func(from, to int) []*types.Header {
		var ret []*types.Header
		for i := from; i >= to; i-- {
			ret = append(ret, headers[i-1])
		}
		return ret
	}

	require.NoError(t, bs.SaveHeadersReverse(desc(30, 21)))
	assert.Equal(t, uint64(21), bs.HeaderBase())
	assert.Equal(t, uint64(30), bs.HeaderHeight())

	assert.Error(t, bs.SaveHeadersReverse(desc(19, 10)), "gap below the base")
	assert.Error(t, bs.SaveHeadersReverse([]*types.Header{headers[19], headers[17]}), "gap inside the run")

	require.NoError(t, bs.SaveHeadersReverse(desc(20, 11)))
	assert.Equal(t, uint64(11), bs.HeaderBase())
	assert.Equal(t, headers[10].Hash(), bs.LoadHeader(11).Hash())
	assert.True(t, bs.HasHeaders())
}

func TestStateBytes(t *testing.T) {
	s := State{Base: 1, Height: 20, HeaderBase: 0, HeaderHeight: 25, HasBlocks: true, HasHeaders: true}
	got, err := StateFromBytes(s.Bytes())
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = StateFromBytes([]byte{0xFF})
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	number, err := decodeHeaderKey(headerKey(42))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), number)

	_, err = decodeHeaderKey(blockKey(42))
	assert.Error(t, err)

	// keys sort by number
	assert.Less(t, string(headerKey(9)), string(headerKey(10)))
	assert.Less(t, string(headerKey(^uint64(0))), string(blockKey(0)))
}
