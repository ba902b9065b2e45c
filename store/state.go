package store

import (
	"fmt"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/google/orderedcode"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/celestiaorg/syncqueue/types"
)

// State holds the bounds of the stored runs.
type State struct {
	Base   uint64
	Height uint64

	HeaderBase   uint64
	HeaderHeight uint64

	HasBlocks  bool
	HasHeaders bool
}

const (
	stateFieldBase protowire.Number = iota + 1
	stateFieldHeight
	stateFieldHeaderBase
	stateFieldHeaderHeight
	stateFieldHasBlocks
	stateFieldHasHeaders
)

// Bytes returns the protobuf wire encoding of the state.
func (s State) Bytes() []byte {
	var bz []byte
	for _, f := range []struct {
		num protowire.Number
		v   uint64
	}{
		{stateFieldBase, s.Base},
		{stateFieldHeight, s.Height},
		{stateFieldHeaderBase, s.HeaderBase},
		{stateFieldHeaderHeight, s.HeaderHeight},
		{stateFieldHasBlocks, protowire.EncodeBool(s.HasBlocks)},
		{stateFieldHasHeaders, protowire.EncodeBool(s.HasHeaders)},
	} {
		bz = protowire.AppendTag(bz, f.num, protowire.VarintType)
		bz = protowire.AppendVarint(bz, f.v)
	}
	return bz
}

// StateFromBytes decodes a State produced by State.Bytes.
func StateFromBytes(bz []byte) (State, error) {
	var s State
	for len(bz) > 0 {
		num, typ, n := protowire.ConsumeTag(bz)
		if n < 0 {
			return State{}, protowire.ParseError(n)
		}
		bz = bz[n:]
		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, bz)
			if n < 0 {
				return State{}, protowire.ParseError(n)
			}
			bz = bz[n:]
			continue
		}
		v, n := protowire.ConsumeVarint(bz)
		if n < 0 {
			return State{}, protowire.ParseError(n)
		}
		bz = bz[n:]
		switch num {
		case stateFieldBase:
			s.Base = v
		case stateFieldHeight:
			s.Height = v
		case stateFieldHeaderBase:
			s.HeaderBase = v
		case stateFieldHeaderHeight:
			s.HeaderHeight = v
		case stateFieldHasBlocks:
			s.HasBlocks = protowire.DecodeBool(v)
		case stateFieldHasHeaders:
			s.HasHeaders = protowire.DecodeBool(v)
		}
	}
	return s, nil
}

// LoadState returns the State as loaded from disk.
// If no State was previously persisted, it returns the zero value.
func LoadState(db dbm.DB) State {
	bz, err := db.Get(stateKey())
	if err != nil {
		panic(err)
	}
	if len(bz) == 0 {
		return State{}
	}
	s, err := StateFromBytes(bz)
	if err != nil {
		panic(fmt.Sprintf("Could not unmarshal bytes: %X", bz))
	}
	return s
}

//---------------------------------- KEY ENCODING -----------------------------------------

// key prefixes
const (
	prefixHeader = int64(0)
	prefixBlock  = int64(1)
	prefixHash   = int64(2)
	prefixState  = int64(3)
)

func headerKey(number uint64) []byte {
	key, err := orderedcode.Append(nil, prefixHeader, number)
	if err != nil {
		panic(err)
	}
	return key
}

func blockKey(number uint64) []byte {
	key, err := orderedcode.Append(nil, prefixBlock, number)
	if err != nil {
		panic(err)
	}
	return key
}

func hashKey(hash types.Hash) []byte {
	key, err := orderedcode.Append(nil, prefixHash, string(hash[:]))
	if err != nil {
		panic(err)
	}
	return key
}

func stateKey() []byte {
	key, err := orderedcode.Append(nil, prefixState)
	if err != nil {
		panic(err)
	}
	return key
}

func encodeNumber(number uint64) []byte {
	return protowire.AppendVarint(nil, number)
}

func decodeNumber(bz []byte) (uint64, error) {
	v, n := protowire.ConsumeVarint(bz)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	if n != len(bz) {
		return 0, fmt.Errorf("expected complete number but got %d trailing bytes", len(bz)-n)
	}
	return v, nil
}

// decodeHeaderKey returns the number of a header key.
func decodeHeaderKey(key []byte) (number uint64, err error) {
	var prefix int64
	remaining, err := orderedcode.Parse(string(key), &prefix, &number)
	if err != nil {
		return
	}
	if len(remaining) != 0 {
		return 0, fmt.Errorf("expected complete key but got remainder: %s", remaining)
	}
	if prefix != prefixHeader {
		return 0, fmt.Errorf("incorrect prefix. Expected %v, got %v", prefixHeader, prefix)
	}
	return
}
