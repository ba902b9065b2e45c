package merkle

import (
	"hash"
	"math/bits"

	"github.com/celestiaorg/syncqueue/crypto/tmhash"
)

// HashFromByteSlices computes a Merkle tree where the leaves are the byte
// slices, in the provided order. It follows RFC-6962.
func HashFromByteSlices(items [][]byte) []byte {
	return hashFromByteSlices(tmhash.New(), items)
}

func hashFromByteSlices(h hash.Hash, items [][]byte) []byte {
	switch len(items) {
	case 0:
		return emptyHash()
	case 1:
		return leafHashOpt(h, items[0])
	default:
		k := getSplitPoint(int64(len(items)))
		left := hashFromByteSlices(h, items[:k])
		right := hashFromByteSlices(h, items[k:])
		return innerHashOpt(h, left, right)
	}
}

// getSplitPoint returns the largest power of 2 less than length.
func getSplitPoint(length int64) int64 {
	if length < 1 {
		panic("Trying to split a tree with size < 1")
	}
	uLength := uint(length)
	bitlen := bits.Len(uLength)
	k := int64(1 << uint(bitlen-1))
	if k == length {
		k >>= 1
	}
	return k
}
