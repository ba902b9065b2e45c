package tmhash_test

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/celestiaorg/syncqueue/crypto/tmhash"
)

func TestHash(t *testing.T) {
	testVector := []byte("abc")
	hasher := tmhash.New()
	_, err := hasher.Write(testVector)
	assert.NoError(t, err)
	bz := hasher.Sum(nil)

	bz2 := tmhash.Sum(testVector)

	hasher = sha256.New()
	_, err = hasher.Write(testVector)
	assert.NoError(t, err)
	bz3 := hasher.Sum(nil)

	assert.Equal(t, bz, bz2)
	assert.Equal(t, bz, bz3)
}

func TestSumMany(t *testing.T) {
	joined := tmhash.Sum([]byte("abcdef"))
	assert.Equal(t, joined, tmhash.SumMany([]byte("ab"), []byte("cd"), []byte("ef")))
}

func TestHashTruncated(t *testing.T) {
	bz := tmhash.SumTruncated([]byte("abc"))
	assert.Len(t, bz, tmhash.TruncatedSize)
	assert.Equal(t, tmhash.Sum([]byte("abc"))[:tmhash.TruncatedSize], bz)
}
