package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/celestiaorg/syncqueue/crypto/tmhash"
)

// Hash identifies a header (and the block built on it). The sync queue
// treats it as an opaque fixed-size value.
type Hash [tmhash.Size]byte

// HashFromBytes copies bz into a Hash. bz must be exactly tmhash.Size long.
func HashFromBytes(bz []byte) (Hash, error) {
	var h Hash
	if len(bz) != tmhash.Size {
		return h, fmt.Errorf("expected hash size to be %d bytes, got %d bytes", tmhash.Size, len(bz))
	}
	copy(h[:], bz)
	return h, nil
}

// HashFromHex parses an upper or lower case hex string.
func HashFromHex(s string) (Hash, error) {
	bz, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hash hex %q: %w", s, err)
	}
	return HashFromBytes(bz)
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	bz := make([]byte, len(h))
	copy(bz, h[:])
	return bz
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Equal compares two hashes.
func (h Hash) Equal(other Hash) bool {
	return bytes.Equal(h[:], other[:])
}

func (h Hash) String() string {
	return strings.ToUpper(hex.EncodeToString(h[:]))
}

// Short returns the first 6 bytes of the hash, enough for log lines.
func (h Hash) Short() string {
	return strings.ToUpper(hex.EncodeToString(h[:6]))
}
