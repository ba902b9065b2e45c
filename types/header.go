package types

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/celestiaorg/syncqueue/crypto/tmhash"
)

// MaxHeaderExtraBytes bounds the free-form extra data carried by a header.
const MaxHeaderExtraBytes = 1024

// Header is the part of a block the sync queue links and validates.
// Its hash is derived from the canonical encoding returned by Bytes.
type Header struct {
	Number     uint64    `json:"number"`
	ParentHash Hash      `json:"parent_hash"`
	Time       time.Time `json:"time"`
	DataHash   Hash      `json:"data_hash"`
	Extra      []byte    `json:"extra"`
}

const (
	headerFieldNumber     protowire.Number = 1
	headerFieldParentHash protowire.Number = 2
	headerFieldTime       protowire.Number = 3
	headerFieldDataHash   protowire.Number = 4
	headerFieldExtra      protowire.Number = 5
)

// Hash returns the hash of the header.
// It returns the zero hash for a nil header.
func (h *Header) Hash() Hash {
	if h == nil {
		return Hash{}
	}
	var hash Hash
	copy(hash[:], tmhash.Sum(h.Bytes()))
	return hash
}

// ValidateBasic performs stateless validation on a Header returning an error
// if any validation fails.
func (h *Header) ValidateBasic() error {
	if h == nil {
		return errors.New("nil header")
	}
	if h.Time.IsZero() {
		return errors.New("header time is not set")
	}
	if len(h.Extra) > MaxHeaderExtraBytes {
		return fmt.Errorf("header extra data is too big: %d > %d", len(h.Extra), MaxHeaderExtraBytes)
	}
	if h.Number > 0 && h.ParentHash.IsZero() {
		return fmt.Errorf("header %d has no parent hash", h.Number)
	}
	return nil
}

// Bytes returns the canonical protobuf wire encoding of the header.
func (h *Header) Bytes() []byte {
	bz := make([]byte, 0, 2*tmhash.Size+len(h.Extra)+32)
	bz = protowire.AppendTag(bz, headerFieldNumber, protowire.VarintType)
	bz = protowire.AppendVarint(bz, h.Number)
	bz = protowire.AppendTag(bz, headerFieldParentHash, protowire.BytesType)
	bz = protowire.AppendBytes(bz, h.ParentHash[:])
	if !h.Time.IsZero() {
		bz = protowire.AppendTag(bz, headerFieldTime, protowire.VarintType)
		bz = protowire.AppendVarint(bz, protowire.EncodeZigZag(h.Time.UnixNano()))
	}
	bz = protowire.AppendTag(bz, headerFieldDataHash, protowire.BytesType)
	bz = protowire.AppendBytes(bz, h.DataHash[:])
	if len(h.Extra) > 0 {
		bz = protowire.AppendTag(bz, headerFieldExtra, protowire.BytesType)
		bz = protowire.AppendBytes(bz, h.Extra)
	}
	return bz
}

// HeaderFromBytes decodes a header produced by Header.Bytes. Unknown fields
// are skipped.
func HeaderFromBytes(bz []byte) (*Header, error) {
	h := new(Header)
	for len(bz) > 0 {
		num, typ, n := protowire.ConsumeTag(bz)
		if n < 0 {
			return nil, fmt.Errorf("header: %w", protowire.ParseError(n))
		}
		bz = bz[n:]

		switch {
		case num == headerFieldNumber && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(bz)
			if n < 0 {
				return nil, fmt.Errorf("header number: %w", protowire.ParseError(n))
			}
			h.Number = v
			bz = bz[n:]
		case num == headerFieldTime && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(bz)
			if n < 0 {
				return nil, fmt.Errorf("header time: %w", protowire.ParseError(n))
			}
			h.Time = time.Unix(0, protowire.DecodeZigZag(v)).UTC()
			bz = bz[n:]
		case (num == headerFieldParentHash || num == headerFieldDataHash || num == headerFieldExtra) &&
			typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(bz)
			if n < 0 {
				return nil, fmt.Errorf("header field %d: %w", num, protowire.ParseError(n))
			}
			bz = bz[n:]
			switch num {
			case headerFieldParentHash:
				hash, err := HashFromBytes(v)
				if err != nil {
					return nil, fmt.Errorf("header parent hash: %w", err)
				}
				h.ParentHash = hash
			case headerFieldDataHash:
				hash, err := HashFromBytes(v)
				if err != nil {
					return nil, fmt.Errorf("header data hash: %w", err)
				}
				h.DataHash = hash
			default:
				h.Extra = append([]byte(nil), v...)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, bz)
			if n < 0 {
				return nil, fmt.Errorf("header field %d: %w", num, protowire.ParseError(n))
			}
			bz = bz[n:]
		}
	}
	return h, nil
}

// String returns a short string representation of the header.
func (h *Header) String() string {
	if h == nil {
		return "nil-Header"
	}
	return fmt.Sprintf("Header{#%d %v parent:%v}", h.Number, h.Hash().Short(), h.ParentHash.Short())
}
