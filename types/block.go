package types

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/celestiaorg/syncqueue/crypto/merkle"
)

// Block is a header together with its body. Block identity is the header
// hash.
type Block struct {
	Header *Header  `json:"header"`
	Txs    [][]byte `json:"txs"`
}

const (
	blockFieldHeader protowire.Number = 1
	blockFieldTx     protowire.Number = 2
)

// NewBlock builds a block on top of header, setting the header's DataHash
// from txs.
func NewBlock(header *Header, txs [][]byte) *Block {
	header.DataHash = DataHash(txs)
	return &Block{Header: header, Txs: txs}
}

// DataHash is the merkle root of an ordered list of transactions.
func DataHash(txs [][]byte) Hash {
	var h Hash
	copy(h[:], merkle.HashFromByteSlices(txs))
	return h
}

// Hash returns the hash of the block header.
func (b *Block) Hash() Hash {
	if b == nil {
		return Hash{}
	}
	return b.Header.Hash()
}

// Number returns the block number, 0 for nil blocks.
func (b *Block) Number() uint64 {
	if b == nil || b.Header == nil {
		return 0
	}
	return b.Header.Number
}

// ValidateBasic checks the header and that the body matches DataHash.
func (b *Block) ValidateBasic() error {
	if b == nil {
		return errors.New("nil block")
	}
	if err := b.Header.ValidateBasic(); err != nil {
		return fmt.Errorf("invalid header: %w", err)
	}
	if dh := DataHash(b.Txs); dh != b.Header.DataHash {
		return fmt.Errorf("wrong Header.DataHash. Expected %v, got %v", dh, b.Header.DataHash)
	}
	return nil
}

// Bytes returns the protobuf wire encoding of the block.
func (b *Block) Bytes() []byte {
	var bz []byte
	bz = protowire.AppendTag(bz, blockFieldHeader, protowire.BytesType)
	bz = protowire.AppendBytes(bz, b.Header.Bytes())
	for _, tx := range b.Txs {
		bz = protowire.AppendTag(bz, blockFieldTx, protowire.BytesType)
		bz = protowire.AppendBytes(bz, tx)
	}
	return bz
}

// Size returns the size of the encoded block in bytes.
func (b *Block) Size() int {
	if b == nil {
		return 0
	}
	return len(b.Bytes())
}

// BlockFromBytes decodes a block produced by Block.Bytes.
func BlockFromBytes(bz []byte) (*Block, error) {
	b := new(Block)
	for len(bz) > 0 {
		num, typ, n := protowire.ConsumeTag(bz)
		if n < 0 {
			return nil, fmt.Errorf("block: %w", protowire.ParseError(n))
		}
		bz = bz[n:]

		if typ != protowire.BytesType || (num != blockFieldHeader && num != blockFieldTx) {
			n = protowire.ConsumeFieldValue(num, typ, bz)
			if n < 0 {
				return nil, fmt.Errorf("block field %d: %w", num, protowire.ParseError(n))
			}
			bz = bz[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(bz)
		if n < 0 {
			return nil, fmt.Errorf("block field %d: %w", num, protowire.ParseError(n))
		}
		bz = bz[n:]

		if num == blockFieldHeader {
			h, err := HeaderFromBytes(v)
			if err != nil {
				return nil, err
			}
			b.Header = h
		} else {
			b.Txs = append(b.Txs, append([]byte(nil), v...))
		}
	}
	if b.Header == nil {
		return nil, errors.New("block: missing header")
	}
	return b, nil
}

// String returns a short string representation of the block.
func (b *Block) String() string {
	if b == nil {
		return "nil-Block"
	}
	return fmt.Sprintf("Block{%v txs:%d}", b.Header, len(b.Txs))
}
