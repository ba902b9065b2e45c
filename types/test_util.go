package types

import (
	"fmt"
	"time"
)

// MakeChain builds n linked blocks on top of parent, numbered from
// parent.Number+1. Each block carries a single transaction so that bodies
// differ. seed is mixed into Extra so independent chains never share hashes.
func MakeChain(parent *Header, n int, seed string) []*Block {
	blocks := make([]*Block, 0, n)
	prev := parent
	for i := 0; i < n; i++ {
		h := &Header{
			Number:     prev.Number + 1,
			ParentHash: prev.Hash(),
			Time:       prev.Time.Add(time.Second),
			Extra:      []byte(seed),
		}
		b := NewBlock(h, [][]byte{[]byte(fmt.Sprintf("%s-tx-%d", seed, h.Number))})
		blocks = append(blocks, b)
		prev = h
	}
	return blocks
}

// MakeGenesisHeader returns a deterministic header at number 0.
func MakeGenesisHeader() *Header {
	return &Header{
		Number: 0,
		Time:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Extra:  []byte("genesis"),
	}
}

// Headers returns the headers of blocks.
func Headers(blocks []*Block) []*Header {
	headers := make([]*Header, len(blocks))
	for i, b := range blocks {
		headers[i] = b.Header
	}
	return headers
}
