package syncer

import (
	"errors"
	"time"
)

// Params bounds the work the syncer hands out per tick.
type Params struct {
	// Headers asked from a single peer in one request.
	MaxHeadersPerRequest int
	// Header requests planned per tick.
	MaxHeaderRequests int
	// Headers the queue may hold before planning stops.
	MaxTotalHeaders int
	// Blocks asked from a single peer in one request.
	MaxBlocksPerRequest int

	// How often the planning loop runs.
	RequestInterval time.Duration
	// How long a peer has to answer a request.
	RequestTimeout time.Duration

	// Consecutive timeouts after which a peer is dropped, 0 = never.
	MaxPeerTimeouts int
	// Number of bad header hashes remembered.
	BadHashCacheSize int
}

// DefaultParams returns the parameters used by the node unless configured
// otherwise.
func DefaultParams() Params {
	return Params{
		MaxHeadersPerRequest: 192,
		MaxHeaderRequests:    8,
		MaxTotalHeaders:      8192,
		MaxBlocksPerRequest:  64,
		RequestInterval:      100 * time.Millisecond,
		RequestTimeout:       10 * time.Second,
		MaxPeerTimeouts:      3,
		BadHashCacheSize:     4096,
	}
}

// ValidateBasic performs basic validation.
func (p Params) ValidateBasic() error {
	if p.MaxHeadersPerRequest <= 0 {
		return errors.New("max headers per request must be positive")
	}
	if p.MaxHeaderRequests <= 0 {
		return errors.New("max header requests must be positive")
	}
	if p.MaxTotalHeaders < p.MaxHeadersPerRequest {
		return errors.New("max total headers can't be less than max headers per request")
	}
	if p.MaxBlocksPerRequest <= 0 {
		return errors.New("max blocks per request must be positive")
	}
	if p.RequestInterval <= 0 {
		return errors.New("request interval must be positive")
	}
	if p.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if p.MaxPeerTimeouts < 0 {
		return errors.New("max peer timeouts can't be negative")
	}
	if p.BadHashCacheSize <= 0 {
		return errors.New("bad hash cache size must be positive")
	}
	return nil
}
