package syncqueue

import (
	"fmt"

	"github.com/celestiaorg/syncqueue/p2p"
	"github.com/celestiaorg/syncqueue/types"
)

// HeaderWrapper pairs a header with the peer it was received from.
type HeaderWrapper struct {
	Header *types.Header
	PeerID p2p.ID
}

// WrapHeaders tags every header with the same origin peer.
func WrapHeaders(peerID p2p.ID, headers ...*types.Header) []HeaderWrapper {
	wrapped := make([]HeaderWrapper, 0, len(headers))
	for _, h := range headers {
		wrapped = append(wrapped, HeaderWrapper{Header: h, PeerID: peerID})
	}
	return wrapped
}

// UnwrapHeaders strips the origin information.
func UnwrapHeaders(wrapped []HeaderWrapper) []*types.Header {
	headers := make([]*types.Header, 0, len(wrapped))
	for _, hw := range wrapped {
		headers = append(headers, hw.Header)
	}
	return headers
}

func (hw HeaderWrapper) String() string {
	return fmt.Sprintf("%v from %v", hw.Header, hw.PeerID)
}

// ValidatedHeaders is the result of AddHeadersAndValidate.
//
// If Valid is true, Headers holds exactly what AddHeaders would have
// returned. Otherwise Headers is the chain that failed validation and was
// erased from the queue, and Err is an ErrInvalidChain.
type ValidatedHeaders struct {
	Headers []HeaderWrapper
	Valid   bool
	Err     error
}

// EmptyValidatedHeaders means nothing new and no error.
var EmptyValidatedHeaders = ValidatedHeaders{Valid: true}

// PeerID returns the origin of the first header, or "" when there are no
// headers.
func (vh ValidatedHeaders) PeerID() p2p.ID {
	if len(vh.Headers) == 0 {
		return ""
	}
	return vh.Headers[0].PeerID
}

// ErrInvalidChain is returned (inside ValidatedHeaders) when the parent
// validator rejects a candidate chain.
type ErrInvalidChain struct {
	PeerID  p2p.ID
	Headers []HeaderWrapper
	Reason  error
}

func (e ErrInvalidChain) Error() string {
	if len(e.Headers) == 0 {
		return fmt.Sprintf("invalid chain from peer %v: %v", e.PeerID, e.Reason)
	}
	return fmt.Sprintf("invalid chain #%d..#%d from peer %v: %v",
		e.Headers[0].Header.Number, e.Headers[len(e.Headers)-1].Header.Number, e.PeerID, e.Reason)
}

func (e ErrInvalidChain) Unwrap() error {
	return e.Reason
}
