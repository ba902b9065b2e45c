package behavior

import (
	"fmt"

	"github.com/celestiaorg/syncqueue/p2p"
)

// PeerBehavior is a struct describing a behavior a peer performed.
// `peerID` identifies the peer and reason characterizes the specific
// behavior performed by the peer.
type PeerBehavior struct {
	peerID p2p.ID
	reason interface{}
}

// PeerID returns the peer the behavior is about.
func (pb PeerBehavior) PeerID() p2p.ID { return pb.peerID }

func (pb PeerBehavior) String() string {
	return fmt.Sprintf("%v: %v", pb.peerID, pb.reason)
}

type badHeaders struct {
	explanation string
}

func (r badHeaders) String() string { return "bad headers: " + r.explanation }

// BadHeaders returns a badHeaders PeerBehavior. It is reported when a chain
// served by the peer fails validation.
func BadHeaders(peerID p2p.ID, explanation string) PeerBehavior {
	return PeerBehavior{peerID: peerID, reason: badHeaders{explanation}}
}

type badBlock struct {
	explanation string
}

func (r badBlock) String() string { return "bad block: " + r.explanation }

// BadBlock returns a badBlock PeerBehavior.
func BadBlock(peerID p2p.ID, explanation string) PeerBehavior {
	return PeerBehavior{peerID: peerID, reason: badBlock{explanation}}
}

type timeout struct {
	explanation string
}

func (r timeout) String() string { return "timeout: " + r.explanation }

// Timeout returns a timeout PeerBehavior.
func Timeout(peerID p2p.ID, explanation string) PeerBehavior {
	return PeerBehavior{peerID: peerID, reason: timeout{explanation}}
}

type goodResponse struct{}

func (goodResponse) String() string { return "good response" }

// GoodResponse returns a goodResponse PeerBehavior.
func GoodResponse(peerID p2p.ID) PeerBehavior {
	return PeerBehavior{peerID: peerID, reason: goodResponse{}}
}
