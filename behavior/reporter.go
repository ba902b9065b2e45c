package behavior

import (
	"errors"

	cmtsync "github.com/celestiaorg/syncqueue/libs/sync"
	"github.com/celestiaorg/syncqueue/p2p"
)

// Reporter provides an interface for the syncer to report the behavior of
// peers synchronously to other components.
type Reporter interface {
	Report(behavior PeerBehavior) error
}

// PeerSetReporter keeps a set of usable peers and drops the ones that
// misbehave. Peers that time out too often in a row are dropped as well.
type PeerSetReporter struct {
	mtx         cmtsync.Mutex
	peers       map[p2p.ID]int // consecutive timeouts
	maxTimeouts int
	onRemove    func(p2p.ID, string)
}

// NewPeerSetReporter returns a reporter over peers. onRemove, if not nil, is
// called for every dropped peer with the reason, without the lock held.
func NewPeerSetReporter(peers []p2p.ID, maxTimeouts int, onRemove func(p2p.ID, string)) *PeerSetReporter {
	r := &PeerSetReporter{
		peers:       make(map[p2p.ID]int, len(peers)),
		maxTimeouts: maxTimeouts,
		onRemove:    onRemove,
	}
	for _, id := range peers {
		r.peers[id] = 0
	}
	return r
}

// Add makes a peer usable.
func (r *PeerSetReporter) Add(id p2p.ID) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.peers[id] = 0
}

// Has reports whether the peer is still usable.
func (r *PeerSetReporter) Has(id p2p.ID) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	_, ok := r.peers[id]
	return ok
}

// Size returns the number of usable peers.
func (r *PeerSetReporter) Size() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.peers)
}

// Report applies the behavior to the peer set.
func (r *PeerSetReporter) Report(behavior PeerBehavior) error {
	r.mtx.Lock()
	timeouts, ok := r.peers[behavior.peerID]
	if !ok {
		r.mtx.Unlock()
		return errors.New("peer not found")
	}

	var removed string
	switch reason := behavior.reason.(type) {
	case goodResponse:
		r.peers[behavior.peerID] = 0
	case timeout:
		timeouts++
		r.peers[behavior.peerID] = timeouts
		if r.maxTimeouts > 0 && timeouts >= r.maxTimeouts {
			removed = reason.String()
		}
	case badHeaders:
		removed = reason.String()
	case badBlock:
		removed = reason.String()
	default:
		r.mtx.Unlock()
		return errors.New("unknown reason reported")
	}
	if removed != "" {
		delete(r.peers, behavior.peerID)
	}
	r.mtx.Unlock()

	if removed != "" && r.onRemove != nil {
		r.onRemove(behavior.peerID, removed)
	}
	return nil
}

// MockReporter is a concrete implementation of the Reporter
// interface used in tests to ensure components report the correct
// behavior in manufactured scenarios.
type MockReporter struct {
	mtx cmtsync.RWMutex
	pb  map[p2p.ID][]PeerBehavior
}

// NewMockReporter returns a Reporter which records all reported
// behaviors in memory.
func NewMockReporter() *MockReporter {
	return &MockReporter{
		pb: map[p2p.ID][]PeerBehavior{},
	}
}

// Report stores the PeerBehavior produced by the peer identified by peerID.
func (mpbr *MockReporter) Report(behavior PeerBehavior) error {
	mpbr.mtx.Lock()
	defer mpbr.mtx.Unlock()
	mpbr.pb[behavior.peerID] = append(mpbr.pb[behavior.peerID], behavior)

	return nil
}

// GetBehaviors returns all behaviors reported on the peer identified by peerID.
func (mpbr *MockReporter) GetBehaviors(peerID p2p.ID) []PeerBehavior {
	mpbr.mtx.RLock()
	defer mpbr.mtx.RUnlock()
	if items, ok := mpbr.pb[peerID]; ok {
		result := make([]PeerBehavior, len(items))
		copy(result, items)

		return result
	}

	return []PeerBehavior{}
}
