package node

import (
	"context"
	"fmt"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	cfg "github.com/celestiaorg/syncqueue/config"
	cmtsync "github.com/celestiaorg/syncqueue/libs/sync"
	"github.com/celestiaorg/syncqueue/p2p"
	"github.com/celestiaorg/syncqueue/p2p/mock"
	"github.com/celestiaorg/syncqueue/syncer"
	"github.com/celestiaorg/syncqueue/syncqueue"
	"github.com/celestiaorg/syncqueue/types"
)

// Simulation is an in-memory network of peers serving a generated chain.
type Simulation struct {
	Genesis *types.Header
	Chain   []*types.Block

	peers []*timedPeer
}

// NewSimulation generates the chain and the peers described by config.
// Honest peers serve the whole chain. Corrupt peers forge it from a point
// that moves with their index. Silent peers never answer.
func NewSimulation(config *cfg.SimulationConfig) *Simulation {
	genesis := types.MakeGenesisHeader()
	chain := types.MakeChain(genesis, config.ChainLength, config.Seed)

	sim := &Simulation{Genesis: genesis, Chain: chain}
	add := func(id string, opts ...mock.PeerOption) {
		opts = append(opts, mock.WithLatency(config.Latency))
		sim.peers = append(sim.peers, &timedPeer{Peer: mock.NewPeer(p2p.ID(id), chain, opts...)})
	}
	for i := 0; i < config.Peers; i++ {
		add(fmt.Sprintf("honest-%d", i))
	}
	for i := 0; i < config.CorruptPeers; i++ {
		from := uint64(i*config.ChainLength/(config.CorruptPeers+1)) + 1
		add(fmt.Sprintf("corrupt-%d", i), mock.WithCorruptionFrom(from))
	}
	for i := 0; i < config.SilentPeers; i++ {
		add(fmt.Sprintf("silent-%d", i), mock.WithSilence())
	}
	return sim
}

// Tip returns the last generated header.
func (sim *Simulation) Tip() *types.Header {
	if len(sim.Chain) == 0 {
		return sim.Genesis
	}
	return sim.Chain[len(sim.Chain)-1].Header
}

// Peers returns the simulated peers as seen by the syncer.
func (sim *Simulation) Peers() []syncer.Peer {
	peers := make([]syncer.Peer, len(sim.peers))
	for i, p := range sim.peers {
		peers[i] = p
	}
	return peers
}

// PeerLatency summarizes the response times of one peer.
type PeerLatency struct {
	Peer     p2p.ID
	Requests int
	Failures int
	Mean     time.Duration
	StdDev   time.Duration
	P50      time.Duration
	P95      time.Duration
}

// Latencies returns a summary per peer, in the order the peers were created.
func (sim *Simulation) Latencies() []PeerLatency {
	out := make([]PeerLatency, 0, len(sim.peers))
	for _, p := range sim.peers {
		out = append(out, p.summary())
	}
	return out
}

// timedPeer records how long every request to the wrapped peer takes.
type timedPeer struct {
	*mock.Peer

	mtx      cmtsync.Mutex
	samples  []float64 // seconds
	failures int
}

var _ syncer.Peer = (*timedPeer)(nil)

func (p *timedPeer) GetHeaders(ctx context.Context, req syncqueue.HeadersRequest) ([]*types.Header, error) {
	start := time.Now()
	headers, err := p.Peer.GetHeaders(ctx, req)
	p.record(start, err)
	return headers, err
}

func (p *timedPeer) GetBlocks(ctx context.Context, hashes []types.Hash) ([]*types.Block, error) {
	start := time.Now()
	blocks, err := p.Peer.GetBlocks(ctx, hashes)
	p.record(start, err)
	return blocks, err
}

func (p *timedPeer) record(start time.Time, err error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if err != nil {
		p.failures++
		return
	}
	p.samples = append(p.samples, time.Since(start).Seconds())
}

func (p *timedPeer) summary() PeerLatency {
	p.mtx.Lock()
	samples := slices.Clone(p.samples)
	failures := p.failures
	p.mtx.Unlock()

	l := PeerLatency{Peer: p.ID(), Requests: len(samples) + failures, Failures: failures}
	if len(samples) == 0 {
		return l
	}
	slices.Sort(samples)
	mean, std := stat.MeanStdDev(samples, nil)
	l.Mean = seconds(mean)
	if len(samples) > 1 {
		l.StdDev = seconds(std)
	}
	l.P50 = seconds(stat.Quantile(0.5, stat.Empirical, samples, nil))
	l.P95 = seconds(stat.Quantile(0.95, stat.Empirical, samples, nil))
	return l
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
