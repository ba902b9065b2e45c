package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	cfg "github.com/celestiaorg/syncqueue/config"
	"github.com/celestiaorg/syncqueue/node"
)

// SimulateCmd syncs the local block store from an in-memory network of
// simulated peers.
var SimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Sync from a simulated network of honest, corrupt and silent peers",
	RunE:  simulate,
}

func init() {
	AddSimulateFlags(SimulateCmd)
}

// AddSimulateFlags exposes config settings for the simulation.
func AddSimulateFlags(cmd *cobra.Command) {
	cmd.Flags().String("sync.mode", config.Sync.Mode, "sync mode (forward, forward-headers, reverse)")
	cmd.Flags().Uint64("sync.end_number", config.Sync.EndNumber, "last number to sync, 0 syncs the whole simulated chain")
	cmd.Flags().Int("simulation.chain_length", config.Simulation.ChainLength, "length of the simulated chain")
	cmd.Flags().Int("simulation.peers", config.Simulation.Peers, "number of honest peers")
	cmd.Flags().Int("simulation.corrupt_peers", config.Simulation.CorruptPeers, "number of peers serving a forged chain")
	cmd.Flags().Int("simulation.silent_peers", config.Simulation.SilentPeers, "number of peers that never answer")
	cmd.Flags().Duration("simulation.latency", config.Simulation.Latency, "delay added to every response")
	cmd.Flags().Bool("instrumentation.prometheus", config.Instrumentation.Prometheus, "serve prometheus metrics")
}

func simulate(cmd *cobra.Command, args []string) error {
	sim := node.NewSimulation(config.Simulation)
	tip := sim.Tip()

	switch config.Sync.Mode {
	case cfg.SyncModeReverse:
		if config.Sync.ReverseAnchorHash == "" {
			config.Sync.ReverseAnchorHash = tip.Hash().String()
			config.Sync.ReverseAnchorNumber = tip.Number
		}
		// simulated peers serve no genesis
		if config.Sync.EndNumber == 0 {
			config.Sync.EndNumber = 1
		}
	default:
		if config.Sync.EndNumber == 0 || config.Sync.EndNumber > tip.Number {
			config.Sync.EndNumber = tip.Number
		}
	}

	n, err := node.NewNode(config, logger, sim.Peers(), cfg.DefaultDBProvider,
		node.DefaultMetricsProvider(config.Instrumentation), node.WithGenesis(sim.Genesis))
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := n.Start(); err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}

	select {
	case <-n.Done():
		if err := n.Err(); err != nil {
			stopNode(n)
			return err
		}
		printSummary(cmd, n, sim, time.Since(start))
	case <-ctx.Done():
		logger.Info("signal trapped, stopping")
	}

	stopNode(n)
	return nil
}

func stopNode(n *node.Node) {
	if err := n.Stop(); err != nil {
		logger.Error("failed to stop node", "err", err)
	}
}

func printSummary(cmd *cobra.Command, n *node.Node, sim *node.Simulation, elapsed time.Duration) {
	out := cmd.OutOrStdout()
	bs := n.BlockStore()
	fmt.Fprintf(out, "synced headers %d..%d in %s\n", bs.HeaderBase(), bs.HeaderHeight(), elapsed.Round(time.Millisecond))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PEER\tREQUESTS\tFAILURES\tMEAN\tSTDDEV\tP50\tP95\tCONNECTED")
	for _, l := range sim.Latencies() {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\t%s\t%t\n",
			l.Peer, l.Requests, l.Failures, l.Mean, l.StdDev, l.P50, l.P95, n.Syncer().HasPeer(l.Peer))
	}
	w.Flush()
}
