package commands

import (
	"github.com/spf13/cobra"

	cfg "github.com/celestiaorg/syncqueue/config"
	"github.com/celestiaorg/syncqueue/store"
	"github.com/celestiaorg/syncqueue/types"
)

// InitFilesCmd initialises a fresh home directory with a config file and a
// block store holding the genesis header. Reverse mode leaves the store empty.
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the config and block store",
	RunE:  initFiles,
}

func init() {
	InitFilesCmd.Flags().String("sync.mode", config.Sync.Mode, "sync mode the store is prepared for (forward, forward-headers, reverse)")
}

func initFiles(cmd *cobra.Command, args []string) error {
	return initFilesWithConfig(config)
}

func initFilesWithConfig(config *cfg.Config) error {
	db, err := cfg.DefaultDBProvider(&cfg.DBContext{ID: "blockstore", Config: config})
	if err != nil {
		return err
	}
	bs := store.NewBlockStore(db)
	defer bs.Close()

	if bs.HasHeaders() {
		logger.Info("Found block store", "path", config.DBDir(),
			"base", bs.HeaderBase(), "height", bs.HeaderHeight())
		return nil
	}

	if config.Sync.Mode == cfg.SyncModeReverse {
		logger.Info("Leaving block store empty for reverse sync", "path", config.DBDir())
		return nil
	}

	genesis := types.MakeGenesisHeader()
	if err := bs.Bootstrap(genesis); err != nil {
		return err
	}
	logger.Info("Generated block store", "path", config.DBDir(), "genesis", genesis.Hash())
	return nil
}
