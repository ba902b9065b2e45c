package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfg "github.com/celestiaorg/syncqueue/config"
	"github.com/celestiaorg/syncqueue/libs/log"
)

var (
	config     = cfg.DefaultConfig()
	baseLogger = log.NewTMLogger(log.NewSyncWriter(os.Stdout))
	logger     = baseLogger
)

func init() {
	registerFlagsRootCmd(RootCmd)
}

func registerFlagsRootCmd(cmd *cobra.Command) {
	cmd.PersistentFlags().String("log_level", config.LogLevel, "log level (debug, info, error, none)")
}

// ParseConfig retrieves the default environment configuration,
// sets up the root and ensures that the root exists
func ParseConfig() (*cfg.Config, error) {
	conf := cfg.DefaultConfig()
	if err := viper.Unmarshal(conf); err != nil {
		return nil, err
	}
	conf.SetRoot(conf.RootDir)
	cfg.EnsureRoot(conf.RootDir)
	if err := conf.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("error in config file: %w", err)
	}
	return conf, nil
}

// RootCmd is the root command for the sync node.
var RootCmd = &cobra.Command{
	Use:   "syncqueue",
	Short: "Header and block synchronization driven by a sync queue",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		if cmd.Name() == VersionCmd.Name() {
			return nil
		}

		config, err = ParseConfig()
		if err != nil {
			return err
		}

		logger, err = log.NewFilter(baseLogger, config.LogLevel)
		if err != nil {
			return err
		}
		logger = logger.With("module", "main")
		return nil
	},
}
