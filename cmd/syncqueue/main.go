package main

import (
	"os"
	"path/filepath"

	cmd "github.com/celestiaorg/syncqueue/cmd/syncqueue/commands"
	cfg "github.com/celestiaorg/syncqueue/config"
	"github.com/celestiaorg/syncqueue/libs/cli"
)

func main() {
	rootCmd := cmd.RootCmd
	rootCmd.AddCommand(
		cmd.InitFilesCmd,
		cmd.SimulateCmd,
		cmd.ShowHeightCmd,
		cmd.VersionCmd,
	)

	root := cli.PrepareBaseCmd(rootCmd, "SQ", os.ExpandEnv(filepath.Join("$HOME", cfg.DefaultHomeDir)))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
