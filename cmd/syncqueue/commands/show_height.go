package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	cfg "github.com/celestiaorg/syncqueue/config"
	"github.com/celestiaorg/syncqueue/store"
)

// ShowHeightCmd prints the ranges held by the block store.
var ShowHeightCmd = &cobra.Command{
	Use:   "show-height",
	Short: "Show the header and block ranges in the block store",
	RunE:  showHeight,
}

func showHeight(cmd *cobra.Command, args []string) error {
	db, err := cfg.DefaultDBProvider(&cfg.DBContext{ID: "blockstore", Config: config})
	if err != nil {
		return err
	}
	bs := store.NewBlockStore(db)
	defer bs.Close()

	out := cmd.OutOrStdout()
	if !bs.HasHeaders() {
		fmt.Fprintln(out, "empty")
		return nil
	}
	fmt.Fprintf(out, "headers: %d..%d\n", bs.HeaderBase(), bs.HeaderHeight())
	if bs.Size() == 0 {
		fmt.Fprintln(out, "blocks: none")
	} else {
		fmt.Fprintf(out, "blocks: %d..%d\n", bs.Base(), bs.Height())
	}
	return nil
}
