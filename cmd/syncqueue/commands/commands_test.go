package commands

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/syncqueue/libs/cli"
	"github.com/celestiaorg/syncqueue/version"
)

var setupOnce sync.Once

func testRootCmd() *cobra.Command {
	setupOnce.Do(func() {
		RootCmd.AddCommand(InitFilesCmd, SimulateCmd, ShowHeightCmd, VersionCmd)
		cli.PrepareBaseCmd(RootCmd, "SQ", os.TempDir())
	})
	return RootCmd
}

// run executes the root command with args. Flag values set by earlier runs
// are put back to their defaults first.
func run(args ...string) (string, error) {
	viper.Reset()

	cmd := testRootCmd()
	for _, sub := range cmd.Commands() {
		sub.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append(args, "--log_level", "none"))
	err := cmd.Execute()
	return out.String(), err
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(args...)
	require.NoError(t, err)
	return out
}

func TestVersionCmd(t *testing.T) {
	assert.Equal(t, version.Version+"\n", execute(t, "version"))
}

func TestInitAndShowHeight(t *testing.T) {
	home := t.TempDir()

	execute(t, "init", "--home", home)
	assert.FileExists(t, home+"/config/config.toml")
	assert.Equal(t, "headers: 0..0\nblocks: none\n", execute(t, "show-height", "--home", home))

	// a second init keeps the store
	execute(t, "init", "--home", home)
	assert.Equal(t, "headers: 0..0\nblocks: none\n", execute(t, "show-height", "--home", home))
}

func TestShowHeightEmpty(t *testing.T) {
	assert.Equal(t, "empty\n", execute(t, "show-height", "--home", t.TempDir()))
}

func simulateArgs(home, mode, corrupt string) []string {
	return []string{
		"simulate", "--home", home,
		"--sync.mode", mode,
		"--simulation.chain_length", "40",
		"--simulation.peers", "2",
		"--simulation.corrupt_peers", corrupt,
		"--simulation.silent_peers", "0",
		"--simulation.latency", "0s",
	}
}

func TestSimulateForward(t *testing.T) {
	home := t.TempDir()

	out := execute(t, simulateArgs(home, "forward", "1")...)
	assert.Contains(t, out, "synced headers 0..40")
	assert.Contains(t, out, "honest-0")
	assert.Contains(t, out, "corrupt-0")

	assert.Equal(t, "headers: 0..40\nblocks: 1..40\n", execute(t, "show-height", "--home", home))
}

func TestSimulateReverse(t *testing.T) {
	home := t.TempDir()

	out := execute(t, simulateArgs(home, "reverse", "0")...)
	assert.Contains(t, out, "synced headers 1..40")

	assert.Equal(t, "headers: 1..40\nblocks: none\n", execute(t, "show-height", "--home", home))
}

func TestSimulateReverseAfterInit(t *testing.T) {
	home := t.TempDir()

	execute(t, "init", "--home", home, "--sync.mode", "reverse")
	assert.FileExists(t, home+"/config/config.toml")
	assert.Equal(t, "empty\n", execute(t, "show-height", "--home", home))

	out := execute(t, simulateArgs(home, "reverse", "0")...)
	assert.Contains(t, out, "synced headers 1..40")
	assert.Equal(t, "headers: 1..40\nblocks: none\n", execute(t, "show-height", "--home", home))
}

func TestSimulateReverseOverForwardStore(t *testing.T) {
	home := t.TempDir()

	execute(t, "init", "--home", home)
	_, err := run(simulateArgs(home, "reverse", "0")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not sit below stored base #0")

	// the store is left as init wrote it
	assert.Equal(t, "headers: 0..0\nblocks: none\n", execute(t, "show-height", "--home", home))
}
