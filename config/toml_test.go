package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/syncqueue/config"
)

func ensureFiles(t *testing.T, rootDir string, files ...string) {
	for _, f := range files {
		p := filepath.Join(rootDir, f)
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
}

func TestEnsureRoot(t *testing.T) {
	require := require.New(t)

	tmpDir := t.TempDir()
	config.EnsureRoot(tmpDir)

	data, err := os.ReadFile(filepath.Join(tmpDir, config.DefaultConfigDir, config.DefaultConfigFileName))
	require.Nil(err)

	assertValidConfig(t, string(data))

	ensureFiles(t, tmpDir, config.DefaultDataDir)
}

func TestEnsureRootKeepsExistingFile(t *testing.T) {
	tmpDir := t.TempDir()
	config.EnsureRoot(tmpDir)

	path := filepath.Join(tmpDir, config.DefaultConfigDir, config.DefaultConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("log_level = \"debug\"\n"), 0644))

	config.EnsureRoot(tmpDir)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "log_level = \"debug\"\n", string(data))
}

func assertValidConfig(t *testing.T, configFile string) {
	t.Helper()
	// list of words we expect in the config
	var elems = []string{
		"db_backend",
		"log_level",
		"mode",
		"max_headers_per_request",
		"max_total_headers",
		"request_timeout",
		"chain_length",
		"prometheus",
	}
	for _, e := range elems {
		assert.Contains(t, configFile, e)
	}
}

// renderedConfig mirrors the layout of the config template.
type renderedConfig struct {
	DBBackend string `toml:"db_backend"`
	DBDir     string `toml:"db_dir"`
	LogLevel  string `toml:"log_level"`
	Sync      struct {
		Mode                 string `toml:"mode"`
		EndNumber            uint64 `toml:"end_number"`
		ReverseAnchorHash    string `toml:"reverse_anchor_hash"`
		ReverseAnchorNumber  uint64 `toml:"reverse_anchor_number"`
		MaxHeadersPerRequest int    `toml:"max_headers_per_request"`
		MaxHeaderRequests    int    `toml:"max_header_requests"`
		MaxTotalHeaders      int    `toml:"max_total_headers"`
		MaxBlocksPerRequest  int    `toml:"max_blocks_per_request"`
		RequestInterval      string `toml:"request_interval"`
		RequestTimeout       string `toml:"request_timeout"`
		MaxPeerTimeouts      int    `toml:"max_peer_timeouts"`
		BadHashCacheSize     int    `toml:"bad_hash_cache_size"`
	} `toml:"sync"`
	Simulation struct {
		ChainLength  int    `toml:"chain_length"`
		Peers        int    `toml:"peers"`
		CorruptPeers int    `toml:"corrupt_peers"`
		SilentPeers  int    `toml:"silent_peers"`
		Latency      string `toml:"latency"`
		Seed         string `toml:"seed"`
	} `toml:"simulation"`
	Instrumentation struct {
		Prometheus            bool   `toml:"prometheus"`
		PrometheusListenAddr  string `toml:"prometheus_listen_addr"`
		Namespace             string `toml:"namespace"`
		PushGatewayURL        string `toml:"push_gateway_url"`
		PushInterval          string `toml:"push_interval"`
		PyroscopeURL          string `toml:"pyroscope_url"`
		PyroscopeTrace        bool   `toml:"pyroscope_trace"`
		PyroscopeProfileTypes string `toml:"pyroscope_profile_types"`
	} `toml:"instrumentation"`
}

func TestWriteConfigFileRoundTrip(t *testing.T) {
	cfg := config.TestConfig()
	cfg.Sync.Mode = config.SyncModeReverse
	cfg.Sync.EndNumber = 7
	cfg.Sync.ReverseAnchorHash = "ab12"
	cfg.Sync.ReverseAnchorNumber = 99
	cfg.Simulation.Seed = "round-trip"
	cfg.Instrumentation.Prometheus = true
	cfg.Instrumentation.PushGatewayURL = "http://gateway:9091"
	require.NoError(t, cfg.ValidateBasic())

	path := filepath.Join(t.TempDir(), config.DefaultConfigFileName)
	config.WriteConfigFile(path, cfg)

	var rendered renderedConfig
	md, err := toml.DecodeFile(path, &rendered)
	require.NoError(t, err)
	assert.Empty(t, md.Undecoded(), "every rendered key is known")

	assert.Equal(t, cfg.DBBackend, rendered.DBBackend)
	assert.Equal(t, cfg.DBPath, rendered.DBDir)
	assert.Equal(t, cfg.LogLevel, rendered.LogLevel)

	assert.Equal(t, config.SyncModeReverse, rendered.Sync.Mode)
	assert.Equal(t, uint64(7), rendered.Sync.EndNumber)
	assert.Equal(t, "ab12", rendered.Sync.ReverseAnchorHash)
	assert.Equal(t, uint64(99), rendered.Sync.ReverseAnchorNumber)
	assert.Equal(t, cfg.Sync.MaxHeadersPerRequest, rendered.Sync.MaxHeadersPerRequest)
	assert.Equal(t, cfg.Sync.MaxHeaderRequests, rendered.Sync.MaxHeaderRequests)
	assert.Equal(t, cfg.Sync.MaxTotalHeaders, rendered.Sync.MaxTotalHeaders)
	assert.Equal(t, cfg.Sync.MaxBlocksPerRequest, rendered.Sync.MaxBlocksPerRequest)
	assert.Equal(t, cfg.Sync.MaxPeerTimeouts, rendered.Sync.MaxPeerTimeouts)
	assert.Equal(t, cfg.Sync.BadHashCacheSize, rendered.Sync.BadHashCacheSize)

	interval, err := time.ParseDuration(rendered.Sync.RequestInterval)
	require.NoError(t, err)
	assert.Equal(t, cfg.Sync.RequestInterval, interval)
	timeout, err := time.ParseDuration(rendered.Sync.RequestTimeout)
	require.NoError(t, err)
	assert.Equal(t, cfg.Sync.RequestTimeout, timeout)

	assert.Equal(t, cfg.Simulation.ChainLength, rendered.Simulation.ChainLength)
	assert.Equal(t, cfg.Simulation.Peers, rendered.Simulation.Peers)
	assert.Equal(t, cfg.Simulation.CorruptPeers, rendered.Simulation.CorruptPeers)
	assert.Equal(t, cfg.Simulation.SilentPeers, rendered.Simulation.SilentPeers)
	assert.Equal(t, "round-trip", rendered.Simulation.Seed)
	latency, err := time.ParseDuration(rendered.Simulation.Latency)
	require.NoError(t, err)
	assert.Equal(t, cfg.Simulation.Latency, latency)

	assert.True(t, rendered.Instrumentation.Prometheus)
	assert.Equal(t, cfg.Instrumentation.PrometheusListenAddr, rendered.Instrumentation.PrometheusListenAddr)
	assert.Equal(t, cfg.Instrumentation.Namespace, rendered.Instrumentation.Namespace)
	assert.Equal(t, "http://gateway:9091", rendered.Instrumentation.PushGatewayURL)
	push, err := time.ParseDuration(rendered.Instrumentation.PushInterval)
	require.NoError(t, err)
	assert.Equal(t, cfg.Instrumentation.PushInterval, push)
	assert.Empty(t, rendered.Instrumentation.PyroscopeURL)
	assert.False(t, rendered.Instrumentation.PyroscopeTrace)
	assert.Equal(t, cfg.Instrumentation.PyroscopeProfileTypes, rendered.Instrumentation.PyroscopeProfileTypes)
}
