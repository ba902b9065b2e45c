package config

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

const (
	// SyncModeForward downloads headers then blocks above the stored tip.
	SyncModeForward = "forward"
	// SyncModeForwardHeaders downloads headers only above the stored tip.
	SyncModeForwardHeaders = "forward-headers"
	// SyncModeReverse downloads headers below an anchor header.
	SyncModeReverse = "reverse"
)

// NOTE: Most of the structs & relevant comments + the
// default configuration options were used to manually
// generate the config.toml. Please reflect any changes
// made here in the defaultConfigTemplate constant in
// config/toml.go
var (
	DefaultHomeDir   = ".syncqueue"
	DefaultConfigDir = "config"
	DefaultDataDir   = "data"

	DefaultConfigFileName = "config.toml"

	defaultConfigFilePath = filepath.Join(DefaultConfigDir, DefaultConfigFileName)
)

// Config defines the top level configuration for a sync node.
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	// Options for services
	Sync            *SyncConfig            `mapstructure:"sync"`
	Simulation      *SimulationConfig      `mapstructure:"simulation"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration for a sync node.
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		Sync:            DefaultSyncConfig(),
		Simulation:      DefaultSimulationConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing.
func TestConfig() *Config {
	return &Config{
		BaseConfig:      TestBaseConfig(),
		Sync:            TestSyncConfig(),
		Simulation:      TestSimulationConfig(),
		Instrumentation: TestInstrumentationConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs.
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.Sync.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [sync] section")
	}
	if err := cfg.Simulation.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [simulation] section")
	}
	return errors.Wrap(
		cfg.Instrumentation.ValidateBasic(),
		"error in [instrumentation] section",
	)
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration for a sync node.
type BaseConfig struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home"`

	// Database backend: goleveldb | memdb
	DBBackend string `mapstructure:"db_backend"`

	// Database directory
	DBPath string `mapstructure:"db_dir"`

	// Output level for logging: debug | info | error | none
	LogLevel string `mapstructure:"log_level"`
}

// DefaultBaseConfig returns a default base configuration.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		DBBackend: "goleveldb",
		DBPath:    DefaultDataDir,
		LogLevel:  DefaultLogLevel,
	}
}

// TestBaseConfig returns a base configuration for testing.
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.DBBackend = "memdb"
	return cfg
}

// DBDir returns the full path to the database directory.
func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogLevel {
	case "debug", "info", "error", "none":
	default:
		return fmt.Errorf("unknown log_level %q (must be 'debug', 'info', 'error' or 'none')", cfg.LogLevel)
	}
	if cfg.DBBackend == "" {
		return errors.New("db_backend can't be empty")
	}
	return nil
}

// DefaultLogLevel is the level used unless configured otherwise.
const DefaultLogLevel = "info"

//-----------------------------------------------------------------------------
// SyncConfig

// SyncConfig defines what to sync and how much to ask peers for at once.
type SyncConfig struct {
	// forward | forward-headers | reverse
	Mode string `mapstructure:"mode"`

	// Last number to sync in forward modes, 0 for no end.
	// Lowest number to sync in reverse mode.
	EndNumber uint64 `mapstructure:"end_number"`

	// Header the reverse sync starts from. When empty the parent of the
	// lowest stored header is used.
	ReverseAnchorHash   string `mapstructure:"reverse_anchor_hash"`
	ReverseAnchorNumber uint64 `mapstructure:"reverse_anchor_number"`

	MaxHeadersPerRequest int `mapstructure:"max_headers_per_request"`
	MaxHeaderRequests    int `mapstructure:"max_header_requests"`
	MaxTotalHeaders      int `mapstructure:"max_total_headers"`
	MaxBlocksPerRequest  int `mapstructure:"max_blocks_per_request"`

	RequestInterval time.Duration `mapstructure:"request_interval"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`

	// Consecutive timeouts after which a peer is dropped, 0 = never.
	MaxPeerTimeouts int `mapstructure:"max_peer_timeouts"`

	// Number of known bad header hashes remembered.
	BadHashCacheSize int `mapstructure:"bad_hash_cache_size"`
}

// DefaultSyncConfig returns a default configuration for the syncer.
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		Mode:                 SyncModeForward,
		MaxHeadersPerRequest: 192,
		MaxHeaderRequests:    8,
		MaxTotalHeaders:      8192,
		MaxBlocksPerRequest:  64,
		RequestInterval:      100 * time.Millisecond,
		RequestTimeout:       10 * time.Second,
		MaxPeerTimeouts:      3,
		BadHashCacheSize:     4096,
	}
}

// TestSyncConfig returns a configuration for testing the syncer.
func TestSyncConfig() *SyncConfig {
	cfg := DefaultSyncConfig()
	cfg.MaxHeadersPerRequest = 16
	cfg.MaxHeaderRequests = 4
	cfg.MaxTotalHeaders = 256
	cfg.MaxBlocksPerRequest = 16
	cfg.RequestInterval = 5 * time.Millisecond
	cfg.RequestTimeout = 200 * time.Millisecond
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *SyncConfig) ValidateBasic() error {
	switch cfg.Mode {
	case SyncModeForward, SyncModeForwardHeaders:
	case SyncModeReverse:
		if cfg.ReverseAnchorHash != "" {
			if _, err := hex.DecodeString(cfg.ReverseAnchorHash); err != nil {
				return errors.Wrap(err, "reverse_anchor_hash is not hex")
			}
			if cfg.ReverseAnchorNumber < cfg.EndNumber {
				return errors.New("reverse_anchor_number can't be below end_number")
			}
		}
	default:
		return fmt.Errorf("unknown mode %q (must be '%s', '%s' or '%s')",
			cfg.Mode, SyncModeForward, SyncModeForwardHeaders, SyncModeReverse)
	}
	if cfg.MaxHeadersPerRequest <= 0 {
		return errors.New("max_headers_per_request must be positive")
	}
	if cfg.MaxHeaderRequests <= 0 {
		return errors.New("max_header_requests must be positive")
	}
	if cfg.MaxTotalHeaders < cfg.MaxHeadersPerRequest {
		return errors.New("max_total_headers can't be less than max_headers_per_request")
	}
	if cfg.MaxBlocksPerRequest <= 0 {
		return errors.New("max_blocks_per_request must be positive")
	}
	if cfg.RequestInterval <= 0 {
		return errors.New("request_interval must be positive")
	}
	if cfg.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if cfg.MaxPeerTimeouts < 0 {
		return errors.New("max_peer_timeouts can't be negative")
	}
	if cfg.BadHashCacheSize <= 0 {
		return errors.New("bad_hash_cache_size must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// SimulationConfig

// SimulationConfig describes the in-memory network the simulate command
// syncs from.
type SimulationConfig struct {
	// Length of the generated chain.
	ChainLength int `mapstructure:"chain_length"`

	// Number of honest peers.
	Peers int `mapstructure:"peers"`

	// Number of peers serving a forged chain.
	CorruptPeers int `mapstructure:"corrupt_peers"`

	// Number of peers that never answer.
	SilentPeers int `mapstructure:"silent_peers"`

	// Delay added to every response.
	Latency time.Duration `mapstructure:"latency"`

	// Mixed into the generated chain.
	Seed string `mapstructure:"seed"`
}

// DefaultSimulationConfig returns a default simulated network.
func DefaultSimulationConfig() *SimulationConfig {
	return &SimulationConfig{
		ChainLength:  10000,
		Peers:        4,
		CorruptPeers: 1,
		SilentPeers:  1,
		Latency:      5 * time.Millisecond,
		Seed:         "syncqueue",
	}
}

// TestSimulationConfig returns a small simulated network.
func TestSimulationConfig() *SimulationConfig {
	cfg := DefaultSimulationConfig()
	cfg.ChainLength = 200
	cfg.Peers = 2
	cfg.Latency = 0
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *SimulationConfig) ValidateBasic() error {
	if cfg.ChainLength <= 0 {
		return errors.New("chain_length must be positive")
	}
	if cfg.Peers <= 0 {
		return errors.New("at least one honest peer is required")
	}
	if cfg.CorruptPeers < 0 || cfg.SilentPeers < 0 {
		return errors.New("peer counts can't be negative")
	}
	if cfg.Latency < 0 {
		return errors.New("latency can't be negative")
	}
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus_listen_addr"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`

	// Prometheus push gateway the metrics are pushed to every PushInterval,
	// empty to disable.
	PushGatewayURL string        `mapstructure:"push_gateway_url"`
	PushInterval   time.Duration `mapstructure:"push_interval"`

	// Pyroscope server receiving continuous profiles, empty to disable.
	PyroscopeURL string `mapstructure:"pyroscope_url"`

	// When true, sync rounds are traced and linked to the profiles.
	PyroscopeTrace bool `mapstructure:"pyroscope_trace"`

	// Comma separated pyroscope profile types, e.g. "cpu,alloc_objects".
	PyroscopeProfileTypes string `mapstructure:"pyroscope_profile_types"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:            false,
		PrometheusListenAddr:  ":26660",
		Namespace:             "syncqueue",
		PushInterval:          5 * time.Second,
		PyroscopeProfileTypes: "cpu,alloc_objects,inuse_objects,goroutines",
	}
}

// TestInstrumentationConfig returns a default configuration for metrics
// reporting.
func TestInstrumentationConfig() *InstrumentationConfig {
	return DefaultInstrumentationConfig()
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.Prometheus && cfg.PrometheusListenAddr == "" {
		return errors.New("prometheus_listen_addr can't be empty when prometheus is on")
	}
	if cfg.PushGatewayURL != "" && cfg.PushInterval <= 0 {
		return errors.New("push_interval must be positive")
	}
	if cfg.PyroscopeTrace && cfg.PyroscopeURL == "" {
		return errors.New("pyroscope_trace requires pyroscope_url")
	}
	return nil
}

//-----------------------------------------------------------------------------
// Utils

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
