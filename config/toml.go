package config

import (
	"bytes"
	"path/filepath"
	"text/template"

	cmtos "github.com/celestiaorg/syncqueue/libs/os"
)

// DefaultDirPerm is the default permissions used when creating directories.
const DefaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate")
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

/****** these are for production settings ***********/

// EnsureRoot creates the root, config, and data directories if they don't exist,
// and panics if it fails.
func EnsureRoot(rootDir string) {
	if err := cmtos.EnsureDir(rootDir, DefaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := cmtos.EnsureDir(filepath.Join(rootDir, DefaultConfigDir), DefaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := cmtos.EnsureDir(filepath.Join(rootDir, DefaultDataDir), DefaultDirPerm); err != nil {
		panic(err.Error())
	}

	configFilePath := filepath.Join(rootDir, defaultConfigFilePath)

	// Write default config file if missing.
	if !cmtos.FileExists(configFilePath) {
		writeDefaultConfigFile(configFilePath)
	}
}

func writeDefaultConfigFile(configFilePath string) {
	WriteConfigFile(configFilePath, DefaultConfig())
}

// WriteConfigFile renders config using the template and writes it to
// configFilePath.
func WriteConfigFile(configFilePath string, config *Config) {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, config); err != nil {
		panic(err)
	}

	cmtos.MustWriteFile(configFilePath, buffer.Bytes(), 0644)
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/myawesomeapp/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.syncqueue" by default, but could be changed via $SQHOME env variable
# or --home cmd flag.

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# Database backend: goleveldb | memdb
db_backend = "{{ .BaseConfig.DBBackend }}"

# Database directory
db_dir = "{{ js .BaseConfig.DBPath }}"

# Output level for logging: debug | info | error | none
log_level = "{{ .BaseConfig.LogLevel }}"

#######################################################################
###                       Sync Configuration                        ###
#######################################################################
[sync]

# forward:         headers then blocks, upwards from the stored tip
# forward-headers: headers only, upwards from the stored tip
# reverse:         headers only, downwards from an anchor header
mode = "{{ .Sync.Mode }}"

# Last number to sync in forward modes, 0 for no end.
# Lowest number to sync in reverse mode.
end_number = {{ .Sync.EndNumber }}

# Header the reverse sync starts from, hex encoded. When empty the parent of
# the lowest stored header is used.
reverse_anchor_hash = "{{ .Sync.ReverseAnchorHash }}"
reverse_anchor_number = {{ .Sync.ReverseAnchorNumber }}

# Headers asked from a single peer in one request
max_headers_per_request = {{ .Sync.MaxHeadersPerRequest }}

# Header requests sent per round
max_header_requests = {{ .Sync.MaxHeaderRequests }}

# Headers held in memory before requests are put on hold
max_total_headers = {{ .Sync.MaxTotalHeaders }}

# Blocks asked from a single peer in one request
max_blocks_per_request = {{ .Sync.MaxBlocksPerRequest }}

# How often a request round runs
request_interval = "{{ .Sync.RequestInterval }}"

# How long a peer has to answer
request_timeout = "{{ .Sync.RequestTimeout }}"

# Consecutive timeouts after which a peer is dropped, 0 = never
max_peer_timeouts = {{ .Sync.MaxPeerTimeouts }}

# Number of known bad header hashes remembered
bad_hash_cache_size = {{ .Sync.BadHashCacheSize }}

#######################################################################
###                    Simulation Configuration                     ###
#######################################################################
[simulation]

# Length of the generated chain served by the simulated peers
chain_length = {{ .Simulation.ChainLength }}

# Number of honest, forging and silent peers
peers = {{ .Simulation.Peers }}
corrupt_peers = {{ .Simulation.CorruptPeers }}
silent_peers = {{ .Simulation.SilentPeers }}

# Delay added to every response
latency = "{{ .Simulation.Latency }}"

# Mixed into the generated chain
seed = "{{ .Simulation.Seed }}"

#######################################################################
###                 Instrumentation Configuration                   ###
#######################################################################
[instrumentation]

# When true, Prometheus metrics are served under /metrics on
# PrometheusListenAddr.
prometheus = {{ .Instrumentation.Prometheus }}

# Address to listen for Prometheus collector(s) connections
prometheus_listen_addr = "{{ .Instrumentation.PrometheusListenAddr }}"

# Instrumentation namespace
namespace = "{{ .Instrumentation.Namespace }}"

# Prometheus push gateway the metrics are pushed to, empty to disable
push_gateway_url = "{{ .Instrumentation.PushGatewayURL }}"
push_interval = "{{ .Instrumentation.PushInterval }}"

# Pyroscope server receiving continuous profiles, empty to disable
pyroscope_url = "{{ .Instrumentation.PyroscopeURL }}"

# When true, sync rounds are traced and linked to the profiles
pyroscope_trace = {{ .Instrumentation.PyroscopeTrace }}

# Comma separated list of profile types: cpu, alloc_objects, alloc_space,
# inuse_objects, inuse_space, goroutines, mutex_count, mutex_duration,
# block_count, block_duration
pyroscope_profile_types = "{{ .Instrumentation.PyroscopeProfileTypes }}"
`
