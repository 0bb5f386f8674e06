// Package rangedbcfg is the typed configuration surface every rangedb
// deployment fills in: placement ratios, bulk-send capacity, async-PUT
// watermark policy, the datastore and transport backends to wire up, the
// hash function, configured histograms, and an optional endpoint-group
// restricting which range servers a client talks to. Loading is a plain
// struct plus an optional YAML file overlaid onto Default().
package rangedbcfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DatastoreType names a storage backend. LevelDB and RocksDB are the
// conventional names for the two disk-backed engine slots; rangedb has
// one disk-backed engine (bbolt) and resolves both names to it.
type DatastoreType string

const (
	DatastoreInMemory DatastoreType = "InMemory"
	DatastoreLevelDB  DatastoreType = "LevelDB"
	DatastoreRocksDB  DatastoreType = "RocksDB"
)

// TransportType names an RPC substrate. None selects the in-process
// localtransport used by tests and single-binary demos; grpc sends bulk
// messages between ranks over the network.
type TransportType string

const (
	TransportNone TransportType = "None"
	TransportGRPC TransportType = "grpc"
)

// DatastoreConfig holds datastore.type plus its type-specific options.
type DatastoreConfig struct {
	Type            DatastoreType `yaml:"type"`
	Prefix          string        `yaml:"prefix"`
	CreateIfMissing bool          `yaml:"create_if_missing"`
}

// TransportConfig holds transport.type plus its type-specific options.
// Peers maps a rank to the
// address grpctransport should dial to reach it; BufferSize is parsed
// but neither transport reads it.
type TransportConfig struct {
	Type       TransportType    `yaml:"type"`
	Peers      map[int32]string `yaml:"peers"`
	ListenAddr string           `yaml:"listen_addr"`
	BufferSize int              `yaml:"buffer_size"`
}

// AsyncPutsConfig is the background watermark policy: the async worker
// wakes once the put queue holds MaxQueued items.
type AsyncPutsConfig struct {
	Enabled   bool `yaml:"enabled"`
	MaxQueued int  `yaml:"max_queued"`
}

// HistogramConfig describes one named streaming estimator configured on
// every datastore this client's range servers own. Config is
// the first-N cache capacity passed to histogram.New; Read makes
// rangedb.Open reload it from each datastore it opens. Write is parsed
// but not consulted: Client.Sync persists every configured histogram.
type HistogramConfig struct {
	Name   string `yaml:"name"`
	Config int    `yaml:"config"`
	Read   bool   `yaml:"read"`
	Write  bool   `yaml:"write"`
}

// Config is the full configuration surface a client needs to start.
type Config struct {
	ClientRatio         int `yaml:"client_ratio"`
	ServerRatio         int `yaml:"server_ratio"`
	DatastoresPerServer int `yaml:"datastores_per_server"`
	WorldSize           int `yaml:"world_size"`
	Rank                int `yaml:"rank"`

	MaxOpsPerSend int `yaml:"max_ops_per_send"`

	AsyncPuts AsyncPutsConfig `yaml:"async_puts"`

	Datastore DatastoreConfig `yaml:"datastore"`
	HashName  string          `yaml:"hash_name"`
	Transport TransportConfig `yaml:"transport"`

	Histograms []HistogramConfig `yaml:"histograms"`

	// EndpointGroup optionally restricts which range server ranks this
	// client will talk to; nil means every range server under the
	// placement ratios is reachable.
	EndpointGroup []int32 `yaml:"endpointgroup"`
}

// Default returns a Config for a single-process, in-memory, synchronous
// deployment: one rank that is its own (and only) range server, async
// puts disabled. It is the baseline cmd/rangedb and tests build on top
// of.
func Default() Config {
	return Config{
		ClientRatio:         1,
		ServerRatio:         1,
		DatastoresPerServer: 1,
		WorldSize:           1,
		Rank:                0,
		MaxOpsPerSend:       256,
		AsyncPuts: AsyncPutsConfig{
			Enabled:   false,
			MaxQueued: 0,
		},
		Datastore: DatastoreConfig{Type: DatastoreInMemory},
		HashName:  "SumModDatastores",
		Transport: TransportConfig{Type: TransportNone},
	}
}

// Load reads a YAML file at path and overlays it onto Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("rangedbcfg: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("rangedbcfg: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the invariants the rest of rangedb assumes hold:
// positive ratios and world size, a positive send capacity, and (if
// async puts are enabled) a positive queue ceiling.
func (c Config) Validate() error {
	if c.ClientRatio <= 0 || c.ServerRatio <= 0 || c.DatastoresPerServer <= 0 {
		return fmt.Errorf("rangedbcfg: client_ratio, server_ratio, and datastores_per_server must be positive")
	}
	if c.WorldSize <= 0 {
		return fmt.Errorf("rangedbcfg: world_size must be positive")
	}
	if c.Rank < 0 || c.Rank >= c.WorldSize {
		return fmt.Errorf("rangedbcfg: rank %d out of range [0, %d)", c.Rank, c.WorldSize)
	}
	if c.MaxOpsPerSend <= 0 {
		return fmt.Errorf("rangedbcfg: max_ops_per_send must be positive")
	}
	if c.AsyncPuts.Enabled && c.AsyncPuts.MaxQueued <= 0 {
		return fmt.Errorf("rangedbcfg: async_puts.max_queued must be positive when async_puts.enabled")
	}
	return nil
}
