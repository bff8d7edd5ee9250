package config

import (
	"os"
	"runtime"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/aarsakian/GIFCarver/scanner"
	"github.com/aarsakian/GIFCarver/utils"
)

type Config struct {
	Evidence      string `toml:"evidence"`
	PhysicalDrive int    `toml:"physical_drive"`
	// Partitions are 1-based, none selects every slot.
	Partitions []int  `toml:"partitions"`
	Location   string `toml:"location"`

	Workers     int           `toml:"workers"`
	Window      int           `toml:"window"`
	HitWorkers  int           `toml:"hit_workers"`
	ReadTimeout time.Duration `toml:"read_timeout"`

	DebugfsPath string `toml:"debugfs_path"`
	// DebugfsDevice overrides the device handed to debugfs, the evidence
	// path is used when empty.
	DebugfsDevice     string        `toml:"debugfs_device"`
	Sudo              bool          `toml:"sudo"`
	ResolverTimeout   time.Duration `toml:"resolver_timeout"`
	SingleBlockTokens bool          `toml:"single_block_tokens"`

	DryRun            bool `toml:"dry_run"`
	PartitionRelative bool `toml:"partition_relative"`
	ScanEmptySlots    bool `toml:"scan_empty_slots"`

	FromBlock  uint64   `toml:"from_block"`
	ToBlock    uint64   `toml:"to_block"`
	Signatures []string `toml:"signatures"`

	Hash        string `toml:"hash"`
	MetricsFile string `toml:"metrics_file"`
	Log         bool   `toml:"log"`
}

func Default() Config {
	return Config{
		PhysicalDrive:   -1,
		Location:        ".",
		Workers:         runtime.NumCPU(),
		Window:          scanner.DefaultWindow,
		HitWorkers:      1,
		DebugfsPath:     "debugfs",
		ResolverTimeout: 30 * time.Second,
	}
}

// Load reads a TOML file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// SetPartitions reads a comma separated list such as "1,3".
func (cfg *Config) SetPartitions(entries string) {
	cfg.Partitions = utils.GetEntriesInt(entries)
}

// PartitionIndexes returns the selected slots as 0-based indexes.
func (cfg Config) PartitionIndexes() []int {
	var indexes []int
	for _, partition := range cfg.Partitions {
		indexes = append(indexes, partition-1)
	}
	return indexes
}

func (cfg Config) Validate() error {
	if cfg.Evidence == "" && cfg.PhysicalDrive < 0 {
		return errors.New("an evidence file or a physical drive is required")
	}
	for _, partition := range cfg.Partitions {
		if partition < 1 || partition > 4 {
			return errors.Errorf("partition %d out of range 1-4", partition)
		}
	}
	if cfg.Workers < 1 || cfg.HitWorkers < 1 || cfg.Window < 1 {
		return errors.New("workers, hit workers and window must be positive")
	}
	if cfg.ToBlock != 0 && cfg.ToBlock < cfg.FromBlock {
		return errors.Errorf("to block %d before from block %d", cfg.ToBlock, cfg.FromBlock)
	}
	if cfg.Hash != "" && cfg.Hash != "MD5" && cfg.Hash != "SHA1" {
		return errors.Errorf("unsupported hash %s", cfg.Hash)
	}
	return nil
}
