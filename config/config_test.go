package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gifcarver.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
evidence = "/evidence/disk.img"
partitions = [2, 4]
workers = 3
sudo = true
signatures = ["GIF89a"]
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/evidence/disk.img", cfg.Evidence)
	require.Equal(t, []int{2, 4}, cfg.Partitions)
	require.Equal(t, []int{1, 3}, cfg.PartitionIndexes())
	require.Equal(t, 3, cfg.Workers)
	require.True(t, cfg.Sudo)
	require.Equal(t, []string{"GIF89a"}, cfg.Signatures)
	// untouched keys keep their defaults
	require.Equal(t, "debugfs", cfg.DebugfsPath)
	require.Equal(t, -1, cfg.PhysicalDrive)
	require.NoError(t, cfg.Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("workers = ["), 0644))
	_, err = Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.Validate())

	cfg.Evidence = "disk.img"
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Partitions = []int{1, 5}
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Partitions = []int{0}
	require.Error(t, bad.Validate())

	bad = cfg
	bad.FromBlock, bad.ToBlock = 10, 5
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Hash = "CRC32"
	require.Error(t, bad.Validate())
}

func TestSetPartitions(t *testing.T) {
	cfg := Default()
	cfg.Evidence = "disk.img"
	require.Empty(t, cfg.PartitionIndexes())

	cfg.SetPartitions("1, 3,x")
	require.Equal(t, []int{1, 3}, cfg.Partitions)
	require.Equal(t, []int{0, 2}, cfg.PartitionIndexes())
	require.NoError(t, cfg.Validate())
}
