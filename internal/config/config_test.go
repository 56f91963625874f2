package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigCreatesDefaultWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "index.db"), cfg.StorePath)
	require.Equal(t, time.Hour, cfg.OptimizeInterval)
	require.Equal(t, time.Second, cfg.RetryInterval)
	require.FileExists(t, ConfigPath(dir))
}

func TestLoadConfigReadsExisting(t *testing.T) {
	dir := t.TempDir()
	first, err := LoadConfig(dir)
	require.NoError(t, err)
	first.Logging.Level = "debug"
	require.NoError(t, first.Save(ConfigPath(dir)))

	second, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, "debug", second.Logging.Level)
}

func TestExpandPathExpandsHome(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, byte('~'), cfg.StorePath[0])

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".melblkidx", "index.db"), expandPath(cfg.StorePath))
}
