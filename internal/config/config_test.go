package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chiptally.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFullFile(t *testing.T) {
	path := writeConfig(t, `
server {
  address   = "0.0.0.0"
  port      = 9000
  log_level = "debug"
}

storage {
  driver = "postgres"
}

game {
  player_count         = 6
  starting_chips       = 20000
  bet_unit             = 50
  blinds_enabled       = true
  small_blind          = 50
  big_blind            = 100
  auto_increase_blinds = true
}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Address)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 6, cfg.Game.PlayerCount)
	assert.Equal(t, 20000, cfg.Game.StartingChips)
	assert.True(t, cfg.Game.AutoIncreaseBlind)
}

func TestLoadAppliesDefaultsToUnsetFields(t *testing.T) {
	path := writeConfig(t, `
server {
  port = 9000
}

storage {}

game {
  player_count = 8
}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Address)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "rooms", cfg.Storage.Path)
	assert.Equal(t, 8, cfg.Game.PlayerCount)
	assert.Equal(t, 100, cfg.Game.SmallBlind)
	assert.Equal(t, 200, cfg.Game.BigBlind)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := writeConfig(t, `server { port = `)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestListenAddr(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "localhost:8080", cfg.ListenAddr())

	cfg.Server.Address = "0.0.0.0"
	cfg.Server.Port = 3000
	assert.Equal(t, "0.0.0.0:3000", cfg.ListenAddr())
}

func TestDefaultGameSettings(t *testing.T) {
	cfg := Default()
	settings := cfg.DefaultGameSettings()

	assert.Equal(t, 4, settings.PlayerCount)
	assert.Equal(t, 10000, settings.StartingChips)
	assert.True(t, settings.BlindsEnabled)
	assert.Equal(t, 100, settings.SmallBlind)
	assert.Equal(t, 200, settings.BigBlind)
	assert.False(t, settings.AutoIncreaseBlind)
}
