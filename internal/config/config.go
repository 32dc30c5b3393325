// Package config loads the server configuration from an HCL file.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"chiptally/internal/engine"
)

// Config is the complete server configuration.
type Config struct {
	Server  ServerSettings  `hcl:"server,block"`
	Storage StorageSettings `hcl:"storage,block"`
	Game    GameSettings    `hcl:"game,block"`
}

// ServerSettings contains the HTTP listener configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// StorageSettings selects the snapshot backend. The postgres driver reads
// its DSN from the DATABASE_URL environment variable, never from the file.
type StorageSettings struct {
	Driver string `hcl:"driver,optional"` // memory | file | postgres
	Path   string `hcl:"path,optional"`   // file driver only
}

// GameSettings are the table defaults applied to rooms created without
// explicit settings.
type GameSettings struct {
	PlayerCount       int  `hcl:"player_count,optional"`
	StartingChips     int  `hcl:"starting_chips,optional"`
	BetUnit           int  `hcl:"bet_unit,optional"`
	BlindsEnabled     bool `hcl:"blinds_enabled,optional"`
	SmallBlind        int  `hcl:"small_blind,optional"`
	BigBlind          int  `hcl:"big_blind,optional"`
	AutoIncreaseBlind bool `hcl:"auto_increase_blinds,optional"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Storage: StorageSettings{
			Driver: "file",
			Path:   "rooms",
		},
		Game: GameSettings{
			PlayerCount:   4,
			StartingChips: 10000,
			BetUnit:       100,
			BlindsEnabled: true,
			SmallBlind:    100,
			BigBlind:      200,
		},
	}
}

// Load reads the configuration from an HCL file. A missing file yields the
// defaults; a present file has defaults applied to any unset fields.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %s", filename, diags.Error())
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %s", filename, diags.Error())
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Server.Address == "" {
		cfg.Server.Address = def.Server.Address
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = def.Server.LogLevel
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = def.Storage.Driver
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = def.Storage.Path
	}
	if cfg.Game.PlayerCount == 0 {
		cfg.Game.PlayerCount = def.Game.PlayerCount
	}
	if cfg.Game.StartingChips == 0 {
		cfg.Game.StartingChips = def.Game.StartingChips
	}
	if cfg.Game.BetUnit == 0 {
		cfg.Game.BetUnit = def.Game.BetUnit
	}
	if cfg.Game.SmallBlind == 0 {
		cfg.Game.SmallBlind = def.Game.SmallBlind
	}
	if cfg.Game.BigBlind == 0 {
		cfg.Game.BigBlind = def.Game.BigBlind
	}
}

// ListenAddr returns the host:port the server should bind.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// DefaultGameSettings converts the configured table defaults into engine
// settings.
func (c *Config) DefaultGameSettings() engine.Settings {
	return engine.Settings{
		PlayerCount:       c.Game.PlayerCount,
		StartingChips:     c.Game.StartingChips,
		BetUnit:           c.Game.BetUnit,
		BlindsEnabled:     c.Game.BlindsEnabled,
		SmallBlind:        c.Game.SmallBlind,
		BigBlind:          c.Game.BigBlind,
		AutoIncreaseBlind: c.Game.AutoIncreaseBlind,
	}
}
