// Package config defines process configuration for the event processor.
// Loaded from an optional YAML file with BONDPROC_* environment variable
// overrides, mirroring the viper-based pattern in
// 0xtitan6-polymarket-mm/internal/config/config.go.
package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration.
type Config struct {
	HTTP  HTTPConfig  `mapstructure:"http"`
	Store StoreConfig `mapstructure:"store"`
	Seed  SeedConfig  `mapstructure:"seed"`
}

// HTTPConfig controls the intake/report HTTP server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// StoreConfig controls the SQLite-backed reference store.
type StoreConfig struct {
	DBPath    string `mapstructure:"db_path"`
	OutputDir string `mapstructure:"output_dir"` // base dir for /api/output_reports bulk CSVs
}

// SeedConfig names the three CSV seeding files read once at startup.
type SeedConfig struct {
	FXPath   string `mapstructure:"fx_path"`
	BondPath string `mapstructure:"bond_path"`
	CashPath string `mapstructure:"cash_path"`
}

// Default returns the configuration used when no file or env override is
// present.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		Store: StoreConfig{
			DBPath:    "./data/bondproc.db",
			OutputDir: "./out",
		},
		Seed: SeedConfig{
			FXPath:   "./initial_fx.csv",
			BondPath: "./bond_details.csv",
			CashPath: "./initial_cash.csv",
		},
	}
}

// Load reads configPath (if non-empty and present) layered under
// defaults, with BONDPROC_* environment variables overriding both.
func Load(configPath string) (Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("http.addr", def.HTTP.Addr)
	v.SetDefault("store.db_path", def.Store.DBPath)
	v.SetDefault("store.output_dir", def.Store.OutputDir)
	v.SetDefault("seed.fx_path", def.Seed.FXPath)
	v.SetDefault("seed.bond_path", def.Seed.BondPath)
	v.SetDefault("seed.cash_path", def.Seed.CashPath)

	v.SetEnvPrefix("BONDPROC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
