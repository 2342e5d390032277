// Package daemon holds the engine's configuration: file location,
// defaults, and TOML loading.
//
// Configuration lives at ~/.guildhall/config.toml; GUILDHALL_HOME
// overrides the directory. A missing file means defaults.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/guildforge/guildhall/internal/currency"
)

// Config is the daemon configuration tree.
type Config struct {
	API      APIConfig      `toml:"api"`
	Storage  StorageConfig  `toml:"storage"`
	War      WarConfig      `toml:"war"`
	Party    PartyConfig    `toml:"party"`
	Currency CurrencyConfig `toml:"currency"`
	Sweep    SweepConfig    `toml:"sweep"`
}

// APIConfig controls the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig locates the database.
type StorageConfig struct {
	Path string `toml:"path"` // empty means <home>/guildhall.db
}

// WarConfig tunes war mechanics. Durations are strings like "168h".
type WarConfig struct {
	Duration        string `toml:"duration"`
	DeclarationCost int64  `toml:"declaration_cost"`
}

// PartyConfig tunes party mechanics.
type PartyConfig struct {
	TTL string `toml:"ttl"` // empty or "0" means parties never expire
}

// CurrencyConfig lists the denominations, largest first.
type CurrencyConfig struct {
	Denominations []DenominationConfig `toml:"denominations"`
}

// DenominationConfig is one named currency unit.
type DenominationConfig struct {
	Name  string `toml:"name"`
	Value int64  `toml:"value"`
}

// SweepConfig controls the background expiry sweep.
type SweepConfig struct {
	Interval string `toml:"interval"` // empty or "0" disables the sweep loop
}

// DefaultConfig returns the standard settings.
func DefaultConfig() Config {
	return Config{
		API:     APIConfig{Host: "127.0.0.1", Port: 7410},
		Storage: StorageConfig{Path: ""},
		War:     WarConfig{Duration: "168h", DeclarationCost: 0},
		Party:   PartyConfig{TTL: ""},
		Currency: CurrencyConfig{
			Denominations: []DenominationConfig{
				{Name: "block", Value: 81},
				{Name: "ingot", Value: 9},
				{Name: "nugget", Value: 1},
			},
		},
		Sweep: SweepConfig{Interval: "1m"},
	}
}

// Home returns the configuration directory, honoring GUILDHALL_HOME.
func Home() (string, error) {
	if dir := os.Getenv("GUILDHALL_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".guildhall"), nil
}

// Load reads config.toml from the guildhall home. A missing file yields the
// defaults; a malformed file is an error.
func Load() (Config, error) {
	home, err := Home()
	if err != nil {
		return Config{}, err
	}
	return LoadFile(filepath.Join(home, "config.toml"))
}

// LoadFile reads a specific TOML config file, filling defaults first.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if _, err := c.WarDuration(); err != nil {
		return err
	}
	if _, err := c.PartyTTL(); err != nil {
		return err
	}
	if _, err := c.SweepInterval(); err != nil {
		return err
	}
	if c.War.DeclarationCost < 0 {
		return fmt.Errorf("war.declaration_cost %d is negative", c.War.DeclarationCost)
	}
	if _, err := c.Converter(); err != nil {
		return err
	}
	return nil
}

// DatabasePath returns the configured DB path, or the default inside the
// guildhall home.
func (c Config) DatabasePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	home, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "guildhall.db"), nil
}

// WarDuration parses the configured war duration.
func (c Config) WarDuration() (time.Duration, error) {
	return parseDuration("war.duration", c.War.Duration, 168*time.Hour)
}

// PartyTTL parses the configured party lifetime; zero means no expiry.
func (c Config) PartyTTL() (time.Duration, error) {
	return parseDuration("party.ttl", c.Party.TTL, 0)
}

// SweepInterval parses the sweep loop interval; zero disables the loop.
func (c Config) SweepInterval() (time.Duration, error) {
	return parseDuration("sweep.interval", c.Sweep.Interval, 0)
}

// Converter builds the currency converter from the configured
// denominations.
func (c Config) Converter() (*currency.Converter, error) {
	if len(c.Currency.Denominations) == 0 {
		return currency.New(currency.DefaultDenominations())
	}
	denoms := make([]currency.Denomination, len(c.Currency.Denominations))
	for i, d := range c.Currency.Denominations {
		denoms[i] = currency.Denomination{Name: d.Name, Value: d.Value}
	}
	conv, err := currency.New(denoms)
	if err != nil {
		return nil, fmt.Errorf("currency.denominations: %w", err)
	}
	return conv, nil
}

func parseDuration(key, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	if value == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", key, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s %q is negative", key, value)
	}
	return d, nil
}
