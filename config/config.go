package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config describes the engine at construction time: the custody module
// address, the debt token, and the collateral set. The collateral table is
// append-only and fixed once loaded; there is no runtime mutation API.
type Config struct {
	Engine     EngineConfig       `toml:"engine"`
	Debt       DebtConfig         `toml:"debt"`
	Collateral []CollateralConfig `toml:"collateral"`
}

// EngineConfig carries custody identity and oracle safety settings.
type EngineConfig struct {
	ModuleAddress      string `toml:"ModuleAddress"`
	GracePeriodSeconds int64  `toml:"GracePeriodSeconds"`
	SequencerFeed      bool   `toml:"SequencerFeed"`
}

// DebtConfig names the synthetic dollar token.
type DebtConfig struct {
	Address  string `toml:"Address"`
	Symbol   string `toml:"Symbol"`
	Decimals uint8  `toml:"Decimals"`
}

// CollateralConfig is one approved collateral asset.
type CollateralConfig struct {
	Symbol           string `toml:"Symbol"`
	Address          string `toml:"Address"`
	Decimals         uint8  `toml:"Decimals"`
	FeedDecimals     uint8  `toml:"FeedDecimals"`
	HeartbeatSeconds int64  `toml:"HeartbeatSeconds"`
	// BootstrapPrice seeds the local manual feed with an initial USD price
	// (a decimal string). Deployments against live feeds leave it empty.
	BootstrapPrice string `toml:"BootstrapPrice,omitempty"`
}

// Load reads and validates a TOML configuration file.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalise() {
	if c.Engine.GracePeriodSeconds <= 0 {
		c.Engine.GracePeriodSeconds = 3600
	}
	if strings.TrimSpace(c.Debt.Symbol) == "" {
		c.Debt.Symbol = "SUSD"
	}
	if c.Debt.Decimals == 0 {
		c.Debt.Decimals = 18
	}
	for i := range c.Collateral {
		c.Collateral[i].Symbol = strings.ToUpper(strings.TrimSpace(c.Collateral[i].Symbol))
		if c.Collateral[i].FeedDecimals == 0 {
			c.Collateral[i].FeedDecimals = 8
		}
		if c.Collateral[i].HeartbeatSeconds <= 0 {
			c.Collateral[i].HeartbeatSeconds = 3600
		}
	}
}

// Validate rejects incomplete or duplicate entries.
func (c *Config) Validate() error {
	if _, err := parseAddress(c.Engine.ModuleAddress); err != nil {
		return fmt.Errorf("engine module address: %w", err)
	}
	if _, err := parseAddress(c.Debt.Address); err != nil {
		return fmt.Errorf("debt token address: %w", err)
	}
	if len(c.Collateral) == 0 {
		return fmt.Errorf("at least one collateral asset required")
	}
	seen := make(map[common.Address]struct{}, len(c.Collateral))
	for _, entry := range c.Collateral {
		addr, err := entry.TokenAddress()
		if err != nil {
			return fmt.Errorf("collateral %s: %w", entry.Symbol, err)
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("collateral %s: duplicate address %s", entry.Symbol, addr.Hex())
		}
		seen[addr] = struct{}{}
		if entry.Symbol == "" {
			return fmt.Errorf("collateral %s: symbol required", addr.Hex())
		}
		if entry.Decimals > 18 {
			return fmt.Errorf("collateral %s: unsupported decimals %d", entry.Symbol, entry.Decimals)
		}
	}
	return nil
}

// GracePeriod returns the sequencer grace window as a duration.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Engine.GracePeriodSeconds) * time.Second
}

// ModuleAddress parses the engine custody address.
func (c *Config) ModuleAddress() (common.Address, error) {
	return parseAddress(c.Engine.ModuleAddress)
}

// DebtAddress parses the debt token address.
func (c *Config) DebtAddress() (common.Address, error) {
	return parseAddress(c.Debt.Address)
}

// Heartbeat returns the entry's staleness tolerance as a duration.
func (cc CollateralConfig) Heartbeat() time.Duration {
	return time.Duration(cc.HeartbeatSeconds) * time.Second
}

// TokenAddress parses the entry's token address.
func (cc CollateralConfig) TokenAddress() (common.Address, error) {
	return parseAddress(cc.Address)
}

func parseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("address required")
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	addr := common.HexToAddress(trimmed)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("zero address not allowed")
	}
	return addr, nil
}
