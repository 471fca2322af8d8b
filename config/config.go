package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"nftmarket/native/market"
)

type Config struct {
	ListenAddress         string   `toml:"ListenAddress"`
	DataDir               string   `toml:"DataDir"`
	GenesisFile           string   `toml:"GenesisFile"`
	LogFile               string   `toml:"LogFile"`
	FeeReceiver           string   `toml:"FeeReceiver"`
	FeeInBps              uint32   `toml:"FeeInBps"`
	MinExpirationDuration int64    `toml:"MinExpirationDuration"`
	MaxExpirationDuration int64    `toml:"MaxExpirationDuration"`
	AuthSecret            string   `toml:"AuthSecret"`
	AuthIssuer            string   `toml:"AuthIssuer"`
	RateLimitPerMinute    float64  `toml:"RateLimitPerMinute"`
	RateLimitBurst        int      `toml:"RateLimitBurst"`
	PausedModules         []string `toml:"PausedModules"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./marketdata"
	}
	if cfg.FeeInBps == 0 {
		cfg.FeeInBps = 500
	}
	if cfg.MinExpirationDuration == 0 {
		cfg.MinExpirationDuration = 86_400 // one day
	}
	if cfg.MaxExpirationDuration == 0 {
		cfg.MaxExpirationDuration = 864_000 // ten days
	}
	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = 600
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 20
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the engine-facing settings before any state is touched.
func (c *Config) Validate() error {
	if c.FeeInBps > market.MaxFeeDenominator {
		return fmt.Errorf("config: FeeInBps %d exceeds %d", c.FeeInBps, market.MaxFeeDenominator)
	}
	if c.MinExpirationDuration <= 0 {
		return fmt.Errorf("config: MinExpirationDuration must be positive")
	}
	if c.MaxExpirationDuration < c.MinExpirationDuration {
		return fmt.Errorf("config: MaxExpirationDuration below MinExpirationDuration")
	}
	if strings.TrimSpace(c.FeeReceiver) != "" {
		if _, err := c.FeeReceiverAddress(); err != nil {
			return err
		}
	}
	return nil
}

// FeeReceiverAddress decodes the configured fee receiver. An unset receiver
// is an error: the node refuses to settle fees into the zero address.
func (c *Config) FeeReceiverAddress() ([20]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(c.FeeReceiver), "0x")
	if trimmed == "" {
		return [20]byte{}, fmt.Errorf("config: FeeReceiver not configured")
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != 20 {
		return [20]byte{}, fmt.Errorf("config: invalid FeeReceiver %q", c.FeeReceiver)
	}
	var addr [20]byte
	copy(addr[:], raw)
	if addr == ([20]byte{}) {
		return [20]byte{}, fmt.Errorf("config: FeeReceiver must be non-zero")
	}
	return addr, nil
}

// PauseSet adapts the configured pause list to the guard interface consulted
// by the engines.
type PauseSet map[string]struct{}

// Pauses builds the pause set from the configuration.
func (c *Config) Pauses() PauseSet {
	set := make(PauseSet, len(c.PausedModules))
	for _, name := range c.PausedModules {
		trimmed := strings.ToLower(strings.TrimSpace(name))
		if trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}

// IsPaused implements the pause view.
func (p PauseSet) IsPaused(module string) bool {
	_, ok := p[strings.ToLower(module)]
	return ok
}
