package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Genesis declares the balances and assets seeded into a fresh data
// directory. It is ignored once the database already holds state.
type Genesis struct {
	Accounts []GenesisAccount `yaml:"accounts"`
	Assets   []GenesisAsset   `yaml:"assets"`
}

type GenesisAccount struct {
	Address string `yaml:"address"`
	Balance string `yaml:"balance"`
}

type GenesisAsset struct {
	ID    uint64 `yaml:"id"`
	Owner string `yaml:"owner"`
}

// LoadGenesis reads a genesis allocation file. A missing path yields an
// empty genesis rather than an error so nodes can start cold.
func LoadGenesis(path string) (*Genesis, error) {
	if strings.TrimSpace(path) == "" {
		return &Genesis{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Genesis{}, nil
		}
		return nil, err
	}
	gen := &Genesis{}
	if err := yaml.Unmarshal(raw, gen); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	if err := gen.Validate(); err != nil {
		return nil, err
	}
	return gen, nil
}

// Validate rejects malformed addresses and balances before any of the
// allocation is applied.
func (g *Genesis) Validate() error {
	for i, acct := range g.Accounts {
		if _, err := ParseAddress(acct.Address); err != nil {
			return fmt.Errorf("genesis: account %d: %w", i, err)
		}
		if _, err := parseBalance(acct.Balance); err != nil {
			return fmt.Errorf("genesis: account %d: %w", i, err)
		}
	}
	for i, asset := range g.Assets {
		if _, err := ParseAddress(asset.Owner); err != nil {
			return fmt.Errorf("genesis: asset %d: %w", i, err)
		}
	}
	return nil
}

// Allocation returns the parsed balance for the account entry.
func (a GenesisAccount) Allocation() ([20]byte, *big.Int, error) {
	addr, err := ParseAddress(a.Address)
	if err != nil {
		return [20]byte{}, nil, err
	}
	balance, err := parseBalance(a.Balance)
	if err != nil {
		return [20]byte{}, nil, err
	}
	return addr, balance, nil
}

// OwnerAddress returns the parsed owner of the asset entry.
func (a GenesisAsset) OwnerAddress() ([20]byte, error) {
	return ParseAddress(a.Owner)
}

// ParseAddress decodes a 0x-prefixed or bare hex account address.
func ParseAddress(value string) ([20]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != 20 {
		return [20]byte{}, fmt.Errorf("invalid address %q", value)
	}
	var addr [20]byte
	copy(addr[:], raw)
	return addr, nil
}

func parseBalance(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	balance, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || balance.Sign() < 0 {
		return nil, fmt.Errorf("invalid balance %q", value)
	}
	return balance, nil
}
