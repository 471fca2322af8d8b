package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8645", cfg.ListenAddress)
	require.Equal(t, uint32(500), cfg.FeeInBps)
	require.Equal(t, int64(86_400), cfg.MinExpirationDuration)
	require.Equal(t, int64(864_000), cfg.MaxExpirationDuration)
	require.FileExists(t, path)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.FeeInBps, reloaded.FeeInBps)
}

func TestLoadRejectsBadFeeConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "FeeInBps = 10001\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	_, err := Load(path)
	require.Error(t, err)

	body = "MinExpirationDuration = 500\nMaxExpirationDuration = 100\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	_, err = Load(path)
	require.Error(t, err)
}

func TestFeeReceiverAddress(t *testing.T) {
	cfg := &Config{FeeReceiver: "0x00000000000000000000000000000000000000fe"}
	addr, err := cfg.FeeReceiverAddress()
	require.NoError(t, err)
	require.Equal(t, byte(0xfe), addr[19])

	cfg.FeeReceiver = "0x0000000000000000000000000000000000000000"
	_, err = cfg.FeeReceiverAddress()
	require.Error(t, err)

	cfg.FeeReceiver = "not-hex"
	_, err = cfg.FeeReceiverAddress()
	require.Error(t, err)

	cfg.FeeReceiver = ""
	_, err = cfg.FeeReceiverAddress()
	require.Error(t, err)
}

func TestPauseSet(t *testing.T) {
	cfg := &Config{PausedModules: []string{"Auction", " sale "}}
	pauses := cfg.Pauses()
	require.True(t, pauses.IsPaused("auction"))
	require.True(t, pauses.IsPaused("sale"))
	require.False(t, pauses.IsPaused("marketplace"))
}

func TestLoadGenesis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	body := `accounts:
  - address: "0x0000000000000000000000000000000000000001"
    balance: "1000000"
assets:
  - id: 7
    owner: "0x0000000000000000000000000000000000000001"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	gen, err := LoadGenesis(path)
	require.NoError(t, err)
	require.Len(t, gen.Accounts, 1)
	require.Len(t, gen.Assets, 1)

	addr, balance, err := gen.Accounts[0].Allocation()
	require.NoError(t, err)
	require.Equal(t, byte(0x01), addr[19])
	require.Equal(t, "1000000", balance.String())

	owner, err := gen.Assets[0].OwnerAddress()
	require.NoError(t, err)
	require.Equal(t, addr, owner)
}

func TestLoadGenesisMissingFile(t *testing.T) {
	gen, err := LoadGenesis(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Empty(t, gen.Accounts)
}

func TestLoadGenesisRejectsBadEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	body := `accounts:
  - address: "0xzz"
    balance: "10"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	_, err := LoadGenesis(path)
	require.Error(t, err)

	body = `accounts:
  - address: "0x0000000000000000000000000000000000000001"
    balance: "-5"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	_, err = LoadGenesis(path)
	require.Error(t, err)
}
