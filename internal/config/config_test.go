package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
network: core-mainnet
rpc_http: https://rpc.example.org
base_asset: "0x40375C92d9FAf44d2f9db9Bd9ba41a3317a2404f"
curve:
  manager: "0x0000000000000000000000000000000000000c01"
  platform_fee_bps: 100
dex:
  venues:
    - name: alpha
      router: "0x0000000000000000000000000000000000000a01"
      factory: "0x0000000000000000000000000000000000000a02"
  intermediates:
    - "0x0000000000000000000000000000000000000a03"
  multi_hop: true
trade:
  max_slippage_pct: 25
retry:
  max_retries: 3
  delay_ms: 250
  exponential: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "core-mainnet", cfg.Network)
	assert.Equal(t, 25.0, cfg.Trade.MaxSlippagePct)
	assert.Len(t, cfg.DEX.Venues, 1)
	assert.True(t, cfg.DEX.MultiHop)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
rpc_http: https://rpc.example.org
base_asset: "0x40375C92d9FAf44d2f9db9Bd9ba41a3317a2404f"
curve:
  manager: "0x0000000000000000000000000000000000000c01"
`))
	require.NoError(t, err)

	assert.Equal(t, int64(300), cfg.Trade.DefaultDeadlineSec)
	assert.Equal(t, uint64(400_000), cfg.Trade.GasLimitSwap)
	assert.Equal(t, uint64(350_000), cfg.Curve.GasLimit)
	assert.Equal(t, 10*time.Second, cfg.CacheTTL())
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay())
	assert.Equal(t, 5*time.Minute, cfg.DefaultDeadline())
}

func TestLoad_MissingRPC(t *testing.T) {
	_, err := Load(writeConfig(t, `
base_asset: "0x40375C92d9FAf44d2f9db9Bd9ba41a3317a2404f"
curve:
  manager: "0x0000000000000000000000000000000000000c01"
`))
	assert.ErrorContains(t, err, "rpc_http")
}

func TestLoad_NoVenues(t *testing.T) {
	_, err := Load(writeConfig(t, `
rpc_http: https://rpc.example.org
base_asset: "0x40375C92d9FAf44d2f9db9Bd9ba41a3317a2404f"
`))
	assert.ErrorContains(t, err, "no trading venue")
}

func TestLoad_BadAddresses(t *testing.T) {
	_, err := Load(writeConfig(t, `
rpc_http: https://rpc.example.org
base_asset: not-an-address
curve:
  manager: "0x0000000000000000000000000000000000000c01"
`))
	assert.ErrorContains(t, err, "base_asset")

	_, err = Load(writeConfig(t, `
rpc_http: https://rpc.example.org
base_asset: "0x40375C92d9FAf44d2f9db9Bd9ba41a3317a2404f"
dex:
  venues:
    - name: alpha
      router: nope
      factory: "0x0000000000000000000000000000000000000a02"
`))
	assert.ErrorContains(t, err, "router")
}

func TestLoad_VenueNeedsName(t *testing.T) {
	_, err := Load(writeConfig(t, `
rpc_http: https://rpc.example.org
base_asset: "0x40375C92d9FAf44d2f9db9Bd9ba41a3317a2404f"
dex:
  venues:
    - router: "0x0000000000000000000000000000000000000a01"
      factory: "0x0000000000000000000000000000000000000a02"
`))
	assert.ErrorContains(t, err, "name is required")
}

func TestLoad_NegativeRetries(t *testing.T) {
	_, err := Load(writeConfig(t, `
rpc_http: https://rpc.example.org
base_asset: "0x40375C92d9FAf44d2f9db9Bd9ba41a3317a2404f"
curve:
  manager: "0x0000000000000000000000000000000000000c01"
retry:
  max_retries: -1
`))
	assert.ErrorContains(t, err, "max_retries")
}

func TestPriorityFeeWei(t *testing.T) {
	var c Config
	c.MEV.PriorityFeeGwei = 2.5
	assert.Equal(t, int64(2_500_000_000), c.PriorityFeeWei())
}
