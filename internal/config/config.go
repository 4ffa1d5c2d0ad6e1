package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// VenueCfg is one configured V2-style DEX: router + factory + pair init hash.
type VenueCfg struct {
	Name     string `yaml:"name"`
	Router   string `yaml:"router"`
	Factory  string `yaml:"factory"`
	PairHash string `yaml:"pair_hash"`
}

type Config struct {
	Network string `yaml:"network"`
	RPCHTTP string `yaml:"rpc_http"`
	RPCWS   string `yaml:"rpc_ws"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`

	Redis struct {
		Addr     string `yaml:"addr"`
		DB       int    `yaml:"db"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Stream   string `yaml:"stream"`
	} `yaml:"redis"`

	BaseAsset string `yaml:"base_asset"` // wrapped core token
	Multicall string `yaml:"multicall"`  // optional aggregate contract

	Curve struct {
		Manager        string `yaml:"manager"` // bonding-curve sale contract
		PlatformFeeBps int64  `yaml:"platform_fee_bps"`
		GasLimit       uint64 `yaml:"gas_limit"`
	} `yaml:"curve"`

	DEX struct {
		Venues        []VenueCfg `yaml:"venues"`
		Intermediates []string   `yaml:"intermediates"`
		MultiHop      bool       `yaml:"multi_hop"`
	} `yaml:"dex"`

	Trade struct {
		MaxSlippagePct     float64 `yaml:"max_slippage_pct"`
		DefaultDeadlineSec int64   `yaml:"default_deadline_sec"`
		MaxGasPriceGwei    int64   `yaml:"max_gas_price_gwei"`
		GasLimitSwap       uint64  `yaml:"gas_limit_swap"`
		CacheTTLMs         int     `yaml:"cache_ttl_ms"`
	} `yaml:"trade"`

	MEV struct {
		Enabled            bool    `yaml:"enabled"`
		PriorityFeeGwei    float64 `yaml:"priority_fee_gwei"`
		FrontrunProtection bool    `yaml:"frontrun_protection"`
		MempoolScan        bool    `yaml:"mempool_scan"`
		PrivateRelay       bool    `yaml:"private_relay"` // reserved, not wired
		MaxJitterMs        int     `yaml:"max_jitter_ms"`
	} `yaml:"mev"`

	Retry struct {
		MaxRetries  int  `yaml:"max_retries"`
		DelayMs     int  `yaml:"delay_ms"`
		Exponential bool `yaml:"exponential"`
	} `yaml:"retry"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.Trade.DefaultDeadlineSec == 0 {
		c.Trade.DefaultDeadlineSec = 300
	}
	if c.Trade.GasLimitSwap == 0 {
		c.Trade.GasLimitSwap = 400_000
	}
	if c.Trade.MaxSlippagePct == 0 {
		c.Trade.MaxSlippagePct = 49
	}
	if c.Trade.CacheTTLMs == 0 {
		c.Trade.CacheTTLMs = 10_000
	}
	if c.Curve.GasLimit == 0 {
		c.Curve.GasLimit = 350_000
	}
	if c.Retry.DelayMs == 0 {
		c.Retry.DelayMs = 500
	}
	if c.MEV.MaxJitterMs == 0 {
		c.MEV.MaxJitterMs = 1000
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate fails fast at startup: a router with no venue at all, or a venue
// missing its contract addresses, is a deploy mistake, not a runtime case.
func (c *Config) Validate() error {
	if c.RPCHTTP == "" {
		return fmt.Errorf("config: rpc_http is required")
	}
	if c.Curve.Manager == "" && len(c.DEX.Venues) == 0 {
		return fmt.Errorf("config: no trading venue configured (need curve.manager or dex.venues)")
	}
	if !common.IsHexAddress(c.BaseAsset) {
		return fmt.Errorf("config: base_asset must be a hex address")
	}
	if c.Curve.Manager != "" && !common.IsHexAddress(c.Curve.Manager) {
		return fmt.Errorf("config: curve.manager is not a hex address")
	}
	if c.Multicall != "" && !common.IsHexAddress(c.Multicall) {
		return fmt.Errorf("config: multicall is not a hex address")
	}
	for i, v := range c.DEX.Venues {
		if v.Name == "" {
			return fmt.Errorf("config: dex.venues[%d]: name is required", i)
		}
		if !common.IsHexAddress(v.Router) {
			return fmt.Errorf("config: dex venue %q: router is not a hex address", v.Name)
		}
		if !common.IsHexAddress(v.Factory) {
			return fmt.Errorf("config: dex venue %q: factory is not a hex address", v.Name)
		}
	}
	for i, a := range c.DEX.Intermediates {
		if !common.IsHexAddress(a) {
			return fmt.Errorf("config: dex.intermediates[%d] is not a hex address", i)
		}
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("config: retry.max_retries must be >= 0")
	}
	return nil
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Trade.CacheTTLMs) * time.Millisecond
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Retry.DelayMs) * time.Millisecond
}

func (c *Config) DefaultDeadline() time.Duration {
	return time.Duration(c.Trade.DefaultDeadlineSec) * time.Second
}

func (c *Config) PriorityFeeWei() int64 {
	return int64(c.MEV.PriorityFeeGwei * 1e9)
}
