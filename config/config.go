package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "SWAP_RELAY"
	ConfigFileName = ".swap-relay"

	ModeAggregator = "aggregator"
	ModeRouter     = "router"
)

var (
	// ErrMissingPrivateKey is returned when a swap is requested without a signing key configured.
	ErrMissingPrivateKey = errors.New("private key not configured")

	// ErrMissingAPIKey is returned when the aggregator client is built without a 0x API key.
	ErrMissingAPIKey = errors.New("0x API key not configured")

	// ErrInvalidPrivateKey is returned when the configured signing key cannot be parsed.
	ErrInvalidPrivateKey = errors.New("invalid private key")
)

// Config holds the application configuration
type Config struct {
	RPCURL     string
	ChainID    int64
	PrivateKey string

	ZeroExAPIKey  string
	ZeroExBaseURL string
	ZeroExVersion string
	SellToken     string

	RouterAddress     string
	NativeCurrency    string
	PoolFee           uint32
	PoolTickSpacing   int32
	PoolHooks         string
	RouterGasLimit    uint64
	PriorityFeePerGas int64
	Deadline          time.Duration

	ExplorerTxURL string
	HTTPTimeout   time.Duration
	DefaultMode   string

	LogLevel string
	LogJSON  bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc_url", "https://mainnet.base.org")
	v.SetDefault("chain_id", 8453)
	v.SetDefault("zeroex_base_url", "https://api.0x.org/swap/permit2")
	v.SetDefault("zeroex_version", "v2")
	v.SetDefault("sell_token", "0x4200000000000000000000000000000000000006")
	v.SetDefault("router_address", "0x6fF5693b99212Da76ad316178A184AB56D299b43")
	v.SetDefault("native_currency", common.Address{}.Hex())
	v.SetDefault("pool_fee", 3000)
	v.SetDefault("pool_tick_spacing", 60)
	v.SetDefault("pool_hooks", common.Address{}.Hex())
	v.SetDefault("router_gas_limit", 900000)
	v.SetDefault("priority_fee_per_gas", 1000000)
	v.SetDefault("deadline", "60s")
	v.SetDefault("explorer_tx_url", "https://basescan.org/tx")
	v.SetDefault("http_timeout", "15s")
	v.SetDefault("default_mode", ModeAggregator)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// Load reads configuration from environment variables and an optional config file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	// The config file is optional; only a malformed one is an error.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		RPCURL:            v.GetString("rpc_url"),
		ChainID:           v.GetInt64("chain_id"),
		PrivateKey:        v.GetString("private_key"),
		ZeroExAPIKey:      v.GetString("zeroex_api_key"),
		ZeroExBaseURL:     strings.TrimRight(v.GetString("zeroex_base_url"), "/"),
		ZeroExVersion:     v.GetString("zeroex_version"),
		SellToken:         v.GetString("sell_token"),
		RouterAddress:     v.GetString("router_address"),
		NativeCurrency:    v.GetString("native_currency"),
		PoolFee:           v.GetUint32("pool_fee"),
		PoolTickSpacing:   v.GetInt32("pool_tick_spacing"),
		PoolHooks:         v.GetString("pool_hooks"),
		RouterGasLimit:    v.GetUint64("router_gas_limit"),
		PriorityFeePerGas: v.GetInt64("priority_fee_per_gas"),
		Deadline:          v.GetDuration("deadline"),
		ExplorerTxURL:     strings.TrimRight(v.GetString("explorer_tx_url"), "/"),
		HTTPTimeout:       v.GetDuration("http_timeout"),
		DefaultMode:       strings.ToLower(v.GetString("default_mode")),
		LogLevel:          v.GetString("log_level"),
		LogJSON:           v.GetBool("log_json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the static parts of the configuration. Credentials are
// checked where they are used so that a missing key only disables the
// operations that need it.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc_url is required")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("chain_id must be positive, got %d", c.ChainID)
	}
	for name, addr := range map[string]string{
		"sell_token":      c.SellToken,
		"router_address":  c.RouterAddress,
		"native_currency": c.NativeCurrency,
		"pool_hooks":      c.PoolHooks,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%s is not a valid address: %q", name, addr)
		}
	}
	if c.RouterGasLimit == 0 {
		return fmt.Errorf("router_gas_limit must be positive")
	}
	if c.PriorityFeePerGas < 0 {
		return fmt.Errorf("priority_fee_per_gas cannot be negative")
	}
	if c.Deadline <= 0 {
		return fmt.Errorf("deadline must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive")
	}
	if c.DefaultMode != ModeAggregator && c.DefaultMode != ModeRouter {
		return fmt.Errorf("default_mode must be %q or %q, got %q", ModeAggregator, ModeRouter, c.DefaultMode)
	}
	return nil
}

// ExplorerURL returns the block explorer link for a transaction hash
func (c *Config) ExplorerURL(txHash string) string {
	return c.ExplorerTxURL + "/" + txHash
}
