package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := fromViper(newTestViper())
	require.NoError(t, err)

	require.Equal(t, int64(8453), cfg.ChainID)
	require.Equal(t, "https://api.0x.org/swap/permit2", cfg.ZeroExBaseURL)
	require.Equal(t, "v2", cfg.ZeroExVersion)
	require.Equal(t, uint32(3000), cfg.PoolFee)
	require.Equal(t, int32(60), cfg.PoolTickSpacing)
	require.Equal(t, uint64(900000), cfg.RouterGasLimit)
	require.Equal(t, 60*time.Second, cfg.Deadline)
	require.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	require.Equal(t, ModeAggregator, cfg.DefaultMode)
	require.Empty(t, cfg.PrivateKey)
	require.Empty(t, cfg.ZeroExAPIKey)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SWAP_RELAY_ZEROEX_API_KEY", "key-123")
	t.Setenv("SWAP_RELAY_DEFAULT_MODE", "ROUTER")
	t.Setenv("SWAP_RELAY_EXPLORER_TX_URL", "https://example.org/tx/")
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "key-123", cfg.ZeroExAPIKey)
	require.Equal(t, ModeRouter, cfg.DefaultMode)
	require.Equal(t, "https://example.org/tx/0xabc", cfg.ExplorerURL("0xabc"))
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
	}{
		{"zero chain id", "chain_id", 0},
		{"bad router", "router_address", "0x1234"},
		{"bad sell token", "sell_token", "weth"},
		{"unknown mode", "default_mode", "bridge"},
		{"zero gas limit", "router_gas_limit", 0},
		{"zero timeout", "http_timeout", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestViper()
			v.Set(tt.key, tt.val)
			_, err := fromViper(v)
			require.Error(t, err)
		})
	}
}
