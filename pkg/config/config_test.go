package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/speedrun-commerce/pkg/logger"
)

const testTransfers = "0x1111111111111111111111111111111111111111"

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("NETWORK", "")
	t.Setenv("CHAIN_ID", "")
	t.Setenv("RPC_URL", "")
	t.Setenv("TRANSFERS_ADDRESS", testTransfers)
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_COLORING", "")
	t.Setenv("INTENT_TTL", "")
	t.Setenv("GAS_MULTIPLIER", "")
	t.Setenv("MAX_FEE_AMOUNT", "")
	t.Setenv("PENDING_TX_TIMEOUT", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, testnet, cfg.Network)
	assert.EqualValues(t, BaseSepoliaChainID, cfg.ChainID)
	assert.Equal(t, DefaultBaseSepoliaRPC, cfg.RPCURL)
	assert.Equal(t, common.HexToAddress(testTransfers), cfg.TransfersAddress)
	assert.Equal(t, DefaultIntentTTL, cfg.IntentTTL)
	assert.Equal(t, DefaultGasMultiplier, cfg.GasMultiplier)
	assert.Equal(t, DefaultPendingTxTimeout, cfg.PendingTxTimeout)
	assert.Equal(t, logger.InfoLevel, cfg.LoggerConfig.Level)
	assert.True(t, cfg.LoggerConfig.Coloring)
	assert.Nil(t, cfg.MaxFeeAmount)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("NETWORK", "mainnet")
	t.Setenv("CHAIN_ID", "1337")
	t.Setenv("RPC_URL", "http://127.0.0.1:8545")
	t.Setenv("TRANSFERS_ADDRESS", testTransfers)
	t.Setenv("INTENT_TTL", "5m")
	t.Setenv("RECEIPT_POLL_INTERVAL", "250ms")
	t.Setenv("PENDING_TX_TIMEOUT", "90s")
	t.Setenv("GAS_MULTIPLIER", "1.5")
	t.Setenv("UNLIMITED_APPROVAL", "true")
	t.Setenv("MAX_FEE_AMOUNT", "10000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_COLORING", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.EqualValues(t, 1337, cfg.ChainID)
	assert.Equal(t, "http://127.0.0.1:8545", cfg.RPCURL)
	assert.Equal(t, 5*time.Minute, cfg.IntentTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.ReceiptPollInterval)
	assert.Equal(t, 90*time.Second, cfg.PendingTxTimeout)
	assert.Equal(t, 1.5, cfg.GasMultiplier)
	assert.True(t, cfg.UnlimitedApproval)
	assert.Equal(t, "10000", cfg.MaxFeeAmount.String())
	assert.Equal(t, logger.DebugLevel, cfg.LoggerConfig.Level)
	assert.False(t, cfg.LoggerConfig.Coloring)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing transfers address", map[string]string{"TRANSFERS_ADDRESS": ""}},
		{"bad transfers address", map[string]string{"TRANSFERS_ADDRESS": "0x1234"}},
		{"bad network", map[string]string{"NETWORK": "devnet"}},
		{"bad chain id", map[string]string{"CHAIN_ID": "abc"}},
		{"unknown chain without rpc", map[string]string{"CHAIN_ID": "1337", "RPC_URL": ""}},
		{"bad ttl", map[string]string{"INTENT_TTL": "ten minutes"}},
		{"low gas multiplier", map[string]string{"GAS_MULTIPLIER": "0.5"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"bad coloring", map[string]string{"LOG_COLORING": "yes"}},
		{"negative max fee", map[string]string{"MAX_FEE_AMOUNT": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NETWORK", "testnet")
			t.Setenv("CHAIN_ID", "")
			t.Setenv("RPC_URL", "")
			t.Setenv("TRANSFERS_ADDRESS", testTransfers)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestRequireKeys(t *testing.T) {
	cfg := &Config{}
	require.Error(t, cfg.RequireOperatorKey())
	require.Error(t, cfg.RequirePayerKey())

	cfg.OperatorPrivateKey = "aa"
	cfg.PayerPrivateKey = "bb"
	require.NoError(t, cfg.RequireOperatorKey())
	require.NoError(t, cfg.RequirePayerKey())
}

func TestChains(t *testing.T) {
	assert.Equal(t, "BASE_SEPOLIA", GetChainName(84532))
	assert.Equal(t, "", GetChainName(999))

	usdc, ok := GetUSDCAddress(8453)
	require.True(t, ok)
	assert.Equal(t, "USDC", GetTokenType(usdc.Hex()))
	assert.Equal(t, "NATIVE", GetTokenType("0x0000000000000000000000000000000000000000"))
	assert.Equal(t, "", GetTokenType(testTransfers))
}
