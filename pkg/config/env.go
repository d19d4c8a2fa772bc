package config

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/speedrun-commerce/pkg/logger"
)

const (
	mainnet = "mainnet"
	testnet = "testnet"

	// DefaultNetwork is the default blockchain network to connect to
	DefaultNetwork = testnet

	// DefaultHTTPPort defines the default port for the operator service
	DefaultHTTPPort = "8080"

	// DefaultIntentTTL is how long a freshly signed intent stays valid
	DefaultIntentTTL = 30 * time.Minute

	// DefaultReceiptPollInterval defines how often transaction receipts are polled
	DefaultReceiptPollInterval = 2 * time.Second

	// DefaultPendingTxTimeout is how long a submitted transaction may stay unmined before its nonce is released
	DefaultPendingTxTimeout = 5 * time.Minute

	// DefaultGasMultiplier adds a 10% buffer to the suggested gas price
	DefaultGasMultiplier = 1.1

	// DefaultLogLevel defines the minimum level that is printed
	DefaultLogLevel = "info"

	// DefaultLogColoring defines whether log prefixes are colored
	DefaultLogColoring = true

	// Network specific values, overridable through CHAIN_ID and RPC_URL

	BaseMainnetChainID    = 8453
	DefaultBaseRPCURL     = "https://mainnet.base.org"
	BaseSepoliaChainID    = 84532
	DefaultBaseSepoliaRPC = "https://sepolia.base.org"
)

// GetEnvNetwork returns the configured network from environment variables or defaults to testnet
func GetEnvNetwork() (string, error) {
	network := os.Getenv("NETWORK")
	if network == "" {
		network = DefaultNetwork
	}

	if network != mainnet && network != testnet {
		return "", fmt.Errorf("invalid NETWORK value: %s, must be 'mainnet' or 'testnet'", network)
	}

	return network, nil
}

// GetEnvChainID returns the chain ID, defaulting to the Base chain of the network
func GetEnvChainID(network string) (int64, error) {
	chainID := os.Getenv("CHAIN_ID")
	if chainID == "" {
		if network == mainnet {
			return BaseMainnetChainID, nil
		}
		return BaseSepoliaChainID, nil
	}

	id, err := strconv.ParseInt(chainID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid CHAIN_ID value: %s, must be an integer", chainID)
	}
	if id <= 0 {
		return 0, fmt.Errorf("CHAIN_ID must be greater than 0")
	}
	return id, nil
}

// GetEnvRPCURL returns the JSON-RPC endpoint, defaulting to the public Base endpoint of the network
func GetEnvRPCURL(network string, chainID int64) (string, error) {
	rpcURL := os.Getenv("RPC_URL")
	if rpcURL == "" {
		switch {
		case network == mainnet && chainID == BaseMainnetChainID:
			return DefaultBaseRPCURL, nil
		case network == testnet && chainID == BaseSepoliaChainID:
			return DefaultBaseSepoliaRPC, nil
		}
		return "", fmt.Errorf("RPC_URL is required for chain %d", chainID)
	}

	if _, err := url.ParseRequestURI(rpcURL); err != nil {
		return "", fmt.Errorf("invalid RPC_URL value: %s, must be a valid URL", rpcURL)
	}
	return rpcURL, nil
}

// GetEnvTransfersAddress returns the settlement contract address
func GetEnvTransfersAddress() (common.Address, error) {
	address := os.Getenv("TRANSFERS_ADDRESS")
	if address == "" {
		return common.Address{}, fmt.Errorf("TRANSFERS_ADDRESS environment variable is required")
	}

	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("invalid TRANSFERS_ADDRESS value: %s, must be a valid Ethereum address", address)
	}
	return common.HexToAddress(address), nil
}

// GetEnvHTTPPort returns the operator service port from environment variables
func GetEnvHTTPPort() (string, error) {
	port := os.Getenv("HTTP_PORT")
	if port == "" {
		return DefaultHTTPPort, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid HTTP_PORT value: %s, must be a valid integer", port)
	}
	return port, nil
}

// GetEnvIntentTTL returns how long signed intents stay valid
func GetEnvIntentTTL() (time.Duration, error) {
	return getEnvDuration("INTENT_TTL", DefaultIntentTTL)
}

// GetEnvReceiptPollInterval returns the receipt polling interval
func GetEnvReceiptPollInterval() (time.Duration, error) {
	return getEnvDuration("RECEIPT_POLL_INTERVAL", DefaultReceiptPollInterval)
}

// GetEnvPendingTxTimeout returns how long a submitted transaction may stay unmined
func GetEnvPendingTxTimeout() (time.Duration, error) {
	return getEnvDuration("PENDING_TX_TIMEOUT", DefaultPendingTxTimeout)
}

// GetEnvGasMultiplier returns the multiplier applied to the suggested gas price
func GetEnvGasMultiplier() (float64, error) {
	multiplier := os.Getenv("GAS_MULTIPLIER")
	if multiplier == "" {
		return DefaultGasMultiplier, nil
	}

	parsed, err := strconv.ParseFloat(multiplier, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid GAS_MULTIPLIER value: %s, must be a number", multiplier)
	}
	if parsed < 1 {
		return 0, fmt.Errorf("GAS_MULTIPLIER must be greater than or equal to 1")
	}
	return parsed, nil
}

// GetEnvMaxApproval reports whether approvals should cover the maximum uint256 amount
func GetEnvMaxApproval() (bool, error) {
	return getEnvBool("UNLIMITED_APPROVAL", false)
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = DefaultLogLevel
	}

	parsed, err := logger.ParseLevel(level)
	if err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be one of debug, info, notice, error", level)
	}
	return parsed, nil
}

// GetEnvLogColoring returns whether log prefixes are colored
func GetEnvLogColoring() (bool, error) {
	return getEnvBool("LOG_COLORING", DefaultLogColoring)
}

// GetEnvMaxFee returns an optional upper bound on the fee an operator will sign, as a base-10 integer
func GetEnvMaxFee() (*big.Int, error) {
	maxFee := os.Getenv("MAX_FEE_AMOUNT")
	if maxFee == "" {
		return nil, nil
	}

	maxFeeBig, ok := new(big.Int).SetString(maxFee, 10)
	if !ok {
		return nil, fmt.Errorf("invalid MAX_FEE_AMOUNT value: %s, must be a valid integer string", maxFee)
	}
	if maxFeeBig.Sign() < 0 {
		return nil, fmt.Errorf("MAX_FEE_AMOUNT must be greater than or equal to 0")
	}
	return maxFeeBig, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be a valid duration string", key, value)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return parsed, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	if value == "true" {
		return true, nil
	} else if value == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid %s value: %s, must be 'true' or 'false'", key, value)
}
