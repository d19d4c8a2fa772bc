package config

import (
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/speedrun-hq/speedrun-commerce/pkg/logger"
)

// Config holds the configuration shared by the operator service and the payer commands
type Config struct {
	Network             string
	ChainID             int64
	RPCURL              string
	TransfersAddress    common.Address
	OperatorPrivateKey  string
	PayerPrivateKey     string
	HTTPPort            string
	MetricsAPIKey       string
	DatabaseURL         string
	OperatorURL         string
	IntentTTL           time.Duration
	ReceiptPollInterval time.Duration
	PendingTxTimeout    time.Duration
	GasMultiplier       float64
	UnlimitedApproval   bool
	MaxFeeAmount        *big.Int
	LoggerConfig        LoggerConfig
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// NewLogger builds the process logger from the configuration
func (c LoggerConfig) NewLogger() *logger.StdLogger {
	return logger.NewStdLogger(c.Coloring, c.Level)
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	network, err := GetEnvNetwork()
	if err != nil {
		return nil, err
	}

	chainID, err := GetEnvChainID(network)
	if err != nil {
		return nil, err
	}

	rpcURL, err := GetEnvRPCURL(network, chainID)
	if err != nil {
		return nil, err
	}

	transfersAddress, err := GetEnvTransfersAddress()
	if err != nil {
		return nil, err
	}

	httpPort, err := GetEnvHTTPPort()
	if err != nil {
		return nil, err
	}

	intentTTL, err := GetEnvIntentTTL()
	if err != nil {
		return nil, err
	}

	pollInterval, err := GetEnvReceiptPollInterval()
	if err != nil {
		return nil, err
	}

	pendingTimeout, err := GetEnvPendingTxTimeout()
	if err != nil {
		return nil, err
	}

	gasMultiplier, err := GetEnvGasMultiplier()
	if err != nil {
		return nil, err
	}

	unlimitedApproval, err := GetEnvMaxApproval()
	if err != nil {
		return nil, err
	}

	maxFee, err := GetEnvMaxFee()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Network:             network,
		ChainID:             chainID,
		RPCURL:              rpcURL,
		TransfersAddress:    transfersAddress,
		OperatorPrivateKey:  os.Getenv("OPERATOR_PRIVATE_KEY"),
		PayerPrivateKey:     os.Getenv("PAYER_PRIVATE_KEY"),
		HTTPPort:            httpPort,
		MetricsAPIKey:       os.Getenv("METRICS_API_KEY"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		OperatorURL:         os.Getenv("OPERATOR_URL"),
		IntentTTL:           intentTTL,
		ReceiptPollInterval: pollInterval,
		PendingTxTimeout:    pendingTimeout,
		GasMultiplier:       gasMultiplier,
		UnlimitedApproval:   unlimitedApproval,
		MaxFeeAmount:        maxFee,
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID is required")
	}
	if cfg.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if cfg.TransfersAddress == (common.Address{}) {
		return fmt.Errorf("TRANSFERS_ADDRESS must not be the zero address")
	}
	return nil
}

// RequireOperatorKey checks that the operator credential is configured
func (c *Config) RequireOperatorKey() error {
	if c.OperatorPrivateKey == "" {
		return fmt.Errorf("OPERATOR_PRIVATE_KEY environment variable is required")
	}
	return nil
}

// RequirePayerKey checks that the payer credential is configured
func (c *Config) RequirePayerKey() error {
	if c.PayerPrivateKey == "" {
		return fmt.Errorf("PAYER_PRIVATE_KEY environment variable is required")
	}
	return nil
}
