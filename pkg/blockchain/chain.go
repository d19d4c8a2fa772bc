package blockchain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/speedrun-hq/speedrun-commerce/pkg/logger"
	"github.com/speedrun-hq/speedrun-commerce/pkg/metrics"
)

const (
	// DefaultGasMultiplier adds a 10% buffer on top of the suggested gas price
	DefaultGasMultiplier = 1.1
	// DefaultPollInterval is how often receipts are polled
	DefaultPollInterval = 2 * time.Second

	gasPriceTimeout = 10 * time.Second
)

// ErrChainIDMismatch is returned by Dial when the endpoint serves another chain
var ErrChainIDMismatch = errors.New("chain id mismatch")

// Backend is everything the SDK needs from a JSON-RPC endpoint. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Chain wraps a backend bound to one chain
type Chain struct {
	ChainID       *big.Int
	RPCURL        string
	Backend       Backend
	GasMultiplier float64
	PollInterval  time.Duration

	logger logger.Logger
	close  func()
}

// NewChain wraps an already connected backend
func NewChain(backend Backend, chainID *big.Int, log logger.Logger) *Chain {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Chain{
		ChainID:       new(big.Int).Set(chainID),
		Backend:       backend,
		GasMultiplier: DefaultGasMultiplier,
		PollInterval:  DefaultPollInterval,
		logger:        log,
		close:         func() {},
	}
}

// Dial connects to rpcURL and checks that the endpoint serves chainID
func Dial(ctx context.Context, rpcURL string, chainID *big.Int, log logger.Logger) (*Chain, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", rpcURL)
	}

	remoteID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to get chain ID")
	}
	if remoteID.Cmp(chainID) != 0 {
		client.Close()
		return nil, errors.Wrapf(ErrChainIDMismatch, "rpc endpoint serves chain %s, expected %s", remoteID, chainID)
	}

	c := NewChain(client, chainID, log)
	c.RPCURL = rpcURL
	c.close = client.Close
	return c, nil
}

// Close releases the underlying RPC connection
func (c *Chain) Close() {
	c.close()
}

func (c *Chain) id() int {
	return int(c.ChainID.Int64())
}

// UpdateGasPrice applies the gas multiplier to the suggested gas price and stores it on opts
func (c *Chain) UpdateGasPrice(ctx context.Context, opts *bind.TransactOpts) (*big.Int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, gasPriceTimeout)
	defer cancel()

	gasPrice, err := c.Backend.SuggestGasPrice(timeoutCtx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get gas price")
	}

	multiplier := c.GasMultiplier
	if multiplier <= 0 {
		multiplier = DefaultGasMultiplier
	}
	multipliedGasPrice := new(big.Float).Mul(new(big.Float).SetInt(gasPrice), big.NewFloat(multiplier))
	finalGasPrice, _ := multipliedGasPrice.Int(nil)

	if opts != nil {
		opts.GasPrice = finalGasPrice
	}

	c.logger.DebugWithChain(c.id(), "Updated gas price: %s wei (multiplier: %.2f)", finalGasPrice, multiplier)
	return finalGasPrice, nil
}

// WaitForReceipt polls until the transaction is mined or ctx is done
func (c *Chain) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	start := time.Now()
	defer func() {
		metrics.ReceiptWaitSeconds.Observe(time.Since(start).Seconds())
	}()

	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := c.Backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			c.logger.DebugWithChain(c.id(), "Transaction %s mined in block %s with status %d",
				txHash.Hex(), receipt.BlockNumber, receipt.Status)
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, errors.Wrapf(err, "failed to get receipt for %s", txHash.Hex())
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "stopped waiting for %s", txHash.Hex())
		case <-ticker.C:
		}
	}
}

// GetLatestBlockNumber gets the latest block number from the chain
func (c *Chain) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.Backend.BlockNumber(ctx)
}
