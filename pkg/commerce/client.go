package commerce

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/speedrun-hq/speedrun-commerce/pkg/blockchain"
	"github.com/speedrun-hq/speedrun-commerce/pkg/contracts"
	"github.com/speedrun-hq/speedrun-commerce/pkg/logger"
	"github.com/speedrun-hq/speedrun-commerce/pkg/metrics"
)

// Config is shared by the operator and payer clients
type Config struct {
	// ChainID, TransfersAddress and Signer are required
	ChainID          *big.Int
	TransfersAddress common.Address
	Signer           Signer

	// RPCURL is dialed unless Backend is set
	RPCURL  string
	Backend blockchain.Backend

	Logger              logger.Logger
	Nonces              *blockchain.NonceManager
	GasMultiplier       float64
	ReceiptPollInterval time.Duration

	// Clock is used for deadline checks, time.Now when nil
	Clock func() time.Time
}

// client is the plumbing common to Operator and Payer
type client struct {
	chain     *blockchain.Chain
	chainID   *big.Int
	contract  common.Address
	transfers *contracts.Transfers
	signer    Signer
	nonces    *blockchain.NonceManager
	logger    logger.Logger
	now       func() time.Time
}

func (cfg Config) validate() error {
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return invalidConfig("chain id is required")
	}
	if cfg.RPCURL == "" && cfg.Backend == nil {
		return invalidConfig("rpc url or backend is required")
	}
	if cfg.TransfersAddress == (common.Address{}) {
		return invalidConfig("transfers contract address is required")
	}
	if cfg.Signer == nil {
		return invalidConfig("signer is required")
	}
	return nil
}

func newClient(ctx context.Context, cfg Config, component string) (*client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	log = log.Named(component)

	var chain *blockchain.Chain
	if cfg.Backend != nil {
		chain = blockchain.NewChain(cfg.Backend, cfg.ChainID, log)
	} else {
		var err error
		chain, err = blockchain.Dial(ctx, cfg.RPCURL, cfg.ChainID, log)
		if errors.Is(err, blockchain.ErrChainIDMismatch) {
			return nil, newError(ErrInvalidConfig, err, "rpc endpoint does not serve chain %s", cfg.ChainID)
		}
		if err != nil {
			return nil, newError(ErrFetch, err, "failed to connect to rpc endpoint")
		}
	}
	if cfg.GasMultiplier > 0 {
		chain.GasMultiplier = cfg.GasMultiplier
	}
	if cfg.ReceiptPollInterval > 0 {
		chain.PollInterval = cfg.ReceiptPollInterval
	}

	transfers, err := contracts.NewTransfers(cfg.TransfersAddress, chain.Backend)
	if err != nil {
		chain.Close()
		return nil, newError(ErrInvalidConfig, err, "failed to bind transfers contract")
	}

	nonces := cfg.Nonces
	if nonces == nil {
		nonces = blockchain.DefaultNonceManager()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &client{
		chain:     chain,
		chainID:   new(big.Int).Set(cfg.ChainID),
		contract:  cfg.TransfersAddress,
		transfers: transfers,
		signer:    cfg.Signer,
		nonces:    nonces,
		logger:    log,
		now:       now,
	}, nil
}

func (c *client) id() int {
	return int(c.chainID.Int64())
}

func (c *client) from() common.Address {
	return c.signer.Address()
}

func (c *client) callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx, From: c.from()}
}

// transact submits one transaction from the signer's account. Nonce allocation and
// submission happen under the account lock so concurrent callers never share a nonce.
func (c *client) transact(ctx context.Context, method string, value *big.Int, send func(*bind.TransactOpts) (*types.Transaction, error)) (*types.Transaction, error) {
	opts, err := c.signer.Transactor(c.chainID)
	if err != nil {
		return nil, newError(ErrSignature, err, "signer cannot sign transactions")
	}
	opts.Context = ctx
	opts.Value = value

	if _, err := c.chain.UpdateGasPrice(ctx, opts); err != nil {
		return nil, writeError(method, err)
	}

	chainID, from := c.chainID.Uint64(), c.from()
	unlock := c.nonces.LockAccount(chainID, from)
	defer unlock()

	for _, stale := range c.nonces.FindTimeoutTransactions(chainID, from) {
		c.logger.NoticeWithChain(c.id(), "Transaction with nonce %d from %s timed out", stale, from.Hex())
		c.nonces.MarkTransactionFailed(chainID, from, stale)
	}

	nonce, err := c.nonces.GetNonce(ctx, chainID, c.chain.Backend, from)
	if err != nil {
		return nil, writeError(method, err)
	}
	opts.Nonce = new(big.Int).SetUint64(nonce)

	tx, err := send(opts)
	metrics.ContractWrites.WithLabelValues(method, metrics.Status(err)).Inc()
	if err != nil {
		c.nonces.ReuseNonce(chainID, from, nonce)
		c.logger.ErrorWithChain(c.id(), "%s from %s failed: %v", method, from.Hex(), err)
		return nil, writeError(method, err)
	}

	c.nonces.TrackTransaction(chainID, from, tx.Hash(), nonce)
	c.logger.InfoWithChain(c.id(), "%s submitted from %s: %s (nonce %d)", method, from.Hex(), tx.Hash().Hex(), nonce)
	return tx, nil
}

// waitMined waits for the receipt. A wait failure is FETCH_ERROR, a reverted transaction CONTRACT_WRITE_ERROR.
func (c *client) waitMined(ctx context.Context, method string, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := c.chain.WaitForReceipt(ctx, txHash)
	if err != nil {
		if ctx.Err() != nil {
			c.abandon(txHash)
		}
		return nil, newError(ErrFetch, err, "failed waiting for %s receipt", method)
	}
	c.nonces.MarkTransactionConfirmed(c.chainID.Uint64(), c.from(), txHash)

	if receipt.Status != types.ReceiptStatusSuccessful {
		c.logger.ErrorWithChain(c.id(), "%s %s reverted in block %s", method, txHash.Hex(), receipt.BlockNumber)
		return receipt, newError(ErrContractWrite, nil, "%s transaction %s reverted", method, txHash.Hex())
	}
	return receipt, nil
}

// abandon stops tracking a transaction of ours whose receipt wait ran out
func (c *client) abandon(txHash common.Hash) {
	chainID, from := c.chainID.Uint64(), c.from()
	if nonce, ok := c.nonces.PendingNonce(chainID, from, txHash); ok {
		c.nonces.MarkTransactionFailed(chainID, from, nonce)
	}
}

func (c *client) Close() {
	c.chain.Close()
}
