package blockchain

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/speedrun-hq/speedrun-commerce/pkg/logger"
)

// TransactionStatus represents the status of a transaction
type TransactionStatus int

const (
	// TxPending indicates transaction is pending
	TxPending TransactionStatus = iota
	// TxTimedOut indicates transaction has been pending longer than the timeout
	TxTimedOut
)

const (
	defaultTxTimeout    = 5 * time.Minute
	defaultSyncInterval = 5 * time.Minute
)

// NonceSource is the part of a backend that knows the account's pending nonce
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// TransactionRecord tracks details about a transaction
type TransactionRecord struct {
	Hash      common.Hash
	Nonce     uint64
	CreatedAt time.Time
	UpdatedAt time.Time
	Status    TransactionStatus
}

type accountKey struct {
	chainID uint64
	address common.Address
}

// accountNonceData holds nonce data for one account on one chain
type accountNonceData struct {
	// next nonce to hand out
	currentNonce uint64
	// pending transactions by nonce
	pendingTxs map[uint64]*TransactionRecord
	// zero forces a resync on the next allocation
	lastSync time.Time
	// guards the fields above
	mu sync.Mutex
	// held across nonce allocation and transaction submission
	sendMu sync.Mutex
}

// NonceManager handles nonce allocation and tracking per (chain, account)
type NonceManager struct {
	accounts     map[accountKey]*accountNonceData
	mu           sync.RWMutex
	txTimeout    time.Duration
	syncInterval time.Duration
	logger       logger.Logger
}

var (
	defaultNonceManager     *NonceManager
	defaultNonceManagerOnce sync.Once
)

// DefaultNonceManager is shared by every client in the process that does not bring its own
func DefaultNonceManager() *NonceManager {
	defaultNonceManagerOnce.Do(func() {
		defaultNonceManager = NewNonceManager(nil)
	})
	return defaultNonceManager
}

// NewNonceManager creates a new nonce manager
func NewNonceManager(log logger.Logger) *NonceManager {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &NonceManager{
		accounts:     make(map[accountKey]*accountNonceData),
		txTimeout:    defaultTxTimeout,
		syncInterval: defaultSyncInterval,
		logger:       log.Named("nonce"),
	}
}

// SetTransactionTimeout sets the timeout for transactions
func (nm *NonceManager) SetTransactionTimeout(timeout time.Duration) {
	nm.txTimeout = timeout
}

func (nm *NonceManager) account(chainID uint64, address common.Address) *accountNonceData {
	key := accountKey{chainID: chainID, address: address}

	nm.mu.RLock()
	data, exists := nm.accounts[key]
	nm.mu.RUnlock()
	if exists {
		return data
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()
	if data, exists = nm.accounts[key]; !exists {
		data = &accountNonceData{pendingTxs: make(map[uint64]*TransactionRecord)}
		nm.accounts[key] = data
	}
	return data
}

// LockAccount serializes submissions from one account. The caller must invoke the returned function.
func (nm *NonceManager) LockAccount(chainID uint64, address common.Address) func() {
	data := nm.account(chainID, address)
	data.sendMu.Lock()
	return data.sendMu.Unlock
}

// GetNonce reserves and returns the next available nonce
func (nm *NonceManager) GetNonce(ctx context.Context, chainID uint64, source NonceSource, address common.Address) (uint64, error) {
	data := nm.account(chainID, address)

	data.mu.Lock()
	defer data.mu.Unlock()

	if data.lastSync.IsZero() || time.Since(data.lastSync) > nm.syncInterval {
		if err := nm.sync(ctx, chainID, data, source, address); err != nil {
			return 0, err
		}
	}

	nonce := data.currentNonce
	data.currentNonce++
	return nonce, nil
}

// sync must be called with data.mu held
func (nm *NonceManager) sync(ctx context.Context, chainID uint64, data *accountNonceData, source NonceSource, address common.Address) error {
	nonce, err := source.PendingNonceAt(ctx, address)
	if err != nil {
		return errors.Wrap(err, "failed to get pending nonce")
	}

	if nonce > data.currentNonce {
		nm.logger.DebugWithChain(int(chainID), "Updating nonce for %s: %d -> %d", address.Hex(), data.currentNonce, nonce)
		data.currentNonce = nonce
	}
	data.lastSync = time.Now()
	return nil
}

// TrackTransaction records a submitted transaction
func (nm *NonceManager) TrackTransaction(chainID uint64, address common.Address, txHash common.Hash, nonce uint64) {
	data := nm.account(chainID, address)

	data.mu.Lock()
	defer data.mu.Unlock()

	now := time.Now()
	data.pendingTxs[nonce] = &TransactionRecord{
		Hash:      txHash,
		Nonce:     nonce,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    TxPending,
	}
	nm.logger.DebugWithChain(int(chainID), "Tracking transaction for %s with nonce %d: %s", address.Hex(), nonce, txHash.Hex())
}

// MarkTransactionConfirmed removes a mined transaction from the pending set, whatever its receipt status
func (nm *NonceManager) MarkTransactionConfirmed(chainID uint64, address common.Address, txHash common.Hash) bool {
	data := nm.account(chainID, address)

	data.mu.Lock()
	defer data.mu.Unlock()

	for nonce, tx := range data.pendingTxs {
		if tx.Hash == txHash {
			delete(data.pendingTxs, nonce)
			return true
		}
	}
	return false
}

// PendingNonce returns the nonce of a tracked transaction that is not confirmed yet
func (nm *NonceManager) PendingNonce(chainID uint64, address common.Address, txHash common.Hash) (uint64, bool) {
	data := nm.account(chainID, address)

	data.mu.Lock()
	defer data.mu.Unlock()

	for nonce, tx := range data.pendingTxs {
		if tx.Hash == txHash {
			return nonce, true
		}
	}
	return 0, false
}

// ReuseNonce gives back a nonce that never reached the chain.
// It returns true when the nonce will be handed out again.
func (nm *NonceManager) ReuseNonce(chainID uint64, address common.Address, nonce uint64) bool {
	data := nm.account(chainID, address)

	data.mu.Lock()
	defer data.mu.Unlock()

	delete(data.pendingTxs, nonce)

	// a failed send may still have reached the node, so the next allocation asks the chain
	data.lastSync = time.Time{}
	if data.currentNonce == nonce+1 {
		data.currentNonce = nonce
		nm.logger.DebugWithChain(int(chainID), "Nonce %d for %s set for reuse", nonce, address.Hex())
		return true
	}
	return false
}

// MarkTransactionFailed forgets a submitted transaction that was given up on. The next allocation
// resyncs with the chain, so a transaction that is still in the pool keeps its nonce.
func (nm *NonceManager) MarkTransactionFailed(chainID uint64, address common.Address, nonce uint64) bool {
	nm.logger.ErrorWithChain(int(chainID), "Transaction with nonce %d for %s failed", nonce, address.Hex())
	return nm.ReuseNonce(chainID, address, nonce)
}

// FindTimeoutTransactions returns the nonces of transactions pending longer than the timeout
func (nm *NonceManager) FindTimeoutTransactions(chainID uint64, address common.Address) []uint64 {
	data := nm.account(chainID, address)

	data.mu.Lock()
	defer data.mu.Unlock()

	now := time.Now()
	var timedOutNonces []uint64
	for nonce, tx := range data.pendingTxs {
		if tx.Status == TxPending && now.Sub(tx.CreatedAt) > nm.txTimeout {
			tx.Status = TxTimedOut
			tx.UpdatedAt = now
			timedOutNonces = append(timedOutNonces, nonce)
		}
	}
	return timedOutNonces
}

// GetPendingTransactionsCount returns the number of pending transactions for an account
func (nm *NonceManager) GetPendingTransactionsCount(chainID uint64, address common.Address) int {
	data := nm.account(chainID, address)

	data.mu.Lock()
	defer data.mu.Unlock()
	return len(data.pendingTxs)
}
