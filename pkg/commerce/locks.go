package commerce

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type allowanceKey struct {
	chainID uint64
	payer   common.Address
	token   common.Address
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds
type keyedMutex struct {
	mu    sync.Mutex
	locks map[allowanceKey]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// allowanceLocks is process wide so two Payer values for the same account still serialize
var allowanceLocks = &keyedMutex{locks: make(map[allowanceKey]*refMutex)}

func (k *keyedMutex) lock(key allowanceKey) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()

		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

type pendingSpend struct {
	hash   common.Hash
	amount *big.Int
}

// spendTracker remembers settlements submitted but not yet mined. Their amounts are still
// counted in the on-chain allowance, so the next check must not rely on them.
type spendTracker struct {
	mu      sync.Mutex
	pending map[allowanceKey][]pendingSpend
}

var inflightSpends = &spendTracker{pending: make(map[allowanceKey][]pendingSpend)}

type receiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// reserved drops mined settlements and returns the sum of the ones still pending
func (s *spendTracker) reserved(ctx context.Context, key allowanceKey, receipts receiptReader) *big.Int {
	s.mu.Lock()
	spends := s.pending[key]
	s.mu.Unlock()

	total := new(big.Int)
	var still []pendingSpend
	for _, spend := range spends {
		if receipt, err := receipts.TransactionReceipt(ctx, spend.hash); err == nil && receipt != nil {
			continue
		}
		still = append(still, spend)
		total.Add(total, spend.amount)
	}

	s.mu.Lock()
	if len(still) == 0 {
		delete(s.pending, key)
	} else {
		s.pending[key] = still
	}
	s.mu.Unlock()
	return total
}

func (s *spendTracker) add(key allowanceKey, hash common.Hash, amount *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[key] = append(s.pending[key], pendingSpend{hash: hash, amount: new(big.Int).Set(amount)})
}
