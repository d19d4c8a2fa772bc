// Package intentstore persists the intents an operator signed until a payer reports the settlement.
package intentstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/speedrun-hq/speedrun-commerce/pkg/commerce"
	"github.com/speedrun-hq/speedrun-commerce/pkg/models"
)

var (
	// ErrNotFound is returned when no record exists for (operator, id)
	ErrNotFound = errors.New("intent not found")
	// ErrDuplicate is returned when (operator, id) is already stored
	ErrDuplicate = errors.New("intent already stored")
)

// Record is a signed intent and what is known about its settlement
type Record struct {
	Intent    *commerce.SignedTransferIntent
	Payer     common.Address
	Status    string
	TxHash    common.Hash
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store abstracts intent persistence
type Store interface {
	Save(ctx context.Context, record Record) error
	Get(ctx context.Context, operator common.Address, id commerce.IntentID) (*Record, error)
	MarkSubmitted(ctx context.Context, operator common.Address, id commerce.IntentID, txHash common.Hash) error
	// List returns records with the given status oldest first, every record for an empty status
	List(ctx context.Context, status string) ([]Record, error)
}

// NewRecord wraps a freshly signed intent
func NewRecord(signed *commerce.SignedTransferIntent, payer common.Address, now time.Time) Record {
	return Record{
		Intent:    signed,
		Payer:     payer,
		Status:    models.StatusSigned,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

type recordKey struct {
	operator common.Address
	id       commerce.IntentID
}

// MemoryStore keeps records in process, used by tests and when no database is configured
type MemoryStore struct {
	mu   sync.RWMutex
	data map[recordKey]Record
	now  func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[recordKey]Record),
		now:  time.Now,
	}
}

func (m *MemoryStore) Save(_ context.Context, record Record) error {
	if record.Intent == nil {
		return errors.New("record has no intent")
	}
	key := recordKey{operator: record.Intent.Operator, id: record.Intent.ID}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[key]; exists {
		return errors.Wrapf(ErrDuplicate, "intent %s", record.Intent.ID.Hex())
	}
	m.data[key] = record
	return nil
}

func (m *MemoryStore) Get(_ context.Context, operator common.Address, id commerce.IntentID) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.data[recordKey{operator: operator, id: id}]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "intent %s", id.Hex())
	}
	return &record, nil
}

func (m *MemoryStore) MarkSubmitted(_ context.Context, operator common.Address, id commerce.IntentID, txHash common.Hash) error {
	key := recordKey{operator: operator, id: id}

	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.data[key]
	if !ok {
		return errors.Wrapf(ErrNotFound, "intent %s", id.Hex())
	}
	record.Status = models.StatusSubmitted
	record.TxHash = txHash
	record.UpdatedAt = m.now().UTC()
	m.data[key] = record
	return nil
}

func (m *MemoryStore) List(_ context.Context, status string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, record := range m.data {
		if status == "" || record.Status == status {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
