package memory

import (
	"context"
	"sync"
	"time"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	rows []domain.OnchainTransaction
}

// NewTransactionStore creates an empty transaction log.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{}
}

var _ storage.TransactionStore = (*TransactionStore)(nil)

func (s *TransactionStore) Insert(_ context.Context, tx *domain.OnchainTransaction) error {
	if tx == nil || !tx.Status.Valid() || !tx.Side.Valid() {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx.ID = int64(len(s.rows) + 1)
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	s.rows = append(s.rows, copyTx(*tx))
	return nil
}

func (s *TransactionStore) Recent(_ context.Context, limit int) ([]*domain.OnchainTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.rows) {
		limit = len(s.rows)
	}
	out := make([]*domain.OnchainTransaction, 0, limit)
	for i := len(s.rows) - 1; i >= 0 && len(out) < limit; i-- {
		cp := copyTx(s.rows[i])
		out = append(out, &cp)
	}
	return out, nil
}

// All returns every row in insertion order.
func (s *TransactionStore) All() []domain.OnchainTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.OnchainTransaction, len(s.rows))
	for i, r := range s.rows {
		out[i] = copyTx(r)
	}
	return out
}

func copyTx(tx domain.OnchainTransaction) domain.OnchainTransaction {
	if tx.TransactionHash != nil {
		h := *tx.TransactionHash
		tx.TransactionHash = &h
	}
	return tx
}
