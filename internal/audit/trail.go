// Package audit records every swap attempt as an append-only transaction row.
package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/storage"
)

// Trail writes transaction rows to the store and keeps the newest ones in a
// bounded in-memory buffer for trace lookups.
type Trail struct {
	store storage.TransactionStore

	mu      sync.Mutex
	entries []domain.OnchainTransaction
	maxBuf  int
}

// NewTrail creates a trail. maxBuf caps the in-memory buffer; once full the
// oldest entries are discarded. A maxBuf of 0 disables buffering.
func NewTrail(store storage.TransactionStore, maxBuf int) *Trail {
	if maxBuf < 0 {
		maxBuf = 0
	}
	return &Trail{
		store:   store,
		entries: make([]domain.OnchainTransaction, 0, maxBuf),
		maxBuf:  maxBuf,
	}
}

// RecordTransaction fills the fixed columns and a trace id when unset, then
// appends the row.
func (t *Trail) RecordTransaction(ctx context.Context, tx *domain.OnchainTransaction) error {
	if tx.TraceID == "" {
		tx.TraceID = uuid.NewString()
	}
	if tx.Chain == "" {
		tx.Chain = domain.Chain
	}
	if tx.Source == "" {
		tx.Source = domain.Source
	}
	if tx.Type == "" {
		tx.Type = domain.TxType
	}

	if err := t.store.Insert(ctx, tx); err != nil {
		return fmt.Errorf("audit: insert transaction %s: %w", tx.TraceID, err)
	}

	t.buffer(*tx)

	ev := log.Info()
	if tx.Status == domain.TxFailed {
		ev = log.Warn().Str("reason", tx.FailureReason)
	}
	hash := ""
	if tx.TransactionHash != nil {
		hash = *tx.TransactionHash
	}
	ev.Str("trace_id", tx.TraceID).
		Int64("wallet_id", tx.WalletID).
		Str("side", string(tx.Side)).
		Str("status", string(tx.Status)).
		Str("hash", hash).
		Str("value_native", tx.ValueNative.String()).
		Msg("audit: transaction recorded")
	return nil
}

// Recent returns up to limit rows from the store, newest first.
func (t *Trail) Recent(ctx context.Context, limit int) ([]*domain.OnchainTransaction, error) {
	rows, err := t.store.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: recent: %w", err)
	}
	return rows, nil
}

// Query returns buffered rows with the given trace id.
func (t *Trail) Query(traceID string) []domain.OnchainTransaction {
	t.mu.Lock()
	defer t.mu.Unlock()

	var result []domain.OnchainTransaction
	for _, e := range t.entries {
		if e.TraceID == traceID {
			result = append(result, e)
		}
	}
	return result
}

// Len returns the number of buffered rows.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Trail) buffer(tx domain.OnchainTransaction) {
	if t.maxBuf == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) >= t.maxBuf {
		copy(t.entries, t.entries[1:])
		t.entries[len(t.entries)-1] = tx
		return
	}
	t.entries = append(t.entries, tx)
}
