package postgres

import (
	"context"
	"fmt"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

var _ storage.TransactionStore = (*TransactionStore)(nil)

func (s *TransactionStore) Insert(ctx context.Context, tx *domain.OnchainTransaction) error {
	if tx == nil || !tx.Status.Valid() || !tx.Side.Valid() || tx.TraceID == "" {
		return storage.ErrInvalidInput
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO onchain_transactions (
			trace_id, user_id, wallet_id, transaction_hash, chain, source, status,
			type, side, value_native, value_usd, from_token, to_token, failure_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at`,
		tx.TraceID, tx.UserID, tx.WalletID, tx.TransactionHash, tx.Chain, tx.Source, string(tx.Status),
		tx.Type, string(tx.Side), tx.ValueNative, tx.ValueUSD, tx.FromToken, tx.ToToken, tx.FailureReason,
	).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *TransactionStore) Recent(ctx context.Context, limit int) ([]*domain.OnchainTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, trace_id::text, user_id, wallet_id, transaction_hash, chain, source, status,
			type, side, value_native, value_usd, from_token, to_token, failure_reason, created_at
		FROM onchain_transactions
		ORDER BY id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.OnchainTransaction
	for rows.Next() {
		var (
			tx           domain.OnchainTransaction
			status, side string
		)
		if err := rows.Scan(&tx.ID, &tx.TraceID, &tx.UserID, &tx.WalletID, &tx.TransactionHash,
			&tx.Chain, &tx.Source, &status, &tx.Type, &side, &tx.ValueNative, &tx.ValueUSD,
			&tx.FromToken, &tx.ToToken, &tx.FailureReason, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if tx.Status, err = domain.ParseTxStatus(status); err != nil {
			return nil, err
		}
		if tx.Side, err = domain.ParseSide(side); err != nil {
			return nil, err
		}
		out = append(out, &tx)
	}
	return out, rows.Err()
}
