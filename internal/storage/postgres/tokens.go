package postgres

import (
	"context"
	"fmt"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

var _ storage.TokenStore = (*TokenStore)(nil)

// FindOrCreate relies on the (contract_address, chain) unique key; the no-op
// update makes RETURNING yield the existing row on conflict.
func (s *TokenStore) FindOrCreate(ctx context.Context, t *domain.Token) (*domain.Token, error) {
	if t == nil || t.ContractAddress == "" {
		return nil, storage.ErrInvalidInput
	}
	chain := t.Chain
	if chain == "" {
		chain = domain.Chain
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tokens (contract_address, chain, name, symbol, decimals)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (contract_address, chain) DO UPDATE SET contract_address = EXCLUDED.contract_address
		RETURNING id, contract_address, chain, name, symbol, decimals, created_at`,
		t.ContractAddress, chain, t.Name, t.Symbol, int16(t.Decimals),
	)
	out, err := scanToken(row)
	if err != nil {
		return nil, fmt.Errorf("find or create token: %w", err)
	}
	return out, nil
}

func (s *TokenStore) GetByContract(ctx context.Context, contract string) (*domain.Token, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, contract_address, chain, name, symbol, decimals, created_at
		FROM tokens WHERE contract_address = $1 AND chain = $2`,
		contract, domain.Chain,
	)
	out, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return out, nil
}

func scanToken(row interface{ Scan(...any) error }) (*domain.Token, error) {
	var t domain.Token
	var decimals int16
	if err := row.Scan(&t.ID, &t.ContractAddress, &t.Chain, &t.Name, &t.Symbol, &decimals, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Decimals = uint8(decimals)
	return &t, nil
}
