package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/storage"
)

// PriceStore implements storage.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *Pool
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

var _ storage.PriceStore = (*PriceStore)(nil)

const priceColumns = `id, contract_address, chain, name, price, price_native, created_at`

func (s *PriceStore) Insert(ctx context.Context, p *domain.PricePoint) error {
	if p == nil || p.ContractAddress == "" {
		return storage.ErrInvalidInput
	}
	if p.Chain == "" {
		p.Chain = domain.Chain
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO price_points (contract_address, chain, name, price, price_native, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		p.ContractAddress, p.Chain, p.Name, p.Price, p.PriceNative, createdAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert price point: %w", err)
	}
	return nil
}

func (s *PriceStore) Latest(ctx context.Context, contract string) (*domain.PricePoint, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+priceColumns+` FROM price_points
		WHERE contract_address = $1
		ORDER BY created_at DESC, id DESC LIMIT 1`, contract)
	p, err := scanPrice(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("latest price: %w", err)
	}
	return p, nil
}

func (s *PriceStore) Since(ctx context.Context, contract string, since time.Time) ([]*domain.PricePoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+priceColumns+` FROM price_points
		WHERE contract_address = $1 AND created_at >= $2
		ORDER BY created_at, id`, contract, since)
	if err != nil {
		return nil, fmt.Errorf("price window: %w", err)
	}
	defer rows.Close()

	var out []*domain.PricePoint
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPrice(row pgx.Row) (*domain.PricePoint, error) {
	var p domain.PricePoint
	if err := row.Scan(&p.ID, &p.ContractAddress, &p.Chain, &p.Name, &p.Price, &p.PriceNative, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
