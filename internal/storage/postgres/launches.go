package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/storage"
)

// LaunchStore implements storage.LaunchStore using PostgreSQL.
type LaunchStore struct {
	pool *Pool
}

// NewLaunchStore creates a new LaunchStore.
func NewLaunchStore(pool *Pool) *LaunchStore {
	return &LaunchStore{pool: pool}
}

var _ storage.LaunchStore = (*LaunchStore)(nil)

const launchColumns = `id, contract_address, creator_address, evaluation, launch_class,
	launch_liquidity, launch_liquidity_usd, launch_price_usd, meta, has_boost,
	rugged_at, lifespan, created_at, updated_at`

func (s *LaunchStore) Insert(ctx context.Context, l *domain.TokenLaunch) error {
	if l == nil || l.ContractAddress == "" || !l.Evaluation.Valid() || !l.LaunchClass.Valid() {
		return storage.ErrInvalidInput
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO token_launches (
			contract_address, creator_address, evaluation, launch_class, launch_liquidity,
			launch_liquidity_usd, launch_price_usd, meta, has_boost
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		l.ContractAddress, l.CreatorAddress, string(l.Evaluation), string(l.LaunchClass), l.LaunchLiquidity,
		l.LaunchLiquidityUSD, l.LaunchPriceUSD, jsonArg(l.Meta), l.HasBoost,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert launch: %w", err)
	}
	return nil
}

func (s *LaunchStore) GetLatestByContract(ctx context.Context, contract string) (*domain.TokenLaunch, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+launchColumns+` FROM token_launches
		WHERE contract_address = $1
		ORDER BY id DESC LIMIT 1`, contract)
	l, err := scanLaunch(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get launch: %w", err)
	}
	return l, nil
}

func (s *LaunchStore) ListTracked(ctx context.Context) ([]*domain.TokenLaunch, error) {
	return s.list(ctx, `
		SELECT `+launchColumns+` FROM token_launches
		WHERE evaluation = 'track' AND rugged_at IS NULL
		ORDER BY id`)
}

func (s *LaunchStore) ListMissingMeta(ctx context.Context, since time.Time) ([]*domain.TokenLaunch, error) {
	return s.list(ctx, `
		SELECT `+launchColumns+` FROM token_launches
		WHERE meta IS NULL AND created_at >= $1
		ORDER BY id`, since)
}

func (s *LaunchStore) UpdateMeta(ctx context.Context, id int64, m storage.LaunchMeta) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE token_launches
		SET meta = $2, has_boost = $3,
			launch_price_usd = COALESCE($4, launch_price_usd),
			updated_at = now()
		WHERE id = $1`,
		id, jsonArg(m.Meta), m.HasBoost, m.LaunchPriceUSD)
	if err != nil {
		return fmt.Errorf("update launch meta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *LaunchStore) MarkRugged(ctx context.Context, id int64, at time.Time, lifespan int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE token_launches
		SET rugged_at = $2, lifespan = $3, evaluation = 'rugged', updated_at = now()
		WHERE id = $1`, id, at, lifespan)
	if err != nil {
		return fmt.Errorf("mark launch rugged: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *LaunchStore) list(ctx context.Context, query string, args ...any) ([]*domain.TokenLaunch, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list launches: %w", err)
	}
	defer rows.Close()

	var out []*domain.TokenLaunch
	for rows.Next() {
		l, err := scanLaunch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan launch: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLaunch(row pgx.Row) (*domain.TokenLaunch, error) {
	var (
		l                 domain.TokenLaunch
		evaluation, class string
		meta              []byte
	)
	if err := row.Scan(&l.ID, &l.ContractAddress, &l.CreatorAddress, &evaluation, &class,
		&l.LaunchLiquidity, &l.LaunchLiquidityUSD, &l.LaunchPriceUSD, &meta, &l.HasBoost,
		&l.RuggedAt, &l.Lifespan, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if l.Evaluation, err = domain.ParseEvaluation(evaluation); err != nil {
		return nil, err
	}
	if l.LaunchClass, err = domain.ParseLaunchClass(class); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		l.Meta = meta
	}
	return &l, nil
}

// jsonArg binds empty metadata as SQL NULL.
func jsonArg(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
