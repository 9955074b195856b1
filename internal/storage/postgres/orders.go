package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/storage"
)

// OrderStore implements storage.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *Pool
}

// NewOrderStore creates a new OrderStore.
func NewOrderStore(pool *Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

var _ storage.OrderStore = (*OrderStore)(nil)

const orderColumns = `o.id, o.user_id, o.wallet_id, o.contract_address, o.token_id,
	o.reference_price, o.target_price, o.target_percentage, o.strategy, o.active,
	o.created_by, o.created_at, o.updated_at`

// Insert returns storage.ErrDuplicateKey when the partial unique index on
// active orders rejects the row.
func (s *OrderStore) Insert(ctx context.Context, o *domain.TradeOrder) error {
	if o == nil || o.ContractAddress == "" || !o.Strategy.Valid() || !o.CreatedBy.Valid() {
		return storage.ErrInvalidInput
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO trade_orders (
			user_id, wallet_id, contract_address, token_id, reference_price,
			target_price, target_percentage, strategy, active, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		o.UserID, o.WalletID, o.ContractAddress, o.TokenID, o.ReferencePrice,
		o.TargetPrice, o.TargetPercentage, string(o.Strategy), o.Active, string(o.CreatedBy),
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *OrderStore) GetActive(ctx context.Context, walletID int64, contract string, strategy domain.Strategy) (*domain.TradeOrder, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM trade_orders o
		WHERE o.wallet_id = $1 AND o.contract_address = $2 AND o.strategy = $3 AND o.active`,
		walletID, contract, string(strategy),
	)
	var o domain.TradeOrder
	if err := scanOrder(row, &o); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get active order: %w", err)
	}
	return &o, nil
}

func (s *OrderStore) ListActiveWithOwners(ctx context.Context, contract string, strategies []domain.Strategy) ([]domain.OwnedOrder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`,
			u.id, u.tg_id, u.username,
			w.id, w.user_id, w.address, w.chain, w.salt, w.secret_key, w.encrypted_private_key
		FROM trade_orders o
		LEFT JOIN users u ON u.id = o.user_id
		LEFT JOIN wallets w ON w.id = o.wallet_id
		WHERE o.contract_address = $1 AND o.active AND o.strategy = ANY($2)
		ORDER BY o.id`,
		contract, strategyArgs(strategies),
	)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	defer rows.Close()

	var out []domain.OwnedOrder
	for rows.Next() {
		owned, err := scanOwnedOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan owned order: %w", err)
		}
		out = append(out, owned)
	}
	return out, rows.Err()
}

func (s *OrderStore) ListActiveContracts(ctx context.Context, strategies []domain.Strategy) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT contract_address
		FROM trade_orders
		WHERE active AND strategy = ANY($1)
		ORDER BY contract_address`,
		strategyArgs(strategies),
	)
	if err != nil {
		return nil, fmt.Errorf("list active contracts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *OrderStore) Deactivate(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trade_orders SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func strategyArgs(strategies []domain.Strategy) []string {
	out := make([]string, len(strategies))
	for i, s := range strategies {
		out[i] = string(s)
	}
	return out
}

func orderDest(o *domain.TradeOrder, strategy, createdBy *string) []any {
	return []any{
		&o.ID, &o.UserID, &o.WalletID, &o.ContractAddress, &o.TokenID,
		&o.ReferencePrice, &o.TargetPrice, &o.TargetPercentage, strategy, &o.Active,
		createdBy, &o.CreatedAt, &o.UpdatedAt,
	}
}

func finishOrder(o *domain.TradeOrder, strategy, createdBy string) error {
	var err error
	if o.Strategy, err = domain.ParseStrategy(strategy); err != nil {
		return err
	}
	if o.CreatedBy, err = domain.ParseCreator(createdBy); err != nil {
		return err
	}
	return nil
}

func scanOrder(row pgx.Row, o *domain.TradeOrder) error {
	var strategy, createdBy string
	if err := row.Scan(orderDest(o, &strategy, &createdBy)...); err != nil {
		return err
	}
	return finishOrder(o, strategy, createdBy)
}

func scanOwnedOrder(rows pgx.Rows) (domain.OwnedOrder, error) {
	var (
		owned             domain.OwnedOrder
		strategy, creator string
		userID            *int64
		tgID, username    *string
		walletID, wUserID *int64
		address, chain    *string
		salt, secret, enc *string
	)
	dest := orderDest(&owned.Order, &strategy, &creator)
	dest = append(dest, &userID, &tgID, &username,
		&walletID, &wUserID, &address, &chain, &salt, &secret, &enc)
	if err := rows.Scan(dest...); err != nil {
		return owned, err
	}
	if err := finishOrder(&owned.Order, strategy, creator); err != nil {
		return owned, err
	}
	if userID != nil {
		owned.User = &domain.User{ID: *userID, TelegramID: deref(tgID), Username: deref(username)}
	}
	if walletID != nil {
		owned.Wallet = &domain.Wallet{
			ID:      *walletID,
			UserID:  derefInt(wUserID),
			Address: deref(address),
			Chain:   deref(chain),
			Key: domain.KeyMaterial{
				Salt:          deref(salt),
				DerivedSecret: deref(secret),
				Ciphertext:    deref(enc),
			},
		}
	}
	return owned, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
