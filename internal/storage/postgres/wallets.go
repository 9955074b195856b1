package postgres

import (
	"context"
	"fmt"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/storage"
)

// WalletStore implements storage.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

var _ storage.WalletStore = (*WalletStore)(nil)

const walletColumns = `w.id, w.user_id, w.address, w.chain, w.salt, w.secret_key, w.encrypted_private_key`

func (s *WalletStore) Insert(ctx context.Context, w *domain.Wallet) error {
	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}
	if w.Chain == "" {
		w.Chain = domain.Chain
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO wallets (user_id, address, chain, salt, secret_key, encrypted_private_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		w.UserID, w.Address, w.Chain, w.Key.Salt, w.Key.DerivedSecret, w.Key.Ciphertext,
	).Scan(&w.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

func (s *WalletStore) GetByID(ctx context.Context, id int64) (*domain.Wallet, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets w WHERE w.id = $1`, id)
	var w domain.Wallet
	if err := row.Scan(walletDest(&w)...); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &w, nil
}

func (s *WalletStore) ListWithOwners(ctx context.Context) ([]storage.OwnedWallet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+walletColumns+`, u.id, u.tg_id, u.username
		FROM wallets w
		JOIN users u ON u.id = w.user_id
		ORDER BY w.id`)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var out []storage.OwnedWallet
	for rows.Next() {
		var ow storage.OwnedWallet
		dest := append(walletDest(&ow.Wallet), &ow.User.ID, &ow.User.TelegramID, &ow.User.Username)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		out = append(out, ow)
	}
	return out, rows.Err()
}

func walletDest(w *domain.Wallet) []any {
	return []any{&w.ID, &w.UserID, &w.Address, &w.Chain, &w.Key.Salt, &w.Key.DerivedSecret, &w.Key.Ciphertext}
}
