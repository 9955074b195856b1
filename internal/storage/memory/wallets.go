package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/storage"
)

// WalletStore is an in-memory implementation of storage.WalletStore.
type WalletStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*domain.Wallet
	users  *UserStore
}

// NewWalletStore creates an empty wallet store that joins owners from users.
func NewWalletStore(users *UserStore) *WalletStore {
	return &WalletStore{data: make(map[int64]*domain.Wallet), users: users}
}

var _ storage.WalletStore = (*WalletStore)(nil)

func (s *WalletStore) Insert(_ context.Context, w *domain.Wallet) error {
	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data {
		if existing.Address == w.Address {
			return storage.ErrDuplicateKey
		}
	}
	if w.Chain == "" {
		w.Chain = domain.Chain
	}
	s.nextID++
	w.ID = s.nextID
	cp := *w
	s.data[w.ID] = &cp
	return nil
}

func (s *WalletStore) GetByID(_ context.Context, id int64) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *WalletStore) ListWithOwners(_ context.Context) ([]storage.OwnedWallet, error) {
	s.mu.RLock()
	wallets := make([]domain.Wallet, 0, len(s.data))
	for _, w := range s.data {
		wallets = append(wallets, *w)
	}
	s.mu.RUnlock()

	sort.Slice(wallets, func(i, j int) bool { return wallets[i].ID < wallets[j].ID })

	out := make([]storage.OwnedWallet, 0, len(wallets))
	for _, w := range wallets {
		u, ok := s.users.lookup(w.UserID)
		if !ok {
			continue
		}
		out = append(out, storage.OwnedWallet{Wallet: w, User: u})
	}
	return out, nil
}

func (s *WalletStore) lookup(id int64) (domain.Wallet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.data[id]
	if !ok {
		return domain.Wallet{}, false
	}
	return *w, true
}
