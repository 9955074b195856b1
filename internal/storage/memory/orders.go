package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/storage"
)

// OrderStore is an in-memory implementation of storage.OrderStore.
type OrderStore struct {
	mu      sync.RWMutex
	nextID  int64
	data    map[int64]*domain.TradeOrder
	users   *UserStore
	wallets *WalletStore
}

// NewOrderStore creates an empty order store that joins owners from users and wallets.
func NewOrderStore(users *UserStore, wallets *WalletStore) *OrderStore {
	return &OrderStore{
		data:    make(map[int64]*domain.TradeOrder),
		users:   users,
		wallets: wallets,
	}
}

var _ storage.OrderStore = (*OrderStore)(nil)

func (s *OrderStore) Insert(_ context.Context, o *domain.TradeOrder) error {
	if o == nil || o.ContractAddress == "" || !o.Strategy.Valid() {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.Active {
		for _, existing := range s.data {
			if existing.Active && existing.WalletID == o.WalletID &&
				existing.ContractAddress == o.ContractAddress && existing.Strategy == o.Strategy {
				return storage.ErrDuplicateKey
			}
		}
	}

	now := time.Now().UTC()
	s.nextID++
	o.ID = s.nextID
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	cp := *o
	s.data[o.ID] = &cp
	return nil
}

func (s *OrderStore) GetActive(_ context.Context, walletID int64, contract string, strategy domain.Strategy) (*domain.TradeOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.data {
		if o.Active && o.WalletID == walletID && o.ContractAddress == contract && o.Strategy == strategy {
			cp := *o
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *OrderStore) ListActiveWithOwners(_ context.Context, contract string, strategies []domain.Strategy) ([]domain.OwnedOrder, error) {
	s.mu.RLock()
	var orders []domain.TradeOrder
	for _, o := range s.data {
		if o.Active && o.ContractAddress == contract && hasStrategy(strategies, o.Strategy) {
			orders = append(orders, *o)
		}
	}
	s.mu.RUnlock()

	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })

	out := make([]domain.OwnedOrder, 0, len(orders))
	for _, o := range orders {
		owned := domain.OwnedOrder{Order: o}
		if u, ok := s.users.lookup(o.UserID); ok {
			owned.User = &u
		}
		if w, ok := s.wallets.lookup(o.WalletID); ok {
			owned.Wallet = &w
		}
		out = append(out, owned)
	}
	return out, nil
}

func (s *OrderStore) ListActiveContracts(_ context.Context, strategies []domain.Strategy) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, o := range s.data {
		if o.Active && hasStrategy(strategies, o.Strategy) {
			seen[o.ContractAddress] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (s *OrderStore) Deactivate(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.data[id]
	if !ok {
		return storage.ErrNotFound
	}
	o.Active = false
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// All returns a copy of every order, ordered by ID.
func (s *OrderStore) All() []domain.TradeOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TradeOrder, 0, len(s.data))
	for _, o := range s.data {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func hasStrategy(set []domain.Strategy, s domain.Strategy) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}
