package memory

import (
	"context"
	"sync"
	"time"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu     sync.Mutex
	nextID int64
	data   map[string]*domain.Token // keyed by contract address
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{data: make(map[string]*domain.Token)}
}

var _ storage.TokenStore = (*TokenStore)(nil)

func (s *TokenStore) FindOrCreate(_ context.Context, t *domain.Token) (*domain.Token, error) {
	if t == nil || t.ContractAddress == "" {
		return nil, storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data[t.ContractAddress]; ok {
		cp := *existing
		return &cp, nil
	}

	cp := *t
	s.nextID++
	cp.ID = s.nextID
	if cp.Chain == "" {
		cp.Chain = domain.Chain
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.data[cp.ContractAddress] = &cp
	out := cp
	return &out, nil
}

func (s *TokenStore) GetByContract(_ context.Context, contract string) (*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data[contract]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}
