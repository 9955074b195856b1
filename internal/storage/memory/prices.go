package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[string][]domain.PricePoint // keyed by contract, insertion order
}

// NewPriceStore creates an empty price history.
func NewPriceStore() *PriceStore {
	return &PriceStore{data: make(map[string][]domain.PricePoint)}
}

var _ storage.PriceStore = (*PriceStore)(nil)

func (s *PriceStore) Insert(_ context.Context, p *domain.PricePoint) error {
	if p == nil || p.ContractAddress == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	p.ID = s.nextID
	if p.Chain == "" {
		p.Chain = domain.Chain
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.data[p.ContractAddress] = append(s.data[p.ContractAddress], *p)
	return nil
}

func (s *PriceStore) Latest(_ context.Context, contract string) (*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.data[contract]
	if len(points) == 0 {
		return nil, storage.ErrNotFound
	}
	latest := points[0]
	for _, p := range points[1:] {
		if !p.CreatedAt.Before(latest.CreatedAt) {
			latest = p
		}
	}
	return &latest, nil
}

func (s *PriceStore) Since(_ context.Context, contract string, since time.Time) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.PricePoint
	for _, p := range s.data[contract] {
		if p.CreatedAt.Before(since) {
			continue
		}
		cp := p
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
