package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/storage"
)

// LaunchStore is an in-memory implementation of storage.LaunchStore.
type LaunchStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*domain.TokenLaunch
}

// NewLaunchStore creates an empty launch store.
func NewLaunchStore() *LaunchStore {
	return &LaunchStore{data: make(map[int64]*domain.TokenLaunch)}
}

var _ storage.LaunchStore = (*LaunchStore)(nil)

func (s *LaunchStore) Insert(_ context.Context, l *domain.TokenLaunch) error {
	if l == nil || l.ContractAddress == "" || !l.Evaluation.Valid() || !l.LaunchClass.Valid() {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.nextID++
	l.ID = s.nextID
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	s.data[l.ID] = copyLaunch(l)
	return nil
}

func (s *LaunchStore) GetLatestByContract(_ context.Context, contract string) (*domain.TokenLaunch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.TokenLaunch
	for _, l := range s.data {
		if l.ContractAddress != contract {
			continue
		}
		if latest == nil || l.ID > latest.ID {
			latest = l
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return copyLaunch(latest), nil
}

func (s *LaunchStore) ListTracked(_ context.Context) ([]*domain.TokenLaunch, error) {
	return s.filter(func(l *domain.TokenLaunch) bool {
		return l.Evaluation == domain.EvaluationTrack && l.RuggedAt == nil
	}), nil
}

func (s *LaunchStore) ListMissingMeta(_ context.Context, since time.Time) ([]*domain.TokenLaunch, error) {
	return s.filter(func(l *domain.TokenLaunch) bool {
		return len(l.Meta) == 0 && !l.CreatedAt.Before(since)
	}), nil
}

func (s *LaunchStore) UpdateMeta(_ context.Context, id int64, m storage.LaunchMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.data[id]
	if !ok {
		return storage.ErrNotFound
	}
	l.Meta = append([]byte(nil), m.Meta...)
	l.HasBoost = m.HasBoost
	if m.LaunchPriceUSD.Valid {
		l.LaunchPriceUSD = m.LaunchPriceUSD
	}
	l.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *LaunchStore) MarkRugged(_ context.Context, id int64, at time.Time, lifespan int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.data[id]
	if !ok {
		return storage.ErrNotFound
	}
	ts := at
	span := lifespan
	l.RuggedAt = &ts
	l.Lifespan = &span
	l.Evaluation = domain.EvaluationRugged
	l.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *LaunchStore) filter(keep func(*domain.TokenLaunch) bool) []*domain.TokenLaunch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.TokenLaunch
	for _, l := range s.data {
		if keep(l) {
			out = append(out, copyLaunch(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyLaunch(l *domain.TokenLaunch) *domain.TokenLaunch {
	cp := *l
	if l.Meta != nil {
		cp.Meta = append([]byte(nil), l.Meta...)
	}
	if l.RuggedAt != nil {
		t := *l.RuggedAt
		cp.RuggedAt = &t
	}
	if l.Lifespan != nil {
		v := *l.Lifespan
		cp.Lifespan = &v
	}
	return &cp
}
