// Package lock provides short-lived exclusive leases keyed by name. Leases
// expire on their own so a crashed holder never blocks a key for long.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrHeld is returned by Acquire when another holder owns the key.
var ErrHeld = errors.New("lock: held")

// Lease is an acquired lock. Release is safe to call more than once and
// never removes a lease that has since been taken by someone else.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out leases.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// ---------------------------------------------------------------------------
// In-process locker
// ---------------------------------------------------------------------------

type memEntry struct {
	token   string
	expires time.Time
}

// Memory is a Locker for a single process.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

var _ Locker = (*Memory)(nil)

// NewMemory creates an empty in-process locker.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memEntry), now: time.Now}
}

// Acquire takes key for ttl, or returns ErrHeld.
func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.expires) {
		return nil, ErrHeld
	}
	token := uuid.NewString()
	m.entries[key] = memEntry{token: token, expires: now.Add(ttl)}
	return &memLease{m: m, key: key, token: token}, nil
}

type memLease struct {
	m     *Memory
	key   string
	token string
}

func (l *memLease) Release(context.Context) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	if e, ok := l.m.entries[l.key]; ok && e.token == l.token {
		delete(l.m.entries, l.key)
	}
	return nil
}
