package observability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ComponentStatus is the health of one dependency.
type ComponentStatus string

const (
	StatusHealthy   ComponentStatus = "healthy"
	StatusDegraded  ComponentStatus = "degraded"
	StatusUnhealthy ComponentStatus = "unhealthy"
)

func (s ComponentStatus) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	case StatusUnhealthy:
		return 2
	}
	return -1
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) ComponentHealth

// ComponentHealth is the result of one probe.
type ComponentHealth struct {
	Name        string          `json:"name"`
	Status      ComponentStatus `json:"status"`
	Message     string          `json:"message,omitempty"`
	LastChecked time.Time       `json:"last_checked"`
	Latency     time.Duration   `json:"latency_ns"`
}

// SystemHealth aggregates every probe. Status is the worst component status.
type SystemHealth struct {
	Status     ComponentStatus            `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"ts"`
	Uptime     time.Duration              `json:"uptime_ns"`
}

// Healthy reports whether the system can serve traffic. Degraded counts as up.
func (s SystemHealth) Healthy() bool {
	return s.Status != StatusUnhealthy
}

// ErrorCheck adapts a ping-style function. A nil error is healthy; an error
// maps to failStatus with the error text as the message.
func ErrorCheck(failStatus ComponentStatus, ping func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: failStatus, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusHealthy}
	}
}

// HealthMonitor runs registered probes on demand.
type HealthMonitor struct {
	mu      sync.RWMutex
	checks  map[string]HealthCheck
	last    map[string]ComponentHealth
	started time.Time
	timeout time.Duration
}

// NewHealthMonitor creates a monitor. Each probe gets at most timeout.
func NewHealthMonitor(timeout time.Duration) *HealthMonitor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthMonitor{
		checks:  make(map[string]HealthCheck),
		last:    make(map[string]ComponentHealth),
		started: time.Now(),
		timeout: timeout,
	}
}

// Register adds or replaces a named probe.
func (m *HealthMonitor) Register(name string, check HealthCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Check runs every probe concurrently and returns the aggregate. Status
// transitions are logged.
func (m *HealthMonitor) Check(ctx context.Context) SystemHealth {
	m.mu.RLock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheck, len(m.checks))
	for k, v := range m.checks {
		checks[k] = v
	}
	m.mu.RUnlock()
	sort.Strings(names)

	results := make([]ComponentHealth, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			start := time.Now()
			r := checks[name](pctx)
			r.Name = name
			r.LastChecked = time.Now()
			r.Latency = time.Since(start)
			results[i] = r
		}(i, name)
	}
	wg.Wait()

	out := SystemHealth{
		Status:     StatusHealthy,
		Components: make(map[string]ComponentHealth, len(results)),
		Timestamp:  time.Now(),
		Uptime:     time.Since(m.started),
	}

	m.mu.Lock()
	for _, r := range results {
		if prev, ok := m.last[r.Name]; ok && prev.Status != r.Status {
			log.Warn().
				Str("component", r.Name).
				Str("from", string(prev.Status)).
				Str("to", string(r.Status)).
				Str("message", r.Message).
				Msg("health: status changed")
		}
		m.last[r.Name] = r
		out.Components[r.Name] = r
		if r.Status.severity() > out.Status.severity() {
			out.Status = r.Status
		}
	}
	m.mu.Unlock()
	return out
}

// ComponentStatus returns the latest result for name.
func (m *HealthMonitor) ComponentStatus(name string) (ComponentHealth, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.last[name]
	return h, ok
}
