package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthMonitor_Check(t *testing.T) {
	mon := NewHealthMonitor(time.Second)
	mon.Register("storage", ErrorCheck(StatusUnhealthy, func(context.Context) error { return nil }))
	mon.Register("rpc", func(context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusHealthy, Message: "ok"}
	})

	h := mon.Check(context.Background())
	assert.Equal(t, StatusHealthy, h.Status)
	assert.True(t, h.Healthy())
	require.Len(t, h.Components, 2)

	rpc := h.Components["rpc"]
	assert.Equal(t, "rpc", rpc.Name)
	assert.Equal(t, "ok", rpc.Message)
	assert.False(t, rpc.LastChecked.IsZero())

	got, ok := mon.ComponentStatus("storage")
	require.True(t, ok)
	assert.Equal(t, StatusHealthy, got.Status)
	_, ok = mon.ComponentStatus("redis")
	assert.False(t, ok)
}

func TestHealthMonitor_WorstStatusWins(t *testing.T) {
	tests := []struct {
		name     string
		statuses []ComponentStatus
		want     ComponentStatus
		healthy  bool
	}{
		{"all healthy", []ComponentStatus{StatusHealthy, StatusHealthy}, StatusHealthy, true},
		{"one degraded", []ComponentStatus{StatusHealthy, StatusDegraded}, StatusDegraded, true},
		{"one down", []ComponentStatus{StatusDegraded, StatusUnhealthy}, StatusUnhealthy, false},
		{"no checks", nil, StatusHealthy, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mon := NewHealthMonitor(time.Second)
			for i, s := range tt.statuses {
				s := s
				mon.Register(string(rune('a'+i)), func(context.Context) ComponentHealth {
					return ComponentHealth{Status: s}
				})
			}
			h := mon.Check(context.Background())
			assert.Equal(t, tt.want, h.Status)
			assert.Equal(t, tt.healthy, h.Healthy())
		})
	}
}

func TestErrorCheck(t *testing.T) {
	check := ErrorCheck(StatusDegraded, func(context.Context) error { return errors.New("redis: connection refused") })
	h := check(context.Background())
	assert.Equal(t, StatusDegraded, h.Status)
	assert.Equal(t, "redis: connection refused", h.Message)
}

func TestHealthMonitor_ProbeTimeout(t *testing.T) {
	mon := NewHealthMonitor(50 * time.Millisecond)
	mon.Register("rpc", ErrorCheck(StatusUnhealthy, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	h := mon.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.Contains(t, h.Components["rpc"].Message, "deadline")
}
