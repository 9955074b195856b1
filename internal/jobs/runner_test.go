package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd(t *testing.T) {
	r := New(context.Background())
	noop := func(context.Context) error { return nil }

	require.NoError(t, r.Add("feed", "*/30 * * * * *", noop))
	require.NoError(t, r.Add("manual", "-", noop))
	assert.Error(t, r.Add("feed", "* * * * * *", noop), "duplicate name")
	assert.Error(t, r.Add("broken", "not a spec", noop))

	names := []string{}
	for _, s := range r.Statuses() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"feed", "manual"}, names)
}

func TestRunNow(t *testing.T) {
	r := New(context.Background())
	fail := true
	require.NoError(t, r.Add("sweep", "-", func(context.Context) error {
		if fail {
			return errors.New("rpc down")
		}
		return nil
	}))

	err := r.RunNow(context.Background(), "sweep")
	require.Error(t, err)
	st := r.Statuses()[0]
	assert.Equal(t, int64(1), st.Runs)
	assert.Equal(t, "rpc down", st.LastErr)

	fail = false
	require.NoError(t, r.RunNow(context.Background(), "sweep"))
	st = r.Statuses()[0]
	assert.Equal(t, int64(2), st.Runs)
	assert.Empty(t, st.LastErr)

	assert.Error(t, r.RunNow(context.Background(), "missing"))
}

func TestScheduledRunsDoNotOverlap(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on the wall clock")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := New(ctx)

	var started, running, overlapped int32
	require.NoError(t, r.Add("slow", "* * * * * *", func(ctx context.Context) error {
		atomic.AddInt32(&started, 1)
		if atomic.AddInt32(&running, 1) > 1 {
			atomic.StoreInt32(&overlapped, 1)
		}
		defer atomic.AddInt32(&running, -1)
		select {
		case <-time.After(2500 * time.Millisecond):
		case <-ctx.Done():
		}
		return nil
	}))
	r.Start()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&started) >= 1 }, 3*time.Second, 50*time.Millisecond)
	time.Sleep(1500 * time.Millisecond)
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer stopCancel()
	r.Stop(stopCtx)
	assert.Zero(t, atomic.LoadInt32(&overlapped))
}
