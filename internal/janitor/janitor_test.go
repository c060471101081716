package janitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePruner struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
}

func (f *fakePruner) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, age)
	return 3, f.err
}

func (f *fakePruner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestNewDefaults(t *testing.T) {
	j, err := New(&fakePruner{}, "", 0, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultSchedule, j.schedule)
	assert.Equal(t, DefaultRetention, j.retention)
}

func TestNewRejectsInvalidSchedule(t *testing.T) {
	_, err := New(&fakePruner{}, "not a cron", time.Hour, zap.NewNop())
	require.Error(t, err)
}

func TestRunOncePassesRetention(t *testing.T) {
	p := &fakePruner{}
	j, err := New(p, "*/5 * * * *", 48*time.Hour, zap.NewNop())
	require.NoError(t, err)

	j.RunOnce(context.Background())
	require.Len(t, p.calls, 1)
	assert.Equal(t, 48*time.Hour, p.calls[0])
}

func TestRunOnceSurvivesErrors(t *testing.T) {
	p := &fakePruner{err: errors.New("db down")}
	j, err := New(p, "", time.Hour, zap.NewNop())
	require.NoError(t, err)

	assert.NotPanics(t, func() { j.RunOnce(context.Background()) })
}

func TestRunPrunesOnEachTick(t *testing.T) {
	p := &fakePruner{}
	j, err := New(p, "* * * * *", time.Hour, zap.NewNop())
	require.NoError(t, err)

	ticks := make(chan time.Time)
	var waits []time.Duration
	var mu sync.Mutex
	j.after = func(d time.Duration) <-chan time.Time {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		return ticks
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	ticks <- time.Now()
	ticks <- time.Now()
	require.Eventually(t, func() bool { return p.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	for _, w := range waits {
		assert.LessOrEqual(t, w, time.Minute)
	}
}
