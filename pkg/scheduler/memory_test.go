package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySchedulerFiresAfterDelay(t *testing.T) {
	s := NewMemoryScheduler()

	var fired atomic.Int32
	var got atomic.Value
	s.Register("test.task", func(ctx context.Context, payload []byte) error {
		got.Store(string(payload))
		fired.Add(1)
		return nil
	})

	handle, err := s.Schedule(context.Background(), "test.task", []byte("alert-1"), 20*time.Millisecond)
	require.NoError(t, err)
	require.NotEmpty(t, handle)
	assert.Equal(t, 1, s.Pending())

	assert.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "alert-1", got.Load())
	assert.Equal(t, 0, s.Pending())
}

func TestMemorySchedulerCancelPreventsFiring(t *testing.T) {
	s := NewMemoryScheduler()

	var fired atomic.Int32
	s.Register("test.task", func(ctx context.Context, payload []byte) error {
		fired.Add(1)
		return nil
	})

	handle, err := s.Schedule(context.Background(), "test.task", nil, 50*time.Millisecond)
	require.NoError(t, err)

	cancelled, err := s.Cancel(context.Background(), handle)
	require.NoError(t, err)
	assert.True(t, cancelled)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestMemorySchedulerCancelUnknownHandle(t *testing.T) {
	s := NewMemoryScheduler()

	cancelled, err := s.Cancel(context.Background(), "no-such-handle")
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestMemorySchedulerCancelAfterFire(t *testing.T) {
	s := NewMemoryScheduler()

	var fired atomic.Int32
	s.Register("test.task", func(ctx context.Context, payload []byte) error {
		fired.Add(1)
		return nil
	})

	handle, err := s.Schedule(context.Background(), "test.task", nil, time.Millisecond)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, time.Millisecond)

	cancelled, err := s.Cancel(context.Background(), handle)
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestMemorySchedulerUnregisteredTask(t *testing.T) {
	s := NewMemoryScheduler()

	_, err := s.Schedule(context.Background(), "unknown.task", nil, time.Millisecond)
	require.Error(t, err)
}
