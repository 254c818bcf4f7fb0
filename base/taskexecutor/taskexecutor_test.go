package taskexecutor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPostRunsAllTasks(t *testing.T) {
	e := New(4)
	defer e.Shutdown()

	const n = 200
	var counter int64
	futures := make([]*Future[int], n)
	for i := 0; i < n; i++ {
		i := i
		futures[i] = Post(e, func() (int, error) {
			atomic.AddInt64(&counter, 1)
			return i * i, nil
		})
	}
	for i, f := range futures {
		v, err := f.Get()
		require.NoError(t, err)
		require.Equal(t, i*i, v)
	}
	require.EqualValues(t, n, atomic.LoadInt64(&counter))
}

func TestShutdownDrainsQueue(t *testing.T) {
	e := New(1)
	var ran int32
	f := Post(e, func() (struct{}, error) {
		atomic.AddInt32(&ran, 1)
		return struct{}{}, nil
	})
	_, err := f.Get()
	require.NoError(t, err)
	e.Shutdown()
	require.EqualValues(t, 1, atomic.LoadInt32(&ran))
}

func TestPendingReflectsBacklog(t *testing.T) {
	e := New(1)
	defer e.Shutdown()

	block := make(chan struct{})
	Post(e, func() (struct{}, error) {
		<-block
		return struct{}{}, nil
	})
	// give the worker a chance to dequeue the blocking task
	time.Sleep(10 * time.Millisecond)

	Post(e, func() (struct{}, error) { return struct{}{}, nil })
	require.Equal(t, 1, e.Pending())
	close(block)
}
