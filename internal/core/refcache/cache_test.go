package refcache

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_LoadsOnce(t *testing.T) {
	var loads atomic.Int32
	c := New("areas", func(context.Context) ([]string, error) {
		loads.Add(1)
		return []string{"Finance"}, nil
	}, nil)

	_, ok := c.Peek()
	assert.False(t, ok)

	for i := 0; i < 3; i++ {
		v, err := c.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"Finance"}, v)
	}
	assert.Equal(t, int32(1), loads.Load())
}

func TestGet_ConcurrentCallersShareLoad(t *testing.T) {
	var loads atomic.Int32
	release := make(chan struct{})
	c := New("steps", func(context.Context) (int, error) {
		loads.Add(1)
		<-release
		return 42, nil
	}, nil)

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background())
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	// wait until the load is in flight, then let it finish
	for loads.Load() == 0 {
		runtime.Gosched()
	}
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 42, v)
	}
	assert.LessOrEqual(t, loads.Load(), int32(8))
	v, ok := c.Peek()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestGet_CancelledCallerDoesNotFailOthers(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var loadErr atomic.Value
	c := New("areas", func(ctx context.Context) (int, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			loadErr.Store(err)
			return 0, err
		}
		return 7, nil
	}, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Get(ctxA)
		errA <- err
	}()
	<-started

	type result struct {
		v   int
		err error
	}
	resB := make(chan result, 1)
	go func() {
		v, err := c.Get(context.Background())
		resB <- result{v, err}
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)
	close(release)

	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, 7, b.v)
	assert.Nil(t, loadErr.Load(), "the shared load must not see the first caller's cancellation")
	v, ok := c.Peek()
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestInvalidate_Reloads(t *testing.T) {
	n := 0
	c := New("usecases", func(context.Context) (int, error) {
		n++
		return n, nil
	}, nil)

	v, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	c.Invalidate()
	_, ok := c.Peek()
	assert.False(t, ok)

	v, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestInvalidate_DuringLoadDoesNotRepopulate(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c := New("areas", func(context.Context) (string, error) {
		close(started)
		<-release
		return "stale", nil
	}, nil)

	done := make(chan string)
	go func() {
		v, _ := c.Get(context.Background())
		done <- v
	}()
	<-started
	c.Invalidate()
	close(release)

	assert.Equal(t, "stale", <-done)
	_, ok := c.Peek()
	assert.False(t, ok, "a load started before Invalidate must not be cached")
}

func TestGet_ErrorNotCached(t *testing.T) {
	fail := true
	c := New("areas", func(context.Context) (string, error) {
		if fail {
			return "", errors.New("offline")
		}
		return "ok", nil
	}, nil)

	_, err := c.Get(context.Background())
	require.Error(t, err)

	fail = false
	v, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestSet(t *testing.T) {
	c := New("areas", func(context.Context) (string, error) {
		return "loaded", nil
	}, nil)
	c.Set("pushed")
	v, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pushed", v)
}
