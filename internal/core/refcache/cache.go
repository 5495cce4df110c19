// Package refcache memoizes reference data fetched from the server.
package refcache

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ucexplorer/ucexplorer/internal/core/observability/log"
)

type Loader[T any] func(ctx context.Context) (T, error)

// Cache holds one lazily loaded value. Concurrent first callers share a
// single load; Invalidate drops the value and discards any load that was
// already running when it was called.
type Cache[T any] struct {
	name string
	load Loader[T]

	mu         sync.Mutex
	value      T
	ok         bool
	generation uint64

	group  singleflight.Group
	logger log.Log
}

func New[T any](name string, load Loader[T], logger log.Log) *Cache[T] {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Cache[T]{
		name:   name,
		load:   load,
		logger: logger.With(log.Component("refcache"), log.String("cache", name)),
	}
}

// Get returns the cached value, loading it first if needed. The shared load
// runs detached from any one caller's cancellation; ctx only bounds how long
// this caller waits for it.
func (c *Cache[T]) Get(ctx context.Context) (T, error) {
	c.mu.Lock()
	if c.ok {
		v := c.value
		c.mu.Unlock()
		return v, nil
	}
	gen := c.generation
	c.mu.Unlock()

	// The key carries the generation so a caller arriving after Invalidate
	// never joins a load started before it.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(keyFor(gen), func() (any, error) {
		v, err := c.load(loadCtx)
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		if c.generation == gen {
			c.value, c.ok = v, true
		}
		c.mu.Unlock()
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		c.logger.Debug("Gave up waiting for load", log.Error(ctx.Err()))
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.logger.Warn("Load failed", log.Error(res.Err))
			return zero, res.Err
		}
		c.logger.Debug("Loaded", log.Bool("shared", res.Shared))
		v, _ := res.Val.(T)
		return v, nil
	}
}

// Peek returns the cached value without loading.
func (c *Cache[T]) Peek() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.ok
}

// Set replaces the cached value, e.g. after a push from the server.
func (c *Cache[T]) Set(v T) {
	c.mu.Lock()
	c.generation++
	c.value, c.ok = v, true
	c.mu.Unlock()
}

func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	c.generation++
	var zero T
	c.value, c.ok = zero, false
	c.mu.Unlock()
	c.logger.Debug("Invalidated")
}

func keyFor(gen uint64) string {
	return strconv.FormatUint(gen, 10)
}
