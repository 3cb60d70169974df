// Package query is the client-side query cache. It de-duplicates concurrent
// fetches of the same key, serves stale data while refetching, retries failures
// according to a per-resource policy and invalidates dependent entries after
// successful mutations.
package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by fetches that were waiting on a retry when the cache closed.
var ErrClosed = errors.New("query cache closed")

// Status is the state of a cache entry.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusError
	StatusSuccess
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	case StatusSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Query describes one cached read.
type Query[T any] struct {
	Key    Key
	Policy Policy
	// Enabled false leaves the query idle: Fn is not called and no error is returned.
	Enabled bool
	Fn      func(ctx context.Context) (T, error)
}

// Result is what a reader observes.
type Result[T any] struct {
	Data   T
	Status Status
	// Stale is set when Data is older than the policy allows or was invalidated.
	// A background refetch has been started for it.
	Stale        bool
	UpdatedAt    time.Time
	FailureCount int
	Err          error
}

type entry struct {
	key         Key
	policy      Policy
	status      Status
	value       any
	hasValue    bool
	err         error
	updatedAt   time.Time
	lastAccess  time.Time
	failures    int
	invalidated bool
	// generation is bumped by every invalidation. A fetch that started in an
	// older generation may hold pre-mutation data and leaves the entry stale.
	generation uint64
}

// Cache holds query entries keyed by Key.String(). It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry

	group  singleflight.Group
	deps   Dependencies
	logger *slog.Logger
	now    func() time.Time

	background sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for fetch failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithDependencies replaces the invalidation table.
func WithDependencies(d Dependencies) Option {
	return func(c *Cache) { c.deps = d }
}

// New creates an empty cache using DefaultDependencies.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		deps:    DefaultDependencies,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch reads q through c. Fresh data is returned as is. Stale data is returned
// immediately and refreshed in the background. Otherwise the caller waits for a
// fetch shared with every concurrent reader of the same key.
func Fetch[T any](ctx context.Context, c *Cache, q Query[T]) (Result[T], error) {
	if !q.Enabled || q.Fn == nil {
		return Result[T]{Status: StatusIdle}, nil
	}
	k := q.Key.String()
	fn := func(ctx context.Context) (any, error) { return q.Fn(ctx) }

	c.mu.Lock()
	e := c.entryLocked(q.Key, q.Policy)
	if e.hasValue {
		res := resultOf[T](e, c.now())
		c.mu.Unlock()
		if res.Stale {
			c.refresh(k, q.Policy, fn)
		}
		return res, nil
	}
	c.mu.Unlock()

	if _, err := c.load(ctx, k, q.Policy, fn); err != nil {
		c.mu.Lock()
		res := resultOf[T](c.entryLocked(q.Key, q.Policy), c.now())
		c.mu.Unlock()
		res.Err = err
		return res, err
	}

	c.mu.Lock()
	res := resultOf[T](c.entryLocked(q.Key, q.Policy), c.now())
	c.mu.Unlock()
	return res, nil
}

// Peek returns the cached state of key without fetching.
func Peek[T any](c *Cache, key Key) (Result[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return Result[T]{Status: StatusIdle}, false
	}
	return resultOf[T](e, c.now()), true
}

// entryLocked returns the entry for key, creating it. The caller holds c.mu.
func (c *Cache) entryLocked(key Key, p Policy) *entry {
	k := key.String()
	e, ok := c.entries[k]
	if !ok {
		e = &entry{key: key, status: StatusIdle}
		c.entries[k] = e
	}
	e.policy = p
	e.lastAccess = c.now()
	return e
}

func resultOf[T any](e *entry, now time.Time) Result[T] {
	res := Result[T]{
		Status:       e.status,
		UpdatedAt:    e.updatedAt,
		FailureCount: e.failures,
		Err:          e.err,
	}
	if e.hasValue {
		res.Data, _ = e.value.(T)
		res.Stale = e.invalidated || now.Sub(e.updatedAt) >= e.policy.StaleTime
	}
	return res
}

// load runs fn under singleflight. The shared fetch is detached from the
// caller's cancellation so one impatient reader does not fail the others.
func (c *Cache) load(ctx context.Context, k string, p Policy, fn func(context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(k, func() (any, error) {
		return c.run(context.WithoutCancel(ctx), k, p, fn)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.Val, r.Err
	}
}

func (c *Cache) refresh(k string, p Policy, fn func(context.Context) (any, error)) {
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		if _, err := c.load(context.Background(), k, p, fn); err != nil {
			c.logger.Debug("background refetch failed", "key", k, "error", err)
		}
	}()
}

// run fetches with retries and records the outcome on the entry.
func (c *Cache) run(ctx context.Context, k string, p Policy, fn func(context.Context) (any, error)) (any, error) {
	c.setStatus(k, StatusLoading)

	attempt := 0
	for {
		gen := c.generation(k)
		v, err := fn(ctx)
		if err == nil {
			c.mu.Lock()
			if e, ok := c.entries[k]; ok {
				e.value, e.hasValue = v, true
				e.status = StatusSuccess
				e.err = nil
				e.failures = 0
				e.invalidated = e.generation != gen
				e.updatedAt = c.now()
			}
			c.mu.Unlock()
			return v, nil
		}

		attempt++
		c.mu.Lock()
		if e, ok := c.entries[k]; ok {
			e.failures = attempt
			e.err = err
		}
		c.mu.Unlock()

		if !p.ShouldRetry(attempt, err) {
			c.logger.Debug("query failed",
				"key", k,
				"policy", p.Name,
				"attempts", attempt,
				"error", err,
			)
			c.setStatus(k, StatusError)
			return nil, err
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-timer.C:
		case <-c.done:
			timer.Stop()
			c.setStatus(k, StatusError)
			return nil, ErrClosed
		}
	}
}

func (c *Cache) generation(k string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[k]; ok {
		return e.generation
	}
	return 0
}

func (c *Cache) setStatus(k string, s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[k]; ok {
		// Entries that hold data stay successful while refetching and after a
		// failed refetch; the previous data is still served.
		if e.hasValue {
			s = StatusSuccess
		}
		e.status = s
	}
}

// Len reports the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Wait blocks until background refetches started so far have finished.
func (c *Cache) Wait() {
	c.background.Wait()
}

// Close aborts retry waits and waits for background refetches.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	c.background.Wait()
	return nil
}
