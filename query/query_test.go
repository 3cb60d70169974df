package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-storefront/apiclient"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func fastPolicy(p Policy) Policy {
	return p.WithDelays(time.Millisecond, 4*time.Millisecond)
}

func TestKey(t *testing.T) {
	a := NewKey("books", "list").With("page", 1).With("categoryId", int64(3)).With("q", " dune ")
	b := NewKey("books", "list").With("q", "dune").With("categoryId", int64(3)).With("page", 1)
	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, "books/list?categoryId=3&page=1&q=dune", a.String())

	assert.Equal(t, "books/list", NewKey("books", "list").With("q", "").With("page", 0).String())

	assert.True(t, a.HasPrefix(BookListKey))
	assert.True(t, a.HasPrefix(BooksKey))
	assert.True(t, a.HasPrefix(NewKey("books").With("page", 1)))
	assert.False(t, a.HasPrefix(NewKey("books").With("page", 2)))
	assert.False(t, a.HasPrefix(SearchKey))
	assert.Equal(t, "books/detail/7", BookDetailKey.ID(7).String())
}

func TestFetchDisabledStaysIdle(t *testing.T) {
	c := New()
	called := false
	res, err := Fetch(context.Background(), c, Query[int]{
		Key:     ProfileKey,
		Policy:  Profile,
		Enabled: false,
		Fn: func(context.Context) (int, error) {
			called = true
			return 1, nil
		},
	})
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, StatusIdle, res.Status)
	assert.Equal(t, 0, c.Len())
}

func TestFetchDeduplicatesConcurrentReaders(t *testing.T) {
	c := New()
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	q := Query[string]{
		Key:     BookListKey.With("page", 1),
		Policy:  BookList,
		Enabled: true,
		Fn: func(context.Context) (string, error) {
			if calls.Add(1) == 1 {
				close(started)
			}
			<-release
			return "page-1", nil
		},
	}

	var wg sync.WaitGroup
	results := make([]Result[string], 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := Fetch(context.Background(), c, q)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "page-1", results[0].Data)
	assert.Equal(t, results[0].Data, results[1].Data)
	assert.Equal(t, StatusSuccess, results[1].Status)
}

func TestFetchServesFreshDataFromCache(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	var calls int
	q := Query[int]{
		Key:     CategoryListKey,
		Policy:  Categories,
		Enabled: true,
		Fn: func(context.Context) (int, error) {
			calls++
			return calls, nil
		},
	}

	first, err := Fetch(context.Background(), c, q)
	require.NoError(t, err)
	clock.Advance(4 * time.Minute)
	second, err := Fetch(context.Background(), c, q)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, second.Data)
	assert.False(t, second.Stale)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
}

func TestFetchStaleWhileRevalidate(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	var calls atomic.Int32
	q := Query[int]{
		Key:     SearchKey.With("q", "dune"),
		Policy:  Search,
		Enabled: true,
		Fn: func(context.Context) (int, error) {
			return int(calls.Add(1)), nil
		},
	}

	_, err := Fetch(context.Background(), c, q)
	require.NoError(t, err)

	clock.Advance(Search.StaleTime + time.Second)
	res, err := Fetch(context.Background(), c, q)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, 1, res.Data, "stale data is served while refetching")

	c.Wait()
	peek, ok := Peek[int](c, q.Key)
	require.True(t, ok)
	assert.Equal(t, 2, peek.Data)
	assert.False(t, peek.Stale)
}

func TestFetchTerminalErrorIsNotRetried(t *testing.T) {
	c := New()
	var calls int
	q := Query[string]{
		Key:     ProfileKey,
		Policy:  fastPolicy(Profile),
		Enabled: true,
		Fn: func(context.Context) (string, error) {
			calls++
			return "", &apiclient.Error{Op: "me.profile", Status: 401, Kind: apiclient.KindUnauthorized}
		},
	}

	for i := 1; i <= 3; i++ {
		res, err := Fetch(context.Background(), c, q)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apiclient.ErrUnauthorized))
		assert.Equal(t, StatusError, res.Status)
		assert.Equal(t, 1, res.FailureCount, "no retries after an auth failure")
		assert.Equal(t, i, calls)
	}
}

func TestFetchNetworkErrorIsRetriedUpToMax(t *testing.T) {
	c := New()
	var calls int
	p := fastPolicy(Profile)
	res, err := Fetch(context.Background(), c, Query[string]{
		Key:     ProfileKey,
		Policy:  p,
		Enabled: true,
		Fn: func(context.Context) (string, error) {
			calls++
			return "", &apiclient.Error{Op: "me.profile", Kind: apiclient.KindNetwork}
		},
	})
	require.Error(t, err)
	assert.Equal(t, 1+p.Retries, calls)
	assert.Equal(t, 1+p.Retries, res.FailureCount)
}

func TestFetchRecoversAfterRetry(t *testing.T) {
	c := New()
	var calls int
	res, err := Fetch(context.Background(), c, Query[string]{
		Key:     BookDetailKey.ID(7),
		Policy:  fastPolicy(BookDetail),
		Enabled: true,
		Fn: func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", &apiclient.Error{Kind: apiclient.KindServer, Status: 503}
			}
			return "dune", nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "dune", res.Data)
	assert.Equal(t, 0, res.FailureCount)
	assert.Equal(t, 3, calls)
}

func TestFetchCallerCancellationDoesNotFailSharedFetch(t *testing.T) {
	c := New()
	release := make(chan struct{})
	q := Query[int]{
		Key:     CategoryListKey,
		Policy:  Categories,
		Enabled: true,
		Fn: func(context.Context) (int, error) {
			<-release
			return 42, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fetch(ctx, c, q)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	res, err := Fetch(context.Background(), c, q)
	require.NoError(t, err)
	assert.Equal(t, 42, res.Data)
}

func TestPolicyBackoff(t *testing.T) {
	p := Categories
	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 30*time.Second, p.Backoff(10))

	assert.True(t, p.ShouldRetry(1, errors.New("boom")))
	assert.False(t, p.ShouldRetry(4, errors.New("boom")))
	assert.False(t, p.ShouldRetry(1, &apiclient.Error{Kind: apiclient.KindNotFound}))
	assert.False(t, MyActivity.ShouldRetry(1, apiclient.ErrUnauthorized))
}

func TestMutateInvalidatesDependents(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	ctx := context.Background()

	seed := func(k Key, p Policy) {
		_, err := Fetch(ctx, c, Query[int]{Key: k, Policy: p, Enabled: true, Fn: func(context.Context) (int, error) { return 1, nil }})
		require.NoError(t, err)
	}
	seed(BookListKey.With("categoryId", int64(2)).With("page", 1), BookList)
	seed(BookDetailKey.ID(7), BookDetail)
	seed(BookDetailKey.ID(8), BookDetail)
	seed(OverviewKey, Admin)
	seed(AuthorListKey, Default)

	stale := func(k Key) bool {
		res, ok := Peek[int](c, k)
		require.True(t, ok, k.String())
		return res.Stale && res.Status == StatusSuccess
	}

	_, err := Mutate(ctx, c, ResourceBooks, func(context.Context) (int, error) {
		return 0, errors.New("rejected")
	}, 7)
	require.Error(t, err)
	assert.False(t, stale(BookDetailKey.ID(7)), "failed mutation invalidates nothing")

	_, err = Mutate(ctx, c, ResourceBooks, func(context.Context) (int, error) { return 7, nil }, 7)
	require.NoError(t, err)

	assert.True(t, stale(BookListKey.With("categoryId", int64(2)).With("page", 1)))
	assert.True(t, stale(BookDetailKey.ID(7)))
	assert.True(t, stale(OverviewKey))
	assert.False(t, stale(BookDetailKey.ID(8)))
}

func TestInvalidateDuringFetchKeepsEntryStale(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	ctx := context.Background()

	var version atomic.Int32
	version.Store(1)
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	q := Query[int]{
		Key:     BookDetailKey.ID(7),
		Policy:  BookDetail,
		Enabled: true,
		Fn: func(context.Context) (int, error) {
			v := int(version.Load())
			if calls.Add(1) == 2 {
				close(started)
				<-release
			}
			return v, nil
		},
	}

	_, err := Fetch(ctx, c, q)
	require.NoError(t, err)

	clock.Advance(BookDetail.StaleTime + time.Second)
	_, err = Fetch(ctx, c, q)
	require.NoError(t, err)
	<-started

	// The book changes on the server while the refetch still holds the old copy.
	version.Store(2)
	assert.Equal(t, 1, c.Invalidate(ResourceBooks, 7))
	close(release)
	c.Wait()

	res, ok := Peek[int](c, q.Key)
	require.True(t, ok)
	assert.Equal(t, 1, res.Data)
	assert.True(t, res.Stale, "data fetched before the mutation must not count as fresh")

	_, err = Fetch(ctx, c, q)
	require.NoError(t, err)
	c.Wait()

	res, _ = Peek[int](c, q.Key)
	assert.Equal(t, 2, res.Data)
	assert.False(t, res.Stale)
}

func TestInvalidateLoansMarksAvailability(t *testing.T) {
	c := New()
	ctx := context.Background()
	for _, k := range []Key{MyLoansKey.With("page", 1), BookDetailKey.ID(3), ProfileKey} {
		_, err := Fetch(ctx, c, Query[int]{Key: k, Policy: MyActivity, Enabled: true, Fn: func(context.Context) (int, error) { return 1, nil }})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Invalidate(ResourceLoans))
}

func TestSweepEvictsUnusedEntries(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	ctx := context.Background()
	fetch := func(k Key, p Policy) {
		_, err := Fetch(ctx, c, Query[int]{Key: k, Policy: p, Enabled: true, Fn: func(context.Context) (int, error) { return 1, nil }})
		require.NoError(t, err)
	}

	fetch(SearchKey.With("q", "dune"), Search)
	fetch(CategoryListKey, Categories)

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, c.Sweep(clock.Now()))
	_, ok := Peek[int](c, CategoryListKey)
	assert.True(t, ok)

	clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, c.Sweep(clock.Now()))
	assert.Equal(t, 0, c.Len())
}

func TestCollector(t *testing.T) {
	c := New()
	_, err := NewCollector(c, "not a schedule", nil)
	assert.Error(t, err)

	gc, err := NewCollector(c, "", nil)
	require.NoError(t, err)
	gc.Start()
	require.NoError(t, gc.Shutdown())
}
