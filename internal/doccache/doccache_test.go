package doccache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type doc struct {
	path string
}

func openDoc(key string) (*doc, error) {
	return &doc{path: key}, nil
}

func TestCache_EvictsLeastRecentlyUsedOnce(t *testing.T) {
	evicted := map[string]int{}
	c := New(Options[*doc]{
		MaxEntries: 20,
		TTL:        time.Hour,
		OnEvict: func(key string, _ *doc) {
			evicted[key]++
		},
	})

	for i := 0; i < 21; i++ {
		d := c.Get(fmt.Sprintf("/docs/%02d.pdf", i), openDoc)
		require.NotNil(t, d)
	}

	assert.Equal(t, 20, c.Len())
	assert.Equal(t, map[string]int{"/docs/00.pdf": 1}, evicted)
	assert.NotContains(t, c.Keys(), "/docs/00.pdf")
}

func TestCache_AccessRefreshesRecency(t *testing.T) {
	var evicted []string
	c := New(Options[*doc]{
		MaxEntries: 2,
		TTL:        time.Hour,
		OnEvict:    func(key string, _ *doc) { evicted = append(evicted, key) },
	})

	c.Get("a", openDoc)
	c.Get("b", openDoc)
	c.Get("a", openDoc)
	c.Get("c", openDoc)

	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, []string{"c", "a"}, c.Keys())
}

func TestCache_HitDoesNotReload(t *testing.T) {
	var loads int
	c := New(Options[*doc]{})
	load := func(key string) (*doc, error) {
		loads++
		return openDoc(key)
	}

	first := c.Get("a", load)
	second := c.Get("a", load)

	assert.Same(t, first, second)
	assert.Equal(t, 1, loads)
}

func TestCache_IdleEntriesExpire(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	var evicted []string
	c := New(Options[*doc]{
		TTL:     time.Minute,
		Now:     clock.Now,
		OnEvict: func(key string, _ *doc) { evicted = append(evicted, key) },
	})

	first := c.Get("a", openDoc)
	clock.Advance(30 * time.Second)
	assert.Same(t, first, c.Get("a", openDoc), "access within TTL is a hit")

	clock.Advance(61 * time.Second)
	second := c.Get("a", openDoc)
	assert.NotSame(t, first, second)
	assert.Equal(t, []string{"a"}, evicted)
}

func TestCache_RemoveExpired(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	var evicted []string
	c := New(Options[*doc]{
		TTL:     time.Minute,
		Now:     clock.Now,
		OnEvict: func(key string, _ *doc) { evicted = append(evicted, key) },
	})

	c.Get("old", openDoc)
	clock.Advance(45 * time.Second)
	c.Get("new", openDoc)
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, c.RemoveExpired())
	assert.Equal(t, []string{"old"}, evicted)
	assert.Equal(t, []string{"new"}, c.Keys())
}

func TestCache_FailedLoadIsCachedAsZero(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	var loads int
	c := New(Options[*doc]{TTL: time.Minute, Now: clock.Now})
	load := func(string) (*doc, error) {
		loads++
		return nil, errors.New("corrupt document")
	}

	assert.Nil(t, c.Get("bad.pdf", load))
	assert.Nil(t, c.Get("bad.pdf", load))
	assert.Equal(t, 1, loads)

	clock.Advance(2 * time.Minute)
	assert.Nil(t, c.Get("bad.pdf", load))
	assert.Equal(t, 2, loads)
}

func TestCache_ConcurrentMissesShareOneLoad(t *testing.T) {
	var loads atomic.Int32
	release := make(chan struct{})
	c := New(Options[*doc]{})
	load := func(key string) (*doc, error) {
		loads.Add(1)
		<-release
		return openDoc(key)
	}

	const callers = 8
	results := make([]*doc, callers)
	var started, done sync.WaitGroup
	for i := 0; i < callers; i++ {
		started.Add(1)
		done.Add(1)
		go func(i int) {
			defer done.Done()
			started.Done()
			results[i] = c.Get("shared.pdf", load)
		}(i)
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestCache_OnEvictRunsOutsideLock(t *testing.T) {
	var c *Cache[*doc]
	var sizes []int
	c = New(Options[*doc]{
		MaxEntries: 1,
		OnEvict: func(string, *doc) {
			// Re-entering the cache would deadlock if the hook ran under the lock.
			sizes = append(sizes, c.Len())
		},
	})

	c.Get("a", openDoc)
	c.Get("b", openDoc)

	assert.Equal(t, []int{1}, sizes)
}

func TestCache_PurgeReleasesEverything(t *testing.T) {
	evicted := map[string]int{}
	c := New(Options[*doc]{OnEvict: func(key string, _ *doc) { evicted[key]++ }})

	c.Get("a", openDoc)
	c.Get("b", openDoc)
	c.Purge()
	c.Purge()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, evicted)
}

func TestCache_RunSweepsUntilCancelled(t *testing.T) {
	var evicted atomic.Int32
	c := New(Options[*doc]{
		TTL:           20 * time.Millisecond,
		SweepInterval: 5 * time.Millisecond,
		OnEvict:       func(string, *doc) { evicted.Add(1) },
	})
	c.Get("a", openDoc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return evicted.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, 0, c.Len())
}
