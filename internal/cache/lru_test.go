package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time { return f.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeNow) {
	clock := &fakeNow{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	c.Set("alex/2025", "a")
	got, ok := c.Get("alex/2025")
	require.True(t, ok)
	assert.Equal(t, "a", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clock := newTestCache(4, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	clock.t = clock.t.Add(2 * time.Minute)
	c.Set("c", "3")

	assert.Equal(t, 2, c.CleanExpired())
	assert.Equal(t, 1, c.Size())

	clock.t = clock.t.Add(2 * time.Minute)
	_, ok := c.Get("c")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestLRUCache_Delete(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("alex/2025", "y")
	c.Delete("alex/2025")
	c.Delete("never-set")
	assert.Equal(t, 0, c.Size())
}

func TestLRUCache_GetOrLoad(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)
	loads := 0
	load := func() (string, error) {
		loads++
		return "expanded", nil
	}

	v, hit, err := c.GetOrLoad("alex/2025", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "expanded", v)

	v, hit, err = c.GetOrLoad("alex/2025", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "expanded", v)
	assert.Equal(t, 1, loads)
}

func TestLRUCache_GetOrLoadDoesNotCacheErrors(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)
	boom := errors.New("missing anchor")

	_, _, err := c.GetOrLoad("alex/2025", func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Size())
}

func TestLRUCache_GetOrLoadSharesConcurrentLoads(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)
	var loads atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.GetOrLoad("sam/2025", func() (int, error) {
				loads.Add(1)
				<-release
				return 14, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 14, v)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, loads.Load(), int32(8))
	assert.GreaterOrEqual(t, loads.Load(), int32(1))
	assert.Equal(t, 1, c.Size())
}

func TestLRUCache_Stats(t *testing.T) {
	c, clock := newTestCache(1, time.Minute)

	c.Set("a", "1")
	c.Get("a")
	c.Get("b")
	c.Set("b", "2") // evicts a
	clock.t = clock.t.Add(time.Hour)
	c.Get("b") // expired

	assert.Equal(t, Stats{Hits: 1, Misses: 2, Evictions: 1, Expired: 1}, c.Stats())
}

func TestNewLRUCache_MinimumSize(t *testing.T) {
	c := NewLRUCache[int](0, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, 1, c.Size())
}

func TestManager_CleanNow(t *testing.T) {
	c, clock := newTestCache(4, time.Minute)
	c.Set("a", "1")
	clock.t = clock.t.Add(time.Hour)

	m := NewManager(nil)
	m.Register(c)
	m.StartCleanup(time.Hour)
	defer m.Stop()

	assert.Equal(t, 1, m.CleanNow())
	m.Stop()
}
