package quote

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/guttosm/stockpulse/internal/domain/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(ttl time.Duration, capacity int) (*Cache, *fakeClock) {
	clock := &fakeClock{now: fixedNow}
	c := NewCache(ttl, capacity)
	c.now = clock.Now
	return c, clock
}

func TestKey_SeparatesShapeOptions(t *testing.T) {
	require.Equal(t, Key(" aapl ", Options{}), Key("AAPL", Options{}))
	require.NotEqual(t, Key("AAPL", Options{Sparkline: true}), Key("AAPL", Options{Sparkline: false}))
}

func TestCache_FreshnessWindow(t *testing.T) {
	c, clock := newTestCache(time.Minute, 16)
	key := Key("AAPL", Options{})

	_, ok := c.Get(key)
	require.False(t, ok)

	c.Put(key, models.Quote{Symbol: "AAPL", Price: 1})
	clock.Advance(59 * time.Second)
	q, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, 1.0, q.Price)

	clock.Advance(time.Second)
	_, ok = c.Get(key)
	require.False(t, ok, "an entry exactly ttl old is stale")

	c.Put(key, models.Quote{Symbol: "AAPL", Price: 2})
	q, ok = c.Get(key)
	require.True(t, ok)
	require.Equal(t, 2.0, q.Price)
}

func TestCache_EntriesAreImmutable(t *testing.T) {
	c, _ := newTestCache(time.Minute, 16)
	key := Key("AAPL", Options{Sparkline: true})

	pe := 20.0
	in := models.Quote{Symbol: "AAPL", Price: 1, PERatio: &pe, Sparkline: []float64{1, 2, 3}}
	c.Put(key, in)

	in.Sparkline[0] = 99
	*in.PERatio = 99

	out, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, []float64{1, 2, 3}, out.Sparkline)
	require.Equal(t, 20.0, *out.PERatio)

	out.Sparkline[1] = 42
	again, _ := c.Get(key)
	require.Equal(t, []float64{1, 2, 3}, again.Sparkline)
}

func TestCache_CapacityBound(t *testing.T) {
	c, _ := newTestCache(time.Hour, 2)

	c.Put("A", models.Quote{Symbol: "A"})
	c.Put("B", models.Quote{Symbol: "B"})
	c.Put("C", models.Quote{Symbol: "C"})

	_, okA := c.Get("A")
	require.False(t, okA, "oldest key should be evicted")
	_, okC := c.Get("C")
	require.True(t, okC)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(time.Minute, 64)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("S%d", i%10)
				c.Put(key, models.Quote{Symbol: key, Price: float64(w), Sparkline: []float64{float64(w), float64(w)}})
				if q, ok := c.Get(key); ok {
					// a reader never sees a record mixed from two writers
					if q.Sparkline[0] != q.Price || q.Sparkline[1] != q.Price {
						t.Errorf("torn record: %+v", q)
					}
				}
			}
		}(w)
	}
	wg.Wait()
}
