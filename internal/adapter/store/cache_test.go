package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
)

// --- mock for cache tests ---

type countingQuerier struct {
	domain.RecordQuerier
	gridAtCalls    int
	timestampCalls int
	latestCalls    int
	failTimestamps bool
}

func (m *countingQuerier) GridAt(_ context.Context, projectID, ts int64) ([]domain.GridRecord, error) {
	m.gridAtCalls++
	return []domain.GridRecord{{ProjectID: projectID, Timestamp: ts}}, nil
}

func (m *countingQuerier) GridTimestamps(_ context.Context, _ int64) ([]int64, error) {
	m.timestampCalls++
	if m.failTimestamps {
		return nil, errors.New("db down")
	}
	return []int64{2, 1}, nil
}

func (m *countingQuerier) LatestStations(_ context.Context, projectID int64) ([]domain.StationRecord, error) {
	m.latestCalls++
	return []domain.StationRecord{{ProjectID: projectID, StationName: "DY01"}}, nil
}

func newLookupCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "query_cache_total"}, []string{"result"})
}

// --- CachedQuerier tests ---

func TestCachedQuerier_GridAtCacheHit(t *testing.T) {
	inner := &countingQuerier{}
	lookups := newLookupCounter()
	cached := NewCachedQuerier(inner, 10, time.Minute, lookups)
	ctx := context.Background()

	r1, err := cached.GridAt(ctx, 1, 100)
	require.NoError(t, err)
	r2, err := cached.GridAt(ctx, 1, 100)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.gridAtCalls, "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(lookups.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(lookups.WithLabelValues("miss")), 0)

	_, err = cached.GridAt(ctx, 1, 200)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.gridAtCalls, "different timestep is a different key")
}

func TestCachedQuerier_ErrorsNotCached(t *testing.T) {
	inner := &countingQuerier{failTimestamps: true}
	cached := NewCachedQuerier(inner, 10, time.Minute, nil)

	_, err := cached.GridTimestamps(context.Background(), 1)
	require.Error(t, err)
	_, err = cached.GridTimestamps(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, 2, inner.timestampCalls)
}

func TestCachedQuerier_InvalidateProject(t *testing.T) {
	inner := &countingQuerier{}
	cached := NewCachedQuerier(inner, 10, time.Minute, nil)
	ctx := context.Background()

	for _, id := range []int64{1, 10} {
		_, err := cached.GridTimestamps(ctx, id)
		require.NoError(t, err)
		_, err = cached.LatestStations(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, cached.cache.len())

	cached.InvalidateProject(1)
	assert.Equal(t, 2, cached.cache.len(), "project 10 entries survive")

	_, err := cached.GridTimestamps(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.timestampCalls)
}

func TestCachedQuerier_DisabledWhenSizeZero(t *testing.T) {
	inner := &countingQuerier{}
	cached := NewCachedQuerier(inner, 0, time.Minute, nil)

	for range 3 {
		_, err := cached.GridAt(context.Background(), 1, 100)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.gridAtCalls)
}

// gatedQuerier blocks GridTimestamps until released so a lookup can overlap
// an ingestion.
type gatedQuerier struct {
	domain.RecordQuerier
	mu      sync.Mutex
	ts      []int64
	started chan struct{}
	release chan struct{}
}

func (g *gatedQuerier) GridTimestamps(_ context.Context, _ int64) ([]int64, error) {
	g.mu.Lock()
	snapshot := append([]int64(nil), g.ts...)
	g.mu.Unlock()
	if g.started != nil {
		close(g.started)
		g.started = nil
		<-g.release
	}
	return snapshot, nil
}

func (g *gatedQuerier) write(ts int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ts = append([]int64{ts}, g.ts...)
}

func TestCachedQuerier_LookupOverlappingInvalidation(t *testing.T) {
	inner := &gatedQuerier{started: make(chan struct{}), release: make(chan struct{})}
	started := inner.started
	cached := NewCachedQuerier(inner, 10, time.Hour, nil)
	ctx := context.Background()

	done := make(chan []int64)
	go func() {
		ts, err := cached.GridTimestamps(ctx, 1)
		assert.NoError(t, err)
		done <- ts
	}()

	<-started
	inner.write(100)
	cached.InvalidateProject(1)
	close(inner.release)
	assert.Empty(t, <-done, "the overlapping lookup saw the pre-ingest state")

	ts, err := cached.GridTimestamps(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, ts)
}

func TestCachedQuerier_EntriesExpire(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := createProject(t, s, "p")

	clock := clockwork.NewFakeClock()
	cached := NewCachedQuerier(s, 10, 30*time.Second, nil)
	cached.clock = clock

	ts, err := cached.GridTimestamps(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, ts)

	// Another process writes straight to the database.
	_, err = s.UpsertGrid(ctx, gridAt(p.ID, 100, 0.4))
	require.NoError(t, err)

	ts, err = cached.GridTimestamps(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, ts, "still served from cache")

	clock.Advance(30 * time.Second)
	ts, err = cached.GridTimestamps(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, ts)
}

// --- lruCache tests ---

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", 1, time.Time{})
	c.put("b", 2, time.Time{})
	c.put("c", 3, time.Time{}) // evicts "a"

	_, ok := c.get("a", time.Time{})
	assert.False(t, ok)
	v, ok := c.get("b", time.Time{})
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestLRUCache_AccessRefreshes(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", 1, time.Time{})
	c.put("b", 2, time.Time{})
	c.get("a", time.Time{})    // "a" is now most recent
	c.put("c", 3, time.Time{}) // evicts "b"

	_, ok := c.get("a", time.Time{})
	assert.True(t, ok)
	_, ok = c.get("b", time.Time{})
	assert.False(t, ok)
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", 1, time.Time{})
	c.put("a", 5, time.Time{})

	v, ok := c.get("a", time.Time{})
	require.True(t, ok)
	assert.Equal(t, 5, v)
	assert.Equal(t, 1, c.len())
}

func TestLRUCache_DeletePrefixKeepsListConsistent(t *testing.T) {
	c := newLRUCache(4)
	c.put("p1|a", 1, time.Time{})
	c.put("p2|a", 2, time.Time{})
	c.put("p1|b", 3, time.Time{})
	c.deletePrefix("p1|")

	assert.Equal(t, 1, c.len())
	c.put("p3|a", 4, time.Time{})
	c.put("p3|b", 5, time.Time{})
	c.put("p3|c", 6, time.Time{})
	c.put("p3|d", 7, time.Time{}) // evicts "p2|a", the only survivor from before

	_, ok := c.get("p2|a", time.Time{})
	assert.False(t, ok)
	assert.Equal(t, 4, c.len())
}

func TestLRUCache_Expiry(t *testing.T) {
	now := time.Date(2024, 7, 24, 12, 0, 0, 0, time.UTC)
	c := newLRUCache(2)
	c.put("a", 1, now.Add(time.Second))

	_, ok := c.get("a", now)
	assert.True(t, ok)
	_, ok = c.get("a", now.Add(time.Second))
	assert.False(t, ok)
	assert.Equal(t, 0, c.len())
}
