// Package querycache memoizes latest-at and range query results over a
// ChunkStore. Latest-at results are cached per (entity, timeline,
// component, time) key; a write anywhere in the store invalidates
// every cached key it could have affected, coalesced across a batch
// of events rather than applied one event at a time. Range results are
// assembled on every call from a lower-level cache of per-chunk sorted
// and densified sub-chunks keyed by ChunkId: since a chunk never
// changes after it is written, that sub-chunk is valid forever and is
// reused across any number of range queries that touch it, however
// different their windows are — only chunk deletion evicts it.
package querycache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rerun-io/rerun-sub038/internal/callgroup"
	"github.com/rerun-io/rerun-sub038/internal/chunk"
	"github.com/rerun-io/rerun-sub038/internal/column"
	"github.com/rerun-io/rerun-sub038/internal/component"
	"github.com/rerun-io/rerun-sub038/internal/entitypath"
	"github.com/rerun-io/rerun-sub038/internal/logging"
	"github.com/rerun-io/rerun-sub038/internal/notify"
	"github.com/rerun-io/rerun-sub038/internal/query"
	"github.com/rerun-io/rerun-sub038/internal/rowid"
	"github.com/rerun-io/rerun-sub038/internal/store"
	"github.com/rerun-io/rerun-sub038/internal/storeevent"
	"github.com/rerun-io/rerun-sub038/internal/timeline"
)

// CacheKey names the (entity, timeline, component) a latest-at result
// belongs to. The query time lives inside the per-key entry rather
// than the key itself, since one write can invalidate every time
// cached under the same key at once. Range results are not cached by
// this key; see chunkRangeKey.
type CacheKey struct {
	Entity     entitypath.Path
	Timeline   timeline.Timeline
	Descriptor component.Descriptor
}

// mapKey is CacheKey's comparable projection: entitypath.Path holds a
// slice internally and cannot be used as a map key or generic
// comparable type argument directly (the same reason the store
// package keys its indexes by entity.String() rather than Path).
type mapKey struct {
	entity     string
	timeline   timeline.Timeline
	descriptor component.Descriptor
}

func (k CacheKey) mapKey() mapKey {
	return mapKey{entity: k.Entity.String(), timeline: k.Timeline, descriptor: k.Descriptor}
}

type latestAtEntry struct {
	time   timeline.TimeInt
	result query.LatestAtResult
	ok     bool
}

// perKeyCache holds every cached latest-at point for one CacheKey. A
// single write can touch several of these at once, so entries are
// invalidated in bulk rather than individually addressed.
type perKeyCache struct {
	mu        sync.RWMutex
	latestAts []latestAtEntry
}

// chunkRangeKey names one chunk's contribution to a range query on a
// given timeline and component. Unlike CacheKey, it does not depend on
// a query window: the cached value is the whole chunk, sorted and
// densified, and every window queried against it slices that same
// cached value.
type chunkRangeKey struct {
	chunkID    chunk.ChunkID
	timeline   timeline.Timeline
	descriptor component.Descriptor
}

// chunkRangeEntry is one chunk's cached contribution to range queries.
// Static chunks resolve to a single winning row, independent of any
// window; temporal chunks resolve to the sub-chunk sorted by timeline
// and densified to non-null cells for descriptor, which every query
// windows further via Chunk.RowRange.
type chunkRangeEntry struct {
	isStatic     bool
	staticResult query.IndexedCell
	staticOK     bool
	sorted       *chunk.Chunk
}

// rangeGroupKey dedupes concurrent Range calls for the same
// (entity, timeline, descriptor, window); it is distinct from CacheKey
// so an in-flight Range call never gets confused with an in-flight
// LatestAt call, or with a Range call for a different window.
type rangeGroupKey struct {
	entity     string
	timeline   timeline.Timeline
	descriptor component.Descriptor
	window     timeline.TimeRange
}

// Config configures a Cache.
type Config struct {
	Logger *slog.Logger

	// InvalidationRateLimit caps how often a sweep logs its summary;
	// it does not limit the sweep itself. Zero disables rate limiting
	// and logs every sweep.
	InvalidationRateLimit rate.Limit

	// MaxEntries caps the number of distinct CacheKeys held by the
	// latest-at cache at once. Zero means unbounded. This does not
	// bound the per-chunk range cache, which is sized by the store's
	// own chunk count rather than by query shape.
	MaxEntries int
}

// Cache is a two-level memoization layer in front of a Store: an
// RWMutex-guarded top-level map from CacheKey to a per-key latest-at
// cache, plus a separate RWMutex-guarded map of per-chunk range
// entries, each with its own callgroup that deduplicates concurrent
// misses for the same key so a burst of readers for a cold key or
// chunk only computes it once.
type Cache struct {
	s *store.Store

	mu         sync.RWMutex
	keys       map[mapKey]*perKeyCache
	maxEntries int

	group      callgroup.Group[mapKey]
	rangeGroup callgroup.Group[rangeGroupKey]

	chunkMu      sync.RWMutex
	chunkEntries map[chunkRangeKey]*chunkRangeEntry
	chunkGroup   callgroup.Group[chunkRangeKey]

	invalMu sync.Mutex
	pending map[entityComponent]struct{}
	limiter *rate.Limiter
	logger  *slog.Logger
	sweeps  atomic.Uint64
	hits    atomic.Uint64
	misses  atomic.Uint64

	// changed wakes any goroutine running an eager Sweep loop as soon
	// as OnEvents records a new invalidation, instead of it having to
	// wait out a fixed polling interval.
	changed *notify.Signal
}

// Stats is a point-in-time snapshot of a Cache's counters, suitable
// for exposition via internal/metrics.
type Stats struct {
	Keys   int
	Hits   uint64
	Misses uint64
	Sweeps uint64
}

// Stats returns a snapshot of this Cache's hit/miss/sweep counters
// and current key count.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	keys := len(c.keys)
	c.mu.RUnlock()
	return Stats{
		Keys:   keys,
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sweeps: c.sweeps.Load(),
	}
}

type entityComponent struct {
	entity     string
	descriptor component.Descriptor
}

// New builds a Cache over s and subscribes it to s's event bus so
// every insertion or deletion invalidates the keys it touched.
func New(s *store.Store, cfg Config) *Cache {
	limit := cfg.InvalidationRateLimit
	var limiter *rate.Limiter
	if limit > 0 {
		limiter = rate.NewLimiter(limit, 1)
	}
	c := &Cache{
		s:            s,
		keys:         make(map[mapKey]*perKeyCache),
		maxEntries:   cfg.MaxEntries,
		chunkEntries: make(map[chunkRangeKey]*chunkRangeEntry),
		pending:      make(map[entityComponent]struct{}),
		limiter:      limiter,
		logger:       logging.Default(cfg.Logger).With("component", "querycache"),
		changed:      notify.NewSignal(),
	}
	s.Subscribe(c)
	return c
}

// Changed returns a channel that closes the next time OnEvents records
// a new invalidation. Callers running an eager Sweep loop select on it
// alongside a fallback ticker so a sweep happens promptly after a
// write instead of only on the next tick; re-call Changed() after each
// wakeup to wait on the next one.
func (c *Cache) Changed() <-chan struct{} {
	return c.changed.C()
}

// OnEvents implements storeevent.Subscriber. It does not evict
// anything synchronously for latest-at keys; it only records which
// (entity, component) pairs were touched, coalescing duplicates across
// the whole batch. That eviction happens lazily, the next time a read
// touches an affected key, or eagerly via Sweep. A deleted chunk's
// per-chunk range entries, in contrast, are evicted immediately: the
// chunk is gone, so the cached sub-chunk built from it no longer
// describes the store and cannot be left for a reader to find.
func (c *Cache) OnEvents(events []storeevent.StoreEvent) {
	c.invalMu.Lock()
	var deletedChunks []chunk.ChunkID
	for _, ev := range events {
		for _, d := range ev.Diff.Components {
			c.pending[entityComponent{entity: ev.Diff.Entity.String(), descriptor: d}] = struct{}{}
		}
		if ev.Diff.Kind == storeevent.Deletion {
			deletedChunks = append(deletedChunks, ev.Diff.ChunkID)
		}
	}
	c.invalMu.Unlock()

	if len(deletedChunks) > 0 {
		c.evictChunks(deletedChunks)
	}
	if len(events) > 0 {
		c.changed.Notify()
	}
}

// evictChunks drops every cached chunkRangeEntry built from one of ids,
// regardless of which timeline or component it was cached under.
func (c *Cache) evictChunks(ids []chunk.ChunkID) {
	gone := make(map[chunk.ChunkID]struct{}, len(ids))
	for _, id := range ids {
		gone[id] = struct{}{}
	}
	c.chunkMu.Lock()
	for key := range c.chunkEntries {
		if _, ok := gone[key.chunkID]; ok {
			delete(c.chunkEntries, key)
		}
	}
	c.chunkMu.Unlock()
}

// Sweep applies every pending invalidation, dropping the affected
// per-key caches. Callers that want bounded cache staleness call this
// periodically; readers self-heal per key even if Sweep never runs,
// but until it does, every access to an affected key drops and
// recomputes that key's cache.
func (c *Cache) Sweep() {
	c.invalMu.Lock()
	pending := c.pending
	c.pending = make(map[entityComponent]struct{})
	c.invalMu.Unlock()

	if len(pending) == 0 {
		return
	}

	c.mu.Lock()
	n := 0
	for key := range c.keys {
		if _, affected := pending[entityComponent{entity: key.entity, descriptor: key.descriptor}]; affected {
			delete(c.keys, key)
			n++
		}
	}
	c.mu.Unlock()

	sweeps := c.sweeps.Add(1)
	if c.limiter == nil || c.limiter.Allow() {
		c.logger.Info("invalidation sweep", "pairs", len(pending), "keys_evicted", n, "sweep", sweeps)
	}
}

func (c *Cache) isPending(entity entitypath.Path, d component.Descriptor) bool {
	c.invalMu.Lock()
	defer c.invalMu.Unlock()
	_, ok := c.pending[entityComponent{entity: entity.String(), descriptor: d}]
	return ok
}

func (c *Cache) perKey(key CacheKey) *perKeyCache {
	mk := key.mapKey()

	c.mu.RLock()
	pk, ok := c.keys[mk]
	c.mu.RUnlock()
	if ok {
		return pk
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if pk, ok = c.keys[mk]; ok {
		return pk
	}
	if c.maxEntries > 0 && len(c.keys) >= c.maxEntries {
		c.evictOneLocked()
	}
	pk = &perKeyCache{}
	c.keys[mk] = pk
	return pk
}

// evictOneLocked drops one entry from c.keys to make room for a new
// one under MaxEntries. c.mu must be held for writing. Map iteration
// order is randomized by the runtime, which is all the eviction policy
// this cache needs: MaxEntries exists to bound memory, not to maximize
// hit rate.
func (c *Cache) evictOneLocked() {
	for k := range c.keys {
		delete(c.keys, k)
		return
	}
}

// dropKey evicts a single key's cache, used when a lazy staleness
// check finds pending invalidation for it.
func (c *Cache) dropKey(key CacheKey) {
	c.mu.Lock()
	delete(c.keys, key.mapKey())
	c.mu.Unlock()
}

// LatestAt returns the cached latest-at result for (entity, tl, t, d)
// if present and not stale, otherwise computes it via the store,
// caches it, and returns it. Concurrent misses for the same CacheKey
// are deduplicated: only one goroutine queries the store, the rest
// wait and share its result.
func (c *Cache) LatestAt(ctx context.Context, tl timeline.Timeline, t timeline.TimeInt, entity entitypath.Path, d component.Descriptor) (query.LatestAtResult, bool, error) {
	key := CacheKey{Entity: entity, Timeline: tl, Descriptor: d}

	if c.isPending(entity, d) {
		c.dropKey(key)
	}

	pk := c.perKey(key)

	pk.mu.RLock()
	for _, e := range pk.latestAts {
		if e.time == t {
			pk.mu.RUnlock()
			c.hits.Add(1)
			return e.result, e.ok, nil
		}
	}
	pk.mu.RUnlock()
	c.misses.Add(1)

	var result query.LatestAtResult
	var ok bool
	ran := false
	ch := c.group.DoChan(key.mapKey(), func() error {
		ran = true
		res := query.LatestAt(c.s, tl, t, entity, []component.Descriptor{d})
		result, ok = res.Results[d]

		pk.mu.Lock()
		pk.latestAts = append(pk.latestAts, latestAtEntry{time: t, result: result, ok: ok})
		pk.mu.Unlock()
		return nil
	})

	select {
	case <-ch:
		if !ran {
			// Joined another caller's in-flight miss: look again, now that
			// its entry is cached.
			return c.LatestAt(ctx, tl, t, entity, d)
		}
		return result, ok, nil
	case <-ctx.Done():
		return query.LatestAtResult{}, false, ctx.Err()
	}
}

// Range returns every cell of (entity, tl, d) within r, assembled from
// per-chunk cache entries: each relevant chunk's sorted/densified
// sub-chunk is fetched from cache (building and caching it on a miss),
// sliced to r, and merged with the others plus the persistence prefix.
// Concurrent Range calls for the same (entity, tl, d, r) are
// deduplicated: one assembles the result while the others wait, then
// assemble their own from the chunk entries it cached. Concurrent calls
// for different windows over the same chunks still share that chunk's
// cached sub-chunk.
func (c *Cache) Range(ctx context.Context, tl timeline.Timeline, r timeline.TimeRange, entity entitypath.Path, d component.Descriptor) ([]query.IndexedCell, error) {
	gkey := rangeGroupKey{entity: entity.String(), timeline: tl, descriptor: d, window: r}

	var result []query.IndexedCell
	ran := false
	ch := c.rangeGroup.DoChan(gkey, func() error {
		ran = true
		var err error
		result, err = c.rangeFromChunks(ctx, tl, r, entity, d)
		return err
	})

	select {
	case err := <-ch:
		if err != nil {
			return nil, err
		}
		if !ran {
			return c.rangeFromChunks(ctx, tl, r, entity, d)
		}
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// rangeFromChunks implements the three steps a range query resolves
// to: (1) fetch each relevant chunk's cached sorted/densified
// sub-chunk (or build and cache it on a miss), (2) slice it to r via
// binary search, (3) merge the windowed pieces across chunks and
// prepend the persistence prefix when the window doesn't already
// start covered.
func (c *Cache) rangeFromChunks(ctx context.Context, tl timeline.Timeline, r timeline.TimeRange, entity entitypath.Path, d component.Descriptor) ([]query.IndexedCell, error) {
	candidates := c.s.RangeRelevantChunks(entity, tl, d, r)

	var staticEntry *query.IndexedCell
	var temporal []query.IndexedCell

	for _, ck := range candidates {
		entry, err := c.chunkEntry(ck, tl, d)
		if err != nil {
			return nil, err
		}

		if entry.isStatic {
			if !entry.staticOK {
				continue
			}
			if staticEntry == nil || entry.staticResult.Index.RowID.Compare(staticEntry.Index.RowID) > 0 {
				v := entry.staticResult
				staticEntry = &v
			}
			continue
		}

		windowed := entry.sorted.RowRange(tl, r)
		for i := 0; i < windowed.NumRows(); i++ {
			timeVal, _ := windowed.TimeAt(tl, i)
			cell, _ := windowed.Cell(d, i)
			temporal = append(temporal, query.IndexedCell{
				Index: query.Index{Time: timeVal, RowID: windowed.RowID(i)},
				Cell:  cell,
			})
		}
	}

	sort.Slice(temporal, func(i, j int) bool { return temporal[i].Index.Less(temporal[j].Index) })

	if needsPersistencePrefix(temporal, r) {
		prefix, ok, err := c.LatestAt(ctx, tl, r.Min-1, entity, d)
		if err != nil {
			return nil, err
		}
		if ok {
			temporal = append([]query.IndexedCell{{Index: prefix.Index, Cell: prefix.Cell}}, temporal...)
		}
	}

	if staticEntry != nil {
		return append([]query.IndexedCell{*staticEntry}, temporal...), nil
	}
	return temporal, nil
}

// needsPersistencePrefix mirrors package query's range persistence-
// prefix check: the windowed result is missing a row at or before
// r.Min, and a real time strictly before r.Min even exists to look up.
func needsPersistencePrefix(temporal []query.IndexedCell, r timeline.TimeRange) bool {
	if r.Min <= timeline.Min {
		return false
	}
	if len(temporal) == 0 {
		return true
	}
	return temporal[0].Index.Time > r.Min
}

// chunkEntry returns ck's cached contribution to range queries on
// (tl, d), building and caching it on a miss. Concurrent misses for
// the same chunk are deduplicated via chunkGroup.
func (c *Cache) chunkEntry(ck *chunk.Chunk, tl timeline.Timeline, d component.Descriptor) (*chunkRangeEntry, error) {
	key := chunkRangeKey{chunkID: ck.ID(), timeline: tl, descriptor: d}

	c.chunkMu.RLock()
	entry, ok := c.chunkEntries[key]
	c.chunkMu.RUnlock()
	if ok {
		c.hits.Add(1)
		return entry, nil
	}
	c.misses.Add(1)

	ch := c.chunkGroup.DoChan(key, func() error {
		var built *chunkRangeEntry
		if ck.IsStatic() {
			id, cell, found := latestStaticRow(ck, d)
			built = &chunkRangeEntry{
				isStatic:     true,
				staticResult: query.IndexedCell{Index: query.StaticIndex(id), Cell: cell},
				staticOK:     found,
			}
		} else {
			built = &chunkRangeEntry{sorted: ck.SortBy(tl).Densify(d)}
		}
		c.chunkMu.Lock()
		c.chunkEntries[key] = built
		c.chunkMu.Unlock()
		return nil
	})
	if err := <-ch; err != nil {
		return nil, err
	}

	c.chunkMu.RLock()
	entry = c.chunkEntries[key]
	c.chunkMu.RUnlock()
	return entry, nil
}

// latestStaticRow returns the RowId and cell of the row in a static
// chunk carrying the largest RowId for a non-null value of d.
func latestStaticRow(c *chunk.Chunk, d component.Descriptor) (rowid.RowID, column.Cell, bool) {
	var best rowid.RowID
	var bestCell column.Cell
	found := false
	for i := 0; i < c.NumRows(); i++ {
		cell, ok := c.Cell(d, i)
		if !ok {
			continue
		}
		id := c.RowID(i)
		if !found || id.Compare(best) > 0 {
			best, bestCell, found = id, cell, true
		}
	}
	return best, bestCell, found
}

// RangeMulti populates the range cache for several components of the
// same entity/timeline/window concurrently, fanning out one goroutine
// per component via errgroup and returning once every component has
// either hit cache or been fetched from the store.
func (c *Cache) RangeMulti(ctx context.Context, tl timeline.Timeline, r timeline.TimeRange, entity entitypath.Path, components []component.Descriptor) (map[component.Descriptor][]query.IndexedCell, error) {
	results := make(map[component.Descriptor][]query.IndexedCell, len(components))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range components {
		g.Go(func() error {
			cells, err := c.Range(gctx, tl, r, entity, d)
			if err != nil {
				return err
			}
			mu.Lock()
			results[d] = cells
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
