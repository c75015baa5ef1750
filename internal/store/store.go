// Package store implements the ChunkStore: it owns every chunk,
// maintains the lookup indexes queries run against, enforces
// static-write monotonicity, and emits one StoreEvent per insertion or
// deletion transaction.
package store

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/rerun-io/rerun-sub038/internal/chunk"
	"github.com/rerun-io/rerun-sub038/internal/component"
	"github.com/rerun-io/rerun-sub038/internal/entitypath"
	"github.com/rerun-io/rerun-sub038/internal/logging"
	"github.com/rerun-io/rerun-sub038/internal/rowid"
	"github.com/rerun-io/rerun-sub038/internal/storeevent"
	"github.com/rerun-io/rerun-sub038/internal/timeline"
)

var (
	// ErrChunkNotFound is returned when a lookup or deletion names an
	// unknown ChunkID.
	ErrChunkNotFound = errors.New("store: chunk not found")
	// ErrMissingComponent names the case of a component the store has
	// never seen for an entity. No Store method returns it: the
	// relevant-chunks lookups return an empty slice for an unknown key.
	ErrMissingComponent = errors.New("store: missing component")
)

// entityTimelineComponentKey indexes chunks by
// (EntityPath, Timeline, ComponentDescriptor) → ordered list<ChunkID>.
type entityTimelineComponentKey struct {
	entity     string
	timeline   timeline.Timeline
	descriptor component.Descriptor
}

// staticKey is (EntityPath, ComponentDescriptor) → at most one ChunkID.
type staticKey struct {
	entity     string
	descriptor component.Descriptor
}

// keyedEntry is one chunk in a per-key ordered list, ordered ascending
// by the time-range min of that chunk on the keyed timeline (spec
// §3.6: "ordered list<ChunkId by time>").
type keyedEntry struct {
	chunkID  chunk.ChunkID
	rangeMin timeline.TimeInt
}

// Config configures a Store.
type Config struct {
	// StoreID identifies this store instance in emitted StoreEvents.
	StoreID string
	Logger  *slog.Logger
}

// Store is the ChunkStore: a mutex-guarded, in-memory owner of chunks
// plus their indexes. All writes are serialized through a single
// logical writer; reads take a read lock over an arbitrary immutable
// chunk set.
type Store struct {
	mu sync.RWMutex

	storeID    string
	generation uint64
	nextEvent  uint64

	chunks map[chunk.ChunkID]*chunk.Chunk

	byEntity                 map[string]map[chunk.ChunkID]struct{}
	byEntityTimelineComponent map[entityTimelineComponentKey][]keyedEntry
	staticByEntityComponent   map[staticKey]chunk.ChunkID

	bus *storeevent.Bus

	logger *slog.Logger
}

// New creates an empty Store.
func New(cfg Config) *Store {
	logger := logging.Default(cfg.Logger).With("component", "store", "type", "chunkstore")
	return &Store{
		storeID:                   cfg.StoreID,
		chunks:                    make(map[chunk.ChunkID]*chunk.Chunk),
		byEntity:                  make(map[string]map[chunk.ChunkID]struct{}),
		byEntityTimelineComponent: make(map[entityTimelineComponentKey][]keyedEntry),
		staticByEntityComponent:   make(map[staticKey]chunk.ChunkID),
		bus:                       storeevent.New(),
		logger:                    logger,
	}
}

// Subscribe registers s to receive this store's StoreEvents.
func (s *Store) Subscribe(sub storeevent.Subscriber) {
	s.bus.Subscribe(sub)
}

// Generation returns the current monotonic generation counter.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// InsertChunk takes ownership of c, updates every index it touches,
// enforces static-write monotonicity, and publishes exactly one
// Addition StoreEvent. c must already satisfy the Chunk invariants;
// InsertChunk itself never fails.
func (s *Store) InsertChunk(c *chunk.Chunk) storeevent.StoreEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity := c.Entity().String()
	s.chunks[c.ID()] = c

	if s.byEntity[entity] == nil {
		s.byEntity[entity] = make(map[chunk.ChunkID]struct{})
	}
	s.byEntity[entity][c.ID()] = struct{}{}

	components := c.Components()

	if c.IsStatic() {
		s.applyStaticInsert(entity, c, components)
	} else {
		s.insertTemporal(entity, c, components)
	}

	s.generation++
	event := s.newEvent(storeevent.StoreDiff{
		Kind:              storeevent.Addition,
		ChunkID:           c.ID(),
		Entity:            c.Entity(),
		IsStatic:          c.IsStatic(),
		PerTimelineRanges: timeRangesOf(c),
		Components:        components,
	})

	s.logger.Info("chunk inserted",
		"chunk", c.ID().String(),
		"entity", entity,
		"rows", c.NumRows(),
		"static", c.IsStatic(),
		"generation", s.generation,
	)

	s.bus.Publish(event)
	return event
}

func (s *Store) insertTemporal(entity string, c *chunk.Chunk, components []component.Descriptor) {
	for _, tl := range c.Timelines() {
		rng := rangeOf(c, tl)
		for _, d := range components {
			if !c.HasComponent(d) {
				continue
			}
			key := entityTimelineComponentKey{entity: entity, timeline: tl, descriptor: d}
			entries := s.byEntityTimelineComponent[key]
			entries = append(entries, keyedEntry{chunkID: c.ID(), rangeMin: rng.Min})
			sort.Slice(entries, func(i, j int) bool { return entries[i].rangeMin < entries[j].rangeMin })
			s.byEntityTimelineComponent[key] = entries
		}
	}
}

// applyStaticInsert enforces the monotonic-overwrite rule for static
// components: the new chunk's RowId wins only if strictly greater
// than the prior static entry's RowId for that key.
func (s *Store) applyStaticInsert(entity string, c *chunk.Chunk, components []component.Descriptor) {
	for _, d := range components {
		key := staticKey{entity: entity, descriptor: d}
		newRowID := latestRowIDFor(c, d)

		existingID, ok := s.staticByEntityComponent[key]
		if !ok {
			s.staticByEntityComponent[key] = c.ID()
			continue
		}
		existing := s.chunks[existingID]
		existingRowID := latestRowIDFor(existing, d)
		if newRowID.Compare(existingRowID) > 0 {
			s.staticByEntityComponent[key] = c.ID()
		}
	}
}

// latestRowIDFor returns the largest RowId among the rows of c that
// carry a non-null value for d.
func latestRowIDFor(c *chunk.Chunk, d component.Descriptor) rowid.RowID {
	var best rowid.RowID
	first := true
	for i := 0; i < c.NumRows(); i++ {
		if _, ok := c.Cell(d, i); !ok {
			continue
		}
		id := c.RowID(i)
		if first || id.Compare(best) > 0 {
			best = id
			first = false
		}
	}
	return best
}

// DeleteChunk removes a chunk from the store and publishes a Deletion
// StoreEvent describing its prior coverage.
func (s *Store) DeleteChunk(id chunk.ChunkID) (storeevent.StoreEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chunks[id]
	if !ok {
		return storeevent.StoreEvent{}, ErrChunkNotFound
	}

	entity := c.Entity().String()
	components := c.Components()

	delete(s.chunks, id)
	delete(s.byEntity[entity], id)

	for _, tl := range c.Timelines() {
		for _, d := range components {
			key := entityTimelineComponentKey{entity: entity, timeline: tl, descriptor: d}
			entries := s.byEntityTimelineComponent[key]
			for i, e := range entries {
				if e.chunkID == id {
					entries = append(entries[:i], entries[i+1:]...)
					break
				}
			}
			if len(entries) == 0 {
				delete(s.byEntityTimelineComponent, key)
			} else {
				s.byEntityTimelineComponent[key] = entries
			}
		}
	}
	for _, d := range components {
		key := staticKey{entity: entity, descriptor: d}
		if s.staticByEntityComponent[key] == id {
			delete(s.staticByEntityComponent, key)
		}
	}

	s.generation++
	event := s.newEvent(storeevent.StoreDiff{
		Kind:              storeevent.Deletion,
		ChunkID:           id,
		Entity:            c.Entity(),
		IsStatic:          c.IsStatic(),
		PerTimelineRanges: timeRangesOf(c),
		Components:        components,
	})

	s.logger.Info("chunk deleted", "chunk", id.String(), "entity", entity, "generation", s.generation)

	s.bus.Publish(event)
	return event, nil
}

func (s *Store) newEvent(diff storeevent.StoreDiff) storeevent.StoreEvent {
	s.nextEvent++
	return storeevent.StoreEvent{
		StoreID:    s.storeID,
		Generation: s.generation,
		EventID:    s.nextEvent,
		Diff:       diff,
	}
}

// LatestAtRelevantChunks returns a superset of the chunks that might
// answer a latest-at query for (entity, timeline, component) at or
// before t: every temporal chunk in the per-key ordered list whose
// range_min ≤ t, plus the static chunk for (entity, component) if any
// — static chunks are always returned and dominate temporal results
// at merge time. Never fails; an unknown key produces an empty slice.
func (s *Store) LatestAtRelevantChunks(entity entitypath.Path, tl timeline.Timeline, d component.Descriptor, t timeline.TimeInt) []*chunk.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := entityTimelineComponentKey{entity: entity.String(), timeline: tl, descriptor: d}
	entries := s.byEntityTimelineComponent[key]

	idx := sort.Search(len(entries), func(i int) bool { return entries[i].rangeMin > t })

	out := make([]*chunk.Chunk, 0, idx+1)
	for i := 0; i < idx; i++ {
		if c, ok := s.chunks[entries[i].chunkID]; ok {
			out = append(out, c)
		}
	}

	if staticID, ok := s.staticByEntityComponent[staticKey{entity: entity.String(), descriptor: d}]; ok {
		if c, ok := s.chunks[staticID]; ok {
			out = append(out, c)
		}
	}
	return out
}

// RangeRelevantChunks returns a superset of the chunks that might
// answer a range query for (entity, timeline, component) over r: every
// temporal chunk in the per-key ordered list whose range could
// intersect r, plus the static chunk if any. Never fails.
func (s *Store) RangeRelevantChunks(entity entitypath.Path, tl timeline.Timeline, d component.Descriptor, r timeline.TimeRange) []*chunk.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := entityTimelineComponentKey{entity: entity.String(), timeline: tl, descriptor: d}
	entries := s.byEntityTimelineComponent[key]

	var out []*chunk.Chunk
	for _, e := range entries {
		c, ok := s.chunks[e.chunkID]
		if !ok {
			continue
		}
		rng := rangeOf(c, tl)
		if rng.Intersects(r) {
			out = append(out, c)
		}
	}

	if staticID, ok := s.staticByEntityComponent[staticKey{entity: entity.String(), descriptor: d}]; ok {
		if c, ok := s.chunks[staticID]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Chunk looks up a chunk by ID.
func (s *Store) Chunk(id chunk.ChunkID) (*chunk.Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[id]
	return c, ok
}

// Entities returns every entity path currently known to the store.
func (s *Store) Entities() []entitypath.Path {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entitypath.Path, 0, len(s.byEntity))
	for e := range s.byEntity {
		out = append(out, entitypath.New(e))
	}
	return out
}

func rangeOf(c *chunk.Chunk, tl timeline.Timeline) timeline.TimeRange {
	min := timeline.Max
	max := timeline.Min
	for i := 0; i < c.NumRows(); i++ {
		v, ok := c.TimeAt(tl, i)
		if !ok {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min > max {
		return timeline.TimeRange{}
	}
	return timeline.TimeRange{Min: min, Max: max}
}

func timeRangesOf(c *chunk.Chunk) map[timeline.Timeline]timeline.TimeRange {
	out := make(map[timeline.Timeline]timeline.TimeRange, len(c.Timelines()))
	for _, tl := range c.Timelines() {
		out[tl] = rangeOf(c, tl)
	}
	return out
}
