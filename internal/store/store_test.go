package store

import (
	"testing"

	"github.com/rerun-io/rerun-sub038/internal/chunk"
	"github.com/rerun-io/rerun-sub038/internal/column"
	"github.com/rerun-io/rerun-sub038/internal/component"
	"github.com/rerun-io/rerun-sub038/internal/entitypath"
	"github.com/rerun-io/rerun-sub038/internal/rowid"
	"github.com/rerun-io/rerun-sub038/internal/storeevent"
	"github.com/rerun-io/rerun-sub038/internal/timeline"
)

var frame = timeline.New("frame", timeline.Sequence)

func colorDescriptor() component.Descriptor {
	return component.Bare("Color")
}

func rid(n uint64) rowid.RowID {
	return rowid.RowID{NanosSinceEpoch: n}
}

func temporalChunk(t *testing.T, entity entitypath.Path, rowIDs []rowid.RowID, times []int64, cells []column.Cell) *chunk.Chunk {
	t.Helper()
	timeCols := map[timeline.Timeline]*column.TimeColumn{frame: column.NewTimeColumn(times)}
	componentCols := map[component.Descriptor]*column.Column{colorDescriptor(): column.FromCells(cells)}
	c, err := chunk.New(entity, rowIDs, timeCols, componentCols)
	if err != nil {
		t.Fatalf("chunk.New() error: %v", err)
	}
	return c
}

func staticChunk(t *testing.T, entity entitypath.Path, id rowid.RowID, value column.Cell) *chunk.Chunk {
	t.Helper()
	componentCols := map[component.Descriptor]*column.Column{colorDescriptor(): column.FromCells([]column.Cell{value})}
	c, err := chunk.New(entity, []rowid.RowID{id}, nil, componentCols)
	if err != nil {
		t.Fatalf("chunk.New() error: %v", err)
	}
	return c
}

func TestInsertChunkEmitsAdditionAndBumpsGeneration(t *testing.T) {
	s := New(Config{StoreID: "test"})
	c := temporalChunk(t, entitypath.New("/a"), []rowid.RowID{rid(1)}, []int64{10}, []column.Cell{"red"})

	event := s.InsertChunk(c)
	if event.Diff.Kind != storeevent.Addition {
		t.Fatalf("expected Addition, got %v", event.Diff.Kind)
	}
	if s.Generation() != 1 {
		t.Fatalf("Generation() = %d, want 1", s.Generation())
	}
	if event.Diff.ChunkID != c.ID() {
		t.Fatal("event should reference the inserted chunk")
	}
}

func TestInsertChunkPublishesToSubscribers(t *testing.T) {
	s := New(Config{})
	var received []storeevent.StoreEvent
	s.Subscribe(storeevent.SubscriberFunc(func(events []storeevent.StoreEvent) {
		received = append(received, events...)
	}))

	c := temporalChunk(t, entitypath.New("/a"), []rowid.RowID{rid(1)}, []int64{10}, []column.Cell{"red"})
	s.InsertChunk(c)

	if len(received) != 1 {
		t.Fatalf("received %d events, want 1", len(received))
	}
}

func TestLatestAtRelevantChunksFiltersByRangeMin(t *testing.T) {
	s := New(Config{})
	entity := entitypath.New("/a")
	early := temporalChunk(t, entity, []rowid.RowID{rid(1)}, []int64{10}, []column.Cell{"red"})
	late := temporalChunk(t, entity, []rowid.RowID{rid(2)}, []int64{100}, []column.Cell{"blue"})
	s.InsertChunk(early)
	s.InsertChunk(late)

	chunks := s.LatestAtRelevantChunks(entity, frame, colorDescriptor(), timeline.TimeInt(50))
	if len(chunks) != 1 || chunks[0].ID() != early.ID() {
		t.Fatalf("expected only the early chunk, got %d chunks", len(chunks))
	}

	all := s.LatestAtRelevantChunks(entity, frame, colorDescriptor(), timeline.TimeInt(200))
	if len(all) != 2 {
		t.Fatalf("expected both chunks at t=200, got %d", len(all))
	}
}

func TestLatestAtRelevantChunksAlwaysIncludesStatic(t *testing.T) {
	s := New(Config{})
	entity := entitypath.New("/a")
	s.InsertChunk(staticChunk(t, entity, rid(1), "green"))

	chunks := s.LatestAtRelevantChunks(entity, frame, colorDescriptor(), timeline.TimeInt(-1000))
	if len(chunks) != 1 {
		t.Fatalf("expected the static chunk to be returned, got %d", len(chunks))
	}
}

func TestStaticMonotonicOverwrite(t *testing.T) {
	s := New(Config{})
	entity := entitypath.New("/a")

	s.InsertChunk(staticChunk(t, entity, rid(5), "green"))
	s.InsertChunk(staticChunk(t, entity, rid(3), "yellow")) // smaller RowId, should not win
	s.InsertChunk(staticChunk(t, entity, rid(9), "blue"))   // larger RowId, should win

	key := staticKey{entity: entity.String(), descriptor: colorDescriptor()}
	winnerID, ok := s.staticByEntityComponent[key]
	if !ok {
		t.Fatal("expected a static winner")
	}
	winner, _ := s.Chunk(winnerID)
	v, _ := winner.Cell(colorDescriptor(), 0)
	if v != "blue" {
		t.Fatalf("static winner = %v, want blue (largest RowId)", v)
	}
}

func TestDeleteChunkRemovesFromIndexes(t *testing.T) {
	s := New(Config{})
	entity := entitypath.New("/a")
	c := temporalChunk(t, entity, []rowid.RowID{rid(1)}, []int64{10}, []column.Cell{"red"})
	s.InsertChunk(c)

	event, err := s.DeleteChunk(c.ID())
	if err != nil {
		t.Fatalf("DeleteChunk() error: %v", err)
	}
	if event.Diff.Kind != storeevent.Deletion {
		t.Fatalf("expected Deletion, got %v", event.Diff.Kind)
	}

	if _, ok := s.Chunk(c.ID()); ok {
		t.Fatal("chunk should be gone after delete")
	}
	if chunks := s.LatestAtRelevantChunks(entity, frame, colorDescriptor(), timeline.TimeInt(1000)); len(chunks) != 0 {
		t.Fatalf("expected no relevant chunks after delete, got %d", len(chunks))
	}
}

func TestDeleteChunkNotFound(t *testing.T) {
	s := New(Config{})
	_, err := s.DeleteChunk(chunk.NewChunkID())
	if err != ErrChunkNotFound {
		t.Fatalf("err = %v, want ErrChunkNotFound", err)
	}
}

func TestRangeRelevantChunksIntersection(t *testing.T) {
	s := New(Config{})
	entity := entitypath.New("/a")
	c1 := temporalChunk(t, entity, []rowid.RowID{rid(1)}, []int64{10}, []column.Cell{"red"})
	c2 := temporalChunk(t, entity, []rowid.RowID{rid(2)}, []int64{100}, []column.Cell{"blue"})
	s.InsertChunk(c1)
	s.InsertChunk(c2)

	chunks := s.RangeRelevantChunks(entity, frame, colorDescriptor(), timeline.NewRange(timeline.TimeInt(0), timeline.TimeInt(50)))
	if len(chunks) != 1 || chunks[0].ID() != c1.ID() {
		t.Fatalf("expected only c1 in range, got %d chunks", len(chunks))
	}
}

func TestEntities(t *testing.T) {
	s := New(Config{})
	s.InsertChunk(temporalChunk(t, entitypath.New("/a"), []rowid.RowID{rid(1)}, []int64{10}, []column.Cell{"red"}))
	s.InsertChunk(temporalChunk(t, entitypath.New("/b"), []rowid.RowID{rid(2)}, []int64{10}, []column.Cell{"blue"}))

	entities := s.Entities()
	if len(entities) != 2 {
		t.Fatalf("Entities() = %v, want 2 entries", entities)
	}
}
