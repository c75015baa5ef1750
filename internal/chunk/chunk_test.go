package chunk

import (
	"testing"

	"github.com/rerun-io/rerun-sub038/internal/column"
	"github.com/rerun-io/rerun-sub038/internal/component"
	"github.com/rerun-io/rerun-sub038/internal/entitypath"
	"github.com/rerun-io/rerun-sub038/internal/rowid"
	"github.com/rerun-io/rerun-sub038/internal/timeline"
)

var frame = timeline.New("frame", timeline.Sequence)

func posDescriptor() component.Descriptor {
	return component.Bare("Position3D")
}

func rid(n uint64) rowid.RowID {
	return rowid.RowID{NanosSinceEpoch: n, Counter: 0}
}

func buildChunk(t *testing.T, entity entitypath.Path, rowIDs []rowid.RowID, times []int64, cells []column.Cell) *Chunk {
	t.Helper()
	timeCols := map[timeline.Timeline]*column.TimeColumn{
		frame: column.NewTimeColumn(times),
	}
	componentCols := map[component.Descriptor]*column.Column{
		posDescriptor(): column.FromCells(cells),
	}
	c, err := New(entity, rowIDs, timeCols, componentCols)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestNewBasic(t *testing.T) {
	c := buildChunk(t, entitypath.New("/a"),
		[]rowid.RowID{rid(1), rid(2)},
		[]int64{10, 20},
		[]column.Cell{"p1", "p2"})

	if c.NumRows() != 2 {
		t.Fatalf("NumRows() = %d, want 2", c.NumRows())
	}
	if c.IsStatic() {
		t.Fatal("chunk with a time column should not be static")
	}
	if !c.HasComponent(posDescriptor()) {
		t.Fatal("expected component present")
	}
}

func TestNewEmpty(t *testing.T) {
	_, err := New(entitypath.New("/a"), nil, nil, nil)
	if err != ErrEmpty {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
}

func TestNewDuplicateRowID(t *testing.T) {
	timeCols := map[timeline.Timeline]*column.TimeColumn{
		frame: column.NewTimeColumn([]int64{10, 20}),
	}
	_, err := New(entitypath.New("/a"), []rowid.RowID{rid(1), rid(1)}, timeCols, nil)
	if err != ErrDuplicateRowID {
		t.Fatalf("err = %v, want ErrDuplicateRowID", err)
	}
}

func TestNewShapeMismatch(t *testing.T) {
	timeCols := map[timeline.Timeline]*column.TimeColumn{
		frame: column.NewTimeColumn([]int64{10}), // length 1, rowIDs length 2
	}
	_, err := New(entitypath.New("/a"), []rowid.RowID{rid(1), rid(2)}, timeCols, nil)
	if err != ErrShapeMismatch {
		t.Fatalf("err = %v, want ErrShapeMismatch", err)
	}
}

func TestStaticChunk(t *testing.T) {
	componentCols := map[component.Descriptor]*column.Column{
		posDescriptor(): column.FromCells([]column.Cell{"blue"}),
	}
	c, err := New(entitypath.New("/a"), []rowid.RowID{rid(1)}, nil, componentCols)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if !c.IsStatic() {
		t.Fatal("chunk with no time columns should be static")
	}
}

func TestSortByOrdersAscendingTieBreaksByRowID(t *testing.T) {
	c := buildChunk(t, entitypath.New("/a"),
		[]rowid.RowID{rid(3), rid(1), rid(2)},
		[]int64{10, 10, 5},
		[]column.Cell{"c3", "c1", "c2"})

	sorted := c.SortBy(frame)
	if !sorted.IsSortedBy(frame) {
		t.Fatal("expected IsSortedBy(frame) after SortBy")
	}

	wantOrder := []rowid.RowID{rid(2), rid(1), rid(3)} // time 5, then time 10 tie-broken by RowId asc
	for i, want := range wantOrder {
		if got := sorted.RowID(i); got != want {
			t.Errorf("row %d = %v, want %v", i, got, want)
		}
	}
}

func TestSortByAbsentTimelineIsNoOp(t *testing.T) {
	c := buildChunk(t, entitypath.New("/a"), []rowid.RowID{rid(1)}, []int64{10}, []column.Cell{"p"})
	other := timeline.New("other", timeline.Sequence)
	if got := c.SortBy(other); got != c {
		t.Fatal("SortBy on an absent timeline should return the receiver unchanged")
	}
}

func TestRowRange(t *testing.T) {
	c := buildChunk(t, entitypath.New("/a"),
		[]rowid.RowID{rid(1), rid(2), rid(3), rid(4)},
		[]int64{10, 20, 30, 40},
		[]column.Cell{"a", "b", "c", "d"})
	sorted := c.SortBy(frame)

	sub := sorted.RowRange(frame, timeline.NewRange(timeline.TimeInt(15), timeline.TimeInt(35)))
	if sub.NumRows() != 2 {
		t.Fatalf("RowRange NumRows = %d, want 2", sub.NumRows())
	}
	if v, _ := sub.Cell(posDescriptor(), 0); v != "b" {
		t.Errorf("RowRange()[0] = %v, want b", v)
	}
}

func TestLatestAt(t *testing.T) {
	c := buildChunk(t, entitypath.New("/a"),
		[]rowid.RowID{rid(1), rid(2), rid(3)},
		[]int64{10, 20, 30},
		[]column.Cell{"a", "b", "c"})
	sorted := c.SortBy(frame)

	sub := sorted.LatestAt(frame, timeline.TimeInt(25))
	if sub.NumRows() != 1 {
		t.Fatalf("LatestAt NumRows = %d, want 1", sub.NumRows())
	}
	if v, _ := sub.Cell(posDescriptor(), 0); v != "b" {
		t.Errorf("LatestAt() = %v, want b", v)
	}
}

func TestLatestAtBeforeAllRows(t *testing.T) {
	c := buildChunk(t, entitypath.New("/a"), []rowid.RowID{rid(1)}, []int64{10}, []column.Cell{"a"})
	sorted := c.SortBy(frame)
	sub := sorted.LatestAt(frame, timeline.TimeInt(5))
	if sub.NumRows() != 0 {
		t.Fatalf("LatestAt before all rows should return empty, got %d rows", sub.NumRows())
	}
}

func TestLatestAtComponentSkipsNulls(t *testing.T) {
	c := buildChunk(t, entitypath.New("/a"),
		[]rowid.RowID{rid(1), rid(2), rid(3)},
		[]int64{10, 20, 30},
		[]column.Cell{"a", nil, "c"})
	sorted := c.SortBy(frame)

	sub := sorted.LatestAtComponent(frame, timeline.TimeInt(25), posDescriptor())
	if sub.NumRows() != 1 {
		t.Fatalf("NumRows = %d, want 1", sub.NumRows())
	}
	if v, _ := sub.Cell(posDescriptor(), 0); v != "a" {
		t.Errorf("expected to skip the null row and land on 'a', got %v", v)
	}
}

func TestDensify(t *testing.T) {
	c := buildChunk(t, entitypath.New("/a"),
		[]rowid.RowID{rid(1), rid(2), rid(3)},
		[]int64{10, 20, 30},
		[]column.Cell{"a", nil, "c"})

	dense := c.Densify(posDescriptor())
	if dense.NumRows() != 2 {
		t.Fatalf("Densify NumRows = %d, want 2", dense.NumRows())
	}
	if v, _ := dense.Cell(posDescriptor(), 0); v != "a" {
		t.Errorf("Densify()[0] = %v, want a", v)
	}
	if v, _ := dense.Cell(posDescriptor(), 1); v != "c" {
		t.Errorf("Densify()[1] = %v, want c", v)
	}
}

func TestNewFromRowsShapeMismatch(t *testing.T) {
	rows := []Row{
		{RowID: rid(1), Stamps: map[timeline.Timeline]timeline.TimeInt{frame: 10}},
		{RowID: rid(2), Stamps: map[timeline.Timeline]timeline.TimeInt{}},
	}
	_, err := NewFromRows(entitypath.New("/a"), rows)
	if err != ErrShapeMismatch {
		t.Fatalf("err = %v, want ErrShapeMismatch", err)
	}
}

func TestNewFromRowsBuildsColumns(t *testing.T) {
	d := posDescriptor()
	rows := []Row{
		{RowID: rid(1), Stamps: map[timeline.Timeline]timeline.TimeInt{frame: 10}, Cells: map[component.Descriptor]any{d: "a"}},
		{RowID: rid(2), Stamps: map[timeline.Timeline]timeline.TimeInt{frame: 20}, Cells: map[component.Descriptor]any{d: "b"}},
	}
	c, err := NewFromRows(entitypath.New("/a"), rows)
	if err != nil {
		t.Fatalf("NewFromRows() error: %v", err)
	}
	if c.NumRows() != 2 {
		t.Fatalf("NumRows() = %d, want 2", c.NumRows())
	}
	tv, ok := c.TimeAt(frame, 0)
	if !ok || tv != timeline.TimeInt(10) {
		t.Fatalf("TimeAt(frame, 0) = %v, %v", tv, ok)
	}
}

func TestTimelineTypeConflict(t *testing.T) {
	seqFrame := timeline.New("frame", timeline.Sequence)
	timeFrame := timeline.New("frame", timeline.Time)
	timeCols := map[timeline.Timeline]*column.TimeColumn{
		seqFrame:  column.NewTimeColumn([]int64{1}),
		timeFrame: column.NewTimeColumn([]int64{1}),
	}
	_, err := New(entitypath.New("/a"), []rowid.RowID{rid(1)}, timeCols, nil)
	if err != ErrTimelineTypeConflict {
		t.Fatalf("err = %v, want ErrTimelineTypeConflict", err)
	}
}
