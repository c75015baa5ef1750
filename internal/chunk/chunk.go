// Package chunk implements the immutable, sorted columnar batch that
// is chronostore's unit of storage and unit of transport: one entity,
// N timelines, N components, N rows.
package chunk

import (
	"sort"
	"time"

	"github.com/rerun-io/rerun-sub038/internal/column"
	"github.com/rerun-io/rerun-sub038/internal/component"
	"github.com/rerun-io/rerun-sub038/internal/entitypath"
	"github.com/rerun-io/rerun-sub038/internal/rowid"
	"github.com/rerun-io/rerun-sub038/internal/timeline"
)

// Now is injectable for deterministic tests, mirroring the rest of
// the module's clock-injection convention.
var Now = time.Now

// Chunk is an immutable columnar batch belonging to exactly one
// entity. Its rows carry a common timepoint shape: every row is
// stamped on the same set of timelines (§3.5), though individual
// component cells may be null for any row.
//
// A Chunk never mutates after New returns. Every operation below that
// "changes" a chunk (SortBy, RowRange, LatestAt, Densify) returns a
// new Chunk; the sort-state cache is therefore always consistent with
// its own Chunk value and never needs invalidation in place.
type Chunk struct {
	id     ChunkID
	entity entitypath.Path

	rowIDs        []rowid.RowID
	timeCols      map[timeline.Timeline]*column.TimeColumn
	componentCols map[component.Descriptor]*column.Column

	meta Meta

	sortedByRowID    bool
	sortedByTimeline *timeline.Timeline
}

// New builds a Chunk from pre-assembled columns: entity, time columns,
// and component columns. All columns and rowIDs must share the same
// length.
func New(
	entity entitypath.Path,
	rowIDs []rowid.RowID,
	timeCols map[timeline.Timeline]*column.TimeColumn,
	componentCols map[component.Descriptor]*column.Column,
) (*Chunk, error) {
	n := len(rowIDs)
	if n == 0 {
		return nil, ErrEmpty
	}

	seen := make(map[rowid.RowID]struct{}, n)
	for _, id := range rowIDs {
		if _, dup := seen[id]; dup {
			return nil, ErrDuplicateRowID
		}
		seen[id] = struct{}{}
	}

	names := make(map[string]timeline.Type, len(timeCols))
	for tl, col := range timeCols {
		if col.Len() != n {
			return nil, ErrShapeMismatch
		}
		if existing, ok := names[tl.Name]; ok && existing != tl.Typ {
			return nil, ErrTimelineTypeConflict
		}
		names[tl.Name] = tl.Typ
	}

	for _, col := range componentCols {
		if col.Len() != n {
			return nil, ErrShapeMismatch
		}
	}

	tcCopy := make(map[timeline.Timeline]*column.TimeColumn, len(timeCols))
	for k, v := range timeCols {
		tcCopy[k] = v
	}
	ccCopy := make(map[component.Descriptor]*column.Column, len(componentCols))
	for k, v := range componentCols {
		ccCopy[k] = v
	}

	c := &Chunk{
		id:            NewChunkID(),
		entity:        entity,
		rowIDs:        append([]rowid.RowID(nil), rowIDs...),
		timeCols:      tcCopy,
		componentCols: ccCopy,
	}
	c.meta = Meta{
		ID:          c.id,
		NumRows:     n,
		IsStatic:    len(tcCopy) == 0,
		ByteSize:    estimateByteSize(n, len(tcCopy), len(ccCopy)),
		CreatedAtNs: Now().UnixNano(),
	}
	return c, nil
}

// NewFromRows is a row-oriented convenience wrapper over New: every
// Row must be stamped on the same set of timelines (the dense
// timepoint invariant chunk columns require), or ErrShapeMismatch is
// returned.
func NewFromRows(entity entitypath.Path, rows []Row) (*Chunk, error) {
	if len(rows) == 0 {
		return nil, ErrEmpty
	}

	rowIDs := make([]rowid.RowID, len(rows))
	for i, r := range rows {
		rowIDs[i] = r.RowID
	}

	var shape []timeline.Timeline
	for tl := range rows[0].Stamps {
		shape = append(shape, tl)
	}
	sort.Slice(shape, func(i, j int) bool { return shape[i].Name < shape[j].Name })

	for _, r := range rows {
		if len(r.Stamps) != len(shape) {
			return nil, ErrShapeMismatch
		}
		for _, tl := range shape {
			if _, ok := r.Stamps[tl]; !ok {
				return nil, ErrShapeMismatch
			}
		}
	}

	timeCols := make(map[timeline.Timeline]*column.TimeColumn, len(shape))
	for _, tl := range shape {
		values := make([]int64, len(rows))
		for i, r := range rows {
			values[i] = int64(r.Stamps[tl])
		}
		timeCols[tl] = column.NewTimeColumn(values)
	}

	descriptors := make(map[component.Descriptor]struct{})
	for _, r := range rows {
		for d := range r.Cells {
			descriptors[d] = struct{}{}
		}
	}
	componentCols := make(map[component.Descriptor]*column.Column, len(descriptors))
	for d := range descriptors {
		cells := make([]column.Cell, len(rows))
		for i, r := range rows {
			cells[i] = r.Cells[d]
		}
		componentCols[d] = column.FromCells(cells)
	}

	return New(entity, rowIDs, timeCols, componentCols)
}

func estimateByteSize(numRows, numTimeCols, numComponentCols int) int {
	const rowIDSize = 16
	const timeCellSize = 8
	const componentCellOverhead = 16 // validity bit + pointer-sized payload, a rough estimate
	return numRows * (rowIDSize + numTimeCols*timeCellSize + numComponentCols*componentCellOverhead)
}

// ID returns the chunk's stable identifier.
func (c *Chunk) ID() ChunkID { return c.id }

// Entity returns the entity path this chunk belongs to.
func (c *Chunk) Entity() entitypath.Path { return c.entity }

// NumRows returns the number of rows, always ≥ 1.
func (c *Chunk) NumRows() int { return c.meta.NumRows }

// IsStatic reports whether the chunk carries no time columns.
func (c *Chunk) IsStatic() bool { return c.meta.IsStatic }

// Meta returns the chunk's size/creation metadata.
func (c *Chunk) Meta() Meta { return c.meta }

// Timelines returns the set of timelines this chunk is stamped on.
func (c *Chunk) Timelines() []timeline.Timeline {
	out := make([]timeline.Timeline, 0, len(c.timeCols))
	for tl := range c.timeCols {
		out = append(out, tl)
	}
	return out
}

// Components returns the set of component descriptors this chunk carries.
func (c *Chunk) Components() []component.Descriptor {
	out := make([]component.Descriptor, 0, len(c.componentCols))
	for d := range c.componentCols {
		out = append(out, d)
	}
	return out
}

// HasComponent reports whether the chunk carries a column for d.
func (c *Chunk) HasComponent(d component.Descriptor) bool {
	_, ok := c.componentCols[d]
	return ok
}

// RowID returns the RowId of row i.
func (c *Chunk) RowID(i int) rowid.RowID { return c.rowIDs[i] }

// TimeAt returns the timepoint value of row i on tl, or (0, false) if
// the chunk does not carry tl at all.
func (c *Chunk) TimeAt(tl timeline.Timeline, i int) (timeline.TimeInt, bool) {
	col, ok := c.timeCols[tl]
	if !ok {
		return 0, false
	}
	return timeline.TimeInt(col.Get(i)), true
}

// Cell returns the value of component d at row i, and whether it is
// present (non-null).
func (c *Chunk) Cell(d component.Descriptor, i int) (column.Cell, bool) {
	col, ok := c.componentCols[d]
	if !ok {
		return nil, false
	}
	return col.Get(i)
}

// IsSortedBy reports whether the chunk is currently known to be
// sorted ascending by tl (tie-broken by RowId). The flag is
// authoritative for this Chunk value: it is set only by SortBy and
// carried over to sub-chunks sliced from a sorted chunk; a chunk built
// by New reports false for every timeline.
func (c *Chunk) IsSortedBy(tl timeline.Timeline) bool {
	return c.sortedByTimeline != nil && *c.sortedByTimeline == tl
}

// IsSortedByRowID reports whether the chunk is sorted by RowId alone.
func (c *Chunk) IsSortedByRowID() bool {
	return c.sortedByRowID
}

// SortBy returns a new chunk with rows reordered ascending by their
// value on tl, tie-broken by RowId. If tl is not present on this
// chunk, SortBy is a no-op that returns c.
// The sort permutation is computed once and the result caches its own
// sorted-by state; since chunks are immutable, that cache can never go
// stale.
func (c *Chunk) SortBy(tl timeline.Timeline) *Chunk {
	col, ok := c.timeCols[tl]
	if !ok {
		return c
	}
	if c.IsSortedBy(tl) {
		return c
	}

	n := c.NumRows()
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	values := col.Values()
	sort.Slice(perm, func(i, j int) bool {
		a, b := perm[i], perm[j]
		if values[a] != values[b] {
			return values[a] < values[b]
		}
		return c.rowIDs[a].Less(c.rowIDs[b])
	})

	out := c.permute(perm)
	out.sortedByTimeline = &tl
	out.sortedByRowID = isSortedByRowID(out.rowIDs)
	return out
}

// SortByRowID returns a new chunk with rows reordered ascending by
// RowId alone.
func (c *Chunk) SortByRowID() *Chunk {
	if c.sortedByRowID {
		return c
	}
	n := c.NumRows()
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	sort.Slice(perm, func(i, j int) bool {
		return c.rowIDs[perm[i]].Less(c.rowIDs[perm[j]])
	})
	out := c.permute(perm)
	out.sortedByRowID = true
	return out
}

func isSortedByRowID(ids []rowid.RowID) bool {
	for i := 1; i < len(ids); i++ {
		if !ids[i-1].Less(ids[i]) {
			return false
		}
	}
	return true
}

// permute returns a new Chunk with every column (time, component,
// RowId) reindexed by perm, applied uniformly across all of them.
func (c *Chunk) permute(perm []int) *Chunk {
	newRowIDs := make([]rowid.RowID, len(perm))
	for dst, src := range perm {
		newRowIDs[dst] = c.rowIDs[src]
	}

	timeCols := make(map[timeline.Timeline]*column.TimeColumn, len(c.timeCols))
	for tl, col := range c.timeCols {
		timeCols[tl] = col.Take(perm)
	}
	componentCols := make(map[component.Descriptor]*column.Column, len(c.componentCols))
	for d, col := range c.componentCols {
		componentCols[d] = col.Take(perm)
	}

	out := &Chunk{
		id:            c.id,
		entity:        c.entity,
		rowIDs:        newRowIDs,
		timeCols:      timeCols,
		componentCols: componentCols,
		meta:          c.meta,
	}
	return out
}

// RowRange returns a sub-chunk containing only the rows whose time on
// tl falls within the inclusive range r. The receiver must already be
// sorted by tl (callers should SortBy first); if tl is absent,
// RowRange returns c unchanged (mirrors SortBy's
// no-op-on-absent-timeline convention).
func (c *Chunk) RowRange(tl timeline.Timeline, r timeline.TimeRange) *Chunk {
	col, ok := c.timeCols[tl]
	if !ok {
		return c
	}
	values := col.Values()
	lo := sort.Search(len(values), func(i int) bool {
		return timeline.TimeInt(values[i]) >= r.Min
	})
	hi := sort.Search(len(values), func(i int) bool {
		return timeline.TimeInt(values[i]) > r.Max
	})
	if lo >= hi {
		return c.sliceRows(lo, lo)
	}
	return c.sliceRows(lo, hi)
}

// LatestAt returns a sub-chunk of at most one row: the latest row on
// tl with time ≤ t, tie-broken by RowId. The receiver must already be
// sorted by tl. Rows whose value for the
// queried component is null are skipped by walking backwards — callers
// pass the component via LatestAtComponent; LatestAt alone only
// resolves the time-based candidate index and is used internally by
// the query package, which also needs per-component null-skipping.
func (c *Chunk) LatestAt(tl timeline.Timeline, t timeline.TimeInt) *Chunk {
	col, ok := c.timeCols[tl]
	if !ok {
		return c.sliceRows(0, 0)
	}
	values := col.Values()
	idx := sort.Search(len(values), func(i int) bool {
		return timeline.TimeInt(values[i]) > t
	}) - 1
	if idx < 0 {
		return c.sliceRows(0, 0)
	}
	return c.sliceRows(idx, idx+1)
}

// LatestAtComponent returns a sub-chunk of at most one row: the latest
// row on tl with time ≤ t and a non-null value for d, tie-broken by
// RowId. The receiver must already be sorted by tl.
func (c *Chunk) LatestAtComponent(tl timeline.Timeline, t timeline.TimeInt, d component.Descriptor) *Chunk {
	col, ok := c.timeCols[tl]
	if !ok {
		return c.sliceRows(0, 0)
	}
	comp, ok := c.componentCols[d]
	if !ok {
		return c.sliceRows(0, 0)
	}
	values := col.Values()
	idx := sort.Search(len(values), func(i int) bool {
		return timeline.TimeInt(values[i]) > t
	}) - 1
	if idx < 0 {
		return c.sliceRows(0, 0)
	}
	idx = comp.LastValid(idx)
	if idx < 0 {
		return c.sliceRows(0, 0)
	}
	return c.sliceRows(idx, idx+1)
}

// Densify returns a sub-chunk containing only the rows where d's cell
// is non-null.
func (c *Chunk) Densify(d component.Descriptor) *Chunk {
	comp, ok := c.componentCols[d]
	if !ok {
		return c.sliceRows(0, 0)
	}
	var keep []int
	for i := 0; i < c.NumRows(); i++ {
		if comp.IsValid(i) {
			keep = append(keep, i)
		}
	}
	return c.permuteSubset(keep)
}

// sliceRows returns a new Chunk over the half-open row range [lo, hi),
// preserving the receiver's sort-state flags (a contiguous slice of a
// sorted sequence is still sorted the same way).
func (c *Chunk) sliceRows(lo, hi int) *Chunk {
	newRowIDs := append([]rowid.RowID(nil), c.rowIDs[lo:hi]...)

	timeCols := make(map[timeline.Timeline]*column.TimeColumn, len(c.timeCols))
	for tl, col := range c.timeCols {
		timeCols[tl] = col.Slice(lo, hi)
	}
	componentCols := make(map[component.Descriptor]*column.Column, len(c.componentCols))
	for d, col := range c.componentCols {
		componentCols[d] = col.Slice(lo, hi)
	}

	meta := c.meta
	meta.NumRows = hi - lo
	meta.ByteSize = estimateByteSize(meta.NumRows, len(timeCols), len(componentCols))

	return &Chunk{
		id:               c.id,
		entity:           c.entity,
		rowIDs:           newRowIDs,
		timeCols:         timeCols,
		componentCols:    componentCols,
		meta:             meta,
		sortedByRowID:    c.sortedByRowID,
		sortedByTimeline: c.sortedByTimeline,
	}
}

// permuteSubset is like permute but for an arbitrary (already-ordered)
// index subset, used by Densify; it preserves sort-state flags since
// the subset retains the receiver's relative ordering.
func (c *Chunk) permuteSubset(keep []int) *Chunk {
	out := c.permute(keep)
	out.sortedByRowID = c.sortedByRowID
	out.sortedByTimeline = c.sortedByTimeline
	meta := c.meta
	meta.NumRows = len(keep)
	meta.ByteSize = estimateByteSize(meta.NumRows, len(out.timeCols), len(out.componentCols))
	out.meta = meta
	return out
}
