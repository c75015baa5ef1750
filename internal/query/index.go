// Package query implements the query engine: latest-at and range
// queries over a ChunkStore, plus the multi-component and within-row
// join primitives used to assemble typed rows out of
// independently-stored component columns.
package query

import (
	"github.com/rerun-io/rerun-sub038/internal/column"
	"github.com/rerun-io/rerun-sub038/internal/rowid"
	"github.com/rerun-io/rerun-sub038/internal/timeline"
)

// Index is the (time, RowId) pair every query result is ordered and
// deduplicated by.
type Index struct {
	Time  timeline.TimeInt
	RowID rowid.RowID
}

// StaticIndex builds the sentinel index used for static results.
func StaticIndex(id rowid.RowID) Index {
	return Index{Time: timeline.Static, RowID: id}
}

// Less orders indexes by time first, then RowId — the plain total
// order used when merging temporal candidates. It is NOT used to
// resolve static-vs-temporal precedence, which is RowId-only (see
// latestAtOne).
func (i Index) Less(other Index) bool {
	if i.Time != other.Time {
		return i.Time < other.Time
	}
	return i.RowID.Less(other.RowID)
}

// IsStatic reports whether this index denotes a static result.
func (i Index) IsStatic() bool {
	return i.Time.IsStatic()
}

// IndexedCell pairs a result cell with the index it was found at.
type IndexedCell struct {
	Index Index
	Cell  column.Cell
}
