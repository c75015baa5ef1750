package query

import (
	"sort"

	"github.com/rerun-io/rerun-sub038/internal/component"
	"github.com/rerun-io/rerun-sub038/internal/entitypath"
	"github.com/rerun-io/rerun-sub038/internal/store"
	"github.com/rerun-io/rerun-sub038/internal/timeline"
)

// RangeResults is the per-component outcome of a range query: every
// matching row, ordered ascending by (time, RowId), static results
// first by convention since they conceptually precede and cover the
// whole window.
type RangeResults struct {
	Results map[component.Descriptor][]IndexedCell
}

// Range returns, for each requested component, every row whose time
// on tl falls within r, plus the single latest row strictly before
// r.Min when no row in the window already covers it — the
// "persistence prefix" that realizes "values are alive until the next
// write".
func Range(s *store.Store, tl timeline.Timeline, r timeline.TimeRange, entity entitypath.Path, components []component.Descriptor) RangeResults {
	results := make(map[component.Descriptor][]IndexedCell, len(components))
	for _, d := range components {
		results[d] = rangeOne(s, tl, r, entity, d)
	}
	return RangeResults{Results: results}
}

func rangeOne(s *store.Store, tl timeline.Timeline, r timeline.TimeRange, entity entitypath.Path, d component.Descriptor) []IndexedCell {
	candidates := s.RangeRelevantChunks(entity, tl, d, r)

	var staticEntry *IndexedCell
	var temporal []IndexedCell

	for _, c := range candidates {
		if c.IsStatic() {
			id, cell, ok := latestStaticRow(c, d)
			if !ok {
				continue
			}
			if staticEntry == nil || id.Compare(staticEntry.Index.RowID) > 0 {
				staticEntry = &IndexedCell{Index: StaticIndex(id), Cell: cell}
			}
			continue
		}

		sorted := c.SortBy(tl)
		windowed := sorted.RowRange(tl, r)
		dense := windowed.Densify(d)
		for i := 0; i < dense.NumRows(); i++ {
			timeVal, _ := dense.TimeAt(tl, i)
			cell, _ := dense.Cell(d, i)
			temporal = append(temporal, IndexedCell{
				Index: Index{Time: timeVal, RowID: dense.RowID(i)},
				Cell:  cell,
			})
		}
	}

	sort.Slice(temporal, func(i, j int) bool { return temporal[i].Index.Less(temporal[j].Index) })

	if needsPersistencePrefix(temporal, r) {
		if prefix, ok := latestAtOne(s, tl, r.Min-1, entity, d); ok {
			temporal = append([]IndexedCell{{Index: prefix.Index, Cell: prefix.Cell}}, temporal...)
		}
	}

	if staticEntry != nil {
		return append([]IndexedCell{*staticEntry}, temporal...)
	}
	return temporal
}

// needsPersistencePrefix reports whether the windowed result is
// missing a row at or before r.Min, and a real time strictly before
// r.Min even exists to look up (guards against underflowing Min).
func needsPersistencePrefix(temporal []IndexedCell, r timeline.TimeRange) bool {
	if r.Min <= timeline.Min {
		return false
	}
	if len(temporal) == 0 {
		return true
	}
	return temporal[0].Index.Time > r.Min
}
