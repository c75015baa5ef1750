package query

import (
	"github.com/rerun-io/rerun-sub038/internal/chunk"
	"github.com/rerun-io/rerun-sub038/internal/column"
	"github.com/rerun-io/rerun-sub038/internal/component"
	"github.com/rerun-io/rerun-sub038/internal/entitypath"
	"github.com/rerun-io/rerun-sub038/internal/rowid"
	"github.com/rerun-io/rerun-sub038/internal/store"
	"github.com/rerun-io/rerun-sub038/internal/timeline"
)

// LatestAtResult is one component's resolved value.
type LatestAtResult struct {
	Index Index
	Cell  column.Cell
}

// LatestAtResults is the per-component outcome of a latest-at query,
// plus the max index across components used downstream as a cache key.
type LatestAtResults struct {
	Results  map[component.Descriptor]LatestAtResult
	MaxIndex Index
}

// LatestAt returns, for each requested component, the most recent row
// with a non-null value for that component on entity, at or before t
// on tl. A static value wins over the temporal candidate for the same
// (entity, component) only when its RowId is greater; the choice is
// made by RowId rather than by time.
func LatestAt(s *store.Store, tl timeline.Timeline, t timeline.TimeInt, entity entitypath.Path, components []component.Descriptor) LatestAtResults {
	results := make(map[component.Descriptor]LatestAtResult, len(components))
	var maxIndex Index
	haveMax := false

	for _, d := range components {
		result, ok := latestAtOne(s, tl, t, entity, d)
		if !ok {
			continue
		}
		results[d] = result
		if !haveMax || maxIndex.Less(result.Index) {
			maxIndex = result.Index
			haveMax = true
		}
	}

	return LatestAtResults{Results: results, MaxIndex: maxIndex}
}

func latestAtOne(s *store.Store, tl timeline.Timeline, t timeline.TimeInt, entity entitypath.Path, d component.Descriptor) (LatestAtResult, bool) {
	candidates := s.LatestAtRelevantChunks(entity, tl, d, t)

	var temporalBest LatestAtResult
	haveTemporal := false
	var staticBest LatestAtResult
	haveStatic := false

	for _, c := range candidates {
		if c.IsStatic() {
			id, cell, ok := latestStaticRow(c, d)
			if !ok {
				continue
			}
			if !haveStatic || id.Compare(staticBest.Index.RowID) > 0 {
				staticBest = LatestAtResult{Index: StaticIndex(id), Cell: cell}
				haveStatic = true
			}
			continue
		}

		sorted := c.SortBy(tl)
		sub := sorted.LatestAtComponent(tl, t, d)
		if sub.NumRows() != 1 {
			continue
		}
		timeVal, _ := sub.TimeAt(tl, 0)
		idx := Index{Time: timeVal, RowID: sub.RowID(0)}
		cell, _ := sub.Cell(d, 0)
		if !haveTemporal || temporalBest.Index.Less(idx) {
			temporalBest = LatestAtResult{Index: idx, Cell: cell}
			haveTemporal = true
		}
	}

	switch {
	case haveStatic && (!haveTemporal || staticBest.Index.RowID.Compare(temporalBest.Index.RowID) > 0):
		return staticBest, true
	case haveTemporal:
		return temporalBest, true
	default:
		return LatestAtResult{}, false
	}
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
