package query

import "github.com/rerun-io/rerun-sub038/internal/column"

// ZippedRow is one row of a RangeZip1xN join: the primary's own index
// and cell, plus for each secondary stream the value at the largest
// index ≤ the primary's, or nil if that secondary has never had a
// value by that point.
type ZippedRow struct {
	Index          Index
	PrimaryCell    column.Cell
	SecondaryCells []column.Cell
}

// RangeZip1xN performs the "last-write-wins forward fill" join: one
// primary stream of indexed values and N secondary streams of
// optional indexed values, all sorted ascending by Index. For each
// primary index, it pairs the primary value with, for every
// secondary, the secondary value at the largest index ≤ the primary
// index.
//
// Each secondary pointer only ever advances forward across the whole
// call, so the join runs in O(len(primary) + Σ len(secondary)) time —
// the same single-forward-pass shape as the package's cursor merge,
// specialized to one driving stream instead of a k-way fan-in.
func RangeZip1xN(primary []IndexedCell, secondaries [][]IndexedCell) []ZippedRow {
	secPos := make([]int, len(secondaries))
	out := make([]ZippedRow, len(primary))

	for pi, p := range primary {
		row := ZippedRow{
			Index:          p.Index,
			PrimaryCell:    p.Cell,
			SecondaryCells: make([]column.Cell, len(secondaries)),
		}
		for si, sec := range secondaries {
			for secPos[si] < len(sec) && !p.Index.Less(sec[secPos[si]].Index) {
				secPos[si]++
			}
			if secPos[si] > 0 {
				row.SecondaryCells[si] = sec[secPos[si]-1].Cell
			}
		}
		out[pi] = row
	}
	return out
}

// ClampedZip1xN performs the instance-level join within a single row,
// where the primary is a variable-length array (e.g. point positions)
// and each secondary is a same-or-shorter array whose last element is
// repeated to pad out to the primary's length (e.g. one color applied
// to many points). A secondary with zero elements pads every instance
// with nil.
func ClampedZip1xN(primaryLen int, secondaries [][]column.Cell) [][]column.Cell {
	out := make([][]column.Cell, len(secondaries))
	for si, sec := range secondaries {
		padded := make([]column.Cell, primaryLen)
		for i := 0; i < primaryLen; i++ {
			switch {
			case i < len(sec):
				padded[i] = sec[i]
			case len(sec) > 0:
				padded[i] = sec[len(sec)-1]
			default:
				padded[i] = nil
			}
		}
		out[si] = padded
	}
	return out
}
