package chunk

import (
	"errors"

	"github.com/rerun-io/rerun-sub038/internal/component"
	"github.com/rerun-io/rerun-sub038/internal/rowid"
	"github.com/rerun-io/rerun-sub038/internal/timeline"
)

var (
	// ErrShapeMismatch is returned when a chunk's time/component columns
	// disagree in length with its row count, or rows disagree on which
	// timelines they are stamped on (chunk rows share one timepoint shape).
	ErrShapeMismatch = errors.New("chunk: shape mismatch")
	// ErrEmpty is returned when constructing a chunk with zero rows.
	ErrEmpty = errors.New("chunk: empty")
	// ErrDuplicateRowID is returned when two rows in the same chunk carry
	// the same RowId.
	ErrDuplicateRowID = errors.New("chunk: duplicate row id")
	// ErrTimelineTypeConflict is returned when a timeline name is used
	// with two different Types within the same chunk.
	ErrTimelineTypeConflict = errors.New("chunk: timeline type conflict")
)

// ChunkID identifies a chunk; an alias of rowid.ChunkID so callers
// elsewhere in the module never need to import rowid directly for it.
type ChunkID = rowid.ChunkID

// NewChunkID allocates a fresh ChunkID.
func NewChunkID() ChunkID {
	return rowid.NewChunkID()
}

// Row is a convenience, row-oriented view of one observation: a RowId
// plus its stamps on zero or more timelines and its cells for zero or
// more components. NewFromRows converts a batch of Rows into the
// columnar form Chunk actually stores.
type Row struct {
	RowID  rowid.RowID
	Stamps map[timeline.Timeline]timeline.TimeInt
	Cells  map[component.Descriptor]any
}

// Meta carries a chunk's size estimate and creation timestamp (spec
// §3.5: "chunks carry their own byte-size estimate... and creation
// timestamp").
type Meta struct {
	ID          ChunkID
	NumRows     int
	IsStatic    bool
	ByteSize    int
	CreatedAtNs int64
}
