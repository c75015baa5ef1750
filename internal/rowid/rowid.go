// Package rowid provides the two identifier types chunks are built
// around: RowID, a 128-bit monotonically-increasing row identifier,
// and ChunkID, the unit-of-storage identifier.
package rowid

import (
	"encoding/base32"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RowID is a globally-unique, monotonically-increasing row identifier
// encoding (nanoseconds_since_epoch, counter). It is the tie-breaker
// when two rows share the same time on a timeline, and defines the
// global total order used for deterministic replay and dedup.
//
// A (time_ns, inc) pair rather than a UUID's random/node bits, so
// ordering falls straight out of the struct fields.
type RowID struct {
	NanosSinceEpoch uint64
	Counter         uint64
}

// Compare returns -1, 0, or 1 if r sorts before, equal to, or after
// other, ordered first by NanosSinceEpoch then by Counter.
func (r RowID) Compare(other RowID) int {
	switch {
	case r.NanosSinceEpoch < other.NanosSinceEpoch:
		return -1
	case r.NanosSinceEpoch > other.NanosSinceEpoch:
		return 1
	case r.Counter < other.Counter:
		return -1
	case r.Counter > other.Counter:
		return 1
	default:
		return 0
	}
}

// Less reports whether r sorts strictly before other.
func (r RowID) Less(other RowID) bool { return r.Compare(other) < 0 }

// String renders the RowID as "<nanos>-<counter>" for logs and tests.
func (r RowID) String() string {
	return fmt.Sprintf("%d-%d", r.NanosSinceEpoch, r.Counter)
}

// IsZero reports whether r is the zero value.
func (r RowID) IsZero() bool {
	return r.NanosSinceEpoch == 0 && r.Counter == 0
}

// Generator produces strictly-increasing RowIDs. The zero value is
// ready to use; a Generator must not be copied after first use.
//
// Monotonicity within one process is by construction: under the lock,
// a new RowID either advances to the current wall-clock nanosecond
// (resetting the counter) or, if time has not advanced past the last
// issued nanosecond, bumps the counter instead. This guarantees
// Generator never emits two equal RowIDs and never goes backwards even
// under a non-monotonic clock source or rapid-fire calls within the
// same nanosecond.
type Generator struct {
	mu   sync.Mutex
	now  func() time.Time
	last RowID
}

// NewGenerator creates a Generator. If now is nil, time.Now is used.
func NewGenerator(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now}
}

// Next returns the next RowID, guaranteed strictly greater than every
// RowID previously returned by this Generator.
func (g *Generator) Next() RowID {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now
	if now == nil {
		now = time.Now
	}
	nanos := uint64(now().UnixNano())
	if nanos > g.last.NanosSinceEpoch {
		g.last = RowID{NanosSinceEpoch: nanos, Counter: 0}
	} else {
		g.last = RowID{NanosSinceEpoch: g.last.NanosSinceEpoch, Counter: g.last.Counter + 1}
	}
	return g.last
}

// chunkIDEncoding is base32hex (RFC 4648) lowercase without padding,
// alphabet 0-9a-v preserves lexicographic sort order.
var chunkIDEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// ChunkID uniquely identifies a chunk. It is a UUIDv7 (16 bytes) whose
// string representation is 26-char lowercase base32hex,
// lexicographically sortable by creation time.
type ChunkID [16]byte

// NewChunkID creates a ChunkID from a new UUIDv7. UUIDv7 embeds a
// millisecond timestamp and guarantees monotonically increasing IDs.
func NewChunkID() ChunkID {
	return ChunkID(uuid.Must(uuid.NewV7()))
}

// ParseChunkID parses a 26-character base32hex string into a ChunkID.
func ParseChunkID(value string) (ChunkID, error) {
	if len(value) != 26 {
		return ChunkID{}, fmt.Errorf("invalid chunk ID length: %d (want 26)", len(value))
	}
	decoded, err := chunkIDEncoding.DecodeString(strings.ToUpper(value))
	if err != nil {
		return ChunkID{}, fmt.Errorf("invalid chunk ID: %w", err)
	}
	var id ChunkID
	copy(id[:], decoded)
	return id, nil
}

// String returns the 26-character lowercase base32hex representation.
func (id ChunkID) String() string {
	return strings.ToLower(chunkIDEncoding.EncodeToString(id[:]))
}

// IsZero reports whether id is the zero value.
func (id ChunkID) IsZero() bool {
	return id == ChunkID{}
}

// Time returns the creation time encoded in the UUIDv7 ChunkID.
func (id ChunkID) Time() time.Time {
	ms := int64(id[0])<<40 | int64(id[1])<<32 | int64(id[2])<<24 |
		int64(id[3])<<16 | int64(id[4])<<8 | int64(id[5])
	return time.UnixMilli(ms)
}
