// Package snapshot persists chunks outside the in-memory store by
// replay, not by write-ahead log: a snapshot is a sequence of
// previously inserted chunks that can be re-inserted into a fresh
// Store to reconstruct its state. No SQL engine, no WAL — state only
// ever moves forward by sequential re-insertion.
//
// A BlobStore abstracts over where the bytes actually live (local
// disk, S3, Azure Blob, GCS); Manager handles the encoding, framing,
// and compression above it so every backend sees the same opaque
// blobs.
package snapshot

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	seekable "github.com/SaveTheRbtz/zstd-seekable-format-go/pkg"
	"github.com/klauspost/compress/zstd"

	"github.com/rerun-io/rerun-sub038/internal/chunk"
	"github.com/rerun-io/rerun-sub038/internal/component"
	"github.com/rerun-io/rerun-sub038/internal/entitypath"
	"github.com/rerun-io/rerun-sub038/internal/logging"
	"github.com/rerun-io/rerun-sub038/internal/rowid"
	"github.com/rerun-io/rerun-sub038/internal/store"
	"github.com/rerun-io/rerun-sub038/internal/storeevent"
	"github.com/rerun-io/rerun-sub038/internal/timeline"
)

const (
	magicByte   = 0x73 // 's'
	versionByte = 0x01

	headerBytes = 2
)

var (
	// ErrMagicMismatch is returned when a blob does not start with the
	// snapshot magic byte.
	ErrMagicMismatch = errors.New("snapshot: magic mismatch")
	// ErrVersionMismatch is returned when a blob's version byte is newer
	// than this Manager understands.
	ErrVersionMismatch = errors.New("snapshot: version mismatch")
)

// BlobStore is the minimal durable key/value surface a snapshot
// Manager needs. Keys are opaque, slash-separated paths; backends map
// them onto whatever addressing their storage uses (a file path, an
// S3 object key, a blob name).
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// ErrNotFound is returned by a BlobStore's Get when the key does not
// exist.
var ErrNotFound = errors.New("snapshot: blob not found")

func chunkKey(id chunk.ChunkID) string {
	return "chunks/" + id.String() + ".snap"
}

// wireRow is the gob-serializable projection of one chunk row.
// component.Descriptor and timeline.Timeline are plain comparable
// structs of exported fields and gob encodes them directly; Cell
// values are encoded through gob's interface mechanism, so any
// application type stored in a chunk must be gob.Register'd by its
// owner before a snapshot containing it is written or read.
type wireRow struct {
	RowID  rowid.RowID
	Stamps map[timeline.Timeline]timeline.TimeInt
	Cells  map[component.Descriptor]any
}

// wireChunk is the full gob payload for one chunk.
type wireChunk struct {
	Entity string
	Rows   []wireRow
}

func encodeChunk(c *chunk.Chunk) ([]byte, error) {
	w := wireChunk{Entity: c.Entity().String(), Rows: make([]wireRow, c.NumRows())}
	timelines := c.Timelines()
	components := c.Components()
	for i := 0; i < c.NumRows(); i++ {
		row := wireRow{
			RowID:  c.RowID(i),
			Stamps: make(map[timeline.Timeline]timeline.TimeInt, len(timelines)),
			Cells:  make(map[component.Descriptor]any, len(components)),
		}
		for _, tl := range timelines {
			if t, ok := c.TimeAt(tl, i); ok {
				row.Stamps[tl] = t
			}
		}
		for _, d := range components {
			if v, ok := c.Cell(d, i); ok {
				row.Cells[d] = v
			}
		}
		w.Rows[i] = row
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&w); err != nil {
		return nil, fmt.Errorf("gob encode chunk: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeChunk(data []byte) (*chunk.Chunk, error) {
	var w wireChunk
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return nil, fmt.Errorf("gob decode chunk: %w", err)
	}

	entity := entitypath.New(w.Entity)
	rows := make([]chunk.Row, len(w.Rows))
	for i, wr := range w.Rows {
		rows[i] = chunk.Row{RowID: wr.RowID, Stamps: wr.Stamps, Cells: wr.Cells}
	}
	return chunk.NewFromRows(entity, rows)
}

// Config controls a Manager's compression and logging.
type Config struct {
	Logger *slog.Logger
	// EncoderLevel selects the zstd compression level; zero uses the
	// library default (SpeedDefault).
	EncoderLevel zstd.EncoderLevel
}

// Manager encodes, compresses, and frames chunks for a BlobStore, and
// reverses the process on replay. It holds no store state of its own;
// Writer (below) is what subscribes to a live Store.
type Manager struct {
	blobs  BlobStore
	logger *slog.Logger
	level  zstd.EncoderLevel
}

// New creates a Manager over the given BlobStore.
func New(blobs BlobStore, cfg Config) *Manager {
	level := cfg.EncoderLevel
	if level == 0 {
		level = zstd.SpeedDefault
	}
	return &Manager{
		blobs:  blobs,
		logger: logging.Default(cfg.Logger).With("component", "snapshot"),
		level:  level,
	}
}

// Save compresses and writes one chunk to the blob store, keyed by
// its ChunkID. Saving the same chunk twice overwrites the prior blob;
// chunks are immutable, so this is only ever a no-op retry.
func (m *Manager) Save(ctx context.Context, c *chunk.Chunk) error {
	raw, err := encodeChunk(c)
	if err != nil {
		return err
	}

	body, err := m.compress(raw)
	if err != nil {
		return fmt.Errorf("compress chunk %s: %w", c.ID(), err)
	}

	header := make([]byte, headerBytes)
	header[0] = magicByte
	header[1] = versionByte
	blob := append(header, body...)

	key := chunkKey(c.ID())
	if err := m.blobs.Put(ctx, key, blob); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	m.logger.Info("saved chunk snapshot", "chunk_id", c.ID(), "entity", c.Entity(), "bytes", len(blob))
	return nil
}

// Load fetches and decodes one chunk by ID.
func (m *Manager) Load(ctx context.Context, id chunk.ChunkID) (*chunk.Chunk, error) {
	blob, err := m.blobs.Get(ctx, chunkKey(id))
	if err != nil {
		return nil, err
	}
	return m.decodeBlob(blob)
}

func (m *Manager) decodeBlob(blob []byte) (*chunk.Chunk, error) {
	if len(blob) < headerBytes {
		return nil, ErrMagicMismatch
	}
	if blob[0] != magicByte {
		return nil, ErrMagicMismatch
	}
	if blob[1] > versionByte {
		return nil, ErrVersionMismatch
	}

	raw, err := m.decompress(blob[headerBytes:])
	if err != nil {
		return nil, fmt.Errorf("decompress chunk: %w", err)
	}
	return decodeChunk(raw)
}

// compress wraps data in the seekable zstd container used for every
// snapshot blob. Blobs are fetched whole from every BlobStore backend,
// local disk included, and decompress reads each one in full, so the
// seekable framing is not used for ranged reads.
func (m *Manager) compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(m.level))
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	var buf bytes.Buffer
	w, err := seekable.NewWriter(&buf, enc)
	if err != nil {
		return nil, err
	}
	for off := 0; off < len(data); off += seekableFrameSize {
		end := off + seekableFrameSize
		if end > len(data) {
			end = len(data)
		}
		if _, err := w.Write(data[off:end]); err != nil {
			w.Close()
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const seekableFrameSize = 256 << 10

// decompress reverses compress. The seekable reader exposes ReadAt,
// not a plain sequential Read, so full-blob decode reads it at
// growing offsets until io.EOF.
func (m *Manager) decompress(body []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	r, err := seekable.NewReader(bytes.NewReader(body), dec)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out bytes.Buffer
	buf := make([]byte, seekableFrameSize)
	var offset int64
	for {
		n, err := r.ReadAt(buf, offset)
		if n > 0 {
			out.Write(buf[:n])
			offset += int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	return out.Bytes(), nil
}

// Replay lists every chunk blob under the manager's backend, decodes
// each, and inserts it into s in ChunkID order (ChunkIDs are
// time-ordered, so this reconstructs insertion order deterministically
// regardless of the order blobs were listed in).
func (m *Manager) Replay(ctx context.Context, s *store.Store) (int, error) {
	keys, err := m.blobs.List(ctx, "chunks/")
	if err != nil {
		return 0, fmt.Errorf("list chunks: %w", err)
	}

	chunks := make([]*chunk.Chunk, 0, len(keys))
	for _, key := range keys {
		blob, err := m.blobs.Get(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("get %s: %w", key, err)
		}
		c, err := m.decodeBlob(blob)
		if err != nil {
			return 0, fmt.Errorf("decode %s: %w", key, err)
		}
		chunks = append(chunks, c)
	}

	sort.Slice(chunks, func(i, j int) bool {
		a, b := chunks[i].ID(), chunks[j].ID()
		return bytes.Compare(a[:], b[:]) < 0
	})

	for _, c := range chunks {
		s.InsertChunk(c)
	}
	m.logger.Info("replayed snapshot", "chunks", len(chunks))
	return len(chunks), nil
}

// Writer subscribes to a live Store and persists every newly
// inserted chunk through a Manager as it arrives. It never deletes a
// blob on a store-side DeleteChunk; snapshots are an append-only
// record of everything ever inserted, and pruning is an operator
// decision.
type Writer struct {
	mgr    *Manager
	store  *store.Store
	logger *slog.Logger
}

// NewWriter builds a Writer and subscribes it to s's event bus.
func NewWriter(mgr *Manager, s *store.Store, logger *slog.Logger) *Writer {
	w := &Writer{mgr: mgr, store: s, logger: logging.Default(logger).With("component", "snapshot_writer")}
	s.Subscribe(w)
	return w
}

// OnEvents implements storeevent.Subscriber. It runs synchronously on
// the store's writer goroutine, matching every other subscriber in
// this module; callers wanting asynchronous persistence should wrap a
// Writer in their own buffering subscriber.
func (w *Writer) OnEvents(events []storeevent.StoreEvent) {
	ctx := context.Background()
	for _, ev := range events {
		if ev.Diff.Kind != storeevent.Addition {
			continue
		}
		c, ok := w.store.Chunk(ev.Diff.ChunkID)
		if !ok {
			continue
		}
		if err := w.mgr.Save(ctx, c); err != nil {
			w.logger.Error("failed to persist chunk snapshot", "chunk_id", ev.Diff.ChunkID, "error", err)
		}
	}
}
