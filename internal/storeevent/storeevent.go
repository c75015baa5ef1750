// Package storeevent implements the store's change-notification bus:
// every observable mutation of a ChunkStore is described by a
// StoreDiff and delivered synchronously to registered subscribers at
// the end of the insertion transaction that produced it.
package storeevent

import (
	"github.com/rerun-io/rerun-sub038/internal/component"
	"github.com/rerun-io/rerun-sub038/internal/entitypath"
	"github.com/rerun-io/rerun-sub038/internal/rowid"
	"github.com/rerun-io/rerun-sub038/internal/timeline"
)

// Kind distinguishes an Addition from a Deletion.
type Kind int

const (
	Addition Kind = iota
	Deletion
)

func (k Kind) String() string {
	if k == Addition {
		return "addition"
	}
	return "deletion"
}

// StoreDiff describes one chunk's effect on the store: which entity,
// timelines and time ranges, and which components it touched.
type StoreDiff struct {
	Kind     Kind
	ChunkID  rowid.ChunkID
	Entity   entitypath.Path
	IsStatic bool

	// PerTimelineRanges is empty for a static diff.
	PerTimelineRanges map[timeline.Timeline]timeline.TimeRange
	Components        []component.Descriptor
}

// StoreEvent is one published change, carrying the store identity and
// generation it was produced under, plus a unique event id.
type StoreEvent struct {
	StoreID    string
	Generation uint64
	EventID    uint64
	Diff       StoreDiff
}

// Subscriber receives batches of events at the end of each insertion
// transaction. Delivery is synchronous on the writer's goroutine;
// implementations must not call back into the store from OnEvents.
type Subscriber interface {
	OnEvents(events []StoreEvent)
}

// SubscriberFunc adapts a plain function to Subscriber.
type SubscriberFunc func(events []StoreEvent)

func (f SubscriberFunc) OnEvents(events []StoreEvent) { f(events) }

// Bus fans out StoreEvents to registered subscribers in registration
// order. A Bus has no locking of its own: callers (the ChunkStore)
// already serialize writes, and dispatch happens on that same,
// already-held write path.
type Bus struct {
	subscribers []Subscriber
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers s to receive future event batches.
func (b *Bus) Subscribe(s Subscriber) {
	b.subscribers = append(b.subscribers, s)
}

// Publish delivers events to every subscriber, in registration order.
// Called exactly once per insertion/deletion transaction.
func (b *Bus) Publish(events ...StoreEvent) {
	if len(events) == 0 {
		return
	}
	for _, s := range b.subscribers {
		s.OnEvents(events)
	}
}
