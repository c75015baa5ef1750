package eventbridge

import (
	"github.com/rerun-io/rerun-sub038/internal/storeevent"
)

// wireTimeRange is the JSON projection of a timeline.TimeRange.
type wireTimeRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// wireEvent is the JSON-over-the-wire projection of a StoreEvent.
// Entity and timeline names are flattened to strings rather than
// carried as the module's internal value types, since a remote
// subscriber has no reason to import entitypath/timeline/component to
// read a notification stream.
type wireEvent struct {
	StoreID    string                   `json:"store_id"`
	Generation uint64                   `json:"generation"`
	EventID    uint64                   `json:"event_id"`
	Kind       string                   `json:"kind"`
	ChunkID    string                   `json:"chunk_id"`
	Entity     string                   `json:"entity"`
	IsStatic   bool                     `json:"is_static"`
	Timelines  map[string]wireTimeRange `json:"timelines,omitempty"`
	Components []string                 `json:"components"`
}

func toWire(ev storeevent.StoreEvent) wireEvent {
	w := wireEvent{
		StoreID:    ev.StoreID,
		Generation: ev.Generation,
		EventID:    ev.EventID,
		Kind:       ev.Diff.Kind.String(),
		ChunkID:    ev.Diff.ChunkID.String(),
		Entity:     ev.Diff.Entity.String(),
		IsStatic:   ev.Diff.IsStatic,
		Components: make([]string, len(ev.Diff.Components)),
	}
	for i, d := range ev.Diff.Components {
		w.Components[i] = d.String()
	}
	if len(ev.Diff.PerTimelineRanges) > 0 {
		w.Timelines = make(map[string]wireTimeRange, len(ev.Diff.PerTimelineRanges))
		for tl, r := range ev.Diff.PerTimelineRanges {
			w.Timelines[tl.String()] = wireTimeRange{Min: int64(r.Min), Max: int64(r.Max)}
		}
	}
	return w
}
