// Package timeline implements the time axis model chronostore queries
// run against: typed timelines, time values, and time ranges.
package timeline

import (
	"fmt"
	"math"
	"time"
)

// Type distinguishes the two kinds of monotonic axis a Timeline can be.
type Type int

const (
	// Sequence is an integer frame counter.
	Sequence Type = iota
	// Time is nanoseconds since the Unix epoch.
	Time
)

func (t Type) String() string {
	switch t {
	case Sequence:
		return "sequence"
	case Time:
		return "time"
	default:
		return "unknown"
	}
}

// TimeInt is a 64-bit total-ordered time value. Besides ordinary
// timestamps it carries two range sentinels, Min and Max, and the
// pseudo-value Static, which denotes a value that applies at every
// time on every timeline. Static is the minimum representable value:
// it sorts before every real timestamp, which is what lets merge code
// compare it uniformly without a separate branch in the common case,
// while static-vs-temporal precedence itself is always resolved by
// RowId rather than by this ordering.
type TimeInt int64

const (
	// Static is the pseudo-time shared by every static value.
	Static TimeInt = math.MinInt64
	// Min is the smallest real representable time, one above Static.
	Min TimeInt = math.MinInt64 + 1
	// Max is the largest representable time.
	Max TimeInt = math.MaxInt64
)

// IsStatic reports whether t is the Static pseudo-time.
func (t TimeInt) IsStatic() bool {
	return t == Static
}

// Less reports whether t sorts strictly before other.
func (t TimeInt) Less(other TimeInt) bool {
	return t < other
}

// String renders a TimeInt, special-casing the sentinels.
func (t TimeInt) String() string {
	switch t {
	case Static:
		return "STATIC"
	case Min:
		return "MIN"
	case Max:
		return "MAX"
	default:
		return fmt.Sprintf("%d", int64(t))
	}
}

// Timeline is a named monotonic axis. Timeline is a plain comparable
// struct: two timelines are equal, and act as the same map key, only
// when both Name and Typ match, so the same name with a different Type
// is a distinct Timeline. This package does not detect that case; using
// the same name with two different Types across inserts is a
// TimelineTypeConflict that must be raised by the caller.
type Timeline struct {
	Name string
	Typ  Type
}

// New builds a Timeline value.
func New(name string, typ Type) Timeline {
	return Timeline{Name: name, Typ: typ}
}

// String renders "name (type)".
func (tl Timeline) String() string {
	return fmt.Sprintf("%s (%s)", tl.Name, tl.Typ)
}

// Format renders t the way this timeline's type displays values:
// Sequence as "#N", Time as RFC3339 UTC. The sentinels (Static, Min,
// Max) render the same way regardless of Typ, via TimeInt.String.
func (tl Timeline) Format(t TimeInt) string {
	if t.IsStatic() || t == Min || t == Max {
		return t.String()
	}
	switch tl.Typ {
	case Sequence:
		return fmt.Sprintf("#%d", int64(t))
	case Time:
		return ToTime(t).UTC().Format(time.RFC3339)
	default:
		return t.String()
	}
}

// TimeRange is an inclusive [Min, Max] window on one timeline.
type TimeRange struct {
	Min TimeInt
	Max TimeInt
}

// NewRange builds a TimeRange, panicking if min > max — callers
// construct ranges from already-validated bounds, never from
// unchecked user input.
func NewRange(min, max TimeInt) TimeRange {
	if min > max {
		panic(fmt.Sprintf("timeline: invalid range [%d, %d]", min, max))
	}
	return TimeRange{Min: min, Max: max}
}

// Everything is the range covering every real time value.
func Everything() TimeRange {
	return TimeRange{Min: Min, Max: Max}
}

// Contains reports whether t falls within [r.Min, r.Max] inclusive.
func (r TimeRange) Contains(t TimeInt) bool {
	return t >= r.Min && t <= r.Max
}

// Union returns the smallest range containing both r and other.
func (r TimeRange) Union(other TimeRange) TimeRange {
	min := r.Min
	if other.Min < min {
		min = other.Min
	}
	max := r.Max
	if other.Max > max {
		max = other.Max
	}
	return TimeRange{Min: min, Max: max}
}

// Intersects reports whether r and other overlap.
func (r TimeRange) Intersects(other TimeRange) bool {
	return r.Min <= other.Max && other.Min <= r.Max
}

// FromDuration converts a wall-clock time into a TimeInt on a Time
// timeline, expressed as nanoseconds since the Unix epoch.
func FromDuration(t time.Time) TimeInt {
	return TimeInt(t.UnixNano())
}

// ToTime converts a Time-timeline TimeInt back into a wall-clock
// time.Time. Calling this on a Sequence timeline's value, or on
// Static/Min/Max, produces a meaningless but well-defined result —
// callers are responsible for only calling this on Type == Time
// timelines with real values.
func ToTime(t TimeInt) time.Time {
	return time.Unix(0, int64(t))
}
