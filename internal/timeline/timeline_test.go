package timeline

import (
	"testing"
	"time"
)

func TestTimeIntOrdering(t *testing.T) {
	if !Static.Less(Min) {
		t.Fatal("Static must sort before Min")
	}
	if !Min.Less(TimeInt(0)) {
		t.Fatal("Min must sort before 0")
	}
	if !TimeInt(0).Less(Max) {
		t.Fatal("0 must sort before Max")
	}
}

func TestTimeIntIsStatic(t *testing.T) {
	if !Static.IsStatic() {
		t.Fatal("Static.IsStatic() should be true")
	}
	if Min.IsStatic() {
		t.Fatal("Min.IsStatic() should be false")
	}
	if TimeInt(10).IsStatic() {
		t.Fatal("10.IsStatic() should be false")
	}
}

func TestTimeIntString(t *testing.T) {
	cases := map[TimeInt]string{
		Static:     "STATIC",
		Min:        "MIN",
		Max:        "MAX",
		TimeInt(0): "0",
		TimeInt(7): "7",
	}
	for in, want := range cases {
		if got := in.String(); got != want {
			t.Errorf("TimeInt(%d).String() = %q, want %q", in, got, want)
		}
	}
}

func TestTimelineEquality(t *testing.T) {
	a := New("frame", Sequence)
	b := New("frame", Sequence)
	if a != b {
		t.Fatal("timelines with the same name and type should be equal")
	}
}

func TestTimelineTypeString(t *testing.T) {
	if Sequence.String() != "sequence" {
		t.Errorf("Sequence.String() = %q", Sequence.String())
	}
	if Time.String() != "time" {
		t.Errorf("Time.String() = %q", Time.String())
	}
}

func TestTimeRangeContains(t *testing.T) {
	r := NewRange(TimeInt(10), TimeInt(20))
	if !r.Contains(TimeInt(10)) || !r.Contains(TimeInt(20)) {
		t.Fatal("range should contain its own bounds")
	}
	if r.Contains(TimeInt(9)) || r.Contains(TimeInt(21)) {
		t.Fatal("range should not contain values outside bounds")
	}
}

func TestTimeRangeUnion(t *testing.T) {
	a := NewRange(TimeInt(10), TimeInt(20))
	b := NewRange(TimeInt(15), TimeInt(30))
	u := a.Union(b)
	if u.Min != TimeInt(10) || u.Max != TimeInt(30) {
		t.Fatalf("Union() = %v", u)
	}
}

func TestTimeRangeIntersects(t *testing.T) {
	a := NewRange(TimeInt(10), TimeInt(20))
	b := NewRange(TimeInt(20), TimeInt(30))
	c := NewRange(TimeInt(21), TimeInt(30))
	if !a.Intersects(b) {
		t.Fatal("touching ranges should intersect")
	}
	if a.Intersects(c) {
		t.Fatal("disjoint ranges should not intersect")
	}
}

func TestEverything(t *testing.T) {
	r := Everything()
	if r.Min != Min || r.Max != Max {
		t.Fatalf("Everything() = %v", r)
	}
}

func TestNewRangeInvalid(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for min > max")
		}
	}()
	NewRange(TimeInt(20), TimeInt(10))
}

func TestFromDurationRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ti := FromDuration(now)
	back := ToTime(ti)
	if !back.Equal(now) {
		t.Fatalf("round trip: got %v, want %v", back, now)
	}
}
