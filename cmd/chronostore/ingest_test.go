package main

import (
	"encoding/json"
	"testing"

	"github.com/rerun-io/rerun-sub038/internal/component"
	"github.com/rerun-io/rerun-sub038/internal/config"
	"github.com/rerun-io/rerun-sub038/internal/timeline"
)

func TestParseDescriptorBare(t *testing.T) {
	d := parseDescriptor("Position3D")
	want := component.Bare("Position3D")
	if d != want {
		t.Fatalf("parseDescriptor() = %+v, want %+v", d, want)
	}
}

func TestParseDescriptorArchetyped(t *testing.T) {
	d := parseDescriptor("Points3D:positions#Position3D")
	want := component.NewDescriptor("Points3D", "positions", "Position3D")
	if d != want {
		t.Fatalf("parseDescriptor() = %+v, want %+v", d, want)
	}
}

func TestParseDescriptorArchetypeNoField(t *testing.T) {
	d := parseDescriptor("Points3D#Position3D")
	want := component.NewDescriptor("Points3D", "", "Position3D")
	if d != want {
		t.Fatalf("parseDescriptor() = %+v, want %+v", d, want)
	}
}

func TestResolveTimelineUnknownName(t *testing.T) {
	_, err := resolveTimeline("frame", nil)
	if err == nil {
		t.Fatal("expected error for an undeclared timeline")
	}
}

func TestResolveTimelineUnknownType(t *testing.T) {
	_, err := resolveTimeline("frame", []config.TimelineConfig{{Name: "frame", Type: "bogus"}})
	if err == nil {
		t.Fatal("expected error for an unknown timeline type")
	}
}

func TestBuildChunkRoundTrip(t *testing.T) {
	decls := []config.TimelineConfig{{Name: "frame", Type: "sequence"}}
	fx := fixture{
		Entity: "/world/robot",
		Rows: []fixtureRow{
			{
				Stamps: map[string]int64{"frame": 10},
				Cells:  map[string]json.RawMessage{"Position3D": json.RawMessage(`[1,2,3]`)},
			},
			{
				Stamps: map[string]int64{"frame": 20},
				Cells:  map[string]json.RawMessage{"Position3D": json.RawMessage(`[4,5,6]`)},
			},
		},
	}

	c, err := buildChunk(fx, decls)
	if err != nil {
		t.Fatalf("buildChunk() error: %v", err)
	}
	if c.NumRows() != 2 {
		t.Fatalf("NumRows() = %d, want 2", c.NumRows())
	}
	if c.Entity().String() != "/world/robot" {
		t.Fatalf("Entity() = %q, want /world/robot", c.Entity().String())
	}
	tl, _ := resolveTimeline("frame", decls)
	at, ok := c.TimeAt(tl, 1)
	if !ok || at != timeline.TimeInt(20) {
		t.Fatalf("TimeAt(1) = %v, %v, want 20, true", at, ok)
	}
}

func TestBuildChunkRejectsEmptyFixture(t *testing.T) {
	_, err := buildChunk(fixture{Entity: "/a"}, nil)
	if err == nil {
		t.Fatal("expected error building a chunk with zero rows")
	}
}
