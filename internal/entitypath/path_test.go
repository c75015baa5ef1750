package entitypath

import "testing"

func TestNewAndString(t *testing.T) {
	cases := map[string]string{
		"/world/camera/left": "/world/camera/left",
		"world/camera/left":  "/world/camera/left",
		"/":                  "/",
		"":                   "/",
		"//world//camera/":   "/world/camera",
	}
	for in, want := range cases {
		if got := New(in).String(); got != want {
			t.Errorf("New(%q).String() = %q, want %q", in, got, want)
		}
	}
}

func TestParentChild(t *testing.T) {
	p := New("/world/camera/left")
	parent, ok := p.Parent()
	if !ok || parent.String() != "/world/camera" {
		t.Fatalf("Parent() = %q, %v", parent, ok)
	}
	if got := parent.Child("left").String(); got != "/world/camera/left" {
		t.Fatalf("Child() = %q", got)
	}
	if _, ok := Root.Parent(); ok {
		t.Fatal("Root.Parent() should return ok=false")
	}
}

func TestIsDescendantOf(t *testing.T) {
	a := New("/world")
	b := New("/world/camera")
	c := New("/other")
	if !b.IsDescendantOf(a) {
		t.Fatal("expected /world/camera to descend from /world")
	}
	if a.IsDescendantOf(a) {
		t.Fatal("a path is not its own descendant")
	}
	if c.IsDescendantOf(a) {
		t.Fatal("/other should not descend from /world")
	}
}

func TestLessAndEqual(t *testing.T) {
	a := New("/a")
	b := New("/b")
	if !a.Less(b) {
		t.Fatal("/a should sort before /b")
	}
	if !a.Equal(New("/a")) {
		t.Fatal("equal paths should compare equal")
	}
}

func TestHashStable(t *testing.T) {
	a := New("/world/camera/left")
	b := New("/world/camera/left")
	if a.Hash() != b.Hash() {
		t.Fatal("identical paths must hash identically")
	}
	c := New("/world/camera/right")
	if a.Hash() == c.Hash() {
		t.Fatal("distinct paths should not usually collide in this test fixture")
	}
}

func TestMatch(t *testing.T) {
	if !Match("/world/camera/*", New("/world/camera/left")) {
		t.Fatal("expected glob match")
	}
	if Match("/world/camera/*", New("/world/camera/left/lens")) {
		t.Fatal("single-star glob should not match deeper paths")
	}
	if !Match("/world/**", New("/world/camera/left/lens")) {
		t.Fatal("double-star glob should match arbitrarily deep paths")
	}
}

func TestChildren(t *testing.T) {
	known := []Path{
		New("/world"),
		New("/world/camera"),
		New("/world/camera/left"),
		New("/world/points"),
		New("/other"),
	}
	kids := Children(New("/world"), known)
	if len(kids) != 2 {
		t.Fatalf("expected 2 direct children, got %d: %v", len(kids), kids)
	}
}
