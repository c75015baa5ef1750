package column

import "testing"

func TestNewAllNull(t *testing.T) {
	c := New(3)
	for i := 0; i < 3; i++ {
		if c.IsValid(i) {
			t.Fatalf("row %d should start null", i)
		}
	}
}

func TestFromCells(t *testing.T) {
	c := FromCells([]Cell{1, nil, "three"})
	if !c.IsValid(0) || c.IsValid(1) || !c.IsValid(2) {
		t.Fatal("validity bitmap mismatch")
	}
	v, ok := c.Get(0)
	if !ok || v != 1 {
		t.Fatalf("Get(0) = %v, %v", v, ok)
	}
	if _, ok := c.Get(1); ok {
		t.Fatal("Get(1) should be invalid")
	}
}

func TestSetAndSetNull(t *testing.T) {
	c := New(2)
	c.Set(0, "x")
	if !c.IsValid(0) {
		t.Fatal("expected row 0 valid after Set")
	}
	c.SetNull(0)
	if c.IsValid(0) {
		t.Fatal("expected row 0 null after SetNull")
	}
}

func TestTake(t *testing.T) {
	c := FromCells([]Cell{"a", "b", "c"})
	out := c.Take([]int{2, 0})
	if v, _ := out.Get(0); v != "c" {
		t.Errorf("Take()[0] = %v, want c", v)
	}
	if v, _ := out.Get(1); v != "a" {
		t.Errorf("Take()[1] = %v, want a", v)
	}
}

func TestSlice(t *testing.T) {
	c := FromCells([]Cell{"a", "b", "c", "d"})
	out := c.Slice(1, 3)
	if out.Len() != 2 {
		t.Fatalf("Slice len = %d, want 2", out.Len())
	}
	if v, _ := out.Get(0); v != "b" {
		t.Errorf("Slice()[0] = %v, want b", v)
	}
}

func TestLastValid(t *testing.T) {
	c := FromCells([]Cell{"a", nil, nil, "d"})
	if got := c.LastValid(2); got != 0 {
		t.Errorf("LastValid(2) = %d, want 0", got)
	}
	if got := c.LastValid(3); got != 3 {
		t.Errorf("LastValid(3) = %d, want 3", got)
	}
	empty := FromCells([]Cell{nil, nil})
	if got := empty.LastValid(1); got != -1 {
		t.Errorf("LastValid on all-null = %d, want -1", got)
	}
}

func TestTimeColumnTakeAndSlice(t *testing.T) {
	tc := NewTimeColumn([]int64{10, 20, 30, 40})
	taken := tc.Take([]int{3, 1})
	if taken.Get(0) != 40 || taken.Get(1) != 20 {
		t.Fatalf("Take() = %v", taken.Values())
	}
	sliced := tc.Slice(1, 3)
	if sliced.Len() != 2 || sliced.Get(0) != 20 || sliced.Get(1) != 30 {
		t.Fatalf("Slice() = %v", sliced.Values())
	}
}

func TestTimeColumnValuesIndependentOfSource(t *testing.T) {
	src := []int64{1, 2, 3}
	tc := NewTimeColumn(src)
	src[0] = 99
	if tc.Get(0) != 1 {
		t.Fatal("TimeColumn should copy its backing slice")
	}
}
