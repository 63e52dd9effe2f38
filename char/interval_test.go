package char

import "testing"

func TestIntervalContains(t *testing.T) {
	iv := Interval{From: 10, To: 20}
	if !iv.Contains(15) {
		t.Error("15 should be within [10,20]")
	}
	if iv.Contains(9) || iv.Contains(21) {
		t.Error("boundary values outside the interval should not be contained")
	}
}

func TestEmptyIntervalIsEmpty(t *testing.T) {
	if !EmptyInterval().IsEmpty() {
		t.Fatal("EmptyInterval() should be empty")
	}
	if EmptyInterval().Contains(0) {
		t.Fatal("an empty interval contains nothing")
	}
}

func TestIntervalIntersect(t *testing.T) {
	a := Interval{From: 0, To: 10}
	b := Interval{From: 5, To: 15}
	got := a.Intersect(b)
	want := Interval{From: 5, To: 10}
	if got != want {
		t.Fatalf("Intersect() = %v, want %v", got, want)
	}
}

func TestIntervalIntersectDisjoint(t *testing.T) {
	a := Interval{From: 0, To: 5}
	b := Interval{From: 10, To: 15}
	if !a.Intersect(b).IsEmpty() {
		t.Fatal("disjoint intervals should intersect to empty")
	}
}

func TestIntervalSubtract(t *testing.T) {
	iv := Interval{From: 0, To: 20}
	left, right := iv.Subtract(Interval{From: 5, To: 10})
	if left != (Interval{From: 0, To: 4}) {
		t.Errorf("left = %v, want [0,4]", left)
	}
	if right != (Interval{From: 11, To: 20}) {
		t.Errorf("right = %v, want [11,20]", right)
	}
}

func TestIntervalSubtractNoOverlap(t *testing.T) {
	iv := Interval{From: 0, To: 5}
	left, right := iv.Subtract(Interval{From: 10, To: 20})
	if left != iv {
		t.Errorf("left = %v, want unchanged %v", left, iv)
	}
	if !right.IsEmpty() {
		t.Errorf("right = %v, want empty", right)
	}
}

func TestIntersectAndSubtract(t *testing.T) {
	self := NewIntervalSet([]Interval{{From: 0, To: 10}})
	other := NewIntervalSet([]Interval{{From: 5, To: 15}})

	selfOnly, inter, otherOnly := IntersectAndSubtract(self, other)

	if selfOnly.Len() != 1 || selfOnly.Intervals[0] != (Interval{From: 0, To: 4}) {
		t.Errorf("selfOnly = %v", selfOnly.Intervals)
	}
	if inter.Len() != 1 || inter.Intervals[0] != (Interval{From: 5, To: 10}) {
		t.Errorf("intersection = %v", inter.Intervals)
	}
	if otherOnly.Len() != 1 || otherOnly.Intervals[0] != (Interval{From: 11, To: 15}) {
		t.Errorf("otherOnly = %v", otherOnly.Intervals)
	}
}

func TestIntersectAndSubtractDisjointSets(t *testing.T) {
	self := NewIntervalSet([]Interval{{From: 0, To: 5}})
	other := NewIntervalSet([]Interval{{From: 10, To: 15}})

	selfOnly, inter, otherOnly := IntersectAndSubtract(self, other)

	if selfOnly.Len() != 1 || otherOnly.Len() != 1 || !inter.IsEmpty() {
		t.Fatalf("expected no intersection for disjoint sets, got self=%v inter=%v other=%v",
			selfOnly.Intervals, inter.Intervals, otherOnly.Intervals)
	}
}
