package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kweli-data/minutiae.registry/internal/minutiae"
)

func TestRedistributeAnglesCoversAllBins(t *testing.T) {
	// 40 points all sharing one angle is the degenerate capture this
	// pass exists for. After redistribution every bin must hold at
	// least one point.
	set := make(minutiae.Set, 40)
	for i := range set {
		set[i] = minutiae.Point{X: 100 + i*5, Y: 200, Theta: 5}
	}

	got := RedistributeAngles(set)

	if len(got) != len(set) {
		t.Fatalf("len = %d, want %d", len(got), len(set))
	}
	var counts [angleBins]int
	for _, p := range got {
		counts[binOf(p.Theta)]++
	}
	for b, c := range counts {
		if c == 0 {
			t.Errorf("bin %d is empty after redistribution; counts = %v", b, counts)
		}
	}
}

func TestRedistributeAnglesLeavesPositionsAlone(t *testing.T) {
	set := make(minutiae.Set, 24)
	for i := range set {
		set[i] = minutiae.Point{X: 50 + i*7, Y: 300 - i*3, Theta: 90}
	}

	got := RedistributeAngles(set)

	for i := range set {
		if got[i].X != set[i].X || got[i].Y != set[i].Y {
			t.Errorf("point %d position changed: (%d,%d) -> (%d,%d)",
				i, set[i].X, set[i].Y, got[i].X, got[i].Y)
		}
	}
}

func TestRedistributeAnglesSpreadSetUntouched(t *testing.T) {
	// One point per bin is already as diverse as it gets.
	set := minutiae.Set{}
	for b := 0; b < angleBins; b++ {
		set = append(set, minutiae.Point{X: 100 + b*10, Y: 250, Theta: int(binCenter(b))})
	}

	got := RedistributeAngles(set)

	if diff := cmp.Diff(set, got); diff != "" {
		t.Errorf("RedistributeAngles() changed a balanced set:\n%s", diff)
	}
}

func TestRedistributeAnglesSinglePointUntouched(t *testing.T) {
	set := minutiae.Set{{X: 250, Y: 250, Theta: 45}}

	got := RedistributeAngles(set)

	if diff := cmp.Diff(set, got); diff != "" {
		t.Errorf("RedistributeAngles() changed a single point:\n%s", diff)
	}
}

func TestRedistributeAnglesDeterministic(t *testing.T) {
	set := make(minutiae.Set, 30)
	for i := range set {
		set[i] = minutiae.Point{X: 100 + i*3, Y: 100 + i*2, Theta: 42}
	}

	first := RedistributeAngles(set.Clone())
	second := RedistributeAngles(set.Clone())

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("RedistributeAngles() is not deterministic:\n%s", diff)
	}
}

func TestRedistributeAnglesDoesNotMutateInput(t *testing.T) {
	set := make(minutiae.Set, 20)
	for i := range set {
		set[i] = minutiae.Point{X: 100 + i, Y: 200, Theta: 10}
	}
	orig := set.Clone()

	RedistributeAngles(set)

	if diff := cmp.Diff(orig, set); diff != "" {
		t.Errorf("RedistributeAngles() mutated its input:\n%s", diff)
	}
}
