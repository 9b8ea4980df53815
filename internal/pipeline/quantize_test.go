package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kweli-data/minutiae.registry/internal/minutiae"
)

func TestQuantizeSnapsToGrid(t *testing.T) {
	tests := []struct {
		name string
		in   minutiae.Point
		want minutiae.Point
	}{
		{
			name: "origin",
			in:   minutiae.Point{X: 0, Y: 0, Theta: 0},
			want: minutiae.Point{X: 0, Y: 0, Theta: 0},
		},
		{
			name: "mid grid cell",
			in:   minutiae.Point{X: 101, Y: 99, Theta: 43},
			want: minutiae.Point{X: 104, Y: 96, Theta: 40},
		},
		{
			name: "out of bounds clamps first",
			in:   minutiae.Point{X: 600, Y: -20, Theta: 200},
			want: minutiae.Point{X: 496, Y: 0, Theta: 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Quantize(minutiae.Set{tt.in}, DefaultGridStep, DefaultAngleStep)
			if len(got) != 1 {
				t.Fatalf("len = %d, want 1", len(got))
			}
			if got[0] != tt.want {
				t.Errorf("Quantize(%+v) = %+v, want %+v", tt.in, got[0], tt.want)
			}
		})
	}
}

func TestQuantizePreservesCardinality(t *testing.T) {
	set := make(minutiae.Set, 17)
	for i := range set {
		set[i] = minutiae.Point{X: 30 + i*25, Y: 470 - i*20, Theta: i * 10}
	}

	got := Quantize(set, DefaultGridStep, DefaultAngleStep)

	if len(got) != len(set) {
		t.Errorf("len = %d, want %d", len(got), len(set))
	}
}

func TestQuantizeOutputOnGrid(t *testing.T) {
	set := minutiae.Set{
		{X: 33, Y: 217, Theta: 17},
		{X: 451, Y: 12, Theta: 121},
		{X: 250, Y: 250, Theta: 89},
	}

	got := Quantize(set, DefaultGridStep, DefaultAngleStep)

	for i, p := range got {
		if p.X%DefaultGridStep != 0 || p.Y%DefaultGridStep != 0 {
			t.Errorf("point %d not on grid: (%d, %d)", i, p.X, p.Y)
		}
		if p.Theta%DefaultAngleStep != 0 {
			t.Errorf("point %d angle not on step: %d", i, p.Theta)
		}
		if p.X < 0 || p.X >= minutiae.ImageWidth || p.Y < 0 || p.Y >= minutiae.ImageHeight {
			t.Errorf("point %d out of bounds: (%d, %d)", i, p.X, p.Y)
		}
	}
}

func TestQuantizeAngleOffsetReproducible(t *testing.T) {
	// The angle perturbation is hashed from position, so the same point
	// quantizes identically across runs and identical points quantize
	// identically within a run.
	set := minutiae.Set{
		{X: 123, Y: 234, Theta: 77},
		{X: 123, Y: 234, Theta: 77},
	}

	got := Quantize(set, DefaultGridStep, DefaultAngleStep)

	if got[0] != got[1] {
		t.Errorf("identical points quantized differently: %+v vs %+v", got[0], got[1])
	}

	again := Quantize(set, DefaultGridStep, DefaultAngleStep)
	if diff := cmp.Diff(got, again); diff != "" {
		t.Errorf("Quantize() is not deterministic:\n%s", diff)
	}
}

func TestQuantizeEmpty(t *testing.T) {
	if got := Quantize(nil, DefaultGridStep, DefaultAngleStep); got != nil {
		t.Errorf("Quantize(nil) = %v, want nil", got)
	}
}
