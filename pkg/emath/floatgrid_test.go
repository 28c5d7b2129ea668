package emath

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func gridOf(w int, vals ...float64) FloatGrid {
	return NewGridFromValues(w, vals)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   FloatGrid
		want []float64
	}{
		{"stretch", gridOf(3, 1, 3, 5), []float64{0, 0.5, 1}},
		{"negative", gridOf(2, -2, 2), []float64{0, 1}},
		{"constant", gridOf(2, 7, 7, 7, 7), []float64{0, 0, 0, 0}},
		{"zeros", gridOf(2, 0, 0), []float64{0, 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Normalize()
			if diff := cmp.Diff(tc.want, got.Values(), approx); diff != "" {
				t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIndex(t *testing.T) {
	g := NewFloatGrid(4, 3)
	g.Set(3, 1, 9)
	if i := g.Index(3, 1); i != 7 || g.Values()[i] != 9 {
		t.Errorf("Index(3,1) = %d, want 7 holding the value set at (3,1)", i)
	}
}

func TestPercentile(t *testing.T) {
	g := gridOf(5, 4, 1, 5, 3, 2)
	if got := g.Percentile(1); got != 5 {
		t.Errorf("Percentile(1) = %f, want 5", got)
	}
	if got := g.Percentile(0); got != 1 {
		t.Errorf("Percentile(0) = %f, want 1", got)
	}
	if got := g.Percentile(0.5); got != 3 {
		t.Errorf("Percentile(0.5) = %f, want 3", got)
	}
	if got := NewFloatGrid(0, 0).Percentile(0.5); got != 0 {
		t.Errorf("empty Percentile = %f, want 0", got)
	}
}

func TestGaussianBlur(t *testing.T) {
	t.Run("constant", func(t *testing.T) {
		got := NewFilledGrid(5, 4, 0.3).GaussianBlur()
		if diff := cmp.Diff(NewFilledGrid(5, 4, 0.3).Values(), got.Values(), approx); diff != "" {
			t.Errorf("blur of constant changed it:\n%s", diff)
		}
	})

	t.Run("impulse", func(t *testing.T) {
		g := NewFloatGrid(3, 3)
		g.Set(1, 1, 16)
		got := g.GaussianBlur()
		want := []float64{1, 2, 1, 2, 4, 2, 1, 2, 1}
		if diff := cmp.Diff(want, got.Values(), approx); diff != "" {
			t.Errorf("impulse response mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("single pixel", func(t *testing.T) {
		got := gridOf(1, 0.5).GaussianBlur()
		if got.Get(0, 0) != 0.5 {
			t.Errorf("1x1 blur = %f, want 0.5", got.Get(0, 0))
		}
	})
}

func TestLaplacian(t *testing.T) {
	// A horizontal ramp has zero Laplacian away from the border
	g := NewFloatGrid(5, 3)
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			g.Set(x, y, float64(x))
		}
	}
	L := g.Laplacian()
	if got := L.Get(2, 1); math.Abs(got) > 1e-12 {
		t.Errorf("interior Laplacian = %f, want 0", got)
	}
	// Corner (0,0) has neighbours (1,0)=1 and (0,1)=0; 4*0 - 1 - 0
	if got := L.Get(0, 0); got != -1 {
		t.Errorf("corner Laplacian = %f, want -1", got)
	}
	// Corner (4,2) has neighbours (3,2)=3 and (4,1)=4; 16 - 7
	if got := L.Get(4, 2); got != 9 {
		t.Errorf("corner Laplacian = %f, want 9", got)
	}
}

func TestSample(t *testing.T) {
	g := gridOf(2, 0, 1, 2, 3)

	tests := []struct {
		name string
		x, y float64
		want float64
	}{
		{"exact", 1, 1, 3},
		{"mid x", 0.5, 0, 0.5},
		{"mid y", 0, 0.5, 1},
		{"centre", 0.5, 0.5, 1.5},
		{"clamped low", -3, -9, 0},
		{"clamped high", 7, 0.5, 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := g.Sample(tc.x, tc.y); math.Abs(got-tc.want) > 1e-12 {
				t.Errorf("Sample(%f,%f) = %f, want %f", tc.x, tc.y, got, tc.want)
			}
		})
	}
}

func TestDownSample(t *testing.T) {
	g := gridOf(4, 0, 2, 4, 6, 2, 4, 6, 8)
	got := g.DownSample()
	if got.Dx() != 2 || got.Dy() != 1 {
		t.Fatalf("DownSample size = %dx%d, want 2x1", got.Dx(), got.Dy())
	}
	if diff := cmp.Diff([]float64{2, 6}, got.Values(), approx); diff != "" {
		t.Errorf("DownSample mismatch (-want +got):\n%s", diff)
	}

	odd := NewFloatGrid(5, 3).DownSample()
	if odd.Dx() != 3 || odd.Dy() != 2 {
		t.Errorf("odd DownSample size = %dx%d, want 3x2", odd.Dx(), odd.Dy())
	}
}

func TestBilateralFilter(t *testing.T) {
	t.Run("zeros stay zero", func(t *testing.T) {
		got := NewFloatGrid(6, 6).BilateralFilter(7, 75, 75)
		for _, v := range got.Values() {
			if v != 0 || math.IsNaN(v) {
				t.Fatalf("got %f, want 0", v)
			}
		}
	})

	t.Run("edge preserved", func(t *testing.T) {
		g := NewFloatGrid(8, 4)
		for y := 0; y < 4; y++ {
			for x := 4; x < 8; x++ {
				g.Set(x, y, 1)
			}
		}
		got := g.BilateralFilter(2, 0.1, 3)
		if diff := cmp.Diff(g.Values(), got.Values(), cmpopts.EquateApprox(0, 1e-6)); diff != "" {
			t.Errorf("step edge was smeared (-want +got):\n%s", diff)
		}
	})

	t.Run("noise smoothed", func(t *testing.T) {
		g := NewFilledGrid(5, 5, 0.5)
		g.Set(2, 2, 0.6)
		got := g.BilateralFilter(2, 75, 75)
		if got.Get(2, 2) >= 0.6 || got.Get(2, 2) <= 0.5 {
			t.Errorf("centre = %f, want within (0.5, 0.6)", got.Get(2, 2))
		}
	})
}

func TestCheckSameSize(t *testing.T) {
	a, b := NewFloatGrid(4, 4), NewFloatGrid(4, 3)
	if err := CheckSameSize("test", a, a.Copy()); err != nil {
		t.Errorf("same size: unexpected error %v", err)
	}
	err := CheckSameSize("test", a, b)
	if !errors.Is(err, ErrSizeMismatch) || !errors.Is(err, ErrInput) {
		t.Errorf("got %v, want ErrSizeMismatch wrapping ErrInput", err)
	}
}
