package flow

import (
	"errors"
	"math"
	"testing"

	"github.com/abworrall/longexpo/pkg/emath"
)

// blob draws a soft gray disc centred at (cx,cy).
func blob(w, h int, cx, cy float64) emath.Raster {
	g := emath.NewFloatGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d2 := (float64(x)-cx)*(float64(x)-cx) + (float64(y)-cy)*(float64(y)-cy)
			g.Set(x, y, math.Exp(-d2/18.0))
		}
	}
	return emath.RasterFromGrids(g, g.Copy(), g.Copy())
}

func TestMagnitude(t *testing.T) {
	f := NewField(2, 1)
	f.Set(0, 0, 3, 4)
	f.Set(1, 0, 0, -2)
	m := f.Magnitude()
	if m.Get(0, 0) != 5 || m.Get(1, 0) != 2 {
		t.Errorf("Magnitude = %v, want [5 2]", m.Values())
	}
}

func TestFromAffine(t *testing.T) {
	a := emath.NewRaster(4, 3, 3)
	est := FromAffine(emath.Identity().Translate(1.5, -2))

	f, err := est(a, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			if dx, dy := f.At(x, y); dx != 1.5 || dy != -2 {
				t.Fatalf("At(%d,%d) = (%f,%f), want (1.5,-2)", x, y, dx, dy)
			}
		}
	}
}

func TestEstimatorInputErrors(t *testing.T) {
	estimators := []struct {
		name string
		est  Estimator
	}{
		{"zero", Zero},
		{"affine", FromAffine(emath.Identity())},
		{"hornschunck", HornSchunck(DefaultHornSchunckConfig())},
	}

	for _, e := range estimators {
		t.Run(e.name, func(t *testing.T) {
			_, err := e.est(emath.NewRaster(4, 4, 3), emath.NewRaster(5, 4, 3))
			if !errors.Is(err, emath.ErrSizeMismatch) {
				t.Errorf("size mismatch: got %v", err)
			}
			_, err = e.est(emath.Raster{}, emath.Raster{})
			if !errors.Is(err, emath.ErrEmptyInput) {
				t.Errorf("empty: got %v", err)
			}
		})
	}
}

func TestHornSchunckStatic(t *testing.T) {
	a := blob(16, 16, 8, 8)
	f, err := HornSchunck(DefaultHornSchunckConfig())(a, a.Copy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, max := f.Magnitude().MinMax(); max != 0 {
		t.Errorf("static scene has flow magnitude %f, want 0", max)
	}
}

func TestHornSchunckShift(t *testing.T) {
	cfg := DefaultHornSchunckConfig()
	cfg.PreBlurSigma = 0
	a := blob(24, 24, 11, 12)
	b := blob(24, 24, 12, 12)

	f, err := HornSchunck(cfg)(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sumDX, sumDY := 0.0, 0.0
	for y := 6; y < 18; y++ {
		for x := 6; x < 18; x++ {
			dx, dy := f.At(x, y)
			sumDX += dx
			sumDY += dy
		}
	}
	if sumDX <= 0 {
		t.Errorf("blob moved right, mean dx = %f", sumDX/144)
	}
	if math.Abs(sumDY) >= sumDX {
		t.Errorf("blob moved horizontally, but |dy| %f >= dx %f", math.Abs(sumDY), sumDX)
	}
}

func TestHornSchunckBadConfig(t *testing.T) {
	a := blob(8, 8, 4, 4)
	_, err := HornSchunck(HornSchunckConfig{Alpha: 0, Iterations: 10})(a, a)
	if !errors.Is(err, emath.ErrEstimation) {
		t.Errorf("got %v, want ErrEstimation", err)
	}
}

func TestVisualize(t *testing.T) {
	f := NewField(3, 2)
	f.Set(1, 1, 2, 0)
	img := Visualize(f)
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Fatalf("bounds = %v", b)
	}
	// No motion is black, full motion along +x is pure red
	if r, g, b, _ := img.At(0, 0).RGBA(); r != 0 || g != 0 || b != 0 {
		t.Errorf("static pixel = (%d,%d,%d), want black", r, g, b)
	}
	if r, g, b, _ := img.At(1, 1).RGBA(); r != 0xFFFF || g != 0 || b != 0 {
		t.Errorf("moving pixel = (%d,%d,%d), want red", r, g, b)
	}
}
