package subject

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/abworrall/longexpo/pkg/emath"
)

func TestRasterizeRectangle(t *testing.T) {
	m := Rasterize(6, 4, []Region{{Box: image.Rect(1, 1, 4, 3)}})
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			want := 0.0
			if x >= 1 && x < 4 && y >= 1 && y < 3 {
				want = 1
			}
			if got := m.Get(x, y); got != want {
				t.Errorf("(%d,%d) = %f, want %f", x, y, got, want)
			}
		}
	}
}

func TestRasterizeCircle(t *testing.T) {
	// A 10x6 box gives a radius 5 circle centred on (15,15)
	m := Rasterize(30, 30, []Region{{Box: image.Rect(10, 12, 20, 18), Shape: Circle}})
	if m.Get(15, 15) != 1 || m.Get(15, 11) != 1 || m.Get(11, 15) != 1 {
		t.Errorf("circle interior not filled")
	}
	if m.Get(15, 22) != 0 || m.Get(8, 15) != 0 || m.Get(10, 10) != 0 {
		t.Errorf("circle exterior filled")
	}
}

func TestRasterizeNothing(t *testing.T) {
	m := Rasterize(5, 5, nil)
	if _, max := m.MinMax(); max != 0 {
		t.Errorf("no regions gave max %f, want an all-zero mask", max)
	}
}

func TestBuild(t *testing.T) {
	attention := emath.NewGridFromValues(4, []float64{0, 1, 1, 0.5})
	head := emath.NewGridFromValues(4, []float64{1, 0, 1, 1})
	opt := cmpopts.EquateApprox(0, 1e-12)

	got, err := Build(attention, head)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// attention*(1+head) = 0, 1, 2, 1 before the stretch
	if diff := cmp.Diff([]float64{0, 0.5, 1, 0.5}, got.Values(), opt); diff != "" {
		t.Errorf("Build mismatch (-want +got):\n%s", diff)
	}

	got, err = Build(attention, emath.FloatGrid{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 1, 1, 0.5}, got.Values(), opt); diff != "" {
		t.Errorf("attention only mismatch (-want +got):\n%s", diff)
	}

	if _, err := Build(attention, emath.NewFloatGrid(2, 2)); !errors.Is(err, emath.ErrSizeMismatch) {
		t.Errorf("mismatched head: got %v", err)
	}
}

func TestDetect(t *testing.T) {
	img := emath.NewRaster(20, 20, 3)
	eyes := func(emath.Raster) ([]Region, error) {
		return []Region{{Box: image.Rect(4, 4, 8, 8)}}, nil
	}
	faces := func(emath.Raster) ([]Region, error) {
		return []Region{{Box: image.Rect(0, 0, 10, 10)}}, nil
	}
	broken := func(emath.Raster) ([]Region, error) {
		return nil, errors.New("no cascade")
	}

	t.Run("eyes in a face", func(t *testing.T) {
		m, err := Detect(img, Config{Attention: eyes, Head: faces})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.Get(6, 6) != 1 || m.Get(15, 15) != 0 || m.Get(1, 1) != 0 {
			t.Errorf("unexpected mask values %f %f %f", m.Get(6, 6), m.Get(15, 15), m.Get(1, 1))
		}
	})

	t.Run("no detectors", func(t *testing.T) {
		m, err := Detect(img, Config{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, max := m.MinMax(); max != 0 {
			t.Errorf("want all-zero mask, max %f", max)
		}
	})

	t.Run("detector failure", func(t *testing.T) {
		if _, err := Detect(img, Config{Attention: broken}); !errors.Is(err, emath.ErrEstimation) {
			t.Errorf("got %v, want ErrEstimation", err)
		}
	})

	// The detector's own error stays matchable alongside ErrEstimation
	canceled := func(emath.Raster) ([]Region, error) {
		return nil, context.Canceled
	}
	for _, cfg := range []Config{{Attention: canceled}, {Attention: eyes, Head: canceled}} {
		_, err := Detect(img, cfg)
		if !errors.Is(err, emath.ErrEstimation) || !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want ErrEstimation wrapping context.Canceled", err)
		}
	}
}

func TestFeather(t *testing.T) {
	m := Rasterize(20, 20, []Region{{Box: image.Rect(5, 5, 15, 15)}})
	f := Feather(m, 2)
	if v := f.Get(5, 10); v <= 0.1 || v >= 0.9 {
		t.Errorf("edge pixel after feathering = %f, want a soft value", v)
	}
	if v := f.Get(10, 10); v < 0.9 {
		t.Errorf("centre after feathering = %f, want ~1", v)
	}
	if got := Feather(m, 0); got.Get(5, 10) != 1 {
		t.Errorf("sigma 0 should leave the mask alone")
	}
}
