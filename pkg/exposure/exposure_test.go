package exposure

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/abworrall/longexpo/pkg/emath"
	"github.com/abworrall/longexpo/pkg/flow"
)

var approx = cmpopts.EquateApprox(0, 1e-12)

func flat(w, h, c int, v float64) emath.Raster {
	r := emath.NewRaster(w, h, c)
	for _, p := range r.Planes {
		p.Fill(v)
	}
	return r
}

func ramp(w, h int) emath.Raster {
	g := emath.NewFloatGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.Set(x, y, float64(x)/float64(w))
		}
	}
	return emath.RasterFromGrids(g)
}

func TestWarp(t *testing.T) {
	a := ramp(8, 2) // value at x is x/8
	f := flow.NewField(8, 2)
	f.DX.Fill(2)

	tests := []struct {
		name string
		t    float64
		x    int
		want float64
	}{
		{"t=0 is a", 0, 3, 3.0 / 8},
		{"half way", 0.5, 3, 4.0 / 8},
		{"fractional", 0.25, 3, 3.5 / 8},
		{"clamped at the edge", 1, 7, 7.0 / 8},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Warp(a, f, tc.t).Planes[0].Get(tc.x, 1)
			if diff := cmp.Diff(tc.want, got, approx); diff != "" {
				t.Errorf("Warp mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWarpIsDeterministic(t *testing.T) {
	a := ramp(6, 6)
	f, _ := flow.FromAffine(emath.RotateAbout(7, 3, 3))(a, a)
	w1, w2 := Warp(a, f, 0.3), Warp(a, f, 0.3)
	if diff := cmp.Diff(w1.Planes[0].Values(), w2.Planes[0].Values()); diff != "" {
		t.Errorf("two warps differ:\n%s", diff)
	}
}

func TestInBetween(t *testing.T) {
	a := ramp(8, 2)
	f := flow.NewField(8, 2)
	f.DX.Fill(4)

	frames, err := InBetween(a, a, f, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	// t = 1/4, 2/4, 3/4 moves the samples by 1, 2, 3 pixels
	for k, fr := range frames {
		want := float64(k+1) / 8
		if got := fr.Planes[0].Get(0, 0); cmp.Diff(want, got, approx) != "" {
			t.Errorf("frame %d at x=0 = %f, want %f", k, got, want)
		}
	}

	if frames, _ := InBetween(a, a, f, 1); len(frames) != 0 {
		t.Errorf("1 step gave %d frames, want none", len(frames))
	}
	if _, err := InBetween(a, a, f, 0); !errors.Is(err, emath.ErrInput) {
		t.Errorf("0 steps: got %v", err)
	}
	if _, err := InBetween(a, a, flow.NewField(3, 3), 4); !errors.Is(err, emath.ErrSizeMismatch) {
		t.Errorf("bad flow size: got %v", err)
	}
}

func TestAccumulatorMatchesMean(t *testing.T) {
	acc, err := Accumulator{}.Add([]emath.Raster{flat(1, 1, 1, 0.2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	acc, err = acc.Add([]emath.Raster{flat(1, 1, 1, 0.8)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := acc.Image.Planes[0].Get(0, 0); cmp.Diff(0.5, got, approx) != "" {
		t.Errorf("mean of 0.2 and 0.8 = %f, want 0.5", got)
	}
	if acc.Weight != 2 {
		t.Errorf("weight = %f, want 2", acc.Weight)
	}

	// Batches of different sizes still give the plain mean
	acc, _ = acc.Add([]emath.Raster{flat(1, 1, 1, 0.1), flat(1, 1, 1, 0.3), flat(1, 1, 1, 0.6)})
	if got := acc.Image.Planes[0].Get(0, 0); cmp.Diff(0.4, got, approx) != "" {
		t.Errorf("mean of 5 frames = %f, want 0.4", got)
	}
}

func TestAccumulatorIsAValue(t *testing.T) {
	acc, _ := Accumulator{}.Add([]emath.Raster{flat(1, 1, 1, 0.2)})
	_, _ = acc.Add([]emath.Raster{flat(1, 1, 1, 1.0)})
	if acc.Weight != 1 || acc.Image.Planes[0].Get(0, 0) != 0.2 {
		t.Errorf("Add mutated its receiver: %+v", acc)
	}
}

func TestLongExposure(t *testing.T) {
	frames := []emath.Raster{flat(2, 2, 3, 0.25), flat(2, 2, 3, 0.5), flat(2, 2, 3, 0.75)}
	fields := []flow.Field{flow.NewField(2, 2), flow.NewField(2, 2)}

	t.Run("no interpolation is the mean", func(t *testing.T) {
		got, err := LongExposure(frames, fields, Config{Steps: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for c := 0; c < 3; c++ {
			if diff := cmp.Diff([]float64{0.5, 0.5, 0.5, 0.5}, got.Planes[c].Values(), approx); diff != "" {
				t.Errorf("channel %d (-want +got):\n%s", c, diff)
			}
		}
	})

	t.Run("static in-betweens repeat the earlier frame", func(t *testing.T) {
		got, err := LongExposure(frames, fields, Config{Steps: 4})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// 4 x 0.25, 4 x 0.5, 1 x 0.75
		want := (4*0.25 + 4*0.5 + 0.75) / 9
		if diff := cmp.Diff(want, got.Planes[1].Get(1, 1), approx); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("empty burst", func(t *testing.T) {
		got, err := LongExposure(nil, nil, DefaultConfig())
		if err != nil || !got.Empty() {
			t.Errorf("got %s, %v; want empty raster and no error", got, err)
		}
	})

	t.Run("missing flow", func(t *testing.T) {
		_, err := LongExposure(frames, fields[:1], DefaultConfig())
		if !errors.Is(err, emath.ErrInput) {
			t.Errorf("got %v, want ErrInput", err)
		}
	})

	for _, tc := range channelMismatches {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LongExposure(tc.frames, []flow.Field{flow.NewField(2, 2)}, Config{Steps: 1})
			if !errors.Is(err, emath.ErrSizeMismatch) {
				t.Errorf("got %v, want ErrSizeMismatch", err)
			}
		})
	}
}

var channelMismatches = []struct {
	name   string
	frames []emath.Raster
}{
	{"rgb then gray", []emath.Raster{flat(2, 2, 3, 0.5), flat(2, 2, 1, 0.5)}},
	{"gray then rgb", []emath.Raster{flat(2, 2, 1, 0.5), flat(2, 2, 3, 0.5)}},
}

func TestNaiveMeanChannelMismatch(t *testing.T) {
	for _, tc := range channelMismatches {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NaiveMean(tc.frames, 0); !errors.Is(err, emath.ErrSizeMismatch) {
				t.Errorf("got %v, want ErrSizeMismatch", err)
			}
		})
	}
}

func TestAccumulatorChannelMismatch(t *testing.T) {
	for _, tc := range channelMismatches {
		t.Run(tc.name, func(t *testing.T) {
			acc, err := Accumulator{}.Add(tc.frames[:1])
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, err := acc.Add(tc.frames[1:]); !errors.Is(err, emath.ErrSizeMismatch) {
				t.Errorf("got %v, want ErrSizeMismatch", err)
			}
		})
	}
}

func TestLongExposureParallelAgrees(t *testing.T) {
	frames := []emath.Raster{}
	fields := []flow.Field{}
	for i := 0; i < 5; i++ {
		r := ramp(9, 5)
		frames = append(frames, r.Scale(0.5+0.1*float64(i)))
		if i > 0 {
			f, _ := flow.FromAffine(emath.Identity().Translate(float64(i)*0.7, -0.3))(r, r)
			fields = append(fields, f)
		}
	}

	for _, workers := range []int{0, 1, 3} {
		cfg := Config{Steps: 6, Workers: workers}
		want, err := LongExposure(frames, fields, cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := LongExposureParallel(frames, fields, cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(want.Planes[0].Values(), got.Planes[0].Values(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
			t.Errorf("workers=%d: parallel differs from streaming (-want +got):\n%s", workers, diff)
		}
	}

	if got, err := LongExposureParallel(nil, nil, DefaultConfig()); err != nil || !got.Empty() {
		t.Errorf("empty burst: got %s, %v", got, err)
	}

	for _, tc := range channelMismatches {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LongExposureParallel(tc.frames, []flow.Field{flow.NewField(2, 2)}, Config{Steps: 1})
			if !errors.Is(err, emath.ErrSizeMismatch) {
				t.Errorf("got %v, want ErrSizeMismatch", err)
			}
		})
	}
}

func TestNaiveMean(t *testing.T) {
	frames := []emath.Raster{
		flat(1, 1, 1, 0.5), flat(1, 1, 1, 0.5), flat(1, 1, 1, 0.5),
		flat(1, 1, 1, 0.5), flat(1, 1, 1, 0.5), flat(1, 1, 1, 1.0),
	}

	plain, err := NaiveMean(frames, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(3.5/6, plain.Planes[0].Get(0, 0), approx); diff != "" {
		t.Errorf("plain mean (-want +got):\n%s", diff)
	}

	clipped, err := NaiveMean(frames, 1.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(0.5, clipped.Planes[0].Get(0, 0), approx); diff != "" {
		t.Errorf("clipped mean (-want +got):\n%s", diff)
	}
}
