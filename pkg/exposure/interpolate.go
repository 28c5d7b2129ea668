package exposure

import (
	"fmt"

	"github.com/abworrall/longexpo/pkg/emath"
	"github.com/abworrall/longexpo/pkg/flow"
)

// Warp synthesizes the frame at time fraction t along the flow from a:
// each output pixel (x,y) samples a at (x + t*dx, y + t*dy), bilinearly,
// clamped to the frame.
func Warp(a emath.Raster, f flow.Field, t float64) emath.Raster {
	out := emath.NewRaster(a.Dx(), a.Dy(), a.NumChannels())
	for y := 0; y < a.Dy(); y++ {
		for x := 0; x < a.Dx(); x++ {
			dx, dy := f.At(x, y)
			sx, sy := float64(x)+t*dx, float64(y)+t*dy
			for c, plane := range a.Planes {
				out.Planes[c].Set(x, y, plane.Sample(sx, sy))
			}
		}
	}
	return out
}

// InBetween synthesizes the n-1 frames between a and b, at t = 1/n ..
// (n-1)/n, by warping a along the flow f from a to b.
func InBetween(a, b emath.Raster, f flow.Field, n int) ([]emath.Raster, error) {
	if n < 1 {
		return nil, fmt.Errorf("interpolate: %w: need at least 1 step, got %d", emath.ErrInput, n)
	}
	if a.Empty() {
		return nil, fmt.Errorf("interpolate: %w", emath.ErrEmptyInput)
	}
	if err := emath.CheckSameSize("interpolate", a, b, f); err != nil {
		return nil, err
	}

	frames := make([]emath.Raster, 0, n-1)
	for k := 1; k < n; k++ {
		frames = append(frames, Warp(a, f, float64(k)/float64(n)))
	}
	return frames, nil
}
