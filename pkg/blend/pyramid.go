package blend

import (
	"fmt"

	"github.com/abworrall/longexpo/pkg/emath"
)

// PyramidConfig sets the number of levels, including the coarse residual.
type PyramidConfig struct {
	Depth int
}

func DefaultPyramidConfig() PyramidConfig {
	return PyramidConfig{Depth: 4}
}

// LaplacianPyramid splits g into depth levels: depth-1 detail levels,
// finest first, then the coarse residual. Each level blurs the image,
// halves it, and keeps as detail whatever the halved image loses when
// expanded back to the level's size. Reconstruct inverts it.
func LaplacianPyramid(g emath.FloatGrid, depth int) []emath.FloatGrid {
	levels := make([]emath.FloatGrid, 0, depth)
	img := g
	for i := 0; i < depth-1; i++ {
		down := img.GaussianBlur().DownSample()
		levels = append(levels, img.Sub(down.Resize(img.Dx(), img.Dy())))
		img = down
	}
	return append(levels, img)
}

// GaussianPyramid builds the matching levels for a mask: each level
// but the last is the blurred mask at that resolution, and the last is
// the blurred and halved mask from the level above.
func GaussianPyramid(g emath.FloatGrid, depth int) []emath.FloatGrid {
	levels := make([]emath.FloatGrid, 0, depth)
	img := g
	for i := 0; i < depth-1; i++ {
		blurred := img.GaussianBlur()
		levels = append(levels, blurred)
		img = blurred.DownSample()
	}
	return append(levels, img)
}

// Reconstruct collapses a Laplacian pyramid, coarsest level first.
func Reconstruct(levels []emath.FloatGrid) emath.FloatGrid {
	img := levels[len(levels)-1]
	for i := len(levels) - 2; i >= 0; i-- {
		img = img.Resize(levels[i].Dx(), levels[i].Dy()).Add(levels[i])
	}
	return img
}

// Pyramid blends src into dst over the mask one frequency band at a
// time, so that seams are wide at low frequencies and narrow at high ones.
func Pyramid(src emath.Raster, mask emath.FloatGrid, dst emath.Raster, cfg PyramidConfig) (emath.Raster, error) {
	if err := checkInputs("pyramid blend", src, mask, dst); err != nil {
		return emath.Raster{}, err
	}
	if cfg.Depth < 1 {
		return emath.Raster{}, fmt.Errorf("pyramid blend: %w: depth %d", emath.ErrInput, cfg.Depth)
	}

	masks := GaussianPyramid(mask, cfg.Depth)
	out := emath.Raster{Planes: make([]emath.FloatGrid, src.NumChannels())}

	for c := range src.Planes {
		ls := LaplacianPyramid(src.Planes[c], cfg.Depth)
		ld := LaplacianPyramid(dst.Planes[c], cfg.Depth)
		blended := make([]emath.FloatGrid, cfg.Depth)
		for i := range blended {
			m := masks[i]
			blended[i] = ls[i].Mul(m).Add(ld[i].Mul(m.Map(func(v float64) float64 { return 1 - v })))
		}
		out.Planes[c] = Reconstruct(blended)
	}

	return out, nil
}
