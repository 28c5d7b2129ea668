package blend

import (
	"fmt"

	"github.com/abworrall/longexpo/pkg/emath"
)

// Alpha composites src over dst through the mask, per pixel:
//
//	out = src*mask + dst*(1-mask)
//
// The single channel mask is applied to every channel.
func Alpha(src emath.Raster, mask emath.FloatGrid, dst emath.Raster) (emath.Raster, error) {
	if err := checkInputs("alpha blend", src, mask, dst); err != nil {
		return emath.Raster{}, err
	}

	out := emath.NewRaster(src.Dx(), src.Dy(), src.NumChannels())
	m := mask.Values()
	for c := range out.Planes {
		s, d, o := src.Planes[c].Values(), dst.Planes[c].Values(), out.Planes[c].Values()
		for i := range o {
			o[i] = s[i]*m[i] + d[i]*(1-m[i])
		}
	}
	return out, nil
}

func checkInputs(stage string, src emath.Raster, mask emath.FloatGrid, dst emath.Raster) error {
	if src.Empty() || dst.Empty() || mask.Empty() {
		return fmt.Errorf("%s: %w", stage, emath.ErrEmptyInput)
	}
	if err := emath.CheckSameSize(stage, src, mask, dst); err != nil {
		return err
	}
	if src.NumChannels() != dst.NumChannels() {
		return fmt.Errorf("%s: %w: source has %d channels, target %d", stage, emath.ErrSizeMismatch,
			src.NumChannels(), dst.NumChannels())
	}
	return nil
}
