package exposure

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/abworrall/longexpo/pkg/emath"
)

// NaiveMean averages the real frames only, with no motion compensation.
// If sigmaClip > 0, values further than sigmaClip sample standard
// deviations from a pixel's mean are rejected before averaging, which
// drops transients that only appear in one or two frames.
func NaiveMean(frames []emath.Raster, sigmaClip float64) (emath.Raster, error) {
	if len(frames) == 0 {
		return emath.Raster{}, nil
	}
	sizers := make([]emath.Sizer, len(frames))
	for i := range frames {
		sizers[i] = frames[i]
	}
	if err := emath.CheckSameSize("naive mean", sizers...); err != nil {
		return emath.Raster{}, err
	}
	if err := checkChannels("naive mean", frames...); err != nil {
		return emath.Raster{}, err
	}

	out := emath.NewRaster(frames[0].Dx(), frames[0].Dy(), frames[0].NumChannels())
	vals := make(stats.Float64Data, len(frames))
	kept := make(stats.Float64Data, 0, len(frames))

	for c := range out.Planes {
		for i := 0; i < out.Planes[c].Len(); i++ {
			for f := range frames {
				vals[f] = frames[f].Planes[c].Values()[i]
			}

			m, err := stats.Mean(vals)
			if err != nil {
				return emath.Raster{}, fmt.Errorf("naive mean: %v", err)
			}

			if sigmaClip > 0 && len(vals) > 2 {
				sd, err := stats.StandardDeviationSample(vals)
				if err != nil {
					return emath.Raster{}, fmt.Errorf("naive mean: %v", err)
				}
				kept = kept[:0]
				for _, v := range vals {
					if math.Abs(v-m) <= sigmaClip*sd {
						kept = append(kept, v)
					}
				}
				if len(kept) > 0 {
					if m, err = stats.Mean(kept); err != nil {
						return emath.Raster{}, fmt.Errorf("naive mean: %v", err)
					}
				}
			}

			out.Planes[c].Values()[i] = m
		}
	}

	return out, nil
}
