package motion

import (
	"fmt"
	"math"

	"github.com/abworrall/longexpo/pkg/emath"
)

// WeightConfig holds the knobs for turning motion magnitude into a
// blend weight. Alpha and Beta scale FRef into the low and high ends of
// the linear ramp; the bilateral filter then smooths the weights
// without blurring across motion boundaries.
type WeightConfig struct {
	Alpha        float64
	Beta         float64
	FilterRadius int
	SigmaValue   float64
	SigmaSpace   float64
}

func DefaultWeightConfig() WeightConfig {
	return WeightConfig{
		Alpha:        0.1,
		Beta:         0.6,
		FilterRadius: 7,
		SigmaValue:   75,
		SigmaSpace:   75,
	}
}

func (c WeightConfig) Validate() error {
	if !(c.Alpha < c.Beta) {
		return fmt.Errorf("motion weights: %w: need alpha < beta, got %f, %f", emath.ErrInput, c.Alpha, c.Beta)
	}
	return nil
}

// MFlow remaps F through the clipped linear ramp
//
//	alphaRef = max(FRef*Alpha, 0)
//	betaRef  = min(FRef*Beta, 1)
//	weight   = (F - alphaRef) / (betaRef - alphaRef)
//
// and applies the edge preserving filter. Where the ramp has no width
// (FRef is zero for a static scene) the weight is 0. The result is not
// clamped; use Weights for a mask in [0,1].
func MFlow(F, FRef emath.FloatGrid, cfg WeightConfig) (emath.FloatGrid, error) {
	if err := cfg.Validate(); err != nil {
		return emath.FloatGrid{}, err
	}
	if F.Empty() {
		return emath.FloatGrid{}, fmt.Errorf("motion weights: %w", emath.ErrEmptyInput)
	}
	if err := emath.CheckSameSize("motion weights", F, FRef); err != nil {
		return emath.FloatGrid{}, err
	}

	W := F.NewFromThis()
	for y := 0; y < F.Dy(); y++ {
		for x := 0; x < F.Dx(); x++ {
			ref := FRef.Get(x, y)
			alphaRef := math.Max(ref*cfg.Alpha, 0)
			betaRef := math.Min(ref*cfg.Beta, 1)
			den := betaRef - alphaRef
			if den == 0 {
				continue
			}
			W.Set(x, y, (F.Get(x, y)-alphaRef)/den)
		}
	}

	return W.BilateralFilter(cfg.FilterRadius, cfg.SigmaValue, cfg.SigmaSpace), nil
}

// Weights is MFlow followed by the min-max stretch into [0,1].
func Weights(F, FRef emath.FloatGrid, cfg WeightConfig) (emath.FloatGrid, error) {
	W, err := MFlow(F, FRef, cfg)
	if err != nil {
		return W, err
	}
	return W.Normalize(), nil
}
