package flow

import (
	"fmt"

	"github.com/abworrall/longexpo/pkg/emath"
)

// An Estimator computes the forward flow from frame a to frame b. It
// must return a field the same size as the frames, or an error wrapping
// emath.ErrEstimation; callers never substitute a zero field on failure.
type Estimator func(a, b emath.Raster) (Field, error)

// CheckPair validates the frames handed to an estimator.
func CheckPair(method string, a, b emath.Raster) error {
	if a.Empty() || b.Empty() {
		return fmt.Errorf("flow %s: %w", method, emath.ErrEmptyInput)
	}
	return emath.CheckSameSize("flow "+method, a, b)
}

// Zero reports no motion at all.
func Zero(a, b emath.Raster) (Field, error) {
	if err := CheckPair("zero", a, b); err != nil {
		return Field{}, err
	}
	return NewField(a.Dx(), a.Dy()), nil
}

// FromAffine returns an estimator that ignores the pixels, and reports
// the displacement that `m` applies to each pixel position.
func FromAffine(m emath.Aff3) Estimator {
	return func(a, b emath.Raster) (Field, error) {
		if err := CheckPair("affine", a, b); err != nil {
			return Field{}, err
		}
		f := NewField(a.Dx(), a.Dy())
		for y := 0; y < f.Dy(); y++ {
			for x := 0; x < f.Dx(); x++ {
				x2, y2 := m.Apply(float64(x), float64(y))
				f.Set(x, y, x2-float64(x), y2-float64(y))
			}
		}
		return f, nil
	}
}
