//go:build gocv

package flow

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/abworrall/longexpo/pkg/emath"
)

// FarnebackConfig holds the parameters of OpenCV's polynomial expansion
// flow estimator.
type FarnebackConfig struct {
	PyrScale   float64
	Levels     int
	WinSize    int
	Iterations int
	PolyN      int
	PolySigma  float64
}

func DefaultFarnebackConfig() FarnebackConfig {
	return FarnebackConfig{PyrScale: 0.5, Levels: 5, WinSize: 11, Iterations: 5, PolyN: 5, PolySigma: 1.1}
}

// FarnebackAvailable reports whether this binary was built with gocv.
const FarnebackAvailable = true

// Farneback returns an estimator backed by gocv.CalcOpticalFlowFarneback,
// run on the 8-bit luminance of the frames.
func Farneback(cfg FarnebackConfig) Estimator {
	return func(a, b emath.Raster) (Field, error) {
		if err := CheckPair("farneback", a, b); err != nil {
			return Field{}, err
		}

		prev, err := grayMat(a)
		if err != nil {
			return Field{}, err
		}
		defer prev.Close()
		next, err := grayMat(b)
		if err != nil {
			return Field{}, err
		}
		defer next.Close()

		flow := gocv.NewMat()
		defer flow.Close()
		gocv.CalcOpticalFlowFarneback(prev, next, &flow, cfg.PyrScale, cfg.Levels, cfg.WinSize,
			cfg.Iterations, cfg.PolyN, cfg.PolySigma, 0)
		if flow.Empty() || flow.Rows() != a.Dy() || flow.Cols() != a.Dx() {
			return Field{}, fmt.Errorf("flow farneback: %w: got %dx%d result for %dx%d frames",
				emath.ErrEstimation, flow.Cols(), flow.Rows(), a.Dx(), a.Dy())
		}

		f := NewField(a.Dx(), a.Dy())
		for y := 0; y < f.Dy(); y++ {
			for x := 0; x < f.Dx(); x++ {
				v := flow.GetVecfAt(y, x)
				f.Set(x, y, float64(v[0]), float64(v[1]))
			}
		}
		return f, nil
	}
}

func grayMat(r emath.Raster) (gocv.Mat, error) {
	gray := r.Luminance().ToGray()
	m, err := gocv.NewMatFromBytes(r.Dy(), r.Dx(), gocv.MatTypeCV8UC1, gray.Pix)
	if err != nil {
		return m, fmt.Errorf("flow farneback: %w: %v", emath.ErrEstimation, err)
	}
	return m, nil
}
