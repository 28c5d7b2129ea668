//go:build !gocv

package flow

import (
	"fmt"

	"github.com/abworrall/longexpo/pkg/emath"
)

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

const FarnebackAvailable = false

// Farneback needs OpenCV; without the gocv build tag every call fails.
func Farneback(cfg FarnebackConfig) Estimator {
	return func(a, b emath.Raster) (Field, error) {
		return Field{}, fmt.Errorf("flow farneback: %w: built without the gocv tag", emath.ErrEstimation)
	}
}
