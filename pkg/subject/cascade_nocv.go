//go:build !gocv

package subject

import (
	"fmt"

	"github.com/abworrall/longexpo/pkg/emath"
)

type CascadeConfig struct {
	File         string
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
}

func DefaultEyeCascade(file string) CascadeConfig {
	return CascadeConfig{File: file, ScaleFactor: 1.1, MinNeighbors: 10, MinSize: 20}
}

func DefaultFaceCascade(file string) CascadeConfig {
	return CascadeConfig{File: file, ScaleFactor: 1.1, MinNeighbors: 5, MinSize: 30}
}

const CascadeAvailable = false

// CascadeDetector needs OpenCV; without the gocv build tag every call fails.
func CascadeDetector(cfg CascadeConfig) Detector {
	return func(img emath.Raster) ([]Region, error) {
		return nil, fmt.Errorf("cascade '%s': %w: built without the gocv tag", cfg.File, emath.ErrEstimation)
	}
}
