//go:build gocv

package subject

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/abworrall/longexpo/pkg/emath"
)

// CascadeConfig describes a Haar cascade and how to run it.
type CascadeConfig struct {
	File         string // e.g. haarcascade_eye.xml
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

const CascadeAvailable = true

// CascadeDetector returns a detector backed by an OpenCV cascade classifier.
func CascadeDetector(cfg CascadeConfig) Detector {
	return func(img emath.Raster) ([]Region, error) {
		classifier := gocv.NewCascadeClassifier()
		defer classifier.Close()
		if !classifier.Load(cfg.File) {
			return nil, fmt.Errorf("cascade '%s': %w: could not load", cfg.File, emath.ErrEstimation)
		}

		gray := img.Luminance().ToGray()
		mat, err := gocv.NewMatFromBytes(img.Dy(), img.Dx(), gocv.MatTypeCV8UC1, gray.Pix)
		if err != nil {
			return nil, fmt.Errorf("cascade '%s': %w: %v", cfg.File, emath.ErrEstimation, err)
		}
		defer mat.Close()

		minSize := image.Pt(cfg.MinSize, cfg.MinSize)
		rects := classifier.DetectMultiScaleWithParams(mat, cfg.ScaleFactor, cfg.MinNeighbors, 0, minSize, image.Point{})

		regions := make([]Region, len(rects))
		for i, r := range rects {
			regions[i] = Region{Box: r}
		}
		return regions, nil
	}
}
