package subject

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/abworrall/longexpo/pkg/emath"
)

// Shape says how a detected region is filled in a mask.
type Shape int

const (
	Rectangle Shape = iota
	Circle          // centred on the box, radius max(w,h)/2
)

// A Region is one detection, as a bounding box in pixel coordinates.
type Region struct {
	Box   image.Rectangle
	Shape Shape
}

// A Detector finds regions of interest in a frame. Finding nothing is
// not an error.
type Detector func(img emath.Raster) ([]Region, error)

// Rasterize fills the regions into a binary w*h mask.
func Rasterize(w, h int, regions []Region) emath.FloatGrid {
	dc := gg.NewContext(w, h)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	dc.SetRGB(1, 1, 1)

	for _, r := range regions {
		b := r.Box.Canon()
		switch r.Shape {
		case Circle:
			radius := b.Dx()
			if b.Dy() > radius {
				radius = b.Dy()
			}
			dc.DrawCircle(float64(b.Min.X+b.Dx()/2), float64(b.Min.Y+b.Dy()/2), float64(radius/2))
		default:
			dc.DrawRectangle(float64(b.Min.X), float64(b.Min.Y), float64(b.Dx()), float64(b.Dy()))
		}
		dc.Fill()
	}

	// gg antialiases the edges; snap them back to a binary mask
	return emath.GridFromImage(dc.Image()).Round()
}

// Build combines the attention and head masks into the subject mask:
//
//	normalize(attention * (1 + head))
//
// If head is empty, the result is the normalized attention mask.
func Build(attention, head emath.FloatGrid) (emath.FloatGrid, error) {
	if attention.Empty() {
		return emath.FloatGrid{}, fmt.Errorf("subject mask: %w: no attention mask", emath.ErrEmptyInput)
	}
	if head.Empty() {
		return attention.Normalize(), nil
	}
	if err := emath.CheckSameSize("subject mask", attention, head); err != nil {
		return emath.FloatGrid{}, err
	}

	return attention.Combine(head, func(a, h float64) float64 { return a * (1 + h) }).Normalize(), nil
}

// Feather softens the mask edges with a Gaussian of the given sigma.
func Feather(mask emath.FloatGrid, sigma float64) emath.FloatGrid {
	if sigma <= 0 {
		return mask
	}
	return emath.GridFromImage(imaging.Blur(mask.ToGray(), sigma))
}

// Config names the detectors used to build the subject mask from the
// sharp frame. Either may be nil.
type Config struct {
	Attention Detector // eyes, filled as circles
	Head      Detector // faces, filled as rectangles
	Feather   float64
}

// Detect runs the detectors on a frame and builds its subject mask. No
// attention detector, or no detections, gives an all-zero mask.
func Detect(img emath.Raster, cfg Config) (emath.FloatGrid, error) {
	w, h := img.Dx(), img.Dy()
	if img.Empty() {
		return emath.FloatGrid{}, fmt.Errorf("subject detect: %w", emath.ErrEmptyInput)
	}

	attention := emath.NewFloatGrid(w, h)
	if cfg.Attention != nil {
		regions, err := cfg.Attention(img)
		if err != nil {
			return emath.FloatGrid{}, fmt.Errorf("subject attention: %w: %w", emath.ErrEstimation, err)
		}
		attention = Rasterize(w, h, asShape(regions, Circle))
	}

	head := emath.FloatGrid{}
	if cfg.Head != nil {
		regions, err := cfg.Head(img)
		if err != nil {
			return emath.FloatGrid{}, fmt.Errorf("subject head: %w: %w", emath.ErrEstimation, err)
		}
		head = Rasterize(w, h, asShape(regions, Rectangle))
	}

	mask, err := Build(attention, head)
	if err != nil {
		return mask, err
	}
	return Feather(mask, cfg.Feather), nil
}

func asShape(regions []Region, s Shape) []Region {
	out := make([]Region, len(regions))
	for i, r := range regions {
		out[i] = Region{Box: r.Box, Shape: s}
	}
	return out
}
