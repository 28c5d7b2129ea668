package flow

import (
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Visualize renders the field with the usual colour wheel encoding:
// hue is the direction of motion, brightness its magnitude relative to
// the largest displacement in the field.
func Visualize(f Field) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, f.Dx(), f.Dy()))
	_, maxMag := f.Magnitude().MinMax()
	if maxMag == 0 {
		maxMag = 1
	}

	for y := 0; y < f.Dy(); y++ {
		for x := 0; x < f.Dx(); x++ {
			dx, dy := f.At(x, y)
			hue := math.Atan2(dy, dx) * 180.0 / math.Pi
			if hue < 0 {
				hue += 360
			}
			c := colorful.Hsv(hue, 1.0, math.Hypot(dx, dy)/maxMag).Clamped()
			img.Set(x, y, c)
		}
	}
	return img
}
