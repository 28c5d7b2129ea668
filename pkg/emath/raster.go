package emath

import (
	"fmt"
	"image"
	"image/color"

	"github.com/mdouchement/hdr/hdrcolor"
)

// A Raster is a dense multi-channel float image, one FloatGrid per
// channel. Frames are 3 channel RGB in [0,1]. Rasters are treated as
// immutable once produced; every transform returns a new one.
//
// Implements image.Image and hdr.Image, so it can be fed straight into
// the rgbe encoder.
type Raster struct {
	Planes []FloatGrid
}

func NewRaster(w, h, c int) Raster {
	r := Raster{Planes: make([]FloatGrid, c)}
	for i := range r.Planes {
		r.Planes[i] = NewFloatGrid(w, h)
	}
	return r
}

// RasterFromGrids builds a raster from planes of the same size.
func RasterFromGrids(planes ...FloatGrid) Raster {
	return Raster{Planes: planes}
}

// RasterFromImage converts any image to a 3 channel raster in [0,1].
func RasterFromImage(img image.Image) Raster {
	b := img.Bounds()
	r := NewRaster(b.Dx(), b.Dy(), 3)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBA64Model.Convert(img.At(x+b.Min.X, y+b.Min.Y)).(color.NRGBA64)
			r.Planes[0].Set(x, y, float64(c.R)/65535.0)
			r.Planes[1].Set(x, y, float64(c.G)/65535.0)
			r.Planes[2].Set(x, y, float64(c.B)/65535.0)
		}
	}
	return r
}

func (r Raster) NumChannels() int { return len(r.Planes) }
func (r Raster) Empty() bool      { return len(r.Planes) == 0 || r.Planes[0].Empty() }

func (r Raster) Dx() int {
	if len(r.Planes) == 0 {
		return 0
	}
	return r.Planes[0].Dx()
}

func (r Raster) Dy() int {
	if len(r.Planes) == 0 {
		return 0
	}
	return r.Planes[0].Dy()
}

func (r Raster) String() string {
	return fmt.Sprintf("raster[%dx%dx%d]", r.Dx(), r.Dy(), r.NumChannels())
}

func (r Raster) Copy() Raster {
	return r.MapPlanes(func(g FloatGrid) FloatGrid { return g.Copy() })
}

// MapPlanes applies f to each channel, building a new raster.
func (r Raster) MapPlanes(f func(FloatGrid) FloatGrid) Raster {
	out := Raster{Planes: make([]FloatGrid, len(r.Planes))}
	for i, p := range r.Planes {
		out.Planes[i] = f(p)
	}
	return out
}

func (r Raster) Scale(s float64) Raster {
	return r.MapPlanes(func(g FloatGrid) FloatGrid { return g.Scale(s) })
}

// AddInto accumulates o into r, in place. Only used on rasters that
// are private to the caller, such as running sums.
func (r Raster) AddInto(o Raster) {
	for i := range r.Planes {
		r.Planes[i].AddInto(o.Planes[i])
	}
}

func (r Raster) Resize(w, h int) Raster {
	return r.MapPlanes(func(g FloatGrid) FloatGrid { return g.Resize(w, h) })
}

// Luminance returns a single plane, using the Rec.601 weights.
func (r Raster) Luminance() FloatGrid {
	if r.NumChannels() < 3 {
		return r.Planes[0].Copy()
	}
	lum := r.Planes[0].NewFromThis()
	for i := range lum.values {
		lum.values[i] = 0.299*r.Planes[0].values[i] + 0.587*r.Planes[1].values[i] + 0.114*r.Planes[2].values[i]
	}
	return lum
}

// Vec returns the first three channels at a pixel; single channel
// rasters are replicated to gray.
func (r Raster) Vec(x, y int) Vec3 {
	if r.NumChannels() < 3 {
		v := r.Planes[0].Get(x, y)
		return Vec3{v, v, v}
	}
	return Vec3{r.Planes[0].Get(x, y), r.Planes[1].Get(x, y), r.Planes[2].Get(x, y)}
}

// ToImage clips to [0,1] and quantizes to 16 bits per channel. If
// gammaExpand is set, the values are taken as linear and sRGB encoded.
func (r Raster) ToImage(gammaExpand bool) *image.NRGBA64 {
	img := image.NewNRGBA64(r.Bounds())
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			v := r.Vec(x, y)
			v.FloorAt(0)
			v.CeilingAt(1)
			if gammaExpand {
				v = GammaExpand_sRGB(v)
			}
			img.SetNRGBA64(x, y, color.NRGBA64{uint16(v[0] * 65535.0), uint16(v[1] * 65535.0), uint16(v[2] * 65535.0), 0xFFFF})
		}
	}
	return img
}

// Implement image.Image
func (r Raster) ColorModel() color.Model { return hdrcolor.RGBModel }
func (r Raster) Bounds() image.Rectangle { return image.Rect(0, 0, r.Dx(), r.Dy()) }
func (r Raster) At(x, y int) color.Color { return r.HDRAt(x, y) }

// Implement hdr.Image
func (r Raster) Size() int { return r.Dx() * r.Dy() }
func (r Raster) HDRAt(x, y int) hdrcolor.Color {
	v := r.Vec(x, y)
	return hdrcolor.RGB{R: v[0], G: v[1], B: v[2]}
}
