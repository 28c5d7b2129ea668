package emath

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/fogleman/gg" // Move to https://pkg.go.dev/golang.org/x/image/font#Drawer sometime
	"gonum.org/v1/gonum/stat"
)

// A FloatGrid is a single plane of floats, row-major, with some
// operations. Masks, motion maps and the channels of a Raster are all
// FloatGrids.
type FloatGrid struct {
	stride int
	values []float64
}

func NewFloatGrid(w, h int) FloatGrid {
	return FloatGrid{
		stride: w,
		values: make([]float64, w*h),
	}
}

// NewFilledGrid returns a w*h grid with every value set to v.
func NewFilledGrid(w, h int, v float64) FloatGrid {
	g := NewFloatGrid(w, h)
	g.Fill(v)
	return g
}

// NewGridFromValues wraps a row-major slice; it is not copied.
func NewGridFromValues(w int, vals []float64) FloatGrid {
	return FloatGrid{stride: w, values: vals}
}

func (fg FloatGrid) NewFromThis() FloatGrid  { return NewFloatGrid(fg.Dx(), fg.Dy()) }
func (fg FloatGrid) Set(x, y int, v float64) { fg.values[fg.stride*y+x] = v }
func (fg FloatGrid) Get(x, y int) float64    { return fg.values[fg.stride*y+x] }
func (fg FloatGrid) Dx() int                 { return fg.stride }
func (fg FloatGrid) Values() []float64       { return fg.values }
func (fg FloatGrid) Len() int                { return len(fg.values) }
func (fg FloatGrid) Bounds() image.Rectangle { return image.Rect(0, 0, fg.Dx(), fg.Dy()) }
func (fg FloatGrid) Empty() bool             { return len(fg.values) == 0 }
func (fg FloatGrid) Index(x, y int) int      { return fg.stride*y + x }

func (fg FloatGrid) Dy() int {
	if fg.stride == 0 {
		return 0
	}
	return len(fg.values) / fg.stride
}

// GetClamped reads the grid, replicating the border for out of range coords.
func (fg FloatGrid) GetClamped(x, y int) float64 {
	return fg.Get(ClampInt(x, 0, fg.Dx()-1), ClampInt(y, 0, fg.Dy()-1))
}

func (fg FloatGrid) Copy() FloatGrid {
	g2 := FloatGrid{stride: fg.stride, values: make([]float64, len(fg.values))}
	copy(g2.values, fg.values)
	return g2
}

func (fg FloatGrid) Fill(v float64) {
	for i := range fg.values {
		fg.values[i] = v
	}
}

// Map returns a new grid with f applied to every value.
func (fg FloatGrid) Map(f func(float64) float64) FloatGrid {
	g2 := fg.NewFromThis()
	for i, v := range fg.values {
		g2.values[i] = f(v)
	}
	return g2
}

// Combine returns f(a,b) elementwise; the grids must be the same size.
func (fg FloatGrid) Combine(o FloatGrid, f func(a, b float64) float64) FloatGrid {
	g2 := fg.NewFromThis()
	for i, v := range fg.values {
		g2.values[i] = f(v, o.values[i])
	}
	return g2
}

func (fg FloatGrid) Add(o FloatGrid) FloatGrid {
	return fg.Combine(o, func(a, b float64) float64 { return a + b })
}
func (fg FloatGrid) Sub(o FloatGrid) FloatGrid {
	return fg.Combine(o, func(a, b float64) float64 { return a - b })
}
func (fg FloatGrid) Mul(o FloatGrid) FloatGrid {
	return fg.Combine(o, func(a, b float64) float64 { return a * b })
}
func (fg FloatGrid) Max(o FloatGrid) FloatGrid {
	return fg.Combine(o, math.Max)
}
func (fg FloatGrid) Scale(s float64) FloatGrid {
	return fg.Map(func(v float64) float64 { return v * s })
}

// AddInto accumulates o into fg, in place.
func (fg FloatGrid) AddInto(o FloatGrid) {
	for i, v := range o.values {
		fg.values[i] += v
	}
}

func (fg FloatGrid) MinMax() (float64, float64) {
	if len(fg.values) == 0 {
		return 0, 0
	}
	min, max := fg.values[0], fg.values[0]
	for _, v := range fg.values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return min, max
}

func (fg FloatGrid) Sum() float64 {
	t := 0.0
	for _, v := range fg.values {
		t += v
	}
	return t
}

// Normalize performs a global min-max stretch into [0,1]. A constant
// grid has no range to stretch, and maps to all zeros.
func (fg FloatGrid) Normalize() FloatGrid {
	min, max := fg.MinMax()
	if max-min == 0 {
		return fg.NewFromThis()
	}
	return fg.Map(func(v float64) float64 { return (v - min) / (max - min) })
}

// Round snaps each value to 0 or 1, at 0.5.
func (fg FloatGrid) Round() FloatGrid {
	return fg.Map(func(v float64) float64 {
		if v >= 0.5 {
			return 1
		}
		return 0
	})
}

// Percentile returns the value at quantile p (0..1) of all the values in the grid.
func (fg FloatGrid) Percentile(p float64) float64 {
	if len(fg.values) == 0 {
		return 0
	}
	vals := make([]float64, len(fg.values))
	copy(vals, fg.values)
	sort.Float64s(vals)
	return stat.Quantile(ClampFloat(p, 0, 1), stat.Empirical, vals, nil)
}

// GaussianBlur is a separable 1-2-1 blur (3x3 Gaussian), replicating the border.
func (fg FloatGrid) GaussianBlur() FloatGrid {
	width := fg.Dx()
	height := fg.Dy()
	g2 := fg.NewFromThis()
	T := fg.NewFromThis()

	//--- X blur, build up in T
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			t := 2.0 * fg.Get(x, y)
			t += fg.GetClamped(x-1, y)
			t += fg.GetClamped(x+1, y)
			T.Set(x, y, t/4.0)
		}
	}

	//--- Y blur, read from T and generate output
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			t := 2.0 * T.Get(x, y)
			t += T.GetClamped(x, y-1)
			t += T.GetClamped(x, y+1)
			g2.Set(x, y, t/4.0)
		}
	}

	return g2
}

// Laplacian computes the 4-neighbour discrete Laplacian, 4*v minus the
// neighbours that exist. Missing neighbours at the border are omitted,
// not padded.
func (fg FloatGrid) Laplacian() FloatGrid {
	L := fg.NewFromThis()
	width := fg.Dx()
	height := fg.Dy()

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := 4.0 * fg.Get(x, y)
			if x > 0 {
				v -= fg.Get(x-1, y)
			}
			if x < width-1 {
				v -= fg.Get(x+1, y)
			}
			if y > 0 {
				v -= fg.Get(x, y-1)
			}
			if y < height-1 {
				v -= fg.Get(x, y+1)
			}
			L.Set(x, y, v)
		}
	}

	return L
}

// Sample reads the grid at a fractional position using bilinear
// interpolation. Positions outside the grid are clamped to its extent.
func (fg FloatGrid) Sample(x, y float64) float64 {
	x = ClampFloat(x, 0, float64(fg.Dx()-1))
	y = ClampFloat(y, 0, float64(fg.Dy()-1))

	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	x1, y1 := x0+1, y0+1
	if x1 > fg.Dx()-1 {
		x1 = fg.Dx() - 1
	}
	if y1 > fg.Dy()-1 {
		y1 = fg.Dy() - 1
	}
	fx, fy := x-float64(x0), y-float64(y0)

	top := fg.Get(x0, y0)*(1-fx) + fg.Get(x1, y0)*fx
	bot := fg.Get(x0, y1)*(1-fx) + fg.Get(x1, y1)*fx
	return top*(1-fy) + bot*fy
}

// Resize resamples to w*h with bilinear interpolation, aligning pixel
// centres. Halving an even-sized grid averages each 2x2 block.
func (fg FloatGrid) Resize(w, h int) FloatGrid {
	g2 := NewFloatGrid(w, h)
	if w == fg.Dx() && h == fg.Dy() {
		copy(g2.values, fg.values)
		return g2
	}
	sx := float64(fg.Dx()) / float64(w)
	sy := float64(fg.Dy()) / float64(h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g2.Set(x, y, fg.Sample((float64(x)+0.5)*sx-0.5, (float64(y)+0.5)*sy-0.5))
		}
	}
	return g2
}

// DownSample returns a grid at half resolution, rounding odd sizes up.
func (fg FloatGrid) DownSample() FloatGrid {
	return fg.Resize(HalfSize(fg.Dx()), HalfSize(fg.Dy()))
}

// UpSampleInto resamples the grid to the size of `B`, and writes it there.
func (fg FloatGrid) UpSampleInto(B FloatGrid) {
	copy(B.values, fg.Resize(B.Dx(), B.Dy()).values)
}

// BilateralFilter smooths the grid while preserving edges. Each output
// is the average of the (2*radius+1)^2 neighbourhood, weighted by
// spatial distance and by difference in value. The border is replicated.
func (fg FloatGrid) BilateralFilter(radius int, sigmaValue, sigmaSpace float64) FloatGrid {
	g2 := fg.NewFromThis()
	if radius <= 0 || sigmaValue <= 0 || sigmaSpace <= 0 {
		copy(g2.values, fg.values)
		return g2
	}

	valueCoeff := -0.5 / (sigmaValue * sigmaValue)
	spaceCoeff := -0.5 / (sigmaSpace * sigmaSpace)

	// The spatial weights only depend on the offset; only the disc is used
	n := 2*radius + 1
	spaceW := make([]float64, n*n)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			r2 := float64(dx*dx + dy*dy)
			if r2 > float64(radius*radius) {
				continue
			}
			spaceW[(dy+radius)*n+dx+radius] = math.Exp(r2 * spaceCoeff)
		}
	}

	for y := 0; y < fg.Dy(); y++ {
		for x := 0; x < fg.Dx(); x++ {
			center := fg.Get(x, y)
			sum, wsum := 0.0, 0.0
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					sw := spaceW[(dy+radius)*n+dx+radius]
					if sw == 0 {
						continue
					}
					v := fg.GetClamped(x+dx, y+dy)
					d := v - center
					w := sw * math.Exp(d*d*valueCoeff)
					sum += w * v
					wsum += w
				}
			}
			g2.Set(x, y, sum/wsum)
		}
	}

	return g2
}

func (fg FloatGrid) Stats() string {
	min, max := fg.MinMax()
	return fmt.Sprintf("fg[%dx%d, vals{%f,%f}]", fg.Dx(), fg.Dy(), min, max)
}

// ToGray renders the grid as 8-bit grayscale, clipping to [0,1].
func (fg FloatGrid) ToGray() *image.Gray {
	img := image.NewGray(fg.Bounds())
	for y := 0; y < fg.Dy(); y++ {
		for x := 0; x < fg.Dx(); x++ {
			img.SetGray(x, y, color.Gray{uint8(math.Round(ClampFloat(fg.Get(x, y), 0, 1) * 255.0))})
		}
	}
	return img
}

// GridFromImage reads the luminance of an image into a grid, in [0,1].
func GridFromImage(img image.Image) FloatGrid {
	b := img.Bounds()
	g := NewFloatGrid(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			gray := color.Gray16Model.Convert(img.At(x+b.Min.X, y+b.Min.Y)).(color.Gray16)
			g.Set(x, y, float64(gray.Y)/65535.0)
		}
	}
	return g
}

// ToImg saves a simple grayscale, based on the range of values in the grid, and gamma scaling the
// gray to look normal for human vision
func (fg FloatGrid) ToImg(title, filename string) error {
	min, max := fg.MinMax()
	if max == min {
		max = min + 1
	}

	img := image.NewRGBA64(fg.Bounds())
	for x := 0; x < fg.Dx(); x++ {
		for y := 0; y < fg.Dy(); y++ {
			gray := GammaExpand_F64((fg.Get(x, y) - min) / (max - min))
			col := color.RGBA64{uint16(gray * 65535.0), uint16(gray * 65535.0), uint16(gray * 65535.0), 0xFFFF}
			img.Set(x, y, col)
		}
	}

	dc := gg.NewContextForImage(img)
	dc.SetRGB(1, 0, 0)
	dc.DrawString(title, 10, 20)
	return dc.SavePNG(filename)
}

// HalfSize is the size of the next pyramid level down.
func HalfSize(n int) int {
	if n <= 1 {
		return 1
	}
	return (n + 1) / 2
}
