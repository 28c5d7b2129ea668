package flow

import (
	"fmt"
	"math"

	"github.com/abworrall/longexpo/pkg/emath"
)

// A Field is the dense per-pixel displacement that takes a frame to
// the next one in the burst. It is produced once per adjacent pair,
// and only read afterwards.
type Field struct {
	DX emath.FloatGrid
	DY emath.FloatGrid
}

func NewField(w, h int) Field {
	return Field{DX: emath.NewFloatGrid(w, h), DY: emath.NewFloatGrid(w, h)}
}

func (f Field) Dx() int                        { return f.DX.Dx() }
func (f Field) Dy() int                        { return f.DX.Dy() }
func (f Field) At(x, y int) (float64, float64) { return f.DX.Get(x, y), f.DY.Get(x, y) }
func (f Field) Set(x, y int, dx, dy float64)   { f.DX.Set(x, y, dx); f.DY.Set(x, y, dy) }
func (f Field) AsRaster() emath.Raster         { return emath.RasterFromGrids(f.DX, f.DY) }
func (f Field) String() string                 { return fmt.Sprintf("flow[%dx%d]", f.Dx(), f.Dy()) }

// FieldFromRaster takes a 2 channel raster as (dx,dy).
func FieldFromRaster(r emath.Raster) (Field, error) {
	if r.NumChannels() != 2 {
		return Field{}, fmt.Errorf("flow field from raster: %w: want 2 channels, got %d", emath.ErrInput, r.NumChannels())
	}
	return Field{DX: r.Planes[0], DY: r.Planes[1]}, nil
}

// Magnitude is the Euclidean norm of the displacement at each pixel.
func (f Field) Magnitude() emath.FloatGrid {
	return f.DX.Combine(f.DY, math.Hypot)
}
