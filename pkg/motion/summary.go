package motion

import (
	"fmt"

	"github.com/codahale/hdrhistogram"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/abworrall/longexpo/pkg/emath"
)

// Magnitudes are recorded in thousandths of a pixel
const (
	summaryUnit = 1000.0
	summaryMax  = 100000 * summaryUnit
)

// A Summary describes the distribution of a motion magnitude map, in pixels.
type Summary struct {
	Count         int64
	Mean          float64
	P50, P90, P99 float64
	Max           float64
}

func (s Summary) String() string {
	return fmt.Sprintf("n=%d mean=%.3fpx p50=%.3fpx p90=%.3fpx p99=%.3fpx max=%.3fpx",
		s.Count, s.Mean, s.P50, s.P90, s.P99, s.Max)
}

func NewSummary(F emath.FloatGrid) Summary {
	h := hdrhistogram.New(0, int64(summaryMax), 3)
	for _, v := range F.Values() {
		h.RecordValue(int64(emath.ClampFloat(v*summaryUnit, 0, summaryMax)))
	}

	return Summary{
		Count: h.TotalCount(),
		Mean:  h.Mean() / summaryUnit,
		P50:   float64(h.ValueAtQuantile(50)) / summaryUnit,
		P90:   float64(h.ValueAtQuantile(90)) / summaryUnit,
		P99:   float64(h.ValueAtQuantile(99)) / summaryUnit,
		Max:   float64(h.Max()) / summaryUnit,
	}
}

// PlotHistogram writes a histogram of the magnitude map to an image
// file; the format follows the extension (png, svg, pdf).
func PlotHistogram(F emath.FloatGrid, title, filename string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "motion (px)"
	p.Y.Label.Text = "pixels"

	h, err := plotter.NewHist(plotter.Values(F.Values()), 32)
	if err != nil {
		return fmt.Errorf("motion histogram '%s': %v", filename, err)
	}
	p.Add(h)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		return fmt.Errorf("motion histogram save '%s': %v", filename, err)
	}
	return nil
}
