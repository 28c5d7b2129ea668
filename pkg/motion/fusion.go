package motion

import (
	"fmt"
	"log"

	"github.com/abworrall/longexpo/pkg/emath"
	"github.com/abworrall/longexpo/pkg/flow"
)

var (
	References = []string{"max", "percentile"}
)

func ListReferences() string {
	return fmt.Sprintf("%v", References)
}

// FusionConfig picks the statistic used as the motion reference FRef.
// "max" is the raw global maximum; "percentile" is the value at
// Percentile (0..1), which ignores a few outlier pixels.
type FusionConfig struct {
	Reference  string
	Percentile float64
}

func DefaultFusionConfig() FusionConfig {
	return FusionConfig{Reference: "max", Percentile: 0.99}
}

// Fuse combines the flow fields of a burst into a single magnitude map
// F, where each pixel holds the largest displacement seen across all
// the fields, and a flat reference raster FRef holding the reference
// statistic of F.
func Fuse(fields []flow.Field, cfg FusionConfig) (F, FRef emath.FloatGrid, err error) {
	if len(fields) == 0 {
		return F, FRef, fmt.Errorf("motion fusion: %w: no flow fields", emath.ErrEmptyInput)
	}
	sizers := make([]emath.Sizer, len(fields))
	for i := range fields {
		sizers[i] = fields[i]
	}
	if err := emath.CheckSameSize("motion fusion", sizers...); err != nil {
		return F, FRef, err
	}

	F = fields[0].Magnitude()
	for _, f := range fields[1:] {
		F = F.Max(f.Magnitude())
	}

	ref := 0.0
	switch cfg.Reference {
	case "max", "":
		_, ref = F.MinMax()
	case "percentile":
		ref = F.Percentile(cfg.Percentile)
	default:
		return F, FRef, fmt.Errorf("motion fusion: %w: no reference statistic named '%s', wanted %s",
			emath.ErrInput, cfg.Reference, ListReferences())
	}

	FRef = emath.NewFilledGrid(F.Dx(), F.Dy(), ref)
	return F, FRef, nil
}

// Summarize logs the magnitude map's distribution.
func Summarize(F emath.FloatGrid) {
	s := NewSummary(F)
	log.Printf("motion: %s", s)
}
