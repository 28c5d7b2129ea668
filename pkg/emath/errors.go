package emath

import (
	"errors"
	"fmt"
)

// The error taxonomy shared by all the compositing stages. Callers
// should match with errors.Is; stages wrap these with their name and
// the dimensions involved.
var (
	ErrInput        = errors.New("input error")
	ErrEmptyInput   = fmt.Errorf("%w: empty input", ErrInput)
	ErrSizeMismatch = fmt.Errorf("%w: size mismatch", ErrInput)

	ErrEstimation = errors.New("estimation failure")

	ErrNumerical      = errors.New("numerical failure")
	ErrSingularSystem = fmt.Errorf("%w: singular system", ErrNumerical)

	ErrResource = errors.New("resource error")
)

// A Sizer is anything with pixel dimensions.
type Sizer interface {
	Dx() int
	Dy() int
}

// CheckSameSize returns a wrapped ErrSizeMismatch naming the stage and
// the first pair of sizes that disagree.
func CheckSameSize(stage string, items ...Sizer) error {
	for i := 1; i < len(items); i++ {
		if items[i].Dx() != items[0].Dx() || items[i].Dy() != items[0].Dy() {
			return fmt.Errorf("%s: %w: item %d is %dx%d, item 0 is %dx%d", stage, ErrSizeMismatch,
				i, items[i].Dx(), items[i].Dy(), items[0].Dx(), items[0].Dy())
		}
	}
	return nil
}
