package blend

import (
	"fmt"
	"log"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/abworrall/longexpo/pkg/emath"
)

// PoissonConfig controls the sparse solve.
type PoissonConfig struct {
	Tolerance     float64 // relative residual at which CG stops
	MaxIterations int     // 0 means 2n+100 for n unknowns
	Verbose       bool
}

func DefaultPoissonConfig() PoissonConfig {
	return PoissonConfig{Tolerance: 1e-10}
}

// MaxDensePixels bounds SolveDense; the dense matrix needs (W*H)^2 floats.
const MaxDensePixels = 4096

// A System is the linear system A*x = b for Poisson blending over one
// mask. Pixels are indexed row major, i = y*W + x. Outside the mask a
// row is the identity; inside, it is the 4-neighbour Laplacian with 4
// on the diagonal and -1 for each neighbour within the image. A only
// depends on the mask, so one System serves every channel.
type System struct {
	A      *SparseMatrix
	W, H   int
	Inside []bool
	free   []int
}

// NewSystem builds A from a mask, which is rounded to 0 or 1.
func NewSystem(mask emath.FloatGrid) *System {
	w, h := mask.Dx(), mask.Dy()
	n := w * h
	s := &System{
		W:      w,
		H:      h,
		Inside: make([]bool, n),
		A: &SparseMatrix{
			N:      n,
			RowPtr: make([]int, 0, n+1),
			Cols:   make([]int, 0, n*2),
			Vals:   make([]float64, 0, n*2),
		},
	}

	A := s.A
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := mask.Index(x, y)
			A.RowPtr = append(A.RowPtr, len(A.Vals))
			if mask.Get(x, y) < 0.5 {
				A.Cols = append(A.Cols, i)
				A.Vals = append(A.Vals, 1)
				continue
			}

			s.Inside[i] = true
			s.free = append(s.free, i)
			// Column order: up, left, centre, right, down
			if y > 0 {
				A.Cols = append(A.Cols, i-w)
				A.Vals = append(A.Vals, -1)
			}
			if x > 0 {
				A.Cols = append(A.Cols, i-1)
				A.Vals = append(A.Vals, -1)
			}
			A.Cols = append(A.Cols, i)
			A.Vals = append(A.Vals, 4)
			if x < w-1 {
				A.Cols = append(A.Cols, i+1)
				A.Vals = append(A.Vals, -1)
			}
			if y < h-1 {
				A.Cols = append(A.Cols, i+w)
				A.Vals = append(A.Vals, -1)
			}
		}
	}
	A.RowPtr = append(A.RowPtr, len(A.Vals))

	return s
}

func (s *System) Dx() int { return s.W }
func (s *System) Dy() int { return s.H }

// RHS builds b for one channel: the target value outside the mask, and
// the source's Laplacian inside it.
func (s *System) RHS(src, dst emath.FloatGrid) []float64 {
	b := make([]float64, s.W*s.H)
	lap := src.Laplacian()
	for i := range b {
		if s.Inside[i] {
			b[i] = lap.Values()[i]
		} else {
			b[i] = dst.Values()[i]
		}
	}
	return b
}

// Solve runs conjugate gradients. Identity rows are settled directly
// from b, and the Laplacian rows are solved as a symmetric positive
// definite system with those values as boundary conditions.
func (s *System) Solve(b []float64, cfg PoissonConfig) ([]float64, error) {
	x := make([]float64, len(b))
	copy(x, b)
	for _, i := range s.free {
		x[i] = 0
	}

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 2*len(s.free) + 100
	}
	iters, err := conjugateGradient(s.A, b, x, s.free, cfg.Tolerance, maxIter)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		log.Printf("poisson: %d unknowns solved in %d iterations", len(s.free), iters)
	}
	return x, nil
}

// SolveDense factorizes the whole of A as a dense matrix. It is
// quadratic in the pixel count, and refuses anything bigger than
// MaxDensePixels; it exists as a reference for checking Solve.
func (s *System) SolveDense(b []float64) ([]float64, error) {
	if s.A.N > MaxDensePixels {
		return nil, fmt.Errorf("poisson dense: %w: %dx%d is too large for a dense solve", emath.ErrInput, s.W, s.H)
	}
	var x mat.VecDense
	if err := x.SolveVec(s.A.Dense(), mat.NewVecDense(len(b), b)); err != nil {
		return nil, fmt.Errorf("poisson dense: %w: %v", emath.ErrSingularSystem, err)
	}
	out := make([]float64, len(b))
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out, nil
}

// Poisson blends src into dst over the mask, in the gradient domain:
// inside the mask the output has the source's Laplacian, and outside
// it the output is exactly the target. Channels are solved concurrently.
func Poisson(src emath.Raster, mask emath.FloatGrid, dst emath.Raster, cfg PoissonConfig) (emath.Raster, error) {
	return poisson(src, mask, dst, func(s *System, b []float64) ([]float64, error) {
		return s.Solve(b, cfg)
	})
}

// PoissonDense is Poisson using the dense reference solver.
func PoissonDense(src emath.Raster, mask emath.FloatGrid, dst emath.Raster) (emath.Raster, error) {
	return poisson(src, mask, dst, func(s *System, b []float64) ([]float64, error) {
		return s.SolveDense(b)
	})
}

func poisson(src emath.Raster, mask emath.FloatGrid, dst emath.Raster, solve func(*System, []float64) ([]float64, error)) (emath.Raster, error) {
	if err := checkInputs("poisson blend", src, mask, dst); err != nil {
		return emath.Raster{}, err
	}

	sys := NewSystem(mask)
	out := emath.Raster{Planes: make([]emath.FloatGrid, src.NumChannels())}
	errs := make([]error, src.NumChannels())

	var wg sync.WaitGroup
	for c := range src.Planes {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			x, err := solve(sys, sys.RHS(src.Planes[c], dst.Planes[c]))
			if err != nil {
				errs[c] = fmt.Errorf("poisson blend %dx%d channel %d: %w", sys.W, sys.H, c, err)
				return
			}
			out.Planes[c] = emath.NewGridFromValues(sys.W, x)
		}(c)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return emath.Raster{}, err
		}
	}
	return out, nil
}
