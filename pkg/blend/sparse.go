package blend

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/abworrall/longexpo/pkg/emath"
)

// A SparseMatrix is a square matrix in compressed row storage: the
// entries of row i are Cols[RowPtr[i]:RowPtr[i+1]] and the same slice
// of Vals.
type SparseMatrix struct {
	N      int
	RowPtr []int
	Cols   []int
	Vals   []float64
}

func (m *SparseMatrix) NNZ() int { return len(m.Vals) }

func (m *SparseMatrix) At(i, j int) float64 {
	for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
		if m.Cols[k] == j {
			return m.Vals[k]
		}
	}
	return 0
}

// MulVec computes dst = m*x.
func (m *SparseMatrix) MulVec(dst, x []float64) {
	for i := 0; i < m.N; i++ {
		t := 0.0
		for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
			t += m.Vals[k] * x[m.Cols[k]]
		}
		dst[i] = t
	}
}

// Dense expands the matrix. This needs N*N floats; only for small systems.
func (m *SparseMatrix) Dense() *mat.Dense {
	d := mat.NewDense(m.N, m.N, nil)
	for i := 0; i < m.N; i++ {
		for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
			d.Set(i, m.Cols[k], m.Vals[k])
		}
	}
	return d
}

// conjugateGradient solves the subsystem of rows `free` against the
// columns `free`, holding every other unknown at its value in x. That
// subsystem of the Poisson matrix is symmetric positive definite. The
// solution is written into x.
func conjugateGradient(A *SparseMatrix, b, x []float64, free []int, tol float64, maxIter int) (int, error) {
	nf := len(free)
	if nf == 0 {
		return 0, nil
	}
	compact := make([]int, A.N)
	for i := range compact {
		compact[i] = -1
	}
	for k, i := range free {
		compact[i] = k
	}

	// Move the known unknowns over to the right hand side
	rhs := make([]float64, nf)
	xf := make([]float64, nf)
	for k, i := range free {
		t := b[i]
		for e := A.RowPtr[i]; e < A.RowPtr[i+1]; e++ {
			if j := A.Cols[e]; compact[j] < 0 {
				t -= A.Vals[e] * x[j]
			}
		}
		rhs[k] = t
		xf[k] = x[i]
	}

	apply := func(dst, v []float64) {
		for k, i := range free {
			t := 0.0
			for e := A.RowPtr[i]; e < A.RowPtr[i+1]; e++ {
				if c := compact[A.Cols[e]]; c >= 0 {
					t += A.Vals[e] * v[c]
				}
			}
			dst[k] = t
		}
	}

	bNorm := floats.Norm(rhs, 2)
	if bNorm == 0 {
		bNorm = 1
	}
	r := make([]float64, nf)
	p := make([]float64, nf)
	Ap := make([]float64, nf)

	apply(Ap, xf)
	floats.SubTo(r, rhs, Ap)
	copy(p, r)
	rs := floats.Dot(r, r)

	iter := 0
	for ; iter < maxIter && math.Sqrt(rs) > tol*bNorm; iter++ {
		apply(Ap, p)
		pAp := floats.Dot(p, Ap)
		if !(pAp > 0) {
			return iter, fmt.Errorf("%w: curvature %g at iteration %d", emath.ErrSingularSystem, pAp, iter)
		}
		alpha := rs / pAp
		floats.AddScaled(xf, alpha, p)
		floats.AddScaled(r, -alpha, Ap)
		rsNew := floats.Dot(r, r)
		floats.AddScaledTo(p, r, rsNew/rs, p)
		rs = rsNew
	}

	if math.IsNaN(rs) || math.Sqrt(rs) > tol*bNorm {
		return iter, fmt.Errorf("%w: no convergence after %d iterations, residual %g (tolerance %g)",
			emath.ErrSingularSystem, iter, math.Sqrt(rs), tol*bNorm)
	}

	for k, i := range free {
		x[i] = xf[k]
	}
	return iter, nil
}
