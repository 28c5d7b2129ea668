package flow

import (
	"fmt"

	"github.com/anthonynsimon/bild/blur"

	"github.com/abworrall/longexpo/pkg/emath"
)

// HornSchunckConfig holds the parameters of the Horn & Schunck estimator.
type HornSchunckConfig struct {
	Alpha        float64 // smoothness weight; smaller trusts the brightness constancy more
	Iterations   int     // Jacobi iterations
	PreBlurSigma float64 // Gaussian pre-smoothing of the luminance, 0 to disable
}

func DefaultHornSchunckConfig() HornSchunckConfig {
	return HornSchunckConfig{
		Alpha:        0.01,
		Iterations:   200,
		PreBlurSigma: 1.0,
	}
}

// HornSchunck returns a pure Go estimator, which computes a dense flow
// field using the method of Horn & Schunck with an iterative Jacobi
// scheme on the luminance of the two frames.
func HornSchunck(cfg HornSchunckConfig) Estimator {
	return func(a, b emath.Raster) (Field, error) {
		if err := CheckPair("hornschunck", a, b); err != nil {
			return Field{}, err
		}
		if cfg.Alpha <= 0 || cfg.Iterations <= 0 {
			return Field{}, fmt.Errorf("flow hornschunck: %w: bad config alpha=%f iterations=%d",
				emath.ErrEstimation, cfg.Alpha, cfg.Iterations)
		}

		f1 := smoothedLuminance(a, cfg.PreBlurSigma)
		f2 := smoothedLuminance(b, cfg.PreBlurSigma)
		fx, fy, fz := deriveMixed(f1, f2)

		uv := NewField(a.Dx(), a.Dy())
		uvOld := NewField(a.Dx(), a.Dy())
		for k := 0; k < cfg.Iterations; k++ {
			jacobiStep(cfg.Alpha, fx, fy, fz, uvOld, uv)
			uvOld, uv = uv, uvOld
		}

		return uvOld, nil
	}
}

func smoothedLuminance(r emath.Raster, sigma float64) emath.FloatGrid {
	lum := r.Luminance()
	if sigma <= 0 {
		return lum
	}
	return emath.GridFromImage(blur.Gaussian(lum.ToGray(), sigma))
}

// deriveMixed computes the spatial derivatives averaged over both
// frames, and the temporal derivative.
func deriveMixed(f1, f2 emath.FloatGrid) (fx, fy, fz emath.FloatGrid) {
	fx, fy, fz = f1.NewFromThis(), f1.NewFromThis(), f1.NewFromThis()
	for j := 0; j < f1.Dy(); j++ {
		for i := 0; i < f1.Dx(); i++ {
			fx.Set(i, j, (f1.GetClamped(i+1, j)-f1.GetClamped(i-1, j)+f2.GetClamped(i+1, j)-f2.GetClamped(i-1, j))/4.0)
			fy.Set(i, j, (f1.GetClamped(i, j+1)-f1.GetClamped(i, j-1)+f2.GetClamped(i, j+1)-f2.GetClamped(i, j-1))/4.0)
			fz.Set(i, j, f2.Get(i, j)-f1.Get(i, j))
		}
	}
	return
}

func jacobiStep(alpha float64, fx, fy, fz emath.FloatGrid, old, next Field) {
	help := 1.0 / alpha
	w, h := old.Dx(), old.Dy()

	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			nn := 0.0
			uSum, vSum := 0.0, 0.0
			if i > 0 {
				nn++
				uSum += old.DX.Get(i-1, j)
				vSum += old.DY.Get(i-1, j)
			}
			if i < w-1 {
				nn++
				uSum += old.DX.Get(i+1, j)
				vSum += old.DY.Get(i+1, j)
			}
			if j > 0 {
				nn++
				uSum += old.DX.Get(i, j-1)
				vSum += old.DY.Get(i, j-1)
			}
			if j < h-1 {
				nn++
				uSum += old.DX.Get(i, j+1)
				vSum += old.DY.Get(i, j+1)
			}
			if nn == 0 {
				continue // single pixel frames have no neighbours to smooth with
			}

			fxij, fyij, fzij := fx.Get(i, j), fy.Get(i, j), fz.Get(i, j)
			u, v := old.At(i, j)
			uSum -= help * fxij * (fyij*v + fzij)
			uSum /= nn + help*fxij*fxij
			vSum -= help * fyij * (fxij*u + fzij)
			vSum /= nn + help*fyij*fyij
			next.Set(i, j, uSum, vSum)
		}
	}
}
