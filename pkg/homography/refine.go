package homography

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"homography-fit/pkg/geometry"
)

// RefineMode selects the geometric residual minimized by the refinement
// stage.
type RefineMode int

const (
	// RefineNone skips refinement and keeps the initial estimate.
	RefineNone RefineMode = iota
	// RefineForward minimizes the forward reprojection error in the
	// destination plane.
	RefineForward
	// RefineSymmetric minimizes forward plus backward reprojection error.
	RefineSymmetric
	// RefineSampson minimizes the first-order Sampson approximation of the
	// geometric error.
	RefineSampson
)

// String returns the mode name.
func (m RefineMode) String() string {
	switch m {
	case RefineNone:
		return "none"
	case RefineForward:
		return "forward"
	case RefineSymmetric:
		return "symmetric"
	case RefineSampson:
		return "sampson"
	default:
		return "unknown"
	}
}

// RefinerConfig holds the tuning parameters of the non-linear optimization.
type RefinerConfig struct {
	// MaxIterations caps the number of accepted Levenberg-Marquardt steps.
	MaxIterations int
	// Tolerance stops the iteration when the relative cost improvement of an
	// accepted step falls below it.
	Tolerance float64
	// InitialLambda is the starting damping factor.
	InitialLambda float64
}

// DefaultRefinerConfig returns sensible defaults for the optimizer.
func DefaultRefinerConfig() RefinerConfig {
	return RefinerConfig{
		MaxIterations: 100,
		Tolerance:     1e-10,
		InitialLambda: 1e-3,
	}
}

// Refiner performs damped Gauss-Newton (Levenberg-Marquardt) minimization of
// a geometric residual over the nine matrix entries. It never fails hard: on
// non-convergence the best matrix found so far is returned, which is the
// seed when no step ever improved the cost.
type Refiner struct {
	Mode RefineMode
	cfg  RefinerConfig
}

// NewRefiner creates a refiner with the given mode and configuration.
func NewRefiner(mode RefineMode, cfg RefinerConfig) *Refiner {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 100
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 1e-10
	}
	if cfg.InitialLambda <= 0 {
		cfg.InitialLambda = 1e-3
	}
	return &Refiner{Mode: mode, cfg: cfg}
}

// Refine minimizes the configured geometric residual over the inlier set,
// seeded at h. The input matrix is not modified; the returned matrix has
// unit Frobenius norm.
func (r *Refiner) Refine(h *mat.Dense, inliers []geometry.Correspondence) *mat.Dense {
	out := mat.DenseCopyOf(h)
	normalizeScale(out)
	if r.Mode == RefineNone || len(inliers) == 0 {
		return out
	}

	params := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			params[3*i+j] = out.At(i, j)
		}
	}
	renormalize(params)

	cost := r.cost(params, inliers)
	if math.IsInf(cost, 1) {
		return out
	}

	lambda := r.cfg.InitialLambda
	resid := make([]float64, r.residualLen(len(inliers)))
	trial := make([]float64, 9)
	converged := false

	for iter := 0; iter < r.cfg.MaxIterations && !converged; iter++ {
		r.residuals(params, inliers, resid)
		jac := r.jacobian(params, inliers)

		// Normal equations with Marquardt damping on the diagonal. The
		// damping also absorbs the gauge freedom of the projective scale.
		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		var g mat.VecDense
		g.MulVec(jac.T(), mat.NewVecDense(len(resid), resid))

		improved := false
		for attempt := 0; attempt < 10; attempt++ {
			a := mat.DenseCopyOf(&jtj)
			for i := 0; i < 9; i++ {
				a.Set(i, i, a.At(i, i)+lambda)
			}

			var delta mat.VecDense
			if err := delta.SolveVec(a, &g); err != nil {
				lambda *= 10
				continue
			}

			for i := range trial {
				trial[i] = params[i] - delta.AtVec(i)
			}
			renormalize(trial)

			trialCost := r.cost(trial, inliers)
			if trialCost < cost {
				improvement := (cost - trialCost) / cost
				copy(params, trial)
				cost = trialCost
				lambda *= 0.1
				improved = true
				converged = improvement < r.cfg.Tolerance
				break
			}
			lambda *= 10
			if lambda > 1e12 {
				break
			}
		}

		if !improved {
			break
		}
	}

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Set(i, j, params[3*i+j])
		}
	}
	return out
}

// residualLen returns the length of the stacked residual vector for n
// inliers under the current mode.
func (r *Refiner) residualLen(n int) int {
	switch r.Mode {
	case RefineSymmetric:
		return 4 * n
	case RefineSampson:
		return n
	default:
		return 2 * n
	}
}

// residuals fills out with the stacked residual vector of the transform
// described by params. Correspondences that map to infinity contribute a
// large constant, steering the optimizer away without overflowing it.
func (r *Refiner) residuals(params []float64, inliers []geometry.Correspondence, out []float64) {
	const blowup = 1e6

	h := params // row-major 3x3
	hd := mat.NewDense(3, 3, append([]float64(nil), params...))
	var hinv *mat.Dense
	if r.Mode == RefineSymmetric {
		var inv mat.Dense
		if err := inv.Inverse(hd); err == nil {
			hinv = &inv
		}
	}

	k := 0
	for _, c := range inliers {
		switch r.Mode {
		case RefineSampson:
			s := SampsonResidual(hd, c)
			if math.IsInf(s, 1) {
				s = blowup
			}
			out[k] = math.Sqrt(s)
			k++

		case RefineSymmetric:
			out[k], out[k+1] = forwardError(h, c.Source, c.Destination, blowup)
			k += 2
			if hinv == nil {
				out[k], out[k+1] = blowup, blowup
			} else {
				out[k], out[k+1] = inverseError(hinv, c.Destination, c.Source, blowup)
			}
			k += 2

		default: // RefineForward
			out[k], out[k+1] = forwardError(h, c.Source, c.Destination, blowup)
			k += 2
		}
	}
}

// cost returns the summed squared residual of params over the inliers.
func (r *Refiner) cost(params []float64, inliers []geometry.Correspondence) float64 {
	resid := make([]float64, r.residualLen(len(inliers)))
	r.residuals(params, inliers, resid)
	return floats.Dot(resid, resid)
}

// jacobian computes the residual Jacobian by central differences.
func (r *Refiner) jacobian(params []float64, inliers []geometry.Correspondence) *mat.Dense {
	const step = 1e-7

	m := r.residualLen(len(inliers))
	jac := mat.NewDense(m, 9, nil)
	plus := make([]float64, m)
	minus := make([]float64, m)
	perturbed := make([]float64, 9)

	for j := 0; j < 9; j++ {
		copy(perturbed, params)
		perturbed[j] += step
		r.residuals(perturbed, inliers, plus)

		copy(perturbed, params)
		perturbed[j] -= step
		r.residuals(perturbed, inliers, minus)

		for i := 0; i < m; i++ {
			jac.Set(i, j, (plus[i]-minus[i])/(2*step))
		}
	}
	return jac
}

// forwardError returns the x/y reprojection error of src through the
// row-major transform h against dst.
func forwardError(h []float64, src, dst geometry.Point2D, blowup float64) (float64, float64) {
	w := h[6]*src.X + h[7]*src.Y + h[8]
	if math.Abs(w) < 1e-12 {
		return blowup, blowup
	}
	x := (h[0]*src.X + h[1]*src.Y + h[2]) / w
	y := (h[3]*src.X + h[4]*src.Y + h[5]) / w
	return x - dst.X, y - dst.Y
}

// inverseError returns the reprojection error of dst through hinv against
// src.
func inverseError(hinv *mat.Dense, dst, src geometry.Point2D, blowup float64) (float64, float64) {
	w := hinv.At(2, 0)*dst.X + hinv.At(2, 1)*dst.Y + hinv.At(2, 2)
	if math.Abs(w) < 1e-12 {
		return blowup, blowup
	}
	x := (hinv.At(0, 0)*dst.X + hinv.At(0, 1)*dst.Y + hinv.At(0, 2)) / w
	y := (hinv.At(1, 0)*dst.X + hinv.At(1, 1)*dst.Y + hinv.At(1, 2)) / w
	return x - src.X, y - src.Y
}

// renormalize scales the parameter vector to unit norm, fixing the
// projective scale between steps.
func renormalize(params []float64) {
	norm := floats.Norm(params, 2)
	if norm > 0 {
		floats.Scale(1/norm, params)
	}
}
