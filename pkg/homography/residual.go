package homography

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"homography-fit/pkg/geometry"
	"homography-fit/pkg/robust"
)

// AlgebraicResidual computes the squared Euclidean distance between the
// model-transformed source point and the observed destination point. It
// satisfies robust.Residual; correspondences the model cannot evaluate
// (points mapping to infinity, foreign model types) score +Inf and behave as
// pure outliers.
func AlgebraicResidual(m robust.Model, c geometry.Correspondence) float64 {
	hm, ok := m.(*Model)
	if !ok {
		return math.Inf(1)
	}
	p, err := hm.Apply(c.Source)
	if err != nil {
		return math.Inf(1)
	}
	return p.SquaredDistance(c.Destination)
}

// SampsonResidual computes the first-order (Sampson) approximation of the
// geometric error of a correspondence under the transform h. It linearizes
// the algebraic error in the point coordinates and returns
// e^T (J J^T)^-1 e, which closely tracks the true reprojection distance for
// small errors.
func SampsonResidual(h *mat.Dense, c geometry.Correspondence) float64 {
	x, y := c.Source.X, c.Source.Y
	u, v := c.Destination.X, c.Destination.Y

	w := h.At(2, 0)*x + h.At(2, 1)*y + h.At(2, 2)

	// Algebraic error vector from the two DLT rows.
	e1 := u*w - (h.At(0, 0)*x + h.At(0, 1)*y + h.At(0, 2))
	e2 := v*w - (h.At(1, 0)*x + h.At(1, 1)*y + h.At(1, 2))

	// Jacobian of (e1, e2) with respect to (x, y, u, v).
	j11 := u*h.At(2, 0) - h.At(0, 0)
	j12 := u*h.At(2, 1) - h.At(0, 1)
	j21 := v*h.At(2, 0) - h.At(1, 0)
	j22 := v*h.At(2, 1) - h.At(1, 1)
	// de1/du = w, de2/dv = w; the cross terms vanish.

	// JJ^T, a symmetric 2x2.
	a := j11*j11 + j12*j12 + w*w
	b := j11*j21 + j12*j22
	d := j21*j21 + j22*j22 + w*w

	det := a*d - b*b
	if math.Abs(det) < 1e-15 {
		return math.Inf(1)
	}

	// e^T (JJ^T)^-1 e via the 2x2 inverse.
	return (d*e1*e1 - 2*b*e1*e2 + a*e2*e2) / det
}
