// Package homography provides a 3x3 planar projective transform model:
// estimation from point correspondences via the normalized direct linear
// transform, residual functions for robust scoring, and non-linear
// refinement of the geometric error.
package homography

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"homography-fit/pkg/geometry"
)

// minCorrespondences is the minimal number of correspondences for a
// homography estimate (8 constraints against 8 degrees of freedom).
const minCorrespondences = 4

// rcond is the relative singular value threshold below which the DLT system
// is considered rank deficient.
const rcond = 1e-12

var (
	// ErrInsufficientData signals fewer correspondences than the minimal
	// sample size.
	ErrInsufficientData = errors.New("homography: need at least 4 correspondences")
	// ErrDegenerate signals a rank-deficient system or a singular estimate
	// (near-collinear or duplicate points).
	ErrDegenerate = errors.New("homography: degenerate configuration")
	// ErrPointAtInfinity signals a homogeneous divide by (near) zero when
	// applying the transform.
	ErrPointAtInfinity = errors.New("homography: point maps to infinity")
)

// Model owns a 3x3 projective transform mapping source-plane points to
// destination-plane points. A Model is exclusively owned by one fitting
// operation at a time; it is not safe for concurrent mutation.
type Model struct {
	h *mat.Dense
}

// NewModel creates a model holding the identity transform.
func NewModel() *Model {
	return &Model{h: identity3()}
}

// NumItemsToEstimate returns the minimal number of correspondences required
// for an estimate.
func (m *Model) NumItemsToEstimate() int {
	return minCorrespondences
}

// Estimate fits the transform to the correspondences with the normalized
// direct linear transform: both point sets are similarity-normalized, the
// homogeneous system is solved for its null vector by SVD, and the result is
// denormalized. Rank-deficient systems and singular results leave the current
// transform untouched and return ErrDegenerate.
func (m *Model) Estimate(data []geometry.Correspondence) error {
	if len(data) < minCorrespondences {
		return ErrInsufficientData
	}

	t1, err := normalizationTransform(geometry.Sources(data))
	if err != nil {
		return err
	}
	t2, err := normalizationTransform(geometry.Destinations(data))
	if err != nil {
		return err
	}

	// Two rows per correspondence, using normalized coordinates.
	a := mat.NewDense(2*len(data), 9, nil)
	for i, c := range data {
		x, y := t1.apply(c.Source)
		u, v := t2.apply(c.Destination)
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y, -u})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y, -v})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return fmt.Errorf("homography: SVD factorization failed: %w", ErrDegenerate)
	}
	// A unique (up to scale) null vector needs rank 8.
	if svd.Rank(rcond) < 8 {
		return fmt.Errorf("homography: coefficient matrix has insufficient rank: %w", ErrDegenerate)
	}

	var v mat.Dense
	svd.VTo(&v)
	hn := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			hn.Set(i, j, v.At(3*i+j, 8))
		}
	}

	// Denormalize: H = T2^-1 * Hn * T1.
	h := mat.NewDense(3, 3, nil)
	h.Mul(t2.inverseMatrix(), hn)
	h.Mul(h, t1.matrix())

	normalizeScale(h)

	if math.Abs(mat.Det(h)) < rcond {
		return fmt.Errorf("homography: singular estimate: %w", ErrDegenerate)
	}

	m.h.Copy(h)
	return nil
}

// Apply transforms a single point through the current matrix, with the
// homogeneous divide by the third coordinate.
func (m *Model) Apply(p geometry.Point2D) (geometry.Point2D, error) {
	x := m.h.At(0, 0)*p.X + m.h.At(0, 1)*p.Y + m.h.At(0, 2)
	y := m.h.At(1, 0)*p.X + m.h.At(1, 1)*p.Y + m.h.At(1, 2)
	w := m.h.At(2, 0)*p.X + m.h.At(2, 1)*p.Y + m.h.At(2, 2)
	if math.Abs(w) < 1e-12 {
		return geometry.Point2D{}, ErrPointAtInfinity
	}
	return geometry.Point2D{X: x / w, Y: y / w}, nil
}

// Transform returns the model's 3x3 matrix. The matrix is owned by the
// model; callers must not modify it.
func (m *Model) Transform() *mat.Dense {
	return m.h
}

// SetTransform replaces the model's matrix. The matrix is copied.
func (m *Model) SetTransform(h *mat.Dense) error {
	if h == nil {
		return fmt.Errorf("homography: nil transform")
	}
	r, c := h.Dims()
	if r != 3 || c != 3 {
		return fmt.Errorf("homography: transform must be 3x3, got %dx%d", r, c)
	}
	m.h.Copy(h)
	return nil
}

// Matrix returns a snapshot of the transform as a plain array, convenient
// for serialization by callers.
func (m *Model) Matrix() [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m.h.At(i, j)
		}
	}
	return out
}

// similarity is the normalizing transform x' = s*(x - cx), y' = s*(y - cy).
type similarity struct {
	s, cx, cy float64
}

// normalizationTransform computes the similarity that moves the centroid of
// the points to the origin and scales the mean distance from the origin to
// sqrt(2).
func normalizationTransform(points []geometry.Point2D) (similarity, error) {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	cx := stat.Mean(xs, nil)
	cy := stat.Mean(ys, nil)

	var meanDist float64
	for _, p := range points {
		dx := p.X - cx
		dy := p.Y - cy
		meanDist += math.Sqrt(dx*dx + dy*dy)
	}
	meanDist /= float64(len(points))
	if meanDist < 1e-12 {
		// All points coincide.
		return similarity{}, fmt.Errorf("homography: coincident points: %w", ErrDegenerate)
	}

	return similarity{s: math.Sqrt2 / meanDist, cx: cx, cy: cy}, nil
}

func (t similarity) apply(p geometry.Point2D) (float64, float64) {
	return t.s * (p.X - t.cx), t.s * (p.Y - t.cy)
}

func (t similarity) matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		t.s, 0, -t.s * t.cx,
		0, t.s, -t.s * t.cy,
		0, 0, 1,
	})
}

func (t similarity) inverseMatrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1 / t.s, 0, t.cx,
		0, 1 / t.s, t.cy,
		0, 0, 1,
	})
}

// normalizeScale rescales h to unit Frobenius norm with a non-negative
// bottom-right entry, fixing the arbitrary projective scale.
func normalizeScale(h *mat.Dense) {
	norm := mat.Norm(h, 2)
	if norm == 0 {
		return
	}
	scale := 1 / norm
	if h.At(2, 2) < 0 {
		scale = -scale
	}
	h.Scale(scale, h)
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}
