package homography

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"homography-fit/pkg/geometry"
)

// forwardCost sums the squared forward reprojection error of h over data.
func forwardCost(h *mat.Dense, data []geometry.Correspondence) float64 {
	var sum float64
	for _, c := range data {
		p := applyRaw(h, c.Source)
		sum += p.SquaredDistance(c.Destination)
	}
	return sum
}

// perturbed returns a copy of h with small disturbances on a few entries.
func perturbed(h *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(h)
	normalizeScale(out)
	out.Set(0, 0, out.At(0, 0)+1e-3)
	out.Set(0, 2, out.At(0, 2)-2e-3)
	out.Set(1, 1, out.At(1, 1)+5e-4)
	out.Set(2, 0, out.At(2, 0)+1e-6)
	return out
}

func TestRefineModeStrings(t *testing.T) {
	assert.Equal(t, "none", RefineNone.String())
	assert.Equal(t, "forward", RefineForward.String())
	assert.Equal(t, "symmetric", RefineSymmetric.String())
	assert.Equal(t, "sampson", RefineSampson.String())
}

func TestRefineNoneKeepsSeed(t *testing.T) {
	h := knownHomography()
	data := gridCorrespondences(h, 3, 3, 40)

	r := NewRefiner(RefineNone, DefaultRefinerConfig())
	out := r.Refine(h, data)

	assertSameProjective(t, h, out, 1e-12)
	// The input matrix is left untouched.
	assert.InDelta(t, 1.1, h.At(0, 0), 1e-15)
}

func TestRefineEmptyInliers(t *testing.T) {
	h := knownHomography()
	r := NewRefiner(RefineForward, DefaultRefinerConfig())
	out := r.Refine(h, nil)
	assertSameProjective(t, h, out, 1e-12)
}

func TestRefineConvergesFromPerturbedSeed(t *testing.T) {
	modes := []RefineMode{RefineForward, RefineSymmetric, RefineSampson}
	truth := knownHomography()
	data := gridCorrespondences(truth, 4, 4, 30)
	seed := perturbed(truth)
	before := forwardCost(seed, data)
	require.Greater(t, before, 1e-6)

	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			r := NewRefiner(mode, DefaultRefinerConfig())
			out := r.Refine(seed, data)

			after := forwardCost(out, data)
			assert.LessOrEqual(t, after, before, "refinement must not worsen the fit")
			// The data is exact, so the optimum is (numerically) zero.
			assert.Less(t, after, 1e-6)
		})
	}
}

func TestRefinePreservesAlreadyOptimalFit(t *testing.T) {
	truth := knownHomography()
	data := gridCorrespondences(truth, 4, 3, 25)

	m := NewModel()
	require.NoError(t, m.Estimate(data))
	before := forwardCost(m.Transform(), data)

	r := NewRefiner(RefineForward, DefaultRefinerConfig())
	out := r.Refine(m.Transform(), data)

	after := forwardCost(out, data)
	assert.LessOrEqual(t, after, before+1e-12)
}

func TestRefineOutputIsNormalized(t *testing.T) {
	truth := knownHomography()
	data := gridCorrespondences(truth, 3, 3, 30)

	r := NewRefiner(RefineForward, DefaultRefinerConfig())
	out := r.Refine(perturbed(truth), data)
	assert.InDelta(t, 1.0, mat.Norm(out, 2), 1e-9)
}

func TestNewRefinerDefaultsZeroConfig(t *testing.T) {
	r := NewRefiner(RefineForward, RefinerConfig{})
	assert.Equal(t, 100, r.cfg.MaxIterations)
	assert.Greater(t, r.cfg.Tolerance, 0.0)
	assert.Greater(t, r.cfg.InitialLambda, 0.0)
}
