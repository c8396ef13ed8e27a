package robust

import (
	"math/rand"
	"time"

	"homography-fit/pkg/geometry"
)

// RANSACConfig holds the tuning parameters of a RANSAC search.
type RANSACConfig struct {
	// Threshold is the residual value at or below which a correspondence is
	// classified as an inlier of a hypothesis.
	Threshold float64
	// MaxIterations is the hard cap on the number of minimal samples drawn.
	MaxIterations int
	// Stop decides early termination and final acceptance. Defaults to the
	// adaptive probabilistic bound when nil.
	Stop StoppingCondition
	// ReEstimate re-fits the final model over the full best inlier set
	// instead of keeping the minimal-sample estimate.
	ReEstimate bool
	// RNG drives the minimal sampling. Inject a seeded source for
	// deterministic behavior.
	RNG *rand.Rand
}

// DefaultRANSACConfig returns sensible defaults for RANSAC.
func DefaultRANSACConfig() RANSACConfig {
	return RANSACConfig{
		Threshold:     4.0,
		MaxIterations: 500,
		Stop:          NewProbabilistic(0.99),
		ReEstimate:    true,
		RNG:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RANSAC fits a model by random sample consensus: repeatedly estimate the
// model from a minimal random subset, count the correspondences within the
// residual threshold, and keep the hypothesis with the largest consensus.
type RANSAC struct {
	model    Model
	residual Residual
	cfg      RANSACConfig

	inliers  []geometry.Correspondence
	outliers []geometry.Correspondence
}

// NewRANSAC creates a RANSAC fitter around a single live model instance.
func NewRANSAC(model Model, residual Residual, cfg RANSACConfig) *RANSAC {
	if cfg.Stop == nil {
		cfg.Stop = NewProbabilistic(0.99)
	}
	if cfg.RNG == nil {
		cfg.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RANSAC{model: model, residual: residual, cfg: cfg}
}

// FitData implements Fitter. Each call starts a fresh search; previous
// partitions are discarded.
func (r *RANSAC) FitData(data []geometry.Correspondence) (bool, error) {
	r.inliers = nil
	r.outliers = nil

	need := r.model.NumItemsToEstimate()
	if len(data) < need {
		return false, ErrInsufficientData
	}

	r.cfg.Stop.Init(len(data), need)

	var bestInlierIdx []int
	var bestSampleIdx []int
	sample := make([]geometry.Correspondence, need)

	for iter := 1; iter <= r.cfg.MaxIterations; iter++ {
		idx := r.cfg.RNG.Perm(len(data))[:need]
		for j, k := range idx {
			sample[j] = data[k]
		}

		// Degenerate samples are discarded and re-drawn; the iteration
		// budget is the retry bound.
		if err := r.model.Estimate(sample); err != nil {
			continue
		}

		inlierIdx := make([]int, 0, len(data))
		for i, c := range data {
			if r.residual(r.model, c) <= r.cfg.Threshold {
				inlierIdx = append(inlierIdx, i)
			}
		}

		if len(inlierIdx) > len(bestInlierIdx) {
			bestInlierIdx = inlierIdx
			bestSampleIdx = idx
		}

		if r.cfg.Stop.Update(iter, len(bestInlierIdx)) {
			break
		}
	}

	if len(bestInlierIdx) < need || !r.cfg.Stop.Satisfied(len(bestInlierIdx)) {
		return false, nil
	}

	r.inliers, r.outliers = partition(data, bestInlierIdx)

	// Use all available evidence for the reported model. The minimal-sample
	// estimate is the fallback if the overdetermined fit degenerates.
	refit := r.inliers
	if !r.cfg.ReEstimate {
		refit = nil
	}
	if refit == nil || r.model.Estimate(refit) != nil {
		for j, k := range bestSampleIdx {
			sample[j] = data[k]
		}
		if err := r.model.Estimate(sample); err != nil {
			// The winning sample estimated cleanly before, so this cannot
			// happen with a deterministic model; treat it as no consensus.
			r.inliers, r.outliers = nil, nil
			return false, err
		}
	}

	return true, nil
}

// NumItemsToEstimate implements Fitter.
func (r *RANSAC) NumItemsToEstimate() int {
	return r.model.NumItemsToEstimate()
}

// Model implements Fitter.
func (r *RANSAC) Model() Model {
	return r.model
}

// Inliers implements Fitter.
func (r *RANSAC) Inliers() []geometry.Correspondence {
	return r.inliers
}

// Outliers implements Fitter.
func (r *RANSAC) Outliers() []geometry.Correspondence {
	return r.outliers
}

// partition splits data into the correspondences whose indices appear in
// inlierIdx (which must be sorted ascending) and the rest, preserving the
// original order.
func partition(data []geometry.Correspondence, inlierIdx []int) (in, out []geometry.Correspondence) {
	in = make([]geometry.Correspondence, 0, len(inlierIdx))
	out = make([]geometry.Correspondence, 0, len(data)-len(inlierIdx))
	next := 0
	for i, c := range data {
		if next < len(inlierIdx) && inlierIdx[next] == i {
			in = append(in, c)
			next++
		} else {
			out = append(out, c)
		}
	}
	return in, out
}
