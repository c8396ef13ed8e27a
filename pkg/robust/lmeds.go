package robust

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"homography-fit/pkg/geometry"
)

// Rousseeuw's consistency constant relating the median absolute residual to
// the standard deviation of a Gaussian.
const lmedsScale = 1.4826

// Inlier cut in units of the estimated noise scale.
const lmedsInlierSigmas = 2.5

// LMedSConfig holds the tuning parameters of an LMedS search.
type LMedSConfig struct {
	// OutlierProportion is the expected fraction of outliers (0..1). It
	// sizes the iteration count once, up front, via the standard sampling
	// probability formula.
	OutlierProportion float64
	// Confidence is the probability of drawing at least one outlier-free
	// minimal sample within the iteration budget.
	Confidence float64
	// MaxIterations caps the iteration count derived from OutlierProportion.
	MaxIterations int
	// ScaleFloor is the minimum noise scale used to derive the inlier
	// threshold. Without a floor, noiseless data yields a zero threshold and
	// rejects everything to numeric jitter.
	ScaleFloor float64
	// ReEstimate re-fits the final model over the derived inlier set.
	ReEstimate bool
	// RNG drives the minimal sampling.
	RNG *rand.Rand
}

// DefaultLMedSConfig returns sensible defaults for LMedS.
func DefaultLMedSConfig() LMedSConfig {
	return LMedSConfig{
		OutlierProportion: 0.4,
		Confidence:        0.99,
		MaxIterations:     10000,
		ScaleFloor:        1e-6,
		ReEstimate:        true,
		RNG:               rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// LMedS fits a model by least median of squares: the winning hypothesis is
// the one whose median residual over all correspondences is smallest. The
// inlier/outlier partition is derived after the search from a robust
// estimate of the noise scale.
type LMedS struct {
	model    Model
	residual Residual
	cfg      LMedSConfig

	inliers  []geometry.Correspondence
	outliers []geometry.Correspondence
}

// NewLMedS creates an LMedS fitter around a single live model instance.
func NewLMedS(model Model, residual Residual, cfg LMedSConfig) *LMedS {
	if cfg.Confidence <= 0 || cfg.Confidence >= 1 {
		cfg.Confidence = 0.99
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10000
	}
	if cfg.RNG == nil {
		cfg.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &LMedS{model: model, residual: residual, cfg: cfg}
}

// FitData implements Fitter. Each call starts a fresh search; previous
// partitions are discarded.
func (l *LMedS) FitData(data []geometry.Correspondence) (bool, error) {
	l.inliers = nil
	l.outliers = nil

	need := l.model.NumItemsToEstimate()
	if len(data) < need {
		return false, ErrInsufficientData
	}

	iterations := RequiredIterations(l.cfg.Confidence, 1-l.cfg.OutlierProportion, need)
	if iterations > l.cfg.MaxIterations {
		iterations = l.cfg.MaxIterations
	}

	bestMedian := math.Inf(1)
	var bestSampleIdx []int
	sample := make([]geometry.Correspondence, need)
	residuals := make([]float64, len(data))

	for iter := 0; iter < iterations; iter++ {
		idx := l.cfg.RNG.Perm(len(data))[:need]
		for j, k := range idx {
			sample[j] = data[k]
		}

		if err := l.model.Estimate(sample); err != nil {
			continue
		}

		for i, c := range data {
			residuals[i] = l.residual(l.model, c)
		}
		med := median(residuals)
		if med < bestMedian {
			bestMedian = med
			bestSampleIdx = idx
		}
	}

	if bestSampleIdx == nil {
		return false, nil
	}

	// Restore the winning hypothesis; it estimated cleanly during the loop.
	for j, k := range bestSampleIdx {
		sample[j] = data[k]
	}
	if err := l.model.Estimate(sample); err != nil {
		return false, err
	}

	// Robust scale from the winning median (Rousseeuw), with a finite-sample
	// correction and the configured floor.
	correction := 1.0
	if len(data) > need {
		correction = 1 + 5/float64(len(data)-need)
	}
	sigma := lmedsScale * correction * math.Sqrt(bestMedian)
	if sigma < l.cfg.ScaleFloor {
		sigma = l.cfg.ScaleFloor
	}
	threshold := (lmedsInlierSigmas * sigma) * (lmedsInlierSigmas * sigma)

	inlierIdx := make([]int, 0, len(data))
	for i, c := range data {
		if l.residual(l.model, c) <= threshold {
			inlierIdx = append(inlierIdx, i)
		}
	}
	if len(inlierIdx) < need {
		return false, nil
	}

	l.inliers, l.outliers = partition(data, inlierIdx)

	if l.cfg.ReEstimate {
		if err := l.model.Estimate(l.inliers); err != nil {
			// Keep the winning minimal-sample model.
			for j, k := range bestSampleIdx {
				sample[j] = data[k]
			}
			if err := l.model.Estimate(sample); err != nil {
				l.inliers, l.outliers = nil, nil
				return false, err
			}
		}
	}

	return true, nil
}

// NumItemsToEstimate implements Fitter.
func (l *LMedS) NumItemsToEstimate() int {
	return l.model.NumItemsToEstimate()
}

// Model implements Fitter.
func (l *LMedS) Model() Model {
	return l.model
}

// Inliers implements Fitter.
func (l *LMedS) Inliers() []geometry.Correspondence {
	return l.inliers
}

// Outliers implements Fitter.
func (l *LMedS) Outliers() []geometry.Correspondence {
	return l.outliers
}

// median returns the median of values without mutating them. Non-finite
// values sort to the top and only dominate when the majority is unusable.
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}
