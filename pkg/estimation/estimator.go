// Package estimation ties the robust fitters and the refinement stage into a
// single homography estimator: a robust fitter (RANSAC or LMedS, chosen at
// construction) finds an initial algebraically-optimal model and an inlier
// partition, then Levenberg-Marquardt refinement of the geometric error
// polishes the transform over the inliers. When no consensus is found, a
// plain full-data DLT estimate is kept as a best effort and the fit reports
// failure.
package estimation

import (
	"homography-fit/pkg/geometry"
	"homography-fit/pkg/homography"
	"homography-fit/pkg/robust"
)

// Estimator is a robust homography estimator. It holds one live model
// instance, exclusively owned and mutated by FitData; no state is shared
// between calls beyond the latest fit result.
type Estimator struct {
	model   *homography.Model
	fitter  robust.Fitter
	refiner *homography.Refiner

	fitted bool
}

// NewLMedS creates an estimator backed by least-median-of-squares fitting,
// parameterized by the expected proportion of outliers in the data.
func NewLMedS(outlierProportion float64, mode homography.RefineMode) *Estimator {
	cfg := robust.DefaultLMedSConfig()
	cfg.OutlierProportion = outlierProportion
	return NewLMedSWithConfig(cfg, mode, homography.DefaultRefinerConfig())
}

// NewLMedSWithConfig is NewLMedS with full control over the fitter and
// optimizer configuration.
func NewLMedSWithConfig(cfg robust.LMedSConfig, mode homography.RefineMode, refCfg homography.RefinerConfig) *Estimator {
	model := homography.NewModel()
	return &Estimator{
		model:   model,
		fitter:  robust.NewLMedS(model, homography.AlgebraicResidual, cfg),
		refiner: homography.NewRefiner(mode, refCfg),
	}
}

// NewRANSAC creates an estimator backed by RANSAC, parameterized by the
// inlier threshold on the algebraic residual, the maximum iteration count
// and the stopping condition policy.
func NewRANSAC(threshold float64, maxIterations int, stop robust.StoppingCondition, mode homography.RefineMode) *Estimator {
	cfg := robust.DefaultRANSACConfig()
	cfg.Threshold = threshold
	cfg.MaxIterations = maxIterations
	cfg.Stop = stop
	return NewRANSACWithConfig(cfg, mode, homography.DefaultRefinerConfig())
}

// NewRANSACWithConfig is NewRANSAC with full control over the fitter and
// optimizer configuration.
func NewRANSACWithConfig(cfg robust.RANSACConfig, mode homography.RefineMode, refCfg homography.RefinerConfig) *Estimator {
	model := homography.NewModel()
	return &Estimator{
		model:   model,
		fitter:  robust.NewRANSAC(model, homography.AlgebraicResidual, cfg),
		refiner: homography.NewRefiner(mode, refCfg),
	}
}

// FitData runs a fresh robust fit over the correspondences. On success the
// model holds the refined transform and the inlier/outlier partition is
// valid. On a no-consensus failure it returns false with the model holding a
// best-effort non-robust full-data estimate; the partition must not be
// trusted. Fewer than four correspondences fail fast with
// robust.ErrInsufficientData before any sampling.
func (e *Estimator) FitData(data []geometry.Correspondence) (bool, error) {
	e.fitted = false

	ok, err := e.fitter.FitData(data)
	if err != nil {
		return false, err
	}
	if !ok {
		// No consensus: fall back to an unrobust DLT estimate over the
		// entire input. A degenerate full set keeps the previous (valid)
		// transform.
		_ = e.model.Estimate(data)
		return false, nil
	}

	refined := e.refiner.Refine(e.model.Transform(), e.fitter.Inliers())
	if err := e.model.SetTransform(refined); err != nil {
		return false, err
	}
	e.fitted = true
	return true, nil
}

// NumItemsToEstimate returns the minimal number of correspondences required
// by the underlying model.
func (e *Estimator) NumItemsToEstimate() int {
	return e.fitter.NumItemsToEstimate()
}

// Model returns the estimator's homography model.
func (e *Estimator) Model() *homography.Model {
	return e.model
}

// Inliers returns the inlier partition of the latest successful fit.
func (e *Estimator) Inliers() []geometry.Correspondence {
	return e.fitter.Inliers()
}

// Outliers returns the outlier partition of the latest successful fit.
func (e *Estimator) Outliers() []geometry.Correspondence {
	return e.fitter.Outliers()
}

// Result is a serializable snapshot of the latest fit. Persisting it (or
// not) is the caller's business; the estimator owns no file format.
type Result struct {
	Success      bool          `json:"success"`
	Transform    [3][3]float64 `json:"transform"`
	InlierCount  int           `json:"inlier_count"`
	OutlierCount int           `json:"outlier_count"`
	Refinement   string        `json:"refinement"`
}

// Snapshot captures the outcome of the latest FitData call.
func (e *Estimator) Snapshot() Result {
	return Result{
		Success:      e.fitted,
		Transform:    e.model.Matrix(),
		InlierCount:  len(e.fitter.Inliers()),
		OutlierCount: len(e.fitter.Outliers()),
		Refinement:   e.refiner.Mode.String(),
	}
}
