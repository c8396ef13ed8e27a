// Package robust implements robust model fitting by random sample consensus.
// It provides a small framework of interfaces over which two fitters are
// built: RANSAC (threshold inlier counting) and LMedS (least median of
// squares). Models plug in through the Model interface; scoring plugs in
// through a Residual function.
package robust

import (
	"errors"

	"homography-fit/pkg/geometry"
)

// ErrInsufficientData is returned when fewer correspondences are supplied
// than the model needs for a minimal estimate.
var ErrInsufficientData = errors.New("robust: not enough correspondences to estimate model")

// Model is a parametric model that can be estimated from a minimal or
// overdetermined set of correspondences.
type Model interface {
	// NumItemsToEstimate returns the minimal number of correspondences
	// required for an estimate.
	NumItemsToEstimate() int
	// Estimate fits the model to the given correspondences. A non-nil error
	// signals a degenerate configuration; the model must not silently hold a
	// singular estimate afterwards.
	Estimate(data []geometry.Correspondence) error
}

// Residual scores a single correspondence against the current state of a
// model. It must return a non-negative value; +Inf marks correspondences the
// model cannot evaluate (treated as pure outliers).
type Residual func(m Model, c geometry.Correspondence) float64

// Fitter is a robust model fitter: it searches for the model parameters best
// supported by the data and partitions the data into inliers and outliers.
type Fitter interface {
	// FitData runs a fresh search over the given correspondences. It returns
	// true when a usable consensus was found. The inlier/outlier partition is
	// only valid after a true return.
	FitData(data []geometry.Correspondence) (bool, error)
	// NumItemsToEstimate returns the minimal sample size of the underlying
	// model.
	NumItemsToEstimate() int
	// Model returns the fitter's single live model instance.
	Model() Model
	// Inliers returns the correspondences consistent with the fitted model.
	Inliers() []geometry.Correspondence
	// Outliers returns the correspondences rejected by the fitted model.
	Outliers() []geometry.Correspondence
}
