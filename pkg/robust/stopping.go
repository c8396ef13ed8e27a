package robust

import (
	"math"
)

// StoppingCondition controls when a RANSAC search may stop early and whether
// the final consensus is acceptable. Implementations may keep state between
// Init and the per-improvement Update calls.
type StoppingCondition interface {
	// Init is called once per FitData call, before sampling begins.
	Init(numData, numToEstimate int)
	// Update is called whenever the best hypothesis improves; iteration is
	// the number of samples drawn so far. It returns true when the search may
	// stop early.
	Update(iteration, bestInliers int) bool
	// Satisfied reports whether the final best consensus is usable.
	Satisfied(bestInliers int) bool
}

// BestFit runs the full iteration budget and accepts any consensus that is at
// least a minimal sample.
type BestFit struct {
	numToEstimate int
}

// NewBestFit creates a BestFit stopping condition.
func NewBestFit() *BestFit {
	return &BestFit{}
}

// Init implements StoppingCondition.
func (s *BestFit) Init(numData, numToEstimate int) {
	s.numToEstimate = numToEstimate
}

// Update implements StoppingCondition; BestFit never stops early.
func (s *BestFit) Update(iteration, bestInliers int) bool {
	return false
}

// Satisfied implements StoppingCondition.
func (s *BestFit) Satisfied(bestInliers int) bool {
	return bestInliers >= s.numToEstimate
}

// NumberInliers stops as soon as a hypothesis reaches an absolute inlier
// count.
type NumberInliers struct {
	// Limit is the inlier count at which the search stops.
	Limit int

	numToEstimate int
}

// Init implements StoppingCondition.
func (s *NumberInliers) Init(numData, numToEstimate int) {
	s.numToEstimate = numToEstimate
}

// Update implements StoppingCondition.
func (s *NumberInliers) Update(iteration, bestInliers int) bool {
	return bestInliers >= s.Limit
}

// Satisfied implements StoppingCondition.
func (s *NumberInliers) Satisfied(bestInliers int) bool {
	return bestInliers >= s.Limit && bestInliers >= s.numToEstimate
}

// PercentageInliers stops as soon as a hypothesis explains the given fraction
// of the data.
type PercentageInliers struct {
	// Fraction of the data (0..1) that must be classified as inliers.
	Fraction float64

	limit         int
	numToEstimate int
}

// Init implements StoppingCondition.
func (s *PercentageInliers) Init(numData, numToEstimate int) {
	s.numToEstimate = numToEstimate
	s.limit = int(math.Ceil(s.Fraction * float64(numData)))
	if s.limit < numToEstimate {
		s.limit = numToEstimate
	}
}

// Update implements StoppingCondition.
func (s *PercentageInliers) Update(iteration, bestInliers int) bool {
	return bestInliers >= s.limit
}

// Satisfied implements StoppingCondition.
func (s *PercentageInliers) Satisfied(bestInliers int) bool {
	return bestInliers >= s.limit
}

// Probabilistic implements the standard adaptive iteration bound: from the
// current best inlier ratio w it derives the number of samples needed to
// draw at least one all-inlier minimal sample with the configured
// confidence, N = log(1-confidence) / log(1 - w^s), and stops once that many
// samples have been drawn. The bound tightens every time the best hypothesis
// improves.
type Probabilistic struct {
	// Confidence is the target probability (0..1) of having sampled at least
	// one outlier-free minimal subset. Typical value 0.99.
	Confidence float64

	numData       int
	numToEstimate int
	required      int
}

// NewProbabilistic creates an adaptive stopping condition with the given
// confidence.
func NewProbabilistic(confidence float64) *Probabilistic {
	return &Probabilistic{Confidence: confidence}
}

// Init implements StoppingCondition.
func (s *Probabilistic) Init(numData, numToEstimate int) {
	s.numData = numData
	s.numToEstimate = numToEstimate
	s.required = math.MaxInt
}

// Update implements StoppingCondition.
func (s *Probabilistic) Update(iteration, bestInliers int) bool {
	if bestInliers > 0 {
		w := float64(bestInliers) / float64(s.numData)
		s.required = RequiredIterations(s.Confidence, w, s.numToEstimate)
	}
	return iteration >= s.required
}

// Satisfied implements StoppingCondition.
func (s *Probabilistic) Satisfied(bestInliers int) bool {
	return bestInliers >= s.numToEstimate
}

// RequiredIterations computes the Fischler-Bolles sample count: the number of
// minimal samples of size sampleSize needed so that, with probability
// confidence, at least one sample is free of outliers when the inlier ratio
// is w.
func RequiredIterations(confidence, w float64, sampleSize int) int {
	if w <= 0 {
		return math.MaxInt
	}
	if w >= 1 {
		return 1
	}
	pAllInliers := math.Pow(w, float64(sampleSize))
	if pAllInliers >= 1 {
		return 1
	}
	n := math.Log(1-confidence) / math.Log(1-pAllInliers)
	if math.IsInf(n, 0) || n > float64(math.MaxInt32) {
		return math.MaxInt
	}
	if n < 1 {
		return 1
	}
	return int(math.Ceil(n))
}
