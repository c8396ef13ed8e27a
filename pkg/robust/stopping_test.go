package robust

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiredIterations(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		w          float64
		sampleSize int
		want       int
	}{
		{name: "half inliers", confidence: 0.99, w: 0.5, sampleSize: 4, want: 72},
		{name: "mostly inliers", confidence: 0.99, w: 0.8, sampleSize: 4, want: 9},
		{name: "all inliers", confidence: 0.99, w: 1.0, sampleSize: 4, want: 1},
		{name: "no inliers", confidence: 0.99, w: 0.0, sampleSize: 4, want: math.MaxInt},
		{name: "vanishing inlier ratio", confidence: 0.99, w: 1e-9, sampleSize: 4, want: math.MaxInt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequiredIterations(tt.confidence, tt.w, tt.sampleSize))
		})
	}
}

func TestBestFit(t *testing.T) {
	s := NewBestFit()
	s.Init(100, 4)

	assert.False(t, s.Update(1, 100), "best fit never stops early")
	assert.False(t, s.Update(500, 100))

	assert.False(t, s.Satisfied(3))
	assert.True(t, s.Satisfied(4))
}

func TestNumberInliers(t *testing.T) {
	s := &NumberInliers{Limit: 10}
	s.Init(100, 4)

	assert.False(t, s.Update(1, 9))
	assert.True(t, s.Update(2, 10))

	assert.False(t, s.Satisfied(9))
	assert.True(t, s.Satisfied(10))
}

func TestNumberInliersBelowMinimalSample(t *testing.T) {
	// A limit under the minimal sample size can never produce an estimable
	// consensus.
	s := &NumberInliers{Limit: 2}
	s.Init(100, 4)

	assert.True(t, s.Update(1, 3))
	assert.False(t, s.Satisfied(3))
	assert.True(t, s.Satisfied(4))
}

func TestPercentageInliers(t *testing.T) {
	s := &PercentageInliers{Fraction: 0.5}
	s.Init(100, 4)

	assert.False(t, s.Update(1, 49))
	assert.True(t, s.Update(2, 50))
	assert.False(t, s.Satisfied(49))
	assert.True(t, s.Satisfied(50))
}

func TestPercentageInliersTinyDataset(t *testing.T) {
	// The derived limit is clamped to the minimal sample size.
	s := &PercentageInliers{Fraction: 0.1}
	s.Init(5, 4)

	assert.False(t, s.Satisfied(3))
	assert.True(t, s.Satisfied(4))
}

func TestProbabilistic(t *testing.T) {
	s := NewProbabilistic(0.99)
	s.Init(100, 4)

	// No consensus yet: the bound stays open.
	assert.False(t, s.Update(1, 0))

	// A weak hypothesis keeps the bound far away.
	assert.False(t, s.Update(2, 50))

	// A perfect hypothesis collapses the bound to a single sample.
	assert.True(t, s.Update(3, 100))

	assert.False(t, s.Satisfied(3))
	assert.True(t, s.Satisfied(4))
}

func TestProbabilisticTightensWithInlierRatio(t *testing.T) {
	s := NewProbabilistic(0.99)
	s.Init(100, 4)

	s.Update(1, 80)
	// w = 0.8 needs 9 samples at 99% confidence.
	assert.False(t, s.Update(8, 80))
	assert.True(t, s.Update(9, 80))
}
