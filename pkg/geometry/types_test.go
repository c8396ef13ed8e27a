package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Point2D
		want float64
	}{
		{name: "same point", a: Point2D{X: 1, Y: 2}, b: Point2D{X: 1, Y: 2}, want: 0},
		{name: "3-4-5 triangle", a: Point2D{}, b: Point2D{X: 3, Y: 4}, want: 5},
		{name: "negative coordinates", a: Point2D{X: -1, Y: -1}, b: Point2D{X: 2, Y: 3}, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.a.Distance(tt.b), 1e-12)
			assert.InDelta(t, tt.want*tt.want, tt.a.SquaredDistance(tt.b), 1e-12)
		})
	}
}

func TestPointArithmetic(t *testing.T) {
	p := NewPoint2D(2, 3)
	q := NewPoint2D(-1, 5)

	assert.Equal(t, Point2D{X: 1, Y: 8}, p.Add(q))
	assert.Equal(t, Point2D{X: 3, Y: -2}, p.Sub(q))
	assert.Equal(t, Point2D{X: 4, Y: 6}, p.Scale(2))
}

func TestSourcesDestinations(t *testing.T) {
	data := []Correspondence{
		NewCorrespondence(NewPoint2D(0, 0), NewPoint2D(10, 5)),
		NewCorrespondence(NewPoint2D(1, 2), NewPoint2D(11, 7)),
	}

	assert.Equal(t, []Point2D{{X: 0, Y: 0}, {X: 1, Y: 2}}, Sources(data))
	assert.Equal(t, []Point2D{{X: 10, Y: 5}, {X: 11, Y: 7}}, Destinations(data))
}

func TestCentroid(t *testing.T) {
	assert.Equal(t, Point2D{}, Centroid(nil))

	pts := []Point2D{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}}
	assert.Equal(t, Point2D{X: 1, Y: 1}, Centroid(pts))
}

func TestCollinear(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c Point2D
		want    bool
	}{
		{name: "on a line", a: Point2D{X: 0, Y: 0}, b: Point2D{X: 1, Y: 1}, c: Point2D{X: 5, Y: 5}, want: true},
		{name: "triangle", a: Point2D{X: 0, Y: 0}, b: Point2D{X: 1, Y: 0}, c: Point2D{X: 0, Y: 1}, want: false},
		{name: "duplicate points", a: Point2D{X: 3, Y: 3}, b: Point2D{X: 3, Y: 3}, c: Point2D{X: 7, Y: 1}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Collinear(tt.a, tt.b, tt.c, 0.01))
		})
	}
}
