// Package geometry provides the basic geometric value types used by the
// estimation code.
package geometry

import (
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// SquaredDistance returns the squared Euclidean distance to another point.
func (p Point2D) SquaredDistance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return dx*dx + dy*dy
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return Point2D{X: p.X * factor, Y: p.Y * factor}
}

// Correspondence is an ordered pair of matched points between two views:
// Source in the first view, Destination in the second.
type Correspondence struct {
	Source      Point2D `json:"source"`
	Destination Point2D `json:"destination"`
}

// NewCorrespondence creates a correspondence from source to destination.
func NewCorrespondence(src, dst Point2D) Correspondence {
	return Correspondence{Source: src, Destination: dst}
}

// Sources extracts the source points of a correspondence list.
func Sources(data []Correspondence) []Point2D {
	pts := make([]Point2D, len(data))
	for i, c := range data {
		pts[i] = c.Source
	}
	return pts
}

// Destinations extracts the destination points of a correspondence list.
func Destinations(data []Correspondence) []Point2D {
	pts := make([]Point2D, len(data))
	for i, c := range data {
		pts[i] = c.Destination
	}
	return pts
}

// Centroid computes the centroid (average position) of a set of points.
func Centroid(points []Point2D) Point2D {
	if len(points) == 0 {
		return Point2D{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point2D{X: sumX / n, Y: sumY / n}
}

// Collinear returns true if the three points lie on a common line, within a
// tolerance on the triangle area normalized by the edge lengths.
func Collinear(a, b, c Point2D, tol float64) bool {
	area := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	scale := a.Distance(b) * a.Distance(c)
	if scale == 0 {
		return true
	}
	return math.Abs(area)/scale < tol
}
