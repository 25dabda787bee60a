// Package geometry provides the integer coordinate, heading and extent types
// shared by the mapping packages, plus polygon and rasterization helpers.
//
// Headings are degrees measured clockwise from north (+y), so a heading of 90
// points along +x.
package geometry

import (
	"fmt"
	"math"
)

// RadianFactor converts degrees to radians.
const RadianFactor = math.Pi / 180.0

// Coord is an integer Cartesian position in either world or grid units.
type Coord struct {
	X int
	Y int
}

// C is shorthand for Coord{X: x, Y: y}.
func C(x, y int) Coord { return Coord{X: x, Y: y} }

func (c Coord) String() string { return fmt.Sprintf("(%d, %d)", c.X, c.Y) }

// Add returns c + o.
func (c Coord) Add(o Coord) Coord { return Coord{c.X + o.X, c.Y + o.Y} }

// Sub returns c - o.
func (c Coord) Sub(o Coord) Coord { return Coord{c.X - o.X, c.Y - o.Y} }

// Scaled divides both components by f, rounding toward negative infinity when
// the quotient is not whole.
func (c Coord) Scaled(f float64) Coord {
	return Coord{scaleInt(c.X, f), scaleInt(c.Y, f)}
}

func scaleInt(v int, f float64) int {
	q := float64(v) / f
	if q == math.Trunc(q) {
		return int(q)
	}
	if q > 0 {
		return int(q)
	}
	return int(q - 1)
}

// MappedTo returns the point d units away from c along heading theta.
func (c Coord) MappedTo(theta, d float64) Coord {
	rad := theta * RadianFactor
	return Coord{
		X: c.X + roundAway(math.Sin(rad)*d),
		Y: c.Y + roundAway(math.Cos(rad)*d),
	}
}

func roundAway(v float64) int {
	if v < 0 {
		return int(v - 0.5)
	}
	return int(v + 0.5)
}

// DistanceTo returns the Euclidean distance between c and o.
func (c Coord) DistanceTo(o Coord) float64 {
	return math.Hypot(float64(o.X-c.X), float64(o.Y-c.Y))
}

// AngleTo returns the heading from c towards o.
func (c Coord) AngleTo(o Coord) float64 {
	dx := float64(o.X - c.X)
	dy := float64(o.Y - c.Y)
	var th float64
	if dx != 0 {
		th = math.Atan(dy/dx) / RadianFactor
	}
	switch {
	case dx > 0:
		return 90 - th
	case dx < 0:
		return 270 - th
	case dy >= 0:
		return 0
	default:
		return 180
	}
}

// AngleFrom returns the heading from o towards c.
func (c Coord) AngleFrom(o Coord) float64 { return o.AngleTo(c) }

// RotatedBy returns c rotated clockwise by rot degrees about pivot.
func (c Coord) RotatedBy(rot float64, pivot Coord) Coord {
	mag := c.DistanceTo(pivot)
	th := NormalizeTheta(c.AngleFrom(pivot) + rot)
	return pivot.MappedTo(th, mag)
}

// NormalizeTheta wraps a heading into [0, 360).
func NormalizeTheta(th float64) float64 {
	th = math.Mod(th, 360)
	if th < 0 {
		th += 360
	}
	if th >= 360 {
		th = 0
	}
	return th
}

// TurnBetween returns the absolute heading change from a to b, mirrored so the
// result is at most 180.
func TurnBetween(a, b float64) float64 {
	t := math.Abs(b - a)
	if t > 180 {
		t = 360 - t
	}
	return t
}
