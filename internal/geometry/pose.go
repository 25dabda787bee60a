package geometry

import "fmt"

// Pose is a position plus a heading in degrees, kept within [0, 360).
type Pose struct {
	Coord
	Theta float64
}

// P builds a Pose with a normalized heading.
func P(x, y int, theta float64) Pose {
	return Pose{Coord: Coord{x, y}, Theta: NormalizeTheta(theta)}
}

func (p Pose) String() string {
	return fmt.Sprintf("(%d, %d, %.2f)", p.X, p.Y, p.Theta)
}

// Add returns the component-wise sum, wrapping theta.
func (p Pose) Add(o Pose) Pose {
	return Pose{Coord: p.Coord.Add(o.Coord), Theta: NormalizeTheta(p.Theta + o.Theta)}
}

// Sub returns the component-wise difference, wrapping theta.
func (p Pose) Sub(o Pose) Pose {
	return Pose{Coord: p.Coord.Sub(o.Coord), Theta: NormalizeTheta(p.Theta - o.Theta)}
}

// Scaled divides the position by f; the heading is unchanged.
func (p Pose) Scaled(f float64) Pose {
	return Pose{Coord: p.Coord.Scaled(f), Theta: p.Theta}
}
