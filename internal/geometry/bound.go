package geometry

import "fmt"

// BoundBox is an inclusive axis-aligned rectangle. UL holds the minimum x and
// maximum y, LR the maximum x and minimum y.
type BoundBox struct {
	UL Coord
	LR Coord
}

// NewBoundBox returns the box spanning the two corners in any order.
func NewBoundBox(a, b Coord) BoundBox {
	return BoundBox{
		UL: Coord{min(a.X, b.X), max(a.Y, b.Y)},
		LR: Coord{max(a.X, b.X), min(a.Y, b.Y)},
	}
}

func (b BoundBox) String() string {
	return fmt.Sprintf("(%d, %d) (%d, %d)", b.UL.X, b.UL.Y, b.LR.X, b.LR.Y)
}

// Width is the number of columns covered.
func (b BoundBox) Width() int { return abs(b.UL.X-b.LR.X) + 1 }

// Height is the number of rows covered.
func (b BoundBox) Height() int { return abs(b.UL.Y-b.LR.Y) + 1 }

// Contains reports whether c lies inside the box, borders included.
func (b BoundBox) Contains(c Coord) bool {
	return c.X >= b.UL.X && c.X <= b.LR.X && c.Y <= b.UL.Y && c.Y >= b.LR.Y
}

// Union returns the smallest box covering both b and o.
func (b BoundBox) Union(o BoundBox) BoundBox {
	return BoundBox{
		UL: Coord{min(b.UL.X, o.UL.X), max(b.UL.Y, o.UL.Y)},
		LR: Coord{max(b.LR.X, o.LR.X), min(b.LR.Y, o.LR.Y)},
	}
}

// Intersect returns the overlap of b and o. ok is false when they are disjoint.
func (b BoundBox) Intersect(o BoundBox) (BoundBox, bool) {
	r := BoundBox{
		UL: Coord{max(b.UL.X, o.UL.X), min(b.UL.Y, o.UL.Y)},
		LR: Coord{min(b.LR.X, o.LR.X), max(b.LR.Y, o.LR.Y)},
	}
	return r, r.UL.X <= r.LR.X && r.UL.Y >= r.LR.Y
}

// ExpandBy moves each border outward by the given number of cells; negative
// values shrink.
func (b BoundBox) ExpandBy(north, south, east, west int) BoundBox {
	return BoundBox{
		UL: Coord{b.UL.X - west, b.UL.Y + north},
		LR: Coord{b.LR.X + east, b.LR.Y - south},
	}
}

// Translate shifts the whole box by d.
func (b BoundBox) Translate(d Coord) BoundBox {
	return BoundBox{UL: b.UL.Add(d), LR: b.LR.Add(d)}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
