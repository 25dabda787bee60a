package geometry

import (
	"math"
	"sort"
)

// FillLine returns the cells on the Bresenham line from start towards end,
// start included and end excluded, in drawing order.
func FillLine(start, end Coord) []Coord {
	x0, y0 := start.X, start.Y
	dx := abs(end.X - x0)
	dy := -abs(end.Y - y0)
	sx, sy := 1, 1
	if x0 > end.X {
		sx = -1
	}
	if y0 > end.Y {
		sy = -1
	}
	cells := make([]Coord, 0, max(dx, -dy))
	errAcc := dx + dy
	for x0 != end.X || y0 != end.Y {
		cells = append(cells, Coord{x0, y0})
		e2 := 2 * errAcc
		if e2 >= dy {
			errAcc += dy
			x0 += sx
		}
		if e2 <= dx {
			errAcc += dx
			y0 += sy
		}
	}
	return cells
}

// FillPolygon returns the cells whose centers fall inside p under the even-odd
// rule, scanning rows north to south and each row west to east. Cells on the
// north or east border of an axis-aligned polygon are excluded, so polygons
// that share an edge never both claim a cell.
func FillPolygon(p Polygon) []Coord {
	b, ok := p.Bound()
	if !ok {
		return nil
	}
	type edge struct{ x0, y0, x1, y1 float64 }
	var edges []edge
	for _, path := range p.paths() {
		n := len(path)
		for i := 0; i < n; i++ {
			a, c := path[i], path[(i+1)%n]
			if a.Y == c.Y {
				continue
			}
			edges = append(edges, edge{a.X, a.Y, c.X, c.Y})
		}
	}

	var cells []Coord
	xs := make([]float64, 0, 8)
	for y := b.UL.Y - 1; y >= b.LR.Y; y-- {
		yc := float64(y) + 0.5
		xs = xs[:0]
		for _, e := range edges {
			if (yc >= e.y0) == (yc >= e.y1) {
				continue
			}
			xs = append(xs, e.x0+(yc-e.y0)*(e.x1-e.x0)/(e.y1-e.y0))
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			// Centers x+0.5 in [xs[i], xs[i+1]).
			first := int(math.Ceil(xs[i] - 0.5))
			last := int(math.Ceil(xs[i+1]-0.5)) - 1
			for x := first; x <= last; x++ {
				cells = append(cells, Coord{x, y})
			}
		}
	}
	return cells
}
