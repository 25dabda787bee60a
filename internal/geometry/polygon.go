package geometry

import (
	"math"

	"github.com/ctessum/geom"
)

// Polygon is an immutable polygon set in cell-corner coordinates: the unit
// square of cell (x, y) spans [x, x+1] by [y, y+1]. Boolean operations return
// new values.
type Polygon struct {
	g geom.Polygon
}

// PolygonFromCoords builds a single-ring polygon from its vertices.
func PolygonFromCoords(pts ...Coord) Polygon {
	if len(pts) < 3 {
		return Polygon{}
	}
	ring := make(geom.Path, len(pts))
	for i, c := range pts {
		ring[i] = geom.Point{X: float64(c.X), Y: float64(c.Y)}
	}
	return Polygon{g: geom.Polygon{ring}}
}

// PolygonFromBound traces the corners of b. Filling the result covers every
// cell of b except its north row and east column; use b.ExpandBy(1, 0, 1, 0)
// to cover the whole box.
func PolygonFromBound(b BoundBox) Polygon {
	return PolygonFromCoords(
		Coord{b.UL.X, b.UL.Y},
		Coord{b.LR.X, b.UL.Y},
		Coord{b.LR.X, b.LR.Y},
		Coord{b.UL.X, b.LR.Y},
	)
}

// CellPolygon covers exactly the cells of b.
func CellPolygon(b BoundBox) Polygon {
	return PolygonFromBound(b.ExpandBy(1, 0, 1, 0))
}

// Intersect returns p ∩ o.
func (p Polygon) Intersect(o Polygon) Polygon {
	if p.IsEmpty() || o.IsEmpty() {
		return Polygon{}
	}
	return Polygon{g: rings(p.g.Intersection(o.g))}
}

// Union returns p ∪ o.
func (p Polygon) Union(o Polygon) Polygon {
	switch {
	case p.IsEmpty():
		return o
	case o.IsEmpty():
		return p
	}
	return Polygon{g: rings(p.g.Union(o.g))}
}

// Difference returns p with o removed.
func (p Polygon) Difference(o Polygon) Polygon {
	if p.IsEmpty() || o.IsEmpty() {
		return p
	}
	return Polygon{g: rings(p.g.Difference(o.g))}
}

// Area is the enclosed area, holes subtracted.
func (p Polygon) Area() float64 {
	if len(p.g) == 0 {
		return 0
	}
	return p.g.Area()
}

// IsEmpty reports whether p encloses less than half a cell.
func (p Polygon) IsEmpty() bool {
	return p.Area() < 0.5
}

// Bound returns the integer box covering every vertex of p.
func (p Polygon) Bound() (BoundBox, bool) {
	if len(p.g) == 0 {
		return BoundBox{}, false
	}
	b := p.g.Bounds()
	return BoundBox{
		UL: Coord{int(math.Floor(b.Min.X)), int(math.Ceil(b.Max.Y))},
		LR: Coord{int(math.Ceil(b.Max.X)), int(math.Floor(b.Min.Y))},
	}, true
}

// Rings returns the vertices of each ring.
func (p Polygon) Rings() [][]Coord {
	rings := make([][]Coord, 0, len(p.g))
	for _, path := range p.g {
		ring := make([]Coord, len(path))
		for i, pt := range path {
			ring[i] = Coord{int(math.Round(pt.X)), int(math.Round(pt.Y))}
		}
		rings = append(rings, ring)
	}
	return rings
}

// Cells enumerates the cells whose centers lie inside p.
func (p Polygon) Cells() []Coord {
	return FillPolygon(p)
}

func (p Polygon) paths() geom.Polygon { return p.g }

// rings flattens the result of a geom boolean operation into one ring set.
func rings(g geom.Polygonal) geom.Polygon {
	if p, ok := g.(geom.Polygon); ok {
		return p
	}
	var out geom.Polygon
	for _, p := range g.Polygons() {
		out = append(out, p...)
	}
	return out
}
