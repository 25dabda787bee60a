package grid

import (
	"fmt"
	"io"

	"github.com/banshee-data/sonarmap/internal/geometry"
)

// ExpansionMode controls what a write outside the grid does.
type ExpansionMode int

const (
	// Expand grows the grid to cover the written cell.
	Expand ExpansionMode = iota
	// Constrain rejects the write with ErrIndexOutOfBounds.
	Constrain
)

// Cartesian layers a four-quadrant coordinate system onto a Matrix. The
// global origin is the external coordinate of the grid's center cell; all
// coordinates passed in or out are global.
type Cartesian[T comparable] struct {
	m      *Matrix[T]
	center geometry.Coord // backing column, and row counted from the south edge
	origin geometry.Coord
	bound  geometry.BoundBox
	mode   ExpansionMode
}

// NewCartesian returns a width x height grid centered on origin.
func NewCartesian[T comparable](width, height int, origin geometry.Coord, init T) (*Cartesian[T], error) {
	m, err := NewMatrix(width, height, init)
	if err != nil {
		return nil, err
	}
	g := &Cartesian[T]{m: m, origin: origin}
	g.resetBounds()
	return g, nil
}

// MustCartesian is NewCartesian for dimensions known to be valid.
func MustCartesian[T comparable](width, height int, origin geometry.Coord, init T) *Cartesian[T] {
	g, err := NewCartesian(width, height, origin, init)
	if err != nil {
		panic(err)
	}
	return g
}

// resetBounds recenters on the middle cell of the backing matrix.
func (g *Cartesian[T]) resetBounds() {
	g.boundsAround(geometry.Coord{X: (g.m.w - 1) / 2, Y: (g.m.h - 1) / 2})
}

func (g *Cartesian[T]) boundsAround(center geometry.Coord) {
	g.center = center
	top := g.m.h - 1 - center.Y + g.origin.Y
	right := g.m.w - 1 - center.X + g.origin.X
	g.bound = geometry.BoundBox{
		UL: geometry.Coord{X: right - (g.m.w - 1), Y: top},
		LR: geometry.Coord{X: right, Y: top - (g.m.h - 1)},
	}
}

// Width is the number of columns.
func (g *Cartesian[T]) Width() int { return g.m.w }

// Height is the number of rows.
func (g *Cartesian[T]) Height() int { return g.m.h }

// Init is the value of untouched cells.
func (g *Cartesian[T]) Init() T { return g.m.init }

// Bound is the live extent in global coordinates.
func (g *Cartesian[T]) Bound() geometry.BoundBox { return g.bound }

// Origin is the global coordinate of the grid center.
func (g *Cartesian[T]) Origin() geometry.Coord { return g.origin }

// SetOrigin re-anchors the grid; the content keeps its backing position.
func (g *Cartesian[T]) SetOrigin(c geometry.Coord) {
	g.origin = c
	g.boundsAround(g.center)
}

// Mode returns the expansion mode.
func (g *Cartesian[T]) Mode() ExpansionMode { return g.mode }

// SetMode sets the expansion mode.
func (g *Cartesian[T]) SetMode(mode ExpansionMode) { g.mode = mode }

// InBounds reports whether (x, y) is inside the live extent.
func (g *Cartesian[T]) InBounds(x, y int) bool {
	return g.bound.Contains(geometry.Coord{X: x, Y: y})
}

func (g *Cartesian[T]) local(x, y int) (lx, ly int) {
	return g.center.X + x - g.origin.X, g.center.Y + y - g.origin.Y
}

// At reads the cell at (x, y) without growing the grid.
func (g *Cartesian[T]) At(x, y int) (T, error) {
	if !g.InBounds(x, y) {
		var zero T
		return zero, fmt.Errorf("cell (%d, %d) outside %v: %w", x, y, g.bound, ErrIndexOutOfBounds)
	}
	lx, ly := g.local(x, y)
	return g.m.rows[g.m.h-ly-1][lx], nil
}

// Value reads the cell at (x, y), returning the init value outside the grid.
func (g *Cartesian[T]) Value(x, y int) T {
	v, err := g.At(x, y)
	if err != nil {
		return g.m.init
	}
	return v
}

// Ref returns a pointer to the cell at (x, y), growing the grid when it is in
// Expand mode. The pointer is invalidated by the next resize.
func (g *Cartesian[T]) Ref(x, y int) (*T, error) {
	if g.mode == Constrain && !g.InBounds(x, y) {
		return nil, fmt.Errorf("cell (%d, %d) outside constrained %v: %w", x, y, g.bound, ErrIndexOutOfBounds)
	}
	lx, ly := g.local(x, y)
	row := g.m.h - ly - 1
	if lx < 0 {
		g.center.X -= lx
		g.bound.UL.X += lx
	} else if lx >= g.m.w {
		g.bound.LR.X += lx - g.m.w + 1
	}
	if ly >= g.m.h {
		g.bound.UL.Y += ly - g.m.h + 1
	} else if ly < 0 {
		g.center.Y -= ly
		g.bound.LR.Y += ly
	}
	return g.m.Ref(lx, row), nil
}

// Set writes v at (x, y), growing as Ref does.
func (g *Cartesian[T]) Set(x, y int, v T) error {
	p, err := g.Ref(x, y)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ResizeBy grows (positive) or shrinks (negative) each border of the grid.
func (g *Cartesian[T]) ResizeBy(north, south, east, west int) error {
	if err := g.m.ResizeBy(north, south, east, west); err != nil {
		return err
	}
	g.boundsAround(geometry.Coord{X: g.center.X + west, Y: g.center.Y + south})
	return nil
}

// Clear resets every cell, keeping the extent.
func (g *Cartesian[T]) Clear() { g.m.Clear() }

// Empty restores the construction size around the current origin.
func (g *Cartesian[T]) Empty() {
	g.m.Empty()
	g.resetBounds()
}

// RotateBy rotates the content clockwise by theta degrees about the origin.
// The grid is first made symmetric about its center so the rotation pivot is
// the origin cell.
func (g *Cartesian[T]) RotateBy(theta float64) {
	hm := max(g.m.w-1-g.center.X, g.center.X)
	vm := max(g.m.h-1-g.center.Y, g.center.Y)
	_ = g.ResizeBy(vm-(g.m.h-1-g.center.Y), vm-g.center.Y, hm-(g.m.w-1-g.center.X), hm-g.center.X)
	g.m.RotateBy(theta)
	g.resetBounds()
}

// Trim shrinks each border inward up to the first cell that differs from the
// init value. A grid holding only init values is left unchanged.
func (g *Cartesian[T]) Trim() {
	minRow, maxRow, minCol, maxCol := g.m.h, -1, g.m.w, -1
	for r, row := range g.m.rows {
		for c, v := range row {
			if v == g.m.init {
				continue
			}
			minRow, maxRow = min(minRow, r), max(maxRow, r)
			minCol, maxCol = min(minCol, c), max(maxCol, c)
		}
	}
	if maxRow < 0 {
		return
	}
	_ = g.ResizeBy(-minRow, -(g.m.h - 1 - maxRow), -(g.m.w - 1 - maxCol), -minCol)
}

// TrimTo shrinks the grid so it lies within b. Borders already inside b are
// left alone.
func (g *Cartesian[T]) TrimTo(b geometry.BoundBox) error {
	north := min(0, b.UL.Y-g.bound.UL.Y)
	south := min(0, g.bound.LR.Y-b.LR.Y)
	east := min(0, b.LR.X-g.bound.LR.X)
	west := min(0, g.bound.UL.X-b.UL.X)
	return g.ResizeBy(north, south, east, west)
}

// CopyInto writes every cell of g that lies inside dest's extent into dest.
func (g *Cartesian[T]) CopyInto(dest *Cartesian[T]) {
	isect, ok := g.bound.Intersect(dest.bound)
	if !ok {
		return
	}
	for y := isect.UL.Y; y >= isect.LR.Y; y-- {
		for x := isect.UL.X; x <= isect.LR.X; x++ {
			_ = dest.Set(x, y, g.Value(x, y))
		}
	}
}

// MergeWith overwrites cells of g with the cells of o that differ from o's
// init value, over the shared extent.
func (g *Cartesian[T]) MergeWith(o *Cartesian[T]) {
	isect, ok := g.bound.Intersect(o.bound)
	if !ok {
		return
	}
	for y := isect.UL.Y; y >= isect.LR.Y; y-- {
		for x := isect.UL.X; x <= isect.LR.X; x++ {
			if v := o.Value(x, y); v != o.m.init {
				_ = g.Set(x, y, v)
			}
		}
	}
}

// Clone returns a deep copy.
func (g *Cartesian[T]) Clone() *Cartesian[T] {
	c := *g
	c.m = g.m.Clone()
	return &c
}

// Put writes the grid north row first, optionally preceded by its bound as
// "(ulx, uly) (lrx, lry)".
func (g *Cartesian[T]) Put(w io.Writer, withBound bool, colSep string, format func(T) string) error {
	if withBound {
		if _, err := fmt.Fprintf(w, "%v\n", g.bound); err != nil {
			return err
		}
	}
	return g.m.Put(w, colSep, "\n", format)
}
