package grid

import (
	"fmt"
	"io"
	"math"
)

// Matrix is a dynamically sized row/column container. Row 0 is the northern
// edge and column 0 the western edge. Each border can grow or shrink on its
// own without moving existing content.
type Matrix[T comparable] struct {
	rows  [][]T
	w, h  int
	init  T
	initW int
	initH int
}

// NewMatrix returns a width x height matrix filled with init.
func NewMatrix[T comparable](width, height int, init T) (*Matrix[T], error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("new matrix %dx%d: %w", width, height, ErrInvalidDimension)
	}
	m := &Matrix[T]{init: init, initW: width, initH: height}
	m.rows = m.makeRows(width, height)
	m.w, m.h = width, height
	return m, nil
}

func (m *Matrix[T]) makeRows(width, height int) [][]T {
	rows := make([][]T, height)
	for r := range rows {
		row := make([]T, width)
		for c := range row {
			row[c] = m.init
		}
		rows[r] = row
	}
	return rows
}

// Width is the number of columns.
func (m *Matrix[T]) Width() int { return m.w }

// Height is the number of rows.
func (m *Matrix[T]) Height() int { return m.h }

// Init is the value newly created cells hold.
func (m *Matrix[T]) Init() T { return m.init }

// Contains reports whether (col, row) is inside the matrix.
func (m *Matrix[T]) Contains(col, row int) bool {
	return col >= 0 && col < m.w && row >= 0 && row < m.h
}

// At returns the value at (col, row) without growing the matrix.
func (m *Matrix[T]) At(col, row int) (T, error) {
	if !m.Contains(col, row) {
		var zero T
		return zero, fmt.Errorf("cell (%d, %d) of %dx%d: %w", col, row, m.w, m.h, ErrIndexOutOfBounds)
	}
	return m.rows[row][col], nil
}

// Ref returns a pointer to the cell at (col, row), growing the matrix first
// when the cell lies outside it. Negative rows grow north, negative columns
// grow west. The pointer is invalidated by the next resize.
func (m *Matrix[T]) Ref(col, row int) *T {
	var north, south, east, west int
	switch {
	case row < 0:
		north = -row
	case row >= m.h:
		south = row - m.h + 1
	}
	switch {
	case col < 0:
		west = -col
	case col >= m.w:
		east = col - m.w + 1
	}
	if north|south|east|west != 0 {
		// Growth never yields a negative dimension.
		_ = m.ResizeBy(north, south, east, west)
		row += north
		col += west
	}
	return &m.rows[row][col]
}

// Set writes v at (col, row), growing as Ref does.
func (m *Matrix[T]) Set(col, row int, v T) {
	*m.Ref(col, row) = v
}

// ResizeBy grows (positive) or shrinks (negative) each border.
func (m *Matrix[T]) ResizeBy(north, south, east, west int) error {
	nw := m.w + east + west
	nh := m.h + north + south
	if nw < 0 || nh < 0 {
		return fmt.Errorf("resize %dx%d by n=%d s=%d e=%d w=%d: %w",
			m.w, m.h, north, south, east, west, ErrInvalidDimension)
	}
	rows := m.makeRows(nw, nh)
	for r := 0; r < nh; r++ {
		or := r - north
		if or < 0 || or >= m.h {
			continue
		}
		for c := 0; c < nw; c++ {
			oc := c - west
			if oc < 0 || oc >= m.w {
				continue
			}
			rows[r][c] = m.rows[or][oc]
		}
	}
	m.rows, m.w, m.h = rows, nw, nh
	return nil
}

// Clear resets every cell to the init value.
func (m *Matrix[T]) Clear() {
	for _, row := range m.rows {
		for c := range row {
			row[c] = m.init
		}
	}
}

// Empty restores the construction size and clears every cell.
func (m *Matrix[T]) Empty() {
	m.rows = m.makeRows(m.initW, m.initH)
	m.w, m.h = m.initW, m.initH
}

// Clone returns a deep copy.
func (m *Matrix[T]) Clone() *Matrix[T] {
	c := &Matrix[T]{w: m.w, h: m.h, init: m.init, initW: m.initW, initH: m.initH}
	c.rows = make([][]T, m.h)
	for r, row := range m.rows {
		c.rows[r] = append([]T(nil), row...)
	}
	return c
}

// RotateBy rotates the content clockwise by theta degrees about the center.
// The matrix is first padded to a square whose side covers the original
// diagonal plus a one-cell margin; each destination cell samples its source
// through the inverse rotation, and a one-cell shift per quadrant removes the
// half-cell bias. The margin is what that shift discards.
func (m *Matrix[T]) RotateBy(theta float64) {
	d := int(math.Sqrt(float64(m.w*m.w+m.h*m.h)) + 0.5)
	wD := int(float64(d-m.w)/2.0) + 1
	hD := int(float64(d-m.h)/2.0) + 1

	src := m.Clone()
	_ = src.ResizeBy(hD, hD, wD, wD)
	n := max(src.w, src.h)
	_ = src.ResizeBy(0, n-src.h, n-src.w, 0)

	m.rows = m.makeRows(n, n)
	m.w, m.h = n, n

	half := float64(n/2 + 1)
	rad := theta * math.Pi / 180.0
	cos, sin := math.Cos(rad), math.Sin(rad)
	n0 := 0.5 - half
	c0 := make([]float64, n)
	s0 := make([]float64, n)
	for i := 0; i < n; i++ {
		c0[i] = (float64(i) + n0) * cos
		s0[i] = (float64(i) + n0) * sin
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x := half + c0[i] + s0[j]
			y := half - s0[i] + c0[j]
			if x < 0 || y < 0 || x >= float64(n) || y >= float64(n) {
				continue
			}
			m.rows[j][i] = src.rows[int(y)][int(x)]
		}
	}

	q := int(theta+45) % 360
	if q < 0 {
		q += 360
	}
	switch q / 90 {
	case 1:
		_ = m.ResizeBy(0, 0, 1, -1)
	case 2:
		_ = m.ResizeBy(-1, 1, 1, -1)
	case 3:
		_ = m.ResizeBy(-1, 1, 0, 0)
	}
}

// Put writes the matrix row by row, north first. colSep follows every cell and
// rowSep every row.
func (m *Matrix[T]) Put(w io.Writer, colSep, rowSep string, format func(T) string) error {
	if format == nil {
		format = func(v T) string { return fmt.Sprint(v) }
	}
	for _, row := range m.rows {
		for _, v := range row {
			if _, err := io.WriteString(w, format(v)+colSep); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, rowSep); err != nil {
			return err
		}
	}
	return nil
}
