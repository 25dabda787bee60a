package grid

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"

	"github.com/banshee-data/sonarmap/internal/geometry"
)

// snapshot is the gob form of a Cartesian grid.
type snapshot[T comparable] struct {
	Origin geometry.Coord
	Center geometry.Coord
	Width  int
	Height int
	Init   T
	Cells  []T // row-major, north row first
}

// Encode compresses the grid using gob encoding and gzip compression.
func Encode[T comparable](g *Cartesian[T]) ([]byte, error) {
	s := snapshot[T]{
		Origin: g.origin,
		Center: g.center,
		Width:  g.m.w,
		Height: g.m.h,
		Init:   g.m.init,
		Cells:  make([]T, 0, g.m.w*g.m.h),
	}
	for _, row := range g.m.rows {
		s.Cells = append(s.Cells, row...)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(s); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode rebuilds a grid from a gob+gzip blob written by Encode.
func Decode[T comparable](blob []byte) (*Cartesian[T], error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty grid blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var s snapshot[T]
	if err := gob.NewDecoder(gz).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode grid: %w", err)
	}
	if s.Width < 0 || s.Height < 0 || len(s.Cells) != s.Width*s.Height {
		return nil, fmt.Errorf("grid blob holds %d cells for %dx%d: %w",
			len(s.Cells), s.Width, s.Height, ErrInvalidDimension)
	}

	g, err := NewCartesian(s.Width, s.Height, s.Origin, s.Init)
	if err != nil {
		return nil, err
	}
	for r := 0; r < s.Height; r++ {
		copy(g.m.rows[r], s.Cells[r*s.Width:(r+1)*s.Width])
	}
	g.boundsAround(s.Center)
	return g, nil
}
