// Package localmap holds a certainty grid built from a bounded stretch of
// travel, anchored into the global frame and able to rebuild itself when
// that anchor is corrected.
package localmap

import (
	"io"

	"github.com/banshee-data/sonarmap/internal/certainty"
	"github.com/banshee-data/sonarmap/internal/config"
	"github.com/banshee-data/sonarmap/internal/geometry"
	"github.com/banshee-data/sonarmap/internal/sonar"
)

// LocalMap is a certainty grid plus the readings it was built from.
type LocalMap struct {
	grid     *certainty.Grid
	settings config.Settings
	robot    sonar.Robot

	origin  geometry.Pose
	history []sonar.Reading

	cumDist float64
	cumTurn float64

	hasLast  bool
	lastPose geometry.Pose
}

var _ certainty.SonarMap = (*LocalMap)(nil)

// New returns an empty local map anchored at origin, in world units.
func New(s config.Settings, robot sonar.Robot, origin geometry.Pose) *LocalMap {
	return &LocalMap{
		grid:     certainty.New(s, robot, origin.Coord),
		settings: s,
		robot:    robot,
		origin:   origin,
	}
}

// Pose is the anchor of the map in the global frame.
func (m *LocalMap) Pose() geometry.Pose { return m.origin }

// CumDistance is the distance traveled across the readings applied so far.
func (m *LocalMap) CumDistance() float64 { return m.cumDist }

// CumTurn is the absolute turn accumulated across the readings applied so far.
func (m *LocalMap) CumTurn() float64 { return m.cumTurn }

// History returns a copy of the readings applied to the map, oldest first.
func (m *LocalMap) History() []sonar.Reading {
	out := make([]sonar.Reading, len(m.history))
	copy(out, m.history)
	return out
}

// Grid exposes the underlying certainty grid.
func (m *LocalMap) Grid() *certainty.Grid { return m.grid }

// Value is the certainty of cell (x, y).
func (m *LocalMap) Value(x, y int) float64 { return m.grid.Value(x, y) }

// InBounds reports whether (x, y) lies within the grid.
func (m *LocalMap) InBounds(x, y int) bool { return m.grid.InBounds(x, y) }

// Bound is the current extent of the grid.
func (m *LocalMap) Bound() geometry.BoundBox { return m.grid.Bound() }

// Clear resets every cell to the initial certainty, keeping the history.
func (m *LocalMap) Clear() { m.grid.Clear() }

// Put writes the grid as text.
func (m *LocalMap) Put(w io.Writer, withBound bool) error { return m.grid.Put(w, withBound) }

// GridCoord converts a world coordinate to the cell containing it.
func (m *LocalMap) GridCoord(c geometry.Coord) geometry.Coord { return m.grid.GridCoord(c) }

// Empty shrinks the grid to one cell and forgets the history.
func (m *LocalMap) Empty() {
	m.grid.Empty()
	m.history = nil
	m.cumDist, m.cumTurn = 0, 0
	m.hasLast = false
}

// Update applies the raw reading behind mr; the device mapping is redone
// after any pre-rotation.
func (m *LocalMap) Update(mr sonar.MappedReading) string {
	return m.UpdateReading(mr.Reading)
}

// UpdateReading records r, accumulates travel since the previous reading and
// applies r to the grid. The returned log ends in a blank line when non-empty.
func (m *LocalMap) UpdateReading(r sonar.Reading) string {
	m.history = append(m.history, r)

	if !m.hasLast {
		m.hasLast = true
		m.lastPose = r.Pose
	} else if m.lastPose != r.Pose {
		m.cumDist += m.lastPose.DistanceTo(r.Pose.Coord)
		m.cumTurn += geometry.TurnBetween(m.lastPose.Theta, r.Pose.Theta)
		m.lastPose = r.Pose
	}

	return m.apply(m.grid, r, m.pivot(m.origin))
}

// ReorientBy moves the anchor by shift, rotating every recorded pose about
// the new anchor, and rebuilds the grid from the history.
func (m *LocalMap) ReorientBy(shift geometry.Pose) string {
	m.grid.Empty()
	m.origin = m.origin.Add(shift)
	m.grid.SetOrigin(m.grid.GridCoord(m.origin.Coord))

	pivot := m.pivot(m.origin)
	var log string
	for i := range m.history {
		m.history[i].Pose = shiftPose(m.history[i].Pose, shift, m.origin.Coord)
		log += m.apply(m.grid, m.history[i], pivot)
	}
	if m.hasLast && len(m.history) > 0 {
		m.lastPose = m.history[len(m.history)-1].Pose
	}
	return log
}

// ReorientedBy builds the grid ReorientBy would produce into a fresh grid,
// leaving the map untouched.
func (m *LocalMap) ReorientedBy(shift geometry.Pose) (*certainty.Grid, string) {
	origin := m.origin.Add(shift)
	g := certainty.New(m.settings, m.robot, origin.Coord)

	pivot := m.pivot(origin)
	var log string
	for _, r := range m.history {
		r.Pose = shiftPose(r.Pose, shift, origin.Coord)
		log += m.apply(g, r, pivot)
	}
	return g, log
}

func shiftPose(p, shift geometry.Pose, about geometry.Coord) geometry.Pose {
	p = p.Add(shift)
	if shift.Theta != 0 {
		p.Coord = p.Coord.RotatedBy(shift.Theta, about)
	}
	return p
}

// pivot is the rotation applied to incoming poses: the anchor heading when
// pre-rotating, none otherwise.
func (m *LocalMap) pivot(origin geometry.Pose) geometry.Pose {
	if !m.settings.PreRotate {
		return geometry.Pose{Coord: origin.Coord}
	}
	return origin
}

func (m *LocalMap) apply(g *certainty.Grid, r sonar.Reading, pivot geometry.Pose) string {
	if pivot.Theta != 0 {
		r.Pose.Coord = r.Pose.Coord.RotatedBy(pivot.Theta, pivot.Coord)
		r.Pose.Theta = geometry.NormalizeTheta(r.Pose.Theta + pivot.Theta)
	}
	out := g.UpdateReading(r)
	if out != "" {
		out += "\n"
	}
	return out
}
