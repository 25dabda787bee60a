// Package globalmap fuses a sequence of local maps into one occupancy map.
// Each local map covers a bounded stretch of travel; the extents of all maps
// are partitioned into regions so a fused cell value only consults the maps
// that actually cover it. When localization is enabled each sealed map is
// matched against the maps before it to correct dead-reckoning drift.
package globalmap

import (
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/sonarmap/internal/certainty"
	"github.com/banshee-data/sonarmap/internal/config"
	"github.com/banshee-data/sonarmap/internal/geometry"
	"github.com/banshee-data/sonarmap/internal/grid"
	"github.com/banshee-data/sonarmap/internal/localmap"
	"github.com/banshee-data/sonarmap/internal/monitoring"
	"github.com/banshee-data/sonarmap/internal/sonar"
)

var logf = monitoring.Tagged("globalmap")

// GlobalMap owns the local maps built so far, the region partition over
// them and the fused certainty grid. It is not safe for concurrent use.
type GlobalMap struct {
	settings config.Settings
	robot    sonar.Robot

	fused *certainty.Grid

	maps    []*localmap.LocalMap
	current *localmap.LocalMap

	regionIDs *grid.Cartesian[RegionID]
	regions   map[RegionID]*Region
	ids       idPool
	index     *extentIndex

	finalized bool

	// Travel since the current map was opened, in world units.
	distance  float64
	resetTrip bool
	lastPos   geometry.Coord

	// Reading that opened the current map, already shifted.
	openingReading sonar.Reading
	// Drift correction accumulated by localization, in grid units.
	accumShift geometry.Pose
}

var _ certainty.SonarMap = (*GlobalMap)(nil)

// New returns an empty global map.
func New(s config.Settings, robot sonar.Robot) *GlobalMap {
	m := &GlobalMap{settings: s, robot: robot}
	m.reset()
	return m
}

func (m *GlobalMap) reset() {
	m.fused = certainty.New(m.settings, m.robot, geometry.Coord{})
	m.maps = nil
	m.current = nil
	m.regionIDs = grid.MustCartesian[RegionID](1, 1, geometry.Coord{}, 0)
	m.regions = map[RegionID]*Region{}
	m.ids.reset()
	m.index = newExtentIndex()
	m.finalized = false
	m.distance = 0
	m.resetTrip = true
	m.accumShift = geometry.Pose{}
	m.openingReading = sonar.Reading{}
}

// Settings are the settings the map was built with.
func (m *GlobalMap) Settings() config.Settings { return m.settings }

// Maps returns the local maps in the order they were opened.
func (m *GlobalMap) Maps() []*localmap.LocalMap { return m.maps }

// Current is the local map readings are being applied to, or nil before the
// first reading.
func (m *GlobalMap) Current() *localmap.LocalMap { return m.current }

// AccumShift is the drift correction applied to incoming readings, in grid
// units.
func (m *GlobalMap) AccumShift() geometry.Pose { return m.accumShift }

// Finalized reports whether Finalize has run.
func (m *GlobalMap) Finalized() bool { return m.finalized }

// Value is the fused probability stored for cell (x, y) by the last
// integration.
func (m *GlobalMap) Value(x, y int) float64 { return m.fused.Value(x, y) }

// Bound is the extent of the fused grid.
func (m *GlobalMap) Bound() geometry.BoundBox { return m.fused.Bound() }

// Clear resets the fused values, keeping the local maps and regions.
func (m *GlobalMap) Clear() { m.fused.Clear() }

// Empty discards every local map and region.
func (m *GlobalMap) Empty() { m.reset() }

// Put writes the settings as "% "-prefixed lines followed by the fused grid.
func (m *GlobalMap) Put(w io.Writer, withBound bool) error {
	if err := m.settings.Put(w, "% "); err != nil {
		return fmt.Errorf("write settings header: %w", err)
	}
	return m.fused.Put(w, withBound)
}

// Grid exposes the fused certainty grid.
func (m *GlobalMap) Grid() *certainty.Grid { return m.fused }

// Update applies the raw reading behind mr.
func (m *GlobalMap) Update(mr sonar.MappedReading) string {
	return m.UpdateReading(mr.Reading)
}

// UpdateReading applies one reading in world units. A new local map is
// opened on the first reading and whenever the current one has covered
// LocalMapDistance. The result is the local map update log, followed by the
// integrated cells when a map was sealed with localization on; it is empty
// when the reading changed nothing. After Finalize every call returns "".
func (m *GlobalMap) UpdateReading(r sonar.Reading) string {
	if m.finalized {
		return ""
	}

	if !m.resetTrip {
		m.distance += m.lastPos.DistanceTo(r.Pose.Coord)
	}
	m.lastPos = r.Pose.Coord
	m.resetTrip = false

	var newMapLog string
	switch {
	case m.current == nil:
		newMapLog = m.installNewMap(r)
	case m.settings.LocalMapDistance > 0 && m.distance > float64(m.settings.LocalMapDistance):
		log := m.installNewMap(r)
		if m.settings.Localize {
			newMapLog = log
		}
		m.resetTrip = true
		m.distance = 0
	}

	shifted := r
	shifted.Pose = r.Pose.Add(m.worldShift())

	mr := m.robot.RangeReading(shifted)
	if m.settings.SonarModel != config.Cone && m.settings.IgnoreObstructed &&
		m.ObstructionBetween(m.fused.GridCoord(mr.SonarPose.Coord), m.fused.GridCoord(mr.Object)) {
		return ""
	}

	out := m.current.Update(mr)
	if out == "" {
		if newMapLog == "" {
			return ""
		}
		return m.LogPose(shifted, r) + newMapLog
	}
	return strings.TrimSuffix(out, "\n\n") + newMapLog
}

// LogPose is the update log's first line for reading r taken at the drift
// corrected pose shifted: "x y theta sonar range" with the position in grid
// units and the remaining fields as reported.
func (m *GlobalMap) LogPose(shifted, r sonar.Reading) string {
	g := m.fused.GridCoord(shifted.Pose.Coord)
	return fmt.Sprintf("%d %d %d %d %d\n", g.X, g.Y, int(r.Pose.Theta), r.Sonar, r.Distance)
}

func (m *GlobalMap) worldShift() geometry.Pose {
	return toWorld(m.accumShift, m.settings.CellSize)
}

// toWorld converts a shift in grid units to world units.
func toWorld(p geometry.Pose, cellSize int) geometry.Pose {
	return geometry.Pose{Coord: geometry.C(p.X*cellSize, p.Y*cellSize), Theta: p.Theta}
}

// installNewMap seals the current map, if any, and opens the next one at the
// pose of r. Sealing optionally re-localizes the sealed map against its
// predecessor, merges it into the region partition and integrates the cells
// it touched; the new map's pose is then localized against the sealed one.
func (m *GlobalMap) installNewMap(r sonar.Reading) string {
	var log string

	if m.current != nil {
		seq := len(m.maps) - 1
		dirty := geometry.CellPolygon(m.current.Bound())

		if m.settings.Localize && len(m.maps) > 1 {
			m.addToRegionMap(seq)

			prior := m.maps[len(m.maps)-2]
			loc := m.localizedPose(prior, m.openingReading)
			old := m.current.Pose().Scaled(float64(m.settings.CellSize))
			old.Theta = m.gridCoord(prior.Pose().Coord).AngleTo(old.Coord)
			shift := loc.Sub(old)

			m.removeFromRegionMap(seq)

			m.accumShift = m.accumShift.Add(shift)
			m.current.ReorientBy(toWorld(shift, m.settings.CellSize))
			dirty = dirty.Union(geometry.CellPolygon(m.current.Bound()))

			logf("map %d relocalized: %v -> %v, shift %v, accumulated %v", seq, old, loc, shift, m.accumShift)
		}

		m.addToRegionMap(seq)
		log += m.integrateArea(dirty, true)

		if m.settings.Localize {
			loc := m.localizedPose(m.current, r)
			pre := r.Pose.Scaled(float64(m.settings.CellSize))
			pre.Theta = m.gridCoord(m.current.Pose().Coord).AngleTo(pre.Coord)
			shift := loc.Sub(pre)
			m.accumShift = m.accumShift.Add(shift)

			logf("map %d localized: %v -> %v, shift %v, accumulated %v", seq+1, pre, loc, shift, m.accumShift)
		}
	}

	m.openingReading = r
	m.openingReading.Pose = r.Pose.Add(m.worldShift())
	m.current = localmap.New(m.settings, m.robot, m.openingReading.Pose)
	m.maps = append(m.maps, m.current)
	return log
}

func (m *GlobalMap) gridCoord(c geometry.Coord) geometry.Coord {
	return m.fused.GridCoord(c)
}

// ConvolvedValueAt averages the probabilities the local maps covering cell
// (x, y) hold for it, skipping maps that never sensed the cell. Cells no
// region covers, or that no covering map sensed, read as InitVal.
func (m *GlobalMap) ConvolvedValueAt(x, y int) float64 {
	r, ok := m.regions[m.regionIDs.Value(x, y)]
	if !ok {
		return certainty.InitVal
	}
	var sum float64
	var n int
	for _, seq := range r.Maps {
		if p := m.maps[seq].Value(x, y); p != certainty.InitVal {
			sum += p
			n++
		}
	}
	if n == 0 {
		return certainty.InitVal
	}
	return sum / float64(n)
}

// Integrate stores the convolved value of every cell the region partition
// spans into the fused grid.
func (m *GlobalMap) Integrate() {
	b := m.regionIDs.Bound()
	for y := b.UL.Y; y >= b.LR.Y; y-- {
		for x := b.UL.X; x <= b.LR.X; x++ {
			m.setFused(x, y, m.ConvolvedValueAt(x, y))
		}
	}
}

// integrateArea integrates the cells of area, returning "x y p;" for each
// when withLog is set.
func (m *GlobalMap) integrateArea(area geometry.Polygon, withLog bool) string {
	var b strings.Builder
	for _, c := range area.Cells() {
		p := m.ConvolvedValueAt(c.X, c.Y)
		m.setFused(c.X, c.Y, p)
		if withLog {
			fmt.Fprintf(&b, "%d %d %.4f;", c.X, c.Y, p)
		}
	}
	return b.String()
}

func (m *GlobalMap) setFused(x, y int, p float64) {
	if err := m.fused.Cells().Set(x, y, p); err != nil {
		logf("integrate (%d, %d): %v", x, y, err)
	}
}

// Finalize seals the current map and integrates the whole partition. Later
// updates are ignored; calling it again does nothing.
func (m *GlobalMap) Finalize() {
	if m.finalized {
		return
	}
	if m.current != nil {
		m.addToRegionMap(len(m.maps) - 1)
	}
	m.Integrate()
	m.finalized = true
}

// ObstructionBetween walks the cells from start towards end, excluding end,
// and reports whether any is at least ObstructedCertainty in the fused
// partition or in the current local map. The walk stops once it has left
// both.
func (m *GlobalMap) ObstructionBetween(start, end geometry.Coord) bool {
	threshold := m.settings.ObstructedCertainty
	checkGlobal, checkLocal := true, m.current != nil

	for _, c := range geometry.FillLine(start, end) {
		inAny := false
		if checkGlobal {
			if m.regionIDs.InBounds(c.X, c.Y) {
				inAny = true
				if m.ConvolvedValueAt(c.X, c.Y) >= threshold {
					return true
				}
			} else {
				checkGlobal = false
			}
		}
		if checkLocal {
			if m.current.InBounds(c.X, c.Y) {
				inAny = true
				if m.current.Value(c.X, c.Y) >= threshold {
					return true
				}
			} else {
				checkLocal = false
			}
		}
		if !inAny {
			return false
		}
	}
	return false
}
