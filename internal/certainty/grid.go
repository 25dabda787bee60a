// Package certainty maintains occupancy-probability grids updated from sonar
// readings under one of three sensor models.
package certainty

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/banshee-data/sonarmap/internal/bayes"
	"github.com/banshee-data/sonarmap/internal/config"
	"github.com/banshee-data/sonarmap/internal/geometry"
	"github.com/banshee-data/sonarmap/internal/grid"
	"github.com/banshee-data/sonarmap/internal/monitoring"
	"github.com/banshee-data/sonarmap/internal/sonar"
)

// InitVal is the probability of a cell nothing has been learned about.
const InitVal = 0.5

var logf = monitoring.Tagged("certainty")

// SonarMap is the capability shared by every map that consumes sonar
// readings.
type SonarMap interface {
	// Update applies a reading and returns the update log, or "" when the
	// reading had no effect.
	Update(r sonar.MappedReading) string
	Clear()
	Empty()
	Bound() geometry.BoundBox
	Put(w io.Writer, withBound bool) error
}

// Grid is a certainty grid: a Cartesian grid of occupancy probabilities in
// grid units, fed with readings in world units.
type Grid struct {
	cells    *grid.Cartesian[float64]
	settings config.Settings
	robot    sonar.Robot
	model    bayes.Model
}

var _ SonarMap = (*Grid)(nil)

// New returns a one-cell grid centered on the cell holding the world
// coordinate origin.
func New(s config.Settings, robot sonar.Robot, origin geometry.Coord) *Grid {
	g := &Grid{
		settings: s,
		robot:    robot,
		model:    bayes.NewModel(s, robot.SonarRange()),
	}
	g.cells = grid.MustCartesian(1, 1, g.GridCoord(origin), InitVal)
	return g
}

// GridCoord converts a world coordinate to the cell containing it.
func (g *Grid) GridCoord(world geometry.Coord) geometry.Coord {
	return world.Scaled(float64(g.settings.CellSize))
}

// Cells exposes the underlying probability grid.
func (g *Grid) Cells() *grid.Cartesian[float64] { return g.cells }

// Model is the sensor model the grid updates with.
func (g *Grid) Model() bayes.Model { return g.model }

// Settings are the settings the grid was built with.
func (g *Grid) Settings() config.Settings { return g.settings }

// Robot is the geometry model readings are mapped with.
func (g *Grid) Robot() sonar.Robot { return g.robot }

// Value is the probability at cell (x, y); cells outside the grid are InitVal.
func (g *Grid) Value(x, y int) float64 { return g.cells.Value(x, y) }

// InBounds reports whether cell (x, y) is inside the grid.
func (g *Grid) InBounds(x, y int) bool { return g.cells.InBounds(x, y) }

// Bound is the grid extent in cells.
func (g *Grid) Bound() geometry.BoundBox { return g.cells.Bound() }

// Origin is the cell the grid is centered on.
func (g *Grid) Origin() geometry.Coord { return g.cells.Origin() }

// SetOrigin re-anchors the grid on cell c.
func (g *Grid) SetOrigin(c geometry.Coord) { g.cells.SetOrigin(c) }

// Clear resets every cell to InitVal.
func (g *Grid) Clear() { g.cells.Clear() }

// Empty shrinks the grid back to one cell of InitVal.
func (g *Grid) Empty() { g.cells.Empty() }

// Put writes the grid with 4-decimal probabilities separated by spaces.
func (g *Grid) Put(w io.Writer, withBound bool) error {
	return g.cells.Put(w, withBound, " ", FormatProbability)
}

// FormatProbability renders a cell value the way grid dumps expect.
func FormatProbability(v float64) string { return fmt.Sprintf("%.4f", v) }

// UpdateReading maps r through the robot geometry and applies it.
func (g *Grid) UpdateReading(r sonar.Reading) string {
	return g.Update(g.robot.RangeReading(r))
}

// Update applies one mapped reading in world units. The returned log holds a
// pose line "x y theta sonar range" followed by "x y p;" for every cell
// touched, or is empty when the reading changed nothing.
func (g *Grid) Update(mr sonar.MappedReading) string {
	s := g.settings
	if !s.SonarEnabled(mr.Sonar) {
		return ""
	}

	// RegionI reaches RegionIHalfwidth past the return and must stay in range.
	rangeReading := mr.Distance
	outOfRange := false
	if rangeReading > g.robot.SonarRange()-s.RegionIHalfwidth {
		if s.IgnoreOutOfRange {
			return ""
		}
		outOfRange = true
		rangeReading = s.OutOfRangeConversion
	}

	gcRobot := g.GridCoord(mr.Pose.Coord)
	gcSonar := g.GridCoord(mr.SonarPose.Coord)
	gcObject := g.GridCoord(mr.Object)

	//         E     F     G      RegionI:  B-C-D-G-F-E
	//               C
	//           B       D        RegionII: A-B-C-D
	//               A            sonar
	thAxis := geometry.NormalizeTheta(mr.Pose.Theta + g.robot.SonarTheta(mr.Sonar))
	thLeft := thAxis - float64(s.Beta)
	thRight := thAxis + float64(s.Beta)
	d1 := float64(rangeReading - s.RegionIHalfwidth)
	d3 := float64(rangeReading + s.RegionIHalfwidth)

	wcSonar := mr.SonarPose.Coord
	a := gcSonar
	b := g.GridCoord(wcSonar.MappedTo(thLeft, d1))
	c := g.GridCoord(wcSonar.MappedTo(thAxis, d1))
	d := g.GridCoord(wcSonar.MappedTo(thRight, d1))
	e := g.GridCoord(wcSonar.MappedTo(thLeft, d3))
	f := g.GridCoord(mr.Object.MappedTo(thAxis, d3-d1))
	gg := g.GridCoord(wcSonar.MappedTo(thRight, d3))

	var fill strings.Builder
	switch s.SonarModel {
	case config.SingleCell:
		g.updateCell(&fill, gcObject, float64(rangeReading)/float64(s.CellSize))
	case config.AcousticAxis:
		g.updateAxis(&fill, gcSonar, gcObject, f)
	case config.Cone:
		if !outOfRange {
			regionI := geometry.PolygonFromCoords(b, c, d, gg, f, e)
			g.updateRegion(&fill, bayes.RegionI, regionI, gcSonar, thAxis)
		}
		regionII := geometry.PolygonFromCoords(a, b, c, d)
		g.updateRegion(&fill, bayes.RegionII, regionII, gcSonar, thAxis)
	}
	if fill.Len() == 0 {
		return ""
	}

	return fmt.Sprintf("%d %d %d %d %d\n", gcRobot.X, gcRobot.Y, int(mr.Pose.Theta), mr.Sonar, rangeReading) +
		fill.String() + "\n"
}

func (g *Grid) apply(fill *strings.Builder, cell geometry.Coord, region bayes.Region, r, alpha float64) {
	p, err := g.cells.Ref(cell.X, cell.Y)
	if err != nil {
		return
	}
	pr, err := g.model.PrOccupiedGivenSn(*p, region, r, alpha)
	if err != nil {
		logf("skipping cell %v: %v", cell, err)
		return
	}
	*p = pr
	fmt.Fprintf(fill, "%d %d %.4f;", cell.X, cell.Y, pr)
}

func (g *Grid) updateCell(fill *strings.Builder, gcObject geometry.Coord, r float64) {
	g.apply(fill, gcObject, bayes.RegionI, r, 0)
}

// updateAxis walks sonar -> object -> far edge of RegionI rather than sonar ->
// far edge so the cells match the obstruction checks, which trace sonar ->
// object.
func (g *Grid) updateAxis(fill *strings.Builder, gcSonar, gcObject, gcRegionIII geometry.Coord) {
	line := append(geometry.FillLine(gcSonar, gcObject), geometry.FillLine(gcObject, gcRegionIII)...)
	for _, cell := range line {
		if g.CellRegion(gcSonar, gcObject, cell) != bayes.RegionI {
			continue
		}
		r := math.Min(gcSonar.DistanceTo(cell), g.model.MaxRange())
		g.apply(fill, cell, bayes.RegionI, r, 0)
	}
}

func (g *Grid) updateRegion(fill *strings.Builder, region bayes.Region, poly geometry.Polygon, gcSonar geometry.Coord, thAxis float64) {
	beta := float64(g.settings.Beta)
	for _, cell := range poly.Cells() {
		dx := float64(cell.X - gcSonar.X)
		dy := float64(cell.Y - gcSonar.Y)
		r := math.Hypot(dx, dy)

		// Cells on the cone's fringe can fall just outside it; treat them as
		// on the boundary.
		alpha := 0.0
		if r > 0 {
			thCell := math.Acos(dy/r) / geometry.RadianFactor
			if dx < 0 {
				thCell = 360 - thCell
			}
			alpha = math.Min(geometry.TurnBetween(thAxis, thCell), beta)
		}
		g.apply(fill, cell, region, math.Min(r, g.model.MaxRange()), alpha)
	}
}

// CellRegion classifies a cell on the acoustic axis by its distance from the
// sonar compared with the object's.
func (g *Grid) CellRegion(gcSonar, gcObject, gcCell geometry.Coord) bayes.Region {
	distToObject := gcSonar.DistanceTo(gcObject)
	distToCell := gcSonar.DistanceTo(gcCell)

	if math.Floor(distToObject) > float64(g.robot.SonarRange()/g.settings.CellSize) {
		return bayes.OutOfRange
	}
	halfwidth := float64(g.settings.RegionIHalfwidth / g.settings.CellSize)
	delta := distToCell - distToObject
	switch {
	case delta > halfwidth:
		return bayes.RegionIII
	case math.Abs(delta) > halfwidth:
		return bayes.RegionII
	}
	return bayes.RegionI
}
