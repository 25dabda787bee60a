package globalmap

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sonarmap/internal/certainty"
	"github.com/banshee-data/sonarmap/internal/config"
	"github.com/banshee-data/sonarmap/internal/geometry"
	"github.com/banshee-data/sonarmap/internal/localmap"
	"github.com/banshee-data/sonarmap/internal/monitoring"
	"github.com/banshee-data/sonarmap/internal/sonar"
)

func init() {
	monitoring.SetLogger(nil)
}

// sealMap appends a local map anchored at origin whose extent spans the
// cells ul..lr, writes the given cell values and merges it into the
// partition.
func sealMap(t *testing.T, g *GlobalMap, origin geometry.Pose, ul, lr geometry.Coord, values map[geometry.Coord]float64) int {
	t.Helper()
	lm := localmap.New(g.settings, g.robot, origin)
	cells := lm.Grid().Cells()
	require.NoError(t, cells.Set(ul.X, ul.Y, certainty.InitVal))
	require.NoError(t, cells.Set(lr.X, lr.Y, certainty.InitVal))
	for c, v := range values {
		require.NoError(t, cells.Set(c.X, c.Y, v))
	}
	require.Equal(t, geometry.NewBoundBox(ul, lr), lm.Bound())

	g.maps = append(g.maps, lm)
	seq := len(g.maps) - 1
	g.addToRegionMap(seq)
	return seq
}

// threeMaps builds A over x 0..9, B over x 20..29 and C over x 5..24, all
// spanning y 0..9.
func threeMaps(t *testing.T) *GlobalMap {
	g := New(config.DefaultSettings(), sonar.Pioneer{})
	sealMap(t, g, geometry.P(0, 0, 0), geometry.C(0, 9), geometry.C(9, 0),
		map[geometry.Coord]float64{geometry.C(6, 3): 0.8})
	sealMap(t, g, geometry.P(2000, 0, 0), geometry.C(20, 9), geometry.C(29, 0), nil)
	sealMap(t, g, geometry.P(1500, 0, 0), geometry.C(5, 9), geometry.C(24, 0),
		map[geometry.Coord]float64{geometry.C(6, 3): 0.6, geometry.C(7, 3): 0.9})
	return g
}

func mapsAt(g *GlobalMap, x, y int) []int {
	r, ok := g.regions[g.RegionAt(x, y)]
	if !ok {
		return nil
	}
	return r.Maps
}

func TestAddToRegionMap_Disjoint(t *testing.T) {
	t.Parallel()
	g := New(config.DefaultSettings(), sonar.Pioneer{})
	sealMap(t, g, geometry.P(0, 0, 0), geometry.C(0, 9), geometry.C(9, 0), nil)
	sealMap(t, g, geometry.P(2000, 0, 0), geometry.C(20, 9), geometry.C(29, 0), nil)

	regions := g.Regions()
	require.Len(t, regions, 2)
	assert.Equal(t, []int{0}, regions[0].Maps)
	assert.Equal(t, []int{1}, regions[1].Maps)
	assert.True(t, regions[0].Boundary.Intersect(regions[1].Boundary).IsEmpty())
	assert.Equal(t, 2, g.index.size())
}

func TestAddToRegionMap_Overlap(t *testing.T) {
	t.Parallel()
	g := threeMaps(t)

	require.Len(t, g.Regions(), 5)
	cases := []struct {
		x    int
		want []int
	}{
		{0, []int{0}},
		{4, []int{0}},
		{5, []int{0, 2}},
		{9, []int{0, 2}},
		{10, []int{2}},
		{19, []int{2}},
		{20, []int{1, 2}},
		{24, []int{1, 2}},
		{25, []int{1}},
		{29, []int{1}},
	}
	for _, tc := range cases {
		for _, y := range []int{0, 9} {
			if diff := cmp.Diff(tc.want, mapsAt(g, tc.x, y)); diff != "" {
				t.Errorf("maps at (%d, %d) (-want +got):\n%s", tc.x, y, diff)
			}
		}
	}
	assert.Equal(t, RegionID(0), g.RegionAt(30, 0))
	assert.Equal(t, RegionID(0), g.RegionAt(0, 10))
}

func TestRegions_PartitionCoversEveryMapCell(t *testing.T) {
	t.Parallel()
	g := threeMaps(t)
	for seq, lm := range g.Maps() {
		for _, c := range geometry.CellPolygon(lm.Bound()).Cells() {
			r, ok := g.regions[g.RegionAt(c.X, c.Y)]
			require.True(t, ok, "map %d cell %v uncovered", seq, c)
			assert.True(t, r.hasMap(seq), "map %d missing from region %d at %v", seq, r.ID, c)
		}
	}
	// Each region's cells carry its id and nothing else does.
	for _, r := range g.Regions() {
		for _, c := range r.Boundary.Cells() {
			assert.Equal(t, r.ID, g.RegionAt(c.X, c.Y), "%v", c)
		}
	}
}

func TestRemoveFromRegionMap(t *testing.T) {
	t.Parallel()
	g := threeMaps(t)
	g.removeFromRegionMap(2)

	assert.Len(t, g.Regions(), 4)
	assert.Equal(t, []int{0}, mapsAt(g, 5, 0))
	assert.Equal(t, []int{1}, mapsAt(g, 22, 0))
	assert.Nil(t, mapsAt(g, 15, 0))
	assert.Equal(t, 2, g.index.size())

	// The released id comes back first.
	freed := g.ids.free
	require.Len(t, freed, 1)
	r := g.newRegion(geometry.CellPolygon(geometry.NewBoundBox(geometry.C(40, 0), geometry.C(41, 1))))
	assert.Equal(t, freed[0], r.ID)
}

func TestIDPool(t *testing.T) {
	t.Parallel()
	var p idPool
	assert.Equal(t, RegionID(1), p.get())
	assert.Equal(t, RegionID(2), p.get())
	assert.Equal(t, RegionID(3), p.get())
	p.put(2)
	p.put(1)
	assert.Equal(t, RegionID(2), p.get())
	assert.Equal(t, RegionID(1), p.get())
	assert.Equal(t, RegionID(4), p.get())
	p.reset()
	assert.Equal(t, RegionID(1), p.get())
}

func TestConvolvedValueAt(t *testing.T) {
	t.Parallel()
	g := threeMaps(t)

	assert.InDelta(t, 0.7, g.ConvolvedValueAt(6, 3), 1e-12, "average of both maps")
	assert.Equal(t, 0.9, g.ConvolvedValueAt(7, 3), "untouched cells do not dilute")
	assert.Equal(t, certainty.InitVal, g.ConvolvedValueAt(2, 2))
	assert.Equal(t, certainty.InitVal, g.ConvolvedValueAt(-50, 3), "outside every region")

	g.Integrate()
	assert.InDelta(t, 0.7, g.Value(6, 3), 1e-12)
	assert.Equal(t, 0.9, g.Value(7, 3))
	assert.True(t, g.Bound().Contains(geometry.C(29, 9)))
}

func TestObstructionBetween(t *testing.T) {
	t.Parallel()
	g := New(config.DefaultSettings(), sonar.Pioneer{})
	g.installNewMap(sonar.NewReading(geometry.P(0, 0, 0), [sonar.NumSonars]int{}))
	require.NotNil(t, g.Current())
	cells := g.Current().Grid().Cells()
	require.NoError(t, cells.Set(0, 5, 0.8))
	require.NoError(t, cells.Set(0, 12, certainty.InitVal))

	assert.True(t, g.ObstructionBetween(geometry.C(0, 0), geometry.C(0, 10)))
	assert.False(t, g.ObstructionBetween(geometry.C(0, 0), geometry.C(0, 5)), "end cell is excluded")
	assert.False(t, g.ObstructionBetween(geometry.C(1, 0), geometry.C(1, 10)))

	require.NoError(t, cells.Set(0, 5, 0.69))
	assert.False(t, g.ObstructionBetween(geometry.C(0, 0), geometry.C(0, 10)), "below ObstructedCertainty")
}

func TestGaussGrid(t *testing.T) {
	t.Parallel()
	k := gaussKernel(11, 5)
	require.Len(t, k, 11)
	for i := 0; i < 5; i++ {
		assert.InDelta(t, k[i], k[10-i], 1e-12)
		assert.Less(t, k[i], k[i+1])
	}

	origin := geometry.C(10, -4)
	g := gaussGrid(5, 9, origin, 0, 5, 0)
	assert.Equal(t, geometry.NewBoundBox(geometry.C(8, 0), geometry.C(12, -8)), g.Bound())
	assert.InDelta(t, 0.9, g.Value(origin.X, origin.Y), 1e-9)
	assert.InDelta(t, g.Value(8, -4), g.Value(12, -4), 1e-12)
	assert.Less(t, g.Value(10, 0), g.Value(10, -4))

	bent := gaussGrid(5, 9, origin, 0, 5, 20)
	assert.Greater(t, bent.Height(), 9, "bending stretches the ellipse")
	assert.InDelta(t, 0.9, bent.Value(origin.X, origin.Y), 1e-9)
}

func sweep(x, y int, th float64, r int) sonar.Reading {
	var ranges [sonar.NumSonars]int
	for i := range ranges {
		ranges[i] = r
	}
	return sonar.NewReading(geometry.P(x, y, th), ranges)
}

func drive(g *GlobalMap, from, to, step int) string {
	var log strings.Builder
	for y := from; y <= to; y += step {
		r := sweep(0, y, 0, 1000)
		for i := 0; i < sonar.NumSonars; i++ {
			log.WriteString(g.UpdateReading(r.WithSonar(i)))
		}
	}
	return log.String()
}

func TestUpdateReading_StraightLine(t *testing.T) {
	t.Parallel()
	s := config.DefaultSettings()
	s.LocalMapDistance = 2000
	g := New(s, sonar.Pioneer{})

	first := g.UpdateReading(sweep(0, 0, 0, 1000).WithSonar(0))
	require.NotEmpty(t, first)
	assert.True(t, strings.HasPrefix(first, "0 0 0 0 1000\n"), first)
	assert.False(t, strings.HasSuffix(first, "\n"), "trailing blank lines are trimmed")

	drive(g, 100, 7000, 100)
	require.GreaterOrEqual(t, len(g.Maps()), 3)
	for _, lm := range g.Maps()[:len(g.Maps())-1] {
		assert.Greater(t, lm.CumDistance(), 0.0)
	}

	g.Finalize()
	assert.True(t, g.Finalized())
	assert.Equal(t, "", g.UpdateReading(sweep(0, 0, 0, 1000)))
	regions := len(g.Regions())
	g.Finalize()
	assert.Len(t, g.Regions(), regions, "finalize is idempotent")

	for seq, lm := range g.Maps() {
		for _, c := range geometry.CellPolygon(lm.Bound()).Cells() {
			require.NotZero(t, g.RegionAt(c.X, c.Y), "map %d cell %v", seq, c)
		}
	}
	b := g.Bound()
	for y := b.LR.Y; y <= b.UL.Y; y++ {
		for x := b.UL.X; x <= b.LR.X; x++ {
			v := g.Value(x, y)
			require.True(t, v > 0 && v < 1, "(%d, %d) = %v", x, y, v)
		}
	}
	// Returns 1m to the west of the track read as occupied.
	west := false
	for y := b.LR.Y; y <= b.UL.Y && !west; y++ {
		for x := b.UL.X; x <= -9; x++ {
			if g.Value(x, y) > certainty.InitVal {
				west = true
				break
			}
		}
	}
	assert.True(t, west)

	var buf bytes.Buffer
	require.NoError(t, g.Put(&buf, true))
	assert.True(t, strings.HasPrefix(buf.String(), "% "))
	assert.Contains(t, buf.String(), "% CellSize 100\n")
	assert.Contains(t, buf.String(), g.Bound().String()+"\n")

	g.Empty()
	assert.Empty(t, g.Maps())
	assert.Empty(t, g.Regions())
	assert.Nil(t, g.Current())
	assert.False(t, g.Finalized())
}

func TestUpdateReading_LocalizeKeepsMapsConsistent(t *testing.T) {
	t.Parallel()
	s := config.DefaultSettings()
	s.LocalMapDistance = 1500
	s.Localize = true
	g := New(s, sonar.Pioneer{})

	log := drive(g, 0, 5000, 100)
	require.NotEmpty(t, log)
	require.GreaterOrEqual(t, len(g.Maps()), 3)

	g.Finalize()
	for seq, lm := range g.Maps() {
		for _, c := range geometry.CellPolygon(lm.Bound()).Cells() {
			r, ok := g.regions[g.RegionAt(c.X, c.Y)]
			require.True(t, ok, "map %d cell %v uncovered", seq, c)
			require.True(t, r.hasMap(seq))
		}
	}
}

// noseRobot has one sonar at the robot center facing its heading.
type noseRobot struct{}

func (noseRobot) RangeReading(r sonar.Reading) sonar.MappedReading {
	return sonar.MappedReading{
		Reading:   r,
		SonarPose: r.Pose,
		Object:    r.Pose.Coord.MappedTo(r.Pose.Theta, float64(r.Distance)),
	}
}
func (noseRobot) SonarTheta(int) float64 { return 0 }
func (noseRobot) SonarRange() int        { return 2999 }
func (noseRobot) NumSonars() int         { return 1 }

// wallMap seals a prior map over x -5..5, y 0..25 holding an occupied wall
// along y=20 plus any extra occupied cells, and returns it. The motion model
// is w x h cells with no bend.
func wallMap(t *testing.T, w, h int, extra ...geometry.Coord) (*GlobalMap, *localmap.LocalMap) {
	t.Helper()
	s := config.DefaultSettings()
	s.Localize = true
	s.MotionModel = config.MotionModel{
		MinHeight: h, MinWidth: w, UnitDistance: 500, UnitTurn: 10, GaussianSigma: 5,
	}
	g := New(s, noseRobot{})

	values := map[geometry.Coord]float64{}
	for x := -5; x <= 5; x++ {
		values[geometry.C(x, 20)] = 0.9
	}
	for _, c := range extra {
		values[c] = 0.9
	}
	seq := sealMap(t, g, geometry.P(0, 0, 0), geometry.C(-5, 25), geometry.C(5, 0), values)
	return g, g.maps[seq]
}

func noseReading(x, y, r int) sonar.Reading {
	var ranges [sonar.NumSonars]int
	ranges[0] = r
	return sonar.NewReading(geometry.P(x, y, 0), ranges)
}

func TestLocalizedPose_RecoversOffset(t *testing.T) {
	t.Parallel()
	// Truly at y=500 the sonar sees the wall 1550 away.
	g, prior := wallMap(t, 1, 9)

	for _, reportedY := range []int{300, 700} {
		got := g.localizedPose(prior, noseReading(50, reportedY, 1550))
		assert.Equal(t, geometry.C(0, 5), got.Coord, "reported y=%d", reportedY)
		assert.InDelta(t, 0, got.Theta, 1e-9)
	}

	// Reported where it truly is, nothing moves.
	got := g.localizedPose(prior, noseReading(50, 500, 1550))
	assert.Equal(t, geometry.C(0, 5), got.Coord)
}

func TestLocalizedPose_ObstructedCandidateGetsNoVote(t *testing.T) {
	t.Parallel()
	g, prior := wallMap(t, 3, 1)
	got := g.localizedPose(prior, noseReading(50, 500, 1550))
	assert.Equal(t, geometry.C(0, 5), got.Coord, "center is densest")

	// Block the center and west columns between the robot and the wall.
	g, prior = wallMap(t, 3, 1, geometry.C(0, 10), geometry.C(-1, 10))
	got = g.localizedPose(prior, noseReading(50, 500, 1550))
	assert.Equal(t, geometry.C(1, 5), got.Coord)
	assert.InDelta(t, geometry.C(0, 0).AngleTo(geometry.C(1, 5)), got.Theta, 1e-9)
}

func TestLocalizedPose_TieGoesToFirstInScanOrder(t *testing.T) {
	t.Parallel()
	// With the center blocked, the east and west candidates score and vote
	// alike at equal density.
	g, prior := wallMap(t, 3, 1, geometry.C(0, 10))
	dist := g.motionModel(prior, geometry.P(0, 5, 0))
	require.Equal(t, dist.Value(-1, 5), dist.Value(1, 5))

	got := g.localizedPose(prior, noseReading(50, 500, 1550))
	assert.Equal(t, geometry.C(-1, 5), got.Coord)
}

func TestLocalizedPose_NoInRangeSonar(t *testing.T) {
	t.Parallel()
	g, prior := wallMap(t, 3, 9)
	got := g.localizedPose(prior, noseReading(350, 350, 3500))
	assert.Equal(t, geometry.C(3, 3), got.Coord, "projected pose")
	assert.InDelta(t, 45, got.Theta, 1e-9)
}

func TestRegionsGeoJSON(t *testing.T) {
	t.Parallel()
	g := threeMaps(t)
	raw, err := g.RegionsGeoJSON()
	require.NoError(t, err)

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string          `json:"type"`
				Coordinates [][][][]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 5)

	counts := map[float64]int{}
	for _, f := range doc.Features {
		assert.Equal(t, "MultiPolygon", f.Geometry.Type)
		require.NotEmpty(t, f.Geometry.Coordinates)
		counts[f.Properties["map_count"].(float64)]++
	}
	assert.Equal(t, map[float64]int{1: 3, 2: 2}, counts)
}
