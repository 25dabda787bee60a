package globalmap

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/sonarmap/internal/bayes"
	"github.com/banshee-data/sonarmap/internal/geometry"
	"github.com/banshee-data/sonarmap/internal/grid"
	"github.com/banshee-data/sonarmap/internal/localmap"
	"github.com/banshee-data/sonarmap/internal/monitoring"
	"github.com/banshee-data/sonarmap/internal/sonar"
)

var localizeLogf = monitoring.Tagged("localize")

// kernelFit spreads a kernel over about ten sigma so it tapers off before
// the ends.
const kernelFit = 10.0

// gaussKernel samples a zero-mean normal density at length points centered
// on the middle index.
func gaussKernel(length int, sigma float64) []float64 {
	n := distuv.Normal{Mu: 0, Sigma: sigma}
	k := make([]float64, length)
	for i := range k {
		x := -float64(length/2-i) / (float64(length) / kernelFit)
		k[i] = n.Prob(x)
	}
	return k
}

// gaussGrid is a w x h elliptical density centered on origin, peaking at 0.9,
// rotated to theta and trimmed to its non-zero cells. A non-zero bend bows
// the ellipse's lower (positive) or upper (negative) side outward.
func gaussGrid(w, h int, origin geometry.Coord, theta, sigma, bend float64) *grid.Cartesian[float64] {
	g := grid.MustCartesian(w, h, origin, 0.0)
	kw := gaussKernel(w, sigma)
	kh := gaussKernel(h, sigma)

	wMid, hMid := w/2, h/2
	norm := 0.9 / (kw[wMid] * kh[hMid])
	bendFactor := bend * float64(h)

	b := g.Bound()
	for y := b.UL.Y; y >= b.LR.Y; y-- {
		hIdx := hMid - absInt(y-origin.Y)
		for x := b.UL.X; x <= b.LR.X; x++ {
			wIdx := wMid - absInt(x-origin.X)
			yDelta := (kw[wMid] - kw[wIdx]) * bendFactor
			if err := g.Set(x, int(float64(y)-yDelta), kh[hIdx]*kw[wIdx]*norm); err != nil {
				localizeLogf("motion model cell (%d, %d): %v", x, y, err)
			}
		}
	}

	g.RotateBy(theta)
	g.Trim()
	return g
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// motionModel is the density over corrected positions, in grid units, for a
// robot reporting pose after the travel recorded in prior: taller the
// further it went, wider the more it turned.
func (m *GlobalMap) motionModel(prior *localmap.LocalMap, pose geometry.Pose) *grid.Cartesian[float64] {
	mm := m.settings.MotionModel
	h := int(float64(mm.MinHeight) + prior.CumDistance()/float64(mm.UnitDistance))
	w := int(float64(mm.MinWidth) + prior.CumTurn()/float64(mm.UnitTurn))
	return gaussGrid(max(1, w), max(1, h), pose.Coord, pose.Theta, mm.GaussianSigma, mm.BendFactor)
}

// localizedPose returns the grid pose, within the motion model around r's
// pose, whose projected sonar returns best agree with the fused map. Each
// in-range sonar votes for the candidates scoring the highest product of
// motion-model density and posterior occupancy at the implied object cell.
// The most voted candidates are narrowed to those of highest density; any
// remaining tie goes to the first in scan order. The heading is the angle
// from prior's position to the chosen cell.
func (m *GlobalMap) localizedPose(prior *localmap.LocalMap, r sonar.Reading) geometry.Pose {
	cell := float64(m.settings.CellSize)
	pose := r.Pose.Scaled(cell)
	priorAt := m.gridCoord(prior.Pose().Coord)

	dist := m.motionModel(prior, pose)
	hist := dist.Clone()
	hist.Clear()
	sel := dist.Clone()
	maxHist := 0.0
	b := dist.Bound()
	model := m.fused.Model()

	for i := 0; i < m.robot.NumSonars(); i++ {
		ri := r.WithSonar(i)
		if ri.Distance > m.robot.SonarRange() {
			continue
		}
		mr := m.robot.RangeReading(ri).Scaled(cell)
		sonarShift := mr.SonarPose.Coord.Sub(pose.Coord)
		objectShift := mr.Object.Sub(mr.SonarPose.Coord)

		sel.Clear()
		maxSel := 0.0
		for y := b.UL.Y; y >= b.LR.Y; y-- {
			for x := b.UL.X; x <= b.LR.X; x++ {
				d := dist.Value(x, y)
				if d == 0 {
					continue
				}
				start := geometry.C(x, y).Add(sonarShift)
				end := start.Add(objectShift)
				if m.ObstructionBetween(start, end) {
					continue
				}
				pr, err := model.PrOccupiedGivenSn(m.ConvolvedValueAt(end.X, end.Y), bayes.RegionI, float64(mr.Distance), 0)
				if err != nil {
					localizeLogf("sonar %d candidate (%d, %d): %v", i, x, y, err)
					continue
				}
				s := pr * d
				_ = sel.Set(x, y, s)
				maxSel = max(maxSel, s)
			}
		}

		if maxSel == 0 {
			continue
		}
		for y := b.UL.Y; y >= b.LR.Y; y-- {
			for x := b.UL.X; x <= b.LR.X; x++ {
				if sel.Value(x, y) != maxSel {
					continue
				}
				if p, err := hist.Ref(x, y); err == nil {
					*p++
					maxHist = max(maxHist, *p)
				}
			}
		}
	}

	if maxHist == 0 {
		pose.Theta = priorAt.AngleTo(pose.Coord)
		return pose
	}

	var candidates []geometry.Coord
	var density []float64
	for y := b.UL.Y; y >= b.LR.Y; y-- {
		for x := b.UL.X; x <= b.LR.X; x++ {
			if hist.Value(x, y) == maxHist {
				candidates = append(candidates, geometry.C(x, y))
				density = append(density, dist.Value(x, y))
			}
		}
	}
	top := floats.Max(density)
	var chosen []geometry.Coord
	for i, c := range candidates {
		if density[i] == top {
			chosen = append(chosen, c)
		}
	}
	if len(chosen) > 1 {
		localizeLogf("%d poses remain after filtering, taking %v", len(chosen), chosen[0])
	}
	return geometry.Pose{Coord: chosen[0], Theta: priorAt.AngleTo(chosen[0])}
}
