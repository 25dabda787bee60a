// Package bayes computes posterior occupancy probabilities for a cell given a
// sonar return.
package bayes

import (
	"errors"
	"fmt"

	"github.com/banshee-data/sonarmap/internal/config"
)

// ErrInvalidParameter is returned for inputs outside the model's domain.
var ErrInvalidParameter = errors.New("bayes: invalid parameter")

// Region classifies a cell by its distance from the sensor relative to the
// range return.
type Region int

const (
	// RegionII lies between the sensor and RegionI.
	RegionII Region = iota
	// RegionI is the band straddling the range return.
	RegionI
	// RegionIII lies beyond RegionI but within sensor range.
	RegionIII
	// OutOfRange lies beyond the sensor's maximum range.
	OutOfRange
)

func (r Region) String() string {
	switch r {
	case RegionI:
		return "RegionI"
	case RegionII:
		return "RegionII"
	case RegionIII:
		return "RegionIII"
	case OutOfRange:
		return "OutOfRange"
	}
	return fmt.Sprintf("Region(%d)", int(r))
}

const (
	// MinProbability is the smallest probability written to a grid; a cell at 0
	// or 1 could never be revised.
	MinProbability = 0.0001
	// MaxProbability is the largest probability written to a grid.
	MaxProbability = 1 - MinProbability

	rangeNudge = 0.0001
)

// Model holds the sensor-model parameters. The zero value is not usable; build
// one with NewModel.
type Model struct {
	maxRange    float64 // sensor range in cells
	beta        float64
	alphaFactor float64
	maxOccupied float64
	maxEmpty    float64
}

// NewModel derives a model from settings and the sensor's range in world
// units. The range is converted to whole cells.
func NewModel(s config.Settings, sonarRange int) Model {
	return Model{
		maxRange:    float64(sonarRange / s.CellSize),
		beta:        float64(s.Beta),
		alphaFactor: s.AlphaFactor,
		maxOccupied: s.MaxOccupied,
		maxEmpty:    s.MaxEmpty,
	}
}

// MaxRange is the sensor range in cells.
func (m Model) MaxRange() float64 { return m.maxRange }

// Beta is the cone half-width in degrees.
func (m Model) Beta() float64 { return m.beta }

// PrOccupiedGivenSn returns the posterior probability that a cell is occupied
// given a prior, the cell's region, its range from the sensor in cells and its
// angle off the acoustic axis in degrees.
func (m Model) PrOccupiedGivenSn(prior float64, region Region, r, alpha float64) (float64, error) {
	if region != RegionI && region != RegionII {
		return 0, fmt.Errorf("region %v: %w", region, ErrInvalidParameter)
	}
	if r < 0 || r > m.maxRange {
		return 0, fmt.Errorf("range %.4f outside [0, %.0f]: %w", r, m.maxRange, ErrInvalidParameter)
	}
	if alpha < 0 || alpha > m.beta {
		return 0, fmt.Errorf("angle %.4f outside [0, %.0f]: %w", alpha, m.beta, ErrInvalidParameter)
	}
	if r == m.maxRange && alpha == m.beta {
		r -= rangeNudge
	}

	closeness := ((m.maxRange-r)/m.maxRange + (m.beta-alpha*m.alphaFactor)/m.beta) / 2
	var pOcc float64
	switch region {
	case RegionI:
		pOcc = closeness * m.maxOccupied
		if pOcc <= 0 {
			pOcc = MinProbability
		}
	case RegionII:
		pEmpty := closeness
		if pEmpty <= 0 {
			pEmpty = MinProbability
		}
		pOcc = (1 - pEmpty) * m.maxEmpty
	}

	posterior := pOcc * prior / (pOcc*prior + (1-pOcc)*(1-prior))
	return Clamp(posterior), nil
}

// Clamp keeps a probability inside [MinProbability, MaxProbability].
func Clamp(p float64) float64 {
	switch {
	case p < MinProbability:
		return MinProbability
	case p > MaxProbability:
		return MaxProbability
	}
	return p
}
