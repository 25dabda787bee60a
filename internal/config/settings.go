package config

import (
	"fmt"
	"io"
	"strings"
)

// SonarModel selects how a single range reading is spread across grid cells.
type SonarModel int

const (
	// SingleCell updates only the cell containing the detected object.
	SingleCell SonarModel = iota
	// AcousticAxis updates the cells along the center line of the beam.
	AcousticAxis
	// Cone updates every cell inside the beam's cone.
	Cone
)

func (m SonarModel) String() string {
	switch m {
	case SingleCell:
		return "single_cell"
	case AcousticAxis:
		return "acoustic_axis"
	case Cone:
		return "cone"
	default:
		return fmt.Sprintf("SonarModel(%d)", int(m))
	}
}

// ParseSonarModel accepts the snake_case names used in config files.
func ParseSonarModel(s string) (SonarModel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single_cell", "singlecell":
		return SingleCell, nil
	case "acoustic_axis", "acousticaxis":
		return AcousticAxis, nil
	case "cone":
		return Cone, nil
	}
	return SingleCell, fmt.Errorf("unknown sonar_model %q", s)
}

// MotionModel shapes the pose-search window used when localizing a new map.
type MotionModel struct {
	MinHeight     int
	MinWidth      int
	UnitDistance  int
	UnitTurn      int
	GaussianSigma float64
	BendFactor    float64
}

// Settings is the resolved, read-only configuration shared by every mapping
// component. Distances are millimeters unless noted.
type Settings struct {
	RegionIHalfwidth int
	SonarModel       SonarModel
	EnabledSonars    []bool

	Beta                 int
	AlphaFactor          float64
	MaxOccupied          float64
	MaxEmpty             float64
	OutOfRangeConversion int
	IgnoreOutOfRange     bool
	IgnoreObstructed     bool

	LocalMapDistance      int
	CellSize              int
	MaxCollectionDistance int
	MaxCollectionDegrees  int
	PreRotate             bool

	Localize            bool
	MotionModel         MotionModel
	ObstructedCertainty float64

	GridName  string
	SonarName string
}

// DefaultSettings returns the settings an empty config document resolves to.
func DefaultSettings() Settings {
	return EmptyMappingConfig().Settings()
}

// SonarEnabled reports whether sensor i contributes to the map. An empty
// enable list means every sensor is on.
func (s Settings) SonarEnabled(i int) bool {
	if len(s.EnabledSonars) == 0 {
		return true
	}
	if i < 0 || i >= len(s.EnabledSonars) {
		return false
	}
	return s.EnabledSonars[i]
}

// Put writes one "<prefix>Name value" line per setting.
func (s Settings) Put(w io.Writer, prefix string) error {
	enabled := make([]string, 0, len(s.EnabledSonars))
	for _, e := range s.EnabledSonars {
		if e {
			enabled = append(enabled, "1")
		} else {
			enabled = append(enabled, "0")
		}
	}
	lines := []struct {
		name  string
		value interface{}
	}{
		{"RegionIHalfwidth", s.RegionIHalfwidth},
		{"SonarModel", s.SonarModel},
		{"EnabledSonars", strings.Join(enabled, "")},
		{"Beta", s.Beta},
		{"AlphaFactor", s.AlphaFactor},
		{"MaxOccupied", s.MaxOccupied},
		{"MaxEmpty", s.MaxEmpty},
		{"OutOfRangeConversion", s.OutOfRangeConversion},
		{"IgnoreOutOfRange", s.IgnoreOutOfRange},
		{"IgnoreObstructed", s.IgnoreObstructed},
		{"LocalMapDistance", s.LocalMapDistance},
		{"CellSize", s.CellSize},
		{"MaxCollectionDistance", s.MaxCollectionDistance},
		{"MaxCollectionDegrees", s.MaxCollectionDegrees},
		{"PreRotate", s.PreRotate},
		{"Localize", s.Localize},
		{"MotionModelMinHeight", s.MotionModel.MinHeight},
		{"MotionModelMinWidth", s.MotionModel.MinWidth},
		{"MotionModelUnitDistance", s.MotionModel.UnitDistance},
		{"MotionModelUnitTurn", s.MotionModel.UnitTurn},
		{"MotionModelGaussianSigma", s.MotionModel.GaussianSigma},
		{"MotionModelBendFactor", s.MotionModel.BendFactor},
		{"ObstructedCertainty", s.ObstructedCertainty},
		{"GridName", s.GridName},
		{"SonarName", s.SonarName},
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%s%s %v\n", prefix, l.name, l.value); err != nil {
			return fmt.Errorf("write setting %s: %w", l.name, err)
		}
	}
	return nil
}
