package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical mapping defaults file.
const DefaultConfigPath = "config/mapping.defaults.json"

// NumSonars is the number of range sensors on the supported robot.
const NumSonars = 16

// MappingConfig is the JSON document describing how sonar readings are turned
// into an occupancy map. Every field is optional; omitted fields fall back to the
// defaults returned by the Get* accessors, so partial configs are safe.
type MappingConfig struct {
	// Sonar model
	RegionIHalfwidth *int    `json:"region_i_halfwidth,omitempty"` // millimeters
	SonarModel       *string `json:"sonar_model,omitempty"`        // single_cell, acoustic_axis, cone
	EnabledSonars    []bool  `json:"enabled_sonars,omitempty"`

	// Probability model
	Beta                 *int     `json:"beta,omitempty"` // cone half-width, degrees
	AlphaFactor          *float64 `json:"alpha_factor,omitempty"`
	MaxOccupied          *float64 `json:"max_occupied,omitempty"`
	MaxEmpty             *float64 `json:"max_empty,omitempty"`
	OutOfRangeConversion *int     `json:"out_of_range_conversion,omitempty"`
	IgnoreOutOfRange     *bool    `json:"ignore_out_of_range,omitempty"`
	IgnoreObstructed     *bool    `json:"ignore_obstructed,omitempty"`

	// Map size and scaling
	LocalMapDistance      *int  `json:"local_map_distance,omitempty"`
	CellSize              *int  `json:"cell_size,omitempty"`
	MaxCollectionDistance *int  `json:"max_collection_distance,omitempty"`
	MaxCollectionDegrees  *int  `json:"max_collection_degrees,omitempty"`
	PreRotate             *bool `json:"pre_rotate,omitempty"`

	// Localization
	Localize            *bool              `json:"localize,omitempty"`
	MotionModel         *MotionModelConfig `json:"motion_model,omitempty"`
	ObstructedCertainty *float64           `json:"obstructed_certainty,omitempty"`

	// Output names
	GridName  *string `json:"grid_name,omitempty"`
	SonarName *string `json:"sonar_name,omitempty"`
}

// MotionModelConfig shapes the pose search window used during localization.
type MotionModelConfig struct {
	MinHeight     *int     `json:"min_height,omitempty"`
	MinWidth      *int     `json:"min_width,omitempty"`
	UnitDistance  *int     `json:"unit_distance,omitempty"`
	UnitTurn      *int     `json:"unit_turn,omitempty"`
	GaussianSigma *float64 `json:"gaussian_sigma,omitempty"`
	BendFactor    *float64 `json:"bend_factor,omitempty"`
}

// EmptyMappingConfig returns a MappingConfig with all fields unset.
func EmptyMappingConfig() *MappingConfig {
	return &MappingConfig{}
}

// LoadMappingConfig loads a MappingConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadMappingConfig(path string) (*MappingConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyMappingConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics on failure; intended
// for test setup.
func MustLoadDefaultConfig() *MappingConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadMappingConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the configured values against the ranges the mapping engine
// can work with. Unset fields are not checked; their defaults are always valid.
func (c *MappingConfig) Validate() error {
	if c.RegionIHalfwidth != nil && *c.RegionIHalfwidth < 10 {
		return fmt.Errorf("region_i_halfwidth must be at least 10, got %d", *c.RegionIHalfwidth)
	}
	if c.SonarModel != nil {
		if _, err := ParseSonarModel(*c.SonarModel); err != nil {
			return err
		}
	}
	if c.EnabledSonars != nil && len(c.EnabledSonars) != NumSonars {
		return fmt.Errorf("enabled_sonars must list %d sensors, got %d", NumSonars, len(c.EnabledSonars))
	}
	if c.LocalMapDistance != nil && *c.LocalMapDistance < 100 {
		return fmt.Errorf("local_map_distance must be at least 100, got %d", *c.LocalMapDistance)
	}
	if c.CellSize != nil && *c.CellSize < 1 {
		return fmt.Errorf("cell_size must be positive, got %d", *c.CellSize)
	}
	if c.MaxCollectionDistance != nil && *c.MaxCollectionDistance < 1 {
		return fmt.Errorf("max_collection_distance must be positive, got %d", *c.MaxCollectionDistance)
	}
	if c.MaxCollectionDegrees != nil && *c.MaxCollectionDegrees < 1 {
		return fmt.Errorf("max_collection_degrees must be positive, got %d", *c.MaxCollectionDegrees)
	}
	if c.Beta != nil && (*c.Beta < 7 || *c.Beta > 90) {
		return fmt.Errorf("beta must be between 7 and 90, got %d", *c.Beta)
	}
	if c.AlphaFactor != nil && *c.AlphaFactor <= 0 {
		return fmt.Errorf("alpha_factor must be positive, got %f", *c.AlphaFactor)
	}
	if c.MaxOccupied != nil && (*c.MaxOccupied <= 0 || *c.MaxOccupied >= 1) {
		return fmt.Errorf("max_occupied must be within (0, 1), got %f", *c.MaxOccupied)
	}
	if c.MaxEmpty != nil && (*c.MaxEmpty <= 0 || *c.MaxEmpty > 1) {
		return fmt.Errorf("max_empty must be within (0, 1], got %f", *c.MaxEmpty)
	}
	if c.OutOfRangeConversion != nil && *c.OutOfRangeConversion < 1 {
		return fmt.Errorf("out_of_range_conversion must be positive, got %d", *c.OutOfRangeConversion)
	}
	if c.ObstructedCertainty != nil && (*c.ObstructedCertainty < 0 || *c.ObstructedCertainty > 1) {
		return fmt.Errorf("obstructed_certainty must be between 0 and 1, got %f", *c.ObstructedCertainty)
	}
	if c.GridName != nil && *c.GridName == "" {
		return fmt.Errorf("grid_name must not be empty")
	}
	if m := c.MotionModel; m != nil {
		if m.MinHeight != nil && *m.MinHeight < 0 {
			return fmt.Errorf("motion_model.min_height must be non-negative, got %d", *m.MinHeight)
		}
		if m.MinWidth != nil && *m.MinWidth < 0 {
			return fmt.Errorf("motion_model.min_width must be non-negative, got %d", *m.MinWidth)
		}
		if m.UnitDistance != nil && *m.UnitDistance < 1 {
			return fmt.Errorf("motion_model.unit_distance must be positive, got %d", *m.UnitDistance)
		}
		if m.UnitTurn != nil && *m.UnitTurn < 1 {
			return fmt.Errorf("motion_model.unit_turn must be positive, got %d", *m.UnitTurn)
		}
		if m.GaussianSigma != nil && *m.GaussianSigma <= 0 {
			return fmt.Errorf("motion_model.gaussian_sigma must be positive, got %f", *m.GaussianSigma)
		}
		if m.BendFactor != nil && (*m.BendFactor > 20 || *m.BendFactor < -20) {
			return fmt.Errorf("motion_model.bend_factor must be within [-20, 20], got %f", *m.BendFactor)
		}
	}
	return nil
}

// GetRegionIHalfwidth returns the region_i_halfwidth value or the default.
func (c *MappingConfig) GetRegionIHalfwidth() int {
	if c.RegionIHalfwidth == nil {
		return 100
	}
	return *c.RegionIHalfwidth
}

// GetSonarModel returns the parsed sonar_model value or SingleCell.
func (c *MappingConfig) GetSonarModel() SonarModel {
	if c.SonarModel == nil {
		return SingleCell
	}
	m, err := ParseSonarModel(*c.SonarModel)
	if err != nil {
		return SingleCell // default on parse error
	}
	return m
}

// GetEnabledSonars returns a copy of the per-sensor enable flags; all sensors
// are enabled by default.
func (c *MappingConfig) GetEnabledSonars() []bool {
	enabled := make([]bool, NumSonars)
	if len(c.EnabledSonars) != NumSonars {
		for i := range enabled {
			enabled[i] = true
		}
		return enabled
	}
	copy(enabled, c.EnabledSonars)
	return enabled
}

// GetBeta returns the beta value or the default.
func (c *MappingConfig) GetBeta() int {
	if c.Beta == nil {
		return 15
	}
	return *c.Beta
}

// GetAlphaFactor returns the alpha_factor value or the default.
func (c *MappingConfig) GetAlphaFactor() float64 {
	if c.AlphaFactor == nil {
		return 1.0
	}
	return *c.AlphaFactor
}

// GetMaxOccupied returns the max_occupied value or the default.
func (c *MappingConfig) GetMaxOccupied() float64 {
	if c.MaxOccupied == nil {
		return 0.98
	}
	return *c.MaxOccupied
}

// GetMaxEmpty returns the max_empty value or the default.
func (c *MappingConfig) GetMaxEmpty() float64 {
	if c.MaxEmpty == nil {
		return 1.0
	}
	return *c.MaxEmpty
}

// GetOutOfRangeConversion returns the out_of_range_conversion value or the default.
func (c *MappingConfig) GetOutOfRangeConversion() int {
	if c.OutOfRangeConversion == nil {
		return 1500
	}
	return *c.OutOfRangeConversion
}

// GetIgnoreOutOfRange returns the ignore_out_of_range value or the default.
func (c *MappingConfig) GetIgnoreOutOfRange() bool {
	if c.IgnoreOutOfRange == nil {
		return true
	}
	return *c.IgnoreOutOfRange
}

// GetIgnoreObstructed returns the ignore_obstructed value or the default.
func (c *MappingConfig) GetIgnoreObstructed() bool {
	if c.IgnoreObstructed == nil {
		return true
	}
	return *c.IgnoreObstructed
}

// GetLocalMapDistance returns the local_map_distance value or the default.
func (c *MappingConfig) GetLocalMapDistance() int {
	if c.LocalMapDistance == nil {
		return 5000
	}
	return *c.LocalMapDistance
}

// GetCellSize returns the cell_size value or the default.
func (c *MappingConfig) GetCellSize() int {
	if c.CellSize == nil {
		return 100
	}
	return *c.CellSize
}

// GetMaxCollectionDistance returns the max_collection_distance value or the default.
func (c *MappingConfig) GetMaxCollectionDistance() int {
	if c.MaxCollectionDistance == nil {
		return 100
	}
	return *c.MaxCollectionDistance
}

// GetMaxCollectionDegrees returns the max_collection_degrees value or the default.
func (c *MappingConfig) GetMaxCollectionDegrees() int {
	if c.MaxCollectionDegrees == nil {
		return 5
	}
	return *c.MaxCollectionDegrees
}

// GetPreRotate returns the pre_rotate value or the default.
func (c *MappingConfig) GetPreRotate() bool {
	if c.PreRotate == nil {
		return false
	}
	return *c.PreRotate
}

// GetLocalize returns the localize value or the default.
func (c *MappingConfig) GetLocalize() bool {
	if c.Localize == nil {
		return false
	}
	return *c.Localize
}

// GetObstructedCertainty returns the obstructed_certainty value or the default.
func (c *MappingConfig) GetObstructedCertainty() float64 {
	if c.ObstructedCertainty == nil {
		return 0.7
	}
	return *c.ObstructedCertainty
}

// GetGridName returns the grid_name value or the default.
func (c *MappingConfig) GetGridName() string {
	if c.GridName == nil {
		return "sonarmap"
	}
	return *c.GridName
}

// GetSonarName returns the sonar_name value or the default.
func (c *MappingConfig) GetSonarName() string {
	if c.SonarName == nil {
		return ""
	}
	return *c.SonarName
}

// GetMotionModel resolves the motion model section, filling defaults.
func (c *MappingConfig) GetMotionModel() MotionModel {
	m := MotionModel{
		MinHeight:     0,
		MinWidth:      15,
		UnitDistance:  500,
		UnitTurn:      10,
		GaussianSigma: 5.0,
		BendFactor:    1.0,
	}
	mc := c.MotionModel
	if mc == nil {
		return m
	}
	if mc.MinHeight != nil {
		m.MinHeight = *mc.MinHeight
	}
	if mc.MinWidth != nil {
		m.MinWidth = *mc.MinWidth
	}
	if mc.UnitDistance != nil {
		m.UnitDistance = *mc.UnitDistance
	}
	if mc.UnitTurn != nil {
		m.UnitTurn = *mc.UnitTurn
	}
	if mc.GaussianSigma != nil {
		m.GaussianSigma = *mc.GaussianSigma
	}
	if mc.BendFactor != nil {
		m.BendFactor = *mc.BendFactor
	}
	return m
}

// Settings resolves the document into the value passed to the mapping engine.
func (c *MappingConfig) Settings() Settings {
	return Settings{
		RegionIHalfwidth:      c.GetRegionIHalfwidth(),
		SonarModel:            c.GetSonarModel(),
		EnabledSonars:         c.GetEnabledSonars(),
		Beta:                  c.GetBeta(),
		AlphaFactor:           c.GetAlphaFactor(),
		MaxOccupied:           c.GetMaxOccupied(),
		MaxEmpty:              c.GetMaxEmpty(),
		OutOfRangeConversion:  c.GetOutOfRangeConversion(),
		IgnoreOutOfRange:      c.GetIgnoreOutOfRange(),
		IgnoreObstructed:      c.GetIgnoreObstructed(),
		LocalMapDistance:      c.GetLocalMapDistance(),
		CellSize:              c.GetCellSize(),
		MaxCollectionDistance: c.GetMaxCollectionDistance(),
		MaxCollectionDegrees:  c.GetMaxCollectionDegrees(),
		PreRotate:             c.GetPreRotate(),
		Localize:              c.GetLocalize(),
		MotionModel:           c.GetMotionModel(),
		ObstructedCertainty:   c.GetObstructedCertainty(),
		GridName:              c.GetGridName(),
		SonarName:             c.GetSonarName(),
	}
}
