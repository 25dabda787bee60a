package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestEmptyMappingConfig_Defaults(t *testing.T) {
	s := EmptyMappingConfig().Settings()

	assert.Equal(t, 100, s.RegionIHalfwidth)
	assert.Equal(t, SingleCell, s.SonarModel)
	assert.Equal(t, 5000, s.LocalMapDistance)
	assert.Equal(t, 100, s.CellSize)
	assert.False(t, s.PreRotate)
	assert.Equal(t, 100, s.MaxCollectionDistance)
	assert.Equal(t, 5, s.MaxCollectionDegrees)
	assert.Equal(t, 15, s.Beta)
	assert.Equal(t, 1.0, s.AlphaFactor)
	assert.Equal(t, 0.98, s.MaxOccupied)
	assert.Equal(t, 1.0, s.MaxEmpty)
	assert.Equal(t, 1500, s.OutOfRangeConversion)
	assert.True(t, s.IgnoreOutOfRange)
	assert.True(t, s.IgnoreObstructed)
	assert.False(t, s.Localize)
	assert.Equal(t, 0.7, s.ObstructedCertainty)
	assert.Equal(t, "sonarmap", s.GridName)
	assert.Len(t, s.EnabledSonars, NumSonars)
	for i := 0; i < NumSonars; i++ {
		assert.True(t, s.SonarEnabled(i))
	}
	assert.Equal(t, MotionModel{
		MinHeight: 0, MinWidth: 15, UnitDistance: 500, UnitTurn: 10,
		GaussianSigma: 5, BendFactor: 1,
	}, s.MotionModel)
}

func TestMustLoadDefaultConfig_MatchesBuiltins(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	assert.Equal(t, DefaultSettings(), cfg.Settings())
}

func TestLoadMappingConfig_Partial(t *testing.T) {
	path := writeConfig(t, "partial.json", `{
		"sonar_model": "cone",
		"cell_size": 50,
		"localize": true,
		"motion_model": {"gaussian_sigma": 2.5}
	}`)

	cfg, err := LoadMappingConfig(path)
	require.NoError(t, err)
	s := cfg.Settings()
	assert.Equal(t, Cone, s.SonarModel)
	assert.Equal(t, 50, s.CellSize)
	assert.True(t, s.Localize)
	assert.Equal(t, 2.5, s.MotionModel.GaussianSigma)
	assert.Equal(t, 15, s.MotionModel.MinWidth)
	assert.Equal(t, 15, s.Beta)
}

func TestLoadMappingConfig_Errors(t *testing.T) {
	t.Run("extension", func(t *testing.T) {
		_, err := LoadMappingConfig(writeConfig(t, "cfg.yaml", "{}"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), ".json")
	})
	t.Run("missing", func(t *testing.T) {
		_, err := LoadMappingConfig(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
	t.Run("malformed", func(t *testing.T) {
		_, err := LoadMappingConfig(writeConfig(t, "bad.json", "{"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse")
	})
	t.Run("invalid", func(t *testing.T) {
		_, err := LoadMappingConfig(writeConfig(t, "beta.json", `{"beta": 5}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "beta")
	})
}

func TestValidate(t *testing.T) {
	intp := func(v int) *int { return &v }
	floatp := func(v float64) *float64 { return &v }
	strp := func(v string) *string { return &v }

	cases := []struct {
		name string
		cfg  MappingConfig
		want string
	}{
		{"halfwidth", MappingConfig{RegionIHalfwidth: intp(9)}, "region_i_halfwidth"},
		{"model", MappingConfig{SonarModel: strp("laser")}, "sonar_model"},
		{"sonars", MappingConfig{EnabledSonars: []bool{true}}, "enabled_sonars"},
		{"local distance", MappingConfig{LocalMapDistance: intp(99)}, "local_map_distance"},
		{"cell size", MappingConfig{CellSize: intp(0)}, "cell_size"},
		{"collection distance", MappingConfig{MaxCollectionDistance: intp(0)}, "max_collection_distance"},
		{"collection degrees", MappingConfig{MaxCollectionDegrees: intp(0)}, "max_collection_degrees"},
		{"beta high", MappingConfig{Beta: intp(91)}, "beta"},
		{"alpha", MappingConfig{AlphaFactor: floatp(0)}, "alpha_factor"},
		{"max occupied", MappingConfig{MaxOccupied: floatp(1)}, "max_occupied"},
		{"max empty", MappingConfig{MaxEmpty: floatp(0)}, "max_empty"},
		{"out of range", MappingConfig{OutOfRangeConversion: intp(0)}, "out_of_range_conversion"},
		{"obstructed", MappingConfig{ObstructedCertainty: floatp(1.5)}, "obstructed_certainty"},
		{"grid name", MappingConfig{GridName: strp("")}, "grid_name"},
		{"sigma", MappingConfig{MotionModel: &MotionModelConfig{GaussianSigma: floatp(0)}}, "gaussian_sigma"},
		{"bend", MappingConfig{MotionModel: &MotionModelConfig{BendFactor: floatp(21)}}, "bend_factor"},
		{"unit turn", MappingConfig{MotionModel: &MotionModelConfig{UnitTurn: intp(0)}}, "unit_turn"},
		{"min width", MappingConfig{MotionModel: &MotionModelConfig{MinWidth: intp(-1)}}, "min_width"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	assert.NoError(t, EmptyMappingConfig().Validate())
}

func TestParseSonarModel(t *testing.T) {
	for _, m := range []SonarModel{SingleCell, AcousticAxis, Cone} {
		got, err := ParseSonarModel(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseSonarModel("radar")
	assert.Error(t, err)
	assert.Equal(t, "SonarModel(7)", SonarModel(7).String())
}

func TestSettings_SonarEnabled(t *testing.T) {
	s := DefaultSettings()
	s.EnabledSonars[3] = false
	assert.False(t, s.SonarEnabled(3))
	assert.True(t, s.SonarEnabled(4))
	assert.False(t, s.SonarEnabled(16))

	s.EnabledSonars = nil
	assert.True(t, s.SonarEnabled(3))
}

func TestSettings_Put(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DefaultSettings().Put(&buf, "% "))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "% "), l)
	}
	assert.Contains(t, lines, "% CellSize 100")
	assert.Contains(t, lines, "% SonarModel single_cell")
	assert.Contains(t, lines, "% MaxOccupied 0.98")
	assert.Contains(t, lines, "% EnabledSonars 1111111111111111")
	assert.Contains(t, lines, "% GridName sonarmap")
}
