package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sonarmap/internal/config"
	"github.com/banshee-data/sonarmap/internal/geometry"
	"github.com/banshee-data/sonarmap/internal/globalmap"
	"github.com/banshee-data/sonarmap/internal/monitoring"
	"github.com/banshee-data/sonarmap/internal/sonar"
)

func mappedCorridor(t *testing.T) *globalmap.GlobalMap {
	t.Helper()
	monitoring.SetLogger(nil)
	s := config.DefaultSettings()
	s.LocalMapDistance = 1000
	g := globalmap.New(s, sonar.Pioneer{})
	var ranges [sonar.NumSonars]int
	for i := range ranges {
		ranges[i] = 1000
	}
	for y := 0; y <= 2500; y += 100 {
		r := sonar.NewReading(geometry.P(0, y, 0), ranges)
		for i := 0; i < sonar.NumSonars; i++ {
			g.UpdateReading(r.WithSonar(i))
		}
	}
	g.Finalize()
	return g
}

func TestWriteGrid(t *testing.T) {
	g := mappedCorridor(t)
	path := filepath.Join(t.TempDir(), "grid.txt")
	require.NoError(t, writeGrid(g, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "% RegionIHalfwidth "), text[:40])
	assert.Contains(t, text, g.Bound().String())

	assert.Error(t, writeGrid(g, filepath.Join(t.TempDir(), "missing", "grid.txt")))
}

func TestWriteGeoJSON(t *testing.T) {
	g := mappedCorridor(t)
	path := filepath.Join(t.TempDir(), "regions.geojson")
	require.NoError(t, writeGeoJSON(g, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	assert.Len(t, doc.Features, len(g.Regions()))
}
