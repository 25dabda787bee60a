package globalmap

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/banshee-data/sonarmap/internal/geometry"
)

// RegionsGeoJSON renders the region partition as a GeoJSON feature
// collection in grid units, one MultiPolygon feature per region carrying its
// id and contributing map sequence numbers.
func (m *GlobalMap) RegionsGeoJSON() ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, r := range m.Regions() {
		f := geojson.NewFeature(regionGeometry(r.Boundary))
		f.ID = int(r.ID)
		f.Properties["id"] = int(r.ID)
		f.Properties["maps"] = r.Maps
		f.Properties["map_count"] = len(r.Maps)
		f.Properties["cells"] = len(r.Boundary.Cells())
		fc.Append(f)
	}
	out, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal regions: %w", err)
	}
	return out, nil
}

// regionGeometry splits a boundary's rings into outer rings and holes. Rings
// wound like the largest ring are outers; the rest are holes attached to the
// first outer whose bound contains them.
func regionGeometry(p geometry.Polygon) orb.MultiPolygon {
	var rings []orb.Ring
	for _, coords := range p.Rings() {
		if len(coords) < 3 {
			continue
		}
		ring := make(orb.Ring, 0, len(coords)+1)
		for _, c := range coords {
			ring = append(ring, orb.Point{float64(c.X), float64(c.Y)})
		}
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		rings = append(rings, ring)
	}
	if len(rings) == 0 {
		return nil
	}

	largest := 0
	for i, ring := range rings {
		if planar.Area(ring) > planar.Area(rings[largest]) {
			largest = i
		}
	}
	outer := rings[largest].Orientation()

	var mp orb.MultiPolygon
	var holes []orb.Ring
	for _, ring := range rings {
		if ring.Orientation() != outer {
			holes = append(holes, ring)
			continue
		}
		if ring.Orientation() != orb.CCW {
			ring.Reverse()
		}
		mp = append(mp, orb.Polygon{ring})
	}
	for _, hole := range holes {
		if hole.Orientation() != orb.CW {
			hole.Reverse()
		}
		for i := range mp {
			if mp[i][0].Bound().Contains(hole[0]) {
				mp[i] = append(mp[i], hole)
				break
			}
		}
	}
	return mp
}
