package globalmap

import (
	"slices"

	"github.com/banshee-data/sonarmap/internal/geometry"
)

// RegionID identifies a region; 0 marks cells no region covers.
type RegionID uint16

// Region is an area of the global map covered by exactly the same set of
// local maps. Maps holds their sequence numbers in ascending order.
type Region struct {
	ID       RegionID
	Boundary geometry.Polygon
	Maps     []int
}

func (r *Region) addMap(seq int) {
	i, found := slices.BinarySearch(r.Maps, seq)
	if !found {
		r.Maps = slices.Insert(r.Maps, i, seq)
	}
}

func (r *Region) removeMap(seq int) {
	if i, found := slices.BinarySearch(r.Maps, seq); found {
		r.Maps = slices.Delete(r.Maps, i, i+1)
	}
}

func (r *Region) hasMap(seq int) bool {
	_, found := slices.BinarySearch(r.Maps, seq)
	return found
}

// idPool hands out region ids, reusing released ids oldest first.
type idPool struct {
	max  RegionID
	free []RegionID
}

func (p *idPool) get() RegionID {
	if len(p.free) == 0 {
		p.max++
		return p.max
	}
	id := p.free[0]
	p.free = p.free[1:]
	return id
}

func (p *idPool) put(id RegionID) { p.free = append(p.free, id) }

func (p *idPool) reset() { *p = idPool{} }

// newRegion claims an id for boundary and stamps it into the region grid.
func (m *GlobalMap) newRegion(boundary geometry.Polygon) *Region {
	r := &Region{ID: m.ids.get(), Boundary: boundary}
	m.regions[r.ID] = r
	m.fillRegionMap(r, r.ID)
	return r
}

func (m *GlobalMap) deleteRegion(r *Region) {
	m.fillRegionMap(r, 0)
	m.ids.put(r.ID)
	delete(m.regions, r.ID)
}

func (m *GlobalMap) fillRegionMap(r *Region, id RegionID) {
	for _, c := range r.Boundary.Cells() {
		if p, err := m.regionIDs.Ref(c.X, c.Y); err == nil {
			*p = id
		}
	}
}

// addToRegionMap partitions the extent of local map seq against the regions
// of every earlier sealed map, newest first. Each region overlapped is split
// so that the overlap becomes a region of its own also listing seq; what no
// earlier map covers becomes a region holding seq alone.
func (m *GlobalMap) addToRegionMap(seq int) {
	mt := m.maps[seq]
	rt := geometry.CellPolygon(mt.Bound())

	processed := map[RegionID]bool{0: true}
	for _, prior := range m.index.search(mt.Bound()) {
		if prior == seq {
			continue
		}
		bx := geometry.CellPolygon(m.maps[prior].Bound()).Intersect(rt)
		if bx.IsEmpty() {
			continue
		}
		for _, cell := range bx.Cells() {
			id := m.regionIDs.Value(cell.X, cell.Y)
			if processed[id] {
				continue
			}
			processed[id] = true
			rc, ok := m.regions[id]
			if !ok {
				continue
			}

			rx := rc.Boundary.Intersect(bx)
			if rx.IsEmpty() {
				continue
			}
			rt = rt.Difference(rx)

			contributors := slices.Clone(rc.Maps)
			if rest := rc.Boundary.Difference(rx); rest.IsEmpty() {
				m.deleteRegion(rc)
			} else {
				rc.Boundary = rest
			}

			rnew := m.newRegion(rx)
			rnew.addMap(prior)
			rnew.addMap(seq)
			for _, other := range contributors {
				if other == prior || other == seq {
					continue
				}
				if !rx.Intersect(geometry.CellPolygon(m.maps[other].Bound())).IsEmpty() {
					rnew.addMap(other)
				}
			}
			processed[rnew.ID] = true
		}
	}

	if !rt.IsEmpty() {
		m.newRegion(rt).addMap(seq)
	}
	m.index.insert(seq, mt.Bound())
}

// removeFromRegionMap drops local map seq from every region under its
// extent, deleting regions left without maps.
func (m *GlobalMap) removeFromRegionMap(seq int) {
	processed := map[RegionID]bool{0: true}
	for _, cell := range geometry.CellPolygon(m.maps[seq].Bound()).Cells() {
		id := m.regionIDs.Value(cell.X, cell.Y)
		if processed[id] {
			continue
		}
		processed[id] = true
		r, ok := m.regions[id]
		if !ok {
			continue
		}
		r.removeMap(seq)
		if len(r.Maps) == 0 {
			m.deleteRegion(r)
		}
	}
	m.index.remove(seq)
}

// Regions returns a copy of the current partition ordered by id.
func (m *GlobalMap) Regions() []Region {
	out := make([]Region, 0, len(m.regions))
	for _, r := range m.regions {
		out = append(out, Region{ID: r.ID, Boundary: r.Boundary, Maps: slices.Clone(r.Maps)})
	}
	slices.SortFunc(out, func(a, b Region) int { return int(a.ID) - int(b.ID) })
	return out
}

// RegionAt is the id of the region covering cell (x, y), or 0.
func (m *GlobalMap) RegionAt(x, y int) RegionID { return m.regionIDs.Value(x, y) }
