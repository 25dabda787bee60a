package globalmap

import (
	"slices"

	"github.com/dhconnelly/rtreego"

	"github.com/banshee-data/sonarmap/internal/geometry"
)

// extentEntry is a sealed local map's cell extent in the R-tree.
type extentEntry struct {
	seq  int
	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (e *extentEntry) Bounds() rtreego.Rect { return e.rect }

// extentIndex finds the sealed local maps whose extents overlap a box.
type extentIndex struct {
	tree    *rtreego.Rtree
	entries map[int]*extentEntry
}

func newExtentIndex() *extentIndex {
	return &extentIndex{
		tree:    rtreego.NewTree(2, 25, 50),
		entries: map[int]*extentEntry{},
	}
}

// cellRect spans the cells of b in cell-corner coordinates, so boxes that
// only share an edge do not intersect.
func cellRect(b geometry.BoundBox) (rtreego.Rect, error) {
	return rtreego.NewRect(
		rtreego.Point{float64(b.UL.X), float64(b.LR.Y)},
		[]float64{float64(b.Width()), float64(b.Height())},
	)
}

func (ix *extentIndex) insert(seq int, b geometry.BoundBox) {
	ix.remove(seq)
	rect, err := cellRect(b)
	if err != nil {
		logf("not indexing map %d with extent %v: %v", seq, b, err)
		return
	}
	e := &extentEntry{seq: seq, rect: rect}
	ix.entries[seq] = e
	ix.tree.Insert(e)
}

func (ix *extentIndex) remove(seq int) {
	if e, ok := ix.entries[seq]; ok {
		ix.tree.Delete(e)
		delete(ix.entries, seq)
	}
}

// search returns the maps overlapping b, newest first.
func (ix *extentIndex) search(b geometry.BoundBox) []int {
	rect, err := cellRect(b)
	if err != nil {
		return nil
	}
	var seqs []int
	for _, s := range ix.tree.SearchIntersect(rect) {
		seqs = append(seqs, s.(*extentEntry).seq)
	}
	slices.Sort(seqs)
	slices.Reverse(seqs)
	return seqs
}

func (ix *extentIndex) size() int { return len(ix.entries) }
