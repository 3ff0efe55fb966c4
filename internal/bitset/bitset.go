// Package bitset provides a small one-bit-per-FAT-sector "fully scanned and
// found nothing free" hint, used by fat.FatTable.FindEmpty as a pure
// optimization layered on top of the mandatory linear scan described in
// spec.md §4.2 — it never replaces that scan, it only lets FindEmpty skip
// re-reading a FAT sector it already knows holds no free entries since the
// last time a cluster was freed.
package bitset

import "github.com/boljen/go-bitmap"

// ScannedDry tracks, per FAT sector index, whether the most recent linear
// scan of that sector found every entry occupied.
type ScannedDry struct {
	bits bitmap.Bitmap
	size int
}

// New creates a tracker for a FAT with the given number of sectors.
func New(fatSectorCount int) *ScannedDry {
	return &ScannedDry{
		bits: bitmap.New(fatSectorCount),
		size: fatSectorCount,
	}
}

// IsDry reports whether sectorIndex is known to hold no free cluster entries.
// A freshly constructed tracker reports every sector as not-dry (i.e. worth
// scanning) until MarkDry says otherwise.
func (s *ScannedDry) IsDry(sectorIndex int) bool {
	if s == nil || sectorIndex < 0 || sectorIndex >= s.size {
		return false
	}
	return s.bits.Get(sectorIndex)
}

// MarkDry records that sectorIndex was just scanned end-to-end and contained
// no free entries.
func (s *ScannedDry) MarkDry(sectorIndex int) {
	if s == nil || sectorIndex < 0 || sectorIndex >= s.size {
		return
	}
	s.bits.Set(sectorIndex, true)
}

// ClearDry un-marks sectorIndex, e.g. because a cluster within it was just
// freed, so a future FindEmpty call will scan it again instead of skipping
// it.
func (s *ScannedDry) ClearDry(sectorIndex int) {
	if s == nil || sectorIndex < 0 || sectorIndex >= s.size {
		return
	}
	s.bits.Set(sectorIndex, false)
}
