package fat

import (
	"github.com/embedfat/sdfat/blockdev"
	"github.com/embedfat/sdfat/internal/bitset"
	"github.com/embedfat/sdfat/ioerr"
)

// FatTable mediates every read and write of the File Allocation Table
// itself. It caches exactly one sector at a time and mirrors every write to
// the second FAT copy on flush (spec §3, §4.2).
type FatTable struct {
	device   blockdev.BlockDevice
	kind     FatKind
	startLBA uint32
	sizeSectors uint32
	entriesPerSectorShift uint8

	sector              []byte
	currentFatSectorIdx uint32
	dirty               bool

	// dry is a pure optimization hint (never authoritative) letting
	// FindEmpty skip re-scanning sectors known to hold no free entries.
	dry *bitset.ScannedDry
}

// NewFatTable allocates the cache and loads FAT sector 0.
func NewFatTable(device blockdev.BlockDevice, startLBA uint32, sizeSectors uint32, kind FatKind) (*FatTable, error) {
	t := &FatTable{
		device:                device,
		kind:                  kind,
		startLBA:              startLBA,
		sizeSectors:           sizeSectors,
		entriesPerSectorShift: entriesPerSectorShift(kind, device.SectorSize()),
		sector:                make([]byte, device.SectorSize()),
		dry:                   bitset.New(int(sizeSectors)),
	}
	if err := t.loadSector(0); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *FatTable) entriesPerSector() uint32 {
	return 1 << t.entriesPerSectorShift
}

func (t *FatTable) sectorAndOffset(cluster uint32) (uint32, int) {
	sectorIdx := cluster >> t.entriesPerSectorShift
	mask := t.entriesPerSector() - 1
	offset := int((cluster & mask) * byteWidth(t.kind))
	return sectorIdx, offset
}

// loadSector flushes the currently cached sector if dirty, then reads
// sectorIdx (FAT-relative) into the cache.
func (t *FatTable) loadSector(sectorIdx uint32) error {
	if t.dirty {
		if err := t.Flush(); err != nil {
			return err
		}
	}
	if err := t.device.ReadBlock(t.startLBA+sectorIdx, t.sector); err != nil {
		return ioerr.ErrDeviceRead.WrapError(err)
	}
	t.currentFatSectorIdx = sectorIdx
	return nil
}

// ValueOf returns the masked FAT entry for cluster.
func (t *FatTable) ValueOf(cluster uint32) (uint32, error) {
	sectorIdx, offset := t.sectorAndOffset(cluster)
	if sectorIdx != t.currentFatSectorIdx {
		if err := t.loadSector(sectorIdx); err != nil {
			return 0, err
		}
	}
	var raw uint32
	if t.kind == Fat32 {
		raw = blockdev.GetLong(t.sector, offset)
	} else {
		raw = uint32(blockdev.GetShort(t.sector, offset))
	}
	return MaskEntry(t.kind, raw), nil
}

// setEntry writes value into the cluster's FAT slot in the cached sector,
// loading that sector first if it isn't already cached, and marks the cache
// dirty.
func (t *FatTable) setEntry(cluster uint32, value uint32) error {
	sectorIdx, offset := t.sectorAndOffset(cluster)
	if sectorIdx != t.currentFatSectorIdx {
		if err := t.loadSector(sectorIdx); err != nil {
			return err
		}
	}
	if t.kind == Fat32 {
		existing := blockdev.GetLong(t.sector, offset)
		blockdev.PutLong(t.sector, offset, (existing&0xF0000000)|(value&0x0FFFFFFF))
	} else {
		blockdev.PutShort(t.sector, offset, uint16(value))
	}
	t.dirty = true
	t.dry.ClearDry(int(sectorIdx))
	return nil
}

// ExtendChain links a new cluster onto the end of the chain that buf's
// current cluster terminates, per spec §4.2's extend_chain contract.
func (t *FatTable) ExtendChain(buf *SectorBuffer) error {
	current, err := t.ValueOf(uint32(buf.currentCluster))
	if err != nil {
		return err
	}
	if !IsEndOfChain(t.kind, current) {
		return ioerr.ErrInvalidFatAppend.WithMessage(
			"ExtendChain called on a buffer whose current cluster is not end-of-chain")
	}

	newCluster, err := t.FindEmpty(true)
	if err != nil {
		return err
	}

	if err := t.setEntry(uint32(buf.currentCluster), newCluster); err != nil {
		return err
	}
	buf.nextCluster = ClusterID(newCluster)
	return nil
}

// FindEmpty scans the FAT linearly, sector by sector, starting at the
// currently cached sector, for the first free cluster. It writes an EOC
// marker into that entry before returning its number. When
// restoreOriginalSector is true, the sector that was cached on entry is
// reloaded before FindEmpty returns, leaving the cache positioned where the
// caller left it.
func (t *FatTable) FindEmpty(restoreOriginalSector bool) (uint32, error) {
	originalSectorIdx := t.currentFatSectorIdx
	entriesPerSector := t.entriesPerSector()
	totalClusters := t.sizeSectors * entriesPerSector

	for sectorIdx := originalSectorIdx; sectorIdx < t.sizeSectors; sectorIdx++ {
		if t.dry.IsDry(int(sectorIdx)) {
			continue
		}

		if sectorIdx != t.currentFatSectorIdx {
			if err := t.loadSector(sectorIdx); err != nil {
				return 0, err
			}
		}

		startEntry := uint32(0)
		// FAT32's first FAT sector reserves its first two entries for the
		// media descriptor and EOC placeholder, plus a widely observed
		// extra 7-entry pad before the root directory's own chain begins;
		// skip all 9 rather than risk colliding with it.
		if t.kind == Fat32 && sectorIdx == 0 {
			startEntry = 9
		}

		for e := startEntry; e < entriesPerSector; e++ {
			cluster := sectorIdx*entriesPerSector + e
			if cluster >= totalClusters {
				break
			}
			offset := int(e * byteWidth(t.kind))
			var raw uint32
			if t.kind == Fat32 {
				raw = blockdev.GetLong(t.sector, offset)
			} else {
				raw = uint32(blockdev.GetShort(t.sector, offset))
			}
			if IsFree(MaskEntry(t.kind, raw)) {
				if err := t.setEntry(cluster, EOCMarker(t.kind)); err != nil {
					return 0, err
				}
				if restoreOriginalSector && t.currentFatSectorIdx != originalSectorIdx {
					if err := t.loadSector(originalSectorIdx); err != nil {
						return 0, err
					}
				}
				return cluster, nil
			}
		}

		// Every entry in this sector was occupied; skip it on future scans
		// until a cluster within it is freed.
		t.dry.MarkDry(int(sectorIdx))
	}

	return 0, ioerr.ErrNoSpaceOnDevice
}

// Flush writes the cached sector to both FAT copies if dirty.
func (t *FatTable) Flush() error {
	if !t.dirty {
		return nil
	}
	if err := t.device.WriteBlock(t.startLBA+t.currentFatSectorIdx, t.sector); err != nil {
		return ioerr.ErrDeviceWrite.WrapError(err)
	}
	mirrorLBA := t.startLBA + t.sizeSectors + t.currentFatSectorIdx
	if err := t.device.WriteBlock(mirrorLBA, t.sector); err != nil {
		return ioerr.ErrDeviceWrite.WrapError(err)
	}
	t.dirty = false
	return nil
}
