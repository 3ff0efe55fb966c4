package fat

import (
	"github.com/embedfat/sdfat/blockdev"
	"github.com/embedfat/sdfat/ioerr"
)

// clusterMapper is the slice of Volume that SectorBuffer needs: how to turn
// a cluster number into an LBA, and the root directory's flat-run geometry
// for the FAT16 special case.
type clusterMapper interface {
	ClusterToLBA(cluster ClusterID) LBA
	SectorsPerClusterShift() uint8
	RootDirLBA() LBA
	RootDirSectors() uint32
}

// FolderOwnerID is the reserved owner_id used by the Volume's shared
// directory-traversal buffer (spec §4.3's FOLDER_ID).
const FolderOwnerID uint32 = 0

// SectorBuffer mediates sector I/O for one logical stream, a file or a
// directory, so the FAT chain is walked at most once per cluster boundary
// and a modified sector is written back at most once (spec §4.3).
type SectorBuffer struct {
	device   blockdev.BlockDevice
	mapper   clusterMapper
	fatTable *FatTable

	buf []byte

	ownerID uint32

	currentCluster           ClusterID
	startLBAOfCurrentCluster LBA
	sectorOffsetWithinCluster uint8
	nextCluster              ClusterID
	dirty                    bool
}

// NewSectorBuffer allocates an unpositioned buffer. Callers must call
// LoadRootDirectory or LoadCluster before using it.
func NewSectorBuffer(device blockdev.BlockDevice, mapper clusterMapper, fatTable *FatTable, ownerID uint32) *SectorBuffer {
	return &SectorBuffer{
		device:   device,
		mapper:   mapper,
		fatTable: fatTable,
		buf:      make([]byte, device.SectorSize()),
		ownerID:  ownerID,
	}
}

// Bytes exposes the currently loaded sector for reading and in-place
// modification. Callers that mutate it must call MarkDirty.
func (b *SectorBuffer) Bytes() []byte {
	return b.buf
}

// MarkDirty flags the currently loaded sector as modified.
func (b *SectorBuffer) MarkDirty() {
	b.dirty = true
}

// CurrentLBA returns the absolute sector address of whatever is currently
// loaded in Bytes().
func (b *SectorBuffer) CurrentLBA() LBA {
	return b.startLBAOfCurrentCluster + LBA(b.sectorOffsetWithinCluster)
}

// CurrentCluster returns the cluster number the buffer is presently
// positioned within (FAT16RootSentinel when walking the FAT16 root).
func (b *SectorBuffer) CurrentCluster() ClusterID {
	return b.currentCluster
}

// LoadRootDirectory positions the buffer at the start of the root
// directory, per spec §4.4.1 step 8.
func (b *SectorBuffer) LoadRootDirectory(kind FatKind, rootCluster ClusterID) error {
	if kind == Fat16 {
		b.currentCluster = FAT16RootSentinel
		b.startLBAOfCurrentCluster = b.mapper.RootDirLBA()
		b.sectorOffsetWithinCluster = 0
		return b.reload()
	}

	next, err := b.fatTable.ValueOf(uint32(rootCluster))
	if err != nil {
		return err
	}
	b.currentCluster = rootCluster
	b.nextCluster = ClusterID(next)
	b.startLBAOfCurrentCluster = b.mapper.ClusterToLBA(rootCluster)
	b.sectorOffsetWithinCluster = 0
	return b.reload()
}

// LoadCluster positions the buffer at the first sector of cluster, as done
// when opening a file (spec §4.4.4).
func (b *SectorBuffer) LoadCluster(cluster ClusterID) error {
	next, err := b.fatTable.ValueOf(uint32(cluster))
	if err != nil {
		return err
	}
	b.currentCluster = cluster
	b.nextCluster = ClusterID(next)
	b.startLBAOfCurrentCluster = b.mapper.ClusterToLBA(cluster)
	b.sectorOffsetWithinCluster = 0
	return b.reload()
}

func (b *SectorBuffer) reload() error {
	if err := b.device.ReadBlock(uint32(b.CurrentLBA()), b.buf); err != nil {
		return ioerr.ErrDeviceRead.WrapError(err)
	}
	b.dirty = false
	return nil
}

// repositionTo loads the sector at lba directly, bypassing cluster-chain
// tracking entirely. It's used to patch a single directory entry whose
// owning cluster a caller (File.Close) doesn't track on its own. Any
// pending write is flushed first so it's never lost, and the cluster-chain
// fields are left stale afterward — safe because Find (which Chdir goes
// through) compares the buffer's LBA as well as those fields against the
// current directory's start and reloads properly before trusting
// cluster-relative state again.
func (b *SectorBuffer) repositionTo(lba LBA) error {
	if err := b.Flush(); err != nil {
		return err
	}
	b.startLBAOfCurrentCluster = lba
	b.sectorOffsetWithinCluster = 0
	return b.reload()
}

// Flush writes buf back unconditionally if dirty.
func (b *SectorBuffer) Flush() error {
	if !b.dirty {
		return nil
	}
	if err := b.device.WriteBlock(uint32(b.CurrentLBA()), b.buf); err != nil {
		return ioerr.ErrDeviceWrite.WrapError(err)
	}
	b.dirty = false
	return nil
}

// AdvanceSector implements spec §4.3's advance_sector.
func (b *SectorBuffer) AdvanceSector() error {
	if err := b.Flush(); err != nil {
		return err
	}

	if b.currentCluster == FAT16RootSentinel {
		b.sectorOffsetWithinCluster++
		if uint32(b.sectorOffsetWithinCluster) == b.mapper.RootDirSectors() {
			return ioerr.ErrEndOfChain
		}
		return b.reload()
	}

	shift := b.mapper.SectorsPerClusterShift()
	if uint32(b.sectorOffsetWithinCluster)+1 < (uint32(1) << shift) {
		b.sectorOffsetWithinCluster++
		return b.reload()
	}

	return b.AdvanceCluster()
}

// AdvanceCluster implements spec §4.3's advance_cluster.
func (b *SectorBuffer) AdvanceCluster() error {
	if err := b.Flush(); err != nil {
		return err
	}

	kind := b.fatTable.kind

	if IsEndOfChain(kind, uint32(b.nextCluster)) {
		return ioerr.ErrEndOfChain
	}

	wasEOCBefore := IsEndOfChain(kind, uint32(b.currentCluster))
	b.currentCluster = b.nextCluster

	next, err := b.fatTable.ValueOf(uint32(b.currentCluster))
	if err != nil {
		return err
	}
	b.nextCluster = ClusterID(next)

	if wasEOCBefore && IsEndOfChain(kind, uint32(b.currentCluster)) {
		return ioerr.ErrReadingPastEoc
	}

	b.startLBAOfCurrentCluster = b.mapper.ClusterToLBA(b.currentCluster)
	b.sectorOffsetWithinCluster = 0
	return b.reload()
}
