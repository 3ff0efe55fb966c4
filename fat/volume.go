package fat

import (
	"github.com/embedfat/sdfat/blockdev"
	"github.com/embedfat/sdfat/ioerr"
)

// Volume is a mounted FAT16/FAT32 filesystem: derived geometry, the FAT
// engine, and the shared directory-traversal buffer (spec §3, §4.4).
type Volume struct {
	device blockdev.BlockDevice

	mounted bool

	bootSectorLBA          uint32
	fatKind                FatKind
	sectorsPerClusterShift uint8
	fatStartLBA            uint32
	fatSizeSectors         uint32
	rootDirLBA             LBA       // FAT16: flat root run; FAT32: first sector of rootCluster
	rootCluster            ClusterID // FAT32 only
	rootDirSectors         uint32
	firstDataLBA           LBA
	label                  [8]byte

	fatTable *FatTable

	// dirBuffer is the Volume's one shared directory-traversal buffer
	// (FolderOwnerID). Files never borrow it: Open in file.go gives every
	// File its own private SectorBuffer.
	dirBuffer *SectorBuffer

	// currentDirFirstCluster tracks the first cluster of whichever
	// directory dirBuffer is presently walking, so Find can detect and
	// correct a stale position before it starts comparing names.
	currentDirFirstCluster ClusterID
	currentDirIsRoot       bool

	nextFileID uint32
}

// NewVolume constructs an unmounted Volume bound to device. Call Mount
// before any other operation.
func NewVolume(device blockdev.BlockDevice) *Volume {
	return &Volume{device: device}
}

// ClusterToLBA implements the cluster-to-LBA mapping shared by FAT16 and
// FAT32 data regions (spec §4.3): first_data_lba + ((cluster-2) << shift).
func (v *Volume) ClusterToLBA(cluster ClusterID) LBA {
	return v.firstDataLBA + LBA((uint32(cluster)-2)<<v.sectorsPerClusterShift)
}

func (v *Volume) SectorsPerClusterShift() uint8 { return v.sectorsPerClusterShift }
func (v *Volume) RootDirLBA() LBA               { return v.rootDirLBA }
func (v *Volume) RootDirSectors() uint32         { return v.rootDirSectors }

// Mount implements spec §4.4.1.
func (v *Volume) Mount(partition uint8) error {
	if v.mounted {
		return ioerr.ErrFilesystemAlreadyMounted
	}

	if err := v.device.Start(); err != nil {
		return ioerr.ErrDeviceRead.WrapError(err)
	}

	bootSectorLBA, err := locateBootSectorLBA(v.device, partition)
	if err != nil {
		return err
	}

	info, err := parseBootSector(v.device, bootSectorLBA)
	if err != nil {
		return err
	}

	kind, ok := DetermineFatKind(info.ClusterCount)
	if !ok {
		return ioerr.ErrUnsupportedFilesystem.WithMessage(
			"cluster count is below the FAT16 minimum")
	}

	v.bootSectorLBA = bootSectorLBA
	v.fatKind = kind
	v.sectorsPerClusterShift = info.SectorsPerClusterShift
	v.fatStartLBA = bootSectorLBA + uint32(info.ReservedSectors)
	v.fatSizeSectors = info.FATSizeSectors
	v.label = info.Label

	rootDirSectors := ((uint32(info.RootEntryCount) * DirentSize) + uint32(v.device.SectorSize()) - 1) / uint32(v.device.SectorSize())
	v.rootDirSectors = rootDirSectors

	if kind == Fat16 {
		v.rootDirLBA = LBA(v.fatStartLBA + 2*v.fatSizeSectors)
		v.firstDataLBA = v.rootDirLBA + LBA(rootDirSectors)
	} else {
		v.firstDataLBA = LBA(v.fatStartLBA + 2*v.fatSizeSectors)
		v.rootCluster = ClusterID(info.RootCluster)
		v.rootDirLBA = v.ClusterToLBA(v.rootCluster)
		v.rootDirSectors = 0
	}

	fatTable, err := NewFatTable(v.device, v.fatStartLBA, v.fatSizeSectors, kind)
	if err != nil {
		return err
	}
	v.fatTable = fatTable

	dirBuffer := NewSectorBuffer(v.device, v, v.fatTable, FolderOwnerID)
	if err := dirBuffer.LoadRootDirectory(kind, v.rootCluster); err != nil {
		return err
	}
	v.dirBuffer = dirBuffer
	v.currentDirFirstCluster = v.rootCluster
	v.currentDirIsRoot = true

	v.mounted = true
	return nil
}

// Unmount flushes the shared directory buffer and the FAT, then marks the
// volume unmounted. The private buffers of open Files are not flushed here;
// only File.Close flushes those. Mount may be called again afterward.
func (v *Volume) Unmount() error {
	if !v.mounted {
		return ioerr.ErrFilesystemNotMounted
	}
	if err := v.dirBuffer.Flush(); err != nil {
		return err
	}
	if err := v.fatTable.Flush(); err != nil {
		return err
	}
	v.mounted = false
	return nil
}

// rewindDirBuffer repositions dirBuffer at the first sector of the current
// directory's first cluster, used by Find whenever the buffer isn't
// already there (spec §4.4.2).
func (v *Volume) rewindDirBuffer() error {
	if v.currentDirIsRoot {
		return v.dirBuffer.LoadRootDirectory(v.fatKind, v.rootCluster)
	}
	return v.dirBuffer.LoadCluster(v.currentDirFirstCluster)
}

// Find implements spec §4.4.2.
func (v *Volume) Find(name string) (LBA, int, error) {
	if !v.mounted {
		return 0, 0, ioerr.ErrFilesystemNotMounted
	}

	dirStartLBA := v.rootDirLBA
	if !v.currentDirIsRoot {
		dirStartLBA = v.ClusterToLBA(v.currentDirFirstCluster)
	}
	atDirStart := v.dirBuffer.CurrentLBA() == dirStartLBA &&
		v.dirBuffer.sectorOffsetWithinCluster == 0 &&
		((v.currentDirIsRoot && v.dirBuffer.currentCluster == v.rootClusterOrSentinel()) ||
			(!v.currentDirIsRoot && v.dirBuffer.currentCluster == v.currentDirFirstCluster))
	if !atDirStart {
		if err := v.rewindDirBuffer(); err != nil {
			return 0, 0, err
		}
	}

	target := canonicalCompareName(name)
	sectorSize := int(v.device.SectorSize())

	for {
		buf := v.dirBuffer.Bytes()
		offset := 0
		for offset < sectorSize {
			raw := buf[offset : offset+DirentSize]
			switch classifyDirent(raw) {
			case direntEndOfDirectory:
				return v.dirBuffer.CurrentLBA(), offset, ioerr.ErrFilenameNotFound
			case direntDeleted:
				// skip
			default:
				if direntDisplayName(raw) == target {
					return v.dirBuffer.CurrentLBA(), offset, nil
				}
			}
			offset += DirentSize
		}

		if err := v.dirBuffer.AdvanceSector(); err != nil {
			return 0, 0, err
		}
	}
}

// rootClusterOrSentinel returns the value dirBuffer.currentCluster holds
// when positioned at the very start of the root directory, accounting for
// the FAT16 sentinel.
func (v *Volume) rootClusterOrSentinel() ClusterID {
	if v.fatKind == Fat16 {
		return FAT16RootSentinel
	}
	return v.rootCluster
}

// CreateEntry implements spec §4.4.4: it writes a fresh directory entry at
// dirLBA/offset, allocates its first cluster via FindEmpty, and marks the
// directory buffer dirty. The caller is responsible for having positioned
// dirBuffer at dirLBA already (Open does this).
func (v *Volume) CreateEntry(name string, offsetInSector int) (ClusterID, error) {
	raw, err := buildNewDirent(name)
	if err != nil {
		return 0, err
	}

	cluster, err := v.fatTable.FindEmpty(false)
	if err != nil {
		return 0, err
	}
	direntSetFirstCluster(raw, v.fatKind, cluster)

	copy(v.dirBuffer.Bytes()[offsetInSector:offsetInSector+DirentSize], raw)
	v.dirBuffer.MarkDirty()

	return ClusterID(cluster), nil
}

// updateDirentLength patches the length field of the directory entry at
// sectorLBA/offset and flushes it immediately. The Volume's shared
// dirBuffer is the only writer of directory sectors; routing the patch
// through it (repositioning it first if something else moved it since)
// and flushing right away means a later Unmount flush of dirBuffer can
// never clobber it with a stale in-memory copy of that sector.
func (v *Volume) updateDirentLength(sectorLBA LBA, offset int, length uint32) error {
	if v.dirBuffer.CurrentLBA() != sectorLBA {
		if err := v.dirBuffer.repositionTo(sectorLBA); err != nil {
			return err
		}
	}
	direntSetLength(v.dirBuffer.Bytes()[offset:offset+DirentSize], length)
	v.dirBuffer.MarkDirty()
	return v.dirBuffer.Flush()
}

// Chdir changes the current directory to name, a single path component.
// "." is a no-op. ".." and subdirectory names are looked up with Find; ".."
// resolves through the on-disk dot-entry a subdirectory carries, and one
// whose first cluster is 0 leads back to the root. The root directory has
// no dot-entries, so Chdir("..") from the root fails. Multi-component
// paths (e.g. "a/b/c") are not supported in one call.
func (v *Volume) Chdir(name string) error {
	if !v.mounted {
		return ioerr.ErrFilesystemNotMounted
	}

	if name == "." {
		return nil
	}

	_, offset, err := v.Find(name)
	if err != nil {
		return err
	}

	// Find always leaves dirBuffer positioned at its returned LBA, and a just-created
	// entry may still be dirty in that buffer and not yet on the device
	// (see CreateEntry); read through the buffer rather than the device.
	raw := make([]byte, DirentSize)
	copy(raw, v.dirBuffer.Bytes()[offset:offset+DirentSize])

	if !direntIsSubdirectory(raw) {
		return ioerr.ErrNotADirectory.WithMessage(name)
	}

	firstCluster := ClusterID(direntFirstCluster(raw, v.fatKind))

	if firstCluster == 0 {
		// A ".." entry whose parent is the root directory stores cluster 0
		// to mean "the root directory itself", on both FAT16 and FAT32.
		v.dirBuffer.ownerID = FolderOwnerID
		v.currentDirIsRoot = true
		return v.dirBuffer.LoadRootDirectory(v.fatKind, v.rootCluster)
	}

	v.currentDirFirstCluster = firstCluster
	v.currentDirIsRoot = false
	return v.dirBuffer.LoadCluster(firstCluster)
}

// Label returns the 8-byte ASCII volume label captured at mount time.
func (v *Volume) Label() [8]byte { return v.label }

// FatKind returns the detected FAT variant.
func (v *Volume) FatKind() FatKind { return v.fatKind }

// FatTable exposes the mounted volume's FAT engine, for File to extend
// chains and resolve cluster values.
func (v *Volume) FatTable() *FatTable { return v.fatTable }

// Device exposes the underlying block device, for File's private buffers.
func (v *Volume) Device() blockdev.BlockDevice { return v.device }

// nextID hands out a monotonically increasing File id.
func (v *Volume) nextID() uint32 {
	v.nextFileID++
	return v.nextFileID
}
