package fat

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/embedfat/sdfat/blockdev"
	"github.com/embedfat/sdfat/ioerr"
)

// BPB field offsets within the boot sector (spec §4.4.1).
const (
	offSectorsPerCluster = 0x0D
	offReservedSectors   = 0x0E
	offNumFATs           = 0x10
	offRootEntryCount    = 0x11
	offTotalSectors16    = 0x13
	offFATSize16         = 0x16
	offTotalSectors32    = 0x20
	offFATSize32         = 0x24
	offRootCluster32     = 0x2C
	offVolumeLabel       = 0x47

	mbrPartitionTableStart = 0x1BE
	mbrPartitionEntryLen   = 16
	mbrPartitionTypeOffset = 4
	mbrPartitionLBAOffset  = 8
	bootSectorJumpByte     = 0xEB
)

// InitFatInfo is the transient geometry scratchpad built while parsing the
// BPB during mount (spec §3). Nothing outside Mount needs it once the
// Volume's own derived fields are populated.
type InitFatInfo struct {
	BootSectorLBA      uint32
	NumFATs            uint8
	ReservedSectors    uint16
	RootEntryCount     uint16
	TotalSectors       uint32
	FATSizeSectors     uint32
	DataSectors        uint32
	ClusterCount       uint32
	SectorsPerCluster  uint8
	SectorsPerClusterShift uint8
	RootCluster        uint32
	Label              [8]byte
}

// locateBootSectorLBA implements spec §4.4.1 steps 1-2: it determines
// whether LBA 0 is itself a boot sector or an MBR, and if the latter,
// extracts and validates the requested partition's entry.
func locateBootSectorLBA(device blockdev.BlockDevice, partition uint8) (uint32, error) {
	sector := make([]byte, device.SectorSize())
	if err := device.ReadBlock(0, sector); err != nil {
		return 0, ioerr.ErrDeviceRead.WrapError(err)
	}

	if sector[0] == bootSectorJumpByte {
		if partition != 0 {
			return 0, ioerr.ErrPartitionDoesNotExist.WithMessage(
				"LBA 0 is a boot sector, not an MBR; only partition 0 exists")
		}
		return 0, nil
	}

	if partition > 3 {
		return 0, ioerr.ErrPartitionDoesNotExist.WithMessage(
			fmt.Sprintf("partition %d out of range 0..3", partition))
	}

	entryOffset := mbrPartitionTableStart + int(partition)*mbrPartitionEntryLen
	partitionType := sector[entryOffset+mbrPartitionTypeOffset]
	if partitionType == 0x00 {
		return 0, ioerr.ErrPartitionDoesNotExist.WithMessage(
			fmt.Sprintf("partition %d entry is empty", partition))
	}

	if err := ValidatePartitionType(partitionType); err != nil {
		return 0, err
	}

	bootSectorLBA := blockdev.GetLong(sector, entryOffset+mbrPartitionLBAOffset)
	return bootSectorLBA, nil
}

// parseBootSector implements spec §4.4.1 steps 3-4. All independently
// checkable BPB violations are collected and returned together via
// go-multierror instead of failing on the first one, so a caller diagnosing
// a corrupt or foreign image sees every problem at once.
func parseBootSector(device blockdev.BlockDevice, bootSectorLBA uint32) (*InitFatInfo, error) {
	sector := make([]byte, device.SectorSize())
	if err := device.ReadBlock(bootSectorLBA, sector); err != nil {
		return nil, ioerr.ErrDeviceRead.WrapError(err)
	}

	var problems *multierror.Error

	info := &InitFatInfo{
		BootSectorLBA:     bootSectorLBA,
		SectorsPerCluster: blockdev.GetByte(sector, offSectorsPerCluster),
		ReservedSectors:   blockdev.GetShort(sector, offReservedSectors),
		NumFATs:           blockdev.GetByte(sector, offNumFATs),
		RootEntryCount:    blockdev.GetShort(sector, offRootEntryCount),
		RootCluster:       blockdev.GetLong(sector, offRootCluster32),
	}
	copy(info.Label[:], sector[offVolumeLabel:offVolumeLabel+8])

	info.TotalSectors = uint32(blockdev.GetShort(sector, offTotalSectors16))
	if info.TotalSectors == 0 {
		info.TotalSectors = blockdev.GetLong(sector, offTotalSectors32)
	}

	info.FATSizeSectors = uint32(blockdev.GetShort(sector, offFATSize16))
	if info.FATSizeSectors == 0 {
		info.FATSizeSectors = blockdev.GetLong(sector, offFATSize32)
	}

	if info.NumFATs != 2 {
		problems = multierror.Append(problems, ioerr.ErrTooManyFats.WithMessage(
			fmt.Sprintf("numFATs = %d", info.NumFATs)))
	}

	shift, ok := powerOfTwoShift(info.SectorsPerCluster, 128)
	if !ok {
		problems = multierror.Append(problems, ioerr.ErrBadSectorsPerCluster.WithMessage(
			fmt.Sprintf("sectors per cluster = %d", info.SectorsPerCluster)))
	}
	info.SectorsPerClusterShift = shift

	if info.TotalSectors == 0 {
		problems = multierror.Append(problems, ioerr.ErrUnsupportedFilesystem.WithMessage(
			"total sectors field is zero in both 16-bit and 32-bit form"))
	}

	if problems.ErrorOrNil() != nil {
		return nil, problems
	}

	sectorSize := uint32(device.SectorSize())
	rootDirSectors := ((uint32(info.RootEntryCount) * DirentSize) + sectorSize - 1) / sectorSize
	reservedPlusFats := uint32(info.ReservedSectors) + uint32(info.NumFATs)*info.FATSizeSectors
	if info.TotalSectors < reservedPlusFats+rootDirSectors {
		return nil, ioerr.ErrUnsupportedFilesystem.WithMessage(
			"total sectors too small to hold reserved area, FATs, and root directory")
	}
	info.DataSectors = info.TotalSectors - reservedPlusFats - rootDirSectors
	info.ClusterCount = info.DataSectors >> info.SectorsPerClusterShift

	return info, nil
}

// powerOfTwoShift returns log2(v) and true if v is a power of two in
// [1, max]; otherwise it returns (0, false).
func powerOfTwoShift(v uint8, max uint8) (uint8, bool) {
	if v == 0 || v > max || v&(v-1) != 0 {
		return 0, false
	}
	var shift uint8
	for x := v; x > 1; x >>= 1 {
		shift++
	}
	return shift, true
}
