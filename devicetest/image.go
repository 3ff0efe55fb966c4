package devicetest

import "github.com/embedfat/sdfat/blockdev"

// BootSectorParams captures the handful of BPB fields a test needs to
// control; every field not listed is left zeroed, which is fine for every
// field the fat package itself doesn't inspect.
type BootSectorParams struct {
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntryCount    uint16
	TotalSectors      uint32
	FATSizeSectors    uint32
	RootCluster       uint32 // FAT32 only
	Label             string
}

// WriteMBRPartition writes a single 16-byte MBR partition table entry at
// LBA 0, slot index (0..3), with the given partition-type byte and starting
// LBA. It also stamps byte 0 of LBA 0 with a value other than 0xEB so the
// volume code recognizes this as an MBR rather than a boot sector.
func WriteMBRPartition(dev *RAMDevice, index int, partitionType byte, bootSectorLBA uint32) error {
	sector := make([]byte, dev.SectorSize())
	if err := dev.ReadBlock(0, sector); err != nil {
		return err
	}

	if sector[0] == 0xEB {
		sector[0] = 0x00
	}

	entryOffset := 0x1BE + (index << 4)
	sector[entryOffset+4] = partitionType
	blockdev.PutLong(sector, entryOffset+8, bootSectorLBA)

	return dev.WriteBlock(0, sector)
}

// WriteBootSector writes a BIOS Parameter Block at bootSectorLBA following
// the field table in spec §4.4.1. byte 0 is set to 0xEB (the boot-sector jump
// instruction) only when bootSectorLBA == 0, matching §4.4.1 step 1's
// "is this the boot sector or the MBR" test.
func WriteBootSector(dev *RAMDevice, bootSectorLBA uint32, p BootSectorParams) error {
	sector := make([]byte, dev.SectorSize())

	if bootSectorLBA == 0 {
		sector[0] = 0xEB
	}

	sector[0x0D] = p.SectorsPerCluster
	blockdev.PutShort(sector, 0x0E, p.ReservedSectors)
	sector[0x10] = p.NumFATs
	blockdev.PutShort(sector, 0x11, p.RootEntryCount)

	if p.TotalSectors <= 0xFFFF {
		blockdev.PutShort(sector, 0x13, uint16(p.TotalSectors))
	} else {
		blockdev.PutLong(sector, 0x20, p.TotalSectors)
	}

	if p.FATSizeSectors <= 0xFFFF {
		blockdev.PutShort(sector, 0x16, uint16(p.FATSizeSectors))
	} else {
		blockdev.PutLong(sector, 0x24, p.FATSizeSectors)
	}

	blockdev.PutLong(sector, 0x2C, p.RootCluster)

	label := p.Label
	for len(label) < 8 {
		label += " "
	}
	copy(sector[0x47:0x4F], label[:8])

	return dev.WriteBlock(bootSectorLBA, sector)
}

// WriteRawFatEntry pokes the raw on-disk FAT entry for cluster directly into
// both FAT copies, bypassing fat.FatTable entirely. This lets tests set up a
// pre-existing cluster chain without going through ExtendChain first.
func WriteRawFatEntry(
	dev *RAMDevice,
	fatStartLBA uint32,
	fatSizeSectors uint32,
	fat32 bool,
	cluster uint32,
	value uint32,
) error {
	width := uint32(2)
	entriesPerSector := uint32(dev.SectorSize()) / width
	if fat32 {
		width = 4
		entriesPerSector = uint32(dev.SectorSize()) / width
	}

	sectorIndex := cluster / entriesPerSector
	offset := int((cluster % entriesPerSector) * width)

	for _, base := range []uint32{fatStartLBA, fatStartLBA + fatSizeSectors} {
		sector := make([]byte, dev.SectorSize())
		lba := base + sectorIndex
		if err := dev.ReadBlock(lba, sector); err != nil {
			return err
		}
		if fat32 {
			blockdev.PutLong(sector, offset, value&0x0FFFFFFF)
		} else {
			blockdev.PutShort(sector, offset, uint16(value))
		}
		if err := dev.WriteBlock(lba, sector); err != nil {
			return err
		}
	}
	return nil
}

// RawDirentBytes builds a 32-byte 8.3 directory entry, for tests that want
// to seed a directory without going through fat.Volume.CreateEntry.
func RawDirentBytes(name8 string, ext3 string, attrs uint8, firstCluster uint32, length uint32) []byte {
	entry := make([]byte, 32)
	for i := 0; i < 8; i++ {
		if i < len(name8) {
			entry[i] = name8[i]
		} else {
			entry[i] = ' '
		}
	}
	for i := 0; i < 3; i++ {
		if i < len(ext3) {
			entry[8+i] = ext3[i]
		} else {
			entry[8+i] = ' '
		}
	}
	entry[0x0B] = attrs
	blockdev.PutShort(entry, 0x14, uint16(firstCluster>>16))
	blockdev.PutShort(entry, 0x1A, uint16(firstCluster))
	blockdev.PutLong(entry, 0x1C, length)
	return entry
}

// WriteDirEntry writes a 32-byte directory entry at the given sector LBA and
// byte offset within that sector.
func WriteDirEntry(dev *RAMDevice, sectorLBA uint32, offset int, raw []byte) error {
	sector := make([]byte, dev.SectorSize())
	if err := dev.ReadBlock(sectorLBA, sector); err != nil {
		return err
	}
	copy(sector[offset:offset+32], raw)
	return dev.WriteBlock(sectorLBA, sector)
}

// WriteSectorData writes arbitrary bytes (padded with zeroes) to the given
// sector, for seeding file contents in tests.
func WriteSectorData(dev *RAMDevice, sectorLBA uint32, data []byte) error {
	sector := make([]byte, dev.SectorSize())
	copy(sector, data)
	return dev.WriteBlock(sectorLBA, sector)
}
