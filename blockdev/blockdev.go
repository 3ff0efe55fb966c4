// Package blockdev defines the contract the FAT driver consumes from the
// physical storage transport (§4.1, §6.1 of the spec) and a handful of
// little-endian accessor helpers so the filesystem code never does endian
// conversion inline.
//
// The transport itself — SPI framing, SD card command sets, hardware pins —
// is out of scope here and lives entirely on the other side of this
// interface.
package blockdev

import "fmt"

// BlockDevice is a fixed-size sector-addressable storage device. Device-level
// read/write failures and timeouts are returned verbatim; the FAT driver
// treats any non-nil error as fatal for the operation in progress and never
// retries.
type BlockDevice interface {
	// Start brings the device online. It must be called, and must succeed,
	// before any Read/Write call.
	Start() error

	// SectorSize gives the size of one sector in bytes. It is constant for
	// the lifetime of the device; 512 is by far the most common value.
	SectorSize() uint16

	// SectorSizeShift is log2(SectorSize()), used as a right-shift wherever
	// byte offsets need to be converted to sector counts.
	SectorSizeShift() uint8

	// ReadBlock fills out (which must be exactly SectorSize() bytes) with the
	// contents of the sector at the given LBA.
	ReadBlock(lba uint32, out []byte) error

	// WriteBlock writes in (which must be exactly SectorSize() bytes) to the
	// sector at the given LBA.
	WriteBlock(lba uint32, in []byte) error
}

// CheckSectorLen verifies that buf is exactly one sector long for the given
// device, returning a descriptive error if not. Every BlockDevice
// implementation in this module calls this at the top of ReadBlock/WriteBlock
// so a caller passing a misshapen buffer gets a clear message instead of an
// out-of-bounds panic somewhere downstream.
func CheckSectorLen(device BlockDevice, buf []byte) error {
	want := int(device.SectorSize())
	if len(buf) != want {
		return fmt.Errorf("buffer is %d bytes, want exactly %d (one sector)", len(buf), want)
	}
	return nil
}

// GetByte returns the byte at offset in buf.
func GetByte(buf []byte, offset int) uint8 {
	return buf[offset]
}

// GetShort returns the little-endian uint16 at offset in buf.
func GetShort(buf []byte, offset int) uint16 {
	return uint16(buf[offset]) | uint16(buf[offset+1])<<8
}

// GetLong returns the little-endian uint32 at offset in buf.
func GetLong(buf []byte, offset int) uint32 {
	return uint32(buf[offset]) |
		uint32(buf[offset+1])<<8 |
		uint32(buf[offset+2])<<16 |
		uint32(buf[offset+3])<<24
}

// PutByte writes value at offset in buf.
func PutByte(buf []byte, offset int, value uint8) {
	buf[offset] = value
}

// PutShort writes the little-endian encoding of value at offset in buf.
func PutShort(buf []byte, offset int, value uint16) {
	buf[offset] = byte(value)
	buf[offset+1] = byte(value >> 8)
}

// PutLong writes the little-endian encoding of value at offset in buf.
func PutLong(buf []byte, offset int, value uint32) {
	buf[offset] = byte(value)
	buf[offset+1] = byte(value >> 8)
	buf[offset+2] = byte(value >> 16)
	buf[offset+3] = byte(value >> 24)
}

// SectorSizeShiftFor computes log2 of a sector size, panicking if it isn't a
// power of two. Used by device implementations to derive SectorSizeShift()
// from a configured SectorSize().
func SectorSizeShiftFor(sectorSize uint16) uint8 {
	if sectorSize == 0 || sectorSize&(sectorSize-1) != 0 {
		panic(fmt.Sprintf("sector size %d is not a power of two", sectorSize))
	}
	var shift uint8
	for v := sectorSize; v > 1; v >>= 1 {
		shift++
	}
	return shift
}
