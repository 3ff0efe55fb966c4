// Package devicetest provides a RAM-backed blockdev.BlockDevice for tests,
// along with a couple of helpers for building synthetic FAT images. It has
// no production role; it exists so fat's tests can exercise the driver
// without a real SD card or SPI transport.
package devicetest

import (
	"io"

	"github.com/xaionaro-go/bytesextra"

	"github.com/embedfat/sdfat/blockdev"
)

// RAMDevice is a blockdev.BlockDevice backed entirely by an in-memory byte
// slice. Start() is a no-op; the backing store is ready the moment the
// device is constructed.
type RAMDevice struct {
	sectorSize      uint16
	sectorSizeShift uint8
	stream          io.ReadWriteSeeker
	backing         []byte
}

// NewRAMDevice wraps backing (whose length must be an exact multiple of
// sectorSize) as a BlockDevice. The same slice is retained, so modifications
// made through the device are visible to the caller by inspecting backing
// directly, and vice versa.
func NewRAMDevice(backing []byte, sectorSize uint16) *RAMDevice {
	return &RAMDevice{
		sectorSize:      sectorSize,
		sectorSizeShift: blockdev.SectorSizeShiftFor(sectorSize),
		stream:          bytesextra.NewReadWriteSeeker(backing),
		backing:         backing,
	}
}

// NewZeroedRAMDevice allocates a fresh all-zero image of totalSectors
// sectors, each sectorSize bytes.
func NewZeroedRAMDevice(totalSectors uint32, sectorSize uint16) *RAMDevice {
	return NewRAMDevice(make([]byte, uint64(totalSectors)*uint64(sectorSize)), sectorSize)
}

func (d *RAMDevice) Start() error {
	return nil
}

func (d *RAMDevice) SectorSize() uint16 {
	return d.sectorSize
}

func (d *RAMDevice) SectorSizeShift() uint8 {
	return d.sectorSizeShift
}

func (d *RAMDevice) ReadBlock(lba uint32, out []byte) error {
	if err := blockdev.CheckSectorLen(d, out); err != nil {
		return err
	}
	if _, err := d.stream.Seek(int64(lba)*int64(d.sectorSize), io.SeekStart); err != nil {
		return err
	}
	_, err := io.ReadFull(d.stream, out)
	return err
}

func (d *RAMDevice) WriteBlock(lba uint32, in []byte) error {
	if err := blockdev.CheckSectorLen(d, in); err != nil {
		return err
	}
	if _, err := d.stream.Seek(int64(lba)*int64(d.sectorSize), io.SeekStart); err != nil {
		return err
	}
	_, err := d.stream.Write(in)
	return err
}

// Backing returns the raw bytes underlying the device, for test assertions
// that need to inspect on-disk state directly rather than through
// ReadBlock.
func (d *RAMDevice) Backing() []byte {
	return d.backing
}

// TotalSectors returns the number of sectors in the device.
func (d *RAMDevice) TotalSectors() uint32 {
	return uint32(len(d.backing) / int(d.sectorSize))
}
