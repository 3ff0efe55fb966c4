package fat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embedfat/sdfat/devicetest"
)

func TestMountFat32Geometry(t *testing.T) {
	// spec §8 end-to-end scenario 1, with the device backing trimmed to
	// the sectors the mount path actually touches; total_sectors in the
	// BPB is still the full value from the scenario, since it only feeds
	// geometry arithmetic.
	const bootSectorLBA = 8192
	dev := devicetest.NewZeroedRAMDevice(11000, 512)

	require.NoError(t, devicetest.WriteMBRPartition(dev, 0, 0x0B, bootSectorLBA))
	require.NoError(t, devicetest.WriteBootSector(dev, bootSectorLBA, devicetest.BootSectorParams{
		SectorsPerCluster: 8,
		ReservedSectors:   32,
		NumFATs:           2,
		RootEntryCount:    0,
		TotalSectors:      2097152,
		FATSizeSectors:    1024,
		RootCluster:       2,
		Label:             "NOLABEL",
	}))

	v := NewVolume(dev)
	require.NoError(t, v.Mount(0))

	require.Equal(t, Fat32, v.FatKind())
	require.EqualValues(t, 8224, v.fatStartLBA)
	require.EqualValues(t, 10272, v.firstDataLBA)
	require.EqualValues(t, 10272, v.rootDirLBA)
}

func TestMountRejectsClusterCountBelowFat16Minimum(t *testing.T) {
	dev := devicetest.NewZeroedRAMDevice(200, 512)

	require.NoError(t, devicetest.WriteBootSector(dev, 0, devicetest.BootSectorParams{
		SectorsPerCluster: 1,
		ReservedSectors:   1,
		NumFATs:           2,
		RootEntryCount:    16,
		TotalSectors:      120,
		FATSizeSectors:    1,
		Label:             "TOOSMALL",
	}))

	v := NewVolume(dev)
	err := v.Mount(0)
	require.Error(t, err)
}

func TestMountRejectsWrongNumFats(t *testing.T) {
	dev := devicetest.NewZeroedRAMDevice(20000, 512)

	require.NoError(t, devicetest.WriteBootSector(dev, 0, devicetest.BootSectorParams{
		SectorsPerCluster: 8,
		ReservedSectors:   32,
		NumFATs:           1,
		RootEntryCount:    0,
		TotalSectors:      20000,
		FATSizeSectors:    100,
		RootCluster:       2,
		Label:             "ONEFAT",
	}))

	v := NewVolume(dev)
	err := v.Mount(0)
	require.Error(t, err)
}
