package fat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embedfat/sdfat/devicetest"
	"github.com/embedfat/sdfat/ioerr"
)

type fakeMapper struct {
	firstDataLBA   LBA
	shift          uint8
	rootDirLBA     LBA
	rootDirSectors uint32
}

func (m fakeMapper) ClusterToLBA(cluster ClusterID) LBA {
	return m.firstDataLBA + LBA((uint32(cluster)-2)<<m.shift)
}
func (m fakeMapper) SectorsPerClusterShift() uint8 { return m.shift }
func (m fakeMapper) RootDirLBA() LBA               { return m.rootDirLBA }
func (m fakeMapper) RootDirSectors() uint32        { return m.rootDirSectors }

func TestSectorBufferAdvanceWithinClusterThenAcrossBoundary(t *testing.T) {
	dev := devicetest.NewZeroedRAMDevice(200, 512)
	table, err := NewFatTable(dev, 0, 4, Fat32)
	require.NoError(t, err)

	// cluster 2 -> cluster 3 -> EOC, sectors_per_cluster = 2.
	require.NoError(t, devicetest.WriteRawFatEntry(dev, 0, 4, true, 2, 3))
	require.NoError(t, devicetest.WriteRawFatEntry(dev, 0, 4, true, 3, EOCMarker(Fat32)))
	require.NoError(t, table.loadSector(0))

	// sectors_per_cluster = 2 (shift 1): the first AdvanceSector stays in
	// cluster 2, the second crosses into cluster 3.
	mapper := fakeMapper{firstDataLBA: 20, shift: 1}
	buf := NewSectorBuffer(dev, mapper, table, FolderOwnerID)
	require.NoError(t, buf.LoadCluster(2))
	require.EqualValues(t, 20, buf.CurrentLBA())

	require.NoError(t, buf.AdvanceSector())
	require.EqualValues(t, ClusterID(2), buf.currentCluster)
	require.EqualValues(t, 21, buf.CurrentLBA())

	require.NoError(t, buf.AdvanceSector())
	require.EqualValues(t, ClusterID(3), buf.currentCluster)
	require.EqualValues(t, 22, buf.CurrentLBA())

	require.NoError(t, buf.AdvanceSector())
	require.EqualValues(t, 23, buf.CurrentLBA())

	err = buf.AdvanceSector()
	require.True(t, errors.Is(err, ioerr.ErrEndOfChain))
}

func TestSectorBufferFat16RootFlatRun(t *testing.T) {
	dev := devicetest.NewZeroedRAMDevice(200, 512)
	table, err := NewFatTable(dev, 10, 4, Fat16)
	require.NoError(t, err)

	mapper := fakeMapper{rootDirLBA: 50, rootDirSectors: 2}
	buf := NewSectorBuffer(dev, mapper, table, FolderOwnerID)
	require.NoError(t, buf.LoadRootDirectory(Fat16, 0))
	require.EqualValues(t, 50, buf.CurrentLBA())

	require.NoError(t, buf.AdvanceSector())
	require.EqualValues(t, 51, buf.CurrentLBA())

	err = buf.AdvanceSector()
	require.True(t, errors.Is(err, ioerr.ErrEndOfChain))
}

func TestSectorBufferFlushWritesDirtyBytesBack(t *testing.T) {
	dev := devicetest.NewZeroedRAMDevice(200, 512)
	table, err := NewFatTable(dev, 10, 4, Fat16)
	require.NoError(t, err)

	mapper := fakeMapper{rootDirLBA: 50, rootDirSectors: 2}
	buf := NewSectorBuffer(dev, mapper, table, FolderOwnerID)
	require.NoError(t, buf.LoadRootDirectory(Fat16, 0))

	buf.Bytes()[0] = 0x42
	buf.MarkDirty()
	require.NoError(t, buf.Flush())

	reread := make([]byte, 512)
	require.NoError(t, dev.ReadBlock(50, reread))
	require.EqualValues(t, 0x42, reread[0])
}
