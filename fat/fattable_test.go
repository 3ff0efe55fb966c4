package fat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embedfat/sdfat/devicetest"
)

func newFat32Table(t *testing.T, fatSizeSectors uint32) (*devicetest.RAMDevice, *FatTable) {
	t.Helper()
	dev := devicetest.NewZeroedRAMDevice(fatSizeSectors*2+10, 512)
	table, err := NewFatTable(dev, 0, fatSizeSectors, Fat32)
	require.NoError(t, err)
	return dev, table
}

func TestFatTableValueOfFreeCluster(t *testing.T) {
	_, table := newFat32Table(t, 4)
	value, err := table.ValueOf(100)
	require.NoError(t, err)
	require.Zero(t, value)
}

func TestFatTableFindEmptySkipsFirstNineOnFat32Sector0(t *testing.T) {
	_, table := newFat32Table(t, 4)

	cluster, err := table.FindEmpty(false)
	require.NoError(t, err)
	require.EqualValues(t, 9, cluster)

	value, err := table.ValueOf(cluster)
	require.NoError(t, err)
	require.True(t, IsEndOfChain(Fat32, value))
}

func TestFatTableExtendChainLinksNewCluster(t *testing.T) {
	dev, table := newFat32Table(t, 4)

	// Seed cluster 9 as an existing end-of-chain cluster owned by our
	// buffer under test.
	require.NoError(t, devicetest.WriteRawFatEntry(dev, 0, 4, true, 9, EOCMarker(Fat32)))
	require.NoError(t, table.loadSector(0))

	buf := &SectorBuffer{currentCluster: 9}
	require.NoError(t, table.ExtendChain(buf))

	require.EqualValues(t, 10, buf.nextCluster)

	value, err := table.ValueOf(9)
	require.NoError(t, err)
	require.EqualValues(t, 10, value)

	next, err := table.ValueOf(10)
	require.NoError(t, err)
	require.True(t, IsEndOfChain(Fat32, next))
}

func TestFatTableExtendChainRejectsNonEOC(t *testing.T) {
	dev, table := newFat32Table(t, 4)
	require.NoError(t, devicetest.WriteRawFatEntry(dev, 0, 4, true, 9, 55))
	require.NoError(t, table.loadSector(0))

	buf := &SectorBuffer{currentCluster: 9}
	err := table.ExtendChain(buf)
	require.Error(t, err)
}

func TestFatTableFlushMirrorsBothCopies(t *testing.T) {
	dev, table := newFat32Table(t, 4)

	_, err := table.FindEmpty(false)
	require.NoError(t, err)
	require.NoError(t, table.Flush())

	primary := make([]byte, 512)
	mirror := make([]byte, 512)
	require.NoError(t, dev.ReadBlock(0, primary))
	require.NoError(t, dev.ReadBlock(4, mirror))
	require.Equal(t, primary, mirror)
}
