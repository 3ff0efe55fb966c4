package fat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embedfat/sdfat/devicetest"
)

// TestChdirIntoSubdirectoryAndBackViaDotEntries exercises spec §9's Chdir
// resolution: a single path component found via Find, followed by the
// on-disk "." and ".." entries a FAT subdirectory carries as its own first
// two entries.
func TestChdirIntoSubdirectoryAndBackViaDotEntries(t *testing.T) {
	dev, v := newFat16TestVolume(t)

	const (
		reserved = 1
		fatSize  = 40
	)
	fatStart := uint32(reserved)
	rootDirLBA := fatStart + 2*fatSize
	dataStart := rootDirLBA + 1

	const subdirCluster = 2
	subdirLBA := dataStart + (subdirCluster - 2)

	require.NoError(t, devicetest.WriteRawFatEntry(dev, fatStart, fatSize, false, subdirCluster, 0xFFFF))
	// The FAT table cached sector 0 at mount time, before this raw write.
	require.NoError(t, v.fatTable.loadSector(0))

	subdirEntry := devicetest.RawDirentBytes("SUBDIR", "", AttrSubdir, subdirCluster, 0)
	require.NoError(t, devicetest.WriteDirEntry(dev, rootDirLBA, 0, subdirEntry))

	dotEntry := devicetest.RawDirentBytes(".", "", AttrSubdir, subdirCluster, 0)
	dotDotEntry := devicetest.RawDirentBytes("..", "", AttrSubdir, 0, 0)
	require.NoError(t, devicetest.WriteDirEntry(dev, subdirLBA, 0, dotEntry))
	require.NoError(t, devicetest.WriteDirEntry(dev, subdirLBA, 32, dotDotEntry))

	require.NoError(t, v.rewindDirBuffer())
	require.NoError(t, v.Chdir("SUBDIR"))
	require.False(t, v.currentDirIsRoot)
	require.EqualValues(t, subdirCluster, v.currentDirFirstCluster)

	require.NoError(t, v.Chdir("."))
	require.False(t, v.currentDirIsRoot)

	require.NoError(t, v.Chdir(".."))
	require.True(t, v.currentDirIsRoot)
}
