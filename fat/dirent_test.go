package fat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embedfat/sdfat/devicetest"
)

func TestDirentDisplayNameInsertsDotOnlyWhenExtensionPresent(t *testing.T) {
	withExt := devicetest.RawDirentBytes("HELLO", "TXT", AttrArchive, 3, 11)
	require.Equal(t, "HELLO.TXT", direntDisplayName(withExt))

	noExt := devicetest.RawDirentBytes("README", "", AttrArchive, 3, 0)
	require.Equal(t, "README", direntDisplayName(noExt))
}

func TestDirentEscapedE5FirstByte(t *testing.T) {
	raw := devicetest.RawDirentBytes("HELLO", "TXT", AttrArchive, 3, 11)
	raw[0] = 0x05

	require.Equal(t, direntLive, classifyDirent(raw))
	require.Equal(t, "\xE5ELLO.TXT", direntDisplayName(raw))
}

func TestClassifyDirentSpecialFirstBytes(t *testing.T) {
	deleted := devicetest.RawDirentBytes("GONE", "TXT", AttrArchive, 0, 0)
	deleted[0] = 0xE5
	require.Equal(t, direntDeleted, classifyDirent(deleted))

	terminator := make([]byte, DirentSize)
	require.Equal(t, direntEndOfDirectory, classifyDirent(terminator))
}

func TestSplitEightDotThreeRejectsTooLong(t *testing.T) {
	_, _, err := splitEightDotThree("WAYTOOLONGNAME.TXT")
	require.Error(t, err)
}

func TestSplitEightDotThreeRejectsMultipleDots(t *testing.T) {
	_, _, err := splitEightDotThree("A.B.C")
	require.Error(t, err)
}

func TestSplitEightDotThreeAcceptsValidName(t *testing.T) {
	name, ext, err := splitEightDotThree("hello.txt")
	require.NoError(t, err)
	require.Equal(t, "HELLO   ", string(name[:]))
	require.Equal(t, "TXT", string(ext[:]))
}

func TestBuildNewDirentLayout(t *testing.T) {
	raw, err := buildNewDirent("new.txt")
	require.NoError(t, err)
	require.Len(t, raw, DirentSize)
	require.Equal(t, "NEW     ", string(raw[direntOffName:direntOffName+direntNameLen]))
	require.Equal(t, "TXT", string(raw[direntOffExt:direntOffExt+direntExtLen]))
	require.EqualValues(t, AttrArchive, raw[direntOffAttrs])
	require.Zero(t, direntLength(raw))
	require.Zero(t, direntFirstCluster(raw, Fat32))
}

func TestDirentFirstClusterFat32CombinesHighAndLow(t *testing.T) {
	raw := devicetest.RawDirentBytes("BIG", "BIN", AttrArchive, 0x00020003, 4096)
	require.EqualValues(t, 0x00020003, direntFirstCluster(raw, Fat32))
	require.EqualValues(t, 0x0003, direntFirstCluster(raw, Fat16))
}
