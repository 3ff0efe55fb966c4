package fat

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/noxer/bytewriter"

	"github.com/embedfat/sdfat/blockdev"
	"github.com/embedfat/sdfat/ioerr"
)

// On-disk 8.3 directory entry field offsets (spec §3).
const (
	direntOffName        = 0x00
	direntNameLen         = 8
	direntOffExt          = 0x08
	direntExtLen          = 3
	direntOffAttrs        = 0x0B
	direntOffFirstClusterHi = 0x14
	direntOffFirstClusterLo = 0x1A
	direntOffLength       = 0x1C

	direntFreeMarker    = 0x00
	direntDeletedMarker = 0xE5
	direntEscapedE5     = 0x05
)

// direntStatus classifies the first byte of a raw 32-byte directory entry.
type direntStatus int

const (
	direntLive direntStatus = iota
	direntDeleted
	direntEndOfDirectory
)

// classifyDirent inspects the first byte of a raw entry per spec §4.4.2.
func classifyDirent(raw []byte) direntStatus {
	switch raw[0] {
	case direntFreeMarker:
		return direntEndOfDirectory
	case direntDeletedMarker:
		return direntDeleted
	default:
		return direntLive
	}
}

// direntDisplayName reconstructs the canonical "NAME.EXT" string from a live
// raw entry, handling the 0x05 -> literal 0xE5 substitution for the first
// byte (spec §4.4.2).
func direntDisplayName(raw []byte) string {
	name := make([]byte, direntNameLen)
	copy(name, raw[direntOffName:direntOffName+direntNameLen])
	if name[0] == direntEscapedE5 {
		name[0] = direntDeletedMarker
	}

	nameStr := strings.TrimRight(string(name), " ")
	extStr := strings.TrimRight(string(raw[direntOffExt:direntOffExt+direntExtLen]), " ")

	if extStr == "" {
		return nameStr
	}
	return nameStr + "." + extStr
}

// direntFirstCluster extracts the first-cluster field, high word only
// present for FAT32.
func direntFirstCluster(raw []byte, kind FatKind) uint32 {
	low := uint32(blockdev.GetShort(raw, direntOffFirstClusterLo))
	if kind == Fat16 {
		return low
	}
	high := uint32(blockdev.GetShort(raw, direntOffFirstClusterHi))
	return MaskEntry(Fat32, (high<<16)|low)
}

// direntSetFirstCluster writes the first-cluster field(s).
func direntSetFirstCluster(raw []byte, kind FatKind, cluster uint32) {
	blockdev.PutShort(raw, direntOffFirstClusterLo, uint16(cluster))
	if kind == Fat32 {
		blockdev.PutShort(raw, direntOffFirstClusterHi, uint16(cluster>>16))
	}
}

func direntLength(raw []byte) uint32 {
	return blockdev.GetLong(raw, direntOffLength)
}

func direntSetLength(raw []byte, length uint32) {
	blockdev.PutLong(raw, direntOffLength, length)
}

func direntIsSubdirectory(raw []byte) bool {
	return raw[direntOffAttrs]&AttrSubdir != 0
}

// splitEightDotThree uppercases name and splits it into an 8-byte name field
// and 3-byte extension field, both space-padded, rejecting anything that
// isn't a valid 8.3 filename (spec §4.4.4).
func splitEightDotThree(name string) (nameField [8]byte, extField [3]byte, err error) {
	for i := range nameField {
		nameField[i] = ' '
	}
	for i := range extField {
		extField[i] = ' '
	}

	if len(name) == 0 || len(name) > direntNameLen+1+direntExtLen {
		return nameField, extField, ioerr.ErrInvalidFilename.WithMessage(
			fmt.Sprintf("%q is longer than 8.3 allows", name))
	}

	upper := strings.ToUpper(name)
	dotCount := strings.Count(upper, ".")
	if dotCount > 1 {
		return nameField, extField, ioerr.ErrInvalidFilename.WithMessage(
			fmt.Sprintf("%q has more than one '.'", name))
	}

	base := upper
	ext := ""
	if dotCount == 1 {
		parts := strings.SplitN(upper, ".", 2)
		base, ext = parts[0], parts[1]
		if len(ext) == 0 || len(ext) > direntExtLen {
			return nameField, extField, ioerr.ErrInvalidFilename.WithMessage(
				fmt.Sprintf("%q has an invalid extension", name))
		}
	}

	if len(base) == 0 || len(base) > direntNameLen {
		return nameField, extField, ioerr.ErrInvalidFilename.WithMessage(
			fmt.Sprintf("%q has an invalid base name", name))
	}

	if !isValidEightDotThreeChars(base) || !isValidEightDotThreeChars(ext) {
		return nameField, extField, ioerr.ErrInvalidFilename.WithMessage(
			fmt.Sprintf("%q contains characters outside 8.3 ASCII", name))
	}

	copy(nameField[:], base)
	copy(extField[:], ext)
	return nameField, extField, nil
}

func isValidEightDotThreeChars(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case strings.ContainsRune("$%'-_@~`!(){}^#&", c):
		default:
			return false
		}
	}
	return true
}

// buildNewDirent fills a fresh 32-byte entry for create_entry (spec
// §4.4.4): name/extension fields, the ARCHIVE attribute, and a zero length.
// The first-cluster fields are left zero; the caller fills them in once
// FindEmpty has produced a cluster.
//
// The fields are laid out sequentially on disk (name, ext, attribute, a
// reserved/timestamp block we don't populate, then length), so they're
// written through a bytewriter bound to the fixed 32-byte slice rather than
// poked at individual offsets.
func buildNewDirent(name string) ([]byte, error) {
	nameField, extField, err := splitEightDotThree(name)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, DirentSize)
	w := bytewriter.New(raw)

	binary.Write(w, binary.LittleEndian, nameField)
	binary.Write(w, binary.LittleEndian, extField)
	binary.Write(w, binary.LittleEndian, AttrArchive)

	reserved := make([]byte, direntOffFirstClusterLo-direntOffAttrs-1)
	binary.Write(w, binary.LittleEndian, reserved)

	binary.Write(w, binary.LittleEndian, uint16(0)) // first-cluster low, filled in by CreateEntry
	binary.Write(w, binary.LittleEndian, uint32(0)) // length

	return raw, nil
}

// canonicalCompareName normalizes a caller-supplied name the same way
// direntDisplayName does, for equality comparisons in find(). Only ASCII
// letters are uppercased, so a literal 0xE5 first byte is kept as is and
// matches an entry stored with the 0x05 escape.
func canonicalCompareName(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
