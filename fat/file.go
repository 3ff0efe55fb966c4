package fat

import (
	"errors"

	"github.com/embedfat/sdfat/ioerr"
)

// FileMode governs what operations an open File permits (spec §3).
type FileMode int

const (
	Read FileMode = iota
	Append
	ReadPlus
	AppendPlus
)

func (m FileMode) writable() bool {
	return m == Append || m == ReadPlus || m == AppendPlus
}

// SeekOrigin selects the reference point for File.SeekRead/SeekWrite.
type SeekOrigin int

const (
	SeekSet SeekOrigin = iota
	SeekCur
	SeekEnd
)

// File is one open stream over a cluster chain: an independent read cursor
// and write cursor, a private SectorBuffer, and the on-disk location of its
// own 32-byte directory entry (spec §3).
type File struct {
	id   uint32
	mode FileMode

	volume *Volume
	buffer *SectorBuffer

	firstCluster        ClusterID
	length              uint32
	maxAllocatedSectors uint32

	dirSectorLBA   LBA
	dirEntryOffset int

	readCursor  uint32
	writeCursor uint32

	metadataDirty bool
}

// Open implements spec §4.4.3.
func Open(v *Volume, name string, mode FileMode) (*File, error) {
	if !v.mounted {
		return nil, ioerr.ErrFilesystemNotMounted
	}

	dirLBA, offset, err := v.Find(name)

	switch {
	case err == nil:
		// found; proceed below

	case errors.Is(err, ioerr.ErrEndOfChain):
		if !mode.writable() {
			return nil, ioerr.ErrFilenameNotFound
		}
		if extendErr := v.fatTable.ExtendChain(v.dirBuffer); extendErr != nil {
			return nil, extendErr
		}
		if advErr := v.dirBuffer.AdvanceSector(); advErr != nil {
			return nil, advErr
		}
		dirLBA = v.dirBuffer.CurrentLBA()
		offset = 0
		if _, createErr := v.CreateEntry(name, offset); createErr != nil {
			return nil, createErr
		}

	case errors.Is(err, ioerr.ErrFilenameNotFound):
		if !mode.writable() {
			return nil, err
		}
		if _, createErr := v.CreateEntry(name, offset); createErr != nil {
			return nil, createErr
		}

	default:
		return nil, err
	}

	// v.dirBuffer is left positioned at dirLBA by both Find (the err==nil
	// and ErrFilenameNotFound cases) and the ErrEndOfChain case above, and
	// CreateEntry writes straight into it without flushing to disk — so the
	// authoritative copy of a freshly created entry lives in the buffer,
	// not yet on the device. Read through it rather than re-reading stale
	// bytes from the block device.
	raw := make([]byte, DirentSize)
	copy(raw, v.dirBuffer.Bytes()[offset:offset+DirentSize])

	if direntIsSubdirectory(raw) {
		return nil, ioerr.ErrEntryNotFile
	}

	firstCluster := ClusterID(direntFirstCluster(raw, v.fatKind))
	length := direntLength(raw)

	sectorSize := uint32(v.device.SectorSize())
	sectorsPerCluster := uint32(1) << v.sectorsPerClusterShift
	clusterBytes := sectorsPerCluster * sectorSize
	sectorsNeeded := (length + sectorSize - 1) / sectorSize
	clustersNeeded := (uint32(sectorsNeeded)*sectorSize + clusterBytes - 1) / clusterBytes
	if clustersNeeded == 0 && firstCluster != 0 {
		// create_entry always hands a brand-new file exactly one cluster
		// up front, even before any bytes are written to it.
		clustersNeeded = 1
	}
	maxAllocatedSectors := clustersNeeded * sectorsPerCluster

	f := &File{
		id:                  v.nextID(),
		mode:                mode,
		volume:              v,
		firstCluster:        firstCluster,
		length:              length,
		maxAllocatedSectors: maxAllocatedSectors,
		dirSectorLBA:        dirLBA,
		dirEntryOffset:      offset,
	}

	f.buffer = NewSectorBuffer(v.device, v, v.fatTable, f.id)
	if err := f.buffer.LoadCluster(firstCluster); err != nil {
		return nil, err
	}

	if mode == Append || mode == AppendPlus {
		f.writeCursor = length
	}

	return f, nil
}

// ReadByte implements spec §4.4.5's fgetc.
func (f *File) ReadByte() (byte, error) {
	if f.readCursor >= f.length {
		return 0, ioerr.ErrEndOfChain.WithMessage("EOF")
	}

	sectorSize := uint32(f.volume.device.SectorSize())
	b := f.buffer.Bytes()[f.readCursor%sectorSize]
	f.readCursor++

	if f.readCursor%sectorSize == 0 && f.readCursor < f.length {
		if err := f.buffer.AdvanceSector(); err != nil {
			return 0, err
		}
	}
	return b, nil
}

// ReadLine implements spec §4.4.5's fgets: reads until '\n', n-1 bytes, or
// EOF, always returning what it read (without a trailing newline) plus a
// bool reporting whether more data may follow.
func (f *File) ReadLine(n int) (string, bool, error) {
	buf := make([]byte, 0, n)
	for len(buf) < n-1 {
		b, err := f.ReadByte()
		if err != nil {
			if errors.Is(err, ioerr.ErrEndOfChain) {
				return string(buf), false, nil
			}
			return string(buf), false, err
		}
		if b == '\n' {
			return string(buf), true, nil
		}
		buf = append(buf, b)
	}
	return string(buf), true, nil
}

// WriteByte implements spec §4.4.6's fputc.
func (f *File) WriteByte(b byte) error {
	if !f.mode.writable() {
		return ioerr.ErrInvalidFileMode
	}

	sectorSize := uint32(f.volume.device.SectorSize())
	allocatedBytes := f.maxAllocatedSectors * sectorSize
	if f.writeCursor >= allocatedBytes {
		if err := f.volume.fatTable.ExtendChain(f.buffer); err != nil {
			return err
		}
		if err := f.buffer.AdvanceSector(); err != nil {
			return err
		}
		f.maxAllocatedSectors += uint32(1) << f.volume.sectorsPerClusterShift
	} else if f.writeCursor > 0 && f.writeCursor%sectorSize == 0 {
		if err := f.buffer.AdvanceSector(); err != nil {
			return err
		}
	}

	f.buffer.Bytes()[f.writeCursor%sectorSize] = b
	f.buffer.MarkDirty()
	f.writeCursor++

	if f.writeCursor > f.length {
		f.length = f.writeCursor
		f.metadataDirty = true
	}
	return nil
}

// WriteString writes every byte of s via WriteByte.
func (f *File) WriteString(s string) error {
	for i := 0; i < len(s); i++ {
		if err := f.WriteByte(s[i]); err != nil {
			return err
		}
	}
	return nil
}

// TellRead and TellWrite return the current read and write cursor positions.
func (f *File) TellRead() uint32  { return f.readCursor }
func (f *File) TellWrite() uint32 { return f.writeCursor }

// EOF reports whether the read cursor has reached the end of the file.
func (f *File) EOF() bool { return f.readCursor >= f.length }

// Length returns the file's current size in bytes.
func (f *File) Length() uint32 { return f.length }

func (f *File) resolveSeekTarget(offset int32, origin SeekOrigin, cursor uint32) (uint32, error) {
	var base int64
	switch origin {
	case SeekSet:
		base = 0
	case SeekCur:
		base = int64(cursor)
	case SeekEnd:
		base = int64(f.length)
	}
	target := base + int64(offset)
	if target < 0 || target > int64(f.length) {
		return 0, ioerr.ErrInvalidFilename.WithMessage("seek target out of range")
	}
	return uint32(target), nil
}

// seekTo implements the shared walk described in spec §4.4.7 for both
// SeekRead and SeekWrite: if target falls within the currently loaded
// sector the cursor alone moves; otherwise the chain is walked from
// first_cluster to locate the containing cluster and sector.
func (f *File) seekTo(target uint32, cursor uint32) error {
	sectorSize := uint32(f.volume.device.SectorSize())
	currentSectorStart := cursor - (cursor % sectorSize)
	if target >= currentSectorStart && target < currentSectorStart+sectorSize {
		return nil
	}

	if err := f.buffer.Flush(); err != nil {
		return err
	}

	clusterBytes := (uint32(1) << f.volume.sectorsPerClusterShift) * sectorSize
	clusterIndex := target / clusterBytes
	withinClusterByte := target % clusterBytes
	sectorWithinCluster := withinClusterByte / sectorSize

	cluster := f.firstCluster
	for i := uint32(0); i < clusterIndex; i++ {
		next, err := f.volume.fatTable.ValueOf(uint32(cluster))
		if err != nil {
			return err
		}
		if IsEndOfChain(f.volume.fatKind, next) {
			return ioerr.ErrEndOfChain
		}
		cluster = ClusterID(next)
	}

	if err := f.buffer.LoadCluster(cluster); err != nil {
		return err
	}
	for s := uint32(0); s < sectorWithinCluster; s++ {
		if err := f.buffer.AdvanceSector(); err != nil {
			return err
		}
	}
	return nil
}

// SeekRead repositions the read cursor.
func (f *File) SeekRead(offset int32, origin SeekOrigin) error {
	target, err := f.resolveSeekTarget(offset, origin, f.readCursor)
	if err != nil {
		return err
	}
	if err := f.seekTo(target, f.readCursor); err != nil {
		return err
	}
	f.readCursor = target
	return nil
}

// SeekWrite repositions the write cursor.
func (f *File) SeekWrite(offset int32, origin SeekOrigin) error {
	target, err := f.resolveSeekTarget(offset, origin, f.writeCursor)
	if err != nil {
		return err
	}
	if err := f.seekTo(target, f.writeCursor); err != nil {
		return err
	}
	f.writeCursor = target
	return nil
}

// Close implements spec §4.4.8: flush the file's buffer, rewrite its
// directory entry if metadata changed, and flush the FAT.
func (f *File) Close() error {
	if err := f.buffer.Flush(); err != nil {
		return err
	}

	if f.metadataDirty {
		if err := f.volume.updateDirentLength(f.dirSectorLBA, f.dirEntryOffset, f.length); err != nil {
			return err
		}
		f.metadataDirty = false
	}

	return f.volume.fatTable.Flush()
}
