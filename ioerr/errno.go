// Package ioerr's error taxonomy for the FAT driver (§7 of the spec). Every
// kind named there gets one sentinel constant below; nothing here is specific
// to a single package upstream, so volume, FAT-table, and sector-buffer code
// all draw from this one set instead of layering their own.
package ioerr

// Device errors: surfaced verbatim from the BlockDevice, never retried.
const ErrDeviceRead = FatError("block device read failed")
const ErrDeviceWrite = FatError("block device write failed")
const ErrDeviceTimeout = FatError("block device timed out")

// Mount errors (§4.4.1).
const ErrFilesystemAlreadyMounted = FatError("filesystem already mounted")
const ErrFilesystemNotMounted = FatError("filesystem not mounted")
const ErrPartitionDoesNotExist = FatError("partition does not exist")
const ErrUnsupportedFilesystem = FatError("unsupported filesystem")
const ErrTooManyFats = FatError("volume does not have exactly two FATs")
const ErrBadSectorsPerCluster = FatError("sectors per cluster is not a power of two in [1, 128]")

// Structural errors.
const ErrEndOfChain = FatError("end of cluster chain")
const ErrReadingPastEoc = FatError("attempted to advance a buffer past end of chain")
const ErrInvalidFatAppend = FatError("FAT entry was not end-of-chain where one was expected")
const ErrEmptyFatEntry = FatError("encountered an unexpectedly free cluster mid-chain")

// Lookup errors (§4.4.2).
const ErrFilenameNotFound = FatError("file name not found")
const ErrEntryNotFile = FatError("directory entry is a subdirectory, not a file")
const ErrInvalidFilename = FatError("name is not a valid 8.3 filename")
const ErrNotADirectory = FatError("path component is not a directory")

// Mode errors.
const ErrInvalidFileMode = FatError("operation not permitted in this file's open mode")
const ErrFileWithoutBuffer = FatError("file handle has no associated sector buffer")

// ErrNoSpaceOnDevice is the FAT engine's equivalent of ENOSPC: the linear
// scan in FindEmpty ran off the end of the FAT without finding a free
// cluster.
const ErrNoSpaceOnDevice = FatError("no free cluster available")
