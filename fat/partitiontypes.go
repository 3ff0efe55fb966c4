package fat

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/embedfat/sdfat/ioerr"
)

//go:embed partitiontypes.csv
var partitionTypesCSV []byte

// hexByte parses CSV cells like "0x0C" into a byte, via gocsv's
// TypeUnmarshaller hook.
type hexByte byte

func (h *hexByte) UnmarshalCSV(value string) error {
	v, err := strconv.ParseUint(strings.TrimPrefix(value, "0x"), 16, 8)
	if err != nil {
		return fmt.Errorf("partition type %q: %w", value, err)
	}
	*h = hexByte(v)
	return nil
}

type partitionTypeRow struct {
	Type  hexByte `csv:"Type"`
	Name  string  `csv:"Name"`
	Fat32 bool    `csv:"Fat32"`
}

// PartitionTypeInfo describes one whitelisted MBR partition type byte.
type PartitionTypeInfo struct {
	Name  string
	Fat32 bool
}

var knownPartitionTypes map[byte]PartitionTypeInfo

func init() {
	var rows []partitionTypeRow
	if err := gocsv.UnmarshalBytes(partitionTypesCSV, &rows); err != nil {
		panic(fmt.Sprintf("fat: embedded partitiontypes.csv is malformed: %v", err))
	}

	knownPartitionTypes = make(map[byte]PartitionTypeInfo, len(rows))
	for _, row := range rows {
		knownPartitionTypes[byte(row.Type)] = PartitionTypeInfo{
			Name:  row.Name,
			Fat32: row.Fat32,
		}
	}
}

// LookupPartitionType returns whether partitionType is a recognized FAT
// partition type, and if so, the matching descriptor.
func LookupPartitionType(partitionType byte) (PartitionTypeInfo, bool) {
	info, ok := knownPartitionTypes[partitionType]
	return info, ok
}

// ValidatePartitionType returns ioerr.ErrUnsupportedFilesystem if
// partitionType isn't one of the whitelisted FAT partition types.
func ValidatePartitionType(partitionType byte) error {
	if _, ok := knownPartitionTypes[partitionType]; !ok {
		return ioerr.ErrUnsupportedFilesystem.WithMessage(
			fmt.Sprintf("partition type 0x%02X is not a recognized FAT partition type", partitionType))
	}
	return nil
}
