package fat16

import (
	"encoding/binary"
	"fmt"
	"strings"

	litecore "github.com/nekogakure/liteCore"
)

// On-disk constants. All multi-byte fields are little-endian.
const (
	// bytesPerSector is the only sector size this driver accepts.
	bytesPerSector = 512

	// direntSize is the fixed size of one directory record.
	direntSize = 32

	// bootSigOffset is where the 0x55 0xAA boot signature sits in sector 0.
	bootSigOffset = 510
)

// Directory entry attribute bits.
const (
	AttrReadOnly = 0x01
	AttrHidden   = 0x02
	AttrSystem   = 0x04
	AttrVolumeID = 0x08
	AttrDir      = 0x10
	AttrArchive  = 0x20

	// attrLongName marks a VFAT long-name record; this driver skips those.
	attrLongName = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID
)

// FAT entry markers.
const (
	clusterFree = 0x0000
	clusterBad  = 0xFFF7

	// clusterEOC and above terminate a chain.
	clusterEOC = 0xFFF8

	// firstDataCluster is the lowest cluster number that maps to data.
	firstDataCluster = 2
)

// Directory slot markers (first name byte).
const (
	slotEndOfDir = 0x00
	slotDeleted  = 0xE5
)

var le = binary.LittleEndian

// BPB is the decoded BIOS parameter block from sector 0.
type BPB struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	MaxRootEntries    uint16
	TotalSectors16    uint16
	FATSizeSectors    uint16
	TotalSectors32    uint32
}

// TotalSectors returns the 16-bit count when set, otherwise the 32-bit one.
func (b *BPB) TotalSectors() uint32 {
	if b.TotalSectors16 != 0 {
		return uint32(b.TotalSectors16)
	}
	return b.TotalSectors32
}

// decodeBPB decodes and validates the boot sector. Only 512-byte sectors are
// supported; anything else is rejected with litecore.ErrUnsupported.
func decodeBPB(sector []byte) (BPB, error) {
	var b BPB
	if len(sector) < bytesPerSector {
		return b, fmt.Errorf("%w: boot sector truncated (%d bytes)", litecore.ErrCorrupt, len(sector))
	}
	if sector[bootSigOffset] != 0x55 || sector[bootSigOffset+1] != 0xAA {
		return b, fmt.Errorf("%w: missing boot signature", litecore.ErrCorrupt)
	}

	b.BytesPerSector = le.Uint16(sector[11:])
	b.SectorsPerCluster = sector[13]
	b.ReservedSectors = le.Uint16(sector[14:])
	b.NumFATs = sector[16]
	b.MaxRootEntries = le.Uint16(sector[17:])
	b.TotalSectors16 = le.Uint16(sector[19:])
	b.FATSizeSectors = le.Uint16(sector[22:])
	b.TotalSectors32 = le.Uint32(sector[32:])

	if b.BytesPerSector != bytesPerSector {
		return b, fmt.Errorf("%w: %d bytes per sector", litecore.ErrUnsupported, b.BytesPerSector)
	}
	if b.SectorsPerCluster == 0 || b.NumFATs == 0 || b.FATSizeSectors == 0 {
		return b, fmt.Errorf("%w: zero geometry field in BPB", litecore.ErrCorrupt)
	}
	return b, nil
}

// shortName converts a file name to the padded 8.3 on-disk form, uppercased.
func shortName(name string) ([11]byte, error) {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}

	base := name
	ext := ""
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		base = name[:i]
		ext = name[i+1:]
	}
	if base == "" || len(base) > 8 || len(ext) > 3 {
		return out, fmt.Errorf("%w: %q does not fit 8.3", litecore.ErrInvalidArgument, name)
	}
	for i := 0; i < len(base); i++ {
		out[i] = upperByte(base[i])
	}
	for i := 0; i < len(ext); i++ {
		out[8+i] = upperByte(ext[i])
	}
	return out, nil
}

// displayName converts the padded on-disk form back to "BASE.EXT".
func displayName(raw [11]byte) string {
	base := strings.TrimRight(string(raw[:8]), " ")
	ext := strings.TrimRight(string(raw[8:]), " ")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

func upperByte(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// dirEntry is one decoded 32-byte directory record.
type dirEntry struct {
	Name         [11]byte
	Attr         uint8
	StartCluster uint16
	Size         uint32
}

func (d *dirEntry) isDir() bool      { return d.Attr&AttrDir != 0 }
func (d *dirEntry) isLabel() bool    { return d.Attr&AttrVolumeID != 0 && d.Attr != attrLongName }
func (d *dirEntry) isLongName() bool { return d.Attr == attrLongName }

// decodeDirEntry decodes the record starting at b[0].
func decodeDirEntry(b []byte) dirEntry {
	var d dirEntry
	copy(d.Name[:], b[:11])
	d.Attr = b[11]
	d.StartCluster = le.Uint16(b[26:])
	d.Size = le.Uint32(b[28:])
	return d
}

// encodeDirEntry writes the record into b[0:32]. Fields outside the decoded
// set (times, dates) are zeroed.
func encodeDirEntry(b []byte, d *dirEntry) {
	for i := 0; i < direntSize; i++ {
		b[i] = 0
	}
	copy(b[:11], d.Name[:])
	b[11] = d.Attr
	le.PutUint16(b[26:], d.StartCluster)
	le.PutUint32(b[28:], d.Size)
}
