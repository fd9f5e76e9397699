package ext2

import (
	"encoding/binary"
	"fmt"

	litecore "github.com/nekogakure/liteCore"
)

// On-disk constants. All multi-byte fields are little-endian.
const (
	// SuperMagic sits at byte offset 56 of the superblock record.
	SuperMagic = 0xEF53

	// SuperblockOffset is the byte offset of the superblock on the volume.
	SuperblockOffset = 1024

	// RootIno is the fixed inode number of the root directory.
	RootIno = 2

	// groupDescSize is the on-disk size of one block group descriptor.
	groupDescSize = 32

	// inodeRecordSize is the legacy 128-byte inode record this driver
	// decodes and encodes.
	inodeRecordSize = 128

	// direntHeaderSize is the fixed prefix of a directory record before
	// the name bytes.
	direntHeaderSize = 8

	// inlineSymlinkMax is the longest symlink target stored directly in
	// the inode's block-pointer array instead of a data block.
	inlineSymlinkMax = 60
)

// Mode format bits (upper nibble of Inode.Mode).
const (
	ModeFmtMask    = 0xF000
	ModeFmtDir     = 0x4000
	ModeFmtRegular = 0x8000
	ModeFmtSymlink = 0xA000
)

// Directory entry file types.
const (
	FileTypeUnknown = 0
	FileTypeRegular = 1
	FileTypeDir     = 2
	FileTypeSymlink = 7
)

var le = binary.LittleEndian

// Superblock is the decoded on-disk superblock.
type Superblock struct {
	InodesCount     uint32
	BlocksCount     uint32
	RBlocksCount    uint32
	FreeBlocksCount uint32
	FreeInodesCount uint32
	FirstDataBlock  uint32
	LogBlockSize    uint32
	LogFragSize     uint32
	BlocksPerGroup  uint32
	FragsPerGroup   uint32
	InodesPerGroup  uint32
	MTime           uint32
	WTime           uint32
	MntCount        uint16
	MaxMntCount     uint16
	Magic           uint16
	State           uint16
	Errors          uint16
	MinorRevLevel   uint16
	LastCheck       uint32
	CheckInterval   uint32
	CreatorOS       uint32
	RevLevel        uint32
	DefResUID       uint16
	DefResGID       uint16

	// Extended fields, valid when RevLevel >= 1.
	FirstIno  uint32
	InodeSize uint16
}

// decodeSuperblock decodes the superblock record starting at b[0] and
// validates the magic number.
func decodeSuperblock(b []byte) (Superblock, error) {
	var sb Superblock
	if len(b) < 90 {
		return sb, fmt.Errorf("%w: superblock record truncated (%d bytes)", litecore.ErrCorrupt, len(b))
	}
	sb.Magic = le.Uint16(b[56:])
	if sb.Magic != SuperMagic {
		return sb, fmt.Errorf("%w: not an ext2 volume (magic 0x%04x)", litecore.ErrCorrupt, sb.Magic)
	}

	sb.InodesCount = le.Uint32(b[0:])
	sb.BlocksCount = le.Uint32(b[4:])
	sb.RBlocksCount = le.Uint32(b[8:])
	sb.FreeBlocksCount = le.Uint32(b[12:])
	sb.FreeInodesCount = le.Uint32(b[16:])
	sb.FirstDataBlock = le.Uint32(b[20:])
	sb.LogBlockSize = le.Uint32(b[24:])
	sb.LogFragSize = le.Uint32(b[28:])
	sb.BlocksPerGroup = le.Uint32(b[32:])
	sb.FragsPerGroup = le.Uint32(b[36:])
	sb.InodesPerGroup = le.Uint32(b[40:])
	sb.MTime = le.Uint32(b[44:])
	sb.WTime = le.Uint32(b[48:])
	sb.MntCount = le.Uint16(b[52:])
	sb.MaxMntCount = le.Uint16(b[54:])
	sb.State = le.Uint16(b[58:])
	sb.Errors = le.Uint16(b[60:])
	sb.MinorRevLevel = le.Uint16(b[62:])
	sb.LastCheck = le.Uint32(b[64:])
	sb.CheckInterval = le.Uint32(b[68:])
	sb.CreatorOS = le.Uint32(b[72:])
	sb.RevLevel = le.Uint32(b[76:])
	sb.DefResUID = le.Uint16(b[80:])
	sb.DefResGID = le.Uint16(b[82:])

	if sb.RevLevel >= 1 {
		sb.FirstIno = le.Uint32(b[84:])
		sb.InodeSize = le.Uint16(b[88:])
	} else {
		sb.FirstIno = 11
		sb.InodeSize = inodeRecordSize
	}

	if sb.BlocksPerGroup == 0 || sb.InodesPerGroup == 0 {
		return sb, fmt.Errorf("%w: zero blocks or inodes per group", litecore.ErrCorrupt)
	}
	return sb, nil
}

// Inode is the decoded legacy 128-byte inode record.
type Inode struct {
	Mode       uint16
	UID        uint16
	Size       uint32
	ATime      uint32
	CTime      uint32
	MTime      uint32
	DTime      uint32
	GID        uint16
	LinksCount uint16
	Blocks     uint32 // 512-byte sector count, not fs blocks
	Flags      uint32
	OSD1       uint32
	Block      [15]uint32
	Generation uint32
	FileACL    uint32
	DirACL     uint32
	FAddr      uint32
}

// IsDir reports whether the inode's format bits mark a directory.
func (i *Inode) IsDir() bool { return i.Mode&ModeFmtMask == ModeFmtDir }

// IsRegular reports whether the inode's format bits mark a regular file.
func (i *Inode) IsRegular() bool { return i.Mode&ModeFmtMask == ModeFmtRegular }

// IsSymlink reports whether the inode's format bits mark a symbolic link.
func (i *Inode) IsSymlink() bool { return i.Mode&ModeFmtMask == ModeFmtSymlink }

// decodeInode decodes the record starting at b[0].
func decodeInode(b []byte) (Inode, error) {
	var ino Inode
	if len(b) < inodeRecordSize {
		return ino, fmt.Errorf("%w: inode record truncated (%d bytes)", litecore.ErrCorrupt, len(b))
	}
	ino.Mode = le.Uint16(b[0:])
	ino.UID = le.Uint16(b[2:])
	ino.Size = le.Uint32(b[4:])
	ino.ATime = le.Uint32(b[8:])
	ino.CTime = le.Uint32(b[12:])
	ino.MTime = le.Uint32(b[16:])
	ino.DTime = le.Uint32(b[20:])
	ino.GID = le.Uint16(b[24:])
	ino.LinksCount = le.Uint16(b[26:])
	ino.Blocks = le.Uint32(b[28:])
	ino.Flags = le.Uint32(b[32:])
	ino.OSD1 = le.Uint32(b[36:])
	for i := 0; i < 15; i++ {
		ino.Block[i] = le.Uint32(b[40+i*4:])
	}
	ino.Generation = le.Uint32(b[100:])
	ino.FileACL = le.Uint32(b[104:])
	ino.DirACL = le.Uint32(b[108:])
	ino.FAddr = le.Uint32(b[112:])
	return ino, nil
}

// encodeInode writes the record into b[0:128].
func encodeInode(b []byte, ino *Inode) error {
	if len(b) < inodeRecordSize {
		return fmt.Errorf("%w: inode encode buffer too small", litecore.ErrInvalidArgument)
	}
	le.PutUint16(b[0:], ino.Mode)
	le.PutUint16(b[2:], ino.UID)
	le.PutUint32(b[4:], ino.Size)
	le.PutUint32(b[8:], ino.ATime)
	le.PutUint32(b[12:], ino.CTime)
	le.PutUint32(b[16:], ino.MTime)
	le.PutUint32(b[20:], ino.DTime)
	le.PutUint16(b[24:], ino.GID)
	le.PutUint16(b[26:], ino.LinksCount)
	le.PutUint32(b[28:], ino.Blocks)
	le.PutUint32(b[32:], ino.Flags)
	le.PutUint32(b[36:], ino.OSD1)
	for i := 0; i < 15; i++ {
		le.PutUint32(b[40+i*4:], ino.Block[i])
	}
	le.PutUint32(b[100:], ino.Generation)
	le.PutUint32(b[104:], ino.FileACL)
	le.PutUint32(b[108:], ino.DirACL)
	le.PutUint32(b[112:], ino.FAddr)
	return nil
}

// inlineTarget returns the raw little-endian bytes of the block-pointer
// array, where short symlink targets live.
func (i *Inode) inlineTarget(n uint32) []byte {
	raw := make([]byte, 60)
	for k := 0; k < 15; k++ {
		le.PutUint32(raw[k*4:], i.Block[k])
	}
	if n > 60 {
		n = 60
	}
	return raw[:n]
}

// dirent is one variable-length directory record.
type dirent struct {
	Inode    uint32
	RecLen   uint16
	NameLen  uint8
	FileType uint8
	Name     []byte
}

// decodeDirent decodes the record starting at b[0]. A RecLen of zero is
// returned as-is; callers treat it as the block terminator.
func decodeDirent(b []byte) (dirent, error) {
	var d dirent
	if len(b) < direntHeaderSize {
		return d, fmt.Errorf("%w: directory record truncated", litecore.ErrCorrupt)
	}
	d.Inode = le.Uint32(b[0:])
	d.RecLen = le.Uint16(b[4:])
	d.NameLen = b[6]
	d.FileType = b[7]
	if d.RecLen == 0 {
		return d, nil
	}
	if int(d.RecLen) < direntHeaderSize || int(d.NameLen)+direntHeaderSize > int(d.RecLen) {
		return d, fmt.Errorf("%w: directory record rec_len %d name_len %d",
			litecore.ErrCorrupt, d.RecLen, d.NameLen)
	}
	if int(d.NameLen)+direntHeaderSize > len(b) {
		return d, fmt.Errorf("%w: directory record name past block end", litecore.ErrCorrupt)
	}
	d.Name = b[direntHeaderSize : direntHeaderSize+int(d.NameLen)]
	return d, nil
}

// encodeDirent writes the record header and name at b[0:].
func encodeDirent(b []byte, d *dirent) error {
	if len(b) < direntHeaderSize+len(d.Name) {
		return fmt.Errorf("%w: directory encode buffer too small", litecore.ErrInvalidArgument)
	}
	le.PutUint32(b[0:], d.Inode)
	le.PutUint16(b[4:], d.RecLen)
	b[6] = d.NameLen
	b[7] = d.FileType
	copy(b[direntHeaderSize:], d.Name)
	return nil
}

// direntRecordSize is the minimal 4-byte-aligned size of a record holding a
// name of the given length.
func direntRecordSize(nameLen int) uint16 {
	return uint16((direntHeaderSize + nameLen + 3) &^ 3)
}
