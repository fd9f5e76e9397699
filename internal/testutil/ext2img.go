// Package testutil builds tiny synthetic ext2 and FAT16 volume images for
// tests. Geometry is fixed and small; the builders favor directness over
// generality.
package testutil

import "encoding/binary"

var le = binary.LittleEndian

// PutUint32 writes v as the i-th little-endian 32-bit entry of b. Tests use
// it to hand-build indirect pointer blocks.
func PutUint32(b []byte, i int, v uint32) {
	le.PutUint32(b[i*4:], v)
}

// Fixed ext2 test geometry: one block group, 1024-byte blocks.
const (
	Ext2BlockSize      = 1024
	Ext2BlocksCount    = 256
	Ext2InodesCount    = 32
	Ext2FirstDataBlock = 1

	ext2GroupDescBlock = 2
	ext2BlockBitmapBlk = 3
	ext2InodeBitmapBlk = 4
	ext2InodeTableBlk  = 5 // 4 blocks: 32 inodes x 128 bytes
	ext2FirstFreeBlk   = 9

	Ext2RootIno = 2

	ext2ModeDir     = 0x4000
	ext2ModeRegular = 0x8000
	ext2ModeSymlink = 0xA000
)

type ext2Dirent struct {
	ino      uint32
	fileType uint8
	name     string
}

type ext2Dir struct {
	ino     uint32
	block   uint32
	entries []ext2Dirent
}

// Ext2Builder assembles an ext2 volume image.
type Ext2Builder struct {
	img       []byte
	nextBlock uint32
	nextInode uint32
	dirs      map[uint32]*ext2Dir
}

// NewExt2Builder creates an empty volume with a root directory.
func NewExt2Builder() *Ext2Builder {
	b := &Ext2Builder{
		img:       make([]byte, Ext2BlocksCount*Ext2BlockSize+Ext2BlockSize),
		nextBlock: ext2FirstFreeBlk,
		nextInode: 11, // 1-10 are reserved
		dirs:      make(map[uint32]*ext2Dir),
	}
	rootBlock := b.AllocBlock()
	b.dirs[Ext2RootIno] = &ext2Dir{ino: Ext2RootIno, block: rootBlock}
	b.addDirEntry(Ext2RootIno, Ext2RootIno, 2, ".")
	b.addDirEntry(Ext2RootIno, Ext2RootIno, 2, "..")
	b.SetInode(Ext2RootIno, ext2ModeDir|0755, Ext2BlockSize, [15]uint32{rootBlock}, 2)
	return b
}

// AllocBlock reserves the next free block and returns its number.
func (b *Ext2Builder) AllocBlock() uint32 {
	n := b.nextBlock
	b.nextBlock++
	return n
}

// AllocInode reserves the next free inode number.
func (b *Ext2Builder) AllocInode() uint32 {
	n := b.nextInode
	b.nextInode++
	return n
}

// BlockData returns the image slice backing block n.
func (b *Ext2Builder) BlockData(n uint32) []byte {
	return b.img[n*Ext2BlockSize : (n+1)*Ext2BlockSize]
}

// SetInode writes the 128-byte inode record for inodeNum.
func (b *Ext2Builder) SetInode(inodeNum uint32, mode uint16, size uint32, blocks [15]uint32, links uint16) {
	off := int(ext2InodeTableBlk)*Ext2BlockSize + int(inodeNum-1)*128
	rec := b.img[off : off+128]
	le.PutUint16(rec[0:], mode)
	le.PutUint32(rec[4:], size)
	le.PutUint16(rec[26:], links)
	for i, blk := range blocks {
		le.PutUint32(rec[40+i*4:], blk)
	}
}

// SetInodeRaw gives direct access to the 128-byte inode record.
func (b *Ext2Builder) SetInodeRaw(inodeNum uint32) []byte {
	off := int(ext2InodeTableBlk)*Ext2BlockSize + int(inodeNum-1)*128
	return b.img[off : off+128]
}

func (b *Ext2Builder) addDirEntry(dirIno, ino uint32, fileType uint8, name string) {
	b.dirs[dirIno].entries = append(b.dirs[dirIno].entries, ext2Dirent{ino: ino, fileType: fileType, name: name})
}

// AddDir creates a subdirectory of the root and returns its inode number.
func (b *Ext2Builder) AddDir(name string) uint32 {
	ino := b.AllocInode()
	block := b.AllocBlock()
	b.dirs[ino] = &ext2Dir{ino: ino, block: block}
	b.addDirEntry(ino, ino, 2, ".")
	b.addDirEntry(ino, Ext2RootIno, 2, "..")
	b.SetInode(ino, ext2ModeDir|0755, Ext2BlockSize, [15]uint32{block}, 2)
	b.addDirEntry(Ext2RootIno, ino, 2, name)
	return ino
}

// AddFile creates a regular file in dir (use Ext2RootIno for the root) from
// data, spanning direct blocks, and returns its inode number.
func (b *Ext2Builder) AddFile(dirIno uint32, name string, data []byte) uint32 {
	ino := b.AllocInode()
	var blocks [15]uint32
	remaining := data
	for i := 0; len(remaining) > 0 && i < 12; i++ {
		blk := b.AllocBlock()
		blocks[i] = blk
		n := copy(b.BlockData(blk), remaining)
		remaining = remaining[n:]
	}
	b.SetInode(ino, ext2ModeRegular|0644, uint32(len(data)), blocks, 1)
	b.addDirEntry(dirIno, ino, 1, name)
	return ino
}

// AddSymlink creates a symlink in the root directory. Targets of at most 60
// bytes are stored inline in the block-pointer area; longer targets get a
// data block.
func (b *Ext2Builder) AddSymlink(name, target string) uint32 {
	ino := b.AllocInode()
	if len(target) <= 60 {
		b.SetInode(ino, ext2ModeSymlink|0777, uint32(len(target)), [15]uint32{}, 1)
		rec := b.SetInodeRaw(ino)
		copy(rec[40:], target)
	} else {
		blk := b.AllocBlock()
		copy(b.BlockData(blk), target)
		b.SetInode(ino, ext2ModeSymlink|0777, uint32(len(target)), [15]uint32{blk}, 1)
	}
	b.addDirEntry(Ext2RootIno, ino, 7, name)
	return ino
}

// Build finalizes superblock, group descriptor, bitmaps and directory
// blocks, and returns the image.
func (b *Ext2Builder) Build() []byte {
	// Directory blocks: pack entries; the final record absorbs the slack.
	for _, d := range b.dirs {
		block := b.BlockData(d.block)
		off := 0
		for i, e := range d.entries {
			recLen := (8 + len(e.name) + 3) &^ 3
			if i == len(d.entries)-1 {
				recLen = Ext2BlockSize - off
			}
			le.PutUint32(block[off:], e.ino)
			le.PutUint16(block[off+4:], uint16(recLen))
			block[off+6] = uint8(len(e.name))
			block[off+7] = e.fileType
			copy(block[off+8:], e.name)
			off += recLen
		}
	}

	// Superblock at byte 1024.
	sb := b.img[1024:]
	usedBlocks := b.nextBlock - Ext2FirstDataBlock
	usedInodes := b.nextInode - 1
	le.PutUint32(sb[0:], Ext2InodesCount)
	le.PutUint32(sb[4:], Ext2BlocksCount)
	le.PutUint32(sb[12:], Ext2BlocksCount-usedBlocks)
	le.PutUint32(sb[16:], Ext2InodesCount-usedInodes)
	le.PutUint32(sb[20:], Ext2FirstDataBlock)
	le.PutUint32(sb[24:], 0) // log block size: 1024
	le.PutUint32(sb[32:], Ext2BlocksCount)
	le.PutUint32(sb[36:], Ext2BlocksCount)
	le.PutUint32(sb[40:], Ext2InodesCount)
	le.PutUint16(sb[56:], 0xEF53)
	le.PutUint32(sb[76:], 1) // rev level
	le.PutUint32(sb[84:], 11)
	le.PutUint16(sb[88:], 128)

	// Group descriptor.
	gd := b.BlockData(ext2GroupDescBlock)
	le.PutUint32(gd[0:], ext2BlockBitmapBlk)
	le.PutUint32(gd[4:], ext2InodeBitmapBlk)
	le.PutUint32(gd[8:], ext2InodeTableBlk)
	le.PutUint16(gd[12:], uint16(Ext2BlocksCount-usedBlocks))
	le.PutUint16(gd[14:], uint16(Ext2InodesCount-usedInodes))

	// Bitmaps: bit i covers block FirstDataBlock+i / inode i+1.
	bb := b.BlockData(ext2BlockBitmapBlk)
	for i := uint32(0); i < usedBlocks; i++ {
		bb[i/8] |= 1 << (i % 8)
	}
	ib := b.BlockData(ext2InodeBitmapBlk)
	for i := uint32(0); i < usedInodes; i++ {
		ib[i/8] |= 1 << (i % 8)
	}

	return b.img
}
