package ext2

import (
	"fmt"

	litecore "github.com/nekogakure/liteCore"
)

// inodeLoc maps a 1-based inode number to the block number and in-block
// offset of its record.
func (v *Volume) inodeLoc(inodeNum uint32) (uint32, uint32, error) {
	if inodeNum == 0 {
		return 0, 0, fmt.Errorf("%w: inode 0", litecore.ErrInvalidArgument)
	}
	index := inodeNum - 1
	group := index / v.Super.InodesPerGroup
	localIndex := index % v.Super.InodesPerGroup
	if group >= v.NumGroups {
		return 0, 0, fmt.Errorf("%w: inode %d in group %d of %d",
			litecore.ErrCorrupt, inodeNum, group, v.NumGroups)
	}

	gdBlockNum, gdOffset := v.groupDescLoc(group)
	gdBlock := make([]byte, v.BlockSize)
	if err := v.readBlock(gdBlockNum, gdBlock); err != nil {
		return 0, 0, fmt.Errorf("read group descriptor block %d: %w", gdBlockNum, err)
	}
	inodeTable := le.Uint32(gdBlock[gdOffset+8:])

	inodeSize := uint32(v.Super.InodeSize)
	if inodeSize == 0 {
		inodeSize = inodeRecordSize
	}
	blockNum := inodeTable + (localIndex*inodeSize)/v.BlockSize
	offset := (localIndex * inodeSize) % v.BlockSize
	return blockNum, offset, nil
}

// ReadInode decodes the record of the given 1-based inode number.
func (v *Volume) ReadInode(inodeNum uint32) (Inode, error) {
	blockNum, offset, err := v.inodeLoc(inodeNum)
	if err != nil {
		return Inode{}, err
	}

	block := make([]byte, v.BlockSize)
	if err := v.readBlock(blockNum, block); err != nil {
		return Inode{}, fmt.Errorf("read inode block %d: %w", blockNum, err)
	}
	return decodeInode(block[offset:])
}

// WriteInode encodes ino into its on-disk record and writes the containing
// block back through the cache.
func (v *Volume) WriteInode(inodeNum uint32, ino *Inode) error {
	if ino == nil {
		return fmt.Errorf("%w: nil inode", litecore.ErrInvalidArgument)
	}
	blockNum, offset, err := v.inodeLoc(inodeNum)
	if err != nil {
		return err
	}

	block := make([]byte, v.BlockSize)
	if err := v.readBlock(blockNum, block); err != nil {
		return fmt.Errorf("read inode block %d: %w", blockNum, err)
	}
	if err := encodeInode(block[offset:], ino); err != nil {
		return err
	}
	if err := v.writeBlock(blockNum, block); err != nil {
		return fmt.Errorf("write inode block %d: %w", blockNum, err)
	}
	return nil
}
