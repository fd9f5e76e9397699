package ext2

import (
	"fmt"

	litecore "github.com/nekogakure/liteCore"
)

// Group descriptor field offsets.
const (
	gdBlockBitmap = 0
	gdInodeBitmap = 4
	gdInodeTable  = 8
	gdFreeBlocks  = 12
	gdFreeInodes  = 14
)

// AllocateBlock claims the first clear bit of any group's block bitmap, sets
// it, decrements the group's and the superblock's free counters, and returns
// the absolute block number. Exhaustion yields litecore.ErrNoSpace.
//
// Groups whose descriptor or bitmap fail to read are skipped; committed
// bitmap writes are not rolled back on later failure.
func (v *Volume) AllocateBlock() (uint32, error) {
	if v.cache == nil {
		return 0, fmt.Errorf("%w: image-backed volume is read-only", litecore.ErrUnsupported)
	}

	bs := v.BlockSize
	for g := uint32(0); g < v.NumGroups; g++ {
		gdBlockNum, gdOffset := v.groupDescLoc(g)
		gdBlock := make([]byte, bs)
		if err := v.readBlock(gdBlockNum, gdBlock); err != nil {
			continue
		}

		bitmapBlock := le.Uint32(gdBlock[gdOffset+gdBlockBitmap:])
		bitmap := make([]byte, bs)
		if err := v.readBlock(bitmapBlock, bitmap); err != nil {
			continue
		}

		for i := uint32(0); i < v.Super.BlocksPerGroup; i++ {
			byteIdx := i / 8
			mask := byte(1) << (i % 8)
			if bitmap[byteIdx]&mask != 0 {
				continue
			}

			bitmap[byteIdx] |= mask
			if err := v.writeBlock(bitmapBlock, bitmap); err != nil {
				return 0, fmt.Errorf("write block bitmap: %w", err)
			}

			free := le.Uint16(gdBlock[gdOffset+gdFreeBlocks:])
			if free > 0 {
				free--
			}
			le.PutUint16(gdBlock[gdOffset+gdFreeBlocks:], free)
			if err := v.writeBlock(gdBlockNum, gdBlock); err != nil {
				return 0, fmt.Errorf("write group descriptor: %w", err)
			}

			if v.Super.FreeBlocksCount > 0 {
				v.Super.FreeBlocksCount--
			}
			v.writeSuperFreeCounts()

			return g*v.Super.BlocksPerGroup + i + v.Super.FirstDataBlock, nil
		}
	}
	return 0, fmt.Errorf("%w: no free blocks", litecore.ErrNoSpace)
}

// AllocateInode claims the first clear bit of any group's inode bitmap and
// returns the 1-based inode number. Bookkeeping mirrors AllocateBlock.
func (v *Volume) AllocateInode() (uint32, error) {
	if v.cache == nil {
		return 0, fmt.Errorf("%w: image-backed volume is read-only", litecore.ErrUnsupported)
	}

	bs := v.BlockSize
	for g := uint32(0); g < v.NumGroups; g++ {
		gdBlockNum, gdOffset := v.groupDescLoc(g)
		gdBlock := make([]byte, bs)
		if err := v.readBlock(gdBlockNum, gdBlock); err != nil {
			continue
		}

		bitmapBlock := le.Uint32(gdBlock[gdOffset+gdInodeBitmap:])
		bitmap := make([]byte, bs)
		if err := v.readBlock(bitmapBlock, bitmap); err != nil {
			continue
		}

		for i := uint32(0); i < v.Super.InodesPerGroup; i++ {
			byteIdx := i / 8
			mask := byte(1) << (i % 8)
			if bitmap[byteIdx]&mask != 0 {
				continue
			}

			bitmap[byteIdx] |= mask
			if err := v.writeBlock(bitmapBlock, bitmap); err != nil {
				return 0, fmt.Errorf("write inode bitmap: %w", err)
			}

			free := le.Uint16(gdBlock[gdOffset+gdFreeInodes:])
			if free > 0 {
				free--
			}
			le.PutUint16(gdBlock[gdOffset+gdFreeInodes:], free)
			if err := v.writeBlock(gdBlockNum, gdBlock); err != nil {
				return 0, fmt.Errorf("write group descriptor: %w", err)
			}

			if v.Super.FreeInodesCount > 0 {
				v.Super.FreeInodesCount--
			}
			v.writeSuperFreeCounts()

			return g*v.Super.InodesPerGroup + i + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: no free inodes", litecore.ErrNoSpace)
}
