package ext2

import (
	"errors"
	"fmt"

	litecore "github.com/nekogakure/liteCore"
)

// ErrHole is returned by BlockForIndex when a block pointer along the
// translation path is zero, i.e. the logical block is not allocated.
var ErrHole = errors.New("block not allocated")

// readPointerBlock loads an indirect block and returns the pointer at index.
func (v *Volume) readPointerBlock(blockNum, index uint32) (uint32, error) {
	buf := make([]byte, v.BlockSize)
	if err := v.readBlock(blockNum, buf); err != nil {
		return 0, fmt.Errorf("read indirect block %d: %w", blockNum, err)
	}
	return le.Uint32(buf[index*4:]), nil
}

// BlockForIndex translates a logical block index within the file to an
// absolute block number. Indices 0-11 use the direct pointers; the following
// ranges walk the single, double and triple indirect trees. A zero pointer
// at any level yields ErrHole.
func (v *Volume) BlockForIndex(ino *Inode, index uint32) (uint32, error) {
	if ino == nil {
		return 0, fmt.Errorf("%w: nil inode", litecore.ErrInvalidArgument)
	}
	ptrsPerBlock := v.BlockSize / 4

	if index < 12 {
		if ino.Block[index] == 0 {
			return 0, ErrHole
		}
		return ino.Block[index], nil
	}
	index -= 12

	if index < ptrsPerBlock {
		indirect := ino.Block[12]
		if indirect == 0 {
			return 0, ErrHole
		}
		n, err := v.readPointerBlock(indirect, index)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, ErrHole
		}
		return n, nil
	}
	index -= ptrsPerBlock

	if index < ptrsPerBlock*ptrsPerBlock {
		double := ino.Block[13]
		if double == 0 {
			return 0, ErrHole
		}
		idx1 := index / ptrsPerBlock
		idx2 := index % ptrsPerBlock

		indirect, err := v.readPointerBlock(double, idx1)
		if err != nil {
			return 0, err
		}
		if indirect == 0 {
			return 0, ErrHole
		}
		n, err := v.readPointerBlock(indirect, idx2)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, ErrHole
		}
		return n, nil
	}
	index -= ptrsPerBlock * ptrsPerBlock

	if index < ptrsPerBlock*ptrsPerBlock*ptrsPerBlock {
		triple := ino.Block[14]
		if triple == 0 {
			return 0, ErrHole
		}
		idx1 := index / (ptrsPerBlock * ptrsPerBlock)
		idx2 := (index / ptrsPerBlock) % ptrsPerBlock
		idx3 := index % ptrsPerBlock

		double, err := v.readPointerBlock(triple, idx1)
		if err != nil {
			return 0, err
		}
		if double == 0 {
			return 0, ErrHole
		}
		indirect, err := v.readPointerBlock(double, idx2)
		if err != nil {
			return 0, err
		}
		if indirect == 0 {
			return 0, ErrHole
		}
		n, err := v.readPointerBlock(indirect, idx3)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, ErrHole
		}
		return n, nil
	}

	return 0, fmt.Errorf("%w: block index out of range", litecore.ErrInvalidArgument)
}

// blockForIndexOrAlloc returns the block for a direct index, allocating one
// when the pointer is zero. Data writes cover direct blocks only.
func (v *Volume) blockForIndexOrAlloc(ino *Inode, index uint32) (uint32, error) {
	if index >= 12 {
		return 0, fmt.Errorf("%w: writes beyond the direct pointers", litecore.ErrUnsupported)
	}
	if ino.Block[index] != 0 {
		return ino.Block[index], nil
	}
	newBlock, err := v.AllocateBlock()
	if err != nil {
		return 0, err
	}
	ino.Block[index] = newBlock
	ino.Blocks += v.BlockSize / 512
	return newBlock, nil
}
