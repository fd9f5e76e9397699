package ext2

import (
	"fmt"

	litecore "github.com/nekogakure/liteCore"
)

// ReadInodeData copies file content into p starting at byte offset off.
// The request is clamped to the inode's size. It returns the number of bytes
// copied; the count falls short of the request when a block along the way is
// a hole or fails to read — callers must check for partial reads.
func (v *Volume) ReadInodeData(ino *Inode, p []byte, off uint32) (int, error) {
	if ino == nil || p == nil {
		return 0, fmt.Errorf("%w: nil inode or buffer", litecore.ErrInvalidArgument)
	}

	fileSize := ino.Size
	if off >= fileSize {
		return 0, nil
	}

	toRead := uint32(len(p))
	if off+toRead > fileSize {
		toRead = fileSize - off
	}

	block := make([]byte, v.BlockSize)
	var read uint32
	cur := off
	for read < toRead {
		blockIdx := cur / v.BlockSize
		blockOff := cur % v.BlockSize

		blockNum, err := v.BlockForIndex(ino, blockIdx)
		if err != nil {
			break // hole or unresolvable: partial result
		}
		if err := v.readBlock(blockNum, block); err != nil {
			break
		}

		n := v.BlockSize - blockOff
		if read+n > toRead {
			n = toRead - read
		}
		copy(p[read:read+n], block[blockOff:blockOff+n])
		read += n
		cur += n
	}
	return int(read), nil
}

// WriteInodeData writes p into the file at byte offset off, allocating
// missing direct blocks on demand. Only the 12 direct blocks are writable;
// the write stops short at the direct-pointer range or on allocation
// failure, returning the partial count. The inode's Size grows to cover the
// written range (never shrinks) and Blocks tracks allocated sectors; the
// caller persists the inode with WriteInode.
func (v *Volume) WriteInodeData(ino *Inode, p []byte, off uint32) (int, error) {
	if ino == nil || p == nil {
		return 0, fmt.Errorf("%w: nil inode or buffer", litecore.ErrInvalidArgument)
	}
	if v.cache == nil {
		return 0, fmt.Errorf("%w: image-backed volume is read-only", litecore.ErrUnsupported)
	}

	bs := v.BlockSize
	block := make([]byte, bs)
	var written uint32
	cur := off
	for written < uint32(len(p)) {
		blockIdx := cur / bs
		blockOff := cur % bs
		if blockIdx >= 12 {
			break
		}

		blockNum, err := v.blockForIndexOrAlloc(ino, blockIdx)
		if err != nil {
			break
		}

		// Freshly allocated blocks may fail the read; treat them as
		// zero-filled.
		if err := v.readBlock(blockNum, block); err != nil {
			for i := range block {
				block[i] = 0
			}
		}

		n := bs - blockOff
		if n > uint32(len(p))-written {
			n = uint32(len(p)) - written
		}
		copy(block[blockOff:blockOff+n], p[written:written+n])

		if err := v.writeBlock(blockNum, block); err != nil {
			break
		}
		written += n
		cur += n
	}

	if newSize := off + written; newSize > ino.Size {
		ino.Size = newSize
	}
	return int(written), nil
}
