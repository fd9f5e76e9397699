// Package ext2 decodes and edits ext2-formatted volumes through the block
// cache, or in a legacy mode directly over an in-memory image. It resolves
// paths to inodes, reads file data through direct and multi-level indirect
// block pointers, allocates blocks and inodes from the group bitmaps, and
// edits directory records.
//
// Known limitations carried over deliberately: directories are searched
// through their 12 direct blocks only, ".." resolves to the root directory
// rather than the true parent, and data writes cover direct blocks only.
package ext2

import (
	"fmt"

	litecore "github.com/nekogakure/liteCore"
	"github.com/nekogakure/liteCore/blockcache"
)

// Volume is a mounted ext2 volume. It lives until the caller discards it;
// there is no unmount beyond flushing the cache it reads through.
//
// Exactly one of cache and image is set. The image mode is the legacy
// read-only path kept for volumes loaded wholesale into memory.
type Volume struct {
	cache *blockcache.Cache
	image []byte

	// Super is the decoded superblock. The free counters are mutated by
	// allocations and written back through the cache.
	Super Superblock

	// BlockSize is 1024 << Super.LogBlockSize.
	BlockSize uint32

	// NumGroups is the number of block groups on the volume.
	NumGroups uint32

	// groupDescBlock is the first block of the group descriptor table,
	// the block after the superblock.
	groupDescBlock uint32

	logger *litecore.Logger
}

type options struct {
	logger *litecore.Logger
}

// Option configures a Volume at mount time.
type Option func(*options)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *litecore.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func (v *Volume) applyDerived() {
	v.BlockSize = 1024 << v.Super.LogBlockSize
	v.NumGroups = (v.Super.BlocksCount + v.Super.BlocksPerGroup - 1) / v.Super.BlocksPerGroup
	if v.Super.FirstDataBlock == 0 {
		v.groupDescBlock = 1
	} else {
		v.groupDescBlock = 2
	}
}

// Mount reads the superblock through cache and returns a mounted Volume.
// It fails with an error wrapping litecore.ErrCorrupt when the magic number
// does not match.
func Mount(cache *blockcache.Cache, optFns ...Option) (*Volume, error) {
	if cache == nil {
		return nil, fmt.Errorf("%w: nil cache", litecore.ErrInvalidArgument)
	}

	opts := options{logger: litecore.NoopLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}

	bs := cache.BlockSize()
	sbBlockNum := uint32(SuperblockOffset) / bs
	sbOffset := uint32(SuperblockOffset) % bs

	buf := make([]byte, bs)
	if err := cache.Read(sbBlockNum, buf); err != nil {
		return nil, fmt.Errorf("read superblock block: %w", err)
	}

	sb, err := decodeSuperblock(buf[sbOffset:])
	if err != nil {
		return nil, err
	}

	v := &Volume{cache: cache, Super: sb, logger: opts.logger}
	v.applyDerived()
	opts.logger.Debug("ext2 mounted",
		"block_size", v.BlockSize, "groups", v.NumGroups, "inodes", sb.InodesCount)
	return v, nil
}

// MountImage mounts an in-memory volume image directly, without a cache.
// Image-backed volumes are read-only; every mutating operation fails with
// litecore.ErrUnsupported.
func MountImage(image []byte, optFns ...Option) (*Volume, error) {
	if len(image) < SuperblockOffset+1024 {
		return nil, fmt.Errorf("%w: image too small for a superblock", litecore.ErrInvalidArgument)
	}

	opts := options{logger: litecore.NoopLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}

	sb, err := decodeSuperblock(image[SuperblockOffset:])
	if err != nil {
		return nil, err
	}

	v := &Volume{image: image, Super: sb, logger: opts.logger}
	v.applyDerived()
	return v, nil
}

// readBlock copies block blockNum into buf (at least BlockSize bytes).
func (v *Volume) readBlock(blockNum uint32, buf []byte) error {
	if v.cache != nil {
		return v.cache.Read(blockNum, buf)
	}
	off := int(blockNum) * int(v.BlockSize)
	if off+int(v.BlockSize) > len(v.image) {
		return fmt.Errorf("%w: block %d beyond image", litecore.ErrIO, blockNum)
	}
	copy(buf, v.image[off:off+int(v.BlockSize)])
	return nil
}

// writeBlock stores buf as block blockNum through the cache. Image-backed
// volumes reject writes.
func (v *Volume) writeBlock(blockNum uint32, buf []byte) error {
	if v.cache == nil {
		return fmt.Errorf("%w: image-backed volume is read-only", litecore.ErrUnsupported)
	}
	return v.cache.Write(blockNum, buf)
}

// groupDescLoc returns the block number and in-block offset of group g's
// descriptor.
func (v *Volume) groupDescLoc(g uint32) (uint32, uint32) {
	return v.groupDescBlock + (g*groupDescSize)/v.BlockSize, (g * groupDescSize) % v.BlockSize
}

// writeSuperFreeCounts writes the in-memory free block/inode counters back
// into the on-disk superblock through the cache. Best effort: allocation has
// already committed to the bitmap, a stale superblock counter is tolerated,
// matching the original driver.
func (v *Volume) writeSuperFreeCounts() {
	if v.cache == nil {
		return
	}
	bs := v.BlockSize
	sbBlockNum := uint32(SuperblockOffset) / bs
	sbOffset := uint32(SuperblockOffset) % bs

	buf := make([]byte, bs)
	if err := v.cache.Read(sbBlockNum, buf); err != nil {
		v.logger.Warn("superblock counter write-back skipped", "err", err)
		return
	}
	le.PutUint32(buf[sbOffset+12:], v.Super.FreeBlocksCount)
	le.PutUint32(buf[sbOffset+16:], v.Super.FreeInodesCount)
	if err := v.cache.Write(sbBlockNum, buf); err != nil {
		v.logger.Warn("superblock counter write-back failed", "err", err)
	}
}
