// Package blockcache implements the fixed-capacity write-back block cache
// that sits between the filesystem drivers and the sector device. It is the
// only component that touches the device.
//
// The cache is single-threaded by construction: no locking, callers
// serialize. Eviction is LRU over a logical clock that advances once per
// read or write request.
package blockcache

import (
	"fmt"

	litecore "github.com/nekogakure/liteCore"
	"github.com/nekogakure/liteCore/blockdev"
)

type entry struct {
	blockNum uint32
	data     []byte
	lastUsed uint32
	valid    bool
	dirty    bool
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits   uint32
	Misses uint32
}

// Cache is a fixed pool of block-sized slots over one drive. Entry buffers
// are allocated once at construction and reused for the cache's lifetime.
//
// Invariant: at most one valid entry holds a given block number.
type Cache struct {
	dev       blockdev.Device
	drive     uint8
	blockSize uint32
	entries   []entry
	clock     uint32
	stats     Stats
	logger    *litecore.Logger
}

type options struct {
	logger *litecore.Logger
}

// Option configures a Cache.
type Option func(*options)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *litecore.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates a cache of capacity block slots of blockSize bytes over drive
// on dev. blockSize must be a positive multiple of the sector size.
func New(dev blockdev.Device, drive uint8, blockSize, capacity uint32, optFns ...Option) (*Cache, error) {
	if dev == nil {
		return nil, fmt.Errorf("%w: nil device", litecore.ErrInvalidArgument)
	}
	if blockSize == 0 || blockSize%blockdev.SectorSize != 0 {
		return nil, fmt.Errorf("%w: block size %d not a multiple of %d",
			litecore.ErrInvalidArgument, blockSize, blockdev.SectorSize)
	}
	if capacity == 0 {
		return nil, fmt.Errorf("%w: zero capacity", litecore.ErrInvalidArgument)
	}

	opts := options{logger: litecore.NoopLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Cache{
		dev:       dev,
		drive:     drive,
		blockSize: blockSize,
		entries:   make([]entry, capacity),
		logger:    opts.logger.WithDrive(drive),
	}
	for i := range c.entries {
		c.entries[i].data = make([]byte, blockSize)
	}
	return c, nil
}

// BlockSize returns the cache's block size in bytes.
func (c *Cache) BlockSize() uint32 { return c.blockSize }

// Stats returns the hit/miss counters.
func (c *Cache) Stats() Stats { return c.stats }

// victim returns the slot to reuse: the first invalid entry if any,
// otherwise the entry with the smallest lastUsed. Ties go to the lowest
// index because the scan keeps the first minimum it sees.
func (c *Cache) victim() *entry {
	var lru *entry
	oldest := uint32(0xFFFFFFFF)
	for i := range c.entries {
		e := &c.entries[i]
		if !e.valid {
			return e
		}
		if e.lastUsed < oldest {
			oldest = e.lastUsed
			lru = e
		}
	}
	return lru
}

// lookup returns the valid entry for blockNum, or nil.
func (c *Cache) lookup(blockNum uint32) *entry {
	for i := range c.entries {
		e := &c.entries[i]
		if e.valid && e.blockNum == blockNum {
			return e
		}
	}
	return nil
}

// readFromDevice loads blockNum into buf, fanning out into transfers of at
// most 255 sectors.
func (c *Cache) readFromDevice(blockNum uint32, buf []byte) error {
	sectorsPerBlock := c.blockSize / blockdev.SectorSize
	startSector := blockNum * sectorsPerBlock

	var done uint32
	for done < sectorsPerBlock {
		count := sectorsPerBlock - done
		if count > blockdev.MaxSectorsPerCall {
			count = blockdev.MaxSectorsPerCall
		}
		off := done * blockdev.SectorSize
		if err := c.dev.ReadSectors(c.drive, startSector+done, uint8(count), buf[off:]); err != nil {
			return fmt.Errorf("%w: load block %d: %w", litecore.ErrIO, blockNum, err)
		}
		done += count
	}
	return nil
}

// writeToDevice stores buf as blockNum.
func (c *Cache) writeToDevice(blockNum uint32, buf []byte) error {
	sectorsPerBlock := c.blockSize / blockdev.SectorSize
	startSector := blockNum * sectorsPerBlock

	var done uint32
	for done < sectorsPerBlock {
		count := sectorsPerBlock - done
		if count > blockdev.MaxSectorsPerCall {
			count = blockdev.MaxSectorsPerCall
		}
		off := done * blockdev.SectorSize
		if err := c.dev.WriteSectors(c.drive, startSector+done, uint8(count), buf[off:]); err != nil {
			return fmt.Errorf("%w: store block %d: %w", litecore.ErrIO, blockNum, err)
		}
		done += count
	}
	return nil
}

// evict prepares the victim slot for reuse, writing it back first when it is
// valid and dirty. On write-back failure the slot is left untouched and the
// error propagates; other slots are unaffected.
func (c *Cache) evict() (*entry, error) {
	v := c.victim()
	if v.valid && v.dirty {
		if err := c.writeToDevice(v.blockNum, v.data); err != nil {
			return nil, err
		}
		v.dirty = false
	}
	return v, nil
}

// Read copies the content of blockNum into buf, loading it from the device
// on a miss. buf must hold at least BlockSize bytes.
func (c *Cache) Read(blockNum uint32, buf []byte) error {
	if buf == nil || uint32(len(buf)) < c.blockSize {
		return fmt.Errorf("%w: read buffer too small", litecore.ErrInvalidArgument)
	}

	c.clock++

	if e := c.lookup(blockNum); e != nil {
		c.stats.Hits++
		e.lastUsed = c.clock
		copy(buf, e.data)
		return nil
	}

	c.stats.Misses++

	v, err := c.evict()
	if err != nil {
		return err
	}
	if err := c.readFromDevice(blockNum, v.data); err != nil {
		// The slot's content is stale for its old block number now that
		// write-back cleared the dirty bit; invalidate it.
		v.valid = false
		c.logger.Error("block load failed", "block", blockNum, "err", err)
		return err
	}

	v.blockNum = blockNum
	v.lastUsed = c.clock
	v.valid = true
	v.dirty = false
	copy(buf, v.data)
	return nil
}

// Write captures buf as the new content of blockNum and marks the entry
// dirty. On a miss no device read happens: the caller's bytes replace the
// block wholesale. buf must hold at least BlockSize bytes.
func (c *Cache) Write(blockNum uint32, buf []byte) error {
	if buf == nil || uint32(len(buf)) < c.blockSize {
		return fmt.Errorf("%w: write buffer too small", litecore.ErrInvalidArgument)
	}

	c.clock++

	if e := c.lookup(blockNum); e != nil {
		copy(e.data, buf[:c.blockSize])
		e.lastUsed = c.clock
		e.dirty = true
		return nil
	}

	v, err := c.evict()
	if err != nil {
		return err
	}
	copy(v.data, buf[:c.blockSize])
	v.blockNum = blockNum
	v.lastUsed = c.clock
	v.valid = true
	v.dirty = true
	return nil
}

// Flush writes back every valid dirty entry and clears its dirty bit.
// Flushing twice in a row issues no device writes the second time.
func (c *Cache) Flush() error {
	for i := range c.entries {
		e := &c.entries[i]
		if e.valid && e.dirty {
			if err := c.writeToDevice(e.blockNum, e.data); err != nil {
				return err
			}
			e.dirty = false
		}
	}
	return nil
}

// Close flushes the cache and releases the entry buffers. The cache must not
// be used afterwards.
func (c *Cache) Close() error {
	err := c.Flush()
	for i := range c.entries {
		c.entries[i] = entry{}
	}
	c.entries = nil
	return err
}
