// Package fat16 drives FAT16-formatted volumes through the block cache, or
// in a legacy mode directly over an in-memory image. It handles 8.3 names,
// root and subdirectory lookups, cluster chain walks and whole-file
// overwrites with all-or-nothing chain allocation.
//
// Only 512-byte sectors are supported.
package fat16

import (
	"fmt"

	litecore "github.com/nekogakure/liteCore"
	"github.com/nekogakure/liteCore/blockcache"
)

// Volume is a mounted FAT16 volume.
//
// Exactly one of cache and image is set. The image mode is the legacy
// read-only path kept for volumes loaded wholesale into memory.
type Volume struct {
	cache *blockcache.Cache
	image []byte

	// BPB is the decoded BIOS parameter block.
	BPB BPB

	// Derived geometry, in sectors from the start of the volume.
	fatStart       uint32
	rootDirStart   uint32
	rootDirSectors uint32
	dataStart      uint32

	// totalClusters counts data clusters, so the highest valid cluster
	// number is totalClusters+1.
	totalClusters uint32

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
	b := &v.BPB
	v.fatStart = uint32(b.ReservedSectors)
	v.rootDirStart = v.fatStart + uint32(b.NumFATs)*uint32(b.FATSizeSectors)
	v.rootDirSectors = (uint32(b.MaxRootEntries)*direntSize + bytesPerSector - 1) / bytesPerSector
	v.dataStart = v.rootDirStart + v.rootDirSectors
	total := b.TotalSectors()
	if total > v.dataStart {
		v.totalClusters = (total - v.dataStart) / uint32(b.SectorsPerCluster)
	}
}

// Mount reads the boot sector through cache and returns a mounted Volume.
func Mount(cache *blockcache.Cache, optFns ...Option) (*Volume, error) {
	if cache == nil {
		return nil, fmt.Errorf("%w: nil cache", litecore.ErrInvalidArgument)
	}

	opts := options{logger: litecore.NoopLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}

	buf := make([]byte, cache.BlockSize())
	if err := cache.Read(0, buf); err != nil {
		return nil, fmt.Errorf("read boot sector: %w", err)
	}
	bpb, err := decodeBPB(buf)
	if err != nil {
		return nil, err
	}

	v := &Volume{cache: cache, BPB: bpb, logger: opts.logger}
	v.applyDerived()
	opts.logger.Debug("fat16 mounted",
		"clusters", v.totalClusters, "fats", bpb.NumFATs, "root_entries", bpb.MaxRootEntries)
	return v, nil
}

// MountImage mounts an in-memory volume image directly, without a cache.
// Image-backed volumes are read-only; every mutating operation fails with
// litecore.ErrUnsupported.
func MountImage(image []byte, optFns ...Option) (*Volume, error) {
	if len(image) < bytesPerSector {
		return nil, fmt.Errorf("%w: image too small for a boot sector", litecore.ErrInvalidArgument)
	}

	opts := options{logger: litecore.NoopLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}

	bpb, err := decodeBPB(image)
	if err != nil {
		return nil, err
	}

	v := &Volume{image: image, BPB: bpb, logger: opts.logger}
	v.applyDerived()
	return v, nil
}

// readBytes copies len(p) bytes starting at byte offset off on the volume,
// spanning cache blocks as needed.
func (v *Volume) readBytes(off uint32, p []byte) error {
	if v.cache == nil {
		end := int(off) + len(p)
		if end > len(v.image) {
			return fmt.Errorf("%w: read beyond image", litecore.ErrIO)
		}
		copy(p, v.image[off:end])
		return nil
	}

	bs := v.cache.BlockSize()
	block := make([]byte, bs)
	for len(p) > 0 {
		blockNum := off / bs
		within := off % bs
		if err := v.cache.Read(blockNum, block); err != nil {
			return err
		}
		n := copy(p, block[within:])
		p = p[n:]
		off += uint32(n)
	}
	return nil
}

// writeBytes stores p at byte offset off, read-modify-writing partially
// covered cache blocks.
func (v *Volume) writeBytes(off uint32, p []byte) error {
	if v.cache == nil {
		return fmt.Errorf("%w: image-backed volume is read-only", litecore.ErrUnsupported)
	}

	bs := v.cache.BlockSize()
	block := make([]byte, bs)
	for len(p) > 0 {
		blockNum := off / bs
		within := off % bs
		n := int(bs - within)
		if n > len(p) {
			n = len(p)
		}
		if within != 0 || n < int(bs) {
			if err := v.cache.Read(blockNum, block); err != nil {
				return err
			}
		}
		copy(block[within:], p[:n])
		if err := v.cache.Write(blockNum, block); err != nil {
			return err
		}
		p = p[n:]
		off += uint32(n)
	}
	return nil
}

// clusterByteOff returns the byte offset of cluster's first sector.
func (v *Volume) clusterByteOff(cluster uint16) (uint32, error) {
	if cluster < firstDataCluster || uint32(cluster) >= v.totalClusters+firstDataCluster {
		return 0, fmt.Errorf("%w: cluster %d out of range", litecore.ErrCorrupt, cluster)
	}
	sector := v.dataStart + uint32(cluster-firstDataCluster)*uint32(v.BPB.SectorsPerCluster)
	return sector * bytesPerSector, nil
}

// clusterSize returns the cluster size in bytes.
func (v *Volume) clusterSize() uint32 {
	return uint32(v.BPB.SectorsPerCluster) * bytesPerSector
}
