// Package litecore is the storage stack of the liteCore kernel, ported to a
// standalone Go module: a fixed-capacity write-back block cache over a sector
// device, an ext2 driver, a FAT16 driver, and a VFS layer that exposes
// whichever driver mounts successfully through one backend interface.
//
// The subsystem is single-threaded by construction. None of the types in this
// module or its subpackages perform internal locking; callers serialize all
// access, the way the surrounding kernel does.
//
// Subpackages:
//
//   - blockdev:   the sector device boundary and its implementations
//   - blockcache: the LRU write-back block cache
//   - ext2:       the ext2 volume driver
//   - fat16:      the FAT16 volume driver
//   - vfs:        mount selection, file handles, descriptor tables
//   - image:      disk image load/save helpers
//
// The root package holds only what every layer shares: the error taxonomy and
// the logger.
package litecore
