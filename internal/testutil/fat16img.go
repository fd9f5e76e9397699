package testutil

import "strings"

// Fixed FAT16 test geometry: 512-byte sectors, 1 sector per cluster, one
// reserved sector, two FAT copies of 4 sectors each, 32 root entries.
const (
	FAT16SectorSize     = 512
	FAT16NumFATs        = 2
	FAT16FATSizeSectors = 4
	FAT16MaxRootEntries = 32
	FAT16TotalSectors   = 128

	fat16FATStart     = 1
	fat16RootDirStart = fat16FATStart + FAT16NumFATs*FAT16FATSizeSectors // 9
	fat16RootSectors  = FAT16MaxRootEntries * 32 / FAT16SectorSize       // 2
	fat16DataStart    = fat16RootDirStart + fat16RootSectors             // 11
)

// FAT16Builder assembles a FAT16 volume image.
type FAT16Builder struct {
	img         []byte
	nextCluster uint16
	rootCount   int
	dirCount    map[uint16]int
}

// NewFAT16Builder creates an empty formatted volume.
func NewFAT16Builder() *FAT16Builder {
	b := &FAT16Builder{
		img:         make([]byte, FAT16TotalSectors*FAT16SectorSize),
		nextCluster: 2,
		dirCount:    make(map[uint16]int),
	}

	boot := b.img
	le.PutUint16(boot[11:], FAT16SectorSize)
	boot[13] = 1 // sectors per cluster
	le.PutUint16(boot[14:], 1)
	boot[16] = FAT16NumFATs
	le.PutUint16(boot[17:], FAT16MaxRootEntries)
	le.PutUint16(boot[19:], FAT16TotalSectors)
	le.PutUint16(boot[22:], FAT16FATSizeSectors)
	boot[510] = 0x55
	boot[511] = 0xAA

	// Reserved FAT entries 0 and 1.
	b.setFAT(0, 0xFFF8)
	b.setFAT(1, 0xFFFF)
	return b
}

func (b *FAT16Builder) setFAT(cluster, value uint16) {
	for i := 0; i < FAT16NumFATs; i++ {
		off := (fat16FATStart+i*FAT16FATSizeSectors)*FAT16SectorSize + int(cluster)*2
		le.PutUint16(b.img[off:], value)
	}
}

func (b *FAT16Builder) clusterData(cluster uint16) []byte {
	off := (fat16DataStart + int(cluster-2)) * FAT16SectorSize
	return b.img[off : off+FAT16SectorSize]
}

// allocChain claims n sequential clusters and links them in the FATs.
func (b *FAT16Builder) allocChain(n int) []uint16 {
	chain := make([]uint16, n)
	for i := range chain {
		chain[i] = b.nextCluster
		b.nextCluster++
	}
	for i, c := range chain {
		next := uint16(0xFFFF)
		if i < n-1 {
			next = chain[i+1]
		}
		b.setFAT(c, next)
	}
	return chain
}

func fat16ShortName(name string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	base := name
	ext := ""
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		base, ext = name[:i], name[i+1:]
	}
	copy(out[:8], strings.ToUpper(base))
	copy(out[8:], strings.ToUpper(ext))
	return out
}

func (b *FAT16Builder) putDirent(rec []byte, name string, attr uint8, start uint16, size uint32) {
	raw := fat16ShortName(name)
	copy(rec[:11], raw[:])
	rec[11] = attr
	le.PutUint16(rec[26:], start)
	le.PutUint32(rec[28:], size)
}

func (b *FAT16Builder) addRootEntry(name string, attr uint8, start uint16, size uint32) {
	off := fat16RootDirStart*FAT16SectorSize + b.rootCount*32
	b.putDirent(b.img[off:off+32], name, attr, start, size)
	b.rootCount++
}

// DeleteRootEntry marks the i-th root record as deleted (0xE5), leaving its
// remaining bytes in place.
func (b *FAT16Builder) DeleteRootEntry(i int) {
	off := fat16RootDirStart*FAT16SectorSize + i*32
	b.img[off] = 0xE5
}

// AddFile creates a file in the root directory and returns its first
// cluster, or 0 for empty data.
func (b *FAT16Builder) AddFile(name string, data []byte) uint16 {
	return b.addFileEntry(name, data, b.addRootEntry)
}

// AddDir creates a subdirectory of the root with "." and ".." records and
// returns its cluster.
func (b *FAT16Builder) AddDir(name string) uint16 {
	chain := b.allocChain(1)
	cluster := chain[0]
	data := b.clusterData(cluster)
	b.putDirent(data[0:32], ".", 0x10, cluster, 0)
	b.putDirent(data[32:64], "..", 0x10, 0, 0)
	// The literal dot names, not the 8.3-mangled ones.
	data[0] = '.'
	for i := 1; i < 11; i++ {
		data[i] = ' '
	}
	data[32] = '.'
	data[33] = '.'
	for i := 34; i < 43; i++ {
		data[i] = ' '
	}
	b.dirCount[cluster] = 2
	b.addRootEntry(name, 0x10, cluster, 0)
	return cluster
}

// AddFileInDir creates a file inside the directory at dirCluster.
func (b *FAT16Builder) AddFileInDir(dirCluster uint16, name string, data []byte) uint16 {
	return b.addFileEntry(name, data, func(n string, attr uint8, start uint16, size uint32) {
		off := b.dirCount[dirCluster] * 32
		b.putDirent(b.clusterData(dirCluster)[off:off+32], n, attr, start, size)
		b.dirCount[dirCluster]++
	})
}

func (b *FAT16Builder) addFileEntry(name string, data []byte, addEntry func(string, uint8, uint16, uint32)) uint16 {
	start := uint16(0)
	if len(data) > 0 {
		clusters := (len(data) + FAT16SectorSize - 1) / FAT16SectorSize
		chain := b.allocChain(clusters)
		start = chain[0]
		remaining := data
		for _, c := range chain {
			n := copy(b.clusterData(c), remaining)
			remaining = remaining[n:]
		}
	}
	addEntry(name, 0x20, start, uint32(len(data)))
	return start
}

// Build returns the finished image.
func (b *FAT16Builder) Build() []byte { return b.img }
