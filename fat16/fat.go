package fat16

import (
	"fmt"

	litecore "github.com/nekogakure/liteCore"
)

// maxChainLength bounds cluster chain walks so a cyclic FAT cannot spin
// forever.
const maxChainLength = 65536

// fatEntry reads cluster's 16-bit entry from the first FAT copy.
func (v *Volume) fatEntry(cluster uint16) (uint16, error) {
	off := v.fatStart*bytesPerSector + uint32(cluster)*2
	var raw [2]byte
	if err := v.readBytes(off, raw[:]); err != nil {
		return 0, err
	}
	return le.Uint16(raw[:]), nil
}

// setFATEntry writes cluster's entry into every FAT copy, keeping the
// mirrors in step.
func (v *Volume) setFATEntry(cluster uint16, value uint16) error {
	var raw [2]byte
	le.PutUint16(raw[:], value)
	for i := uint32(0); i < uint32(v.BPB.NumFATs); i++ {
		off := (v.fatStart+i*uint32(v.BPB.FATSizeSectors))*bytesPerSector + uint32(cluster)*2
		if err := v.writeBytes(off, raw[:]); err != nil {
			return fmt.Errorf("write FAT copy %d: %w", i, err)
		}
	}
	return nil
}

// isEOC reports whether the entry terminates a chain.
func isEOC(entry uint16) bool { return entry >= clusterEOC }

// walkChain returns the clusters of the chain starting at start, in order.
func (v *Volume) walkChain(start uint16) ([]uint16, error) {
	var chain []uint16
	cluster := start
	for {
		if cluster < firstDataCluster || uint32(cluster) >= v.totalClusters+firstDataCluster {
			return nil, fmt.Errorf("%w: chain points at cluster %d", litecore.ErrCorrupt, cluster)
		}
		chain = append(chain, cluster)
		if len(chain) > maxChainLength {
			return nil, fmt.Errorf("%w: cluster chain does not terminate", litecore.ErrCorrupt)
		}
		entry, err := v.fatEntry(cluster)
		if err != nil {
			return nil, err
		}
		if isEOC(entry) {
			return chain, nil
		}
		if entry == clusterFree || entry == clusterBad {
			return nil, fmt.Errorf("%w: chain runs into entry 0x%04x", litecore.ErrCorrupt, entry)
		}
		cluster = entry
	}
}

// allocateChain claims n free clusters and links them into a terminated
// chain, returning the clusters in order. Allocation is all-or-nothing: when
// fewer than n free clusters exist, nothing on the volume changes and
// litecore.ErrNoSpace is returned.
func (v *Volume) allocateChain(n int) ([]uint16, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: chain of %d clusters", litecore.ErrInvalidArgument, n)
	}

	// First pass finds the clusters without touching the FAT.
	free := make([]uint16, 0, n)
	for c := uint32(firstDataCluster); c < v.totalClusters+firstDataCluster && len(free) < n; c++ {
		entry, err := v.fatEntry(uint16(c))
		if err != nil {
			return nil, err
		}
		if entry == clusterFree {
			free = append(free, uint16(c))
		}
	}
	if len(free) < n {
		return nil, fmt.Errorf("%w: need %d clusters, found %d free", litecore.ErrNoSpace, n, len(free))
	}

	for i, c := range free {
		next := uint16(clusterEOC | 0x7) // 0xFFFF
		if i < len(free)-1 {
			next = free[i+1]
		}
		if err := v.setFATEntry(c, next); err != nil {
			return nil, err
		}
	}
	return free, nil
}

// freeChain clears the chain starting at start. A start below the first data
// cluster is a no-op, matching empty files whose dirent holds cluster 0.
func (v *Volume) freeChain(start uint16) error {
	if start < firstDataCluster {
		return nil
	}
	chain, err := v.walkChain(start)
	if err != nil {
		return err
	}
	for _, c := range chain {
		if err := v.setFATEntry(c, clusterFree); err != nil {
			return err
		}
	}
	return nil
}
