package fat16

import (
	"fmt"
	"strings"

	litecore "github.com/nekogakure/liteCore"
)

// Entry is one directory listing entry.
type Entry struct {
	Name         string
	Size         uint32
	StartCluster uint16
	IsDir        bool
}

// entryLoc pairs a decoded directory record with its byte offset on the
// volume, so callers can write the record back in place.
type entryLoc struct {
	ent dirEntry
	off uint32
}

// findInRoot scans the root directory region for the given raw 8.3 name.
// Alongside the match it reports the byte offset of the first reusable slot
// (a deleted record or the end-of-directory marker), for creation.
func (v *Volume) findInRoot(raw [11]byte) (entryLoc, uint32, bool, error) {
	var freeOff uint32
	haveFree := false

	base := v.rootDirStart * bytesPerSector
	sector := make([]byte, bytesPerSector)
	for s := uint32(0); s < v.rootDirSectors; s++ {
		if err := v.readBytes(base+s*bytesPerSector, sector); err != nil {
			return entryLoc{}, 0, false, err
		}
		for e := 0; e < bytesPerSector/direntSize; e++ {
			off := base + s*bytesPerSector + uint32(e)*direntSize
			rec := sector[e*direntSize:]

			switch rec[0] {
			case slotEndOfDir:
				if !haveFree {
					freeOff, haveFree = off, true
				}
				return entryLoc{}, freeOff, haveFree, fmt.Errorf("%w: no such root entry", litecore.ErrNotFound)
			case slotDeleted:
				if !haveFree {
					freeOff, haveFree = off, true
				}
				continue
			}

			ent := decodeDirEntry(rec)
			if ent.isLongName() || ent.isLabel() {
				continue
			}
			if ent.Name == raw {
				return entryLoc{ent: ent, off: off}, freeOff, haveFree, nil
			}
		}
	}
	return entryLoc{}, freeOff, haveFree, fmt.Errorf("%w: no such root entry", litecore.ErrNotFound)
}

// findInDir scans a subdirectory's cluster chain for the raw 8.3 name.
func (v *Volume) findInDir(startCluster uint16, raw [11]byte) (entryLoc, error) {
	chain, err := v.walkChain(startCluster)
	if err != nil {
		return entryLoc{}, err
	}

	cluster := make([]byte, v.clusterSize())
	for _, c := range chain {
		base, err := v.clusterByteOff(c)
		if err != nil {
			return entryLoc{}, err
		}
		if err := v.readBytes(base, cluster); err != nil {
			return entryLoc{}, err
		}
		for e := 0; e < len(cluster)/direntSize; e++ {
			rec := cluster[e*direntSize:]
			if rec[0] == slotEndOfDir {
				return entryLoc{}, fmt.Errorf("%w: no such entry", litecore.ErrNotFound)
			}
			if rec[0] == slotDeleted {
				continue
			}
			ent := decodeDirEntry(rec)
			if ent.isLongName() || ent.isLabel() {
				continue
			}
			if ent.Name == raw {
				return entryLoc{ent: ent, off: base + uint32(e)*direntSize}, nil
			}
		}
	}
	return entryLoc{}, fmt.Errorf("%w: no such entry", litecore.ErrNotFound)
}

// resolvePath walks a slash-separated path from the root directory and
// returns the final entry with its on-disk location. "." is a no-op and ".."
// restarts at the root, the same approximation the ext2 driver makes.
func (v *Volume) resolvePath(path string) (entryLoc, error) {
	components := splitPath(path)
	if len(components) == 0 {
		return entryLoc{}, fmt.Errorf("%w: path names the root directory", litecore.ErrInvalidArgument)
	}

	inRoot := true
	resolved := false
	var dirCluster uint16
	var loc entryLoc

	for i, component := range components {
		switch component {
		case ".":
			continue
		case "..":
			inRoot = true
			resolved = false
			continue
		}

		raw, err := shortName(component)
		if err != nil {
			return entryLoc{}, err
		}

		if inRoot {
			loc, _, _, err = v.findInRoot(raw)
		} else {
			loc, err = v.findInDir(dirCluster, raw)
		}
		if err != nil {
			return entryLoc{}, err
		}
		resolved = true

		if i < len(components)-1 {
			if !loc.ent.isDir() {
				return entryLoc{}, fmt.Errorf("%w: %q is not a directory", litecore.ErrWrongType, component)
			}
			inRoot = false
			dirCluster = loc.ent.StartCluster
		}
	}
	if !resolved {
		return entryLoc{}, fmt.Errorf("%w: path names the root directory", litecore.ErrInvalidArgument)
	}
	return loc, nil
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ListRoot returns the root directory's entries, skipping deleted slots,
// long-name records and the volume label.
func (v *Volume) ListRoot() ([]Entry, error) {
	var entries []Entry
	base := v.rootDirStart * bytesPerSector
	sector := make([]byte, bytesPerSector)
	for s := uint32(0); s < v.rootDirSectors; s++ {
		if err := v.readBytes(base+s*bytesPerSector, sector); err != nil {
			return nil, err
		}
		done, err := collectEntries(sector, &entries)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}
	return entries, nil
}

// ListDir returns the entries of the directory at path, skipping the "." and
// ".." records. Path "/" lists the root.
func (v *Volume) ListDir(path string) ([]Entry, error) {
	if len(splitPath(path)) == 0 {
		return v.ListRoot()
	}

	loc, err := v.resolvePath(path)
	if err != nil {
		return nil, err
	}
	if !loc.ent.isDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", litecore.ErrWrongType, path)
	}

	chain, err := v.walkChain(loc.ent.StartCluster)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	cluster := make([]byte, v.clusterSize())
	for _, c := range chain {
		base, err := v.clusterByteOff(c)
		if err != nil {
			return nil, err
		}
		if err := v.readBytes(base, cluster); err != nil {
			return nil, err
		}
		done, err := collectEntries(cluster, &entries)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}
	return entries, nil
}

// collectEntries appends the live records of one directory region chunk and
// reports whether the end-of-directory marker was hit.
func collectEntries(chunk []byte, entries *[]Entry) (bool, error) {
	for e := 0; e < len(chunk)/direntSize; e++ {
		rec := chunk[e*direntSize:]
		if rec[0] == slotEndOfDir {
			return true, nil
		}
		if rec[0] == slotDeleted {
			continue
		}
		ent := decodeDirEntry(rec)
		if ent.isLongName() || ent.isLabel() {
			continue
		}
		name := displayName(ent.Name)
		if name == "." || name == ".." {
			continue
		}
		*entries = append(*entries, Entry{
			Name:         name,
			Size:         ent.Size,
			StartCluster: ent.StartCluster,
			IsDir:        ent.isDir(),
		})
	}
	return false, nil
}
