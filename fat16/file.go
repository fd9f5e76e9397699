package fat16

import (
	"errors"
	"fmt"
	"strings"

	litecore "github.com/nekogakure/liteCore"
)

// CreateFile creates an empty file directly under the root directory. The
// path must be of the form "/name" with an 8.3-compatible name. When the
// name already exists its cluster chain is freed and the record reset in
// place, so creating is also truncating. A new record reuses a deleted slot
// when one exists, otherwise it claims the end-of-directory slot; a full
// root directory yields litecore.ErrNoSpace.
func (v *Volume) CreateFile(path string) error {
	if v.cache == nil {
		return fmt.Errorf("%w: image-backed volume is read-only", litecore.ErrUnsupported)
	}
	name := strings.TrimPrefix(path, "/")
	if name == "" || strings.ContainsRune(name, '/') {
		return fmt.Errorf("%w: only files directly under / are supported", litecore.ErrInvalidArgument)
	}
	raw, err := shortName(name)
	if err != nil {
		return err
	}

	loc, freeOff, haveFree, err := v.findInRoot(raw)
	if err == nil {
		if loc.ent.isDir() {
			return fmt.Errorf("%w: %s is a directory", litecore.ErrWrongType, name)
		}
		if err := v.freeChain(loc.ent.StartCluster); err != nil {
			return err
		}
		loc.ent.StartCluster = 0
		loc.ent.Size = 0
		var rec [direntSize]byte
		encodeDirEntry(rec[:], &loc.ent)
		return v.writeBytes(loc.off, rec[:])
	}
	if !errors.Is(err, litecore.ErrNotFound) {
		return err
	}
	if !haveFree {
		return fmt.Errorf("%w: root directory is full", litecore.ErrNoSpace)
	}

	ent := dirEntry{Name: raw, Attr: AttrArchive}
	var rec [direntSize]byte
	encodeDirEntry(rec[:], &ent)
	return v.writeBytes(freeOff, rec[:])
}

// ReadFile resolves path to a file and copies its content into p starting at
// byte offset off, following the cluster chain. It returns the byte count,
// clamped at the file size.
func (v *Volume) ReadFile(path string, p []byte, off uint32) (int, error) {
	loc, err := v.resolvePath(path)
	if err != nil {
		return 0, err
	}
	if loc.ent.isDir() {
		return 0, fmt.Errorf("%w: %s is a directory", litecore.ErrWrongType, path)
	}

	size := loc.ent.Size
	if off >= size || size == 0 {
		return 0, nil
	}
	want := uint32(len(p))
	if off+want > size || off+want < off {
		want = size - off
	}

	chain, err := v.walkChain(loc.ent.StartCluster)
	if err != nil {
		return 0, err
	}

	// Walk the chain by logical position; clusters before off are skipped.
	cs := v.clusterSize()
	read := uint32(0)
	cluster := make([]byte, cs)
	for i, c := range chain {
		logicalStart := uint32(i) * cs
		logicalEnd := logicalStart + cs
		if logicalEnd <= off {
			continue
		}
		if logicalStart >= off+want {
			break
		}
		base, err := v.clusterByteOff(c)
		if err != nil {
			return int(read), err
		}
		if err := v.readBytes(base, cluster); err != nil {
			return int(read), err
		}

		from := uint32(0)
		if off > logicalStart {
			from = off - logicalStart
		}
		to := cs
		if logicalEnd > off+want {
			to = off + want - logicalStart
		}
		read += uint32(copy(p[read:], cluster[from:to]))
	}
	return int(read), nil
}

// FileSize resolves path and returns the file's size in bytes.
func (v *Volume) FileSize(path string) (uint32, error) {
	loc, err := v.resolvePath(path)
	if err != nil {
		return 0, err
	}
	return loc.ent.Size, nil
}

// IsDir resolves path and reports whether it names a directory. Path "/" is
// the root directory.
func (v *Volume) IsDir(path string) (bool, error) {
	if len(splitPath(path)) == 0 {
		return true, nil
	}
	loc, err := v.resolvePath(path)
	if err != nil {
		return false, err
	}
	return loc.ent.isDir(), nil
}

// WriteFile replaces the file's content with p, creating the file under the
// root directory when absent. The old cluster chain is freed, a fresh chain
// is allocated all at once, the final cluster is zero padded, and the
// directory record's start cluster and size are rewritten. Writing zero
// bytes leaves the record with no chain.
func (v *Volume) WriteFile(path string, p []byte) error {
	if v.cache == nil {
		return fmt.Errorf("%w: image-backed volume is read-only", litecore.ErrUnsupported)
	}

	loc, err := v.resolvePath(path)
	if errors.Is(err, litecore.ErrNotFound) {
		if cerr := v.CreateFile(path); cerr != nil {
			return cerr
		}
		loc, err = v.resolvePath(path)
	}
	if err != nil {
		return err
	}
	if loc.ent.isDir() {
		return fmt.Errorf("%w: %s is a directory", litecore.ErrWrongType, path)
	}

	if err := v.freeChain(loc.ent.StartCluster); err != nil {
		return err
	}

	start := uint16(0)
	if len(p) > 0 {
		cs := v.clusterSize()
		clusters := (uint32(len(p)) + cs - 1) / cs
		chain, err := v.allocateChain(int(clusters))
		if err != nil {
			return err
		}
		start = chain[0]

		buf := make([]byte, cs)
		remaining := p
		for _, c := range chain {
			n := copy(buf, remaining)
			for i := n; i < int(cs); i++ {
				buf[i] = 0
			}
			remaining = remaining[n:]
			base, err := v.clusterByteOff(c)
			if err != nil {
				return err
			}
			if err := v.writeBytes(base, buf); err != nil {
				return err
			}
		}
	}

	loc.ent.StartCluster = start
	loc.ent.Size = uint32(len(p))
	var rec [direntSize]byte
	encodeDirEntry(rec[:], &loc.ent)
	return v.writeBytes(loc.off, rec[:])
}
