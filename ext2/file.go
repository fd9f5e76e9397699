package ext2

import (
	"fmt"
	"strings"

	litecore "github.com/nekogakure/liteCore"
)

// CreateFile creates an empty regular file directly under the root
// directory. The path must be of the form "/name"; nested paths are
// rejected. It fails when the name already exists, and with
// litecore.ErrNoSpace when the root directory block has neither a reusable
// slot nor splittable slack.
//
// A failure after the inode was allocated leaves the bitmap bit set; partial
// state is not rolled back.
func (v *Volume) CreateFile(path string, mode uint16) (uint32, error) {
	if v.cache == nil {
		return 0, fmt.Errorf("%w: image-backed volume is read-only", litecore.ErrUnsupported)
	}
	if !strings.HasPrefix(path, "/") {
		return 0, fmt.Errorf("%w: path must be root-relative", litecore.ErrInvalidArgument)
	}
	name := path[1:]
	if name == "" || strings.ContainsRune(name, '/') {
		return 0, fmt.Errorf("%w: only files directly under / are supported", litecore.ErrInvalidArgument)
	}
	if len(name) > 255 {
		return 0, fmt.Errorf("%w: name too long", litecore.ErrLimitExceeded)
	}

	rootInode, err := v.ReadInode(RootIno)
	if err != nil {
		return 0, fmt.Errorf("read root inode: %w", err)
	}
	if _, err := v.FindInDir(&rootInode, name); err == nil {
		return 0, fmt.Errorf("%w: %s already exists", litecore.ErrInvalidArgument, name)
	}

	inodeNum, err := v.AllocateInode()
	if err != nil {
		return 0, err
	}

	newInode := Inode{
		Mode:       mode,
		LinksCount: 1,
	}
	if err := v.WriteInode(inodeNum, &newInode); err != nil {
		return 0, err
	}

	if err := v.insertRootDirent(&rootInode, name, inodeNum, FileTypeRegular); err != nil {
		return 0, err
	}
	if err := v.WriteInode(RootIno, &rootInode); err != nil {
		return 0, err
	}
	return inodeNum, nil
}

// ReadFileByPath resolves path to a regular file and copies its content into
// p starting at byte offset off, returning the byte count. Symlinks on the
// path are dereferenced by resolution.
func (v *Volume) ReadFileByPath(path string, p []byte, off uint32) (int, error) {
	inodeNum, err := v.ResolvePath(path)
	if err != nil {
		return 0, err
	}
	ino, err := v.ReadInode(inodeNum)
	if err != nil {
		return 0, err
	}
	if !ino.IsRegular() {
		return 0, fmt.Errorf("%w: %s is not a regular file", litecore.ErrWrongType, path)
	}
	return v.ReadInodeData(&ino, p, off)
}

// FileSize resolves path and returns the inode's size in bytes.
func (v *Volume) FileSize(path string) (uint32, error) {
	inodeNum, err := v.ResolvePath(path)
	if err != nil {
		return 0, err
	}
	ino, err := v.ReadInode(inodeNum)
	if err != nil {
		return 0, err
	}
	return ino.Size, nil
}

// WriteFileByPath overwrites the regular file at path with p, creating it
// under the root directory when absent. The inode's size only grows; a file
// shorter than its previous content keeps the old tail beyond the new
// length, because data writes never truncate.
func (v *Volume) WriteFileByPath(path string, p []byte) error {
	if v.cache == nil {
		return fmt.Errorf("%w: image-backed volume is read-only", litecore.ErrUnsupported)
	}

	inodeNum, err := v.ResolvePath(path)
	if err != nil {
		inodeNum, err = v.CreateFile(path, ModeFmtRegular|0644)
		if err != nil {
			return err
		}
	}

	ino, err := v.ReadInode(inodeNum)
	if err != nil {
		return err
	}
	if !ino.IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", litecore.ErrWrongType, path)
	}

	n, err := v.WriteInodeData(&ino, p, 0)
	if err != nil {
		return err
	}
	if n < len(p) {
		// Persist what did land before reporting the shortfall.
		if werr := v.WriteInode(inodeNum, &ino); werr != nil {
			return werr
		}
		return fmt.Errorf("%w: wrote %d of %d bytes", litecore.ErrNoSpace, n, len(p))
	}
	return v.WriteInode(inodeNum, &ino)
}
