package ext2

import (
	"fmt"
	"strings"

	litecore "github.com/nekogakure/liteCore"
)

// MaxSymlinkDepth bounds symlink dereferencing during one path resolution.
const MaxSymlinkDepth = 8

// ErrSymlinkLoop is returned when a resolution dereferences more than
// MaxSymlinkDepth symlinks.
var ErrSymlinkLoop = fmt.Errorf("%w: symlink depth exceeded", litecore.ErrLimitExceeded)

// ResolvePath resolves a slash-separated path to an inode number. Absolute
// and relative paths both start at the root directory (there is no working
// directory at this layer). "." is a no-op.
//
// ".." resets resolution to the root directory instead of walking to the
// true parent. This is a carried-over approximation, pinned by tests; do not
// change it without auditing callers that depend on it.
//
// Symlinks are dereferenced inline, up to MaxSymlinkDepth across the whole
// resolution; beyond that ErrSymlinkLoop is returned.
func (v *Volume) ResolvePath(path string) (uint32, error) {
	depth := 0
	return v.resolvePath(path, &depth)
}

func (v *Volume) resolvePath(path string, depth *int) (uint32, error) {
	if path == "" {
		return 0, fmt.Errorf("%w: empty path", litecore.ErrInvalidArgument)
	}

	current := uint32(RootIno)
	rest := strings.TrimLeft(path, "/")

	for rest != "" {
		var component string
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			component = rest[:i]
			rest = strings.TrimLeft(rest[i:], "/")
		} else {
			component = rest
			rest = ""
		}
		if component == "" {
			continue
		}
		if len(component) > 255 {
			return 0, fmt.Errorf("%w: component too long", litecore.ErrLimitExceeded)
		}

		ino, err := v.ReadInode(current)
		if err != nil {
			return 0, err
		}

		if ino.IsSymlink() {
			*depth++
			if *depth > MaxSymlinkDepth {
				return 0, ErrSymlinkLoop
			}
			target, err := v.resolveSymlink(&ino, depth)
			if err != nil {
				return 0, err
			}
			current = target
			ino, err = v.ReadInode(current)
			if err != nil {
				return 0, err
			}
		}

		if !ino.IsDir() {
			return 0, fmt.Errorf("%w: %q is not a directory", litecore.ErrWrongType, component)
		}

		switch component {
		case ".":
			// stay
		case "..":
			// Parent lookup is not implemented; fall back to root.
			current = RootIno
		default:
			next, err := v.FindInDir(&ino, component)
			if err != nil {
				return 0, err
			}
			current = next
		}
	}

	// Dereference a trailing symlink so callers always land on the final
	// target. Chained targets recurse through resolvePath and share the
	// same depth budget.
	for {
		ino, err := v.ReadInode(current)
		if err != nil {
			return 0, err
		}
		if !ino.IsSymlink() {
			return current, nil
		}
		*depth++
		if *depth > MaxSymlinkDepth {
			return 0, ErrSymlinkLoop
		}
		current, err = v.resolveSymlink(&ino, depth)
		if err != nil {
			return 0, err
		}
	}
}

// resolveSymlink reads the link target of linkInode and resolves it to an
// inode number. Targets of at most 60 bytes live inline in the block-pointer
// array; longer targets occupy ordinary data blocks.
func (v *Volume) resolveSymlink(linkInode *Inode, depth *int) (uint32, error) {
	if linkInode == nil {
		return 0, fmt.Errorf("%w: nil inode", litecore.ErrInvalidArgument)
	}
	if !linkInode.IsSymlink() {
		return 0, fmt.Errorf("%w: not a symlink", litecore.ErrWrongType)
	}

	targetLen := linkInode.Size
	if targetLen >= 256 {
		return 0, fmt.Errorf("%w: symlink target %d bytes", litecore.ErrLimitExceeded, targetLen)
	}

	var target string
	if targetLen <= inlineSymlinkMax {
		target = string(linkInode.inlineTarget(targetLen))
	} else {
		buf := make([]byte, targetLen)
		n, err := v.ReadInodeData(linkInode, buf, 0)
		if err != nil {
			return 0, err
		}
		if uint32(n) != targetLen {
			return 0, fmt.Errorf("%w: short symlink target read", litecore.ErrCorrupt)
		}
		target = string(buf)
	}

	return v.resolvePath(target, depth)
}
