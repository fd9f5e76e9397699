package ext2

import (
	"fmt"

	litecore "github.com/nekogakure/liteCore"
)

// Entry is one directory listing entry. Size is filled from the entry's
// inode and is zero when that inode cannot be read.
type Entry struct {
	Inode    uint32
	FileType uint8
	Name     string
	Size     uint32
}

// FindInDir scans dirInode for an entry named name and returns its inode
// number. Only the 12 direct blocks are searched; directories larger than
// that are not supported.
func (v *Volume) FindInDir(dirInode *Inode, name string) (uint32, error) {
	if dirInode == nil || name == "" {
		return 0, fmt.Errorf("%w: nil directory inode or empty name", litecore.ErrInvalidArgument)
	}
	if !dirInode.IsDir() {
		return 0, fmt.Errorf("%w: not a directory", litecore.ErrWrongType)
	}
	dirSize := dirInode.Size
	if dirSize == 0 {
		return 0, fmt.Errorf("%w: %s", litecore.ErrNotFound, name)
	}

	block := make([]byte, v.BlockSize)
	var readOffset uint32
	for blockIdx := 0; blockIdx < 12 && readOffset < dirSize && dirInode.Block[blockIdx] != 0; blockIdx++ {
		if err := v.readBlock(dirInode.Block[blockIdx], block); err != nil {
			return 0, fmt.Errorf("read directory block %d: %w", dirInode.Block[blockIdx], err)
		}

		var offset uint32
		for offset < v.BlockSize && readOffset < dirSize {
			d, err := decodeDirent(block[offset:])
			if err != nil {
				return 0, err
			}
			if d.RecLen == 0 {
				break
			}
			if d.Inode != 0 && d.NameLen > 0 &&
				int(d.NameLen) == len(name) && string(d.Name) == name {
				return d.Inode, nil
			}
			offset += uint32(d.RecLen)
			readOffset += uint32(d.RecLen)
		}
	}
	return 0, fmt.Errorf("%w: %s", litecore.ErrNotFound, name)
}

// ListDir returns the entries of dirInode in on-disk order. Unlike lookup,
// listing walks the full block map, so indirect directory blocks appear.
func (v *Volume) ListDir(dirInode *Inode) ([]Entry, error) {
	if dirInode == nil {
		return nil, fmt.Errorf("%w: nil directory inode", litecore.ErrInvalidArgument)
	}
	if !dirInode.IsDir() {
		return nil, fmt.Errorf("%w: not a directory", litecore.ErrWrongType)
	}

	var entries []Entry
	block := make([]byte, v.BlockSize)
	dirSize := dirInode.Size
	var readOffset, blockIdx uint32

	for readOffset < dirSize {
		blockNum, err := v.BlockForIndex(dirInode, blockIdx)
		if err != nil {
			break
		}
		if err := v.readBlock(blockNum, block); err != nil {
			break
		}

		var offset uint32
		for offset < v.BlockSize && readOffset < dirSize {
			d, err := decodeDirent(block[offset:])
			if err != nil {
				return entries, err
			}
			if d.RecLen == 0 {
				break
			}
			if d.Inode != 0 && d.NameLen > 0 {
				e := Entry{
					Inode:    d.Inode,
					FileType: d.FileType,
					Name:     string(d.Name),
				}
				if ino, err := v.ReadInode(d.Inode); err == nil {
					e.Size = ino.Size
				}
				entries = append(entries, e)
			}
			offset += uint32(d.RecLen)
			readOffset += uint32(d.RecLen)
		}
		blockIdx++
	}
	return entries, nil
}

// insertRootDirent links the new inode under the given name in the root
// directory's first data block. It reuses a free slot whose rec_len is large
// enough, or splits the slack of the trailing entry; record sizes are always
// rounded up to 4 bytes.
func (v *Volume) insertRootDirent(rootInode *Inode, name string, inodeNum uint32, fileType uint8) error {
	if rootInode.Block[0] == 0 {
		newBlock, err := v.AllocateBlock()
		if err != nil {
			return err
		}
		rootInode.Block[0] = newBlock
		rootInode.Blocks += v.BlockSize / 512
		rootInode.Size += v.BlockSize
	}

	block := make([]byte, v.BlockSize)
	if err := v.readBlock(rootInode.Block[0], block); err != nil {
		// A freshly allocated directory block starts zeroed.
		for i := range block {
			block[i] = 0
		}
	}

	needed := direntRecordSize(len(name))
	newEnt := dirent{
		Inode:    inodeNum,
		NameLen:  uint8(len(name)),
		FileType: fileType,
		Name:     []byte(name),
	}

	var offset, lastOffset uint32
	var lastRecLen uint16
	var lastNameLen uint8
	placed := false

	for offset < v.BlockSize {
		d, err := decodeDirent(block[offset:])
		if err != nil {
			return err
		}
		if d.RecLen == 0 {
			break
		}
		if d.Inode == 0 && d.RecLen >= needed {
			// Reuse the free slot, keeping its rec_len so the chain
			// stays intact.
			newEnt.RecLen = d.RecLen
			if err := encodeDirent(block[offset:], &newEnt); err != nil {
				return err
			}
			placed = true
			break
		}
		lastOffset = offset
		lastRecLen = d.RecLen
		lastNameLen = d.NameLen
		offset += uint32(d.RecLen)
	}

	if !placed {
		if lastRecLen == 0 || lastOffset+uint32(lastRecLen) > v.BlockSize {
			return fmt.Errorf("%w: root directory block unusable", litecore.ErrNoSpace)
		}
		minimalLast := direntRecordSize(int(lastNameLen))
		if uint32(lastRecLen) < uint32(minimalLast)+uint32(needed) {
			return fmt.Errorf("%w: root directory full", litecore.ErrNoSpace)
		}
		// Shrink the trailing entry to its minimal size and give the
		// slack to the new record.
		le.PutUint16(block[lastOffset+4:], minimalLast)
		newOffset := lastOffset + uint32(minimalLast)
		newEnt.RecLen = lastRecLen - minimalLast
		if err := encodeDirent(block[newOffset:], &newEnt); err != nil {
			return err
		}
	}

	if err := v.writeBlock(rootInode.Block[0], block); err != nil {
		return fmt.Errorf("write root directory block: %w", err)
	}
	return nil
}
