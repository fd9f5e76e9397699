package vfs

import (
	"errors"
	"fmt"

	litecore "github.com/nekogakure/liteCore"
	"github.com/nekogakure/liteCore/blockcache"
	"github.com/nekogakure/liteCore/ext2"
	"github.com/nekogakure/liteCore/fat16"
)

// ErrNoBackend is returned by Registry.Mount when no registered backend
// recognizes the volume.
var ErrNoBackend = errors.New("vfs: no backend recognizes the volume")

// Entry is one directory listing entry, backend-neutral.
type Entry struct {
	Name  string
	Size  uint32
	IsDir bool
}

// PathInfo describes a resolved path.
type PathInfo struct {
	IsDir bool
	Size  uint32
}

// Mounted is a successfully mounted volume, the handle every VFS operation
// goes through. Paths are slash-separated and rooted at the volume root.
type Mounted interface {
	// Name identifies the backend, e.g. "fat16".
	Name() string

	FileSize(path string) (uint32, error)
	ReadFile(path string, p []byte, off uint32) (int, error)
	WriteFile(path string, p []byte) error
	CreateFile(path string) error
	Stat(path string) (PathInfo, error)
	List(path string) ([]Entry, error)
}

// Backend probes and mounts one filesystem type.
type Backend interface {
	Name() string
	Mount(cache *blockcache.Cache) (Mounted, error)
}

// Registry holds backends in probe order.
type Registry struct {
	backends []Backend
}

// Builtin returns a registry with the built-in backends. FAT16 is probed
// before ext2.
func Builtin() *Registry {
	r := &Registry{}
	r.Register(FAT16Backend{})
	r.Register(Ext2Backend{})
	return r
}

// Register appends a backend to the probe order.
func (r *Registry) Register(b Backend) {
	r.backends = append(r.backends, b)
}

// Mount probes the backends in registration order and wraps the first one
// that mounts. When none succeeds the error wraps ErrNoBackend.
func (r *Registry) Mount(cache *blockcache.Cache, optFns ...Option) (*FS, error) {
	if cache == nil {
		return nil, fmt.Errorf("%w: nil cache", litecore.ErrInvalidArgument)
	}

	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	for _, b := range r.backends {
		m, err := b.Mount(cache)
		if err != nil {
			opts.logger.Debug("backend declined volume", "backend", b.Name(), "err", err)
			continue
		}
		opts.logger.Info("volume mounted", "backend", m.Name())
		return newFS(m, opts), nil
	}
	return nil, ErrNoBackend
}

// FAT16Backend mounts FAT16 volumes.
type FAT16Backend struct{}

func (FAT16Backend) Name() string { return "fat16" }

func (FAT16Backend) Mount(cache *blockcache.Cache) (Mounted, error) {
	v, err := fat16.Mount(cache)
	if err != nil {
		return nil, err
	}
	return &fat16Mounted{v: v}, nil
}

type fat16Mounted struct {
	v *fat16.Volume
}

func (m *fat16Mounted) Name() string { return "fat16" }

func (m *fat16Mounted) FileSize(path string) (uint32, error) { return m.v.FileSize(path) }

func (m *fat16Mounted) ReadFile(path string, p []byte, off uint32) (int, error) {
	return m.v.ReadFile(path, p, off)
}

func (m *fat16Mounted) WriteFile(path string, p []byte) error { return m.v.WriteFile(path, p) }

func (m *fat16Mounted) CreateFile(path string) error { return m.v.CreateFile(path) }

func (m *fat16Mounted) Stat(path string) (PathInfo, error) {
	isDir, err := m.v.IsDir(path)
	if err != nil {
		return PathInfo{}, err
	}
	if isDir {
		return PathInfo{IsDir: true}, nil
	}
	size, err := m.v.FileSize(path)
	if err != nil {
		return PathInfo{}, err
	}
	return PathInfo{Size: size}, nil
}

func (m *fat16Mounted) List(path string) ([]Entry, error) {
	raw, err := m.v.ListDir(path)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, Entry{Name: e.Name, Size: e.Size, IsDir: e.IsDir})
	}
	return entries, nil
}

// Ext2Backend mounts ext2 volumes.
type Ext2Backend struct{}

func (Ext2Backend) Name() string { return "ext2" }

func (Ext2Backend) Mount(cache *blockcache.Cache) (Mounted, error) {
	v, err := ext2.Mount(cache)
	if err != nil {
		return nil, err
	}
	return &ext2Mounted{v: v}, nil
}

type ext2Mounted struct {
	v *ext2.Volume
}

func (m *ext2Mounted) Name() string { return "ext2" }

func (m *ext2Mounted) FileSize(path string) (uint32, error) { return m.v.FileSize(path) }

func (m *ext2Mounted) ReadFile(path string, p []byte, off uint32) (int, error) {
	return m.v.ReadFileByPath(path, p, off)
}

func (m *ext2Mounted) WriteFile(path string, p []byte) error { return m.v.WriteFileByPath(path, p) }

func (m *ext2Mounted) CreateFile(path string) error {
	_, err := m.v.CreateFile(path, ext2.ModeFmtRegular|0644)
	return err
}

func (m *ext2Mounted) Stat(path string) (PathInfo, error) {
	inodeNum, err := m.v.ResolvePath(path)
	if err != nil {
		return PathInfo{}, err
	}
	ino, err := m.v.ReadInode(inodeNum)
	if err != nil {
		return PathInfo{}, err
	}
	return PathInfo{IsDir: ino.IsDir(), Size: ino.Size}, nil
}

func (m *ext2Mounted) List(path string) ([]Entry, error) {
	inodeNum, err := m.v.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	ino, err := m.v.ReadInode(inodeNum)
	if err != nil {
		return nil, err
	}
	raw, err := m.v.ListDir(&ino)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw))
	for _, e := range raw {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		entries = append(entries, Entry{
			Name:  e.Name,
			Size:  e.Size,
			IsDir: e.FileType == ext2.FileTypeDir,
		})
	}
	return entries, nil
}
