// Package image loads and saves raw volume images, with transparent zstd
// and lz4 compression chosen by file extension.
package image

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	litecore "github.com/nekogakure/liteCore"
	"github.com/nekogakure/liteCore/blockdev"
)

// Extensions that select a codec. Anything else is treated as a raw image.
const (
	ExtZstd = ".zst"
	ExtLZ4  = ".lz4"
)

// Load reads a volume image from path, decompressing .zst and .lz4 files.
func Load(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", litecore.ErrNotFound, path)
		}
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ExtZstd:
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		data, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress %s: %v", litecore.ErrCorrupt, path, err)
		}
		return data, nil
	case ExtLZ4:
		data, err := io.ReadAll(lz4.NewReader(f))
		if err != nil {
			return nil, fmt.Errorf("%w: decompress %s: %v", litecore.ErrCorrupt, path, err)
		}
		return data, nil
	default:
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		return data, nil
	}
}

// LoadDevice loads the image at path and wraps it as an in-memory block
// device for the given drive number.
func LoadDevice(drive uint8, path string) (*blockdev.Memory, error) {
	data, err := Load(path)
	if err != nil {
		return nil, err
	}
	if len(data)%blockdev.SectorSize != 0 {
		return nil, fmt.Errorf("%w: image size %d is not sector aligned", litecore.ErrCorrupt, len(data))
	}
	return blockdev.NewMemory(drive, data), nil
}

// Save writes a volume image to path, compressing per the extension. The
// bytes go to a temp file in the target directory first and are renamed into
// place, so readers never observe a half-written image.
func Save(path string, img []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".image-*")
	if err != nil {
		return fmt.Errorf("create temp image: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpName)
	}()

	if err := encodeTo(tmp, path, img); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename image into place: %w", err)
	}
	return nil
}

func encodeTo(w io.Writer, path string, img []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("zstd writer: %w", err)
		}
		if _, err := enc.Write(img); err != nil {
			enc.Close()
			return fmt.Errorf("compress image: %w", err)
		}
		return enc.Close()
	case ExtLZ4:
		enc := lz4.NewWriter(w)
		if _, err := enc.Write(img); err != nil {
			enc.Close()
			return fmt.Errorf("compress image: %w", err)
		}
		return enc.Close()
	default:
		if _, err := w.Write(img); err != nil {
			return fmt.Errorf("write image: %w", err)
		}
		return nil
	}
}
