package minio

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	litecore "github.com/nekogakure/liteCore"
	"github.com/nekogakure/liteCore/blockdev"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Device serves sectors out of one disk-image object via ranged reads. It is
// read-only: the stack can mount and read remote images but never mutates
// them.
type Device struct {
	client *minio.Client
	bucket string
	key    string
	drive  uint8
	size   int64

	// warmSem limits concurrent prefetch fetches.
	warmSem *semaphore.Weighted
}

var _ blockdev.Device = (*Device)(nil)

// Open stats the object to learn its size and returns a Device for it.
func Open(ctx context.Context, client *minio.Client, bucket, key string, drive uint8) (*Device, error) {
	info, err := client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, fmt.Errorf("%w: object %s/%s", litecore.ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("%w: stat %s/%s: %w", litecore.ErrIO, bucket, key, err)
	}
	return &Device{
		client:  client,
		bucket:  bucket,
		key:     key,
		drive:   drive,
		size:    info.Size,
		warmSem: semaphore.NewWeighted(8),
	}, nil
}

// Size returns the image size in bytes.
func (d *Device) Size() int64 { return d.size }

func (d *Device) readRange(ctx context.Context, off, length int64, buf []byte) error {
	opts := minio.GetObjectOptions{}
	end := off + length - 1
	if end >= d.size {
		return fmt.Errorf("%w: range %d+%d beyond image size %d", litecore.ErrIO, off, length, d.size)
	}
	if err := opts.SetRange(off, end); err != nil {
		return fmt.Errorf("%w: %w", litecore.ErrInvalidArgument, err)
	}

	obj, err := d.client.GetObject(ctx, d.bucket, d.key, opts)
	if err != nil {
		return fmt.Errorf("%w: get %s/%s: %w", litecore.ErrIO, d.bucket, d.key, err)
	}
	defer obj.Close()

	if _, err := io.ReadFull(obj, buf[:length]); err != nil {
		return fmt.Errorf("%w: read %s/%s: %w", litecore.ErrIO, d.bucket, d.key, err)
	}
	return nil
}

// ReadSectors implements blockdev.Device.
func (d *Device) ReadSectors(drive uint8, lba uint32, count uint8, buf []byte) error {
	if drive != d.drive {
		return fmt.Errorf("%w: no drive %d", litecore.ErrInvalidArgument, drive)
	}
	if count == 0 || len(buf) < int(count)*blockdev.SectorSize {
		return fmt.Errorf("%w: bad transfer", litecore.ErrInvalidArgument)
	}
	off := int64(lba) * blockdev.SectorSize
	length := int64(count) * blockdev.SectorSize
	return d.readRange(context.Background(), off, length, buf)
}

// WriteSectors implements blockdev.Device. Remote image devices are
// read-only.
func (d *Device) WriteSectors(drive uint8, lba uint32, count uint8, data []byte) error {
	return fmt.Errorf("%w: object-storage device is read-only", litecore.ErrUnsupported)
}

// Warm prefetches the given LBAs concurrently and discards the data, so the
// object store's edge cache is hot before sequential mounting starts. Fetches
// are bounded by an internal semaphore.
func (d *Device) Warm(ctx context.Context, lbas []uint32) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, lba := range lbas {
		lba := lba
		if err := d.warmSem.Acquire(ctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer d.warmSem.Release(1)
			buf := make([]byte, blockdev.SectorSize)
			return d.readRange(ctx, int64(lba)*blockdev.SectorSize, blockdev.SectorSize, buf)
		})
	}
	return g.Wait()
}
