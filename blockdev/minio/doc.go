// Package minio provides a read-only sector device backed by a disk image
// object in MinIO or any S3-compatible object storage. Each ReadSectors call
// issues one ranged GetObject; Warm can prefetch sector ranges concurrently
// to hide latency before the single-threaded stack above starts reading.
//
// Example:
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//		Creds: credentials.NewStaticV4("access", "secret", ""),
//	})
//	dev, err := miniodev.Open(context.Background(), client, "images", "boot.img", 0)
package minio
