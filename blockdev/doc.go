// Package blockdev defines the sector device boundary the block cache sits
// on, together with a handful of implementations: an in-memory image device,
// a file-backed device, a read-only mmap device, an object-storage device
// (subpackage minio), and wrappers for tracing and throttling.
//
// Sectors are fixed at 512 bytes. A single device call transfers at most 255
// sectors; callers needing more issue multiple calls.
package blockdev
