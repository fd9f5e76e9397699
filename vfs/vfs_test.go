package vfs_test

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	litecore "github.com/nekogakure/liteCore"
	"github.com/nekogakure/liteCore/blockcache"
	"github.com/nekogakure/liteCore/blockdev"
	"github.com/nekogakure/liteCore/internal/testutil"
	"github.com/nekogakure/liteCore/vfs"
)

// stubMounted is an in-memory backend that counts reads, for pinning the
// whole-file buffering behavior.
type stubMounted struct {
	files     map[string][]byte
	readCalls int
	failReads int // fail this many ReadFile calls before succeeding
	failSizes int // fail this many FileSize calls before succeeding
}

func (s *stubMounted) Name() string { return "stub" }

func (s *stubMounted) FileSize(path string) (uint32, error) {
	if s.failSizes > 0 {
		s.failSizes--
		return 0, fmt.Errorf("%w: transient device error", litecore.ErrIO)
	}
	data, ok := s.files[path]
	if !ok {
		return 0, fmt.Errorf("%w: %s", litecore.ErrNotFound, path)
	}
	return uint32(len(data)), nil
}

func (s *stubMounted) ReadFile(path string, p []byte, off uint32) (int, error) {
	s.readCalls++
	if s.failReads > 0 {
		s.failReads--
		return 0, fmt.Errorf("%w: transient device error", litecore.ErrIO)
	}
	data, ok := s.files[path]
	if !ok {
		return 0, fmt.Errorf("%w: %s", litecore.ErrNotFound, path)
	}
	if off >= uint32(len(data)) {
		return 0, nil
	}
	return copy(p, data[off:]), nil
}

func (s *stubMounted) WriteFile(path string, p []byte) error {
	s.files[path] = append([]byte(nil), p...)
	return nil
}

func (s *stubMounted) CreateFile(path string) error {
	s.files[path] = nil
	return nil
}

func (s *stubMounted) Stat(path string) (vfs.PathInfo, error) {
	size, err := s.FileSize(path)
	if err != nil {
		return vfs.PathInfo{}, err
	}
	return vfs.PathInfo{Size: size}, nil
}

func (s *stubMounted) List(path string) ([]vfs.Entry, error) {
	var entries []vfs.Entry
	for name, data := range s.files {
		entries = append(entries, vfs.Entry{Name: name, Size: uint32(len(data))})
	}
	return entries, nil
}

type stubBackend struct {
	m vfs.Mounted
}

func (b stubBackend) Name() string { return "stub" }

func (b stubBackend) Mount(*blockcache.Cache) (vfs.Mounted, error) { return b.m, nil }

func dummyCache(t *testing.T) *blockcache.Cache {
	t.Helper()
	cache, err := blockcache.New(blockdev.NewMemorySized(0, 64), 0, 512, 4)
	require.NoError(t, err)
	return cache
}

func mountStub(t *testing.T, stub *stubMounted, optFns ...vfs.Option) *vfs.FS {
	t.Helper()
	r := &vfs.Registry{}
	r.Register(stubBackend{m: stub})
	fs, err := r.Mount(dummyCache(t), optFns...)
	require.NoError(t, err)
	return fs
}

func TestRegistry_ProbesFAT16First(t *testing.T) {
	fatImg := testutil.NewFAT16Builder().Build()
	dev := blockdev.NewMemory(0, fatImg)
	cache, err := blockcache.New(dev, 0, 512, 8)
	require.NoError(t, err)

	fs, err := vfs.Builtin().Mount(cache)
	require.NoError(t, err)
	assert.Equal(t, "fat16", fs.Backend())
}

func TestRegistry_FallsThroughToExt2(t *testing.T) {
	ext2Img := testutil.NewExt2Builder().Build()
	dev := blockdev.NewMemory(0, ext2Img)
	cache, err := blockcache.New(dev, 0, testutil.Ext2BlockSize, 8)
	require.NoError(t, err)

	fs, err := vfs.Builtin().Mount(cache)
	require.NoError(t, err)
	assert.Equal(t, "ext2", fs.Backend())
}

func TestRegistry_NoBackendRecognizesGarbage(t *testing.T) {
	dev := blockdev.NewMemorySized(0, 256)
	cache, err := blockcache.New(dev, 0, 512, 8)
	require.NoError(t, err)

	_, err = vfs.Builtin().Mount(cache)
	assert.ErrorIs(t, err, vfs.ErrNoBackend)
}

func TestRead_LoadsFileOnceAndServesFromBuffer(t *testing.T) {
	content := bytes.Repeat([]byte("buffered"), 100)
	stub := &stubMounted{files: map[string][]byte{"/big.bin": content}}
	fs := mountStub(t, stub)
	dt := fs.NewDescriptorTable()

	fd, err := dt.Open("/big.bin")
	require.NoError(t, err)
	require.GreaterOrEqual(t, fd, 3)

	// Open reads the size only; no content fetch yet.
	assert.Zero(t, stub.readCalls)

	var got []byte
	chunk := make([]byte, 100)
	for {
		n, err := dt.Read(fd, chunk)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		got = append(got, chunk[:n]...)
	}
	assert.Equal(t, content, got)
	assert.Equal(t, 1, stub.readCalls)
}

func TestOpen_MissingFileFailsEagerly(t *testing.T) {
	fs := mountStub(t, &stubMounted{files: map[string][]byte{}})
	dt := fs.NewDescriptorTable()

	_, err := dt.Open("/absent")
	assert.ErrorIs(t, err, litecore.ErrNotFound)
}

func TestSeek_BoundsAndWhence(t *testing.T) {
	stub := &stubMounted{files: map[string][]byte{"/f": []byte("0123456789")}}
	fs := mountStub(t, stub)
	dt := fs.NewDescriptorTable()

	fd, err := dt.Open("/f")
	require.NoError(t, err)

	pos, err := dt.Seek(fd, 4, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 4, pos)

	buf := make([]byte, 2)
	n, err := dt.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "45", string(buf[:n]))

	pos, err = dt.Seek(fd, -3, io.SeekCurrent)
	require.NoError(t, err)
	assert.EqualValues(t, 3, pos)

	pos, err = dt.Seek(fd, -1, io.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 9, pos)

	_, err = dt.Seek(fd, 1, io.SeekEnd)
	assert.ErrorIs(t, err, litecore.ErrInvalidArgument)
	_, err = dt.Seek(fd, -11, io.SeekEnd)
	assert.ErrorIs(t, err, litecore.ErrInvalidArgument)
}

// chunkRecorder records the size of every console write.
type chunkRecorder struct {
	bytes.Buffer
	sizes []int
}

func (c *chunkRecorder) Write(p []byte) (int, error) {
	c.sizes = append(c.sizes, len(p))
	return c.Buffer.Write(p)
}

func TestWrite_ConsoleChunksAt1024(t *testing.T) {
	rec := &chunkRecorder{}
	fs := mountStub(t, &stubMounted{files: map[string][]byte{}}, vfs.WithConsole(rec))
	dt := fs.NewDescriptorTable()

	payload := bytes.Repeat([]byte{'x'}, 3000)
	n, err := dt.Write(vfs.FdStdout, payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, []int{1024, 1024, 952}, rec.sizes)
	assert.Equal(t, payload, rec.Bytes())

	assert.True(t, dt.Isatty(vfs.FdStderr))
	assert.False(t, dt.Isatty(5))

	st, err := dt.Fstat(vfs.FdStdout)
	require.NoError(t, err)
	assert.EqualValues(t, vfs.StatModeCharDev, st.Mode)
}

func TestWrite_StdinIsReadOnly(t *testing.T) {
	rec := &chunkRecorder{}
	fs := mountStub(t, &stubMounted{files: map[string][]byte{}}, vfs.WithConsole(rec))
	dt := fs.NewDescriptorTable()

	n, err := dt.Write(vfs.FdStdin, []byte("nope"))
	assert.ErrorIs(t, err, litecore.ErrInvalidArgument)
	assert.Zero(t, n)
	assert.Empty(t, rec.Bytes())
}

func TestWrite_FileReplacesContentAndRefreshesBuffer(t *testing.T) {
	stub := &stubMounted{files: map[string][]byte{"/cfg": []byte("old content")}}
	fs := mountStub(t, stub)
	dt := fs.NewDescriptorTable()

	fd, err := dt.Open("/cfg")
	require.NoError(t, err)

	// Load the buffer, then overwrite through the descriptor.
	buf := make([]byte, 32)
	_, err = dt.Read(fd, buf)
	require.NoError(t, err)

	n, err := dt.Write(fd, []byte("new"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("new"), stub.files["/cfg"])

	st, err := dt.Fstat(fd)
	require.NoError(t, err)
	assert.EqualValues(t, 3, st.Size)
	assert.EqualValues(t, vfs.StatModeRegular, st.Mode)

	// The write leaves the cursor at the new end of file.
	pos, err := dt.Seek(fd, 0, io.SeekCurrent)
	require.NoError(t, err)
	assert.EqualValues(t, 3, pos)

	_, err = dt.Seek(fd, 0, io.SeekStart)
	require.NoError(t, err)
	n, err = dt.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "new", string(buf[:n]))
}

func TestReadFileAll_RetriesTransientFailures(t *testing.T) {
	stub := &stubMounted{
		files:     map[string][]byte{"/boot": []byte("kernel image")},
		failReads: 2,
	}
	fs := mountStub(t, stub)

	data, err := fs.ReadFileAll("/boot")
	require.NoError(t, err)
	assert.Equal(t, []byte("kernel image"), data)
	assert.Equal(t, 3, stub.readCalls)
}

func TestReadFileAll_RetriesTransientSizeFailures(t *testing.T) {
	stub := &stubMounted{
		files:     map[string][]byte{"/boot": []byte("kernel image")},
		failSizes: 1,
	}
	fs := mountStub(t, stub)

	// The first attempt dies on the size fetch; the second fetches the size
	// again and reads the content.
	data, err := fs.ReadFileAll("/boot")
	require.NoError(t, err)
	assert.Equal(t, []byte("kernel image"), data)
	assert.Equal(t, 1, stub.readCalls)
}

func TestReadFileAll_GivesUpAfterThreeAttempts(t *testing.T) {
	stub := &stubMounted{
		files:     map[string][]byte{"/boot": []byte("kernel image")},
		failReads: 5,
	}
	fs := mountStub(t, stub)

	_, err := fs.ReadFileAll("/boot")
	assert.ErrorIs(t, err, litecore.ErrIO)
	assert.Equal(t, 3, stub.readCalls)
}

func TestReadFileAll_AttemptCountIsConfigurable(t *testing.T) {
	stub := &stubMounted{
		files:     map[string][]byte{"/boot": []byte("kernel image")},
		failReads: 1,
	}
	fs := mountStub(t, stub, vfs.WithReadAttempts(1))

	_, err := fs.ReadFileAll("/boot")
	assert.ErrorIs(t, err, litecore.ErrIO)
	assert.Equal(t, 1, stub.readCalls)
}

func TestOpen_TableExhaustion(t *testing.T) {
	stub := &stubMounted{files: map[string][]byte{"/f": []byte("x")}}
	fs := mountStub(t, stub)
	dt := fs.NewDescriptorTable()

	opened := 0
	for {
		_, err := dt.Open("/f")
		if err != nil {
			assert.ErrorIs(t, err, litecore.ErrLimitExceeded)
			break
		}
		opened++
		require.Less(t, opened, 64)
	}
	assert.Equal(t, vfs.MaxDescriptors-3, opened)
}

func TestEndToEnd_FAT16ThroughVFS(t *testing.T) {
	b := testutil.NewFAT16Builder()
	b.AddFile("README.TXT", []byte("storage stack"))
	dev := blockdev.NewMemory(0, b.Build())
	cache, err := blockcache.New(dev, 0, 512, 8)
	require.NoError(t, err)

	fs, err := vfs.Builtin().Mount(cache)
	require.NoError(t, err)

	info, err := fs.ResolvePath("/readme.txt")
	require.NoError(t, err)
	assert.False(t, info.IsDir)
	assert.EqualValues(t, 13, info.Size)

	data, err := fs.ReadFileAll("/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("storage stack"), data)

	entries, err := fs.ListPath("/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "README.TXT", entries[0].Name)
}
