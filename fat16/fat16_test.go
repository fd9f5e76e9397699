package fat16_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	litecore "github.com/nekogakure/liteCore"
	"github.com/nekogakure/liteCore/blockcache"
	"github.com/nekogakure/liteCore/blockdev"
	"github.com/nekogakure/liteCore/fat16"
	"github.com/nekogakure/liteCore/internal/testutil"
)

func mountBuilt(t *testing.T, img []byte) (*fat16.Volume, *blockcache.Cache, *blockdev.Memory) {
	t.Helper()
	dev := blockdev.NewMemory(0, img)
	cache, err := blockcache.New(dev, 0, 512, 16)
	require.NoError(t, err)
	vol, err := fat16.Mount(cache)
	require.NoError(t, err)
	return vol, cache, dev
}

func TestMount_RejectsMissingBootSignature(t *testing.T) {
	img := testutil.NewFAT16Builder().Build()
	img[510] = 0

	dev := blockdev.NewMemory(0, img)
	cache, err := blockcache.New(dev, 0, 512, 4)
	require.NoError(t, err)

	_, err = fat16.Mount(cache)
	assert.ErrorIs(t, err, litecore.ErrCorrupt)
}

func TestMount_RejectsNonStandardSectorSize(t *testing.T) {
	img := testutil.NewFAT16Builder().Build()
	img[11] = 0x00 // 1024 bytes per sector
	img[12] = 0x04

	_, err := fat16.MountImage(img)
	assert.ErrorIs(t, err, litecore.ErrUnsupported)
}

func TestReadFile_FollowsClusterChain(t *testing.T) {
	data := bytes.Repeat([]byte("FAT16 cluster chain "), 60) // 1200 bytes, 3 clusters
	b := testutil.NewFAT16Builder()
	b.AddFile("CHAIN.BIN", data)

	vol, err := fat16.MountImage(b.Build())
	require.NoError(t, err)

	buf := make([]byte, len(data))
	n, err := vol.ReadFile("/chain.bin", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, data, buf[:n])

	// Offset read starts inside the second cluster.
	n, err = vol.ReadFile("/CHAIN.BIN", buf, 700)
	require.NoError(t, err)
	assert.Equal(t, len(data)-700, n)
	assert.Equal(t, data[700:], buf[:n])
}

func TestResolvePath_Subdirectory(t *testing.T) {
	b := testutil.NewFAT16Builder()
	dir := b.AddDir("BOOT")
	b.AddFileInDir(dir, "CONFIG.SYS", []byte("menu=1\r\n"))

	vol, err := fat16.MountImage(b.Build())
	require.NoError(t, err)

	size, err := vol.FileSize("/boot/config.sys")
	require.NoError(t, err)
	assert.Equal(t, uint32(8), size)

	isDir, err := vol.IsDir("/boot")
	require.NoError(t, err)
	assert.True(t, isDir)

	_, err = vol.FileSize("/boot/missing.txt")
	assert.ErrorIs(t, err, litecore.ErrNotFound)
}

func TestListDir_SkipsDotEntriesAndDeletedSlots(t *testing.T) {
	b := testutil.NewFAT16Builder()
	b.AddFile("KEEP.TXT", []byte("k"))
	b.AddFile("GONE.TXT", []byte("g"))
	b.DeleteRootEntry(1)
	dir := b.AddDir("SUB")
	b.AddFileInDir(dir, "INNER.DAT", []byte("abc"))

	vol, err := fat16.MountImage(b.Build())
	require.NoError(t, err)

	root, err := vol.ListDir("/")
	require.NoError(t, err)
	names := entryNames(root)
	assert.Contains(t, names, "KEEP.TXT")
	assert.Contains(t, names, "SUB")
	assert.NotContains(t, names, "GONE.TXT")

	sub, err := vol.ListDir("/sub")
	require.NoError(t, err)
	names = entryNames(sub)
	assert.Equal(t, []string{"INNER.DAT"}, names)
}

func entryNames(entries []fat16.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestCreateFile_ReusesDeletedSlot(t *testing.T) {
	b := testutil.NewFAT16Builder()
	b.AddFile("FIRST.TXT", []byte("1"))
	b.AddFile("SECOND.TXT", []byte("2"))
	b.DeleteRootEntry(0)

	vol, _, _ := mountBuilt(t, b.Build())

	require.NoError(t, vol.CreateFile("/NEW.TXT"))

	// The new record landed in the slot FIRST.TXT vacated, ahead of
	// SECOND.TXT.
	entries, err := vol.ListDir("/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "NEW.TXT", entries[0].Name)
	assert.Equal(t, "SECOND.TXT", entries[1].Name)
}

func TestCreateFile_RejectsBadNames(t *testing.T) {
	vol, _, _ := mountBuilt(t, testutil.NewFAT16Builder().Build())

	assert.ErrorIs(t, vol.CreateFile("/toolongname.txt"), litecore.ErrInvalidArgument)
	assert.ErrorIs(t, vol.CreateFile("/a/b.txt"), litecore.ErrInvalidArgument)
}

func TestCreateFile_ExistingNameTruncatesInPlace(t *testing.T) {
	b := testutil.NewFAT16Builder()
	b.AddFile("NOTES.TXT", bytes.Repeat([]byte{0x42}, 1024))

	vol, _, _ := mountBuilt(t, b.Build())

	// 8.3 matching is case-insensitive through the uppercase mapping.
	require.NoError(t, vol.CreateFile("/notes.txt"))

	size, err := vol.FileSize("/NOTES.TXT")
	require.NoError(t, err)
	assert.Zero(t, size)

	// Still a single root record.
	entries, err := vol.ListDir("/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "NOTES.TXT", entries[0].Name)
}

func TestWriteFile_OverwriteReplacesChain(t *testing.T) {
	b := testutil.NewFAT16Builder()
	b.AddFile("DATA.BIN", bytes.Repeat([]byte{0xAA}, 1500)) // 3 clusters

	vol, cache, dev := mountBuilt(t, b.Build())

	short := []byte("replacement")
	require.NoError(t, vol.WriteFile("/data.bin", short))

	size, err := vol.FileSize("/data.bin")
	require.NoError(t, err)
	assert.Equal(t, uint32(len(short)), size)

	buf := make([]byte, 64)
	n, err := vol.ReadFile("/data.bin", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, short, buf[:n])

	// The overwrite persists through a flush.
	require.NoError(t, cache.Flush())
	imgVol, err := fat16.MountImage(dev.Image())
	require.NoError(t, err)
	n, err = imgVol.ReadFile("/data.bin", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, short, buf[:n])
}

func TestWriteFile_EmptyContentFreesChain(t *testing.T) {
	b := testutil.NewFAT16Builder()
	b.AddFile("TRUNC.ME", bytes.Repeat([]byte{0x11}, 900))

	vol, _, _ := mountBuilt(t, b.Build())

	require.NoError(t, vol.WriteFile("/trunc.me", nil))

	size, err := vol.FileSize("/trunc.me")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), size)

	buf := make([]byte, 16)
	n, err := vol.ReadFile("/trunc.me", buf, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWriteFile_CreatesMissingRootFile(t *testing.T) {
	vol, _, _ := mountBuilt(t, testutil.NewFAT16Builder().Build())

	content := []byte("fresh file")
	require.NoError(t, vol.WriteFile("/fresh.txt", content))

	buf := make([]byte, 32)
	n, err := vol.ReadFile("/fresh.txt", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, content, buf[:n])
}

func TestWriteFile_AllOrNothingOnExhaustion(t *testing.T) {
	b := testutil.NewFAT16Builder()
	b.AddFile("SMALL.TXT", []byte("s"))

	vol, _, _ := mountBuilt(t, b.Build())

	// Far more clusters than the volume holds. The allocation must fail
	// as a whole instead of linking a partial chain.
	huge := make([]byte, 200*512)
	err := vol.WriteFile("/small.txt", huge)
	assert.ErrorIs(t, err, litecore.ErrNoSpace)

	size, err := vol.FileSize("/small.txt")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), size)
}
