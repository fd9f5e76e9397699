package ext2_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	litecore "github.com/nekogakure/liteCore"
	"github.com/nekogakure/liteCore/blockcache"
	"github.com/nekogakure/liteCore/blockdev"
	"github.com/nekogakure/liteCore/ext2"
	"github.com/nekogakure/liteCore/internal/testutil"
)

func mountBuilt(t *testing.T, img []byte) (*ext2.Volume, *blockcache.Cache, *blockdev.Memory) {
	t.Helper()
	dev := blockdev.NewMemory(0, img)
	cache, err := blockcache.New(dev, 0, testutil.Ext2BlockSize, 16)
	require.NoError(t, err)
	vol, err := ext2.Mount(cache)
	require.NoError(t, err)
	return vol, cache, dev
}

func TestMount_RejectsBadMagic(t *testing.T) {
	img := testutil.NewExt2Builder().Build()
	img[1024+56] = 0x00 // clobber the magic
	img[1024+57] = 0x00

	dev := blockdev.NewMemory(0, img)
	cache, err := blockcache.New(dev, 0, testutil.Ext2BlockSize, 4)
	require.NoError(t, err)

	_, err = ext2.Mount(cache)
	assert.ErrorIs(t, err, litecore.ErrCorrupt)
}

func TestMountImage_DecodesSuperblock(t *testing.T) {
	b := testutil.NewExt2Builder()
	b.AddFile(testutil.Ext2RootIno, "hello.txt", []byte("hi"))
	vol, err := ext2.MountImage(b.Build())
	require.NoError(t, err)

	assert.Equal(t, uint32(testutil.Ext2BlockSize), vol.BlockSize)
	assert.Equal(t, uint32(1), vol.NumGroups)
	assert.Equal(t, uint32(testutil.Ext2InodesCount), vol.Super.InodesCount)
}

func TestReadInode_ZeroIsInvalid(t *testing.T) {
	vol, err := ext2.MountImage(testutil.NewExt2Builder().Build())
	require.NoError(t, err)

	_, err = vol.ReadInode(0)
	assert.ErrorIs(t, err, litecore.ErrInvalidArgument)
}

func TestBlockForIndex_IndirectLevels(t *testing.T) {
	// Block size 1024 gives 256 pointers per indirect block, so logical
	// index 11 is the last direct block, 12 the first single-indirect one
	// and 12+256 the first double-indirect one.
	b := testutil.NewExt2Builder()
	ino := b.AllocInode()

	var blocks [15]uint32
	for i := 0; i < 12; i++ {
		blocks[i] = b.AllocBlock()
	}
	single := b.AllocBlock()
	firstIndirect := b.AllocBlock()
	double := b.AllocBlock()
	innerIndirect := b.AllocBlock()
	firstDouble := b.AllocBlock()
	blocks[12] = single
	blocks[13] = double

	le := testutil.PutUint32
	le(b.BlockData(single), 0, firstIndirect)
	le(b.BlockData(double), 0, innerIndirect)
	le(b.BlockData(innerIndirect), 0, firstDouble)

	b.SetInode(ino, 0x8000|0644, (12+256+1)*testutil.Ext2BlockSize, blocks, 1)

	vol, err := ext2.MountImage(b.Build())
	require.NoError(t, err)
	inode, err := vol.ReadInode(ino)
	require.NoError(t, err)

	got, err := vol.BlockForIndex(&inode, 11)
	require.NoError(t, err)
	assert.Equal(t, blocks[11], got)

	got, err = vol.BlockForIndex(&inode, 12)
	require.NoError(t, err)
	assert.Equal(t, firstIndirect, got)

	got, err = vol.BlockForIndex(&inode, 12+256)
	require.NoError(t, err)
	assert.Equal(t, firstDouble, got)
}

func TestBlockForIndex_HoleReportsErrHole(t *testing.T) {
	b := testutil.NewExt2Builder()
	ino := b.AllocInode()
	var blocks [15]uint32
	blocks[0] = b.AllocBlock()
	// blocks[1] stays zero: a hole inside the file's extent.
	b.SetInode(ino, 0x8000|0644, 3*testutil.Ext2BlockSize, blocks, 1)

	vol, err := ext2.MountImage(b.Build())
	require.NoError(t, err)
	inode, err := vol.ReadInode(ino)
	require.NoError(t, err)

	_, err = vol.BlockForIndex(&inode, 1)
	assert.ErrorIs(t, err, ext2.ErrHole)
}

func TestResolvePath_WalksDirectories(t *testing.T) {
	b := testutil.NewExt2Builder()
	dirIno := b.AddDir("etc")
	fileIno := b.AddFile(dirIno, "motd", []byte("welcome\n"))
	rootFileIno := b.AddFile(testutil.Ext2RootIno, "kernel.bin", []byte{0x7f})

	vol, err := ext2.MountImage(b.Build())
	require.NoError(t, err)

	got, err := vol.ResolvePath("/etc/motd")
	require.NoError(t, err)
	assert.Equal(t, fileIno, got)

	got, err = vol.ResolvePath("/./etc/./motd")
	require.NoError(t, err)
	assert.Equal(t, fileIno, got)

	got, err = vol.ResolvePath("/kernel.bin")
	require.NoError(t, err)
	assert.Equal(t, rootFileIno, got)

	_, err = vol.ResolvePath("/etc/absent")
	assert.ErrorIs(t, err, litecore.ErrNotFound)
}

func TestResolvePath_DotDotReturnsToRoot(t *testing.T) {
	// ".." resets to the root directory instead of the true parent. The
	// behavior is deliberate; this test pins it.
	b := testutil.NewExt2Builder()
	b.AddDir("deep")
	rootFileIno := b.AddFile(testutil.Ext2RootIno, "at-root", nil)

	vol, err := ext2.MountImage(b.Build())
	require.NoError(t, err)

	got, err := vol.ResolvePath("/deep/../at-root")
	require.NoError(t, err)
	assert.Equal(t, rootFileIno, got)
}

func TestResolvePath_SymlinkChainWithinBudget(t *testing.T) {
	b := testutil.NewExt2Builder()
	target := b.AddFile(testutil.Ext2RootIno, "target", []byte("x"))
	b.AddSymlink("m8", "/target")
	for i := 7; i >= 1; i-- {
		b.AddSymlink(link(i), "/"+link(i+1))
	}

	vol, err := ext2.MountImage(b.Build())
	require.NoError(t, err)

	got, err := vol.ResolvePath("/m1")
	require.NoError(t, err)
	assert.Equal(t, target, got)
}

func TestResolvePath_SymlinkChainTooDeep(t *testing.T) {
	b := testutil.NewExt2Builder()
	b.AddFile(testutil.Ext2RootIno, "target", []byte("x"))
	b.AddSymlink("m9", "/target")
	for i := 8; i >= 1; i-- {
		b.AddSymlink(link(i), "/"+link(i+1))
	}

	vol, err := ext2.MountImage(b.Build())
	require.NoError(t, err)

	_, err = vol.ResolvePath("/m1")
	assert.ErrorIs(t, err, ext2.ErrSymlinkLoop)
	assert.ErrorIs(t, err, litecore.ErrLimitExceeded)
}

func link(i int) string {
	return string([]byte{'m', byte('0' + i)})
}

func TestReadInodeData_SpansBlocks(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 200) // 3200 bytes, 4 blocks
	b := testutil.NewExt2Builder()
	b.AddFile(testutil.Ext2RootIno, "spans", data)

	vol, err := ext2.MountImage(b.Build())
	require.NoError(t, err)

	buf := make([]byte, len(data)+64)
	n, err := vol.ReadFileByPath("/spans", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf[:n])

	// Offset read lands mid-block and clamps at the size.
	n, err = vol.ReadFileByPath("/spans", buf, 3000)
	require.NoError(t, err)
	assert.Equal(t, 200, n)
	assert.Equal(t, data[3000:], buf[:n])
}

func TestListDir_ReportsRootEntries(t *testing.T) {
	b := testutil.NewExt2Builder()
	b.AddFile(testutil.Ext2RootIno, "a.txt", []byte("aaa"))
	b.AddDir("sub")

	vol, err := ext2.MountImage(b.Build())
	require.NoError(t, err)

	root, err := vol.ReadInode(ext2.RootIno)
	require.NoError(t, err)
	entries, err := vol.ListDir(&root)
	require.NoError(t, err)

	names := make(map[string]ext2.Entry, len(entries))
	for _, e := range entries {
		names[e.Name] = e
	}
	require.Contains(t, names, "a.txt")
	require.Contains(t, names, "sub")
	assert.Equal(t, uint32(3), names["a.txt"].Size)
	assert.Equal(t, uint8(ext2.FileTypeDir), names["sub"].FileType)
}

func TestCreateWriteRead_RoundTrip(t *testing.T) {
	vol, cache, dev := mountBuilt(t, testutil.NewExt2Builder().Build())

	content := bytes.Repeat([]byte("liteCore"), 300) // 2400 bytes, 3 blocks
	require.NoError(t, vol.WriteFileByPath("/boot.cfg", content))

	size, err := vol.FileSize("/boot.cfg")
	require.NoError(t, err)
	assert.Equal(t, uint32(len(content)), size)

	buf := make([]byte, len(content))
	n, err := vol.ReadFileByPath("/boot.cfg", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, content, buf[:n])

	// After a flush the bytes must be visible on the raw image.
	require.NoError(t, cache.Flush())
	imgVol, err := ext2.MountImage(dev.Image())
	require.NoError(t, err)
	n, err = imgVol.ReadFileByPath("/boot.cfg", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, content, buf[:n])
}

func TestCreateFile_RejectsDuplicatesAndNestedPaths(t *testing.T) {
	vol, _, _ := mountBuilt(t, testutil.NewExt2Builder().Build())

	_, err := vol.CreateFile("/one", ext2.ModeFmtRegular|0644)
	require.NoError(t, err)
	_, err = vol.CreateFile("/one", ext2.ModeFmtRegular|0644)
	assert.ErrorIs(t, err, litecore.ErrInvalidArgument)

	_, err = vol.CreateFile("/dir/nested", ext2.ModeFmtRegular|0644)
	assert.ErrorIs(t, err, litecore.ErrInvalidArgument)
}

func TestWriteFileByPath_SizeOnlyGrows(t *testing.T) {
	vol, _, _ := mountBuilt(t, testutil.NewExt2Builder().Build())

	require.NoError(t, vol.WriteFileByPath("/log", []byte("long original text")))
	require.NoError(t, vol.WriteFileByPath("/log", []byte("short")))

	size, err := vol.FileSize("/log")
	require.NoError(t, err)
	assert.Equal(t, uint32(len("long original text")), size)

	buf := make([]byte, size)
	n, err := vol.ReadFileByPath("/log", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("shortoriginal text"), buf[:n])
}

func TestCheck_CleanAndDetectsUnmarkedBlocks(t *testing.T) {
	b := testutil.NewExt2Builder()
	fileIno := b.AddFile(testutil.Ext2RootIno, "data", bytes.Repeat([]byte{0xAB}, 2048))
	img := b.Build()

	vol, err := ext2.MountImage(img)
	require.NoError(t, err)

	report, err := ext2.Check(vol)
	require.NoError(t, err)
	assert.True(t, report.Clean())

	// Clear the bitmap bit of the file's first block and re-run.
	inode, err := vol.ReadInode(fileIno)
	require.NoError(t, err)
	blk := inode.Block[0]
	bit := blk - 1 // bit i covers block FirstDataBlock+i
	bitmapOff := 3*testutil.Ext2BlockSize + int(bit/8)
	img[bitmapOff] &^= 1 << (bit % 8)

	report, err = ext2.Check(vol)
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Contains(t, report.Unmarked, blk)
	assert.True(t, report.Reachable.Contains(blk))
}
