package device

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDevnode(t *testing.T) {
	require.Equal(t, "/dev/sdb1", KernelHandle{DevName: "sdb1"}.Devnode())
	require.Equal(t, "", KernelHandle{}.Devnode())
}

func TestHasMediaVolume(t *testing.T) {
	require.True(t, KernelHandle{FSUsage: "filesystem"}.HasMedia(Volume))
	require.False(t, KernelHandle{FSUsage: ""}.HasMedia(Volume))
}

func TestHasMediaOptical(t *testing.T) {
	require.True(t, KernelHandle{CDROMMedia: true}.HasMedia(Optical))
	require.False(t, KernelHandle{CDROMMedia: false}.HasMedia(Optical))
}

func TestHasMediaUnknownKind(t *testing.T) {
	require.False(t, KernelHandle{CDROMMedia: true, FSUsage: "filesystem"}.HasMedia(Unknown))
}

func TestIneligibleFilesystem(t *testing.T) {
	for _, fs := range []string{"", FSSwap, FSLVM, FSLUKS} {
		require.True(t, IneligibleFilesystem(fs), fs)
	}
	require.False(t, IneligibleFilesystem("ext4"))
	require.False(t, IneligibleFilesystem("vfat"))
}

func TestKindOf(t *testing.T) {
	require.Equal(t, Optical, KindOf("", "cd"))
	require.Equal(t, Optical, KindOf("cd", ""))
	require.Equal(t, Volume, KindOf("partition", ""))
	require.Equal(t, Volume, KindOf("disk", ""))
	require.Equal(t, Volume, KindOf("floppy", ""))
	require.Equal(t, Unknown, KindOf("loop", ""))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "volume", Volume.String())
	require.Equal(t, "optical", Optical.String())
	require.Equal(t, "unknown", Unknown.String())
}

func TestIsMountpointMatch(t *testing.T) {
	d := &Device{Devnode: "/dev/sdb1", Mountpoint: "/mnt/usb"}
	require.True(t, d.IsMountpointMatch("/dev/sdb1"))
	require.True(t, d.IsMountpointMatch("/mnt/usb"))
	require.False(t, d.IsMountpointMatch("/mnt/other"))
}
