package lifecycle

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kriansa/ldm/internal/device"
	"github.com/kriansa/ldm/internal/mtab"
	"github.com/kriansa/ldm/internal/registry"
)

type fakeMounter struct {
	mounted   map[string]bool
	failMount bool
}

func newFakeMounter() *fakeMounter {
	return &fakeMounter{mounted: make(map[string]bool)}
}

func (m *fakeMounter) Mount(source, target, fsType, options string, readOnly bool) error {
	if m.failMount {
		return errors.New("mount failed")
	}
	m.mounted[target] = true
	return nil
}

func (m *fakeMounter) Unmount(target string) error {
	delete(m.mounted, target)
	return nil
}

type fakeChowner struct {
	calls int
}

func (c *fakeChowner) Chown(path string, uid, gid int) error {
	c.calls++
	return nil
}

func newLifecycle(t *testing.T, mountRoot string) (*Lifecycle, *fakeMounter, *mtab.Cache) {
	t.Helper()
	tables := mtab.NewCache(filepath.Join(t.TempDir(), "fstab"), filepath.Join(t.TempDir(), "mounts"))
	require.NoError(t, os.WriteFile(tables.AdminPath(), nil, 0644))
	require.NoError(t, os.WriteFile(tables.KernelPath(), nil, 0644))
	require.NoError(t, tables.Reload(mtab.Admin))
	require.NoError(t, tables.Reload(mtab.Kernel))

	mounter := newFakeMounter()
	lc := New(registry.New(4), tables, mounter, nil, mountRoot, 1000, 100)
	lc.Chown = &fakeChowner{}
	return lc, mounter, tables
}

func handleFor(devname, label string) device.KernelHandle {
	return device.KernelHandle{
		DevName: devname,
		DevType: "partition",
		FSType:  "vfat",
		FSLabel: label,
		FSUsage: "filesystem",
	}
}

func TestMountAdmitsAndCreatesMountpoint(t *testing.T) {
	root := t.TempDir()
	lc, mounter, _ := newLifecycle(t, root)

	ok := lc.Mount(handleFor("sdb1", "DATA"))
	require.True(t, ok)

	d, found := lc.Registry.Find("/dev/sdb1")
	require.True(t, found)
	require.Equal(t, filepath.Join(root, "DATA"), d.Mountpoint)
	require.True(t, mounter.mounted[d.Mountpoint])

	info, err := os.Stat(d.Mountpoint)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestMountRejectsIneligibleFilesystem(t *testing.T) {
	root := t.TempDir()
	lc, _, _ := newLifecycle(t, root)

	h := handleFor("sdb1", "SWAP")
	h.FSType = device.FSSwap
	ok := lc.Mount(h)
	require.False(t, ok)
	_, found := lc.Registry.Find("/dev/sdb1")
	require.False(t, found)
}

func TestMountRejectsNoMedia(t *testing.T) {
	root := t.TempDir()
	lc, _, _ := newLifecycle(t, root)

	h := handleFor("sdb1", "DATA")
	h.FSUsage = ""
	ok := lc.Mount(h)
	require.False(t, ok)
}

func TestMountIsIdempotentWhenAlreadyMounted(t *testing.T) {
	root := t.TempDir()
	lc, mounter, tables := newLifecycle(t, root)

	h := handleFor("sdb1", "DATA")
	require.True(t, lc.Mount(h))

	d, _ := lc.Registry.Find("/dev/sdb1")
	require.NoError(t, os.WriteFile(tables.KernelPath(), []byte("/dev/sdb1 "+d.Mountpoint+" vfat rw 0 0\n"), 0644))
	require.NoError(t, tables.Reload(mtab.Kernel))

	ok := lc.Mount(h)
	require.True(t, ok)
	require.Equal(t, 1, lc.Registry.Len())
	require.True(t, mounter.mounted[d.Mountpoint])
}

func TestMountUnwindsOnMountFailure(t *testing.T) {
	root := t.TempDir()
	lc, mounter, _ := newLifecycle(t, root)
	mounter.failMount = true

	ok := lc.Mount(handleFor("sdb1", "DATA"))
	require.False(t, ok)
	_, found := lc.Registry.Find("/dev/sdb1")
	require.False(t, found)
}

func TestUnmountRemovesFromRegistry(t *testing.T) {
	root := t.TempDir()
	lc, mounter, tables := newLifecycle(t, root)

	require.True(t, lc.Mount(handleFor("sdb1", "DATA")))
	d, _ := lc.Registry.Find("/dev/sdb1")

	require.NoError(t, os.WriteFile(tables.KernelPath(), []byte("/dev/sdb1 "+d.Mountpoint+" vfat rw 0 0\n"), 0644))
	require.NoError(t, tables.Reload(mtab.Kernel))

	ok := lc.Unmount("/dev/sdb1")
	require.True(t, ok)
	require.False(t, mounter.mounted[d.Mountpoint])
	_, found := lc.Registry.Find("/dev/sdb1")
	require.False(t, found)

	_, err := os.Stat(d.Mountpoint)
	require.True(t, os.IsNotExist(err))
}

func TestUnmountUnknownDeviceIsNoop(t *testing.T) {
	root := t.TempDir()
	lc, _, _ := newLifecycle(t, root)
	require.False(t, lc.Unmount("/dev/sdz1"))
}

func TestUnmountByPathResolvesMountpoint(t *testing.T) {
	root := t.TempDir()
	lc, _, _ := newLifecycle(t, root)
	require.True(t, lc.Mount(handleFor("sdb1", "DATA")))
	d, _ := lc.Registry.Find("/dev/sdb1")

	require.True(t, lc.UnmountByPath(d.Mountpoint))
	_, found := lc.Registry.Find("/dev/sdb1")
	require.False(t, found)
}

func TestChangeRemountsOnSameDevnode(t *testing.T) {
	root := t.TempDir()
	lc, mounter, tables := newLifecycle(t, root)

	require.True(t, lc.Mount(handleFor("sr0", "MOVIE")))
	d, _ := lc.Registry.Find("/dev/sr0")
	oldMountpoint := d.Mountpoint

	require.NoError(t, os.WriteFile(tables.KernelPath(), []byte("/dev/sr0 "+oldMountpoint+" vfat rw 0 0\n"), 0644))
	require.NoError(t, tables.Reload(mtab.Kernel))

	ok := lc.Change(handleFor("sr0", "MOVIE2"))
	require.True(t, ok)
	require.False(t, mounter.mounted[oldMountpoint])

	d2, found := lc.Registry.Find("/dev/sr0")
	require.True(t, found)
	require.Equal(t, filepath.Join(root, "MOVIE2"), d2.Mountpoint)
}

func TestReconcileUnmountsExternallyRemovedDevices(t *testing.T) {
	root := t.TempDir()
	lc, _, tables := newLifecycle(t, root)

	require.True(t, lc.Mount(handleFor("sdb1", "DATA")))
	d, _ := lc.Registry.Find("/dev/sdb1")

	require.NoError(t, os.WriteFile(tables.KernelPath(), []byte("/dev/sdb1 "+d.Mountpoint+" vfat rw 0 0\n"), 0644))
	require.NoError(t, tables.Reload(mtab.Kernel))

	// Simulate the kernel table no longer showing it mounted (external unmount).
	require.NoError(t, os.WriteFile(tables.KernelPath(), nil, 0644))
	require.NoError(t, tables.Reload(mtab.Kernel))

	lc.Reconcile()

	_, found := lc.Registry.Find("/dev/sdb1")
	require.False(t, found)

	_, err := os.Stat(d.Mountpoint)
	require.True(t, os.IsNotExist(err))
}

func TestShutdownAllUnmountsEverything(t *testing.T) {
	root := t.TempDir()
	lc, mounter, tables := newLifecycle(t, root)

	require.True(t, lc.Mount(handleFor("sdb1", "DATA")))
	require.True(t, lc.Mount(handleFor("sdc1", "DATA2")))

	d1, _ := lc.Registry.Find("/dev/sdb1")
	d2, _ := lc.Registry.Find("/dev/sdc1")
	require.NoError(t, os.WriteFile(tables.KernelPath(), []byte(
		"/dev/sdb1 "+d1.Mountpoint+" vfat rw 0 0\n"+
			"/dev/sdc1 "+d2.Mountpoint+" vfat rw 0 0\n"), 0644))
	require.NoError(t, tables.Reload(mtab.Kernel))

	lc.ShutdownAll()

	require.Equal(t, 0, lc.Registry.Len())
	require.Empty(t, mounter.mounted)
}

func TestTryAdmitRespectsNoAuto(t *testing.T) {
	root := t.TempDir()
	lc, _, tables := newLifecycle(t, root)
	require.NoError(t, os.WriteFile(tables.AdminPath(), []byte("/dev/sdb1 /mnt/data vfat noauto 0 0\n"), 0644))
	require.NoError(t, tables.Reload(mtab.Admin))

	_, reason := lc.TryAdmit(handleFor("sdb1", "DATA"))
	require.Equal(t, RejectNoAuto, reason)
}

func TestTryAdmitUsesAdminTableTarget(t *testing.T) {
	root := t.TempDir()
	lc, _, tables := newLifecycle(t, root)
	require.NoError(t, os.WriteFile(tables.AdminPath(), []byte("/dev/sdb1 /mnt/fixed vfat defaults 0 0\n"), 0644))
	require.NoError(t, tables.Reload(mtab.Admin))

	d, reason := lc.TryAdmit(handleFor("sdb1", "DATA"))
	require.Equal(t, RejectNone, reason)
	require.Equal(t, "/mnt/fixed", d.Mountpoint)
}

func TestTryAdmitRejectsWhenRegistryFull(t *testing.T) {
	root := t.TempDir()
	tables := mtab.NewCache(filepath.Join(t.TempDir(), "fstab"), filepath.Join(t.TempDir(), "mounts"))
	require.NoError(t, os.WriteFile(tables.AdminPath(), nil, 0644))
	require.NoError(t, os.WriteFile(tables.KernelPath(), nil, 0644))
	require.NoError(t, tables.Reload(mtab.Admin))
	require.NoError(t, tables.Reload(mtab.Kernel))

	lc := New(registry.New(1), tables, newFakeMounter(), nil, root, 1000, 100)
	lc.Chown = &fakeChowner{}

	require.True(t, lc.Mount(handleFor("sdb1", "DATA")))
	_, reason := lc.TryAdmit(handleFor("sdc1", "DATA2"))
	require.Equal(t, RejectRegistryFull, reason)
}
