package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kriansa/ldm/internal/device"
)

func TestInsertAndFind(t *testing.T) {
	r := New(2)
	d := &device.Device{Devnode: "/dev/sdb1", Mountpoint: "/mnt/usb"}
	require.True(t, r.Insert(d))

	got, ok := r.Find("/dev/sdb1")
	require.True(t, ok)
	require.Same(t, d, got)

	got, ok = r.Find("/mnt/usb")
	require.True(t, ok)
	require.Same(t, d, got)
}

func TestInsertRejectsDuplicateDevnode(t *testing.T) {
	r := New(2)
	d1 := &device.Device{Devnode: "/dev/sdb1"}
	d2 := &device.Device{Devnode: "/dev/sdb1"}
	require.True(t, r.Insert(d1))
	require.False(t, r.Insert(d2))
	require.Equal(t, 1, r.Len())
}

func TestInsertRejectsWhenFull(t *testing.T) {
	r := New(1)
	require.True(t, r.Insert(&device.Device{Devnode: "/dev/sdb1"}))
	require.False(t, r.Insert(&device.Device{Devnode: "/dev/sdc1"}))
}

func TestRemove(t *testing.T) {
	r := New(1)
	d := &device.Device{Devnode: "/dev/sdb1"}
	r.Insert(d)
	r.Remove(d)
	require.Equal(t, 0, r.Len())
	_, ok := r.Find("/dev/sdb1")
	require.False(t, ok)
	require.True(t, r.Insert(&device.Device{Devnode: "/dev/sdb1"}))
}

func TestAllReturnsSnapshot(t *testing.T) {
	r := New(2)
	d1 := &device.Device{Devnode: "/dev/sdb1"}
	d2 := &device.Device{Devnode: "/dev/sdc1"}
	r.Insert(d1)
	r.Insert(d2)

	all := r.All()
	require.Len(t, all, 2)

	r.Remove(d1)
	require.Len(t, all, 2, "snapshot must not reflect later mutation")
}

func TestLenAndCap(t *testing.T) {
	r := New(3)
	require.Equal(t, 3, r.Cap())
	require.Equal(t, 0, r.Len())
	r.Insert(&device.Device{Devnode: "/dev/sdb1"})
	require.Equal(t, 1, r.Len())
}

func TestClear(t *testing.T) {
	r := New(2)
	r.Insert(&device.Device{Devnode: "/dev/sdb1"})
	r.Insert(&device.Device{Devnode: "/dev/sdc1"})
	r.Clear()
	require.Equal(t, 0, r.Len())
	require.Empty(t, r.All())
}
