// Package lifecycle implements the Device Lifecycle component
// (spec.md §4.4): try_admit, mount, unmount, and change over a Device
// entity, including which devices are eligible and how filesystem
// quirks and ownership are applied.
package lifecycle

import (
	"os"

	"github.com/kriansa/ldm/internal/device"
	"github.com/kriansa/ldm/internal/hook"
	"github.com/kriansa/ldm/internal/log"
	"github.com/kriansa/ldm/internal/mount"
	"github.com/kriansa/ldm/internal/mountpoint"
	"github.com/kriansa/ldm/internal/mtab"
	"github.com/kriansa/ldm/internal/quirks"
	"github.com/kriansa/ldm/internal/registry"
)

// Chowner changes directory ownership; abstracted so tests can avoid
// real chown(2) calls.
type Chowner interface {
	Chown(path string, uid, gid int) error
}

type osChowner struct{}

func (osChowner) Chown(path string, uid, gid int) error { return os.Chown(path, uid, gid) }

// Lifecycle owns the policy decisions and side effects of admitting,
// mounting, unmounting, and reacting to a change on a Device. It is
// the single writer of the Registry.
type Lifecycle struct {
	Registry  *registry.Registry
	Tables    *mtab.Cache
	Mounter   mount.Mounter
	Chown     Chowner
	Hook      *hook.Invoker
	MountRoot string
	UID       int
	GID       int
}

// New creates a Lifecycle. hook may be nil, in which case mount/unmount
// hooks are skipped entirely (equivalent to an empty helper path).
func New(reg *registry.Registry, tables *mtab.Cache, mounter mount.Mounter, hookInvoker *hook.Invoker, mountRoot string, uid, gid int) *Lifecycle {
	return &Lifecycle{
		Registry:  reg,
		Tables:    tables,
		Mounter:   mounter,
		Chown:     osChowner{},
		Hook:      hookInvoker,
		MountRoot: mountRoot,
		UID:       uid,
		GID:       gid,
	}
}

// RejectReason names why try_admit refused a candidate. The zero value
// means admission succeeded.
type RejectReason string

const (
	RejectNone   RejectReason = ""
	RejectNoAuto RejectReason = "noauto"
	// RejectAllocation has no Go equivalent to return it: the original
	// daemon's malloc-failure path has no analog here. Kept for parity
	// with spec.md §4.4's rejection enumeration.
	RejectAllocation      RejectReason = "allocation"
	RejectFilesystem      RejectReason = "ineligible_filesystem"
	RejectKind            RejectReason = "ineligible_kind"
	RejectNoMedia         RejectReason = "no_media"
	RejectSynthesisFailed RejectReason = "mountpoint_synthesis_failed"
	RejectRegistryFull    RejectReason = "registry_full"
)

// query builds an mtab.Query from a kernel handle.
func query(devnode string, h device.KernelHandle) mtab.Query {
	return mtab.Query{
		Devnode: devnode,
		Aliases: h.Aliases,
		FSUUID:  h.FSUUID,
		FSLabel: h.FSLabel,
	}
}

// TryAdmit constructs a candidate Device from a kernel handle and
// either registers it or rejects it, in the order given by spec.md
// §4.4. On any rejection all transient resources acquired during
// admission are released and no external side effect remains — since
// admission itself allocates nothing on disk (that happens in Mount),
// this reduces to simply not inserting into the Registry.
func (l *Lifecycle) TryAdmit(h device.KernelHandle) (*device.Device, RejectReason) {
	devnode := h.Devnode()
	q := query(devnode, h)
	adminEntries := l.Tables.Entries(mtab.Admin)

	if mtab.HasOption(adminEntries, q, "noauto") {
		return nil, RejectNoAuto
	}

	d := &device.Device{
		Devnode:    devnode,
		Handle:     h,
		Filesystem: h.FSType,
	}

	if device.IneligibleFilesystem(d.Filesystem) {
		return nil, RejectFilesystem
	}

	d.Kind = device.KindOf(h.DevType, h.IDType)
	if d.Kind == device.Unknown {
		return nil, RejectKind
	}

	if !h.HasMedia(d.Kind) {
		return nil, RejectNoMedia
	}

	adminEntry, hasAdminEntry := mtab.Find(adminEntries, q)
	var adminTarget string
	if hasAdminEntry {
		adminTarget = adminEntry.MountPoint
	}

	target, err := mountpoint.Resolve(l.MountRoot, adminTarget, mountpoint.Candidate{
		Label:  h.FSLabel,
		UUID:   h.FSUUID,
		Serial: h.Serial,
	})
	if err != nil {
		return nil, RejectSynthesisFailed
	}
	d.Mountpoint = target

	if !l.Registry.Insert(d) {
		return nil, RejectRegistryFull
	}

	return d, RejectNone
}

// Mount admits the device (if not already tracked), creates the
// mountpoint directory, assembles mount options from the quirks
// bitmask, and issues the platform mount. On failure it unwinds via
// Unmount and returns false (spec.md §4.4).
func (l *Lifecycle) Mount(h device.KernelHandle) bool {
	devnode := h.Devnode()

	d, existing := l.Registry.Find(devnode)
	if !existing {
		var reason RejectReason
		d, reason = l.TryAdmit(h)
		if reason != RejectNone {
			log.Debug("admission rejected", "devnode", devnode, "reason", string(reason))
			return false
		}
	} else if l.isMounted(d) {
		// A second add for a devnode already mounted is a no-op: the
		// kernel table already lists it (spec.md §8 round-trip law).
		return true
	}

	if err := os.MkdirAll(d.Mountpoint, 0755); err != nil {
		log.Warn("failed to create mountpoint", "path", d.Mountpoint, "error", err)
		l.unmountLocked(d)
		return false
	}

	mask := quirks.For(d.Filesystem)
	options := mask.Options(l.UID, l.GID)
	d.ReadOnly = d.Kind == device.Optical
	d.OwnerFixed = mask.Has(quirks.OwnerFix)

	if err := l.Mounter.Mount(d.Devnode, d.Mountpoint, d.Filesystem, options, d.ReadOnly); err != nil {
		log.Warn("mount failed", "devnode", d.Devnode, "target", d.Mountpoint, "error", err)
		l.unmountLocked(d)
		return false
	}

	if !d.OwnerFixed {
		if err := l.Chown.Chown(d.Mountpoint, l.UID, l.GID); err != nil {
			log.Warn("chown failed", "path", d.Mountpoint, "error", err)
			l.unmountLocked(d)
			return false
		}
	}

	if l.Hook != nil {
		l.Hook.Invoke(hook.ActionMount, d.Mountpoint)
	}

	log.Info("mounted", "devnode", d.Devnode, "target", d.Mountpoint, "fs", d.Filesystem, "readonly", d.ReadOnly)
	return true
}

// Unmount locates the Device by devnode, unmounts it if the kernel
// table still shows it mounted, removes the mountpoint directory
// best-effort, runs the unmount hook, and releases the registry slot
// (spec.md §4.4). Unmount failure leaves the Device in the Registry so
// a retry or reconciliation can finish the job later.
func (l *Lifecycle) Unmount(devnode string) bool {
	d, ok := l.Registry.Find(devnode)
	if !ok {
		return false
	}
	return l.unmountLocked(d)
}

// UnmountByPath is the control-channel entry point: it resolves the
// argument as either a devnode or mountpoint (spec.md
// §3, §6).
func (l *Lifecycle) UnmountByPath(path string) bool {
	d, ok := l.Registry.Find(path)
	if !ok {
		return false
	}
	return l.unmountLocked(d)
}

func (l *Lifecycle) unmountLocked(d *device.Device) bool {
	if l.isMounted(d) {
		if err := l.Mounter.Unmount(d.Mountpoint); err != nil {
			log.Warn("unmount failed", "target", d.Mountpoint, "error", err)
			return false
		}
	}

	if d.Mountpoint != "" {
		_ = os.Remove(d.Mountpoint) // best-effort; non-empty dir is left in place
	}

	if l.Hook != nil && d.Mountpoint != "" {
		l.Hook.Invoke(hook.ActionUnmount, d.Mountpoint)
	}

	l.Registry.Remove(d)
	log.Info("unmounted", "devnode", d.Devnode, "target", d.Mountpoint)
	return true
}

func (l *Lifecycle) isMounted(d *device.Device) bool {
	for _, e := range l.Tables.Entries(mtab.Kernel) {
		if e.MountPoint == d.Mountpoint {
			return true
		}
	}
	return false
}

// Change is issued for events like optical-media insertion/ejection on
// the same devnode: unmount if currently mounted, then attempt to
// mount whatever is now there. Either half may fail independently; the
// operation succeeds iff the mount half succeeds (spec.md §4.4).
func (l *Lifecycle) Change(h device.KernelHandle) bool {
	devnode := h.Devnode()
	if _, ok := l.Registry.Find(devnode); ok {
		l.Unmount(devnode)
	}
	return l.Mount(h)
}

// Reconcile sweeps the Registry for any Device the kernel table no
// longer shows as mounted and unmounts it (spec.md §4.5 branch 3).
func (l *Lifecycle) Reconcile() {
	for _, d := range l.Registry.All() {
		if !l.isMounted(d) {
			l.unmountLocked(d)
		}
	}
}

// ShutdownAll unmounts every currently-tracked Device, used on daemon
// shutdown (spec.md §4.6 Clear rationale).
func (l *Lifecycle) ShutdownAll() {
	for _, d := range l.Registry.All() {
		l.unmountLocked(d)
	}
}
