// Package device defines the Device entity: identity, attributes, and
// the invariants spec.md §3 places on when a Device may become live.
package device

// Kind classifies a Device for the purposes of the media-presence
// predicate and the read-only mount flag (spec.md §9: "the only
// dispatch in the system is by device kind").
type Kind int

const (
	// Unknown devices never become live.
	Unknown Kind = iota
	// Volume is a partition, whole disk, or floppy.
	Volume
	// Optical is a CD/DVD/BD drive.
	Optical
)

func (k Kind) String() string {
	switch k {
	case Volume:
		return "volume"
	case Optical:
		return "optical"
	default:
		return "unknown"
	}
}

// Filesystem tags that never become live regardless of kind (spec.md §3).
const (
	FSSwap = "swap"
	FSLVM  = "LVM2_member"
	FSLUKS = "crypto_LUKS"
)

// KernelHandle is the opaque reference to the kernel-device description
// backing a Device: the hotplug-source-reported properties for the
// devnode this Device wraps. It is held for the Device's lifetime; a
// `change` event carries a fresh handle, from which the Device is
// admitted again.
type KernelHandle struct {
	DevName    string   // e.g. "sdb1"
	DevType    string   // "partition", "disk", "cd", ...
	Subsystem  string   // "block"
	FSType     string   // ID_FS_TYPE, "" if absent
	FSLabel    string   // ID_FS_LABEL
	FSUUID     string   // ID_FS_UUID
	FSUsage    string   // ID_FS_USAGE, "" if absent
	IDType     string   // ID_TYPE ("cd" for optical)
	CDROMMedia bool     // ID_CDROM_MEDIA=1
	Serial     string   // ID_SERIAL_SHORT
	Aliases    []string // DEVLINKS, kernel-reported order
}

// Devnode returns the stable path under /dev for this handle.
func (h KernelHandle) Devnode() string {
	if h.DevName == "" {
		return ""
	}
	return "/dev/" + h.DevName
}

// HasMedia reports whether media is present per the kind-specific
// predicate in spec.md §3: a Volume is live only if the kernel reports
// a filesystem-usage property at all (presence, not a specific value —
// matches original_source/ldm.c's media check); an Optical device is
// live only if media is present.
func (h KernelHandle) HasMedia(kind Kind) bool {
	switch kind {
	case Optical:
		return h.CDROMMedia
	case Volume:
		return h.FSUsage != ""
	default:
		return false
	}
}

// IneligibleFilesystem reports whether fs is one of the tags that never
// become live (spec.md §3): absent, swap, an LVM member, or a LUKS
// container.
func IneligibleFilesystem(fs string) bool {
	switch fs {
	case "", FSSwap, FSLVM, FSLUKS:
		return true
	default:
		return false
	}
}

// KindOf derives a Device kind from the kernel-reported device type and
// id-type (spec.md §3).
func KindOf(devType, idType string) Kind {
	switch {
	case idType == "cd" || devType == "cd":
		return Optical
	case devType == "partition" || devType == "disk" || devType == "floppy":
		return Volume
	default:
		return Unknown
	}
}

// Device is the daemon's model of one currently-tracked removable
// volume. Identity is the devnode; a live Device always has a
// non-empty Mountpoint (spec.md §3 invariants).
type Device struct {
	Devnode    string
	Kind       Kind
	Filesystem string
	Mountpoint string
	Handle     KernelHandle
	// ReadOnly records whether this Device was mounted read-only
	// (always true for Optical, per spec.md §4.4).
	ReadOnly bool
	// OwnerFixed records whether the filesystem driver itself applied
	// uid/gid (the OwnerFix quirk), which suppresses the post-mount
	// chown (spec.md §4.2, §4.4).
	OwnerFixed bool
}

// IsMountpointMatch reports whether path equals this Device's devnode
// or mountpoint, the lookup rule the Registry and control channel use.
func (d *Device) IsMountpointMatch(path string) bool {
	return d.Devnode == path || d.Mountpoint == path
}
