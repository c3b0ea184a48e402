package mount

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/kriansa/ldm/internal/log"
)

// UnixMounter implements Mounter using the Linux mount(2)/umount(2)
// syscalls via golang.org/x/sys/unix.
type UnixMounter struct{}

// NewUnixMounter creates a syscall-based mounter.
func NewUnixMounter() *UnixMounter {
	return &UnixMounter{}
}

// Mount mounts source at target. Per spec.md §9's redesign note, the
// mountpoint-creation mode used elsewhere is octal 0755, not decimal
// 755 as in the original daemon.
func (m *UnixMounter) Mount(source, target, fsType, options string, readOnly bool) error {
	var flags uintptr
	if readOnly {
		flags |= unix.MS_RDONLY
	}

	log.Debug("mounting filesystem", "source", source, "target", target, "type", fsType, "options", options, "readonly", readOnly)

	if err := unix.Mount(source, target, fsType, flags, options); err != nil {
		return fmt.Errorf("mount %s to %s: %w", source, target, err)
	}

	log.Debug("mounted successfully", "source", source, "target", target)
	return nil
}

// Unmount unmounts target. Per spec.md §9's redesign note, the
// preferred argument is the mountpoint, not the devnode, since not
// every platform unmount API accepts both.
func (m *UnixMounter) Unmount(target string) error {
	log.Debug("unmounting", "target", target)

	if err := unix.Unmount(target, 0); err != nil {
		return fmt.Errorf("unmount %s: %w", target, err)
	}

	log.Debug("unmounted successfully", "target", target)
	return nil
}
