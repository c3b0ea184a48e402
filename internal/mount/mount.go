// Package mount wraps the platform mount/unmount primitives used by
// the Device Lifecycle component (spec.md §4.4).
package mount

// Mounter defines the interface for the platform mount/unmount
// syscalls. Kept separate from the kernel-table query (mtab.Cache) so
// unit tests can substitute a fake without touching /proc.
type Mounter interface {
	// Mount mounts source at target with the given fstype and
	// assembled options string; readOnly sets the read-only flag
	// (true iff the device kind is Optical, per spec.md §4.4).
	Mount(source, target, fsType, options string, readOnly bool) error
	// Unmount unmounts target.
	Unmount(target string) error
}
