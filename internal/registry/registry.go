// Package registry implements the Device Registry (spec.md §4.6): a
// fixed-capacity flat store of currently-tracked devices, keyed by
// devnode, with lookup by devnode or mountpoint.
package registry

import "github.com/kriansa/ldm/internal/device"

// Registry is a bounded set of Devices with capacity K. On overflow,
// insertion fails and the caller must reject the device without side
// effects.
type Registry struct {
	slots []*device.Device
}

// New creates a Registry with the given fixed capacity.
func New(capacity int) *Registry {
	return &Registry{slots: make([]*device.Device, capacity)}
}

// Insert places d in the first empty slot. It reports false, without
// mutating the Registry, if no slot is free or d's devnode is already
// present (spec.md §3: "no two live Devices share a devnode").
func (r *Registry) Insert(d *device.Device) bool {
	if _, ok := r.byDevnode(d.Devnode); ok {
		return false
	}
	for i, s := range r.slots {
		if s == nil {
			r.slots[i] = d
			return true
		}
	}
	return false
}

// Remove clears the slot holding d, identified by devnode.
func (r *Registry) Remove(d *device.Device) {
	for i, s := range r.slots {
		if s != nil && s.Devnode == d.Devnode {
			r.slots[i] = nil
			return
		}
	}
}

// Find returns the Device whose devnode or mountpoint equals path.
func (r *Registry) Find(path string) (*device.Device, bool) {
	for _, s := range r.slots {
		if s != nil && s.IsMountpointMatch(path) {
			return s, true
		}
	}
	return nil, false
}

func (r *Registry) byDevnode(devnode string) (*device.Device, bool) {
	for _, s := range r.slots {
		if s != nil && s.Devnode == devnode {
			return s, true
		}
	}
	return nil, false
}

// All returns every currently-held Device. The returned slice is a
// snapshot; mutating the Registry afterward does not affect it.
func (r *Registry) All() []*device.Device {
	out := make([]*device.Device, 0, len(r.slots))
	for _, s := range r.slots {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Len reports how many slots are currently occupied.
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.slots {
		if s != nil {
			n++
		}
	}
	return n
}

// Cap reports the fixed capacity K.
func (r *Registry) Cap() int {
	return len(r.slots)
}

// Clear empties every slot without invoking any unmount logic. Actual
// shutdown (spec.md §4.6: "unmount every currently-held device") is
// orchestrated by the lifecycle component, which unmounts each Device
// from All and lets that unwind slots one at a time; Clear
// exists for callers that need to reset the store directly.
func (r *Registry) Clear() {
	for i := range r.slots {
		r.slots[i] = nil
	}
}
