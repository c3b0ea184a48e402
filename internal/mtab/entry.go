// Package mtab implements the Table Cache and Fstab Resolver
// components (spec.md §4.1): parsed caches of the admin-maintained
// mount table (/etc/fstab) and the live kernel mount table
// (/proc/self/mounts), reloaded wholesale on change and queried by
// devnode, alias, UUID, or label.
package mtab

import "strings"

// Entry is one line of either table, reduced to the fields the
// resolver needs.
type Entry struct {
	Device     string // devnode, UUID=..., or LABEL=... as written
	MountPoint string
	FSType     string
	Options    string
}

// HasOption reports whether the entry's comma-separated Options string
// carries opt (spec.md §4.1: "+opt" asserts presence — here opt is
// matched as a bare comma-separated token, e.g. "noauto").
func (e Entry) HasOption(opt string) bool {
	for _, tok := range strings.Split(e.Options, ",") {
		if strings.TrimSpace(tok) == opt {
			return true
		}
	}
	return false
}
