package mtab

import "strings"

// dmPrefix marks device-mapper devnodes, which are volatile and never
// matched directly (spec.md §4.1).
const dmPrefix = "/dev/dm-"

// Query is the subset of a Device's identity the resolver needs:
// devnode, its kernel-reported aliases, and its filesystem UUID/label.
type Query struct {
	Devnode string
	Aliases []string
	FSUUID  string
	FSLabel string
}

// Find resolves a device against a table's entries, first match wins,
// in the order defined by spec.md §4.1:
//  1. direct devnode match, unless the devnode is a device-mapper node,
//     in which case each alias is tried in kernel-reported order;
//  2. UUID=<fs-uuid>, if the kernel reports one;
//  3. LABEL=<fs-label>, if the kernel reports one.
func Find(entries []Entry, q Query) (Entry, bool) {
	if !strings.HasPrefix(q.Devnode, dmPrefix) {
		if e, ok := findDevice(entries, q.Devnode); ok {
			return e, ok
		}
	} else {
		for _, alias := range q.Aliases {
			if e, ok := findDevice(entries, alias); ok {
				return e, ok
			}
		}
	}

	if q.FSUUID != "" {
		if e, ok := findDevice(entries, "UUID="+q.FSUUID); ok {
			return e, ok
		}
	}

	if q.FSLabel != "" {
		if e, ok := findDevice(entries, "LABEL="+q.FSLabel); ok {
			return e, ok
		}
	}

	return Entry{}, false
}

func findDevice(entries []Entry, device string) (Entry, bool) {
	if device == "" {
		return Entry{}, false
	}
	for _, e := range entries {
		if e.Device == device {
			return e, true
		}
	}
	return Entry{}, false
}

// HasOption composes Find with the entry's option matcher (spec.md
// §4.1).
func HasOption(entries []Entry, q Query, option string) bool {
	e, ok := Find(entries, q)
	if !ok {
		return false
	}
	return e.HasOption(option)
}
