// Package quirks maps a filesystem name to its mount-option and
// ownership deviations from default behavior (spec.md §4.2).
package quirks

import (
	"strconv"
	"strings"
)

// Flag is one bit in a filesystem's quirk bitmask.
type Flag uint8

const (
	// OwnerFix applies uid=<g_uid>,gid=<g_gid> and suppresses the
	// post-mount chown.
	OwnerFix Flag = 1 << iota
	// Utf8 applies the utf8 mount option.
	Utf8
	// Mask applies dmask=000,fmask=111.
	Mask
	// Flush applies the flush mount option.
	Flush
)

// table is the fixed quirks table from spec.md §4.2.
var table = map[string]Flag{
	"msdos":   OwnerFix | Utf8,
	"umsdos":  OwnerFix | Utf8,
	"vfat":    OwnerFix | Utf8 | Mask | Flush,
	"exfat":   OwnerFix,
	"ntfs":    OwnerFix | Utf8,
	"iso9660": OwnerFix | Utf8,
	"udf":     OwnerFix,
}

// For fills bitmask for a filesystem name; unlisted filesystems get an
// empty mask.
func For(fs string) Flag {
	return table[fs]
}

// Has reports whether the bitmask includes flag.
func (m Flag) Has(flag Flag) bool {
	return m&flag != 0
}

// Options assembles the mount-option fragment for a bitmask and a
// configured uid/gid, in the canonical order OwnerFix, Utf8, Flush,
// Mask, comma-joined with no trailing comma (spec.md §4.2, §8).
func (m Flag) Options(uid, gid int) string {
	var parts []string
	if m.Has(OwnerFix) {
		parts = append(parts, "uid="+strconv.Itoa(uid)+",gid="+strconv.Itoa(gid))
	}
	if m.Has(Utf8) {
		parts = append(parts, "utf8")
	}
	if m.Has(Flush) {
		parts = append(parts, "flush")
	}
	if m.Has(Mask) {
		parts = append(parts, "dmask=000,fmask=111")
	}
	return strings.Join(parts, ",")
}
