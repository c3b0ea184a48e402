// Package mountpoint synthesizes a target directory for a device that
// has no admin-table entry (spec.md §4.3).
package mountpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxPathLength is the longest synthesized mountpoint path, in bytes;
// collision avoidance gives up once appending another underscore would
// exceed it (spec.md §4.3 step 5).
const MaxPathLength = 255

// Candidate is the subset of a device's identity the synthesizer picks
// a base name from, in preference order: label, UUID, serial.
type Candidate struct {
	Label  string
	UUID   string
	Serial string
}

// exists reports whether anything (file or directory) is already at
// path, so the caller can tell "collision" apart from "stat failed".
var exists = func(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Synthesize picks a base name by preference (label, UUID, serial),
// prefixes it with root, replaces spaces with underscores, and appends
// underscores to break collisions until a free path is found or the
// path-length bound is exceeded.
func Synthesize(root string, c Candidate) (string, error) {
	base := c.Label
	if base == "" {
		base = c.UUID
	}
	if base == "" {
		base = c.Serial
	}
	if base == "" {
		return "", fmt.Errorf("no label, uuid, or serial available to synthesize a mountpoint")
	}

	base = strings.ReplaceAll(base, " ", "_")
	candidate := filepath.Join(root, base)

	for exists(candidate) {
		candidate += "_"
		if len(candidate) > MaxPathLength {
			return "", fmt.Errorf("mountpoint path exceeds length bound while avoiding collision at %q", filepath.Join(root, base))
		}
	}

	return candidate, nil
}

// Resolve picks the mountpoint for a device: the admin table's target
// verbatim if one exists, otherwise a synthesized path (spec.md §4.3
// steps 1-2).
func Resolve(root string, adminTarget string, c Candidate) (string, error) {
	if adminTarget != "" {
		return adminTarget, nil
	}
	return Synthesize(root, c)
}
