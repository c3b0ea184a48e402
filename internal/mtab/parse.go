package mtab

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// parseTable parses whitespace-delimited entries shared by both
// /etc/fstab and /proc/self/mounts: device, mountpoint, fstype,
// options, then any number of trailing fields ignored here (dump/pass
// for fstab). Comment lines (leading #) and blank lines are skipped.
func parseTable(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		entries = append(entries, Entry{
			Device:     unescape(fields[0]),
			MountPoint: unescape(fields[1]),
			FSType:     fields[2],
			Options:    fields[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return entries, nil
}

// unescape undoes the octal escaping /proc/self/mounts (and fstab, by
// convention) uses for whitespace in paths.
func unescape(s string) string {
	s = strings.ReplaceAll(s, `\040`, " ")
	s = strings.ReplaceAll(s, `\011`, "\t")
	s = strings.ReplaceAll(s, `\012`, "\n")
	s = strings.ReplaceAll(s, `\134`, `\`)
	return s
}
