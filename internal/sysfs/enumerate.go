// Package sysfs discovers block devices already attached when the
// daemon starts, so the startup-enumeration path (spec.md §3:
// "discovered on startup enumeration") admits devices that were
// plugged in before the daemon was.
//
// No library in the retrieval pack wraps sysfs/udev-database
// enumeration (the pack's netlink helpers only decode the live
// hotplug stream), so this reads /sys/class/block and the udev
// database directly. Documented as a stdlib exception in DESIGN.md.
package sysfs

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/kriansa/ldm/internal/device"
	"github.com/kriansa/ldm/internal/log"
)

const (
	classBlockDir = "/sys/class/block"
	udevDBDir     = "/run/udev/data"
)

// Enumerate returns a KernelHandle for every block device currently
// present under /sys/class/block, populated the same way the hotplug
// stream would populate one, by cross-referencing the udev database.
func Enumerate() ([]device.KernelHandle, error) {
	entries, err := os.ReadDir(classBlockDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var handles []device.KernelHandle
	for _, entry := range entries {
		h, ok := readOne(filepath.Join(classBlockDir, entry.Name()))
		if !ok {
			continue
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func readOne(sysPath string) (device.KernelHandle, bool) {
	uevent, err := readKeyValues(filepath.Join(sysPath, "uevent"))
	if err != nil {
		log.Debug("sysfs enumerate: skipping unreadable device", "path", sysPath, "error", err)
		return device.KernelHandle{}, false
	}

	h := device.KernelHandle{
		DevName:   uevent["DEVNAME"],
		DevType:   uevent["DEVTYPE"],
		Subsystem: "block",
	}
	if h.DevName == "" {
		return device.KernelHandle{}, false
	}

	major, minor := uevent["MAJOR"], uevent["MINOR"]
	if major != "" && minor != "" {
		if props, err := readKeyValues(filepath.Join(udevDBDir, "b"+major+":"+minor)); err == nil {
			h.FSType = props["ID_FS_TYPE"]
			h.FSLabel = props["ID_FS_LABEL"]
			h.FSUUID = props["ID_FS_UUID"]
			h.FSUsage = props["ID_FS_USAGE"]
			h.IDType = props["ID_TYPE"]
			h.CDROMMedia = props["ID_CDROM_MEDIA"] == "1"
			h.Serial = props["ID_SERIAL_SHORT"]
			if links := props["DEVLINKS"]; links != "" {
				h.Aliases = strings.Fields(links)
			}
		}
	}

	return h, true
}

// readKeyValues parses either a sysfs uevent file ("KEY=value" per
// line) or a udev database record ("E:KEY=value" per line, with other
// line kinds ignored).
func readKeyValues(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "E:") {
			line = line[2:]
		} else if len(line) > 1 && line[1] == ':' {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[key] = value
	}
	return out, scanner.Err()
}
