// Package config loads and validates the daemon's configuration:
// filesystem paths, the unprivileged uid/gid, and tunables that spec.md
// designates "compile-time configurable" but which this implementation
// also exposes as overrides for testing and site customization.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultConfigPath is the default location for the config file.
	DefaultConfigPath = "/etc/ldm.conf"
	// DefaultMountRoot is where synthesized mountpoints are created.
	DefaultMountRoot = "/mnt/"
	// DefaultPidFile is the singleton-guard pid file.
	DefaultPidFile = "/run/ldm.pid"
	// DefaultControlPipe is the out-of-band control channel.
	DefaultControlPipe = "/run/ldm.fifo"
	// DefaultAdminTable is the administrator-maintained mount table.
	DefaultAdminTable = "/etc/fstab"
	// DefaultKernelTable is the live kernel mount table.
	DefaultKernelTable = "/proc/self/mounts"
	// DefaultRegistryCapacity is the fixed number of simultaneously
	// tracked devices (design default K in spec.md §3).
	DefaultRegistryCapacity = 20
	// DefaultHookTimeout bounds how long a hook child may run before
	// being killed (spec.md §9 open question).
	DefaultHookTimeout = 15 * time.Second
)

// Config holds the daemon's configuration.
type Config struct {
	MountRoot        string        `toml:"mount_root"`
	PidFile          string        `toml:"pid_file"`
	ControlPipe      string        `toml:"control_pipe"`
	AdminTable       string        `toml:"admin_table"`
	KernelTable      string        `toml:"kernel_table"`
	HookPath         string        `toml:"hook"`
	UID              int           `toml:"uid"`
	GID              int           `toml:"gid"`
	RegistryCapacity int           `toml:"registry_capacity"`
	HookTimeout      time.Duration `toml:"hook_timeout"`

	// uidSet/gidSet distinguish "unset" from "explicitly 0" since 0 is
	// a valid uid/gid and TOML/CLI can't represent absence with an int.
	uidSet bool
	gidSet bool
}

// Load loads configuration from a TOML file. A missing file is not an
// error: it yields an empty Config for ApplyDefaults to fill in.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	cfg.uidSet = md.IsDefined("uid")
	cfg.gidSet = md.IsDefined("gid")

	return cfg, nil
}

// Merge merges CLI flag overrides into the config, CLI taking
// precedence over file values. Empty string values are ignored; uid/gid
// use hasUID/hasGID so an explicit zero can still win.
func (c *Config) Merge(mountRoot, pidFile, controlPipe, adminTable, kernelTable, hookPath string, uid, gid int, hasUID, hasGID bool) {
	if mountRoot != "" {
		c.MountRoot = mountRoot
	}
	if pidFile != "" {
		c.PidFile = pidFile
	}
	if controlPipe != "" {
		c.ControlPipe = controlPipe
	}
	if adminTable != "" {
		c.AdminTable = adminTable
	}
	if kernelTable != "" {
		c.KernelTable = kernelTable
	}
	if hookPath != "" {
		c.HookPath = hookPath
	}
	if hasUID {
		c.UID = uid
		c.uidSet = true
	}
	if hasGID {
		c.GID = gid
		c.gidSet = true
	}
}

// ApplyDefaults fills unset fields with the design defaults.
func (c *Config) ApplyDefaults() {
	if c.MountRoot == "" {
		c.MountRoot = DefaultMountRoot
	}
	if c.PidFile == "" {
		c.PidFile = DefaultPidFile
	}
	if c.ControlPipe == "" {
		c.ControlPipe = DefaultControlPipe
	}
	if c.AdminTable == "" {
		c.AdminTable = DefaultAdminTable
	}
	if c.KernelTable == "" {
		c.KernelTable = DefaultKernelTable
	}
	if c.RegistryCapacity == 0 {
		c.RegistryCapacity = DefaultRegistryCapacity
	}
	if c.HookTimeout == 0 {
		c.HookTimeout = DefaultHookTimeout
	}
}

// Validate validates the configuration. Per spec.md §6, -u and -g are
// mandatory; their absence is a fatal usage error.
func (c *Config) Validate() error {
	if !c.uidSet {
		return fmt.Errorf("uid is required (use -u or set 'uid' in config file)")
	}
	if !c.gidSet {
		return fmt.Errorf("gid is required (use -g or set 'gid' in config file)")
	}
	if c.RegistryCapacity <= 0 {
		return fmt.Errorf("registry_capacity must be positive, got %d", c.RegistryCapacity)
	}
	return nil
}
