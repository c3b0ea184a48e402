package mtab

// TableID names which of the two authoritative tables a Cache
// operation targets.
type TableID int

const (
	// Admin is the administrator-maintained /etc/fstab.
	Admin TableID = iota
	// Kernel is the live /proc/self/mounts.
	Kernel
)

// Cache owns the two parsed mount tables and reloads them wholesale on
// demand (spec.md §4.1: "opaque to the rest of the system except via
// Fstab Resolver queries... rebuilt wholesale on change, never mutated
// in place").
type Cache struct {
	adminPath  string
	kernelPath string

	admin  []Entry
	kernel []Entry
}

// NewCache creates a Cache that will parse the given paths on Reload.
func NewCache(adminPath, kernelPath string) *Cache {
	return &Cache{adminPath: adminPath, kernelPath: kernelPath}
}

// Reload fully discards and reparses the given table. Failure to parse
// is propagated; the caller decides whether to abort.
func (c *Cache) Reload(id TableID) error {
	switch id {
	case Admin:
		entries, err := parseTable(c.adminPath)
		if err != nil {
			return err
		}
		c.admin = entries
	case Kernel:
		entries, err := parseTable(c.kernelPath)
		if err != nil {
			return err
		}
		c.kernel = entries
	}
	return nil
}

// Entries returns the current parsed contents of the given table.
func (c *Cache) Entries(id TableID) []Entry {
	if id == Admin {
		return c.admin
	}
	return c.kernel
}

// AdminPath returns the filesystem path backing the admin table.
func (c *Cache) AdminPath() string { return c.adminPath }

// KernelPath returns the filesystem path backing the kernel table.
func (c *Cache) KernelPath() string { return c.kernelPath }
