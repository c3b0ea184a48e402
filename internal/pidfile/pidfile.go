// Package pidfile implements the Singleton Guard (spec.md §4.9): a
// pid-file whose mere presence at startup indicates another daemon
// instance is already running. No advisory locking is used.
package pidfile

import (
	"fmt"
	"os"
	"strconv"
)

// Guard owns the pid-file's lifecycle.
type Guard struct {
	path string
}

// Acquire checks that no pid-file exists at path, then creates one
// containing the current process's pid. Presence of the file aborts
// with an error the caller should treat as a fatal startup error
// (spec.md §7).
func Acquire(path string) (*Guard, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("pid file %s already exists; is another instance running?", path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat pid file: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("create pid file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write pid file: %w", err)
	}

	return &Guard{path: path}, nil
}

// Release removes the pid-file on clean shutdown.
func (g *Guard) Release() error {
	return os.Remove(g.path)
}
