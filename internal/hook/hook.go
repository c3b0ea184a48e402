// Package hook implements the Hook Invoker (spec.md §4.7): forks a
// user-supplied helper program on each mount/unmount, dropping
// privileges to the configured unprivileged user before exec.
package hook

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kriansa/ldm/internal/log"
)

// Action names passed as argv[1] to the helper.
const (
	ActionMount   = "mount"
	ActionUnmount = "unmount"
)

// Invoker runs the configured hook program as the unprivileged user
// and waits for it, bounded by a watchdog timeout. The clock is
// injectable so the timeout path is testable without a real sleep
// (spec.md §9 open question: "the re-implementation may choose to
// impose a timeout").
type Invoker struct {
	Path    string
	UID     int
	GID     int
	Timeout time.Duration
	Clock   clockwork.Clock
}

// New creates an Invoker. clock may be nil to use the real clock.
func New(path string, uid, gid int, timeout time.Duration, clock clockwork.Clock) *Invoker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Invoker{Path: path, UID: uid, GID: gid, Timeout: timeout, Clock: clock}
}

// Invoke runs the helper with argv [helper, action, mountpoint] as
// (uid, gid), and waits for it on a separate goroutine so the watchdog
// timer can kill it without blocking the caller past Timeout. When
// Path is empty the invocation is a no-op success (spec.md §4.7).
// Any other outcome — non-zero exit, spawn failure, or watchdog
// timeout — is logged and treated as non-fatal; the caller never
// unwinds a mount/unmount because a hook failed (spec.md §4.4, §7).
func (h *Invoker) Invoke(action, mountpoint string) {
	if h.Path == "" {
		return
	}

	cmd := exec.Command(h.Path, action, mountpoint)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Credential: &syscall.Credential{
			Uid: uint32(h.UID),
			Gid: uint32(h.GID),
		},
	}
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		log.Warn("hook failed to start", "helper", h.Path, "action", action, "mountpoint", mountpoint, "error", err)
		return
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timeout := h.Clock.NewTimer(h.Timeout)
	defer timeout.Stop()

	select {
	case err := <-done:
		if err != nil {
			log.Warn("hook failed", "helper", h.Path, "action", action, "mountpoint", mountpoint, "error", err)
			return
		}
		log.Debug("hook succeeded", "helper", h.Path, "action", action, "mountpoint", mountpoint)
	case <-timeout.Chan():
		log.Warn("hook timed out, killing", "helper", h.Path, "action", action, "mountpoint", mountpoint, "timeout", h.Timeout)
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
	}
}
