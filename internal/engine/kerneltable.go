package engine

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// kernelTableWatch polls a file for exceptional readiness, the
// standard Linux trick for detecting changes to /proc/self/mounts
// (spec.md §2: "error-readiness (poll reports exceptional condition on
// this pseudo-file)"). It runs its own blocking poll(2) loop on a
// goroutine and republishes each wakeup as a channel signal so the
// engine's single select loop can treat it like any other source.
type kernelTableWatch struct {
	file   *os.File
	events chan struct{}
	errs   chan error
	done   chan struct{}
}

func watchKernelTable(path string) (*kernelTableWatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	w := &kernelTableWatch{
		file:   f,
		events: make(chan struct{}),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *kernelTableWatch) loop() {
	defer close(w.errs)
	fds := []unix.PollFd{{
		Fd:     int32(w.file.Fd()),
		Events: unix.POLLERR | unix.POLLPRI,
	}}

	for {
		n, err := unix.Poll(fds, -1)
		select {
		case <-w.done:
			return
		default:
		}

		if err != nil {
			if err == unix.EINTR {
				continue
			}
			select {
			case w.errs <- err:
			case <-w.done:
			}
			return
		}
		if n == 0 {
			continue
		}

		select {
		case w.events <- struct{}{}:
		case <-w.done:
			return
		}
	}
}

func (w *kernelTableWatch) Close() error {
	close(w.done)
	return w.file.Close()
}
