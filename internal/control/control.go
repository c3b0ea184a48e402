// Package control implements the Control Channel (spec.md §4.8, §6):
// a named one-shot pipe reopened per message. First byte is the
// command, remaining bytes are the argument.
package control

import (
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/kriansa/ldm/internal/log"
)

// maxMessageSize bounds a single control-channel read. Messages are a
// command byte plus a filesystem path, well under this.
const maxMessageSize = 4096

// CmdRemove is the only defined command: unmount a device.
const CmdRemove byte = 'R'

// Message is one decoded control-channel request.
type Message struct {
	Command byte
	Arg     string
}

// Channel owns the named pipe and republishes decoded messages on a
// channel, reopening the pipe after each message (spec.md §4.8: "After
// one message the reader side closes and reopens the pipe").
type Channel struct {
	path     string
	messages chan Message
	errs     chan error
	done     chan struct{}
}

// Open creates the FIFO (world-writable, mode 0666 per spec.md §6) if
// it does not already exist, and starts the read loop.
func Open(path string) (*Channel, error) {
	if err := unix.Mkfifo(path, 0666); err != nil && err != unix.EEXIST {
		return nil, err
	}
	// Mkfifo respects umask; force the documented mode explicitly.
	if err := os.Chmod(path, 0666); err != nil {
		return nil, err
	}

	c := &Channel{
		path:     path,
		messages: make(chan Message),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}
	go c.loop()
	return c, nil
}

// Messages yields decoded, valid requests. Unknown command bytes and
// empty messages are dropped silently before reaching this channel
// (spec.md §7).
func (c *Channel) Messages() <-chan Message {
	return c.messages
}

// Errors yields a fatal error opening the pipe, then closes. A failed
// read is logged and the pipe is reopened; it is not reported here.
func (c *Channel) Errors() <-chan error {
	return c.errs
}

// Close stops the read loop and removes the pipe.
func (c *Channel) Close() error {
	close(c.done)
	return os.Remove(c.path)
}

func (c *Channel) loop() {
	defer close(c.errs)
	for {
		msg, ok, err := c.readOnce()
		if err != nil {
			select {
			case c.errs <- err:
			case <-c.done:
			}
			return
		}
		if !ok {
			select {
			case <-c.done:
				return
			default:
				continue
			}
		}

		select {
		case c.messages <- msg:
		case <-c.done:
			return
		}
	}
}

// readOnce opens the pipe, reads one message's worth of bytes, and
// closes it, implementing the one-message-per-open contract.
func (c *Channel) readOnce() (Message, bool, error) {
	// Opening for read blocks until a writer connects; opening
	// O_RDWR avoids the blocking-open/EOF-on-close churn a pure
	// read-only FIFO end would otherwise see between writers.
	f, err := os.OpenFile(c.path, os.O_RDWR, os.ModeNamedPipe)
	if err != nil {
		return Message{}, false, err
	}
	defer f.Close()

	buf := make([]byte, maxMessageSize)
	n, err := f.Read(buf)
	if err != nil {
		log.Warn("control channel read failed", "error", err)
		return Message{}, false, nil
	}
	data := buf[:n]

	if len(data) == 0 {
		return Message{}, false, nil
	}

	cmd := data[0]
	arg := strings.TrimSuffix(string(data[1:]), "/")

	if cmd != CmdRemove {
		log.Debug("control channel: unknown command", "command", cmd)
		return Message{}, false, nil
	}

	return Message{Command: cmd, Arg: arg}, true, nil
}
