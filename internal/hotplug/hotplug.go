// Package hotplug implements the hotplug stream (spec.md §2, source
// 1): kernel/udev block-subsystem add/remove/change events, decoded
// into the device.KernelHandle shape the lifecycle component consumes.
//
// The underlying netlink client (github.com/mdlayher/kobject) only
// exposes a blocking Receive call, so Source runs its own decode loop
// on a background goroutine and republishes decoded events on a
// channel — the same shape as the automounter in
// other_examples/netbrain-iomonkey__automounter.go, which drives its
// own uevent.Decoder loop the same way. This keeps the daemon's single
// logical thread of control (spec.md §5) in the goroutine that selects
// on the channel, not the one that blocks in Receive.
package hotplug

import (
	"fmt"
	"strings"

	"github.com/mdlayher/kobject"

	"github.com/kriansa/ldm/internal/device"
)

// Action names as reported by the kernel/udev uevent.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
)

// Event is one decoded hotplug notification.
type Event struct {
	Action string
	Handle device.KernelHandle
}

// Source is the hotplug stream. Only the block subsystem is of
// interest (spec.md §2); non-block events and unrecognized actions are
// filtered out before reaching the channel.
type Source struct {
	client *kobject.Client
	events chan Event
	errs   chan error
	done   chan struct{}
}

// Open connects to the kernel's netlink uevent socket and starts the
// decode loop.
func Open() (*Source, error) {
	client, err := kobject.New()
	if err != nil {
		return nil, err
	}

	s := &Source{
		client: client,
		events: make(chan Event),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	go s.loop()
	return s, nil
}

// Events yields decoded, filtered hotplug events.
func (s *Source) Events() <-chan Event {
	return s.events
}

// Errors yields a fatal decode/receive error, then closes.
func (s *Source) Errors() <-chan error {
	return s.errs
}

// Close stops the decode loop and releases the underlying socket.
func (s *Source) Close() error {
	close(s.done)
	return s.client.Close()
}

func (s *Source) loop() {
	defer close(s.errs)
	for {
		raw, err := s.client.Receive()
		if err != nil {
			select {
			case s.errs <- err:
			case <-s.done:
			}
			return
		}

		evt, ok := decode(raw)
		if !ok {
			continue
		}

		select {
		case s.events <- evt:
		case <-s.done:
			return
		}
	}
}

func decode(raw *kobject.Event) (Event, bool) {
	if raw.Subsystem != "block" {
		return Event{}, false
	}

	action := strings.ToLower(fmt.Sprintf("%v", raw.Action))
	switch action {
	case ActionAdd, ActionRemove, ActionChange:
	default:
		return Event{}, false
	}

	handle := device.KernelHandle{
		DevName:    raw.Values["DEVNAME"],
		DevType:    raw.Values["DEVTYPE"],
		Subsystem:  raw.Subsystem,
		FSType:     raw.Values["ID_FS_TYPE"],
		FSLabel:    raw.Values["ID_FS_LABEL"],
		FSUUID:     raw.Values["ID_FS_UUID"],
		FSUsage:    raw.Values["ID_FS_USAGE"],
		IDType:     raw.Values["ID_TYPE"],
		CDROMMedia: raw.Values["ID_CDROM_MEDIA"] == "1",
		// ID_SERIAL_SHORT, not ID_SERIAL (the original daemon's choice):
		// the short form omits the vendor/model prefix udev prepends,
		// giving a shorter synthesized mountpoint name.
		Serial:  raw.Values["ID_SERIAL_SHORT"],
		Aliases: splitDevlinks(raw.Values["DEVLINKS"]),
	}

	if handle.DevName == "" {
		return Event{}, false
	}

	return Event{Action: action, Handle: handle}, true
}

// splitDevlinks splits udev's space-separated DEVLINKS property,
// preserving kernel-reported order (spec.md §4.1: "in the order the
// kernel reports them").
func splitDevlinks(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
