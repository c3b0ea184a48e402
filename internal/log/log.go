// Package log provides the daemon's single logging sink: a leveled,
// key-value logger backed by the system log facility under a fixed tag.
package log

import (
	"io"
	"os"
	"sync"

	hclog "github.com/hashicorp/go-hclog"
	gsyslog "github.com/hashicorp/go-syslog"
)

const tag = "ldm"

var (
	mu     sync.Mutex
	logger hclog.Logger = hclog.NewNullLogger()
)

// Setup initializes the global logger. verbose selects Debug level;
// otherwise Info. If the system log facility cannot be opened, Setup
// falls back to stderr so startup errors are never silently lost.
func Setup(verbose bool) {
	mu.Lock()
	defer mu.Unlock()

	level := hclog.Info
	if verbose {
		level = hclog.Debug
	}

	var out io.Writer
	w, err := gsyslog.NewLogger(gsyslog.LOG_INFO, "DAEMON", tag)
	if err != nil {
		out = os.Stderr
	} else {
		out = w
	}

	logger = hclog.New(&hclog.LoggerOptions{
		Name:            tag,
		Level:           level,
		Output:          out,
		JSONFormat:      false,
		DisableTime:     true,
		Color:           hclog.ColorOff,
		IncludeLocation: false,
	})
}

func get() hclog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

func Debug(msg string, args ...any) { get().Debug(msg, args...) }
func Info(msg string, args ...any)  { get().Info(msg, args...) }
func Warn(msg string, args ...any)  { get().Warn(msg, args...) }
func Error(msg string, args ...any) { get().Error(msg, args...) }
