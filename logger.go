package opencl

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/opencl/driver"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

// Drivers seen by New, keyed by name. Driver loggers are per package, so
// one instance per name is enough to propagate to.
var (
	driversMu sync.Mutex
	drivers   = make(map[string]loggerSetter)
)

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for opencl and the drivers in use.
// By default, opencl produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by opencl:
//   - [slog.LevelDebug]: resource creation and release, build progress
//   - [slog.LevelInfo]: driver selection
//   - [slog.LevelWarn]: release failures, swallowed build log queries
//
// Example:
//
//	opencl.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	driversMu.Lock()
	targets := make([]loggerSetter, 0, len(drivers))
	for _, d := range drivers {
		targets = append(targets, d)
	}
	driversMu.Unlock()

	for _, d := range targets {
		d.SetLogger(l)
	}
}

// Logger returns the current logger used by opencl.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by drivers that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// propagateLogger passes the current logger to drv if it accepts one and
// remembers it for later SetLogger calls.
func propagateLogger(drv driver.Driver) {
	ls, ok := drv.(loggerSetter)
	if !ok {
		return
	}
	driversMu.Lock()
	drivers[drv.Name()] = ls
	driversMu.Unlock()
	ls.SetLogger(Logger())
}
