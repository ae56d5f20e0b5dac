package opencl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/opencl/driver"
)

// Sentinel errors.
var (
	// ErrReleased is returned when a released resource is used.
	ErrReleased = errors.New("opencl: resource released")

	// ErrNoDevices is returned when a context is requested without devices
	// or no device of the requested type exists.
	ErrNoDevices = errors.New("opencl: no devices")

	// ErrNotFixedSize is returned by Kernel.SetArgValue for values without
	// a fixed binary layout.
	ErrNotFixedSize = errors.New("opencl: value has no fixed binary size")

	// ErrNilDriver is returned by New when no driver is given.
	ErrNilDriver = errors.New("opencl: nil driver")

	// ErrBuildPending is returned by BuildFuture.Result before the build
	// has settled.
	ErrBuildPending = errors.New("opencl: build has not completed")
)

// Error reports a native call that returned a non-success status.
type Error struct {
	// Op describes the failed operation, e.g. "create buffer".
	Op string
	// Status is the native status code, unmodified.
	Status driver.Status
}

func (e *Error) Error() string {
	return fmt.Sprintf("opencl: %s: %s (error code %d)", e.Op, e.Status, int32(e.Status))
}

// Is reports whether target is an *Error with the same status. An empty
// Op in target matches any operation.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Status == e.Status && (t.Op == "" || t.Op == e.Op)
}

// StatusError returns a target for errors.Is that matches any *Error
// carrying status.
func StatusError(status driver.Status) error {
	return &Error{Status: status}
}

// StatusOf extracts the native status from err.
func StatusOf(err error) (driver.Status, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Status, true
	}
	var be *BuildError
	if errors.As(err, &be) {
		return be.Status, true
	}
	return driver.Success, false
}

// check converts a status into an error.
func check(op string, status driver.Status) error {
	if status.OK() {
		return nil
	}
	return &Error{Op: op, Status: status}
}

// ArgumentIndexError reports a kernel argument index outside the valid
// range. It is returned before any native call is made.
type ArgumentIndexError struct {
	Index int
}

func (e *ArgumentIndexError) Error() string {
	return fmt.Sprintf("opencl: kernel argument index %d out of range", e.Index)
}

// DeviceLog is the build log of one device.
type DeviceLog struct {
	Device string
	Log    string
}

// BuildError reports a program that failed to compile or link. Its message
// carries the build log of every device that produced one.
type BuildError struct {
	Status driver.Status
	Logs   []DeviceLog
}

func (e *BuildError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "opencl: program could not be compiled and linked (%s)", e.Status)
	for _, l := range e.Logs {
		fmt.Fprintf(&sb, "\n\n Build log for device %q:\n%s", l.Device, l.Log)
	}
	return sb.String()
}

// Unwrap exposes the native status as an *Error.
func (e *BuildError) Unwrap() error {
	return &Error{Op: "build program", Status: e.Status}
}
