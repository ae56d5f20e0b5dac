//go:build !((((linux || freebsd || darwin) && !cgo) || windows) && (amd64 || arm64))

package native

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/gogpu/opencl/driver"
)

func init() {
	driver.Register(driver.NameNative, func() (driver.Driver, error) {
		return Open()
	})
}

// Driver is unavailable in this build.
type Driver struct {
	driver.Driver
}

// Open always fails: this build cannot load libraries without cgo.
func Open(...Option) (*Driver, error) {
	return nil, fmt.Errorf("%w: unsupported build (%s/%s, cgo enabled or unsupported arch)",
		ErrLibraryNotFound, runtime.GOOS, runtime.GOARCH)
}

// Library returns the empty string.
func (d *Driver) Library() string { return "" }

// Close does nothing.
func (d *Driver) Close() error { return nil }

// SetLogger sets the logger used by the native driver.
func (d *Driver) SetLogger(l *slog.Logger) { setLogger(l) }
