package opencl

import (
	"errors"

	"github.com/gogpu/opencl/driver"
)

// Runtime is the entry point of the binding. It pairs a driver with the
// options that govern every resource created through it.
//
// A Runtime holds no native resources itself and needs no release.
type Runtime struct {
	drv  driver.Driver
	opts options
}

// New creates a runtime on drv.
func New(drv driver.Driver, opts ...Option) (*Runtime, error) {
	if drv == nil {
		return nil, ErrNilDriver
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	propagateLogger(drv)
	return &Runtime{drv: drv, opts: o}, nil
}

// Open creates a runtime on the best available driver. See driver.Default
// for the selection order.
func Open(opts ...Option) (*Runtime, error) {
	drv, err := driver.Default()
	if err != nil {
		return nil, err
	}
	Logger().Info("opencl: driver selected", "driver", drv.Name())
	return New(drv, opts...)
}

// Driver returns the underlying driver.
func (r *Runtime) Driver() driver.Driver { return r.drv }

// Tracker returns the installed resource tracker.
func (r *Runtime) Tracker() Tracker { return r.opts.tracker }

// Platforms enumerates the available platforms.
func (r *Runtime) Platforms() ([]*Platform, error) {
	n, status := r.drv.Platforms(nil)
	if status == driver.PlatformNotFoundKHR {
		return nil, nil
	}
	if err := check("get platform ids", status); err != nil {
		return nil, err
	}
	handles := make([]driver.Handle, n)
	if n > 0 {
		if _, status := r.drv.Platforms(handles); !status.OK() {
			return nil, &Error{Op: "get platform ids", Status: status}
		}
	}

	platforms := make([]*Platform, len(handles))
	for i, h := range handles {
		platforms[i] = &Platform{rt: r, handle: h}
	}
	return platforms, nil
}

// Devices returns the devices of every platform that match the
// configured device type (WithDeviceType). It fails with ErrNoDevices
// when there are none.
func (r *Runtime) Devices() ([]*Device, error) {
	platforms, err := r.Platforms()
	if err != nil {
		return nil, err
	}
	var devices []*Device
	for _, p := range platforms {
		ds, err := p.Devices(r.opts.deviceType)
		if err != nil {
			return nil, err
		}
		devices = append(devices, ds...)
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	return devices, nil
}

// CreateContext creates a context spanning devices. The context borrows
// the devices: they must outlive it.
func (r *Runtime) CreateContext(devices ...*Device) (*Context, error) {
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	handles := make([]driver.Handle, len(devices))
	for i, d := range devices {
		h, err := d.live("create context")
		if err != nil {
			return nil, err
		}
		handles[i] = h
	}

	h, status := r.drv.CreateContext(handles)
	if err := check("create context", status); err != nil {
		return nil, err
	}
	c := &Context{rt: r, devices: append([]*Device(nil), devices...)}
	c.init(c, KindContext, h, r.drv.ReleaseContext, r.opts.tracker)
	return c, nil
}

// CreateDefaultContext creates a context on every device returned by
// Devices.
func (r *Runtime) CreateDefaultContext() (*Context, error) {
	devices, err := r.Devices()
	if err != nil {
		return nil, err
	}
	return r.CreateContext(devices...)
}

// IsStatus reports whether err carries the native status.
func IsStatus(err error, status driver.Status) bool {
	return errors.Is(err, StatusError(status))
}
