package opencl

import "github.com/gogpu/opencl/driver"

// Option configures a Runtime.
//
// Example:
//
//	live := opencl.NewLiveSet()
//	rt, err := opencl.New(drv,
//	    opencl.WithTracker(live),
//	    opencl.WithBuildOptions("-cl-fast-relaxed-math"),
//	)
type Option func(*options)

type options struct {
	tracker      Tracker
	buildOptions string
	deviceType   driver.DeviceType
}

func defaultOptions() options {
	return options{
		tracker:    nopTracker{},
		deviceType: driver.DeviceTypeAll,
	}
}

// WithTracker installs a Tracker that observes every resource the
// runtime creates and releases. A nil tracker disables tracking.
func WithTracker(t Tracker) Option {
	return func(o *options) {
		if t == nil {
			t = nopTracker{}
		}
		o.tracker = t
	}
}

// WithBuildOptions sets the compiler options passed to every program
// build, e.g. "-D N=16 -cl-mad-enable".
func WithBuildOptions(opts string) Option {
	return func(o *options) {
		o.buildOptions = opts
	}
}

// WithDeviceType restricts Runtime.Devices to devices of typ.
func WithDeviceType(typ driver.DeviceType) Option {
	return func(o *options) {
		o.deviceType = typ
	}
}
