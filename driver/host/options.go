package host

// Option configures a host Driver.
type Option func(*options)

type options struct {
	kernels   map[string]KernelFunc
	devices   int
	globalMem uint64
	workers   int
	cacheSize int
}

func defaultOptions() options {
	return options{
		kernels:   make(map[string]KernelFunc),
		devices:   1,
		globalMem: 1 << 30,
		cacheSize: 64,
	}
}

// WithKernel registers the Go implementation of an OpenCL kernel.
// Programs may only declare kernels that have an implementation.
func WithKernel(name string, fn KernelFunc) Option {
	return func(o *options) {
		o.kernels[name] = fn
	}
}

// WithDevices sets the number of emulated devices. Values below 1 are
// ignored.
func WithDevices(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.devices = n
		}
	}
}

// WithGlobalMemory sets the global memory size shared by all devices.
func WithGlobalMemory(bytes uint64) Option {
	return func(o *options) {
		if bytes > 0 {
			o.globalMem = bytes
		}
	}
}

// WithWorkers sets the number of goroutines executing work-groups.
// 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithCompileCache sets how many compiled programs are kept for reuse.
// 0 disables the cache limit.
func WithCompileCache(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.cacheSize = n
		}
	}
}
