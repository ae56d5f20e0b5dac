package native

import (
	"os"
	"runtime"
)

// EnvLibrary names the environment variable that overrides the library
// path.
const EnvLibrary = "OPENCL_LIBRARY"

// Option configures Open.
type Option func(*options)

type options struct {
	library string
}

// WithLibrary loads the OpenCL library from path instead of searching the
// default locations.
func WithLibrary(path string) Option {
	return func(o *options) {
		o.library = path
	}
}

// candidates returns the library names to try, in order.
func (o *options) candidates() []string {
	if o.library != "" {
		return []string{o.library}
	}
	if env := os.Getenv(EnvLibrary); env != "" {
		return []string{env}
	}
	return defaultLibraries(runtime.GOOS)
}

func defaultLibraries(goos string) []string {
	switch goos {
	case "windows":
		return []string{"OpenCL.dll"}
	case "darwin":
		return []string{"/System/Library/Frameworks/OpenCL.framework/OpenCL"}
	default:
		return []string{"libOpenCL.so.1", "libOpenCL.so"}
	}
}
