// Package driver defines the native OpenCL call surface used by package
// opencl, together with a registry of driver implementations.
//
// A Driver is a thin, status-returning mirror of the OpenCL C API. It does
// not translate errors, cache values or track ownership; all of that lives
// in the opencl package. Two implementations ship with the module:
//
//   - native: loads the system ICD loader (libOpenCL.so.1, OpenCL.dll, or
//     the OpenCL framework) through Pure Go FFI, no cgo required.
//   - host: a Pure Go emulator that runs kernels implemented in Go. It is
//     the fallback when no native runtime is installed and the driver used
//     by the test suite.
//
// Drivers register themselves from init functions:
//
//	import _ "github.com/gogpu/opencl/driver/host"
//
//	drv, err := driver.Default()
//
// Set OPENCL_DRIVER=host or OPENCL_DRIVER=native to force a driver.
package driver
