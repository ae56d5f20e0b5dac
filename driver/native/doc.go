// Package native implements driver.Driver on top of the system OpenCL
// library.
//
// The library (libOpenCL.so.1, OpenCL.dll or the OpenCL framework) is
// loaded at run time through github.com/go-webgpu/goffi, so no C compiler
// is needed. Entry points are resolved on first use and each keeps a
// prepared call interface.
//
// goffi does not support cgo builds on Unix. When the module is built with
// CGO_ENABLED=1 on those systems, or on an unsupported architecture, Open
// always fails with ErrLibraryNotFound and the host driver is used instead.
//
// Importing the package registers the driver under driver.NameNative:
//
//	import _ "github.com/gogpu/opencl/driver/native"
package native
