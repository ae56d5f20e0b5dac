// Package host implements an OpenCL driver in pure Go.
//
// The host driver exposes one platform with one or more CPU devices. It
// compiles nothing: program source is scanned for __kernel signatures and
// diagnostics, and every kernel a program declares must have a Go
// implementation registered with [WithKernel]. Kernel launches run the Go
// implementation once per work-item, spreading work-groups over a worker
// pool.
//
//	drv := host.New(host.WithKernel("set_value", func(it host.WorkItem, args host.Args) {
//	    args.Bytes(0)[it.GlobalID[0]] = args.Uint8(1)
//	}))
//
// Importing the package registers a default host driver (with no kernels)
// under [driver.NameHost].
package host
