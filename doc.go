// Package opencl is a Go binding for OpenCL.
//
// The binding wraps the native OpenCL objects (devices, contexts,
// programs, kernels, memory objects and command queues) in Go values that
// own exactly one native handle each. Native calls go through a
// [driver.Driver]: the "native" driver loads the system OpenCL library
// without cgo, and the "host" driver emulates a CPU device whose kernels
// are implemented in Go.
//
// # Quick Start
//
//	rt, err := opencl.Open()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctx, err := rt.CreateDefaultContext()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctx.Release()
//
//	prog, err := ctx.BuildProgram(source)
//	if err != nil {
//	    log.Fatal(err) // includes the build log of every device
//	}
//	defer prog.Release()
//
// # Resource Lifetime
//
// Every wrapper implements [Resource]. Release is idempotent and wrappers
// compare by native handle with [Equal]. Install a [LiveSet] with
// [WithTracker] to find resources that were never released.
//
// # Building Programs
//
// [Context.BuildProgram] blocks until the build finishes.
// [Context.BuildProgramAsync] returns a [BuildFuture] that settles exactly
// once, including when the driver refuses to start the build.
//
// # Logging
//
// The package is silent by default. [SetLogger] installs a [log/slog]
// logger for the binding and the drivers it uses.
package opencl
