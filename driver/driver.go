package driver

import (
	"errors"
	"unsafe"
)

// Common driver errors.
var (
	// ErrNotAvailable is returned when no registered driver can be opened.
	ErrNotAvailable = errors.New("driver: no OpenCL driver available")

	// ErrUnknownDriver is returned when a driver name is not registered.
	ErrUnknownDriver = errors.New("driver: unknown driver")
)

// Driver is the native OpenCL call surface.
//
// Every method maps onto one OpenCL entry point and reports failures as a
// Status, never as a Go error. Implementations perform no argument
// translation beyond what the C signature needs.
//
// Info queries follow the OpenCL size-probe protocol: when dst is nil the
// method returns the number of bytes the value occupies; when dst is
// non-nil it must be at least that large and receives the value. The
// returned int is always the size of the value, not the size of dst.
//
// Enumeration methods (Platforms, Devices) follow the same shape with
// handle slices: a nil dst returns the count.
type Driver interface {
	// Name returns the driver identifier (e.g., "native", "host").
	Name() string

	// Platforms fills dst with platform handles (clGetPlatformIDs).
	Platforms(dst []Handle) (int, Status)

	// PlatformInfo queries a platform (clGetPlatformInfo).
	PlatformInfo(platform Handle, param PlatformInfo, dst []byte) (int, Status)

	// Devices fills dst with device handles of the given type (clGetDeviceIDs).
	Devices(platform Handle, typ DeviceType, dst []Handle) (int, Status)

	// DeviceInfo queries a device (clGetDeviceInfo).
	DeviceInfo(device Handle, param DeviceInfo, dst []byte) (int, Status)

	// ReleaseDevice releases a device (clReleaseDevice).
	ReleaseDevice(device Handle) Status

	// CreateContext creates a context for devices (clCreateContext).
	CreateContext(devices []Handle) (Handle, Status)

	// ReleaseContext releases a context (clReleaseContext).
	ReleaseContext(context Handle) Status

	// CreateProgramWithSource creates a program from source strings
	// (clCreateProgramWithSource).
	CreateProgramWithSource(context Handle, sources []string) (Handle, Status)

	// BuildProgram compiles and links a program (clBuildProgram).
	//
	// When notify is nil the call blocks until the build finishes. When
	// notify is non-nil the call may return before the build finishes and
	// notify is invoked exactly once, from a goroutine or thread owned by
	// the driver, when it does. A non-success return means the build could
	// not be registered; notify may or may not have been invoked in that
	// case.
	BuildProgram(program Handle, devices []Handle, options string, notify func(program Handle)) Status

	// ProgramInfo queries a program (clGetProgramInfo).
	ProgramInfo(program Handle, param ProgramInfo, dst []byte) (int, Status)

	// ProgramBuildInfo queries per-device build results
	// (clGetProgramBuildInfo).
	ProgramBuildInfo(program, device Handle, param ProgramBuildInfo, dst []byte) (int, Status)

	// ReleaseProgram releases a program (clReleaseProgram).
	ReleaseProgram(program Handle) Status

	// CreateKernel creates a kernel object (clCreateKernel).
	CreateKernel(program Handle, name string) (Handle, Status)

	// KernelInfo queries a kernel (clGetKernelInfo).
	KernelInfo(kernel Handle, param KernelInfo, dst []byte) (int, Status)

	// SetKernelArg binds size bytes at value to argument index
	// (clSetKernelArg). value may be nil for __local arguments.
	// The caller keeps value pinned for the duration of the call.
	SetKernelArg(kernel Handle, index uint32, size uintptr, value unsafe.Pointer) Status

	// ReleaseKernel releases a kernel (clReleaseKernel).
	ReleaseKernel(kernel Handle) Status

	// CreateBuffer allocates a buffer (clCreateBuffer).
	CreateBuffer(context Handle, flags MemFlags, size uintptr, host unsafe.Pointer) (Handle, Status)

	// CreateImage allocates an image (clCreateImage).
	CreateImage(context Handle, flags MemFlags, format ImageFormat, desc ImageDesc, host unsafe.Pointer) (Handle, Status)

	// CreatePipe allocates a pipe (clCreatePipe).
	CreatePipe(context Handle, flags MemFlags, packetSize, maxPackets uint32) (Handle, Status)

	// MemObjectInfo queries a memory object (clGetMemObjectInfo).
	MemObjectInfo(mem Handle, param MemInfo, dst []byte) (int, Status)

	// ReleaseMemObject releases a memory object (clReleaseMemObject).
	ReleaseMemObject(mem Handle) Status

	// CreateCommandQueue creates a queue on device (clCreateCommandQueue).
	CreateCommandQueue(context, device Handle, props QueueProperties) (Handle, Status)

	// ReleaseCommandQueue releases a queue (clReleaseCommandQueue).
	ReleaseCommandQueue(queue Handle) Status

	// EnqueueWriteBuffer copies data into mem at offset (clEnqueueWriteBuffer).
	EnqueueWriteBuffer(queue, mem Handle, blocking bool, offset uintptr, data []byte) Status

	// EnqueueReadBuffer copies len(dst) bytes from mem at offset
	// (clEnqueueReadBuffer).
	EnqueueReadBuffer(queue, mem Handle, blocking bool, offset uintptr, dst []byte) Status

	// EnqueueNDRangeKernel launches kernel over the given ranges
	// (clEnqueueNDRangeKernel). offset and local may be nil.
	EnqueueNDRangeKernel(queue, kernel Handle, offset, global, local []uintptr) Status

	// Flush submits queued commands (clFlush).
	Flush(queue Handle) Status

	// Finish blocks until queued commands complete (clFinish).
	Finish(queue Handle) Status
}
