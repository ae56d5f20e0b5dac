//go:build (((linux || freebsd || darwin) && !cgo) || windows) && (amd64 || arm64)

package native

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-webgpu/goffi/ffi"
	"github.com/go-webgpu/goffi/types"

	"github.com/gogpu/opencl/driver"
)

var (
	tVoidPtr = types.PointerTypeDescriptor
	tUint32  = types.UInt32TypeDescriptor
	tUint64  = types.UInt64TypeDescriptor
	tInt32   = types.SInt32TypeDescriptor
	tSize    = types.UInt64TypeDescriptor
)

// proc is one OpenCL entry point. The symbol and its call interface are
// resolved on first use.
type proc struct {
	name string
	ret  *types.TypeDescriptor
	args []*types.TypeDescriptor

	once sync.Once
	fn   unsafe.Pointer
	cif  types.CallInterface
	err  error
}

func newProc(name string, ret *types.TypeDescriptor, args ...*types.TypeDescriptor) *proc {
	return &proc{name: name, ret: ret, args: args}
}

func (p *proc) resolve(lib unsafe.Pointer) error {
	p.once.Do(func() {
		fn, err := ffi.GetSymbol(lib, p.name)
		if err != nil {
			p.err = fmt.Errorf("%w: %s", ErrSymbolNotFound, p.name)
			return
		}
		if err := ffi.PrepareCallInterface(&p.cif, types.DefaultCall, p.ret, p.args); err != nil {
			p.err = fmt.Errorf("native: prepare %s: %w", p.name, err)
			return
		}
		p.fn = fn
	})
	return p.err
}

// library is a loaded OpenCL library and its entry points.
type library struct {
	handle unsafe.Pointer
	path   string

	getPlatformIDs       *proc
	getPlatformInfo      *proc
	getDeviceIDs         *proc
	getDeviceInfo        *proc
	releaseDevice        *proc
	createContext        *proc
	releaseContext       *proc
	createProgram        *proc
	buildProgram         *proc
	getProgramInfo       *proc
	getProgramBuildInfo  *proc
	releaseProgram       *proc
	createKernel         *proc
	getKernelInfo        *proc
	setKernelArg         *proc
	releaseKernel        *proc
	createBuffer         *proc
	createImage          *proc
	createPipe           *proc
	getMemObjectInfo     *proc
	releaseMemObject     *proc
	createCommandQueue   *proc
	releaseCommandQueue  *proc
	enqueueWriteBuffer   *proc
	enqueueReadBuffer    *proc
	enqueueNDRangeKernel *proc
	flush                *proc
	finish               *proc
}

// loadLibrary opens the first candidate that loads and checks that it
// exports clGetPlatformIDs.
func loadLibrary(candidates []string) (*library, error) {
	var errs []error
	for _, name := range candidates {
		h, err := ffi.LoadLibrary(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		lib := newLibrary(h, name)
		if err := lib.getPlatformIDs.resolve(h); err != nil {
			_ = ffi.FreeLibrary(h)
			errs = append(errs, err)
			continue
		}
		return lib, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrLibraryNotFound, errors.Join(errs...))
}

func newLibrary(h unsafe.Pointer, path string) *library {
	info := []*types.TypeDescriptor{tVoidPtr, tUint32, tSize, tVoidPtr, tVoidPtr}
	release := func(name string) *proc { return newProc(name, tInt32, tVoidPtr) }
	enqueueBuffer := []*types.TypeDescriptor{
		tVoidPtr, tVoidPtr, tUint32, tSize, tSize, tVoidPtr, tUint32, tVoidPtr, tVoidPtr,
	}

	return &library{
		handle: h,
		path:   path,

		getPlatformIDs:  newProc("clGetPlatformIDs", tInt32, tUint32, tVoidPtr, tVoidPtr),
		getPlatformInfo: newProc("clGetPlatformInfo", tInt32, info...),
		getDeviceIDs:    newProc("clGetDeviceIDs", tInt32, tVoidPtr, tUint64, tUint32, tVoidPtr, tVoidPtr),
		getDeviceInfo:   newProc("clGetDeviceInfo", tInt32, info...),
		releaseDevice:   release("clReleaseDevice"),

		createContext:  newProc("clCreateContext", tVoidPtr, tVoidPtr, tUint32, tVoidPtr, tVoidPtr, tVoidPtr, tVoidPtr),
		releaseContext: release("clReleaseContext"),

		createProgram:       newProc("clCreateProgramWithSource", tVoidPtr, tVoidPtr, tUint32, tVoidPtr, tVoidPtr, tVoidPtr),
		buildProgram:        newProc("clBuildProgram", tInt32, tVoidPtr, tUint32, tVoidPtr, tVoidPtr, tVoidPtr, tVoidPtr),
		getProgramInfo:      newProc("clGetProgramInfo", tInt32, info...),
		getProgramBuildInfo: newProc("clGetProgramBuildInfo", tInt32, tVoidPtr, tVoidPtr, tUint32, tSize, tVoidPtr, tVoidPtr),
		releaseProgram:      release("clReleaseProgram"),

		createKernel:  newProc("clCreateKernel", tVoidPtr, tVoidPtr, tVoidPtr, tVoidPtr),
		getKernelInfo: newProc("clGetKernelInfo", tInt32, info...),
		setKernelArg:  newProc("clSetKernelArg", tInt32, tVoidPtr, tUint32, tSize, tVoidPtr),
		releaseKernel: release("clReleaseKernel"),

		createBuffer:     newProc("clCreateBuffer", tVoidPtr, tVoidPtr, tUint64, tSize, tVoidPtr, tVoidPtr),
		createImage:      newProc("clCreateImage", tVoidPtr, tVoidPtr, tUint64, tVoidPtr, tVoidPtr, tVoidPtr, tVoidPtr),
		createPipe:       newProc("clCreatePipe", tVoidPtr, tVoidPtr, tUint64, tUint32, tUint32, tVoidPtr, tVoidPtr),
		getMemObjectInfo: newProc("clGetMemObjectInfo", tInt32, info...),
		releaseMemObject: release("clReleaseMemObject"),

		createCommandQueue:  newProc("clCreateCommandQueue", tVoidPtr, tVoidPtr, tVoidPtr, tUint64, tVoidPtr),
		releaseCommandQueue: release("clReleaseCommandQueue"),
		enqueueWriteBuffer:  newProc("clEnqueueWriteBuffer", tInt32, enqueueBuffer...),
		enqueueReadBuffer:   newProc("clEnqueueReadBuffer", tInt32, enqueueBuffer...),
		enqueueNDRangeKernel: newProc("clEnqueueNDRangeKernel", tInt32,
			tVoidPtr, tVoidPtr, tUint32, tVoidPtr, tVoidPtr, tVoidPtr, tUint32, tVoidPtr, tVoidPtr),
		flush:  newProc("clFlush", tInt32, tVoidPtr),
		finish: newProc("clFinish", tInt32, tVoidPtr),
	}
}

func (l *library) close() error {
	return ffi.FreeLibrary(l.handle)
}

// status calls an entry point that returns cl_int. args are pointers to
// the argument values.
func (l *library) status(p *proc, args ...unsafe.Pointer) driver.Status {
	if err := p.resolve(l.handle); err != nil {
		slogger().Warn("native: entry point unavailable", "error", err)
		return driver.InvalidOperation
	}
	var ret int32
	if err := ffi.CallFunction(&p.cif, p.fn, unsafe.Pointer(&ret), args); err != nil {
		slogger().Warn("native: call failed", "symbol", p.name, "error", err)
		return driver.InvalidOperation
	}
	return driver.Status(ret)
}

// object calls a constructor that returns an object and reports its
// status through a trailing cl_int* argument, which object appends.
func (l *library) object(p *proc, args ...unsafe.Pointer) (driver.Handle, driver.Status) {
	if err := p.resolve(l.handle); err != nil {
		slogger().Warn("native: entry point unavailable", "error", err)
		return 0, driver.InvalidOperation
	}
	var (
		ret     uintptr
		errcode int32
	)
	errPtr := unsafe.Pointer(&errcode)
	args = append(args, unsafe.Pointer(&errPtr))
	if err := ffi.CallFunction(&p.cif, p.fn, unsafe.Pointer(&ret), args); err != nil {
		slogger().Warn("native: call failed", "symbol", p.name, "error", err)
		return 0, driver.InvalidOperation
	}
	if st := driver.Status(errcode); !st.OK() {
		return 0, st
	}
	return driver.Handle(ret), driver.Success
}
