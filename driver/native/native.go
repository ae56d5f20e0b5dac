//go:build (((linux || freebsd || darwin) && !cgo) || windows) && (amd64 || arm64)

package native

import (
	"log/slog"
	"runtime"
	"unsafe"

	"github.com/gogpu/opencl/driver"
)

func init() {
	driver.Register(driver.NameNative, func() (driver.Driver, error) {
		return Open()
	})
}

// Driver calls into a loaded OpenCL library.
type Driver struct {
	lib *library
}

var _ driver.Driver = (*Driver)(nil)

// Open loads the OpenCL library. The location comes from WithLibrary, then
// the OPENCL_LIBRARY environment variable, then the platform default.
func Open(opts ...Option) (*Driver, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	lib, err := loadLibrary(o.candidates())
	if err != nil {
		return nil, err
	}
	slogger().Debug("native: library loaded", "path", lib.path)
	return &Driver{lib: lib}, nil
}

// Name implements driver.Driver.
func (d *Driver) Name() string { return driver.NameNative }

// Library returns the path the library was loaded from.
func (d *Driver) Library() string { return d.lib.path }

// Close unloads the library. Objects created through d must be released
// first.
func (d *Driver) Close() error { return d.lib.close() }

// SetLogger sets the logger used by the native driver.
func (d *Driver) SetLogger(l *slog.Logger) { setLogger(l) }

// ptr returns the address of the first element of s, or nil.
func ptr[T any](s []T) unsafe.Pointer {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(s))
}

// cstring returns s as a NUL-terminated byte slice.
func cstring(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

// info runs a clGet*Info call shaped (object, param, size, value, size_ret)
// under the driver's size-probe contract.
func (d *Driver) info(p *proc, obj driver.Handle, param uint32, dst []byte) (int, driver.Status) {
	var (
		size   = uintptr(len(dst))
		value  = ptr(dst)
		actual uintptr
		pinner runtime.Pinner
	)
	if value != nil {
		pinner.Pin(value)
	}
	defer pinner.Unpin()

	actualPtr := unsafe.Pointer(&actual)
	st := d.lib.status(p,
		unsafe.Pointer(&obj), unsafe.Pointer(&param), unsafe.Pointer(&size),
		unsafe.Pointer(&value), unsafe.Pointer(&actualPtr))
	if st == driver.InvalidValue && dst != nil {
		// Implementations differ on size_ret for short buffers; probe again.
		if n, probe := d.info(p, obj, param, nil); probe.OK() {
			return n, st
		}
	}
	return int(actual), st
}

// handles runs an ID enumeration shaped (num_entries, ids, num_ret) with
// the given leading arguments.
func (d *Driver) handles(p *proc, dst []driver.Handle, lead ...unsafe.Pointer) (int, driver.Status) {
	var (
		entries = uint32(len(dst))
		ids     = ptr(dst)
		count   uint32
		pinner  runtime.Pinner
	)
	if ids != nil {
		pinner.Pin(ids)
	}
	defer pinner.Unpin()

	countPtr := unsafe.Pointer(&count)
	args := append(lead, unsafe.Pointer(&entries), unsafe.Pointer(&ids), unsafe.Pointer(&countPtr))
	st := d.lib.status(p, args...)
	return int(count), st
}

func (d *Driver) release(p *proc, h driver.Handle) driver.Status {
	return d.lib.status(p, unsafe.Pointer(&h))
}

// Platforms implements driver.Driver.
func (d *Driver) Platforms(dst []driver.Handle) (int, driver.Status) {
	return d.handles(d.lib.getPlatformIDs, dst)
}

// PlatformInfo implements driver.Driver.
func (d *Driver) PlatformInfo(h driver.Handle, param driver.PlatformInfo, dst []byte) (int, driver.Status) {
	return d.info(d.lib.getPlatformInfo, h, uint32(param), dst)
}

// Devices implements driver.Driver.
func (d *Driver) Devices(platform driver.Handle, typ driver.DeviceType, dst []driver.Handle) (int, driver.Status) {
	t := uint64(typ)
	return d.handles(d.lib.getDeviceIDs, dst, unsafe.Pointer(&platform), unsafe.Pointer(&t))
}

// DeviceInfo implements driver.Driver.
func (d *Driver) DeviceInfo(h driver.Handle, param driver.DeviceInfo, dst []byte) (int, driver.Status) {
	return d.info(d.lib.getDeviceInfo, h, uint32(param), dst)
}

// ReleaseDevice implements driver.Driver. Root devices are unaffected.
func (d *Driver) ReleaseDevice(h driver.Handle) driver.Status {
	return d.release(d.lib.releaseDevice, h)
}

// CreateContext implements driver.Driver.
func (d *Driver) CreateContext(devices []driver.Handle) (driver.Handle, driver.Status) {
	var (
		props  unsafe.Pointer
		n      = uint32(len(devices))
		ids    = ptr(devices)
		notify unsafe.Pointer
		user   unsafe.Pointer
		pinner runtime.Pinner
	)
	if ids != nil {
		pinner.Pin(ids)
	}
	defer pinner.Unpin()

	return d.lib.object(d.lib.createContext,
		unsafe.Pointer(&props), unsafe.Pointer(&n), unsafe.Pointer(&ids),
		unsafe.Pointer(&notify), unsafe.Pointer(&user))
}

// ReleaseContext implements driver.Driver.
func (d *Driver) ReleaseContext(h driver.Handle) driver.Status {
	return d.release(d.lib.releaseContext, h)
}

// CreateProgramWithSource implements driver.Driver.
func (d *Driver) CreateProgramWithSource(ctx driver.Handle, sources []string) (driver.Handle, driver.Status) {
	if len(sources) == 0 {
		return 0, driver.InvalidValue
	}

	var pinner runtime.Pinner
	defer pinner.Unpin()

	strs := make([]unsafe.Pointer, len(sources))
	lens := make([]uintptr, len(sources))
	for i, s := range sources {
		// A zero length means NUL-terminated, so empty sources pass "\x00".
		b := cstring(s)
		pinner.Pin(&b[0])
		strs[i] = unsafe.Pointer(&b[0])
		lens[i] = uintptr(len(s))
	}
	pinner.Pin(&strs[0])
	pinner.Pin(&lens[0])

	var (
		count   = uint32(len(sources))
		strsPtr = unsafe.Pointer(&strs[0])
		lensPtr = unsafe.Pointer(&lens[0])
	)
	return d.lib.object(d.lib.createProgram,
		unsafe.Pointer(&ctx), unsafe.Pointer(&count), unsafe.Pointer(&strsPtr), unsafe.Pointer(&lensPtr))
}

// BuildProgram implements driver.Driver. With a notify function the build
// completes through the shared callback trampoline.
func (d *Driver) BuildProgram(h driver.Handle, devices []driver.Handle, options string, notify func(driver.Handle)) driver.Status {
	var (
		n      = uint32(len(devices))
		ids    = ptr(devices)
		opts   = cstring(options)
		optPtr = unsafe.Pointer(&opts[0])
		pfn    uintptr
		user   unsafe.Pointer
		pinner runtime.Pinner
	)
	if ids != nil {
		pinner.Pin(ids)
	}
	pinner.Pin(optPtr)
	defer pinner.Unpin()

	if notify != nil {
		if !register(h, notify) {
			return driver.InvalidOperation
		}
		pfn = buildTrampoline()
	}

	st := d.lib.status(d.lib.buildProgram,
		unsafe.Pointer(&h), unsafe.Pointer(&n), unsafe.Pointer(&ids),
		unsafe.Pointer(&optPtr), unsafe.Pointer(&pfn), unsafe.Pointer(&user))
	if !st.OK() && notify != nil {
		unregister(h)
	}
	return st
}

// ProgramInfo implements driver.Driver.
func (d *Driver) ProgramInfo(h driver.Handle, param driver.ProgramInfo, dst []byte) (int, driver.Status) {
	return d.info(d.lib.getProgramInfo, h, uint32(param), dst)
}

// ProgramBuildInfo implements driver.Driver.
func (d *Driver) ProgramBuildInfo(h, device driver.Handle, param driver.ProgramBuildInfo, dst []byte) (int, driver.Status) {
	var (
		p      = uint32(param)
		size   = uintptr(len(dst))
		value  = ptr(dst)
		actual uintptr
		pinner runtime.Pinner
	)
	if value != nil {
		pinner.Pin(value)
	}
	defer pinner.Unpin()

	actualPtr := unsafe.Pointer(&actual)
	st := d.lib.status(d.lib.getProgramBuildInfo,
		unsafe.Pointer(&h), unsafe.Pointer(&device), unsafe.Pointer(&p),
		unsafe.Pointer(&size), unsafe.Pointer(&value), unsafe.Pointer(&actualPtr))
	return int(actual), st
}

// ReleaseProgram implements driver.Driver.
func (d *Driver) ReleaseProgram(h driver.Handle) driver.Status {
	return d.release(d.lib.releaseProgram, h)
}

// CreateKernel implements driver.Driver.
func (d *Driver) CreateKernel(h driver.Handle, name string) (driver.Handle, driver.Status) {
	b := cstring(name)
	namePtr := unsafe.Pointer(&b[0])
	var pinner runtime.Pinner
	pinner.Pin(namePtr)
	defer pinner.Unpin()

	return d.lib.object(d.lib.createKernel, unsafe.Pointer(&h), unsafe.Pointer(&namePtr))
}

// KernelInfo implements driver.Driver.
func (d *Driver) KernelInfo(h driver.Handle, param driver.KernelInfo, dst []byte) (int, driver.Status) {
	return d.info(d.lib.getKernelInfo, h, uint32(param), dst)
}

// SetKernelArg implements driver.Driver. The caller pins value.
func (d *Driver) SetKernelArg(h driver.Handle, index uint32, size uintptr, value unsafe.Pointer) driver.Status {
	return d.lib.status(d.lib.setKernelArg,
		unsafe.Pointer(&h), unsafe.Pointer(&index), unsafe.Pointer(&size), unsafe.Pointer(&value))
}

// ReleaseKernel implements driver.Driver.
func (d *Driver) ReleaseKernel(h driver.Handle) driver.Status {
	return d.release(d.lib.releaseKernel, h)
}

// CreateBuffer implements driver.Driver. The caller pins host.
func (d *Driver) CreateBuffer(ctx driver.Handle, flags driver.MemFlags, size uintptr, host unsafe.Pointer) (driver.Handle, driver.Status) {
	f := uint64(flags)
	return d.lib.object(d.lib.createBuffer,
		unsafe.Pointer(&ctx), unsafe.Pointer(&f), unsafe.Pointer(&size), unsafe.Pointer(&host))
}

// clImageFormat mirrors cl_image_format.
type clImageFormat struct {
	order uint32
	typ   uint32
}

// clImageDesc mirrors cl_image_desc.
type clImageDesc struct {
	imageType    uint32
	width        uintptr
	height       uintptr
	depth        uintptr
	arraySize    uintptr
	rowPitch     uintptr
	slicePitch   uintptr
	numMipLevels uint32
	numSamples   uint32
	buffer       uintptr
}

// CreateImage implements driver.Driver. The caller pins host.
func (d *Driver) CreateImage(ctx driver.Handle, flags driver.MemFlags, format driver.ImageFormat, desc driver.ImageDesc, host unsafe.Pointer) (driver.Handle, driver.Status) {
	f := uint64(flags)
	cf := &clImageFormat{order: uint32(format.Order), typ: uint32(format.Type)}
	cd := &clImageDesc{
		imageType: uint32(desc.Type),
		width:     uintptr(desc.Width),
		height:    uintptr(desc.Height),
		depth:     uintptr(desc.Depth),
		arraySize: uintptr(desc.ArraySize),
		rowPitch:  uintptr(desc.RowPitch),
	}
	var pinner runtime.Pinner
	pinner.Pin(cf)
	pinner.Pin(cd)
	defer pinner.Unpin()

	fp, dp := unsafe.Pointer(cf), unsafe.Pointer(cd)
	return d.lib.object(d.lib.createImage,
		unsafe.Pointer(&ctx), unsafe.Pointer(&f), unsafe.Pointer(&fp), unsafe.Pointer(&dp), unsafe.Pointer(&host))
}

// CreatePipe implements driver.Driver.
func (d *Driver) CreatePipe(ctx driver.Handle, flags driver.MemFlags, packetSize, maxPackets uint32) (driver.Handle, driver.Status) {
	var (
		f     = uint64(flags)
		props unsafe.Pointer
	)
	return d.lib.object(d.lib.createPipe,
		unsafe.Pointer(&ctx), unsafe.Pointer(&f), unsafe.Pointer(&packetSize),
		unsafe.Pointer(&maxPackets), unsafe.Pointer(&props))
}

// MemObjectInfo implements driver.Driver.
func (d *Driver) MemObjectInfo(h driver.Handle, param driver.MemInfo, dst []byte) (int, driver.Status) {
	return d.info(d.lib.getMemObjectInfo, h, uint32(param), dst)
}

// ReleaseMemObject implements driver.Driver.
func (d *Driver) ReleaseMemObject(h driver.Handle) driver.Status {
	return d.release(d.lib.releaseMemObject, h)
}

// CreateCommandQueue implements driver.Driver.
func (d *Driver) CreateCommandQueue(ctx, dev driver.Handle, props driver.QueueProperties) (driver.Handle, driver.Status) {
	p := uint64(props)
	return d.lib.object(d.lib.createCommandQueue, unsafe.Pointer(&ctx), unsafe.Pointer(&dev), unsafe.Pointer(&p))
}

// ReleaseCommandQueue implements driver.Driver.
func (d *Driver) ReleaseCommandQueue(h driver.Handle) driver.Status {
	return d.release(d.lib.releaseCommandQueue, h)
}

func (d *Driver) enqueueBuffer(p *proc, q, mem driver.Handle, blocking bool, offset uintptr, data []byte) driver.Status {
	var (
		block  uint32
		size   = uintptr(len(data))
		host   = ptr(data)
		events uint32
		wait   unsafe.Pointer
		event  unsafe.Pointer
		pinner runtime.Pinner
	)
	if blocking {
		block = 1
	}
	if host != nil {
		pinner.Pin(host)
	}
	defer pinner.Unpin()

	return d.lib.status(p,
		unsafe.Pointer(&q), unsafe.Pointer(&mem), unsafe.Pointer(&block), unsafe.Pointer(&offset),
		unsafe.Pointer(&size), unsafe.Pointer(&host), unsafe.Pointer(&events),
		unsafe.Pointer(&wait), unsafe.Pointer(&event))
}

// EnqueueWriteBuffer implements driver.Driver. Non-blocking writes must
// keep data untouched until the queue finishes.
func (d *Driver) EnqueueWriteBuffer(q, mem driver.Handle, blocking bool, offset uintptr, data []byte) driver.Status {
	return d.enqueueBuffer(d.lib.enqueueWriteBuffer, q, mem, blocking, offset, data)
}

// EnqueueReadBuffer implements driver.Driver.
func (d *Driver) EnqueueReadBuffer(q, mem driver.Handle, blocking bool, offset uintptr, dst []byte) driver.Status {
	return d.enqueueBuffer(d.lib.enqueueReadBuffer, q, mem, blocking, offset, dst)
}

// EnqueueNDRangeKernel implements driver.Driver.
func (d *Driver) EnqueueNDRangeKernel(q, k driver.Handle, offset, global, local []uintptr) driver.Status {
	var (
		dims   = uint32(len(global))
		off    = ptr(offset)
		glob   = ptr(global)
		loc    = ptr(local)
		events uint32
		wait   unsafe.Pointer
		event  unsafe.Pointer
		pinner runtime.Pinner
	)
	for _, p := range []unsafe.Pointer{off, glob, loc} {
		if p != nil {
			pinner.Pin(p)
		}
	}
	defer pinner.Unpin()

	return d.lib.status(d.lib.enqueueNDRangeKernel,
		unsafe.Pointer(&q), unsafe.Pointer(&k), unsafe.Pointer(&dims),
		unsafe.Pointer(&off), unsafe.Pointer(&glob), unsafe.Pointer(&loc),
		unsafe.Pointer(&events), unsafe.Pointer(&wait), unsafe.Pointer(&event))
}

// Flush implements driver.Driver.
func (d *Driver) Flush(q driver.Handle) driver.Status {
	return d.lib.status(d.lib.flush, unsafe.Pointer(&q))
}

// Finish implements driver.Driver.
func (d *Driver) Finish(q driver.Handle) driver.Status {
	return d.lib.status(d.lib.finish, unsafe.Pointer(&q))
}
