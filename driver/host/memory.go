package host

import (
	"math/bits"
	"sync"
	"unsafe"

	"github.com/gogpu/opencl/driver"
)

type memObject struct {
	context driver.Handle
	typ     driver.MemObjectType
	flags   driver.MemFlags
	host    unsafe.Pointer

	// mu guards data against concurrent transfers; kernels access data
	// without it, as device code does.
	mu    sync.RWMutex
	data  []byte
	owned bool

	format driver.ImageFormat
	desc   driver.ImageDesc
}

const (
	accessFlags     = driver.MemReadWrite | driver.MemWriteOnly | driver.MemReadOnly
	hostPtrFlags    = driver.MemUseHostPtr | driver.MemAllocHostPtr | driver.MemCopyHostPtr
	hostAccessFlags = driver.MemHostWriteOnly | driver.MemHostReadOnly | driver.MemHostNoAccess
	knownFlags      = accessFlags | hostPtrFlags | hostAccessFlags
)

// checkFlags validates a cl_mem_flags value against a host pointer.
func checkFlags(flags driver.MemFlags, host unsafe.Pointer) driver.Status {
	if flags&^knownFlags != 0 {
		return driver.InvalidValue
	}
	if n := bits.OnesCount64(uint64(flags & accessFlags)); n > 1 {
		return driver.InvalidValue
	}
	if flags.Has(driver.MemUseHostPtr) && flags&(driver.MemAllocHostPtr|driver.MemCopyHostPtr) != 0 {
		return driver.InvalidValue
	}
	wantsHost := flags&(driver.MemUseHostPtr|driver.MemCopyHostPtr) != 0
	if wantsHost != (host != nil) {
		return driver.InvalidHostPtr
	}
	return driver.Success
}

// allocate registers a new memory object, enforcing the global memory
// limit.
func (d *Driver) allocate(ctx driver.Handle, m *memObject) (driver.Handle, driver.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, status := d.lookupLocked(ctx, kindContext); !status.OK() {
		return 0, status
	}
	size := uint64(len(m.data))
	if d.allocated+size > d.opts.globalMem {
		return 0, driver.MemObjectAllocationFailure
	}
	d.allocated += size
	m.context = ctx
	d.retainLocked(ctx)
	return d.insertLocked(kindMem, m), driver.Success
}

// backing returns storage for size bytes honouring the host pointer flags.
func backing(flags driver.MemFlags, size uintptr, host unsafe.Pointer) ([]byte, bool) {
	if flags.Has(driver.MemUseHostPtr) {
		return unsafe.Slice((*byte)(host), size), false
	}
	data := make([]byte, size)
	if flags.Has(driver.MemCopyHostPtr) {
		copy(data, unsafe.Slice((*byte)(host), size))
	}
	return data, true
}

// CreateBuffer implements driver.Driver.
func (d *Driver) CreateBuffer(ctx driver.Handle, flags driver.MemFlags, size uintptr, host unsafe.Pointer) (driver.Handle, driver.Status) {
	if size == 0 || uint64(size) > d.opts.globalMem {
		return 0, driver.InvalidBufferSize
	}
	if status := checkFlags(flags, host); !status.OK() {
		return 0, status
	}
	data, owned := backing(flags, size, host)
	m := &memObject{typ: driver.MemObjectBuffer, flags: flags, data: data, owned: owned}
	if flags.Has(driver.MemUseHostPtr) {
		m.host = host
	}
	return d.allocate(ctx, m)
}

// CreateImage implements driver.Driver. Images are stored tightly packed.
func (d *Driver) CreateImage(ctx driver.Handle, flags driver.MemFlags, format driver.ImageFormat, desc driver.ImageDesc, host unsafe.Pointer) (driver.Handle, driver.Status) {
	pixel := format.PixelSize()
	if pixel == 0 {
		return 0, driver.ImageFormatNotSupported
	}
	if status := checkFlags(flags, host); !status.OK() {
		return 0, status
	}
	if flags.Has(driver.MemUseHostPtr) {
		return 0, driver.InvalidValue
	}

	width, height, depth := desc.Width, max(desc.Height, 1), max(desc.Depth, 1)
	switch desc.Type {
	case driver.MemObjectImage1D:
		height, depth = 1, 1
	case driver.MemObjectImage2D:
		depth = 1
		if desc.Height <= 0 {
			return 0, driver.InvalidImageSize
		}
	case driver.MemObjectImage3D:
		if desc.Height <= 0 || desc.Depth <= 0 {
			return 0, driver.InvalidImageSize
		}
	default:
		return 0, driver.InvalidImageDescriptor
	}
	if width <= 0 {
		return 0, driver.InvalidImageSize
	}

	row := width * pixel
	pitch := desc.RowPitch
	switch {
	case host == nil && pitch != 0:
		return 0, driver.InvalidImageDescriptor
	case pitch == 0:
		pitch = row
	case pitch < row:
		return 0, driver.InvalidImageDescriptor
	}

	data := make([]byte, row*height*depth)
	if host != nil {
		src := unsafe.Slice((*byte)(host), pitch*height*depth)
		for y := range height * depth {
			copy(data[y*row:(y+1)*row], src[y*pitch:y*pitch+row])
		}
	}

	m := &memObject{
		typ:    desc.Type,
		flags:  flags,
		data:   data,
		owned:  true,
		format: format,
		desc:   desc,
	}
	return d.allocate(ctx, m)
}

// CreatePipe implements driver.Driver.
func (d *Driver) CreatePipe(ctx driver.Handle, flags driver.MemFlags, packetSize, maxPackets uint32) (driver.Handle, driver.Status) {
	if flags&^(driver.MemReadWrite|driver.MemHostNoAccess) != 0 {
		return 0, driver.InvalidValue
	}
	if packetSize == 0 || maxPackets == 0 {
		return 0, driver.InvalidPipeSize
	}
	size := uint64(packetSize) * uint64(maxPackets)
	if size > d.opts.globalMem {
		return 0, driver.InvalidPipeSize
	}
	m := &memObject{
		typ:   driver.MemObjectPipe,
		flags: flags | driver.MemReadWrite | driver.MemHostNoAccess,
		data:  make([]byte, size),
		owned: true,
	}
	return d.allocate(ctx, m)
}

func (d *Driver) mem(h driver.Handle) (*memObject, driver.Status) {
	obj, status := d.lookup(h, kindMem)
	if !status.OK() {
		return nil, status
	}
	return obj.(*memObject), driver.Success
}

// MemObjectInfo implements driver.Driver.
func (d *Driver) MemObjectInfo(h driver.Handle, param driver.MemInfo, dst []byte) (int, driver.Status) {
	m, status := d.mem(h)
	if !status.OK() {
		return 0, status
	}
	switch param {
	case driver.MemType:
		return reply(dst, infoUint32(uint32(m.typ)))
	case driver.MemFlagsInfo:
		return reply(dst, infoUint64(uint64(m.flags)))
	case driver.MemSize:
		return reply(dst, infoSize(uintptr(len(m.data))))
	case driver.MemHostPtr:
		return reply(dst, infoSize(uintptr(m.host)))
	case driver.MemMapCount:
		return reply(dst, infoUint32(0))
	case driver.MemReferenceCount:
		return reply(dst, infoUint32(d.refCount(h)))
	case driver.MemContext:
		return reply(dst, infoHandles([]driver.Handle{m.context}))
	default:
		return 0, driver.InvalidValue
	}
}

// ReleaseMemObject implements driver.Driver.
func (d *Driver) ReleaseMemObject(h driver.Handle) driver.Status {
	return d.release(h, kindMem)
}
