package host

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"unsafe"

	"github.com/gogpu/opencl/driver"
	"github.com/gogpu/opencl/internal/cache"
	"github.com/gogpu/opencl/internal/parallel"
)

// Identification strings reported by the host platform and devices.
const (
	PlatformName  = "gogpu Host Emulator"
	Vendor        = "gogpu"
	Version       = "OpenCL 1.2 gogpu-host"
	Profile       = "FULL_PROFILE"
	DriverVersion = "1.0.0"
	CVersion      = "OpenCL C 1.2"
)

const (
	maxWorkGroupSize = 1024
	localMemSize     = 32 << 10
	clockFrequency   = 1000
)

func init() {
	driver.Register(driver.NameHost, func() (driver.Driver, error) {
		return New(), nil
	})
}

type objectKind int

const (
	kindPlatform objectKind = iota
	kindDevice
	kindContext
	kindProgram
	kindKernel
	kindMem
	kindQueue
)

// invalid is the status returned for a handle that does not name a live
// object of the expected kind.
var invalid = map[objectKind]driver.Status{
	kindPlatform: driver.InvalidPlatform,
	kindDevice:   driver.InvalidDevice,
	kindContext:  driver.InvalidContext,
	kindProgram:  driver.InvalidProgram,
	kindKernel:   driver.InvalidKernel,
	kindMem:      driver.InvalidMemObject,
	kindQueue:    driver.InvalidCommandQueue,
}

type entry struct {
	kind objectKind
	refs uint32
	obj  any
}

type device struct {
	index int
}

type clContext struct {
	devices []driver.Handle
}

// Driver is the pure-Go OpenCL driver.
type Driver struct {
	opts options

	mu        sync.Mutex
	next      driver.Handle
	objects   map[driver.Handle]*entry
	platform  driver.Handle
	devices   []driver.Handle
	allocated uint64

	compiled *cache.Cache[uint64, *unit]

	poolOnce sync.Once
	pool     *parallel.WorkerPool
}

var _ driver.Driver = (*Driver)(nil)

// New creates a host driver.
func New(opts ...Option) *Driver {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	d := &Driver{
		opts:     o,
		next:     0x1000,
		objects:  make(map[driver.Handle]*entry),
		compiled: cache.New[uint64, *unit](o.cacheSize),
	}
	d.platform = d.insert(kindPlatform, nil)
	for i := range o.devices {
		d.devices = append(d.devices, d.insert(kindDevice, &device{index: i}))
	}
	return d
}

// Name returns driver.NameHost.
func (d *Driver) Name() string { return driver.NameHost }

// Kernels returns the names of the registered kernel implementations.
func (d *Driver) Kernels() []string {
	names := make([]string, 0, len(d.opts.kernels))
	for name := range d.opts.kernels {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LiveObjects returns the number of contexts, programs, kernels, memory
// objects and queues that have not been fully released.
func (d *Driver) LiveObjects() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, e := range d.objects {
		if e.kind != kindPlatform && e.kind != kindDevice {
			n++
		}
	}
	return n
}

// CompileCacheStats reports compile cache effectiveness.
func (d *Driver) CompileCacheStats() cache.Stats {
	return d.compiled.Stats()
}

// Close stops the worker pool. Later launches run on the calling
// goroutine.
func (d *Driver) Close() {
	d.workers().Close()
}

func (d *Driver) workers() *parallel.WorkerPool {
	d.poolOnce.Do(func() {
		d.pool = parallel.NewWorkerPool(d.opts.workers)
	})
	return d.pool
}

// insert stores a new object with one reference.
func (d *Driver) insert(kind objectKind, obj any) driver.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.insertLocked(kind, obj)
}

func (d *Driver) insertLocked(kind objectKind, obj any) driver.Handle {
	h := d.next
	d.next += 0x10
	d.objects[h] = &entry{kind: kind, refs: 1, obj: obj}
	return h
}

// lookup returns the object behind h if it is a live object of kind.
func (d *Driver) lookup(h driver.Handle, kind objectKind) (any, driver.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookupLocked(h, kind)
}

func (d *Driver) lookupLocked(h driver.Handle, kind objectKind) (any, driver.Status) {
	e, ok := d.objects[h]
	if !ok || e.kind != kind {
		return nil, invalid[kind]
	}
	return e.obj, driver.Success
}

func (d *Driver) retainLocked(h driver.Handle) {
	if e, ok := d.objects[h]; ok {
		e.refs++
	}
}

// release drops one reference and destroys the object at zero, cascading
// to the objects it retains.
func (d *Driver) release(h driver.Handle, kind objectKind) driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.objects[h]
	if !ok || e.kind != kind {
		return invalid[kind]
	}
	d.releaseLocked(h)
	return driver.Success
}

func (d *Driver) releaseLocked(h driver.Handle) {
	e, ok := d.objects[h]
	if !ok {
		return
	}
	e.refs--
	if e.refs > 0 {
		return
	}
	delete(d.objects, h)

	switch obj := e.obj.(type) {
	case *program:
		d.releaseLocked(obj.context)
	case *kernel:
		d.releaseLocked(obj.program)
	case *memObject:
		d.allocated -= uint64(len(obj.data))
		if obj.owned {
			obj.data = nil
		}
		d.releaseLocked(obj.context)
	case *queue:
		d.releaseLocked(obj.context)
	}
	slogger().Debug("host: object destroyed", "handle", fmt.Sprintf("%#x", uintptr(h)))
}

func (d *Driver) refCount(h driver.Handle) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.objects[h]; ok {
		return e.refs
	}
	return 0
}

// Info value encoders. Each returns the encoded bytes of a cl_* value.

func infoString(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

func infoUint32(v uint32) []byte {
	return binary.NativeEndian.AppendUint32(nil, v)
}

func infoUint64(v uint64) []byte {
	return binary.NativeEndian.AppendUint64(nil, v)
}

func infoInt32(v int32) []byte {
	return infoUint32(uint32(v))
}

func infoBool(v bool) []byte {
	if v {
		return infoUint32(1)
	}
	return infoUint32(0)
}

func infoSize(v uintptr) []byte {
	if unsafe.Sizeof(v) == 8 {
		return infoUint64(uint64(v))
	}
	return infoUint32(uint32(v))
}

func infoHandles(hs []driver.Handle) []byte {
	b := make([]byte, 0, len(hs)*int(unsafe.Sizeof(uintptr(0))))
	for _, h := range hs {
		b = append(b, infoSize(uintptr(h))...)
	}
	return b
}

// reply implements the size-probe protocol for info queries.
func reply(dst []byte, value []byte) (int, driver.Status) {
	if dst == nil {
		return len(value), driver.Success
	}
	if len(dst) < len(value) {
		return len(value), driver.InvalidValue
	}
	copy(dst, value)
	return len(value), driver.Success
}

// fillHandles implements the enumeration protocol.
func fillHandles(dst, all []driver.Handle) (int, driver.Status) {
	copy(dst, all)
	return len(all), driver.Success
}

// Platforms implements driver.Driver.
func (d *Driver) Platforms(dst []driver.Handle) (int, driver.Status) {
	return fillHandles(dst, []driver.Handle{d.platform})
}

// PlatformInfo implements driver.Driver.
func (d *Driver) PlatformInfo(platform driver.Handle, param driver.PlatformInfo, dst []byte) (int, driver.Status) {
	if platform != d.platform {
		return 0, driver.InvalidPlatform
	}
	switch param {
	case driver.PlatformProfile:
		return reply(dst, infoString(Profile))
	case driver.PlatformVersion:
		return reply(dst, infoString(Version))
	case driver.PlatformName:
		return reply(dst, infoString(PlatformName))
	case driver.PlatformVendor:
		return reply(dst, infoString(Vendor))
	case driver.PlatformExtensions:
		return reply(dst, infoString(""))
	default:
		return 0, driver.InvalidValue
	}
}

// Devices implements driver.Driver. All host devices are CPUs.
func (d *Driver) Devices(platform driver.Handle, typ driver.DeviceType, dst []driver.Handle) (int, driver.Status) {
	if platform != d.platform {
		return 0, driver.InvalidPlatform
	}
	if typ == 0 {
		return 0, driver.InvalidDeviceType
	}
	if typ != driver.DeviceTypeAll && typ&(driver.DeviceTypeCPU|driver.DeviceTypeDefault) == 0 {
		return 0, driver.DeviceNotFound
	}
	return fillHandles(dst, d.devices)
}

// DeviceInfo implements driver.Driver.
func (d *Driver) DeviceInfo(dev driver.Handle, param driver.DeviceInfo, dst []byte) (int, driver.Status) {
	obj, status := d.lookup(dev, kindDevice)
	if !status.OK() {
		return 0, status
	}
	idx := obj.(*device).index

	switch param {
	case driver.DeviceTypeInfo:
		return reply(dst, infoUint64(uint64(driver.DeviceTypeCPU)))
	case driver.DeviceVendorID:
		return reply(dst, infoUint32(0))
	case driver.DeviceMaxComputeUnits:
		return reply(dst, infoUint32(uint32(d.computeUnits())))
	case driver.DeviceMaxWorkItemDims:
		return reply(dst, infoUint32(3))
	case driver.DeviceMaxWorkGroupSize:
		return reply(dst, infoSize(maxWorkGroupSize))
	case driver.DeviceMaxWorkItemSizes:
		return reply(dst, slices.Concat(infoSize(maxWorkGroupSize), infoSize(maxWorkGroupSize), infoSize(maxWorkGroupSize)))
	case driver.DeviceMaxClockFrequency:
		return reply(dst, infoUint32(clockFrequency))
	case driver.DeviceAddressBits:
		return reply(dst, infoUint32(uint32(unsafe.Sizeof(uintptr(0))*8)))
	case driver.DeviceMaxMemAllocSize:
		return reply(dst, infoUint64(d.opts.globalMem))
	case driver.DeviceGlobalMemSize:
		return reply(dst, infoUint64(d.opts.globalMem))
	case driver.DeviceLocalMemSize:
		return reply(dst, infoUint64(localMemSize))
	case driver.DeviceAvailable, driver.DeviceCompilerAvailable:
		return reply(dst, infoBool(true))
	case driver.DeviceName:
		return reply(dst, infoString(fmt.Sprintf("gogpu host device %d", idx)))
	case driver.DeviceVendor:
		return reply(dst, infoString(Vendor))
	case driver.DeviceDriverVersion:
		return reply(dst, infoString(DriverVersion))
	case driver.DeviceProfile:
		return reply(dst, infoString(Profile))
	case driver.DeviceVersion:
		return reply(dst, infoString(Version))
	case driver.DeviceExtensions:
		return reply(dst, infoString(""))
	case driver.DevicePlatform:
		return reply(dst, infoHandles([]driver.Handle{d.platform}))
	case driver.DeviceOpenCLCVersion:
		return reply(dst, infoString(CVersion))
	case driver.DeviceBuiltInKernels:
		return reply(dst, infoString(strings.Join(d.Kernels(), ";")))
	default:
		return 0, driver.InvalidValue
	}
}

func (d *Driver) computeUnits() int {
	if d.opts.workers > 0 {
		return d.opts.workers
	}
	return runtime.GOMAXPROCS(0)
}

// ReleaseDevice implements driver.Driver. Root devices are never
// destroyed, as in OpenCL 1.2.
func (d *Driver) ReleaseDevice(dev driver.Handle) driver.Status {
	_, status := d.lookup(dev, kindDevice)
	return status
}

// CreateContext implements driver.Driver.
func (d *Driver) CreateContext(devices []driver.Handle) (driver.Handle, driver.Status) {
	if len(devices) == 0 {
		return 0, driver.InvalidValue
	}
	for _, dev := range devices {
		if _, status := d.lookup(dev, kindDevice); !status.OK() {
			return 0, status
		}
	}
	return d.insert(kindContext, &clContext{devices: slices.Clone(devices)}), driver.Success
}

// ReleaseContext implements driver.Driver.
func (d *Driver) ReleaseContext(ctx driver.Handle) driver.Status {
	return d.release(ctx, kindContext)
}

func (d *Driver) context(h driver.Handle) (*clContext, driver.Status) {
	obj, status := d.lookup(h, kindContext)
	if !status.OK() {
		return nil, status
	}
	return obj.(*clContext), driver.Success
}
