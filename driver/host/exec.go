package host

import (
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"unsafe"

	"github.com/gogpu/opencl/driver"
	"github.com/gogpu/opencl/internal/parallel"
)

// KernelFunc is the Go implementation of an OpenCL kernel. It is called
// once per work-item, concurrently across work-groups.
type KernelFunc func(item WorkItem, args Args)

// WorkItem identifies one invocation within an NDRange.
type WorkItem struct {
	Dims       int
	GlobalID   [3]int
	GlobalSize [3]int
	LocalID    [3]int
	LocalSize  [3]int
	GroupID    [3]int
	Offset     [3]int
}

// Arg is a bound kernel argument as seen by a KernelFunc.
type Arg struct {
	Param Param
	// Data is the buffer contents for memory parameters, the work-group
	// scratch area for __local parameters, or the encoded value for
	// by-value parameters. Data is nil for a NULL buffer argument.
	Data []byte
}

// Args are the arguments of a kernel launch, indexed like the parameters.
type Args []Arg

// Bytes returns the raw bytes of argument i.
func (a Args) Bytes(i int) []byte { return a[i].Data }

// Uint8 decodes a uchar argument.
func (a Args) Uint8(i int) uint8 { return a[i].Data[0] }

// Int32 decodes an int argument.
func (a Args) Int32(i int) int32 { return int32(binary.NativeEndian.Uint32(a[i].Data)) }

// Uint32 decodes a uint argument.
func (a Args) Uint32(i int) uint32 { return binary.NativeEndian.Uint32(a[i].Data) }

// Int64 decodes a long argument.
func (a Args) Int64(i int) int64 { return int64(binary.NativeEndian.Uint64(a[i].Data)) }

// Uint64 decodes a ulong argument.
func (a Args) Uint64(i int) uint64 { return binary.NativeEndian.Uint64(a[i].Data) }

// Float32 decodes a float argument.
func (a Args) Float32(i int) float32 { return math.Float32frombits(a.Uint32(i)) }

// Float64 decodes a double argument.
func (a Args) Float64(i int) float64 { return math.Float64frombits(a.Uint64(i)) }

// Float32s views a memory argument as []float32.
func (a Args) Float32s(i int) []float32 { return view[float32](a[i].Data) }

// Int32s views a memory argument as []int32.
func (a Args) Int32s(i int) []int32 { return view[int32](a[i].Data) }

// Uint32s views a memory argument as []uint32.
func (a Args) Uint32s(i int) []uint32 { return view[uint32](a[i].Data) }

func view[T any](b []byte) []T {
	var zero T
	n := len(b) / int(unsafe.Sizeof(zero))
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

type queue struct {
	context driver.Handle
	device  driver.Handle
	props   driver.QueueProperties
}

// CreateCommandQueue implements driver.Driver. Commands execute when they
// are enqueued, so every queue behaves as in-order.
func (d *Driver) CreateCommandQueue(ctx, dev driver.Handle, props driver.QueueProperties) (driver.Handle, driver.Status) {
	if props&^(driver.QueueOutOfOrderExec|driver.QueueProfiling) != 0 {
		return 0, driver.InvalidValue
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	obj, status := d.lookupLocked(ctx, kindContext)
	if !status.OK() {
		return 0, status
	}
	if !slices.Contains(obj.(*clContext).devices, dev) {
		return 0, driver.InvalidDevice
	}
	d.retainLocked(ctx)
	return d.insertLocked(kindQueue, &queue{context: ctx, device: dev, props: props}), driver.Success
}

// ReleaseCommandQueue implements driver.Driver.
func (d *Driver) ReleaseCommandQueue(h driver.Handle) driver.Status {
	return d.release(h, kindQueue)
}

func (d *Driver) queue(h driver.Handle) (*queue, driver.Status) {
	obj, status := d.lookup(h, kindQueue)
	if !status.OK() {
		return nil, status
	}
	return obj.(*queue), driver.Success
}

// transferTarget validates a buffer transfer and returns the memory object.
func (d *Driver) transferTarget(q, h driver.Handle, offset uintptr, n int) (*memObject, driver.Status) {
	qu, status := d.queue(q)
	if !status.OK() {
		return nil, status
	}
	m, status := d.mem(h)
	if !status.OK() {
		return nil, status
	}
	if m.context != qu.context {
		return nil, driver.InvalidContext
	}
	if m.typ != driver.MemObjectBuffer {
		return nil, driver.InvalidMemObject
	}
	if n == 0 || offset > uintptr(len(m.data)) || uintptr(len(m.data))-offset < uintptr(n) {
		return nil, driver.InvalidValue
	}
	return m, driver.Success
}

// EnqueueWriteBuffer implements driver.Driver. Transfers complete before
// returning regardless of blocking.
func (d *Driver) EnqueueWriteBuffer(q, h driver.Handle, _ bool, offset uintptr, data []byte) driver.Status {
	m, status := d.transferTarget(q, h, offset, len(data))
	if !status.OK() {
		return status
	}
	if m.flags.Has(driver.MemHostReadOnly) || m.flags.Has(driver.MemHostNoAccess) {
		return driver.InvalidOperation
	}
	m.mu.Lock()
	copy(m.data[offset:], data)
	m.mu.Unlock()
	return driver.Success
}

// EnqueueReadBuffer implements driver.Driver.
func (d *Driver) EnqueueReadBuffer(q, h driver.Handle, _ bool, offset uintptr, dst []byte) driver.Status {
	m, status := d.transferTarget(q, h, offset, len(dst))
	if !status.OK() {
		return status
	}
	if m.flags.Has(driver.MemHostWriteOnly) || m.flags.Has(driver.MemHostNoAccess) {
		return driver.InvalidOperation
	}
	m.mu.RLock()
	copy(dst, m.data[offset:])
	m.mu.RUnlock()
	return driver.Success
}

// Flush implements driver.Driver.
func (d *Driver) Flush(q driver.Handle) driver.Status {
	_, status := d.queue(q)
	return status
}

// Finish implements driver.Driver.
func (d *Driver) Finish(q driver.Handle) driver.Status {
	_, status := d.queue(q)
	return status
}

// launch is a validated NDRange.
type launch struct {
	dims   int
	offset [3]int
	global [3]int
	local  [3]int
	groups [3]int
}

func (l *launch) groupCount() int {
	return l.groups[0] * l.groups[1] * l.groups[2]
}

// defaultLocalSize picks the largest divisor of n not above limit.
func defaultLocalSize(n, limit int) int {
	for l := min(n, limit); l > 1; l-- {
		if n%l == 0 {
			return l
		}
	}
	return 1
}

func newLaunch(offset, global, local []uintptr) (*launch, driver.Status) {
	dims := len(global)
	if dims < 1 || dims > 3 {
		return nil, driver.InvalidWorkDimension
	}
	if offset != nil && len(offset) != dims {
		return nil, driver.InvalidGlobalOffset
	}
	if local != nil && len(local) != dims {
		return nil, driver.InvalidWorkGroupSize
	}

	l := &launch{dims: dims, global: [3]int{1, 1, 1}, local: [3]int{1, 1, 1}}
	for i := range dims {
		if global[i] == 0 {
			return nil, driver.InvalidGlobalWorkSize
		}
		l.global[i] = int(global[i])
		if offset != nil {
			l.offset[i] = int(offset[i])
		}
	}

	if local == nil {
		l.local[0] = defaultLocalSize(l.global[0], 64)
	} else {
		groupSize := 1
		for i := range dims {
			if local[i] == 0 || local[i] > maxWorkGroupSize {
				return nil, driver.InvalidWorkItemSize
			}
			if global[i]%local[i] != 0 {
				return nil, driver.InvalidWorkGroupSize
			}
			l.local[i] = int(local[i])
			groupSize *= l.local[i]
		}
		if groupSize > maxWorkGroupSize {
			return nil, driver.InvalidWorkGroupSize
		}
	}

	for i := range 3 {
		l.groups[i] = l.global[i] / l.local[i]
	}
	return l, driver.Success
}

// EnqueueNDRangeKernel implements driver.Driver. The launch runs to
// completion before the call returns.
func (d *Driver) EnqueueNDRangeKernel(q, h driver.Handle, offset, global, local []uintptr) driver.Status {
	qu, status := d.queue(q)
	if !status.OK() {
		return status
	}
	k, status := d.kernel(h)
	if !status.OK() {
		return status
	}
	if k.context != qu.context {
		return driver.InvalidContext
	}
	l, status := newLaunch(offset, global, local)
	if !status.OK() {
		return status
	}

	k.mu.Lock()
	bound := slices.Clone(k.args)
	k.mu.Unlock()

	base := make(Args, len(bound))
	var locals []int
	for i, a := range bound {
		if !a.set {
			return driver.InvalidKernelArgs
		}
		base[i].Param = k.def.Params[i]
		switch {
		case a.local > 0:
			locals = append(locals, i)
		case a.mem != 0:
			m, status := d.mem(a.mem)
			if !status.OK() {
				return driver.InvalidKernelArgs
			}
			base[i].Data = m.data
		default:
			base[i].Data = a.bytes
		}
	}

	run := func(group int) {
		args := base
		if len(locals) > 0 {
			args = slices.Clone(base)
			for _, i := range locals {
				args[i].Data = make([]byte, bound[i].local)
			}
		}
		runGroup(k.fn, l, group, args)
	}

	err := d.workers().Run(l.groupCount(), run)

	var perr *parallel.PanicError
	if errors.As(err, &perr) {
		slogger().Warn("host: kernel panicked",
			"kernel", k.def.Name, "group", perr.Group, "panic", perr.Value)
		return driver.OutOfResources
	}
	return driver.Success
}

// runGroup executes every work-item of one work-group in order.
func runGroup(fn KernelFunc, l *launch, group int, args Args) {
	gid := [3]int{
		group % l.groups[0],
		group / l.groups[0] % l.groups[1],
		group / (l.groups[0] * l.groups[1]),
	}

	item := WorkItem{
		Dims:       l.dims,
		GlobalSize: l.global,
		LocalSize:  l.local,
		GroupID:    gid,
		Offset:     l.offset,
	}
	for z := range l.local[2] {
		for y := range l.local[1] {
			for x := range l.local[0] {
				item.LocalID = [3]int{x, y, z}
				for i := range 3 {
					item.GlobalID[i] = l.offset[i] + gid[i]*l.local[i] + item.LocalID[i]
				}
				fn(item, args)
			}
		}
	}
}
