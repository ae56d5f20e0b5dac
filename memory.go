package opencl

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"github.com/gogpu/opencl/driver"
)

// MemoryObject is a device-visible allocation: a Buffer, Image or Pipe.
type MemoryObject interface {
	Resource
	// Size returns CL_MEM_SIZE in bytes.
	Size() (int, error)
	// Flags returns CL_MEM_FLAGS.
	Flags() (driver.MemFlags, error)
	// ID returns the caller-supplied identifier given at creation.
	ID() any
}

// memObject is embedded by every MemoryObject.
type memObject struct {
	resource
	ctx   *Context
	id    any
	size  lazy[uintptr]
	flags lazy[uint64]
}

// ID returns the identifier given at creation. It is never interpreted
// by the binding.
func (m *memObject) ID() any { return m.id }

// Context returns the context the object was created in.
func (m *memObject) Context() *Context { return m.ctx }

// Size returns CL_MEM_SIZE in bytes.
func (m *memObject) Size() (int, error) {
	v, err := m.size.get(func() (uintptr, error) {
		h, err := m.live("get mem object info")
		if err != nil {
			return 0, err
		}
		return querySize("get mem object size", func(dst []byte) (int, driver.Status) {
			return m.ctx.drv().MemObjectInfo(h, driver.MemSize, dst)
		})
	})
	return int(v), err
}

// Flags returns CL_MEM_FLAGS.
func (m *memObject) Flags() (driver.MemFlags, error) {
	v, err := m.flags.get(func() (uint64, error) {
		h, err := m.live("get mem object info")
		if err != nil {
			return 0, err
		}
		return queryUint64("get mem object flags", func(dst []byte) (int, driver.Status) {
			return m.ctx.drv().MemObjectInfo(h, driver.MemFlagsInfo, dst)
		})
	})
	return driver.MemFlags(v), err
}

// Buffer is a linear memory object.
type Buffer struct {
	memObject
}

// Pipe is a FIFO memory object of fixed-size packets.
type Pipe struct {
	memObject
	packetSize int
	maxPackets int
}

// PacketSize returns the size of one packet in bytes.
func (p *Pipe) PacketSize() int { return p.packetSize }

// MaxPackets returns the pipe capacity in packets.
func (p *Pipe) MaxPackets() int { return p.maxPackets }

// CreateBuffer allocates size bytes. id is an arbitrary value kept with
// the buffer for the caller's bookkeeping.
func (c *Context) CreateBuffer(flags driver.MemFlags, size int, id any) (*Buffer, error) {
	if size <= 0 {
		return nil, &Error{Op: "create buffer", Status: driver.InvalidBufferSize}
	}
	return c.createBuffer(flags, uintptr(size), nil, id)
}

// CreateBufferFrom allocates a buffer initialised with a copy of data.
// MemCopyHostPtr is added to flags. T must have a fixed binary layout as
// accepted by encoding/binary; element types holding pointers, strings,
// slices or maps fail with ErrNotFixedSize.
func CreateBufferFrom[T any](c *Context, flags driver.MemFlags, data []T, id any) (*Buffer, error) {
	if len(data) == 0 {
		return nil, &Error{Op: "create buffer", Status: driver.InvalidBufferSize}
	}
	if binary.Size(data[0]) <= 0 {
		return nil, fmt.Errorf("opencl: create buffer from []%T: %w", data[0], ErrNotFixedSize)
	}
	size := uintptr(len(data)) * unsafe.Sizeof(data[0])
	flags = flags&^driver.MemUseHostPtr | driver.MemCopyHostPtr
	return c.createBuffer(flags, size, unsafe.Pointer(unsafe.SliceData(data)), id)
}

func (c *Context) createBuffer(flags driver.MemFlags, size uintptr, host unsafe.Pointer, id any) (*Buffer, error) {
	h, err := c.live("create buffer")
	if err != nil {
		return nil, err
	}

	var pinner runtime.Pinner
	if host != nil {
		pinner.Pin(host)
	}
	mh, status := c.drv().CreateBuffer(h, flags, size, host)
	pinner.Unpin()
	if err := check(fmt.Sprintf("create buffer of %d bytes", size), status); err != nil {
		return nil, err
	}
	b := &Buffer{memObject{ctx: c, id: id}}
	b.init(b, KindBuffer, mh, c.drv().ReleaseMemObject, c.rt.opts.tracker)
	return b, nil
}

// CreatePipe allocates a pipe of maxPackets packets of packetSize bytes.
func (c *Context) CreatePipe(flags driver.MemFlags, packetSize, maxPackets int, id any) (*Pipe, error) {
	if packetSize <= 0 || maxPackets <= 0 ||
		uint64(packetSize) > math.MaxUint32 || uint64(maxPackets) > math.MaxUint32 {
		return nil, &Error{Op: "create pipe", Status: driver.InvalidPipeSize}
	}
	h, err := c.live("create pipe")
	if err != nil {
		return nil, err
	}
	mh, status := c.drv().CreatePipe(h, flags, uint32(packetSize), uint32(maxPackets))
	if err := check("create pipe", status); err != nil {
		return nil, err
	}
	p := &Pipe{memObject: memObject{ctx: c, id: id}, packetSize: packetSize, maxPackets: maxPackets}
	p.init(p, KindPipe, mh, c.drv().ReleaseMemObject, c.rt.opts.tracker)
	return p, nil
}
