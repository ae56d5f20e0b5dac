package host

import (
	"sync"
	"unsafe"

	"github.com/gogpu/opencl/driver"
)

// argValue is a bound kernel argument.
type argValue struct {
	set   bool
	mem   driver.Handle
	local int
	bytes []byte
}

type kernel struct {
	program driver.Handle
	context driver.Handle
	def     *KernelDef
	fn      KernelFunc

	mu   sync.Mutex
	args []argValue
}

const handleSize = unsafe.Sizeof(driver.Handle(0))

// CreateKernel implements driver.Driver.
func (d *Driver) CreateKernel(h driver.Handle, name string) (driver.Handle, driver.Status) {
	p, status := d.program(h)
	if !status.OK() {
		return 0, status
	}

	p.mu.Lock()
	built := p.built
	p.mu.Unlock()
	if built == nil {
		return 0, driver.InvalidProgramExecutable
	}
	def, ok := built.kernels[name]
	if !ok {
		return 0, driver.InvalidKernelName
	}

	k := &kernel{
		program: h,
		context: p.context,
		def:     def,
		fn:      d.opts.kernels[name],
		args:    make([]argValue, len(def.Params)),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, status := d.lookupLocked(h, kindProgram); !status.OK() {
		return 0, status
	}
	d.retainLocked(h)
	return d.insertLocked(kindKernel, k), driver.Success
}

func (d *Driver) kernel(h driver.Handle) (*kernel, driver.Status) {
	obj, status := d.lookup(h, kindKernel)
	if !status.OK() {
		return nil, status
	}
	return obj.(*kernel), driver.Success
}

// KernelInfo implements driver.Driver.
func (d *Driver) KernelInfo(h driver.Handle, param driver.KernelInfo, dst []byte) (int, driver.Status) {
	k, status := d.kernel(h)
	if !status.OK() {
		return 0, status
	}
	switch param {
	case driver.KernelFunctionName:
		return reply(dst, infoString(k.def.Name))
	case driver.KernelNumArgs:
		return reply(dst, infoUint32(uint32(len(k.def.Params))))
	case driver.KernelReferenceCount:
		return reply(dst, infoUint32(d.refCount(h)))
	case driver.KernelContext:
		return reply(dst, infoHandles([]driver.Handle{k.context}))
	case driver.KernelProgram:
		return reply(dst, infoHandles([]driver.Handle{k.program}))
	case driver.KernelAttributes:
		return reply(dst, infoString(""))
	default:
		return 0, driver.InvalidValue
	}
}

// SetKernelArg implements driver.Driver. The argument is checked against
// the parameter declared in source: memory parameters take a cl_mem
// handle, __local parameters take a size and no value, and by-value
// parameters must match the declared type size exactly.
func (d *Driver) SetKernelArg(h driver.Handle, index uint32, size uintptr, value unsafe.Pointer) driver.Status {
	k, status := d.kernel(h)
	if !status.OK() {
		return status
	}
	if int(index) >= len(k.def.Params) {
		return driver.InvalidArgIndex
	}
	param := k.def.Params[index]

	var arg argValue
	switch {
	case param.Kind.IsMemory():
		if size != handleSize {
			return driver.InvalidArgSize
		}
		if value == nil {
			return driver.InvalidArgValue
		}
		mem := *(*driver.Handle)(value)
		// A NULL cl_mem is a valid argument for a global pointer.
		if mem != 0 {
			if _, status := d.lookup(mem, kindMem); !status.OK() {
				return driver.InvalidMemObject
			}
		}
		arg = argValue{set: true, mem: mem}
	case param.Kind == ParamLocal:
		if value != nil {
			return driver.InvalidArgValue
		}
		if size == 0 {
			return driver.InvalidArgSize
		}
		arg = argValue{set: true, local: int(size)}
	default:
		if uintptr(param.Size) != size {
			return driver.InvalidArgSize
		}
		if value == nil {
			return driver.InvalidArgValue
		}
		b := make([]byte, size)
		copy(b, unsafe.Slice((*byte)(value), size))
		arg = argValue{set: true, bytes: b}
	}

	k.mu.Lock()
	k.args[index] = arg
	k.mu.Unlock()
	return driver.Success
}

// ReleaseKernel implements driver.Driver.
func (d *Driver) ReleaseKernel(h driver.Handle) driver.Status {
	return d.release(h, kindKernel)
}
