package opencl

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/gogpu/opencl/driver"
)

// Kernel is an entry point of a built program with indexed arguments.
type Kernel struct {
	resource
	program *Program

	name    lazy[string]
	numArgs lazy[uint32]
}

// Scalar is the set of types SetArgScalar accepts.
type Scalar interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Program returns the program the kernel was created from.
func (k *Kernel) Program() *Program { return k.program }

func (k *Kernel) drv() driver.Driver { return k.program.ctx.drv() }

// FunctionName returns CL_KERNEL_FUNCTION_NAME.
func (k *Kernel) FunctionName() (string, error) {
	return k.name.get(func() (string, error) {
		h, err := k.live("get kernel info")
		if err != nil {
			return "", err
		}
		return queryString("get kernel function name", func(dst []byte) (int, driver.Status) {
			return k.drv().KernelInfo(h, driver.KernelFunctionName, dst)
		})
	})
}

// NumArgs returns CL_KERNEL_NUM_ARGS.
func (k *Kernel) NumArgs() (int, error) {
	n, err := k.numArgs.get(func() (uint32, error) {
		h, err := k.live("get kernel info")
		if err != nil {
			return 0, err
		}
		return queryUint32("get kernel num args", func(dst []byte) (int, driver.Status) {
			return k.drv().KernelInfo(h, driver.KernelNumArgs, dst)
		})
	})
	return int(n), err
}

// SetArg binds a memory object to argument index. A nil mem binds a NULL
// buffer.
func (k *Kernel) SetArg(index int, mem MemoryObject) error {
	if index < 0 {
		return &ArgumentIndexError{Index: index}
	}
	var mh driver.Handle
	if mem != nil {
		if mem.Released() {
			return fmt.Errorf("opencl: set kernel arg %d: %w", index, ErrReleased)
		}
		mh = mem.Handle()
	}
	return k.setArg(index, unsafe.Sizeof(mh), unsafe.Pointer(&mh))
}

// SetArgValue binds a value with a fixed binary layout to argument index.
//
// value must be a fixed-size number, bool, array, or struct of those, as
// accepted by encoding/binary; anything else fails with ErrNotFixedSize.
// The value is encoded in host byte order with no padding, so structs
// must be laid out to match the kernel's declaration.
func (k *Kernel) SetArgValue(index int, value any) error {
	if index < 0 {
		return &ArgumentIndexError{Index: index}
	}
	n := binary.Size(value)
	if n <= 0 {
		return fmt.Errorf("opencl: set kernel arg %d (%T): %w", index, value, ErrNotFixedSize)
	}
	raw, err := binary.Append(make([]byte, 0, n), binary.NativeEndian, value)
	if err != nil {
		return fmt.Errorf("opencl: set kernel arg %d: %w", index, err)
	}
	return k.setArg(index, uintptr(len(raw)), unsafe.Pointer(&raw[0]))
}

// SetArgBytes binds raw bytes to argument index.
func (k *Kernel) SetArgBytes(index int, raw []byte) error {
	if index < 0 {
		return &ArgumentIndexError{Index: index}
	}
	if len(raw) == 0 {
		return k.setArg(index, 0, nil)
	}
	return k.setArg(index, uintptr(len(raw)), unsafe.Pointer(&raw[0]))
}

// SetArgLocal reserves size bytes of __local memory for argument index.
func (k *Kernel) SetArgLocal(index, size int) error {
	if index < 0 {
		return &ArgumentIndexError{Index: index}
	}
	if size < 0 {
		return fmt.Errorf("opencl: set kernel arg %d: negative local size %d", index, size)
	}
	return k.setArg(index, uintptr(size), nil)
}

// SetArgScalar binds v to argument index of k.
func SetArgScalar[T Scalar](k *Kernel, index int, v T) error {
	if index < 0 {
		return &ArgumentIndexError{Index: index}
	}
	return k.setArg(index, unsafe.Sizeof(v), unsafe.Pointer(&v))
}

// setArg pins value for the duration of the native call.
func (k *Kernel) setArg(index int, size uintptr, value unsafe.Pointer) error {
	op := fmt.Sprintf("set kernel arg %d", index)
	h, err := k.live(op)
	if err != nil {
		return err
	}

	var pinner runtime.Pinner
	if value != nil {
		pinner.Pin(value)
	}
	defer pinner.Unpin()

	return check(op, k.drv().SetKernelArg(h, uint32(index), size, value))
}
