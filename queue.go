package opencl

import (
	"fmt"

	"github.com/gogpu/opencl/driver"
)

// CommandQueue submits transfers and kernel launches to one device.
type CommandQueue struct {
	resource
	ctx    *Context
	device *Device
}

// CreateCommandQueue creates a queue on device, which must belong to c.
func (c *Context) CreateCommandQueue(device *Device, props driver.QueueProperties) (*CommandQueue, error) {
	h, err := c.live("create command queue")
	if err != nil {
		return nil, err
	}
	dh, err := device.live("create command queue")
	if err != nil {
		return nil, err
	}
	qh, status := c.drv().CreateCommandQueue(h, dh, props)
	if err := check("create command queue", status); err != nil {
		return nil, err
	}
	q := &CommandQueue{ctx: c, device: device}
	q.init(q, KindQueue, qh, c.drv().ReleaseCommandQueue, c.rt.opts.tracker)
	return q, nil
}

// Device returns the device the queue submits to.
func (q *CommandQueue) Device() *Device { return q.device }

func (q *CommandQueue) handles(op string, r Resource) (driver.Handle, driver.Handle, error) {
	qh, err := q.live(op)
	if err != nil {
		return 0, 0, err
	}
	if r == nil || r.Released() {
		return 0, 0, fmt.Errorf("opencl: %s: %w", op, ErrReleased)
	}
	return qh, r.Handle(), nil
}

// WriteBuffer copies data into buf at offset and waits for completion.
func (q *CommandQueue) WriteBuffer(buf *Buffer, offset int, data []byte) error {
	qh, bh, err := q.handles("enqueue write buffer", buf)
	if err != nil {
		return err
	}
	if offset < 0 {
		return &Error{Op: "enqueue write buffer", Status: driver.InvalidValue}
	}
	return check("enqueue write buffer", q.ctx.drv().EnqueueWriteBuffer(qh, bh, true, uintptr(offset), data))
}

// ReadBuffer copies len(dst) bytes from buf at offset and waits for
// completion.
func (q *CommandQueue) ReadBuffer(buf *Buffer, offset int, dst []byte) error {
	qh, bh, err := q.handles("enqueue read buffer", buf)
	if err != nil {
		return err
	}
	if offset < 0 {
		return &Error{Op: "enqueue read buffer", Status: driver.InvalidValue}
	}
	return check("enqueue read buffer", q.ctx.drv().EnqueueReadBuffer(qh, bh, true, uintptr(offset), dst))
}

// EnqueueKernel launches k over global work-items. local may be nil to
// let the implementation choose the work-group size.
func (q *CommandQueue) EnqueueKernel(k *Kernel, global, local []int) error {
	return q.EnqueueKernelOffset(k, nil, global, local)
}

// EnqueueKernelOffset is EnqueueKernel with a global work offset.
func (q *CommandQueue) EnqueueKernelOffset(k *Kernel, offset, global, local []int) error {
	const op = "enqueue ndrange kernel"
	qh, kh, err := q.handles(op, k)
	if err != nil {
		return err
	}
	o, err := sizes(op, offset)
	if err != nil {
		return err
	}
	g, err := sizes(op, global)
	if err != nil {
		return err
	}
	l, err := sizes(op, local)
	if err != nil {
		return err
	}
	return check(op, q.ctx.drv().EnqueueNDRangeKernel(qh, kh, o, g, l))
}

func sizes(op string, v []int) ([]uintptr, error) {
	if v == nil {
		return nil, nil
	}
	out := make([]uintptr, len(v))
	for i, n := range v {
		if n < 0 {
			return nil, &Error{Op: op, Status: driver.InvalidValue}
		}
		out[i] = uintptr(n)
	}
	return out, nil
}

// Flush submits queued commands without waiting.
func (q *CommandQueue) Flush() error {
	h, err := q.live("flush")
	if err != nil {
		return err
	}
	return check("flush", q.ctx.drv().Flush(h))
}

// Finish blocks until every queued command has completed.
func (q *CommandQueue) Finish() error {
	h, err := q.live("finish")
	if err != nil {
		return err
	}
	return check("finish", q.ctx.drv().Finish(h))
}
