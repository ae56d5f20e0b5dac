package opencl

import (
	"fmt"
	"sync"

	"github.com/gogpu/opencl/driver"
)

// Kind names the type of a native resource.
type Kind string

// Resource kinds.
const (
	KindDevice  Kind = "device"
	KindContext Kind = "context"
	KindProgram Kind = "program"
	KindKernel  Kind = "kernel"
	KindBuffer  Kind = "buffer"
	KindImage   Kind = "image"
	KindPipe    Kind = "pipe"
	KindQueue   Kind = "queue"
)

// Resource is a wrapper that owns one native OpenCL handle.
//
// Release frees the native object. It is idempotent: only the first call
// reaches the driver, and afterwards Handle returns zero. A Resource is
// meant to be released with defer right after it is created:
//
//	buf, err := ctx.CreateBuffer(driver.MemReadWrite, 255, nil)
//	if err != nil {
//	    return err
//	}
//	defer buf.Release()
type Resource interface {
	// Handle returns the native handle, or zero once released.
	Handle() driver.Handle
	// Release frees the native object. Later calls do nothing.
	Release()
	// Released reports whether Release has been called.
	Released() bool
}

// Equal reports whether a and b wrap the same native handle. Wrapper
// identity is irrelevant: two wrappers of one handle are equal, and two
// released wrappers are equal because both hold the zero handle. A nil
// Resource counts as released.
func Equal(a, b Resource) bool {
	return handleOf(a) == handleOf(b)
}

func handleOf(r Resource) driver.Handle {
	if r == nil {
		return 0
	}
	return r.Handle()
}

// resource implements Resource. Every wrapper embeds one.
type resource struct {
	mu       sync.Mutex
	kind     Kind
	handle   driver.Handle
	free     func(driver.Handle) driver.Status
	tracker  Tracker
	released bool
}

// init takes ownership of h. self is the wrapper reported to the tracker.
func (r *resource) init(self Resource, kind Kind, h driver.Handle, free func(driver.Handle) driver.Status, t Tracker) {
	r.kind = kind
	r.handle = h
	r.free = free
	r.tracker = t
	t.Created(kind, self)
	Logger().Debug("opencl: resource created", "kind", string(kind), "handle", fmt.Sprintf("%#x", uintptr(h)))
}

// Handle returns the native handle, or zero once released.
func (r *resource) Handle() driver.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle
}

// Released reports whether Release has been called.
func (r *resource) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// Release frees the native object. The driver's status is logged but not
// returned: there is nothing useful a caller can do about a failed
// release.
func (r *resource) Release() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	h := r.handle
	r.handle = 0
	r.released = true
	r.mu.Unlock()

	// The driver may reuse h as soon as it is freed.
	r.tracker.Released(r.kind, h)
	if status := r.free(h); !status.OK() {
		Logger().Warn("opencl: release failed",
			"kind", string(r.kind), "handle", fmt.Sprintf("%#x", uintptr(h)), "status", status.String())
	}
	Logger().Debug("opencl: resource released", "kind", string(r.kind), "handle", fmt.Sprintf("%#x", uintptr(h)))
}

// Equal reports whether r and other wrap the same native handle.
func (r *resource) Equal(other Resource) bool {
	return r.Handle() == handleOf(other)
}

// live returns the handle or ErrReleased wrapped with op.
func (r *resource) live(op string) (driver.Handle, error) {
	h := r.Handle()
	if h == 0 {
		return 0, fmt.Errorf("opencl: %s: %w", op, ErrReleased)
	}
	return h, nil
}
