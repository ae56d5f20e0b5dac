package opencl

import (
	"context"
	"fmt"
	"sync/atomic"
)

// BuildFuture is the result of an asynchronous program build.
//
// It is a one-shot slot: the first settle wins and every later attempt
// is ignored, so a consumer observes exactly one of success or failure.
type BuildFuture struct {
	settled atomic.Bool
	done    chan struct{}
	program *Program
	err     error
}

func newBuildFuture() *BuildFuture {
	return &BuildFuture{done: make(chan struct{})}
}

// settle stores the outcome if the future is still open and reports
// whether it did.
func (f *BuildFuture) settle(p *Program, err error) bool {
	if !f.settled.CompareAndSwap(false, true) {
		return false
	}
	f.program, f.err = p, err
	close(f.done)
	return true
}

func (f *BuildFuture) isSettled() bool {
	return f.settled.Load()
}

// Done returns a channel that is closed once the future settles.
func (f *BuildFuture) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the build settles or ctx is done. Giving up on the
// wait does not cancel the build.
func (f *BuildFuture) Wait(ctx context.Context) (*Program, error) {
	select {
	case <-f.done:
		return f.program, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome without blocking, or ErrBuildPending.
func (f *BuildFuture) Result() (*Program, error) {
	select {
	case <-f.done:
		return f.program, f.err
	default:
		return nil, ErrBuildPending
	}
}

// Abandon releases the program once the build settles. Use it when the
// caller stops waiting and will never collect the result.
func (f *BuildFuture) Abandon() {
	go func() {
		<-f.done
		if f.program != nil {
			f.program.Release()
		}
	}()
}

// callbackPanicError reports a panic inside the build notification.
type callbackPanicError struct {
	value any
}

func (e *callbackPanicError) Error() string {
	return fmt.Sprintf("opencl: build notification panicked: %v", e.value)
}
