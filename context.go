package opencl

import (
	"context"
	"io"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/opencl/driver"
)

// Context groups the devices that programs, memory objects and queues are
// created for.
type Context struct {
	resource
	rt      *Runtime
	devices []*Device
}

// Devices returns the devices the context was created for, in order.
func (c *Context) Devices() []*Device {
	return slices.Clone(c.devices)
}

// Runtime returns the runtime that created the context.
func (c *Context) Runtime() *Runtime { return c.rt }

func (c *Context) drv() driver.Driver { return c.rt.drv }

// BuildProgram compiles and links sources for every device of the
// context, blocking until the build completes.
//
// A failed build returns a *BuildError whose message includes the build
// log of each device that reported one.
func (c *Context) BuildProgram(sources ...string) (*Program, error) {
	h, err := c.createProgram(sources)
	if err != nil {
		return nil, err
	}

	status := c.drv().BuildProgram(h, c.deviceHandles(), c.rt.opts.buildOptions, nil)
	if !status.OK() {
		err := c.buildFailure(h, status)
		c.discardProgram(h)
		return nil, err
	}
	return c.wrapProgram(h), nil
}

// BuildProgramAsync starts compiling sources and returns immediately.
// The returned future settles exactly once: with the program when every
// device built successfully, otherwise with an error. A build that the
// driver refuses to start settles the future before BuildProgramAsync
// returns.
func (c *Context) BuildProgramAsync(sources ...string) *BuildFuture {
	f := newBuildFuture()

	h, err := c.createProgram(sources)
	if err != nil {
		f.settle(nil, err)
		return f
	}

	pending := &pendingProgram{ctx: c, handle: h}
	status := c.drv().BuildProgram(h, c.deviceHandles(), c.rt.opts.buildOptions, func(driver.Handle) {
		pending.complete(f)
	})
	if !status.OK() {
		Logger().Debug("opencl: build registration failed", "status", status.String())
		pending.fail(f, status)
	}
	return f
}

// BuildProgramFromReaders reads each reader to EOF and builds the
// concatenation as one program.
func (c *Context) BuildProgramFromReaders(rs ...io.Reader) (*Program, error) {
	sources, err := readSources(rs)
	if err != nil {
		return nil, err
	}
	return c.BuildProgram(sources...)
}

// BuildProgramFromFiles reads each file and builds them as one program.
func (c *Context) BuildProgramFromFiles(paths ...string) (*Program, error) {
	sources, err := readFiles(paths)
	if err != nil {
		return nil, err
	}
	return c.BuildProgram(sources...)
}

// BuildProgramFromFilesAsync is the asynchronous form of
// BuildProgramFromFiles. Read errors settle the future immediately.
func (c *Context) BuildProgramFromFilesAsync(paths ...string) *BuildFuture {
	sources, err := readFiles(paths)
	if err != nil {
		f := newBuildFuture()
		f.settle(nil, err)
		return f
	}
	return c.BuildProgramAsync(sources...)
}

// BuildPrograms builds independent programs concurrently, one per source
// set, and returns them in order. If any build fails, the programs that
// did build are released and the first error is returned. ctx bounds the
// wait; builds already started run to completion.
func (c *Context) BuildPrograms(ctx context.Context, sets ...[]string) ([]*Program, error) {
	programs := make([]*Program, len(sets))
	g, gctx := errgroup.WithContext(ctx)
	for i, sources := range sets {
		g.Go(func() error {
			f := c.BuildProgramAsync(sources...)
			p, err := f.Wait(gctx)
			if err != nil {
				f.Abandon()
				return err
			}
			programs[i] = p
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, p := range programs {
			if p != nil {
				p.Release()
			}
		}
		return nil, err
	}
	return programs, nil
}

func (c *Context) deviceHandles() []driver.Handle {
	handles := make([]driver.Handle, 0, len(c.devices))
	for _, d := range c.devices {
		handles = append(handles, d.Handle())
	}
	return handles
}

func (c *Context) createProgram(sources []string) (driver.Handle, error) {
	h, err := c.live("create program")
	if err != nil {
		return 0, err
	}
	p, status := c.drv().CreateProgramWithSource(h, sources)
	if err := check("create program with source", status); err != nil {
		return 0, err
	}
	return p, nil
}

func (c *Context) wrapProgram(h driver.Handle) *Program {
	p := &Program{ctx: c}
	p.init(p, KindProgram, h, c.drv().ReleaseProgram, c.rt.opts.tracker)
	return p
}

func (c *Context) discardProgram(h driver.Handle) {
	if status := c.drv().ReleaseProgram(h); !status.OK() {
		Logger().Warn("opencl: release of failed program", "status", status.String())
	}
}

// buildFailure collects the build log of every device. Devices whose log
// cannot be read, or is empty, are left out.
func (c *Context) buildFailure(h driver.Handle, status driver.Status) *BuildError {
	be := &BuildError{Status: status}
	for _, d := range c.devices {
		log, err := programBuildLog(c.drv(), h, d)
		if err != nil {
			Logger().Warn("opencl: build log unavailable", "error", err)
			continue
		}
		if log == "" {
			continue
		}
		name, err := d.Name()
		if err != nil {
			name = "unknown"
		}
		be.Logs = append(be.Logs, DeviceLog{Device: name, Log: log})
	}
	return be
}

// buildSucceeded reports whether every device built h successfully.
func (c *Context) buildSucceeded(h driver.Handle) bool {
	for _, d := range c.devices {
		st, err := programBuildStatus(c.drv(), h, d.Handle())
		if err != nil || st != driver.BuildSuccess {
			return false
		}
	}
	return true
}

// pendingProgram owns a program handle until its asynchronous build
// settles. The driver may notify even when BuildProgram fails, so the
// registration path and the notification race for the handle: only the
// caller that takes it queries, settles and releases it.
type pendingProgram struct {
	ctx    *Context
	handle driver.Handle
	once   sync.Once
}

func (p *pendingProgram) take() (driver.Handle, bool) {
	taken := false
	p.once.Do(func() { taken = true })
	return p.handle, taken
}

// fail settles f for a build the driver refused to start.
func (p *pendingProgram) fail(f *BuildFuture, status driver.Status) {
	h, ok := p.take()
	if !ok {
		return
	}
	c := p.ctx
	defer c.discardProgram(h)
	f.settle(nil, c.buildFailure(h, status))
}

// complete runs on the driver's notification goroutine. It must settle f
// even if it panics.
func (p *pendingProgram) complete(f *BuildFuture) {
	h, ok := p.take()
	if !ok {
		return
	}
	c := p.ctx
	defer func() {
		if r := recover(); r != nil {
			f.settle(nil, &callbackPanicError{value: r})
			c.discardProgram(h)
		}
	}()

	if !c.buildSucceeded(h) {
		f.settle(nil, c.buildFailure(h, driver.BuildProgramFailure))
		c.discardProgram(h)
		return
	}

	prog := c.wrapProgram(h)
	if !f.settle(prog, nil) {
		prog.Release()
	}
}
