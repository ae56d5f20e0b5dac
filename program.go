package opencl

import (
	"fmt"

	"github.com/gogpu/opencl/driver"
)

// Program is a built OpenCL program.
type Program struct {
	resource
	ctx *Context

	kernelNames lazy[[]string]
}

// Context returns the context the program was built for.
func (p *Program) Context() *Context { return p.ctx }

// Kernel creates the kernel called name.
func (p *Program) Kernel(name string) (*Kernel, error) {
	h, err := p.live("create kernel")
	if err != nil {
		return nil, err
	}
	kh, status := p.ctx.drv().CreateKernel(h, name)
	if err := check(fmt.Sprintf("create kernel %q", name), status); err != nil {
		return nil, err
	}
	k := &Kernel{program: p}
	k.init(k, KindKernel, kh, p.ctx.drv().ReleaseKernel, p.ctx.rt.opts.tracker)
	return k, nil
}

// KernelNames returns the names of the kernels the program defines.
func (p *Program) KernelNames() ([]string, error) {
	return p.kernelNames.get(func() ([]string, error) {
		h, err := p.live("get program info")
		if err != nil {
			return nil, err
		}
		s, err := queryString("get program kernel names", func(dst []byte) (int, driver.Status) {
			return p.ctx.drv().ProgramInfo(h, driver.ProgramKernelNames, dst)
		})
		if err != nil {
			return nil, err
		}
		return splitList(s), nil
	})
}

// BuildLog returns the build log of device.
func (p *Program) BuildLog(device *Device) (string, error) {
	h, err := p.live("get program build info")
	if err != nil {
		return "", err
	}
	return programBuildLog(p.ctx.drv(), h, device)
}

// BuildStatus returns the build status of device.
func (p *Program) BuildStatus(device *Device) (driver.BuildStatus, error) {
	h, err := p.live("get program build info")
	if err != nil {
		return driver.BuildNone, err
	}
	return programBuildStatus(p.ctx.drv(), h, device.Handle())
}

// programBuildLog returns the trimmed build log of program h on device.
func programBuildLog(drv driver.Driver, h driver.Handle, device *Device) (string, error) {
	dh := device.Handle()
	log, err := queryString("get program build log", func(dst []byte) (int, driver.Status) {
		return drv.ProgramBuildInfo(h, dh, driver.ProgramBuildLog, dst)
	})
	if err != nil {
		return "", err
	}
	return trimLog(log), nil
}

func programBuildStatus(drv driver.Driver, h, device driver.Handle) (driver.BuildStatus, error) {
	b, err := queryInfo("get program build status", func(dst []byte) (int, driver.Status) {
		return drv.ProgramBuildInfo(h, device, driver.ProgramBuildStatus, dst)
	})
	if err != nil {
		return driver.BuildNone, err
	}
	v, err := decodeUint32("get program build status", b)
	return driver.BuildStatus(int32(v)), err
}
