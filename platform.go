package opencl

import (
	"fmt"
	"strings"

	"github.com/gogpu/opencl/driver"
)

// Platform is an OpenCL platform. Platforms are owned by the
// implementation and are never released.
type Platform struct {
	rt     *Runtime
	handle driver.Handle
}

// Handle returns the native platform id.
func (p *Platform) Handle() driver.Handle { return p.handle }

func (p *Platform) info(param driver.PlatformInfo) (string, error) {
	return queryString(fmt.Sprintf("get platform info %#x", uint32(param)), func(dst []byte) (int, driver.Status) {
		return p.rt.drv.PlatformInfo(p.handle, param, dst)
	})
}

// Name returns CL_PLATFORM_NAME.
func (p *Platform) Name() (string, error) { return p.info(driver.PlatformName) }

// Vendor returns CL_PLATFORM_VENDOR.
func (p *Platform) Vendor() (string, error) { return p.info(driver.PlatformVendor) }

// Version returns CL_PLATFORM_VERSION.
func (p *Platform) Version() (string, error) { return p.info(driver.PlatformVersion) }

// Profile returns CL_PLATFORM_PROFILE.
func (p *Platform) Profile() (string, error) { return p.info(driver.PlatformProfile) }

// Extensions returns CL_PLATFORM_EXTENSIONS split on spaces.
func (p *Platform) Extensions() ([]string, error) {
	s, err := p.info(driver.PlatformExtensions)
	if err != nil {
		return nil, err
	}
	return strings.Fields(s), nil
}

// Devices returns the platform's devices of type typ. A platform without
// such devices yields an empty slice.
func (p *Platform) Devices(typ driver.DeviceType) ([]*Device, error) {
	n, status := p.rt.drv.Devices(p.handle, typ, nil)
	if status == driver.DeviceNotFound {
		return nil, nil
	}
	if err := check("get device ids", status); err != nil {
		return nil, err
	}
	handles := make([]driver.Handle, n)
	if _, status := p.rt.drv.Devices(p.handle, typ, handles); !status.OK() {
		return nil, &Error{Op: "get device ids", Status: status}
	}

	devices := make([]*Device, n)
	for i, h := range handles {
		devices[i] = newDevice(p.rt, p, h)
	}
	return devices, nil
}
