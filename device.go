package opencl

import (
	"fmt"
	"strings"

	"github.com/gogpu/opencl/driver"
)

// Device is an OpenCL device.
//
// Devices are borrowed from their platform: Release is safe to call but
// root devices are not destroyed, and devices are not reported to the
// runtime's Tracker. The properties the binding reads repeatedly are
// queried once and cached.
type Device struct {
	resource
	rt       *Runtime
	platform *Platform

	name          lazy[string]
	vendor        lazy[string]
	driverVersion lazy[string]
	globalMem     lazy[uint64]
	addressBits   lazy[uint32]
	maxClock      lazy[uint32]
	available     lazy[bool]
	builtIns      lazy[[]string]
}

func newDevice(rt *Runtime, p *Platform, h driver.Handle) *Device {
	d := &Device{rt: rt, platform: p}
	d.init(d, KindDevice, h, rt.drv.ReleaseDevice, nopTracker{})
	return d
}

// Platform returns the platform the device belongs to.
func (d *Device) Platform() *Platform { return d.platform }

func (d *Device) query(param driver.DeviceInfo) infoFunc {
	return func(dst []byte) (int, driver.Status) {
		h := d.Handle()
		if h == 0 {
			return 0, driver.InvalidDevice
		}
		return d.rt.drv.DeviceInfo(h, param, dst)
	}
}

func deviceOp(param driver.DeviceInfo) string {
	return fmt.Sprintf("get device info %#x", uint32(param))
}

func (d *Device) str(param driver.DeviceInfo) (string, error) {
	return queryString(deviceOp(param), d.query(param))
}

func (d *Device) u32(param driver.DeviceInfo) (uint32, error) {
	return queryUint32(deviceOp(param), d.query(param))
}

// Name returns CL_DEVICE_NAME.
func (d *Device) Name() (string, error) {
	return d.name.get(func() (string, error) { return d.str(driver.DeviceName) })
}

// Vendor returns CL_DEVICE_VENDOR.
func (d *Device) Vendor() (string, error) {
	return d.vendor.get(func() (string, error) { return d.str(driver.DeviceVendor) })
}

// DriverVersion returns CL_DRIVER_VERSION.
func (d *Device) DriverVersion() (string, error) {
	return d.driverVersion.get(func() (string, error) { return d.str(driver.DeviceDriverVersion) })
}

// GlobalMemorySize returns CL_DEVICE_GLOBAL_MEM_SIZE in bytes.
func (d *Device) GlobalMemorySize() (uint64, error) {
	return d.globalMem.get(func() (uint64, error) {
		return queryUint64(deviceOp(driver.DeviceGlobalMemSize), d.query(driver.DeviceGlobalMemSize))
	})
}

// AddressBits returns CL_DEVICE_ADDRESS_BITS.
func (d *Device) AddressBits() (uint32, error) {
	return d.addressBits.get(func() (uint32, error) { return d.u32(driver.DeviceAddressBits) })
}

// MaxClockFrequency returns CL_DEVICE_MAX_CLOCK_FREQUENCY in MHz.
func (d *Device) MaxClockFrequency() (uint32, error) {
	return d.maxClock.get(func() (uint32, error) { return d.u32(driver.DeviceMaxClockFrequency) })
}

// Available returns CL_DEVICE_AVAILABLE.
func (d *Device) Available() (bool, error) {
	return d.available.get(func() (bool, error) {
		return queryBool(deviceOp(driver.DeviceAvailable), d.query(driver.DeviceAvailable))
	})
}

// BuiltInKernels returns CL_DEVICE_BUILT_IN_KERNELS.
func (d *Device) BuiltInKernels() ([]string, error) {
	return d.builtIns.get(func() ([]string, error) {
		s, err := d.str(driver.DeviceBuiltInKernels)
		if err != nil {
			return nil, err
		}
		return splitList(s), nil
	})
}

// Type returns CL_DEVICE_TYPE.
func (d *Device) Type() (driver.DeviceType, error) {
	v, err := queryUint64(deviceOp(driver.DeviceTypeInfo), d.query(driver.DeviceTypeInfo))
	return driver.DeviceType(v), err
}

// MaxComputeUnits returns CL_DEVICE_MAX_COMPUTE_UNITS.
func (d *Device) MaxComputeUnits() (int, error) {
	v, err := d.u32(driver.DeviceMaxComputeUnits)
	return int(v), err
}

// MaxWorkGroupSize returns CL_DEVICE_MAX_WORK_GROUP_SIZE.
func (d *Device) MaxWorkGroupSize() (int, error) {
	v, err := querySize(deviceOp(driver.DeviceMaxWorkGroupSize), d.query(driver.DeviceMaxWorkGroupSize))
	return int(v), err
}

// Version returns CL_DEVICE_VERSION.
func (d *Device) Version() (string, error) { return d.str(driver.DeviceVersion) }

// Extensions returns CL_DEVICE_EXTENSIONS split on spaces.
func (d *Device) Extensions() ([]string, error) {
	s, err := d.str(driver.DeviceExtensions)
	if err != nil {
		return nil, err
	}
	return strings.Fields(s), nil
}

// splitList splits a ';'-separated OpenCL name list.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
