package opencl

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/gogpu/opencl/driver"
	"github.com/gogpu/opencl/driver/host"
)

const setValueSource = `
__kernel void set_value(__global uchar* data, uchar value) {
	data[get_global_id(0)] = value;
}
`

const brokenSource = "__kernel void set_value(__global uchar* data, uchar value) {\n  data[0] = ;\n}\n"

func setValue(it host.WorkItem, args host.Args) {
	if data := args.Bytes(0); data != nil {
		data[it.GlobalID[0]] = args.Uint8(1)
	}
}

// hostRuntime returns a runtime on a fresh host driver with set_value
// registered.
func hostRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	drv := host.New(host.WithKernel("set_value", setValue))
	t.Cleanup(drv.Close)
	rt, err := New(drv, opts...)
	require.NoError(t, err)
	return rt
}

// hostContext returns a default context on a host runtime.
func hostContext(t *testing.T, opts ...Option) *Context {
	t.Helper()
	ctx, err := hostRuntime(t, opts...).CreateDefaultContext()
	require.NoError(t, err)
	t.Cleanup(ctx.Release)
	return ctx
}

// fakeDriver implements the calls the build and lifetime paths make.
// Anything else panics through the nil embedded interface.
type fakeDriver struct {
	driver.Driver

	mu       sync.Mutex
	build    func(h driver.Handle, notify func(driver.Handle)) driver.Status
	status   driver.BuildStatus
	log      string
	logFails bool

	releasedPrograms atomic.Int32
	staleQueries     atomic.Int32
	releasedContexts atomic.Int32
	releasedMem      atomic.Int32
	setArgCalls      atomic.Int32
}

func (f *fakeDriver) Name() string { return "fake" }

func (f *fakeDriver) DeviceInfo(_ driver.Handle, param driver.DeviceInfo, dst []byte) (int, driver.Status) {
	if param != driver.DeviceName {
		return 0, driver.InvalidValue
	}
	return fill(dst, []byte("fake device\x00"))
}

func (f *fakeDriver) ReleaseDevice(driver.Handle) driver.Status { return driver.Success }

func (f *fakeDriver) ReleaseContext(driver.Handle) driver.Status {
	f.releasedContexts.Add(1)
	return driver.Success
}

func (f *fakeDriver) CreateProgramWithSource(driver.Handle, []string) (driver.Handle, driver.Status) {
	return 0x500, driver.Success
}

func (f *fakeDriver) BuildProgram(h driver.Handle, _ []driver.Handle, _ string, notify func(driver.Handle)) driver.Status {
	return f.build(h, notify)
}

func (f *fakeDriver) ProgramBuildInfo(_, _ driver.Handle, param driver.ProgramBuildInfo, dst []byte) (int, driver.Status) {
	if f.releasedPrograms.Load() > 0 {
		f.staleQueries.Add(1)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	switch param {
	case driver.ProgramBuildStatus:
		var b [4]byte
		binary.NativeEndian.PutUint32(b[:], uint32(f.status))
		return fill(dst, b[:])
	case driver.ProgramBuildLog:
		if f.logFails {
			return 0, driver.OutOfHostMemory
		}
		return fill(dst, append([]byte(f.log), 0))
	default:
		return 0, driver.InvalidValue
	}
}

func (f *fakeDriver) ReleaseProgram(driver.Handle) driver.Status {
	f.releasedPrograms.Add(1)
	return driver.Success
}

func (f *fakeDriver) SetKernelArg(driver.Handle, uint32, uintptr, unsafe.Pointer) driver.Status {
	f.setArgCalls.Add(1)
	return driver.Success
}

func (f *fakeDriver) ReleaseKernel(driver.Handle) driver.Status { return driver.Success }

func (f *fakeDriver) ReleaseMemObject(driver.Handle) driver.Status {
	f.releasedMem.Add(1)
	return driver.Success
}

func fill(dst, v []byte) (int, driver.Status) {
	if dst == nil {
		return len(v), driver.Success
	}
	if len(dst) < len(v) {
		return len(v), driver.InvalidValue
	}
	copy(dst, v)
	return len(v), driver.Success
}

// fakeContext wires a context with one device to f without going
// through platform discovery.
func fakeContext(t *testing.T, f *fakeDriver, opts ...Option) *Context {
	t.Helper()
	rt, err := New(f, opts...)
	require.NoError(t, err)
	dev := newDevice(rt, nil, 0x100)
	c := &Context{rt: rt, devices: []*Device{dev}}
	c.init(c, KindContext, 0x200, f.ReleaseContext, rt.opts.tracker)
	return c
}
