package host

import (
	"encoding/binary"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/opencl/driver"
)

const setValueSource = `
__kernel void set_value(__global uchar* data, uchar value) {
	data[get_global_id(0)] = value;
}
`

func setValue(it WorkItem, args Args) {
	args.Bytes(0)[it.GlobalID[0]] = args.Uint8(1)
}

// env is a driver with one context and queue on its first device.
type env struct {
	d     *Driver
	dev   driver.Handle
	ctx   driver.Handle
	queue driver.Handle
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	d := New(opts...)
	t.Cleanup(d.Close)

	var platform [1]driver.Handle
	n, st := d.Platforms(platform[:])
	require.Equal(t, driver.Success, st)
	require.Equal(t, 1, n)

	var dev [1]driver.Handle
	_, st = d.Devices(platform[0], driver.DeviceTypeAll, dev[:])
	require.Equal(t, driver.Success, st)

	ctx, st := d.CreateContext(dev[:])
	require.Equal(t, driver.Success, st)
	q, st := d.CreateCommandQueue(ctx, dev[0], 0)
	require.Equal(t, driver.Success, st)

	return &env{d: d, dev: dev[0], ctx: ctx, queue: q}
}

func (e *env) release(t *testing.T) {
	t.Helper()
	assert.Equal(t, driver.Success, e.d.ReleaseCommandQueue(e.queue))
	assert.Equal(t, driver.Success, e.d.ReleaseContext(e.ctx))
}

func (e *env) build(t *testing.T, src string) driver.Handle {
	t.Helper()
	p, st := e.d.CreateProgramWithSource(e.ctx, []string{src})
	require.Equal(t, driver.Success, st)
	require.Equal(t, driver.Success, e.d.BuildProgram(p, nil, "", nil))
	return p
}

func queryString(t *testing.T, query func(dst []byte) (int, driver.Status)) string {
	t.Helper()
	n, st := query(nil)
	require.Equal(t, driver.Success, st)
	buf := make([]byte, n)
	_, st = query(buf)
	require.Equal(t, driver.Success, st)
	return strings.TrimRight(string(buf), "\x00")
}

func TestInfo_SizeProbe(t *testing.T) {
	e := newEnv(t, WithKernel("set_value", setValue), WithKernel("other", setValue))
	defer e.release(t)

	name := queryString(t, func(dst []byte) (int, driver.Status) {
		return e.d.DeviceInfo(e.dev, driver.DeviceName, dst)
	})
	assert.Equal(t, "gogpu host device 0", name)

	builtIns := queryString(t, func(dst []byte) (int, driver.Status) {
		return e.d.DeviceInfo(e.dev, driver.DeviceBuiltInKernels, dst)
	})
	assert.Equal(t, "other;set_value", builtIns)

	n, st := e.d.DeviceInfo(e.dev, driver.DeviceName, make([]byte, 3))
	assert.Equal(t, driver.InvalidValue, st)
	assert.Equal(t, len(name)+1, n)

	_, st = e.d.DeviceInfo(e.dev, driver.DeviceInfo(0xFFFF), nil)
	assert.Equal(t, driver.InvalidValue, st)

	_, st = e.d.DeviceInfo(0xdead, driver.DeviceName, nil)
	assert.Equal(t, driver.InvalidDevice, st)

	var typ [8]byte
	_, st = e.d.DeviceInfo(e.dev, driver.DeviceTypeInfo, typ[:])
	require.Equal(t, driver.Success, st)
	assert.Equal(t, uint64(driver.DeviceTypeCPU), binary.NativeEndian.Uint64(typ[:]))
}

func TestDevices(t *testing.T) {
	d := New(WithDevices(3))
	defer d.Close()

	var platform [1]driver.Handle
	d.Platforms(platform[:])

	n, st := d.Devices(platform[0], driver.DeviceTypeCPU, nil)
	require.Equal(t, driver.Success, st)
	assert.Equal(t, 3, n)

	_, st = d.Devices(platform[0], driver.DeviceTypeGPU, nil)
	assert.Equal(t, driver.DeviceNotFound, st)

	_, st = d.Devices(0, driver.DeviceTypeAll, nil)
	assert.Equal(t, driver.InvalidPlatform, st)
}

func TestBuffer_RoundTrip(t *testing.T) {
	e := newEnv(t)
	defer e.release(t)

	data := make([]byte, 255)
	for i := range data {
		data[i] = byte(i)
	}

	buf, st := e.d.CreateBuffer(e.ctx, driver.MemReadWrite|driver.MemCopyHostPtr, uintptr(len(data)), unsafe.Pointer(&data[0]))
	require.Equal(t, driver.Success, st)

	out := make([]byte, 255)
	require.Equal(t, driver.Success, e.d.EnqueueReadBuffer(e.queue, buf, true, 0, out))
	assert.Equal(t, data, out)

	var size [8]byte
	_, st = e.d.MemObjectInfo(buf, driver.MemSize, size[:])
	require.Equal(t, driver.Success, st)
	assert.Equal(t, uint64(255), binary.NativeEndian.Uint64(size[:]))

	assert.Equal(t, driver.InvalidValue, e.d.EnqueueReadBuffer(e.queue, buf, true, 200, out))
	assert.Equal(t, driver.Success, e.d.ReleaseMemObject(buf))
	assert.Equal(t, driver.InvalidMemObject, e.d.ReleaseMemObject(buf))
}

func TestBuffer_Validation(t *testing.T) {
	e := newEnv(t, WithGlobalMemory(1024))
	defer e.release(t)

	var b byte
	_, st := e.d.CreateBuffer(e.ctx, driver.MemReadWrite, 0, nil)
	assert.Equal(t, driver.InvalidBufferSize, st)
	_, st = e.d.CreateBuffer(e.ctx, driver.MemReadWrite, 1, unsafe.Pointer(&b))
	assert.Equal(t, driver.InvalidHostPtr, st)
	_, st = e.d.CreateBuffer(e.ctx, driver.MemCopyHostPtr, 1, nil)
	assert.Equal(t, driver.InvalidHostPtr, st)
	_, st = e.d.CreateBuffer(e.ctx, driver.MemReadOnly|driver.MemWriteOnly, 1, nil)
	assert.Equal(t, driver.InvalidValue, st)

	a, st := e.d.CreateBuffer(e.ctx, driver.MemReadWrite, 800, nil)
	require.Equal(t, driver.Success, st)
	_, st = e.d.CreateBuffer(e.ctx, driver.MemReadWrite, 800, nil)
	assert.Equal(t, driver.MemObjectAllocationFailure, st)
	require.Equal(t, driver.Success, e.d.ReleaseMemObject(a))
	c, st := e.d.CreateBuffer(e.ctx, driver.MemReadWrite, 800, nil)
	assert.Equal(t, driver.Success, st)
	e.d.ReleaseMemObject(c)
}

func TestKernel_SetValue(t *testing.T) {
	e := newEnv(t, WithKernel("set_value", setValue))
	defer e.release(t)

	p := e.build(t, setValueSource)
	k, st := e.d.CreateKernel(p, "set_value")
	require.Equal(t, driver.Success, st)

	buf, st := e.d.CreateBuffer(e.ctx, driver.MemReadWrite, 255, nil)
	require.Equal(t, driver.Success, st)

	require.Equal(t, driver.Success, e.d.SetKernelArg(k, 0, handleSize, unsafe.Pointer(&buf)))
	value := uint8(128)
	require.Equal(t, driver.Success, e.d.SetKernelArg(k, 1, 1, unsafe.Pointer(&value)))

	require.Equal(t, driver.Success, e.d.EnqueueNDRangeKernel(e.queue, k, nil, []uintptr{255}, nil))
	require.Equal(t, driver.Success, e.d.Finish(e.queue))

	out := make([]byte, 255)
	require.Equal(t, driver.Success, e.d.EnqueueReadBuffer(e.queue, buf, true, 0, out))
	for i, v := range out {
		if v != 128 {
			t.Fatalf("out[%d] = %d, want 128", i, v)
		}
	}

	assert.Equal(t, driver.Success, e.d.ReleaseKernel(k))
	assert.Equal(t, driver.Success, e.d.ReleaseProgram(p))
	assert.Equal(t, driver.Success, e.d.ReleaseMemObject(buf))
}

func TestKernel_ArgValidation(t *testing.T) {
	e := newEnv(t, WithKernel("set_value", setValue))
	defer e.release(t)

	p := e.build(t, setValueSource)
	defer e.d.ReleaseProgram(p)
	k, st := e.d.CreateKernel(p, "set_value")
	require.Equal(t, driver.Success, st)
	defer e.d.ReleaseKernel(k)

	value := uint32(7)
	bogus := driver.Handle(0xbad)
	assert.Equal(t, driver.InvalidArgIndex, e.d.SetKernelArg(k, 2, 1, unsafe.Pointer(&value)))
	assert.Equal(t, driver.InvalidArgSize, e.d.SetKernelArg(k, 1, 4, unsafe.Pointer(&value)))
	assert.Equal(t, driver.InvalidArgValue, e.d.SetKernelArg(k, 1, 1, nil))
	assert.Equal(t, driver.InvalidArgSize, e.d.SetKernelArg(k, 0, 4, unsafe.Pointer(&value)))
	assert.Equal(t, driver.InvalidMemObject, e.d.SetKernelArg(k, 0, handleSize, unsafe.Pointer(&bogus)))

	assert.Equal(t, driver.InvalidKernelArgs, e.d.EnqueueNDRangeKernel(e.queue, k, nil, []uintptr{4}, nil))

	_, st = e.d.CreateKernel(p, "missing")
	assert.Equal(t, driver.InvalidKernelName, st)
}

func TestKernel_LocalMemoryAndGroups(t *testing.T) {
	// Each group sums its slice in local memory and writes the sum.
	const src = `__kernel void group_sum(__global const int* in, __global int* out, __local int* scratch) {}`
	groupSum := func(it WorkItem, args Args) {
		in, out, scratch := args.Int32s(0), args.Int32s(1), args.Int32s(2)
		scratch[it.LocalID[0]] = in[it.GlobalID[0]]
		if it.LocalID[0] == it.LocalSize[0]-1 {
			var sum int32
			for _, v := range scratch {
				sum += v
			}
			out[it.GroupID[0]] = sum
		}
	}

	e := newEnv(t, WithKernel("group_sum", groupSum), WithWorkers(4))
	defer e.release(t)

	p := e.build(t, src)
	defer e.d.ReleaseProgram(p)
	k, _ := e.d.CreateKernel(p, "group_sum")
	defer e.d.ReleaseKernel(k)

	in := make([]int32, 64)
	for i := range in {
		in[i] = int32(i)
	}
	inBuf, st := e.d.CreateBuffer(e.ctx, driver.MemReadOnly|driver.MemCopyHostPtr, 256, unsafe.Pointer(&in[0]))
	require.Equal(t, driver.Success, st)
	outBuf, _ := e.d.CreateBuffer(e.ctx, driver.MemWriteOnly, 16, nil)
	defer e.d.ReleaseMemObject(inBuf)
	defer e.d.ReleaseMemObject(outBuf)

	require.Equal(t, driver.Success, e.d.SetKernelArg(k, 0, handleSize, unsafe.Pointer(&inBuf)))
	require.Equal(t, driver.Success, e.d.SetKernelArg(k, 1, handleSize, unsafe.Pointer(&outBuf)))
	require.Equal(t, driver.Success, e.d.SetKernelArg(k, 2, 16*4, nil))

	assert.Equal(t, driver.InvalidWorkGroupSize, e.d.EnqueueNDRangeKernel(e.queue, k, nil, []uintptr{64}, []uintptr{10}))
	require.Equal(t, driver.Success, e.d.EnqueueNDRangeKernel(e.queue, k, nil, []uintptr{64}, []uintptr{16}))

	out := make([]byte, 16)
	require.Equal(t, driver.Success, e.d.EnqueueReadBuffer(e.queue, outBuf, true, 0, out))
	for g := range 4 {
		want := int32(0)
		for i := g * 16; i < (g+1)*16; i++ {
			want += int32(i)
		}
		assert.Equal(t, want, int32(binary.NativeEndian.Uint32(out[g*4:])), "group %d", g)
	}
}

func TestKernel_PanicReported(t *testing.T) {
	e := newEnv(t, WithKernel("boom", func(WorkItem, Args) { panic("kernel fault") }))
	defer e.release(t)

	p := e.build(t, "__kernel void boom() {}")
	defer e.d.ReleaseProgram(p)
	k, _ := e.d.CreateKernel(p, "boom")
	defer e.d.ReleaseKernel(k)

	assert.Equal(t, driver.OutOfResources, e.d.EnqueueNDRangeKernel(e.queue, k, nil, []uintptr{8}, nil))
}

func TestBuild_FailureLog(t *testing.T) {
	e := newEnv(t)
	defer e.release(t)

	p, st := e.d.CreateProgramWithSource(e.ctx, []string{"__kernel void k(__global int* p) {\n  p[0] = ;\n}"})
	require.Equal(t, driver.Success, st)
	defer e.d.ReleaseProgram(p)

	assert.Equal(t, driver.BuildProgramFailure, e.d.BuildProgram(p, nil, "", nil))

	var status [4]byte
	_, st = e.d.ProgramBuildInfo(p, e.dev, driver.ProgramBuildStatus, status[:])
	require.Equal(t, driver.Success, st)
	assert.Equal(t, driver.BuildError, driver.BuildStatus(binary.NativeEndian.Uint32(status[:])))

	log := queryString(t, func(dst []byte) (int, driver.Status) {
		return e.d.ProgramBuildInfo(p, e.dev, driver.ProgramBuildLog, dst)
	})
	assert.Contains(t, log, "<program>:2:10: error: expected expression")
	assert.Contains(t, log, "kernel 'k' has no host implementation")

	_, st = e.d.CreateKernel(p, "k")
	assert.Equal(t, driver.InvalidProgramExecutable, st)
}

func TestBuild_Async(t *testing.T) {
	e := newEnv(t, WithKernel("set_value", setValue))
	defer e.release(t)

	p, _ := e.d.CreateProgramWithSource(e.ctx, []string{setValueSource})
	defer e.d.ReleaseProgram(p)

	var calls atomic.Int32
	done := make(chan driver.Handle, 1)
	st := e.d.BuildProgram(p, nil, "-D N=4 -cl-fast-relaxed-math", func(h driver.Handle) {
		calls.Add(1)
		done <- h
	})
	require.Equal(t, driver.Success, st)

	select {
	case h := <-done:
		assert.Equal(t, p, h)
	case <-time.After(5 * time.Second):
		t.Fatal("notify was not called")
	}
	assert.Equal(t, int32(1), calls.Load())

	names := queryString(t, func(dst []byte) (int, driver.Status) {
		return e.d.ProgramInfo(p, driver.ProgramKernelNames, dst)
	})
	assert.Equal(t, "set_value", names)

	opts := queryString(t, func(dst []byte) (int, driver.Status) {
		return e.d.ProgramBuildInfo(p, e.dev, driver.ProgramBuildOptions, dst)
	})
	assert.Equal(t, "-D N=4 -cl-fast-relaxed-math", opts)
}

func TestBuild_InvalidOptions(t *testing.T) {
	e := newEnv(t)
	defer e.release(t)

	p, _ := e.d.CreateProgramWithSource(e.ctx, []string{"__kernel void k() {}"})
	defer e.d.ReleaseProgram(p)

	assert.Equal(t, driver.InvalidBuildOptions, e.d.BuildProgram(p, nil, "fast", nil))
	assert.Equal(t, driver.InvalidBuildOptions, e.d.BuildProgram(p, nil, "-D", nil))
	assert.Equal(t, driver.InvalidDevice, e.d.BuildProgram(p, []driver.Handle{0x1}, "", nil))
	assert.Equal(t, driver.InvalidProgram, e.d.BuildProgram(0x1, nil, "", nil))
}

func TestCompileCache(t *testing.T) {
	e := newEnv(t, WithKernel("set_value", setValue))
	defer e.release(t)

	for range 3 {
		p := e.build(t, setValueSource)
		e.d.ReleaseProgram(p)
	}
	stats := e.d.CompileCacheStats()
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(2), stats.Hits)
}

func TestRelease_Cascade(t *testing.T) {
	e := newEnv(t, WithKernel("set_value", setValue))

	p := e.build(t, setValueSource)
	k, _ := e.d.CreateKernel(p, "set_value")
	buf, _ := e.d.CreateBuffer(e.ctx, driver.MemReadWrite, 16, nil)

	// The program stays alive while the kernel references it.
	require.Equal(t, driver.Success, e.d.ReleaseProgram(p))
	var refs [4]byte
	_, st := e.d.KernelInfo(k, driver.KernelReferenceCount, refs[:])
	require.Equal(t, driver.Success, st)

	e.release(t)
	assert.Equal(t, 4, e.d.LiveObjects(), "context kept alive by kernel chain and buffer")

	require.Equal(t, driver.Success, e.d.ReleaseKernel(k))
	require.Equal(t, driver.Success, e.d.ReleaseMemObject(buf))
	assert.Equal(t, 0, e.d.LiveObjects())
}

func TestImageAndPipe(t *testing.T) {
	e := newEnv(t)
	defer e.release(t)

	format := driver.ImageFormat{Order: driver.ChannelRGBA, Type: driver.ChannelUnormInt8}
	pixels := make([]byte, 20*3) // 4 RGBA pixels per row, pitch 20
	img, st := e.d.CreateImage(e.ctx, driver.MemReadOnly|driver.MemCopyHostPtr, format,
		driver.ImageDesc{Type: driver.MemObjectImage2D, Width: 4, Height: 3, RowPitch: 20}, unsafe.Pointer(&pixels[0]))
	require.Equal(t, driver.Success, st)
	defer e.d.ReleaseMemObject(img)

	var size [8]byte
	e.d.MemObjectInfo(img, driver.MemSize, size[:])
	assert.Equal(t, uint64(48), binary.NativeEndian.Uint64(size[:]))

	_, st = e.d.CreateImage(e.ctx, driver.MemReadOnly, driver.ImageFormat{}, driver.ImageDesc{Type: driver.MemObjectImage2D, Width: 1, Height: 1}, nil)
	assert.Equal(t, driver.ImageFormatNotSupported, st)
	_, st = e.d.CreateImage(e.ctx, driver.MemReadOnly, format, driver.ImageDesc{Type: driver.MemObjectImage2D, Width: 1}, nil)
	assert.Equal(t, driver.InvalidImageSize, st)

	pipe, st := e.d.CreatePipe(e.ctx, driver.MemReadWrite, 16, 8)
	require.Equal(t, driver.Success, st)
	defer e.d.ReleaseMemObject(pipe)

	var typ [4]byte
	e.d.MemObjectInfo(pipe, driver.MemType, typ[:])
	assert.Equal(t, uint32(driver.MemObjectPipe), binary.NativeEndian.Uint32(typ[:]))

	_, st = e.d.CreatePipe(e.ctx, driver.MemReadWrite, 0, 8)
	assert.Equal(t, driver.InvalidPipeSize, st)
}

func TestRegisteredAsHost(t *testing.T) {
	d, err := driver.Open(driver.NameHost)
	require.NoError(t, err)
	assert.Equal(t, driver.NameHost, d.Name())
}
