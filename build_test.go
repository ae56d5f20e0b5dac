package opencl

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/gogpu/opencl/driver"
)

func waitFuture(t *testing.T, f *BuildFuture) (*Program, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := f.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "build never settled")
	return p, err
}

func TestBuildProgram(t *testing.T) {
	ctx := hostContext(t)

	p, err := ctx.BuildProgram(setValueSource)
	require.NoError(t, err)
	defer p.Release()

	names, err := p.KernelNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"set_value"}, names)

	st, err := p.BuildStatus(ctx.Devices()[0])
	require.NoError(t, err)
	assert.Equal(t, driver.BuildSuccess, st)
	assert.Same(t, ctx, p.Context())
}

func TestBuildProgram_FailureCarriesLog(t *testing.T) {
	ctx := hostContext(t)

	p, err := ctx.BuildProgram(brokenSource)
	require.Error(t, err)
	assert.Nil(t, p)

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, driver.BuildProgramFailure, be.Status)
	require.Len(t, be.Logs, 1)
	assert.Equal(t, "gogpu host device 0", be.Logs[0].Device)
	assert.Contains(t, err.Error(), "opencl: program could not be compiled and linked")
	assert.Contains(t, err.Error(), "Build log for device \"gogpu host device 0\":\n<program>:2:13: error: expected expression")

	assert.Equal(t, 1, ctx.Runtime().Driver().(interface{ LiveObjects() int }).LiveObjects(),
		"only the context is left")
}

func TestBuildProgramAsync(t *testing.T) {
	ctx := hostContext(t)

	f := ctx.BuildProgramAsync(setValueSource)
	p, err := waitFuture(t, f)
	require.NoError(t, err)
	defer p.Release()

	k, err := p.Kernel("set_value")
	require.NoError(t, err)
	defer k.Release()

	again, err := f.Result()
	require.NoError(t, err)
	assert.Same(t, p, again)
}

func TestBuildProgramAsync_FailureCarriesLog(t *testing.T) {
	ctx := hostContext(t)

	f := ctx.BuildProgramAsync(brokenSource)
	p, err := waitFuture(t, f)
	assert.Nil(t, p)

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, err.Error(), "<program>:2:13: error: expected expression")

	assert.Eventually(t, func() bool {
		return ctx.Runtime().Driver().(interface{ LiveObjects() int }).LiveObjects() == 1
	}, time.Second, time.Millisecond, "failed program released")
}

func TestBuildProgramAsync_RegistrationFailure(t *testing.T) {
	ctx := hostContext(t, WithBuildOptions("not-an-option"))

	f := ctx.BuildProgramAsync(setValueSource)

	select {
	case <-f.Done():
	default:
		t.Fatal("future must settle before BuildProgramAsync returns")
	}
	_, err := f.Result()
	assert.True(t, IsStatus(err, driver.InvalidBuildOptions), "got %v", err)
	assert.Equal(t, 1, ctx.Runtime().Driver().(interface{ LiveObjects() int }).LiveObjects())
}

func TestBuildProgramAsync_NotifyThenFailure(t *testing.T) {
	f := &fakeDriver{
		status: driver.BuildError,
		log:    "fake: error",
		build: func(h driver.Handle, notify func(driver.Handle)) driver.Status {
			notify(h)
			return driver.OutOfResources
		},
	}
	ctx := fakeContext(t, f)

	fut := ctx.BuildProgramAsync("kernel")
	_, err := fut.Result()
	require.Error(t, err)
	assert.ErrorContains(t, err, "fake: error")
	assert.Equal(t, int32(1), f.releasedPrograms.Load(), "handle released exactly once")
}

func TestBuildProgramAsync_NotifySuccessThenFailure(t *testing.T) {
	f := &fakeDriver{
		status: driver.BuildSuccess,
		build: func(h driver.Handle, notify func(driver.Handle)) driver.Status {
			notify(h)
			return driver.OutOfResources
		},
	}
	ctx := fakeContext(t, f)

	p, err := ctx.BuildProgramAsync("kernel").Result()
	require.NoError(t, err, "the notification settled first")
	assert.Equal(t, int32(0), f.releasedPrograms.Load())
	p.Release()
	assert.Equal(t, int32(1), f.releasedPrograms.Load())
}

func TestBuildProgramAsync_LateNotify(t *testing.T) {
	notified := make(chan func(), 1)
	f := &fakeDriver{
		status: driver.BuildSuccess,
		build: func(h driver.Handle, notify func(driver.Handle)) driver.Status {
			notified <- func() { notify(h) }
			return driver.InvalidOperation
		},
	}
	ctx := fakeContext(t, f)

	fut := ctx.BuildProgramAsync("kernel")
	_, err := fut.Result()
	assert.True(t, IsStatus(err, driver.InvalidOperation))

	(<-notified)()
	_, err = fut.Result()
	assert.True(t, IsStatus(err, driver.InvalidOperation), "first outcome stands")
	assert.Equal(t, int32(1), f.releasedPrograms.Load())
}

func TestBuildProgramAsync_ConcurrentNotifyAndFailure(t *testing.T) {
	for i := range 200 {
		var notified sync.WaitGroup
		f := &fakeDriver{
			status: driver.BuildError,
			log:    "fake: error",
			build: func(h driver.Handle, notify func(driver.Handle)) driver.Status {
				notified.Add(1)
				go func() {
					defer notified.Done()
					notify(h)
				}()
				return driver.OutOfResources
			},
		}
		ctx := fakeContext(t, f)

		_, err := waitFuture(t, ctx.BuildProgramAsync("kernel"))
		require.Error(t, err)
		notified.Wait()

		require.Equal(t, int32(1), f.releasedPrograms.Load(), "iteration %d", i)
		require.Zero(t, f.staleQueries.Load(), "iteration %d: build info queried after release", i)
	}
}

func TestBuildFailure_LogQueryErrorSwallowed(t *testing.T) {
	f := &fakeDriver{
		logFails: true,
		build: func(driver.Handle, func(driver.Handle)) driver.Status {
			return driver.BuildProgramFailure
		},
	}
	ctx := fakeContext(t, f)

	_, err := ctx.BuildProgram("kernel")
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Empty(t, be.Logs)
	assert.EqualError(t, err, "opencl: program could not be compiled and linked (CL_BUILD_PROGRAM_FAILURE)")
	assert.Equal(t, int32(1), f.releasedPrograms.Load())
}

func TestBuildFailure_EmptyLogOmitted(t *testing.T) {
	f := &fakeDriver{
		log: "  \n",
		build: func(driver.Handle, func(driver.Handle)) driver.Status {
			return driver.BuildProgramFailure
		},
	}
	ctx := fakeContext(t, f)

	_, err := ctx.BuildProgram("kernel")
	assert.NotContains(t, err.Error(), "Build log")
}

func TestBuildProgramAsync_CallbackPanic(t *testing.T) {
	var ctx *Context
	f := &fakeDriver{
		status: driver.BuildSuccess,
		build: func(h driver.Handle, notify func(driver.Handle)) driver.Status {
			// The status query inside the callback dereferences the device.
			ctx.devices[0] = nil
			go notify(h)
			return driver.Success
		},
	}
	ctx = fakeContext(t, f)

	fut := ctx.BuildProgramAsync("kernel")
	_, err := waitFuture(t, fut)
	assert.ErrorContains(t, err, "build notification panicked")
	assert.Equal(t, int32(1), f.releasedPrograms.Load())
}

func TestBuildProgramFromReaders(t *testing.T) {
	ctx := hostContext(t)

	p, err := ctx.BuildProgramFromReaders(
		strings.NewReader("__kernel void set_value(__global uchar* data, "),
		strings.NewReader("uchar value) { data[0] = value; }"),
	)
	require.NoError(t, err)
	p.Release()

	boom := errors.New("disk on fire")
	_, err = ctx.BuildProgramFromReaders(
		iotest.ErrReader(boom),
		strings.NewReader(setValueSource),
		iotest.ErrReader(io.ErrUnexpectedEOF),
	)
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], boom)
	assert.ErrorContains(t, errs[1], "read source 2")
}

func TestBuildProgramFromFiles(t *testing.T) {
	ctx := hostContext(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "set_value.cl")
	require.NoError(t, os.WriteFile(path, []byte(setValueSource), 0o600))

	p, err := ctx.BuildProgramFromFiles(path)
	require.NoError(t, err)
	p.Release()

	_, err = ctx.BuildProgramFromFiles(path, filepath.Join(dir, "missing.cl"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	f := ctx.BuildProgramFromFilesAsync(filepath.Join(dir, "missing.cl"))
	_, err = f.Result()
	assert.ErrorIs(t, err, os.ErrNotExist)

	p, err = waitFuture(t, ctx.BuildProgramFromFilesAsync(path))
	require.NoError(t, err)
	p.Release()
}

func TestBuildPrograms(t *testing.T) {
	ctx := hostContext(t)
	drv := ctx.Runtime().Driver().(interface{ LiveObjects() int })

	programs, err := ctx.BuildPrograms(context.Background(),
		[]string{setValueSource},
		[]string{setValueSource, "\n"},
	)
	require.NoError(t, err)
	require.Len(t, programs, 2)
	assert.False(t, Equal(programs[0], programs[1]))
	for _, p := range programs {
		p.Release()
	}

	_, err = ctx.BuildPrograms(context.Background(),
		[]string{setValueSource},
		[]string{brokenSource},
	)
	var be *BuildError
	assert.ErrorAs(t, err, &be)
	assert.Eventually(t, func() bool { return drv.LiveObjects() == 1 },
		time.Second, time.Millisecond, "successful builds released on failure")
}

func TestBuildFuture_Pending(t *testing.T) {
	f := newBuildFuture()
	_, err := f.Result()
	assert.ErrorIs(t, err, ErrBuildPending)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.True(t, f.settle(nil, ErrReleased))
	assert.False(t, f.settle(nil, ErrNoDevices))
	_, err = f.Result()
	assert.ErrorIs(t, err, ErrReleased)
}
