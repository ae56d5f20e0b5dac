//go:build (((linux || freebsd || darwin) && !cgo) || windows) && (amd64 || arm64)

package native

import (
	"sync"

	"github.com/go-webgpu/goffi/ffi"

	"github.com/gogpu/opencl/driver"
)

// goffi trampolines are never freed, so every build shares one and
// completions are routed by program handle.
var (
	trampolineOnce sync.Once
	trampoline     uintptr

	pending sync.Map // driver.Handle -> func(driver.Handle)
)

func buildTrampoline() uintptr {
	trampolineOnce.Do(func() {
		trampoline = ffi.NewCallback(onBuildComplete)
	})
	return trampoline
}

// onBuildComplete runs on a thread owned by the OpenCL implementation.
// The notification is handed to a goroutine so it may call back into
// the library.
func onBuildComplete(program, _ uintptr) {
	h := driver.Handle(program)
	fn, ok := pending.LoadAndDelete(h)
	if !ok {
		slogger().Debug("native: unexpected build notification", "program", program)
		return
	}
	go fn.(func(driver.Handle))(h)
}

// register records notify for h. It fails if a build of h is already
// waiting for its notification.
func register(h driver.Handle, notify func(driver.Handle)) bool {
	_, loaded := pending.LoadOrStore(h, notify)
	return !loaded
}

func unregister(h driver.Handle) {
	pending.Delete(h)
}
