package host

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/gogpu/opencl/driver"
)

// unit is the result of compiling one program source. Units are immutable
// and shared between programs through the compile cache.
type unit struct {
	kernels map[string]*KernelDef
	names   []string
	log     string
}

func (u *unit) ok() bool { return u.log == "" }

type program struct {
	context driver.Handle
	source  string

	mu       sync.Mutex
	building bool
	options  string
	status   map[driver.Handle]driver.BuildStatus
	logs     map[driver.Handle]string
	built    *unit
}

func sourceKey(src string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(src))
	return h.Sum64()
}

// compile parses src, reusing a cached unit when the same source was
// compiled before.
func (d *Driver) compile(src string) *unit {
	return d.compiled.GetOrCreate(sourceKey(src), func() *unit {
		defs, diags := parseSource(src)
		u := &unit{kernels: make(map[string]*KernelDef, len(defs))}
		for _, def := range defs {
			if _, ok := d.opts.kernels[def.Name]; !ok {
				diags = append(diags, diagnostic{def.Line, def.Col,
					fmt.Sprintf("kernel '%s' has no host implementation", def.Name)})
				continue
			}
			u.kernels[def.Name] = def
			u.names = append(u.names, def.Name)
		}
		u.log = formatLog(diags)
		if !u.ok() {
			u.kernels, u.names = nil, nil
		}
		return u
	})
}

// CreateProgramWithSource implements driver.Driver. The strings are
// concatenated into one translation unit.
func (d *Driver) CreateProgramWithSource(ctx driver.Handle, sources []string) (driver.Handle, driver.Status) {
	if len(sources) == 0 {
		return 0, driver.InvalidValue
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	obj, status := d.lookupLocked(ctx, kindContext)
	if !status.OK() {
		return 0, status
	}
	p := &program{
		context: ctx,
		source:  strings.Join(sources, ""),
		status:  make(map[driver.Handle]driver.BuildStatus),
		logs:    make(map[driver.Handle]string),
	}
	for _, dev := range obj.(*clContext).devices {
		p.status[dev] = driver.BuildNone
	}
	d.retainLocked(ctx)
	return d.insertLocked(kindProgram, p), driver.Success
}

func (d *Driver) program(h driver.Handle) (*program, driver.Status) {
	obj, status := d.lookup(h, kindProgram)
	if !status.OK() {
		return nil, status
	}
	return obj.(*program), driver.Success
}

// BuildProgram implements driver.Driver. With a notify callback the build
// runs on its own goroutine and notify is called once it completes.
func (d *Driver) BuildProgram(h driver.Handle, devices []driver.Handle, options string, notify func(driver.Handle)) driver.Status {
	p, status := d.program(h)
	if !status.OK() {
		return status
	}
	if err := checkBuildOptions(options); err != "" {
		slogger().Debug("host: rejected build options", "options", options, "reason", err)
		return driver.InvalidBuildOptions
	}

	p.mu.Lock()
	if p.building {
		p.mu.Unlock()
		return driver.InvalidOperation
	}
	if len(devices) == 0 {
		for dev := range p.status {
			devices = append(devices, dev)
		}
	}
	for _, dev := range devices {
		if _, ok := p.status[dev]; !ok {
			p.mu.Unlock()
			return driver.InvalidDevice
		}
	}
	p.building = true
	p.options = options
	for _, dev := range devices {
		p.status[dev] = driver.BuildInProgress
	}
	p.mu.Unlock()

	if notify == nil {
		if d.finishBuild(p, devices) {
			return driver.Success
		}
		return driver.BuildProgramFailure
	}

	go func() {
		d.finishBuild(p, devices)
		notify(h)
	}()
	return driver.Success
}

// finishBuild compiles p and records per-device results.
func (d *Driver) finishBuild(p *program, devices []driver.Handle) bool {
	u := d.compile(p.source)

	p.mu.Lock()
	defer p.mu.Unlock()

	st := driver.BuildSuccess
	if !u.ok() {
		st = driver.BuildError
	}
	for _, dev := range devices {
		p.status[dev] = st
		p.logs[dev] = u.log
	}
	if u.ok() {
		p.built = u
	}
	p.building = false

	slogger().Debug("host: program built", "status", st.String(), "kernels", len(u.names))
	return u.ok()
}

// checkBuildOptions accepts the option syntax of clBuildProgram: every
// token is a flag, and -D, -I take a value.
func checkBuildOptions(opts string) string {
	fields := strings.Fields(opts)
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if !strings.HasPrefix(f, "-") {
			return fmt.Sprintf("unexpected token %q", f)
		}
		if (f == "-D" || f == "-I") && i+1 == len(fields) {
			return fmt.Sprintf("%s requires a value", f)
		}
		if f == "-D" || f == "-I" {
			i++
		}
	}
	return ""
}

// ProgramInfo implements driver.Driver.
func (d *Driver) ProgramInfo(h driver.Handle, param driver.ProgramInfo, dst []byte) (int, driver.Status) {
	p, status := d.program(h)
	if !status.OK() {
		return 0, status
	}

	p.mu.Lock()
	built := p.built
	devices := make([]driver.Handle, 0, len(p.status))
	for _, dev := range d.devices {
		if _, ok := p.status[dev]; ok {
			devices = append(devices, dev)
		}
	}
	p.mu.Unlock()

	switch param {
	case driver.ProgramReferenceCount:
		return reply(dst, infoUint32(d.refCount(h)))
	case driver.ProgramContext:
		return reply(dst, infoHandles([]driver.Handle{p.context}))
	case driver.ProgramNumDevices:
		return reply(dst, infoUint32(uint32(len(devices))))
	case driver.ProgramDevices:
		return reply(dst, infoHandles(devices))
	case driver.ProgramSource:
		return reply(dst, infoString(p.source))
	case driver.ProgramNumKernels:
		if built == nil {
			return 0, driver.InvalidProgramExecutable
		}
		return reply(dst, infoSize(uintptr(len(built.names))))
	case driver.ProgramKernelNames:
		if built == nil {
			return 0, driver.InvalidProgramExecutable
		}
		return reply(dst, infoString(strings.Join(built.names, ";")))
	default:
		return 0, driver.InvalidValue
	}
}

// ProgramBuildInfo implements driver.Driver.
func (d *Driver) ProgramBuildInfo(h, dev driver.Handle, param driver.ProgramBuildInfo, dst []byte) (int, driver.Status) {
	p, status := d.program(h)
	if !status.OK() {
		return 0, status
	}

	p.mu.Lock()
	st, ok := p.status[dev]
	log, options := p.logs[dev], p.options
	p.mu.Unlock()
	if !ok {
		return 0, driver.InvalidDevice
	}

	switch param {
	case driver.ProgramBuildStatus:
		return reply(dst, infoInt32(int32(st)))
	case driver.ProgramBuildOptions:
		return reply(dst, infoString(options))
	case driver.ProgramBuildLog:
		return reply(dst, infoString(log))
	default:
		return 0, driver.InvalidValue
	}
}

// ReleaseProgram implements driver.Driver.
func (d *Driver) ReleaseProgram(h driver.Handle) driver.Status {
	return d.release(h, kindProgram)
}
