// Package api holds the process-wide checking runtime used by the public
// mudflap package.
//
// The default runtime is created by Init from the MUDFLAP_OPTIONS
// environment variable, or lazily on the first entry point call. Entry
// points are no-ops while the runtime is disabled.
package api

import (
	"os"
	"sync"

	"go.uber.org/atomic"

	"github.com/kolkov/mudflap/internal/mudflap/engine"
	"github.com/kolkov/mudflap/internal/mudflap/object"
	"github.com/kolkov/mudflap/internal/mudflap/options"
)

// callerSkip is the number of frames between instrumented code and the
// engine: the public facade and this package.
const callerSkip = 2

var (
	// enabled gates every entry point with a single atomic load.
	enabled atomic.Bool

	// rt is the default runtime; nil until Init or first use.
	rt atomic.Pointer[engine.Runtime]

	// initMu serializes runtime creation.
	initMu sync.Mutex

	// onInitError handles option errors of a lazy initialization.
	onInitError atomic.Value
)

// SetInitErrorHandler sets the function called when the runtime is created
// on first use and MUDFLAP_OPTIONS does not parse. Init reports the error
// to its caller instead.
func SetInitErrorHandler(fn func(error)) {
	onInitError.Store(fn)
}

// Init creates the default runtime from MUDFLAP_OPTIONS and enables it.
// Calling Init again after a successful call has no effect.
//
// On a parse error the runtime is still created from the tokens that were
// valid, and the error is returned; options.ErrHelp is returned when the
// options request usage.
func Init() error {
	initMu.Lock()
	defer initMu.Unlock()

	if rt.Load() != nil {
		return nil
	}
	opts, err := options.Parse(os.Getenv(options.EnvVar))
	install(engine.New(opts, engine.WithCallerSkip(callerSkip)))
	return err
}

// InitWithOptions replaces the default runtime with one configured by
// opts and enables it. Pending deferred releases of the previous runtime
// are run first.
func InitWithOptions(opts options.Options, extra ...engine.Option) *engine.Runtime {
	initMu.Lock()
	defer initMu.Unlock()

	if prev := rt.Load(); prev != nil {
		prev.FlushFrees()
	}
	extra = append([]engine.Option{engine.WithCallerSkip(callerSkip)}, extra...)
	r := engine.New(opts, extra...)
	install(r)
	return r
}

func install(r *engine.Runtime) {
	rt.Store(r)
	enabled.Store(true)
}

// Runtime returns the default runtime, creating it from MUDFLAP_OPTIONS on
// first use. Option errors of that creation go to the handler installed by
// SetInitErrorHandler and are otherwise ignored.
func Runtime() *engine.Runtime {
	if r := rt.Load(); r != nil {
		return r
	}
	if err := Init(); err != nil {
		if fn, ok := onInitError.Load().(func(error)); ok && fn != nil {
			fn(err)
		}
	}
	return rt.Load()
}

// Fini disables the runtime, runs every deferred release and writes the
// exit report.
func Fini() {
	r := rt.Load()
	if r == nil {
		return
	}
	r.FlushFrees()
	r.Report()
	enabled.Store(false)
}

// Enable turns the entry points back on.
func Enable() {
	if rt.Load() != nil {
		enabled.Store(true)
	}
}

// Disable turns every entry point into a no-op.
func Disable() {
	enabled.Store(false)
}

// Enabled reports whether the entry points are active.
func Enabled() bool {
	return enabled.Load()
}

// Check validates an access of size bytes at ptr.
func Check(ptr, size uintptr, location string) {
	if !enabled.Load() && rt.Load() != nil {
		return
	}
	Runtime().Check(ptr, size, location)
}

// Register records the object [ptr, ptr+size).
func Register(ptr, size uintptr, typ object.Type, name string) {
	if !enabled.Load() && rt.Load() != nil {
		return
	}
	Runtime().Register(ptr, size, typ, name)
}

// Unregister retires the object registered at ptr with the given size.
func Unregister(ptr, size uintptr) {
	if !enabled.Load() && rt.Load() != nil {
		return
	}
	Runtime().Unregister(ptr, size)
}

// DeferFree hands release to the free queue of the default runtime.
func DeferFree(release func()) {
	Runtime().DeferFree(release)
}

// Report writes the exit report of the default runtime.
func Report() {
	Runtime().Report()
}

// Stats returns a statistics snapshot of the default runtime.
func Stats() engine.Stats {
	return Runtime().Stats()
}

// Reset reconfigures the default runtime with opts and clears its state.
func Reset(opts options.Options) {
	Runtime().Reset(opts)
	Enable()
}
