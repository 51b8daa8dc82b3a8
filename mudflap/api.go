// Package mudflap is the public API of the pointer-validity runtime.
//
// See doc.go for detailed documentation and examples.
package mudflap

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	internal "github.com/kolkov/mudflap/internal/mudflap/api"
	"github.com/kolkov/mudflap/internal/mudflap/engine"
	"github.com/kolkov/mudflap/internal/mudflap/object"
	"github.com/kolkov/mudflap/internal/mudflap/options"
)

// Type classifies the storage behind a registered object.
type Type = object.Type

// Object types accepted by Register.
const (
	Unknown = object.TypeUnknown
	Heap    = object.TypeHeap
	Stack   = object.TypeStack
	Static  = object.TypeStatic
	Guess   = object.TypeGuess
)

// Stats is a snapshot of the runtime statistics.
type Stats = engine.Stats

// Init initializes the runtime from the MUDFLAP_OPTIONS environment
// variable.
//
// Init must be called before any other operation; otherwise the runtime
// is created with the same options on first use. If the options request
// help, Init prints the option table and exits with status 0. If they
// contain unrecognized tokens, Init prints the errors and the option table
// and exits with status 1.
//
//	func main() {
//		mudflap.Init()
//		defer mudflap.Fini()
//		// ... rest of program
//	}
//
// Init is safe to call multiple times (subsequent calls are no-ops).
func Init() {
	if err := internal.Init(); err != nil {
		exitOnOptionError(err)
	}
}

func init() {
	internal.SetInitErrorHandler(exitOnOptionError)
}

// exitOnOptionError prints usage for a MUDFLAP_OPTIONS error and exits.
func exitOnOptionError(err error) {
	current := internal.Runtime().Options()
	if errors.Is(err, options.ErrHelp) {
		options.Usage(os.Stdout, current)
		os.Exit(0)
	}
	fmt.Fprintf(os.Stderr, "%v\n", err)
	options.Usage(os.Stderr, current)
	os.Exit(1)
}

// Fini runs pending deferred frees, prints the exit report and disables
// the runtime.
//
// The report includes:
//   - statistics, with collect-stats
//   - heap objects never unregistered, with print-leaks
func Fini() {
	internal.Fini()
}

// Check validates an access of size bytes at addr.
//
// An access that does not lie entirely inside one registered object is a
// violation: it is reported (with verbose-violations) and the configured
// violation policy is applied. location is a free-form description of the
// access site, such as "main.go:42 (buf[i])".
//
// Example:
//
//	// Original code:
//	buf[i] = 0
//
//	// Instrumented code:
//	mudflap.Check(uintptr(unsafe.Pointer(&buf[i])), 1, "main.go:42 (buf[i])")
//	buf[i] = 0
func Check(addr, size uintptr, location string) {
	internal.Check(addr, size, location)
}

// Register records the object [addr, addr+size) of the given type. name
// appears in reports.
//
// Registering an object over a live object of another registration is a
// violation, and the new object is not recorded. A zero size is treated as
// one byte.
func Register(addr, size uintptr, typ Type, name string) {
	internal.Register(addr, size, typ, name)
}

// Unregister retires the object registered at addr.
//
// addr must be the start of a live object and size must not exceed its
// size; anything else is a violation. Retired objects are remembered (with
// persistent-count) so that later accesses can be reported as
// use-after-free.
func Unregister(addr, size uintptr) {
	internal.Unregister(addr, size)
}

// DeferFree queues release behind the last free-queue-length releases,
// keeping freed memory out of circulation for a while.
func DeferFree(release func()) {
	internal.DeferFree(release)
}

// Report prints the statistics and leak report without finalizing.
func Report() {
	internal.Report()
}

// GetStats returns a snapshot of the runtime statistics.
func GetStats() Stats {
	return internal.Stats()
}

// Enable turns checking back on after Disable.
func Enable() {
	internal.Enable()
}

// Disable turns Check, Register and Unregister into no-ops.
func Disable() {
	internal.Disable()
}

// Configure replaces the runtime with one configured by the option string
// opts, ignoring MUDFLAP_OPTIONS. All objects and statistics of the
// previous runtime are discarded. Unrecognized tokens are reported in the
// returned error; the valid ones still take effect.
func Configure(opts string) error {
	o, err := options.Parse(opts)
	internal.InitWithOptions(o)
	if errors.Is(err, options.ErrHelp) {
		return nil
	}
	return err
}
