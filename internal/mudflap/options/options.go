// Package options parses the mudflap runtime option string.
//
// Options are given as one whitespace-separated string, normally taken from
// the MUDFLAP_OPTIONS environment variable:
//
//	MUDFLAP_OPTIONS="-mode-check -viol-abort -print-leaks backtrace=8"
//
// Each token may carry a leading '-'. Flags are enabled by name and
// disabled with a "no-" prefix. Integer options are set with name=N
// (decimal or 0x hex); "no-name" resets them to zero. The exclusive
// mode-* and viol-* tokens select the checking mode and violation policy.
// The tokens "help" and "?" request usage output.
package options

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
)

// EnvVar is the environment variable read by the default runtime.
const EnvVar = "MUDFLAP_OPTIONS"

// ErrHelp is returned by Parse when the option string asks for usage.
var ErrHelp = errors.New("help requested")

// Mode selects what the runtime does on each entry point.
type Mode int

const (
	// ModeNop disables all checking.
	ModeNop Mode = iota
	// ModePopulate fills the lookup cache without checking.
	ModePopulate
	// ModeCheck performs full checking.
	ModeCheck
	// ModeViolate reports a violation on every call.
	ModeViolate
)

func (m Mode) String() string {
	switch m {
	case ModeNop:
		return "nop"
	case ModePopulate:
		return "populate"
	case ModeCheck:
		return "check"
	case ModeViolate:
		return "violate"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ViolationPolicy selects the terminal action after a violation.
type ViolationPolicy int

const (
	// ViolNop continues execution.
	ViolNop ViolationPolicy = iota
	// ViolAbort sends SIGABRT to the process.
	ViolAbort
	// ViolSegv sends SIGSEGV to the process.
	ViolSegv
	// ViolGDB attaches a debugger and waits for it.
	ViolGDB
)

func (p ViolationPolicy) String() string {
	switch p {
	case ViolNop:
		return "nop"
	case ViolAbort:
		return "abort"
	case ViolSegv:
		return "segv"
	case ViolGDB:
		return "gdb"
	}
	return fmt.Sprintf("ViolationPolicy(%d)", int(p))
}

// Upper bounds applied after parsing.
const (
	MaxFreeQueueLength = 255
	MaxPersistentCount = 256
	MaxLCMask          = 4095
	MaxLCShift         = 63
)

// Options is the full runtime configuration.
type Options struct {
	Mode      Mode
	Violation ViolationPolicy

	TraceCalls         bool
	VerboseTrace       bool
	CollectStats       bool
	InternalChecking   bool
	PrintLeaks         bool
	VerboseViolations  bool
	OptimizeObjectTree bool
	MultiThreaded      bool
	HeurProcMap        bool
	HeurStackBound     bool
	HeurStartEnd       bool

	// FreeQueueLength is the number of deferred releases kept before the
	// oldest one runs.
	FreeQueueLength int
	// PersistentCount is the cemetery capacity per object type.
	PersistentCount int
	// CrumpleZone is the gap left around a real object carved out of a Guess.
	CrumpleZone uintptr
	// Backtrace is the number of frames captured per event.
	Backtrace int
	// LCMask and LCShift parameterize the lookup cache hash.
	LCMask  uintptr
	LCShift uint
}

// Default returns the options in effect when no option string is given.
func Default() Options {
	return Options{
		Mode:        ModeCheck,
		Violation:   ViolNop,
		HeurProcMap: true,
		CrumpleZone: 32,
		Backtrace:   4,
		LCMask:      1023,
		LCShift:     2,
	}
}

// Parse applies s on top of Default.
func Parse(s string) (Options, error) {
	o := Default()
	err := o.Apply(s)
	return o, err
}

// Apply parses s and updates o in place. Every token is processed even
// after an error; all unrecognized tokens are reported together. When
// help is requested the returned error wraps ErrHelp.
func (o *Options) Apply(s string) error {
	var errs error
	help := false

	for _, tok := range strings.Fields(s) {
		tok = strings.TrimPrefix(tok, "-")
		if tok == "help" || tok == "?" {
			help = true
			continue
		}
		if err := o.applyToken(tok); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	o.bound()

	if errs != nil {
		return errors.Wrap(errs, "mudflap options")
	}
	if help {
		return ErrHelp
	}
	return nil
}

func (o *Options) applyToken(tok string) error {
	name, value, hasValue := strings.Cut(tok, "=")

	if spec, ok := lookup(name); ok {
		switch spec.kind {
		case kindSet, kindBool:
			if hasValue {
				return errors.Errorf("option %q takes no value", name)
			}
			o.set(spec.key, 1)
		case kindInt:
			if !hasValue {
				return errors.Errorf("option %q requires a value", name)
			}
			n, err := cast.ToInt64E(value)
			if err != nil || n < 0 {
				return errors.Errorf("invalid value %q for option %q", value, name)
			}
			o.set(spec.key, n)
		}
		return nil
	}

	if neg, ok := strings.CutPrefix(name, "no-"); ok && !hasValue {
		if spec, ok := lookup(neg); ok && spec.kind != kindSet {
			o.set(spec.key, 0)
			return nil
		}
	}

	return errors.Errorf("unrecognized option %q", tok)
}

// bound clamps integer options to their supported ranges.
func (o *Options) bound() {
	o.FreeQueueLength &= MaxFreeQueueLength
	o.PersistentCount = min(o.PersistentCount, MaxPersistentCount)
	o.LCMask &= MaxLCMask
	o.LCShift = min(o.LCShift, MaxLCShift)
}

// String renders the options as an option string that Parse accepts.
func (o Options) String() string {
	var b strings.Builder
	for _, spec := range table {
		switch spec.kind {
		case kindSet:
			if o.get(spec.key) == 1 {
				b.WriteString("-" + spec.name + " ")
			}
		case kindBool:
			if o.get(spec.key) == 1 {
				b.WriteString("-" + spec.name + " ")
			} else {
				b.WriteString("-no-" + spec.name + " ")
			}
		case kindInt:
			fmt.Fprintf(&b, "-%s=%d ", spec.name, o.get(spec.key))
		}
	}
	return strings.TrimSpace(b.String())
}

// Usage writes the option table with the values in current.
func Usage(w io.Writer, current Options) {
	fmt.Fprintf(w, "This is a mudflap runtime. Options are read from $%s.\n", EnvVar)
	fmt.Fprintf(w, "Usage: [-option]... where option is one of:\n\n")
	for _, spec := range table {
		var state string
		switch spec.kind {
		case kindSet:
			if current.get(spec.key) == 1 {
				state = "[active]"
			}
		case kindBool:
			state = "[disabled]"
			if current.get(spec.key) == 1 {
				state = "[enabled]"
			}
		case kindInt:
			state = fmt.Sprintf("[%d]", current.get(spec.key))
		}
		name := spec.name
		if spec.kind == kindInt {
			name += "=N"
		}
		fmt.Fprintf(w, "-%-23s %-51s %s\n", name, spec.desc, state)
	}
	fmt.Fprintln(w)
}
