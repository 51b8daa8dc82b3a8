//go:build !unix

package engine

import (
	"fmt"
	"os"

	"github.com/kolkov/mudflap/internal/mudflap/options"
)

// terminate applies the violation policy. Without signals, abort and segv
// exit the process with the corresponding shell status and gdb is not
// supported.
func terminate(p options.ViolationPolicy, _ *Violation) {
	switch p {
	case options.ViolAbort:
		os.Exit(134)
	case options.ViolSegv:
		os.Exit(139)
	case options.ViolGDB:
		fmt.Fprintln(os.Stderr, "mudflap: viol-gdb is not supported on this platform")
	}
}
