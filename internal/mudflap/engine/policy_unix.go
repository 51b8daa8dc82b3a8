//go:build unix

package engine

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/kolkov/mudflap/internal/mudflap/options"
)

// terminate applies the violation policy to the current process.
func terminate(p options.ViolationPolicy, _ *Violation) {
	switch p {
	case options.ViolAbort:
		raise(unix.SIGABRT)
	case options.ViolSegv:
		raise(unix.SIGSEGV)
	case options.ViolGDB:
		attachDebugger()
	}
}

// raise sends sig to the process. Should the signal be ignored, the
// process exits with the status a shell reports for it.
func raise(sig unix.Signal) {
	_ = unix.Kill(unix.Getpid(), sig)
	os.Exit(128 + int(sig))
}

// attachDebugger runs gdb against the process and waits for it to exit.
func attachDebugger() {
	cmd := exec.Command("gdb", fmt.Sprintf("--pid=%d", unix.Getpid()))
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "mudflap: cannot run gdb: %v\n", err)
	}
}
