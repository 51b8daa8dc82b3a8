// Package main implements the mudflap CLI tool.
//
// The tool inspects the runtime configuration and replays recorded
// register/unregister/check sequences through the checking runtime:
//
//	mudflap options --set "-mode-check -persistent-count=16"
//	mudflap replay --metrics testdata/use_after_free.yaml
//	mudflap version
package main

import (
	"fmt"
	"os"

	"github.com/kolkov/mudflap/mudflap"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "options":
		os.Exit(optionsCommand(os.Args[2:], os.Stdout, os.Stderr))
	case "replay":
		os.Exit(replayCommand(os.Args[2:], os.Stdout, os.Stderr))
	case "version", "--version", "-v":
		fmt.Printf("mudflap version %s\n", mudflap.Version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`mudflap - pointer-validity checking runtime

USAGE:
    mudflap <command> [arguments]

COMMANDS:
    options    Show the runtime options and their current values
    replay     Replay a scenario file through the runtime
    version    Show version information
    help       Show this help message

EXAMPLES:
    # Show options as configured by MUDFLAP_OPTIONS plus overrides
    mudflap options --set "-viol-abort -persistent-count=16"

    # Replay a scenario and dump Prometheus metrics afterwards
    mudflap replay --metrics scenario.yaml

    # Fail (exit status 1) when the scenario triggers a violation
    mudflap replay --fail-on-violation scenario.yaml

`)
}
