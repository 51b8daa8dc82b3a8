// options.go implements the 'mudflap options' command.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/kolkov/mudflap/internal/mudflap/options"
)

// optionsCommand prints the option table with the values that
// MUDFLAP_OPTIONS, followed by --set, would produce.
//
// Example:
//
//	mudflap options
//	mudflap options --set "-mode-populate -lc-shift=4"
func optionsCommand(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("options", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	set := fs.String("set", "", "option string applied after $"+options.EnvVar)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	opts, err := options.Parse(os.Getenv(options.EnvVar) + " " + *set)
	if err != nil && !errors.Is(err, options.ErrHelp) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		options.Usage(stderr, opts)
		return 1
	}

	options.Usage(stdout, opts)
	fmt.Fprintf(stdout, "\n%s=%q\n", options.EnvVar, opts.String())
	return 0
}
