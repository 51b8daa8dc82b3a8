// replay.go implements the 'mudflap replay' command.
package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/pflag"

	"github.com/kolkov/mudflap/internal/mudflap/engine"
	"github.com/kolkov/mudflap/internal/mudflap/metrics"
	"github.com/kolkov/mudflap/internal/mudflap/options"
	"github.com/kolkov/mudflap/mudflap"
)

type replayConfig struct {
	options         string
	metrics         bool
	failOnViolation bool
}

// replayResult summarizes one replay.
type replayResult struct {
	ops        int
	violations []*engine.Violation
	stats      engine.Stats
}

// replayCommand replays each scenario file given in args.
//
// Example:
//
//	mudflap replay --options "-verbose-violations" testdata/use_after_free.yaml
func replayCommand(args []string, stdout, stderr io.Writer) int {
	var cfg replayConfig
	fs := pflag.NewFlagSet("replay", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&cfg.options, "options", "o", "", "option string applied after the scenario's own options")
	fs.BoolVarP(&cfg.metrics, "metrics", "m", false, "print Prometheus metrics after each scenario")
	fs.BoolVar(&cfg.failOnViolation, "fail-on-violation", false, "exit with status 1 if any violation occurred")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "Error: no scenario files specified")
		return 2
	}

	total := 0
	for _, path := range fs.Args() {
		sc, err := loadScenario(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		res, err := replay(stdout, sc, cfg)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
			return 1
		}
		fmt.Fprintf(stdout, "%s: %d operations, %d violations\n", path, res.ops, len(res.violations))
		total += len(res.violations)
	}

	if cfg.failOnViolation && total > 0 {
		return 1
	}
	return 0
}

// replay runs sc on a fresh runtime writing its reports to w. Violations
// are recorded rather than terminating the process, whatever the policy.
func replay(w io.Writer, sc *scenario, cfg replayConfig) (*replayResult, error) {
	if sc.Requires != "" && !mudflap.Compatible(sc.Requires) {
		return nil, errors.Errorf("scenario requires runtime %s, have %s", sc.Requires, mudflap.Version)
	}

	opts, err := options.Parse(sc.Options + " " + cfg.options)
	if err != nil && !errors.Is(err, options.ErrHelp) {
		return nil, err
	}

	res := &replayResult{}
	rt := engine.New(opts,
		engine.WithOutput(w),
		engine.WithTerminator(func(_ options.ViolationPolicy, v *engine.Violation) {
			res.violations = append(res.violations, v)
		}),
	)

	for _, op := range sc.Ops {
		switch op.Op {
		case opRegister:
			rt.Register(uintptr(op.Ptr), uintptr(op.Size), op.typ, op.Name)
		case opUnregister:
			rt.Unregister(uintptr(op.Ptr), uintptr(op.Size))
		case opCheck:
			rt.Check(uintptr(op.Ptr), uintptr(op.Size), op.Location)
		case opReport:
			rt.Report()
		}
		res.ops++
	}

	rt.FlushFrees()
	rt.Report()
	res.stats = rt.Stats()

	if cfg.metrics {
		if err := writeMetrics(w, rt); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// writeMetrics renders the runtime statistics in the Prometheus text
// exposition format.
func writeMetrics(w io.Writer, src metrics.Source) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewCollector(src)); err != nil {
		return errors.Wrap(err, "register collector")
	}
	mfs, err := reg.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrap(err, "write metrics")
		}
	}
	return nil
}
