// scenario.go defines the replay scenario file format.
package main

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/kolkov/mudflap/internal/mudflap/object"
)

// scenario is a recorded sequence of runtime operations:
//
//	requires: "0.1"
//	options: "-persistent-count=8"
//	ops:
//	  - {op: register, ptr: 0x1000, size: 16, type: heap, name: buf}
//	  - {op: check, ptr: 0x100c, size: 8, location: "main.c:12"}
//	  - {op: unregister, ptr: 0x1000, size: 16}
type scenario struct {
	// Requires is the minimum runtime version the scenario was written for.
	Requires string `yaml:"requires"`
	// Options is an option string applied before command-line overrides.
	Options string      `yaml:"options"`
	Ops     []operation `yaml:"ops"`
}

type opKind string

const (
	opRegister   opKind = "register"
	opUnregister opKind = "unregister"
	opCheck      opKind = "check"
	opReport     opKind = "report"
)

type operation struct {
	Op       opKind  `yaml:"op"`
	Ptr      address `yaml:"ptr"`
	Size     address `yaml:"size"`
	Type     string  `yaml:"type"`
	Name     string  `yaml:"name"`
	Location string  `yaml:"location"`

	typ object.Type
}

// address is an integer written in decimal or 0x-prefixed hex.
type address uintptr

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *address) UnmarshalYAML(node *yaml.Node) error {
	v, err := cast.ToUint64E(strings.ReplaceAll(node.Value, "_", ""))
	if err != nil {
		return errors.Errorf("line %d: invalid address %q", node.Line, node.Value)
	}
	*a = address(v)
	return nil
}

// loadScenario reads and validates a scenario file.
func loadScenario(path string) (*scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open scenario")
	}
	defer func() { _ = f.Close() }()

	sc, err := parseScenario(f)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", path)
	}
	return sc, nil
}

func parseScenario(r io.Reader) (*scenario, error) {
	var sc scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	for i := range sc.Ops {
		op := &sc.Ops[i]
		switch op.Op {
		case opRegister:
			typ, err := object.ParseType(op.Type)
			if err != nil {
				return nil, errors.Wrapf(err, "op %d", i+1)
			}
			op.typ = typ
		case opUnregister, opCheck, opReport:
		default:
			return nil, errors.Errorf("op %d: unknown operation %q", i+1, op.Op)
		}
	}
	return &sc, nil
}
