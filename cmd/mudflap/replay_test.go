// replay_test.go tests the 'mudflap replay' command.
package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kolkov/mudflap/internal/mudflap/engine"
	"github.com/kolkov/mudflap/internal/mudflap/object"
)

func loadTestScenario(t *testing.T, name string) *scenario {
	t.Helper()
	sc, err := loadScenario(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("loadScenario(%s) error: %v", name, err)
	}
	return sc
}

// TestReplay_Testdata replays every scenario in testdata.
func TestReplay_Testdata(t *testing.T) {
	tests := []struct {
		file       string
		violations int
		dead       int
		output     string
	}{
		{"use_after_free.yaml", 1, 2, ""},
		{"struct_overread.yaml", 1, 0, ""},
		{"stack_escape.yaml", 1, 0, "mudflap stats:"},
		{"clean.yaml", 0, 0, "number of leaked objects: 0"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			var out bytes.Buffer
			res, err := replay(&out, loadTestScenario(t, tt.file), replayConfig{})
			if err != nil {
				t.Fatalf("replay() error: %v", err)
			}
			if len(res.violations) != tt.violations {
				t.Errorf("Expected %d violations, got %d", tt.violations, len(res.violations))
			}
			if res.stats.DeadObjects != tt.dead {
				t.Errorf("Expected %d dead objects, got %d", tt.dead, res.stats.DeadObjects)
			}
			if !strings.Contains(out.String(), tt.output) {
				t.Errorf("Output missing %q:\n%s", tt.output, out.String())
			}
			if res.ops != len(loadTestScenario(t, tt.file).Ops) {
				t.Errorf("Expected every operation to run, got %d", res.ops)
			}
		})
	}
}

// TestReplay_UseAfterFreeLocation checks which access is reported.
func TestReplay_UseAfterFreeLocation(t *testing.T) {
	res, err := replay(&bytes.Buffer{}, loadTestScenario(t, "use_after_free.yaml"), replayConfig{})
	if err != nil {
		t.Fatalf("replay() error: %v", err)
	}
	if len(res.violations) != 1 {
		t.Fatalf("Expected 1 violation, got %d", len(res.violations))
	}

	v := res.violations[0]
	if v.Kind != engine.KindCheck || v.Location != "memcpy dst" || v.Ptr != 0x10000 {
		t.Errorf("Unexpected violation: kind=%v location=%q ptr=%#x", v.Kind, v.Location, v.Ptr)
	}
}

// TestReplay_VerboseOverride applies command-line options over the file's.
func TestReplay_VerboseOverride(t *testing.T) {
	var out bytes.Buffer
	cfg := replayConfig{options: "-verbose-violations"}
	if _, err := replay(&out, loadTestScenario(t, "struct_overread.yaml"), cfg); err != nil {
		t.Fatalf("replay() error: %v", err)
	}

	for _, want := range []string{"mudflap violation 1 (check)", "location=`bp->extra'", "name=`(main) b'"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Output missing %q:\n%s", want, out.String())
		}
	}
}

// TestReplay_Metrics dumps the collector in text format.
func TestReplay_Metrics(t *testing.T) {
	var out bytes.Buffer
	cfg := replayConfig{metrics: true}
	if _, err := replay(&out, loadTestScenario(t, "use_after_free.yaml"), cfg); err != nil {
		t.Fatalf("replay() error: %v", err)
	}

	for _, want := range []string{
		"# TYPE mudflap_violations_total counter",
		`mudflap_violations_total{kind="check"} 1`,
		"mudflap_dead_objects 2",
		"mudflap_live_objects 0",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Metrics missing %q:\n%s", want, out.String())
		}
	}
}

// TestReplay_VersionGate rejects scenarios for a newer runtime.
func TestReplay_VersionGate(t *testing.T) {
	sc := &scenario{Requires: "v9.0.0"}
	if _, err := replay(&bytes.Buffer{}, sc, replayConfig{}); err == nil {
		t.Fatal("Expected error for incompatible scenario")
	}
}

// TestReplay_BadOptions reports unrecognized option tokens.
func TestReplay_BadOptions(t *testing.T) {
	sc := &scenario{Options: "-no-such-option"}
	_, err := replay(&bytes.Buffer{}, sc, replayConfig{})
	if err == nil || !strings.Contains(err.Error(), "no-such-option") {
		t.Fatalf("Expected unrecognized option error, got %v", err)
	}
}

// TestParseScenario covers the file format.
func TestParseScenario(t *testing.T) {
	sc, err := parseScenario(strings.NewReader(`
options: "-mode-check"
ops:
  - {op: register, ptr: 0x1000, size: 4_096, type: static, name: table}
  - {op: check, ptr: 4096, size: 8}
`))
	if err != nil {
		t.Fatalf("parseScenario() error: %v", err)
	}
	if len(sc.Ops) != 2 {
		t.Fatalf("Expected 2 ops, got %d", len(sc.Ops))
	}
	reg := sc.Ops[0]
	if reg.Ptr != 0x1000 || reg.Size != 4096 || reg.typ != object.TypeStatic || reg.Name != "table" {
		t.Errorf("Unexpected register op: %+v", reg)
	}
	if sc.Ops[1].Ptr != 0x1000 {
		t.Errorf("Expected decimal address 4096, got %#x", sc.Ops[1].Ptr)
	}
}

// TestParseScenario_Errors covers malformed files.
func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown op", "ops:\n  - {op: free, ptr: 1}\n"},
		{"unknown type", "ops:\n  - {op: register, ptr: 1, size: 1, type: mmap}\n"},
		{"bad address", "ops:\n  - {op: check, ptr: here}\n"},
		{"unknown field", "opts: \"-mode-nop\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseScenario(strings.NewReader(tt.doc)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

// TestReplayCommand runs the command end to end.
func TestReplayCommand(t *testing.T) {
	files := []string{filepath.Join("testdata", "clean.yaml"), filepath.Join("testdata", "struct_overread.yaml")}

	var stdout, stderr bytes.Buffer
	if code := replayCommand(files, &stdout, &stderr); code != 0 {
		t.Errorf("Expected exit code 0, got %d (stderr: %s)", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "struct_overread.yaml: 4 operations, 1 violations") {
		t.Errorf("Unexpected summary:\n%s", stdout.String())
	}

	stdout.Reset()
	args := append([]string{"--fail-on-violation"}, files...)
	if code := replayCommand(args, &stdout, &stderr); code != 1 {
		t.Errorf("Expected exit code 1 with --fail-on-violation, got %d", code)
	}

	if code := replayCommand(nil, &stdout, &stderr); code != 2 {
		t.Errorf("Expected exit code 2 without files, got %d", code)
	}
}
