package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xyproto/cinder/internal/sim"
)

const testdata = "internal/codeobj/testdata"

func runCLI(t *testing.T, cfg *Config, args ...string) (string, error) {
	t.Helper()
	if cfg == nil {
		cfg = &Config{MaxSteps: sim.DefaultMaxSteps}
	}
	var stdout, stderr bytes.Buffer
	err := RunCLI(args, cfg, &stdout, &stderr)
	return stdout.String(), err
}

// TestRun tests compiling and calling every sample on the simulated host
func TestRun(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"identity.toml", "100"}, "identity(100) = 100"},
		{[]string{"identity.toml"}, "identity(7) = 7"},
		{[]string{"guard.toml"}, "guard(None) = False"},
		{[]string{"guard.toml", "0"}, "guard(0) = True"},
		{[]string{"greet.toml"}, `= "hello"`},
		{[]string{"spin.toml", "True"}, "spin(True) = None"},
	}

	for _, tt := range tests {
		args := append([]string{"run", filepath.Join(testdata, tt.args[0])}, tt.args[1:]...)
		out, err := runCLI(t, nil, args...)
		if err != nil {
			t.Errorf("run %v failed: %v\n%s", tt.args, err, out)
			continue
		}
		if !strings.Contains(out, tt.want) {
			t.Errorf("run %v: output lacks %q:\n%s", tt.args, tt.want, out)
		}
	}
}

// TestRunArgumentCount tests that the argument count is checked
func TestRunArgumentCount(t *testing.T) {
	_, err := runCLI(t, nil, "run", filepath.Join(testdata, "identity.toml"), "1", "2")
	if err == nil || !strings.Contains(err.Error(), "takes 1 arguments") {
		t.Errorf("got %v", err)
	}
}

// TestRunStepLimit tests that the configured step limit reaches the simulator
func TestRunStepLimit(t *testing.T) {
	_, err := runCLI(t, &Config{MaxSteps: 10}, "run", filepath.Join(testdata, "spin.toml"))
	if !errors.Is(err, sim.ErrStepLimit) {
		t.Errorf("got %v, want step limit", err)
	}
}

// TestInspect tests the commands that only print
func TestInspect(t *testing.T) {
	greet := filepath.Join(testdata, "greet.toml")
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"blocks", greet}, []string{"LOAD_GLOBAL", "; blocks", "bb0  [0, 16)", "; cfg"}},
		{[]string{"asm", greet}, []string{"; greet:", "ret", "; globals"}},
		{[]string{"roundtrip", filepath.Join(testdata, "spin.toml")}, []string{"ok: "}},
		{[]string{"version"}, []string{versionString, "platform"}},
		{[]string{"help"}, []string{"USAGE"}},
		{nil, []string{"COMMANDS"}},
	}

	for _, tt := range tests {
		out, err := runCLI(t, nil, tt.args...)
		if err != nil {
			t.Errorf("%v failed: %v", tt.args, err)
			continue
		}
		for _, want := range tt.want {
			if !strings.Contains(out, want) {
				t.Errorf("%v: output lacks %q:\n%s", tt.args, want, out)
			}
		}
	}
}

// TestPack tests that a packed file can be used like the TOML file it came from
func TestPack(t *testing.T) {
	packed := filepath.Join(t.TempDir(), "greet.cbor")
	out, err := runCLI(t, nil, "pack", filepath.Join(testdata, "greet.toml"), packed)
	if err != nil {
		t.Fatalf("pack failed: %v", err)
	}
	if !strings.Contains(out, "wrote ") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = runCLI(t, nil, "run", packed)
	if err != nil {
		t.Fatalf("run of packed file failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, `greet(object()) = "hello"`) {
		t.Errorf("unexpected output:\n%s", out)
	}
}

// TestCheck tests translating several files at once
func TestCheck(t *testing.T) {
	files, err := filepath.Glob(filepath.Join(testdata, "*.toml"))
	if err != nil || len(files) == 0 {
		t.Fatalf("no samples: %v", err)
	}
	out, err := runCLI(t, nil, append([]string{"check"}, files...)...)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if want := "translated"; !strings.Contains(out, want) || strings.Contains(out, "fallback") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

// TestUnknownCommand tests the suggestion for a mistyped command
func TestUnknownCommand(t *testing.T) {
	_, err := runCLI(t, nil, "rum")
	if err == nil || !strings.Contains(err.Error(), `did you mean "run"?`) {
		t.Errorf("got %v", err)
	}
}

// TestLoadConfig tests reading the environment
func TestLoadConfig(t *testing.T) {
	t.Setenv("CINDER_SIM_MAX_STEPS", "50")
	t.Setenv("CINDER_VERBOSE", "true")
	t.Setenv("CINDER_CALL_SYMBOL", "_PyFunction_Vectorcall")

	cfg := LoadConfig()
	if cfg.MaxSteps != 50 {
		t.Errorf("MaxSteps = %d", cfg.MaxSteps)
	}
	if !cfg.Verbose || cfg.verbosity() != 1 {
		t.Errorf("Verbose = %v, verbosity %d", cfg.Verbose, cfg.verbosity())
	}
	if len(cfg.overrides()) != 1 {
		t.Errorf("overrides = %v", cfg.overrides())
	}

	// Later changes are picked up by the next load.
	t.Setenv("CINDER_SIM_MAX_STEPS", "")
	t.Setenv("CINDER_CALL_SYMBOL", "")
	cfg = LoadConfig()
	if cfg.MaxSteps != sim.DefaultMaxSteps || cfg.overrides() != nil {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	t.Setenv("CINDER_SIM_MAX_STEPS", "75")
	if cfg = LoadConfig(); cfg.MaxSteps != 75 {
		t.Errorf("MaxSteps = %d after changing the environment, want 75", cfg.MaxSteps)
	}
}
