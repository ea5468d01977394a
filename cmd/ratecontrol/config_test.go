package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/ratecontrol/pkg/cli"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const validConfig = `
engine:
  min_rhythm: 1ms
  max_rhythm: 500ms
limiters:
  - name: api
    rate: 100
    unit: s
sliding_window:
  capacity: 5
  window: 2s
telemetry:
  logging:
    level: warn
    format: text
`

// ============================================================================
// config show
// ============================================================================

func TestConfigShow_Defaults(t *testing.T) {
	out, _, err := executeCommand(t, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}

	for _, want := range []string{"engine:", "min_rhythm:", "127.0.0.1:9090", "/healthz", "level: info"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigShow_FileAndEnv(t *testing.T) {
	path := writeFile(t, validConfig)
	t.Setenv("RATECONTROL_ENGINE_MAX_RHYTHM", "2s")

	out, _, err := executeCommand(t, "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}

	for _, want := range []string{"max_rhythm: 2s", "name: api", "level: warn"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigShow_Verbose(t *testing.T) {
	out, _, err := executeCommand(t, "config", "show", "-v")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "level: debug") {
		t.Errorf("--verbose should force debug logging:\n%s", out)
	}
}

// ============================================================================
// config validate
// ============================================================================

func TestConfigValidate_Valid(t *testing.T) {
	path := writeFile(t, validConfig)

	out, _, err := executeCommand(t, "config", "validate", path)
	if err != nil {
		t.Fatalf("config validate failed: %v", err)
	}
	if !strings.Contains(out, "✓") || !strings.Contains(out, "valid") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestConfigValidate_Invalid(t *testing.T) {
	path := writeFile(t, `
engine:
  min_rhythm: 10ms
  max_rhythm: 1ms
limiters:
  - name: api
    rate: -1
`)

	out, _, err := executeCommand(t, "config", "validate", path)
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
	if code := cli.ExitCode(err); code != cli.ExitConfigError {
		t.Errorf("ExitCode() = %d, want %d", code, cli.ExitConfigError)
	}

	for _, want := range []string{"✗", "engine.max_rhythm", "limiters[0].rate"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigValidate_JSON(t *testing.T) {
	path := writeFile(t, `
sliding_window:
  capacity: -3
`)

	out, _, err := executeCommand(t, "config", "validate", path, "--format", "json")
	if err == nil {
		t.Fatal("expected error for invalid config")
	}

	var result configValidation
	if err := json.Unmarshal(jsonPayload(t, out), &result); err != nil {
		t.Fatalf("failed to decode output: %v\n%s", err, out)
	}
	if result.Valid {
		t.Error("result should be invalid")
	}
	if len(result.Errors) != 1 || result.Errors[0].Field != "sliding_window.capacity" {
		t.Errorf("Errors = %+v, want one sliding_window.capacity error", result.Errors)
	}
}

func TestConfigValidate_Unreadable(t *testing.T) {
	out, _, err := executeCommand(t, "config", "validate", filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(out, "failed to read configuration file") {
		t.Errorf("output should carry the cause:\n%s", out)
	}
}

func TestConfigValidate_NoFile(t *testing.T) {
	if _, _, err := executeCommand(t, "config", "validate"); err == nil {
		t.Fatal("expected error without a file")
	}
}
