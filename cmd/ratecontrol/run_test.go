package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"mercator-hq/ratecontrol/pkg/cli"
	"mercator-hq/ratecontrol/pkg/config"
	"mercator-hq/ratecontrol/pkg/history"
	"mercator-hq/ratecontrol/pkg/ratelimit"
	"mercator-hq/ratecontrol/pkg/telemetry/logging"
)

func TestRunCommand_DryRun(t *testing.T) {
	out, _, err := executeCommand(t, "run", "--dry-run")
	if err != nil {
		t.Fatalf("run --dry-run failed: %v", err)
	}
	if !strings.Contains(out, "✓ Configuration valid") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunCommand_InvalidOverrides(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"log level", []string{"--log-level", "verbose"}},
		{"ad-hoc rate", []string{"--rate", "0"}},
		{"ad-hoc unit", []string{"--rate", "5", "--unit", "h"}},
		{"format", []string{"--format", "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, append([]string{"run", "--dry-run"}, tt.args...)...)
			if err == nil {
				t.Fatal("expected error")
			}
			if code := cli.ExitCode(err); code != cli.ExitConfigError {
				t.Errorf("ExitCode() = %d, want %d", code, cli.ExitConfigError)
			}
		})
	}
}

func TestRunCommand_PacesLimiters(t *testing.T) {
	path := writeFile(t, `
limiters:
  - name: slow
    rate: 20
    unit: s
    capacity: 1
telemetry:
  logging:
    level: error
`)

	out, _, err := executeCommand(t, "run",
		"--config", path,
		"--rate", "1000",
		"--duration", "300ms",
		"--format", "json",
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !strings.Contains(out, "✓ Limiters created (2 limiters)") {
		t.Errorf("banner missing:\n%s", out)
	}

	var report limiterReport
	if err := json.Unmarshal(jsonPayload(t, out), &report); err != nil {
		t.Fatalf("failed to decode report: %v\n%s", err, out)
	}
	if len(report.Limiters) != 2 {
		t.Fatalf("len(Limiters) = %d, want 2", len(report.Limiters))
	}

	byName := map[string]limiterResult{}
	for _, l := range report.Limiters {
		byName[l.Name] = l
	}

	fast := byName[adHocLimiter]
	if fast.Admitted < 100 || fast.Admitted > 450 {
		t.Errorf("cli limiter admitted %d units in ~300ms at 1000/s", fast.Admitted)
	}

	slow := byName["slow"]
	if slow.Capacity != 1 {
		t.Errorf("slow capacity = %d, want 1", slow.Capacity)
	}
	if slow.Admitted > 10 {
		t.Errorf("slow limiter admitted %d units in ~300ms at 20/s", slow.Admitted)
	}
}

func TestRunCommand_Blocking(t *testing.T) {
	out, _, err := executeCommand(t, "run",
		"--rate", "1000",
		"--duration", "300ms",
		"--blocking",
		"--format", "json",
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var report limiterReport
	if err := json.Unmarshal(jsonPayload(t, out), &report); err != nil {
		t.Fatalf("failed to decode report: %v\n%s", err, out)
	}
	if len(report.Limiters) != 1 {
		t.Fatalf("len(Limiters) = %d, want 1", len(report.Limiters))
	}
	if got := report.Limiters[0].Admitted; got < 100 || got > 450 {
		t.Errorf("blocking limiter admitted %d units in ~300ms at 1000/s", got)
	}
}

func TestRunCommand_RecordsHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping scheduled report test in short mode")
	}

	db := filepath.Join(t.TempDir(), "history.db")
	path := writeFile(t, fmt.Sprintf(`
telemetry:
  logging:
    level: error
  report:
    enabled: true
    schedule: "@every 1s"
history:
  backend: sqlite
  path: %q
`, db))

	out, _, err := executeCommand(t, "run", "--config", path, "--rate", "100", "--duration", "2500ms")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "✓ History store: sqlite") {
		t.Errorf("banner missing:\n%s", out)
	}

	store, err := history.NewSQLiteStore(history.SQLiteConfig{Path: db})
	if err != nil {
		t.Fatalf("failed to reopen history: %v", err)
	}
	defer store.Close()

	snaps, err := store.List(context.Background(), history.Query{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snaps) == 0 {
		t.Fatal("no snapshots recorded during a 2.5s run with a 1s report")
	}
	if snaps[0].RunID == "" || !snaps[0].Stats.Running {
		t.Errorf("unexpected snapshot: %+v", snaps[0])
	}
}

func TestRunCommand_TelemetryServer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping telemetry server test in short mode")
	}

	path := writeFile(t, `
limiters:
  - name: api
    rate: 500
telemetry:
  logging:
    level: error
  metrics:
    enabled: true
    listen_address: 127.0.0.1:0
`)

	out := &syncBuffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"run", "--config", path, "--duration", "2s"})
	t.Cleanup(func() {
		resetFlags(rootCmd)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	done := make(chan error, 1)
	go func() { done <- rootCmd.Execute() }()

	addrPattern := regexp.MustCompile(`Metrics endpoint: http://(\S+)/metrics`)
	var addr string
	deadline := time.Now().Add(time.Second)
	for addr == "" && time.Now().Before(deadline) {
		if m := addrPattern.FindStringSubmatch(out.String()); m != nil {
			addr = m[1]
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatalf("telemetry server never announced its address:\n%s", out.String())
	}

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(fmt.Sprintf("http://%s%s", addr, path))
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	if code, _ := get("/healthz"); code != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", code)
	}
	if code, body := get("/readyz"); code != http.StatusOK {
		t.Errorf("/readyz status = %d, want 200: %s", code, body)
	}

	code, body := get("/metrics")
	if code != http.StatusOK {
		t.Errorf("/metrics status = %d, want 200", code)
	}
	for _, want := range []string{"ratecontrol_limiter_requests_total", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %s", want)
		}
	}

	code, body = get("/stats")
	if code != http.StatusOK {
		t.Errorf("/stats status = %d, want 200", code)
	}
	if !strings.Contains(body, `"running":true`) {
		t.Errorf("/stats body = %s", body)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after --duration")
	}
}

func TestReloader(t *testing.T) {
	engine := newTestEngine(t)
	b, err := engine.Create(1, ratelimit.Microseconds)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	defer b.Release()
	if got := engine.Rhythm(); got != config.DefaultEngineMinRhythm {
		t.Fatalf("Rhythm() = %v, want %v", got, config.DefaultEngineMinRhythm)
	}

	logger, err := logging.New(logging.Config{Level: "info", Writer: io.Discard})
	if err != nil {
		t.Fatalf("logging.New() failed: %v", err)
	}
	window, err := ratelimit.NewSyncSlidingWindow(10, time.Second)
	if err != nil {
		t.Fatalf("NewSyncSlidingWindow() failed: %v", err)
	}

	path := writeFile(t, `
engine:
  min_rhythm: 2ms
sliding_window:
  capacity: 3
  window: 2s
telemetry:
  logging:
    level: debug
`)
	r := &reloader{path: path, logger: logger, engine: engine, window: window}
	if err := r.reload(); err != nil {
		t.Fatalf("reload() failed: %v", err)
	}

	if got := engine.Rhythm(); got != 2*time.Millisecond {
		t.Errorf("Rhythm() = %v, want 2ms", got)
	}
	if got := logger.Level(); got != slog.LevelDebug {
		t.Errorf("Level() = %v, want debug", got)
	}
	if window.Capacity() != 3 || window.Window() != 2*time.Second {
		t.Errorf("window = %d/%v, want 3/2s", window.Capacity(), window.Window())
	}
	if cfg := config.GetConfig(); cfg == nil || cfg.Engine.MinRhythm != 2*time.Millisecond {
		t.Error("reload should replace the global configuration")
	}

	// A broken file leaves everything in place.
	if err := os.WriteFile(path, []byte("engine: [unclosed"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if err := r.reload(); err == nil {
		t.Error("expected reload error for invalid YAML")
	}
	if got := logger.Level(); got != slog.LevelDebug {
		t.Errorf("Level() = %v after failed reload, want debug", got)
	}
}
