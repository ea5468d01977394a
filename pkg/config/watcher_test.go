package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewFileWatcher_RequiresPath(t *testing.T) {
	if _, err := NewFileWatcher("", 0, nil); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestFileWatcher_StopBeforeWatch(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), "config.yaml", "engine: {}\n")

	fw, err := NewFileWatcher(configPath, 0, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if err := fw.Stop(); err != nil {
		t.Errorf("Stop on idle watcher returned %v", err)
	}
}

func TestFileWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, "config.yaml", "engine: {}\n")

	fw, err := NewFileWatcher(configPath, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	var calls atomic.Int32
	changed := make(chan struct{}, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- fw.Watch(ctx, func() error {
			calls.Add(1)
			changed <- struct{}{}
			return nil
		})
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	// Writes to neighbouring files are ignored.
	writeConfig(t, dir, "other.yaml", "unrelated: true\n")

	for i := 0; i < 3; i++ {
		if err := os.WriteFile(configPath, []byte("engine:\n  min_capacity: 8\n"), 0644); err != nil {
			t.Fatalf("failed to rewrite config: %v", err)
		}
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("onChange was not called after writing the config file")
	}

	// The burst settles into a single reload.
	time.Sleep(200 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 reload for a burst of writes, got %d", got)
	}

	if err := fw.Stop(); err != nil {
		t.Errorf("Stop returned %v", err)
	}
	if err := <-watchErr; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, "config.yaml", "engine: {}\n")

	fw, err := NewFileWatcher(configPath, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = fw.Watch(ctx, func() error {
			calls.Add(1)
			return nil
		})
	}()

	time.Sleep(100 * time.Millisecond)
	writeConfig(t, dir, "config.yaml.bak", "engine: {}\n")
	if err := os.Remove(filepath.Join(dir, "config.yaml.bak")); err != nil {
		t.Fatalf("failed to remove backup: %v", err)
	}
	time.Sleep(150 * time.Millisecond)

	cancel()
	<-done
	_ = fw.Stop()

	if got := calls.Load(); got != 0 {
		t.Errorf("expected no reloads, got %d", got)
	}
}

// ============================================================================
// Debouncer Tests
// ============================================================================

func TestDebouncer_CoalescesTriggers(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var first, last atomic.Int32
	for i := 0; i < 5; i++ {
		d.Trigger(func() { first.Add(1) })
	}
	d.Trigger(func() { last.Add(1) })

	time.Sleep(150 * time.Millisecond)

	if first.Load() != 0 {
		t.Errorf("replaced callbacks ran %d times", first.Load())
	}
	if last.Load() != 1 {
		t.Errorf("expected final callback once, got %d", last.Load())
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("expected no callbacks after Stop, got %d", calls.Load())
	}
}
