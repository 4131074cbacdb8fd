package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gerunddev/sheetbridge/internal/config"
)

func overridePIDFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "sheetbridge.pid")
	original := config.PIDFilePath
	config.PIDFilePath = func() string { return path }
	t.Cleanup(func() { config.PIDFilePath = original })
	return path
}

func TestPIDFile(t *testing.T) {
	path := overridePIDFile(t)

	if _, err := ReadPID(); err == nil {
		t.Error("Expected error reading missing PID file")
	}
	if running, _, _ := IsRunning(); running {
		t.Error("Should not be running without a PID file")
	}

	if err := WritePID(); err != nil {
		t.Fatalf("Failed to write PID: %v", err)
	}
	pid, err := ReadPID()
	if err != nil {
		t.Fatalf("Failed to read PID: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("Expected PID %d, got %d", os.Getpid(), pid)
	}

	running, pid, started := IsRunning()
	if !running || pid != os.Getpid() || started.IsZero() {
		t.Errorf("Expected this process to be running, got %v %d %v", running, pid, started)
	}

	if err := RemovePID(); err != nil {
		t.Fatalf("Failed to remove PID: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("PID file should be gone")
	}
	if err := RemovePID(); err != nil {
		t.Errorf("Removing a missing PID file should succeed: %v", err)
	}
}

func TestReadPIDInvalid(t *testing.T) {
	path := overridePIDFile(t)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("not a pid\n"), 0644); err != nil {
		t.Fatalf("Failed to write PID file: %v", err)
	}
	if _, err := ReadPID(); err == nil {
		t.Error("Expected error for invalid PID")
	}
}

func TestLoopRunsOnChange(t *testing.T) {
	dir := t.TempDir()
	runs := make(chan struct{}, 10)

	loop := &Loop{
		Dirs:     []string{dir},
		Interval: time.Hour,
		Debounce: 50 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx, func() error {
			runs <- struct{}{}
			return nil
		})
	}()

	waitRun := func(what string) {
		t.Helper()
		select {
		case <-runs:
		case <-time.After(5 * time.Second):
			t.Fatalf("Timed out waiting for %s run", what)
		}
	}
	waitRun("initial")

	// past the quiet period of the initial run
	time.Sleep(200 * time.Millisecond)

	// hidden files are ignored
	if err := os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "note.md"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	waitRun("change")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Loop did not stop")
	}
}

func TestLoopIgnore(t *testing.T) {
	loop := &Loop{Ignore: func(path string) bool { return filepath.Ext(path) != ".md" }}
	if !loop.ignored("/x/a.txt") || loop.ignored("/x/a.md") {
		t.Error("Custom ignore not applied")
	}

	loop = &Loop{}
	if !loop.ignored("/x/.sheetbridge_sync.yaml") || loop.ignored("/x/a.md") {
		t.Error("Default ignore should skip hidden files only")
	}
}
