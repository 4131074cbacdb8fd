package mirror

import (
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string, mod time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("Failed to stamp file: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

func setupTrees(t *testing.T, keep bool) (string, string, time.Time) {
	t.Helper()
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src")
	dst := filepath.Join(tmpDir, "dst")
	mod := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	writeFile(t, filepath.Join(src, "01 - A.md"), "new a", mod)
	writeFile(t, filepath.Join(src, "sub", "01 - B.md"), "b", mod)
	writeFile(t, filepath.Join(src, "sub", "Media", "x.png"), "png", mod)

	writeFile(t, filepath.Join(dst, "01 - A.md"), "old a", mod.Add(-time.Hour))
	writeFile(t, filepath.Join(dst, "gone.md"), "gone", mod)
	writeFile(t, filepath.Join(dst, "old", "c.md"), "c", mod)
	writeFile(t, filepath.Join(dst, ".sheetbridge_sync.yaml"), "files: {}", mod)
	if keep {
		writeFile(t, filepath.Join(dst, "keep", "failed.md"), "user edit", mod)
	}
	return src, dst, mod
}

func checkMirrored(t *testing.T, dst string, mod time.Time, kept ...string) {
	t.Helper()
	if got := readFile(t, filepath.Join(dst, "01 - A.md")); got != "new a" {
		t.Errorf("Changed file not copied, got %q", got)
	}
	info, err := os.Stat(filepath.Join(dst, "sub", "Media", "x.png"))
	if err != nil {
		t.Fatalf("Nested file not copied: %v", err)
	}
	if !info.ModTime().Equal(mod) {
		t.Errorf("Modification time not kept: %v", info.ModTime())
	}
	for _, p := range []string{"gone.md", filepath.Join("old", "c.md"), "old"} {
		if _, err := os.Stat(filepath.Join(dst, p)); !os.IsNotExist(err) {
			t.Errorf("Extra %s should be deleted", p)
		}
	}
	for _, p := range kept {
		if _, err := os.Stat(filepath.Join(dst, p)); err != nil {
			t.Errorf("Excluded %s should be kept: %v", p, err)
		}
	}
}

func TestNativeMirror(t *testing.T) {
	src, dst, mod := setupTrees(t, true)

	m := New("native", "")
	if m.Name() != "native" {
		t.Errorf("Expected native mirror, got %s", m.Name())
	}
	if err := m.Mirror(src, dst, []string{".sheetbridge_sync.yaml", "/keep/failed.md"}); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}
	checkMirrored(t, dst, mod, ".sheetbridge_sync.yaml", filepath.Join("keep", "failed.md"))
}

func TestNativeMirrorSkipsSameFiles(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src")
	dst := filepath.Join(tmpDir, "dst")
	mod := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// same size and time: left alone
	writeFile(t, filepath.Join(src, "a.md"), "aaaa", mod)
	writeFile(t, filepath.Join(dst, "a.md"), "bbbb", mod)

	if err := (&Native{}).Mirror(src, dst, nil); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}
	if got := readFile(t, filepath.Join(dst, "a.md")); got != "bbbb" {
		t.Errorf("Unchanged file should not be copied, got %q", got)
	}
}

func TestRsyncMirror(t *testing.T) {
	path, err := exec.LookPath("rsync")
	if err != nil {
		t.Skip("rsync not installed")
	}
	src, dst, mod := setupTrees(t, false)

	m := New("rsync", path)
	if err := m.Mirror(src, dst, []string{".sheetbridge_sync.yaml"}); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}
	checkMirrored(t, dst, mod, ".sheetbridge_sync.yaml")
}

func TestRsyncArgs(t *testing.T) {
	m := &Rsync{Path: "rsync"}
	got := m.Args("/a/staging/", "/b/export", []string{".sheetbridge_sync.yaml"})
	want := []string{"-t", "-r", "--delete", "--exclude", ".sheetbridge_sync.yaml", "/a/staging/", "/b/export/"}
	if !slices.Equal(got, want) {
		t.Errorf("Args() = %v, want %v", got, want)
	}
}

func TestExcluded(t *testing.T) {
	tests := []struct {
		rel      string
		patterns []string
		want     bool
	}{
		{".sheetbridge_sync.yaml", []string{".sheetbridge_sync.yaml"}, true},
		{"sub/.obsidian/x", []string{".obsidian"}, true},
		{"sub/notes.md", []string{"*.tmp"}, false},
		{"sub/notes.tmp", []string{"*.tmp"}, true},
		{"keep/failed.md", []string{"/keep/failed.md"}, true},
		{"other/keep/failed.md", []string{"/keep/failed.md"}, false},
		{"a.md", nil, false},
	}
	for _, tt := range tests {
		if got := Excluded(tt.rel, tt.patterns); got != tt.want {
			t.Errorf("Excluded(%q, %v) = %v, want %v", tt.rel, tt.patterns, got, tt.want)
		}
	}
}
