// Package mirror makes a destination tree an exact copy of a source tree,
// deleting extras, so the export directory always matches the staging
// tree.
package mirror

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Mirror copies src to dst. Paths matching an exclude pattern are neither
// copied nor deleted.
type Mirror interface {
	Mirror(src, dst string, exclude []string) error
	Name() string
}

// New returns the mirror named kind: "rsync" or "native"
func New(kind, rsyncPath string) Mirror {
	if kind == "rsync" {
		return &Rsync{Path: rsyncPath}
	}
	return &Native{}
}

// Excluded reports whether rel, a slash-separated path below the mirror
// root, matches one of the patterns. A pattern with a leading slash is
// anchored at the root; others match any path element name.
func Excluded(rel string, patterns []string) bool {
	rel = filepath.ToSlash(rel)
	for _, p := range patterns {
		if anchored, ok := strings.CutPrefix(p, "/"); ok {
			if match(anchored, rel) {
				return true
			}
			continue
		}
		for _, part := range strings.Split(rel, "/") {
			if match(p, part) {
				return true
			}
		}
	}
	return false
}

func match(pattern, name string) bool {
	if pattern == name {
		return true
	}
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}

// Native mirrors with the standard library
type Native struct{}

func (m *Native) Name() string { return "native" }

// Mirror copies files whose size or modification time differ, keeping
// modification times, then removes what src does not have.
func (m *Native) Mirror(src, dst string, exclude []string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return fmt.Errorf("failed to create mirror destination: %w", err)
	}

	seen := map[string]bool{}
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil || rel == "." {
			return err
		}
		if Excluded(rel, exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		seen[rel] = true

		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if same(info, target) {
			return nil
		}
		return copyFile(path, target, info)
	})
	if err != nil {
		return fmt.Errorf("failed to mirror %s: %w", src, err)
	}

	var dirs []string
	err = filepath.WalkDir(dst, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(dst, path)
		if err != nil || rel == "." {
			return err
		}
		if Excluded(rel, exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if seen[rel] {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		return os.Remove(path)
	})
	if err != nil {
		return fmt.Errorf("failed to remove extras from %s: %w", dst, err)
	}

	// deepest first; directories still holding excluded files stay
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Remove(dirs[i]); err != nil && !isNotEmpty(dirs[i]) {
			return fmt.Errorf("failed to remove %s: %w", dirs[i], err)
		}
	}
	return nil
}

func isNotEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

func same(info fs.FileInfo, target string) bool {
	existing, err := os.Stat(target)
	if err != nil || existing.IsDir() {
		return false
	}
	return existing.Size() == info.Size() && existing.ModTime().Equal(info.ModTime())
}

func copyFile(src, dst string, info fs.FileInfo) error {
	if existing, err := os.Stat(dst); err == nil && existing.IsDir() {
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// Rsync mirrors by running rsync
type Rsync struct {
	Path string
}

func (m *Rsync) Name() string { return "rsync" }

// Args returns the rsync arguments for a mirror run
func (m *Rsync) Args(src, dst string, exclude []string) []string {
	args := []string{"-t", "-r", "--delete"}
	for _, p := range exclude {
		args = append(args, "--exclude", p)
	}
	return append(args, strings.TrimSuffix(src, "/")+"/", strings.TrimSuffix(dst, "/")+"/")
}

// Mirror runs rsync and reports its output on failure
func (m *Rsync) Mirror(src, dst string, exclude []string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return fmt.Errorf("failed to create mirror destination: %w", err)
	}

	path := m.Path
	if path == "" {
		path = "rsync"
	}

	var out bytes.Buffer
	cmd := exec.Command(path, m.Args(src, dst, exclude)...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("rsync failed: %w: %s", err, strings.TrimSpace(out.String()))
	}
	return nil
}
