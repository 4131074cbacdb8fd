// Package sheet reads and writes the sheet storage format: a Content.xml
// file inside a "<id>.ulysses" package directory.
package sheet

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gerunddev/sheetbridge/internal/document"
)

// File names inside a sheet package
const (
	ContentFile = "Content.xml"
	TextFile    = "Text.txt"
	MediaDir    = "Media"
	PackageExt  = ".ulysses"
)

// ErrMalformed is returned when encoded output fails to validate as XML.
var ErrMalformed = errors.New("malformed sheet output")

// MalformedError carries the offending output for diagnosis
type MalformedError struct {
	Path string
	Text string
	Err  error
}

func (e *MalformedError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("malformed sheet output for %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("malformed sheet output: %v", e.Err)
}

func (e *MalformedError) Unwrap() []error {
	return []error{ErrMalformed, e.Err}
}

// IDFromDir extracts the sheet identifier from a package directory name
func IDFromDir(dir string) string {
	return strings.TrimSuffix(filepath.Base(filepath.Clean(dir)), PackageExt)
}

// Load reads a sheet package directory
func Load(dir string) (*document.Document, error) {
	contentPath := filepath.Join(dir, ContentFile)
	data, err := os.ReadFile(contentPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	info, err := os.Stat(contentPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat sheet: %w", err)
	}

	doc, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", contentPath, err)
	}
	doc.ID = IDFromDir(dir)
	doc.ModTime = info.ModTime()
	return doc, nil
}

// Write stores doc in the package directory dir together with its plain
// text rendering, and stamps the files and the package with modTime. The
// directory is created if needed. Nothing is written when doc fails to
// encode.
func Write(dir string, doc *document.Document, text string, modTime time.Time) error {
	data, err := Marshal(doc)
	if err != nil {
		var malformed *MalformedError
		if errors.As(err, &malformed) {
			malformed.Path = dir
		}
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create sheet directory: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, ContentFile), data); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(dir, TextFile), []byte(text)); err != nil {
		return err
	}

	if modTime.IsZero() {
		return nil
	}
	for _, p := range []string{filepath.Join(dir, ContentFile), filepath.Join(dir, TextFile), dir} {
		if err := os.Chtimes(p, modTime, modTime); err != nil {
			return fmt.Errorf("failed to set sheet modification time: %w", err)
		}
	}
	return nil
}

// writeAtomic writes via a temp file and rename so a crash never leaves a
// half-written Content.xml behind.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sheetbridge-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	// CreateTemp uses 0600; keep the mode of the file being replaced
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		return fmt.Errorf("failed to set temp file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

// Validate checks that data is well-formed XML
func Validate(data []byte) error {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// PlainText returns the text of the sheet's first paragraph, used as its
// title.
func PlainText(doc *document.Document) string {
	return doc.Title()
}
