// Package diff shows how an exported Markdown file differs from what its
// sheet exports to now.
package diff

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/glamour"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/gerunddev/sheetbridge/internal/export"
	"github.com/gerunddev/sheetbridge/internal/library"
	"github.com/gerunddev/sheetbridge/internal/markup"
)

// ErrNoSheet is returned for export files that do not name a library sheet
var ErrNoSheet = errors.New("file has no matching sheet")

// Unified returns the unified diff turning oldText into newText, "" when
// they are equal
func Unified(oldName, newName, oldText, newText string) string {
	if oldText == newText {
		return ""
	}
	edits := myers.ComputeEdits(span.URIFromPath(oldName), oldText, newText)
	return fmt.Sprint(gotextdiff.ToUnified(oldName, newName, oldText, edits))
}

// File diffs an export file against a fresh export of its sheet. The older
// side is shown as the old version.
func File(mdPath string, idx *library.Index, dialect markup.Dialect) (string, error) {
	id, ok := library.ParseExportName(filepath.Base(mdPath))
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoSheet, mdPath)
	}
	entry, ok := idx.Lookup(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoSheet, mdPath)
	}

	content, err := os.ReadFile(mdPath)
	if err != nil {
		return "", fmt.Errorf("failed to read markdown file: %w", err)
	}
	info, err := os.Stat(mdPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat markdown file: %w", err)
	}

	sheetText, err := export.Text(entry, dialect)
	if err != nil {
		return "", err
	}

	fileName := filepath.Base(mdPath)
	sheetName := "sheet:" + entry.ID
	if entry.ModTime.After(info.ModTime()) {
		return Unified(fileName, sheetName, string(content), sheetText), nil
	}
	return Unified(sheetName, fileName, sheetText, string(content)), nil
}

// Render wraps a unified diff in a diff code fence and renders it for the
// terminal. It returns the fenced text when rendering is not possible.
func Render(unified string, width int) string {
	if unified == "" {
		return "No differences\n"
	}
	fenced := fmt.Sprintf("```diff\n%s```\n", unified)

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fenced
	}
	rendered, err := renderer.Render(fenced)
	if err != nil {
		return fenced
	}
	return rendered
}
