// Package export renders library sheets into a staging tree of Markdown
// files with their media, ready to be mirrored to the export directory.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gerunddev/sheetbridge/internal/auditlog"
	"github.com/gerunddev/sheetbridge/internal/convert"
	"github.com/gerunddev/sheetbridge/internal/library"
	"github.com/gerunddev/sheetbridge/internal/logger"
	"github.com/gerunddev/sheetbridge/internal/markup"
	"github.com/gerunddev/sheetbridge/internal/sheet"
)

// Options controls an export run
type Options struct {
	// StagingDir is emptied and refilled
	StagingDir string
	Dialect    markup.Dialect

	// ExportDir and Cursor decide which sheets get an audit line: those
	// edited after the cursor and newer than their current export.
	ExportDir string
	Cursor    time.Time
}

// File is one exported sheet
type File struct {
	SheetID string
	// Rel is the path below the staging root
	Rel     string
	ModTime time.Time
}

// Exporter writes sheets to the staging tree
type Exporter struct {
	opts   Options
	audit  *auditlog.Log
	logger *logger.Logger
}

// New creates an exporter. audit may be nil.
func New(opts Options, audit *auditlog.Log, log *logger.Logger) *Exporter {
	if log == nil {
		log = logger.Discard()
	}
	return &Exporter{opts: opts, audit: audit, logger: log}
}

// Export clears the staging tree and writes every entry to it. Sheets that
// fail to export are reported and skipped.
func (x *Exporter) Export(entries []library.Entry) ([]File, []error) {
	if err := os.RemoveAll(x.opts.StagingDir); err != nil {
		return nil, []error{fmt.Errorf("failed to clear staging directory: %w", err)}
	}
	if err := os.MkdirAll(x.opts.StagingDir, 0755); err != nil {
		return nil, []error{fmt.Errorf("failed to create staging directory: %w", err)}
	}

	var files []File
	var errs []error
	for _, e := range entries {
		f, err := x.exportEntry(e)
		if err != nil {
			x.logger.FileError(e.SheetDir, err)
			errs = append(errs, fmt.Errorf("failed to export %s: %w", e.ID, err))
			continue
		}
		x.logger.Exported(e.ID, f.Rel)
		files = append(files, f)
	}
	return files, errs
}

func (x *Exporter) exportEntry(e library.Entry) (File, error) {
	rel := e.ExportPath()
	dir := filepath.Join(x.opts.StagingDir, filepath.FromSlash(e.ExportDir))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return File{}, err
	}

	media, err := CopyMedia(filepath.Join(e.SheetDir, sheet.MediaDir), filepath.Join(dir, sheet.MediaDir))
	if err != nil {
		return File{}, err
	}
	text := ResolveFileRefs(convert.ToMarkdown(e.Doc, convert.ForwardOptions{Dialect: x.opts.Dialect}).String(), media)

	path := filepath.Join(x.opts.StagingDir, rel)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return File{}, err
	}
	if err := os.Chtimes(path, e.ModTime, e.ModTime); err != nil {
		return File{}, err
	}

	x.auditEdit(e, rel)
	return File{SheetID: e.ID, Rel: filepath.ToSlash(rel), ModTime: e.ModTime}, nil
}

func (x *Exporter) auditEdit(e library.Entry, rel string) {
	if x.audit == nil || x.opts.Cursor.IsZero() || !e.ModTime.After(x.opts.Cursor) {
		return
	}
	if x.opts.ExportDir != "" {
		if info, err := os.Stat(filepath.Join(x.opts.ExportDir, rel)); err == nil && !e.ModTime.After(info.ModTime()) {
			return
		}
	}
	x.audit.AddLine("Sheet edited at: ", e.ModTime, library.LogTitle(rel), " - Exported to:")
}

// Text renders an entry the way Export writes it, without copying media
func Text(e library.Entry, dialect markup.Dialect) (string, error) {
	var media []string
	entries, err := os.ReadDir(filepath.Join(e.SheetDir, sheet.MediaDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read media: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			media = append(media, entry.Name())
		}
	}
	return ResolveFileRefs(convert.ToMarkdown(e.Doc, convert.ForwardOptions{Dialect: dialect}).String(), media), nil
}

// CopyMedia copies the files of a sheet's media directory, keeping their
// modification times. A missing media directory copies nothing. It returns
// the copied file names.
func CopyMedia(src, dst string) ([]string, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read media: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := os.MkdirAll(dst, 0755); err != nil {
			return nil, err
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return nil, fmt.Errorf("failed to copy media %s: %w", entry.Name(), err)
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.Create(dst)
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

// ResolveFileRefs replaces "<ref>.#fileref" media placeholders with the
// names of the copied media files. A media file "photo.<ref>.png" carries
// its reference as the second to last dot-separated part.
func ResolveFileRefs(text string, media []string) string {
	if len(media) == 0 || !strings.Contains(text, markup.FileRefSuffix) {
		return text
	}
	pairs := make([]string, 0, 2*len(media))
	for _, name := range media {
		parts := strings.Split(name, ".")
		if len(parts) < 2 {
			continue
		}
		ref := parts[len(parts)-2]
		if ref == "" {
			continue
		}
		pairs = append(pairs, ref+markup.FileRefSuffix, strings.ReplaceAll(name, " ", "%20"))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
