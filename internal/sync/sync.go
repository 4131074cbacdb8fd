package sync

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gerunddev/sheetbridge/internal/auditlog"
	"github.com/gerunddev/sheetbridge/internal/config"
	"github.com/gerunddev/sheetbridge/internal/convert"
	"github.com/gerunddev/sheetbridge/internal/export"
	"github.com/gerunddev/sheetbridge/internal/library"
	"github.com/gerunddev/sheetbridge/internal/logger"
	"github.com/gerunddev/sheetbridge/internal/markup"
	"github.com/gerunddev/sheetbridge/internal/mirror"
	"github.com/gerunddev/sheetbridge/internal/notify"
	"github.com/gerunddev/sheetbridge/internal/sheet"
	"github.com/gerunddev/sheetbridge/internal/state"
)

// CommentTimeLayout formats edit times in comments injected into sheets
const CommentTimeLayout = "2006-01-02_15-04-05"

// ErrUnmanagedExportDir is returned when the first run finds Markdown files
// it did not write. Mirroring would delete them.
var ErrUnmanagedExportDir = errors.New("export directory holds files but no sync state")

// Syncer reconciles external Markdown edits with the sheet library and
// re-exports the library
type Syncer struct {
	config   *config.Config
	logger   *logger.Logger
	notifier notify.Notifier
	mirror   mirror.Mirror
	now      func() time.Time
	dryRun   bool
}

// NewSyncer creates a new syncer instance
func NewSyncer(cfg *config.Config) *Syncer {
	return &Syncer{
		config:   cfg,
		logger:   logger.Discard(),
		notifier: notify.Nop{},
		mirror:   mirror.New(cfg.Mirror, cfg.RsyncPath),
		now:      time.Now,
	}
}

// SetLogger sets the logger for the syncer
func (s *Syncer) SetLogger(l *logger.Logger) {
	s.logger = l
}

// SetNotifier sets where user notifications go
func (s *Syncer) SetNotifier(n notify.Notifier) {
	s.notifier = n
}

// SetMirror replaces the configured mirror
func (s *Syncer) SetMirror(m mirror.Mirror) {
	s.mirror = m
}

// SetClock replaces time.Now
func (s *Syncer) SetClock(now func() time.Time) {
	s.now = now
}

// SetDryRun makes Sync classify and log without writing anything
func (s *Syncer) SetDryRun(dryRun bool) {
	s.dryRun = dryRun
}

// Result represents the result of a sync run
type Result struct {
	FilesProcessed int
	Created        int
	Updated        int
	Orphans        int
	Conflicts      []string
	Exported       int
	Errors         []error
	DryRun         bool
	// Files lists the classification of every external file considered
	Files     map[string]Classification
	StartTime time.Time
	EndTime   time.Time
}

// String returns a human-readable summary of the sync result
func (r *Result) String() string {
	duration := r.EndTime.Sub(r.StartTime)
	prefix := "Sync complete"
	if r.DryRun {
		prefix = "Dry run complete"
	}
	return fmt.Sprintf(
		"%s: %d files synced (%d new, %d updated, %d orphaned), %d conflicts, %d exported, %d errors (took %v)",
		prefix,
		r.FilesProcessed,
		r.Created,
		r.Updated,
		r.Orphans,
		len(r.Conflicts),
		r.Exported,
		len(r.Errors),
		duration.Round(time.Millisecond),
	)
}

// Roots returns the library trees a run covers: the groups tree exported
// to the top of the export folder and the inbox exported below it
func Roots(cfg *config.Config) []library.Root {
	return []library.Root{
		{Dir: cfg.GroupsPath()},
		{Dir: cfg.InboxPath(), ExportDir: cfg.InboxExportDir},
	}
}

// Scan reads the library. Unreadable sheets and groups are logged and
// skipped.
func (s *Syncer) Scan() (*library.Catalog, error) {
	cat, err := library.Scan(Roots(s.config), library.ScanOptions{AddIDToFilenames: s.config.AddIDToFilenames})
	if err != nil {
		return nil, err
	}
	for _, diag := range cat.Diagnostics {
		s.logger.SourceSkipped(diag)
	}
	return cat, nil
}

// Sync performs one run: apply external edits, re-export the library,
// mirror it to the export directory and advance the cursor.
func (s *Syncer) Sync() (*Result, error) {
	start := s.now()
	result := &Result{
		StartTime: start,
		DryRun:    s.dryRun,
		Files:     map[string]Classification{},
	}

	statePath := state.Path(s.config.ExportDir)
	st, err := state.Load(statePath)
	if err != nil {
		s.logger.StateError("load", err)
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}
	s.logger.SyncStarted(s.config.LibraryDir, s.config.ExportDir, st.LastSynced)

	cat, err := s.Scan()
	if err != nil {
		return nil, err
	}

	audit := auditlog.New(start)
	var keep []string

	if st.HasCursor() {
		audit.AddEntry("**Markdown to Source Sync:**")
		var wrote bool
		keep, wrote = s.reconcile(st, cat.Index(), audit, result)
		if wrote {
			if cat, err = s.Scan(); err != nil {
				return nil, err
			}
		}
	} else if err := s.checkUnmanaged(); err != nil {
		return nil, err
	}

	if s.dryRun {
		result.EndTime = s.now()
		return result, nil
	}

	audit.ResetNumbering()
	audit.AddEntry("**Source to Markdown Export:**")

	dialect, err := markup.ParseDialect(s.config.Dialect)
	if err != nil {
		return nil, err
	}
	x := export.New(export.Options{
		StagingDir: s.config.StagingDir,
		Dialect:    dialect,
		ExportDir:  s.config.ExportDir,
		Cursor:     st.LastSynced,
	}, audit, s.logger)
	files, errs := x.Export(cat.Entries)
	result.Exported = len(files)
	result.Errors = append(result.Errors, errs...)

	exclude := append([]string{state.SentinelName}, s.config.Exclude...)
	for _, rel := range keep {
		exclude = append(exclude, "/"+rel)
	}
	if err := s.mirror.Mirror(s.config.StagingDir, s.config.ExportDir, exclude); err != nil {
		return nil, fmt.Errorf("failed to mirror export: %w", err)
	}

	// A file that failed to apply stays pending even though its sheet was
	// exported under the same name; the mirror left the edit in place.
	manifest := state.NewState()
	for _, rel := range keep {
		manifest.MarkPending(rel)
	}
	for _, f := range files {
		if manifest.IsPending(f.Rel) {
			continue
		}
		if err := manifest.Update(f.Rel, filepath.Join(s.config.ExportDir, filepath.FromSlash(f.Rel)), f.SheetID); err != nil {
			s.logger.StateError("update", err)
			result.Errors = append(result.Errors, err)
		}
	}
	if err := manifest.Save(statePath, start); err != nil {
		s.logger.StateError("save", err)
		return nil, fmt.Errorf("failed to save sync state: %w", err)
	}

	if audit.Dirty() {
		if _, err := audit.Write(s.config.GroupsPath()); err != nil {
			s.logger.FileError(auditlog.GroupName, err)
			result.Errors = append(result.Errors, err)
		}
	}

	result.EndTime = s.now()
	s.logger.SyncCompleted(result.FilesProcessed, result.Exported, len(result.Errors), result.EndTime.Sub(start))
	return result, nil
}

// checkUnmanaged refuses a first run over Markdown files it did not write
func (s *Syncer) checkUnmanaged() error {
	files, err := ScanDirectory(s.config.ExportDir, ".md")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(files) > 0 {
		return fmt.Errorf("%w: %s (%d files)", ErrUnmanagedExportDir, s.config.ExportDir, len(files))
	}
	return nil
}

// reconcile classifies and applies every external file. It returns the
// export paths that must survive mirroring because applying them failed,
// and whether anything was written to the library. Failed files are
// retried on the next run.
func (s *Syncer) reconcile(st *state.State, idx *library.Index, audit *auditlog.Log, result *Result) ([]string, bool) {
	files, err := ScanDirectory(s.config.ExportDir, ".md")
	if err != nil {
		s.logger.FileError(s.config.ExportDir, err)
		result.Errors = append(result.Errors, err)
		return nil, false
	}

	var keep []string
	wrote := false
	for _, path := range files {
		rel, err := filepath.Rel(s.config.ExportDir, path)
		if err != nil {
			continue
		}
		if mirror.Excluded(rel, s.config.Exclude) {
			s.logger.Skipped(rel, "excluded")
			continue
		}

		class, entry, info, err := s.classify(st, idx, rel, path)
		if err != nil {
			s.fail(rel, time.Time{}, err, audit, result)
			keep = append(keep, filepath.ToSlash(rel))
			continue
		}
		s.logger.Classified(rel, class.String())
		if class == Unchanged {
			continue
		}
		result.Files[filepath.ToSlash(rel)] = class
		result.FilesProcessed++

		if s.dryRun {
			continue
		}
		if err := s.apply(class, entry, rel, path, info, audit, result); err != nil {
			s.fail(rel, info.ModTime(), err, audit, result)
			keep = append(keep, filepath.ToSlash(rel))
			continue
		}
		wrote = true
	}
	return keep, wrote
}

func (s *Syncer) classify(st *state.State, idx *library.Index, rel, path string) (Classification, library.Entry, fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Unchanged, library.Entry{}, nil, err
	}

	in := ClassifyInput{
		Cursor:         st.LastSynced,
		FileModTime:    info.ModTime(),
		ContentChanged: true,
		Retry:          st.IsPending(rel),
	}
	if !in.Retry {
		if !in.FileModTime.After(in.Cursor) {
			return Unchanged, library.Entry{}, info, nil
		}
		changed, err := st.HasChanged(rel, path)
		if err != nil {
			return Unchanged, library.Entry{}, info, err
		}
		in.ContentChanged = changed
	}

	var entry library.Entry
	if id, ok := library.ParseExportName(filepath.Base(path)); ok {
		in.SheetID = id
		entry, in.Found = idx.Lookup(id)
		in.SourceModTime = entry.ModTime
	}
	return Classify(in), entry, info, nil
}

func (s *Syncer) apply(class Classification, entry library.Entry, rel, path string, info fs.FileInfo, audit *auditlog.Log, result *Result) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	text := string(data)

	editAt := info.ModTime()
	group := library.SourceGroup(rel)
	fileTitle := library.LogTitle(rel)
	editNote := "\nExternal edit at: " + editAt.Format(CommentTimeLayout)

	switch class {
	case New:
		id, title, err := s.writeInbox(text, "New sheet from export folder: "+group+editNote, path, editAt)
		if err != nil {
			return err
		}
		result.Created++
		audit.AddLine("New sheet from: ", editAt, fileTitle, "")
		s.logger.FileSynced(rel, id, class.String())
		s.notify("New sheet in inbox: " + title)

	case Orphaned:
		msg := "Sheet deleted in source? In group: " + group
		id, title, err := s.writeInbox(text, msg+editNote, path, editAt)
		if err != nil {
			return err
		}
		result.Orphans++
		audit.AddLine("New sheet from: ", editAt, fileTitle, "")
		s.logger.FileSynced(rel, id, class.String())
		s.notify("New sheet in inbox, " + msg + " " + title)

	case Conflict:
		msg := "Sync conflict with sheet in group: " + group
		id, title, err := s.writeInbox(text, msg+editNote+"\nNOTE! Attachments only as plaintext, at end of sheet", path, editAt)
		if err != nil {
			return err
		}
		result.Conflicts = append(result.Conflicts, filepath.ToSlash(rel))
		audit.AddLine("SYNC CONFLICT! with: ", editAt, fileTitle, "")
		s.logger.Conflict(rel, entry.ID, id)
		s.notify("SYNC CONFLICT! See Inbox: " + title)

	case CleanUpdate:
		res := convert.ToSheet(text, convert.ReverseOptions{
			Path:            entry.SheetDir,
			Attachments:     convert.AttachmentsPreserve,
			Original:        entry.Doc.Attachments,
			OriginalVersion: entry.Doc.Version,
		})
		s.reportMisses(rel, res)
		res.Document.ID = entry.ID
		if err := s.writeSheet(entry.SheetDir, res, text, editAt); err != nil {
			return err
		}
		result.Updated++
		audit.AddLine("Sheet updated from: ", editAt, fileTitle, "")
		s.logger.FileSynced(rel, entry.ID, class.String())
	}
	return nil
}

// addSheet lists a new sheet in its group; replaced in tests
var addSheet = library.AddSheet

// writeInbox creates a new inbox sheet from text with comment below its
// first line. Attachments stay in the body as text.
func (s *Syncer) writeInbox(text, comment, source string, editAt time.Time) (id, title string, err error) {
	id = library.NewSheetID()
	pkg := filepath.Join(s.config.InboxPath(), id+sheet.PackageExt)

	res := convert.ToSheet(text, convert.ReverseOptions{
		Path:        pkg,
		Comment:     comment,
		Attachments: convert.AttachmentsAsText,
	})
	s.reportMisses(source, res)
	res.Document.ID = id

	if err := s.writeSheet(pkg, res, text, editAt); err != nil {
		return "", "", err
	}
	if err := addSheet(s.config.InboxPath(), id); err != nil {
		if rmErr := os.RemoveAll(pkg); rmErr != nil {
			s.logger.Warn("failed to remove unlisted inbox sheet", "path", pkg, "error", rmErr)
		}
		return "", "", err
	}
	return id, res.Document.Title(), nil
}

// writeSheet stores a converted document stamped with the edit time, so the
// sheet does not look edited after the next cursor. Output that fails to
// validate is kept in the diagnostics directory instead.
func (s *Syncer) writeSheet(pkg string, res *convert.Result, text string, editAt time.Time) error {
	err := sheet.Write(pkg, res.Document, text, editAt)
	var malformed *sheet.MalformedError
	if errors.As(err, &malformed) {
		if path, derr := s.saveDiagnostic(pkg, malformed.Text); derr == nil {
			return fmt.Errorf("%w (output kept in %s)", err, path)
		}
	}
	return err
}

func (s *Syncer) saveDiagnostic(pkg, text string) (string, error) {
	dir := config.DiagnosticsDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	name := s.now().Format("20060102-150405") + "-" + sheet.IDFromDir(pkg) + ".xml"
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Syncer) reportMisses(file string, res *convert.Result) {
	for _, m := range res.Misses {
		s.logger.ReferenceMiss(file, m.Kind, m.Key, m.Line)
	}
}

func (s *Syncer) fail(rel string, at time.Time, err error, audit *auditlog.Log, result *Result) {
	s.logger.FileError(rel, err)
	result.Errors = append(result.Errors, fmt.Errorf("%s: %w", rel, err))
	if at.IsZero() {
		at = s.now()
	}
	audit.AddLine("SYNC FAILED for: ", at, library.LogTitle(rel), "")
	s.notify("Sync failed, file kept in export folder: " + library.LogTitle(rel))
}

func (s *Syncer) notify(message string) {
	if err := s.notifier.Notify(notify.Title, message); err != nil {
		s.logger.Warn("notification failed", "error", err)
	}
}

// ScanDirectory scans a directory for files with given extension
func ScanDirectory(dir string, ext string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() && path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if !d.IsDir() && filepath.Ext(path) == ext {
			files = append(files, path)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}
