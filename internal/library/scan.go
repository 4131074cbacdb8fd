package library

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gerunddev/sheetbridge/internal/document"
	"github.com/gerunddev/sheetbridge/internal/sheet"
)

// Entry describes one sheet found in the library
type Entry struct {
	ID       string
	SheetDir string // the "<id>.ulysses" package
	GroupDir string // the enclosing group
	ModTime  time.Time
	Title    string

	// ExportDir is the export location relative to the export root, using
	// forward slashes ("" for the top level).
	ExportDir string
	// ExportName is the export file name without the ".md" extension
	ExportName string

	Doc *document.Document
}

// ExportPath returns the export file path relative to the export root
func (e Entry) ExportPath() string {
	return filepath.Join(filepath.FromSlash(e.ExportDir), e.ExportName+".md")
}

// Root is a top-level group to scan and the export directory its sheets
// are written to.
type Root struct {
	Dir       string
	ExportDir string
}

// ScanOptions controls export naming
type ScanOptions struct {
	// AddIDToFilenames appends " - <id>" to export names. Without it edits
	// cannot be matched back to their sheet.
	AddIDToFilenames bool
}

// Catalog is the result of a library scan: every readable sheet in walk
// order plus the sheets and groups that had to be skipped.
type Catalog struct {
	Entries     []Entry
	Diagnostics []error
}

// Index builds the identity index for the catalog's entries
func (c *Catalog) Index() *Index {
	return NewIndex(c.Entries)
}

// Scan walks each root group. Within a group, sheets come first in sheet
// list order, then child groups in child order. Child groups below the
// root get numbered "NN - Title" export directories.
//
// A missing or corrupt root is an error. Corrupt sheets and child groups
// are skipped and reported in Diagnostics.
func Scan(roots []Root, opts ScanOptions) (*Catalog, error) {
	cat := &Catalog{}
	for _, root := range roots {
		info, err := readGroupInfo(root.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read library group: %w", err)
		}
		s := &scanner{cat: cat, opts: opts}
		s.group(root.Dir, info, root.ExportDir)
	}
	return cat, nil
}

type scanner struct {
	cat  *Catalog
	opts ScanOptions
}

func (s *scanner) group(dir string, info *groupInfo, exportDir string) {
	n := 0
	for _, name := range info.sheets() {
		pkg := filepath.Join(dir, name)
		doc, err := sheet.Load(pkg)
		if err != nil {
			s.cat.Diagnostics = append(s.cat.Diagnostics, &SourceError{Path: pkg, Err: err})
			continue
		}

		n++
		title := sheet.PlainText(doc)
		s.cat.Entries = append(s.cat.Entries, Entry{
			ID:         doc.ID,
			SheetDir:   pkg,
			GroupDir:   dir,
			ModTime:    doc.ModTime,
			Title:      title,
			ExportDir:  exportDir,
			ExportName: ExportName(n, title, doc.ID, s.opts.AddIDToFilenames),
			Doc:        doc,
		})
	}

	n = 0
	for _, name := range info.children() {
		child := filepath.Join(dir, name)
		childInfo, err := readGroupInfo(child)
		if err != nil {
			s.cat.Diagnostics = append(s.cat.Diagnostics, err)
			continue
		}
		n++
		sub := fmt.Sprintf("%02d - %s", n, CleanTitle(childInfo.DisplayName))
		s.group(child, childInfo, joinExport(exportDir, sub))
	}
}

func joinExport(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

var (
	titleToDash  = regexp.MustCompile(`[/\\—|.&<>:]`)
	titleStrip   = regexp.MustCompile("[#?*^,;!$+=%§'\\[\\]{}\"\t\n\r\f\v“”‘’´`¨]")
	logSheetName = regexp.MustCompile(`^Log - 20\d\d-[0-1]\d-[0-3]\d [0-2]\d-[0-5]\d-[0-5]\d`)
	exportName   = regexp.MustCompile(`^(.+? - )?([0-9a-f]{32})\.md$`)
	exportSuffix = regexp.MustCompile(` - [0-9a-f]{32}(\.md)?$`)
)

// maxTitleLen is the title length limit for file names, in characters
const maxTitleLen = 64

// CleanTitle turns a sheet or group title into a file name that is safe
// on every platform.
func CleanTitle(title string) string {
	title = titleToDash.ReplaceAllString(title, "-")
	title = strings.ReplaceAll(title, "*", "_")
	title = titleStrip.ReplaceAllString(title, "")
	title = strings.TrimSpace(title)
	if title == "" {
		return "Untitled"
	}
	if r := []rune(title); len(r) > maxTitleLen {
		title = string(r[:maxTitleLen])
	}
	return title
}

// ExportName builds the export file name for the n-th sheet of a group.
// Sync log sheets are not numbered.
func ExportName(n int, title, id string, addID bool) string {
	name := CleanTitle(title)
	if addID && id != "" {
		name += " - " + id
	}
	if logSheetName.MatchString(name) {
		return name
	}
	return fmt.Sprintf("%02d - %s", n, name)
}

// ParseExportName extracts the sheet id from an export file name
func ParseExportName(fileName string) (string, bool) {
	m := exportName.FindStringSubmatch(fileName)
	if m == nil {
		return "", false
	}
	return m[2], true
}

// DisplayName strips the id suffix and extension from an export path
func DisplayName(path string) string {
	return strings.TrimSuffix(exportSuffix.ReplaceAllString(path, ""), ".md")
}

// SourceGroup returns the export folder of a relative export path with a
// trailing slash, "/" for the top level.
func SourceGroup(rel string) string {
	dir := path.Dir(filepath.ToSlash(rel))
	if dir == "." {
		return "/"
	}
	return dir + "/"
}

// LogTitle names an export file in log lines: its folder and display name.
func LogTitle(rel string) string {
	return SourceGroup(rel) + DisplayName(path.Base(filepath.ToSlash(rel)))
}
