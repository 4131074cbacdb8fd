package library

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"howett.net/plist"

	"github.com/gerunddev/sheetbridge/internal/document"
	"github.com/gerunddev/sheetbridge/internal/sheet"
)

const (
	idA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	idB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	idC = "cccccccccccccccccccccccccccccccc"
	idD = "dddddddddddddddddddddddddddddddd"
)

func writeGroup(t *testing.T, dir, name string, sheets []string, children []string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}
	if children == nil {
		children = []string{}
	}
	clusters := make([][]string, 0, len(sheets))
	for _, s := range sheets {
		clusters = append(clusters, []string{s + sheet.PackageExt})
	}
	info := map[string]interface{}{
		"displayName":   name,
		"sheetClusters": clusters,
		"childOrder":    children,
	}
	data, err := plist.Marshal(info, plist.XMLFormat)
	if err != nil {
		t.Fatalf("Failed to encode group info: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, InfoFile), data, 0644); err != nil {
		t.Fatalf("Failed to write group info: %v", err)
	}
}

func writeSheet(t *testing.T, groupDir, id, title string, modTime time.Time) {
	t.Helper()
	doc := &document.Document{Blocks: []document.Block{
		{Kind: document.Heading, Level: 1, Inlines: []document.Inline{document.Text{Value: title}}},
		{Kind: document.Paragraph, Inlines: []document.Inline{document.Text{Value: "body"}}},
	}}
	if err := sheet.Write(filepath.Join(groupDir, id+sheet.PackageExt), doc, "# "+title+"\nbody", modTime); err != nil {
		t.Fatalf("Failed to write sheet: %v", err)
	}
}

func buildLibrary(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "Groups-ulgroup")
	modTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	writeGroup(t, root, "Groups", []string{idA, idB, idD}, []string{"sub-ulgroup"})
	writeSheet(t, root, idA, "First: draft", modTime)
	writeSheet(t, root, idB, "Log - 2024-03-01 12:00:00", modTime)

	// corrupt sheet
	bad := filepath.Join(root, idD+sheet.PackageExt)
	if err := os.MkdirAll(bad, 0755); err != nil {
		t.Fatalf("Failed to create sheet dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(bad, sheet.ContentFile), []byte("<sheet><string>"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt sheet: %v", err)
	}

	sub := filepath.Join(root, "sub-ulgroup")
	writeGroup(t, sub, "Chapter/One", []string{idC}, nil)
	writeSheet(t, sub, idC, "Nested", modTime)
	return root
}

func TestScan(t *testing.T) {
	root := buildLibrary(t)

	cat, err := Scan([]Root{{Dir: root}}, ScanOptions{AddIDToFilenames: true})
	if err != nil {
		t.Fatalf("Failed to scan library: %v", err)
	}

	type row struct{ ID, Dir, Name, Group string }
	var got []row
	for _, e := range cat.Entries {
		got = append(got, row{e.ID, e.ExportDir, e.ExportName, filepath.Base(e.GroupDir)})
	}
	want := []row{
		{idA, "", "01 - First- draft - " + idA, "Groups-ulgroup"},
		{idB, "", "Log - 2024-03-01 12-00-00 - " + idB, "Groups-ulgroup"},
		{idC, "01 - Chapter-One", "01 - Nested - " + idC, "sub-ulgroup"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}

	if len(cat.Diagnostics) != 1 {
		t.Fatalf("expected 1 diagnostic, got %v", cat.Diagnostics)
	}
	if !errors.Is(cat.Diagnostics[0], ErrCorruptSource) {
		t.Errorf("expected ErrCorruptSource, got %v", cat.Diagnostics[0])
	}
	var srcErr *SourceError
	if !errors.As(cat.Diagnostics[0], &srcErr) || filepath.Base(srcErr.Path) != idD+sheet.PackageExt {
		t.Errorf("expected source error for the corrupt sheet, got %v", cat.Diagnostics[0])
	}
}

func TestScanExportPrefixAndNoIDs(t *testing.T) {
	root := buildLibrary(t)

	cat, err := Scan([]Root{{Dir: root, ExportDir: "_Inbox"}}, ScanOptions{})
	if err != nil {
		t.Fatalf("Failed to scan library: %v", err)
	}
	last := cat.Entries[len(cat.Entries)-1]
	if last.ExportDir != "_Inbox/01 - Chapter-One" {
		t.Errorf("unexpected export dir %q", last.ExportDir)
	}
	if last.ExportName != "01 - Nested" {
		t.Errorf("unexpected export name %q", last.ExportName)
	}
	if got := last.ExportPath(); got != filepath.Join("_Inbox", "01 - Chapter-One", "01 - Nested.md") {
		t.Errorf("unexpected export path %q", got)
	}
}

func TestScanMissingRoot(t *testing.T) {
	_, err := Scan([]Root{{Dir: filepath.Join(t.TempDir(), "nope")}}, ScanOptions{})
	if !errors.Is(err, ErrCorruptSource) {
		t.Errorf("expected ErrCorruptSource, got %v", err)
	}
}

func TestIndex(t *testing.T) {
	idx := NewIndex([]Entry{
		{ID: idA, GroupDir: "/g1"},
		{ID: idB, GroupDir: "/g2"},
		{ID: idA, GroupDir: "/duplicate"},
	})

	if idx.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", idx.Len())
	}
	e, ok := idx.Lookup(idA)
	if !ok || e.GroupDir != "/g1" {
		t.Errorf("lookup = %+v, %v", e, ok)
	}
	if _, ok := idx.Lookup(idC); ok {
		t.Error("expected miss for unknown id")
	}

	entries := idx.Entries()
	entries[0].GroupDir = "changed"
	if e, _ := idx.Lookup(idA); e.GroupDir != "/g1" {
		t.Error("index must not change through Entries")
	}
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Plain title", "Plain title"},
		{"a/b\\c|d.e&f<g>h:i", "a-b-c-d-e-f-g-h-i"},
		{"Star *power*", "Star _power_"},
		{"What? [draft] {x} \"q\" #1!", "What draft x q 1"},
		{"  ", "Untitled"},
		{"###", "Untitled"},
		{strings.Repeat("Ä", 70), strings.Repeat("Ä", 64)},
	}
	for _, tt := range tests {
		if got := CleanTitle(tt.in); got != tt.want {
			t.Errorf("CleanTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseExportName(t *testing.T) {
	tests := []struct {
		name   string
		wantID string
		wantOK bool
	}{
		{"01 - Title - " + idA + ".md", idA, true},
		{idA + ".md", idA, true},
		{"Log - 2024-03-01 12-00-00 - " + idB + ".md", idB, true},
		{"01 - Title.md", "", false},
		{"01 - Title - " + idA + ".txt", "", false},
		{"01 - Title - ABCDEF.md", "", false},
	}
	for _, tt := range tests {
		id, ok := ParseExportName(tt.name)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("ParseExportName(%q) = %q, %v; want %q, %v", tt.name, id, ok, tt.wantID, tt.wantOK)
		}
	}

	if got := DisplayName("sub/01 - Title - " + idA + ".md"); got != "sub/01 - Title" {
		t.Errorf("DisplayName = %q", got)
	}
	if got := LogTitle("01 - Title - " + idA + ".md"); got != "/01 - Title" {
		t.Errorf("LogTitle = %q", got)
	}
	if got := LogTitle(filepath.Join("01 - Sub", "02 - New.md")); got != "01 - Sub/02 - New" {
		t.Errorf("LogTitle = %q", got)
	}
	if got := SourceGroup(filepath.Join("_Inbox", "01 - Sub", "x.md")); got != "_Inbox/01 - Sub/" {
		t.Errorf("SourceGroup = %q", got)
	}
}

func TestAddSheetAndEnsureGroup(t *testing.T) {
	root := filepath.Join(t.TempDir(), "Groups-ulgroup")
	writeGroup(t, root, "Groups", []string{idA}, nil)

	if err := AddSheet(root, idB); err != nil {
		t.Fatalf("Failed to add sheet: %v", err)
	}
	if err := PrependSheet(root, idC); err != nil {
		t.Fatalf("Failed to prepend sheet: %v", err)
	}

	info, err := readGroupInfo(root)
	if err != nil {
		t.Fatalf("Failed to read group info: %v", err)
	}
	want := []string{idC + ".ulysses", idA + ".ulysses", idB + ".ulysses"}
	if diff := cmp.Diff(want, info.sheets()); diff != "" {
		t.Errorf("sheet order mismatch (-want +got):\n%s", diff)
	}
	if info.DisplayName != "Groups" {
		t.Errorf("display name lost: %q", info.DisplayName)
	}

	name := StableGroupName("logs")
	if name != StableGroupName("logs") || len(name) != 32+len(GroupSuffix) {
		t.Errorf("unexpected stable group name %q", name)
	}

	dir, err := EnsureGroup(root, name, "Sync Logs", "Gear")
	if err != nil {
		t.Fatalf("Failed to ensure group: %v", err)
	}
	again, err := EnsureGroup(root, name, "Sync Logs", "Gear")
	if err != nil || again != dir {
		t.Fatalf("second EnsureGroup = %q, %v", again, err)
	}

	info, err = readGroupInfo(root)
	if err != nil {
		t.Fatalf("Failed to read group info: %v", err)
	}
	if diff := cmp.Diff([]string{name}, info.children()); diff != "" {
		t.Errorf("child order mismatch (-want +got):\n%s", diff)
	}

	child, err := readGroupInfo(dir)
	if err != nil {
		t.Fatalf("Failed to read new group: %v", err)
	}
	if child.DisplayName != "Sync Logs" {
		t.Errorf("unexpected display name %q", child.DisplayName)
	}
}

func TestNewSheetID(t *testing.T) {
	id := NewSheetID()
	if _, ok := ParseExportName(id + ".md"); !ok {
		t.Errorf("NewSheetID produced %q", id)
	}
	if id == NewSheetID() {
		t.Error("expected distinct ids")
	}
}
