package auditlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"howett.net/plist"

	"github.com/gerunddev/sheetbridge/internal/document"
	"github.com/gerunddev/sheetbridge/internal/library"
	"github.com/gerunddev/sheetbridge/internal/sheet"
)

var runTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestLogMarkdown(t *testing.T) {
	l := New(runTime)
	if l.Dirty() {
		t.Error("New log should not be dirty")
	}

	l.AddEntry("**Markdown to Source Sync:**")
	if l.Dirty() {
		t.Error("Plain entries should not make the log dirty")
	}

	edit := time.Date(2024, 2, 28, 9, 15, 0, 0, time.UTC)
	l.AddLine("New sheet from: ", edit, "/01 - Note", "")
	l.AddLine("Sheet updated from: ", edit, "sub/02 - Other", "")
	l.ResetNumbering()
	l.AddEntry("**Source to Markdown Export:**")
	l.AddLine("Sheet edited at: ", edit, "/01 - Note", " - Exported to:")

	want := strings.Join([]string{
		"# Log - 2024-03-01 12:00:00",
		"**Markdown to Source Sync:**",
		"1. New sheet from: 2024-02-28 09:15:00  \n/01 - Note",
		"2. Sheet updated from: 2024-02-28 09:15:00  \nsub/02 - Other",
		"**Source to Markdown Export:**",
		"1. Sheet edited at: 2024-02-28 09:15:00 - Exported to:  \n/01 - Note",
	}, "\n")
	if got := l.Markdown(); got != want {
		t.Errorf("Markdown mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
	if !l.Dirty() {
		t.Error("Log with events should be dirty")
	}
	if l.Len() != 3 {
		t.Errorf("Expected 3 events, got %d", l.Len())
	}
}

func TestLogWrite(t *testing.T) {
	groups := filepath.Join(t.TempDir(), "Groups-ulgroup")
	if err := os.MkdirAll(groups, 0755); err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}
	info := map[string]interface{}{
		"displayName":   "Groups",
		"sheetClusters": []interface{}{},
		"childOrder":    []string{},
	}
	data, err := plist.Marshal(info, plist.XMLFormat)
	if err != nil {
		t.Fatalf("Failed to encode group info: %v", err)
	}
	if err := os.WriteFile(filepath.Join(groups, library.InfoFile), data, 0644); err != nil {
		t.Fatalf("Failed to write group info: %v", err)
	}

	l := New(runTime)
	l.AddLine("New sheet from: ", runTime.Add(-time.Hour), "/01 - Note", "")

	var pkgs []string
	for i := 0; i < 2; i++ {
		pkg, err := l.Write(groups)
		if err != nil {
			t.Fatalf("Failed to write log: %v", err)
		}
		pkgs = append(pkgs, pkg)
	}

	doc, err := sheet.Load(pkgs[0])
	if err != nil {
		t.Fatalf("Failed to load log sheet: %v", err)
	}
	if doc.Title() != "Log - 2024-03-01 12:00:00" {
		t.Errorf("Unexpected title %q", doc.Title())
	}
	if !doc.ModTime.Equal(runTime) {
		t.Errorf("Log sheet should be stamped with the run time, got %v", doc.ModTime)
	}
	if len(doc.Blocks) != 2 || doc.Blocks[1].Kind != document.OrderedList {
		t.Errorf("Expected heading and one list item, got %+v", doc.Blocks)
	}

	cat, err := library.Scan([]library.Root{{Dir: groups}}, library.ScanOptions{AddIDToFilenames: true})
	if err != nil {
		t.Fatalf("Failed to scan library: %v", err)
	}
	if len(cat.Entries) != 2 {
		t.Fatalf("Expected 2 log sheets in one group, got %d", len(cat.Entries))
	}
	// newest first
	if cat.Entries[0].SheetDir != pkgs[1] {
		t.Errorf("Latest log should come first, got %s", cat.Entries[0].SheetDir)
	}
	e := cat.Entries[0]
	if e.ExportDir != "01 - Sync Logs" {
		t.Errorf("Unexpected export dir %q", e.ExportDir)
	}
	if !strings.HasPrefix(e.ExportName, "Log - 2024-03-01 12-00-00 - ") {
		t.Errorf("Log sheets should not be numbered, got %q", e.ExportName)
	}
}
