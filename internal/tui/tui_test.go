package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestRenderSyncResult(t *testing.T) {
	tests := []struct {
		name    string
		result  SyncResult
		want    []string
		notWant []string
	}{
		{
			name:    "nothing to do",
			result:  SyncResult{Exported: 4, Duration: 12 * time.Millisecond},
			want:    []string{"No external edits", "4 sheet(s) exported", "Completed in 12ms"},
			notWant: []string{"conflict", "error"},
		},
		{
			name: "applied edits",
			result: SyncResult{
				Created:   1,
				Updated:   2,
				Conflicts: []string{"Notes/01 - Alpha.md"},
				Exported:  5,
			},
			want: []string{"Synced 4 file(s)", "1 new, 2 updated, 0 orphaned", "1 conflict(s)", "Notes/01 - Alpha.md"},
		},
		{
			name:    "dry run",
			result:  SyncResult{Orphans: 1, DryRun: true},
			want:    []string{"Would sync 1 file(s)"},
			notWant: []string{"exported"},
		},
		{
			name:   "errors",
			result: SyncResult{Errors: []error{errors.New("a.md: permission denied")}},
			want:   []string{"1 error(s)", "a.md: permission denied"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderSyncResult(&tt.result)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("RenderSyncResult() missing %q in:\n%s", w, got)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(got, w) {
					t.Errorf("RenderSyncResult() unexpectedly contains %q in:\n%s", w, got)
				}
			}
		})
	}
}

func TestSyncModelQuitsOnResult(t *testing.T) {
	m := InitSyncModel("Syncing...")
	if !strings.Contains(m.View(), "Syncing...") {
		t.Errorf("View() before result = %q", m.View())
	}

	next, cmd := m.Update(SyncMsg{Result: &SyncResult{Updated: 2}})
	if cmd == nil {
		t.Fatal("Update(SyncMsg) returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Update(SyncMsg) should quit")
	}
	if view := next.View(); !strings.Contains(view, "Synced 2 file(s)") {
		t.Errorf("View() after result = %q", view)
	}

	next, _ = InitSyncModel("Syncing...").Update(SyncMsg{Err: errors.New("export folder is not managed")})
	if view := next.View(); !strings.Contains(view, "Sync failed: export folder is not managed") {
		t.Errorf("View() after error = %q", view)
	}
}

func TestStatusModel(t *testing.T) {
	refreshed := make(chan struct{}, 1)
	m := InitStatusModel(func() { refreshed <- struct{}{} })

	if view := m.View(); !strings.Contains(view, "Scanning") {
		t.Errorf("View() while scanning = %q", view)
	}

	next, _ := m.Update(StatusMsg{Data: &StatusData{
		LibraryDir: "/lib",
		ExportDir:  "/export",
		Sheets:     3,
		Pending:    []PendingFile{{Rel: "Notes/02 - Beta.md", Class: "update"}},
		Retrying:   []string{"Notes/03 - Gamma.md"},
	}})
	view := next.View()
	for _, want := range []string{"Never synced", "1 file(s) will be synced", "Notes/02 - Beta.md", "Retrying", "Notes/03 - Gamma.md"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q in:\n%s", want, view)
		}
	}

	// r schedules a refresh, which runs refreshFunc
	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if cmd == nil {
		t.Fatal("refresh key returned no command")
	}
	next.Update(RefreshStatusMsg{})
	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Error("refreshFunc was not called")
	}
}

func TestBrowseModelShowsDiff(t *testing.T) {
	var asked string
	m := InitBrowseModel(func(rel string, width int) (string, error) {
		asked = rel
		return "-old line\n+new line", nil
	})

	next, _ := m.Update(BrowseMsg{Data: &BrowseData{Files: []FileInfo{
		{Rel: "01 - Alpha.md", SheetID: "abc", Class: "update"},
		{Rel: "02 - Beta.md", Class: "new"},
	}}})
	if view := next.View(); !strings.Contains(view, "Files: 2") {
		t.Errorf("View() = %q", view)
	}

	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter returned no command")
	}
	next, _ = next.Update(cmd())
	if asked != "01 - Alpha.md" {
		t.Errorf("diff requested for %q, want %q", asked, "01 - Alpha.md")
	}
	view := next.View()
	if !strings.Contains(view, "Diff: 01 - Alpha.md") || !strings.Contains(view, "+new line") {
		t.Errorf("View() while showing diff = %q", view)
	}

	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if view := next.View(); !strings.Contains(view, "Files: 2") {
		t.Errorf("esc should return to the file list, got %q", view)
	}
}

func TestDashboardModel(t *testing.T) {
	m := InitDashboardModel()
	next, _ := m.Update(WatcherMsg{Data: &WatcherData{
		Running:   true,
		PID:       4242,
		StartTime: time.Now(),
		LogLines:  []string{"INFO sync completed files_synced=1"},
	}})
	view := next.View()
	for _, want := range []string{"Running", "4242", "No run completed yet", "sync completed files_synced=1"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q in:\n%s", want, view)
		}
	}

	next, _ = InitDashboardModel().Update(WatcherMsg{Data: &WatcherData{}})
	if view := next.View(); !strings.Contains(view, "Not running") {
		t.Errorf("View() for stopped watcher = %q", view)
	}
}
