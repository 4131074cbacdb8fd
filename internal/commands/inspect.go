package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/gerunddev/sheetbridge/internal/config"
	"github.com/gerunddev/sheetbridge/internal/diff"
	"github.com/gerunddev/sheetbridge/internal/library"
	"github.com/gerunddev/sheetbridge/internal/markup"
	"github.com/gerunddev/sheetbridge/internal/state"
	"github.com/gerunddev/sheetbridge/internal/styles"
	"github.com/gerunddev/sheetbridge/internal/sync"
	"github.com/gerunddev/sheetbridge/internal/tui"
)

// snapshot is the library and export folder as the next run would see them
type snapshot struct {
	catalog *library.Catalog
	state   *state.State
	result  *sync.Result
	files   []string // export files, relative with forward slashes
}

func takeSnapshot(cfg *config.Config) (*snapshot, error) {
	// a dry run classifies without writing; its log lines are not kept
	syncer := sync.NewSyncer(cfg)
	syncer.SetDryRun(true)
	result, err := syncer.Sync()
	if err != nil {
		return nil, err
	}
	cat, err := syncer.Scan()
	if err != nil {
		return nil, err
	}
	st, err := state.Load(state.Path(cfg.ExportDir))
	if err != nil {
		return nil, err
	}

	paths, err := sync.ScanDirectory(cfg.ExportDir, ".md")
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	snap := &snapshot{catalog: cat, state: st, result: result}
	for _, p := range paths {
		if rel, err := filepath.Rel(cfg.ExportDir, p); err == nil {
			snap.files = append(snap.files, filepath.ToSlash(rel))
		}
	}
	return snap, nil
}

func (s *snapshot) class(rel string) string {
	if c, ok := s.result.Files[rel]; ok {
		return c.String()
	}
	return sync.Unchanged.String()
}

func (s *snapshot) statusData(cfg *config.Config) *tui.StatusData {
	data := &tui.StatusData{
		LibraryDir:  cfg.LibraryDir,
		ExportDir:   cfg.ExportDir,
		Dialect:     cfg.Dialect,
		Mirror:      cfg.Mirror,
		Interval:    cfg.Interval,
		LastSynced:  s.state.LastSynced,
		Sheets:      len(s.catalog.Entries),
		ExportFiles: len(s.files),
		Retrying:    s.state.PendingFiles(),
		Skipped:     len(s.catalog.Diagnostics),
	}
	for _, rel := range s.files {
		if c := s.class(rel); c != sync.Unchanged.String() {
			data.Pending = append(data.Pending, tui.PendingFile{Rel: rel, Class: c})
		}
	}
	return data
}

func (s *snapshot) browseData() *tui.BrowseData {
	idx := s.catalog.Index()
	data := &tui.BrowseData{}
	for _, rel := range s.files {
		f := tui.FileInfo{Rel: rel, Class: s.class(rel)}
		if id, ok := library.ParseExportName(filepath.Base(rel)); ok {
			if _, found := idx.Lookup(id); found {
				f.SheetID = id
			}
		}
		data.Files = append(data.Files, f)
	}
	return data
}

func newStatusCommand() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: "inspect",
		Short:   "Show the sync state and the edits the next run would apply",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if plain {
				snap, err := takeSnapshot(cfg)
				if err != nil {
					return err
				}
				printStatus(snap.statusData(cfg))
				return nil
			}

			var p *tea.Program
			refresh := func() {
				snap, err := takeSnapshot(cfg)
				if err != nil {
					p.Send(tui.StatusMsg{Err: err})
					return
				}
				p.Send(tui.StatusMsg{Data: snap.statusData(cfg)})
			}

			p = tea.NewProgram(tui.InitStatusModel(refresh), tea.WithInput(os.Stdin))
			go refresh()
			_, err = p.Run()
			return err
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print the status without the interactive display")
	return cmd
}

func printStatus(d *tui.StatusData) {
	fmt.Printf("Library:       %s\n", d.LibraryDir)
	fmt.Printf("Export folder: %s\n", d.ExportDir)
	if d.LastSynced.IsZero() {
		fmt.Println("Last sync:     never")
	} else {
		fmt.Printf("Last sync:     %s\n", d.LastSynced.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Sheets:        %d\n", d.Sheets)
	fmt.Printf("Export files:  %d\n", d.ExportFiles)
	for _, p := range d.Pending {
		icon, style := styles.Status(p.Class)
		fmt.Println(style.Render(fmt.Sprintf("  %s %-9s %s", icon, p.Class, p.Rel)))
	}
	for _, rel := range d.Retrying {
		fmt.Println(styles.ErrorStyle.Render("  ✗ retrying " + rel))
	}
}

func newBrowseCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "browse",
		GroupID: "inspect",
		Short:   "Browse the export folder and preview diffs against the library",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			dialect, err := markup.ParseDialect(cfg.Dialect)
			if err != nil {
				return err
			}
			snap, err := takeSnapshot(cfg)
			if err != nil {
				return err
			}
			idx := snap.catalog.Index()

			diffFunc := func(rel string, width int) (string, error) {
				unified, err := diff.File(filepath.Join(cfg.ExportDir, filepath.FromSlash(rel)), idx, dialect)
				if err != nil {
					return "", err
				}
				return diff.Render(unified, max(width-4, 40)), nil
			}

			p := tea.NewProgram(tui.InitBrowseModel(diffFunc), tea.WithAltScreen())
			go p.Send(tui.BrowseMsg{Data: snap.browseData()})
			_, err = p.Run()
			return err
		},
	}
}

func newDiffCommand() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:     "diff <file.md>",
		GroupID: "inspect",
		Short:   "Diff an export file against its sheet",
		Long: `Show how a file in the export folder differs from a fresh export of its
sheet. The side modified last is shown as the new version.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(nil)
			if err != nil {
				return err
			}
			defer s.cleanup()

			path, _, err := s.relExport(args[0])
			if err != nil {
				return err
			}
			dialect, err := markup.ParseDialect(s.cfg.Dialect)
			if err != nil {
				return err
			}
			cat, err := s.syncer().Scan()
			if err != nil {
				return err
			}

			unified, err := diff.File(path, cat.Index(), dialect)
			if err != nil {
				return err
			}
			if plain {
				if unified == "" {
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), unified)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), strings.TrimLeft(diff.Render(unified, 120), "\n"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print the unified diff without rendering")
	return cmd
}
