package commands

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/gerunddev/sheetbridge/internal/export"
	"github.com/gerunddev/sheetbridge/internal/markup"
	"github.com/gerunddev/sheetbridge/internal/styles"
	"github.com/gerunddev/sheetbridge/internal/sync"
	"github.com/gerunddev/sheetbridge/internal/tui"
)

func newSyncCommand() *cobra.Command {
	var dryRun, plain bool

	cmd := &cobra.Command{
		Use:     "sync",
		GroupID: "sync",
		Short:   "Apply external edits and re-export the library once",
		Long: `Run one sync: edits made in the export folder since the last run are
applied to their sheets (or added to the inbox when the sheet changed too),
then the whole library is exported and mirrored to the export folder.

With --dry-run the edits are classified and reported but nothing is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(dryRun, plain)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify external edits without writing anything")
	cmd.Flags().BoolVar(&plain, "plain", false, "print the result without the progress display")
	return cmd
}

func runSync(dryRun, plain bool) error {
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.cleanup()

	title := "sheetbridge sync"
	if dryRun {
		title += " (dry run)"
	}
	fmt.Println(styles.TitleStyle.Render(title))
	fmt.Printf("%s ↔ %s\n", styles.DimStyle.Render(s.cfg.LibraryDir), styles.DimStyle.Render(s.cfg.ExportDir))
	if dryRun {
		fmt.Println(styles.DimStyle.Render("(dry run - no files will be modified)"))
	}

	syncer := s.syncer()
	syncer.SetDryRun(dryRun)

	if plain {
		result, err := syncer.Sync()
		if err != nil {
			return err
		}
		fmt.Print(tui.RenderSyncResult(toSyncResult(result)))
		return nil
	}

	p := tea.NewProgram(tui.InitSyncModel("Syncing..."), tea.WithInput(os.Stdin))
	go func() {
		result, err := syncer.Sync()
		msg := tui.SyncMsg{Err: err}
		if result != nil {
			msg.Result = toSyncResult(result)
		}
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func toSyncResult(r *sync.Result) *tui.SyncResult {
	return &tui.SyncResult{
		Created:   r.Created,
		Updated:   r.Updated,
		Orphans:   r.Orphans,
		Conflicts: r.Conflicts,
		Exported:  r.Exported,
		Errors:    r.Errors,
		DryRun:    r.DryRun,
		Duration:  r.EndTime.Sub(r.StartTime),
	}
}

func newExportCommand() *cobra.Command {
	var dialect string

	cmd := &cobra.Command{
		Use:     "export <dir>",
		GroupID: "sync",
		Short:   "Export the whole library to a separate folder",
		Long: `Write every sheet of the library as Markdown to <dir>, replacing its
contents. The folder is not tracked: edits made there are never synced
back. Use it for one-off copies; the synced export folder is maintained by
'sheetbridge sync'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(nil)
			if err != nil {
				return err
			}
			defer s.cleanup()

			if dialect == "" {
				dialect = s.cfg.Dialect
			}
			d, err := markup.ParseDialect(dialect)
			if err != nil {
				return err
			}

			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if dir == filepath.Clean(s.cfg.ExportDir) {
				return fmt.Errorf("refusing to export into the synced export folder; run 'sheetbridge sync' instead")
			}

			cat, err := s.syncer().Scan()
			if err != nil {
				return err
			}
			for _, diag := range cat.Diagnostics {
				fmt.Println(styles.WarningStyle.Render("⚠ " + diag.Error()))
			}

			files, errs := export.New(export.Options{StagingDir: dir, Dialect: d}, nil, s.log).Export(cat.Entries)
			for _, err := range errs {
				fmt.Println(styles.ErrorStyle.Render("✗ " + err.Error()))
			}
			fmt.Println(styles.SuccessStyle.Render(fmt.Sprintf("✓ Exported %d sheet(s) to %s", len(files), dir)))
			if len(errs) > 0 {
				return fmt.Errorf("%d sheet(s) failed to export", len(errs))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dialect, "dialect", "", "markup dialect: critic or html (default from config)")
	return cmd
}
