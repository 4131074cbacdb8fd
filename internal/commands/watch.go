package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/gerunddev/sheetbridge/internal/config"
	"github.com/gerunddev/sheetbridge/internal/daemon"
	"github.com/gerunddev/sheetbridge/internal/styles"
	"github.com/gerunddev/sheetbridge/internal/tui"
)

func newWatchCommand() *cobra.Command {
	var interval time.Duration
	var quiet bool

	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: "service",
		Short:   "Sync whenever the library or export folder changes",
		Long: `Run in the foreground and sync after the library or the export folder
has been quiet for a moment following a change, and at least once per
interval. Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if running, pid, _ := daemon.IsRunning(); running && pid != os.Getpid() {
				return fmt.Errorf("watcher already running with PID %d", pid)
			}

			var echo io.Writer
			if !quiet {
				echo = os.Stderr
			}
			s, err := openSession(echo)
			if err != nil {
				return err
			}
			defer s.cleanup()

			if cmd.Flags().Changed("interval") {
				s.cfg.Interval = interval
			}

			if err := daemon.WritePID(); err != nil {
				return fmt.Errorf("failed to write PID file: %w", err)
			}
			defer func() {
				if err := daemon.RemovePID(); err != nil {
					s.log.Warn("failed to remove PID file on shutdown", "error", err)
				}
			}()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s.log.Info("watcher process started", "pid", os.Getpid())
			syncer := s.syncer()
			loop := &daemon.Loop{
				Dirs:     []string{s.cfg.ExportDir, s.cfg.LibraryDir},
				Interval: s.cfg.Interval,
				Ignore:   watchIgnore(s.cfg.StagingDir),
				Logger:   s.log,
			}
			err = loop.Run(ctx, func() error {
				_, err := syncer.Sync()
				return err
			})
			s.log.Info("watcher shutdown complete")
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "sync at least this often (default from config)")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "only write to the log file")
	return cmd
}

// watchIgnore skips hidden files, which include the sync manifest, and
// anything below the staging folder
func watchIgnore(stagingDir string) func(string) bool {
	staging := filepath.Clean(stagingDir) + string(filepath.Separator)
	return func(path string) bool {
		if strings.HasPrefix(filepath.Base(path), ".") {
			return true
		}
		return stagingDir != "" && strings.HasPrefix(filepath.Clean(path)+string(filepath.Separator), staging)
	}
}

func newStartCommand() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:     "start",
		GroupID: "service",
		Short:   "Start the watcher in the background",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if running, pid, _ := daemon.IsRunning(); running {
				return fmt.Errorf("watcher already running with PID %d", pid)
			}

			watchArgs := []string{"watch", "--quiet"}
			if cmd.Flags().Changed("interval") {
				watchArgs = append(watchArgs, "--interval", interval.String())
			}
			if f := cmd.Flag("config"); f != nil && f.Value.String() != "" {
				watchArgs = append(watchArgs, "--config", f.Value.String())
			}

			if err := daemon.Daemonize(watchArgs); err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}

			// Give it a moment to write its PID file
			time.Sleep(500 * time.Millisecond)

			running, pid, _ := daemon.IsRunning()
			if !running {
				return fmt.Errorf("watcher failed to start; check the log file")
			}
			fmt.Println(styles.SuccessStyle.Render(fmt.Sprintf("✓ Watcher started with PID %d", pid)))
			fmt.Println(styles.DimStyle.Render("  Run 'sheetbridge dashboard' to monitor it"))
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "sync at least this often (default from config)")
	return cmd
}

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "stop",
		GroupID: "service",
		Short:   "Stop the background watcher",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, _ := daemon.IsRunning()
			if !running {
				fmt.Println(styles.DimStyle.Render("Watcher is not running"))
				return nil
			}

			fmt.Printf("Stopping watcher (PID %d)...\n", pid)
			if err := daemon.Stop(); err != nil {
				return fmt.Errorf("failed to stop watcher: %w", err)
			}

			// A run in progress finishes before the process exits
			for i := 0; i < 20; i++ {
				time.Sleep(500 * time.Millisecond)
				if running, _, _ = daemon.IsRunning(); !running {
					break
				}
			}
			if running {
				return fmt.Errorf("watcher did not stop gracefully")
			}

			fmt.Println(styles.SuccessStyle.Render("✓ Watcher stopped"))
			return nil
		},
	}
}

func newDashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "dashboard",
		GroupID: "service",
		Short:   "Monitor the background watcher",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			p := tea.NewProgram(tui.InitDashboardModel(), tea.WithInput(os.Stdin))

			send := func() {
				running, pid, startTime := daemon.IsRunning()
				data := &tui.WatcherData{
					Running:   running,
					PID:       pid,
					StartTime: startTime,
				}
				if cfg.LogFile != "" {
					data.LogLines, data.LastSyncTime, data.FilesSynced = ParseLogFile(cfg.LogFile, 20)
				}
				p.Send(tui.WatcherMsg{Data: data})
			}

			go func() {
				ticker := time.NewTicker(tui.RefreshInterval)
				defer ticker.Stop()

				send()
				for range ticker.C {
					send()
				}
			}()

			_, err = p.Run()
			return err
		},
	}
}
