package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"howett.net/plist"

	"github.com/gerunddev/sheetbridge/internal/styles"
)

const (
	launchdLabel   = "com.sheetbridge"
	systemdService = "sheetbridge.service"
)

// launchAgent is the launchd job description for the watcher
type launchAgent struct {
	Label             string   `plist:"Label"`
	ProgramArguments  []string `plist:"ProgramArguments"`
	RunAtLoad         bool     `plist:"RunAtLoad"`
	KeepAlive         bool     `plist:"KeepAlive"`
	StandardOutPath   string   `plist:"StandardOutPath"`
	StandardErrorPath string   `plist:"StandardErrorPath"`
}

func servicePath(home string) (string, error) {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist"), nil
	case "linux":
		return filepath.Join(home, ".config", "systemd", "user", systemdService), nil
	default:
		return "", fmt.Errorf("unsupported operating system %s; supported platforms are macOS and Linux", runtime.GOOS)
	}
}

// serviceFile renders the service definition that runs the watcher
func serviceFile(goos, execPath string) ([]byte, error) {
	switch goos {
	case "darwin":
		agent := launchAgent{
			Label:             launchdLabel,
			ProgramArguments:  []string{execPath, "watch", "--quiet"},
			RunAtLoad:         true,
			KeepAlive:         true,
			StandardOutPath:   filepath.Join(os.TempDir(), "sheetbridge.out.log"),
			StandardErrorPath: filepath.Join(os.TempDir(), "sheetbridge.err.log"),
		}
		return plist.MarshalIndent(agent, plist.XMLFormat, "\t")
	case "linux":
		return []byte(fmt.Sprintf(`[Unit]
Description=sheetbridge - sheet library and Markdown folder sync
After=default.target

[Service]
Type=simple
ExecStart=%s watch --quiet
Restart=always
RestartSec=10

[Install]
WantedBy=default.target
`, execPath)), nil
	default:
		return nil, fmt.Errorf("unsupported operating system %s", goos)
	}
}

func newInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "install",
		GroupID: "service",
		Short:   "Install a user service that runs the watcher at login",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(styles.TitleStyle.Render("sheetbridge install"))
			fmt.Println()

			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get home directory: %w", err)
			}
			path, err := servicePath(home)
			if err != nil {
				return err
			}
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("failed to get executable path: %w", err)
			}

			content, err := serviceFile(runtime.GOOS, execPath)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Errorf("failed to create service directory: %w", err)
			}
			if err := os.WriteFile(path, content, 0644); err != nil {
				return fmt.Errorf("failed to write service file: %w", err)
			}

			dim := styles.DimStyle
			fmt.Println(styles.SuccessStyle.Render("✓ Service file created: " + path))
			fmt.Println()
			fmt.Println("To enable the service:")
			if runtime.GOOS == "darwin" {
				fmt.Println(dim.Render("  launchctl load " + path))
			} else {
				fmt.Println(dim.Render("  systemctl --user daemon-reload"))
				fmt.Println(dim.Render("  systemctl --user enable --now " + systemdService))
			}
			return nil
		},
	}
}

func newUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall",
		GroupID: "service",
		Short:   "Remove the user service",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(styles.TitleStyle.Render("sheetbridge uninstall"))
			fmt.Println()

			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get home directory: %w", err)
			}
			path, err := servicePath(home)
			if err != nil {
				return err
			}

			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Println(styles.WarningStyle.Render("⚠ Service file not found: " + path))
				return nil
			}

			dim := styles.DimStyle
			fmt.Println("Stop the service first:")
			if runtime.GOOS == "darwin" {
				fmt.Println(dim.Render("  launchctl unload " + path))
			} else {
				fmt.Println(dim.Render("  systemctl --user disable --now " + systemdService))
			}
			fmt.Println()

			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove service file: %w", err)
			}
			fmt.Println(styles.SuccessStyle.Render("✓ Service file removed: " + path))
			return nil
		},
	}
}
