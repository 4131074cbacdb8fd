package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Mirror implementations
const (
	MirrorNative = "native"
	MirrorRsync  = "rsync"
)

// Config represents the sheetbridge configuration
type Config struct {
	// LibraryDir holds the group directories
	LibraryDir string `mapstructure:"library_dir" yaml:"library_dir"`
	// ExportDir is the Markdown tree edited by the user
	ExportDir string `mapstructure:"export_dir" yaml:"export_dir"`
	// StagingDir is where each run renders the export before mirroring it
	StagingDir string `mapstructure:"staging_dir" yaml:"staging_dir"`

	GroupsDir      string `mapstructure:"groups_dir" yaml:"groups_dir"`
	InboxDir       string `mapstructure:"inbox_dir" yaml:"inbox_dir"`
	InboxExportDir string `mapstructure:"inbox_export_dir" yaml:"inbox_export_dir"`

	Dialect          string `mapstructure:"dialect" yaml:"dialect"`
	AddIDToFilenames bool   `mapstructure:"add_id_to_filenames" yaml:"add_id_to_filenames"`

	Mirror        string   `mapstructure:"mirror" yaml:"mirror"`
	RsyncPath     string   `mapstructure:"rsync_path" yaml:"rsync_path"`
	NotifyCommand string   `mapstructure:"notify_command" yaml:"notify_command,omitempty"`
	Exclude       []string `mapstructure:"exclude" yaml:"exclude,omitempty"`

	LogFile       string `mapstructure:"log_file" yaml:"log_file"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`

	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		LibraryDir:       filepath.Join(home, "Library", "Mobile Documents", "X5AZV975AG~com~soulmen~ulysses3", "Documents", "Library"),
		ExportDir:        filepath.Join(home, "Documents", "sheetbridge"),
		StagingDir:       filepath.Join(xdg.CacheHome, "sheetbridge", "staging"),
		GroupsDir:        "Groups-ulgroup",
		InboxDir:         "Unfiled-ulgroup",
		InboxExportDir:   "_Inbox",
		Dialect:          "critic",
		AddIDToFilenames: true,
		Mirror:           MirrorNative,
		RsyncPath:        "rsync",
		LogFile:          filepath.Join(xdg.StateHome, "sheetbridge", "sheetbridge.log"),
		LogLevel:         "info",
		LogMaxSizeMB:     10,
		LogMaxBackups:    3,
		Interval:         30 * time.Second,
	}
}

// ConfigPath returns the path to the config file
// Can be overridden for testing
var ConfigPath = func() string {
	return filepath.Join(xdg.ConfigHome, "sheetbridge", "config.yaml")
}

// PIDFilePath returns the path to the daemon PID file
// Can be overridden for testing
var PIDFilePath = func() string {
	return filepath.Join(xdg.StateHome, "sheetbridge", "sheetbridge.pid")
}

// DiagnosticsDir returns where rejected conversions are kept for inspection
// Can be overridden for testing
var DiagnosticsDir = func() string {
	return filepath.Join(xdg.StateHome, "sheetbridge", "diagnostics")
}

// EnvPrefix prefixes environment overrides, e.g. SHEETBRIDGE_EXPORT_DIR
const EnvPrefix = "SHEETBRIDGE"

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("library_dir", def.LibraryDir)
	v.SetDefault("export_dir", def.ExportDir)
	v.SetDefault("staging_dir", def.StagingDir)
	v.SetDefault("groups_dir", def.GroupsDir)
	v.SetDefault("inbox_dir", def.InboxDir)
	v.SetDefault("inbox_export_dir", def.InboxExportDir)
	v.SetDefault("dialect", def.Dialect)
	v.SetDefault("add_id_to_filenames", def.AddIDToFilenames)
	v.SetDefault("mirror", def.Mirror)
	v.SetDefault("rsync_path", def.RsyncPath)
	v.SetDefault("notify_command", def.NotifyCommand)
	v.SetDefault("exclude", []string{})
	v.SetDefault("log_file", def.LogFile)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_max_size_mb", def.LogMaxSizeMB)
	v.SetDefault("log_max_backups", def.LogMaxBackups)
	v.SetDefault("interval", def.Interval)
	return v
}

// Load reads configuration from the XDG config directory. A missing file
// yields the defaults; environment variables override both.
func Load() (*Config, error) {
	v := newViper(ConfigPath())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Expand paths
	if err := cfg.ExpandPaths(); err != nil {
		return nil, fmt.Errorf("failed to expand paths: %w", err)
	}

	return cfg, nil
}

// Save writes configuration to the XDG config directory
func (c *Config) Save() error {
	configPath := ConfigPath()
	configDir := filepath.Dir(configPath)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LibraryDir, validation.Required),
		validation.Field(&c.ExportDir, validation.Required),
		validation.Field(&c.StagingDir, validation.Required,
			validation.By(differentFrom(c.ExportDir, "export_dir"))),
		validation.Field(&c.GroupsDir, validation.Required),
		validation.Field(&c.InboxDir, validation.Required),
		validation.Field(&c.InboxExportDir, validation.Required),
		validation.Field(&c.Dialect, validation.Required, validation.In("critic", "html")),
		validation.Field(&c.Mirror, validation.Required, validation.In(MirrorNative, MirrorRsync)),
		validation.Field(&c.RsyncPath, validation.When(c.Mirror == MirrorRsync, validation.Required)),
		validation.Field(&c.LogFile, validation.Required),
		validation.Field(&c.LogLevel, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.LogMaxSizeMB, validation.Min(0)),
		validation.Field(&c.LogMaxBackups, validation.Min(0)),
		validation.Field(&c.Interval, validation.Required, validation.Min(time.Second)),
	)
}

func differentFrom(other, name string) validation.RuleFunc {
	return func(value interface{}) error {
		if s, _ := value.(string); s != "" && filepath.Clean(s) == filepath.Clean(other) {
			return fmt.Errorf("must differ from %s", name)
		}
		return nil
	}
}

// ExpandPaths expands any ~ or relative paths to absolute paths
func (c *Config) ExpandPaths() error {
	for _, p := range []struct {
		name string
		path *string
	}{
		{"library_dir", &c.LibraryDir},
		{"export_dir", &c.ExportDir},
		{"staging_dir", &c.StagingDir},
		{"log_file", &c.LogFile},
	} {
		expanded, err := expandPath(*p.path)
		if err != nil {
			return fmt.Errorf("failed to expand %s: %w", p.name, err)
		}
		*p.path = expanded
	}
	return nil
}

// GroupsPath returns the absolute path of the main group tree
func (c *Config) GroupsPath() string {
	return filepath.Join(c.LibraryDir, c.GroupsDir)
}

// InboxPath returns the absolute path of the inbox group
func (c *Config) InboxPath() string {
	return filepath.Join(c.LibraryDir, c.InboxDir)
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}

	// Expand ~ to home directory
	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if len(path) == 1 {
			return homeDir, nil
		}
		path = filepath.Join(homeDir, path[1:])
	}

	// Convert to absolute path
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	return absPath, nil
}
