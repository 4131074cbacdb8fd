// Package state persists the sync cursor. The cursor is the modification
// time of a sentinel file in the export directory; the file body is a YAML
// manifest of the exported files and their content hashes.
package state

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// SentinelName is the cursor file kept in the export root
const SentinelName = ".sheetbridge_sync.yaml"

// FileState represents one exported file
type FileState struct {
	Hash    string    `yaml:"hash,omitempty"`
	SheetID string    `yaml:"sheet_id,omitempty"`
	ModTime time.Time `yaml:"mtime,omitempty"`
	// Pending marks an external edit that could not be applied and must
	// be retried on the next run
	Pending bool `yaml:"pending,omitempty"`
}

// State represents the sync state
type State struct {
	// LastSynced is the cursor, zero before the first run
	LastSynced time.Time `yaml:"-"`
	// Files maps export paths (relative, forward slashes) to their state
	Files map[string]*FileState `yaml:"files"`
}

// NewState creates a new empty state
func NewState() *State {
	return &State{
		Files: make(map[string]*FileState),
	}
}

// Path returns the sentinel path for an export root
func Path(exportDir string) string {
	return filepath.Join(exportDir, SentinelName)
}

// Load reads the sentinel. A missing sentinel yields an empty state
// without a cursor.
func Load(path string) (*State, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	state := NewState()
	if err := yaml.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to parse sync state: %w", err)
	}
	if state.Files == nil {
		state.Files = make(map[string]*FileState)
	}
	state.LastSynced = info.ModTime()

	return state, nil
}

// HasCursor reports whether a previous run completed
func (s *State) HasCursor() bool {
	return !s.LastSynced.IsZero()
}

// Save writes the manifest and stamps the sentinel with cursor
func (s *State) Save(path string, cursor time.Time) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Chtimes(path, cursor, cursor); err != nil {
		return fmt.Errorf("failed to stamp state file: %w", err)
	}

	s.LastSynced = cursor
	return nil
}

// ComputeHash computes SHA256 hash of a file
func ComputeHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", h.Sum(nil)), nil
}

// HasChanged reports whether the file at path differs from what was
// exported under rel. Files missing from the manifest count as changed.
func (s *State) HasChanged(rel, path string) (bool, error) {
	fileState, exists := s.Files[filepath.ToSlash(rel)]
	if !exists {
		return true, nil
	}

	hash, err := ComputeHash(path)
	if err != nil {
		return false, err
	}

	return hash != fileState.Hash, nil
}

// Update records the current content of path under rel
func (s *State) Update(rel, path, sheetID string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	hash, err := ComputeHash(path)
	if err != nil {
		return err
	}

	s.Files[filepath.ToSlash(rel)] = &FileState{
		Hash:    hash,
		SheetID: sheetID,
		ModTime: info.ModTime(),
	}

	return nil
}

// MarkPending records that the external file rel still needs applying
func (s *State) MarkPending(rel string) {
	s.Files[filepath.ToSlash(rel)] = &FileState{Pending: true}
}

// IsPending reports whether rel failed to apply on an earlier run
func (s *State) IsPending(rel string) bool {
	fileState, exists := s.Files[filepath.ToSlash(rel)]
	return exists && fileState.Pending
}

// PendingFiles returns the export paths awaiting a retry, sorted
func (s *State) PendingFiles() []string {
	var files []string
	for rel, fileState := range s.Files {
		if fileState.Pending {
			files = append(files, rel)
		}
	}
	sort.Strings(files)
	return files
}

// GetMTime returns the recorded modification time for rel
func (s *State) GetMTime(rel string) time.Time {
	if fileState, exists := s.Files[filepath.ToSlash(rel)]; exists {
		return fileState.ModTime
	}
	return time.Time{}
}
