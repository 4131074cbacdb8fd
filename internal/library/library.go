// Package library reads and updates the on-disk sheet library: groups are
// "*-ulgroup" directories described by an Info.ulgroup property list, and
// sheets are "<id>.ulysses" packages listed in their group's sheet clusters.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"howett.net/plist"

	"github.com/gerunddev/sheetbridge/internal/sheet"
)

// InfoFile is the group description file inside every group directory
const InfoFile = "Info.ulgroup"

// GroupSuffix marks group directories
const GroupSuffix = "-ulgroup"

// ErrCorruptSource reports a sheet or group whose backing data is missing
// or cannot be parsed.
var ErrCorruptSource = errors.New("missing or corrupt source")

// SourceError wraps a failure to read one sheet or group
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrCorruptSource, e.Err}
}

// groupInfo is the part of Info.ulgroup the scanner needs
type groupInfo struct {
	DisplayName   string     `plist:"displayName"`
	SheetClusters [][]string `plist:"sheetClusters"`
	ChildOrder    []string   `plist:"childOrder"`
}

// sheets lists sheet package names in cluster order
func (g *groupInfo) sheets() []string {
	var names []string
	for _, cluster := range g.SheetClusters {
		for _, name := range cluster {
			if strings.HasSuffix(name, sheet.PackageExt) {
				names = append(names, name)
			}
		}
	}
	return names
}

func (g *groupInfo) children() []string {
	var names []string
	for _, name := range g.ChildOrder {
		if strings.HasSuffix(name, GroupSuffix) {
			names = append(names, name)
		}
	}
	return names
}

func readGroupInfo(groupDir string) (*groupInfo, error) {
	path := filepath.Join(groupDir, InfoFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SourceError{Path: path, Err: err}
	}
	var info groupInfo
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return nil, &SourceError{Path: path, Err: err}
	}
	return &info, nil
}

// NewSheetID returns a fresh 32 character lowercase hex identifier
func NewSheetID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// StableGroupName returns a deterministic group directory name for a fixed
// purpose, so repeated runs find the same group.
func StableGroupName(purpose string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("sheetbridge:"+purpose))
	return strings.ReplaceAll(id.String(), "-", "") + GroupSuffix
}

// AddSheet appends a sheet package to the group's sheet list
func AddSheet(groupDir, id string) error {
	return updateInfo(groupDir, func(info map[string]interface{}) {
		info["sheetClusters"] = append(clusters(info), []interface{}{id + sheet.PackageExt})
	})
}

// PrependSheet inserts a sheet package at the top of the group's sheet list
func PrependSheet(groupDir, id string) error {
	return updateInfo(groupDir, func(info map[string]interface{}) {
		entry := []interface{}{[]interface{}{id + sheet.PackageExt}}
		info["sheetClusters"] = append(entry, clusters(info)...)
	})
}

func clusters(info map[string]interface{}) []interface{} {
	if existing, ok := info["sheetClusters"].([]interface{}); ok {
		return existing
	}
	return nil
}

// EnsureGroup returns the path of the child group dirName below parent,
// creating it and registering it in the parent's child order when missing.
func EnsureGroup(parent, dirName, displayName, icon string) (string, error) {
	dir := filepath.Join(parent, dirName)
	if _, err := os.Stat(filepath.Join(dir, InfoFile)); err == nil {
		return dir, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create group directory: %w", err)
	}

	info := map[string]interface{}{
		"displayName":   displayName,
		"sheetClusters": []interface{}{},
	}
	if icon != "" {
		info["userIconName"] = icon
	}
	if err := writeInfo(filepath.Join(dir, InfoFile), info, plist.XMLFormat); err != nil {
		return "", err
	}

	err := updateInfo(parent, func(info map[string]interface{}) {
		order, _ := info["childOrder"].([]interface{})
		info["childOrder"] = append(order, dirName)
	})
	if err != nil {
		return "", err
	}
	return dir, nil
}

// updateInfo rewrites a group's Info.ulgroup in its original format, keeping
// keys this package does not know about.
func updateInfo(groupDir string, change func(map[string]interface{})) error {
	path := filepath.Join(groupDir, InfoFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read group info: %w", err)
	}

	info := map[string]interface{}{}
	format, err := plist.Unmarshal(data, &info)
	if err != nil {
		return &SourceError{Path: path, Err: err}
	}

	change(info)
	return writeInfo(path, info, format)
}

func writeInfo(path string, info map[string]interface{}, format int) error {
	data, err := plist.MarshalIndent(info, format, "\t")
	if err != nil {
		return fmt.Errorf("failed to encode group info: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write group info: %w", err)
	}
	return nil
}
