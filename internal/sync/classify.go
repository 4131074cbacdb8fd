package sync

import "time"

// Classification is the verdict for one external file
type Classification int

const (
	// Unchanged files are left alone
	Unchanged Classification = iota
	// New files carry no sheet id and become new inbox sheets
	New
	// Orphaned files name a sheet that no longer exists; they become new
	// inbox sheets too
	Orphaned
	// CleanUpdate files overwrite their sheet, which was not edited since
	// the last sync
	CleanUpdate
	// Conflict files were edited while their sheet was too; the edit goes
	// to a new inbox sheet and the original sheet stays untouched
	Conflict
)

func (c Classification) String() string {
	switch c {
	case Unchanged:
		return "unchanged"
	case New:
		return "new"
	case Orphaned:
		return "orphaned"
	case CleanUpdate:
		return "update"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// ClassifyInput is everything Classify looks at
type ClassifyInput struct {
	// Cursor is the time of the last completed sync
	Cursor time.Time
	// FileModTime is the external file's modification time
	FileModTime time.Time
	// ContentChanged is false when the file still hashes to what was last
	// exported
	ContentChanged bool
	// Retry skips edit detection for a file whose earlier apply failed
	Retry bool

	// SheetID is parsed from the file name, "" when it has none
	SheetID string
	// Found reports whether SheetID is in the library
	Found bool
	// SourceModTime is the sheet's modification time when Found
	SourceModTime time.Time
}

// Classify decides what to do with an external file. Edit detection comes
// first: a file not modified after the cursor, or modified without a
// content change, is Unchanged whatever its identity, unless it is being
// retried. A conflict needs both sides modified after the cursor.
func Classify(in ClassifyInput) Classification {
	if !in.Retry && (!in.FileModTime.After(in.Cursor) || !in.ContentChanged) {
		return Unchanged
	}
	if in.SheetID == "" {
		return New
	}
	if !in.Found {
		return Orphaned
	}
	if in.SourceModTime.After(in.Cursor) {
		return Conflict
	}
	return CleanUpdate
}
