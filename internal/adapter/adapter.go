package adapter

import (
	"context"
	"io"
	"time"

	"github.com/Ning0612/Downsort/internal/domain"
)

// EntryType represents the type of a directory entry
type EntryType int

const (
	EntryRegular EntryType = iota
	EntryDirectory
	EntrySymlink
	EntryOther
)

// Entry is metadata about one directory entry, as seen without following links
type Entry struct {
	// Name is the base name
	Name string

	// RelPath is slash-separated and relative to the source root
	RelPath string

	// AbsPath is the absolute OS path
	AbsPath string

	Type    EntryType
	Size    int64
	ModTime time.Time

	// Target is the type a symlink resolves to (EntryOther when broken)
	Target EntryType
}

// IsDir returns true if this is a directory
func (e Entry) IsDir() bool {
	return e.Type == EntryDirectory
}

// IsRegular returns true if this is a regular file
func (e Entry) IsRegular() bool {
	return e.Type == EntryRegular
}

// Descriptor converts the entry into a scan descriptor
func (e Entry) Descriptor() domain.FileDescriptor {
	return domain.FileDescriptor{
		Name:     e.Name,
		Path:     e.AbsPath,
		RelPath:  e.RelPath,
		Size:     e.Size,
		Modified: e.ModTime,
	}
}

// Source is a read-only view of a directory tree.
// Implementations resolve paths relative to their root and return
// domain-level errors for consistent error handling.
type Source interface {
	// Root returns the absolute root path
	Root() string

	// List returns the immediate children of path.
	// Entries that cannot be stat-ed are skipped and reported as warnings.
	// Returns domain.ErrNotFound if path doesn't exist
	// Returns domain.ErrNotDirectory if path is a file
	List(ctx context.Context, path string) ([]Entry, []domain.ScanWarning, error)

	// Open opens a file for streamed reading.
	// Caller is responsible for closing the reader.
	// Returns domain.ErrNotFile if path is not a regular file
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Stat returns metadata for a single path, following symlinks
	Stat(ctx context.Context, path string) (Entry, error)
}
