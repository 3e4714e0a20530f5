package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/afero"

	"github.com/Ning0612/Downsort/internal/adapter"
	"github.com/Ning0612/Downsort/internal/domain"
)

// Source implements adapter.Source for a local directory
type Source struct {
	fs   afero.Fs
	root string
}

var _ adapter.Source = (*Source)(nil)

// New creates a source over the OS filesystem.
// root must be an existing directory.
func New(root string) (*Source, error) {
	return NewWithFs(afero.NewOsFs(), root)
}

// NewWithFs creates a source over the given filesystem
func NewWithFs(fs afero.Fs, root string) (*Source, error) {
	// Convert to absolute path
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	// Verify root exists and is a directory
	info, err := fs.Stat(absRoot)
	if err != nil {
		return nil, mapError(err)
	}
	if !info.IsDir() {
		return nil, domain.ErrNotDirectory
	}

	return &Source{fs: fs, root: absRoot}, nil
}

// Root returns the absolute root path of this source
func (s *Source) Root() string {
	return s.root
}

// resolvePath safely resolves a relative path to absolute path within root
// Returns error if path attempts to escape root directory
func (s *Source) resolvePath(relPath string) (string, error) {
	// Handle empty path as root
	if relPath == "" || relPath == "." {
		return s.root, nil
	}

	relPath = filepath.Clean(filepath.FromSlash(relPath))

	// Reject absolute paths
	if filepath.IsAbs(relPath) {
		return "", domain.ErrPermissionDenied
	}

	fullPath := filepath.Join(s.root, relPath)

	// filepath.Rel handles root="/a" vs fullPath="/ab"
	rel, err := filepath.Rel(s.root, fullPath)
	if err != nil {
		return "", domain.ErrPermissionDenied
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", domain.ErrPermissionDenied
	}

	return fullPath, nil
}

// List returns the immediate children of dir, sorted by name
func (s *Source) List(ctx context.Context, dir string) ([]adapter.Entry, []domain.ScanWarning, error) {
	fullPath, err := s.resolvePath(dir)
	if err != nil {
		return nil, nil, err
	}

	info, err := s.fs.Stat(fullPath)
	if err != nil {
		return nil, nil, mapError(err)
	}
	if !info.IsDir() {
		return nil, nil, domain.ErrNotDirectory
	}

	f, err := s.fs.Open(fullPath)
	if err != nil {
		return nil, nil, mapError(err)
	}
	names, err := f.Readdirnames(-1)
	f.Close()
	if err != nil {
		return nil, nil, mapError(err)
	}
	sort.Strings(names)

	entries := make([]adapter.Entry, 0, len(names))
	var warnings []domain.ScanWarning
	for _, name := range names {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		relPath := path.Join(filepath.ToSlash(dir), name)
		if dir == "" || dir == "." {
			relPath = name
		}
		absPath := filepath.Join(fullPath, name)

		// Entries deleted mid-scan or denied are reported, not fatal
		info, err := s.lstat(absPath)
		if err != nil {
			warnings = append(warnings, domain.NewScanWarning(domain.OpStat, absPath, mapError(err)))
			continue
		}

		entry := entryFromOS(name, relPath, absPath, info)
		if entry.Type == adapter.EntrySymlink {
			entry.Target = adapter.EntryOther
			if target, err := s.fs.Stat(absPath); err == nil {
				entry.Target = typeOf(target)
				if entry.Target == adapter.EntryRegular {
					entry.Size = target.Size()
					entry.ModTime = target.ModTime()
				}
			}
		}
		entries = append(entries, entry)
	}

	return entries, warnings, nil
}

// Open opens a regular file for reading
func (s *Source) Open(ctx context.Context, relPath string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	fullPath, err := s.resolvePath(relPath)
	if err != nil {
		return nil, err
	}

	info, err := s.fs.Stat(fullPath)
	if err != nil {
		return nil, mapError(err)
	}
	if typeOf(info) != adapter.EntryRegular {
		return nil, domain.ErrNotFile
	}

	file, err := s.fs.Open(fullPath)
	if err != nil {
		return nil, mapError(err)
	}

	return file, nil
}

// Stat returns metadata for a single path, following symlinks
func (s *Source) Stat(ctx context.Context, relPath string) (adapter.Entry, error) {
	fullPath, err := s.resolvePath(relPath)
	if err != nil {
		return adapter.Entry{}, err
	}

	info, err := s.fs.Stat(fullPath)
	if err != nil {
		return adapter.Entry{}, mapError(err)
	}

	return entryFromOS(filepath.Base(fullPath), filepath.ToSlash(relPath), fullPath, info), nil
}

// lstat uses Lstat when the filesystem supports it
func (s *Source) lstat(p string) (os.FileInfo, error) {
	if l, ok := s.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(p)
		return info, err
	}
	return s.fs.Stat(p)
}

// entryFromOS converts os.FileInfo to adapter.Entry
func entryFromOS(name, relPath, absPath string, info os.FileInfo) adapter.Entry {
	return adapter.Entry{
		Name:    name,
		RelPath: relPath,
		AbsPath: absPath,
		Type:    typeOf(info),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}

func typeOf(info os.FileInfo) adapter.EntryType {
	mode := info.Mode()
	switch {
	case info.IsDir():
		return adapter.EntryDirectory
	case mode&os.ModeSymlink != 0:
		return adapter.EntrySymlink
	case mode.IsRegular():
		return adapter.EntryRegular
	default:
		return adapter.EntryOther
	}
}

// mapError converts OS errors to domain errors, keeping the original for context
func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
	case errors.Is(err, syscall.ENOTDIR):
		return fmt.Errorf("%w: %w", domain.ErrNotDirectory, err)
	}

	return err
}
