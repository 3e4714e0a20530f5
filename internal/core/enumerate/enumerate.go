package enumerate

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/Ning0612/Downsort/internal/adapter"
	"github.com/Ning0612/Downsort/internal/domain"
	"github.com/Ning0612/Downsort/internal/logger"
)

// Options controls which entries are enumerated
type Options struct {
	// Recursive descends into subdirectories; symlinks are never followed
	Recursive bool

	// IncludeHidden keeps dot-files and dot-directories
	IncludeHidden bool

	// Ignore glob patterns, matched against base name and relative path
	Ignore []string
}

// Result is one enumeration snapshot
type Result struct {
	Files    []domain.FileDescriptor
	Warnings []domain.ScanWarning
}

// Enumerate lists the regular files under the source root.
// Failure to list the root is fatal; everything below it degrades to warnings.
func Enumerate(ctx context.Context, src adapter.Source, opts Options) (*Result, error) {
	res := &Result{}

	entries, warnings, err := src.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", src.Root(), err)
	}
	res.Warnings = append(res.Warnings, warnings...)

	if err := walk(ctx, src, entries, opts, res); err != nil {
		return nil, err
	}

	for _, w := range res.Warnings {
		logger.Get().Warn("skipping entry", "path", w.Path, "op", string(w.Op), "error", w.Err)
	}
	logger.Get().Debug("enumeration completed",
		"root", src.Root(),
		"files", len(res.Files),
		"warnings", len(res.Warnings),
	)

	return res, nil
}

func walk(ctx context.Context, src adapter.Source, entries []adapter.Entry, opts Options, res *Result) error {
	for _, entry := range entries {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !opts.IncludeHidden && isHidden(entry.Name) {
			continue
		}
		if ShouldIgnore(entry.RelPath, opts.Ignore) {
			continue
		}

		switch entry.Type {
		case adapter.EntryRegular:
			res.Files = append(res.Files, entry.Descriptor())

		case adapter.EntryDirectory:
			if !opts.Recursive {
				continue
			}
			children, warnings, err := src.List(ctx, entry.RelPath)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				res.Warnings = append(res.Warnings, domain.NewScanWarning(domain.OpList, entry.AbsPath, err))
				continue
			}
			res.Warnings = append(res.Warnings, warnings...)
			if err := walk(ctx, src, children, opts, res); err != nil {
				return err
			}

		case adapter.EntrySymlink:
			// Links are not followed when recursing; at the top level a link
			// to a regular file counts as that file
			if opts.Recursive || entry.Target != adapter.EntryRegular {
				logger.Get().Debug("skipping symlink", "path", entry.AbsPath)
				continue
			}
			res.Files = append(res.Files, entry.Descriptor())
		}
	}
	return nil
}

// ShouldIgnore checks if a path matches any of the patterns
func ShouldIgnore(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path.Base(relPath))
		if err == nil && matched {
			return true
		}
		matched, err = filepath.Match(pattern, relPath)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// isHidden checks if a name is a dot-file
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
