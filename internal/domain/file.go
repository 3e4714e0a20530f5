package domain

import "time"

// FileDescriptor is an immutable snapshot of one regular file taken at scan time
type FileDescriptor struct {
	// Name is the base name of the file
	Name string `json:"name" yaml:"name"`

	// Path is the absolute path; unique within a scan
	Path string `json:"path" yaml:"path"`

	// RelPath is the slash-separated path relative to the scan root
	RelPath string `json:"rel_path" yaml:"rel_path"`

	// Size in bytes
	Size int64 `json:"size" yaml:"size"`

	// Modified is the last modification time
	Modified time.Time `json:"modified" yaml:"modified"`
}

// FileGroup is one partition produced by a grouping mode
type FileGroup struct {
	// Key is an extension key or a date bucket key
	Key string `json:"key" yaml:"key"`

	// Files sorted by name, then path
	Files []FileDescriptor `json:"files" yaml:"files"`
}

// TotalSize returns the sum of member sizes
func (g FileGroup) TotalSize() int64 {
	var total int64
	for _, f := range g.Files {
		total += f.Size
	}
	return total
}

// NoExtension is the extension key used for files without an extension
const NoExtension = "no-extension"
