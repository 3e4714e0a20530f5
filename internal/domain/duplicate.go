package domain

// DuplicateType is the role of a file inside one duplicate cluster
type DuplicateType string

const (
	// DuplicateOriginal is the presumed original of the cluster
	DuplicateOriginal DuplicateType = "original"

	// DuplicateExact is byte-identical to the original (or, in a pure-content
	// cluster, to every other member)
	DuplicateExact DuplicateType = "exact"

	// DuplicateNumbered carries a copy/numbering suffix but differs in content
	DuplicateNumbered DuplicateType = "numbered"

	// DuplicateUnknown matched only loosely, or could not be read
	DuplicateUnknown DuplicateType = "unknown"
)

// IsValid checks if the duplicate type is a known value
func (t DuplicateType) IsValid() bool {
	switch t {
	case DuplicateOriginal, DuplicateExact, DuplicateNumbered, DuplicateUnknown:
		return true
	}
	return false
}

// Rank orders roles for display: original, exact, numbered, unknown
func (t DuplicateType) Rank() int {
	switch t {
	case DuplicateOriginal:
		return 0
	case DuplicateExact:
		return 1
	case DuplicateNumbered:
		return 2
	default:
		return 3
	}
}

// DuplicateFile is a FileDescriptor with its role in one cluster
type DuplicateFile struct {
	FileDescriptor `yaml:",inline"`

	DuplicateType DuplicateType `json:"duplicate_type" yaml:"duplicate_type"`
}

// DuplicateGroup is a finalized cluster of at least two files
type DuplicateGroup struct {
	// OriginalName is the normalized base name used as the cluster key
	OriginalName string `json:"original_name" yaml:"original_name"`

	// Files ordered by role, then name, then path
	Files []DuplicateFile `json:"files" yaml:"files"`

	// TotalSize is the sum of member sizes, computed once at construction
	TotalSize int64 `json:"total_size" yaml:"total_size"`
}

// ReclaimableBytes returns the bytes held by exact copies
func (g DuplicateGroup) ReclaimableBytes() int64 {
	var total int64
	for _, f := range g.Files {
		if f.DuplicateType == DuplicateExact {
			total += f.Size
		}
	}
	return total
}

// Original returns the member carrying the original role, if any
func (g DuplicateGroup) Original() (DuplicateFile, bool) {
	for _, f := range g.Files {
		if f.DuplicateType == DuplicateOriginal {
			return f, true
		}
	}
	return DuplicateFile{}, false
}
