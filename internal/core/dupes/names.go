package dupes

import (
	"regexp"
	"strings"
)

// compoundExtensions stay whole when splitting a name
var compoundExtensions = []string{".tar.gz", ".tar.bz2", ".tar.xz", ".tar.zst"}

// copySuffixes are the copy/numbering conventions of common browsers and
// file managers, matched against the end of the stem
var copySuffixes = []*regexp.Regexp{
	// "name (1)", "name(2)"; unspaced only for short counters so
	// "Invoice(2019)" keeps its year
	regexp.MustCompile(`(\s+\(\d+\)|\(\d{1,3}\))$`),
	// "name - Copy", "name - Copy (3)"
	regexp.MustCompile(`(?i)\s+-\s+copy(\s*\(\d+\))?$`),
	// "name copy", "name copy 2", "name-copy", "name_copy", "name-copy-2"
	regexp.MustCompile(`(?i)[ _-]copy([ _-]?\d+)?$`),
}

var whitespace = regexp.MustCompile(`\s+`)

// Name is the normalized form of a file name
type Name struct {
	// Base is the stem without copy suffixes plus the extension, case preserved
	Base string

	// Key is the loose cluster key: Base case-folded with whitespace collapsed
	Key string

	// Numbered is true when a copy or numbering suffix was stripped
	Numbered bool
}

// SplitName splits a file name into stem and extension (with the dot).
// Dot-files have no extension.
func SplitName(name string) (stem, ext string) {
	lower := strings.ToLower(name)
	for _, ce := range compoundExtensions {
		if strings.HasSuffix(lower, ce) && len(name) > len(ce) {
			return name[:len(name)-len(ce)], name[len(name)-len(ce):]
		}
	}

	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], name[idx:]
}

// StripCopySuffix removes copy/numbering suffixes from a stem until none
// match. A suffix that would leave an empty stem is kept.
func StripCopySuffix(stem string) (string, bool) {
	stripped := false
	for {
		changed := false
		for _, re := range copySuffixes {
			loc := re.FindStringIndex(stem)
			if loc == nil {
				continue
			}
			rest := strings.TrimRight(stem[:loc[0]], " ")
			if rest == "" {
				continue
			}
			stem = rest
			stripped = true
			changed = true
		}
		if !changed {
			return stem, stripped
		}
	}
}

// Normalize derives the cluster key of a file name
func Normalize(name string) Name {
	stem, ext := SplitName(name)
	base, numbered := StripCopySuffix(stem)
	full := base + ext

	key := strings.ToLower(whitespace.ReplaceAllString(strings.TrimSpace(full), " "))
	return Name{Base: full, Key: key, Numbered: numbered}
}
