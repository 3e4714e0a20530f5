package grouping

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Ning0612/Downsort/internal/domain"
)

// ExtensionKey returns the lowercase extension of name without the dot,
// or domain.NoExtension. Dot-files such as ".bashrc" have no extension.
func ExtensionKey(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return domain.NoExtension
	}
	return strings.ToLower(name[idx+1:])
}

// ByExtension partitions files by extension key.
// Keys are sorted ascending with domain.NoExtension last.
func ByExtension(files []domain.FileDescriptor) []domain.FileGroup {
	groups := partition(files, func(f domain.FileDescriptor) string {
		return ExtensionKey(f.Name)
	})

	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i].Key, groups[j].Key
		if (a == domain.NoExtension) != (b == domain.NoExtension) {
			return b == domain.NoExtension
		}
		return a < b
	})
	return groups
}

// DateMode selects how modification times are bucketed
type DateMode string

const (
	// DateModeRelative buckets into Today, Yesterday, This Week, This Month, Older
	DateModeRelative DateMode = "relative"
	// DateModeDay buckets by calendar day (YYYY-MM-DD)
	DateModeDay DateMode = "day"
)

// IsValid checks if the date mode is a known value
func (m DateMode) IsValid() bool {
	switch m {
	case DateModeRelative, DateModeDay:
		return true
	}
	return false
}

// Relative bucket labels, newest first
const (
	BucketToday     = "Today"
	BucketYesterday = "Yesterday"
	BucketThisWeek  = "This Week"
	BucketThisMonth = "This Month"
	BucketOlder     = "Older"
)

var relativeOrder = map[string]int{
	BucketToday:     0,
	BucketYesterday: 1,
	BucketThisWeek:  2,
	BucketThisMonth: 3,
	BucketOlder:     4,
}

// DateKey returns the bucket of modified relative to now
func DateKey(modified, now time.Time, mode DateMode) string {
	modified = modified.In(now.Location())
	if mode == DateModeDay {
		return modified.Format(time.DateOnly)
	}

	days := calendarDaysBetween(modified, now)
	switch {
	case days <= 0:
		// Today, or timestamps in the future
		return BucketToday
	case days == 1:
		return BucketYesterday
	case days < 7:
		return BucketThisWeek
	case days < 30:
		return BucketThisMonth
	default:
		return BucketOlder
	}
}

// calendarDaysBetween counts midnights between a and b in b's location
func calendarDaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	// Noon avoids DST shifts turning 24h into 23h or 25h
	da := time.Date(ay, am, ad, 12, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 12, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// ByDate partitions files by modification date relative to now, newest first
func ByDate(files []domain.FileDescriptor, now time.Time, mode DateMode) ([]domain.FileGroup, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown date mode %q", domain.ErrConfigInvalid, mode)
	}

	groups := partition(files, func(f domain.FileDescriptor) string {
		return DateKey(f.Modified, now, mode)
	})

	sort.Slice(groups, func(i, j int) bool {
		if mode == DateModeDay {
			// ISO dates sort lexically
			return groups[i].Key > groups[j].Key
		}
		return relativeOrder[groups[i].Key] < relativeOrder[groups[j].Key]
	})
	return groups, nil
}

// partition assigns every file to exactly one key; empty keys never appear
func partition(files []domain.FileDescriptor, keyOf func(domain.FileDescriptor) string) []domain.FileGroup {
	index := make(map[string]int)
	var groups []domain.FileGroup

	for _, f := range files {
		key := keyOf(f)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, domain.FileGroup{Key: key})
		}
		groups[i].Files = append(groups[i].Files, f)
	}

	for i := range groups {
		SortFiles(groups[i].Files)
	}
	return groups
}

// SortFiles sorts by name ascending, then path, for a total order
func SortFiles(files []domain.FileDescriptor) {
	sort.Slice(files, func(i, j int) bool {
		if files[i].Name != files[j].Name {
			return files[i].Name < files[j].Name
		}
		return files[i].Path < files[j].Path
	})
}
