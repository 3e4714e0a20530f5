package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Reporter receives progress from content fingerprinting.
// Implementations must be safe for concurrent use: workers report in parallel.
type Reporter interface {
	// SetTotal sets the number of files and bytes that will be hashed
	SetTotal(totalFiles int, totalBytes int64)
	// Start reports that a worker began hashing path
	Start(path string, size int64)
	// Complete reports that path was hashed
	Complete(path string, size int64)
	// Error reports that path could not be hashed
	Error(path string, err error)
}

// Callback is a function that receives progress updates
type Callback func(update Update)

// Update represents a progress update
type Update struct {
	Type           UpdateType
	CurrentFile    string
	CurrentBytes   int64
	FilesCompleted int
	FilesFailed    int
	FilesTotal     int
	BytesCompleted int64
	BytesTotal     int64
	BytesPerSecond float64
	Error          error
}

// UpdateType indicates the type of progress update
type UpdateType int

const (
	UpdateStart UpdateType = iota
	UpdateComplete
	UpdateError
)

// CallbackReporter implements Reporter with a callback function
type CallbackReporter struct {
	callback       Callback
	mu             sync.Mutex
	filesTotal     int
	bytesTotal     int64
	filesCompleted int
	filesFailed    int
	bytesCompleted int64
	startTime      time.Time
}

// NewCallbackReporter creates a new CallbackReporter
func NewCallbackReporter(callback Callback) *CallbackReporter {
	return &CallbackReporter{
		callback:  callback,
		startTime: time.Now(),
	}
}

// SetTotal sets the total number of files and bytes and restarts the clock
func (r *CallbackReporter) SetTotal(totalFiles int, totalBytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filesTotal = totalFiles
	r.bytesTotal = totalBytes
	r.filesCompleted = 0
	r.filesFailed = 0
	r.bytesCompleted = 0
	r.startTime = time.Now()
}

// Start reports that hashing of path began
func (r *CallbackReporter) Start(path string, size int64) {
	r.mu.Lock()
	update := r.snapshot(UpdateStart, path, size)
	r.mu.Unlock()

	// Call callback outside lock to prevent deadlock
	r.emit(update)
}

// Complete reports that path was hashed
func (r *CallbackReporter) Complete(path string, size int64) {
	r.mu.Lock()
	r.filesCompleted++
	r.bytesCompleted += size
	update := r.snapshot(UpdateComplete, path, size)
	r.mu.Unlock()

	r.emit(update)
}

// Error reports that path could not be hashed
func (r *CallbackReporter) Error(path string, err error) {
	r.mu.Lock()
	r.filesFailed++
	update := r.snapshot(UpdateError, path, 0)
	update.Error = err
	r.mu.Unlock()

	r.emit(update)
}

// snapshot captures the counters; caller holds mu
func (r *CallbackReporter) snapshot(t UpdateType, path string, size int64) Update {
	var bytesPerSecond float64
	if elapsed := time.Since(r.startTime).Seconds(); elapsed > 0 {
		bytesPerSecond = float64(r.bytesCompleted) / elapsed
	}

	return Update{
		Type:           t,
		CurrentFile:    path,
		CurrentBytes:   size,
		FilesCompleted: r.filesCompleted,
		FilesFailed:    r.filesFailed,
		FilesTotal:     r.filesTotal,
		BytesCompleted: r.bytesCompleted,
		BytesTotal:     r.bytesTotal,
		BytesPerSecond: bytesPerSecond,
	}
}

func (r *CallbackReporter) emit(update Update) {
	if r.callback != nil {
		r.callback(update)
	}
}

// NewBarReporter renders a single-line progress bar to w
func NewBarReporter(w io.Writer, width int) *CallbackReporter {
	var mu sync.Mutex
	return NewCallbackReporter(func(u Update) {
		if u.Type == UpdateStart {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "\r%s %d/%d files  %s",
			FormatProgress(u.BytesCompleted, u.BytesTotal, width),
			u.FilesCompleted+u.FilesFailed, u.FilesTotal,
			FormatSpeed(u.BytesPerSecond),
		)
		if u.FilesCompleted+u.FilesFailed == u.FilesTotal {
			fmt.Fprintln(w)
		}
	})
}

// NullReporter is a no-op reporter
type NullReporter struct{}

func (NullReporter) SetTotal(totalFiles int, totalBytes int64) {}
func (NullReporter) Start(path string, size int64)             {}
func (NullReporter) Complete(path string, size int64)          {}
func (NullReporter) Error(path string, err error)              {}

// FormatBytes formats bytes into human-readable string
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatSpeed formats bytes per second into human-readable string
func FormatSpeed(bytesPerSecond float64) string {
	return FormatBytes(int64(bytesPerSecond)) + "/s"
}

// FormatProgress returns a progress bar string
func FormatProgress(current, total int64, width int) string {
	if total == 0 {
		return ""
	}

	percent := float64(current) / float64(total)
	filled := int(percent * float64(width))
	if filled > width {
		filled = width
	}

	bar := make([]byte, width)
	for i := 0; i < width; i++ {
		if i < filled {
			bar[i] = '='
		} else if i == filled {
			bar[i] = '>'
		} else {
			bar[i] = ' '
		}
	}

	return fmt.Sprintf("[%s] %5.1f%%", string(bar), percent*100)
}
