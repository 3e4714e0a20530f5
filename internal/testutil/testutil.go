package testutil

import (
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/afero"
)

// File describes one fixture file. A zero Modified leaves the
// filesystem's timestamp alone.
type File struct {
	Name     string // slash-separated, relative to the tree root
	Content  string
	Modified time.Time
}

// MemTree creates a memory filesystem with root populated by files
func MemTree(t *testing.T, root string, files ...File) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll(root, 0755); err != nil {
		t.Fatalf("failed to create root: %v", err)
	}
	writeTree(t, fs, root, files)
	return fs
}

// OSTree creates files under a fresh temp directory and returns its path
func OSTree(t *testing.T, files ...File) string {
	t.Helper()

	dir := t.TempDir()
	writeTree(t, afero.NewOsFs(), dir, files)
	return dir
}

func writeTree(t *testing.T, fs afero.Fs, root string, files []File) {
	t.Helper()

	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f.Name))
		if err := fs.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("failed to create dir for %s: %v", f.Name, err)
		}
		if err := afero.WriteFile(fs, p, []byte(f.Content), 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
		if !f.Modified.IsZero() {
			if err := fs.Chtimes(p, f.Modified, f.Modified); err != nil {
				t.Fatalf("failed to set mtime on %s: %v", f.Name, err)
			}
		}
	}
}

// CreateTestFileWithSize creates a test file with random content of the given size
func CreateTestFileWithSize(t *testing.T, dir, name string, size int64) string {
	t.Helper()

	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	defer file.Close()

	// Write random data in chunks
	const chunkSize = 1024 * 1024 // 1MB chunks
	buf := make([]byte, chunkSize)
	remaining := size

	for remaining > 0 {
		writeSize := chunkSize
		if remaining < int64(chunkSize) {
			writeSize = int(remaining)
		}

		rand.Read(buf[:writeSize])
		if _, err := file.Write(buf[:writeSize]); err != nil {
			t.Fatalf("failed to write test file: %v", err)
		}

		remaining -= int64(writeSize)
	}

	return path
}

// Unreadable removes all permissions from path for the duration of the test.
// It skips the test where permissions are not enforced.
func Unreadable(t *testing.T, path string) {
	t.Helper()

	SkipIfPermissionsIgnored(t)
	if err := os.Chmod(path, 0); err != nil {
		t.Fatalf("chmod %s: %v", path, err)
	}
	t.Cleanup(func() { os.Chmod(path, 0755) })
}

// SkipIfPermissionsIgnored skips on platforms or users that bypass file modes
func SkipIfPermissionsIgnored(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("running as root bypasses file permissions")
	}
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return true
		}

		if time.Now().After(deadline) {
			return false
		}

		<-ticker.C
	}
}
